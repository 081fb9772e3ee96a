package server

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/transport"
)

// stubClipboard is an in-memory clipboard shared by the server's reader and
// writer sides. Writes are recorded on a channel for assertions.
type stubClipboard struct {
	mu     sync.Mutex
	text   string
	writes chan string
}

func newStubClipboard(initial string) *stubClipboard {
	return &stubClipboard{text: initial, writes: make(chan string, 16)}
}

func (s *stubClipboard) ReadText(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.text, nil
}

func (s *stubClipboard) WriteText(_ context.Context, text string) error {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
	s.writes <- text

	return nil
}

func (s *stubClipboard) Set(text string) {
	s.mu.Lock()
	s.text = text
	s.mu.Unlock()
}

func startServer(t *testing.T, clip *stubClipboard) (*Server, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	srv := New(slog.Default(), clip, clip, domain.Endpoint{Host: "127.0.0.1", Port: 0}, Options{
		PollInterval: 20 * time.Millisecond,
	})
	if err := srv.Start(ctx); err != nil {
		cancel()
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(func() {
		cancel()
		srv.Wait()
	})

	return srv, cancel
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

func sendText(t *testing.T, conn net.Conn, text string) {
	t.Helper()
	frame, err := transport.EncodeText(text)
	if err != nil {
		t.Fatalf("encode %q: %v", text, err)
	}
	if _, err := conn.Write(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func readText(t *testing.T, conn net.Conn) string {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	frame, err := transport.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	_ = conn.SetReadDeadline(time.Time{})

	return string(frame.Payload)
}

func expectNoFrame(t *testing.T, conn net.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	frame, err := transport.ReadFrame(conn)
	if err == nil {
		t.Fatalf("unexpected frame %q", frame.Payload)
	}
	_ = conn.SetReadDeadline(time.Time{})
}

func waitForClients(t *testing.T, srv *Server, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if srv.ClientCount() == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d clients, got %d", want, srv.ClientCount())
}

func TestServerPushesInitialClipboard(t *testing.T) {
	clip := newStubClipboard("greetings")
	srv, _ := startServer(t, clip)

	conn := dialServer(t, srv)
	if got := readText(t, conn); got != "greetings" {
		t.Fatalf("initial push mismatch: got %q", got)
	}
	// Pre-existing clipboard content arrives once, via the initial push; the
	// watcher does not report it again.
	expectNoFrame(t, conn)
}

func TestServerSkipsEmptyInitialPush(t *testing.T) {
	clip := newStubClipboard("")
	srv, _ := startServer(t, clip)

	conn := dialServer(t, srv)
	waitForClients(t, srv, 1)
	expectNoFrame(t, conn)
	if got := srv.ClientCount(); got != 1 {
		t.Fatalf("client should stay connected, count %d", got)
	}
}

func TestServerAppliesAndRelaysClientText(t *testing.T) {
	clip := newStubClipboard("")
	srv, _ := startServer(t, clip)

	sender := dialServer(t, srv)
	receiver := dialServer(t, srv)
	waitForClients(t, srv, 2)

	sendText(t, sender, "from laptop")

	select {
	case got := <-clip.writes:
		if got != "from laptop" {
			t.Fatalf("clipboard write mismatch: got %q", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("text was not applied to the clipboard")
	}

	if got := readText(t, receiver); got != "from laptop" {
		t.Fatalf("relay mismatch: got %q", got)
	}

	// Neither the sender nor the receiver may see the text again: the sender
	// is excluded from the relay and the poller treats the applied text as
	// already bridged.
	expectNoFrame(t, sender)
	expectNoFrame(t, receiver)
}

func TestServerBroadcastsLocalClipboardChange(t *testing.T) {
	clip := newStubClipboard("")
	srv, _ := startServer(t, clip)

	first := dialServer(t, srv)
	second := dialServer(t, srv)
	waitForClients(t, srv, 2)

	clip.Set("typed locally")

	if got := readText(t, first); got != "typed locally" {
		t.Fatalf("first client mismatch: got %q", got)
	}
	if got := readText(t, second); got != "typed locally" {
		t.Fatalf("second client mismatch: got %q", got)
	}
}

func TestServerDropsClientOnBadFrameType(t *testing.T) {
	clip := newStubClipboard("")
	srv, _ := startServer(t, clip)

	offender := dialServer(t, srv)
	bystander := dialServer(t, srv)
	waitForClients(t, srv, 2)

	if _, err := offender.Write([]byte{0x7F}); err != nil {
		t.Fatalf("write bad frame type: %v", err)
	}
	waitForClients(t, srv, 1)

	_ = offender.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := transport.ReadFrame(offender); err == nil {
		t.Fatalf("offender connection should be closed")
	}

	// The remaining client still receives clipboard traffic.
	clip.Set("still alive")
	if got := readText(t, bystander); got != "still alive" {
		t.Fatalf("bystander mismatch: got %q", got)
	}
}

func TestServerDropsClientOnOversizeDeclaration(t *testing.T) {
	clip := newStubClipboard("")
	srv, _ := startServer(t, clip)

	conn := dialServer(t, srv)
	waitForClients(t, srv, 1)

	if _, err := conn.Write([]byte{0x01, 0xFF, 0xFF, 0xFF, 0xFF}); err != nil {
		t.Fatalf("write oversize header: %v", err)
	}
	waitForClients(t, srv, 0)
}

func TestServerShutdownClosesClients(t *testing.T) {
	clip := newStubClipboard("")
	srv, cancel := startServer(t, clip)

	conn := dialServer(t, srv)
	waitForClients(t, srv, 1)

	cancel()
	srv.Wait()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := transport.ReadFrame(conn); err == nil {
		t.Fatalf("connection should be closed after shutdown")
	}
	if got := srv.ClientCount(); got != 0 {
		t.Fatalf("expected no clients after shutdown, got %d", got)
	}
}
