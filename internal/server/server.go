package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ergolyam/clipbridge/internal/clipboard"
	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/transport"
)

const (
	// DefaultPollInterval is the clipboard poll cadence when none is configured.
	DefaultPollInterval = 300 * time.Millisecond
	// initialPushTimeout caps the clipboard read done for a freshly accepted client.
	initialPushTimeout = 500 * time.Millisecond
)

// Options tunes a Server. Zero values fall back to defaults.
type Options struct {
	PollInterval time.Duration
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}

	return o
}

type client struct {
	id      string
	label   string
	session *transport.Session
}

// Server accepts bridge clients, mirrors their text into the local clipboard,
// and relays every new clip to all other connected machines.
type Server struct {
	logger *slog.Logger
	reader clipboard.Reader
	writer clipboard.Writer
	bind   domain.Endpoint
	opts   Options

	watcher *clipboard.Watcher
	wg      sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	clients  map[string]*client
}

func New(logger *slog.Logger, reader clipboard.Reader, writer clipboard.Writer, bind domain.Endpoint, opts Options) *Server {
	if logger == nil {
		logger = slog.With("component", "server")
	}

	s := &Server{
		logger:  logger,
		reader:  reader,
		writer:  writer,
		bind:    bind,
		opts:    opts.withDefaults(),
		clients: make(map[string]*client),
	}
	s.watcher = clipboard.NewWatcher(reader, s.opts.PollInterval, s.onLocalChange, logger)

	return s
}

// Start binds the listener and launches the accept loop and the clipboard
// watcher. They run until the context is cancelled; Wait blocks for them.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.bind.Addr(), err)
	}

	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.logger.Info("server listening", "target", listener.Addr().String())

	s.wg.Add(3)
	go func() {
		defer s.wg.Done()
		_ = s.watcher.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		<-ctx.Done()
		_ = listener.Close()
	}()
	go func() {
		defer s.wg.Done()
		s.acceptLoop(ctx, listener)
	}()

	return nil
}

// Wait blocks until every server goroutine has finished after cancellation.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Addr reports the bound listener address, or nil before Start.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// ClientCount reports how many clients are currently registered.
func (s *Server) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

func (s *Server) acceptLoop(ctx context.Context, listener net.Listener) {
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				s.shutdownClients()

				return
			}
			s.logger.Warn("accept failed", "error", err)

			continue
		}

		s.wg.Add(1)
		go s.serveClient(ctx, conn)
	}
}

func (s *Server) serveClient(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()

	c := &client{
		id:      uuid.New().String(),
		label:   conn.RemoteAddr().String(),
		session: transport.NewSession(conn, nil),
	}

	s.mu.Lock()
	s.clients[c.id] = c
	connected := len(s.clients)
	s.mu.Unlock()
	s.logger.Info("client connected", "client", c.label, "id", c.id, "clients", connected)

	err := s.serveSession(ctx, c)

	_ = c.session.Close()
	s.mu.Lock()
	delete(s.clients, c.id)
	remaining := len(s.clients)
	s.mu.Unlock()

	switch {
	case ctx.Err() != nil:
		s.logger.Info("client released", "client", c.label, "clients", remaining)
	case errors.Is(err, transport.ErrPeerClosed):
		s.logger.Info("client closed", "client", c.label, "clients", remaining)
	default:
		s.logger.Info("client dropped", "client", c.label, "error", err, "clients", remaining)
	}
}

func (s *Server) serveSession(ctx context.Context, c *client) error {
	if text, ok := s.initialClipboardText(ctx); ok {
		if !c.session.SendText(text) {
			return errors.New("initial clipboard push failed")
		}
		s.logger.Debug("pushed initial clipboard", "client", c.label, "payload_len", len(text))
	}

	return c.session.Run(ctx, func(text string) {
		s.applyClientText(ctx, c, text)
	})
}

// initialClipboardText grabs the current clipboard for the first push to a new
// client. Empty clipboards and slow tools are skipped rather than reported.
func (s *Server) initialClipboardText(ctx context.Context) (string, bool) {
	readCtx, cancel := context.WithTimeout(ctx, initialPushTimeout)
	defer cancel()

	text, err := s.reader.ReadText(readCtx)
	if err != nil || text == "" {
		return "", false
	}

	return text, true
}

func (s *Server) applyClientText(ctx context.Context, sender *client, text string) {
	// Mark before writing so the poller never sees the new text first.
	s.watcher.MarkApplied(text)
	if err := s.writer.WriteText(ctx, text); err != nil {
		s.logger.Warn("apply text to clipboard failed", "client", sender.label, "error", err)
	} else {
		s.logger.Info("applied text from client", "client", sender.label, "payload_len", len(text))
	}

	s.broadcast(text, sender.id)
}

func (s *Server) onLocalChange(text string) {
	s.logger.Info("relaying local clipboard change", "payload_len", len(text))
	s.broadcast(text, "")
}

func (s *Server) broadcast(text, excludeID string) {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		if c.id == excludeID {
			continue
		}
		targets = append(targets, c)
	}
	s.mu.Unlock()

	sent := 0
	for _, c := range targets {
		if !c.session.SendText(text) {
			s.logger.Info("send failed, dropping client", "client", c.label)
			_ = c.session.Close()

			continue
		}
		sent++
	}
	if sent > 0 {
		s.logger.Debug("broadcast frame", "payload_len", len(text), "clients", sent)
	}
}

func (s *Server) shutdownClients() {
	s.mu.Lock()
	targets := make([]*client, 0, len(s.clients))
	for _, c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	for _, c := range targets {
		_ = c.session.Close()
	}
	s.logger.Info("server stopped", "clients", len(targets))
}
