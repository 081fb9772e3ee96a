package transport

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ergolyam/clipbridge/internal/domain"
)

// Session is one framed text stream over an established TCP connection.
// SendText may be called from any goroutine; frame writes are serialized.
type Session struct {
	endpoint domain.Endpoint
	logger   *slog.Logger

	mu   sync.Mutex
	conn net.Conn

	writeMu sync.Mutex
}

// Dial connects to the endpoint and wraps the connection in a Session.
// The timeout bounds connection establishment only, not the session lifetime.
func Dial(ctx context.Context, endpoint domain.Endpoint, timeout time.Duration) (*Session, error) {
	if err := endpoint.Validate(); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}

	logger := sessionLogger(endpoint.Addr())
	logger.Debug("connecting", "timeout", timeout)

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.Addr())
	if err != nil {
		logger.Debug("connect failed", "error", err)

		return nil, fmt.Errorf("connect to %s: %w", endpoint.Addr(), err)
	}

	logger.Info("connected")

	return &Session{endpoint: endpoint, logger: logger, conn: conn}, nil
}

// NewSession wraps an already established connection, typically one returned
// by a listener's Accept.
func NewSession(conn net.Conn, logger *slog.Logger) *Session {
	if logger == nil {
		logger = sessionLogger(conn.RemoteAddr().String())
	}

	return &Session{logger: logger, conn: conn}
}

func (s *Session) Endpoint() domain.Endpoint {
	return s.endpoint
}

func (s *Session) RemoteAddr() string {
	conn, err := s.currentConn()
	if err != nil {
		return ""
	}

	return conn.RemoteAddr().String()
}

// SendText encodes text as a single frame and writes it to the peer. It
// reports whether the frame was handed to the connection; delivery is not
// acknowledged by the protocol.
func (s *Session) SendText(text string) bool {
	conn, err := s.currentConn()
	if err != nil {
		s.logger.Warn("send skipped", "error", err)

		return false
	}

	frame, err := EncodeText(text)
	if err != nil {
		s.logger.Warn("send rejected", "error", err, "payload_len", len(text))

		return false
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if _, err := conn.Write(frame); err != nil {
		s.logger.Warn("send failed", "error", err)

		return false
	}

	s.logger.Debug("sent text frame", "payload_len", len(frame)-frameHeaderBytes)

	return true
}

// Run reads frames until the context is cancelled, the peer closes the
// stream, or the stream breaks. Each valid text payload is passed to onText.
// Text frames carrying invalid UTF-8 are dropped and reading continues.
// Cancelling the context closes the connection to unblock the pending read.
func (s *Session) Run(ctx context.Context, onText func(text string)) error {
	conn, err := s.currentConn()
	if err != nil {
		return err
	}

	readDone := make(chan struct{})
	defer close(readDone)

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-readDone:
		}
	}()

	for {
		frame, err := ReadFrame(conn)
		if err != nil {
			_ = s.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, ErrPeerClosed) {
				s.logger.Info("peer closed the session")
			} else {
				s.logger.Warn("session read failed", "error", err)
			}

			return err
		}

		if !utf8.Valid(frame.Payload) {
			s.logger.Warn("dropping text frame with invalid utf-8", "payload_len", len(frame.Payload))

			continue
		}

		onText(string(frame.Payload))
	}
}

// Close shuts the connection down. It is safe to call repeatedly and from
// concurrent goroutines.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}

	if err := conn.Close(); err != nil {
		s.logger.Debug("close failed", "error", err)

		return err
	}

	s.logger.Info("session closed")

	return nil
}

func (s *Session) currentConn() (net.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil, errors.New("session is closed")
	}

	return s.conn, nil
}
