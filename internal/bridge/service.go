package bridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ergolyam/clipbridge/internal/bus"
	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/events"
	"github.com/ergolyam/clipbridge/internal/probe"
	"github.com/ergolyam/clipbridge/internal/transport"
)

// Options tunes connection timing. Zero values fall back to the defaults.
type Options struct {
	DialTimeout   time.Duration
	ProbeTimeout  time.Duration
	ProbeInterval time.Duration
}

const defaultDialTimeout = 5 * time.Second

func (o Options) withDefaults() Options {
	if o.DialTimeout <= 0 {
		o.DialTimeout = defaultDialTimeout
	}
	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = probe.DefaultTimeout
	}
	if o.ProbeInterval <= 0 {
		o.ProbeInterval = probe.DefaultInterval
	}

	return o
}

// worker is the handle for the single background attempt loop. A new loop is
// never started before the previous one is cancelled and fully drained.
type worker struct {
	endpoint domain.Endpoint
	auto     bool
	cancel   context.CancelFunc
	done     chan struct{}
}

// Service supervises the connection to the bridge server: it probes for
// reachability, dials, runs the session read loop, and publishes every state
// transition to the bus.
type Service struct {
	logger *slog.Logger
	bus    bus.MessageBus
	opts   Options

	// opMu serializes Start and Stop so two lifecycle commands cannot race
	// each other; mu guards the fields below and is never held across
	// blocking calls.
	opMu sync.Mutex

	mu       sync.Mutex
	state    events.ConnectionState
	endpoint domain.Endpoint
	session  *transport.Session
	worker   *worker
}

func NewService(logger *slog.Logger, b bus.MessageBus, opts Options) *Service {
	if logger == nil {
		logger = slog.With("component", "bridge")
	}

	return &Service{
		logger: logger,
		bus:    b,
		opts:   opts.withDefaults(),
		state:  events.ConnectionStateDisconnected,
	}
}

// Start begins connecting to the endpoint. When auto is true the service
// first waits for the endpoint to become reachable and keeps reconnecting
// after session loss; when false it makes a single direct attempt.
//
// A start that matches the currently active endpoint and auto flag is a
// no-op: the current state is re-emitted and the live session is left alone.
// Any other start tears the previous attempt down first.
func (s *Service) Start(ctx context.Context, endpoint domain.Endpoint, auto bool) error {
	if err := endpoint.Validate(); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	active := s.worker
	state := s.state
	s.mu.Unlock()

	if active != nil && active.endpoint == endpoint && active.auto == auto &&
		state != events.ConnectionStateDisconnected {
		s.logger.Info("start ignored: already active",
			"endpoint", endpoint.Addr(), "state", string(state))
		s.publishStatus(state, endpoint, nil)

		return nil
	}

	s.stopWorker()

	workerCtx, cancel := context.WithCancel(ctx)
	w := &worker{endpoint: endpoint, auto: auto, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	s.worker = w
	s.endpoint = endpoint
	s.mu.Unlock()

	s.logger.Info("bridge starting", "endpoint", endpoint.Addr(), "auto_connect", auto)
	go func() {
		defer close(w.done)
		s.run(workerCtx, endpoint, auto)
	}()

	return nil
}

// Stop cancels any in-flight probe, connect attempt, or session and settles
// in Disconnected. Calling it again is a no-op.
func (s *Service) Stop() {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.stopWorker()

	s.mu.Lock()
	changed := s.state != events.ConnectionStateDisconnected
	s.state = events.ConnectionStateDisconnected
	endpoint := s.endpoint
	s.mu.Unlock()

	if changed {
		s.logger.Info("bridge stopped", "endpoint", endpoint.Addr())
		s.publishStatus(events.ConnectionStateDisconnected, endpoint, nil)
	}
}

// SendText pushes text to the server over the active session. The outcome is
// reported on the bus either way; without a session the call fails without
// touching connection state.
func (s *Service) SendText(text string) bool {
	s.mu.Lock()
	session := s.session
	s.mu.Unlock()

	if session == nil {
		s.logger.Warn("send skipped: not connected", "payload_len", len(text))
		s.publishSendReport(false, "not connected", len(text))

		return false
	}

	if !session.SendText(text) {
		s.publishSendReport(false, "send failed", len(text))

		return false
	}

	s.publishSendReport(true, "", len(text))

	return true
}

func (s *Service) State() events.ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

func (s *Service) Endpoint() domain.Endpoint {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.endpoint
}

// stopWorker cancels the current worker and waits until its goroutine has
// fully exited. Callers must hold opMu.
func (s *Service) stopWorker() {
	s.mu.Lock()
	w := s.worker
	s.worker = nil
	s.mu.Unlock()

	if w == nil {
		return
	}
	w.cancel()
	<-w.done
}

func (s *Service) run(ctx context.Context, endpoint domain.Endpoint, auto bool) {
	for {
		if ctx.Err() != nil {
			return
		}

		if auto {
			s.setState(ctx, events.ConnectionStateWaiting, nil)
			cfg := probe.WatchConfig{
				Interval: s.opts.ProbeInterval,
				Timeout:  s.opts.ProbeTimeout,
				OnAttempt: func(reachable bool) {
					if !reachable {
						s.setState(ctx, events.ConnectionStateWaiting, nil)
					}
				},
			}
			if err := probe.Watch(ctx, endpoint, cfg); err != nil {
				return
			}
		}

		s.setState(ctx, events.ConnectionStateConnecting, nil)
		session, err := transport.Dial(ctx, endpoint, s.opts.DialTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("connect failed", "endpoint", endpoint.Addr(), "error", err)
			if !auto {
				s.setState(ctx, events.ConnectionStateDisconnected, err)

				return
			}

			continue
		}
		if ctx.Err() != nil {
			_ = session.Close()

			return
		}

		s.mu.Lock()
		s.session = session
		s.mu.Unlock()
		s.setState(ctx, events.ConnectionStateConnected, nil)

		err = session.Run(ctx, s.handleIncoming)

		s.mu.Lock()
		s.session = nil
		s.mu.Unlock()
		_ = session.Close()

		if ctx.Err() != nil {
			return
		}

		if errors.Is(err, transport.ErrPeerClosed) {
			s.logger.Info("server closed the connection", "endpoint", endpoint.Addr())
		} else if err != nil {
			s.logger.Warn("session ended", "endpoint", endpoint.Addr(), "error", err)
		}

		if !auto {
			s.setState(ctx, events.ConnectionStateDisconnected, err)

			return
		}
	}
}

func (s *Service) handleIncoming(text string) {
	s.bus.Publish(events.TopicClipboardUpdate, events.ClipboardUpdate{
		Text:   text,
		Origin: domain.ClipOriginRemote,
		At:     time.Now(),
	})
}

// setState records the new state and publishes it. Once the worker context
// is cancelled the racing Stop owns the final Disconnected emission, so late
// worker transitions are dropped.
func (s *Service) setState(ctx context.Context, state events.ConnectionState, err error) {
	if ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.state = state
	endpoint := s.endpoint
	s.mu.Unlock()

	s.publishStatus(state, endpoint, err)
}
