package probe

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/ergolyam/clipbridge/internal/domain"
)

const (
	// DefaultTimeout bounds a single reachability attempt.
	DefaultTimeout = 1200 * time.Millisecond

	// DefaultInterval separates consecutive attempts while watching.
	DefaultInterval = 3 * time.Second
)

// WatchConfig tunes Watch. Zero values fall back to the package defaults.
type WatchConfig struct {
	Interval time.Duration
	Timeout  time.Duration

	// OnAttempt, when set, observes the outcome of every probe attempt,
	// including the final successful one.
	OnAttempt func(reachable bool)
}

// Once reports whether the endpoint currently accepts TCP connections.
// A successful connection is closed immediately; no payload is exchanged.
func Once(ctx context.Context, endpoint domain.Endpoint, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if err := endpoint.Validate(); err != nil {
		probeLogger(endpoint).Warn("probe skipped", "error", err)

		return false
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", endpoint.Addr())
	if err != nil {
		return false
	}
	_ = conn.Close()

	return true
}

// Watch probes the endpoint until it becomes reachable or the context is
// cancelled. It returns nil once a probe succeeds and ctx.Err() otherwise.
func Watch(ctx context.Context, endpoint domain.Endpoint, cfg WatchConfig) error {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	logger := probeLogger(endpoint)
	logger.Debug("watching endpoint", "interval", interval, "timeout", timeout)

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		reachable := Once(ctx, endpoint, timeout)
		if cfg.OnAttempt != nil {
			cfg.OnAttempt(reachable)
		}
		if reachable {
			logger.Info("endpoint reachable", "attempts", attempt)

			return nil
		}

		if !sleepWithContext(ctx, interval) {
			return ctx.Err()
		}
	}
}

func probeLogger(endpoint domain.Endpoint) *slog.Logger {
	return slog.With("component", "probe", "target", endpoint.String())
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
