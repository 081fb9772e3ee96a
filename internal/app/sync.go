package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/ergolyam/clipbridge/internal/bridge"
	"github.com/ergolyam/clipbridge/internal/bus"
	"github.com/ergolyam/clipbridge/internal/clipboard"
	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/events"
)

// ClipboardSync moves text between the system clipboard and the bridge: remote
// updates are applied locally, local changes are sent to the server.
type ClipboardSync struct {
	bus     bus.MessageBus
	bridge  *bridge.Service
	writer  clipboard.Writer
	watcher *clipboard.Watcher
	logger  *slog.Logger
}

func NewClipboardSync(
	messageBus bus.MessageBus,
	bridgeSvc *bridge.Service,
	reader clipboard.Reader,
	writer clipboard.Writer,
	pollInterval time.Duration,
	logger *slog.Logger,
) *ClipboardSync {
	if logger == nil {
		logger = slog.Default().With("component", "app.sync")
	}

	s := &ClipboardSync{
		bus:    messageBus,
		bridge: bridgeSvc,
		writer: writer,
		logger: logger,
	}
	s.watcher = clipboard.NewWatcher(reader, pollInterval, s.onLocalChange, logger)

	return s
}

func (s *ClipboardSync) Start(ctx context.Context) {
	if s == nil || s.bus == nil {
		return
	}

	clipSub := s.bus.Subscribe(events.TopicClipboardUpdate)

	go func() {
		_ = s.watcher.Run(ctx)
	}()
	go func() {
		defer s.bus.Unsubscribe(clipSub, events.TopicClipboardUpdate)

		for {
			select {
			case <-ctx.Done():
				return
			case raw, ok := <-clipSub:
				if !ok {
					return
				}
				update, ok := raw.(events.ClipboardUpdate)
				if !ok {
					continue
				}
				if update.Origin != domain.ClipOriginRemote {
					continue
				}
				s.applyRemote(ctx, update)
			}
		}
	}()
}

func (s *ClipboardSync) applyRemote(ctx context.Context, update events.ClipboardUpdate) {
	// Mark before writing so the poller never sees the new text first.
	s.watcher.MarkApplied(update.Text)
	if err := s.writer.WriteText(ctx, update.Text); err != nil {
		s.logger.Warn("apply remote clip failed", "error", err)

		return
	}
	s.logger.Info("applied remote clip", "payload_len", len(update.Text))
}

func (s *ClipboardSync) onLocalChange(text string) {
	if s.bridge.State() != events.ConnectionStateConnected {
		s.logger.Debug("local clip skipped, not connected", "payload_len", len(text))

		return
	}
	if !s.bridge.SendText(text) {
		return
	}

	s.bus.Publish(events.TopicClipboardUpdate, events.ClipboardUpdate{
		Text:   text,
		Origin: domain.ClipOriginLocal,
		At:     time.Now(),
	})
}
