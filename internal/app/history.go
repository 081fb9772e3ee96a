package app

import (
	"context"
	"log/slog"

	"github.com/ergolyam/clipbridge/internal/bus"
	"github.com/ergolyam/clipbridge/internal/config"
	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/events"
	"github.com/ergolyam/clipbridge/internal/persistence"
)

// HistoryService records every clip crossing the bridge into the local
// history table, pruned to the configured size.
type HistoryService struct {
	bus           bus.MessageBus
	writer        *persistence.WriterQueue
	clips         *persistence.ClipRepo
	currentConfig func() config.AppConfig
	logger        *slog.Logger
}

func NewHistoryService(
	messageBus bus.MessageBus,
	writer *persistence.WriterQueue,
	clips *persistence.ClipRepo,
	currentConfig func() config.AppConfig,
	logger *slog.Logger,
) *HistoryService {
	if logger == nil {
		logger = slog.Default().With("component", "app.history")
	}

	return &HistoryService{
		bus:           messageBus,
		writer:        writer,
		clips:         clips,
		currentConfig: currentConfig,
		logger:        logger,
	}
}

func (s *HistoryService) Start(ctx context.Context) {
	if s == nil || s.bus == nil {
		return
	}

	clipSub := s.bus.Subscribe(events.TopicClipboardUpdate)

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
				s.record(update)
			}
		}
	}()
}

func (s *HistoryService) record(update events.ClipboardUpdate) {
	prefs := s.historyPrefs()
	if !prefs.Enabled {
		return
	}

	entry := domain.ClipEntry{
		Body:   update.Text,
		Origin: update.Origin,
		At:     update.At,
	}
	keep := prefs.MaxEntries
	s.writer.Enqueue("record clip", func(ctx context.Context) error {
		if _, err := s.clips.Insert(ctx, entry); err != nil {
			return err
		}
		if _, err := s.clips.Prune(ctx, keep); err != nil {
			return err
		}
		return nil
	})
	s.logger.Debug("clip queued for history", "origin", int(update.Origin), "payload_len", len(update.Text))
}

// Recent returns up to limit history entries, newest first.
func (s *HistoryService) Recent(ctx context.Context, limit int) ([]domain.ClipEntry, error) {
	return s.clips.ListRecent(ctx, limit)
}

func (s *HistoryService) historyPrefs() config.HistoryConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.History
}
