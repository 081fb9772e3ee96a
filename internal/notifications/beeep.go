package notifications

import (
	"log/slog"
	"strings"

	"github.com/gen2brain/beeep"
)

// BeeepSender delivers notifications through the native notification daemon
// of the host desktop.
type BeeepSender struct {
	logger *slog.Logger
}

func NewBeeepSender(logger *slog.Logger) *BeeepSender {
	return &BeeepSender{logger: logger}
}

func (s *BeeepSender) Send(payload Payload) {
	title := strings.TrimSpace(payload.Title)
	content := strings.TrimSpace(payload.Content)
	if title == "" && content == "" {
		return
	}

	if err := beeep.Notify(title, content, ""); err != nil {
		s.logger.Warn("notification send failed", "error", err)
	}
}
