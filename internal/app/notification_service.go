package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ergolyam/clipbridge/internal/bus"
	"github.com/ergolyam/clipbridge/internal/config"
	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/events"
	"github.com/ergolyam/clipbridge/internal/notifications"
)

const (
	notificationTitleClipReceived = "Clipboard received"
	notificationTitleSendFailed   = "Clipboard send failed"

	clipPreviewMaxRunes = 120
)

// NotificationService listens to bus events and emits user-facing notifications.
type NotificationService struct {
	bus           bus.MessageBus
	currentConfig func() config.AppConfig
	sender        notifications.Sender
	logger        *slog.Logger

	connStatusMu     sync.Mutex
	lastConnState    events.ConnectionState
	lastConnStateSet bool
}

func NewNotificationService(
	messageBus bus.MessageBus,
	currentConfig func() config.AppConfig,
	sender notifications.Sender,
	logger *slog.Logger,
) *NotificationService {
	if logger == nil {
		logger = slog.Default().With("component", "app.notifications")
	}

	return &NotificationService{
		bus:           messageBus,
		currentConfig: currentConfig,
		sender:        sender,
		logger:        logger,
	}
}

func (s *NotificationService) Start(ctx context.Context) {
	if s == nil || s.bus == nil || s.sender == nil {
		return
	}

	clipSub := s.bus.Subscribe(events.TopicClipboardUpdate)
	connSub := s.bus.Subscribe(events.TopicConnStatus)
	reportSub := s.bus.Subscribe(events.TopicSendReport)

	go func() {
		defer s.bus.Unsubscribe(clipSub, events.TopicClipboardUpdate)
		defer s.bus.Unsubscribe(connSub, events.TopicConnStatus)
		defer s.bus.Unsubscribe(reportSub, events.TopicSendReport)

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
				s.handleClipboardUpdate(update)
			case raw, ok := <-connSub:
				if !ok {
					return
				}
				status, ok := raw.(events.ConnectionStatus)
				if !ok {
					continue
				}
				s.handleConnectionStatus(status)
			case raw, ok := <-reportSub:
				if !ok {
					return
				}
				report, ok := raw.(events.SendReport)
				if !ok {
					continue
				}
				s.handleSendReport(report)
			}
		}
	}()
}

func (s *NotificationService) handleClipboardUpdate(update events.ClipboardUpdate) {
	if update.Origin != domain.ClipOriginRemote {
		return
	}
	prefs := s.notificationPrefs()
	if !prefs.Events.ClipboardReceived {
		return
	}

	preview := clipPreview(update.Text)
	if preview == "" {
		preview = "(empty)"
	}
	s.send(notifications.Payload{
		Title:   notificationTitleClipReceived,
		Content: preview,
	})
}

func (s *NotificationService) handleConnectionStatus(status events.ConnectionStatus) {
	if status.State == "" {
		return
	}

	s.connStatusMu.Lock()
	if s.lastConnStateSet && s.lastConnState == status.State {
		s.connStatusMu.Unlock()

		return
	}
	s.lastConnState = status.State
	s.lastConnStateSet = true
	s.connStatusMu.Unlock()

	if status.State != events.ConnectionStateConnected &&
		status.State != events.ConnectionStateDisconnected {
		return
	}
	prefs := s.notificationPrefs()
	if !prefs.Events.ConnectionStatus {
		return
	}

	details := strings.TrimSpace(status.Text)
	if details == "" {
		details = "No connection details"
	}
	if status.State == events.ConnectionStateDisconnected {
		if errText := strings.TrimSpace(status.Err); errText != "" {
			details = fmt.Sprintf("%s (error: %s)", details, errText)
		}
	}

	s.send(notifications.Payload{
		Title:   fmt.Sprintf("Bridge %s", status.State),
		Content: details,
	})
}

func (s *NotificationService) handleSendReport(report events.SendReport) {
	if report.OK {
		return
	}
	prefs := s.notificationPrefs()
	if !prefs.Events.ConnectionStatus {
		return
	}

	reason := strings.TrimSpace(report.Reason)
	if reason == "" {
		reason = "unknown error"
	}
	s.send(notifications.Payload{
		Title:   notificationTitleSendFailed,
		Content: reason,
	})
}

func (s *NotificationService) notificationPrefs() config.NotificationConfig {
	cfg := config.Default()
	if s.currentConfig != nil {
		cfg = s.currentConfig()
		cfg.FillMissingDefaults()
	}

	return cfg.Notifications
}

func (s *NotificationService) send(notification notifications.Payload) {
	title := strings.TrimSpace(notification.Title)
	content := strings.TrimSpace(notification.Content)
	if title == "" && content == "" {
		return
	}
	s.logger.Debug("sending notification", "title", title)
	s.sender.Send(notifications.Payload{
		Title:   title,
		Content: content,
	})
}

// clipPreview flattens the clip to one line and truncates it so a long paste
// does not fill the screen with a notification.
func clipPreview(text string) string {
	preview := strings.Join(strings.Fields(text), " ")
	runes := []rune(preview)
	if len(runes) > clipPreviewMaxRunes {
		return string(runes[:clipPreviewMaxRunes]) + "..."
	}

	return preview
}
