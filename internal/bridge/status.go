package bridge

import (
	"time"

	"github.com/ergolyam/clipbridge/internal/domain"
	"github.com/ergolyam/clipbridge/internal/events"
)

func (s *Service) publishStatus(state events.ConnectionState, endpoint domain.Endpoint, err error) {
	status := events.ConnectionStatus{
		State:     state,
		Endpoint:  endpoint,
		Text:      humanText(state, endpoint),
		Timestamp: time.Now(),
	}
	if err != nil {
		status.Err = err.Error()
	}
	s.bus.Publish(events.TopicConnStatus, status)
}

func (s *Service) publishSendReport(ok bool, reason string, payloadLen int) {
	s.bus.Publish(events.TopicSendReport, events.SendReport{
		OK:     ok,
		Reason: reason,
		Bytes:  payloadLen,
		At:     time.Now(),
	})
}

func humanText(state events.ConnectionState, endpoint domain.Endpoint) string {
	switch state {
	case events.ConnectionStateWaiting:
		return "waiting for " + endpoint.String()
	case events.ConnectionStateConnecting:
		return "connecting to " + endpoint.String()
	case events.ConnectionStateConnected:
		return "connected to " + endpoint.String()
	default:
		return "disconnected"
	}
}
