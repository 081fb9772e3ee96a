package events

import (
	"time"

	"github.com/ergolyam/clipbridge/internal/domain"
)

// ConnectionState describes the bridge connection lifecycle state shown to the host.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateWaiting      ConnectionState = "waiting"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a bus event snapshot emitted on every state transition.
// Subscribers may see the same state repeated; order always matches transition order.
type ConnectionStatus struct {
	State     ConnectionState
	Endpoint  domain.Endpoint
	Text      string
	Err       string
	Timestamp time.Time
}

// ClipboardUpdate carries one clipboard text crossing the bridge.
type ClipboardUpdate struct {
	Text   string
	Origin domain.ClipOrigin
	At     time.Time
}

// SendReport is the outcome of one explicit send request.
type SendReport struct {
	OK     bool
	Reason string
	Bytes  int
	At     time.Time
}
