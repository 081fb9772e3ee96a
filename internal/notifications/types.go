package notifications

// Payload is a user-facing desktop notification.
type Payload struct {
	Title   string
	Content string
}

// Sender delivers notifications through a platform-specific backend.
type Sender interface {
	Send(payload Payload)
}
