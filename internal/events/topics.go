package events

const (
	TopicConnStatus      = "conn.status"
	TopicClipboardUpdate = "clipboard.update"
	TopicSendReport      = "send.report"
)
