package backup

// Priority is the urgency of a user-visible notification.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityHigh
)

// Notifier delivers fire-and-forget user-visible messages. Implementations
// must never fail the caller: delivery problems are swallowed internally.
type Notifier interface {
	Notify(message, title string, priority Priority)
}

// NopNotifier discards all notifications. Use in tests.
type NopNotifier struct{}

func (NopNotifier) Notify(string, string, Priority) {}
