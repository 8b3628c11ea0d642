package testutil

import (
	"sync"

	"smbsync/internal/backup"
)

// Notification records one Notify call.
type Notification struct {
	Message  string
	Title    string
	Priority backup.Priority
}

// MemoryNotifier records notifications for assertions. Safe for concurrent use.
type MemoryNotifier struct {
	mu   sync.Mutex
	sent []Notification
}

// NewMemoryNotifier creates an empty MemoryNotifier.
func NewMemoryNotifier() *MemoryNotifier {
	return &MemoryNotifier{}
}

func (n *MemoryNotifier) Notify(message, title string, priority backup.Priority) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, Notification{Message: message, Title: title, Priority: priority})
}

// Sent returns a copy of the recorded notifications in order.
func (n *MemoryNotifier) Sent() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.sent...)
}

// Messages returns just the message strings, in order.
func (n *MemoryNotifier) Messages() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	msgs := make([]string, len(n.sent))
	for i, s := range n.sent {
		msgs[i] = s.Message
	}
	return msgs
}

// Compile-time check that MemoryNotifier implements backup.Notifier
var _ backup.Notifier = (*MemoryNotifier)(nil)
