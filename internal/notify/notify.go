// Package notify delivers user-visible notifications. The only
// implementation here writes through the structured logger; the Notifier
// contract is fire-and-forget, so delivery problems never reach the caller.
package notify

import "smbsync/internal/backup"

// LogNotifier surfaces notifications as log records.
type LogNotifier struct {
	logger backup.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger backup.Logger) *LogNotifier {
	if logger == nil {
		logger = backup.NewNopLogger()
	}
	return &LogNotifier{logger: logger}
}

// Notify emits the message. It never fails and never panics.
func (n *LogNotifier) Notify(message, title string, priority backup.Priority) {
	defer func() {
		// A broken log sink must not take the upload engine down with it.
		_ = recover()
	}()

	if priority == backup.PriorityHigh {
		n.logger.Warn("notification", "title", title, "message", message)
		return
	}
	n.logger.Info("notification", "title", title, "message", message)
}

// Compile-time check that LogNotifier implements backup.Notifier
var _ backup.Notifier = (*LogNotifier)(nil)
