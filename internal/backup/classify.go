package backup

import (
	"errors"
	"net"
	"syscall"
)

// Classification is the verdict on a failed upload run: whether the host
// scheduler should retry, and the human-readable message shown to the user.
// Messages are specific and never contain raw error text.
type Classification struct {
	Retryable bool
	Message   string
}

// User-facing failure messages.
const (
	MsgRetryShortly     = "retry shortly"
	MsgServerOffline    = "server not found or offline"
	MsgServerNotFound   = "server not found"
	MsgCloseOpenFiles   = "please close files open from server"
	MsgUploadFailed     = "unable to upload the folder"
	MsgRetriesExhausted = "unable to upload, retry shortly"
)

// Classify maps a raw upload failure to a fixed (retryable, message) pair.
//
// Cancellation is never classified: callers must check for context
// cancellation before calling Classify and propagate it instead.
func Classify(err error) Classification {
	var dnsErr *net.DNSError

	switch {
	case errors.Is(err, ErrSharingViolation):
		return Classification{Retryable: false, Message: MsgCloseOpenFiles}

	case errors.As(err, &dnsErr):
		// Unknown host: the address will not resolve until the user fixes it.
		return Classification{Retryable: false, Message: MsgServerNotFound}

	case isTimeout(err):
		return Classification{Retryable: true, Message: MsgRetryShortly}

	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		return Classification{Retryable: false, Message: MsgServerOffline}

	case errors.Is(err, ErrRemoteProtocol):
		return Classification{Retryable: false, Message: MsgUploadFailed}

	default:
		return Classification{Retryable: false, Message: MsgUploadFailed}
	}
}

// isTimeout reports whether err represents a connection or read timeout.
func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, syscall.ETIMEDOUT)
}
