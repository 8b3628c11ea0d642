package backup

import "errors"

var (
	// ErrAlreadySaved is returned when a directory is registered twice for
	// the same server. Recoverable: the caller surfaces an informational
	// message instead of failing.
	ErrAlreadySaved = errors.New("directory already saved for this server")

	// ErrServerNotFound is returned when an operation references a server
	// ID that does not exist in the ledger.
	ErrServerNotFound = errors.New("server not found")

	// ErrDirectoryNotFound is returned when an operation references a
	// directory that does not exist in the ledger.
	ErrDirectoryNotFound = errors.New("directory not found")

	// ErrSharingViolation marks a remote file that is open elsewhere.
	// Share client implementations wrap the protocol error with this
	// sentinel so the classifier can recognize it.
	ErrSharingViolation = errors.New("remote file is open elsewhere")

	// ErrRemoteProtocol marks any other remote API failure reported by the
	// share protocol.
	ErrRemoteProtocol = errors.New("remote protocol error")
)
