package devicelink

import "errors"

// Device link errors.
var (
	// ErrInvalidArgument is returned for malformed caller input.
	ErrInvalidArgument = errors.New("devicelink: invalid argument")

	// ErrPlist is returned when a received document cannot be decoded
	// or does not have the shape a device link message requires.
	ErrPlist = errors.New("devicelink: malformed property list message")

	// ErrMux is returned when the underlying connection reports an I/O
	// failure.
	ErrMux = errors.New("devicelink: connection failure")

	// ErrBadVersion is returned when the device advertises a link
	// version newer than this client supports.
	ErrBadVersion = errors.New("devicelink: unsupported link version")

	// ErrClosed is returned when an operation is attempted on a closed
	// client.
	ErrClosed = errors.New("devicelink: closed")
)
