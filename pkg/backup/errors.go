package backup

import (
	"errors"

	"github.com/devlink-go/backup2/pkg/devicelink"
)

// Backup session errors.
var (
	// ErrInvalidArgument is returned for malformed caller input,
	// detected before any I/O.
	ErrInvalidArgument = errors.New("backup: invalid argument")

	// ErrMalformedMessage is returned when a received document lacks a
	// required field or carries the wrong node kind for one.
	ErrMalformedMessage = errors.New("backup: malformed message")

	// ErrReplyMismatch is returned when a received discriminator does
	// not equal the expected one.
	ErrReplyMismatch = errors.New("backup: reply not ok")

	// ErrPeerRejected is returned when the device answers the protocol
	// handshake with a non-zero error code.
	ErrPeerRejected = errors.New("backup: peer rejected handshake")

	// ErrVersionMismatch is returned when the link-level handshake
	// detects an unsupported version.
	ErrVersionMismatch = errors.New("backup: incompatible protocol version")

	// ErrLinkFailure is returned when the device link reports an I/O
	// failure.
	ErrLinkFailure = errors.New("backup: link failure")

	// ErrUnknown is the catch-all for collaborator failures that map to
	// nothing more specific; no error is silently dropped.
	ErrUnknown = errors.New("backup: unknown error")
)

// mapLinkError translates a device link error into this package's
// error space. It is total over the link's error domain: anything
// unrecognized becomes ErrUnknown.
func mapLinkError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, devicelink.ErrInvalidArgument):
		return ErrInvalidArgument
	case errors.Is(err, devicelink.ErrPlist):
		return ErrMalformedMessage
	case errors.Is(err, devicelink.ErrMux):
		return ErrLinkFailure
	case errors.Is(err, devicelink.ErrBadVersion):
		return ErrVersionMismatch
	case errors.Is(err, devicelink.ErrClosed):
		return ErrLinkFailure
	default:
		return ErrUnknown
	}
}
