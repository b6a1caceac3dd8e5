package plist

import "errors"

var (
	// ErrTypeMismatch is returned when extracting a value from a node
	// of the wrong kind.
	ErrTypeMismatch = errors.New("plist: type mismatch")

	// ErrNilValue is returned when marshaling a nil value or a
	// container holding one.
	ErrNilValue = errors.New("plist: nil value")

	// ErrInvalidHeader is returned when a document does not start with
	// the bplist00 magic.
	ErrInvalidHeader = errors.New("plist: invalid header")

	// ErrInvalidTrailer is returned when the trailer fields are
	// inconsistent with the document size.
	ErrInvalidTrailer = errors.New("plist: invalid trailer")

	// ErrTruncated is returned when an object extends past the end of
	// the document.
	ErrTruncated = errors.New("plist: truncated document")

	// ErrInvalidMarker is returned for unknown or unsupported object
	// markers (dates, UIDs, nulls).
	ErrInvalidMarker = errors.New("plist: invalid or unsupported marker")

	// ErrInvalidObjectRef is returned when an object reference points
	// outside the offset table.
	ErrInvalidObjectRef = errors.New("plist: invalid object reference")

	// ErrInvalidKey is returned when a dictionary key object is not a
	// string.
	ErrInvalidKey = errors.New("plist: dictionary key is not a string")

	// ErrNestedTooDeep is returned when container nesting exceeds the
	// decoder's depth limit.
	ErrNestedTooDeep = errors.New("plist: nesting too deep")

	// ErrOverflow is returned when an integer object does not fit in
	// 64 unsigned bits.
	ErrOverflow = errors.New("plist: integer overflow")
)
