package checkpoint

import "errors"

// Common errors.
var (
	ErrInvalidMagic       = errors.New("checkpoint: invalid magic bytes")
	ErrUnsupportedVersion = errors.New("checkpoint: unsupported format version")
	ErrChecksumMismatch   = errors.New("checkpoint: checksum mismatch: file may be corrupted")
	ErrTruncated          = errors.New("checkpoint: truncated data")
	ErrCorrupt            = errors.New("checkpoint: malformed payload")
	ErrLengthMismatch     = errors.New("checkpoint: parameter count mismatch")
)
