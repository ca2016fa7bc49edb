package geom

import "github.com/cockroachdb/errors"

// Error kinds reported by the codecs. Callers match them with errors.Is;
// the wrapping message carries the byte offset and expected vs. found values.
var (
	ErrUnexpectedEOF              = errors.New("unexpected end of input")
	ErrInvalidType                = errors.New("invalid geometry type code")
	ErrInvalidByteOrder           = errors.New("invalid byte order")
	ErrInconsistentDimensionality = errors.New("inconsistent dimensionality")
	ErrUnclosedRing               = errors.New("unclosed ring")
	ErrVarintOverflow             = errors.New("varint overflow")
	ErrUnsupportedPrecision       = errors.New("unsupported precision")
	ErrMaxDepth                   = errors.New("maximum nesting depth exceeded")
	ErrUnsupported                = errors.New("unsupported geometry")
	ErrSizeMismatch               = errors.New("size prefix mismatch")
)
