package nestjar

import "github.com/meigma/nestjar/internal/ziptype"

// Errors re-exported from the parsing layers.
var (
	// ErrNotZip is returned when no valid end of central directory record
	// can be located within the format-permitted range.
	ErrNotZip = ziptype.ErrNotZip

	// ErrMalformed is returned when a record's fields contradict the data
	// around them.
	ErrMalformed = ziptype.ErrMalformed

	// ErrTruncated is returned when a read reaches end of data before the
	// requested length.
	ErrTruncated = ziptype.ErrTruncated

	// ErrNestedEntryCompressed is returned when a compressed entry is opened
	// as a nested archive. Only stored entries can be viewed in place.
	ErrNestedEntryCompressed = ziptype.ErrNestedEntryCompressed

	// ErrClosed is returned when an operation is attempted on a closed
	// archive or on a view whose root has been closed.
	ErrClosed = ziptype.ErrClosed
)
