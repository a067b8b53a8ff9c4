// Package data provides random access over byte ranges of a single
// underlying file.
//
// A RandomAccessData is a view of a contiguous range [start, start+size).
// Subsections alias the same underlying storage without copying, so an
// arbitrary number of views can share one open file descriptor. Reads are
// positional and safe for concurrent use.
package data

import (
	"fmt"
	"io"

	"github.com/meigma/nestjar/internal/ziptype"
)

// RandomAccessData provides concurrent positional reads over a byte range.
type RandomAccessData interface {
	io.ReaderAt

	// Size returns the length of the range in bytes.
	Size() int64

	// Read returns exactly length bytes starting at offset within the range.
	// It fails with ErrTruncated when the range ends before length bytes.
	Read(offset, length int64) ([]byte, error)

	// Subsection returns a view of [offset, offset+length) within this range.
	// The view aliases the same underlying storage.
	Subsection(offset, length int64) (RandomAccessData, error)

	// Reader returns a sequential reader over the whole range.
	Reader() io.Reader
}

// Re-exported sentinels so callers need not import ziptype directly.
var (
	// ErrTruncated is returned when a read reaches end of data early.
	ErrTruncated = ziptype.ErrTruncated

	// ErrClosed is returned when the underlying file has been closed.
	ErrClosed = ziptype.ErrClosed
)

// checkRange validates a subsection or read request against a view size.
func checkRange(offset, length, size int64) error {
	if offset < 0 || length < 0 {
		return fmt.Errorf("range [%d, %d+%d): %w", offset, offset, length, ErrTruncated)
	}
	if offset+length > size {
		return fmt.Errorf("range [%d, %d) exceeds size %d: %w", offset, offset+length, size, ErrTruncated)
	}
	return nil
}

// readExact fills a buffer of the requested length via ReadAt semantics.
func readExact(r io.ReaderAt, offset, length int64) ([]byte, error) {
	buf := make([]byte, length)
	n, err := r.ReadAt(buf, offset)
	if int64(n) == length {
		return buf, nil
	}
	if err == io.EOF {
		return nil, fmt.Errorf("read %d bytes at %d: %w", length, offset, ErrTruncated)
	}
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("short read at %d: %w", offset, ErrTruncated)
}
