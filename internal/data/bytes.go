package data

import (
	"bytes"
	"io"
)

// Retainer is implemented by views backed by a shared reference-counted
// descriptor. Views over in-memory bytes do not implement it.
type Retainer interface {
	Retain() error
	Release() error
}

// ByteData is a RandomAccessData over an in-memory byte slice.
//
// The slice is aliased, not copied; callers must not modify it afterwards.
type ByteData struct {
	b []byte
}

// NewByteData wraps a byte slice as RandomAccessData.
func NewByteData(b []byte) *ByteData {
	return &ByteData{b: b}
}

// Size returns the length of the slice.
func (d *ByteData) Size() int64 {
	return int64(len(d.b))
}

// ReadAt implements io.ReaderAt.
func (d *ByteData) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(d.b)) {
		return 0, io.EOF
	}
	n := copy(p, d.b[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Read returns exactly length bytes starting at offset.
func (d *ByteData) Read(offset, length int64) ([]byte, error) {
	if err := checkRange(offset, length, int64(len(d.b))); err != nil {
		return nil, err
	}
	out := make([]byte, length)
	copy(out, d.b[offset:offset+length])
	return out, nil
}

// Subsection returns a view of [offset, offset+length) aliasing the slice.
func (d *ByteData) Subsection(offset, length int64) (RandomAccessData, error) {
	if err := checkRange(offset, length, int64(len(d.b))); err != nil {
		return nil, err
	}
	return &ByteData{b: d.b[offset : offset+length]}, nil
}

// Reader returns a sequential reader over the slice.
func (d *ByteData) Reader() io.Reader {
	return bytes.NewReader(d.b)
}

// Interface compliance.
var _ RandomAccessData = (*ByteData)(nil)
