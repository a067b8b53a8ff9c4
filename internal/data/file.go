package data

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// fileSource is the shared descriptor behind every view of one file.
//
// The descriptor is reference counted. release closes the file when the
// count reaches zero; forceClose closes it immediately and invalidates
// every outstanding view.
type fileSource struct {
	mu     sync.Mutex
	file   *os.File
	refs   int
	closed bool
	path   string
}

func (s *fileSource) retain() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.refs++
	return nil
}

func (s *fileSource) release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.refs--
	if s.refs > 0 {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func (s *fileSource) forceClose() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

// handle returns the open file, or ErrClosed after the source is closed.
func (s *fileSource) handle() (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.file, nil
}

// FileData is a RandomAccessData over a range of a file on disk.
//
// All views created from the same OpenFile call share one descriptor.
// Reads use positional I/O, so concurrent readers never observe torn reads.
type FileData struct {
	src    *fileSource
	start  int64
	length int64
}

// OpenFile opens path and returns a view covering the whole file.
// The returned view holds the initial reference on the descriptor.
func OpenFile(path string) (*FileData, error) {
	f, err := os.Open(path) //nolint:gosec // User-provided path is intentional
	if err != nil {
		return nil, fmt.Errorf("open archive file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat archive file: %w", err)
	}
	return &FileData{
		src:    &fileSource{file: f, refs: 1, path: path},
		length: info.Size(),
	}, nil
}

// Path returns the path the descriptor was opened from.
func (d *FileData) Path() string {
	return d.src.path
}

// Size returns the length of this view.
func (d *FileData) Size() int64 {
	return d.length
}

// ReadAt implements io.ReaderAt within the bounds of this view.
func (d *FileData) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off > d.length {
		return 0, io.EOF
	}
	short := false
	if max := d.length - off; int64(len(p)) > max {
		p = p[:max]
		short = true
	}
	if len(p) == 0 {
		if off >= d.length {
			return 0, io.EOF
		}
		return 0, nil
	}
	f, err := d.src.handle()
	if err != nil {
		return 0, err
	}
	n, err := f.ReadAt(p, d.start+off)
	if errors.Is(err, os.ErrClosed) {
		err = ErrClosed
	}
	if err == nil && short {
		err = io.EOF
	}
	return n, err
}

// Read returns exactly length bytes starting at offset within the view.
func (d *FileData) Read(offset, length int64) ([]byte, error) {
	if err := checkRange(offset, length, d.length); err != nil {
		return nil, err
	}
	return readExact(d, offset, length)
}

// Subsection returns a view of [offset, offset+length) sharing the descriptor.
func (d *FileData) Subsection(offset, length int64) (RandomAccessData, error) {
	if err := checkRange(offset, length, d.length); err != nil {
		return nil, err
	}
	return &FileData{src: d.src, start: d.start + offset, length: length}, nil
}

// Reader returns a sequential reader over the view.
func (d *FileData) Reader() io.Reader {
	return io.NewSectionReader(d, 0, d.length)
}

// Retain adds a reference to the shared descriptor. Every successful Retain
// must be paired with a Release.
func (d *FileData) Retain() error {
	return d.src.retain()
}

// Release drops a reference. The descriptor closes when the count reaches zero.
func (d *FileData) Release() error {
	return d.src.release()
}

// Close closes the descriptor immediately, invalidating every view that
// shares it. Subsequent reads fail with ErrClosed.
func (d *FileData) Close() error {
	return d.src.forceClose()
}

// Interface compliance.
var _ RandomAccessData = (*FileData)(nil)
