package nestjar

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/nestjar/internal/cd"
	"github.com/meigma/nestjar/internal/data"
	"github.com/meigma/nestjar/internal/eocd"
	"github.com/meigma/nestjar/internal/index"
)

// Type identifies how an archive view is rooted.
type Type int

const (
	// TypeDirect is an archive opened straight from a file on disk.
	TypeDirect Type = iota

	// TypeNestedJar is an archive viewed in place over a stored entry of
	// its parent.
	TypeNestedJar

	// TypeNestedDirectory is a filtered view over a directory entry of its
	// parent, sharing the parent's central directory.
	TypeNestedDirectory

	// TypeExplodedDirectory is an archive unpacked to a directory tree.
	TypeExplodedDirectory
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeDirect:
		return "direct"
	case TypeNestedJar:
		return "nested-jar"
	case TypeNestedDirectory:
		return "nested-directory"
	case TypeExplodedDirectory:
		return "exploded-directory"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// manifestSupplier produces a parent archive's manifest on demand. A child
// holds the closure rather than a reference to the parent, keeping the
// archive tree free of back-references.
type manifestSupplier func() (*Manifest, error)

// Archive is a live view over a (possibly nested) ZIP archive.
//
// An Archive is safe for concurrent readers. Close invalidates the view;
// closing the outermost archive also releases the underlying file and
// invalidates every derived view.
type Archive struct {
	typ          Type
	rootPath     string
	pathFromRoot string

	// ZIP-backed views.
	rootFile    *data.FileData
	archiveData data.RandomAccessData
	idx         *index.Index
	prefix      string
	comment     string
	ownsFile    bool

	// Exploded views.
	dir string

	parentManifest manifestSupplier

	logger *slog.Logger
	closed atomic.Bool

	manifestCache atomic.Pointer[manifestBox]
	manifestGroup singleflight.Group

	unpackMu  sync.Mutex
	unpackDir string
}

// manifestBox wraps a manifest result so the absent case is cacheable.
type manifestBox struct {
	m *Manifest
}

// Option configures an Archive at construction.
type Option func(*Archive)

// WithLogger sets the logger used for debug events. The default discards
// all output.
func WithLogger(l *slog.Logger) Option {
	return func(a *Archive) {
		a.logger = l
	}
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open opens the archive file at path as a direct archive.
//
// The file is parsed in place: the end of central directory record is
// located by a backwards scan (accounting for executable prefix bytes and
// ZIP64 records), the central directory is buffered, and the entry index
// is built. No entry data is read until requested.
func Open(path string, opts ...Option) (*Archive, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve archive path: %w", err)
	}
	fd, err := data.OpenFile(abs)
	if err != nil {
		return nil, err
	}
	a := &Archive{
		typ:      TypeDirect,
		rootPath: abs,
		rootFile: fd,
		ownsFile: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	record, err := eocd.Find(fd)
	if err != nil {
		fd.Close()
		return nil, err
	}
	idx := index.New()
	archiveData, err := cd.Parse(fd, record, idx)
	if err != nil {
		fd.Close()
		return nil, err
	}
	a.archiveData = archiveData
	a.idx = idx
	a.comment = record.Comment()
	a.log().Debug("opened archive", "path", abs, "entries", idx.Len(), "zip64", record.IsZip64(), "signed", idx.Signed())
	return a, nil
}

// OpenExploded opens a directory tree as an exploded archive.
func OpenExploded(dir string, opts ...Option) (*Archive, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve directory path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat exploded directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("exploded archive %q is not a directory: %w", dir, ErrMalformed)
	}
	a := &Archive{
		typ:      TypeExplodedDirectory,
		rootPath: abs,
		dir:      abs,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Type returns how this archive view is rooted.
func (a *Archive) Type() Type {
	return a.typ
}

// RootPath returns the absolute path of the outer file (or the exploded
// directory) this view is rooted in.
func (a *Archive) RootPath() string {
	return a.rootPath
}

// PathFromRoot returns the nesting path of this view within the root,
// empty for the outer archive and "!/a.jar!/b.jar" style otherwise. The
// path uniquely identifies the view within its root.
func (a *Archive) PathFromRoot() string {
	return a.pathFromRoot
}

// Comment returns the archive comment from the end of central directory
// record.
func (a *Archive) Comment() string {
	return a.comment
}

// Signed reports whether the archive contains signature files
// (META-INF/*.SF). Verification is out of scope; the flag is informational.
func (a *Archive) Signed() bool {
	if a.idx == nil {
		return false
	}
	return a.idx.Signed()
}

// checkOpen fails with ErrClosed once the view has been closed.
func (a *Archive) checkOpen() error {
	if a.closed.Load() {
		return fmt.Errorf("archive %s%s: %w", a.rootPath, a.pathFromRoot, ErrClosed)
	}
	return nil
}

// Close invalidates this view.
//
// Closing a direct archive closes the underlying file, which also
// invalidates every nested view rooted in it. Closing a nested view
// releases its reference on the shared descriptor without affecting the
// parent. Close is idempotent.
func (a *Archive) Close() error {
	if a.closed.Swap(true) {
		return nil
	}
	if a.rootFile == nil {
		return nil
	}
	a.log().Debug("closing archive", "path", a.rootPath, "nested", a.pathFromRoot, "type", a.typ.String())
	if a.ownsFile {
		return a.rootFile.Close()
	}
	return a.rootFile.Release()
}
