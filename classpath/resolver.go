// Package classpath resolves class and resource lookups over an ordered
// list of archive and directory roots.
//
// Lookup order is the construction order of the roots and is stable.
// Missing resources are reported as absence, never as errors; only I/O
// failures escape. The hot path of a miss allocates nothing.
package classpath

import (
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/nestjar"
	"github.com/meigma/nestjar/internal/pathutil"
	"github.com/meigma/nestjar/jarurl"
)

// Entry is one ordered classpath root: either an open archive view or an
// exploded directory on disk.
type Entry struct {
	archive *nestjar.Archive
	dir     string
	url     string
	ordinal int
}

// ArchiveEntry makes a classpath root from an open archive view.
func ArchiveEntry(a *nestjar.Archive) Entry {
	return Entry{archive: a, url: archiveURL(a)}
}

// DirEntry makes a classpath root from an exploded directory.
func DirEntry(dir string) Entry {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return Entry{dir: abs, url: jarurl.FileURL(abs) + "/"}
}

// URL returns the root's own URL (the archive form ending in "!/", or the
// directory's file URL).
func (e Entry) URL() string {
	return e.url
}

// Ordinal returns the root's position, assigned at resolver construction.
func (e Entry) Ordinal() int {
	return e.ordinal
}

// archiveURL renders the composite URL addressing an archive view itself.
func archiveURL(a *nestjar.Archive) string {
	segs := nestingSegments(a)
	segs = append(segs, "")
	return jarurl.Compose(a.RootPath(), segs...)
}

// nestingSegments splits an archive's path-from-root into URL segments.
func nestingSegments(a *nestjar.Archive) []string {
	path := a.PathFromRoot()
	if path == "" {
		return nil
	}
	return strings.Split(strings.TrimPrefix(path, "!/"), "!/")
}

// resourceURL renders the URL addressing name within the root.
func (e Entry) resourceURL(name string) string {
	if e.dir != "" {
		return jarurl.FileURL(filepath.Join(e.dir, filepath.FromSlash(name)))
	}
	segs := append(nestingSegments(e.archive), name)
	return jarurl.Compose(e.archive.RootPath(), segs...)
}

// contains reports whether the root holds the named resource.
func (e Entry) contains(name string) bool {
	if e.dir != "" {
		info, err := os.Stat(filepath.Join(e.dir, filepath.FromSlash(name)))
		return err == nil && !info.IsDir()
	}
	return e.archive.Contains(name)
}

// Resolver is an ordered classpath over archive and directory roots.
//
// A Resolver is safe for concurrent use once constructed.
type Resolver struct {
	entries []Entry
	logger  *slog.Logger

	defineGroup singleflight.Group
	packages    packageTable
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for debug events.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New builds a resolver over the given roots, assigning ordinals in
// argument order.
func New(entries []Entry, opts ...Option) *Resolver {
	r := &Resolver{entries: make([]Entry, len(entries))}
	for i, e := range entries {
		e.ordinal = i
		r.entries[i] = e
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Resolver) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}

// Entries returns the ordered roots.
func (r *Resolver) Entries() []Entry {
	return r.entries
}

// Close closes every archive-backed root.
func (r *Resolver) Close() error {
	var firstErr error
	for _, e := range r.entries {
		if e.archive == nil {
			continue
		}
		if err := e.archive.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FindResource returns the URL of the first root containing name, in
// declared order. Absence is not an error. Leading slashes in name are
// tolerated, matching class loader conventions.
func (r *Resolver) FindResource(name string) (string, bool) {
	name = pathutil.Normalize(name)
	if name == "" {
		if len(r.entries) == 0 {
			return "", false
		}
		return r.entries[0].url, true
	}
	for _, e := range r.entries {
		if e.contains(name) {
			return e.resourceURL(name), true
		}
	}
	return "", false
}

// FindResources yields a URL for every root containing name, in declared
// order, including duplicates across roots. For the empty name it yields
// each root's own URL exactly once, in order.
func (r *Resolver) FindResources(name string) iter.Seq[string] {
	name = pathutil.Normalize(name)
	return func(yield func(string) bool) {
		for _, e := range r.entries {
			if name == "" {
				if !yield(e.url) {
					return
				}
				continue
			}
			if e.contains(name) && !yield(e.resourceURL(name)) {
				return
			}
		}
	}
}

// OpenResource streams the first root's copy of name.
func (r *Resolver) OpenResource(name string) (io.ReadCloser, bool, error) {
	name = pathutil.Normalize(name)
	for _, e := range r.entries {
		if !e.contains(name) {
			continue
		}
		var rc io.ReadCloser
		var err error
		if e.dir != "" {
			rc, err = os.Open(filepath.Join(e.dir, filepath.FromSlash(name))) //nolint:gosec // Classpath roots are caller-chosen
		} else {
			rc, err = e.archive.InputStream(name)
		}
		if err != nil {
			return nil, false, err
		}
		return rc, true, nil
	}
	return nil, false, nil
}

// classFilePath translates a binary class name (a.b.C) to its resource
// path (a/b/C.class).
func classFilePath(binaryName string) string {
	return strings.ReplaceAll(binaryName, ".", "/") + ".class"
}

// LoadClassBytes reads the bytes of the named class from the first root
// that carries it. found is false when no root does.
func (r *Resolver) LoadClassBytes(binaryName string) (b []byte, found bool, err error) {
	rc, ok, err := r.OpenResource(classFilePath(binaryName))
	if err != nil || !ok {
		return nil, false, err
	}
	defer rc.Close()
	b, err = io.ReadAll(rc)
	if err != nil {
		return nil, false, fmt.Errorf("read class %s: %w", binaryName, err)
	}
	r.log().Debug("loaded class bytes", "class", binaryName, "size", len(b))
	return b, true, nil
}

// Stat reports whether name exists in any root without opening it.
func (r *Resolver) Stat(name string) bool {
	for _, e := range r.entries {
		if e.contains(name) {
			return true
		}
	}
	return false
}
