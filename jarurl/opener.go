package jarurl

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/meigma/nestjar"
)

// Resource is an opened composite URL: either an entry stream or, for
// references ending in "!/", an archive handle.
//
// Close releases the stream and every intermediate archive view the walk
// opened; the outer file closes with the outermost view.
type Resource struct {
	// Archive is the innermost archive of the walk. For entry references
	// it is the archive containing the entry; for archive references it is
	// the addressed archive itself.
	Archive *nestjar.Archive

	// Reader streams the entry's content; nil for archive references.
	Reader io.ReadCloser

	// Entry is the addressed entry; zero for archive references.
	Entry nestjar.Entry

	chain []*nestjar.Archive
}

// Close closes the entry stream and the opened archive chain, innermost
// first.
func (r *Resource) Close() error {
	var firstErr error
	if r.Reader != nil {
		firstErr = r.Reader.Close()
	}
	for i := len(r.chain) - 1; i >= 0; i-- {
		if err := r.chain[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Opener resolves composite jar URLs by walking their segment chains.
type Opener struct {
	// OpenRoot opens the outer archive; defaults to nestjar.Open.
	OpenRoot func(path string) (*nestjar.Archive, error)
}

// Open resolves raw to either an entry stream or an archive handle.
//
// Non-terminal segments descend into nested archives (or nested directory
// views); the final segment is opened as an entry, or, when empty, the
// current archive is returned.
func (o *Opener) Open(raw string) (*Resource, error) {
	ref, err := Parse(raw)
	if err != nil {
		return nil, err
	}
	openRoot := o.OpenRoot
	if openRoot == nil {
		openRoot = func(path string) (*nestjar.Archive, error) {
			return nestjar.Open(path)
		}
	}
	root, err := openRoot(ref.FilePath)
	if err != nil {
		return nil, err
	}
	res := &Resource{Archive: root, chain: []*nestjar.Archive{root}}
	for i, seg := range ref.Segments {
		last := i == len(ref.Segments)-1
		if last && seg == "" {
			return res, nil
		}
		if last {
			if e, ok := res.Archive.Entry(seg); ok && !e.Directory {
				r, err := res.Archive.InputStream(seg)
				if err != nil {
					res.Close()
					return nil, err
				}
				res.Reader = r
				res.Entry = e
				return res, nil
			}
		}
		child, err := res.Archive.NestedByName(seg)
		if err != nil {
			res.Close()
			return nil, fmt.Errorf("segment %q of %q: %w", seg, raw, err)
		}
		res.Archive = child
		res.chain = append(res.chain, child)
	}
	res.Close()
	return nil, fmt.Errorf("%q: %w", raw, ErrInvalidURL)
}

// Process-wide handler registration. The scheme parser above stays pure;
// only a launcher needs the global.
var (
	registerOnce   sync.Once
	defaultHandler *Opener
	handlerMu      sync.RWMutex
)

// Register installs the default Opener as the process-wide handler for the
// jar scheme. Registration is idempotent: calling it any number of times
// has the effect of calling it once.
func Register() {
	registerOnce.Do(func() {
		handlerMu.Lock()
		defer handlerMu.Unlock()
		defaultHandler = &Opener{}
	})
}

// ErrNotRegistered is returned by OpenURL before Register has been called.
var ErrNotRegistered = errors.New("nestjar: jar url handler not registered")

// OpenURL resolves a composite jar URL through the registered handler.
func OpenURL(raw string) (*Resource, error) {
	handlerMu.RLock()
	h := defaultHandler
	handlerMu.RUnlock()
	if h == nil {
		return nil, ErrNotRegistered
	}
	return h.Open(raw)
}
