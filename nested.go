package nestjar

import (
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"

	"github.com/meigma/nestjar/internal/cd"
	"github.com/meigma/nestjar/internal/eocd"
	"github.com/meigma/nestjar/internal/index"
)

// NestedArchives iterates the child archives selected by the two filters,
// in entry order. search narrows the candidate set, include accepts the
// survivors; both may be nil to accept everything. The layout convention
// (such as a lib/ directory) is entirely the caller's.
//
// Construction failures are yielded per entry; a failed entry never
// invalidates the parent or the remaining children.
func (a *Archive) NestedArchives(search, include Filter) iter.Seq2[*Archive, error] {
	return func(yield func(*Archive, error) bool) {
		if err := a.checkOpen(); err != nil {
			yield(nil, err)
			return
		}
		for e := range a.Entries() {
			if search != nil && !search(e) {
				continue
			}
			if include != nil && !include(e) {
				continue
			}
			if !yield(a.Nested(e)) {
				return
			}
		}
	}
}

// Nested opens the child archive for an entry of this archive.
//
// A stored file entry becomes a nested jar viewed in place; a directory
// entry becomes a filtered view of this archive's own central directory;
// an entry whose comment carries the unpack marker is extracted to a
// process-scoped temporary directory first. A compressed file entry fails
// with ErrNestedEntryCompressed.
func (a *Archive) Nested(e Entry) (*Archive, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	if a.typ == TypeExplodedDirectory {
		return a.nestedExploded(e)
	}
	if e.Directory {
		return a.nestedDirectory(e)
	}
	if strings.HasPrefix(e.Comment, unpackMarker) {
		return a.nestedUnpacked(e)
	}
	return a.nestedJar(e)
}

// NestedByName opens the child archive for the named entry.
func (a *Archive) NestedByName(name string) (*Archive, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	e, ok := a.Entry(name)
	if !ok {
		e, ok = a.Entry(name + "/")
	}
	if !ok {
		return nil, fmt.Errorf("entry %q: %w", name, fs.ErrNotExist)
	}
	return a.Nested(e)
}

// manifestSupplierFor binds this archive's manifest resolution for a child.
func (a *Archive) manifestSupplierFor() manifestSupplier {
	return a.Manifest
}

// nestedJar views a stored entry as a fresh archive rooted at the entry's
// payload range. The entry must have its own end of central directory and
// central directory records.
func (a *Archive) nestedJar(e Entry) (*Archive, error) {
	if e.Method != MethodStored {
		return nil, fmt.Errorf("entry %q: %w", e.Name, ErrNestedEntryCompressed)
	}
	offset, length, err := a.idx.Payload(a.archiveData, e)
	if err != nil {
		return nil, err
	}
	sub, err := a.archiveData.Subsection(offset, length)
	if err != nil {
		return nil, err
	}
	record, err := eocd.Find(sub)
	if err != nil {
		return nil, fmt.Errorf("nested archive %q: %w", e.Name, err)
	}
	idx := index.New()
	archiveData, err := cd.Parse(sub, record, idx)
	if err != nil {
		return nil, fmt.Errorf("nested archive %q: %w", e.Name, err)
	}
	if err := a.rootFile.Retain(); err != nil {
		return nil, err
	}
	child := &Archive{
		typ:            TypeNestedJar,
		rootPath:       a.rootPath,
		pathFromRoot:   a.pathFromRoot + "!/" + e.Name,
		rootFile:       a.rootFile,
		archiveData:    archiveData,
		idx:            idx,
		comment:        record.Comment(),
		parentManifest: a.manifestSupplierFor(),
		logger:         a.logger,
	}
	a.log().Debug("opened nested jar", "entry", e.Name, "entries", idx.Len())
	return child, nil
}

// nestedDirectory creates a filtered view over a directory entry without
// parsing a new central directory. The view shares this archive's index
// and strips the directory prefix from entry names. Its manifest is
// inherited from this archive's supplier.
func (a *Archive) nestedDirectory(e Entry) (*Archive, error) {
	if err := a.rootFile.Retain(); err != nil {
		return nil, err
	}
	child := &Archive{
		typ:            TypeNestedDirectory,
		rootPath:       a.rootPath,
		pathFromRoot:   a.pathFromRoot + "!/" + strings.TrimSuffix(e.Name, "/"),
		rootFile:       a.rootFile,
		archiveData:    a.archiveData,
		idx:            a.idx,
		prefix:         a.prefix + e.Name,
		parentManifest: a.manifestSupplierFor(),
		logger:         a.logger,
	}
	return child, nil
}

// nestedExploded opens a child of an exploded archive: directories become
// exploded archives themselves, files are opened as direct archives.
func (a *Archive) nestedExploded(e Entry) (*Archive, error) {
	path := filepath.Join(a.dir, filepath.FromSlash(strings.TrimSuffix(e.Name, "/")))
	if e.Directory {
		return OpenExploded(path, WithLogger(a.logger))
	}
	return Open(path, WithLogger(a.logger))
}
