package nestjar

import (
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/meigma/nestjar/internal/index"
	"github.com/meigma/nestjar/internal/pathutil"
	"github.com/meigma/nestjar/internal/ziptype"
)

// Entry is the logical record for one archive entry.
type Entry = index.Entry

// Filter is a predicate over entries, used to select nested archives.
type Filter func(Entry) bool

// Compression methods re-exported for filter implementations.
const (
	// MethodStored identifies an uncompressed entry.
	MethodStored = ziptype.MethodStored

	// MethodDeflated identifies a DEFLATE-compressed entry.
	MethodDeflated = ziptype.MethodDeflated
)

// Len returns the number of entries in the archive. For nested directory
// views the count includes only entries under the view's prefix.
func (a *Archive) Len() int {
	if a.idx == nil {
		n := 0
		for range a.Entries() {
			n++
		}
		return n
	}
	if a.prefix != "" {
		n := 0
		for range a.idx.EntriesWithPrefix(a.prefix) {
			n++
		}
		return n
	}
	return a.idx.Len()
}

// Entries iterates the archive's entries in central directory order.
// For exploded archives the order is the lexical directory walk order.
func (a *Archive) Entries() iter.Seq[Entry] {
	switch {
	case a.typ == TypeExplodedDirectory:
		return a.explodedEntries()
	case a.prefix != "":
		return a.idx.EntriesWithPrefix(a.prefix)
	default:
		return a.idx.Entries()
	}
}

// Entry returns the entry with the given full name.
func (a *Archive) Entry(name string) (Entry, bool) {
	if a.typ == TypeExplodedDirectory {
		return a.explodedEntry(name)
	}
	return a.idx.Get(a.prefix + name)
}

// Contains reports whether the archive holds an entry with the given full
// name. A slash-terminated directory name and its bare counterpart are
// distinct.
func (a *Archive) Contains(name string) bool {
	if a.typ == TypeExplodedDirectory {
		_, ok := a.explodedEntry(name)
		return ok
	}
	return a.idx.Contains(a.prefix + name)
}

// explodedEntries walks the directory tree.
func (a *Archive) explodedEntries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		_ = filepath.WalkDir(a.dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil || path == a.dir {
				return nil
			}
			rel, err := filepath.Rel(a.dir, path)
			if err != nil {
				return nil
			}
			name := filepath.ToSlash(rel)
			if d.IsDir() {
				name += "/"
			}
			e, ok := a.explodedEntry(name)
			if !ok {
				return nil
			}
			if !yield(e) {
				return fs.SkipAll
			}
			return nil
		})
	}
}

// explodedEntry stats one filesystem path as an entry.
func (a *Archive) explodedEntry(name string) (Entry, bool) {
	trimmed := strings.TrimSuffix(name, "/")
	if trimmed == "" || !fs.ValidPath(trimmed) {
		return Entry{}, false
	}
	info, err := os.Stat(filepath.Join(a.dir, filepath.FromSlash(trimmed)))
	if err != nil {
		return Entry{}, false
	}
	// Mirror the ZIP convention: directory names carry a trailing slash.
	if info.IsDir() != strings.HasSuffix(name, "/") {
		return Entry{}, false
	}
	e := Entry{
		Name:              name,
		Directory:         info.IsDir(),
		Method:            MethodStored,
		LocalHeaderOffset: -1,
	}
	if !info.IsDir() {
		e.Size = info.Size()
		e.CompressedSize = info.Size()
	}
	return e, true
}

// dosTime converts a DOS date/time field to a time.Time in the local zone.
func dosTime(v uint32) time.Time {
	date := uint16(v >> 16)
	tm := uint16(v)
	year := int(date>>9) + 1980
	month := time.Month((date >> 5) & 0xF)
	day := int(date & 0x1F)
	hour := int(tm >> 11)
	minute := int((tm >> 5) & 0x3F)
	second := int(tm&0x1F) * 2
	return time.Date(year, month, day, hour, minute, second, 0, time.Local)
}

// entryInfo adapts an Entry to fs.FileInfo.
type entryInfo struct {
	e Entry
}

func (i entryInfo) Name() string {
	return pathutil.Base(i.e.Name)
}

func (i entryInfo) Size() int64 { return i.e.Size }

func (i entryInfo) Mode() fs.FileMode {
	if i.e.Directory {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (i entryInfo) ModTime() time.Time { return dosTime(i.e.Time) }
func (i entryInfo) IsDir() bool        { return i.e.Directory }
func (i entryInfo) Sys() any           { return nil }

// Interface compliance.
var _ fs.FileInfo = entryInfo{}
