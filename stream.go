package nestjar

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/flate"

	"github.com/meigma/nestjar/internal/pathutil"
)

// InputStream opens a reader over the named entry's uncompressed content.
//
// Stored entries are read straight from the underlying view; deflated
// entries are wrapped in an inflate stream. Closing the returned reader
// does not close the archive. A missing entry fails with fs.ErrNotExist.
func (a *Archive) InputStream(name string) (io.ReadCloser, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	if a.typ == TypeExplodedDirectory {
		f, err := os.Open(filepath.Join(a.dir, filepath.FromSlash(name))) //nolint:gosec // Exploded archives are caller-chosen directories
		if err != nil {
			return nil, err
		}
		return f, nil
	}
	e, err := a.idx.Resolve(a.prefix + name)
	if err != nil {
		return nil, err
	}
	return a.entryStream(e)
}

// entryStream opens a reader over an already-resolved entry.
func (a *Archive) entryStream(e Entry) (io.ReadCloser, error) {
	offset, length, err := a.idx.Payload(a.archiveData, e)
	if err != nil {
		return nil, err
	}
	payload, err := a.archiveData.Subsection(offset, length)
	if err != nil {
		return nil, err
	}
	switch e.Method {
	case MethodStored:
		return io.NopCloser(payload.Reader()), nil
	case MethodDeflated:
		return flate.NewReader(payload.Reader()), nil
	default:
		return nil, fmt.Errorf("entry %q uses unsupported method %d: %w", e.Name, e.Method, ErrMalformed)
	}
}

// isDir reports whether name denotes a directory within the archive,
// either explicitly (a slash-terminated entry) or implicitly (a prefix of
// other entry names).
func (a *Archive) isDir(name string) bool {
	if name == "." {
		return true
	}
	if a.Contains(name + "/") {
		return true
	}
	prefix := name + "/"
	for e := range a.Entries() {
		if strings.HasPrefix(e.Name, prefix) {
			return true
		}
	}
	return false
}

// Open implements fs.FS over the archive's entries.
func (a *Archive) Open(name string) (fs.File, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrInvalid}
	}
	if err := a.checkOpen(); err != nil {
		return nil, &fs.PathError{Op: "open", Path: name, Err: err}
	}
	if e, ok := a.Entry(name); ok && !e.Directory {
		r, err := a.InputStream(name)
		if err != nil {
			return nil, &fs.PathError{Op: "open", Path: name, Err: err}
		}
		return &entryFile{r: r, info: entryInfo{e: e}}, nil
	}
	if a.isDir(name) {
		return &openDir{a: a, name: name}, nil
	}
	return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
}

// Stat implements fs.StatFS.
//
// For directories that exist only as name prefixes, Stat returns synthetic
// directory info.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrInvalid}
	}
	if err := a.checkOpen(); err != nil {
		return nil, &fs.PathError{Op: "stat", Path: name, Err: err}
	}
	if e, ok := a.Entry(name); ok && !e.Directory {
		return entryInfo{e: e}, nil
	}
	if e, ok := a.Entry(name + "/"); ok {
		return entryInfo{e: e}, nil
	}
	if a.isDir(name) {
		return entryInfo{e: Entry{Name: name + "/", Directory: true}}, nil
	}
	return nil, &fs.PathError{Op: "stat", Path: name, Err: fs.ErrNotExist}
}

// ReadDir implements fs.ReadDirFS.
//
// Directory entries are synthesized from entry names; the archive need not
// store directory records explicitly. Results are sorted by name.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	if err := a.checkOpen(); err != nil {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: err}
	}
	if !a.isDir(name) {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrNotExist}
	}
	prefix := pathutil.DirPrefix(name)
	seen := map[string]fs.DirEntry{}
	for e := range a.Entries() {
		if !strings.HasPrefix(e.Name, prefix) || len(e.Name) == len(prefix) {
			continue
		}
		child, isSubDir := pathutil.Child(e.Name, prefix)
		if isSubDir {
			// Descendant; synthesize the immediate child directory.
			if _, ok := seen[child]; !ok {
				seen[child] = fs.FileInfoToDirEntry(entryInfo{e: Entry{Name: prefix + child + "/", Directory: true}})
			}
			continue
		}
		seen[child] = fs.FileInfoToDirEntry(entryInfo{e: e})
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]fs.DirEntry, 0, len(names))
	for _, n := range names {
		out = append(out, seen[n])
	}
	return out, nil
}

// entryFile adapts an entry stream to fs.File.
type entryFile struct {
	r    io.ReadCloser
	info entryInfo
}

func (f *entryFile) Read(p []byte) (int, error) { return f.r.Read(p) }
func (f *entryFile) Stat() (fs.FileInfo, error) { return f.info, nil }
func (f *entryFile) Close() error               { return f.r.Close() }

// openDir is the fs.File for a directory.
type openDir struct {
	a      *Archive
	name   string
	offset int
}

func (d *openDir) Read([]byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.name, Err: errors.New("is a directory")}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return entryInfo{e: Entry{Name: d.name + "/", Directory: true}}, nil
}

func (d *openDir) Close() error { return nil }

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	all, err := d.a.ReadDir(d.name)
	if err != nil {
		return nil, err
	}
	if d.offset >= len(all) {
		if n <= 0 {
			return nil, nil
		}
		return nil, io.EOF
	}
	rest := all[d.offset:]
	if n > 0 && n < len(rest) {
		rest = rest[:n]
	}
	d.offset += len(rest)
	return rest, nil
}

// Interface compliance.
var (
	_ fs.FS          = (*Archive)(nil)
	_ fs.StatFS      = (*Archive)(nil)
	_ fs.ReadDirFS   = (*Archive)(nil)
	_ fs.ReadDirFile = (*openDir)(nil)
)
