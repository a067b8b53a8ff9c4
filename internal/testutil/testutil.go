// Package testutil builds ZIP fixtures for tests: regular archives via
// archive/zip, plus hand-assembled archives for the edge cases the
// standard writer cannot produce (ZIP64 sentinels, divergent local extra
// fields, executable prefixes).
package testutil

import (
	"archive/zip"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// ZipEntry describes one entry of a built fixture.
type ZipEntry struct {
	Name    string
	Data    []byte
	Deflate bool
	Comment string
}

// BuildOption mutates the raw archive bytes after writing.
type BuildOption func(tb testing.TB, b []byte) []byte

// WithPrefix prepends bytes to the archive, simulating an executable
// launch stub.
func WithPrefix(prefix []byte) BuildOption {
	return func(_ testing.TB, b []byte) []byte {
		return append(append([]byte{}, prefix...), b...)
	}
}

// BuildZip writes a ZIP archive with the given entries and archive comment.
// Entries are stored uncompressed unless Deflate is set; names ending in a
// slash become directory entries.
func BuildZip(tb testing.TB, entries []ZipEntry, comment string, opts ...BuildOption) []byte {
	tb.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	if comment != "" {
		require.NoError(tb, w.SetComment(comment), "set archive comment")
	}
	for _, e := range entries {
		header := &zip.FileHeader{
			Name:    e.Name,
			Method:  zip.Store,
			Comment: e.Comment,
		}
		if e.Deflate {
			header.Method = zip.Deflate
		}
		fw, err := w.CreateHeader(header)
		require.NoError(tb, err, "create entry %q", e.Name)
		if len(e.Data) > 0 {
			_, err = fw.Write(e.Data)
			require.NoError(tb, err, "write entry %q", e.Name)
		}
	}
	require.NoError(tb, w.Close(), "close zip writer")
	b := buf.Bytes()
	for _, opt := range opts {
		b = opt(tb, b)
	}
	return b
}

// WriteFile writes fixture bytes to dir/name and returns the path.
func WriteFile(tb testing.TB, dir, name string, b []byte) string {
	tb.Helper()
	path := filepath.Join(dir, name)
	require.NoError(tb, os.WriteFile(path, b, 0o644), "write fixture %q", name)
	return path
}

// InnerZip describes a nested archive entry of an outer fixture.
type InnerZip struct {
	Name    string
	Entries []ZipEntry
}

// BuildNestedZip builds an outer archive whose entries include inner
// archives stored uncompressed, in the given order after the plain
// entries.
func BuildNestedZip(tb testing.TB, inners []InnerZip, outer []ZipEntry, opts ...BuildOption) []byte {
	tb.Helper()
	all := make([]ZipEntry, 0, len(inners)+len(outer))
	all = append(all, outer...)
	for _, in := range inners {
		all = append(all, ZipEntry{Name: in.Name, Data: BuildZip(tb, in.Entries, "")})
	}
	return BuildZip(tb, all, "", opts...)
}
