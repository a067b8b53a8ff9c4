// Package jarurl implements the composite jar URL scheme used to address
// entries through arbitrary archive nesting:
//
//	jar:file:/path/outer.jar!/lib/inner.jar!/com/x/Y.class
//
// Segments are separated by the literal sequence "!/"; a segment may
// contain plain slashes. A trailing "!/" denotes the archive itself rather
// than an entry within it.
//
// The parser and emitter are pure functions; process-wide registration of
// the scheme is a separate, idempotent step (see Register) intended for
// the thin launcher that wraps the core.
package jarurl

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Scheme is the URL scheme for composite archive URLs.
const Scheme = "jar"

// separator divides nesting segments.
const separator = "!/"

// ErrInvalidURL is returned for a string that is not a composite jar URL.
var ErrInvalidURL = errors.New("nestjar: invalid jar url")

// Ref is a parsed composite jar URL: the outer file plus the chain of
// nesting segments. An empty final segment denotes the archive itself
// (the trailing "!/" form).
type Ref struct {
	// FilePath is the filesystem path of the outer archive.
	FilePath string

	// Segments is the nesting chain, outermost first.
	Segments []string
}

// FileURL renders a filesystem path as a file: URL, canonicalising the
// UNC-style "file:////" form to "file://".
func FileURL(path string) string {
	u := "file:" + filepath.ToSlash(path)
	if strings.HasPrefix(u, "file:////") {
		u = "file://" + strings.TrimPrefix(u, "file:////")
	}
	return u
}

// Compose renders a composite jar URL for the outer file and nesting
// segments. Pass a final empty segment to address an archive itself
// (producing a trailing "!/").
func Compose(filePath string, segments ...string) string {
	var b strings.Builder
	b.WriteString(Scheme)
	b.WriteByte(':')
	b.WriteString(FileURL(filePath))
	for _, seg := range segments {
		b.WriteString(separator)
		b.WriteString(seg)
	}
	return b.String()
}

// Parse splits a composite jar URL into its outer file path and nesting
// segments. It is the inverse of Compose for all valid inputs.
func Parse(raw string) (Ref, error) {
	rest, ok := strings.CutPrefix(raw, Scheme+":")
	if !ok {
		return Ref{}, fmt.Errorf("%q lacks %q scheme: %w", raw, Scheme, ErrInvalidURL)
	}
	pieces := strings.Split(rest, separator)
	fileURL := pieces[0]
	path, ok := strings.CutPrefix(fileURL, "file:")
	if !ok {
		return Ref{}, fmt.Errorf("%q is not a file url: %w", fileURL, ErrInvalidURL)
	}
	// Canonicalise UNC-compatible quadruple slashes.
	if strings.HasPrefix(path, "////") {
		path = "//" + strings.TrimPrefix(path, "////")
	}
	if len(pieces) == 1 {
		return Ref{}, fmt.Errorf("%q has no entry segments: %w", raw, ErrInvalidURL)
	}
	return Ref{
		FilePath: filepath.FromSlash(path),
		Segments: pieces[1:],
	}, nil
}

// String renders the reference back to URL form.
func (r Ref) String() string {
	return Compose(r.FilePath, r.Segments...)
}

// IsArchive reports whether the reference addresses an archive itself
// rather than an entry (the trailing "!/" form).
func (r Ref) IsArchive() bool {
	return len(r.Segments) > 0 && r.Segments[len(r.Segments)-1] == ""
}
