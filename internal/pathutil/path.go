// Package pathutil provides helpers for slash-separated archive entry names.
package pathutil

import "strings"

// Normalize converts a user-provided resource name to archive entry form:
// leading slashes are stripped (class loaders tolerate "/a/b.txt"),
// consecutive slashes collapse, and "." maps to the empty name.
func Normalize(name string) string {
	name = strings.TrimLeft(name, "/")
	if name == "" || name == "." {
		return ""
	}
	if !strings.Contains(name, "//") {
		return name
	}
	parts := strings.Split(name, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	joined := strings.Join(out, "/")
	if strings.HasSuffix(name, "/") {
		joined += "/"
	}
	return joined
}

// Base returns the last element of an entry name, ignoring a trailing
// slash. An empty name or "." yields ".".
func Base(name string) string {
	if name == "" || name == "." {
		return "."
	}
	name = strings.TrimSuffix(name, "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// DirPrefix converts a directory name to the prefix its children share.
// The root "." maps to the empty prefix.
func DirPrefix(name string) string {
	if name == "." {
		return ""
	}
	return name + "/"
}

// Child extracts the immediate child element of name under prefix, and
// whether further components follow it.
func Child(name, prefix string) (child string, isSubDir bool) {
	rel := strings.TrimPrefix(name, prefix)
	if idx := strings.IndexByte(rel, '/'); idx >= 0 {
		return rel[:idx], true
	}
	return rel, false
}
