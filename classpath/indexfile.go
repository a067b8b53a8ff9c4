package classpath

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"github.com/meigma/nestjar"
)

// DefaultIndexPath is where the classpath index sidecar lives when the
// manifest does not name a location.
const DefaultIndexPath = "BOOT-INF/classpath.idx"

// ErrIndexSyntax is returned for a sidecar line that is not a quoted
// YAML-style list item.
var ErrIndexSyntax = errors.New("nestjar: malformed classpath index")

// ParseIndex reads a classpath index sidecar: one entry name per line,
// quoted and preceded by "- ". The listed order is the authoritative
// classpath order for inner archives.
func ParseIndex(r io.Reader) ([]string, error) {
	var names []string
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		item, ok := strings.CutPrefix(line, "- ")
		if !ok {
			return nil, fmt.Errorf("line %d: %w", lineNo, ErrIndexSyntax)
		}
		item = strings.TrimSpace(item)
		if len(item) < 2 || item[0] != '"' || item[len(item)-1] != '"' {
			return nil, fmt.Errorf("line %d: %w", lineNo, ErrIndexSyntax)
		}
		names = append(names, item[1:len(item)-1])
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read classpath index: %w", err)
	}
	return names, nil
}

// readIndex loads the sidecar from an archive, consulting the manifest for
// its location and falling back to DefaultIndexPath. A missing sidecar is
// not an error.
func readIndex(a *nestjar.Archive) ([]string, error) {
	path := DefaultIndexPath
	if m, err := a.Manifest(); err == nil && m != nil {
		if p := m.Main.Get(nestjar.AttrClasspathIndex); p != "" {
			path = p
		}
	}
	rc, err := a.InputStream(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return ParseIndex(rc)
}

// ForArchive builds a resolver for an archive's inner classpath.
//
// search and include select which entries become roots, exactly as in
// Archive.NestedArchives. For exploded archives the sidecar order governs:
// indexed names first in listed order, unindexed survivors appended in
// discovery order after them, with the classes root (a directory root)
// always preceding library roots. For zip-backed archives the central
// directory order is used directly.
func ForArchive(a *nestjar.Archive, search, include nestjar.Filter, opts ...Option) (*Resolver, error) {
	children, err := collectChildren(a, search, include)
	if err != nil {
		return nil, err
	}
	if a.Type() == nestjar.TypeExplodedDirectory {
		indexed, err := readIndex(a)
		if err != nil {
			closeAll(children)
			return nil, err
		}
		children = orderByIndex(children, indexed)
	}
	entries := make([]Entry, 0, len(children))
	for _, c := range children {
		entries = append(entries, ArchiveEntry(c))
	}
	return New(entries, opts...), nil
}

type child struct {
	name    string
	archive *nestjar.Archive
}

// collectChildren opens the selected nested archives in entry order.
func collectChildren(a *nestjar.Archive, search, include nestjar.Filter) ([]child, error) {
	var children []child
	for e := range a.Entries() {
		if search != nil && !search(e) {
			continue
		}
		if include != nil && !include(e) {
			continue
		}
		nested, err := a.Nested(e)
		if err != nil {
			closeAll(children)
			return nil, err
		}
		children = append(children, child{name: strings.TrimSuffix(e.Name, "/"), archive: nested})
	}
	return children, nil
}

// orderByIndex reorders children so directory roots come first, then
// indexed names in listed order, then leftover archives in discovery order.
func orderByIndex(children []child, indexed []string) []child {
	if len(indexed) == 0 {
		return children
	}
	rank := make(map[string]int, len(indexed))
	for i, name := range indexed {
		rank[strings.TrimSuffix(name, "/")] = i
	}
	var dirs, listed, leftovers []child
	for _, c := range children {
		switch {
		case c.archive.Type() == nestjar.TypeNestedDirectory || c.archive.Type() == nestjar.TypeExplodedDirectory:
			dirs = append(dirs, c)
		default:
			if _, ok := rank[c.name]; ok {
				listed = append(listed, c)
			} else {
				leftovers = append(leftovers, c)
			}
		}
	}
	sortByRank(listed, rank)
	out := make([]child, 0, len(children))
	out = append(out, dirs...)
	out = append(out, listed...)
	out = append(out, leftovers...)
	return out
}

// sortByRank is a small stable insertion sort by sidecar position.
func sortByRank(cs []child, rank map[string]int) {
	for i := 1; i < len(cs); i++ {
		for j := i; j > 0 && rank[cs[j-1].name] > rank[cs[j].name]; j-- {
			cs[j-1], cs[j] = cs[j], cs[j-1]
		}
	}
}

func closeAll(children []child) {
	for _, c := range children {
		c.archive.Close()
	}
}
