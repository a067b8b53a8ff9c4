// Package manifest parses JAR manifests (META-INF/MANIFEST.MF).
//
// The format is line-oriented: sections of "Name: value" headers separated
// by blank lines, with 72-byte line folding where a continuation line
// begins with a single space. The first section holds the main attributes;
// each following section is keyed by its Name header.
package manifest

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Manifest attribute names recognised by the loader.
const (
	// AttrStartClass names the application entry point in the outer archive.
	AttrStartClass = "Start-Class"

	// AttrClasspathIndex points at the classpath index sidecar within the
	// archive.
	AttrClasspathIndex = "Spring-Boot-Classpath-Index"

	// AttrAutomaticModuleName is the module name for the module system.
	AttrAutomaticModuleName = "Automatic-Module-Name"

	// AttrImplementationTitle and friends feed package definitions.
	AttrImplementationTitle   = "Implementation-Title"
	AttrImplementationVersion = "Implementation-Version"
	AttrBuiltBy               = "Built-By"
	AttrBuildJdkSpec          = "Build-Jdk-Spec"

	// AttrSealed marks a package (or the whole archive) as sealed.
	AttrSealed = "Sealed"
)

// ErrSyntax is returned for a line that is neither a header, a
// continuation, nor blank.
var ErrSyntax = errors.New("nestjar: malformed manifest")

// Attributes is one manifest section's name/value pairs.
// Attribute names are case-insensitive; lookups normalise both sides.
type Attributes map[string]string

// Get returns the value for name, or "" when absent.
func (a Attributes) Get(name string) string {
	if v, ok := a[name]; ok {
		return v
	}
	lower := strings.ToLower(name)
	for k, v := range a {
		if strings.ToLower(k) == lower {
			return v
		}
	}
	return ""
}

// Manifest is a parsed MANIFEST.MF.
type Manifest struct {
	// Main holds the main section attributes.
	Main Attributes

	// Sections holds the named per-entry sections, keyed by their Name header.
	Sections map[string]Attributes
}

// Parse reads a manifest from r.
func Parse(r io.Reader) (*Manifest, error) {
	m := &Manifest{
		Main:     Attributes{},
		Sections: map[string]Attributes{},
	}
	current := m.Main
	var lastKey string

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSuffix(scanner.Text(), "\r")
		switch {
		case line == "":
			// Section boundary. The next Name header opens a new section.
			current = nil
			lastKey = ""
		case line[0] == ' ':
			if lastKey == "" || current == nil {
				return nil, fmt.Errorf("line %d: continuation without header: %w", lineNo, ErrSyntax)
			}
			current[lastKey] += line[1:]
		default:
			key, value, ok := strings.Cut(line, ":")
			if !ok {
				return nil, fmt.Errorf("line %d: %w", lineNo, ErrSyntax)
			}
			value = strings.TrimPrefix(value, " ")
			if current == nil {
				if !strings.EqualFold(key, "Name") {
					return nil, fmt.Errorf("line %d: section must begin with Name: %w", lineNo, ErrSyntax)
				}
				current = Attributes{}
				m.Sections[value] = current
			}
			current[key] = value
			lastKey = key
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

// EntryAttributes returns the attributes of the named per-entry section.
func (m *Manifest) EntryAttributes(name string) Attributes {
	return m.Sections[name]
}

// Equal reports whether two manifests carry the same attribute sets.
func (m *Manifest) Equal(other *Manifest) bool {
	if m == nil || other == nil {
		return m == other
	}
	if len(m.Main) != len(other.Main) || len(m.Sections) != len(other.Sections) {
		return false
	}
	for k, v := range m.Main {
		if other.Main[k] != v {
			return false
		}
	}
	for name, sec := range m.Sections {
		otherSec, ok := other.Sections[name]
		if !ok || len(sec) != len(otherSec) {
			return false
		}
		for k, v := range sec {
			if otherSec[k] != v {
				return false
			}
		}
	}
	return true
}
