package classpath

import (
	"strings"
	"sync"

	"github.com/meigma/nestjar"
)

// Package carries the manifest-derived attributes used when defining a
// package for a class loaded from the classpath. In an exploded layout the
// package-to-manifest association is otherwise lost; DefinePackageFor
// restores it by walking the roots to the enclosing archive.
type Package struct {
	Name                  string
	ImplementationTitle   string
	ImplementationVersion string
	BuiltBy               string
	Sealed                bool
}

// packageTable holds defined packages keyed by package name.
type packageTable struct {
	m sync.Map
}

func (t *packageTable) load(name string) (*Package, bool) {
	v, ok := t.m.Load(name)
	if !ok {
		return nil, false
	}
	return v.(*Package), true
}

func (t *packageTable) store(name string, p *Package) *Package {
	actual, _ := t.m.LoadOrStore(name, p)
	return actual.(*Package)
}

// packageName returns the package portion of a binary class name, or ""
// for the default package.
func packageName(binaryName string) string {
	idx := strings.LastIndexByte(binaryName, '.')
	if idx < 0 {
		return ""
	}
	return binaryName[:idx]
}

// DefinePackageFor resolves the package attributes for a class about to be
// defined, walking the roots in order to the first archive that carries
// the class and taking the attributes from that archive's manifest
// (inherited from the enclosing archive when the inner one has none).
//
// Concurrent callers racing to define the same package observe one
// idempotent winner.
func (r *Resolver) DefinePackageFor(binaryName string) (*Package, bool) {
	pkg := packageName(binaryName)
	if pkg == "" {
		return nil, false
	}
	if p, ok := r.packages.load(pkg); ok {
		return p, true
	}
	v, _, _ := r.defineGroup.Do(pkg, func() (any, error) {
		if p, ok := r.packages.load(pkg); ok {
			return p, nil
		}
		p := r.resolvePackage(pkg, classFilePath(binaryName))
		if p == nil {
			return (*Package)(nil), nil
		}
		return r.packages.store(pkg, p), nil
	})
	p, _ := v.(*Package)
	return p, p != nil
}

// resolvePackage finds the enclosing archive for a class path and builds
// the package record from its manifest.
func (r *Resolver) resolvePackage(pkg, classPath string) *Package {
	for _, e := range r.entries {
		if !e.contains(classPath) {
			continue
		}
		p := &Package{Name: pkg}
		if e.archive != nil {
			if m, err := e.archive.Manifest(); err == nil && m != nil {
				fillPackage(p, m, pkg)
			}
		}
		return p
	}
	return nil
}

// fillPackage copies the recognised attributes, preferring the per-package
// manifest section over the main one.
func fillPackage(p *Package, m *nestjar.Manifest, pkg string) {
	attrs := m.Main
	if section := m.EntryAttributes(strings.ReplaceAll(pkg, ".", "/") + "/"); section != nil {
		attrs = section
	}
	p.ImplementationTitle = attrs.Get(nestjar.AttrImplementationTitle)
	p.ImplementationVersion = attrs.Get(nestjar.AttrImplementationVersion)
	p.BuiltBy = attrs.Get(nestjar.AttrBuiltBy)
	p.Sealed = strings.EqualFold(attrs.Get(nestjar.AttrSealed), "true")
}
