package nestjar

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/meigma/nestjar/internal/manifest"
)

// Manifest is a parsed META-INF/MANIFEST.MF.
type Manifest = manifest.Manifest

// Attributes is one manifest section's name/value pairs.
type Attributes = manifest.Attributes

// Manifest attribute names recognised by the loader.
const (
	AttrStartClass            = manifest.AttrStartClass
	AttrClasspathIndex        = manifest.AttrClasspathIndex
	AttrAutomaticModuleName   = manifest.AttrAutomaticModuleName
	AttrImplementationTitle   = manifest.AttrImplementationTitle
	AttrImplementationVersion = manifest.AttrImplementationVersion
	AttrBuiltBy               = manifest.AttrBuiltBy
	AttrBuildJdkSpec          = manifest.AttrBuildJdkSpec
	AttrSealed                = manifest.AttrSealed
)

// manifestPath is the manifest's fixed location within an archive.
const manifestPath = "META-INF/MANIFEST.MF"

// Manifest returns the archive's manifest, or nil when it has none.
//
// A nested archive without a manifest of its own inherits its parent's, so
// package attributes resolve through the enclosing executable archive. The
// result is cached; concurrent callers observe the same logical manifest
// (the build is deduplicated and idempotent).
func (a *Archive) Manifest() (*Manifest, error) {
	if err := a.checkOpen(); err != nil {
		return nil, err
	}
	if box := a.manifestCache.Load(); box != nil {
		return box.m, nil
	}
	v, err, _ := a.manifestGroup.Do("manifest", func() (any, error) {
		m, err := a.readManifest()
		if err != nil {
			return nil, err
		}
		a.manifestCache.Store(&manifestBox{m: m})
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	m, _ := v.(*Manifest)
	return m, nil
}

// readManifest reads this archive's own manifest, delegating to the parent
// supplier when the archive has none.
func (a *Archive) readManifest() (*Manifest, error) {
	r, err := a.InputStream(manifestPath)
	if errors.Is(err, fs.ErrNotExist) {
		if a.parentManifest != nil {
			return a.parentManifest()
		}
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer r.Close()
	m, err := manifest.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("manifest of %s%s: %w", a.rootPath, a.pathFromRoot, err)
	}
	return m, nil
}

// StartClass returns the Start-Class main attribute, or "".
func (a *Archive) StartClass() (string, error) {
	m, err := a.Manifest()
	if err != nil || m == nil {
		return "", err
	}
	return m.Main.Get(AttrStartClass), nil
}
