package nestjar

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/nestjar/internal/pathutil"
	"github.com/meigma/nestjar/internal/platform"
)

// unpackMarker prefixes the comment of entries that must be extracted to
// disk before use (typically libraries that need a real file path).
const unpackMarker = "UNPACK:"

// unpackWorkers bounds concurrent entry extraction in Unpack.
const unpackWorkers = 4

// nestedUnpacked extracts a marked entry to the archive's temporary unpack
// directory and opens the extracted file as a direct archive. Extraction
// is skipped when a file of the expected size is already present.
func (a *Archive) nestedUnpacked(e Entry) (*Archive, error) {
	dir, err := a.tempUnpackDir()
	if err != nil {
		return nil, err
	}
	path := filepath.Join(dir, pathutil.Base(e.Name))
	if info, err := os.Stat(path); err != nil || info.Size() != e.Size {
		if err := a.extract(e, path); err != nil {
			return nil, err
		}
	}
	return Open(path, WithLogger(a.logger))
}

// tempUnpackDir lazily creates the process-scoped unpack directory,
// <tmp>/<jarname>-nestjar-libs-<uuid>, with owner-only permissions.
func (a *Archive) tempUnpackDir() (string, error) {
	a.unpackMu.Lock()
	defer a.unpackMu.Unlock()
	if a.unpackDir != "" {
		return a.unpackDir, nil
	}
	base := filepath.Base(a.rootPath)
	dir := filepath.Join(os.TempDir(), base+"-nestjar-libs-"+uuid.NewString())
	if err := platform.MkdirRestricted(dir); err != nil {
		return "", fmt.Errorf("create unpack directory: %w", err)
	}
	a.unpackDir = dir
	a.log().Debug("created unpack directory", "dir", dir)
	return dir, nil
}

// extract copies one entry's uncompressed content to path.
func (a *Archive) extract(e Entry, path string) error {
	r, err := a.entryStream(e)
	if err != nil {
		return err
	}
	defer r.Close()
	f, err := platform.CreateRestricted(path)
	if err != nil {
		return fmt.Errorf("unpack %q: %w", e.Name, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("unpack %q: %w", e.Name, err)
	}
	return f.Close()
}

// Unpack extracts every file entry accepted by filter into dest,
// preserving entry paths. Entries are extracted concurrently; the first
// failure cancels the remaining work. A nil filter accepts everything.
func (a *Archive) Unpack(ctx context.Context, dest string, filter Filter) error {
	if err := a.checkOpen(); err != nil {
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(unpackWorkers)
	for e := range a.Entries() {
		if e.Directory || (filter != nil && !filter(e)) {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dest, filepath.FromSlash(e.Name))
			if !strings.HasPrefix(path, filepath.Clean(dest)+string(os.PathSeparator)) {
				return fmt.Errorf("entry %q escapes destination: %w", e.Name, ErrMalformed)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return err
			}
			r, err := a.InputStream(e.Name)
			if err != nil {
				return err
			}
			defer r.Close()
			f, err := os.Create(path) //nolint:gosec // Path is validated against dest above
			if err != nil {
				return err
			}
			if _, err := io.Copy(f, r); err != nil {
				f.Close()
				return err
			}
			return f.Close()
		})
	}
	return g.Wait()
}
