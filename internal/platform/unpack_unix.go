//go:build unix

package platform

import "os"

// Unpacked files are private to the owner: read/write for files, plus
// execute for directories.
const (
	unpackDirPerm  = 0o700
	unpackFilePerm = 0o600
)

// MkdirRestricted creates a directory with owner-only permissions.
// The mode is re-applied after creation so the umask cannot widen it.
func MkdirRestricted(path string) error {
	if err := os.Mkdir(path, unpackDirPerm); err != nil {
		return err
	}
	return os.Chmod(path, unpackDirPerm)
}

// CreateRestricted creates (or truncates) a file with owner-only permissions.
func CreateRestricted(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, unpackFilePerm) //nolint:gosec // Path is derived from archive entry names under a fresh temp dir
	if err != nil {
		return nil, err
	}
	if err := f.Chmod(unpackFilePerm); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}
