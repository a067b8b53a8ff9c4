//go:build !unix

package platform

import "os"

const (
	unpackDirPerm  = 0o700
	unpackFilePerm = 0o600
)

// MkdirRestricted creates a directory with owner-only permissions where the
// platform honours mode bits.
func MkdirRestricted(path string) error {
	return os.Mkdir(path, unpackDirPerm)
}

// CreateRestricted creates (or truncates) a file with owner-only permissions
// where the platform honours mode bits.
func CreateRestricted(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, unpackFilePerm) //nolint:gosec // Path is derived from archive entry names under a fresh temp dir
}
