package data

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(tb testing.TB, content []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), "data.bin")
	require.NoError(tb, os.WriteFile(path, content, 0o644))
	return path
}

func TestFileDataRead(t *testing.T) {
	t.Parallel()

	content := []byte("0123456789")
	fd, err := OpenFile(writeTempFile(t, content))
	require.NoError(t, err)
	defer fd.Close()

	t.Run("whole range", func(t *testing.T) {
		got, err := fd.Read(0, 10)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("middle range", func(t *testing.T) {
		got, err := fd.Read(3, 4)
		require.NoError(t, err)
		assert.Equal(t, []byte("3456"), got)
	})

	t.Run("past end", func(t *testing.T) {
		_, err := fd.Read(8, 5)
		assert.ErrorIs(t, err, ErrTruncated)
	})

	t.Run("negative offset", func(t *testing.T) {
		_, err := fd.Read(-1, 2)
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestSubsectionTransparency(t *testing.T) {
	t.Parallel()

	content := []byte("abcdefghijklmnop")
	fd, err := OpenFile(writeTempFile(t, content))
	require.NoError(t, err)
	defer fd.Close()

	sub, err := fd.Subsection(4, 8)
	require.NoError(t, err)
	assert.Equal(t, int64(8), sub.Size())

	// Every byte of the view equals the root at start+offset.
	for o := int64(0); o < 8; o++ {
		got, err := sub.Read(o, 1)
		require.NoError(t, err)
		assert.Equal(t, content[4+o], got[0], "offset %d", o)
	}

	nested, err := sub.Subsection(2, 4)
	require.NoError(t, err)
	got, err := nested.Read(0, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte("ghij"), got)

	t.Run("out of bounds", func(t *testing.T) {
		_, err := sub.Subsection(5, 5)
		assert.ErrorIs(t, err, ErrTruncated)
	})
}

func TestReaderSequential(t *testing.T) {
	t.Parallel()

	content := []byte("sequential read content")
	fd, err := OpenFile(writeTempFile(t, content))
	require.NoError(t, err)
	defer fd.Close()

	sub, err := fd.Subsection(11, 4)
	require.NoError(t, err)
	got, err := io.ReadAll(sub.Reader())
	require.NoError(t, err)
	assert.Equal(t, []byte("read"), got)
}

func TestConcurrentReads(t *testing.T) {
	t.Parallel()

	content := bytes.Repeat([]byte("0123456789"), 1000)
	fd, err := OpenFile(writeTempFile(t, content))
	require.NoError(t, err)
	defer fd.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			for i := int64(0); i < 200; i++ {
				off := (seed*37 + i*13) % int64(len(content)-10)
				got, err := fd.Read(off, 10)
				if assert.NoError(t, err) {
					assert.Equal(t, content[off:off+10], got)
				}
			}
		}(int64(g))
	}
	wg.Wait()
}

func TestCloseInvalidatesViews(t *testing.T) {
	t.Parallel()

	fd, err := OpenFile(writeTempFile(t, []byte("0123456789")))
	require.NoError(t, err)

	sub, err := fd.Subsection(2, 4)
	require.NoError(t, err)

	require.NoError(t, fd.Close())

	_, err = sub.Read(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = fd.Read(0, 1)
	assert.ErrorIs(t, err, ErrClosed)

	// Close is idempotent.
	assert.NoError(t, fd.Close())
}

func TestRetainRelease(t *testing.T) {
	t.Parallel()

	fd, err := OpenFile(writeTempFile(t, []byte("0123456789")))
	require.NoError(t, err)

	require.NoError(t, fd.Retain())
	require.NoError(t, fd.Release())

	// Releasing the initial reference closes the descriptor.
	require.NoError(t, fd.Release())
	_, err = fd.Read(0, 1)
	assert.ErrorIs(t, err, ErrClosed)

	assert.ErrorIs(t, fd.Retain(), ErrClosed)
}

func TestByteData(t *testing.T) {
	t.Parallel()

	d := NewByteData([]byte("hello world"))
	assert.Equal(t, int64(11), d.Size())

	got, err := d.Read(6, 5)
	require.NoError(t, err)
	assert.Equal(t, []byte("world"), got)

	sub, err := d.Subsection(0, 5)
	require.NoError(t, err)
	all, err := io.ReadAll(sub.Reader())
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), all)

	_, err = d.Read(7, 5)
	assert.ErrorIs(t, err, ErrTruncated)
}
