package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nestjar"
	"github.com/meigma/nestjar/internal/testutil"
	"github.com/meigma/nestjar/jarurl"
)

// execute runs a command with the given args and captures its output.
func execute(tb testing.TB, cmd *cobra.Command, args ...string) (string, error) {
	tb.Helper()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// outerJar writes a fixture archive with a classes root, a stored nested
// jar, and a deflated entry, and returns its path.
func outerJar(tb testing.TB) string {
	tb.Helper()
	b := testutil.BuildNestedZip(tb,
		[]testutil.InnerZip{
			{Name: "lib/foo.jar", Entries: []testutil.ZipEntry{
				{Name: "m/r.txt", Data: []byte("nested resource")},
			}},
		},
		[]testutil.ZipEntry{
			{Name: "classes/"},
			{Name: "classes/app.properties", Data: []byte("k=v")},
			{Name: "notes.txt", Data: []byte("plain notes"), Deflate: true},
		},
	)
	return testutil.WriteFile(tb, tb.TempDir(), "outer.jar", b)
}

func TestListCommand(t *testing.T) {
	t.Parallel()

	path := outerJar(t)

	t.Run("outer entries", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, listCmd(), path)
		require.NoError(t, err)
		assert.Contains(t, out, "classes/app.properties")
		assert.Contains(t, out, "lib/foo.jar")
		assert.Contains(t, out, "stored")
		assert.Contains(t, out, "deflated")
	})

	t.Run("nested descent", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, listCmd(), path, "--nested", "lib/foo.jar")
		require.NoError(t, err)
		assert.Contains(t, out, "m/r.txt")
		assert.NotContains(t, out, "notes.txt")
	})

	t.Run("missing archive", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, listCmd(), filepath.Join(t.TempDir(), "absent.jar"))
		assert.Error(t, err)
	})

	t.Run("missing nested entry", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, listCmd(), path, "--nested", "lib/nope.jar")
		assert.Error(t, err)
	})
}

func TestCatCommand(t *testing.T) {
	t.Parallel()

	path := outerJar(t)

	t.Run("nested entry", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, catCmd(), jarurl.Compose(path, "lib/foo.jar", "m/r.txt"))
		require.NoError(t, err)
		assert.Equal(t, "nested resource", out)
	})

	t.Run("deflated top-level entry", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, catCmd(), jarurl.Compose(path, "notes.txt"))
		require.NoError(t, err)
		assert.Equal(t, "plain notes", out)
	})

	t.Run("archive reference is rejected", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, catCmd(), jarurl.Compose(path, "lib/foo.jar", ""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "archive")
	})

	t.Run("deflated nested archive fails", func(t *testing.T) {
		t.Parallel()
		inner := testutil.BuildZip(t, []testutil.ZipEntry{
			{Name: "x.txt", Data: []byte("x")},
		}, "")
		b := testutil.BuildZip(t, []testutil.ZipEntry{
			{Name: "a/b.jar", Data: inner, Deflate: true},
		}, "")
		deflatedPath := testutil.WriteFile(t, t.TempDir(), "deflated.jar", b)

		_, err := execute(t, catCmd(), jarurl.Compose(deflatedPath, "a/b.jar", "x.txt"))
		require.ErrorIs(t, err, nestjar.ErrNestedEntryCompressed)
	})

	t.Run("invalid url", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, catCmd(), "not-a-jar-url")
		require.ErrorIs(t, err, jarurl.ErrInvalidURL)
	})
}

func TestResolveCommand(t *testing.T) {
	t.Parallel()

	path := outerJar(t)

	t.Run("nested resource", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, resolveCmd(), path, "m/r.txt")
		require.NoError(t, err)
		assert.Equal(t, jarurl.Compose(path, "lib/foo.jar", "m/r.txt")+"\n", out)
	})

	t.Run("classes resource", func(t *testing.T) {
		t.Parallel()
		out, err := execute(t, resolveCmd(), path, "app.properties")
		require.NoError(t, err)
		assert.Equal(t, jarurl.Compose(path, "classes", "app.properties")+"\n", out)
	})

	t.Run("unresolved target", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, resolveCmd(), path, "missing/resource.txt")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("missing archive", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, resolveCmd(), filepath.Join(t.TempDir(), "absent.jar"), "x")
		assert.Error(t, err)
	})
}

func TestUnpackCommand(t *testing.T) {
	t.Parallel()

	path := outerJar(t)

	t.Run("all entries", func(t *testing.T) {
		t.Parallel()
		dest := t.TempDir()
		_, err := execute(t, unpackCmd(), path, dest)
		require.NoError(t, err)

		got, err := os.ReadFile(filepath.Join(dest, "notes.txt"))
		require.NoError(t, err)
		assert.Equal(t, []byte("plain notes"), got)

		got, err = os.ReadFile(filepath.Join(dest, "classes", "app.properties"))
		require.NoError(t, err)
		assert.Equal(t, []byte("k=v"), got)
	})

	t.Run("prefix filter", func(t *testing.T) {
		t.Parallel()
		dest := t.TempDir()
		_, err := execute(t, unpackCmd(), path, dest, "--prefix", "classes/")
		require.NoError(t, err)

		_, err = os.Stat(filepath.Join(dest, "classes", "app.properties"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dest, "notes.txt"))
		assert.True(t, os.IsNotExist(err), "entries outside the prefix stay unextracted")
	})

	t.Run("missing archive", func(t *testing.T) {
		t.Parallel()
		_, err := execute(t, unpackCmd(), filepath.Join(t.TempDir(), "absent.jar"), t.TempDir())
		assert.Error(t, err)
	})
}
