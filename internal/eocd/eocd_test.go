package eocd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nestjar/internal/data"
	"github.com/meigma/nestjar/internal/testutil"
	"github.com/meigma/nestjar/internal/ziptype"
)

func entries() []testutil.ZipEntry {
	return []testutil.ZipEntry{
		{Name: "a.txt", Data: []byte("alpha")},
		{Name: "b/c.txt", Data: []byte("charlie")},
	}
}

func TestFindComments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		comment string
	}{
		{"empty comment", ""},
		{"one byte comment", "x"},
		{"maximum comment", strings.Repeat("c", 0xFFFF)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := testutil.BuildZip(t, entries(), tt.comment)
			record, err := Find(data.NewByteData(b))
			require.NoError(t, err)
			assert.Equal(t, 2, record.NumberOfRecords())
			assert.Equal(t, tt.comment, record.Comment())
		})
	}
}

func TestFindSignatureLookalikeComment(t *testing.T) {
	t.Parallel()

	// A comment made entirely of EOCD signature bytes: only the size
	// equation identifies the true record.
	lookalike := bytes.Repeat([]byte{0x50, 0x4B, 0x05, 0x06}, 0xFFFF/4+1)[:0xFFFF]
	b := testutil.BuildZip(t, entries(), string(lookalike))
	record, err := Find(data.NewByteData(b))
	require.NoError(t, err)
	assert.Equal(t, 2, record.NumberOfRecords())
	assert.Equal(t, string(lookalike), record.Comment())
}

func TestStartOfArchive(t *testing.T) {
	t.Parallel()

	t.Run("no prefix", func(t *testing.T) {
		t.Parallel()
		d := data.NewByteData(testutil.BuildZip(t, entries(), ""))
		record, err := Find(d)
		require.NoError(t, err)
		assert.Equal(t, int64(0), record.StartOfArchive(d))
	})

	t.Run("1024 byte executable prefix", func(t *testing.T) {
		t.Parallel()
		prefix := bytes.Repeat([]byte{0xEB}, 1024)
		d := data.NewByteData(testutil.BuildZip(t, entries(), "", testutil.WithPrefix(prefix)))
		record, err := Find(d)
		require.NoError(t, err)
		assert.Equal(t, int64(1024), record.StartOfArchive(d))
	})
}

func TestFindNotAZip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		b    []byte
	}{
		{"empty", nil},
		{"tiny", []byte("PK")},
		{"no signature", bytes.Repeat([]byte{0xAA}, 4096)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Find(data.NewByteData(tt.b))
			assert.ErrorIs(t, err, ziptype.ErrNotZip)
		})
	}
}

func TestFindZip64(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts testutil.ManualOptions
	}{
		{"sentinel entry count", testutil.ManualOptions{Zip64: true, SentinelEntries: true}},
		{"sentinel cd size", testutil.ManualOptions{Zip64: true, SentinelCDSize: true}},
		{"sentinel cd offset", testutil.ManualOptions{Zip64: true, SentinelCDOffset: true}},
		{"locator without sentinels", testutil.ManualOptions{Zip64: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := testutil.BuildManualZip(t, "a.txt", []byte("hello"), tt.opts)
			d := data.NewByteData(b)
			record, err := Find(d)
			require.NoError(t, err)
			assert.True(t, record.IsZip64())
			assert.Equal(t, 1, record.NumberOfRecords())
			assert.Equal(t, int64(0), record.StartOfArchive(d))

			cd, err := record.CentralDirectory(d)
			require.NoError(t, err)
			head, err := cd.Read(0, 4)
			require.NoError(t, err)
			assert.Equal(t, []byte{0x50, 0x4B, 0x01, 0x02}, head)
		})
	}
}

func TestFindClassicIgnoresAbsentLocator(t *testing.T) {
	t.Parallel()

	b := testutil.BuildManualZip(t, "a.txt", []byte("hello"), testutil.ManualOptions{})
	record, err := Find(data.NewByteData(b))
	require.NoError(t, err)
	assert.False(t, record.IsZip64())
	assert.Equal(t, 1, record.NumberOfRecords())
}
