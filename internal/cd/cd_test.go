package cd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/nestjar/internal/data"
	"github.com/meigma/nestjar/internal/eocd"
	"github.com/meigma/nestjar/internal/testutil"
	"github.com/meigma/nestjar/internal/ziptype"
)

// collector records the visitor events of one parse.
type collector struct {
	startCount int
	cdData     []byte
	headers    []Header
	ended      bool
	log        *[]string
	name       string
}

func (c *collector) VisitStart(entryCount int, cdData []byte) {
	c.startCount = entryCount
	c.cdData = cdData
	if c.log != nil {
		*c.log = append(*c.log, c.name+":start")
	}
}

func (c *collector) VisitFileHeader(h Header) {
	c.headers = append(c.headers, h)
	if c.log != nil {
		*c.log = append(*c.log, c.name+":header")
	}
}

func (c *collector) VisitEnd() {
	c.ended = true
	if c.log != nil {
		*c.log = append(*c.log, c.name+":end")
	}
}

// parseHeaders runs a parse over raw archive bytes and returns the
// collected events.
func parseHeaders(tb testing.TB, b []byte) *collector {
	tb.Helper()
	d := data.NewByteData(b)
	record, err := eocd.Find(d)
	require.NoError(tb, err, "locate EOCD")
	c := &collector{}
	_, err = Parse(d, record, c)
	require.NoError(tb, err, "parse central directory")
	return c
}

func TestParseVisitsHeadersInOrder(t *testing.T) {
	t.Parallel()

	b := testutil.BuildZip(t, []testutil.ZipEntry{
		{Name: "a.txt", Data: []byte("alpha")},
		{Name: "dir/"},
		{Name: "dir/b.bin", Data: []byte{1, 2, 3}, Deflate: true},
	}, "")
	c := parseHeaders(t, b)

	assert.Equal(t, 3, c.startCount)
	assert.True(t, c.ended)
	require.Len(t, c.headers, 3)

	var names []string
	for _, h := range c.headers {
		names = append(names, string(h.NameBytes()))
	}
	assert.Equal(t, []string{"a.txt", "dir/", "dir/b.bin"}, names)
}

func TestParseMultipleVisitors(t *testing.T) {
	t.Parallel()

	b := testutil.BuildZip(t, []testutil.ZipEntry{{Name: "x", Data: []byte("x")}}, "")
	d := data.NewByteData(b)
	record, err := eocd.Find(d)
	require.NoError(t, err)

	var log []string
	first := &collector{log: &log, name: "first"}
	second := &collector{log: &log, name: "second"}
	_, err = Parse(d, record, first, second)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"first:start", "second:start",
		"first:header", "second:header",
		"first:end", "second:end",
	}, log, "visitors run in registration order at each event")
}

func TestHeaderFields(t *testing.T) {
	t.Parallel()

	b := testutil.BuildZip(t, []testutil.ZipEntry{
		{Name: "data.bin", Data: []byte("payload"), Deflate: true, Comment: "entry note"},
		{Name: "sub/"},
	}, "")
	c := parseHeaders(t, b)
	require.Len(t, c.headers, 2)

	h := c.headers[0]
	assert.Equal(t, ziptype.MethodDeflated, h.Method())
	assert.Equal(t, "entry note", h.Comment())
	assert.False(t, h.IsDirectory())
	size, err := h.UncompressedSize()
	require.NoError(t, err)
	assert.Equal(t, int64(7), size)

	assert.True(t, c.headers[1].IsDirectory())

	t.Run("has name", func(t *testing.T) {
		assert.True(t, h.HasName("data.bin"))
		assert.False(t, h.HasName("data"))
		assert.True(t, c.headers[1].HasName("sub"))
	})
}

func TestZip64EntrySentinels(t *testing.T) {
	t.Parallel()

	content := []byte("zip64 entry content")
	lead := bytes.Repeat([]byte{0xA5}, 64)

	tests := []struct {
		name string
		opts testutil.ManualOptions
	}{
		{"uncompressed size", testutil.ManualOptions{
			LeadingBytes: lead, EntrySentinelUncompressed: true,
		}},
		{"compressed size", testutil.ManualOptions{
			LeadingBytes: lead, EntrySentinelCompressed: true,
		}},
		{"local offset", testutil.ManualOptions{
			LeadingBytes: lead, EntrySentinelOffset: true,
		}},
		{"all three", testutil.ManualOptions{
			LeadingBytes:              lead,
			EntrySentinelUncompressed: true,
			EntrySentinelCompressed:   true,
			EntrySentinelOffset:       true,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := parseHeaders(t, testutil.BuildManualZip(t, "e.bin", content, tt.opts))
			require.Len(t, c.headers, 1)
			h := c.headers[0]

			// Every accessor resolves the true value regardless of which
			// classic fields are sentinels; each sentinel field consumes
			// eight bytes of the 0x0001 block in fixed order.
			size, err := h.UncompressedSize()
			require.NoError(t, err)
			assert.Equal(t, int64(len(content)), size)

			compressed, err := h.CompressedSize()
			require.NoError(t, err)
			assert.Equal(t, int64(len(content)), compressed)

			offset, err := h.LocalHeaderOffset()
			require.NoError(t, err)
			assert.Equal(t, int64(len(lead)), offset)
		})
	}
}

func TestZip64ExtraMissing(t *testing.T) {
	t.Parallel()

	b := testutil.BuildManualZip(t, "e.bin", []byte("content"), testutil.ManualOptions{
		EntrySentinelOffset: true,
		OmitEntryZip64:      true,
	})
	c := parseHeaders(t, b)
	require.Len(t, c.headers, 1)

	_, err := c.headers[0].LocalHeaderOffset()
	assert.ErrorIs(t, err, ziptype.ErrMalformed)
}

func TestZip64ExtraTruncated(t *testing.T) {
	t.Parallel()

	// The block declares eight bytes but two sentinel fields need sixteen.
	b := testutil.BuildManualZip(t, "e.bin", []byte("content"), testutil.ManualOptions{
		EntrySentinelUncompressed: true,
		EntrySentinelCompressed:   true,
		EntryZip64Data:            make([]byte, 8),
	})
	c := parseHeaders(t, b)
	require.Len(t, c.headers, 1)

	_, err := c.headers[0].CompressedSize()
	assert.ErrorIs(t, err, ziptype.ErrMalformed)
}

func TestZip64ExtraAfterForeignBlock(t *testing.T) {
	t.Parallel()

	// A foreign extra block precedes the ZIP64 one; the scan must skip it
	// by its declared length.
	content := []byte("skip foreign block")
	b := testutil.BuildManualZip(t, "e.bin", content, testutil.ManualOptions{
		CentralExtra:              []byte{0x99, 0x00, 0x04, 0x00, 1, 2, 3, 4},
		EntrySentinelUncompressed: true,
	})
	c := parseHeaders(t, b)
	require.Len(t, c.headers, 1)

	size, err := c.headers[0].UncompressedSize()
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), size)
}

func TestParseMalformedHeader(t *testing.T) {
	t.Parallel()

	b := testutil.BuildZip(t, []testutil.ZipEntry{{Name: "ok.txt", Data: []byte("ok")}}, "")

	// Corrupt the central file header signature.
	sig := []byte{0x50, 0x4B, 0x01, 0x02}
	pos := bytes.Index(b, sig)
	require.GreaterOrEqual(t, pos, 0)
	mangled := append([]byte{}, b...)
	mangled[pos+3] = 0x7F

	d := data.NewByteData(mangled)
	record, err := eocd.Find(d)
	require.NoError(t, err)
	_, err = Parse(d, record, &collector{})
	assert.ErrorIs(t, err, ziptype.ErrMalformed)
}
