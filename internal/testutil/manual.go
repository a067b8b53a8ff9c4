package testutil

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"
)

// ManualOptions configures BuildManualZip.
type ManualOptions struct {
	// LeadingBytes are written before the local file header, shifting the
	// entry's local header offset away from zero. Unlike a prefix applied
	// with WithPrefix, the stored offsets account for these bytes.
	LeadingBytes []byte

	// LocalExtra is written only to the local file header, so the local and
	// central extra lengths diverge.
	LocalExtra []byte

	// CentralExtra is written only to the central directory header.
	CentralExtra []byte

	// Zip64 appends a ZIP64 end record and locator before the EOCD.
	Zip64 bool

	// Sentinel selectors for the classic EOCD fields. Each requires Zip64.
	SentinelEntries  bool
	SentinelCDSize   bool
	SentinelCDOffset bool

	// Sentinel selectors for the classic central file header fields. Each
	// selected field is written as 0xFFFFFFFF with its true value moved to
	// a ZIP64 (0x0001) extra block appended after CentralExtra, eight bytes
	// per field in the order uncompressed, compressed, local offset.
	EntrySentinelUncompressed bool
	EntrySentinelCompressed   bool
	EntrySentinelOffset       bool

	// EntryZip64Data replaces the generated ZIP64 extra block payload, for
	// malformed-block fixtures. Ignored unless an entry sentinel is set.
	EntryZip64Data []byte

	// OmitEntryZip64 writes the entry sentinels without any ZIP64 extra
	// block at all.
	OmitEntryZip64 bool

	// Comment is the archive comment.
	Comment string
}

// entryZip64Extra builds the 0x0001 extra block for the selected entry
// sentinels.
func (o ManualOptions) entryZip64Extra(content []byte) []byte {
	if !o.EntrySentinelUncompressed && !o.EntrySentinelCompressed && !o.EntrySentinelOffset {
		return nil
	}
	if o.OmitEntryZip64 {
		return nil
	}
	payload := o.EntryZip64Data
	if payload == nil {
		var fields []uint64
		if o.EntrySentinelUncompressed {
			fields = append(fields, uint64(len(content)))
		}
		if o.EntrySentinelCompressed {
			fields = append(fields, uint64(len(content)))
		}
		if o.EntrySentinelOffset {
			fields = append(fields, uint64(len(o.LeadingBytes)))
		}
		payload = make([]byte, 8*len(fields))
		for i, v := range fields {
			binary.LittleEndian.PutUint64(payload[8*i:], v)
		}
	}
	block := make([]byte, 4, 4+len(payload))
	binary.LittleEndian.PutUint16(block, 0x0001)
	binary.LittleEndian.PutUint16(block[2:], uint16(len(payload)))
	return append(block, payload...)
}

// BuildManualZip assembles a single stored-entry archive byte by byte,
// covering layouts the standard writer cannot produce.
func BuildManualZip(tb testing.TB, name string, content []byte, o ManualOptions) []byte {
	tb.Helper()
	if (o.SentinelEntries || o.SentinelCDSize || o.SentinelCDOffset) && !o.Zip64 {
		tb.Fatal("sentinel fields require Zip64")
	}
	crc := crc32.ChecksumIEEE(content)
	var buf bytes.Buffer
	w := func(v any) {
		if err := binary.Write(&buf, binary.LittleEndian, v); err != nil {
			tb.Fatal(err)
		}
	}

	buf.Write(o.LeadingBytes)
	localOffset := buf.Len()

	// Local file header.
	w(uint32(0x04034b50))
	w(uint16(20)) // version needed
	w(uint16(0))  // flags
	w(uint16(0))  // method: stored
	w(uint32(0))  // dos time
	w(crc)
	w(uint32(len(content))) // compressed
	w(uint32(len(content))) // uncompressed
	w(uint16(len(name)))
	w(uint16(len(o.LocalExtra)))
	buf.WriteString(name)
	buf.Write(o.LocalExtra)
	buf.Write(content)

	cdOffset := buf.Len()

	centralExtra := append(append([]byte{}, o.CentralExtra...), o.entryZip64Extra(content)...)
	usize32 := uint32(len(content))
	if o.EntrySentinelUncompressed {
		usize32 = 0xFFFFFFFF
	}
	csize32 := uint32(len(content))
	if o.EntrySentinelCompressed {
		csize32 = 0xFFFFFFFF
	}
	localOffset32 := uint32(localOffset)
	if o.EntrySentinelOffset {
		localOffset32 = 0xFFFFFFFF
	}

	// Central directory file header.
	w(uint32(0x02014b50))
	w(uint16(20)) // version made by
	w(uint16(20)) // version needed
	w(uint16(0))  // flags
	w(uint16(0))  // method
	w(uint32(0))  // dos time
	w(crc)
	w(csize32)
	w(usize32)
	w(uint16(len(name)))
	w(uint16(len(centralExtra)))
	w(uint16(0)) // comment length
	w(uint16(0)) // disk number
	w(uint16(0)) // internal attrs
	w(uint32(0)) // external attrs
	w(localOffset32)
	buf.WriteString(name)
	buf.Write(centralExtra)

	cdSize := buf.Len() - cdOffset

	if o.Zip64 {
		zip64EndOffset := buf.Len()
		w(uint32(0x06064b50))
		w(uint64(44)) // size of remainder
		w(uint16(45)) // version made by
		w(uint16(45)) // version needed
		w(uint32(0))  // disk number
		w(uint32(0))  // cd start disk
		w(uint64(1))  // entries on disk
		w(uint64(1))  // entries total
		w(uint64(cdSize))
		w(uint64(cdOffset))

		w(uint32(0x07064b50))
		w(uint32(0)) // cd end disk
		w(uint64(zip64EndOffset))
		w(uint32(1)) // total disks
	}

	// Classic EOCD, with requested sentinels.
	entries := uint16(1)
	if o.SentinelEntries {
		entries = 0xFFFF
	}
	size32 := uint32(cdSize)
	if o.SentinelCDSize {
		size32 = 0xFFFFFFFF
	}
	offset32 := uint32(cdOffset)
	if o.SentinelCDOffset {
		offset32 = 0xFFFFFFFF
	}
	w(uint32(0x06054b50))
	w(uint16(0)) // disk number
	w(uint16(0)) // cd start disk
	w(entries)   // entries on disk
	w(entries)   // entries total
	w(size32)
	w(offset32)
	w(uint16(len(o.Comment)))
	buf.WriteString(o.Comment)

	return buf.Bytes()
}
