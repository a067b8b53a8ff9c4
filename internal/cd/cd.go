// Package cd walks the central directory of a ZIP archive, emitting visitor
// events for each file header.
//
// Headers are exposed as views over the central directory buffer: field
// accessors decode on demand and names are referenced in place rather than
// copied out.
package cd

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/meigma/nestjar/internal/data"
	"github.com/meigma/nestjar/internal/eocd"
	"github.com/meigma/nestjar/internal/ziptype"
)

// Visitor receives central directory parse events.
//
// VisitStart is called once with the resolved entry count and the buffered
// central directory bytes, VisitFileHeader once per entry in directory
// order, and VisitEnd once after the final entry. Multiple visitors are
// invoked in registration order.
type Visitor interface {
	VisitStart(entryCount int, cdData []byte)
	VisitFileHeader(header Header)
	VisitEnd()
}

// Parse buffers the central directory identified by record and walks its
// file headers, notifying each visitor.
//
// It returns the archive data narrowed to the archive start, so callers can
// resolve entry payloads against the same base the directory offsets use.
func Parse(d data.RandomAccessData, record *eocd.Record, visitors ...Visitor) (data.RandomAccessData, error) {
	start := record.StartOfArchive(d)
	if start < 0 || start > d.Size() {
		return nil, fmt.Errorf("archive start offset %d: %w", start, ziptype.ErrMalformed)
	}
	archiveData, err := d.Subsection(start, d.Size()-start)
	if err != nil {
		return nil, err
	}
	cdRange, err := record.CentralDirectory(archiveData)
	if err != nil {
		return nil, err
	}
	cdData, err := cdRange.Read(0, cdRange.Size())
	if err != nil {
		return nil, fmt.Errorf("read central directory: %w", err)
	}

	count := record.NumberOfRecords()
	for _, v := range visitors {
		v.VisitStart(count, cdData)
	}
	offset := 0
	for i := 0; i < count; i++ {
		h, err := headerAt(cdData, offset)
		if err != nil {
			return nil, fmt.Errorf("central directory entry %d: %w", i, err)
		}
		for _, v := range visitors {
			v.VisitFileHeader(h)
		}
		offset += h.Len()
	}
	for _, v := range visitors {
		v.VisitEnd()
	}
	return archiveData, nil
}

// headerAt validates and returns the header view at offset within cdData.
func headerAt(cdData []byte, offset int) (Header, error) {
	if offset+ziptype.CentralFileHeaderSize > len(cdData) {
		return Header{}, fmt.Errorf("header at %d exceeds directory size %d: %w",
			offset, len(cdData), ziptype.ErrMalformed)
	}
	h := Header{data: cdData, offset: offset}
	if binary.LittleEndian.Uint32(cdData[offset:]) != ziptype.SigCentralFileHeader {
		return Header{}, fmt.Errorf("header signature at %d: %w", offset, ziptype.ErrMalformed)
	}
	if offset+h.Len() > len(cdData) {
		return Header{}, fmt.Errorf("header at %d exceeds directory size %d: %w",
			offset, len(cdData), ziptype.ErrMalformed)
	}
	return h, nil
}

// HeaderForOffset returns a header view anchored at offset within cdData.
// The offset must have been produced by a previous parse of the same buffer.
func HeaderForOffset(cdData []byte, offset int) Header {
	return Header{data: cdData, offset: offset}
}

// Header is a view of one central directory file header.
//
// The view aliases the central directory buffer; it is valid for as long as
// the buffer is.
type Header struct {
	data   []byte
	offset int
}

// Central directory file header field offsets.
const (
	fieldMethod            = 10
	fieldTime              = 12
	fieldCRC               = 16
	fieldCompressedSize    = 20
	fieldUncompressedSize  = 24
	fieldNameLength        = 28
	fieldExtraLength       = 30
	fieldCommentLength     = 32
	fieldLocalHeaderOffset = 42
)

func (h Header) u16(field int) int {
	return int(binary.LittleEndian.Uint16(h.data[h.offset+field:]))
}

func (h Header) u32(field int) uint32 {
	return binary.LittleEndian.Uint32(h.data[h.offset+field:])
}

// Offset returns the header's position within the central directory buffer.
func (h Header) Offset() int {
	return h.offset
}

// Len returns the total header size including the variable tail.
func (h Header) Len() int {
	return ziptype.CentralFileHeaderSize + h.u16(fieldNameLength) + h.u16(fieldExtraLength) + h.u16(fieldCommentLength)
}

// Method returns the compression method.
func (h Header) Method() int {
	return h.u16(fieldMethod)
}

// Time returns the raw DOS date/time field.
func (h Header) Time() uint32 {
	return h.u32(fieldTime)
}

// CRC returns the CRC-32 of the uncompressed entry data.
func (h Header) CRC() uint32 {
	return h.u32(fieldCRC)
}

// NameBytes returns the entry name, aliasing the directory buffer.
func (h Header) NameBytes() []byte {
	start := h.offset + ziptype.CentralFileHeaderSize
	return h.data[start : start+h.u16(fieldNameLength)]
}

// NameOffset returns the position and length of the name within the
// directory buffer.
func (h Header) NameOffset() (offset, length int) {
	return h.offset + ziptype.CentralFileHeaderSize, h.u16(fieldNameLength)
}

// Extra returns the extra field bytes, aliasing the directory buffer.
func (h Header) Extra() []byte {
	start := h.offset + ziptype.CentralFileHeaderSize + h.u16(fieldNameLength)
	return h.data[start : start+h.u16(fieldExtraLength)]
}

// Comment returns the entry comment.
func (h Header) Comment() string {
	start := h.offset + ziptype.CentralFileHeaderSize + h.u16(fieldNameLength) + h.u16(fieldExtraLength)
	return string(h.data[start : start+h.u16(fieldCommentLength)])
}

// IsDirectory reports whether the entry is a directory. An entry is a
// directory iff its name ends in a slash.
func (h Header) IsDirectory() bool {
	name := h.NameBytes()
	return len(name) > 0 && name[len(name)-1] == '/'
}

// CompressedSize returns the compressed size, resolving the ZIP64 extra
// block when the classic field is a sentinel.
func (h Header) CompressedSize() (int64, error) {
	return h.sizeField(fieldCompressedSize)
}

// UncompressedSize returns the uncompressed size, resolving the ZIP64 extra
// block when the classic field is a sentinel.
func (h Header) UncompressedSize() (int64, error) {
	return h.sizeField(fieldUncompressedSize)
}

func (h Header) sizeField(field int) (int64, error) {
	v := h.u32(field)
	if v != ziptype.Sentinel32 {
		return int64(v), nil
	}
	z, err := h.zip64Fields()
	if err != nil {
		return 0, err
	}
	if field == fieldCompressedSize {
		return z.compressedSize, nil
	}
	return z.uncompressedSize, nil
}

// LocalHeaderOffset returns the local file header offset, resolving the
// ZIP64 extra block when the classic field is a sentinel.
func (h Header) LocalHeaderOffset() (int64, error) {
	v := h.u32(fieldLocalHeaderOffset)
	if v != ziptype.Sentinel32 {
		return int64(v), nil
	}
	z, err := h.zip64Fields()
	if err != nil {
		return 0, err
	}
	return z.localHeaderOffset, nil
}

type zip64Fields struct {
	uncompressedSize  int64
	compressedSize    int64
	localHeaderOffset int64
}

// zip64Fields parses the ZIP64 extended information extra block. Each
// sentinel field of the classic record consumes eight bytes of the block,
// in the fixed order uncompressed size, compressed size, local header
// offset (APPNOTE 4.5.3).
func (h Header) zip64Fields() (zip64Fields, error) {
	extra := h.Extra()
	for off := 0; off+4 <= len(extra); {
		id := int(binary.LittleEndian.Uint16(extra[off:]))
		length := int(binary.LittleEndian.Uint16(extra[off+2:]))
		off += 4
		if off+length > len(extra) {
			break
		}
		if id != ziptype.Zip64ExtraID {
			off += length
			continue
		}
		var z zip64Fields
		block := extra[off : off+length]
		pos := 0
		next := func() (int64, error) {
			if pos+8 > len(block) {
				return 0, fmt.Errorf("zip64 extra block too short for entry %q: %w",
					h.NameBytes(), ziptype.ErrMalformed)
			}
			v := int64(binary.LittleEndian.Uint64(block[pos:]))
			pos += 8
			return v, nil
		}
		var err error
		z.uncompressedSize = int64(h.u32(fieldUncompressedSize))
		if h.u32(fieldUncompressedSize) == ziptype.Sentinel32 {
			if z.uncompressedSize, err = next(); err != nil {
				return z, err
			}
		}
		z.compressedSize = int64(h.u32(fieldCompressedSize))
		if h.u32(fieldCompressedSize) == ziptype.Sentinel32 {
			if z.compressedSize, err = next(); err != nil {
				return z, err
			}
		}
		z.localHeaderOffset = int64(h.u32(fieldLocalHeaderOffset))
		if h.u32(fieldLocalHeaderOffset) == ziptype.Sentinel32 {
			if z.localHeaderOffset, err = next(); err != nil {
				return z, err
			}
		}
		return z, nil
	}
	return zip64Fields{}, fmt.Errorf("zip64 extra block missing for entry %q: %w",
		h.NameBytes(), ziptype.ErrMalformed)
}

// HasName reports whether the header's name equals name, or name plus a
// trailing slash.
func (h Header) HasName(name string) bool {
	nb := h.NameBytes()
	if len(nb) == len(name) {
		return string(nb) == name
	}
	if len(nb) == len(name)+1 && nb[len(nb)-1] == '/' {
		return bytes.Equal(nb[:len(name)], []byte(name))
	}
	return false
}
