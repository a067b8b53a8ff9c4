// Package eocd locates the end of central directory record of a ZIP
// archive, including the ZIP64 variants, by scanning backwards from the
// end of the data.
//
// The scan tolerates archive comments that contain bytes resembling the
// EOCD signature: a candidate window is only accepted when its comment
// length field agrees with the window size.
package eocd

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/nestjar/internal/data"
	"github.com/meigma/nestjar/internal/ziptype"
)

// readBlockSize is the granularity of the backwards scan.
const readBlockSize = 256

// commentLengthOffset is the offset of the comment length field within the
// EOCD record.
const commentLengthOffset = 20

// Record is a located end of central directory record.
//
// When a ZIP64 locator precedes the classic record, the entry count and
// central directory range come from the ZIP64 end record instead of the
// classic fields.
type Record struct {
	block  []byte
	offset int
	size   int64
	zip64  *zip64End
}

// Find locates the EOCD record of d, scanning backwards from the end.
// It returns ErrNotZip when no valid record exists within the
// format-permitted range.
func Find(d data.RandomAccessData) (*Record, error) {
	r := &Record{size: ziptype.EOCDMinSize}
	block, err := blockFromEnd(d, readBlockSize)
	if err != nil {
		return nil, err
	}
	r.block = block
	r.offset = len(r.block) - int(r.size)
	for !r.isValid() {
		r.size++
		if r.size > int64(len(r.block)) {
			if r.size >= ziptype.EOCDMaxSize || r.size > d.Size() {
				return nil, fmt.Errorf("no end of central directory record in final %d bytes: %w",
					r.size, ziptype.ErrNotZip)
			}
			if r.block, err = blockFromEnd(d, r.size+readBlockSize); err != nil {
				return nil, err
			}
		}
		r.offset = len(r.block) - int(r.size)
	}

	start := d.Size() - r.size
	loc, err := findZip64Locator(d, start)
	if err != nil {
		return nil, err
	}
	if loc != nil {
		if r.zip64, err = readZip64End(d, loc); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// blockFromEnd reads the trailing min(size, d.Size()) bytes of d.
func blockFromEnd(d data.RandomAccessData, size int64) ([]byte, error) {
	length := min(d.Size(), size)
	return d.Read(d.Size()-length, length)
}

// isValid reports whether the current window is a well-formed EOCD record:
// the signature matches and the record size equals the fixed part plus the
// stored comment length.
func (r *Record) isValid() bool {
	if r.offset < 0 || len(r.block) < ziptype.EOCDMinSize {
		return false
	}
	if binary.LittleEndian.Uint32(r.block[r.offset:]) != ziptype.SigEOCD {
		return false
	}
	commentLength := binary.LittleEndian.Uint16(r.block[r.offset+commentLengthOffset:])
	return r.size == ziptype.EOCDMinSize+int64(commentLength)
}

// StartOfArchive returns the offset within d at which the archive actually
// begins. The offset is non-zero when prefix bytes (typically a launch
// stub) precede the archive: a prepended stub shifts every absolute offset
// by a constant, while the stored central directory offset remains relative
// to the logical archive start.
func (r *Record) StartOfArchive(d data.RandomAccessData) int64 {
	cdSize := int64(binary.LittleEndian.Uint32(r.block[r.offset+12:]))
	cdOffset := int64(binary.LittleEndian.Uint32(r.block[r.offset+16:]))
	var zip64EndSize, zip64LocSize int64
	if r.zip64 != nil {
		cdSize = r.zip64.cdSize
		cdOffset = r.zip64.cdOffset
		zip64EndSize = r.zip64.size
		zip64LocSize = ziptype.Zip64LocatorSize
	}
	actual := d.Size() - r.size - cdSize - zip64EndSize - zip64LocSize
	return actual - cdOffset
}

// CentralDirectory returns the central directory range of archiveData,
// which must already be narrowed to the archive start.
func (r *Record) CentralDirectory(archiveData data.RandomAccessData) (data.RandomAccessData, error) {
	var offset, length int64
	if r.zip64 != nil {
		offset, length = r.zip64.cdOffset, r.zip64.cdSize
	} else {
		offset = int64(binary.LittleEndian.Uint32(r.block[r.offset+16:]))
		length = int64(binary.LittleEndian.Uint32(r.block[r.offset+12:]))
	}
	sub, err := archiveData.Subsection(offset, length)
	if err != nil {
		return nil, fmt.Errorf("central directory range [%d, %d): %w", offset, offset+length, ziptype.ErrMalformed)
	}
	return sub, nil
}

// NumberOfRecords returns the total entry count.
func (r *Record) NumberOfRecords() int {
	if r.zip64 != nil {
		return int(r.zip64.numberOfRecords)
	}
	return int(binary.LittleEndian.Uint16(r.block[r.offset+10:]))
}

// Comment returns the archive comment.
func (r *Record) Comment() string {
	commentLength := int(binary.LittleEndian.Uint16(r.block[r.offset+commentLengthOffset:]))
	start := r.offset + commentLengthOffset + 2
	return string(r.block[start : start+commentLength])
}

// IsZip64 reports whether a ZIP64 end record governs this archive.
func (r *Record) IsZip64() bool {
	return r.zip64 != nil
}

// zip64End is a parsed ZIP64 end of central directory record.
type zip64End struct {
	cdOffset        int64
	cdSize          int64
	numberOfRecords int64
	size            int64
}

// ZIP64 end record field offsets.
const (
	zip64EndTotalEntries = 32
	zip64EndCDSize       = 40
	zip64EndCDOffset     = 48
)

// zip64LocatorEndOffset is the offset of the "offset of zip64 end" field
// within the locator.
const zip64LocatorEndOffset = 8

type zip64Locator struct {
	offset    int64
	endOffset int64
}

// findZip64Locator looks for the ZIP64 locator in the 20 bytes preceding
// the classic EOCD record. Absence is not an error.
func findZip64Locator(d data.RandomAccessData, eocdStart int64) (*zip64Locator, error) {
	offset := eocdStart - ziptype.Zip64LocatorSize
	if offset < 0 {
		return nil, nil
	}
	block, err := d.Read(offset, ziptype.Zip64LocatorSize)
	if err != nil {
		return nil, err
	}
	if binary.LittleEndian.Uint32(block) != ziptype.SigZip64Locator {
		return nil, nil
	}
	return &zip64Locator{
		offset:    offset,
		endOffset: int64(binary.LittleEndian.Uint64(block[zip64LocatorEndOffset:])),
	}, nil
}

// readZip64End dereferences a locator and parses the ZIP64 end record.
func readZip64End(d data.RandomAccessData, loc *zip64Locator) (*zip64End, error) {
	block, err := d.Read(loc.endOffset, ziptype.Zip64EndMinSize)
	if err != nil {
		return nil, fmt.Errorf("zip64 end record at %d: %w", loc.endOffset, ziptype.ErrMalformed)
	}
	if binary.LittleEndian.Uint32(block) != ziptype.SigZip64End {
		return nil, fmt.Errorf("zip64 end record signature at %d: %w", loc.endOffset, ziptype.ErrMalformed)
	}
	return &zip64End{
		numberOfRecords: int64(binary.LittleEndian.Uint64(block[zip64EndTotalEntries:])),
		cdSize:          int64(binary.LittleEndian.Uint64(block[zip64EndCDSize:])),
		cdOffset:        int64(binary.LittleEndian.Uint64(block[zip64EndCDOffset:])),
		size:            loc.offset - loc.endOffset,
	}, nil
}
