// Package index builds a name-addressable table over the entries of a ZIP
// central directory.
//
// The index keeps four parallel slices in directory order (name hash,
// header offset, name position, name length) plus a linear-probe hash table. Entry names
// are referenced in place within the central directory buffer; nothing is
// copied until an entry is materialized.
package index

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io/fs"
	"iter"
	"strings"

	"github.com/meigma/nestjar/internal/cd"
	"github.com/meigma/nestjar/internal/data"
	"github.com/meigma/nestjar/internal/ziptype"
)

// maxLoadFactor bounds probe table occupancy.
const maxLoadFactor = 0.75

// Entry is the materialized record for one archive entry.
//
// Two entries are equal when their full names are equal.
type Entry struct {
	Name              string
	Directory         bool
	Method            int
	Size              int64
	CompressedSize    int64
	CRC               uint32
	Time              uint32
	LocalHeaderOffset int64
	Extra             []byte
	Comment           string
}

// Index is the entry table of one archive. It is immutable after the
// central directory parse completes and safe for concurrent readers.
type Index struct {
	cd             []byte
	hashes         []uint32
	centralOffsets []int32
	namePositions  []int32
	nameLengths    []int32
	table          []int32
	signed         bool
}

// New returns an empty index ready to be attached to a central directory
// parse as a visitor.
func New() *Index {
	return &Index{}
}

// Interface compliance.
var _ cd.Visitor = (*Index)(nil)

// VisitStart implements cd.Visitor.
func (x *Index) VisitStart(entryCount int, cdData []byte) {
	x.cd = cdData
	x.hashes = make([]uint32, 0, entryCount)
	x.centralOffsets = make([]int32, 0, entryCount)
	x.namePositions = make([]int32, 0, entryCount)
	x.nameLengths = make([]int32, 0, entryCount)
}

// VisitFileHeader implements cd.Visitor.
func (x *Index) VisitFileHeader(h cd.Header) {
	nameOff, nameLen := h.NameOffset()
	name := h.NameBytes()
	x.hashes = append(x.hashes, hashName(name))
	x.centralOffsets = append(x.centralOffsets, int32(h.Offset()))
	x.namePositions = append(x.namePositions, int32(nameOff))
	x.nameLengths = append(x.nameLengths, int32(nameLen))
	if bytes.HasPrefix(name, []byte("META-INF/")) && bytes.HasSuffix(name, []byte(".SF")) {
		x.signed = true
	}
}

// VisitEnd implements cd.Visitor. It builds the probe table.
func (x *Index) VisitEnd() {
	size := 1
	for float64(len(x.hashes)) > maxLoadFactor*float64(size) {
		size <<= 1
	}
	x.table = make([]int32, size)
	for i := range x.table {
		x.table[i] = -1
	}
	mask := uint32(size - 1)
	for i, h := range x.hashes {
		slot := h & mask
		for x.table[slot] != -1 {
			slot = (slot + 1) & mask
		}
		x.table[slot] = int32(i)
	}
}

// hashName computes the case-sensitive 32-bit FNV-1a hash of a name as
// stored in the central directory.
func hashName(name []byte) uint32 {
	const (
		offset32 = 2166136261
		prime32  = 16777619
	)
	h := uint32(offset32)
	for _, b := range name {
		h ^= uint32(b)
		h *= prime32
	}
	return h
}

// Len returns the number of entries.
func (x *Index) Len() int {
	return len(x.hashes)
}

// Signed reports whether any entry looks like a signature file
// (META-INF/*.SF). Signed state is informational only.
func (x *Index) Signed() bool {
	return x.signed
}

// nameAt returns entry i's name bytes, aliasing the directory buffer.
func (x *Index) nameAt(i int) []byte {
	pos := x.namePositions[i]
	return x.cd[pos : pos+x.nameLengths[i]]
}

// position finds the directory-order position of name, or -1.
func (x *Index) position(name string) int {
	if len(x.table) == 0 {
		return -1
	}
	h := hashName([]byte(name))
	mask := uint32(len(x.table) - 1)
	for slot := h & mask; ; slot = (slot + 1) & mask {
		i := x.table[slot]
		if i == -1 {
			return -1
		}
		if x.hashes[i] == h && string(x.nameAt(int(i))) == name {
			return int(i)
		}
	}
}

// Contains reports whether an entry with the given full name exists.
// A slash-terminated directory name and its bare counterpart are distinct.
func (x *Index) Contains(name string) bool {
	return x.position(name) >= 0
}

// Get returns the materialized entry for name.
func (x *Index) Get(name string) (Entry, bool) {
	i := x.position(name)
	if i < 0 {
		return Entry{}, false
	}
	e, err := x.materialize(i)
	if err != nil {
		return Entry{}, false
	}
	return e, true
}

// Resolve returns the entry for name, distinguishing absence
// (fs.ErrNotExist) from a malformed header.
func (x *Index) Resolve(name string) (Entry, error) {
	i := x.position(name)
	if i < 0 {
		return Entry{}, fmt.Errorf("entry %q: %w", name, fs.ErrNotExist)
	}
	return x.materialize(i)
}

// materialize decodes entry i, resolving ZIP64 fields.
func (x *Index) materialize(i int) (Entry, error) {
	h := cd.HeaderForOffset(x.cd, int(x.centralOffsets[i]))
	size, err := h.UncompressedSize()
	if err != nil {
		return Entry{}, err
	}
	compressed, err := h.CompressedSize()
	if err != nil {
		return Entry{}, err
	}
	localOffset, err := h.LocalHeaderOffset()
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Name:              string(x.nameAt(i)),
		Directory:         h.IsDirectory(),
		Method:            h.Method(),
		Size:              size,
		CompressedSize:    compressed,
		CRC:               h.CRC(),
		Time:              h.Time(),
		LocalHeaderOffset: localOffset,
		Extra:             h.Extra(),
		Comment:           h.Comment(),
	}, nil
}

// Entries iterates the materialized entries in central directory order.
// Entries whose headers cannot be decoded are skipped.
func (x *Index) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for i := range x.hashes {
			e, err := x.materialize(i)
			if err != nil {
				continue
			}
			if !yield(e) {
				return
			}
		}
	}
}

// EntriesWithPrefix iterates entries whose names begin with prefix, with
// the prefix stripped. The bare prefix entry itself is skipped.
func (x *Index) EntriesWithPrefix(prefix string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for e := range x.Entries() {
			if !strings.HasPrefix(e.Name, prefix) || len(e.Name) == len(prefix) {
				continue
			}
			e.Name = e.Name[len(prefix):]
			if !yield(e) {
				return
			}
		}
	}
}

// Payload returns the byte range of an entry's stored data within
// archiveData, reading the local file header to account for local name and
// extra lengths that may differ from the central values.
func (x *Index) Payload(archiveData data.RandomAccessData, e Entry) (offset, length int64, err error) {
	local, err := archiveData.Read(e.LocalHeaderOffset, ziptype.LocalFileHeaderSize)
	if err != nil {
		return 0, 0, fmt.Errorf("local header of %q: %w", e.Name, err)
	}
	if binary.LittleEndian.Uint32(local) != ziptype.SigLocalFileHeader {
		return 0, 0, fmt.Errorf("local header signature of %q: %w", e.Name, ziptype.ErrMalformed)
	}
	localNameLen := int64(binary.LittleEndian.Uint16(local[26:]))
	localExtraLen := int64(binary.LittleEndian.Uint16(local[28:]))
	offset = e.LocalHeaderOffset + ziptype.LocalFileHeaderSize + localNameLen + localExtraLen
	length = e.CompressedSize
	if offset+length > archiveData.Size() {
		return 0, 0, fmt.Errorf("payload of %q at [%d, %d) exceeds archive size %d: %w",
			e.Name, offset, offset+length, archiveData.Size(), ziptype.ErrMalformed)
	}
	return offset, length, nil
}
