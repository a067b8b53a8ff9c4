// Package ziptype defines the ZIP record layouts, signatures, and sentinel
// errors shared by the archive parsing packages.
//
// All multi-byte integers in the ZIP format are little-endian. Record
// layouts follow the PKWARE APPNOTE specification.
package ziptype

import "errors"

// Record signatures.
const (
	// SigEOCD marks the end of central directory record ("PK\x05\x06").
	SigEOCD = 0x06054b50

	// SigZip64Locator marks the ZIP64 end of central directory locator ("PK\x06\x07").
	SigZip64Locator = 0x07064b50

	// SigZip64End marks the ZIP64 end of central directory record ("PK\x06\x06").
	SigZip64End = 0x06064b50

	// SigCentralFileHeader marks a central directory file header ("PK\x01\x02").
	SigCentralFileHeader = 0x02014b50

	// SigLocalFileHeader marks a local file header ("PK\x03\x04").
	SigLocalFileHeader = 0x04034b50
)

// Fixed record sizes.
const (
	// EOCDMinSize is the size of an EOCD record with an empty comment.
	EOCDMinSize = 22

	// EOCDMaxCommentLength is the largest comment an EOCD record can carry.
	EOCDMaxCommentLength = 0xFFFF

	// EOCDMaxSize is the largest possible EOCD record.
	EOCDMaxSize = EOCDMinSize + EOCDMaxCommentLength

	// Zip64LocatorSize is the fixed size of the ZIP64 EOCD locator.
	Zip64LocatorSize = 20

	// Zip64EndMinSize is the fixed portion of the ZIP64 EOCD record.
	Zip64EndMinSize = 56

	// CentralFileHeaderSize is the fixed portion of a central directory file header.
	CentralFileHeaderSize = 46

	// LocalFileHeaderSize is the fixed portion of a local file header.
	LocalFileHeaderSize = 30
)

// Zip64ExtraID tags the ZIP64 extended information extra field block.
const Zip64ExtraID = 0x0001

// Sentinel values indicating the true field lives in the ZIP64 record.
const (
	Sentinel16 = 0xFFFF
	Sentinel32 = 0xFFFFFFFF
)

// Compression methods.
const (
	// MethodStored identifies an uncompressed entry.
	MethodStored = 0

	// MethodDeflated identifies a DEFLATE-compressed entry.
	MethodDeflated = 8
)

// Sentinel errors for the archive parsing layers.
var (
	// ErrNotZip is returned when no valid EOCD record can be located.
	ErrNotZip = errors.New("nestjar: not a zip archive")

	// ErrMalformed is returned when a record's fields contradict the data
	// around them.
	ErrMalformed = errors.New("nestjar: malformed archive")

	// ErrTruncated is returned when a read reaches end of data before the
	// requested length.
	ErrTruncated = errors.New("nestjar: truncated data")

	// ErrNestedEntryCompressed is returned when a compressed entry is opened
	// as a nested archive. Only stored entries can be viewed in place.
	ErrNestedEntryCompressed = errors.New("nestjar: nested entry is compressed")

	// ErrClosed is returned when an operation is attempted on a closed
	// archive or data handle.
	ErrClosed = errors.New("nestjar: closed")
)
