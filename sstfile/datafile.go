package sstfile

import (
	"encoding/binary"
	"io"

	"github.com/cqlite/cqlite/cqlerr"
	"github.com/cqlite/cqlite/vint"
)

// Format identifies which SSTable generation format a Data.db header
// declares.
type Format int

const (
	FormatUnknown Format = iota
	FormatBig            // "oa" and compatible na/me generations
	FormatBTI            // "da", trie-indexed
)

const (
	bigMagic = 0x6F610000
	btiMagic = 0x64610000

	dataHeaderVersion = 0x0001
	reservedBytes     = 22
)

// Data.db header flag bits. Bits 0-9 are named; 10-12 hold the
// compression algorithm id. Any bit outside 0-12 set is UnknownFlag.
const (
	flagHasCompression = 1 << iota
	flagHasStaticColumns
	flagHasRegularColumns
	flagHasComplexColumns
	flagHasPartitionDeletion
	flagHasTTL
	flagKeyRangePresent
	flagLongDeletionTime
	flagTokenCoveragePresent
	flagEnhancedMinMax
)

const (
	compressionAlgoShift = 10
	compressionAlgoMask  = 0x7 << compressionAlgoShift
	knownFlagsMask       = 0x1FFF // bits 0..12
)

// DataHeader is the fixed-layout header at the start of Data.db.
type DataHeader struct {
	Magic   uint32
	Version uint16
	Flags   uint32
}

func (h *DataHeader) Format() Format {
	switch h.Magic {
	case bigMagic:
		return FormatBig
	case btiMagic:
		return FormatBTI
	default:
		return FormatUnknown
	}
}

func (h *DataHeader) HasCompression() bool         { return h.Flags&flagHasCompression != 0 }
func (h *DataHeader) HasStaticColumns() bool        { return h.Flags&flagHasStaticColumns != 0 }
func (h *DataHeader) HasRegularColumns() bool        { return h.Flags&flagHasRegularColumns != 0 }
func (h *DataHeader) HasComplexColumns() bool        { return h.Flags&flagHasComplexColumns != 0 }
func (h *DataHeader) HasPartitionDeletion() bool     { return h.Flags&flagHasPartitionDeletion != 0 }
func (h *DataHeader) HasTTL() bool                   { return h.Flags&flagHasTTL != 0 }
func (h *DataHeader) KeyRangePresent() bool          { return h.Flags&flagKeyRangePresent != 0 }
func (h *DataHeader) LongDeletionTime() bool         { return h.Flags&flagLongDeletionTime != 0 }
func (h *DataHeader) TokenCoveragePresent() bool     { return h.Flags&flagTokenCoveragePresent != 0 }
func (h *DataHeader) EnhancedMinMax() bool           { return h.Flags&flagEnhancedMinMax != 0 }
func (h *DataHeader) CompressionAlgorithmID() uint32 { return (h.Flags & compressionAlgoMask) >> compressionAlgoShift }

// ReadDataHeader parses the fixed 32-byte Data.db header: 4-byte magic,
// 2-byte version, 4-byte flags, 22 reserved zero bytes.
func ReadDataHeader(r io.Reader) (*DataHeader, error) {
	magic, err := vint.ReadU32BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading data header magic")
	}
	if magic != bigMagic && magic != btiMagic {
		return nil, cqlerr.New(cqlerr.UnsupportedFormat, component, "unrecognized Data.db magic %#08x", magic)
	}

	version, err := vint.ReadU16BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading data header version")
	}
	if version != dataHeaderVersion {
		return nil, cqlerr.New(cqlerr.UnsupportedFormat, component, "unsupported Data.db version %#04x", version)
	}

	flags, err := vint.ReadU32BE(r)
	if err != nil {
		return nil, cqlerr.Wrap(cqlerr.Truncated, component, err, "reading data header flags")
	}
	if flags&^uint32(knownFlagsMask) != 0 {
		return nil, cqlerr.New(cqlerr.UnknownFlag, component, "reserved flag bits set: %#08x", flags&^uint32(knownFlagsMask))
	}

	reserved := make([]byte, reservedBytes)
	if _, err := readFull(r, reserved); err != nil {
		return nil, err
	}
	for _, b := range reserved {
		if b != 0 {
			return nil, cqlerr.New(cqlerr.UnknownFlag, component, "non-zero byte in reserved header region")
		}
	}

	return &DataHeader{Magic: magic, Version: version, Flags: flags}, nil
}

// DataFooter is the fixed 16-byte trailer at the end of Data.db: an
// 8-byte index offset, a 4-byte CRC32, and a 4-byte echo of the header
// magic.
type DataFooter struct {
	IndexOffset uint64
	CRC32       uint32
	Magic       uint32
}

const dataFooterLen = 8 + 4 + 4

// DataHeaderLength and DataFooterLength are the fixed byte widths of
// ReadDataHeader's and ReadDataFooter's regions, letting a caller
// (the sstable facade) bound the partition-data byte range between
// them without re-deriving these constants.
const (
	DataHeaderLength = 4 + 2 + 4 + reservedBytes
	DataFooterLength = dataFooterLen
)

// ReadDataFooter reads the trailing dataFooterLen bytes of a Data.db
// file given its total size.
func ReadDataFooter(ra io.ReaderAt, fileSize int64) (*DataFooter, error) {
	if fileSize < dataFooterLen {
		return nil, cqlerr.New(cqlerr.Truncated, component, "data file too small for footer: %d bytes", fileSize)
	}
	buf := make([]byte, dataFooterLen)
	if _, err := ra.ReadAt(buf, fileSize-dataFooterLen); err != nil {
		return nil, cqlerr.Wrap(cqlerr.Io, component, err, "reading data footer")
	}
	return &DataFooter{
		IndexOffset: binary.BigEndian.Uint64(buf[0:8]),
		CRC32:       binary.BigEndian.Uint32(buf[8:12]),
		Magic:       binary.BigEndian.Uint32(buf[12:16]),
	}, nil
}

// VerifyFooter checks the footer's magic echo against the header's
// magic, as required on open.
func VerifyFooter(header *DataHeader, footer *DataFooter) error {
	if footer.Magic != header.Magic {
		return cqlerr.New(cqlerr.Corrupt, component, "footer magic %#08x does not match header magic %#08x", footer.Magic, header.Magic)
	}
	return nil
}
