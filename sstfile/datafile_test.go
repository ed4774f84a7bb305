package sstfile

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/cqlite/cqlite/cqlerr"
)

func buildHeaderBytes(magic uint32, version uint16, flags uint32, reserved []byte) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, magic)
	binary.Write(&buf, binary.BigEndian, version)
	binary.Write(&buf, binary.BigEndian, flags)
	if reserved == nil {
		reserved = make([]byte, reservedBytes)
	}
	buf.Write(reserved)
	return buf.Bytes()
}

func TestReadDataHeaderValid(t *testing.T) {
	raw := buildHeaderBytes(bigMagic, dataHeaderVersion, flagHasCompression|flagHasRegularColumns, nil)
	h, err := ReadDataHeader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if h.Format() != FormatBig {
		t.Fatalf("expected FormatBig, got %v", h.Format())
	}
	if !h.HasCompression() || !h.HasRegularColumns() {
		t.Fatalf("flags not decoded: %+v", h)
	}
	if h.HasStaticColumns() {
		t.Fatal("did not expect static columns flag")
	}
}

func TestReadDataHeaderBTIMagic(t *testing.T) {
	raw := buildHeaderBytes(btiMagic, dataHeaderVersion, 0, nil)
	h, err := ReadDataHeader(bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	if h.Format() != FormatBTI {
		t.Fatalf("expected FormatBTI, got %v", h.Format())
	}
}

func TestReadDataHeaderUnknownMagic(t *testing.T) {
	raw := buildHeaderBytes(0xDEADBEEF, dataHeaderVersion, 0, nil)
	_, err := ReadDataHeader(bytes.NewReader(raw))
	var cerr *cqlerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cqlerr.UnsupportedFormat {
		t.Fatalf("expected UnsupportedFormat, got %v", err)
	}
}

func TestReadDataHeaderUnknownFlagBit(t *testing.T) {
	raw := buildHeaderBytes(bigMagic, dataHeaderVersion, 1<<13, nil)
	_, err := ReadDataHeader(bytes.NewReader(raw))
	var cerr *cqlerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cqlerr.UnknownFlag {
		t.Fatalf("expected UnknownFlag, got %v", err)
	}
}

func TestReadDataHeaderNonZeroReserved(t *testing.T) {
	reserved := make([]byte, reservedBytes)
	reserved[5] = 1
	raw := buildHeaderBytes(bigMagic, dataHeaderVersion, 0, reserved)
	_, err := ReadDataHeader(bytes.NewReader(raw))
	var cerr *cqlerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cqlerr.UnknownFlag {
		t.Fatalf("expected UnknownFlag, got %v", err)
	}
}

func TestDataFooterRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint64(12345))
	binary.Write(&buf, binary.BigEndian, uint32(0xAABBCCDD))
	binary.Write(&buf, binary.BigEndian, uint32(bigMagic))

	footer, err := ReadDataFooter(bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	if err != nil {
		t.Fatal(err)
	}
	if footer.IndexOffset != 12345 || footer.Magic != bigMagic {
		t.Fatalf("got %+v", footer)
	}

	header := &DataHeader{Magic: bigMagic}
	if err := VerifyFooter(header, footer); err != nil {
		t.Fatal(err)
	}

	badHeader := &DataHeader{Magic: btiMagic}
	if err := VerifyFooter(badHeader, footer); err == nil {
		t.Fatal("expected magic mismatch error")
	}
}

func TestDataFooterTooSmall(t *testing.T) {
	_, err := ReadDataFooter(bytes.NewReader([]byte{1, 2, 3}), 3)
	var cerr *cqlerr.Error
	if !errors.As(err, &cerr) || cerr.Kind != cqlerr.Truncated {
		t.Fatalf("expected Truncated, got %v", err)
	}
}
