package backup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
	"time"
)

func TestWriteReadHeader(t *testing.T) {
	header := &Header{
		Version:        FormatVersion,
		CreatedAt:      time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
		VaultVersion:   1,
		EncryptionMode: EncryptionModePassword,
		KDFParams:      &KDFParams{Salt: []byte("0123456789abcdef"), Memory: 64, Iterations: 1, Parallelism: 1},
		IncludesAudit:  true,
		SecretCount:    5,
		FolderCount:    2,
		ChecksumAlgo:   "hmac-sha256",
	}

	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		t.Fatalf("WriteHeader failed: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("PLCL_BKP")) {
		t.Error("Backup should start with the magic number")
	}

	got, err := ReadHeader(&buf)
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if !got.CreatedAt.Equal(header.CreatedAt) || got.SecretCount != 5 || got.FolderCount != 2 {
		t.Errorf("Header mismatch: %+v", got)
	}
	if !bytes.Equal(got.KDFParams.Salt, header.KDFParams.Salt) {
		t.Error("KDF salt should round-trip")
	}
	if got.EncryptionMode != EncryptionModePassword || !got.IncludesAudit {
		t.Errorf("Header flags mismatch: %+v", got)
	}
}

func TestReadHeader_InvalidMagic(t *testing.T) {
	_, err := ReadHeader(bytes.NewReader([]byte("SCTL_BKP\x00\x00\x00\x02{}")))
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("Expected ErrInvalidMagic, got %v", err)
	}
	_, err = ReadHeader(bytes.NewReader([]byte("PLC")))
	if !errors.Is(err, ErrInvalidMagic) {
		t.Errorf("Expected ErrInvalidMagic for short input, got %v", err)
	}
}

func TestReadHeader_UnsupportedVersion(t *testing.T) {
	for _, version := range []int{0, FormatVersion + 1} {
		var buf bytes.Buffer
		if err := WriteHeader(&buf, &Header{Version: version}); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadHeader(&buf); !errors.Is(err, ErrUnsupportedVersion) {
			t.Errorf("version %d: expected ErrUnsupportedVersion, got %v", version, err)
		}
	}
}

func TestReadHeader_Truncated(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(MagicNumber[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(100))
	buf.WriteString(`{"version":1`)

	if _, err := ReadHeader(&buf); !errors.Is(err, ErrTruncated) {
		t.Errorf("Expected ErrTruncated, got %v", err)
	}
}

func TestReadHeader_TooLarge(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(MagicNumber[:])
	_ = binary.Write(&buf, binary.BigEndian, uint32(maxHeaderSize+1))

	if _, err := ReadHeader(&buf); err == nil {
		t.Error("Expected error for oversized header")
	}
}

func TestEncodeDecodePayload(t *testing.T) {
	payload := &Payload{
		Container: []byte(`{"salt":"a","test":"b","data":"c"}`),
		Audit:     map[string][]byte{"2026-01.jsonl": []byte("{}\n")},
	}

	data, err := EncodePayload(payload)
	if err != nil {
		t.Fatalf("EncodePayload failed: %v", err)
	}
	got, err := DecodePayload(data)
	if err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if !bytes.Equal(got.Container, payload.Container) {
		t.Error("Container should round-trip")
	}
	if !bytes.Equal(got.Audit["2026-01.jsonl"], payload.Audit["2026-01.jsonl"]) {
		t.Error("Audit files should round-trip")
	}

	if _, err := DecodePayload([]byte("not json")); err == nil {
		t.Error("Expected error for invalid JSON")
	}
}
