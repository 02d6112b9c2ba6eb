package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/forest6511/passlocal/pkg/crypto"
)

var testKDF = crypto.Params{Memory: 64, Time: 1, Threads: 1}

func testKDFParams(t *testing.T) *KDFParams {
	t.Helper()
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	return &KDFParams{Salt: salt, Memory: testKDF.Memory, Iterations: testKDF.Time, Parallelism: testKDF.Threads}
}

func TestGenerateSalt(t *testing.T) {
	salt1, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	if len(salt1) != SaltLength {
		t.Errorf("Expected salt length %d, got %d", SaltLength, len(salt1))
	}

	salt2, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt failed: %v", err)
	}
	if bytes.Equal(salt1, salt2) {
		t.Error("Two generated salts should be different")
	}
}

func TestDeriveBackupKeys(t *testing.T) {
	password := []byte("test-password-123")
	params := testKDFParams(t)

	encKey, macKey, err := DeriveBackupKeys(password, params)
	if err != nil {
		t.Fatalf("DeriveBackupKeys failed: %v", err)
	}
	if len(encKey) != KeyLength || len(macKey) != KeyLength {
		t.Errorf("Expected %d-byte keys, got %d and %d", KeyLength, len(encKey), len(macKey))
	}
	if bytes.Equal(encKey, macKey) {
		t.Error("Encryption and MAC keys should be different")
	}

	encKey2, macKey2, err := DeriveBackupKeys(password, params)
	if err != nil {
		t.Fatalf("DeriveBackupKeys failed: %v", err)
	}
	if !bytes.Equal(encKey, encKey2) || !bytes.Equal(macKey, macKey2) {
		t.Error("Same password+salt should produce same keys")
	}

	encKey3, _, err := DeriveBackupKeys([]byte("other-password"), params)
	if err != nil {
		t.Fatalf("DeriveBackupKeys failed: %v", err)
	}
	if bytes.Equal(encKey, encKey3) {
		t.Error("Different passwords should produce different keys")
	}
}

func TestDeriveBackupKeys_Errors(t *testing.T) {
	params := testKDFParams(t)

	if _, _, err := DeriveBackupKeys(nil, params); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("Expected ErrEmptyPassword, got %v", err)
	}
	if _, _, err := DeriveBackupKeys([]byte("pw"), nil); !errors.Is(err, ErrInvalidKDFParams) {
		t.Errorf("Expected ErrInvalidKDFParams for nil params, got %v", err)
	}

	zero := *params
	zero.Iterations = 0
	if _, _, err := DeriveBackupKeys([]byte("pw"), &zero); !errors.Is(err, ErrInvalidKDFParams) {
		t.Errorf("Expected ErrInvalidKDFParams for zero iterations, got %v", err)
	}

	huge := *params
	huge.Memory = maxKDFMemory + 1
	if _, _, err := DeriveBackupKeys([]byte("pw"), &huge); !errors.Is(err, ErrInvalidKDFParams) {
		t.Errorf("Expected ErrInvalidKDFParams for huge memory, got %v", err)
	}
}

func TestEncryptDecryptPayload(t *testing.T) {
	key := make([]byte, KeyLength)
	plaintext := []byte(`{"container":"..."}`)

	ciphertext, err := EncryptPayload(plaintext, key)
	if err != nil {
		t.Fatalf("EncryptPayload failed: %v", err)
	}
	if bytes.Contains(ciphertext, plaintext) {
		t.Error("Ciphertext should not contain plaintext")
	}

	decrypted, err := DecryptPayload(ciphertext, key)
	if err != nil {
		t.Fatalf("DecryptPayload failed: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("Decrypted = %q, want %q", decrypted, plaintext)
	}

	wrongKey := bytes.Repeat([]byte{1}, KeyLength)
	if _, err := DecryptPayload(ciphertext, wrongKey); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Expected ErrDecryptionFailed with wrong key, got %v", err)
	}
}

func TestDecryptPayload_InvalidData(t *testing.T) {
	key := make([]byte, KeyLength)
	for _, data := range [][]byte{nil, make([]byte, 5), make([]byte, crypto.NonceLength+crypto.TagLength)} {
		if _, err := DecryptPayload(data, key); !errors.Is(err, ErrDecryptionFailed) {
			t.Errorf("DecryptPayload(%d bytes) error = %v, want ErrDecryptionFailed", len(data), err)
		}
	}
}

func TestComputeVerifyHMAC(t *testing.T) {
	key := []byte("0123456789abcdef0123456789abcdef")
	data := []byte("header and ciphertext")

	mac := ComputeHMAC(data, key)
	if len(mac) != HMACLength {
		t.Errorf("Expected HMAC length %d, got %d", HMACLength, len(mac))
	}
	if !VerifyHMAC(data, mac, key) {
		t.Error("VerifyHMAC should succeed for matching data")
	}
	if VerifyHMAC([]byte("modified"), mac, key) {
		t.Error("VerifyHMAC should fail for modified data")
	}
	if VerifyHMAC(data, mac, []byte("another key")) {
		t.Error("VerifyHMAC should fail for a different key")
	}
}

func TestKeyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.key")

	if err := GenerateKeyFile(path); err != nil {
		t.Fatalf("GenerateKeyFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Size() != KeyLength {
		t.Errorf("Expected key file size %d, got %d", KeyLength, info.Size())
	}

	key, err := ReadKeyFile(path)
	if err != nil {
		t.Fatalf("ReadKeyFile failed: %v", err)
	}
	if len(key) != KeyLength {
		t.Errorf("Expected key length %d, got %d", KeyLength, len(key))
	}

	if err := GenerateKeyFile(path); err == nil {
		t.Error("GenerateKeyFile should not overwrite an existing file")
	}
}

func TestReadKeyFile_Errors(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short.key")
	if err := os.WriteFile(short, []byte("too short"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadKeyFile(short); !errors.Is(err, ErrInvalidKeyFile) {
		t.Errorf("Expected ErrInvalidKeyFile, got %v", err)
	}
	if _, err := ReadKeyFile(filepath.Join(dir, "missing.key")); err == nil {
		t.Error("Expected error for missing key file")
	}
}
