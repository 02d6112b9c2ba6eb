package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

// cheap parameters keep the tests fast; the defaults are checked separately.
var testParams = Params{Memory: 64, Time: 1, Threads: 1}

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		t.Fatalf("failed to read random bytes: %v", err)
	}
	return b
}

func TestDefaultParams(t *testing.T) {
	if DefaultParams.Memory != 19456 {
		t.Errorf("DefaultParams.Memory = %d, want 19456", DefaultParams.Memory)
	}
	if DefaultParams.Time != 2 {
		t.Errorf("DefaultParams.Time = %d, want 2", DefaultParams.Time)
	}
	if DefaultParams.Threads != 1 {
		t.Errorf("DefaultParams.Threads = %d, want 1", DefaultParams.Threads)
	}
	if KeyLength != 32 || NonceLength != 12 || SaltLength != 16 {
		t.Errorf("unexpected sizes: key=%d nonce=%d salt=%d", KeyLength, NonceLength, SaltLength)
	}
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := randomBytes(t, SaltLength)

	key := DeriveKey([]byte("correct horse"), salt)
	if len(key) != KeyLength {
		t.Fatalf("DeriveKey() key length = %d, want %d", len(key), KeyLength)
	}
	if !bytes.Equal(key, DeriveKey([]byte("correct horse"), salt)) {
		t.Error("DeriveKey() with same inputs should produce identical keys")
	}
	if bytes.Equal(key, DeriveKey([]byte("battery staple"), salt)) {
		t.Error("DeriveKey() with different password should produce different key")
	}
	if bytes.Equal(key, DeriveKey([]byte("correct horse"), randomBytes(t, SaltLength))) {
		t.Error("DeriveKey() with different salt should produce different key")
	}
}

func TestDeriveKeyWithParams(t *testing.T) {
	salt := randomBytes(t, SaltLength)

	tests := []struct {
		name    string
		salt    []byte
		params  Params
		wantErr bool
	}{
		{"valid", salt, testParams, false},
		{"empty salt", nil, testParams, true},
		{"zero memory", salt, Params{Memory: 0, Time: 1, Threads: 1}, true},
		{"zero time", salt, Params{Memory: 64, Time: 0, Threads: 1}, true},
		{"zero threads", salt, Params{Memory: 64, Time: 1, Threads: 0}, true},
		{"memory below lanes", salt, Params{Memory: 8, Time: 1, Threads: 4}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := DeriveKeyWithParams([]byte("pw"), tt.salt, tt.params)
			if tt.wantErr {
				if !errors.Is(err, ErrKeyDerivationFailed) {
					t.Errorf("DeriveKeyWithParams() error = %v, want ErrKeyDerivationFailed", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveKeyWithParams() error = %v", err)
			}
			if len(key) != KeyLength {
				t.Errorf("key length = %d, want %d", len(key), KeyLength)
			}
		})
	}
}

func TestDeriveKeyWithParamsEmptyPassword(t *testing.T) {
	if _, err := DeriveKeyWithParams(nil, randomBytes(t, SaltLength), testParams); err != nil {
		t.Errorf("empty password should be accepted by the KDF, got %v", err)
	}
}

func TestGenerateSalt(t *testing.T) {
	a, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	b, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt() error = %v", err)
	}
	if len(a) != SaltLength || len(b) != SaltLength {
		t.Fatalf("salt lengths = %d, %d, want %d", len(a), len(b), SaltLength)
	}
	if bytes.Equal(a, b) {
		t.Error("two generated salts should differ")
	}
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := randomBytes(t, KeyLength)

	tests := []struct {
		name      string
		plaintext []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("hi")},
		{"binary", randomBytes(t, 257)},
		{"large", bytes.Repeat([]byte("x"), 1<<16)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ct, nonce, err := Encrypt(key, tt.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if len(nonce) != NonceLength {
				t.Errorf("nonce length = %d, want %d", len(nonce), NonceLength)
			}
			if len(ct) != len(tt.plaintext)+TagLength {
				t.Errorf("ciphertext length = %d, want %d", len(ct), len(tt.plaintext)+TagLength)
			}
			pt, err := Decrypt(key, ct, nonce)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(pt, tt.plaintext) {
				t.Error("Decrypt() did not return the original plaintext")
			}
		})
	}
}

func TestEncryptInvalidKeyLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, _, err := Encrypt(make([]byte, n), []byte("data")); err != ErrInvalidKeyLength {
			t.Errorf("Encrypt() with %d-byte key error = %v, want ErrInvalidKeyLength", n, err)
		}
	}
}

func TestDecryptErrors(t *testing.T) {
	key := randomBytes(t, KeyLength)
	ct, nonce, err := Encrypt(key, []byte("payload"))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xFF

	tests := []struct {
		name    string
		key     []byte
		ct      []byte
		nonce   []byte
		wantErr error
	}{
		{"wrong key", randomBytes(t, KeyLength), ct, nonce, ErrDecryptionFailed},
		{"wrong nonce", key, ct, randomBytes(t, NonceLength), ErrDecryptionFailed},
		{"tampered", key, tampered, nonce, ErrDecryptionFailed},
		{"short key", key[:16], ct, nonce, ErrInvalidKeyLength},
		{"short nonce", key, ct, nonce[:8], ErrInvalidNonceLength},
		{"too short", key, ct[:TagLength-1], nonce, ErrCiphertextTooShort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pt, err := Decrypt(tt.key, tt.ct, tt.nonce)
			if err != tt.wantErr {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.wantErr)
			}
			if pt != nil {
				t.Error("Decrypt() should not return plaintext on error")
			}
		})
	}
}

func TestEncryptProducesUniqueNonce(t *testing.T) {
	key := randomBytes(t, KeyLength)
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		_, nonce, err := Encrypt(key, []byte("same"))
		if err != nil {
			t.Fatalf("Encrypt() error = %v", err)
		}
		if seen[string(nonce)] {
			t.Fatalf("duplicate nonce after %d encryptions", i)
		}
		seen[string(nonce)] = true
	}
}

func TestSecureWipe(t *testing.T) {
	data := []byte("sensitive key material")
	SecureWipe(data)
	for i, b := range data {
		if b != 0 {
			t.Fatalf("byte %d = %d after SecureWipe, want 0", i, b)
		}
	}
	SecureWipe(nil)
}
