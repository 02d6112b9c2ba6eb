package backup

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"

	"github.com/forest6511/passlocal/pkg/crypto"
)

const (
	// SaltLength is the length of the backup salt in bytes.
	SaltLength = 32

	// HMACLength is the length of the HMAC-SHA256 in bytes.
	HMACLength = 32

	// KeyLength is the length of encryption keys in bytes (256 bits).
	KeyLength = crypto.KeyLength

	// maxKDFMemory caps the Argon2id memory a header may request, in KiB.
	maxKDFMemory = 1024 * 1024
)

// HKDF info strings for key derivation.
const (
	hkdfInfoEncryption = "passlocal-backup-encryption"
	hkdfInfoMAC        = "passlocal-backup-mac"
)

// GenerateSalt generates a fresh backup salt. A backup never reuses the vault salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveBackupKeys derives separate encryption and MAC keys from a password.
func DeriveBackupKeys(password []byte, params *KDFParams) (encKey, macKey []byte, err error) {
	if len(password) == 0 {
		return nil, nil, ErrEmptyPassword
	}
	if params == nil || params.Memory > maxKDFMemory {
		return nil, nil, ErrInvalidKDFParams
	}

	masterKey, err := crypto.DeriveKeyWithParams(password, params.Salt, crypto.Params{
		Memory:  params.Memory,
		Time:    params.Iterations,
		Threads: params.Parallelism,
	})
	if err != nil {
		if errors.Is(err, crypto.ErrKeyDerivationFailed) {
			return nil, nil, fmt.Errorf("%w: %w", ErrInvalidKDFParams, err)
		}
		return nil, nil, err
	}
	defer crypto.SecureWipe(masterKey)

	return splitKey(masterKey)
}

// splitKey expands one secret into the encryption and MAC keys.
func splitKey(secret []byte) (encKey, macKey []byte, err error) {
	encKey, err = deriveHKDF(secret, []byte(hkdfInfoEncryption))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	macKey, err = deriveHKDF(secret, []byte(hkdfInfoMAC))
	if err != nil {
		crypto.SecureWipe(encKey)
		return nil, nil, fmt.Errorf("failed to derive MAC key: %w", err)
	}
	return encKey, macKey, nil
}

// deriveHKDF derives a key using HKDF-SHA256.
func deriveHKDF(secret, info []byte) ([]byte, error) {
	r := hkdf.New(sha256.New, secret, nil, info)
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptPayload encrypts with AES-256-GCM and returns nonce‖ciphertext.
func EncryptPayload(plaintext, key []byte) ([]byte, error) {
	ciphertext, nonce, err := crypto.Encrypt(key, plaintext)
	if err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}
	result := make([]byte, 0, len(nonce)+len(ciphertext))
	result = append(result, nonce...)
	return append(result, ciphertext...), nil
}

// DecryptPayload reverses EncryptPayload.
func DecryptPayload(data, key []byte) ([]byte, error) {
	if len(data) < crypto.NonceLength+crypto.TagLength {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := crypto.Decrypt(key, data[crypto.NonceLength:], data[:crypto.NonceLength])
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// ComputeHMAC computes HMAC-SHA256 over the given data.
func ComputeHMAC(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// VerifyHMAC verifies the HMAC-SHA256 of the given data in constant time.
func VerifyHMAC(data, expectedMAC, key []byte) bool {
	return hmac.Equal(ComputeHMAC(data, key), expectedMAC)
}

// ReadKeyFile reads a 32-byte encryption key from a file.
func ReadKeyFile(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(key) != KeyLength {
		crypto.SecureWipe(key)
		return nil, ErrInvalidKeyFile
	}
	return key, nil
}

// GenerateKeyFile writes a random 32-byte key to path with mode 0600.
// An existing file is never overwritten.
func GenerateKeyFile(path string) error {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	defer crypto.SecureWipe(key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.Write(key); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return f.Close()
}
