package crypto

import (
	"encoding/base64"
	"errors"
	"unicode/utf8"
)

// Manager holds a derived vault key and encrypts string values with it.
// The password used to build it is not retained.
type Manager struct {
	key []byte
}

// NewManager derives a key from password and salt using DefaultParams.
func NewManager(password string, salt []byte) (*Manager, error) {
	return NewManagerWithParams(password, salt, DefaultParams)
}

// NewManagerWithParams derives a key with explicit Argon2id parameters.
func NewManagerWithParams(password string, salt []byte, p Params) (*Manager, error) {
	key, err := DeriveKeyWithParams([]byte(password), salt, p)
	if err != nil {
		return nil, err
	}
	return &Manager{key: key}, nil
}

// NewManagerFromKey wraps an already derived key. The slice is copied.
func NewManagerFromKey(key []byte) (*Manager, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	k := make([]byte, KeyLength)
	copy(k, key)
	return &Manager{key: k}, nil
}

// Key returns a copy of the derived key.
func (m *Manager) Key() []byte {
	k := make([]byte, len(m.key))
	copy(k, m.key)
	return k
}

// Encrypt seals plaintext and returns base64(nonce || ciphertext || tag).
// Encrypting the same plaintext twice yields different output.
func (m *Manager) Encrypt(plaintext string) (string, error) {
	ciphertext, nonce, err := Encrypt(m.key, []byte(plaintext))
	if err != nil {
		return "", ErrEncryptionFailed
	}

	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// Decrypt reverses Encrypt.
//
// Malformed base64 or input shorter than a nonce yields ErrInvalidFormat.
// A failed authentication check, a truncated ciphertext, or plaintext that is
// not valid UTF-8 yields ErrDecryptionFailed. No partial plaintext is returned.
func (m *Manager) Decrypt(encoded string) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrInvalidFormat
	}
	if len(blob) < NonceLength {
		return "", ErrInvalidFormat
	}

	plaintext, err := Decrypt(m.key, blob[NonceLength:], blob[:NonceLength])
	if err != nil {
		if errors.Is(err, ErrInvalidKeyLength) {
			return "", err
		}
		return "", ErrDecryptionFailed
	}
	if !utf8.Valid(plaintext) {
		SecureWipe(plaintext)
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// Destroy wipes the key. The Manager must not be used afterwards.
func (m *Manager) Destroy() {
	SecureWipe(m.key)
	m.key = nil
}

// VerifyPassword reports whether test decrypts under the key derived from
// password and salt. Any failure, including key derivation, reports false.
func VerifyPassword(password string, salt []byte, test string) bool {
	return VerifyPasswordWithParams(password, salt, test, DefaultParams)
}

// VerifyPasswordWithParams is VerifyPassword with explicit parameters.
func VerifyPasswordWithParams(password string, salt []byte, test string, p Params) bool {
	m, err := NewManagerWithParams(password, salt, p)
	if err != nil {
		return false
	}
	defer m.Destroy()

	_, err = m.Decrypt(test)
	return err == nil
}
