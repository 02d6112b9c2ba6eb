package backup

import "errors"

// Backup/Restore errors
var (
	// ErrInvalidMagic indicates the backup file has an invalid magic number.
	ErrInvalidMagic = errors.New("invalid backup file: magic number mismatch")

	// ErrUnsupportedVersion indicates the backup format version is not supported.
	ErrUnsupportedVersion = errors.New("unsupported backup format version")

	// ErrTruncated indicates the backup ends before its declared length.
	ErrTruncated = errors.New("backup file truncated")

	// ErrIntegrityFailed indicates the HMAC verification failed. A wrong
	// password also surfaces here, since the MAC key derives from it.
	ErrIntegrityFailed = errors.New("backup integrity check failed: wrong password or modified file")

	// ErrDecryptionFailed indicates the payload did not decrypt after the HMAC passed.
	ErrDecryptionFailed = errors.New("backup decryption failed: corrupted data")

	// ErrVaultExists indicates restore would overwrite an existing vault.
	ErrVaultExists = errors.New("vault already exists (use --force to overwrite)")

	// ErrInvalidKeyFile indicates the key file is invalid or wrong size.
	ErrInvalidKeyFile = errors.New("invalid key file: must be exactly 32 bytes")

	// ErrInvalidKDFParams indicates the header carries unusable Argon2id parameters.
	ErrInvalidKDFParams = errors.New("backup header has invalid key derivation parameters")

	// ErrEmptyPassword indicates an empty password was provided.
	ErrEmptyPassword = errors.New("password cannot be empty")
)
