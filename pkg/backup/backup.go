// Package backup writes and restores encrypted copies of the vault file.
//
// A backup file is laid out as
//
//	magic "PLCL_BKP" | header length (u32 BE) | header JSON |
//	ciphertext length (u32 BE) | nonce‖AES-256-GCM ciphertext | HMAC-SHA256
//
// The HMAC covers everything before it. Encryption and MAC keys come from
// Argon2id over the backup password with a fresh salt, split by HKDF, or from
// a 32-byte key file. The encrypted payload is the vault file itself, which
// stays encrypted under the vault password, plus optionally the audit log.
package backup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest6511/passlocal/pkg/crypto"
	"github.com/forest6511/passlocal/pkg/vault"
)

// Options selects the backup key and what goes into the backup.
type Options struct {
	// Password derives the backup keys. Usually the vault password.
	Password []byte
	// KeyFile overrides Password with a 32-byte key file.
	KeyFile string
	// Params sets the Argon2id cost for new backups; zero means crypto.DefaultParams.
	Params crypto.Params
	// AuditDir is the audit log directory to include or restore.
	AuditDir string
	// IncludeAudit adds the audit log files to the backup.
	IncludeAudit bool
}

// RestoreOptions configures the restore operation.
type RestoreOptions struct {
	Options
	// Force replaces an existing vault.
	Force bool
	// DryRun checks the backup and reports what would be restored.
	DryRun bool
	// WithAudit restores the audit files, replacing existing ones.
	WithAudit bool
}

// RestoreResult contains the result of a restore operation.
type RestoreResult struct {
	Header        *Header
	AuditRestored bool
	DryRun        bool
}

// VerifyResult contains the result of a verify operation.
type VerifyResult struct {
	Valid         bool      `json:"valid"`
	Version       int       `json:"version"`
	CreatedAt     time.Time `json:"created_at"`
	SecretCount   int       `json:"secret_count"`
	FolderCount   int       `json:"folder_count"`
	IncludesAudit bool      `json:"includes_audit"`
	Error         string    `json:"error,omitempty"`
}

// now is replaced in tests.
var now = time.Now

// Backup writes an encrypted backup of the vault file at store to w.
// v is the unlocked vault and only supplies the header counts.
func Backup(store *vault.Store, v *vault.Vault, w io.Writer, opts Options) (*Header, error) {
	if w == nil {
		return nil, errors.New("output writer is required")
	}

	header := &Header{
		Version:      FormatVersion,
		CreatedAt:    now().UTC(),
		ChecksumAlgo: "hmac-sha256",
	}
	if v != nil {
		header.VaultVersion = v.Version
		header.SecretCount = len(v.Secrets)
		header.FolderCount = len(v.Folders)
	}

	encKey, macKey, err := newKeys(header, opts)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	container, err := store.Export()
	if err != nil {
		return nil, fmt.Errorf("failed to read vault: %w", err)
	}
	payload := &Payload{Container: container}

	if opts.IncludeAudit && opts.AuditDir != "" {
		files, err := readAuditDir(opts.AuditDir)
		if err != nil {
			return nil, err
		}
		payload.Audit = files
		header.IncludesAudit = len(files) > 0
	}

	plaintext, err := EncodePayload(payload)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(plaintext)

	ciphertext, err := EncryptPayload(plaintext, encKey)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(ciphertext))); err != nil {
		return nil, fmt.Errorf("failed to write ciphertext length: %w", err)
	}
	buf.Write(ciphertext)
	buf.Write(ComputeHMAC(buf.Bytes(), macKey))

	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return header, nil
}

// Verify checks the backup's integrity and that its payload decrypts.
// Integrity failures are reported in the result, not as an error.
func Verify(r io.Reader, opts Options) (*VerifyResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxHeaderSize+maxPayloadSize+64))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	header, payload, err := verifyAndDecrypt(data, opts)
	if err != nil {
		return &VerifyResult{Valid: false, Error: err.Error()}, nil
	}
	crypto.SecureWipe(payload.Container)

	return &VerifyResult{
		Valid:         true,
		Version:       header.Version,
		CreatedAt:     header.CreatedAt,
		SecretCount:   header.SecretCount,
		FolderCount:   header.FolderCount,
		IncludesAudit: header.IncludesAudit,
	}, nil
}

// Restore writes the vault file from a backup to store. It refuses to
// replace an existing vault unless opts.Force is set. The vault file is
// replaced atomically.
func Restore(store *vault.Store, r io.Reader, opts RestoreOptions) (*RestoreResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxHeaderSize+maxPayloadSize+64))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	header, payload, err := verifyAndDecrypt(data, opts.Options)
	if err != nil {
		return nil, err
	}

	if store.Exists() && !opts.Force {
		return nil, ErrVaultExists
	}

	result := &RestoreResult{Header: header, DryRun: opts.DryRun}
	if opts.DryRun {
		result.AuditRestored = opts.WithAudit && len(payload.Audit) > 0
		return result, nil
	}

	if err := store.Import(payload.Container, opts.Force); err != nil {
		if errors.Is(err, vault.ErrVaultAlreadyExists) {
			return nil, ErrVaultExists
		}
		return nil, fmt.Errorf("failed to restore vault: %w", err)
	}

	if opts.WithAudit && opts.AuditDir != "" && len(payload.Audit) > 0 {
		if err := writeAuditDir(opts.AuditDir, payload.Audit); err != nil {
			return nil, err
		}
		result.AuditRestored = true
	}
	return result, nil
}

// newKeys fills the header's key fields and returns fresh keys for a new backup.
func newKeys(header *Header, opts Options) (encKey, macKey []byte, err error) {
	if opts.KeyFile != "" {
		key, err := ReadKeyFile(opts.KeyFile)
		if err != nil {
			return nil, nil, err
		}
		defer crypto.SecureWipe(key)
		header.EncryptionMode = EncryptionModeKey
		return splitKey(key)
	}

	if len(opts.Password) == 0 {
		return nil, nil, ErrEmptyPassword
	}
	salt, err := GenerateSalt()
	if err != nil {
		return nil, nil, err
	}
	p := opts.Params
	if p == (crypto.Params{}) {
		p = crypto.DefaultParams
	}
	header.EncryptionMode = EncryptionModePassword
	header.KDFParams = &KDFParams{
		Salt:        salt,
		Memory:      p.Memory,
		Iterations:  p.Time,
		Parallelism: p.Threads,
	}
	return DeriveBackupKeys(opts.Password, header.KDFParams)
}

// existingKeys derives the keys a backup with header was written with.
func existingKeys(header *Header, opts Options) (encKey, macKey []byte, err error) {
	switch header.EncryptionMode {
	case EncryptionModeKey:
		if opts.KeyFile == "" {
			return nil, nil, errors.New("backup was made with a key file; pass --key-file")
		}
		key, err := ReadKeyFile(opts.KeyFile)
		if err != nil {
			return nil, nil, err
		}
		defer crypto.SecureWipe(key)
		return splitKey(key)
	case EncryptionModePassword:
		return DeriveBackupKeys(opts.Password, header.KDFParams)
	default:
		return nil, nil, fmt.Errorf("unknown encryption mode %q", header.EncryptionMode)
	}
}

// verifyAndDecrypt checks the HMAC before decrypting anything.
func verifyAndDecrypt(data []byte, opts Options) (*Header, *Payload, error) {
	reader := bytes.NewReader(data)
	header, err := ReadHeader(reader)
	if err != nil {
		return nil, nil, err
	}

	var ciphertextLen uint32
	if err := binary.Read(reader, binary.BigEndian, &ciphertextLen); err != nil {
		return nil, nil, ErrTruncated
	}
	if ciphertextLen > maxPayloadSize || reader.Len() < int(ciphertextLen)+HMACLength {
		return nil, nil, ErrTruncated
	}

	signedLen := len(data) - reader.Len() + int(ciphertextLen)
	ciphertext := data[signedLen-int(ciphertextLen) : signedLen]
	storedHMAC := data[signedLen : signedLen+HMACLength]
	if len(data) != signedLen+HMACLength {
		return nil, nil, ErrIntegrityFailed
	}

	encKey, macKey, err := existingKeys(header, opts)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(encKey)
	defer crypto.SecureWipe(macKey)

	if !VerifyHMAC(data[:signedLen], storedHMAC, macKey) {
		return nil, nil, ErrIntegrityFailed
	}

	plaintext, err := DecryptPayload(ciphertext, encKey)
	if err != nil {
		return nil, nil, err
	}
	defer crypto.SecureWipe(plaintext)

	payload, err := DecodePayload(plaintext)
	if err != nil {
		return nil, nil, err
	}
	return header, payload, nil
}

// readAuditDir collects the audit log files. A missing directory yields none.
func readAuditDir(dir string) (map[string][]byte, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read audit directory: %w", err)
	}

	files := make(map[string][]byte)
	for _, e := range entries {
		if !e.Type().IsRegular() || !isAuditFile(e.Name()) {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read audit file %s: %w", e.Name(), err)
		}
		files[e.Name()] = data
	}
	return files, nil
}

func writeAuditDir(dir string, files map[string][]byte) error {
	if err := os.MkdirAll(dir, vault.DirMode); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}
	for name, data := range files {
		if !isAuditFile(name) || filepath.Base(name) != name {
			return fmt.Errorf("backup contains invalid audit file name %q", name)
		}
		if err := writeFileAtomic(filepath.Join(dir, name), data); err != nil {
			return fmt.Errorf("failed to restore audit file %s: %w", name, err)
		}
	}
	return nil
}

func isAuditFile(name string) bool {
	return strings.HasSuffix(name, ".jsonl") || name == "audit.meta"
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".restore-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(vault.FileMode); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
