// Package vault provides the passlocal data model and the encrypted
// single-file persistence engine.
//
// A Vault (folders, secrets, version) is serialised to JSON, encrypted with
// the key derived from the master password, and stored in a small JSON
// container next to the salt and an encrypted test vector:
//
//	{
//	  "salt": "<base64 salt>",
//	  "test": "<base64 nonce||ciphertext of \"passlocal_test\">",
//	  "data": "<base64 nonce||ciphertext of the vault JSON>"
//	}
//
// Every save rewrites the whole container through a temp file and rename.
package vault

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Constants
const (
	// CurrentVersion is the payload version written by this package.
	CurrentVersion uint32 = 1

	// TestString is the known plaintext encrypted into the container's test field.
	TestString = "passlocal_test"

	DirName      = ".passlocal"
	FileName     = "vault.enc"
	LockFileName = "vault.enc.lock"
	FileMode     = 0600 // Owner read/write only
	DirMode      = 0700 // Owner read/write/execute only

	// Disk capacity thresholds
	MinDiskSpaceBytes  = 10 * 1024 * 1024 // 10 MB minimum free space
	DiskWarningPercent = 90               // Warn when disk is 90% full

	// Input validation limits
	MinSecretNameLength = 1
	MaxSecretNameLength = 256
	MaxKeyLength        = 256
	MaxValueSize        = 1024 * 1024 // 1 MB
	MaxNotesSize        = 10 * 1024   // 10 KB
)

// Errors
var (
	ErrVaultAlreadyExists = errors.New("vault: vault already exists at this path")
	ErrVaultNotFound      = errors.New("vault: vault not found at this path")
	ErrInvalidPassword    = errors.New("vault: invalid master password")
	ErrVaultCorrupted     = errors.New("vault: vault is corrupted")
	ErrIO                 = errors.New("vault: i/o error")
	ErrSerialization      = errors.New("vault: serialization error")
	ErrUnsupportedVersion = errors.New("vault: unsupported vault version")
	ErrInsufficientDisk   = errors.New("vault: insufficient disk space")
	ErrInvalidVault       = errors.New("vault: vault failed validation")
	ErrSecretNotFound     = errors.New("vault: secret not found")
	ErrSecretNameTooShort = errors.New("vault: secret name is too short")
	ErrSecretNameTooLong  = errors.New("vault: secret name is too long")
	ErrKeyTooLong         = errors.New("vault: key too long")
	ErrValueTooLarge      = errors.New("vault: value too large")
	ErrNotesTooLarge      = errors.New("vault: notes too large")
	ErrTooManyAttempts    = errors.New("vault: too many failed unlock attempts")
	ErrCooldownActive     = errors.New("vault: cooldown period active")
)

// Vault is the decrypted payload.
type Vault struct {
	Folders []Folder `json:"folders"`
	Secrets []Secret `json:"secrets"`
	Version uint32   `json:"version"`
}

// Folder groups secrets. Order is dense and 0-based across the vault.
type Folder struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Icon  string `json:"icon"`
	Order int32  `json:"order"`
}

// Secret is a named credential. Timestamps are UTC.
type Secret struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	Notes     string    `json:"notes,omitempty"`
	FolderID  string    `json:"folder_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// now is replaced in tests.
var now = func() time.Time { return time.Now().UTC() }

// NewDefault returns the seed vault written by Create: folders "Personal"
// and "Work", no secrets, CurrentVersion.
func NewDefault() *Vault {
	return &Vault{
		Folders: defaultFolders(),
		Secrets: []Secret{},
		Version: CurrentVersion,
	}
}

func defaultFolders() []Folder {
	return []Folder{
		{ID: newID(), Name: "Personal", Icon: "person", Order: 0},
		{ID: newID(), Name: "Work", Icon: "briefcase", Order: 1},
	}
}

// Clone returns a deep copy.
func (v *Vault) Clone() *Vault {
	if v == nil {
		return nil
	}
	c := &Vault{
		Folders: slices.Clone(v.Folders),
		Secrets: slices.Clone(v.Secrets),
		Version: v.Version,
	}
	if c.Folders == nil {
		c.Folders = []Folder{}
	}
	if c.Secrets == nil {
		c.Secrets = []Secret{}
	}
	return c
}

// Validate checks the structural invariants of an open vault: at least one
// folder, unique ids, a dense 0-based folder order, and every secret
// referencing an existing folder.
func (v *Vault) Validate() error {
	if len(v.Folders) == 0 {
		return fmt.Errorf("%w: no folders", ErrInvalidVault)
	}

	folderIDs := make(map[string]bool, len(v.Folders))
	orders := make(map[int32]bool, len(v.Folders))
	for _, f := range v.Folders {
		if f.ID == "" {
			return fmt.Errorf("%w: folder with empty id", ErrInvalidVault)
		}
		if folderIDs[f.ID] {
			return fmt.Errorf("%w: duplicate folder id %s", ErrInvalidVault, f.ID)
		}
		folderIDs[f.ID] = true
		if f.Order < 0 || int(f.Order) >= len(v.Folders) || orders[f.Order] {
			return fmt.Errorf("%w: folder order is not contiguous", ErrInvalidVault)
		}
		orders[f.Order] = true
	}

	secretIDs := make(map[string]bool, len(v.Secrets))
	for _, s := range v.Secrets {
		if s.ID == "" || secretIDs[s.ID] {
			return fmt.Errorf("%w: missing or duplicate secret id", ErrInvalidVault)
		}
		secretIDs[s.ID] = true
		if !folderIDs[s.FolderID] {
			return fmt.Errorf("%w: secret %s references unknown folder", ErrInvalidVault, s.ID)
		}
	}
	return nil
}
