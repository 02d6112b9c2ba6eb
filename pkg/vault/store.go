package vault

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/crypto"
)

// Store creates, unlocks, and saves the vault file at a fixed path.
//
// A Store holds no key material between calls: every operation derives the
// key from the password it is given and wipes it before returning. Store is
// safe for use by one process at a time; writers additionally take an
// advisory file lock so two processes never interleave a read-modify-write.
type Store struct {
	path        string
	params      crypto.Params
	log         zerolog.Logger
	audit       *audit.Logger
	auditSource string
	throttle    bool
}

// Option configures a Store.
type Option func(*Store)

// WithParams overrides the Argon2id cost. Files written with non-default
// parameters can only be opened by a Store using the same parameters.
func WithParams(p crypto.Params) Option {
	return func(s *Store) { s.params = p }
}

// WithLogger sets the logger used for warnings and diagnostics.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Store) { s.log = l }
}

// WithAudit records create, unlock, and save events in l, attributed to source.
func WithAudit(l *audit.Logger, source string) Option {
	return func(s *Store) {
		s.audit = l
		s.auditSource = source
	}
}

// WithUnlockThrottle enables the failed-attempt cooldown on Unlock.
func WithUnlockThrottle() Option {
	return func(s *Store) { s.throttle = true }
}

// New returns a Store for the vault file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:        path,
		params:      crypto.DefaultParams,
		log:         zerolog.Nop(),
		auditSource: audit.SourceCLI,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DefaultPath returns ~/.passlocal/vault.enc, or ./.passlocal/vault.enc when
// the home directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, DirName, FileName)
}

// Path returns the vault file path.
func (s *Store) Path() string {
	return s.path
}

// Dir returns the directory holding the vault file.
func (s *Store) Dir() string {
	return filepath.Dir(s.path)
}

// Exists reports whether the vault file is present. It never fails.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Create writes a new vault seeded with the default folders and returns it.
func (s *Store) Create(password string) (*Vault, error) {
	if err := os.MkdirAll(s.Dir(), DirMode); err != nil {
		return nil, ioError("create vault directory", err)
	}

	var created *Vault
	err := s.withWriteLock(func() error {
		if s.Exists() {
			return ErrVaultAlreadyExists
		}

		salt, err := crypto.GenerateSalt()
		if err != nil {
			return err
		}
		m, err := crypto.NewManagerWithParams(password, salt, s.params)
		if err != nil {
			return err
		}
		defer m.Destroy()

		test, err := m.Encrypt(TestString)
		if err != nil {
			return err
		}

		v := NewDefault()
		data, err := encryptVault(m, v)
		if err != nil {
			return err
		}

		c := &container{
			Salt: base64.StdEncoding.EncodeToString(salt),
			Test: test,
			Data: data,
		}
		if err := s.writeContainer(c); err != nil {
			return err
		}

		s.recordSuccess(m, audit.OpVaultCreate)
		created = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("path", s.path).Msg("vault created")
	return created, nil
}

// Unlock opens the vault with password.
//
// A salt that does not decode, and a test vector that fails to decrypt or
// does not match, are both reported as ErrInvalidPassword. A payload that
// fails to decrypt after the test vector passed is ErrVaultCorrupted.
// The file is never modified.
func (s *Store) Unlock(password string) (*Vault, error) {
	if s.throttle {
		if remaining, err := s.checkCooldown(); err != nil {
			return nil, fmt.Errorf("%w: please wait %v", err, remaining.Round(time.Second))
		}
	}

	c, err := s.readContainer()
	if err != nil {
		return nil, err
	}

	m, err := s.openManager(c, password)
	if err != nil {
		if errors.Is(err, ErrInvalidPassword) {
			return nil, s.failedUnlock()
		}
		return nil, err
	}
	defer m.Destroy()

	v, err := decryptVault(m, c.Data)
	if err != nil {
		return nil, err
	}

	migrated, err := migrate(v)
	if err != nil {
		return nil, err
	}
	if migrated {
		s.log.Info().Str("path", s.path).Uint32("version", v.Version).Msg("vault payload upgraded in memory")
	}

	if s.throttle {
		if err := s.clearLockState(); err != nil {
			s.log.Warn().Err(err).Msg("failed to clear unlock attempt state")
		}
	}
	s.recordSuccess(m, audit.OpVaultUnlock)
	s.checkAndWarnPermissions()

	s.log.Debug().Str("path", s.path).Int("folders", len(v.Folders)).Int("secrets", len(v.Secrets)).Msg("vault unlocked")
	return v, nil
}

// Save re-encrypts v and replaces the data field of the existing file.
//
// The salt and test fields are kept byte-identical. The password is checked
// against the stored test vector first, so a wrong password can never
// re-encrypt the vault under a key that cannot open it.
func (s *Store) Save(v *Vault, password string) error {
	if v == nil {
		return fmt.Errorf("%w: nil vault", ErrSerialization)
	}

	return s.withWriteLock(func() error {
		c, err := s.readContainer()
		if err != nil {
			return err
		}

		m, err := s.openManager(c, password)
		if err != nil {
			return err
		}
		defer m.Destroy()

		data, err := encryptVault(m, v)
		if err != nil {
			return err
		}
		c.Data = data

		if err := s.writeContainer(c); err != nil {
			return err
		}

		s.recordSuccess(m, audit.OpVaultSave)
		s.log.Debug().Str("path", s.path).Int("folders", len(v.Folders)).Int("secrets", len(v.Secrets)).Msg("vault saved")
		return nil
	})
}

// openManager decodes the salt, derives the key, and checks the test vector.
func (s *Store) openManager(c *container, password string) (*crypto.Manager, error) {
	salt, err := base64.StdEncoding.DecodeString(c.Salt)
	if err != nil {
		return nil, ErrInvalidPassword
	}

	m, err := crypto.NewManagerWithParams(password, salt, s.params)
	if err != nil {
		return nil, err
	}

	got, err := m.Decrypt(c.Test)
	if err != nil || got != TestString {
		m.Destroy()
		return nil, ErrInvalidPassword
	}
	return m, nil
}

func (s *Store) failedUnlock() error {
	if s.audit != nil && s.audit.HasKey() {
		if err := s.audit.LogError(audit.OpVaultUnlockFailed, s.auditSource, "", "AUTH_FAILED", "invalid master password"); err != nil {
			s.log.Warn().Err(err).Msg("failed to write audit event")
		}
	}

	if !s.throttle {
		return ErrInvalidPassword
	}
	cooldown, err := s.recordFailedAttempt()
	if err != nil {
		s.log.Warn().Err(err).Msg("failed to record unlock attempt")
	}
	if cooldown > 0 {
		return fmt.Errorf("%w: cooldown activated for %v", ErrTooManyAttempts, cooldown.Round(time.Second))
	}
	return ErrInvalidPassword
}

func (s *Store) recordSuccess(m *crypto.Manager, op string) {
	if s.audit == nil {
		return
	}
	key := m.Key()
	defer crypto.SecureWipe(key)

	if err := s.audit.SetKey(key); err != nil {
		s.log.Warn().Err(err).Msg("failed to initialize audit logger")
		return
	}
	if err := s.audit.LogSuccess(op, s.auditSource, ""); err != nil {
		s.log.Warn().Err(err).Str("op", op).Msg("failed to write audit event")
	}
}

func encryptVault(m *crypto.Manager, v *Vault) (string, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	data, err := m.Encrypt(string(payload))
	if err != nil {
		return "", err
	}
	return data, nil
}

func decryptVault(m *crypto.Manager, data string) (*Vault, error) {
	plain, err := m.Decrypt(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrVaultCorrupted, err)
	}

	var v Vault
	if err := json.Unmarshal([]byte(plain), &v); err != nil {
		return nil, fmt.Errorf("%w: vault payload: %w", ErrSerialization, err)
	}
	return &v, nil
}

func ioError(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrIO, op, err)
}
