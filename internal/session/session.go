// Package session owns the single unlocked vault of a passlocal process.
//
// A Session pairs the in-memory vault with the master password needed to
// save it. The password is kept in a memguard enclave and only decrypted for
// the duration of a store call. All methods are safe for concurrent use;
// mutations run under one lock so two commands never interleave a
// read-modify-write.
package session

import (
	"errors"
	"fmt"
	"sync"

	"github.com/awnumar/memguard"
	"github.com/rs/zerolog"

	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/vault"
)

var (
	// ErrLocked is returned by operations that need an unlocked vault.
	ErrLocked = errors.New("session: vault is locked")

	// ErrEmptyPassword is returned when setting up or unlocking with "".
	ErrEmptyPassword = errors.New("session: password must not be empty")
)

// Store is the persistence the session drives. *vault.Store satisfies it.
type Store interface {
	Exists() bool
	Create(password string) (*vault.Vault, error)
	Unlock(password string) (*vault.Vault, error)
	Save(v *vault.Vault, password string) error
}

// Status reports whether the vault file exists and whether it is unlocked.
type Status struct {
	Exists   bool `json:"exists"`
	Unlocked bool `json:"unlocked"`
}

// Session holds at most one unlocked vault.
type Session struct {
	mu       sync.Mutex
	store    Store
	vault    *vault.Vault
	password *memguard.Enclave

	log         zerolog.Logger
	audit       *audit.Logger
	auditSource string
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithAudit records folder and secret mutations in l. Events are only
// written once the store has keyed the logger during unlock.
func WithAudit(l *audit.Logger, source string) Option {
	return func(s *Session) {
		s.audit = l
		s.auditSource = source
	}
}

// New returns a locked session over store.
func New(store Store, opts ...Option) *Session {
	s := &Session{
		store:       store,
		log:         zerolog.Nop(),
		auditSource: audit.SourceCLI,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Status returns the current vault status.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Exists: s.store.Exists(), Unlocked: s.vault != nil}
}

// IsUnlocked reports whether a vault is held.
func (s *Session) IsUnlocked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vault != nil
}

// Setup creates a new vault and leaves the session unlocked.
func (s *Session) Setup(password string) (*vault.Vault, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.store.Create(password)
	if err != nil {
		return nil, err
	}
	s.hold(v, password)
	s.log.Info().Msg("vault created and unlocked")
	return v.Clone(), nil
}

// Unlock opens the vault. Unlocking an unlocked session replaces the held
// vault and password; a failed unlock leaves the session unchanged.
func (s *Session) Unlock(password string) (*vault.Vault, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v, err := s.store.Unlock(password)
	if err != nil {
		return nil, err
	}
	s.hold(v, password)
	s.log.Debug().Int("folders", len(v.Folders)).Int("secrets", len(v.Secrets)).Msg("session unlocked")
	return v.Clone(), nil
}

func (s *Session) hold(v *vault.Vault, password string) {
	s.dropLocked()
	s.vault = v
	s.password = memguard.NewEnclave([]byte(password))
}

// Lock drops the vault and the password.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vault != nil {
		s.record(audit.OpVaultLock, "", nil)
	}
	s.dropLocked()
}

func (s *Session) dropLocked() {
	s.vault = nil
	s.password = nil
}

// Vault returns a copy of the unlocked vault.
func (s *Session) Vault() (*vault.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vault == nil {
		return nil, ErrLocked
	}
	return s.vault.Clone(), nil
}

// Update applies fn to a working copy of the vault, validates it, and saves
// it. The session only adopts the copy after the save succeeded, so a
// failing fn or save leaves both memory and disk unchanged.
func (s *Session) Update(fn func(v *vault.Vault) error) (*vault.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.vault == nil {
		return nil, ErrLocked
	}

	work := s.vault.Clone()
	if err := fn(work); err != nil {
		return nil, err
	}
	if err := work.Validate(); err != nil {
		return nil, err
	}
	if err := s.saveLocked(work); err != nil {
		return nil, err
	}

	s.vault = work
	return work.Clone(), nil
}

func (s *Session) saveLocked(v *vault.Vault) error {
	buf, err := s.password.Open()
	if err != nil {
		return fmt.Errorf("session: failed to open password enclave: %w", err)
	}
	password := string(buf.Bytes())
	buf.Destroy()

	return s.store.Save(v, password)
}

func (s *Session) record(op, target string, err error) {
	if s.audit == nil || !s.audit.HasKey() {
		return
	}
	var logErr error
	if err != nil {
		logErr = s.audit.LogError(op, s.auditSource, target, "FAILED", err.Error())
	} else {
		logErr = s.audit.LogSuccess(op, s.auditSource, target)
	}
	if logErr != nil {
		s.log.Warn().Err(logErr).Str("op", op).Msg("failed to write audit event")
	}
}
