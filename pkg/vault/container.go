package vault

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

// ErrVaultBusy is returned when another process holds the write lock.
var ErrVaultBusy = errors.New("vault: vault is being written by another process")

// writeLockTimeout bounds how long a writer waits for the file lock.
var writeLockTimeout = 5 * time.Second

// container is the on-disk envelope. All fields are base64 strings.
type container struct {
	Salt string `json:"salt"`
	Test string `json:"test"`
	Data string `json:"data"`
}

func (s *Store) readContainer() (*container, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrVaultNotFound
		}
		return nil, ioError("read vault file", err)
	}

	return parseContainer(raw)
}

func parseContainer(raw []byte) (*container, error) {
	var c container
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("%w: vault container: %w", ErrSerialization, err)
	}
	return &c, nil
}

// Export returns the vault file exactly as stored. The contents stay
// encrypted under the vault password.
func (s *Store) Export() ([]byte, error) {
	c, err := s.readContainer()
	if err != nil {
		return nil, err
	}
	if c.Salt == "" || c.Test == "" || c.Data == "" {
		return nil, fmt.Errorf("%w: vault container has empty fields", ErrVaultCorrupted)
	}
	return json.MarshalIndent(c, "", "  ")
}

// Import replaces the vault file with a container produced by Export.
// An existing vault is only replaced when overwrite is set.
func (s *Store) Import(raw []byte, overwrite bool) error {
	c, err := parseContainer(raw)
	if err != nil {
		return err
	}
	if c.Salt == "" || c.Test == "" || c.Data == "" {
		return fmt.Errorf("%w: vault container has empty fields", ErrVaultCorrupted)
	}

	if err := os.MkdirAll(s.Dir(), DirMode); err != nil {
		return ioError("create vault directory", err)
	}
	return s.withWriteLock(func() error {
		if s.Exists() && !overwrite {
			return ErrVaultAlreadyExists
		}
		if err := s.writeContainer(c); err != nil {
			return err
		}
		s.log.Info().Str("path", s.path).Bool("overwrite", overwrite).Msg("vault file imported")
		return nil
	})
}

// writeContainer replaces the vault file atomically: the new contents go to
// a temp file in the same directory, which is synced, restricted to 0600,
// and renamed over the target. On failure the old file is left untouched.
func (s *Store) writeContainer(c *container) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: vault container: %w", ErrSerialization, err)
	}

	if err := os.MkdirAll(s.Dir(), DirMode); err != nil {
		return ioError("create vault directory", err)
	}
	if err := s.checkDiskSpaceForWrite(len(data)); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.Dir(), ".vault-*.tmp")
	if err != nil {
		return ioError("create temp file", err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return ioError("write temp file", err)
	}
	if err := tmp.Sync(); err != nil {
		return ioError("sync temp file", err)
	}
	if err := tmp.Chmod(FileMode); err != nil {
		return ioError("set temp file permissions", err)
	}
	if err := tmp.Close(); err != nil {
		return ioError("close temp file", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return ioError("replace vault file", err)
	}
	committed = true

	syncDir(s.Dir())
	return nil
}

// syncDir flushes the rename to disk where the platform allows it.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	defer d.Close()
	_ = d.Sync()
}

// withWriteLock runs fn while holding the advisory lock file next to the vault.
func (s *Store) withWriteLock(fn func() error) error {
	if _, err := os.Stat(s.Dir()); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrVaultNotFound
		}
		return ioError("stat vault directory", err)
	}

	lock := flock.New(filepath.Join(s.Dir(), LockFileName))
	ctx, cancel := context.WithTimeout(context.Background(), writeLockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return ioError("acquire vault lock", err)
	}
	if !locked {
		return ErrVaultBusy
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.log.Warn().Err(err).Msg("failed to release vault lock")
		}
	}()

	return fn()
}
