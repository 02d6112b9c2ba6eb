package session

import (
	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/vault"
)

// AddFolder creates a folder at the end of the display order and saves.
func (s *Session) AddFolder(name, icon string) (vault.Folder, error) {
	var f vault.Folder
	_, err := s.Update(func(v *vault.Vault) error {
		var err error
		f, err = v.AddFolder(name, icon)
		return err
	})
	s.recordMutation(audit.OpFolderAdd, f.ID, err)
	return f, err
}

// UpdateFolder renames a folder and replaces its icon.
func (s *Session) UpdateFolder(id, name, icon string) (vault.Folder, error) {
	var f vault.Folder
	_, err := s.Update(func(v *vault.Vault) error {
		var err error
		f, err = v.UpdateFolder(id, name, icon)
		return err
	})
	s.recordMutation(audit.OpFolderUpdate, id, err)
	return f, err
}

// DeleteFolder removes a folder, moving its secrets to the fallback folder.
func (s *Session) DeleteFolder(id string) error {
	_, err := s.Update(func(v *vault.Vault) error {
		return v.DeleteFolder(id)
	})
	s.recordMutation(audit.OpFolderDelete, id, err)
	return err
}

// MoveFolder changes a folder's display position.
func (s *Session) MoveFolder(id string, to int) error {
	_, err := s.Update(func(v *vault.Vault) error {
		return v.MoveFolder(id, to)
	})
	s.recordMutation(audit.OpFolderUpdate, id, err)
	return err
}

// AddSecret creates a secret and saves.
func (s *Session) AddSecret(in vault.SecretInput) (vault.Secret, error) {
	var sec vault.Secret
	_, err := s.Update(func(v *vault.Vault) error {
		var err error
		sec, err = v.AddSecret(in)
		return err
	})
	s.recordMutation(audit.OpSecretAdd, sec.ID, err)
	return sec, err
}

// UpdateSecret replaces the editable fields of a secret and saves.
func (s *Session) UpdateSecret(id string, in vault.SecretInput) (vault.Secret, error) {
	var sec vault.Secret
	_, err := s.Update(func(v *vault.Vault) error {
		var err error
		sec, err = v.UpdateSecret(id, in)
		return err
	})
	s.recordMutation(audit.OpSecretUpdate, id, err)
	return sec, err
}

// DeleteSecret removes a secret and saves.
func (s *Session) DeleteSecret(id string) error {
	_, err := s.Update(func(v *vault.Vault) error {
		return v.DeleteSecret(id)
	})
	s.recordMutation(audit.OpSecretDelete, id, err)
	return err
}

func (s *Session) recordMutation(op, target string, err error) {
	if err == ErrLocked {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record(op, target, err)
}

// Record writes an audit event for a read-only operation such as a masked
// lookup. It is a no-op while locked or without an audit logger.
func (s *Session) Record(op, target string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.vault == nil {
		return
	}
	s.record(op, target, err)
}
