package vault

import (
	"fmt"
	"slices"
	"strings"
)

// SecretInput carries the user-editable fields of a secret.
type SecretInput struct {
	Name     string
	Key      string
	Value    string
	Notes    string
	FolderID string
}

func (in *SecretInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	if len(in.Name) < MinSecretNameLength {
		return ErrSecretNameTooShort
	}
	if len(in.Name) > MaxSecretNameLength {
		return ErrSecretNameTooLong
	}
	if len(in.Key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if len(in.Value) > MaxValueSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrValueTooLarge, len(in.Value), MaxValueSize)
	}
	if len(in.Notes) > MaxNotesSize {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrNotesTooLarge, len(in.Notes), MaxNotesSize)
	}
	return nil
}

func (v *Vault) secretIndex(id string) int {
	return slices.IndexFunc(v.Secrets, func(s Secret) bool { return s.ID == id })
}

// Secret returns the secret with the given id.
func (v *Vault) Secret(id string) (Secret, error) {
	i := v.secretIndex(id)
	if i < 0 {
		return Secret{}, fmt.Errorf("%w: %s", ErrSecretNotFound, id)
	}
	return v.Secrets[i], nil
}

// FindSecrets returns the secrets whose name equals name (case-insensitive).
func (v *Vault) FindSecrets(name string) []Secret {
	name = strings.TrimSpace(name)
	var out []Secret
	for _, s := range v.Secrets {
		if strings.EqualFold(s.Name, name) {
			out = append(out, s)
		}
	}
	return out
}

// SecretsInFolder returns the secrets in a folder sorted by name.
func (v *Vault) SecretsInFolder(folderID string) []Secret {
	var out []Secret
	for _, s := range v.Secrets {
		if s.FolderID == folderID {
			out = append(out, s)
		}
	}
	slices.SortFunc(out, func(a, b Secret) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return out
}

// AddSecret creates a secret in an existing folder.
func (v *Vault) AddSecret(in SecretInput) (Secret, error) {
	if err := in.validate(); err != nil {
		return Secret{}, err
	}
	if v.folderIndex(in.FolderID) < 0 {
		return Secret{}, fmt.Errorf("%w: %s", ErrFolderNotFound, in.FolderID)
	}

	ts := now()
	s := Secret{
		ID:        newID(),
		Name:      in.Name,
		Key:       in.Key,
		Value:     in.Value,
		Notes:     in.Notes,
		FolderID:  in.FolderID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	v.Secrets = append(v.Secrets, s)
	return s, nil
}

// UpdateSecret replaces every editable field of a secret and refreshes
// UpdatedAt. CreatedAt is never changed.
func (v *Vault) UpdateSecret(id string, in SecretInput) (Secret, error) {
	i := v.secretIndex(id)
	if i < 0 {
		return Secret{}, fmt.Errorf("%w: %s", ErrSecretNotFound, id)
	}
	if err := in.validate(); err != nil {
		return Secret{}, err
	}
	if v.folderIndex(in.FolderID) < 0 {
		return Secret{}, fmt.Errorf("%w: %s", ErrFolderNotFound, in.FolderID)
	}

	s := &v.Secrets[i]
	s.Name = in.Name
	s.Key = in.Key
	s.Value = in.Value
	s.Notes = in.Notes
	s.FolderID = in.FolderID
	s.UpdatedAt = now()
	return *s, nil
}

// MoveSecret changes the folder of a secret.
func (v *Vault) MoveSecret(id, folderID string) (Secret, error) {
	s, err := v.Secret(id)
	if err != nil {
		return Secret{}, err
	}
	return v.UpdateSecret(id, SecretInput{
		Name:     s.Name,
		Key:      s.Key,
		Value:    s.Value,
		Notes:    s.Notes,
		FolderID: folderID,
	})
}

// DeleteSecret removes a secret.
func (v *Vault) DeleteSecret(id string) error {
	i := v.secretIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrSecretNotFound, id)
	}
	v.Secrets = slices.Delete(v.Secrets, i, i+1)
	return nil
}
