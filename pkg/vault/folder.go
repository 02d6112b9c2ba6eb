package vault

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

// Folder validation constants
const (
	MaxFolderNameLength = 128
	MinFolderNameLength = 1
	MaxFolderIconLength = 64
)

// Folder errors
var (
	ErrFolderNotFound     = errors.New("vault: folder not found")
	ErrFolderNameTooLong  = errors.New("vault: folder name is too long")
	ErrFolderNameTooShort = errors.New("vault: folder name is too short")
	ErrFolderIconTooLong  = errors.New("vault: folder icon is too long")
	ErrLastFolder         = errors.New("vault: cannot delete the last folder")
)

// FolderWithStats extends Folder with computed statistics for listing.
type FolderWithStats struct {
	Folder
	SecretCount int `json:"secret_count"`
}

func newID() string {
	return uuid.New().String()
}

// validateFolderName trims name and checks its length.
func validateFolderName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len(name) < MinFolderNameLength {
		return "", ErrFolderNameTooShort
	}
	if len(name) > MaxFolderNameLength {
		return "", ErrFolderNameTooLong
	}
	return name, nil
}

func validateFolderIcon(icon string) error {
	if len(icon) > MaxFolderIconLength {
		return ErrFolderIconTooLong
	}
	return nil
}

func (v *Vault) folderIndex(id string) int {
	return slices.IndexFunc(v.Folders, func(f Folder) bool { return f.ID == id })
}

// Folder returns the folder with the given id.
func (v *Vault) Folder(id string) (Folder, error) {
	i := v.folderIndex(id)
	if i < 0 {
		return Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	return v.Folders[i], nil
}

// FolderByName returns the first folder (in display order) named name,
// compared case-insensitively.
func (v *Vault) FolderByName(name string) (Folder, bool) {
	name = strings.TrimSpace(name)
	for _, f := range v.SortedFolders() {
		if strings.EqualFold(f.Name, name) {
			return f, true
		}
	}
	return Folder{}, false
}

// SortedFolders returns a copy of the folders ordered by Order.
func (v *Vault) SortedFolders() []Folder {
	out := slices.Clone(v.Folders)
	slices.SortStableFunc(out, func(a, b Folder) int { return int(a.Order) - int(b.Order) })
	return out
}

// ListFolders returns folders in display order with secret counts.
func (v *Vault) ListFolders() []FolderWithStats {
	counts := make(map[string]int, len(v.Folders))
	for _, s := range v.Secrets {
		counts[s.FolderID]++
	}

	sorted := v.SortedFolders()
	out := make([]FolderWithStats, 0, len(sorted))
	for _, f := range sorted {
		out = append(out, FolderWithStats{Folder: f, SecretCount: counts[f.ID]})
	}
	return out
}

// AddFolder appends a folder at the end of the display order.
func (v *Vault) AddFolder(name, icon string) (Folder, error) {
	name, err := validateFolderName(name)
	if err != nil {
		return Folder{}, err
	}
	if err := validateFolderIcon(icon); err != nil {
		return Folder{}, err
	}

	f := Folder{
		ID:    newID(),
		Name:  name,
		Icon:  icon,
		Order: int32(len(v.Folders)),
	}
	v.Folders = append(v.Folders, f)
	return f, nil
}

// UpdateFolder renames a folder and replaces its icon. Id and order are kept.
func (v *Vault) UpdateFolder(id, name, icon string) (Folder, error) {
	i := v.folderIndex(id)
	if i < 0 {
		return Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	name, err := validateFolderName(name)
	if err != nil {
		return Folder{}, err
	}
	if err := validateFolderIcon(icon); err != nil {
		return Folder{}, err
	}

	v.Folders[i].Name = name
	v.Folders[i].Icon = icon
	return v.Folders[i], nil
}

// DeleteFolder removes a folder. Its secrets move to the fallback folder,
// the first folder in slice order with a different id, and the remaining
// folders are renumbered 0..n-1 keeping their relative order.
func (v *Vault) DeleteFolder(id string) error {
	if len(v.Folders) <= 1 {
		return ErrLastFolder
	}
	i := v.folderIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}

	var fallback string
	for _, f := range v.Folders {
		if f.ID != id {
			fallback = f.ID
			break
		}
	}

	for j := range v.Secrets {
		if v.Secrets[j].FolderID == id {
			v.Secrets[j].FolderID = fallback
		}
	}

	v.Folders = slices.Delete(v.Folders, i, i+1)
	v.renumberFolders()
	return nil
}

// MoveFolder moves a folder to position to in the display order.
func (v *Vault) MoveFolder(id string, to int) error {
	if v.folderIndex(id) < 0 {
		return fmt.Errorf("%w: %s", ErrFolderNotFound, id)
	}
	v.renumberFolders()

	from := v.folderIndex(id)
	to = max(0, min(to, len(v.Folders)-1))
	moved := v.Folders[from]
	v.Folders = slices.Insert(slices.Delete(v.Folders, from, from+1), to, moved)
	for i := range v.Folders {
		v.Folders[i].Order = int32(i)
	}
	return nil
}

// renumberFolders sorts the folders by Order and makes Order dense again,
// preserving relative order.
func (v *Vault) renumberFolders() {
	slices.SortStableFunc(v.Folders, func(a, b Folder) int { return int(a.Order) - int(b.Order) })
	for i := range v.Folders {
		v.Folders[i].Order = int32(i)
	}
}
