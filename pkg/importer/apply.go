package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/forest6511/passlocal/pkg/vault"
)

// ApplyOptions controls how parsed secrets land in a vault.
type ApplyOptions struct {
	// DefaultFolderID receives secrets without a source folder. Empty means
	// the first folder in display order.
	DefaultFolderID string

	// SkipExisting skips a secret when the target folder already holds one
	// with the same name (case-insensitive).
	SkipExisting bool
}

// ApplyResult summarises an Apply call.
type ApplyResult struct {
	Added          []vault.Secret
	FoldersCreated []vault.Folder
	Skipped        []SkippedItem
}

// Apply adds the parsed secrets to v, creating folders by name as needed.
// Entries the vault rejects are skipped with the validation error as the
// reason; v is only left invalid if the caller ignores the returned error.
func Apply(v *vault.Vault, res *ImportResult, opts ApplyOptions) (*ApplyResult, error) {
	if v == nil || res == nil {
		return nil, errors.New("importer: nothing to apply")
	}

	defaultID := opts.DefaultFolderID
	if defaultID == "" {
		sorted := v.SortedFolders()
		if len(sorted) == 0 {
			return nil, fmt.Errorf("importer: %w", vault.ErrInvalidVault)
		}
		defaultID = sorted[0].ID
	}
	if _, err := v.Folder(defaultID); err != nil {
		return nil, err
	}

	out := &ApplyResult{}
	existing := make(map[string]bool)
	for _, s := range v.Secrets {
		existing[existingKey(s.FolderID, s.Name)] = true
	}

	for _, s := range res.Secrets {
		folderID := defaultID
		if s.Folder != "" {
			f, created, err := ensureFolder(v, s.Folder)
			if err != nil {
				out.Skipped = append(out.Skipped, SkippedItem{OriginalName: s.Name, Reason: err.Error()})
				continue
			}
			if created {
				out.FoldersCreated = append(out.FoldersCreated, f)
			}
			folderID = f.ID
		}

		key := existingKey(folderID, s.Name)
		if opts.SkipExisting && existing[key] {
			out.Skipped = append(out.Skipped, SkippedItem{OriginalName: s.Name, Reason: "already exists"})
			continue
		}

		added, err := v.AddSecret(vault.SecretInput{
			Name:     s.Name,
			Key:      s.Key,
			Value:    s.Value,
			Notes:    notesWithURL(s.Notes, s.URL),
			FolderID: folderID,
		})
		if err != nil {
			out.Skipped = append(out.Skipped, SkippedItem{OriginalName: s.Name, Reason: err.Error()})
			continue
		}
		existing[key] = true
		out.Added = append(out.Added, added)
	}
	return out, v.Validate()
}

func ensureFolder(v *vault.Vault, name string) (vault.Folder, bool, error) {
	if f, ok := v.FolderByName(name); ok {
		return f, false, nil
	}
	f, err := v.AddFolder(name, "")
	return f, err == nil, err
}

func existingKey(folderID, name string) string {
	return folderID + "\x00" + strings.ToLower(strings.TrimSpace(name))
}

func notesWithURL(notes, url string) string {
	if url == "" || strings.Contains(notes, url) {
		return notes
	}
	if notes == "" {
		return "URL: " + url
	}
	return notes + "\nURL: " + url
}
