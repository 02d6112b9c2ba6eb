package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/passlocal/pkg/vault"
)

func TestApply(t *testing.T) {
	v := vault.NewDefault()
	res := &ImportResult{Secrets: []*ImportedSecret{
		{Name: "Router", Key: "admin", Value: "r0uter"},
		{Name: "Gmail", Key: "me", Value: "gm", Notes: "phone", Folder: "Email", URL: "https://mail.google.com"},
		{Name: "Jira", Value: "j", Folder: "work"},
		{Name: "Outlook", Value: "o", Folder: "Email"},
	}}

	out, err := Apply(v, res, ApplyOptions{})
	require.NoError(t, err)
	require.Len(t, out.Added, 4)
	require.Len(t, out.FoldersCreated, 1)
	assert.Equal(t, "Email", out.FoldersCreated[0].Name)
	assert.Empty(t, out.Skipped)

	personal, work, email := v.Folders[0].ID, v.Folders[1].ID, out.FoldersCreated[0].ID
	assert.Equal(t, personal, out.Added[0].FolderID)
	assert.Equal(t, email, out.Added[1].FolderID)
	assert.Equal(t, "phone\nURL: https://mail.google.com", out.Added[1].Notes)
	assert.Equal(t, work, out.Added[2].FolderID, "folder names match case-insensitively")
	assert.Equal(t, email, out.Added[3].FolderID)
	assert.NoError(t, v.Validate())
}

func TestApplyDefaultFolder(t *testing.T) {
	v := vault.NewDefault()
	work := v.Folders[1].ID

	out, err := Apply(v, &ImportResult{Secrets: []*ImportedSecret{{Name: "a", Value: "1"}}},
		ApplyOptions{DefaultFolderID: work})
	require.NoError(t, err)
	assert.Equal(t, work, out.Added[0].FolderID)

	_, err = Apply(v, &ImportResult{}, ApplyOptions{DefaultFolderID: "missing"})
	assert.ErrorIs(t, err, vault.ErrFolderNotFound)
}

func TestApplySkipExisting(t *testing.T) {
	v := vault.NewDefault()
	_, err := v.AddSecret(vault.SecretInput{Name: "GitHub", Value: "old", FolderID: v.Folders[0].ID})
	require.NoError(t, err)

	res := &ImportResult{Secrets: []*ImportedSecret{
		{Name: "github", Value: "new"},
		{Name: "GitHub", Value: "other folder", Folder: "Work"},
		{Name: "Dup", Value: "1"},
		{Name: "dup", Value: "2"},
	}}

	out, err := Apply(v, res, ApplyOptions{SkipExisting: true})
	require.NoError(t, err)
	assert.Len(t, out.Added, 2)
	require.Len(t, out.Skipped, 2)
	assert.Equal(t, "already exists", out.Skipped[0].Reason)
	assert.Equal(t, "dup", out.Skipped[1].OriginalName)

	out, err = Apply(v, res, ApplyOptions{})
	require.NoError(t, err)
	assert.Len(t, out.Added, 4, "without SkipExisting duplicates are kept")
}

func TestApplyRejectedEntriesAreSkipped(t *testing.T) {
	v := vault.NewDefault()
	res := &ImportResult{Secrets: []*ImportedSecret{
		{Name: "big notes", Value: "x", Notes: strings.Repeat("n", vault.MaxNotesSize+1)},
		{Name: "ok", Value: "y"},
	}}

	out, err := Apply(v, res, ApplyOptions{})
	require.NoError(t, err)
	require.Len(t, out.Added, 1)
	require.Len(t, out.Skipped, 1)
	assert.Equal(t, "big notes", out.Skipped[0].OriginalName)
	assert.Len(t, v.Secrets, 1)
}

func TestApplyNil(t *testing.T) {
	_, err := Apply(nil, &ImportResult{}, ApplyOptions{})
	assert.Error(t, err)
}
