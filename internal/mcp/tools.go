package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/forest6511/passlocal/internal/cli"
	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/vault"
)

// FolderListInput is empty; folder_list takes no arguments.
type FolderListInput struct{}

// FolderListOutput represents output for folder_list tool.
type FolderListOutput struct {
	Folders []FolderInfo `json:"folders"`
}

// FolderInfo describes one folder.
type FolderInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Icon        string `json:"icon"`
	Order       int32  `json:"order"`
	SecretCount int    `json:"secret_count"`
}

// SecretListInput represents input for secret_list tool.
type SecretListInput struct {
	Folder  string `json:"folder,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// SecretListOutput represents output for secret_list tool.
type SecretListOutput struct {
	Secrets []SecretInfo `json:"secrets"`
}

// SecretInfo represents metadata for a secret (no value).
type SecretInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Key        string `json:"key,omitempty"`
	FolderID   string `json:"folder_id"`
	FolderName string `json:"folder_name"`
	HasNotes   bool   `json:"has_notes"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

// SecretExistsInput represents input for secret_exists tool.
type SecretExistsInput struct {
	Secret string `json:"secret"`
}

// SecretExistsOutput represents output for secret_exists tool.
type SecretExistsOutput struct {
	Exists bool        `json:"exists"`
	Secret *SecretInfo `json:"secret,omitempty"`
}

// SecretGetMaskedInput represents input for secret_get_masked tool.
type SecretGetMaskedInput struct {
	Secret string `json:"secret"`
}

// SecretGetMaskedOutput represents output for secret_get_masked tool.
type SecretGetMaskedOutput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	MaskedValue string `json:"masked_value"`
	ValueLength int    `json:"value_length"`
}

func (s *Server) handleFolderList(_ context.Context, _ *mcp.CallToolRequest, _ FolderListInput) (*mcp.CallToolResult, FolderListOutput, error) {
	v, err := s.session.Vault()
	if err != nil {
		return nil, FolderListOutput{}, err
	}

	out := FolderListOutput{Folders: make([]FolderInfo, 0, len(v.Folders))}
	for _, f := range v.ListFolders() {
		out.Folders = append(out.Folders, FolderInfo{
			ID:          f.ID,
			Name:        f.Name,
			Icon:        f.Icon,
			Order:       f.Order,
			SecretCount: f.SecretCount,
		})
	}
	return nil, out, nil
}

func (s *Server) handleSecretList(_ context.Context, _ *mcp.CallToolRequest, input SecretListInput) (*mcp.CallToolResult, SecretListOutput, error) {
	v, err := s.session.Vault()
	if err != nil {
		return nil, SecretListOutput{}, err
	}

	secrets := v.Secrets
	if input.Folder != "" {
		f, err := cli.ResolveFolder(input.Folder, v)
		if err != nil {
			return nil, SecretListOutput{}, err
		}
		secrets = v.SecretsInFolder(f.ID)
	}
	if input.Pattern != "" {
		secrets, err = cli.MatchSecrets(input.Pattern, secrets)
		if errors.Is(err, cli.ErrNoMatch) {
			secrets = nil
		} else if err != nil {
			return nil, SecretListOutput{}, err
		}
	}

	out := SecretListOutput{Secrets: make([]SecretInfo, 0, len(secrets))}
	for _, sec := range cli.SortByName(secrets) {
		out.Secrets = append(out.Secrets, secretInfo(v, sec))
	}
	s.session.Record(audit.OpSecretList, "", nil)
	return nil, out, nil
}

func (s *Server) handleSecretExists(_ context.Context, _ *mcp.CallToolRequest, input SecretExistsInput) (*mcp.CallToolResult, SecretExistsOutput, error) {
	if strings.TrimSpace(input.Secret) == "" {
		return nil, SecretExistsOutput{}, errors.New("secret is required")
	}
	v, err := s.session.Vault()
	if err != nil {
		return nil, SecretExistsOutput{}, err
	}

	sec, err := cli.ResolveSecret(input.Secret, v.Secrets)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return nil, SecretExistsOutput{Exists: false}, nil
	}
	if err != nil {
		return nil, SecretExistsOutput{}, err
	}

	info := secretInfo(v, sec)
	return nil, SecretExistsOutput{Exists: true, Secret: &info}, nil
}

func (s *Server) handleSecretGetMasked(_ context.Context, _ *mcp.CallToolRequest, input SecretGetMaskedInput) (*mcp.CallToolResult, SecretGetMaskedOutput, error) {
	if strings.TrimSpace(input.Secret) == "" {
		return nil, SecretGetMaskedOutput{}, errors.New("secret is required")
	}
	v, err := s.session.Vault()
	if err != nil {
		return nil, SecretGetMaskedOutput{}, err
	}

	sec, err := cli.ResolveSecret(input.Secret, v.Secrets)
	if err != nil {
		s.session.Record(audit.OpSecretGetMasked, "", err)
		return nil, SecretGetMaskedOutput{}, fmt.Errorf("failed to get secret: %w", err)
	}
	s.session.Record(audit.OpSecretGetMasked, sec.ID, nil)

	return nil, SecretGetMaskedOutput{
		ID:          sec.ID,
		Name:        sec.Name,
		MaskedValue: maskValue(sec.Value),
		ValueLength: utf8.RuneCountInString(sec.Value),
	}, nil
}

func secretInfo(v *vault.Vault, sec vault.Secret) SecretInfo {
	info := SecretInfo{
		ID:        sec.ID,
		Name:      sec.Name,
		Key:       sec.Key,
		FolderID:  sec.FolderID,
		HasNotes:  sec.Notes != "",
		CreatedAt: sec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: sec.UpdatedAt.Format(time.RFC3339),
	}
	if f, err := v.Folder(sec.FolderID); err == nil {
		info.FolderName = f.Name
	}
	return info
}

// maskValue hides all but a short suffix of value, counted in runes.
// | Length  | Format          | Example   |
// |---------|-----------------|-----------|
// | 1-4     | All *           | ****      |
// | 5-8     | Show last 2     | ******XY  |
// | 9+      | Show last 4     | ****WXYZ  |
func maskValue(value string) string {
	runes := []rune(value)
	length := len(runes)

	switch {
	case length == 0:
		return ""
	case length <= 4:
		return strings.Repeat("*", length)
	case length <= 8:
		return strings.Repeat("*", length-2) + string(runes[length-2:])
	default:
		return strings.Repeat("*", length-4) + string(runes[length-4:])
	}
}
