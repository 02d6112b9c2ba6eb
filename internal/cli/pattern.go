// Package cli provides shared utilities for CLI commands.
package cli

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/forest6511/passlocal/pkg/vault"
)

// ErrNoMatch is returned when a pattern selects no secret.
var ErrNoMatch = errors.New("no secrets match")

// MatchSecrets returns the secrets whose name matches pattern.
// Patterns containing glob characters (*?[) use path.Match semantics; other
// patterns match names exactly. Both comparisons ignore case. An empty
// pattern matches everything.
func MatchSecrets(pattern string, secrets []vault.Secret) ([]vault.Secret, error) {
	pattern = strings.ToLower(strings.TrimSpace(pattern))
	if pattern == "" {
		return secrets, nil
	}
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("invalid pattern '%s': %w", pattern, err)
	}

	hasGlob := strings.ContainsAny(pattern, "*?[")

	var matches []vault.Secret
	for _, s := range secrets {
		name := strings.ToLower(s.Name)
		if !hasGlob {
			if name == pattern {
				matches = append(matches, s)
			}
			continue
		}
		if ok, _ := path.Match(pattern, name); ok {
			matches = append(matches, s)
		}
	}

	if len(matches) == 0 {
		return nil, fmt.Errorf("%w '%s'", ErrNoMatch, pattern)
	}
	return matches, nil
}

// MatchAny returns secrets matching at least one pattern, without
// duplicates, in the order they were first matched.
func MatchAny(patterns []string, secrets []vault.Secret) ([]vault.Secret, error) {
	seen := make(map[string]bool)
	var result []vault.Secret

	for _, p := range patterns {
		matches, err := MatchSecrets(p, secrets)
		if err != nil {
			return nil, err
		}
		for _, s := range matches {
			if !seen[s.ID] {
				seen[s.ID] = true
				result = append(result, s)
			}
		}
	}
	return result, nil
}

// ResolveSecret finds exactly one secret by id or by name.
func ResolveSecret(ref string, secrets []vault.Secret) (vault.Secret, error) {
	for _, s := range secrets {
		if s.ID == ref {
			return s, nil
		}
	}
	var found []vault.Secret
	for _, s := range secrets {
		if strings.EqualFold(s.Name, strings.TrimSpace(ref)) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return vault.Secret{}, fmt.Errorf("%w: %s", vault.ErrSecretNotFound, ref)
	case 1:
		return found[0], nil
	default:
		return vault.Secret{}, fmt.Errorf("%d secrets are named '%s'; use the id", len(found), ref)
	}
}

// ResolveFolder finds a folder by id or by name.
func ResolveFolder(ref string, v *vault.Vault) (vault.Folder, error) {
	if f, err := v.Folder(ref); err == nil {
		return f, nil
	}
	if f, ok := v.FolderByName(ref); ok {
		return f, nil
	}
	return vault.Folder{}, fmt.Errorf("%w: %s", vault.ErrFolderNotFound, ref)
}

// SortByName returns a copy of secrets sorted by name, then id.
func SortByName(secrets []vault.Secret) []vault.Secret {
	sorted := make([]vault.Secret, len(secrets))
	copy(sorted, secrets)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := strings.ToLower(sorted[i].Name), strings.ToLower(sorted[j].Name)
		if a != b {
			return a < b
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}
