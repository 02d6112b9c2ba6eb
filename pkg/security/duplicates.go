package security

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/passlocal/pkg/vault"
)

// DuplicateGroup represents secrets sharing the same value.
type DuplicateGroup struct {
	// SecretIDs and SecretNames are only filled when names are requested.
	SecretIDs   []string `json:"secret_ids,omitempty"`
	SecretNames []string `json:"secret_names,omitempty"`
	Count       int      `json:"count"`
}

// FindDuplicates groups secrets whose values are equal after normalization.
// Values are compared through HMAC-SHA256 with a key that lives only as long
// as the Calculator, so no digest is ever comparable across runs.
// Groups are sorted by count, most duplicated first.
func (c *Calculator) FindDuplicates(secrets []vault.Secret, includeNames bool, limit int) ([]DuplicateGroup, error) {
	if err := c.ensureKey(); err != nil {
		return nil, err
	}

	hashGroups := make(map[string][]vault.Secret)
	var order []string
	for _, s := range secrets {
		value := normalizeValue(s.Value)
		if value == "" {
			continue
		}
		hash := computeValueHash(value, c.hmacKey)
		if _, seen := hashGroups[hash]; !seen {
			order = append(order, hash)
		}
		hashGroups[hash] = append(hashGroups[hash], s)
	}

	var groups []DuplicateGroup
	for _, hash := range order {
		members := hashGroups[hash]
		if len(members) <= 1 {
			continue
		}
		group := DuplicateGroup{Count: len(members)}
		if includeNames {
			for _, s := range members {
				group.SecretIDs = append(group.SecretIDs, s.ID)
				group.SecretNames = append(group.SecretNames, s.Name)
			}
		}
		groups = append(groups, group)
	}

	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Count > groups[j].Count
	})

	if limit > 0 && len(groups) > limit {
		groups = groups[:limit]
	}
	return groups, nil
}

// FindWeakValues returns an issue for every non-empty value rated Weak.
func (c *Calculator) FindWeakValues(secrets []vault.Secret, includeNames bool, limit int) []SecurityIssue {
	var issues []SecurityIssue
	for _, s := range secrets {
		if s.Value == "" {
			continue
		}
		kind := ClassifySecret(s)
		if CalculateStrength(s.Value, kind) != PasswordWeak {
			continue
		}
		issue := SecurityIssue{
			Type:        IssueWeakValue,
			Severity:    SeverityWarning,
			Description: "Value has insufficient strength (" + formatLength(utf8.RuneCountInString(s.Value)) + ")",
			Suggestion:  weakSuggestion(kind),
		}
		issue.attach(s, includeNames)
		issues = append(issues, issue)
	}

	if limit > 0 && len(issues) > limit {
		issues = issues[:limit]
	}
	return issues
}

func weakSuggestion(kind ValueKind) string {
	if kind == KindAPIKey {
		return "Rotate the key for one with 32+ characters"
	}
	return "Use a longer password (14+ characters recommended)"
}

func (c *Calculator) ensureKey() error {
	if c.hmacKey != nil {
		return nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("security: generate comparison key: %w", err)
	}
	c.hmacKey = key
	return nil
}

// computeValueHash computes HMAC-SHA256 of a value with the session key.
func computeValueHash(value string, key []byte) string {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil))
}

// normalizeValue trims surrounding whitespace and applies Unicode NFC.
func normalizeValue(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}

func formatLength(n int) string {
	if n == 1 {
		return "1 character"
	}
	return fmt.Sprintf("%d characters", n)
}
