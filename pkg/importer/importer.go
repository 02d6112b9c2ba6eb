// Package importer reads exports from other password managers into a vault.
// Supports 1Password CSV, Bitwarden JSON, LastPass CSV and KeePass KDBX.
//
// Every source is reduced to the vault's flat model: a name, an optional
// key (usually the username), one value (usually the password) and notes.
// Anything that does not fit, such as TOTP seeds or custom fields, is kept
// as "label: value" lines in the notes.
package importer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/forest6511/passlocal/pkg/vault"
)

// Source represents the source password manager format.
type Source string

const (
	Source1Password Source = "1password"
	SourceBitwarden Source = "bitwarden"
	SourceLastPass  Source = "lastpass"
	SourceKeePass   Source = "keepass"
)

// ImportedSecret is one parsed entry, ready to be added to a vault.
type ImportedSecret struct {
	Name  string
	Key   string
	Value string
	Notes string

	// Folder is the source folder or group name; empty means the default.
	Folder string

	URL string
}

// ImportResult contains the results of parsing an export.
type ImportResult struct {
	// Secrets are the successfully parsed secrets.
	Secrets []*ImportedSecret

	// Warnings are non-fatal issues encountered during parsing.
	Warnings []string

	// Skipped are items that were skipped with reasons.
	Skipped []SkippedItem
}

// SkippedItem represents an item that was skipped during import.
type SkippedItem struct {
	OriginalName string
	Reason       string
}

// Parser is the interface for export format parsers.
type Parser interface {
	// Parse parses the input data and returns imported secrets.
	Parse(data []byte, opts ParseOptions) (*ImportResult, error)

	// Source returns the source type for this parser.
	Source() Source
}

// ParseOptions contains options for parsing.
type ParseOptions struct {
	// Password unlocks encrypted exports (KeePass).
	Password string
}

func newResult() *ImportResult {
	return &ImportResult{
		Secrets:  make([]*ImportedSecret, 0),
		Warnings: make([]string, 0),
		Skipped:  make([]SkippedItem, 0),
	}
}

func (r *ImportResult) skip(name, reason string) {
	r.Skipped = append(r.Skipped, SkippedItem{OriginalName: name, Reason: reason})
}

// NormalizeName prepares a source title for use as a secret or folder name:
// NFC normalisation, control characters replaced by spaces, runs of
// whitespace collapsed, and the result truncated to maxBytes on a rune
// boundary.
func NormalizeName(name string, maxBytes int) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, name)
	name = strings.Join(strings.Fields(name), " ")
	return truncate(name, maxBytes)
}

func truncate(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	s = s[:maxBytes]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}

// FallbackName names an untitled entry after its URL host, or
// "Imported item N".
func FallbackName(url string, counter int) string {
	if host := extractHostname(url); host != "" {
		return host
	}
	return fmt.Sprintf("Imported item %d", counter)
}

// extractHostname extracts the hostname from a URL.
func extractHostname(urlStr string) string {
	urlStr = strings.TrimSpace(urlStr)
	if i := strings.Index(urlStr, "://"); i != -1 {
		urlStr = urlStr[i+3:]
	}
	if i := strings.IndexAny(urlStr, "/?#"); i != -1 {
		urlStr = urlStr[:i]
	}
	if i := strings.LastIndex(urlStr, "@"); i != -1 {
		urlStr = urlStr[i+1:]
	}
	if i := strings.Index(urlStr, ":"); i != -1 {
		urlStr = urlStr[:i]
	}
	return strings.TrimPrefix(urlStr, "www.")
}

// DecodeHTMLEntities decodes common HTML entities found in LastPass exports.
func DecodeHTMLEntities(s string) string {
	return htmlEntities.Replace(s)
}

var htmlEntities = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", "\"",
	"&#39;", "'",
	"&apos;", "'",
)

// IsEmptyOrWhitespace checks if a string is empty or contains only whitespace.
func IsEmptyOrWhitespace(s string) bool {
	return strings.TrimSpace(s) == ""
}

// noteBuilder collects the notes of an entry followed by labelled extras.
type noteBuilder struct {
	lines []string
}

func (b *noteBuilder) text(s string) {
	if s = strings.TrimSpace(s); s != "" {
		b.lines = append(b.lines, s)
	}
}

func (b *noteBuilder) field(label, value string) {
	if value = strings.TrimSpace(value); value != "" {
		b.lines = append(b.lines, label+": "+value)
	}
}

func (b *noteBuilder) String() string {
	return strings.Join(b.lines, "\n")
}

// finish normalises an entry and decides whether it is worth importing.
// It returns a skip reason when not.
func finish(s *ImportedSecret, counter *int) string {
	if IsEmptyOrWhitespace(s.Value) && IsEmptyOrWhitespace(s.Key) && IsEmptyOrWhitespace(s.Notes) {
		return "no useful data"
	}
	s.Name = NormalizeName(s.Name, vault.MaxSecretNameLength)
	if s.Name == "" {
		s.Name = FallbackName(s.URL, *counter)
		*counter++
	}
	s.Key = truncate(strings.TrimSpace(s.Key), vault.MaxKeyLength)
	s.Folder = NormalizeName(s.Folder, vault.MaxFolderNameLength)
	s.URL = strings.TrimSpace(s.URL)
	if len(s.Value) > vault.MaxValueSize {
		return fmt.Sprintf("value exceeds %d bytes", vault.MaxValueSize)
	}
	return ""
}

// add records s in the result or skips it.
func (r *ImportResult) add(s *ImportedSecret, originalName string, counter *int) {
	if reason := finish(s, counter); reason != "" {
		r.skip(originalName, reason)
		return
	}
	r.Secrets = append(r.Secrets, s)
}

// GetParser returns a parser for the given source.
func GetParser(source Source) (Parser, error) {
	switch source {
	case Source1Password:
		return &OnePasswordParser{}, nil
	case SourceBitwarden:
		return &BitwardenParser{}, nil
	case SourceLastPass:
		return &LastPassParser{}, nil
	case SourceKeePass:
		return &KeePassParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported import source: %s", source)
	}
}

// ValidSources returns a list of valid source names.
func ValidSources() []string {
	return []string{
		string(Source1Password),
		string(SourceBitwarden),
		string(SourceLastPass),
		string(SourceKeePass),
	}
}
