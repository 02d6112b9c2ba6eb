package importer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxBytes int
		expected string
	}{
		{"trims", "  GitHub  ", 64, "GitHub"},
		{"collapses whitespace", "my\t\tbank   account", 64, "my bank account"},
		{"control characters", "line\none\x00two", 64, "line one two"},
		{"NFC", "café", 64, "café"},
		{"truncates", strings.Repeat("a", 10), 4, "aaaa"},
		{"truncates on rune boundary", "ééé", 5, "éé"},
		{"empty", "   ", 64, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeName(tt.input, tt.maxBytes))
		})
	}
}

func TestFallbackName(t *testing.T) {
	tests := []struct {
		url      string
		counter  int
		expected string
	}{
		{"https://www.github.com/login", 1, "github.com"},
		{"http://example.com:8080/path", 1, "example.com"},
		{"ftp://user@files.example.org", 1, "files.example.org"},
		{"example.net?x=1", 1, "example.net"},
		{"", 3, "Imported item 3"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, FallbackName(tt.url, tt.counter))
		})
	}
}

func TestDecodeHTMLEntities(t *testing.T) {
	assert.Equal(t, `a & b < c > d "e" 'f' 'g'`,
		DecodeHTMLEntities(`a &amp; b &lt; c &gt; d &quot;e&quot; &#39;f&#39; &apos;g&apos;`))
	assert.Equal(t, "&amp;", DecodeHTMLEntities("&amp;amp;"))
}

func TestIsEmptyOrWhitespace(t *testing.T) {
	assert.True(t, IsEmptyOrWhitespace(""))
	assert.True(t, IsEmptyOrWhitespace(" \t\n"))
	assert.False(t, IsEmptyOrWhitespace(" x "))
}

func TestGetParser(t *testing.T) {
	for _, name := range ValidSources() {
		p, err := GetParser(Source(name))
		require.NoError(t, err, name)
		assert.Equal(t, Source(name), p.Source())
	}

	_, err := GetParser("dashlane")
	assert.Error(t, err)
}

func TestOversizedValueSkipped(t *testing.T) {
	data := "url,username,password,totp,extra,name,grouping,fav\n" +
		"https://a.com,u," + strings.Repeat("x", 1<<20+1) + ",,,Big,,0\n"

	result, err := (&LastPassParser{}).Parse([]byte(data), ParseOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Secrets)
	require.Len(t, result.Skipped, 1)
	assert.Contains(t, result.Skipped[0].Reason, "exceeds")
}
