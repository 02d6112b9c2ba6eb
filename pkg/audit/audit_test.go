package audit

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func newKeyedLogger(t *testing.T) *Logger {
	t.Helper()
	l := NewLogger(filepath.Join(t.TempDir(), "audit"))
	require.NoError(t, l.SetKey(testKey))
	return l
}

func logFiles(t *testing.T, l *Logger) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(l.Path(), "*.jsonl"))
	require.NoError(t, err)
	return files
}

func TestLogRequiresKey(t *testing.T) {
	l := NewLogger(t.TempDir())
	assert.False(t, l.HasKey())
	assert.ErrorIs(t, l.LogSuccess(OpVaultUnlock, SourceCLI, ""), ErrKeyNotSet)

	_, err := l.Verify()
	assert.ErrorIs(t, err, ErrKeyNotSet)
}

func TestLogWritesChainedRecords(t *testing.T) {
	l := newKeyedLogger(t)
	require.True(t, l.HasKey())

	require.NoError(t, l.LogSuccess(OpVaultCreate, SourceCLI, ""))
	require.NoError(t, l.LogSuccess(OpFolderAdd, SourceCLI, "folder-1"))
	require.NoError(t, l.LogError(OpVaultUnlockFailed, SourceCLI, "", "AUTH_FAILED", "invalid master password"))

	events, err := l.ListEvents(0, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 3)

	assert.Equal(t, genesisHash, events[0].Chain.PrevHash)
	for i, e := range events {
		assert.Equal(t, int64(i+1), e.Chain.Sequence)
		if i > 0 {
			assert.Equal(t, events[i-1].Chain.HMAC, e.Chain.PrevHash)
		}
	}
	assert.Equal(t, "folder-1", events[1].Target)
	assert.Equal(t, ResultError, events[2].Result)
	require.NotNil(t, events[2].Error)
	assert.Equal(t, "AUTH_FAILED", events[2].Error.Code)

	info, err := os.Stat(logFiles(t, l)[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestVerifyValidChain(t *testing.T) {
	l := newKeyedLogger(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, l.LogSuccess(OpVaultSave, SourceCLI, ""))
	}

	res, err := l.Verify()
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, 5, res.RecordsTotal)
	assert.Equal(t, 5, res.RecordsVerified)
	assert.Empty(t, res.Errors)
}

func TestVerifyEmptyLog(t *testing.T) {
	l := newKeyedLogger(t)
	res, err := l.Verify()
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Zero(t, res.RecordsTotal)
}

func TestChainSurvivesNewLogger(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")

	first := NewLogger(dir)
	require.NoError(t, first.SetKey(testKey))
	require.NoError(t, first.LogSuccess(OpVaultCreate, SourceCLI, ""))

	second := NewLogger(dir)
	require.NoError(t, second.SetKey(testKey))
	require.NoError(t, second.LogSuccess(OpVaultUnlock, SourceCLI, ""))

	res, err := second.Verify()
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
	assert.Equal(t, 2, res.RecordsTotal)
}

func TestVerifyDetectsTampering(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(lines []string) []string
	}{
		{
			name: "edited result",
			mutate: func(lines []string) []string {
				lines[1] = strings.Replace(lines[1], `"result":"success"`, `"result":"error"`, 1)
				return lines
			},
		},
		{
			name: "deleted record",
			mutate: func(lines []string) []string {
				return append(lines[:1], lines[2:]...)
			},
		},
		{
			name: "swapped records",
			mutate: func(lines []string) []string {
				lines[0], lines[1] = lines[1], lines[0]
				return lines
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newKeyedLogger(t)
			for i := 0; i < 3; i++ {
				require.NoError(t, l.LogSuccess(OpSecretAdd, SourceCLI, ""))
			}

			file := logFiles(t, l)[0]
			data, err := os.ReadFile(file)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			lines = tt.mutate(lines)
			require.NoError(t, os.WriteFile(file, []byte(strings.Join(lines, "\n")+"\n"), 0600))

			res, err := l.Verify()
			require.NoError(t, err)
			assert.False(t, res.Valid)
			assert.NotEmpty(t, res.Errors)
		})
	}
}

func TestVerifyWithWrongKeyFails(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "audit")
	l := NewLogger(dir)
	require.NoError(t, l.SetKey(testKey))
	require.NoError(t, l.LogSuccess(OpVaultCreate, SourceCLI, ""))

	other := NewLogger(dir)
	require.NoError(t, other.SetKey([]byte("another key of thirty-two bytes!")))
	res, err := other.Verify()
	require.NoError(t, err)
	assert.False(t, res.Valid)
}

func TestListEventsLimitAndSince(t *testing.T) {
	l := newKeyedLogger(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	l.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}

	for i := 0; i < 4; i++ {
		require.NoError(t, l.LogSuccess(OpSecretGet, SourceMCP, ""))
	}

	events, err := l.ListEvents(2, time.Time{})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(3), events[0].Chain.Sequence)

	events, err = l.ListEvents(0, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, SourceMCP, events[0].Actor.Source)
}

func TestLogSpansMonthFiles(t *testing.T) {
	l := newKeyedLogger(t)
	times := []time.Time{
		time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 1, 0, 0, time.UTC),
	}
	i := 0
	l.now = func() time.Time { ts := times[i]; i++; return ts }

	require.NoError(t, l.LogSuccess(OpVaultSave, SourceCLI, ""))
	require.NoError(t, l.LogSuccess(OpVaultSave, SourceCLI, ""))

	files := logFiles(t, l)
	require.Len(t, files, 2)
	assert.Equal(t, "2026-01.jsonl", filepath.Base(files[0]))

	res, err := l.Verify()
	require.NoError(t, err)
	assert.True(t, res.Valid, res.Errors)
}

func TestEventJSONShape(t *testing.T) {
	l := newKeyedLogger(t)
	require.NoError(t, l.Log(OpVaultSave, SourceCLI, ResultSuccess, "", nil, map[string]string{"secrets": "3"}))

	data, err := os.ReadFile(logFiles(t, l)[0])
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(string(data))), &raw))
	for _, k := range []string{"v", "id", "ts", "op", "actor", "result", "ctx", "chain"} {
		assert.Contains(t, raw, k)
	}
	assert.NotContains(t, raw, "target")
}
