// Package audit provides an append-only audit log with an HMAC chain for
// tamper detection.
//
// Events are written as JSON lines to one file per month (YYYY-MM.jsonl).
// Each record carries the HMAC of its predecessor, so removing, reordering,
// or editing a record breaks verification. The HMAC key is derived from the
// vault key with HKDF; the log never contains passwords or secret values.
package audit

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

const (
	// MinAuditDiskSpace is the free space required before appending.
	MinAuditDiskSpace = 1024 * 1024

	metaFileName = "audit.meta"
	genesisHash  = "genesis"
	hkdfInfo     = "passlocal-audit-v1"
)

// Operation types.
const (
	OpVaultCreate       = "vault.create"
	OpVaultUnlock       = "vault.unlock"
	OpVaultUnlockFailed = "vault.unlock_failed"
	OpVaultSave         = "vault.save"
	OpVaultLock         = "vault.lock"
	OpVaultRestore      = "vault.restore"
	OpVaultBackup       = "vault.backup"

	OpFolderAdd    = "folder.add"
	OpFolderUpdate = "folder.update"
	OpFolderDelete = "folder.delete"

	OpSecretAdd       = "secret.add"
	OpSecretUpdate    = "secret.update"
	OpSecretDelete    = "secret.delete"
	OpSecretGet       = "secret.get"
	OpSecretList      = "secret.list"
	OpSecretGetMasked = "secret.get_masked"
	OpSecretImport    = "secret.import"
)

// Sources identify where an operation originated.
const (
	SourceCLI = "cli"
	SourceMCP = "mcp"
)

// Results.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// ErrKeyNotSet is returned when logging or verifying before SetKey.
var ErrKeyNotSet = errors.New("audit: HMAC key not set")

// Event is a single audit record.
type Event struct {
	Version   int               `json:"v"`
	ID        string            `json:"id"`
	Timestamp string            `json:"ts"`
	Operation string            `json:"op"`
	Target    string            `json:"target,omitempty"` // folder or secret id, never a name
	Actor     Actor             `json:"actor"`
	Result    string            `json:"result"`
	Error     *ErrorInfo        `json:"error,omitempty"`
	Context   map[string]string `json:"ctx,omitempty"`
	Chain     Chain             `json:"chain"`
}

// Actor identifies the process that performed the operation.
type Actor struct {
	Source    string `json:"source"`
	SessionID string `json:"session_id"`
}

// ErrorInfo describes a failed operation. Messages must not contain secrets.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Chain links a record to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// Logger appends chained audit events to a directory.
type Logger struct {
	path      string
	mu        sync.Mutex
	hmacKey   []byte
	sequence  int64
	prevHash  string
	sessionID string
	now       func() time.Time
}

// NewLogger returns a logger writing under path. Nothing is written until
// SetKey has been called.
func NewLogger(path string) *Logger {
	return &Logger{
		path:      path,
		prevHash:  genesisHash,
		sessionID: newSessionID(),
		now:       time.Now,
	}
}

// Path returns the audit directory.
func (l *Logger) Path() string {
	return l.path
}

// SetKey derives the HMAC key from the vault key and loads the chain state.
func (l *Logger) SetKey(vaultKey []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, vaultKey, nil, []byte(hkdfInfo)), key); err != nil {
		return fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}
	l.hmacKey = key

	if err := l.loadChainState(); err != nil {
		// first run
		l.sequence = 0
		l.prevHash = genesisHash
	}
	return nil
}

// HasKey reports whether SetKey has succeeded.
func (l *Logger) HasKey() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.hmacKey != nil
}

// Log records an event.
func (l *Logger) Log(op, source, result, target string, errInfo *ErrorInfo, ctx map[string]string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return ErrKeyNotSet
	}

	if err := os.MkdirAll(l.path, 0700); err != nil {
		return fmt.Errorf("audit: failed to create directory: %w", err)
	}
	if err := l.checkDiskSpace(); err != nil {
		return err
	}

	now := l.now().UTC()
	event := Event{
		Version:   1,
		ID:        newEventID(),
		Timestamp: now.Format(time.RFC3339Nano),
		Operation: op,
		Target:    target,
		Actor:     Actor{Source: source, SessionID: l.sessionID},
		Result:    result,
		Error:     errInfo,
		Context:   ctx,
	}

	event.Chain.Sequence = l.sequence + 1
	event.Chain.PrevHash = l.prevHash
	event.Chain.HMAC = l.sign(&event)

	if err := l.appendEvent(now, &event); err != nil {
		return err
	}

	l.sequence = event.Chain.Sequence
	l.prevHash = event.Chain.HMAC
	return l.saveChainState()
}

// LogSuccess records a successful operation.
func (l *Logger) LogSuccess(op, source, target string) error {
	return l.Log(op, source, ResultSuccess, target, nil, nil)
}

// LogError records a failed operation.
func (l *Logger) LogError(op, source, target, code, msg string) error {
	return l.Log(op, source, ResultError, target, &ErrorInfo{Code: code, Message: msg}, nil)
}

// signedPayload covers every field of the record except the HMAC itself.
func signedPayload(e *Event) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%s|%s|%s|%s|%s|%s|%s|", e.Version, e.ID, e.Timestamp, e.Operation, e.Target,
		e.Actor.Source, e.Actor.SessionID, e.Result)
	if e.Error != nil {
		fmt.Fprintf(&b, "%s|%s|", e.Error.Code, e.Error.Message)
	} else {
		b.WriteString("||")
	}
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s;", k, e.Context[k])
	}
	fmt.Fprintf(&b, "|%d|%s", e.Chain.Sequence, e.Chain.PrevHash)
	return []byte(b.String())
}

func (l *Logger) sign(e *Event) string {
	mac := hmac.New(sha256.New, l.hmacKey)
	mac.Write(signedPayload(e))
	return hex.EncodeToString(mac.Sum(nil))
}

func (l *Logger) appendEvent(now time.Time, event *Event) error {
	name := filepath.Join(l.path, now.Format("2006-01")+".jsonl")
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.path, metaFileName))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}

	// temp file and rename so a crash never leaves a truncated state file
	tmp := filepath.Join(l.path, metaFileName+".tmp")
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(l.path, metaFileName)); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

func newSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("session-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(b)
}

// newEventID returns a time-ordered UUIDv7.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// VerifyResult summarises a chain verification.
type VerifyResult struct {
	Valid           bool     `json:"valid"`
	RecordsTotal    int      `json:"records_total"`
	RecordsVerified int      `json:"records_verified"`
	Errors          []string `json:"errors,omitempty"`
}

// Verify recomputes the chain over every log file.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return nil, ErrKeyNotSet
	}

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true, RecordsTotal: len(events)}
	prev := genesisHash
	var seq int64 = 1
	for i := range events {
		e := &events[i]
		ok := true
		if e.Chain.Sequence != seq {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf("sequence gap at record %s: expected %d, got %d", e.ID, seq, e.Chain.Sequence))
		}
		if e.Chain.PrevHash != prev {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf("chain broken at record %s", e.ID))
		}
		if !hmac.Equal([]byte(e.Chain.HMAC), []byte(l.sign(e))) {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf("HMAC mismatch at record %s: possible tampering", e.ID))
		}
		if ok {
			result.RecordsVerified++
		} else {
			result.Valid = false
		}
		prev = e.Chain.HMAC
		seq = e.Chain.Sequence + 1
	}
	return result, nil
}

// ListEvents returns the most recent events, oldest first.
// limit <= 0 returns everything; a zero since disables the time filter.
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	if !since.IsZero() {
		filtered := events[:0]
		for _, e := range events {
			ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
			if err != nil || !ts.After(since) {
				continue
			}
			filtered = append(filtered, e)
		}
		events = filtered
	}

	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

func (l *Logger) readAll() ([]Event, error) {
	files, err := filepath.Glob(filepath.Join(l.path, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	// YYYY-MM names sort chronologically
	slices.Sort(files)

	var events []Event
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", filepath.Base(file), err)
		}
		for _, line := range strings.Split(string(data), "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			var e Event
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				return nil, fmt.Errorf("audit: failed to parse %s: %w", filepath.Base(file), err)
			}
			events = append(events, e)
		}
	}
	return events, nil
}
