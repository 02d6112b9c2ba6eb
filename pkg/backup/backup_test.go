package backup

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/forest6511/passlocal/pkg/vault"
)

const testPassword = "vault-password-123"

func newTestStore(t *testing.T) *vault.Store {
	t.Helper()
	return vault.New(filepath.Join(t.TempDir(), vault.DirName, vault.FileName), vault.WithParams(testKDF))
}

// newTestVault creates a vault with one secret and returns the store and vault.
func newTestVault(t *testing.T) (*vault.Store, *vault.Vault) {
	t.Helper()
	store := newTestStore(t)
	v, err := store.Create(testPassword)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := v.AddSecret(vault.SecretInput{Name: "GitHub", Key: "GITHUB_TOKEN", Value: "ghp_secret", FolderID: v.Folders[0].ID}); err != nil {
		t.Fatalf("AddSecret failed: %v", err)
	}
	if err := store.Save(v, testPassword); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return store, v
}

func passwordOptions() Options {
	return Options{Password: []byte(testPassword), Params: testKDF}
}

func makeBackup(t *testing.T, store *vault.Store, v *vault.Vault, opts Options) []byte {
	t.Helper()
	var buf bytes.Buffer
	if _, err := Backup(store, v, &buf, opts); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	return buf.Bytes()
}

func TestBackupRestore_RoundTrip(t *testing.T) {
	fixed := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	orig := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = orig })

	store, v := newTestVault(t)
	data := makeBackup(t, store, v, passwordOptions())

	if bytes.Contains(data, []byte("ghp_secret")) || bytes.Contains(data, []byte("GitHub")) {
		t.Fatal("Backup must not contain plaintext secrets")
	}

	target := newTestStore(t)
	result, err := Restore(target, bytes.NewReader(data), RestoreOptions{Options: passwordOptions()})
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if result.Header.SecretCount != 1 || result.Header.FolderCount != 2 {
		t.Errorf("Unexpected header counts: %+v", result.Header)
	}
	if !result.Header.CreatedAt.Equal(fixed) {
		t.Errorf("CreatedAt = %v, want %v", result.Header.CreatedAt, fixed)
	}

	restored, err := target.Unlock(testPassword)
	if err != nil {
		t.Fatalf("Unlock restored vault failed: %v", err)
	}
	if len(restored.Secrets) != 1 || restored.Secrets[0].Value != "ghp_secret" {
		t.Errorf("Restored secrets mismatch: %+v", restored.Secrets)
	}
}

func TestBackupRestore_WithKeyFile(t *testing.T) {
	store, v := newTestVault(t)
	keyFile := filepath.Join(t.TempDir(), "backup.key")
	if err := GenerateKeyFile(keyFile); err != nil {
		t.Fatalf("GenerateKeyFile failed: %v", err)
	}

	data := makeBackup(t, store, v, Options{KeyFile: keyFile})

	header, err := ReadHeader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadHeader failed: %v", err)
	}
	if header.EncryptionMode != EncryptionModeKey || header.KDFParams != nil {
		t.Errorf("Key file backup should have key mode and no KDF params: %+v", header)
	}

	if _, err := Restore(newTestStore(t), bytes.NewReader(data), RestoreOptions{Options: passwordOptions()}); err == nil {
		t.Error("Restore without the key file should fail")
	}

	target := newTestStore(t)
	if _, err := Restore(target, bytes.NewReader(data), RestoreOptions{Options: Options{KeyFile: keyFile}}); err != nil {
		t.Fatalf("Restore with key file failed: %v", err)
	}
	if _, err := target.Unlock(testPassword); err != nil {
		t.Errorf("Unlock restored vault failed: %v", err)
	}
}

func TestRestore_RefusesExistingVault(t *testing.T) {
	store, v := newTestVault(t)
	data := makeBackup(t, store, v, passwordOptions())

	target := newTestStore(t)
	if _, err := target.Create("different password"); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	_, err := Restore(target, bytes.NewReader(data), RestoreOptions{Options: passwordOptions()})
	if !errors.Is(err, ErrVaultExists) {
		t.Fatalf("Expected ErrVaultExists, got %v", err)
	}
	if _, err := target.Unlock("different password"); err != nil {
		t.Errorf("Existing vault should be untouched: %v", err)
	}

	if _, err := Restore(target, bytes.NewReader(data), RestoreOptions{Options: passwordOptions(), Force: true}); err != nil {
		t.Fatalf("Forced restore failed: %v", err)
	}
	if _, err := target.Unlock(testPassword); err != nil {
		t.Errorf("Forced restore should replace the vault: %v", err)
	}
}

func TestRestore_DryRun(t *testing.T) {
	store, v := newTestVault(t)
	data := makeBackup(t, store, v, passwordOptions())

	target := newTestStore(t)
	result, err := Restore(target, bytes.NewReader(data), RestoreOptions{Options: passwordOptions(), DryRun: true})
	if err != nil {
		t.Fatalf("Dry run failed: %v", err)
	}
	if !result.DryRun || result.Header.SecretCount != 1 {
		t.Errorf("Unexpected dry run result: %+v", result)
	}
	if target.Exists() {
		t.Error("Dry run must not write the vault")
	}
}

func TestVerify(t *testing.T) {
	store, v := newTestVault(t)
	data := makeBackup(t, store, v, passwordOptions())

	result, err := Verify(bytes.NewReader(data), passwordOptions())
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid || result.SecretCount != 1 || result.Version != FormatVersion {
		t.Errorf("Unexpected verify result: %+v", result)
	}

	wrong := Options{Password: []byte("wrong password")}
	result, err = Verify(bytes.NewReader(data), wrong)
	if err != nil {
		t.Fatalf("Verify returned error: %v", err)
	}
	if result.Valid {
		t.Error("Verify should fail with the wrong password")
	}
}

func TestVerify_DetectsTampering(t *testing.T) {
	store, v := newTestVault(t)
	data := makeBackup(t, store, v, passwordOptions())

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"flip ciphertext byte", func(b []byte) []byte { b[len(b)-HMACLength-5] ^= 0xff; return b }},
		{"flip hmac byte", func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b }},
		{"truncate", func(b []byte) []byte { return b[:len(b)-10] }},
		{"trailing data", func(b []byte) []byte { return append(b, 0) }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return b }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tampered := tt.mutate(append([]byte(nil), data...))
			result, err := Verify(bytes.NewReader(tampered), passwordOptions())
			if err != nil {
				t.Fatalf("Verify returned error: %v", err)
			}
			if result.Valid {
				t.Error("Tampered backup should not verify")
			}

			target := newTestStore(t)
			if _, err := Restore(target, bytes.NewReader(tampered), RestoreOptions{Options: passwordOptions()}); err == nil {
				t.Error("Tampered backup should not restore")
			}
			if target.Exists() {
				t.Error("Failed restore must not write the vault")
			}
		})
	}
}

func TestBackup_WithAudit(t *testing.T) {
	store, v := newTestVault(t)
	auditDir := filepath.Join(t.TempDir(), "audit")
	if err := os.MkdirAll(auditDir, 0o700); err != nil {
		t.Fatal(err)
	}
	files := map[string]string{
		"2026-01.jsonl": `{"op":"vault.create"}` + "\n",
		"audit.meta":    `{"seq":1}`,
		"notes.txt":     "ignored",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(auditDir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}

	opts := passwordOptions()
	opts.AuditDir = auditDir
	opts.IncludeAudit = true
	data := makeBackup(t, store, v, opts)

	restoreDir := filepath.Join(t.TempDir(), "restored-audit")
	ropts := RestoreOptions{Options: passwordOptions(), WithAudit: true}
	ropts.AuditDir = restoreDir

	result, err := Restore(newTestStore(t), bytes.NewReader(data), ropts)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}
	if !result.Header.IncludesAudit || !result.AuditRestored {
		t.Errorf("Audit should be included and restored: %+v", result)
	}

	got, err := os.ReadFile(filepath.Join(restoreDir, "2026-01.jsonl"))
	if err != nil {
		t.Fatalf("Read restored audit file: %v", err)
	}
	if string(got) != files["2026-01.jsonl"] {
		t.Errorf("Restored audit = %q", got)
	}
	if _, err := os.Stat(filepath.Join(restoreDir, "audit.meta")); err != nil {
		t.Errorf("audit.meta should be restored: %v", err)
	}
	if _, err := os.Stat(filepath.Join(restoreDir, "notes.txt")); !os.IsNotExist(err) {
		t.Error("Non-audit files should not be backed up")
	}
}

func TestBackup_MissingAuditDir(t *testing.T) {
	store, v := newTestVault(t)
	opts := passwordOptions()
	opts.AuditDir = filepath.Join(t.TempDir(), "none")
	opts.IncludeAudit = true

	var buf bytes.Buffer
	header, err := Backup(store, v, &buf, opts)
	if err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if header.IncludesAudit {
		t.Error("IncludesAudit should be false when there are no audit files")
	}
}

func TestBackup_Errors(t *testing.T) {
	store, v := newTestVault(t)

	if _, err := Backup(store, v, nil, passwordOptions()); err == nil {
		t.Error("Expected error for nil writer")
	}

	var buf bytes.Buffer
	if _, err := Backup(store, v, &buf, Options{}); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("Expected ErrEmptyPassword, got %v", err)
	}

	missing := newTestStore(t)
	if _, err := Backup(missing, nil, &buf, passwordOptions()); !errors.Is(err, vault.ErrVaultNotFound) {
		t.Errorf("Expected ErrVaultNotFound, got %v", err)
	}
}
