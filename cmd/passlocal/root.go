package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/internal/cli"
	"github.com/forest6511/passlocal/internal/config"
	"github.com/forest6511/passlocal/internal/logging"
	"github.com/forest6511/passlocal/internal/session"
	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/vault"
)

// Global flags
var (
	flagVaultPath string
	flagLogLevel  string
	flagLogJSON   bool
)

// Process-wide state set up by PersistentPreRunE.
var (
	cfg      *config.Config
	logger   zerolog.Logger
	store    *vault.Store
	auditLog *audit.Logger
	prompter = cli.NewPrompter()
)

var rootCmd = &cobra.Command{
	Use:           "passlocal",
	Short:         "passlocal is a local, password-encrypted secret vault",
	Long:          `Keep passwords, API keys and notes in a single encrypted file under ~/.passlocal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagVaultPath, "vault", "", "Vault file path (default ~/.passlocal/vault.enc)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error, off")
	rootCmd.PersistentFlags().BoolVar(&flagLogJSON, "log-json", false, "Write logs as JSON lines")
}

// Execute runs the root command and prints a friendly error.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", friendlyError(err))
	}
	return err
}

// setup loads the config, builds the logger, and opens the store.
func setup() error {
	configPath := filepath.Join(filepath.Dir(vault.DefaultPath()), config.FileName)
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	cfg = c

	level := cfg.LogLevel
	if flagLogLevel != "" {
		level = flagLogLevel
	}
	logger, err = logging.New(logging.Options{
		Level:  level,
		JSON:   cfg.LogJSON || flagLogJSON,
		Output: os.Stderr,
	})
	if err != nil {
		return err
	}

	path := vault.DefaultPath()
	if cfg.VaultPath != "" {
		path = cfg.VaultPath
	}
	if flagVaultPath != "" {
		path = flagVaultPath
	}

	opts := []vault.Option{
		vault.WithLogger(logger),
		vault.WithUnlockThrottle(),
	}
	auditLog = nil
	if cfg.AuditEnabled() {
		auditLog = audit.NewLogger(filepath.Join(filepath.Dir(path), "audit"))
		opts = append(opts, vault.WithAudit(auditLog, audit.SourceCLI))
	}
	store = vault.New(path, opts...)

	logger.Debug().Str("path", path).Bool("audit", auditLog != nil).Msg("store configured")
	return nil
}

// auditDir returns the audit log directory next to the vault.
func auditDir() string {
	return filepath.Join(store.Dir(), "audit")
}

// readPassword takes the password from PASSLOCAL_PASSWORD or prompts for it.
func readPassword(prompt string) (string, error) {
	if pw, ok := cli.PasswordFromEnv(); ok {
		return pw, nil
	}
	return prompter.Password(prompt)
}

// newSession returns a locked session over the configured store.
func newSession() *session.Session {
	opts := []session.Option{session.WithLogger(logger)}
	if auditLog != nil {
		opts = append(opts, session.WithAudit(auditLog, audit.SourceCLI))
	}
	return session.New(store, opts...)
}

// openSession asks for the password and unlocks. Callers defer sess.Lock().
func openSession() (*session.Session, error) {
	sess, _, err := openSessionWithPassword()
	return sess, err
}

// friendlyError maps sentinel errors to messages a user can act on.
func friendlyError(err error) string {
	switch {
	case errors.Is(err, vault.ErrVaultNotFound):
		return "no vault found; run 'passlocal init' first"
	case errors.Is(err, vault.ErrVaultAlreadyExists):
		return "a vault already exists at " + store.Path()
	case errors.Is(err, vault.ErrTooManyAttempts):
		return err.Error()
	case errors.Is(err, vault.ErrInvalidPassword):
		return "invalid master password"
	case errors.Is(err, vault.ErrVaultCorrupted):
		return "the vault file is corrupted; run 'passlocal doctor' or restore a backup"
	case errors.Is(err, vault.ErrVaultBusy):
		return "the vault is being written by another passlocal process; try again"
	case errors.Is(err, vault.ErrInsufficientDisk):
		return err.Error()
	case errors.Is(err, session.ErrEmptyPassword):
		return "the master password must not be empty"
	case errors.Is(err, cli.ErrPasswordMismatch):
		return "passwords do not match"
	default:
		return err.Error()
	}
}

// openSessionWithPassword is openSession for commands that reuse the
// master password, such as backup.
func openSessionWithPassword() (*session.Session, string, error) {
	if !store.Exists() {
		return nil, "", vault.ErrVaultNotFound
	}
	password, err := readPassword("Enter master password: ")
	if err != nil {
		return nil, "", err
	}
	sess := newSession()
	if _, err := sess.Unlock(password); err != nil {
		return nil, "", err
	}
	return sess, password, nil
}
