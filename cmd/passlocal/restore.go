package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/backup"
)

var (
	restoreKeyFile    string
	restoreForce      bool
	restoreDryRun     bool
	restoreVerifyOnly bool
	restoreWithAudit  bool
	restoreJSON       bool
)

func init() {
	rootCmd.AddCommand(restoreCmd)

	restoreCmd.Flags().StringVar(&restoreKeyFile, "key-file", "", "Decrypt with a key file")
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Replace an existing vault")
	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Check the backup and show what would be restored")
	restoreCmd.Flags().BoolVar(&restoreVerifyOnly, "verify-only", false, "Only check integrity")
	restoreCmd.Flags().BoolVar(&restoreWithAudit, "with-audit", false, "Also restore the audit log")
	restoreCmd.Flags().BoolVar(&restoreJSON, "json", false, "Print the --verify-only result as JSON")
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore the vault from a backup",
	Long: `Restore the vault file from an encrypted backup.

The backup password is asked for unless --key-file is given. Restoring over
an existing vault requires --force.

Examples:
  passlocal restore vault.plb --verify-only
  passlocal restore vault.plb --dry-run
  passlocal restore vault.plb --force --with-audit
  passlocal restore vault.plb --key-file ~/backup.key`,
	Args: cobra.ExactArgs(1),
	RunE: executeRestore,
}

func executeRestore(cmd *cobra.Command, args []string) error {
	if restoreVerifyOnly && restoreDryRun {
		return errors.New("--verify-only and --dry-run are mutually exclusive")
	}

	var r io.Reader
	if args[0] == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open backup: %w", err)
		}
		defer f.Close()
		r = f
	}

	opts := backup.Options{KeyFile: restoreKeyFile, AuditDir: auditDir()}
	var password string
	if restoreKeyFile == "" {
		pw, err := readPassword("Enter backup password: ")
		if err != nil {
			return err
		}
		password = pw
		opts.Password = []byte(pw)
	}

	out := cmd.OutOrStdout()
	if restoreVerifyOnly {
		res, err := backup.Verify(r, opts)
		if err != nil {
			return err
		}
		if restoreJSON {
			if err := writeJSON(out, res); err != nil {
				return err
			}
		} else if res.Valid {
			fmt.Fprintf(out, "Backup is valid: format v%d, created %s, %d secrets, %d folders, audit included: %t\n",
				res.Version, res.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				res.SecretCount, res.FolderCount, res.IncludesAudit)
		}
		if !res.Valid {
			return fmt.Errorf("backup is invalid: %s", res.Error)
		}
		return nil
	}

	res, err := backup.Restore(store, r, backup.RestoreOptions{
		Options:   opts,
		Force:     restoreForce,
		DryRun:    restoreDryRun,
		WithAudit: restoreWithAudit,
	})
	if errors.Is(err, backup.ErrVaultExists) {
		return fmt.Errorf("%w at %s (use --force to replace it)", err, store.Path())
	}
	if err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}

	h := res.Header
	if res.DryRun {
		fmt.Fprintf(out, "Dry run: would restore %d secrets in %d folders from a backup created %s\n",
			h.SecretCount, h.FolderCount, h.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		if restoreWithAudit && h.IncludesAudit {
			fmt.Fprintln(out, "Dry run: would replace the audit log")
		}
		return nil
	}

	fmt.Fprintf(out, "Restored %d secrets in %d folders to %s\n", h.SecretCount, h.FolderCount, store.Path())
	if res.AuditRestored {
		fmt.Fprintln(out, "Audit log restored")
	}

	// The backup password is usually the master password; when it opens the
	// restored vault, the restore is recorded in its audit log.
	if password != "" && auditLog != nil {
		sess := newSession()
		if _, err := sess.Unlock(password); err == nil {
			sess.Record(audit.OpVaultRestore, "", nil)
			sess.Lock()
		}
	}
	return nil
}
