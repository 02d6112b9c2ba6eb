package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/backup"
)

var (
	backupOutput         string
	backupStdout         bool
	backupWithAudit      bool
	backupBackupPassword bool
	backupKeyFile        string
	backupForce          bool
)

func init() {
	rootCmd.AddCommand(backupCmd)
	backupCmd.AddCommand(backupKeygenCmd)

	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output file path")
	backupCmd.Flags().BoolVar(&backupStdout, "stdout", false, "Write the backup to stdout")
	backupCmd.Flags().BoolVar(&backupWithAudit, "with-audit", false, "Include the audit log")
	backupCmd.Flags().BoolVar(&backupBackupPassword, "backup-password", false, "Encrypt with a separate backup password")
	backupCmd.Flags().StringVar(&backupKeyFile, "key-file", "", "Encrypt with a 32-byte key file")
	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "Overwrite an existing output file")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Write an encrypted backup of the vault",
	Long: `Write an encrypted backup of the vault file.

The backup is encrypted and authenticated with keys derived from the master
password, a separate backup password, or a key file. The vault inside stays
encrypted under the master password.

Examples:
  passlocal backup -o vault-backup.plb
  passlocal backup -o full.plb --with-audit
  passlocal backup --stdout > /mnt/usb/vault.plb
  passlocal backup keygen ~/backup.key
  passlocal backup -o vault.plb --key-file ~/backup.key`,
	Args: cobra.NoArgs,
	RunE: executeBackup,
}

var backupKeygenCmd = &cobra.Command{
	Use:   "keygen <path>",
	Short: "Create a random 32-byte backup key file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := backup.GenerateKeyFile(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Key file written to %s; store it apart from your backups\n", args[0])
		return nil
	},
}

func executeBackup(cmd *cobra.Command, args []string) error {
	if err := validateBackupFlags(); err != nil {
		return err
	}

	sess, password, err := openSessionWithPassword()
	if err != nil {
		return err
	}
	defer sess.Lock()

	v, err := sess.Vault()
	if err != nil {
		return err
	}

	opts := backup.Options{
		Password:     []byte(password),
		KeyFile:      backupKeyFile,
		AuditDir:     auditDir(),
		IncludeAudit: backupWithAudit,
	}
	if backupKeyFile != "" {
		opts.Password = nil
	} else if backupBackupPassword {
		pw, err := prompter.NewPassword()
		if err != nil {
			return err
		}
		if pw == "" {
			return backup.ErrEmptyPassword
		}
		opts.Password = []byte(pw)
	}

	out := os.Stdout
	if !backupStdout {
		flags := os.O_WRONLY | os.O_CREATE | os.O_EXCL
		if backupForce {
			flags = os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		}
		f, err := os.OpenFile(backupOutput, flags, 0o600)
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("output file already exists: %s (use --force to overwrite)", backupOutput)
		}
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	header, err := backup.Backup(store, v, out, opts)
	sess.Record(audit.OpVaultBackup, "", err)
	if err != nil {
		if !backupStdout {
			_ = os.Remove(backupOutput)
		}
		return fmt.Errorf("backup failed: %w", err)
	}

	if !backupStdout {
		fmt.Fprintf(cmd.ErrOrStderr(), "Backup written to %s (%d secrets, %d folders, mode %s)\n",
			backupOutput, header.SecretCount, header.FolderCount, header.EncryptionMode)
	}
	return nil
}

func validateBackupFlags() error {
	switch {
	case !backupStdout && backupOutput == "":
		return errors.New("either --output or --stdout is required")
	case backupStdout && backupOutput != "":
		return errors.New("--output and --stdout are mutually exclusive")
	case backupKeyFile != "" && backupBackupPassword:
		return errors.New("--key-file and --backup-password are mutually exclusive")
	}
	return nil
}
