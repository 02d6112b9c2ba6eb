package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/internal/cli"
	"github.com/forest6511/passlocal/pkg/security"
	"github.com/forest6511/passlocal/pkg/vault"
)

var (
	initForceWeak bool
	statusJSON    bool
	doctorJSON    bool
)

func init() {
	rootCmd.AddCommand(initCmd, statusCmd, unlockCmd, doctorCmd)

	initCmd.Flags().BoolVar(&initForceWeak, "allow-weak", false, "Accept a master password rated weak")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output as JSON")
	doctorCmd.Flags().BoolVar(&doctorJSON, "json", false, "Output as JSON")
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a new vault",
	Long: `Create a new vault protected by a master password.

The vault starts with the folders "Personal" and "Work". There is no way to
recover a forgotten master password.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if store.Exists() {
			return vault.ErrVaultAlreadyExists
		}

		password, ok := cli.PasswordFromEnv()
		if !ok {
			fmt.Fprintf(cmd.ErrOrStderr(), "Creating a vault at %s\n", store.Path())
			var err error
			if password, err = prompter.NewPassword(); err != nil {
				return err
			}
		}

		report := security.ValidateMasterPassword(password)
		if !report.Valid {
			return fmt.Errorf("master password must be %d-%d characters",
				security.MinMasterPasswordLength, security.MaxMasterPasswordLength)
		}
		for _, w := range report.Warnings {
			fmt.Fprintln(cmd.ErrOrStderr(), "Warning:", w)
		}
		if report.Strength == security.PasswordWeak && !initForceWeak {
			return errors.New("master password is too weak; choose a stronger one or pass --allow-weak")
		}

		sess := newSession()
		defer sess.Lock()
		if _, err := sess.Setup(password); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Vault created at %s (strength: %s)\n", store.Path(), report.Strength)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a vault exists and its lockout state",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st := newSession().Status()
		cooldown := store.RemainingCooldown()

		failed := 0
		if ls, err := store.GetLockState(); err == nil && ls != nil {
			failed = ls.FailedAttempts
		}

		lowDisk, _ := store.IsDiskSpaceLow()

		out := cmd.OutOrStdout()
		if statusJSON {
			return writeJSON(out, map[string]any{
				"path":             store.Path(),
				"exists":           st.Exists,
				"failed_attempts":  failed,
				"cooldown_seconds": int(cooldown.Seconds()),
				"disk_space_low":   lowDisk,
			})
		}

		fmt.Fprintf(out, "Vault:   %s\n", store.Path())
		if !st.Exists {
			fmt.Fprintln(out, "Status:  not initialized (run 'passlocal init')")
			return nil
		}
		fmt.Fprintln(out, "Status:  initialized, locked")
		if failed > 0 {
			fmt.Fprintf(out, "Failed unlock attempts: %d\n", failed)
		}
		if cooldown > 0 {
			fmt.Fprintf(out, "Unlock blocked for another %s\n", cooldown.Round(time.Second))
		}
		if lowDisk {
			fmt.Fprintln(out, "Warning: disk space is low")
		}
		return nil
	},
}

var unlockCmd = &cobra.Command{
	Use:   "unlock",
	Short: "Check the master password and summarise the vault",
	Long: `Unlock the vault, print a summary and lock it again.

passlocal keeps nothing unlocked between commands; every command that needs
the vault asks for the master password or reads PASSLOCAL_PASSWORD.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.Lock()

		v, err := sess.Vault()
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Vault unlocked: %d folders, %d secrets\n", len(v.Folders), len(v.Secrets))
		return nil
	},
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the vault file without decrypting it",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := store.CheckIntegrity()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if doctorJSON {
			if err := writeJSON(out, res); err != nil {
				return err
			}
		} else {
			check := func(name string, ok bool) {
				mark := "ok"
				if !ok {
					mark = "FAIL"
				}
				fmt.Fprintf(out, "  %-12s %s\n", name, mark)
			}
			fmt.Fprintf(out, "Checking %s\n", store.Path())
			check("file", res.FileExists)
			check("container", res.ContainerValid)
			check("salt", res.SaltValid)
			check("test vector", res.TestValid)
			check("data", res.DataValid)
			check("permissions", res.PermissionsValid)
			if len(res.Errors) > 0 {
				fmt.Fprintf(out, "\nProblems:\n  %s\n", strings.Join(res.Errors, "\n  "))
			}
		}

		if !res.Valid {
			return errors.New("vault failed the integrity check")
		}
		return nil
	},
}
