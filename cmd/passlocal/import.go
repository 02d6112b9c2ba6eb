package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/internal/cli"
	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/importer"
	"github.com/forest6511/passlocal/pkg/vault"
)

// maxImportFileSize bounds export files read into memory.
const maxImportFileSize = 64 * 1024 * 1024

var (
	importFrom         string
	importFolder       string
	importSkipExisting bool
	importDryRun       bool
)

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().StringVar(&importFrom, "from", "", "Source format: "+strings.Join(importer.ValidSources(), ", "))
	importCmd.Flags().StringVar(&importFolder, "folder", "", "Folder for entries without a source folder")
	importCmd.Flags().BoolVar(&importSkipExisting, "skip-existing", false, "Skip entries whose name already exists in the target folder")
	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Show what would be imported without saving")
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import secrets from another password manager",
	Long: `Import an export from 1Password (CSV), Bitwarden (JSON), LastPass (CSV)
or KeePass (KDBX). Source folders are created by name.

Bitwarden and KeePass files are recognised by extension; CSV exports need
--from. A KeePass database password is prompted for.

Examples:
  passlocal import bitwarden_export.json
  passlocal import lastpass.csv --from lastpass --folder Imported
  passlocal import Passwords.kdbx --dry-run`,
	Args: cobra.ExactArgs(1),
	RunE: executeImport,
}

func executeImport(cmd *cobra.Command, args []string) error {
	source, err := detectImportSource(args[0], importFrom)
	if err != nil {
		return err
	}
	parser, err := importer.GetParser(source)
	if err != nil {
		return fmt.Errorf("invalid --from value '%s': must be one of %v", importFrom, importer.ValidSources())
	}

	data, err := readImportFile(args[0])
	if err != nil {
		return err
	}

	sess, err := openSession()
	if err != nil {
		return err
	}
	defer sess.Lock()

	var parseOpts importer.ParseOptions
	if source == importer.SourceKeePass {
		if parseOpts.Password, err = prompter.Password("KeePass database password: "); err != nil {
			return err
		}
	}

	result, err := parser.Parse(data, parseOpts)
	if err != nil {
		return fmt.Errorf("failed to parse %s export: %w", source, err)
	}

	stderr := cmd.ErrOrStderr()
	for _, w := range result.Warnings {
		fmt.Fprintln(stderr, "Warning:", w)
	}
	if len(result.Secrets) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No secrets found in file")
		return nil
	}

	apply := func(v *vault.Vault) (*importer.ApplyResult, error) {
		opts := importer.ApplyOptions{SkipExisting: importSkipExisting}
		if importFolder != "" {
			f, err := cli.ResolveFolder(importFolder, v)
			if err != nil {
				return nil, err
			}
			opts.DefaultFolderID = f.ID
		}
		return importer.Apply(v, result, opts)
	}

	var applied *importer.ApplyResult
	if importDryRun {
		v, err := sess.Vault()
		if err != nil {
			return err
		}
		if applied, err = apply(v); err != nil {
			return err
		}
	} else {
		_, err = sess.Update(func(v *vault.Vault) error {
			var aerr error
			applied, aerr = apply(v)
			return aerr
		})
		sess.Record(audit.OpSecretImport, string(source), err)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}
	}

	printImportSummary(cmd, result, applied)
	return nil
}

// detectImportSource returns from when set, otherwise guesses by extension.
func detectImportSource(path, from string) (importer.Source, error) {
	if from != "" {
		return importer.Source(strings.ToLower(from)), nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".kdbx":
		return importer.SourceKeePass, nil
	case ".json":
		return importer.SourceBitwarden, nil
	}
	return "", fmt.Errorf("cannot tell the format of %s: use --from (%s)", path, strings.Join(importer.ValidSources(), ", "))
}

// readImportFile reads a regular file, refusing symlinks and oversized files.
func readImportFile(path string) ([]byte, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	info, err := os.Lstat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("file not found: %s", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to access file: %w", err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("refusing to read symlink: %s", abs)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", abs)
	}
	if info.Size() > maxImportFileSize {
		return nil, fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), maxImportFileSize)
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func printImportSummary(cmd *cobra.Command, parsed *importer.ImportResult, applied *importer.ApplyResult) {
	out, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()

	for _, s := range parsed.Skipped {
		fmt.Fprintf(stderr, "Skipped: %s (%s)\n", s.OriginalName, s.Reason)
	}
	for _, s := range applied.Skipped {
		fmt.Fprintf(stderr, "Skipped: %s (%s)\n", s.OriginalName, s.Reason)
	}

	verb := "Imported"
	if importDryRun {
		verb = "Would import"
	}
	fmt.Fprintf(out, "%s %d secrets", verb, len(applied.Added))
	if n := len(applied.FoldersCreated); n > 0 {
		names := make([]string, n)
		for i, f := range applied.FoldersCreated {
			names[i] = f.Name
		}
		fmt.Fprintf(out, " and %d new folders (%s)", n, strings.Join(names, ", "))
	}
	fmt.Fprintln(out)
	if n := len(parsed.Skipped) + len(applied.Skipped); n > 0 {
		fmt.Fprintf(out, "Skipped %d entries\n", n)
	}
}
