package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/internal/cli"
	"github.com/forest6511/passlocal/pkg/audit"
	"github.com/forest6511/passlocal/pkg/vault"
)

// Secret command flags
var (
	secretFolder     string
	secretKey        string
	secretNotes      string
	secretName       string
	secretValueStdin bool
	secretGenerate   bool
	secretNewValue   bool
	secretJSON       bool
	secretField      string
	secretCopy       bool
	secretForce      bool
)

var secretCmd = &cobra.Command{
	Use:     "secret",
	Aliases: []string{"s"},
	Short:   "Manage secrets",
}

var secretListCmd = &cobra.Command{
	Use:   "list [pattern...]",
	Short: "List secrets without their values",
	Long: `List secrets, optionally filtered by name patterns.

Patterns are matched case-insensitively against names; '*', '?' and '[...]'
work as in shell globs. Values are never printed.

Examples:
  passlocal secret list
  passlocal secret list "aws*" --folder Work`,
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

		secrets := v.Secrets
		if secretFolder != "" {
			f, err := cli.ResolveFolder(secretFolder, v)
			if err != nil {
				return err
			}
			secrets = v.SecretsInFolder(f.ID)
		}
		if len(args) > 0 {
			if secrets, err = cli.MatchAny(args, secrets); err != nil {
				if errors.Is(err, cli.ErrNoMatch) {
					fmt.Fprintln(cmd.ErrOrStderr(), "No secrets found.")
					return nil
				}
				return err
			}
		}
		secrets = cli.SortByName(secrets)
		sess.Record(audit.OpSecretList, "", nil)

		out := cmd.OutOrStdout()
		if secretJSON {
			type item struct {
				ID        string    `json:"id"`
				Name      string    `json:"name"`
				Key       string    `json:"key,omitempty"`
				Folder    string    `json:"folder"`
				HasNotes  bool      `json:"has_notes"`
				UpdatedAt time.Time `json:"updated_at"`
			}
			items := make([]item, 0, len(secrets))
			for _, s := range secrets {
				items = append(items, item{s.ID, s.Name, s.Key, folderName(v, s.FolderID), s.Notes != "", s.UpdatedAt})
			}
			return writeJSON(out, items)
		}

		if len(secrets) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No secrets found.")
			return nil
		}
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tKEY\tFOLDER\tUPDATED\tID")
		for _, s := range secrets {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Name, s.Key, folderName(v, s.FolderID),
				s.UpdatedAt.Local().Format("2006-01-02"), s.ID)
		}
		return w.Flush()
	},
}

var secretAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a secret",
	Long: `Add a secret. The value is prompted without echo unless --stdin or
--generate is given.

Examples:
  passlocal secret add GitHub --key GITHUB_TOKEN --folder Work
  echo -n "$TOKEN" | passlocal secret add CI --stdin
  passlocal secret add "Router admin" --generate`,
	Args: cobra.ExactArgs(1),
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
		folderID := v.SortedFolders()[0].ID
		if secretFolder != "" {
			f, err := cli.ResolveFolder(secretFolder, v)
			if err != nil {
				return err
			}
			folderID = f.ID
		}

		value, err := readSecretValue(cmd)
		if err != nil {
			return err
		}

		s, err := sess.AddSecret(vault.SecretInput{
			Name:     args[0],
			Key:      secretKey,
			Value:    value,
			Notes:    secretNotes,
			FolderID: folderID,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added secret %s (ID: %s)\n", s.Name, s.ID)
		return nil
	},
}

var secretGetCmd = &cobra.Command{
	Use:   "get <name-or-id>",
	Short: "Print a secret value",
	Long: `Print one field of a secret. The value is printed by default; --field
selects key or notes instead, and --json prints the whole record.

Every read is written to the audit log.`,
	Args: cobra.ExactArgs(1),
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
		s, err := cli.ResolveSecret(args[0], v.Secrets)
		if err != nil {
			return err
		}
		sess.Record(audit.OpSecretGet, s.ID, nil)

		out := cmd.OutOrStdout()
		if secretJSON {
			return writeJSON(out, s)
		}

		var text string
		switch secretField {
		case "value", "":
			text = s.Value
		case "key":
			text = s.Key
		case "notes":
			text = s.Notes
		default:
			return fmt.Errorf("unknown field %q: use value, key or notes", secretField)
		}

		if secretCopy {
			copyWithTimeout(text)
			return nil
		}
		fmt.Fprintln(out, text)
		return nil
	},
}

var secretUpdateCmd = &cobra.Command{
	Use:   "update <name-or-id>",
	Short: "Change a secret",
	Long: `Change the name, key, notes, folder or value of a secret. Only the
fields given as flags change. --value prompts for a new value.`,
	Args: cobra.ExactArgs(1),
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
		s, err := cli.ResolveSecret(args[0], v.Secrets)
		if err != nil {
			return err
		}

		in := vault.SecretInput{Name: s.Name, Key: s.Key, Value: s.Value, Notes: s.Notes, FolderID: s.FolderID}
		flags := cmd.Flags()
		if flags.Changed("name") {
			in.Name = secretName
		}
		if flags.Changed("key") {
			in.Key = secretKey
		}
		if flags.Changed("notes") {
			in.Notes = secretNotes
		}
		if flags.Changed("folder") {
			f, err := cli.ResolveFolder(secretFolder, v)
			if err != nil {
				return err
			}
			in.FolderID = f.ID
		}
		if secretNewValue || secretValueStdin || secretGenerate {
			if in.Value, err = readSecretValue(cmd); err != nil {
				return err
			}
		}

		updated, err := sess.UpdateSecret(s.ID, in)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Updated secret %s\n", updated.Name)
		return nil
	},
}

var secretDeleteCmd = &cobra.Command{
	Use:   "delete <pattern...>",
	Short: "Delete secrets by name, glob or id",
	Args:  cobra.MinimumNArgs(1),
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
		targets, err := resolveTargets(args, v.Secrets)
		if err != nil {
			return err
		}

		if !secretForce {
			names := make([]string, len(targets))
			for i, s := range targets {
				names[i] = s.Name
			}
			if !prompter.Confirm(fmt.Sprintf("Delete %d secrets (%s)?", len(targets), strings.Join(names, ", "))) {
				fmt.Fprintln(os.Stderr, "Cancelled")
				return nil
			}
		}

		for _, s := range targets {
			if err := sess.DeleteSecret(s.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted secret %s\n", s.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(secretCmd)
	secretCmd.AddCommand(secretListCmd, secretAddCmd, secretGetCmd, secretUpdateCmd, secretDeleteCmd)

	secretListCmd.Flags().StringVar(&secretFolder, "folder", "", "Only list secrets in this folder")
	secretListCmd.Flags().BoolVar(&secretJSON, "json", false, "Output as JSON")

	for _, c := range []*cobra.Command{secretAddCmd, secretUpdateCmd} {
		c.Flags().StringVar(&secretFolder, "folder", "", "Folder name or id")
		c.Flags().StringVar(&secretKey, "key", "", "Key, such as a username or variable name")
		c.Flags().StringVar(&secretNotes, "notes", "", "Free-form notes")
		c.Flags().BoolVar(&secretValueStdin, "stdin", false, "Read the value from standard input")
		c.Flags().BoolVar(&secretGenerate, "generate", false, "Generate a random value")
	}
	secretUpdateCmd.Flags().StringVar(&secretName, "name", "", "New name")
	secretUpdateCmd.Flags().BoolVar(&secretNewValue, "value", false, "Prompt for a new value")

	secretGetCmd.Flags().StringVar(&secretField, "field", "value", "Field to print: value, key or notes")
	secretGetCmd.Flags().BoolVarP(&secretCopy, "copy", "c", false, "Copy to the clipboard instead of printing")
	secretGetCmd.Flags().BoolVar(&secretJSON, "json", false, "Print the whole secret as JSON")

	secretDeleteCmd.Flags().BoolVarP(&secretForce, "force", "f", false, "Do not ask for confirmation")
}

// readSecretValue returns the value from stdin, a generator or a hidden prompt.
func readSecretValue(cmd *cobra.Command) (string, error) {
	switch {
	case secretValueStdin && secretGenerate:
		return "", errors.New("--stdin and --generate are mutually exclusive")
	case secretValueStdin:
		data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), vault.MaxValueSize+1))
		if err != nil {
			return "", fmt.Errorf("failed to read value: %w", err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	case secretGenerate:
		o := generateOptions{length: defaultPasswordLength, count: 1}
		p, err := generatePasswords(o)
		if err != nil {
			return "", err
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "Generated a random value")
		return p[0], nil
	default:
		return prompter.Password("Value: ")
	}
}

// resolveTargets resolves each argument as an id or a name pattern.
func resolveTargets(args []string, secrets []vault.Secret) ([]vault.Secret, error) {
	seen := make(map[string]bool)
	var out []vault.Secret
	for _, arg := range args {
		matches, err := cli.MatchSecrets(arg, secrets)
		if errors.Is(err, cli.ErrNoMatch) {
			s, rerr := cli.ResolveSecret(arg, secrets)
			if rerr != nil {
				return nil, err
			}
			matches = []vault.Secret{s}
		} else if err != nil {
			return nil, err
		}
		for _, s := range matches {
			if !seen[s.ID] {
				seen[s.ID] = true
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func folderName(v *vault.Vault, id string) string {
	if f, err := v.Folder(id); err == nil {
		return f.Name
	}
	return id
}

