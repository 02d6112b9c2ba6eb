package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/internal/cli"
)

var (
	folderIcon  string
	folderJSON  bool
	folderForce bool
)

var folderCmd = &cobra.Command{
	Use:   "folder",
	Short: "Manage folders",
	Long: `Create, rename, reorder and delete folders.

Folders are flat and kept in a user-defined order. A vault always has at
least one folder; secrets in a deleted folder move to its neighbour.`,
}

var folderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List folders in display order",
	Args:  cobra.NoArgs,
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
		folders := v.ListFolders()

		out := cmd.OutOrStdout()
		if folderJSON {
			return writeJSON(out, folders)
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tNAME\tICON\tSECRETS\tID")
		for _, f := range folders {
			fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\n", f.Order, f.Name, f.Icon, f.SecretCount, f.ID)
		}
		return w.Flush()
	},
}

var folderAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Create a folder at the end of the list",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.Lock()

		f, err := sess.AddFolder(args[0], folderIcon)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created folder %s (ID: %s)\n", f.Name, f.ID)
		return nil
	},
}

var folderRenameCmd = &cobra.Command{
	Use:   "rename <folder> <new-name>",
	Short: "Rename a folder, optionally changing its icon",
	Args:  cobra.ExactArgs(2),
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
		f, err := cli.ResolveFolder(args[0], v)
		if err != nil {
			return err
		}
		icon := f.Icon
		if cmd.Flags().Changed("icon") {
			icon = folderIcon
		}
		updated, err := sess.UpdateFolder(f.ID, args[1], icon)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Renamed folder %s to %s\n", f.Name, updated.Name)
		return nil
	},
}

var folderMoveCmd = &cobra.Command{
	Use:   "move <folder> <position>",
	Short: "Move a folder to a 0-based position",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		pos, err := strconv.Atoi(args[1])
		if err != nil || pos < 0 {
			return fmt.Errorf("invalid position %q", args[1])
		}

		sess, err := openSession()
		if err != nil {
			return err
		}
		defer sess.Lock()

		v, err := sess.Vault()
		if err != nil {
			return err
		}
		f, err := cli.ResolveFolder(args[0], v)
		if err != nil {
			return err
		}
		if err := sess.MoveFolder(f.ID, pos); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved folder %s\n", f.Name)
		return nil
	},
}

var folderDeleteCmd = &cobra.Command{
	Use:   "delete <folder>",
	Short: "Delete a folder and move its secrets to a neighbour",
	Args:  cobra.ExactArgs(1),
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
		f, err := cli.ResolveFolder(args[0], v)
		if err != nil {
			return err
		}

		n := len(v.SecretsInFolder(f.ID))
		if !folderForce && n > 0 {
			if !prompter.Confirm(fmt.Sprintf("Folder %s holds %d secrets that will be moved. Delete it?", f.Name, n)) {
				fmt.Fprintln(os.Stderr, "Cancelled")
				return nil
			}
		}

		if err := sess.DeleteFolder(f.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted folder %s\n", f.Name)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(folderCmd)
	folderCmd.AddCommand(folderListCmd, folderAddCmd, folderRenameCmd, folderMoveCmd, folderDeleteCmd)

	folderListCmd.Flags().BoolVar(&folderJSON, "json", false, "Output as JSON")
	folderAddCmd.Flags().StringVar(&folderIcon, "icon", "", "Icon name")
	folderRenameCmd.Flags().StringVar(&folderIcon, "icon", "", "New icon name")
	folderDeleteCmd.Flags().BoolVarP(&folderForce, "force", "f", false, "Do not ask for confirmation")
}
