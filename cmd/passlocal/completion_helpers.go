package main

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/forest6511/passlocal/internal/cli"
	"github.com/forest6511/passlocal/pkg/importer"
	"github.com/forest6511/passlocal/pkg/vault"
)

// EnvCompletion opts in to completing names from the vault.
const EnvCompletion = "PASSLOCAL_COMPLETION_ENABLED"

// isDynamicCompletionEnabled reports whether names may be completed. It
// needs both the opt-in and a password in the environment, so completion
// never prompts.
func isDynamicCompletionEnabled() bool {
	if os.Getenv(EnvCompletion) != "1" {
		return false
	}
	_, ok := os.LookupEnv(cli.EnvPassword)
	return ok
}

// completionVault unlocks the vault without prompting.
func completionVault() (*vault.Vault, bool) {
	if !isDynamicCompletionEnabled() || store == nil || !store.Exists() {
		return nil, false
	}
	password, _ := cli.PasswordFromEnv()
	sess := newSession()
	defer sess.Lock()
	if _, err := sess.Unlock(password); err != nil {
		return nil, false
	}
	v, err := sess.Vault()
	if err != nil {
		return nil, false
	}
	return v, true
}

func completeSecretNames(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	v, ok := completionVault()
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, s := range cli.SortByName(v.Secrets) {
		if hasPrefixFold(s.Name, toComplete) {
			names = append(names, s.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func completeFolderNames(_ *cobra.Command, _ []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	v, ok := completionVault()
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	var names []string
	for _, f := range v.SortedFolders() {
		if hasPrefixFold(f.Name, toComplete) {
			names = append(names, f.Name)
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

type completionFunc = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective)

// firstArg limits a completion function to the first positional argument.
func firstArg(fn completionFunc) completionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return fn(cmd, args, toComplete)
	}
}

// registerCompletionFunctions wires name completion into commands. It runs
// after every init so that all flags exist.
func registerCompletionFunctions() {
	for _, c := range []*cobra.Command{secretGetCmd, secretUpdateCmd} {
		c.ValidArgsFunction = firstArg(completeSecretNames)
	}
	secretDeleteCmd.ValidArgsFunction = completeSecretNames
	for _, c := range []*cobra.Command{folderRenameCmd, folderMoveCmd, folderDeleteCmd} {
		c.ValidArgsFunction = firstArg(completeFolderNames)
	}
	for _, c := range []*cobra.Command{secretListCmd, secretAddCmd, secretUpdateCmd, importCmd} {
		_ = c.RegisterFlagCompletionFunc("folder", completeFolderNames)
	}
	_ = importCmd.RegisterFlagCompletionFunc("from", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return importer.ValidSources(), cobra.ShellCompDirectiveNoFileComp
	})
}
