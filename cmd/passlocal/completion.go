package main

import (
	"os"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate a shell completion script",
	Long: `To load completions:

Bash:
  $ source <(passlocal completion bash)
  $ passlocal completion bash > ~/.local/share/bash-completion/completions/passlocal

Zsh:
  $ passlocal completion zsh > ~/.zsh/completions/_passlocal

Fish:
  $ passlocal completion fish > ~/.config/fish/completions/passlocal.fish

PowerShell:
  PS> passlocal completion powershell >> $PROFILE

Secret and folder names complete only when PASSLOCAL_COMPLETION_ENABLED=1
and PASSLOCAL_PASSWORD are both set; completion never prompts.
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		switch args[0] {
		case "bash":
			return cmd.Root().GenBashCompletion(os.Stdout)
		case "zsh":
			return cmd.Root().GenZshCompletion(os.Stdout)
		case "fish":
			return cmd.Root().GenFishCompletion(os.Stdout, true)
		case "powershell":
			return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}
