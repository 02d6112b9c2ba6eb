package main

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

const (
	charsetLowercase = "abcdefghijklmnopqrstuvwxyz"
	charsetUppercase = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	charsetDigits    = "0123456789"
	charsetSymbols   = "!@#$%^&*()_+-=[]{}|;:,.<>?"

	minPasswordLength     = 8
	maxPasswordLength     = 256
	defaultPasswordLength = 24
	maxPasswordCount      = 100
	maxExcludeLength      = 256
)

// generateOptions are the generate flags.
type generateOptions struct {
	length      int
	count       int
	noSymbols   bool
	noNumbers   bool
	noUppercase bool
	noLowercase bool
	exclude     string
	copy        bool
}

var genOpts generateOptions

func init() {
	rootCmd.AddCommand(generateCmd)

	f := generateCmd.Flags()
	f.IntVarP(&genOpts.length, "length", "l", defaultPasswordLength, "Password length (8-256)")
	f.IntVarP(&genOpts.count, "count", "n", 1, "Number of passwords to generate (1-100)")
	f.BoolVar(&genOpts.noSymbols, "no-symbols", false, "Exclude symbols")
	f.BoolVar(&genOpts.noNumbers, "no-numbers", false, "Exclude digits")
	f.BoolVar(&genOpts.noUppercase, "no-uppercase", false, "Exclude uppercase letters")
	f.BoolVar(&genOpts.noLowercase, "no-lowercase", false, "Exclude lowercase letters")
	f.StringVar(&genOpts.exclude, "exclude", "", "Characters to exclude")
	f.BoolVarP(&genOpts.copy, "copy", "c", false, "Copy the first password to the clipboard")
}

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate random passwords",
	Long: `Generate passwords from a cryptographically secure source.

Examples:
  passlocal generate
  passlocal generate -l 32 --no-symbols
  passlocal generate -n 5 --exclude "0O1lI"
  passlocal generate -c`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		passwords, err := generatePasswords(genOpts)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, p := range passwords {
			fmt.Fprintln(out, p)
		}
		if genOpts.copy {
			copyWithTimeout(passwords[0])
		}
		return nil
	},
}

// generatePasswords validates o and returns o.count passwords.
func generatePasswords(o generateOptions) ([]string, error) {
	if err := o.validate(); err != nil {
		return nil, err
	}
	charset, err := o.charset()
	if err != nil {
		return nil, err
	}
	passwords := make([]string, o.count)
	for i := range passwords {
		if passwords[i], err = generatePassword(charset, o.length); err != nil {
			return nil, fmt.Errorf("failed to generate password: %w", err)
		}
	}
	return passwords, nil
}

func (o generateOptions) validate() error {
	switch {
	case o.length < minPasswordLength:
		return fmt.Errorf("password length must be at least %d characters", minPasswordLength)
	case o.length > maxPasswordLength:
		return fmt.Errorf("password length must be at most %d characters", maxPasswordLength)
	case o.count < 1:
		return errors.New("count must be at least 1")
	case o.count > maxPasswordCount:
		return fmt.Errorf("count must be at most %d", maxPasswordCount)
	case len(o.exclude) > maxExcludeLength:
		return fmt.Errorf("exclude string must be at most %d characters", maxExcludeLength)
	}
	return nil
}

// charset joins the enabled classes and drops excluded characters.
func (o generateOptions) charset() (string, error) {
	var b strings.Builder
	if !o.noLowercase {
		b.WriteString(charsetLowercase)
	}
	if !o.noUppercase {
		b.WriteString(charsetUppercase)
	}
	if !o.noNumbers {
		b.WriteString(charsetDigits)
	}
	if !o.noSymbols {
		b.WriteString(charsetSymbols)
	}
	set := removeChars(b.String(), o.exclude)
	if set == "" {
		return "", errors.New("character set is empty: enable at least one character class")
	}
	return set, nil
}

func removeChars(s, chars string) string {
	if chars == "" {
		return s
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(chars, r) {
			return -1
		}
		return r
	}, s)
}

// generatePassword draws length bytes uniformly from charset.
func generatePassword(charset string, length int) (string, error) {
	n := big.NewInt(int64(len(charset)))
	out := make([]byte, length)
	for i := range out {
		idx, err := rand.Int(rand.Reader, n)
		if err != nil {
			return "", fmt.Errorf("failed to read random number: %w", err)
		}
		out[i] = charset[idx.Int64()]
	}
	return string(out), nil
}

// copyWithTimeout copies text and, when configured, clears the clipboard
// after clipboard_clear_seconds. The command blocks until then.
func copyWithTimeout(text string) {
	if err := copyToClipboard(text); err != nil {
		logger.Warn().Err(err).Msg("failed to copy to clipboard")
		return
	}
	wait := 0
	if cfg != nil {
		wait = cfg.ClipboardClearSeconds
	}
	if wait <= 0 {
		fmt.Fprintln(os.Stderr, "Copied to clipboard")
		return
	}
	fmt.Fprintf(os.Stderr, "Copied to clipboard; clearing in %ds\n", wait)
	time.Sleep(time.Duration(wait) * time.Second)
	if err := copyToClipboard(""); err != nil {
		logger.Warn().Err(err).Msg("failed to clear clipboard")
	}
}

func copyToClipboard(text string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("pbcopy")
	case "linux":
		if _, err := exec.LookPath("xclip"); err == nil {
			cmd = exec.Command("xclip", "-selection", "clipboard")
		} else if _, err := exec.LookPath("xsel"); err == nil {
			cmd = exec.Command("xsel", "--clipboard", "--input")
		} else if _, err := exec.LookPath("wl-copy"); err == nil {
			cmd = exec.Command("wl-copy")
		} else {
			return errors.New("clipboard tool not found: install xclip, xsel or wl-clipboard")
		}
	case "windows":
		cmd = exec.Command("clip")
	default:
		return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
	}
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}
