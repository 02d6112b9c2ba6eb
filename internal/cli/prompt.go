package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// EnvPassword lets scripts and the MCP server supply the master password.
const EnvPassword = "PASSLOCAL_PASSWORD"

// ErrPasswordMismatch is returned when the confirmation differs.
var ErrPasswordMismatch = errors.New("passwords do not match")

// Prompter reads answers from a terminal or a pipe.
type Prompter struct {
	In  *os.File
	Out io.Writer

	reader *bufio.Reader
}

// NewPrompter returns a Prompter on stdin/stderr.
func NewPrompter() *Prompter {
	return &Prompter{In: os.Stdin, Out: os.Stderr}
}

// PasswordFromEnv returns EnvPassword and removes it from the environment so
// child processes never inherit it.
func PasswordFromEnv() (string, bool) {
	pw, ok := os.LookupEnv(EnvPassword)
	if !ok {
		return "", false
	}
	_ = os.Unsetenv(EnvPassword)
	return pw, true
}

// Password prints prompt and reads a line without echo. Piped input is read
// as a plain line.
func (p *Prompter) Password(prompt string) (string, error) {
	fmt.Fprint(p.Out, prompt)
	if term.IsTerminal(int(p.In.Fd())) {
		b, err := term.ReadPassword(int(p.In.Fd()))
		fmt.Fprintln(p.Out)
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(b), nil
	}
	return p.Line("")
}

// NewPassword asks twice and requires both answers to match.
func (p *Prompter) NewPassword() (string, error) {
	first, err := p.Password("Enter master password: ")
	if err != nil {
		return "", err
	}
	second, err := p.Password("Confirm master password: ")
	if err != nil {
		return "", err
	}
	if first != second {
		return "", ErrPasswordMismatch
	}
	return first, nil
}

// Line prints prompt and reads one line, without the trailing newline.
func (p *Prompter) Line(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(p.Out, prompt)
	}
	if p.reader == nil {
		p.reader = bufio.NewReader(p.In)
	}
	line, err := p.reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	line = strings.TrimSuffix(line, "\n")
	return strings.TrimSuffix(line, "\r"), nil
}

// Confirm asks a yes/no question. Anything but y or yes is no.
func (p *Prompter) Confirm(prompt string) bool {
	answer, err := p.Line(prompt + " [y/N]: ")
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
