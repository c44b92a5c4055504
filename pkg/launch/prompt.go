package launch

import (
	"fmt"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Prompter asks the user for a password. An empty answer means "skip".
type Prompter interface {
	Password(prompt string) (string, error)
}

// TTYPrompter reads a password from the controlling terminal with echo
// disabled. It works even when stdin is redirected.
type TTYPrompter struct{}

func (TTYPrompter) Password(prompt string) (string, error) {
	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return "", errors.Wrap(err, "no terminal to prompt on")
		}
		return readPassword(os.Stdin, os.Stderr, prompt)
	}
	defer tty.Close()
	return readPassword(tty, tty, prompt)
}

func readPassword(in *os.File, out *os.File, prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(out, prompt)
		if !strings.HasSuffix(prompt, ": ") {
			fmt.Fprint(out, ": ")
		}
	}
	b, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprint(out, "\n")
	if err != nil {
		return "", errors.Wrap(err, "read password")
	}
	return strings.TrimRight(string(b), "\r\n"), nil
}

// NoPrompt never asks; used where no terminal is attached (web view).
type NoPrompt struct{}

func (NoPrompt) Password(string) (string, error) { return "", nil }
