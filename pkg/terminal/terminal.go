// Package terminal opens a terminal session that runs a command.
//
// Backends receive the command as discrete arguments. Nothing a host profile
// controls is spliced into a shell string or script source: tmux gets the
// argv directly, and iTerm2 gets title/profile/command as AppleScript run
// arguments.
package terminal

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// ErrNoTerminal is returned when no terminal backend is usable here.
var ErrNoTerminal = errors.New("no terminal automation available")

// Session describes what to open.
type Session struct {
	// Title names the window or tab.
	Title string

	// Argv is the command to run in the session.
	Argv []string

	// Profile is a backend hint (iTerm2 profile name); ignored by tmux.
	Profile string
}

// Launcher opens sessions. Open reports whether the invocation succeeded,
// not whether the remote session came up.
type Launcher interface {
	Name() string
	Open(ctx context.Context, s Session) error
}

// Runner executes a program and returns its trimmed stdout. On failure the
// error carries stderr.
type Runner func(ctx context.Context, name string, args ...string) (string, error)

// ExecRunner runs programs with os/exec.
func ExecRunner(ctx context.Context, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = nil

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return "", errors.Errorf("%s %s: %s", name, firstArg(args), msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

// Kinds accepted by New.
const (
	KindAuto  = "auto"
	KindTmux  = "tmux"
	KindITerm = "iterm"
)

// New returns the launcher for kind. "auto" (or "") picks tmux when running
// inside tmux, iTerm2 on macOS, and fails with ErrNoTerminal otherwise.
func New(kind string, log *zap.Logger) (Launcher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", KindAuto:
		return auto(os.Getenv("TMUX"), runtime.GOOS, log)
	case KindTmux:
		return NewTmux(log), nil
	case KindITerm, "iterm2":
		return NewITerm(log), nil
	default:
		return nil, errors.Errorf("unknown terminal %q (expected auto|tmux|iterm)", kind)
	}
}

func auto(tmuxEnv, goos string, log *zap.Logger) (Launcher, error) {
	if socketPath(tmuxEnv) != "" {
		return NewTmux(log), nil
	}
	if goos == "darwin" {
		return NewITerm(log), nil
	}
	return nil, errors.Wrap(ErrNoTerminal, "run inside tmux or on macOS with iTerm2, or pass --terminal")
}

func validate(s Session) error {
	if len(s.Argv) == 0 || strings.TrimSpace(s.Argv[0]) == "" {
		return errors.New("empty command")
	}
	return nil
}

// cleanArg keeps a free-text parameter from being read as an option by the
// receiving program.
func cleanArg(s string) string {
	return strings.TrimLeft(strings.TrimSpace(s), "-")
}
