// Package sshcmd decides how a host authenticates and builds the argv to run.
package sshcmd

import (
	"os/exec"
	"strconv"
	"strings"

	"github.com/alessio/shellescape"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"ssh-session-launcher/pkg/logging"
	"ssh-session-launcher/pkg/manager"
)

// HelperName is the password helper program. Its contract is
// `sshpass -f <file containing the password> ssh ...`.
const HelperName = "sshpass"

// Command is a ready-to-run argv plus what it needs from the caller.
type Command struct {
	Argv []string

	// UsesSecretFile is true when Argv reads the password from the secret file
	// passed to Build. The caller must create that file before launching.
	UsesSecretFile bool

	// Warnings are non-fatal notes (e.g. a missing identity file).
	Warnings []string
}

// String renders Argv as one shell-safe line.
func (c Command) String() string {
	return shellescape.QuoteCommand(c.Argv)
}

// LookPathFunc matches exec.LookPath.
type LookPathFunc func(file string) (string, error)

// Builder builds ssh commands. Construct with NewBuilder.
type Builder struct {
	fs       afero.Fs
	lookPath LookPathFunc
	log      *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithFs sets the filesystem used to check identity files.
func WithFs(fs afero.Fs) Option {
	return func(b *Builder) { b.fs = fs }
}

// WithLookPath replaces the helper presence probe.
func WithLookPath(fn LookPathFunc) Option {
	return func(b *Builder) { b.lookPath = fn }
}

// NewBuilder returns a Builder using the OS filesystem and PATH.
func NewBuilder(log *zap.Logger, opts ...Option) *Builder {
	b := &Builder{
		fs:       afero.NewOsFs(),
		lookPath: exec.LookPath,
		log:      logging.OrNop(log),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// HelperAvailable reports whether the password helper is installed.
// A failed probe means "not installed"; it is never an error.
func (b *Builder) HelperAvailable() bool {
	p, err := b.lookPath(HelperName)
	return err == nil && strings.TrimSpace(p) != ""
}

// Build returns the command for h.
//
// The helper form is chosen only when h uses password auth, password is
// non-empty, the helper is installed and secretPath is set. Everything else
// gets a plain ssh invocation, which prompts interactively for passwords.
func (b *Builder) Build(h manager.HostProfile, password, secretPath string) (Command, error) {
	if err := manager.CheckTarget(h); err != nil {
		return Command{}, err
	}
	port := h.Port
	if port <= 0 {
		port = manager.DefaultPort
	}

	if h.Auth == manager.AuthPassword && password != "" && secretPath != "" {
		if b.HelperAvailable() {
			return Command{
				Argv: []string{
					HelperName, "-f", secretPath,
					"ssh", "-o", "StrictHostKeyChecking=no",
					"-p", strconv.Itoa(port),
					h.Destination(),
				},
				UsesSecretFile: true,
			}, nil
		}
		b.log.Info(HelperName + " not found, falling back to manual password entry")
	}

	cmd := Command{Argv: []string{"ssh", "-p", strconv.Itoa(port)}}
	if h.Auth == manager.AuthKey {
		if key := strings.TrimSpace(h.SSHKeyPath); key != "" {
			key = manager.ExpandPath(key)
			if ok, err := afero.Exists(b.fs, key); err == nil && ok {
				cmd.Argv = append(cmd.Argv, "-i", key)
			} else {
				msg := "SSH key not found at " + key
				cmd.Warnings = append(cmd.Warnings, msg)
				b.log.Warn(msg, zap.String("host", h.Destination()))
			}
		}
	}
	cmd.Argv = append(cmd.Argv, h.Destination())
	return cmd, nil
}
