// Package launch runs one host launch attempt end to end: resolve the
// password through the ledger, build the command, materialize the secret file
// when the helper needs one, hand the command to the terminal and settle the
// secret file's fate on the outcome.
package launch

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ssh-session-launcher/pkg/ledger"
	"ssh-session-launcher/pkg/logging"
	"ssh-session-launcher/pkg/manager"
	"ssh-session-launcher/pkg/secretfile"
	"ssh-session-launcher/pkg/sshcmd"
	"ssh-session-launcher/pkg/terminal"
)

// ErrLaunchInvocation means the terminal automation could not be invoked.
// The secret file, if any, has already been removed when it is returned.
var ErrLaunchInvocation = errors.New("launch invocation failed")

// InvocationError carries the command that failed to launch so it can be
// shown to the user. The command references the secret file path, never the
// password.
type InvocationError struct {
	Command string
	Err     error
}

func (e *InvocationError) Error() string {
	return "launch invocation failed: " + e.Err.Error()
}

func (e *InvocationError) Is(target error) bool { return target == ErrLaunchInvocation }

func (e *InvocationError) Unwrap() error { return e.Err }

// Options controls one attempt.
type Options struct {
	// Interactive allows prompting for a missing password.
	Interactive bool
}

// Result describes a successful attempt.
type Result struct {
	Command    sshcmd.Command
	SecretFile string
	Warnings   []string
}

// Deps are the collaborators of a Launcher. Terminal may be nil when only
// Plan and StorePassword are used.
type Deps struct {
	Ledger   *ledger.Ledger
	Builder  *sshcmd.Builder
	Secrets  *secretfile.Manager
	Terminal terminal.Launcher
	Prompter Prompter
	Log      *zap.Logger
}

// Launcher runs launch attempts. It is not safe for concurrent use; callers
// that serve several clients serialize Launch.
type Launcher struct {
	ledger   *ledger.Ledger
	builder  *sshcmd.Builder
	secrets  *secretfile.Manager
	term     terminal.Launcher
	prompter Prompter
	log      *zap.Logger
}

// New returns a Launcher over d.
func New(d Deps) *Launcher {
	p := d.Prompter
	if p == nil {
		p = NoPrompt{}
	}
	return &Launcher{
		ledger:   d.Ledger,
		builder:  d.Builder,
		secrets:  d.Secrets,
		term:     d.Terminal,
		prompter: p,
		log:      logging.OrNop(d.Log),
	}
}

// Launch opens a terminal session for h.
func (l *Launcher) Launch(ctx context.Context, h manager.HostProfile, opts Options) (Result, error) {
	var res Result
	if err := manager.CheckTarget(h); err != nil {
		return res, err
	}
	log := l.log.With(zap.String("host", h.Destination()))

	password := l.resolvePassword(h, opts.Interactive, &res)
	secretPath := l.secretPath(h, password, &res)

	cmd, err := l.builder.Build(h, password, secretPath)
	if err != nil {
		return res, err
	}
	res.Command = cmd
	res.Warnings = append(res.Warnings, cmd.Warnings...)

	var secret *secretfile.File
	if cmd.UsesSecretFile {
		secret, err = l.secrets.Create(secretPath, password)
		if err != nil {
			return res, err
		}
		res.SecretFile = secret.Path()
	}

	session := terminal.Session{Title: h.Title(), Argv: cmd.Argv, Profile: h.ItermProfile}
	if err := l.open(ctx, session); err != nil {
		if secret != nil {
			if rerr := secret.RemoveNow(); rerr != nil {
				log.Warn("could not remove secret file after failed launch",
					zap.String("path", secret.Path()), zap.Error(rerr))
			}
		}
		return res, &InvocationError{Command: cmd.String(), Err: err}
	}

	if secret != nil {
		secret.ScheduleRemoval()
	}
	log.Info("session launched", zap.Bool("helper", cmd.UsesSecretFile))
	return res, nil
}

// secretPath names the secret file when the helper form will be used. A
// missing helper or a naming failure leaves it empty, which builds plain ssh.
func (l *Launcher) secretPath(h manager.HostProfile, password string, res *Result) string {
	if h.Auth != manager.AuthPassword || password == "" {
		return ""
	}
	if !l.builder.HelperAvailable() {
		l.log.Info(sshcmd.HelperName+" not found, falling back to manual password entry",
			zap.String("host", h.Destination()))
		return ""
	}
	p, err := l.secrets.NewPath()
	if err != nil {
		res.Warnings = append(res.Warnings, "password file unavailable, ssh will prompt: "+err.Error())
		l.log.Warn("secret file name failed", zap.Error(err))
		return ""
	}
	return p
}

func (l *Launcher) open(ctx context.Context, s terminal.Session) error {
	if l.term == nil {
		return terminal.ErrNoTerminal
	}
	return l.term.Open(ctx, s)
}

// resolvePassword looks up the stored password and, if allowed, prompts for a
// missing one and stores it. Store problems are reported as warnings; the
// session falls back to interactive ssh authentication.
func (l *Launcher) resolvePassword(h manager.HostProfile, interactive bool, res *Result) string {
	if h.Auth != manager.AuthPassword {
		return ""
	}
	log := l.log.With(zap.String("key", ledger.Key(h.Username, h.Hostname)))

	pw, ok, err := l.ledger.Lookup(h.Username, h.Hostname)
	if err != nil {
		res.Warnings = append(res.Warnings, "credential store unavailable: "+err.Error())
		log.Warn("password lookup failed", zap.Error(err))
		return ""
	}
	if ok {
		return pw
	}
	if !interactive {
		return ""
	}

	pw, err = l.prompter.Password("Password for " + h.Destination() + " (will be stored in keychain)")
	if err != nil {
		log.Warn("password prompt failed", zap.Error(err))
		return ""
	}
	if pw == "" {
		return ""
	}
	if err := l.ledger.Upsert(h.Username, h.Hostname, pw); err != nil {
		if errors.Is(err, ledger.ErrVerificationMismatch) {
			res.Warnings = append(res.Warnings, "password storage may have failed")
		} else {
			res.Warnings = append(res.Warnings, "password not stored: "+err.Error())
		}
		log.Warn("password not stored", zap.Error(err))
	}
	return pw
}

// Plan builds the command Launch would run without prompting, writing a
// secret file or opening a terminal. The secret path in the result is never
// created.
func (l *Launcher) Plan(h manager.HostProfile) (Result, error) {
	var res Result
	if err := manager.CheckTarget(h); err != nil {
		return res, err
	}
	password := l.resolvePassword(h, false, &res)
	secretPath := l.secretPath(h, password, &res)

	cmd, err := l.builder.Build(h, password, secretPath)
	if err != nil {
		return res, err
	}
	res.Command = cmd
	res.Warnings = append(res.Warnings, cmd.Warnings...)
	return res, nil
}

// StorePassword prompts for h's password and stores it. An empty answer
// stores nothing.
func (l *Launcher) StorePassword(h manager.HostProfile) (bool, error) {
	if err := manager.CheckTarget(h); err != nil {
		return false, err
	}
	pw, err := l.prompter.Password("Password for " + h.Destination())
	if err != nil {
		return false, err
	}
	if pw == "" {
		return false, nil
	}
	if err := l.ledger.Upsert(h.Username, h.Hostname, pw); err != nil {
		return false, err
	}
	return true, nil
}
