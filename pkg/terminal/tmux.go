package terminal

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ssh-session-launcher/pkg/logging"
)

// Tmux opens sessions as new tmux windows.
//
// The TMUX environment variable holds the server socket path plus metadata:
//
//	TMUX=/private/tmp/tmux-502/default,35218,0
//
// Commands are sent with `tmux -S <socket>` when it is set so they reach the
// server the user is looking at, not whatever the default socket resolves to.
type Tmux struct {
	run    Runner
	socket string
	log    *zap.Logger
}

// NewTmux returns a tmux launcher bound to the socket in $TMUX, if any.
func NewTmux(log *zap.Logger) *Tmux {
	return &Tmux{run: ExecRunner, socket: socketPath(os.Getenv("TMUX")), log: logging.OrNop(log)}
}

func (t *Tmux) Name() string { return KindTmux }

// socketPath returns the socket portion of a $TMUX value, or "".
func socketPath(tmuxEnv string) string {
	v := strings.TrimSpace(tmuxEnv)
	if v == "" {
		return ""
	}
	if i := strings.IndexByte(v, ','); i >= 0 {
		return v[:i]
	}
	return v
}

func (t *Tmux) cmd(ctx context.Context, args ...string) (string, error) {
	full := make([]string, 0, len(args)+2)
	if t.socket != "" {
		full = append(full, "-S", t.socket)
	}
	full = append(full, args...)
	return t.run(ctx, "tmux", full...)
}

// Open creates a window named s.Title running s.Argv. tmux execs a
// multi-argument command directly, without a shell.
func (t *Tmux) Open(ctx context.Context, s Session) error {
	if err := validate(s); err != nil {
		return err
	}
	args := []string{"new-window", "-P", "-F", "#{window_id}"}
	if title := cleanArg(s.Title); title != "" {
		args = append(args, "-n", title)
	}
	args = append(args, "--")
	args = append(args, s.Argv...)

	id, err := t.cmd(ctx, args...)
	if err != nil {
		return errors.Wrap(err, "tmux new-window")
	}
	t.log.Debug("tmux window opened", zap.String("window", id), zap.String("title", s.Title))

	// Keep the pane around if ssh exits at once so the error stays readable.
	if id != "" {
		if _, err := t.cmd(ctx, "set-option", "-w", "-t", id, "remain-on-exit", "on"); err != nil {
			t.log.Debug("tmux remain-on-exit not set", zap.Error(err))
		}
	}
	return nil
}
