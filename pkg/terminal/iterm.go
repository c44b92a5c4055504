package terminal

import (
	"context"
	"strings"
	"time"

	"github.com/alessio/shellescape"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"ssh-session-launcher/pkg/logging"
)

// itermScript opens a window (or a tab when a window exists) with the given
// profile, names the session and types the command line. All three values
// arrive as run arguments; none is interpolated into the script text.
const itermScript = `on run argv
	set sessionTitle to item 1 of argv
	set profileName to item 2 of argv
	set commandLine to item 3 of argv
	tell application "iTerm"
		activate
		if (count of windows) = 0 then
			create window with profile profileName
		else
			tell current window
				create tab with profile profileName
			end tell
		end if
		tell current session of current window
			set name to sessionTitle
			write text commandLine
		end tell
	end tell
end run`

const itermRunningScript = `application "iTerm" is running`

// ITerm opens sessions in iTerm2 through osascript.
type ITerm struct {
	run Runner
	log *zap.Logger

	// startupWait is how long to give iTerm2 after launching it.
	startupWait time.Duration
}

// NewITerm returns an iTerm2 launcher.
func NewITerm(log *zap.Logger) *ITerm {
	return &ITerm{run: ExecRunner, log: logging.OrNop(log), startupWait: 2 * time.Second}
}

func (t *ITerm) Name() string { return KindITerm }

// Open starts iTerm2 if needed, then opens a tab running s.Argv. The argv is
// shell-quoted into one line because iTerm2 types it into the login shell.
func (t *ITerm) Open(ctx context.Context, s Session) error {
	if err := validate(s); err != nil {
		return err
	}
	t.ensureRunning(ctx)

	profile := cleanArg(s.Profile)
	if profile == "" {
		profile = "Default"
	}
	title := cleanArg(s.Title)
	line := shellescape.QuoteCommand(s.Argv)

	if _, err := t.run(ctx, "osascript", "-e", itermScript, title, profile, line); err != nil {
		return errors.Wrap(err, "iTerm2 automation")
	}
	return nil
}

// ensureRunning is best-effort: failures are logged and the launch proceeds.
func (t *ITerm) ensureRunning(ctx context.Context) {
	out, err := t.run(ctx, "osascript", "-e", itermRunningScript)
	if err == nil && strings.EqualFold(strings.TrimSpace(out), "true") {
		return
	}
	t.log.Info("iTerm2 not running, launching it")
	if _, err := t.run(ctx, "open", "-a", "iTerm"); err != nil {
		t.log.Warn("could not launch iTerm2, proceeding anyway", zap.Error(err))
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(t.startupWait):
	}
}
