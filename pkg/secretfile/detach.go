package secretfile

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"ssh-session-launcher/pkg/detach"
)

// Detacher starts removal of path after a delay in a process that does not
// share the caller's lifetime. It must not block for the delay.
type Detacher func(path string, after time.Duration) error

// ProcessDetacher re-executes exe with args followed by
// "--after <delay> <path>" in a new session and does not wait for it. The
// child's standard streams are closed.
func ProcessDetacher(exe string, args ...string) Detacher {
	return func(path string, after time.Duration) error {
		argv := append(append([]string{}, args...), "--after", after.String(), path)
		if _, err := detach.Start(exe, argv, ""); err != nil {
			return errors.Wrap(err, "cleanup process")
		}
		return nil
	}
}

// IsSecretPath reports whether path names a secret file by its base name and
// is absolute.
func IsSecretPath(path string) bool {
	return filepath.IsAbs(path) && strings.HasPrefix(filepath.Base(path), namePrefix)
}

// RemoveAfter waits d, or until ctx ends, then removes path. It is the body of
// the detached cleanup process and refuses anything but a secret file.
func RemoveAfter(ctx context.Context, fs afero.Fs, path string, d time.Duration) error {
	if !IsSecretPath(path) {
		return errors.Errorf("refusing to remove %q: not a secret file", path)
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
	return removeIfExists(fs, path)
}
