// Package secretfile owns the short-lived file that hands a password to the
// password helper.
//
// Lifecycle per file: NotCreated -> Created -> Removed. On a successful launch
// the file moves to RemovalScheduled and a cleanup process that outlives the
// caller removes it after the grace delay; on a failed launch it is removed
// synchronously. Without a Detacher, or when it fails, an in-process timer
// takes over and the owner must Wait or Close before exiting.
package secretfile

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"ssh-session-launcher/pkg/logging"
)

// DefaultGrace is how long a secret file survives a successful launch, giving
// the helper time to read it.
const DefaultGrace = 10 * time.Second

const namePrefix = ".ssh_pass_"

// ErrSecretPersistence is returned when the secret file cannot be written or
// secured. The launch attempt must be abandoned.
var ErrSecretPersistence = errors.New("cannot persist secret file")

// State is the lifecycle state of a File.
type State int

const (
	NotCreated State = iota
	Created
	RemovalScheduled
	Removed
)

func (s State) String() string {
	switch s {
	case NotCreated:
		return "not-created"
	case Created:
		return "created"
	case RemovalScheduled:
		return "removal-scheduled"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Manager creates and removes secret files.
type Manager struct {
	fs    afero.Fs
	dir   string
	grace time.Duration
	log   *zap.Logger
	rand  io.Reader

	// detach hands cleanup to another process; nil means in-process only.
	detach Detacher

	// afterFunc schedules in-process cleanup; time.AfterFunc outside tests.
	afterFunc func(time.Duration, func())

	mu      sync.Mutex
	pending map[string]struct{}
	wg      sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithFs sets the filesystem.
func WithFs(fs afero.Fs) Option { return func(m *Manager) { m.fs = fs } }

// WithDir sets the directory secret files are created in.
func WithDir(dir string) Option { return func(m *Manager) { m.dir = dir } }

// WithGrace overrides DefaultGrace.
func WithGrace(d time.Duration) Option { return func(m *Manager) { m.grace = d } }

// WithRand replaces crypto/rand as the source of file names.
func WithRand(r io.Reader) Option { return func(m *Manager) { m.rand = r } }

// WithDetacher makes ScheduleRemoval hand the path to d.
func WithDetacher(d Detacher) Option { return func(m *Manager) { m.detach = d } }

// NewManager returns a Manager that writes into the user's home directory.
func NewManager(log *zap.Logger, opts ...Option) (*Manager, error) {
	m := &Manager{
		fs:    afero.NewOsFs(),
		grace:   DefaultGrace,
		log:     logging.OrNop(log),
		pending: map[string]struct{}{},
		rand:    rand.Reader,
		afterFunc: func(d time.Duration, f func()) {
			time.AfterFunc(d, f)
		},
	}
	for _, o := range opts {
		o(m)
	}
	if m.dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, errors.Wrap(err, "secret file dir")
		}
		m.dir = home
	}
	if m.grace < 0 {
		m.grace = 0
	}
	return m, nil
}

// Grace returns the configured grace delay.
func (m *Manager) Grace() time.Duration { return m.grace }

// NewPath returns a fresh, not-yet-created secret file path
// (<dir>/.ssh_pass_<32 hex chars>).
func (m *Manager) NewPath() (string, error) {
	var b [16]byte
	if _, err := io.ReadFull(m.rand, b[:]); err != nil {
		return "", errors.Wrap(err, "secret file name")
	}
	return filepath.Join(m.dir, namePrefix+hex.EncodeToString(b[:])), nil
}

// File is one secret file. It is owned by the launch attempt that created it
// until ScheduleRemoval hands the path to the cleanup timer.
type File struct {
	m     *Manager
	path  string
	mu    sync.Mutex
	state State
}

// Path returns the file path.
func (f *File) Path() string { return f.path }

// State returns the current lifecycle state.
func (f *File) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Create writes password to path with no trailing newline and restricts it
// to the owner. The file must not already exist. Any failure removes what was
// written and returns ErrSecretPersistence.
func (m *Manager) Create(path, password string) (*File, error) {
	if path == "" {
		return nil, errors.Wrap(ErrSecretPersistence, "empty path")
	}
	fh, err := m.fs.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, errors.Wrapf(ErrSecretPersistence, "create %s: %v", path, err)
	}
	_, werr := fh.Write([]byte(password))
	cerr := fh.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		// Explicit chmod after the write; the umask never applies to the final mode.
		werr = m.fs.Chmod(path, 0o600)
	}
	if werr != nil {
		_ = m.removeQuiet(path)
		return nil, errors.Wrapf(ErrSecretPersistence, "write %s: %v", path, werr)
	}
	m.log.Debug("secret file created", zap.String("path", path))
	return &File{m: m, path: path, state: Created}, nil
}

// RemoveNow deletes the file synchronously. An already-absent file counts as
// removed. Used on the launch failure path.
func (f *File) RemoveNow() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == Removed {
		return nil
	}
	if err := f.m.removeQuiet(f.path); err != nil {
		return errors.Wrapf(err, "remove secret file %s", f.path)
	}
	f.state = Removed
	f.m.log.Debug("secret file removed", zap.String("path", f.path))
	return nil
}

// ScheduleRemoval arranges for the file to be deleted after the grace delay
// and returns immediately. The Detacher is tried first; if there is none or
// it fails, an in-process timer is used and the file is tracked until Wait or
// Close. Removal errors are logged, never returned.
func (f *File) ScheduleRemoval() {
	f.mu.Lock()
	if f.state != Created {
		f.mu.Unlock()
		return
	}
	f.state = RemovalScheduled
	f.mu.Unlock()

	m, path := f.m, f.path
	if m.detach != nil {
		err := m.detach(path, m.grace)
		if err == nil {
			m.log.Debug("secret file cleanup detached", zap.String("path", path), zap.Duration("after", m.grace))
			return
		}
		m.log.Warn("detached cleanup unavailable, removing in-process", zap.String("path", path), zap.Error(err))
	}

	m.mu.Lock()
	m.pending[path] = struct{}{}
	m.mu.Unlock()
	m.wg.Add(1)

	fs, log := m.fs, m.log
	m.afterFunc(m.grace, func() {
		defer m.wg.Done()
		defer m.forget(path)
		if err := removeIfExists(fs, path); err != nil {
			log.Warn("could not remove secret file", zap.String("path", path), zap.Error(err))
			return
		}
		log.Debug("secret file removed after grace delay", zap.String("path", path))
	})
}

// Pending returns the paths waiting on in-process timers.
func (m *Manager) Pending() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.pending))
	for p := range m.pending {
		out = append(out, p)
	}
	return out
}

// Wait blocks until every in-process removal has run. It returns at once
// when all cleanups were detached.
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Close removes every file still waiting on an in-process timer without
// waiting for the grace delay.
func (m *Manager) Close() error {
	var firstErr error
	for _, p := range m.Pending() {
		if err := m.removeQuiet(p); err != nil {
			m.log.Warn("could not remove secret file", zap.String("path", p), zap.Error(err))
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "remove secret file %s", p)
			}
			continue
		}
		m.forget(p)
		m.log.Debug("secret file removed on close", zap.String("path", p))
	}
	return firstErr
}

func (m *Manager) forget(path string) {
	m.mu.Lock()
	delete(m.pending, path)
	m.mu.Unlock()
}

func (m *Manager) removeQuiet(path string) error {
	return removeIfExists(m.fs, path)
}

func removeIfExists(fs afero.Fs, path string) error {
	if err := fs.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
