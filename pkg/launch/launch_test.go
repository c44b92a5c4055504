package launch

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ssh-session-launcher/pkg/credstore"
	"ssh-session-launcher/pkg/ledger"
	"ssh-session-launcher/pkg/manager"
	"ssh-session-launcher/pkg/secretfile"
	"ssh-session-launcher/pkg/sshcmd"
	"ssh-session-launcher/pkg/terminal"
)

type memStore struct {
	data   map[string]string
	getErr error
	setErr error
}

func (m *memStore) GetOpaque(ns, acct string) (string, bool, error) {
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[ns+"/"+acct]
	return v, ok, nil
}

func (m *memStore) SetOpaque(ns, acct, value string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.data[ns+"/"+acct] = value
	return nil
}

// fakeTerm records sessions and checks the secret file while Open runs.
type fakeTerm struct {
	err      error
	sessions []terminal.Session
	onOpen   func(terminal.Session)
}

func (f *fakeTerm) Name() string { return "fake" }

func (f *fakeTerm) Open(_ context.Context, s terminal.Session) error {
	f.sessions = append(f.sessions, s)
	if f.onOpen != nil {
		f.onOpen(s)
	}
	return f.err
}

type fixedPrompt struct {
	answer string
	asked  int
}

func (p *fixedPrompt) Password(string) (string, error) {
	p.asked++
	return p.answer, nil
}

type fixture struct {
	store   *memStore
	ledger  *ledger.Ledger
	secrets *secretfile.Manager
	term    *fakeTerm
	prompt  *fixedPrompt
	l       *Launcher
	dir     string
}

func newFixture(t *testing.T, helper bool, grace time.Duration) *fixture {
	t.Helper()
	f := &fixture{store: &memStore{}, term: &fakeTerm{}, prompt: &fixedPrompt{}, dir: t.TempDir()}
	f.ledger = ledger.New(f.store, nil)

	lookPath := func(string) (string, error) { return "", errors.New("not found") }
	if helper {
		lookPath = func(string) (string, error) { return "/usr/bin/sshpass", nil }
	}
	b := sshcmd.NewBuilder(nil, sshcmd.WithLookPath(lookPath), sshcmd.WithFs(afero.NewMemMapFs()))

	var err error
	f.secrets, err = secretfile.NewManager(nil, secretfile.WithDir(f.dir), secretfile.WithGrace(grace))
	require.NoError(t, err)

	f.l = New(Deps{Ledger: f.ledger, Builder: b, Secrets: f.secrets, Terminal: f.term, Prompter: f.prompt})
	return f
}

func passwordHost() manager.HostProfile {
	return manager.HostProfile{
		Name: "Prod", Hostname: "prod.example.com", Username: "admin",
		Port: 22, Auth: manager.AuthPassword, ItermProfile: "Production",
	}
}

func TestLaunch_SuccessSchedulesRemoval(t *testing.T) {
	grace := 200 * time.Millisecond
	f := newFixture(t, true, grace)
	require.NoError(t, f.ledger.Upsert("admin", "prod.example.com", "s3cret"))

	var seenDuringOpen []byte
	f.term.onOpen = func(s terminal.Session) {
		seenDuringOpen, _ = os.ReadFile(s.Argv[2])
	}

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{Interactive: true})
	require.NoError(t, err)
	assert.Equal(t, 0, f.prompt.asked)

	require.Len(t, f.term.sessions, 1)
	s := f.term.sessions[0]
	assert.Equal(t, "Prod", s.Title)
	assert.Equal(t, "Production", s.Profile)
	assert.Equal(t, []string{"sshpass", "-f", res.SecretFile, "ssh", "-o", "StrictHostKeyChecking=no", "-p", "22", "admin@prod.example.com"}, s.Argv)
	assert.Equal(t, "s3cret", string(seenDuringOpen))

	assert.FileExists(t, res.SecretFile)
	assert.Eventually(t, func() bool {
		_, err := os.Stat(res.SecretFile)
		return os.IsNotExist(err)
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLaunch_FailureRemovesSecretFileImmediately(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	require.NoError(t, f.ledger.Upsert("admin", "prod.example.com", "s3cret"))
	f.term.err = errors.New("osascript: execution error")

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLaunchInvocation)

	var inv *InvocationError
	require.True(t, errors.As(err, &inv))
	assert.Contains(t, inv.Command, "sshpass -f ")
	assert.NotContains(t, inv.Command, "s3cret")

	require.NotEmpty(t, res.SecretFile)
	assert.NoFileExists(t, res.SecretFile)
}

func TestLaunch_NoTerminalIsInvocationError(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	require.NoError(t, f.ledger.Upsert("admin", "prod.example.com", "s3cret"))
	f.l.term = nil

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{})
	assert.ErrorIs(t, err, ErrLaunchInvocation)
	assert.ErrorIs(t, err, terminal.ErrNoTerminal)
	assert.NoFileExists(t, res.SecretFile)
}

func TestLaunch_SecretPersistenceAbortsBeforeTerminal(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	require.NoError(t, f.ledger.Upsert("admin", "prod.example.com", "s3cret"))

	var err error
	f.l.secrets, err = secretfile.NewManager(nil,
		secretfile.WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())), secretfile.WithDir("/home/me"))
	require.NoError(t, err)

	_, err = f.l.Launch(context.Background(), passwordHost(), Options{})
	assert.ErrorIs(t, err, secretfile.ErrSecretPersistence)
	assert.Empty(t, f.term.sessions)
}

func TestLaunch_PromptsAndStoresMissingPassword(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	f.prompt.answer = "typed-pw"

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{Interactive: true})
	require.NoError(t, err)
	assert.Equal(t, 1, f.prompt.asked)
	assert.True(t, res.Command.UsesSecretFile)

	pw, ok, err := f.ledger.Lookup("admin", "prod.example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "typed-pw", pw)
}

func TestLaunch_NonInteractiveMissingPasswordUsesPlainSSH(t *testing.T) {
	f := newFixture(t, true, time.Hour)

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, f.prompt.asked)
	assert.False(t, res.Command.UsesSecretFile)
	assert.Empty(t, res.SecretFile)
	assert.Equal(t, []string{"ssh", "-p", "22", "admin@prod.example.com"}, f.term.sessions[0].Argv)
}

func TestLaunch_HelperMissingWritesNoSecretFile(t *testing.T) {
	f := newFixture(t, false, time.Hour)
	require.NoError(t, f.ledger.Upsert("admin", "prod.example.com", "s3cret"))

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{})
	require.NoError(t, err)
	assert.False(t, res.Command.UsesSecretFile)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type brokenRand struct{ reads int }

func (r *brokenRand) Read([]byte) (int, error) {
	r.reads++
	return 0, errors.New("entropy unavailable")
}

func TestLaunch_HelperMissingNeverNamesSecretFile(t *testing.T) {
	f := newFixture(t, false, time.Hour)
	require.NoError(t, f.ledger.Upsert("admin", "prod.example.com", "s3cret"))

	src := &brokenRand{}
	var err error
	f.l.secrets, err = secretfile.NewManager(nil, secretfile.WithDir(f.dir), secretfile.WithRand(src))
	require.NoError(t, err)

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{})
	require.NoError(t, err)
	assert.Zero(t, src.reads)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, []string{"ssh", "-p", "22", "admin@prod.example.com"}, f.term.sessions[0].Argv)
}

func TestLaunch_SecretNameFailureFallsBackToPlainSSH(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	require.NoError(t, f.ledger.Upsert("admin", "prod.example.com", "s3cret"))

	var err error
	f.l.secrets, err = secretfile.NewManager(nil, secretfile.WithDir(f.dir), secretfile.WithRand(&brokenRand{}))
	require.NoError(t, err)

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{})
	require.NoError(t, err)
	assert.False(t, res.Command.UsesSecretFile)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "password file unavailable")
	assert.Equal(t, []string{"ssh", "-p", "22", "admin@prod.example.com"}, f.term.sessions[0].Argv)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLaunch_StoreUnavailableDoesNotAbort(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	f.store.getErr = errors.Wrap(credstore.ErrStoreUnavailable, "locked")

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{Interactive: true})
	require.NoError(t, err)
	assert.Equal(t, 0, f.prompt.asked)
	require.NotEmpty(t, res.Warnings)
	assert.True(t, strings.HasPrefix(res.Warnings[0], "credential store unavailable"))
	assert.Len(t, f.term.sessions, 1)
}

func TestLaunch_StoreWriteFailureStillUsesPassword(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	f.prompt.answer = "typed-pw"
	f.store.setErr = errors.Wrap(credstore.ErrStoreUnavailable, "denied")

	res, err := f.l.Launch(context.Background(), passwordHost(), Options{Interactive: true})
	require.NoError(t, err)
	assert.True(t, res.Command.UsesSecretFile)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "password not stored")
}

func TestLaunch_KeyHostMissingKeyWarns(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	h := manager.HostProfile{
		Name: "Dev", Hostname: "dev.example.com", Username: "developer",
		Port: 2222, Auth: manager.AuthKey, SSHKeyPath: "/keys/missing",
	}

	res, err := f.l.Launch(context.Background(), h, Options{Interactive: true})
	require.NoError(t, err)
	assert.Equal(t, 0, f.prompt.asked)
	assert.Equal(t, []string{"ssh", "-p", "2222", "developer@dev.example.com"}, f.term.sessions[0].Argv)
	assert.Equal(t, []string{"SSH key not found at /keys/missing"}, res.Warnings)
}

func TestLaunch_UnsafeFieldRefused(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	h := passwordHost()
	h.Hostname = "-oProxyCommand=touch /tmp/x"

	_, err := f.l.Launch(context.Background(), h, Options{})
	assert.ErrorIs(t, err, manager.ErrUnsafeField)
	assert.Empty(t, f.term.sessions)
}

func TestPlan_CreatesNothing(t *testing.T) {
	f := newFixture(t, true, time.Hour)
	require.NoError(t, f.ledger.Upsert("admin", "prod.example.com", "s3cret"))

	res, err := f.l.Plan(passwordHost())
	require.NoError(t, err)
	assert.True(t, res.Command.UsesSecretFile)
	assert.NotContains(t, res.Command.String(), "s3cret")
	assert.Empty(t, f.term.sessions)

	entries, err := os.ReadDir(f.dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStorePassword(t *testing.T) {
	f := newFixture(t, true, time.Hour)

	stored, err := f.l.StorePassword(passwordHost())
	require.NoError(t, err)
	assert.False(t, stored)

	f.prompt.answer = "pw"
	stored, err = f.l.StorePassword(passwordHost())
	require.NoError(t, err)
	assert.True(t, stored)

	keys, err := f.ledger.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"admin@prod.example.com"}, keys)
}
