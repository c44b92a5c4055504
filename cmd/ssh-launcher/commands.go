package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/term"

	"ssh-session-launcher/pkg/credstore"
	"ssh-session-launcher/pkg/detach"
	"ssh-session-launcher/pkg/launch"
	"ssh-session-launcher/pkg/ledger"
	"ssh-session-launcher/pkg/manager"
	"ssh-session-launcher/pkg/secretfile"
	"ssh-session-launcher/pkg/ui"
	"ssh-session-launcher/pkg/web"
)

func filterArg(cmd *cli.Command) string {
	return strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
}

// runConnect is the default action: filter, pick, launch.
func runConnect(ctx context.Context, cmd *cli.Command) error {
	dryRun := cmd.Bool("dry-run")
	a, err := loadOrInit(cmd, !dryRun)
	if err != nil || a == nil {
		return err
	}
	defer a.sync()

	hosts := manager.FilterHosts(a.cfg.Hosts, filterArg(cmd))
	if len(hosts) == 0 {
		fmt.Println("No hosts found matching your criteria.")
		return nil
	}

	h, ok, err := pickHost(cmd, hosts)
	if err != nil || !ok {
		return err
	}

	if dryRun {
		res, err := a.launcher.Plan(h)
		if err != nil {
			return err
		}
		for _, w := range res.Warnings {
			warn(w)
		}
		fmt.Println(res.Command.String())
		return nil
	}

	fmt.Printf("Launching %s session...\n", h.Title())
	res, err := a.launcher.Launch(ctx, h, launch.Options{Interactive: true})
	for _, w := range res.Warnings {
		warn(w)
	}
	if err != nil {
		var inv *launch.InvocationError
		if errors.As(err, &inv) {
			fmt.Fprintf(os.Stderr, "SSH command: %s\n", inv.Command)
		}
		return err
	}
	fmt.Println("Session launched successfully!")
	if len(a.secrets.Pending()) > 0 {
		fmt.Printf("Removing the password file in %s...\n", a.secrets.Grace())
		a.secrets.Wait()
	}
	return nil
}

// cleanupCommand is the hidden subcommand the detached secret-file cleanup
// runs as.
const cleanupCommand = "cleanup-secret"

func runCleanupSecret(ctx context.Context, cmd *cli.Command) error {
	path := cmd.Args().First()
	if path == "" || cmd.Args().Len() != 1 {
		return errors.Errorf("usage: ssh-launcher %s --after <delay> <path>", cleanupCommand)
	}
	return secretfile.RemoveAfter(ctx, afero.NewOsFs(), path, cmd.Duration("after"))
}

func pickHost(cmd *cli.Command, hosts []manager.HostProfile) (manager.HostProfile, bool, error) {
	if cmd.Bool("simple") || !term.IsTerminal(int(os.Stdout.Fd())) {
		return ui.NewSimpleMenu(os.Stdin, os.Stdout).Pick(hosts)
	}
	theme := ui.LoadTheme(cmd.String("theme"))
	idx, ok, err := ui.Pick(hosts, ui.Options{Theme: &theme})
	if err != nil || !ok {
		return manager.HostProfile{}, false, err
	}
	return hosts[idx], true, nil
}

func runList(_ context.Context, cmd *cli.Command) error {
	a, err := loadOrInit(cmd, false)
	if err != nil || a == nil {
		return err
	}
	defer a.sync()

	hosts := manager.FilterHosts(a.cfg.Hosts, filterArg(cmd))
	if len(hosts) == 0 {
		fmt.Println("No hosts found matching your criteria.")
		return nil
	}
	fmt.Printf("Available hosts (%d):\n", len(hosts))
	for _, h := range hosts {
		fmt.Println("  " + manager.ListLine(h))
	}
	return nil
}

// runDebug reports keychain health without printing any password.
func runDebug(_ context.Context, cmd *cli.Command) error {
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.sync()

	fmt.Println("=== Keychain debug ===")
	fmt.Printf("Backend: %s\n", credstore.BackendLabel())
	if hint := credstore.BackendHint(); hint != "" {
		fmt.Printf("Hint: %s\n", hint)
	}
	fmt.Printf("Config: %s\n", a.cfgPath)
	if a.builder.HelperAvailable() {
		fmt.Println("sshpass: installed")
	} else {
		fmt.Println("sshpass: not found (password hosts will prompt in the session)")
	}

	fmt.Println("\nProbe:")
	steps := credstore.Probe(a.store)
	for _, s := range steps {
		fmt.Println("  " + s.String())
	}
	if !credstore.ProbeOK(steps) {
		return errors.Wrap(credstore.ErrStoreUnavailable, "keychain probe failed")
	}

	keys, err := a.ledger.Keys()
	if err != nil {
		return err
	}
	fmt.Printf("\nStored passwords: %d\n", len(keys))
	for _, k := range keys {
		fmt.Println("  " + k)
	}

	stored := make(map[string]bool, len(keys))
	for _, k := range keys {
		stored[k] = true
	}
	fmt.Println("\nPassword hosts:")
	for _, h := range a.cfg.Hosts {
		if h.Auth != manager.AuthPassword {
			continue
		}
		mark := "missing"
		if stored[ledger.Key(h.Username, h.Hostname)] {
			mark = "stored "
		}
		fmt.Printf("  %s  %s (%s)\n", mark, h.Name, h.Destination())
	}
	return nil
}

func runPasswordSet(_ context.Context, cmd *cli.Command) error {
	name := filterArg(cmd)
	if name == "" {
		return errors.New("usage: ssh-launcher password set <host name>")
	}
	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.sync()

	h, err := findHost(a.cfg.Hosts, name)
	if err != nil {
		return err
	}
	if h.Auth != manager.AuthPassword {
		warn(fmt.Sprintf("%s uses key authentication; the password is stored anyway", h.Name))
	}

	ok, err := a.launcher.StorePassword(h)
	if errors.Is(err, ledger.ErrVerificationMismatch) {
		warn("password storage may have failed")
		return nil
	}
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Empty password, nothing stored.")
		return nil
	}
	fmt.Printf("Password stored for %s\n", h.Destination())
	return nil
}

// findHost matches a display name (case-insensitive) or user@host.
func findHost(hosts []manager.HostProfile, name string) (manager.HostProfile, error) {
	var matches []manager.HostProfile
	for _, h := range hosts {
		if strings.EqualFold(h.Name, name) || h.Destination() == name {
			matches = append(matches, h)
		}
	}
	switch len(matches) {
	case 0:
		return manager.HostProfile{}, errors.Errorf("no host named %q", name)
	case 1:
		return matches[0], nil
	default:
		first := matches[0].Destination()
		for _, m := range matches[1:] {
			if m.Destination() != first {
				return manager.HostProfile{}, errors.Errorf("%q matches %d hosts; use user@host", name, len(matches))
			}
		}
		return matches[0], nil
	}
}

func runInit(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if path == "" {
		path = manager.DefaultConfigPath()
	}
	created, err := manager.WriteSampleConfig(path)
	if err != nil {
		return err
	}
	if !created {
		fmt.Printf("Config already exists at %s\n", path)
		return nil
	}
	fmt.Printf("Created sample configuration at %s\n", path)
	return nil
}

// silentPort is where `ui --silent` listens unless --port is given.
const silentPort = 7890

func runUI(ctx context.Context, cmd *cli.Command) error {
	a, err := loadOrInit(cmd, true)
	if err != nil || a == nil {
		return err
	}
	defer a.sync()

	if cmd.Bool("silent") {
		return startUIBackground(cmd, a)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := net.JoinHostPort(cmd.String("addr"), fmt.Sprint(cmd.Int("port")))
	srv := web.NewServer(a.cfg, a.cfgPath, a.launcher, a.log, web.WithCleanup(a.secrets.Close))
	fmt.Printf("Serving http://%s (Ctrl+C to stop)\n", addr)
	return srv.Run(ctx, addr)
}

// startUIBackground re-executes the launcher as a detached `ui` process and
// returns once it has started.
func startUIBackground(cmd *cli.Command, a *app) error {
	exe, err := os.Executable()
	if err != nil {
		return errors.Wrap(err, "locate executable")
	}
	port := silentPort
	if cmd.IsSet("port") {
		port = int(cmd.Int("port"))
	}
	logPath := backgroundLogPath()
	args := uiBackgroundArgs(a.cfgPath, cmd.String("log-level"), cmd.String("terminal"), cmd.String("addr"), port)

	pid, err := detach.Start(exe, args, logPath)
	if err != nil {
		return errors.Wrap(err, "start web view")
	}
	a.log.Debug("web view started in background", zap.Int("pid", pid), zap.Strings("args", args))
	fmt.Printf("Web view running in background at http://%s (pid %d)\n",
		net.JoinHostPort(cmd.String("addr"), strconv.Itoa(port)), pid)
	if logPath != "" {
		fmt.Printf("Log: %s\n", logPath)
	}
	return nil
}

func uiBackgroundArgs(cfgPath, logLevel, term, addr string, port int) []string {
	return []string{
		"--config", cfgPath,
		"--log-level", logLevel,
		"--terminal", term,
		"ui",
		"--addr", addr,
		"--port", strconv.Itoa(port),
	}
}

// backgroundLogPath is the background web view's log file, or "" when no
// cache directory is usable.
func backgroundLogPath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return ""
	}
	dir = filepath.Join(dir, "ssh-launcher")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return ""
	}
	return filepath.Join(dir, "web.log")
}
