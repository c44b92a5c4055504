package main

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"ssh-session-launcher/pkg/credstore"
	"ssh-session-launcher/pkg/launch"
	"ssh-session-launcher/pkg/ledger"
	"ssh-session-launcher/pkg/logging"
	"ssh-session-launcher/pkg/manager"
	"ssh-session-launcher/pkg/secretfile"
	"ssh-session-launcher/pkg/sshcmd"
	"ssh-session-launcher/pkg/terminal"
)

// app is the wired pipeline for one command invocation.
type app struct {
	log      *zap.Logger
	cfg      *manager.Config
	cfgPath  string
	store    credstore.Keyring
	ledger   *ledger.Ledger
	builder  *sshcmd.Builder
	secrets  *secretfile.Manager
	launcher *launch.Launcher
}

// newApp loads the config and wires the core. withTerminal selects the
// terminal backend from --terminal; commands that never launch skip it.
func newApp(cmd *cli.Command, withTerminal bool) (*app, error) {
	log, err := logging.New(cmd.String("log-level"), cmd.Bool("verbose"))
	if err != nil {
		return nil, err
	}

	cfg, path, err := manager.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}
	log.Debug("config loaded", zap.String("path", path), zap.Int("hosts", len(cfg.Hosts)))

	a := &app{log: log, cfg: cfg, cfgPath: path, store: credstore.NewKeyring()}
	a.ledger = ledger.New(a.store, log)
	a.builder = sshcmd.NewBuilder(log)

	var secretOpts []secretfile.Option
	if exe, err := os.Executable(); err == nil {
		secretOpts = append(secretOpts, secretfile.WithDetacher(secretfile.ProcessDetacher(exe, cleanupCommand)))
	} else {
		log.Warn("cannot locate own executable, secret files are removed in-process", zap.Error(err))
	}
	a.secrets, err = secretfile.NewManager(log, secretOpts...)
	if err != nil {
		return nil, err
	}

	var term terminal.Launcher
	if withTerminal {
		term, err = terminal.New(cmd.String("terminal"), log)
		if err != nil {
			return nil, err
		}
		log.Debug("terminal selected", zap.String("terminal", term.Name()))
	}

	a.launcher = launch.New(launch.Deps{
		Ledger:   a.ledger,
		Builder:  a.builder,
		Secrets:  a.secrets,
		Terminal: term,
		Prompter: launch.TTYPrompter{},
		Log:      log,
	})
	return a, nil
}

// loadOrInit is newApp, except a missing config writes the sample and
// returns (nil, nil) after telling the user.
func loadOrInit(cmd *cli.Command, withTerminal bool) (*app, error) {
	a, err := newApp(cmd, withTerminal)
	if errors.Is(err, manager.ErrConfigNotFound) {
		path := cmd.String("config")
		if path == "" {
			path = manager.DefaultConfigPath()
		}
		created, werr := manager.WriteSampleConfig(path)
		if werr != nil {
			return nil, werr
		}
		if created {
			fmt.Printf("Created sample configuration at %s\n", path)
			fmt.Println("Edit it to add your hosts, then run ssh-launcher again.")
		}
		return nil, nil
	}
	return a, err
}

func (a *app) sync() {
	_ = a.log.Sync()
}

func warn(msg string) {
	fmt.Fprintf(os.Stderr, "Warning: %s\n", msg)
}
