package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v3"

	"ssh-session-launcher/pkg/ledger"
	"ssh-session-launcher/pkg/manager"
)

// hostFromFlags collects whatever the add flags already answer.
func hostFromFlags(cmd *cli.Command) manager.HostProfile {
	h := manager.HostProfile{
		Name:         cmd.String("name"),
		Hostname:     cmd.String("hostname"),
		Username:     cmd.String("username"),
		Port:         int(cmd.Int("port")),
		Auth:         manager.AuthMethod(cmd.String("auth")),
		SSHKeyPath:   cmd.String("key"),
		ItermProfile: cmd.String("profile"),
	}
	if tags := cmd.String("tags"); tags != "" {
		h.Tags = strings.Split(tags, ",")
	}
	return h
}

// promptHost asks for every field preset leaves empty. Defaults are shown in
// brackets and taken on an empty answer.
func promptHost(in *bufio.Reader, out io.Writer, preset manager.HostProfile) (manager.HostProfile, error) {
	h := preset
	fmt.Fprintln(out, "\n=== Add New SSH Host ===")

	var err error
	ask := func(dst *string, label, def string) {
		if err != nil || *dst != "" {
			return
		}
		*dst, err = readAnswer(in, out, label, def)
	}

	ask(&h.Name, "Host display name", "")
	ask(&h.Hostname, "Hostname/IP address", "")
	ask(&h.Username, "Username", "")
	if h.Port == 0 && err == nil {
		var port string
		ask(&port, "SSH port", strconv.Itoa(manager.DefaultPort))
		if n, perr := strconv.Atoi(port); perr == nil {
			h.Port = n
		} else if err == nil {
			fmt.Fprintf(out, "Invalid port %q, using %d\n", port, manager.DefaultPort)
			h.Port = manager.DefaultPort
		}
	}
	auth := string(h.Auth)
	ask(&auth, "Authentication method (password/key)", string(manager.AuthPassword))
	h.Auth = manager.AuthMethod(strings.ToLower(auth))
	if h.Auth == manager.AuthKey {
		ask(&h.SSHKeyPath, "Path to SSH private key", "~/.ssh/id_rsa")
	}
	ask(&h.ItermProfile, "iTerm2 profile name", manager.DefaultItermProfile)
	if preset.Tags == nil && err == nil {
		var tags string
		ask(&tags, "Tags (comma-separated, optional)", "")
		if tags != "" {
			h.Tags = strings.Split(tags, ",")
		}
	}
	if err != nil {
		return h, err
	}
	return manager.NormalizeHost(h)
}

// readAnswer prints "label [def]: " and reads one line. EOF with no input
// cancels.
func readAnswer(in *bufio.Reader, out io.Writer, label, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}
	line, err := in.ReadString('\n')
	line = strings.TrimSpace(line)
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", errors.New("cancelled")
		}
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

func confirm(in *bufio.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (y/N): ", question)
	line, _ := in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

func runAdd(_ context.Context, cmd *cli.Command) error {
	path := cmd.String("config")
	if _, found, err := manager.LoadConfig(path); err == nil {
		path = found
	} else if !errors.Is(err, manager.ErrConfigNotFound) {
		return err
	} else if path == "" {
		path = manager.DefaultConfigPath()
	}

	in := bufio.NewReader(os.Stdin)
	h, err := promptHost(in, os.Stdout, hostFromFlags(cmd))
	if err != nil {
		return errors.Wrap(err, "add host")
	}
	if h, err = manager.AppendHost(path, h); err != nil {
		return err
	}
	fmt.Printf("Host '%s' added to %s\n", h.Name, path)

	if h.Auth != manager.AuthPassword {
		return nil
	}
	store := cmd.Bool("store-password")
	if !cmd.IsSet("store-password") {
		store = confirm(in, os.Stdout, "Store password in keychain now?")
	}
	if !store {
		return nil
	}

	a, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer a.sync()
	ok, err := a.launcher.StorePassword(h)
	switch {
	case errors.Is(err, ledger.ErrVerificationMismatch):
		warn("password storage may have failed")
	case err != nil:
		warn("password not stored: " + err.Error())
	case ok:
		fmt.Printf("Password stored for %s\n", h.Destination())
	default:
		fmt.Println("Empty password, nothing stored.")
	}
	return nil
}
