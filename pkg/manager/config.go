// Package manager contains host profile configuration types and helpers for ssh-launcher.
package manager

import (
	"os"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// AuthMethod selects how a host authenticates.
type AuthMethod string

const (
	AuthPassword AuthMethod = "password"
	AuthKey      AuthMethod = "key"
)

const (
	DefaultPort         = 22
	DefaultItermProfile = "Default"
)

// Config represents the full host configuration.
//
// The file may be YAML or JSON (the legacy ~/.ssh_manager_config.json format
// parses unchanged, since JSON is valid YAML).
//
// Example YAML:
//
// hosts:
//   - name: Production Server
//     hostname: prod.example.com
//     username: admin
//     port: 22
//     auth_method: password
//     iterm_profile: Production
//     tags: [production, web]
type Config struct {
	Hosts []HostProfile `yaml:"hosts" json:"hosts"`
}

// HostProfile identifies one remote target.
type HostProfile struct {
	// Name is a display label. It is not unique and plays no part in authentication.
	Name     string     `yaml:"name" json:"name"`
	Hostname string     `yaml:"hostname" json:"hostname"`
	Username string     `yaml:"username" json:"username"`
	Port     int        `yaml:"port,omitempty" json:"port,omitempty"`
	Auth     AuthMethod `yaml:"auth_method,omitempty" json:"auth_method,omitempty"`

	// SSHKeyPath is only meaningful for key auth. "~" and $VARS are expanded at use.
	SSHKeyPath string `yaml:"ssh_key_path,omitempty" json:"ssh_key_path,omitempty"`

	// ItermProfile is cosmetic; terminals that do not support profiles ignore it.
	ItermProfile string   `yaml:"iterm_profile,omitempty" json:"iterm_profile,omitempty"`
	Tags         []string `yaml:"tags,omitempty" json:"tags,omitempty"`
}

// ErrConfigNotFound is returned when no configuration file can be located.
var ErrConfigNotFound = errors.New("config not found")

// LoadConfig discovers and loads the host configuration.
// If explicitPath is empty, it searches the locations returned by
// ConfigPathCandidates in order and uses the first readable file.
//
// Returns the parsed Config (defaults applied) and the path that was used.
func LoadConfig(explicitPath string) (*Config, string, error) {
	var lastErr error
	for _, p := range ConfigPathCandidates(explicitPath) {
		p = ExpandPath(p)
		if p == "" {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			lastErr = err
			continue
		}
		cfg, err := ParseConfig(data)
		if err != nil {
			return nil, p, errors.Wrapf(err, "config %s", p)
		}
		return cfg, p, nil
	}
	if lastErr == nil || os.IsNotExist(lastErr) {
		lastErr = ErrConfigNotFound
	}
	return nil, "", lastErr
}

// LoadConfigFile loads exactly path, without searching other locations.
func LoadConfigFile(path string) (*Config, error) {
	p := ExpandPath(path)
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", p)
	}
	return cfg, nil
}

// ParseConfig decodes, defaults and validates a config document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "parse")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid")
	}
	return &cfg, nil
}

// ConfigPathCandidates returns possible configuration file paths, in priority order:
// 1. explicitPath
// 2. $SSH_LAUNCHER_CONFIG
// 3. ~/.ssh_manager_config.json
// 4. $XDG_CONFIG_HOME/ssh-launcher/hosts.yaml
// 5. ~/.config/ssh-launcher/hosts.yaml
func ConfigPathCandidates(explicitPath string) []string {
	var out []string
	if explicitPath != "" {
		out = append(out, explicitPath)
	}
	if env := os.Getenv("SSH_LAUNCHER_CONFIG"); env != "" {
		out = append(out, env)
	}
	home, _ := os.UserHomeDir()
	if home != "" {
		out = append(out, filepath.Join(home, ".ssh_manager_config.json"))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		out = append(out, filepath.Join(xdg, "ssh-launcher", "hosts.yaml"))
	}
	if home != "" {
		out = append(out, filepath.Join(home, ".config", "ssh-launcher", "hosts.yaml"))
	}
	return out
}

// DefaultConfigPath is where a new config is written when none exists.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "ssh-launcher", "hosts.yaml")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "ssh-launcher", "hosts.yaml")
}

// ApplyDefaults fills port, auth method and iTerm profile where unset.
func (c *Config) ApplyDefaults() {
	for i := range c.Hosts {
		c.Hosts[i].applyDefaults()
	}
}

func (h *HostProfile) applyDefaults() {
	h.Name = strings.TrimSpace(h.Name)
	h.Hostname = strings.TrimSpace(h.Hostname)
	h.Username = strings.TrimSpace(h.Username)
	if h.Port <= 0 {
		h.Port = DefaultPort
	}
	if strings.TrimSpace(string(h.Auth)) == "" {
		h.Auth = AuthPassword
	}
	h.Auth = AuthMethod(strings.ToLower(strings.TrimSpace(string(h.Auth))))
	if strings.TrimSpace(h.ItermProfile) == "" {
		h.ItermProfile = DefaultItermProfile
	}
}

// Validate checks every host profile.
func (c *Config) Validate() error {
	for i := range c.Hosts {
		if err := c.Hosts[i].Validate(); err != nil {
			return errors.Wrapf(err, "hosts[%d](%s)", i, c.Hosts[i].Name)
		}
	}
	return nil
}

// Validate checks one host profile. Hostname and username go through the
// allow-lists in sanitize.go because both end up in ssh argv and terminal
// automation parameters.
func (h *HostProfile) Validate() error {
	return validation.ValidateStruct(h,
		validation.Field(&h.Name, validation.Required, validation.By(displayNameRule)),
		validation.Field(&h.Hostname, validation.Required, validation.Match(hostnamePattern).Error("must be a plain hostname or IP address")),
		validation.Field(&h.Username, validation.Required, validation.Match(usernamePattern).Error("must be a plain login name")),
		validation.Field(&h.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&h.Auth, validation.Required, validation.In(AuthPassword, AuthKey)),
		validation.Field(&h.SSHKeyPath,
			validation.When(h.Auth == AuthKey, validation.Required),
			validation.When(h.Auth != AuthKey, validation.Empty.Error("only allowed with auth_method key")),
		),
	)
}

// Destination returns "user@host" for ssh.
func (h HostProfile) Destination() string {
	return h.Username + "@" + h.Hostname
}

// Title returns the terminal session title for the host.
func (h HostProfile) Title() string {
	if h.Name != "" {
		return SafeDisplayName(h.Name)
	}
	return h.Destination()
}

// SampleConfig returns the two-host starter configuration.
func SampleConfig() *Config {
	return &Config{Hosts: []HostProfile{
		{
			Name:         "Production Server",
			Hostname:     "prod.example.com",
			Username:     "admin",
			Port:         22,
			Auth:         AuthPassword,
			ItermProfile: "Production",
			Tags:         []string{"production", "web"},
		},
		{
			Name:         "Dev Server",
			Hostname:     "dev.example.com",
			Username:     "developer",
			Port:         2222,
			Auth:         AuthKey,
			SSHKeyPath:   "~/.ssh/dev_server_key",
			ItermProfile: "Development",
			Tags:         []string{"development", "testing"},
		},
	}}
}

// WriteSampleConfig writes SampleConfig to path unless a file already exists there.
// Returns true when a file was written.
func WriteSampleConfig(path string) (bool, error) {
	path = ExpandPath(path)
	if _, err := os.Stat(path); err == nil {
		return false, nil
	}
	data, err := yaml.Marshal(SampleConfig())
	if err != nil {
		return false, errors.Wrap(err, "marshal sample config")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return false, errors.Wrap(err, "create config dir")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return false, errors.Wrap(err, "write sample config")
	}
	return true, nil
}

// ExpandPath expands environment variables and a leading "~" in a path.
// If the input is empty, returns "".
func ExpandPath(p string) string {
	if p == "" {
		return ""
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		home, _ := os.UserHomeDir()
		if home != "" {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
			// "~user" is left alone; it needs a userdb lookup.
		}
	}
	return p
}
