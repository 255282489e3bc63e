package config

import (
	"fmt"
	"os"
	"time"
)

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Host key checking policies.
const (
	HostKeyStrict    = "strict"
	HostKeyAcceptNew = "accept-new"
	HostKeyOff       = "off"
)

// Temperature display units.
const (
	UnitFahrenheit = "fahrenheit"
	UnitCelsius    = "celsius"
)

// Config represents the complete rackwatch configuration file.
type Config struct {
	Version int           `yaml:"version" mapstructure:"version"`
	Poll    PollConfig    `yaml:"poll" mapstructure:"poll"`
	SSH     SSHConfig     `yaml:"ssh" mapstructure:"ssh"`
	Serve   ServeConfig   `yaml:"serve" mapstructure:"serve"`
	Display DisplayConfig `yaml:"display" mapstructure:"display"`
	Hosts   []Host        `yaml:"hosts" mapstructure:"hosts"`
}

// Host is one entry in the host directory.
type Host struct {
	// ID is the stable identifier. Metrics are keyed by it, so it must not
	// change when the host is renamed.
	ID string `yaml:"id" mapstructure:"id"`

	// Name is the label shown in the dashboard. Falls back to Address.
	Name string `yaml:"name,omitempty" mapstructure:"name"`

	// Address is a hostname, IP, or ~/.ssh/config alias.
	Address string `yaml:"address" mapstructure:"address"`

	// Port defaults to 22, or to the alias Port from ~/.ssh/config.
	Port int `yaml:"port,omitempty" mapstructure:"port"`

	User string `yaml:"user" mapstructure:"user"`

	// Password holds the secret inline. Prefer PasswordEnv.
	Password string `yaml:"password,omitempty" mapstructure:"password"`

	// PasswordEnv names an environment variable holding the secret.
	PasswordEnv string `yaml:"password_env,omitempty" mapstructure:"password_env"`

	// Display hides the host from the dashboard when explicitly false.
	Display *bool `yaml:"display,omitempty" mapstructure:"display"`

	// Order sorts hosts in listings, lowest first.
	Order int `yaml:"order,omitempty" mapstructure:"order"`
}

// PollConfig controls how often and how patiently hosts are sampled.
type PollConfig struct {
	// Interval between poll cycles for every connected host.
	Interval time.Duration `yaml:"interval" mapstructure:"interval"`

	// ConnectTimeout bounds TCP connect plus SSH handshake.
	ConnectTimeout time.Duration `yaml:"connect_timeout" mapstructure:"connect_timeout"`

	// CommandTimeout bounds a single remote command. Zero means no bound.
	CommandTimeout time.Duration `yaml:"command_timeout" mapstructure:"command_timeout"`

	// MaxParallel caps concurrent connects when connecting every host.
	MaxParallel int `yaml:"max_parallel" mapstructure:"max_parallel"`
}

// SSHConfig controls transport security.
type SSHConfig struct {
	// HostKeyChecking is one of strict, accept-new, off.
	HostKeyChecking string `yaml:"host_key_checking" mapstructure:"host_key_checking"`

	// KnownHosts is the known_hosts file consulted and appended to.
	KnownHosts string `yaml:"known_hosts" mapstructure:"known_hosts"`
}

// ServeConfig controls the HTTP read surface.
type ServeConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// DisplayConfig holds presentation preferences.
type DisplayConfig struct {
	// Temperature is fahrenheit or celsius.
	Temperature string `yaml:"temperature" mapstructure:"temperature"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version: CurrentConfigVersion,
		Poll: PollConfig{
			Interval:       2 * time.Second,
			ConnectTimeout: 10 * time.Second,
			MaxParallel:    8,
		},
		SSH: SSHConfig{
			HostKeyChecking: HostKeyAcceptNew,
			KnownHosts:      "~/.ssh/known_hosts",
		},
		Serve: ServeConfig{
			Listen: "127.0.0.1:9273",
		},
		Display: DisplayConfig{
			Temperature: UnitFahrenheit,
		},
		Hosts: []Host{},
	}
}

// Label returns the display name for the host.
func (h Host) Label() string {
	if h.Name != "" {
		return h.Name
	}
	return h.Address
}

// Visible reports whether the host should be shown in the dashboard.
func (h Host) Visible() bool {
	return h.Display == nil || *h.Display
}

// Secret resolves the password: PasswordEnv first, then the inline Password.
func (h Host) Secret() string {
	if h.PasswordEnv != "" {
		if v := os.Getenv(h.PasswordEnv); v != "" {
			return v
		}
	}
	return h.Password
}

// ConnectionKey identifies everything that requires a fresh session when it
// changes. Display fields such as Name and Order are not part of it.
func (h Host) ConnectionKey() string {
	return fmt.Sprintf("%s|%d|%s|%s|%s", h.Address, h.Port, h.User, h.PasswordEnv, h.Password)
}

// FindHost returns the host with the given id or name.
func (c *Config) FindHost(ref string) (Host, bool) {
	for _, h := range c.Hosts {
		if h.ID == ref {
			return h, true
		}
	}
	for _, h := range c.Hosts {
		if h.Name == ref {
			return h, true
		}
	}
	return Host{}, false
}
