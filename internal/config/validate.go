package config

import (
	"fmt"
	"time"

	"github.com/rileyhilliard/rackwatch/internal/errors"
)

// MinPollInterval keeps a misconfigured file from hammering remote hosts.
const MinPollInterval = 500 * time.Millisecond

// Validate checks the config for errors and returns structured error messages.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but rackwatch only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade rackwatch to read this file")
	}

	if err := validatePoll(cfg.Poll); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, err.Error(), "Check the 'poll' section of your config.")
	}

	switch cfg.SSH.HostKeyChecking {
	case HostKeyStrict, HostKeyAcceptNew, HostKeyOff:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown ssh.host_key_checking '%s'", cfg.SSH.HostKeyChecking),
			"Use one of: strict, accept-new, off")
	}

	switch cfg.Display.Temperature {
	case UnitFahrenheit, UnitCelsius:
	default:
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown display.temperature '%s'", cfg.Display.Temperature),
			"Use fahrenheit or celsius")
	}

	seen := make(map[string]bool, len(cfg.Hosts))
	for i, h := range cfg.Hosts {
		if err := validateHost(i, h); err != nil {
			return err
		}
		if seen[h.ID] {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("Host id '%s' is used more than once", h.ID),
				"Every host needs its own id. Remove the duplicate or give it a new id.")
		}
		seen[h.ID] = true
	}

	return nil
}

func validatePoll(p PollConfig) error {
	if p.Interval < MinPollInterval {
		return fmt.Errorf("poll.interval %s is below the %s minimum", p.Interval, MinPollInterval)
	}
	if p.ConnectTimeout <= 0 {
		return fmt.Errorf("poll.connect_timeout must be positive, got %s", p.ConnectTimeout)
	}
	if p.CommandTimeout < 0 {
		return fmt.Errorf("poll.command_timeout can't be negative, got %s", p.CommandTimeout)
	}
	if p.MaxParallel < 1 {
		return fmt.Errorf("poll.max_parallel must be at least 1, got %d", p.MaxParallel)
	}
	return nil
}

func validateHost(index int, h Host) error {
	where := fmt.Sprintf("hosts[%d]", index)
	if h.Name != "" {
		where = fmt.Sprintf("host '%s'", h.Name)
	}

	if h.ID == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s has no id", where),
			"Add an id, or re-add the host with 'rackwatch host add'")
	}
	if h.Address == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s has no address", where),
			"Set address to a hostname, IP, or SSH config alias")
	}
	if h.User == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s has no user", where),
			"Set user to the login name on the remote machine")
	}
	if h.Port < 0 || h.Port > 65535 {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("%s has invalid port %d", where, h.Port),
			"Use a port between 1 and 65535, or leave it out for 22")
	}
	return nil
}
