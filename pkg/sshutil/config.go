package sshutil

import (
	"bytes"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/kevinburke/ssh_config"
)

// SSHHostEntry is one concrete alias from ~/.ssh/config, offered as a
// starting point when adding a host.
type SSHHostEntry struct {
	Alias    string
	Hostname string
	User     string
	// Port is zero when the alias leaves it unset.
	Port int
}

// Description summarizes where the alias points.
func (h SSHHostEntry) Description() string {
	var parts []string
	if h.Hostname != "" && h.Hostname != h.Alias {
		parts = append(parts, h.Hostname)
	}
	if h.User != "" {
		parts = append(parts, "user: "+h.User)
	}
	if h.Port != 0 && h.Port != 22 {
		parts = append(parts, fmt.Sprintf("port: %d", h.Port))
	}
	if len(parts) == 0 {
		return h.Alias
	}
	return strings.Join(parts, ", ")
}

// ParseSSHConfig lists the concrete aliases in ~/.ssh/config.
func ParseSSHConfig() ([]SSHHostEntry, error) {
	return ParseSSHConfigFile(defaultSSHConfigPath())
}

// ParseSSHConfigFile lists the concrete aliases in configPath, sorted by
// alias. Wildcard patterns are skipped, and a missing file yields nil.
func ParseSSHConfigFile(configPath string) ([]SSHHostEntry, error) {
	content, _, err := preprocessSSHConfig(configPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cfg, err := ssh_config.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var entries []SSHHostEntry
	for _, host := range cfg.Hosts {
		for _, alias := range concreteAliases(host) {
			if seen[alias] {
				continue
			}
			seen[alias] = true
			entries = append(entries, lookupEntry(cfg, alias))
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Alias < entries[j].Alias
	})
	return entries, nil
}

// concreteAliases returns the patterns of host that name a single host.
func concreteAliases(host *ssh_config.Host) []string {
	var out []string
	for _, p := range host.Patterns {
		alias := p.String()
		if strings.ContainsAny(alias, "*?!") {
			continue
		}
		out = append(out, alias)
	}
	return out
}

func lookupEntry(cfg *ssh_config.Config, alias string) SSHHostEntry {
	e := SSHHostEntry{Alias: alias}
	e.Hostname, _ = cfg.Get(alias, "HostName")
	e.User, _ = cfg.Get(alias, "User")
	if p, _ := cfg.Get(alias, "Port"); p != "" {
		e.Port, _ = strconv.Atoi(p)
	}
	return e
}
