package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseSSHConfigFile(t *testing.T) {
	configPath := writeSSHConfig(t, `
Host nas
    HostName 192.168.1.100
    User admin
    Port 22

Host pi
    HostName pi.example.com
    User ubuntu

Host *
    ServerAliveInterval 60

Host work-*
    User workuser
`)

	hosts, err := ParseSSHConfigFile(configPath)
	require.NoError(t, err)

	// Wildcards (*) and patterns (work-*) are excluded, and output is sorted.
	require.Len(t, hosts, 2)
	assert.Equal(t, "nas", hosts[0].Alias)
	assert.Equal(t, "pi", hosts[1].Alias)

	assert.Equal(t, "192.168.1.100", hosts[0].Hostname)
	assert.Equal(t, "admin", hosts[0].User)
	assert.Equal(t, 22, hosts[0].Port)

	assert.Equal(t, "pi.example.com", hosts[1].Hostname)
	assert.Zero(t, hosts[1].Port)
}

func TestParseSSHConfigFileNotExists(t *testing.T) {
	hosts, err := ParseSSHConfigFile("/nonexistent/config")

	assert.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestParseSSHConfigWithMatch(t *testing.T) {
	configPath := writeSSHConfig(t, `
Host before
    HostName before.example.com

Match host *.internal
    User internal

Host after
    HostName after.example.com
`)

	hosts, err := ParseSSHConfigFile(configPath)
	require.NoError(t, err)

	require.Len(t, hosts, 1)
	assert.Equal(t, "before", hosts[0].Alias)
}

func TestParseSSHConfigFile_DuplicateAndMultiplePatterns(t *testing.T) {
	configPath := writeSSHConfig(t, `
Host nas storage
    HostName 10.0.0.5

Host nas
    User other
`)

	hosts, err := ParseSSHConfigFile(configPath)
	require.NoError(t, err)

	require.Len(t, hosts, 2)
	assert.Equal(t, "nas", hosts[0].Alias)
	assert.Equal(t, "storage", hosts[1].Alias)
	assert.Equal(t, "10.0.0.5", hosts[1].Hostname)
}

func TestSSHHostEntryDescription(t *testing.T) {
	tests := []struct {
		name     string
		entry    SSHHostEntry
		expected string
	}{
		{
			name:     "full entry",
			entry:    SSHHostEntry{Alias: "nas", Hostname: "192.168.1.100", User: "admin", Port: 2222},
			expected: "192.168.1.100, user: admin, port: 2222",
		},
		{
			name:     "default port",
			entry:    SSHHostEntry{Alias: "nas", Hostname: "192.168.1.100", User: "admin", Port: 22},
			expected: "192.168.1.100, user: admin",
		},
		{
			name:     "hostname same as alias",
			entry:    SSHHostEntry{Alias: "nas", Hostname: "nas", User: "admin"},
			expected: "user: admin",
		},
		{
			name:     "minimal entry",
			entry:    SSHHostEntry{Alias: "nas"},
			expected: "nas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.entry.Description())
		})
	}
}
