package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	ss, err := GetStaticServerConfig("")
	require.NoError(t, err)
	assert.Equal(t, "8000", ss.Port)
	assert.Equal(t, "", ss.Host)
	assert.Equal(t, "/home/phil/webapp", ss.Root)
	assert.Equal(t, []string{".html", ".js", ".md"}, ss.ListExtensions)

	pc, err := GetProbeConfig("")
	require.NoError(t, err)
	assert.Equal(t, "108.178.153.147", pc.Host)
	// Port and user stay empty so ssh config can fill them.
	assert.Empty(t, pc.Port)
	assert.Empty(t, pc.User)
	assert.Equal(t, 10*time.Second, pc.Timeout)
	assert.Equal(t, DefaultProbeCommands, pc.Commands)
	assert.False(t, pc.Strict)
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
staticserver:
  port: "9000"
  root: /srv/www
sshprobe:
  host: probe.internal
  user: alice
  password: hunter2
  timeout: 3s
  strict: true
  commands:
    - whoami
    - uptime
`)

	ss, err := GetStaticServerConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "9000", ss.Port)
	assert.Equal(t, "/srv/www", ss.Root)
	// Untouched keys keep their defaults.
	assert.Equal(t, []string{".html", ".js", ".md"}, ss.ListExtensions)

	pc, err := GetProbeConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "probe.internal", pc.Host)
	assert.Equal(t, "alice", pc.User)
	assert.Equal(t, "hunter2", pc.Password)
	assert.Equal(t, 3*time.Second, pc.Timeout)
	assert.True(t, pc.Strict)
	assert.Equal(t, []string{"whoami", "uptime"}, pc.Commands)
	assert.Empty(t, pc.Port)
}

func TestEnvironmentOverride(t *testing.T) {
	t.Setenv("SSHPROBE_PASSWORD", "from-env")
	t.Setenv("STATICSERVER_PORT", "8123")
	t.Setenv("SSHPROBE_PORT", "2200")

	pc, err := GetProbeConfig("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", pc.Password)
	assert.Equal(t, "2200", pc.Port)

	ss, err := GetStaticServerConfig("")
	require.NoError(t, err)
	assert.Equal(t, "8123", ss.Port)
}

func TestMissingConfigFile(t *testing.T) {
	_, err := GetProbeConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config")
}

func TestProbeConfigStringRedactsPassword(t *testing.T) {
	pc := ProbeConfig{Host: "h", User: "u", Password: "secret", Timeout: time.Second}
	s := pc.String()
	assert.NotContains(t, s, "secret")
	assert.Contains(t, s, redacted)
	assert.Contains(t, s, "timeout: 1s")
	// The receiver is a copy.
	assert.Equal(t, "secret", pc.Password)
}

func TestProbeConfigValidate(t *testing.T) {
	valid := ProbeConfig{
		Host:     "h",
		Port:     "22",
		Timeout:  time.Second,
		Commands: DefaultProbeCommands,
	}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*ProbeConfig)
	}{
		{"no host", func(c *ProbeConfig) { c.Host = "" }},
		{"bad port", func(c *ProbeConfig) { c.Port = "ssh" }},
		{"port out of range", func(c *ProbeConfig) { c.Port = "70000" }},
		{"zero timeout", func(c *ProbeConfig) { c.Timeout = 0 }},
		{"no commands", func(c *ProbeConfig) { c.Commands = nil }},
		{"blank command", func(c *ProbeConfig) { c.Commands = []string{"whoami", "  "} }},
		{"unterminated quote", func(c *ProbeConfig) { c.Commands = []string{`echo "oops`} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			c.Commands = append([]string(nil), valid.Commands...)
			tt.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestStaticServerConfigValidate(t *testing.T) {
	assert.NoError(t, StaticServerConfig{Port: "0", Root: "."}.Validate())
	assert.Error(t, StaticServerConfig{Port: "http", Root: "."}.Validate())
	assert.Error(t, StaticServerConfig{Port: "8000"}.Validate())
}

func TestShippedConfigFile(t *testing.T) {
	pc, err := GetProbeConfig(filepath.Join("..", "..", "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, pc.Validate())
	assert.Equal(t, "108.178.153.147", pc.Host)
	assert.Equal(t, "phil", pc.Password)
	// Left empty so ssh config aliases can supply them.
	assert.Empty(t, pc.Port)
	assert.Empty(t, pc.User)
	assert.Equal(t, DefaultProbeCommands, pc.Commands)

	ss, err := GetStaticServerConfig(filepath.Join("..", "..", "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, ss.Validate())
	assert.Equal(t, "8000", ss.Port)
}
