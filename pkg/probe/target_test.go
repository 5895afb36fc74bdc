package probe

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abshkbh/webapp-tools/pkg/config"
)

const testSSHConfig = `
Host gpu-box
	HostName 10.20.1.2
	Port 2222
	User bob
`

func TestResolveTarget(t *testing.T) {
	sshConfig := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(sshConfig, []byte(testSSHConfig), 0600))

	tests := []struct {
		name string
		cfg  config.ProbeConfig
		want Target
	}{
		{
			name: "alias fills unset fields",
			cfg:  config.ProbeConfig{Host: "gpu-box", Timeout: time.Second},
			want: Target{Host: "gpu-box", HostName: "10.20.1.2", Port: "2222", User: "bob", Timeout: time.Second},
		},
		{
			name: "explicit fields win",
			cfg:  config.ProbeConfig{Host: "gpu-box", Port: "22", User: "phil", Password: "pw"},
			want: Target{Host: "gpu-box", HostName: "10.20.1.2", Port: "22", User: "phil", Password: "pw"},
		},
		{
			name: "unknown host is dialed as is",
			cfg:  config.ProbeConfig{Host: "108.178.153.147", Port: "22", User: "phil", KnownHostsFile: "/tmp/kh"},
			want: Target{Host: "108.178.153.147", HostName: "108.178.153.147", Port: "22", User: "phil", KnownHostsFile: "/tmp/kh"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.SSHConfigFile = sshConfig
			got, err := ResolveTarget(tt.cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveTargetDefaultsPortAndUser(t *testing.T) {
	sshConfig := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(sshConfig, nil, 0600))

	got, err := ResolveTarget(config.ProbeConfig{Host: "example.net", SSHConfigFile: sshConfig})
	require.NoError(t, err)
	assert.Equal(t, config.DefaultProbePort, got.Port)
	assert.Equal(t, config.DefaultProbeUser, got.User)
	assert.Equal(t, "example.net:22", got.Address())
}

func TestResolveTargetAliasFromLoadedConfig(t *testing.T) {
	sshConfig := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(sshConfig, []byte(testSSHConfig), 0600))

	pc, err := config.GetProbeConfig("")
	require.NoError(t, err)
	pc.Host = "gpu-box"
	pc.SSHConfigFile = sshConfig

	got, err := ResolveTarget(*pc)
	require.NoError(t, err)
	assert.Equal(t, "10.20.1.2:2222", got.Address())
	assert.Equal(t, "bob", got.User)

	// Values from the config file still beat the alias.
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sshprobe:\n  port: \"22\"\n  user: phil\n"), 0600))
	pc, err = config.GetProbeConfig(path)
	require.NoError(t, err)
	pc.Host = "gpu-box"
	pc.SSHConfigFile = sshConfig

	got, err = ResolveTarget(*pc)
	require.NoError(t, err)
	assert.Equal(t, "10.20.1.2:22", got.Address())
	assert.Equal(t, "phil", got.User)
}

func TestResolveTargetMissingSSHConfig(t *testing.T) {
	_, err := ResolveTarget(config.ProbeConfig{
		Host:          "h",
		SSHConfigFile: filepath.Join(t.TempDir(), "missing"),
	})
	assert.Error(t, err)
}

func TestTargetAddressIPv6(t *testing.T) {
	assert.Equal(t, "[::1]:22", Target{HostName: "::1", Port: "22"}.Address())
}
