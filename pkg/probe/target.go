package probe

import (
	"fmt"
	"net"
	"os"
	"time"

	sshconfig "github.com/kevinburke/ssh_config"

	"github.com/abshkbh/webapp-tools/pkg/config"
)

// Target is a fully resolved SSH endpoint.
type Target struct {
	// Host is the name the operator configured, used in messages.
	Host string
	// HostName is what is actually dialed.
	HostName       string
	Port           string
	User           string
	Password       string
	Timeout        time.Duration
	KnownHostsFile string
}

// Address returns host:port for dialing.
func (t Target) Address() string {
	return net.JoinHostPort(t.HostName, t.Port)
}

// lookupFunc returns the value of `key` for host alias `alias`, or "".
type lookupFunc func(alias, key string) string

func userLookup(alias, key string) string {
	// Get fills in ssh defaults, e.g. Port 22, which must not mask
	// explicit configuration; callers only use it for unset fields.
	return sshconfig.Get(alias, key)
}

func fileLookup(path string) (lookupFunc, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open ssh config %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := sshconfig.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("unable to parse ssh config %q: %w", path, err)
	}
	return func(alias, key string) string {
		v, err := cfg.Get(alias, key)
		if err != nil {
			return ""
		}
		return v
	}, nil
}

// ResolveTarget turns the configured host into something dialable. When the
// host is an alias in the ssh config file, its HostName is used; Port and
// User from that file only fill fields left empty in `cfg`. Whatever is
// still empty afterwards gets DefaultProbePort and DefaultProbeUser.
func ResolveTarget(cfg config.ProbeConfig) (Target, error) {
	lookup := lookupFunc(userLookup)
	if cfg.SSHConfigFile != "" {
		var err error
		if lookup, err = fileLookup(cfg.SSHConfigFile); err != nil {
			return Target{}, err
		}
	}

	t := Target{
		Host:           cfg.Host,
		HostName:       cfg.Host,
		Port:           cfg.Port,
		User:           cfg.User,
		Password:       cfg.Password,
		Timeout:        cfg.Timeout,
		KnownHostsFile: cfg.KnownHostsFile,
	}
	if h := lookup(cfg.Host, "HostName"); h != "" {
		t.HostName = h
	}
	if t.Port == "" {
		t.Port = lookup(cfg.Host, "Port")
	}
	if t.Port == "" {
		t.Port = config.DefaultProbePort
	}
	if t.User == "" {
		t.User = lookup(cfg.Host, "User")
	}
	if t.User == "" {
		t.User = config.DefaultProbeUser
	}
	return t, nil
}
