package probe

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// hostKeyCallback accepts every host key. With a known_hosts file, keys for
// hosts not yet in it are appended, and keys that differ from the recorded
// ones are logged but still accepted.
func hostKeyCallback(knownHostsFile string) (ssh.HostKeyCallback, error) {
	if knownHostsFile == "" {
		return ssh.InsecureIgnoreHostKey(), nil
	}

	if err := os.MkdirAll(filepath.Dir(knownHostsFile), 0700); err != nil {
		return nil, fmt.Errorf("failed to create dir for: %s: %w", knownHostsFile, err)
	}
	f, err := os.OpenFile(knownHostsFile, os.O_CREATE|os.O_RDONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open known hosts: %s: %w", knownHostsFile, err)
	}
	f.Close()

	known, err := knownhosts.New(knownHostsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load known hosts: %s: %w", knownHostsFile, err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		logger := log.WithFields(log.Fields{
			"host":        hostname,
			"fingerprint": ssh.FingerprintSHA256(key),
		})

		err := known(hostname, remote, key)
		var keyErr *knownhosts.KeyError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &keyErr) && len(keyErr.Want) == 0:
			if err := appendKnownHost(knownHostsFile, hostname, key); err != nil {
				logger.WithError(err).Warn("failed to record host key")
				return nil
			}
			logger.Infof("added host key to %s", knownHostsFile)
		case errors.As(err, &keyErr):
			logger.Warn("host key differs from known hosts entry; accepting anyway")
		default:
			logger.WithError(err).Warn("host key check failed; accepting anyway")
		}
		return nil
	}, nil
}

func appendKnownHost(path, hostname string, key ssh.PublicKey) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	line := knownhosts.Line([]string{knownhosts.Normalize(hostname)}, key)
	_, err = f.WriteString(line + "\n")
	return err
}
