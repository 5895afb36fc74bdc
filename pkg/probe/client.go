package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/ssh"
	"gvisor.dev/gvisor/pkg/cleanup"
)

// Executor runs commands on a connected remote host.
type Executor interface {
	// Exec runs `cmd` to completion. A non-zero exit is reported in
	// Result.ExitStatus, not as an error.
	Exec(ctx context.Context, cmd string) (Result, error)
	Close() error
}

// Dialer opens the single connection a run uses.
type Dialer func(ctx context.Context, target Target) (Executor, error)

// Client is an SSH connection. Each command gets its own session channel
// on it.
type Client struct {
	client *ssh.Client
}

var _ Executor = (*Client)(nil)

func clientConfig(t Target) (*ssh.ClientConfig, error) {
	hostKeys, err := hostKeyCallback(t.KnownHostsFile)
	if err != nil {
		return nil, err
	}

	password := t.Password
	return &ssh.ClientConfig{
		User: t.User,
		Auth: []ssh.AuthMethod{
			ssh.Password(password),
			// Some servers only offer keyboard-interactive for passwords.
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: hostKeys,
		Timeout:         t.Timeout,
	}, nil
}

// Dial connects and authenticates. Both the TCP connect and the SSH
// handshake are bounded by t.Timeout.
func Dial(ctx context.Context, t Target) (*Client, error) {
	logger := log.WithFields(log.Fields{
		"api":  "dial",
		"addr": t.Address(),
		"user": t.User,
	})
	cleanup := cleanup.Make(func() {})
	defer cleanup.Clean()

	conf, err := clientConfig(t)
	if err != nil {
		return nil, err
	}

	dialer := net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address())
	if err != nil {
		return nil, fmt.Errorf("failed to dial: %s: %w", t.Address(), err)
	}
	cleanup.Add(func() {
		conn.Close()
	})

	if t.Timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(t.Timeout)); err != nil {
			return nil, fmt.Errorf("failed to set handshake deadline: %w", err)
		}
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, t.Address(), conf)
	if err != nil {
		return nil, err
	}
	if err := conn.SetDeadline(time.Time{}); err != nil {
		sshConn.Close()
		return nil, fmt.Errorf("failed to clear handshake deadline: %w", err)
	}

	logger.WithField("serverVersion", string(sshConn.ServerVersion())).Debug("ssh connection established")
	cleanup.Release()
	return &Client{client: ssh.NewClient(sshConn, chans, reqs)}, nil
}

// Exec runs `cmd` in a new session and waits until stdout and stderr are
// fully drained.
func (c *Client) Exec(ctx context.Context, cmd string) (Result, error) {
	res := Result{Command: cmd}

	session, err := c.client.NewSession()
	if err != nil {
		return res, fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil && err != io.EOF {
			log.WithError(err).WithField("cmd", cmd).Debug("failed to close session")
		}
	}()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	errCh := make(chan error, 1)
	go func() {
		errCh <- session.Run(cmd)
	}()

	select {
	case err = <-errCh:
	case <-ctx.Done():
		session.Close()
		return res, ctx.Err()
	}

	res.Stdout = strings.TrimSpace(stdout.String())
	res.Stderr = strings.TrimSpace(stderr.String())

	var exitErr *ssh.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitStatus = exitErr.ExitStatus()
	default:
		return res, fmt.Errorf("failed to run command: %w", err)
	}
	return res, nil
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.client.Close()
}

func dialExecutor(ctx context.Context, t Target) (Executor, error) {
	c, err := Dial(ctx, t)
	if err != nil {
		return nil, err
	}
	return c, nil
}
