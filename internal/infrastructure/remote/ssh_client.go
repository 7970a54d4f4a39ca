package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/agentdock/backend/internal/config"
	"github.com/agentdock/backend/internal/domain"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/crypto/ssh"
)

var (
	ErrSSHConnection     = errors.New("ssh: connection failed")
	ErrSSHAuthentication = errors.New("ssh: authentication failed")
	ErrSSHCommandFailed  = errors.New("ssh: command execution failed")
)

type SSHConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	PrivateKey string
	Timeout    time.Duration
	MaxRetries int
}

// FromConfig maps the executor's ssh section.
func FromConfig(cfg config.SSHConfig) SSHConfig {
	return SSHConfig{
		Host:       cfg.Host,
		Port:       cfg.Port,
		User:       cfg.User,
		Password:   cfg.Password,
		PrivateKey: cfg.PrivateKey,
		Timeout:    cfg.Timeout,
	}
}

// SSHClient runs sandbox commands on a remote host. Each call opens its own
// connection.
type SSHClient struct {
	config SSHConfig
}

func NewSSHClient(cfg SSHConfig) *SSHClient {
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &SSHClient{config: cfg}
}

func (c *SSHClient) getAuthMethods() ([]ssh.AuthMethod, error) {
	var authMethods []ssh.AuthMethod

	if c.config.PrivateKey != "" {
		signer, err := ssh.ParsePrivateKey([]byte(c.config.PrivateKey))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid private key", ErrSSHAuthentication)
		}
		authMethods = append(authMethods, ssh.PublicKeys(signer))
	}

	if c.config.Password != "" {
		authMethods = append(authMethods, ssh.Password(c.config.Password))
	}

	if len(authMethods) == 0 {
		return nil, fmt.Errorf("%w: no credentials provided", ErrSSHAuthentication)
	}

	return authMethods, nil
}

// Connect dials the host, retrying with exponential backoff until ctx ends
// or MaxRetries attempts failed.
func (c *SSHClient) Connect(ctx context.Context) (*ssh.Client, error) {
	authMethods, err := c.getAuthMethods()
	if err != nil {
		return nil, err
	}

	sshConfig := &ssh.ClientConfig{
		User:            c.config.User,
		Auth:            authMethods,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         c.config.Timeout,
	}

	addr := net.JoinHostPort(c.config.Host, fmt.Sprint(c.config.Port))
	var client *ssh.Client

	op := func() error {
		dialer := net.Dialer{
			Timeout:   c.config.Timeout,
			KeepAlive: 60 * time.Second,
		}
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return err
		}
		// deadline covers the handshake only
		_ = conn.SetDeadline(time.Now().Add(c.config.Timeout))
		cc, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
		if err != nil {
			conn.Close()
			if strings.Contains(err.Error(), "unable to authenticate") {
				return backoff.Permanent(fmt.Errorf("%w: %v", ErrSSHAuthentication, err))
			}
			return err
		}
		_ = conn.SetDeadline(time.Time{})
		client = ssh.NewClient(cc, chans, reqs)
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.config.MaxRetries-1)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		if errors.Is(err, ErrSSHAuthentication) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v (after %d attempts)", ErrSSHConnection, addr, err, c.config.MaxRetries)
	}
	return client, nil
}

// Execute runs cmd on an open connection and returns its streams and exit code.
func (c *SSHClient) Execute(ctx context.Context, client *ssh.Client, cmd string) (stdout, stderr string, exitCode int, err error) {
	session, err := client.NewSession()
	if err != nil {
		return "", "", -1, fmt.Errorf("%w: failed to create session", ErrSSHConnection)
	}
	defer session.Close()

	var outBuf, errBuf bytes.Buffer
	session.Stdout = &outBuf
	session.Stderr = &errBuf

	done := make(chan error, 1)
	go func() {
		done <- session.Run(cmd)
	}()

	select {
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGKILL)
		return outBuf.String(), errBuf.String(), -1, fmt.Errorf("command timed out or cancelled: %w", ctx.Err())
	case runErr := <-done:
		if runErr != nil {
			var exitErr *ssh.ExitError
			if errors.As(runErr, &exitErr) {
				return outBuf.String(), errBuf.String(), exitErr.ExitStatus(), fmt.Errorf("%w: exit status %d", ErrSSHCommandFailed, exitErr.ExitStatus())
			}
			return outBuf.String(), errBuf.String(), -1, fmt.Errorf("%w: %v", ErrSSHCommandFailed, runErr)
		}
	}
	return outBuf.String(), errBuf.String(), 0, nil
}

// Run implements ports.CommandRunner.
func (c *SSHClient) Run(ctx context.Context, command, workdir string) domain.CommandResult {
	start := time.Now()
	client, err := c.Connect(ctx)
	if err != nil {
		res := domain.FailedResult(err)
		res.Duration = time.Since(start)
		return res
	}
	defer client.Close()

	stdout, stderr, code, err := c.Execute(ctx, client, WrapInDir(command, workdir))
	res := domain.CommandResult{
		Success:  err == nil,
		Stdout:   stdout,
		Stderr:   stderr,
		ExitCode: code,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Error = err.Error()
		if stderr != "" {
			res.Error = strings.TrimSpace(stderr)
		}
	}
	return res
}

// WrapInDir prefixes command with a cd into workdir.
func WrapInDir(command, workdir string) string {
	if workdir == "" {
		return command
	}
	return fmt.Sprintf("cd %s && %s", domain.ShellQuote(workdir), command)
}
