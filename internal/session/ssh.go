// Package session opens interactive CLI sessions to network devices.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/nmslite/switchaudit/internal/inventory"
)

// Session is an open, authenticated CLI on one device. Implementations are used by a single
// audit at a time; Close must be safe to call more than once.
type Session interface {
	Run(ctx context.Context, command string) (string, error)
	Close() error
}

// Dialer opens sessions.
type Dialer interface {
	Dial(ctx context.Context, dev inventory.Device) (Session, error)
}

const (
	defaultConnectTimeout = 10 * time.Second
	ptyWidth              = 511
	ptyHeight             = 0
)

// SSHDialer opens password-authenticated SSH shells with a PTY, which VRP and IOS require
// for interactive commands.
type SSHDialer struct {
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// NewSSHDialer creates a dialer with the given connect timeout.
func NewSSHDialer(connectTimeout time.Duration, logger *slog.Logger) *SSHDialer {
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SSHDialer{
		ConnectTimeout: connectTimeout,
		Logger:         logger.With("component", "ssh_dialer"),
	}
}

// Dial connects, authenticates, starts a shell, waits for the first prompt and disables
// paging. Every step is bounded by ConnectTimeout.
func (d *SSHDialer) Dial(ctx context.Context, dev inventory.Device) (Session, error) {
	if dev.Transport != inventory.TransportSSH2 {
		return nil, fmt.Errorf("unsupported transport: %s", dev.Transport)
	}
	profile, err := LookupProfile(dev.Platform)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, d.ConnectTimeout)
	defer cancel()

	port := dev.Port
	if port == 0 {
		port = inventory.DefaultPort
	}
	address := net.JoinHostPort(dev.Address, strconv.Itoa(port))

	config := &ssh.ClientConfig{
		User: dev.Username,
		Auth: []ssh.AuthMethod{
			ssh.Password(dev.Password),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = dev.Password
				}
				return answers, nil
			}),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), // inventory carries no host keys
		Timeout:         d.ConnectTimeout,
	}

	dialer := &net.Dialer{Timeout: d.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", address, err)
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, address, config)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("SSH handshake with %s failed: %w", address, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	sess, err := client.NewSession()
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to open session: %w", err)
	}

	closeAll := func() error {
		sessErr := sess.Close()
		clientErr := client.Close()
		if sessErr != nil && !errors.Is(sessErr, io.EOF) {
			return sessErr
		}
		if clientErr != nil && !errors.Is(clientErr, net.ErrClosed) {
			return clientErr
		}
		return nil
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 38400,
		ssh.TTY_OP_OSPEED: 38400,
	}
	if err := sess.RequestPty("vt100", ptyHeight, ptyWidth, modes); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to request PTY: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to open stdout: %w", err)
	}

	if err := sess.Shell(); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to start shell: %w", err)
	}

	sh := newShell(stdin, stdout, profile, closeAll)
	if err := sh.waitPrompt(ctx); err != nil {
		sh.Close()
		return nil, err
	}

	for _, cmd := range profile.DisablePaging {
		_, err := sh.Run(ctx, cmd)
		if err == nil {
			continue
		}
		var cmdErr *CommandError
		if !errors.As(err, &cmdErr) {
			sh.Close()
			return nil, fmt.Errorf("failed to disable paging: %w", err)
		}
		// Paging stays on; the shell answers pager prompts itself.
		d.Logger.WarnContext(ctx, "Device rejected paging command",
			slog.String("address", dev.Address),
			slog.String("command", cmd),
			slog.String("error", err.Error()),
		)
	}

	d.Logger.DebugContext(ctx, "Session established",
		slog.String("address", dev.Address),
		slog.String("platform", profile.Name),
		slog.String("server_version", string(client.ServerVersion())),
	)

	return sh, nil
}
