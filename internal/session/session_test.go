package session

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"

	"github.com/nmslite/switchaudit/internal/confquery"
	"github.com/nmslite/switchaudit/internal/inventory"
)

const fakePrompt = "<SW1>"

var fakeReplies = map[string]string{
	"screen-length 0 temporary": "Info: The configuration takes effect on the current user terminal interface only.",
	"display stp active":        "-------[CIST Global Info][Mode RSTP]-------\n BPDU-Protection     :Enabled",
	"display clock":             "2026-10-19 09:00:00+00:00",
	"display empty":             "",
}

// runFakeCLI emulates a VRP shell on a byte stream: it echoes each command, writes the
// canned reply and a prompt. "display paged" exercises the pager, "hang" never answers.
func runFakeCLI(r io.Reader, w io.Writer) {
	if _, err := io.WriteString(w, "\r\nInfo: The max number of VTY users is 5.\r\n"+fakePrompt); err != nil {
		return
	}

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return
		}
		cmd := strings.TrimRight(line, "\r\n")

		var b strings.Builder
		b.WriteString(cmd + "\r\n")

		switch cmd {
		case "hang":
			io.WriteString(w, b.String())
			continue
		case "display paged":
			b.WriteString("interface Vlanif1\r\n ip address 10.0.0.1 255.255.255.0\r\n  ---- More ----")
			if _, err := io.WriteString(w, b.String()); err != nil {
				return
			}
			if c, err := br.ReadByte(); err != nil || c != ' ' {
				return
			}
			b.Reset()
			b.WriteString("\x1b[42D                                          \x1b[42Ddhcp snooping enable\r\n")
		default:
			reply, ok := fakeReplies[cmd]
			if !ok {
				reply = "              ^\nError: Unrecognized command found at '^' position."
			}
			if reply != "" {
				b.WriteString(strings.ReplaceAll(reply, "\n", "\r\n") + "\r\n")
			}
		}

		b.WriteString(fakePrompt)
		if _, err := io.WriteString(w, b.String()); err != nil {
			return
		}
	}
}

func newPipeShell(t *testing.T) (*shell, *atomic.Int32) {
	t.Helper()

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	go func() {
		runFakeCLI(inR, outW)
		outW.Close()
	}()

	profile, err := LookupProfile(inventory.PlatformHuaweiVRP)
	require.NoError(t, err)

	var closes atomic.Int32
	sh := newShell(inW, outR, profile, func() error {
		closes.Add(1)
		inW.Close()
		outR.Close()
		return nil
	})
	t.Cleanup(func() { sh.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, sh.waitPrompt(ctx))

	return sh, &closes
}

func TestShell_Run(t *testing.T) {
	sh, _ := newPipeShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := sh.Run(ctx, "display stp active")
	require.NoError(t, err)
	assert.Equal(t, "-------[CIST Global Info][Mode RSTP]-------\n BPDU-Protection     :Enabled", out)

	out, err = sh.Run(ctx, "display clock")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19 09:00:00+00:00", out)

	out, err = sh.Run(ctx, "display empty")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestShell_RejectedCommand(t *testing.T) {
	sh, _ := newPipeShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := sh.Run(ctx, "display nonsense")
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, "display nonsense", cmdErr.Command)

	// the stream stays in sync after a rejected command
	out, err := sh.Run(ctx, "display clock")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-19 09:00:00+00:00", out)
}

func TestShell_Pager(t *testing.T) {
	sh, _ := newPipeShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	out, err := sh.Run(ctx, "display paged")
	require.NoError(t, err)
	assert.Equal(t, "interface Vlanif1\n ip address 10.0.0.1 255.255.255.0\ndhcp snooping enable", out)

	// the line after the page break must stay top-level
	top, err := confquery.Parse(out).Contains("dhcp snooping enable", true)
	require.NoError(t, err)
	assert.True(t, top)
}

func TestShell_TimeoutBreaksSession(t *testing.T) {
	sh, _ := newPipeShell(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := sh.Run(ctx, "hang")
	require.ErrorIs(t, err, context.DeadlineExceeded)

	_, err = sh.Run(context.Background(), "display clock")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unusable")
}

func TestShell_CloseOnce(t *testing.T) {
	sh, closes := newPipeShell(t)

	require.NoError(t, sh.Close())
	require.NoError(t, sh.Close())
	assert.Equal(t, int32(1), closes.Load())

	_, err := sh.Run(context.Background(), "display clock")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCleanOutput(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		command string
		want    string
	}{
		{"strips echo", "display x\r\nvalue\r\n", "display x", "value"},
		{"keeps output without echo", "value\r\nmore", "display x", "value\nmore"},
		{"leading blank line", "\r\nvalue", "display x", "value"},
		{"echo only", "display x", "display x", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cleanOutput(tt.raw, tt.command))
		})
	}
}

func TestStripControl(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"vrp line erase", "\x1b[42D          \x1b[42Dsysname SW1", "sysname SW1"},
		{"ios backspaces", "\x08\x08\x08\x08    \x08\x08\x08\x08hostname R1", "hostname R1"},
		{"color codes", "\x1b[1;32mok\x1b[0m", "ok"},
		{"indentation kept", " port link-type access", " port link-type access"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(stripControl([]byte(tt.raw))))
		})
	}
}

func TestLookupProfile(t *testing.T) {
	p, err := LookupProfile(inventory.PlatformHuaweiVRP)
	require.NoError(t, err)
	assert.Equal(t, "display current-configuration", p.ConfigCommand)

	for _, prompt := range []string{"<SW1>", "\n[SW1]", "\n[~CORE-01]", "\n[SW1-GigabitEthernet0/0/1]"} {
		assert.True(t, p.Prompt.MatchString(prompt), prompt)
	}
	assert.False(t, p.Prompt.MatchString("\n sysname SW1"))

	cisco, err := LookupProfile(inventory.PlatformCiscoIOSXE)
	require.NoError(t, err)
	assert.True(t, cisco.Prompt.MatchString("\nSW1#"))

	_, err = LookupProfile("junos")
	assert.Error(t, err)
}

// startSSHServer serves the fake CLI over SSH on a loopback port.
func startSSHServer(t *testing.T, user, password string) (string, int) {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	signer, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(pass) == password {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	config.AddHostKey(signer)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go serveSSHConn(conn, config)
		}
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func serveSSHConn(conn net.Conn, config *ssh.ServerConfig) {
	defer conn.Close()

	_, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	go ssh.DiscardRequests(reqs)

	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported channel type")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			return
		}
		go func() {
			for req := range chReqs {
				req.Reply(req.Type == "pty-req" || req.Type == "shell", nil)
			}
		}()
		go func() {
			defer ch.Close()
			runFakeCLI(ch, ch)
		}()
	}
}

func TestSSHDialer_Dial(t *testing.T) {
	host, port := startSSHServer(t, "admin", "secret")
	dialer := NewSSHDialer(2*time.Second, nil)

	dev := inventory.Device{
		Address:   host,
		Port:      port,
		Username:  "admin",
		Password:  "secret",
		Platform:  inventory.PlatformHuaweiVRP,
		Transport: inventory.TransportSSH2,
	}

	sess, err := dialer.Dial(context.Background(), dev)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := sess.Run(ctx, "display stp active")
	require.NoError(t, err)
	assert.Contains(t, out, "BPDU-Protection     :Enabled")

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())
}

func TestSSHDialer_DialFailures(t *testing.T) {
	host, port := startSSHServer(t, "admin", "secret")
	dialer := NewSSHDialer(time.Second, nil)

	base := inventory.Device{
		Address:   host,
		Port:      port,
		Username:  "admin",
		Password:  "wrong",
		Platform:  inventory.PlatformHuaweiVRP,
		Transport: inventory.TransportSSH2,
	}

	_, err := dialer.Dial(context.Background(), base)
	assert.Error(t, err, "bad password")

	unsupported := base
	unsupported.Platform = "junos"
	_, err = dialer.Dial(context.Background(), unsupported)
	assert.ErrorContains(t, err, "unsupported platform")

	telnet := base
	telnet.Transport = "telnet"
	_, err = dialer.Dial(context.Background(), telnet)
	assert.ErrorContains(t, err, "unsupported transport")
}
