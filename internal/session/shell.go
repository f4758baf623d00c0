package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
)

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("session closed")

// CommandError reports a command the device rejected.
type CommandError struct {
	Command string
	Output  string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("device rejected %q: %s", e.Command, firstLine(e.Output))
}

var (
	// pagerErase is what a device prints to wipe the pager marker before continuing: VRP
	// moves the cursor back, blanks the line and moves back again, IOS uses backspaces.
	pagerErase = regexp.MustCompile(`\x1b\[\d+D[ \t]*\x1b\[\d+D|\x08+[ \t]*\x08+`)
	ansiEscape = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)
)

// stripControl removes pager erase sequences, then any remaining ANSI escape codes.
func stripControl(b []byte) []byte {
	return ansiEscape.ReplaceAll(pagerErase.ReplaceAll(b, nil), nil)
}

// shell drives an interactive CLI over a byte stream: it writes a command, then buffers
// output until the profile's prompt shows up at the end of the buffer.
type shell struct {
	stdin   io.Writer
	profile Profile
	chunks  chan []byte
	done    chan struct{}
	readErr error // set by pump before chunks is closed

	mu     sync.Mutex // serializes Run
	buf    bytes.Buffer
	broken error // a timed out command leaves the stream out of sync

	closeOnce sync.Once
	closeErr  error
	closeFn   func() error
}

func newShell(stdin io.Writer, stdout io.Reader, profile Profile, closeFn func() error) *shell {
	s := &shell{
		stdin:   stdin,
		profile: profile,
		chunks:  make(chan []byte, 64),
		done:    make(chan struct{}),
		closeFn: closeFn,
	}
	go s.pump(stdout)
	return s
}

func (s *shell) pump(r io.Reader) {
	defer close(s.chunks)
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case s.chunks <- chunk:
			case <-s.done:
				return
			}
		}
		if err != nil {
			s.readErr = err
			return
		}
	}
}

// Run sends one command and returns its output without the echoed command line and the
// trailing prompt.
func (s *shell) Run(ctx context.Context, command string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.done:
		return "", ErrClosed
	default:
	}
	if s.broken != nil {
		return "", fmt.Errorf("session unusable after earlier failure: %w", s.broken)
	}

	if _, err := io.WriteString(s.stdin, command+"\n"); err != nil {
		return "", fmt.Errorf("failed to send %q: %w", command, err)
	}

	raw, err := s.readUntilPrompt(ctx)
	if err != nil {
		s.broken = err
		return "", fmt.Errorf("command %q: %w", command, err)
	}

	out := cleanOutput(raw, command)
	if s.profile.Failure != nil && s.profile.Failure.MatchString(firstLine(out)) {
		return out, &CommandError{Command: command, Output: out}
	}
	return out, nil
}

// waitPrompt discards the login banner up to the first prompt.
func (s *shell) waitPrompt(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readUntilPrompt(ctx); err != nil {
		return fmt.Errorf("no prompt after login: %w", err)
	}
	return nil
}

// readUntilPrompt consumes output until the prompt is seen and returns everything before it.
func (s *shell) readUntilPrompt(ctx context.Context) (string, error) {
	for {
		data := stripControl(s.buf.Bytes())

		if loc := s.profile.Prompt.FindIndex(data); loc != nil {
			out := string(data[:loc[0]])
			s.buf.Reset()
			return out, nil
		}

		if s.profile.More != nil {
			if loc := s.profile.More.FindIndex(data); loc != nil {
				kept := append([]byte(nil), data[:loc[0]]...)
				s.buf.Reset()
				s.buf.Write(kept)
				s.buf.WriteByte('\n')
				if _, err := io.WriteString(s.stdin, " "); err != nil {
					return "", fmt.Errorf("failed to page output: %w", err)
				}
			}
		}

		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				err := s.readErr
				if err == nil {
					err = io.EOF
				}
				return "", fmt.Errorf("output stream ended before prompt: %w", err)
			}
			s.buf.Write(chunk)
		case <-ctx.Done():
			return "", ctx.Err()
		case <-s.done:
			return "", ErrClosed
		}
	}
}

// Close releases the underlying transport. Only the first call has an effect.
func (s *shell) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.closeFn != nil {
			s.closeErr = s.closeFn()
		}
	})
	return s.closeErr
}

func cleanOutput(raw, command string) string {
	text := strings.ReplaceAll(raw, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "")

	first, rest, found := strings.Cut(text, "\n")
	if strings.TrimSpace(first) == "" || strings.Contains(first, strings.TrimSpace(command)) {
		if !found {
			return ""
		}
		text = rest
	}
	return strings.TrimRight(text, "\n")
}

// firstLine returns the first line with content, skipping the caret marker line devices
// print above a syntax error.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.Trim(line, " \t^") != "" {
			return strings.TrimSpace(line)
		}
	}
	return ""
}
