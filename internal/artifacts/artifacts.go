// Package artifacts persists raw device output next to the audit report.
package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const configFileName = "config.txt"

var (
	commandReplacer = strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	pathReplacer    = strings.NewReplacer("/", "_", "\\", "_")
)

// Writer lays out one directory per device under Root:
//
//	{root}/{hostname}_({address})/config.txt
//	{root}/{hostname}_({address})/{command}-{hostname}_({address}).txt
type Writer struct {
	Root string
}

// NewWriter creates a writer rooted at root. The root itself is created lazily.
func NewWriter(root string) *Writer {
	return &Writer{Root: root}
}

// DeviceDir returns the artifact directory of one device.
func (w *Writer) DeviceDir(hostname, address string) string {
	return filepath.Join(w.Root, deviceTag(hostname, address))
}

// SaveConfig writes the running configuration and returns the file path.
func (w *Writer) SaveConfig(hostname, address, config string) (string, error) {
	return w.write(hostname, address, configFileName, config)
}

// SaveCommandOutput writes the output of an extra command and returns the file path.
func (w *Writer) SaveCommandOutput(hostname, address, command, output string) (string, error) {
	return w.write(hostname, address, CommandFileName(command, hostname, address), output)
}

// CommandFileName builds the artifact name of a command output. Spaces and path
// separators in the command become underscores.
func CommandFileName(command, hostname, address string) string {
	return fmt.Sprintf("%s-%s.txt", commandReplacer.Replace(strings.TrimSpace(command)), deviceTag(hostname, address))
}

func (w *Writer) write(hostname, address, name, content string) (string, error) {
	dir := w.DeviceDir(hostname, address)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// deviceTag names the device directory. The hostname comes from the device, so path
// separators and a leading ".." are replaced to keep every artifact under Root.
func deviceTag(hostname, address string) string {
	return fmt.Sprintf("%s_(%s)", safeComponent(hostname), safeComponent(address))
}

func safeComponent(s string) string {
	s = pathReplacer.Replace(s)
	if strings.HasPrefix(s, "..") {
		s = "_" + strings.TrimLeft(s, ".")
	}
	return s
}
