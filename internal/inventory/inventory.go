// Package inventory loads newline-delimited audit inputs and builds device descriptors.
package inventory

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
)

const (
	PlatformHuaweiVRP  = "huawei_vrp"
	PlatformCiscoIOSXE = "cisco_iosxe"

	TransportSSH2 = "ssh2"

	DefaultPort = 22
)

// Device describes one switch to audit. Values are copied into each audit task and never
// mutated after the inventory is built.
type Device struct {
	Address   string `json:"address" validate:"required,hostname_rfc1123|ip"`
	Port      int    `json:"port" validate:"min=1,max=65535"`
	Username  string `json:"-" validate:"required"`
	Password  string `json:"-" validate:"required"`
	Platform  string `json:"platform" validate:"required,oneof=huawei_vrp cisco_iosxe"`
	Transport string `json:"transport" validate:"required,oneof=ssh2"`
}

// String returns the address used in logs and artifact names.
func (d Device) String() string {
	return d.Address
}

// Defaults holds the values shared by every inventory entry.
type Defaults struct {
	Username  string
	Password  string
	Platform  string
	Transport string
	Port      int
}

var validate = validator.New()

// Build turns a list of addresses into validated devices sharing the same credentials and
// tags. Input order is preserved.
func Build(addresses []string, d Defaults) ([]Device, error) {
	if d.Platform == "" {
		d.Platform = PlatformHuaweiVRP
	}
	if d.Transport == "" {
		d.Transport = TransportSSH2
	}
	if d.Port == 0 {
		d.Port = DefaultPort
	}

	devices := make([]Device, 0, len(addresses))
	for i, addr := range addresses {
		dev := Device{
			Address:   strings.TrimSpace(addr),
			Port:      d.Port,
			Username:  d.Username,
			Password:  d.Password,
			Platform:  d.Platform,
			Transport: d.Transport,
		}
		if err := validate.Struct(dev); err != nil {
			return nil, fmt.Errorf("inventory entry %d (%q): %w", i+1, dev.Address, describe(err))
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// ReadLines reads a newline-delimited input, trimming whitespace and skipping blank lines
// and lines starting with "#".
func ReadLines(r io.Reader) ([]string, error) {
	return readLines(r, strings.TrimSpace)
}

// ReadRules reads configuration line rules. Leading indentation is significant for exact
// line matching, so only trailing whitespace is removed. Blank lines are skipped.
func ReadRules(r io.Reader) ([]string, error) {
	return readLines(r, func(s string) string { return strings.TrimRight(s, " \t\r") })
}

func readLines(r io.Reader, trim func(string) string) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := trim(scanner.Text())
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// LoadLines reads a newline-delimited file. See ReadLines.
func LoadLines(path string) ([]string, error) {
	return loadFile(path, ReadLines)
}

// LoadRules reads a line rule file. See ReadRules.
func LoadRules(path string) ([]string, error) {
	return loadFile(path, ReadRules)
}

func loadFile(path string, read func(io.Reader) ([]string, error)) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	lines, err := read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return lines, nil
}

// InterfaceRuleFile is the parsed content of an interface rules file.
type InterfaceRuleFile struct {
	Selector   string
	ChildLines []string
}

const selectorPrefix = "selector:"

// ParseInterfaceRules splits interface rule lines into the optional "selector: <regex>" line
// and the child line rules. The last selector line wins.
func ParseInterfaceRules(lines []string) InterfaceRuleFile {
	var out InterfaceRuleFile
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), selectorPrefix) {
			out.Selector = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), selectorPrefix))
			continue
		}
		out.ChildLines = append(out.ChildLines, strings.TrimSpace(line))
	}
	return out
}

func describe(err error) error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s validation", strings.ToLower(e.Field()), e.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
