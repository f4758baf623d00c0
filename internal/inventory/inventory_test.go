package inventory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	devices, err := Build([]string{" 10.0.0.1 ", "10.0.0.2", "sw-core-01"}, Defaults{
		Username: "admin",
		Password: "secret",
	})
	require.NoError(t, err)
	require.Len(t, devices, 3)

	assert.Equal(t, "10.0.0.1", devices[0].Address)
	assert.Equal(t, "sw-core-01", devices[2].Address)
	for _, d := range devices {
		assert.Equal(t, PlatformHuaweiVRP, d.Platform)
		assert.Equal(t, TransportSSH2, d.Transport)
		assert.Equal(t, DefaultPort, d.Port)
		assert.Equal(t, "admin", d.Username)
	}
}

func TestBuild_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		defaults Defaults
		errMsg   string
	}{
		{"missing password", "10.0.0.1", Defaults{Username: "admin"}, "password"},
		{"missing username", "10.0.0.1", Defaults{Password: "x"}, "username"},
		{"bad address", "not an address!", Defaults{Username: "a", Password: "b"}, "address"},
		{"unknown platform", "10.0.0.1", Defaults{Username: "a", Password: "b", Platform: "junos"}, "platform"},
		{"bad port", "10.0.0.1", Defaults{Username: "a", Password: "b", Port: 70000}, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build([]string{tt.address}, tt.defaults)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestReadLines(t *testing.T) {
	lines, err := ReadLines(strings.NewReader("10.0.0.1\n\n  10.0.0.2  \r\n# retired\n10.0.0.3"))
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}, lines)
}

func TestReadRules_KeepsIndentation(t *testing.T) {
	lines, err := ReadRules(strings.NewReader("dhcp snooping enable  \n port link-type access\n\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"dhcp snooping enable", " port link-type access"}, lines)
}

func TestLoadLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hosts.txt")
	require.NoError(t, os.WriteFile(path, []byte("10.1.1.1\n10.1.1.2\n"), 0o644))

	lines, err := LoadLines(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"10.1.1.1", "10.1.1.2"}, lines)

	_, err = LoadLines(filepath.Join(t.TempDir(), "missing.txt"))
	assert.Error(t, err)
}

func TestParseInterfaceRules(t *testing.T) {
	rules := ParseInterfaceRules([]string{
		"selector: port link-type (access|trunk)",
		" stp edged-port enable",
		"port-isolate enable group 1",
	})

	assert.Equal(t, "port link-type (access|trunk)", rules.Selector)
	assert.Equal(t, []string{"stp edged-port enable", "port-isolate enable group 1"}, rules.ChildLines)

	assert.Empty(t, ParseInterfaceRules([]string{"a"}).Selector)
}
