// Package checks holds the audit check catalog: live checks run against a device session,
// value and line checks run against a parsed configuration, and per-interface checks.
package checks

import (
	"context"
	"fmt"
	"strings"
)

// Built-in check names. These are stable report column headers; do not rename.
const (
	CheckSTPBPDUProtection   = "get_stp_info"
	CheckNoErrorDown         = "check_no_bpdu_error_down"
	CheckNTPSynchronized     = "check_ntp_status_synchronized"
	CheckHTTPServersDisabled = "check_http_status_disabled"
	CheckSTPMode             = "stp_mode"
)

// HostnameNotFound is reported when the configuration carries no sysname line.
const HostnameNotFound = "HOSTNAME_NOT_FOUND"

const (
	DefaultInterfaceParent   = `^interface\s+`
	DefaultInterfaceSelector = `port link-type (access|trunk|hybrid)`
)

// Runner executes a single command on a device and returns its text output.
type Runner interface {
	Run(ctx context.Context, command string) (string, error)
}

// LiveCheck passes when every substring appears in the output of Command.
type LiveCheck struct {
	Name       string
	Command    string
	Substrings []string
}

// Evaluate applies the check to a command output.
func (c LiveCheck) Evaluate(output string) bool {
	if len(c.Substrings) == 0 {
		return false
	}
	for _, s := range c.Substrings {
		if !strings.Contains(output, s) {
			return false
		}
	}
	return true
}

// ValueCheck extracts the last whitespace-delimited token of the first line matching Pattern.
type ValueCheck struct {
	Name    string
	Pattern string
}

// InterfaceRules selects interface blocks and lists the child lines each must contain.
// Parent is searched against block declarations; Selector must match a whole child line
// for the block to qualify. An empty Selector qualifies every block matching Parent.
type InterfaceRules struct {
	Parent     string
	Selector   string
	ChildLines []string
}

// Catalog is the full set of checks evaluated for every device.
type Catalog struct {
	Live        []LiveCheck
	Values      []ValueCheck
	GlobalLines []string
	Interfaces  InterfaceRules
}

// DefaultLiveChecks returns the fixed VRP live checks. Command and match strings are kept
// byte-for-byte so reports stay comparable with historical runs.
func DefaultLiveChecks() []LiveCheck {
	return []LiveCheck{
		{
			Name:       CheckSTPBPDUProtection,
			Command:    "display stp active",
			Substrings: []string{"BPDU-Protection     :Enabled"},
		},
		{
			Name:       CheckNoErrorDown,
			Command:    "display error-down recovery",
			Substrings: []string{"Info: No error-down interface exists."},
		},
		{
			Name:       CheckNTPSynchronized,
			Command:    "display ntp status | include clock status",
			Substrings: []string{"clock status: synchronized"},
		},
		{
			Name:    CheckHTTPServersDisabled,
			Command: "display http server",
			Substrings: []string{
				"HTTP Server Status              : disabled",
				"HTTP Secure-server Status       : disabled",
			},
		},
	}
}

// DefaultValueChecks returns the built-in value extraction checks.
func DefaultValueChecks() []ValueCheck {
	return []ValueCheck{
		{Name: CheckSTPMode, Pattern: `^spanning-tree mode`},
	}
}

// NewCatalog builds the default catalog around user supplied line rules.
func NewCatalog(globalLines []string, interfaces InterfaceRules) *Catalog {
	if interfaces.Parent == "" {
		interfaces.Parent = DefaultInterfaceParent
	}
	return &Catalog{
		Live:        DefaultLiveChecks(),
		Values:      DefaultValueChecks(),
		GlobalLines: globalLines,
		Interfaces:  interfaces,
	}
}

// CheckEvaluationError reports a check that could not produce a value. The check itself
// resolves to its negative value; the error is informational.
type CheckEvaluationError struct {
	Check string
	Err   error
}

func (e *CheckEvaluationError) Error() string {
	return fmt.Sprintf("check %q: %v", e.Check, e.Err)
}

func (e *CheckEvaluationError) Unwrap() error {
	return e.Err
}
