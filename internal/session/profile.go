package session

import (
	"fmt"
	"regexp"

	"github.com/nmslite/switchaudit/internal/inventory"
)

// Profile describes how to drive a platform's interactive CLI.
type Profile struct {
	Name string
	// Prompt must match the end of the buffered output once a command has finished.
	Prompt *regexp.Regexp
	// More matches a pager marker at the end of the buffer; a space is sent to continue.
	More *regexp.Regexp
	// Failure matches the first non-marker output line of a rejected command.
	Failure       *regexp.Regexp
	DisablePaging []string
	ConfigCommand string
}

var profiles = map[string]Profile{
	inventory.PlatformHuaweiVRP: {
		Name:          inventory.PlatformHuaweiVRP,
		Prompt:        regexp.MustCompile(`(?:^|\n)[<\[]~?\*?[\w.\-:/@()]+[>\]]\s*$`),
		More:          regexp.MustCompile(`\s*-+ More -+\s*$`),
		Failure:       regexp.MustCompile(`^\s*Error:`),
		DisablePaging: []string{"screen-length 0 temporary"},
		ConfigCommand: "display current-configuration",
	},
	inventory.PlatformCiscoIOSXE: {
		Name:          inventory.PlatformCiscoIOSXE,
		Prompt:        regexp.MustCompile(`(?:^|\n)[\w.\-:/@()]+[>#]\s*$`),
		More:          regexp.MustCompile(`\s*--More--\s*$`),
		Failure:       regexp.MustCompile(`^\s*% (?:Invalid|Incomplete|Ambiguous)`),
		DisablePaging: []string{"terminal length 0", "terminal width 511"},
		ConfigCommand: "show running-config",
	},
}

// LookupProfile returns the CLI profile for a platform tag.
func LookupProfile(platform string) (Profile, error) {
	p, ok := profiles[platform]
	if !ok {
		return Profile{}, fmt.Errorf("unsupported platform: %s", platform)
	}
	return p, nil
}
