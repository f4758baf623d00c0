// Package cli parses the switchaudit command line.
package cli

import (
	"errors"
	"fmt"

	"github.com/jessevdk/go-flags"
)

const Name = "switchaudit"

// Option defines command line options.
type Option struct {
	Config    string `short:"c" long:"config" description:"configuration file" default:"switchaudit.yaml"`
	Workers   *int   `short:"w" long:"workers" description:"maximum concurrent device audits (0 = one per device)"`
	OutputDir string `short:"o" long:"output-dir" description:"directory for artifacts and reports"`
	Debug     bool   `short:"d" long:"debug" description:"debug logging"`
	Serve     bool   `long:"serve" description:"serve the report API after the run instead of exiting"`
	Version   bool   `short:"v" long:"version" description:"display the version and exit"`
}

// Parse returns parsed command-line flags in Option struct
func Parse(args []string) (*Option, error) {
	opt := &Option{}
	parser := flags.NewParser(opt, flags.Default)
	parser.Name = Name
	parser.Usage = "[OPTIONS]"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}
	if len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", rest)
	}
	if opt.Workers != nil && *opt.Workers < 0 {
		return nil, fmt.Errorf("workers must be >= 0, got %d", *opt.Workers)
	}

	return opt, nil
}

func IsHelp(err error) bool {
	return flags.WroteHelp(err)
}

// Printed reports whether the parser already wrote err to the terminal. Only go-flags
// errors are printed by the parser; argument checks done after parsing are not.
func Printed(err error) bool {
	var flagsErr *flags.Error
	return errors.As(err, &flagsErr)
}
