package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/nmslite/switchaudit/internal/confquery"
)

// Hostname returns the second token of the first line starting with "sysname",
// or HostnameNotFound.
func Hostname(rawConfig string) string {
	for _, line := range strings.Split(rawConfig, "\n") {
		if !strings.HasPrefix(line, "sysname") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			return fields[1]
		}
	}
	return HostnameNotFound
}

// RunLive executes every live check through r. A command error resolves the check to false.
func RunLive(ctx context.Context, r Runner, live []LiveCheck) (Results, []error) {
	var res Results
	var errs []error

	for _, c := range live {
		output, err := r.Run(ctx, c.Command)
		if err != nil {
			res.Set(c.Name, Bool(false))
			errs = append(errs, &CheckEvaluationError{Check: c.Name, Err: err})
			continue
		}
		res.Set(c.Name, Bool(c.Evaluate(output)))
	}

	return res, errs
}

// EvaluateValues runs value extraction checks. A missing line yields an empty string.
func EvaluateValues(cfg *confquery.Config, values []ValueCheck) (Results, []error) {
	var res Results
	var errs []error

	for _, c := range values {
		line, ok, err := cfg.FirstMatch(c.Pattern)
		if err != nil {
			errs = append(errs, &CheckEvaluationError{Check: c.Name, Err: err})
		}
		if !ok {
			res.Set(c.Name, String(""))
			continue
		}
		fields := strings.Fields(line.Text)
		res.Set(c.Name, String(fields[len(fields)-1]))
	}

	return res, errs
}

// EvaluateGlobal checks each line rule against the whole configuration. The rule text is
// the result name.
func EvaluateGlobal(cfg *confquery.Config, lines []string) (Results, []error) {
	var res Results
	var errs []error

	for _, rule := range lines {
		ok, err := cfg.Contains(rule, true)
		if err != nil {
			errs = append(errs, &CheckEvaluationError{Check: rule, Err: err})
		}
		res.Set(rule, Bool(ok))
	}

	return res, errs
}

// EvaluateInterfaces evaluates child line rules for every qualifying interface block.
// Results are keyed by the block's trimmed declaration line.
func EvaluateInterfaces(cfg *confquery.Config, rules InterfaceRules) (InterfaceResults, []error) {
	var res InterfaceResults
	var errs []error

	parent := rules.Parent
	if parent == "" {
		parent = DefaultInterfaceParent
	}

	var blocks []*confquery.Line
	var err error
	if rules.Selector == "" {
		blocks, err = cfg.Find(parent, false)
	} else {
		blocks, err = cfg.FindWithChild(parent, rules.Selector)
	}
	if err != nil {
		errs = append(errs, &CheckEvaluationError{Check: "interface selector", Err: err})
		return res, errs
	}

	for _, block := range blocks {
		ifaceRes := res.For(block.Trimmed())
		for _, rule := range rules.ChildLines {
			ok, err := block.HasChild(rule)
			if err != nil {
				errs = append(errs, &CheckEvaluationError{
					Check: rule,
					Err:   fmt.Errorf("%s: %w", block.Trimmed(), err),
				})
			}
			ifaceRes.Set(rule, Bool(ok))
		}
	}

	return res, errs
}

// EvaluateConfig runs the catalog's value, global and interface checks against cfg.
func (c *Catalog) EvaluateConfig(cfg *confquery.Config) (Results, InterfaceResults, []error) {
	var res Results

	values, errs := EvaluateValues(cfg, c.Values)
	res.Merge(values)

	global, globalErrs := EvaluateGlobal(cfg, c.GlobalLines)
	res.Merge(global)
	errs = append(errs, globalErrs...)

	ifaces, ifaceErrs := EvaluateInterfaces(cfg, c.Interfaces)
	errs = append(errs, ifaceErrs...)

	return res, ifaces, errs
}
