// Package confquery provides structural queries over indented device configuration text.
//
// A configuration is split into lines; a line's parent is the closest preceding line with a
// smaller indentation. Top-level comment lines ("#" on VRP, "!" on IOS) close every open block
// and are not returned by queries.
package confquery

import (
	"fmt"
	"regexp"
	"strings"
)

// Line is one non-comment configuration line.
type Line struct {
	Number   int    // 1-based position in the original text
	Text     string // trailing whitespace removed, indentation kept
	Indent   int
	parent   *Line
	children []*Line
}

// Trimmed returns the line text without indentation.
func (l *Line) Trimmed() string {
	return strings.TrimSpace(l.Text)
}

// Parent returns the enclosing block line, or nil for top-level lines.
func (l *Line) Parent() *Line {
	return l.parent
}

// Children returns the direct children of the line.
func (l *Line) Children() []*Line {
	return l.children
}

// HasChild reports whether a direct child, indentation stripped, matches the whole pattern.
func (l *Line) HasChild(pattern string) (bool, error) {
	re, err := compile(pattern, true)
	if err != nil {
		return false, err
	}
	for _, c := range l.children {
		if re.MatchString(c.Trimmed()) {
			return true, nil
		}
	}
	return false, nil
}

// Config is a read-only structural view over configuration text.
type Config struct {
	lines []*Line
}

// Parse builds a Config from raw configuration text. It never fails; unparseable input
// simply yields fewer structured lines.
func Parse(text string) *Config {
	cfg := &Config{}
	var stack []*Line

	for i, raw := range strings.Split(text, "\n") {
		raw = strings.TrimRight(raw, " \t\r")
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" {
			continue
		}

		indent := len(raw) - len(strings.TrimLeft(raw, " \t"))

		if isComment(trimmed) {
			if indent == 0 {
				stack = stack[:0]
			}
			continue
		}

		line := &Line{Number: i + 1, Text: raw, Indent: indent}
		for len(stack) > 0 && stack[len(stack)-1].Indent >= indent {
			stack = stack[:len(stack)-1]
		}
		if len(stack) > 0 {
			parent := stack[len(stack)-1]
			line.parent = parent
			parent.children = append(parent.children, line)
		}
		stack = append(stack, line)
		cfg.lines = append(cfg.lines, line)
	}

	return cfg
}

// Lines returns every structured line in document order.
func (c *Config) Lines() []*Line {
	return c.lines
}

// Find returns lines whose text matches pattern. With exact set the pattern must match the
// whole line text, indentation included, so exact patterns only hit top-level lines unless
// they spell out the indentation.
func (c *Config) Find(pattern string, exact bool) ([]*Line, error) {
	re, err := compile(pattern, exact)
	if err != nil {
		return nil, err
	}

	var found []*Line
	for _, l := range c.lines {
		if re.MatchString(l.Text) {
			found = append(found, l)
		}
	}
	return found, nil
}

// Contains reports whether at least one line matches pattern.
func (c *Config) Contains(pattern string, exact bool) (bool, error) {
	found, err := c.Find(pattern, exact)
	if err != nil {
		return false, err
	}
	return len(found) > 0, nil
}

// FindWithChild returns lines matching parentPattern that have at least one direct child
// matching childPattern. The parent pattern is searched unanchored; the child pattern must
// match the whole child text with indentation stripped.
func (c *Config) FindWithChild(parentPattern, childPattern string) ([]*Line, error) {
	parents, err := c.Find(parentPattern, false)
	if err != nil {
		return nil, err
	}
	if _, err := compile(childPattern, true); err != nil {
		return nil, err
	}

	var found []*Line
	for _, p := range parents {
		ok, _ := p.HasChild(childPattern)
		if ok {
			found = append(found, p)
		}
	}
	return found, nil
}

// FirstMatch returns the first line matching pattern (unanchored search).
func (c *Config) FirstMatch(pattern string) (*Line, bool, error) {
	re, err := compile(pattern, false)
	if err != nil {
		return nil, false, err
	}
	for _, l := range c.lines {
		if re.MatchString(l.Text) {
			return l, true, nil
		}
	}
	return nil, false, nil
}

func compile(pattern string, exact bool) (*regexp.Regexp, error) {
	if exact {
		pattern = "^(?:" + pattern + ")$"
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid line pattern %q: %w", pattern, err)
	}
	return re, nil
}

func isComment(trimmed string) bool {
	return strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "!")
}
