// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser splits command arguments into flags and positional arguments.
//
// Supported forms:
//
//	--flag value     long flag with a value
//	--flag=value     long flag with equals sign
//	-f value         short flag with a value
//	--flag           boolean flag
//	--               everything after is positional
//
// A value flag may repeat; Flag returns the last value and Flags all of
// them. Names passed as boolNames never consume the following argument, so
// "ask --json what is this" keeps the question positional.
type ArgParser struct {
	flags      []flagValue
	boolFlags  map[string]bool
	positional []string
	raw        []string
}

type flagValue struct {
	name  string
	value string
}

// NewArgParser parses raw. boolNames lists flags that take no value.
//
//	p := NewArgParser([]string{"ask", "--attach", "a.pdf", "-a", "b.pdf", "--json", "why"}, "json")
//	p.Flags("attach", "a") // ["a.pdf", "b.pdf"]
//	p.BoolFlag("json")     // true
//	p.PositionalFrom(1)    // ["why"]
func NewArgParser(raw []string, boolNames ...string) *ArgParser {
	p := &ArgParser{
		boolFlags:  make(map[string]bool),
		positional: make([]string, 0, len(raw)),
		raw:        raw,
	}
	isBool := make(map[string]bool, len(boolNames))
	for _, n := range boolNames {
		isBool[n] = true
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]

		if arg == "--" {
			p.positional = append(p.positional, raw[i+1:]...)
			break
		}
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(name, "="); ok {
			if isBool[k] || v == "true" || v == "false" {
				p.boolFlags[k] = v != "false"
			} else {
				p.flags = append(p.flags, flagValue{k, v})
			}
			continue
		}

		if !isBool[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.flags = append(p.flags, flagValue{name, raw[i+1]})
			i++
			continue
		}
		p.boolFlags[name] = true
	}

	return p
}

// Subcommand returns the first positional argument.
func (p *ArgParser) Subcommand() string {
	return p.Positional(0)
}

// Flag returns the last value given for any of names, or "".
//
//	p.Flag("model", "m") // --model x or -m x
func (p *ArgParser) Flag(names ...string) string {
	v := p.Flags(names...)
	if len(v) == 0 {
		return ""
	}
	return v[len(v)-1]
}

// Flags returns every value given for any of names, in command-line order.
func (p *ArgParser) Flags(names ...string) []string {
	var out []string
	for _, f := range p.flags {
		for _, n := range names {
			if f.name == strings.TrimLeft(n, "-") {
				out = append(out, f.value)
				break
			}
		}
	}
	return out
}

// FlagOrDefault returns the flag value or def when it is absent.
func (p *ArgParser) FlagOrDefault(name, def string) string {
	if v := p.Flag(name); v != "" {
		return v
	}
	return def
}

// FlagInt returns the flag value as an integer.
func (p *ArgParser) FlagInt(name string) (int, error) {
	v := p.Flag(name)
	if v == "" {
		return 0, fmt.Errorf("flag --%s not found", name)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, NewValidationError(name, v, "must be an integer")
	}
	return n, nil
}

// FlagIntOrDefault returns the flag as an integer, or def when it is absent
// or malformed.
func (p *ArgParser) FlagIntOrDefault(name string, def int) int {
	n, err := p.FlagInt(name)
	if err != nil {
		return def
	}
	return n
}

// BoolFlag reports whether any of names was set.
func (p *ArgParser) BoolFlag(names ...string) bool {
	for _, n := range names {
		if p.boolFlags[strings.TrimLeft(n, "-")] {
			return true
		}
	}
	return false
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns the positional arguments starting at index.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// HasFlag reports whether name was given in either form.
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, hasBool := p.boolFlags[name]
	return hasBool || len(p.Flags(name)) > 0
}

// Raw returns the original arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// =============================================================================
// HELPERS
// =============================================================================

// ParsePositiveInt parses s and rejects values below one.
func ParsePositiveInt(s, field string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, NewValidationError(field, s, "must be an integer")
	}
	if n < 1 {
		return 0, NewValidationError(field, s, "must be positive")
	}
	return n, nil
}

// ParseBoolString accepts the usual on/off spellings.
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %q (use true/false, yes/no, on/off)", s)
	}
}
