// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package unit

import (
	"strings"
)

// Entry is one "Key=Value" line.
type Entry struct {
	Key   string
	Value string
}

// Section is a bracketed section header followed by its entries.
type Section struct {
	Name    string
	Entries []Entry
}

// File is a complete unit file.
type File struct {
	// Generator, when set, produces a leading
	// "# Automatically generated by <Generator>" comment.
	Generator string

	Sections []Section
}

// Render returns the unit file text. Sections are separated by a blank
// line and the text ends with a single newline.
func (f File) Render() []byte {
	var builder strings.Builder
	if f.Generator != "" {
		builder.WriteString("# Automatically generated by ")
		builder.WriteString(f.Generator)
		builder.WriteString("\n")
	}
	for i, section := range f.Sections {
		if i > 0 || f.Generator != "" {
			builder.WriteString("\n")
		}
		builder.WriteString("[")
		builder.WriteString(section.Name)
		builder.WriteString("]\n")
		for _, entry := range section.Entries {
			builder.WriteString(entry.Key)
			builder.WriteString("=")
			builder.WriteString(entry.Value)
			builder.WriteString("\n")
		}
	}
	return []byte(builder.String())
}

// Options holds the [Unit] section shared by every unit kind.
type Options struct {
	Description string

	// DefaultDependencies renders as "yes" or "no". Generated early-boot
	// units leave it false.
	DefaultDependencies bool

	Conflicts         []string
	RequiresMountsFor []string
	After             []string
	Before            []string
}

func (o Options) section() Section {
	entries := []Entry{
		{"Description", o.Description},
		{"DefaultDependencies", yesNo(o.DefaultDependencies)},
	}
	entries = appendList(entries, "Conflicts", o.Conflicts)
	entries = appendList(entries, "RequiresMountsFor", o.RequiresMountsFor)
	entries = appendList(entries, "After", o.After)
	entries = appendList(entries, "Before", o.Before)
	return Section{Name: "Unit", Entries: entries}
}

// Mount describes a .mount unit.
type Mount struct {
	Unit Options

	What    string
	Where   string
	Type    string
	Options []string
}

// File converts the description into a renderable unit file.
func (m Mount) File(generator string) File {
	entries := []Entry{
		{"What", m.What},
		{"Where", m.Where},
		{"Type", m.Type},
	}
	if len(m.Options) > 0 {
		entries = append(entries, Entry{"Options", strings.Join(m.Options, ",")})
	}
	return File{
		Generator: generator,
		Sections: []Section{
			m.Unit.section(),
			{Name: "Mount", Entries: entries},
		},
	}
}

// Service describes a oneshot .service unit that stays active after
// its commands finish.
type Service struct {
	Unit Options

	// ExecStart holds one command line per entry, each an argv.
	ExecStart [][]string
}

// File converts the description into a renderable unit file.
func (s Service) File(generator string) File {
	entries := []Entry{
		{"Type", "oneshot"},
		{"RemainAfterExit", "yes"},
	}
	for _, argv := range s.ExecStart {
		entries = append(entries, Entry{"ExecStart", CommandLine(argv)})
	}
	return File{
		Generator: generator,
		Sections: []Section{
			s.Unit.section(),
			{Name: "Service", Entries: entries},
		},
	}
}

// CommandLine joins argv for an Exec*= setting. Arguments containing
// whitespace, quotes or backslashes are double-quoted with C-style
// escapes, which systemd unquotes when it splits the line.
func CommandLine(argv []string) string {
	quoted := make([]string, len(argv))
	for i, argument := range argv {
		quoted[i] = quoteArgument(argument)
	}
	return strings.Join(quoted, " ")
}

func quoteArgument(argument string) string {
	if argument != "" && !strings.ContainsAny(argument, " \t\n\"'\\") {
		return argument
	}
	var builder strings.Builder
	builder.WriteByte('"')
	for i := 0; i < len(argument); i++ {
		switch c := argument[i]; c {
		case '"', '\\':
			builder.WriteByte('\\')
			builder.WriteByte(c)
		case '\n':
			builder.WriteString(`\n`)
		case '\t':
			builder.WriteString(`\t`)
		default:
			builder.WriteByte(c)
		}
	}
	builder.WriteByte('"')
	return builder.String()
}

func appendList(entries []Entry, key string, values []string) []Entry {
	if len(values) == 0 {
		return entries
	}
	return append(entries, Entry{key, strings.Join(values, " ")})
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
