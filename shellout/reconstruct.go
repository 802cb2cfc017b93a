// Copyright © NGRSoftlab 2020-2025

package shellout

import (
	"regexp"
	"strings"
)

// lineKind classifies one physical line of shell output
type lineKind int

const (
	kindUnknown lineKind = iota
	kindCommand
	kindHeader
	kindDataFragment
	kindRowCount
	kindExecutionTime
	kindPrompt
)

var (
	scanCommandRE = regexp.MustCompile(`^scan\s+`)
	rowCountRE    = regexp.MustCompile(`(\d+)\s+row\(s\)`)
	tookRE        = regexp.MustCompile(`Took\s+([\d.]+)\s+seconds`)
	promptRE      = regexp.MustCompile(`^hbase\(main\):\d+:\d+>`)
	summaryRE     = regexp.MustCompile(`\d+\s+row\(s\)|Took\s+[\d.]+\s+seconds`)

	// a data row starts with leading whitespace, a row key portion, and " column="
	dataStartRE = regexp.MustCompile(`^\s*\S+(?:\s+\S+)*\s+column=`)
	// exactly one leading space and a single token: row-key continuation only
	rowKeyContRE = regexp.MustCompile(`^\s\S+\s*$`)
	// one leading space, a token, a separator, and more text: both parts continue
	splitContRE = regexp.MustCompile(`^\s\S+\s+\S+`)
)

// Reconstruction holds the sections of one scan transcript after
// wrapped physical lines have been merged back into logical ones
type Reconstruction struct {
	Original          string
	CommandLine       string
	RowTitleLine      string
	DataLines         []string
	RowCountLine      string
	ExecutionTimeLine string
	PromptLine        string
	Reconstructed     string // all sections rejoined, one logical line each
}

// classify tags a physical line. The line must already be right-trimmed
func classify(line string) lineKind {
	switch {
	case scanCommandRE.MatchString(line):
		return kindCommand
	case strings.HasPrefix(line, "ROW") && strings.Contains(line, "COLUMN+CELL"):
		return kindHeader
	case strings.HasPrefix(line, " "):
		return kindDataFragment
	case rowCountRE.MatchString(line):
		return kindRowCount
	case tookRE.MatchString(line):
		return kindExecutionTime
	case promptRE.MatchString(line):
		return kindPrompt
	default:
		return kindUnknown
	}
}

// Reconstruct splits raw scan output into its sections and merges data-line
// fragments produced by terminal-width wrapping back into logical lines.
// The merge is purely pattern based: the wrap column depends on the PTY
// width negotiated at session start and cannot be trusted arithmetically
func Reconstruct(output string) *Reconstruction {
	normalized := strings.ReplaceAll(output, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	lines := strings.Split(normalized, "\n")

	rec := &Reconstruction{Original: output}
	var fragments []string

	i := 0
	for i < len(lines) {
		line := strings.TrimRight(lines[i], " \t")

		switch classify(line) {
		case kindCommand:
			// the command itself may be wrapped: join everything up to the
			// header line or the summary section
			parts := []string{line}
			i++
			for i < len(lines) {
				next := strings.TrimSpace(lines[i])
				if strings.HasPrefix(next, "ROW") && strings.Contains(next, "COLUMN+CELL") {
					break
				}
				if summaryRE.MatchString(next) {
					break
				}
				if next != "" {
					parts = append(parts, next)
				}
				i++
			}
			rec.CommandLine = strings.TrimSpace(strings.Join(parts, ""))
		case kindHeader:
			rec.RowTitleLine = strings.TrimSpace(line)
			i++
		case kindDataFragment:
			fragments = append(fragments, line)
			i++
		case kindRowCount:
			rec.RowCountLine = strings.TrimSpace(line)
			i++
		case kindExecutionTime:
			rec.ExecutionTimeLine = strings.TrimSpace(line)
			i++
		case kindPrompt:
			rec.PromptLine = strings.TrimSpace(line)
			i++
		default:
			i++
		}
	}

	rec.DataLines = mergeFragments(fragments)

	joined := make([]string, 0, len(rec.DataLines)+5)
	if rec.CommandLine != "" {
		joined = append(joined, rec.CommandLine)
	}
	if rec.RowTitleLine != "" {
		joined = append(joined, rec.RowTitleLine)
	}
	joined = append(joined, rec.DataLines...)
	if rec.RowCountLine != "" {
		joined = append(joined, rec.RowCountLine)
	}
	if rec.ExecutionTimeLine != "" {
		joined = append(joined, rec.ExecutionTimeLine)
	}
	if rec.PromptLine != "" {
		joined = append(joined, rec.PromptLine)
	}
	rec.Reconstructed = strings.Join(joined, "\n")

	return rec
}

// mergeFragments walks the collected data fragments: each line matching the
// data-start pattern opens a new group, every following fragment up to the
// next start line belongs to it. Blank lines do not close a group; fragments
// arriving before any start line have nothing to attach to and are dropped
func mergeFragments(fragments []string) []string {
	var groups [][]string
	var current []string

	for _, raw := range fragments {
		line := strings.TrimRight(raw, " \t")
		if strings.TrimSpace(line) == "" {
			continue
		}
		if dataStartRE.MatchString(line) {
			if current != nil {
				groups = append(groups, current)
			}
			current = []string{line}
			continue
		}
		if current == nil {
			continue
		}
		current = append(current, line)
	}
	if current != nil {
		groups = append(groups, current)
	}

	out := make([]string, 0, len(groups))
	for _, group := range groups {
		if merged := mergeGroup(group); merged != "" {
			out = append(out, merged)
		}
	}
	return out
}

// mergeGroup rebuilds one logical data line from its fragments.
// The first fragment supplies the initial row key and column text.
// For the rest: two or more leading spaces mean pure column continuation;
// one leading space with a single token is a row-key continuation; one
// leading space with several segments splits into a row-key part and a
// column part. All contributions concatenate without separators
func mergeGroup(group []string) string {
	first := strings.SplitN(strings.TrimLeft(group[0], " \t"), " ", 2)
	if len(first) < 2 {
		return ""
	}
	rowKey := strings.TrimSpace(first[0])
	column := strings.TrimSpace(first[1])

	for _, line := range group[1:] {
		switch {
		case strings.HasPrefix(line, "  "):
			column += strings.TrimSpace(line)
		case rowKeyContRE.MatchString(line):
			rowKey += strings.TrimSpace(line)
		case splitContRE.MatchString(line):
			parts := strings.SplitN(line, " ", 3)
			if len(parts) < 3 {
				continue
			}
			rowKey += strings.TrimSpace(parts[1])
			column += strings.TrimSpace(parts[2])
		}
	}

	return " " + rowKey + " " + column
}
