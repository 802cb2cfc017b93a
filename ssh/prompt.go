// Copyright © NGRSoftlab 2020-2025

package ssh

import (
	"regexp"
	"strings"
)

// promptPatterns recognize that an interactive shell has finished the
// previous command and is ready for input. Checked against the last
// line of the accumulated output
var promptPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[$#>]\s*$`),
	regexp.MustCompile(`:\s*[$#>]\s*$`),
	regexp.MustCompile(`\[.*\]\s*[$#>]\s*$`),
	regexp.MustCompile(`hbase\(main\):\d+:\d+>\s*$`), // hbase(main):001:0>
	regexp.MustCompile(`.*@.*:.+[$#]\s*$`),           // user@host:/path#
}

// inputWaitPatterns recognize that the shell is waiting for user input
// rather than having finished (password prompts, confirmations)
var inputWaitPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password.*:`),
	regexp.MustCompile(`(?i)\[sudo\].*:`),
	regexp.MustCompile(`(?i)\(y/n\)`),
	regexp.MustCompile(`(?i)\[y/n\]`),
	regexp.MustCompile(`(?i)enter.*:`),
}

// hbasePromptRE matches the HBase shell prompt at the very end of output
var hbasePromptRE = regexp.MustCompile(`hbase\(main\):\d+:\d+>\s*$`)

// sanitizeSkipPatterns are lines stripped from captured command output:
// prompt noise and password prompts
var sanitizeSkipPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[$#>]\s*$`),
	regexp.MustCompile(`(?i)\[sudo\] password`),
	regexp.MustCompile(`(?i)password.*:`),
	regexp.MustCompile(`^\s*$`),
	regexp.MustCompile(`hbase\(main\):\d+:\d+>\s*$`),
	regexp.MustCompile(`.*@.*:.+[$#]\s*$`),
}

// lastLine returns the final non-empty-trimmed line of text
func lastLine(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	lines := strings.Split(trimmed, "\n")
	return lines[len(lines)-1]
}

// isPromptDetected reports whether the output ends in a shell prompt.
// Besides the explicit patterns there is a looser heuristic for prompts
// that appear after sudo: short lines carrying prompt indicators, with
// URLs, SLF4J banners, and classpath noise excluded
func isPromptDetected(text string) bool {
	line := lastLine(text)
	if line == "" {
		return false
	}

	for _, p := range promptPatterns {
		if p.MatchString(line) {
			return true
		}
	}

	if !strings.Contains(line, "http://") &&
		!strings.Contains(line, "https://") &&
		len(line) < 100 &&
		!strings.HasPrefix(line, "SLF4J:") &&
		!strings.Contains(line, "Class path") &&
		strings.ContainsAny(line, "$#>@") &&
		(strings.Contains(line, ":") || strings.Contains(line, "/")) {
		return true
	}

	return false
}

// isAwaitingInput reports whether the shell is blocked on user input
func isAwaitingInput(text string) bool {
	line := lastLine(text)
	if line == "" {
		return false
	}
	for _, p := range inputWaitPatterns {
		if p.MatchString(line) {
			return true
		}
	}
	return false
}

// isSensitiveCommand reports whether the command at index must be masked:
// exactly when the immediately preceding command in the batch starts with
// "sudo " (the current command is then the typed password). A syntactic
// heuristic, not a security guarantee
func isSensitiveCommand(commands []string, index int) bool {
	if index <= 0 || index >= len(commands) {
		return false
	}
	prev := strings.ToLower(strings.TrimSpace(commands[index-1]))
	return strings.HasPrefix(prev, "sudo ")
}

// maskCommandText masks the command at index for log-facing views
func maskCommandText(commands []string, index int) string {
	text := commands[index]
	if !isSensitiveCommand(commands, index) {
		return text
	}
	trimmed := strings.TrimSpace(text)
	if trimmed != "" && !strings.Contains(trimmed, " ") {
		return maskValue
	}
	return text
}

// sanitizeOutput strips the echoed command text and prompt noise from one
// command's captured output, keeping the trimmed payload lines
func sanitizeOutput(output, commandText string) string {
	if output == "" {
		return ""
	}

	lines := strings.Split(output, "\n")

	skip := sanitizeSkipPatterns
	trimmedCmd := strings.TrimSpace(commandText)
	if trimmedCmd != "" && strings.Contains(trimmedCmd, " ") {
		// drop the command echo, but never build a skip pattern from a
		// single-token command: that may be a password
		skip = append(skip, regexp.MustCompile(regexp.QuoteMeta(trimmedCmd)))
	}
	if trimmedCmd != "" && !strings.Contains(trimmedCmd, " ") {
		filtered := lines[:0]
		for _, l := range lines {
			if strings.Contains(l, "password") || strings.Contains(l, "[sudo]") {
				continue
			}
			filtered = append(filtered, l)
		}
		lines = filtered
	}

	var result []string
	for _, line := range lines {
		skipLine := false
		for _, p := range skip {
			if p.MatchString(line) {
				skipLine = true
				break
			}
		}
		if !skipLine && strings.TrimSpace(line) != "" {
			result = append(result, strings.TrimSpace(line))
		}
	}

	return strings.Join(result, "\n")
}
