// Copyright © NGRSoftlab 2020-2025

package ssh

import (
	"fmt"
	"strings"
	"time"
)

// maskValue replaces sensitive command text and outputs in aggregate views
const maskValue = "***"

// ExecResult holds the outcome of running a one-shot command over an exec channel
type ExecResult struct {
	Command  string        // the exact command string executed
	Stdout   string        // collected standard output
	Stderr   string        // collected standard error
	ExitCode int           // process exit code
	Duration time.Duration // time taken to run the command
	Err      error         // any error from execution
}

// CommandResult records one command of an interactive batch and its captured output.
// Sensitive marks commands whose text must be masked in aggregate views
// (a password typed after a sudo command)
type CommandResult struct {
	Command   string
	Output    string
	Index     int
	Sensitive bool
}

// BatchResult aggregates the outcome of one interactive command batch.
// Outputs maps command text to captured output; entries for sensitive
// commands hold the mask value instead of the real output
type BatchResult struct {
	Success       bool
	Commands      []string
	Results       []CommandResult
	Outputs       map[string]string
	ExecutionTime float64 // wall-clock seconds for the whole batch
	ErrorMessage  string
}

// Output returns the captured output of the first command matching text, unmasked
func (b *BatchResult) Output(commandText string) (string, bool) {
	for _, r := range b.Results {
		if r.Command == commandText {
			return r.Output, true
		}
	}
	return "", false
}

// Formatted renders the batch as a log-safe report: one block per command,
// sensitive command text masked. Outputs themselves are not masked, only
// the typed secrets are
func (b *BatchResult) Formatted() string {
	if len(b.Results) == 0 {
		return ""
	}

	separator := strings.Repeat("=", 60)
	var sb strings.Builder

	for i, r := range b.Results {
		commandText := r.Command
		if r.Sensitive {
			commandText = maskValue
		}
		fmt.Fprintf(&sb, "command [%d]: %s\n", r.Index+1, commandText)
		sb.WriteString(strings.Repeat("-", 40))
		sb.WriteByte('\n')

		if strings.TrimSpace(r.Output) != "" {
			sb.WriteString(r.Output)
		} else {
			sb.WriteString("(no output)")
		}

		if i < len(b.Results)-1 {
			sb.WriteString("\n\n" + separator + "\n\n")
		}
	}

	return sb.String()
}
