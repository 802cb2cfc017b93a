// Copyright © NGRSoftlab 2020-2025

package ssh

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/evergrid/hbaseshell/utils"
	gossh "golang.org/x/crypto/ssh"
)

// State tracks the lifecycle of a Shell's underlying channel
type State int

const (
	StateDisconnected State = iota
	StateConnected
)

const (
	defaultBatchTimeout = 30 * time.Second
	defaultExecTimeout  = 300 * time.Second
	defaultCommandDelay = 500 * time.Millisecond
	defaultReadyTimeout = 5 * time.Second
	pollInterval        = 100 * time.Millisecond
	readBufferSize      = 32 * 1024
)

// ShellOption configures a Shell
type ShellOption func(*Shell)

// WithShellLogger sets the logger the shell reports through
func WithShellLogger(log *slog.Logger) ShellOption {
	return func(s *Shell) {
		if log != nil {
			s.log = log
		}
	}
}

// WithExecTimeout sets the deadline for a single Exec call
func WithExecTimeout(d time.Duration) ShellOption {
	return func(s *Shell) {
		if d > 0 {
			s.execTimeout = d
		}
	}
}

// Shell drives one persistent interactive channel: a single full-duplex
// byte stream to a remote shell. A reader goroutine pumps incoming bytes
// into a chunk channel; Exec and SendAndAwait consume it. One Shell owns
// exactly one channel and calls must not overlap; callers serialize access
type Shell struct {
	stdin   io.WriteCloser
	chunks  chan string
	closeFn func() error

	mu        sync.Mutex
	state     State
	closeOnce sync.Once

	execTimeout time.Duration
	log         *slog.Logger
}

// NewShell opens an interactive shell session with a PTY over the client
// connection. The PTY keeps echo on: prompt detection and per-command
// output slicing rely on seeing the echoed command text
func (cl *Client) NewShell(ctx context.Context, opts ...ShellOption) (*Shell, error) {
	sess, err := cl.OpenSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("open shell session: %w", err)
	}

	modes := gossh.TerminalModes{
		gossh.ECHO:          1,
		gossh.TTY_OP_ISPEED: 14400,
		gossh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm", cl.cfg.termHeight, cl.cfg.termWidth, modes); err != nil {
		sess.Close()
		return nil, fmt.Errorf("request PTY: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("get stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return nil, fmt.Errorf("get stdout pipe: %w", err)
	}

	if err := sess.Shell(); err != nil {
		sess.Close()
		return nil, fmt.Errorf("start remote shell: %w", err)
	}

	return newShell(stdin, stdout, sess.Close, opts...), nil
}

// newShell wires a Shell over raw pipes and starts the reader pump
func newShell(stdin io.WriteCloser, stdout io.Reader, closeFn func() error, opts ...ShellOption) *Shell {
	s := &Shell{
		stdin:       stdin,
		chunks:      make(chan string, 64),
		closeFn:     closeFn,
		state:       StateConnected,
		execTimeout: defaultExecTimeout,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	go s.pump(stdout)
	return s
}

// pump reads the channel's output stream into the chunk channel until EOF
func (s *Shell) pump(r io.Reader) {
	defer func() {
		if err := utils.Recover(); err != nil {
			s.log.Error("shell reader stopped", "error", err)
		}
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			s.chunks <- string(buf[:n])
		}
		if err != nil {
			close(s.chunks)
			return
		}
	}
}

// State returns the current channel state
func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// send writes one command line to the shell
func (s *Shell) send(commandText string) error {
	if _, err := io.WriteString(s.stdin, commandText+"\n"); err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return nil
}

// waitReady drains banner output and probes the shell with an echo until
// it responds, or the ready timeout passes. Best effort
func (s *Shell) waitReady(ctx context.Context) {
	deadline := time.NewTimer(defaultReadyTimeout)
	defer deadline.Stop()

	if err := s.send("echo ready"); err != nil {
		s.log.Warn("shell readiness probe failed", "error", err)
		return
	}

	var buf strings.Builder
	for {
		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return
			}
			buf.WriteString(chunk)
			if strings.Contains(buf.String(), "ready") {
				s.drain(2 * pollInterval)
				return
			}
		case <-deadline.C:
			return
		case <-ctx.Done():
			return
		}
	}
}

// drain discards pending output until the stream stays quiet for the given interval
func (s *Shell) drain(quiet time.Duration) {
	for {
		select {
		case _, ok := <-s.chunks:
			if !ok {
				return
			}
		case <-time.After(quiet):
			return
		}
	}
}

// BatchOption configures one SendAndAwait call
type BatchOption func(*batchConfig)

type batchConfig struct {
	timeout      time.Duration // wall-clock budget for the whole batch
	commandDelay time.Duration // pause before sending each follow-up command
	skipReady    bool
}

func newBatchConfig(opts ...BatchOption) *batchConfig {
	cfg := &batchConfig{
		timeout:      defaultBatchTimeout,
		commandDelay: defaultCommandDelay,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithBatchTimeout sets the wall-clock budget for the whole batch
func WithBatchTimeout(d time.Duration) BatchOption {
	return func(cfg *batchConfig) {
		if d > 0 {
			cfg.timeout = d
		}
	}
}

// WithCommandDelay sets the pause before each follow-up command is sent
func WithCommandDelay(d time.Duration) BatchOption {
	return func(cfg *batchConfig) {
		if d >= 0 {
			cfg.commandDelay = d
		}
	}
}

// WithoutReadyWait skips the readiness probe before the first command
func WithoutReadyWait() BatchOption {
	return func(cfg *batchConfig) {
		cfg.skipReady = true
	}
}

// SendAndAwait sends an ordered command sequence through the shell: each
// command is written, output accumulates until a prompt or input-wait
// pattern appears, then the next command goes out after a short delay.
// Failures never surface as errors, the returned BatchResult carries
// Success=false and an ErrorMessage. A batch whose pending command follows
// a sudo command gets double the timeout budget; on timeout the outputs of
// commands that already completed are kept, the in-flight buffer is not
func (s *Shell) SendAndAwait(ctx context.Context, commands []string, opts ...BatchOption) *BatchResult {
	start := time.Now()
	result := &BatchResult{Commands: commands, Outputs: make(map[string]string)}

	finish := func(success bool, errMsg string, results []CommandResult) *BatchResult {
		result.Success = success
		result.ErrorMessage = errMsg
		result.Results = results
		for _, r := range results {
			if r.Sensitive {
				result.Outputs[r.Command] = maskValue
			} else {
				result.Outputs[r.Command] = r.Output
			}
		}
		result.ExecutionTime = time.Since(start).Seconds()
		return result
	}

	if s.State() != StateConnected {
		return finish(false, utils.ErrNotConnected.Error(), nil)
	}
	if len(commands) == 0 {
		return finish(false, utils.ErrEmptyCommands.Error(), nil)
	}

	cfg := newBatchConfig(opts...)
	if !cfg.skipReady {
		s.waitReady(ctx)
	}

	var results []CommandResult
	var output strings.Builder
	idx := 0
	outputStarted := false

	first := commands[0]
	if err := s.send(first); err != nil {
		return finish(false, err.Error(), nil)
	}
	s.log.Debug("sent command", "index", idx, "command", maskCommandText(commands, idx))

	success := true
	errMsg := ""

loop:
	for {
		// sudo-prefixed predecessors get a doubled budget: the remote side
		// may be waiting on PAM before it echoes anything back
		sudoInProgress := idx > 0 && idx < len(commands) &&
			strings.HasPrefix(strings.TrimSpace(commands[idx-1]), "sudo ")
		budget := cfg.timeout
		if sudoInProgress {
			budget *= 2
		}
		if time.Since(start) > budget {
			errMsg = fmt.Sprintf("batch timed out on command %d of %d", idx+1, len(commands))
			if sudoInProgress {
				errMsg += " (sudo)"
			}
			s.log.Warn(errMsg)
			success = false
			break
		}

		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				errMsg = "shell channel closed while awaiting output"
				success = false
				break loop
			}

			// capture starts at the echo of the first command; everything
			// before it is login banner noise
			if !outputStarted {
				trimmedFirst := strings.TrimSpace(first)
				at := strings.Index(chunk, trimmedFirst)
				if at < 0 {
					continue
				}
				outputStarted = true
				chunk = chunk[at:]
			}
			output.WriteString(chunk)

			if idx < len(commands)-1 {
				shouldSendNext := isAwaitingInput(output.String()) || isPromptDetected(output.String())

				// a password answer after sudo may produce no prompt at all:
				// treat accumulating multi-line output as completion
				if !shouldSendNext && idx > 0 {
					prev := commands[idx-1]
					current := strings.TrimSpace(commands[idx])
					if strings.HasPrefix(prev, "sudo ") && !strings.Contains(current, " ") &&
						time.Since(start) > time.Second && output.Len() > 0 {
						lines := strings.Split(strings.TrimSpace(output.String()), "\n")
						if len(lines) >= 2 && !strings.HasSuffix(output.String(), "password for") {
							shouldSendNext = true
						}
					}
				}

				if shouldSendNext {
					current := commands[idx]
					results = append(results, CommandResult{
						Command:   current,
						Output:    sanitizeOutput(output.String(), current),
						Index:     idx,
						Sensitive: isSensitiveCommand(commands, idx),
					})

					idx++
					next := commands[idx]
					output.Reset()

					select {
					case <-time.After(cfg.commandDelay):
					case <-ctx.Done():
						errMsg = ctx.Err().Error()
						success = false
						break loop
					}

					if err := s.send(next); err != nil {
						errMsg = err.Error()
						success = false
						break loop
					}
					s.log.Debug("sent command", "index", idx, "command", maskCommandText(commands, idx))
					continue
				}
			}

			if idx >= len(commands)-1 && isPromptDetected(output.String()) {
				last := commands[idx]
				results = append(results, CommandResult{
					Command:   last,
					Output:    sanitizeOutput(output.String(), last),
					Index:     idx,
					Sensitive: isSensitiveCommand(commands, idx),
				})
				break loop
			}

		case <-ctx.Done():
			errMsg = ctx.Err().Error()
			success = false
			break loop

		case <-time.After(pollInterval):
			// no data this cycle; loop back for the timeout check
		}
	}

	return finish(success, errMsg, results)
}

// Exec sends one command and accumulates output until the HBase shell
// prompt reappears. Unlike SendAndAwait it never slices or sanitizes:
// scan output parsing needs the transcript verbatim, echoed command and
// trailing prompt included
func (s *Shell) Exec(ctx context.Context, commandText string) (*CommandResult, error) {
	if s.State() != StateConnected {
		return nil, utils.ErrNotConnected
	}

	start := time.Now()
	if err := s.send(commandText); err != nil {
		return nil, err
	}
	s.log.Debug("sent hbase command", "command", commandText)

	var output strings.Builder
	for {
		if time.Since(start) > s.execTimeout {
			return nil, fmt.Errorf("command %q timed out after %s", commandText, s.execTimeout)
		}

		select {
		case chunk, ok := <-s.chunks:
			if !ok {
				return nil, fmt.Errorf("shell channel closed while awaiting output")
			}
			output.WriteString(chunk)

		case <-time.After(pollInterval):
			// prompt check only when the stream is idle: the prompt pattern
			// may otherwise match inside a partially transferred burst
			if hbasePromptRE.MatchString(output.String()) {
				return &CommandResult{
					Command: commandText,
					Output:  strings.TrimSpace(output.String()),
				}, nil
			}

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Close tears down the channel. Idempotent and best effort: failures are
// logged, never returned
func (s *Shell) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()

		if s.stdin != nil {
			if err := s.stdin.Close(); err != nil {
				s.log.Warn("close shell stdin", "error", err)
			}
		}
		if s.closeFn != nil {
			if err := s.closeFn(); err != nil {
				s.log.Warn("close shell channel", "error", err)
			}
		}
	})
	return nil
}
