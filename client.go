// Copyright © NGRSoftlab 2020-2025

// Package hbaseshell reads HBase tables without a native client: it
// drives the interactive HBase shell over a persistent SSH channel and
// parses the terminal output back into structured rows
package hbaseshell

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/evergrid/hbaseshell/command"
	"github.com/evergrid/hbaseshell/shellout"
	"github.com/evergrid/hbaseshell/ssh"
)

const (
	// row counts at or below this are fetched with a single scan
	defaultDirectScanThreshold = 1000

	defaultBatchSize = 1000

	// starting the remote shell plus the JVM of `hbase shell` can take
	// tens of seconds on a loaded edge node
	enterShellTimeout = 60 * time.Second
)

// shellRunner is the interactive channel surface the client drives.
// *ssh.Shell satisfies it; tests substitute scripted fakes
type shellRunner interface {
	Exec(ctx context.Context, commandText string) (*ssh.CommandResult, error)
	SendAndAwait(ctx context.Context, commands []string, opts ...ssh.BatchOption) *ssh.BatchResult
	Close() error
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the logger the client reports through
func WithLogger(log *slog.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// WithDirectScanThreshold overrides the row count above which
// ScanTimeRangeBatches paginates instead of scanning once
func WithDirectScanThreshold(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.directScanThreshold = n
		}
	}
}

// Client issues HBase shell commands over one interactive channel and
// turns the transcripts into ScanResults. All operations serialize on
// the single channel; the Client is safe for concurrent use
type Client struct {
	conn   *ssh.Client // nil when the shell was injected directly
	shell  shellRunner
	parser *shellout.Parser
	log    *slog.Logger

	mu sync.Mutex // the one shell channel admits one conversation at a time

	directScanThreshold int64
}

// New wraps an already-open interactive shell that is sitting at an
// HBase shell prompt
func New(shell *ssh.Shell, opts ...Option) *Client {
	return newClient(shell, opts...)
}

func newClient(shell shellRunner, opts ...Option) *Client {
	c := &Client{
		shell:               shell,
		log:                 slog.Default(),
		directScanThreshold: defaultDirectScanThreshold,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.parser = shellout.NewParser(shellout.WithLogger(c.log))
	return c
}

// Connect dials the SSH host, opens an interactive channel, and enters
// the HBase shell. Failure at any step is fatal: the partially built
// connection is torn down and an error returned
func Connect(ctx context.Context, cfg *ssh.Config, opts ...Option) (*Client, error) {
	conn, err := ssh.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	sh, err := conn.NewShell(ctx)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open interactive channel: %w", err)
	}

	c := newClient(sh, opts...)
	c.conn = conn

	res := c.shell.SendAndAwait(ctx, []string{"hbase shell"},
		ssh.WithBatchTimeout(enterShellTimeout))
	if !res.Success {
		c.Close()
		return nil, fmt.Errorf("enter hbase shell: %s", res.ErrorMessage)
	}

	c.log.Info("hbase shell ready", "host", cfg.Host)
	return c, nil
}

// Close tears down the shell channel and, when this client dialed it,
// the SSH connection. Idempotent and best effort
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.shell != nil {
		if err := c.shell.Close(); err != nil {
			c.log.Warn("close shell", "error", err)
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.log.Warn("close connection", "error", err)
		}
		c.conn = nil
	}
	return nil
}

// TableExists probes the table through the shell's exists command
func (c *Client) TableExists(ctx context.Context, table string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tableExists(ctx, table)
}

func (c *Client) tableExists(ctx context.Context, table string) (bool, error) {
	res, err := c.shell.Exec(ctx, command.NewExists(table).String())
	if err != nil {
		return false, fmt.Errorf("probe table %s: %w", table, err)
	}
	switch {
	case strings.Contains(res.Output, "does not exist"):
		return false, nil
	case strings.Contains(res.Output, "does exist"):
		return true, nil
	}
	return false, fmt.Errorf("unrecognized exists output for table %s: %q", table, res.Output)
}

// CountRows returns the shell-reported row count of the whole table
func (c *Client) CountRows(ctx context.Context, table string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.tableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("table %s does not exist", table)
	}

	return c.countWith(ctx, command.NewCount(table).String(), table)
}

// CountRowsTimeRange returns the shell-reported row count of cells whose
// timestamps fall in [start, end)
func (c *Client) CountRowsTimeRange(ctx context.Context, table string, start, end time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.tableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("table %s does not exist", table)
	}

	return c.countWith(ctx, command.NewCountTimeRange(table, start, end).String(), table)
}

func (c *Client) countWith(ctx context.Context, cmdText, table string) (int64, error) {
	res, err := c.shell.Exec(ctx, cmdText)
	if err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	n, err := c.parser.ParseCount(res.Output)
	if err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return n, nil
}

// ScanTimeRange scans one table for cells whose timestamps fall in
// [start, end). Additional scan options (STARTROW, LIMIT) narrow the
// page. Failures never surface as errors: the ScanResult carries
// Success=false and an ErrorMessage
func (c *Client) ScanTimeRange(ctx context.Context, table string, start, end time.Time, opts ...command.ScanOption) *shellout.ScanResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scanTimeRange(ctx, table, start, end, opts...)
}

func (c *Client) scanTimeRange(ctx context.Context, table string, start, end time.Time, opts ...command.ScanOption) *shellout.ScanResult {
	exists, err := c.tableExists(ctx, table)
	if err != nil {
		return failedScan(table, "", err.Error())
	}
	if !exists {
		return failedScan(table, "", fmt.Sprintf("table %s does not exist", table))
	}

	q := command.NewScan(table, append([]command.ScanOption{command.WithTimeRange(start, end)}, opts...)...)
	cmdText := q.String()

	res, err := c.shell.Exec(ctx, cmdText)
	if err != nil {
		return failedScan(table, cmdText, err.Error())
	}

	parsed := c.parser.ParseScan(res.Output)
	if !parsed.Success {
		c.log.Error("scan output parse failed", "table", table, "error", parsed.ErrorMessage)
		return parsed
	}

	// the transcript's echoed command is the authoritative record of
	// what actually ran; trust neither side silently on mismatch
	if parsed.TableName != table || parsed.Command != cmdText {
		msg := fmt.Sprintf(
			"parsed output does not match the request: got table %q command %q, want table %q command %q",
			parsed.TableName, parsed.Command, table, cmdText)
		c.log.Error(msg)
		return failedScan(table, cmdText, msg)
	}

	return parsed
}

// ScanBatchesOption configures one ScanTimeRangeBatches call
type ScanBatchesOption func(*batchScanConfig)

type batchScanConfig struct {
	batchSize int
	maxRows   int
	startRow  string
}

// WithBatchSize sets how many rows each page requests
func WithBatchSize(n int) ScanBatchesOption {
	return func(cfg *batchScanConfig) {
		if n > 0 {
			cfg.batchSize = n
		}
	}
}

// WithMaxRows caps the total rows fetched across all pages. When the
// cap is hit the result's LastRowKey names the next unfetched row
func WithMaxRows(n int) ScanBatchesOption {
	return func(cfg *batchScanConfig) {
		if n > 0 {
			cfg.maxRows = n
		}
	}
}

// WithResumeFrom starts pagination from the given row key, as returned
// in a previous result's LastRowKey
func WithResumeFrom(key string) ScanBatchesOption {
	return func(cfg *batchScanConfig) {
		cfg.startRow = key
	}
}

// ScanTimeRangeBatches fetches all rows in [start, end) in pages,
// advancing STARTROW between scans. Small result sets (at or below the
// direct-scan threshold) are fetched with a single scan. The returned
// Command joins the individual page commands with newlines
func (c *Client) ScanTimeRangeBatches(ctx context.Context, table string, start, end time.Time, opts ...ScanBatchesOption) *shellout.ScanResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	startedAt := time.Now()

	cfg := &batchScanConfig{batchSize: defaultBatchSize}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxRows > 0 && cfg.batchSize > cfg.maxRows {
		c.log.Warn("batch size exceeds row cap, clamping",
			"batch_size", cfg.batchSize, "max_rows", cfg.maxRows)
		cfg.batchSize = cfg.maxRows
	}

	exists, err := c.tableExists(ctx, table)
	if err != nil {
		return failedScan(table, "", err.Error())
	}
	if !exists {
		return failedScan(table, "", fmt.Sprintf("table %s does not exist", table))
	}

	countInRange, err := c.countWith(ctx, command.NewCountTimeRange(table, start, end).String(), table)
	if err != nil {
		return failedScan(table, "", fmt.Sprintf("cannot count rows in time range: %v", err))
	}

	if countInRange <= c.directScanThreshold {
		c.log.Debug("row count under threshold, scanning directly",
			"table", table, "rows", countInRange)
		return c.scanTimeRange(ctx, table, start, end)
	}
	c.log.Info("paginating scan", "table", table, "rows", countInRange, "batch_size", cfg.batchSize)

	var (
		allRows  []shellout.Row
		commands []string
		total    int
	)
	startRow := cfg.startRow

	for page := 1; ; page++ {
		pageOpts := []command.ScanOption{command.WithLimit(cfg.batchSize + 1)}
		if startRow != "" {
			pageOpts = append(pageOpts, command.WithStartRow(startRow))
		}

		current := c.scanTimeRange(ctx, table, start, end, pageOpts...)
		if !current.Success {
			c.log.Error("page scan failed", "table", table, "page", page, "error", current.ErrorMessage)
			return current
		}

		if len(current.Rows) < cfg.batchSize {
			// short page: the table is exhausted
			allRows = append(allRows, current.Rows...)
			commands = append(commands, current.Command)
			total += len(current.Rows)
			break
		}

		allRows = append(allRows, current.Rows[:cfg.batchSize]...)
		commands = append(commands, current.Command)
		total += cfg.batchSize
		startRow = current.Rows[len(current.Rows)-1].Key

		if cfg.maxRows > 0 && total >= cfg.maxRows {
			c.log.Info("row cap reached, stopping pagination", "table", table, "rows", total)
			break
		}
	}

	lastRowKey := ""
	if int64(total) != countInRange {
		if cfg.maxRows > 0 && total == cfg.maxRows && len(allRows) > 0 {
			// discover the key of the next unfetched row so the caller
			// can resume where this result stops
			probe := c.scanTimeRange(ctx, table, start, end,
				command.WithStartRow(allRows[len(allRows)-1].Key), command.WithLimit(2))
			if probe.Success && len(probe.Rows) > 0 {
				lastRowKey = probe.Rows[len(probe.Rows)-1].Key
			} else {
				c.log.Error("cannot discover resume key past the row cap", "table", table)
			}
		} else {
			c.log.Warn("fetched row total differs from the declared count",
				"table", table, "fetched", total, "declared", countInRange)
		}
	}

	return &shellout.ScanResult{
		Success:       true,
		TableName:     table,
		Command:       strings.Join(commands, "\n"),
		RowCount:      int64(total),
		ExecutionTime: time.Since(startedAt).Seconds(),
		Rows:          allRows,
		LastRowKey:    lastRowKey,
	}
}

// LastRowTimestamp returns the newest cell timestamp of the table's
// last row (reversed scan, limit 1). A table with no rows yields 0
func (c *Client) LastRowTimestamp(ctx context.Context, table string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	exists, err := c.tableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, fmt.Errorf("table %s does not exist", table)
	}

	cmdText := command.NewScan(table, command.WithReversed(), command.WithLimit(1)).String()
	res, err := c.shell.Exec(ctx, cmdText)
	if err != nil {
		return 0, fmt.Errorf("scan last row of %s: %w", table, err)
	}

	parsed := c.parser.ParseScan(res.Output)
	if !parsed.Success {
		if strings.Contains(res.Output, "0 row(s)") {
			return 0, nil
		}
		return 0, fmt.Errorf("parse last row of %s: %s", table, parsed.ErrorMessage)
	}
	if len(parsed.Rows) == 0 {
		return 0, nil
	}

	var latest int64
	for _, cell := range parsed.Rows[0].Cells {
		if cell.Timestamp > latest {
			latest = cell.Timestamp
		}
	}
	return latest, nil
}

func failedScan(table, cmdText, msg string) *shellout.ScanResult {
	return &shellout.ScanResult{
		TableName:    table,
		Command:      cmdText,
		ErrorMessage: msg,
	}
}
