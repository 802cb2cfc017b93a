// Copyright © NGRSoftlab 2020-2025

// Package command builds HBase shell command strings from structured
// query parameters. It performs no I/O of its own
package command

import (
	"fmt"
	"strings"
	"time"
)

// ScanOption configures a ScanQuery
type ScanOption func(*ScanQuery)

// ScanQuery describes one HBase shell scan command.
// Start/End bound cell timestamps; both are normalized to UTC
// epoch milliseconds when the command string is rendered, since
// the shell's TIMERANGE filter is UTC based
type ScanQuery struct {
	Table    string
	Start    time.Time // zero means no time range
	End      time.Time
	StartRow string // resume scanning from this row key
	Limit    int    // 0 means unlimited
	Reversed bool
}

// NewScan creates a scan query for table, applying any number of ScanOption
func NewScan(table string, opts ...ScanOption) *ScanQuery {
	q := &ScanQuery{Table: table}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// WithTimeRange restricts the scan to cells whose timestamps fall in [start, end)
func WithTimeRange(start, end time.Time) ScanOption {
	return func(q *ScanQuery) {
		q.Start = start
		q.End = end
	}
}

// WithStartRow resumes the scan from the given row key (inclusive)
func WithStartRow(key string) ScanOption {
	return func(q *ScanQuery) {
		q.StartRow = key
	}
}

// WithLimit caps the number of returned rows
func WithLimit(n int) ScanOption {
	return func(q *ScanQuery) {
		q.Limit = n
	}
}

// WithReversed scans in descending row-key order
func WithReversed() ScanOption {
	return func(q *ScanQuery) {
		q.Reversed = true
	}
}

// String renders the shell command, e.g.
// scan 'mytable', {TIMERANGE => [1000, 2000], STARTROW => 'abc', LIMIT => 100}
func (q *ScanQuery) String() string {
	var opts []string
	if q.Reversed {
		opts = append(opts, "REVERSED => true")
	}
	if !q.Start.IsZero() || !q.End.IsZero() {
		opts = append(opts, fmt.Sprintf("TIMERANGE => [%d, %d]",
			q.Start.UTC().UnixMilli(), q.End.UTC().UnixMilli()))
	}
	if q.StartRow != "" {
		opts = append(opts, fmt.Sprintf("STARTROW => '%s'", q.StartRow))
	}
	if q.Limit > 0 {
		opts = append(opts, fmt.Sprintf("LIMIT => %d", q.Limit))
	}

	if len(opts) == 0 {
		return fmt.Sprintf("scan '%s'", q.Table)
	}
	return fmt.Sprintf("scan '%s', {%s}", q.Table, strings.Join(opts, ", "))
}

// CountQuery describes one HBase shell count command
type CountQuery struct {
	Table string
	Start time.Time // zero means count the whole table
	End   time.Time
}

// NewCount creates a count query for the whole table
func NewCount(table string) *CountQuery {
	return &CountQuery{Table: table}
}

// NewCountTimeRange creates a count query restricted to [start, end)
func NewCountTimeRange(table string, start, end time.Time) *CountQuery {
	return &CountQuery{Table: table, Start: start, End: end}
}

// String renders the shell command
func (q *CountQuery) String() string {
	if q.Start.IsZero() && q.End.IsZero() {
		return fmt.Sprintf("count '%s'", q.Table)
	}
	return fmt.Sprintf("count '%s', {TIMERANGE => [%d, %d]}",
		q.Table, q.Start.UTC().UnixMilli(), q.End.UTC().UnixMilli())
}

// ExistsQuery describes one HBase shell exists command
type ExistsQuery struct {
	Table string
}

// NewExists creates an existence probe for table
func NewExists(table string) *ExistsQuery {
	return &ExistsQuery{Table: table}
}

// String renders the shell command
func (q *ExistsQuery) String() string {
	return fmt.Sprintf("exists '%s'", q.Table)
}
