// Copyright © NGRSoftlab 2020-2025

package shellout

import (
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var (
	tableNameRE = regexp.MustCompile(`scan\s+'([^']+)'`)
	columnRE    = regexp.MustCompile(`^column=([^\s:]+):(\S+)`)
	timestampRE = regexp.MustCompile(`^timestamp=(\d+)`)
	valueRE     = regexp.MustCompile(`^value=(.*)`)
	countRE     = regexp.MustCompile(`=> (\d+)`)
)

// ParserOption configures a Parser
type ParserOption func(*Parser)

// Parser turns raw HBase shell transcripts into typed results
type Parser struct {
	log *slog.Logger
}

// NewParser creates a Parser, applying any number of ParserOption
func NewParser(opts ...ParserOption) *Parser {
	p := &Parser{log: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// WithLogger sets the logger used for soft parse warnings
func WithLogger(log *slog.Logger) ParserOption {
	return func(p *Parser) {
		if log != nil {
			p.log = log
		}
	}
}

// ParseScan parses the captured output of one scan command. A missing
// required section fails the whole result; a malformed individual data
// line is logged and skipped. Parse failures are values, never errors:
// the returned ScanResult carries Success=false and an ErrorMessage
func (p *Parser) ParseScan(output string) *ScanResult {
	result := &ScanResult{}

	if strings.TrimSpace(output) == "" {
		result.ErrorMessage = "scan produced no output"
		p.log.Error(result.ErrorMessage)
		return result
	}

	rec := Reconstruct(output)

	if rec.CommandLine == "" {
		result.ErrorMessage = "cannot extract command line from output"
		p.log.Error(result.ErrorMessage)
		return result
	}
	result.Command = strings.TrimSpace(rec.CommandLine)

	tableMatch := tableNameRE.FindStringSubmatch(result.Command)
	if tableMatch == nil {
		result.ErrorMessage = "cannot extract table name from command line"
		p.log.Error(result.ErrorMessage)
		return result
	}
	result.TableName = strings.TrimSpace(tableMatch[1])

	if rec.ExecutionTimeLine == "" {
		result.ErrorMessage = "cannot extract execution time line from output"
		p.log.Error(result.ErrorMessage)
		return result
	}
	timeMatch := tookRE.FindStringSubmatch(rec.ExecutionTimeLine)
	if timeMatch == nil {
		result.ErrorMessage = "cannot extract execution time from output"
		p.log.Error(result.ErrorMessage)
		return result
	}
	execTime, err := strconv.ParseFloat(timeMatch[1], 64)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("invalid execution time %q", timeMatch[1])
		p.log.Error(result.ErrorMessage)
		return result
	}
	result.ExecutionTime = execTime

	if rec.RowCountLine == "" {
		result.ErrorMessage = "cannot extract row count line from output"
		p.log.Error(result.ErrorMessage)
		return result
	}
	countMatch := rowCountRE.FindStringSubmatch(rec.RowCountLine)
	if countMatch == nil {
		result.ErrorMessage = "cannot extract row count from output"
		p.log.Error(result.ErrorMessage)
		return result
	}
	rowCount, err := strconv.ParseInt(countMatch[1], 10, 64)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("invalid row count %q", countMatch[1])
		p.log.Error(result.ErrorMessage)
		return result
	}
	result.RowCount = rowCount

	if len(rec.DataLines) == 0 {
		result.ErrorMessage = "cannot extract any data lines from output"
		p.log.Error(result.ErrorMessage)
		return result
	}

	rows := p.extractRows(rec.DataLines)
	if len(rows) == 0 {
		result.ErrorMessage = "no valid row data extracted"
		p.log.Error(result.ErrorMessage)
		return result
	}
	result.Rows = rows

	if int64(len(rows)) != result.RowCount {
		// soft inconsistency: the shell's count and our parse can diverge
		p.log.Warn("declared row count differs from parsed rows",
			"declared", result.RowCount, "parsed", len(rows))
	}

	result.Success = true
	return result
}

// extractRows groups parsed data lines into rows by row key,
// keeping first-occurrence order of the keys
func (p *Parser) extractRows(dataLines []string) []Row {
	index := make(map[string]int, len(dataLines))
	var rows []Row

	for _, line := range dataLines {
		rowKey, cell, err := parseDataLine(line)
		if err != nil {
			p.log.Warn("skipping malformed data line", "line", line, "error", err)
			continue
		}
		if at, ok := index[rowKey]; ok {
			rows[at].Cells = append(rows[at].Cells, cell)
			continue
		}
		index[rowKey] = len(rows)
		rows = append(rows, Row{Key: rowKey, Cells: []Cell{cell}})
	}

	return rows
}

// parseDataLine splits one reconstructed logical line into its row key and cell.
// Expected shape: " <rowKey> column=<family>:<qualifier>, timestamp=<ms>, value=<text>".
// The value segment is never comma-split further: values may contain ", " themselves
func parseDataLine(line string) (string, Cell, error) {
	parts := strings.SplitN(strings.TrimLeft(line, " \t"), " ", 2)
	if len(parts) < 2 {
		return "", Cell{}, fmt.Errorf("no row key separator")
	}
	rowKey := strings.TrimSpace(parts[0])
	columnPart := strings.TrimSpace(parts[1])

	segments := strings.SplitN(columnPart, ", ", 3)
	if len(segments) < 3 {
		return rowKey, Cell{}, fmt.Errorf("expected 3 column segments, got %d", len(segments))
	}

	columnMatch := columnRE.FindStringSubmatch(strings.TrimSpace(segments[0]))
	if columnMatch == nil {
		return rowKey, Cell{}, fmt.Errorf("malformed column segment %q", segments[0])
	}
	timestampMatch := timestampRE.FindStringSubmatch(strings.TrimSpace(segments[1]))
	if timestampMatch == nil {
		return rowKey, Cell{}, fmt.Errorf("malformed timestamp segment %q", segments[1])
	}
	timestamp, err := strconv.ParseInt(timestampMatch[1], 10, 64)
	if err != nil {
		return rowKey, Cell{}, fmt.Errorf("invalid timestamp %q", timestampMatch[1])
	}
	valueMatch := valueRE.FindStringSubmatch(strings.TrimSpace(segments[2]))
	if valueMatch == nil {
		return rowKey, Cell{}, fmt.Errorf("malformed value segment %q", segments[2])
	}

	return rowKey, Cell{
		Family:    strings.TrimSpace(columnMatch[1]),
		Qualifier: strings.TrimSpace(columnMatch[2]),
		Timestamp: timestamp,
		Value:     valueMatch[1],
	}, nil
}

// ParseCount extracts the row count from the output of a count command.
// The shell prints the result as "=> N" on its final line
func (p *Parser) ParseCount(output string) (int64, error) {
	match := countRE.FindStringSubmatch(output)
	if match == nil {
		return 0, fmt.Errorf("cannot extract row count from count output")
	}
	n, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid row count %q: %w", match[1], err)
	}
	return n, nil
}
