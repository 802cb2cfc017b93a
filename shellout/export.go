// Copyright © NGRSoftlab 2020-2025

package shellout

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var (
	exportHeaderRE  = regexp.MustCompile(`^\s*ROW\s+COLUMN\+CELL`)
	exportSummaryRE = regexp.MustCompile(`^\s*\d+\s+row\(s\)`)
)

// exportCell is the per-qualifier payload of an export JSON document
type exportCell struct {
	Timestamp int64  `json:"timestamp"`
	Value     string `json:"value"`
}

// ParseExportFile streams a manually captured full-table scan transcript
// from srcPath and writes the rows as a nested JSON document to dstPath:
// row key -> family -> qualifier -> {timestamp, value}. Export files are
// typically large, so the input is consumed line by line. Data lines in
// export captures are already unwrapped, no fragment merging is applied.
// Returns the number of distinct rows written
func (p *Parser) ParseExportFile(srcPath, dstPath string) (int, error) {
	in, err := os.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("open export file: %w", err)
	}
	defer in.Close()

	rows := make(map[string]map[string]map[string]exportCell)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	started := false
	finished := false
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		if !started {
			if exportHeaderRE.MatchString(line) {
				started = true
			}
			continue
		}
		if finished {
			continue
		}
		if exportSummaryRE.MatchString(line) {
			finished = true
			continue
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		rowKey, cell, err := parseDataLine(line)
		if err != nil {
			p.log.Warn("skipping invalid export line", "line_num", lineNum, "error", err)
			continue
		}

		families, ok := rows[rowKey]
		if !ok {
			families = make(map[string]map[string]exportCell)
			rows[rowKey] = families
		}
		qualifiers, ok := families[cell.Family]
		if !ok {
			qualifiers = make(map[string]exportCell)
			families[cell.Family] = qualifiers
		}
		qualifiers[cell.Qualifier] = exportCell{
			Timestamp: cell.Timestamp,
			Value:     strings.TrimSpace(cell.Value),
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("read export file: %w", err)
	}
	if !started {
		return 0, fmt.Errorf("no ROW COLUMN+CELL header found in export file")
	}

	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode export rows: %w", err)
	}
	if err := os.WriteFile(dstPath, data, 0o644); err != nil {
		return 0, fmt.Errorf("write export JSON: %w", err)
	}

	p.log.Info("export file converted", "rows", len(rows), "output", dstPath)
	return len(rows), nil
}
