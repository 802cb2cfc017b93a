// Copyright © NGRSoftlab 2020-2025

package shellout

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseExportFile(t *testing.T) {
	transcript := strings.Join([]string{
		"scan 'exports'",
		"ROW                          COLUMN+CELL",
		" rowA column=cf:q1, timestamp=100, value=a1",
		" rowA column=cf:q2, timestamp=101, value=a2",
		" rowB column=other:q1, timestamp=200, value=b1",
		"2 row(s)",
		"Took 3.20 seconds",
	}, "\n")

	dir := t.TempDir()
	src := filepath.Join(dir, "export.txt")
	dst := filepath.Join(dir, "export.json")
	if err := os.WriteFile(src, []byte(transcript), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := NewParser().ParseExportFile(src, dst)
	if err != nil {
		t.Fatalf("ParseExportFile() error: %v", err)
	}
	if n != 2 {
		t.Errorf("rows = %d; want 2", n)
	}

	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	var rows map[string]map[string]map[string]exportCell
	if err := json.Unmarshal(data, &rows); err != nil {
		t.Fatalf("output not valid JSON: %v", err)
	}
	if got := rows["rowA"]["cf"]["q2"].Value; got != "a2" {
		t.Errorf("rowA/cf/q2 = %q; want a2", got)
	}
	if got := rows["rowB"]["other"]["q1"].Timestamp; got != 200 {
		t.Errorf("rowB/other/q1 timestamp = %d; want 200", got)
	}
}

func TestParseExportFile_NoHeader(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bad.txt")
	if err := os.WriteFile(src, []byte("just some text\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewParser().ParseExportFile(src, filepath.Join(dir, "out.json")); err == nil {
		t.Fatal("ParseExportFile() succeeded on input without header; want error")
	}
}

func TestParseExportFile_MissingSource(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewParser().ParseExportFile(filepath.Join(dir, "absent.txt"), filepath.Join(dir, "out.json")); err == nil {
		t.Fatal("ParseExportFile() succeeded on missing file; want error")
	}
}
