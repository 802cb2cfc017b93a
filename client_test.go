// Copyright © NGRSoftlab 2020-2025

package hbaseshell

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/evergrid/hbaseshell/ssh"
)

// fakeShell is a scripted shellRunner: each command maps to a canned
// transcript, missing commands yield empty output
type fakeShell struct {
	outputs map[string]string
	errs    map[string]error
	calls   []string
	closed  bool
}

func (f *fakeShell) Exec(_ context.Context, cmd string) (*ssh.CommandResult, error) {
	f.calls = append(f.calls, cmd)
	if err := f.errs[cmd]; err != nil {
		return nil, err
	}
	return &ssh.CommandResult{Command: cmd, Output: f.outputs[cmd]}, nil
}

func (f *fakeShell) SendAndAwait(_ context.Context, commands []string, _ ...ssh.BatchOption) *ssh.BatchResult {
	return &ssh.BatchResult{Success: true, Commands: commands}
}

func (f *fakeShell) Close() error {
	f.closed = true
	return nil
}

func newTestClient(f *fakeShell, opts ...Option) *Client {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newClient(f, append([]Option{WithLogger(log)}, opts...)...)
}

func existsTranscript(table string, exists bool) string {
	verdict := "does exist"
	if !exists {
		verdict = "does not exist"
	}
	return fmt.Sprintf("exists '%s'\nTable %s %s\nTook 0.0150 seconds\nhbase(main):002:0> ", table, table, verdict)
}

func countTranscript(cmd string, n int64) string {
	return fmt.Sprintf("%s\n%d row(s)\nTook 1.2000 seconds\n=> %d\nhbase(main):003:0> ", cmd, n, n)
}

// scanTranscript builds a well-formed shell transcript echoing cmd with
// the given preformatted data lines
func scanTranscript(cmd string, dataLines ...string) string {
	var b strings.Builder
	b.WriteString(cmd + "\n")
	b.WriteString("ROW                COLUMN+CELL\n")
	keys := map[string]bool{}
	for _, line := range dataLines {
		b.WriteString(line + "\n")
		keys[strings.Fields(line)[0]] = true
	}
	fmt.Fprintf(&b, "%d row(s)\n", len(keys))
	b.WriteString("Took 0.1234 seconds\n")
	b.WriteString("hbase(main):004:0> ")
	return b.String()
}

func dataLine(rowKey, family, qualifier string, ts int64, value string) string {
	return fmt.Sprintf(" %s   column=%s:%s, timestamp=%d, value=%s", rowKey, family, qualifier, ts, value)
}

var (
	scanStart = time.UnixMilli(1000).UTC()
	scanEnd   = time.UnixMilli(2000).UTC()
)

func TestTableExists(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    bool
		wantErr bool
	}{
		{"exists", existsTranscript("mytable", true), true, false},
		{"missing", existsTranscript("mytable", false), false, false},
		{"garbage", "something unexpected", false, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := &fakeShell{outputs: map[string]string{"exists 'mytable'": tc.output}}
			c := newTestClient(f)

			got, err := c.TableExists(context.Background(), "mytable")
			if (err != nil) != tc.wantErr {
				t.Fatalf("err=%v; wantErr=%v", err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("exists=%v; want %v", got, tc.want)
			}
		})
	}
}

func TestCountRows(t *testing.T) {
	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		"count 'mytable'":  countTranscript("count 'mytable'", 42),
	}}
	c := newTestClient(f)

	n, err := c.CountRows(context.Background(), "mytable")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if n != 42 {
		t.Errorf("count=%d; want 42", n)
	}
}

func TestCountRows_MissingTable(t *testing.T) {
	f := &fakeShell{outputs: map[string]string{
		"exists 'gone'": existsTranscript("gone", false),
	}}
	c := newTestClient(f)

	_, err := c.CountRows(context.Background(), "gone")
	if err == nil || !strings.Contains(err.Error(), "does not exist") {
		t.Errorf("err=%v; want missing-table error", err)
	}
	if len(f.calls) != 1 {
		t.Errorf("calls=%v; want only the exists probe", f.calls)
	}
}

func TestCountRowsTimeRange(t *testing.T) {
	cmd := "count 'mytable', {TIMERANGE => [1000, 2000]}"
	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		cmd:                countTranscript(cmd, 7),
	}}
	c := newTestClient(f)

	n, err := c.CountRowsTimeRange(context.Background(), "mytable", scanStart, scanEnd)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if n != 7 {
		t.Errorf("count=%d; want 7", n)
	}
}

func TestScanTimeRange(t *testing.T) {
	cmd := "scan 'mytable', {TIMERANGE => [1000, 2000]}"
	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		cmd: scanTranscript(cmd,
			dataLine("rowA", "cf", "q1", 1500, "v1"),
			dataLine("rowA", "cf", "q2", 1600, "v2"),
			dataLine("rowB", "cf", "q1", 1700, "v3"),
		),
	}}
	c := newTestClient(f)

	res := c.ScanTimeRange(context.Background(), "mytable", scanStart, scanEnd)
	if !res.Success {
		t.Fatalf("Success=false, ErrorMessage=%q", res.ErrorMessage)
	}
	if res.TableName != "mytable" || res.Command != cmd {
		t.Errorf("table=%q command=%q", res.TableName, res.Command)
	}
	if len(res.Rows) != 2 {
		t.Fatalf("got %d rows; want 2", len(res.Rows))
	}
	if res.Rows[0].Key != "rowA" || len(res.Rows[0].Cells) != 2 {
		t.Errorf("rowA wrong: %+v", res.Rows[0])
	}
	if v, ok := res.Rows[1].CellValue("cf", "q1"); !ok || v != "v3" {
		t.Errorf("rowB cf:q1=%q ok=%v; want v3", v, ok)
	}
}

func TestScanTimeRange_MissingTable(t *testing.T) {
	f := &fakeShell{outputs: map[string]string{
		"exists 'gone'": existsTranscript("gone", false),
	}}
	c := newTestClient(f)

	res := c.ScanTimeRange(context.Background(), "gone", scanStart, scanEnd)
	if res.Success {
		t.Fatal("Success=true; want failure")
	}
	if !strings.Contains(res.ErrorMessage, "does not exist") {
		t.Errorf("ErrorMessage=%q", res.ErrorMessage)
	}
	if len(f.calls) != 1 {
		t.Errorf("calls=%v; want only the exists probe", f.calls)
	}
}

func TestScanTimeRange_EchoMismatch(t *testing.T) {
	cmd := "scan 'mytable', {TIMERANGE => [1000, 2000]}"
	other := "scan 'othertable', {TIMERANGE => [1000, 2000]}"
	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		cmd: scanTranscript(other,
			dataLine("rowA", "cf", "q1", 1500, "v1"),
		),
	}}
	c := newTestClient(f)

	res := c.ScanTimeRange(context.Background(), "mytable", scanStart, scanEnd)
	if res.Success {
		t.Fatal("Success=true; want mismatch failure")
	}
	if !strings.Contains(res.ErrorMessage, "does not match") {
		t.Errorf("ErrorMessage=%q", res.ErrorMessage)
	}
}

func TestScanTimeRangeBatches_DirectPath(t *testing.T) {
	countCmd := "count 'mytable', {TIMERANGE => [1000, 2000]}"
	scanCmd := "scan 'mytable', {TIMERANGE => [1000, 2000]}"
	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		countCmd:           countTranscript(countCmd, 2),
		scanCmd: scanTranscript(scanCmd,
			dataLine("r1", "cf", "q", 1500, "v1"),
			dataLine("r2", "cf", "q", 1600, "v2"),
		),
	}}
	c := newTestClient(f)

	res := c.ScanTimeRangeBatches(context.Background(), "mytable", scanStart, scanEnd)
	if !res.Success {
		t.Fatalf("Success=false, ErrorMessage=%q", res.ErrorMessage)
	}
	if len(res.Rows) != 2 {
		t.Errorf("got %d rows; want 2", len(res.Rows))
	}
	if res.Command != scanCmd {
		t.Errorf("Command=%q; want the single direct scan", res.Command)
	}
}

func TestScanTimeRangeBatches_Paginated(t *testing.T) {
	countCmd := "count 'mytable', {TIMERANGE => [1000, 2000]}"
	page1 := "scan 'mytable', {TIMERANGE => [1000, 2000], LIMIT => 3}"
	page2 := "scan 'mytable', {TIMERANGE => [1000, 2000], STARTROW => 'r3', LIMIT => 3}"
	page3 := "scan 'mytable', {TIMERANGE => [1000, 2000], STARTROW => 'r5', LIMIT => 3}"

	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		countCmd:           countTranscript(countCmd, 5),
		page1: scanTranscript(page1,
			dataLine("r1", "cf", "q", 1500, "v"),
			dataLine("r2", "cf", "q", 1500, "v"),
			dataLine("r3", "cf", "q", 1500, "v"),
		),
		page2: scanTranscript(page2,
			dataLine("r3", "cf", "q", 1500, "v"),
			dataLine("r4", "cf", "q", 1500, "v"),
			dataLine("r5", "cf", "q", 1500, "v"),
		),
		page3: scanTranscript(page3,
			dataLine("r5", "cf", "q", 1500, "v"),
		),
	}}
	c := newTestClient(f, WithDirectScanThreshold(2))

	res := c.ScanTimeRangeBatches(context.Background(), "mytable", scanStart, scanEnd,
		WithBatchSize(2))
	if !res.Success {
		t.Fatalf("Success=false, ErrorMessage=%q", res.ErrorMessage)
	}
	if res.RowCount != 5 || len(res.Rows) != 5 {
		t.Fatalf("RowCount=%d len=%d; want 5", res.RowCount, len(res.Rows))
	}
	for i, want := range []string{"r1", "r2", "r3", "r4", "r5"} {
		if res.Rows[i].Key != want {
			t.Errorf("Rows[%d].Key=%q; want %q", i, res.Rows[i].Key, want)
		}
	}
	if res.LastRowKey != "" {
		t.Errorf("LastRowKey=%q; want empty on exhausted scan", res.LastRowKey)
	}
	wantCommand := page1 + "\n" + page2 + "\n" + page3
	if res.Command != wantCommand {
		t.Errorf("Command=%q; want joined page commands", res.Command)
	}
}

func TestScanTimeRangeBatches_MaxRows(t *testing.T) {
	countCmd := "count 'mytable', {TIMERANGE => [1000, 2000]}"
	page1 := "scan 'mytable', {TIMERANGE => [1000, 2000], LIMIT => 3}"
	page2 := "scan 'mytable', {TIMERANGE => [1000, 2000], STARTROW => 'r3', LIMIT => 3}"
	probe := "scan 'mytable', {TIMERANGE => [1000, 2000], STARTROW => 'r4', LIMIT => 2}"

	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		countCmd:           countTranscript(countCmd, 10),
		page1: scanTranscript(page1,
			dataLine("r1", "cf", "q", 1500, "v"),
			dataLine("r2", "cf", "q", 1500, "v"),
			dataLine("r3", "cf", "q", 1500, "v"),
		),
		page2: scanTranscript(page2,
			dataLine("r3", "cf", "q", 1500, "v"),
			dataLine("r4", "cf", "q", 1500, "v"),
			dataLine("r5", "cf", "q", 1500, "v"),
		),
		probe: scanTranscript(probe,
			dataLine("r4", "cf", "q", 1500, "v"),
			dataLine("r5", "cf", "q", 1500, "v"),
		),
	}}
	c := newTestClient(f, WithDirectScanThreshold(2))

	res := c.ScanTimeRangeBatches(context.Background(), "mytable", scanStart, scanEnd,
		WithBatchSize(2), WithMaxRows(4))
	if !res.Success {
		t.Fatalf("Success=false, ErrorMessage=%q", res.ErrorMessage)
	}
	if res.RowCount != 4 || len(res.Rows) != 4 {
		t.Fatalf("RowCount=%d len=%d; want 4", res.RowCount, len(res.Rows))
	}
	if res.LastRowKey != "r5" {
		t.Errorf("LastRowKey=%q; want r5", res.LastRowKey)
	}
}

func TestScanTimeRangeBatches_PageFailurePropagates(t *testing.T) {
	countCmd := "count 'mytable', {TIMERANGE => [1000, 2000]}"
	page1 := "scan 'mytable', {TIMERANGE => [1000, 2000], LIMIT => 3}"

	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		countCmd:           countTranscript(countCmd, 10),
		// page1 yields an unparseable transcript
		page1: "garbled noise",
	}}
	c := newTestClient(f, WithDirectScanThreshold(2))

	res := c.ScanTimeRangeBatches(context.Background(), "mytable", scanStart, scanEnd,
		WithBatchSize(2))
	if res.Success {
		t.Fatal("Success=true; want page failure")
	}
	if res.ErrorMessage == "" {
		t.Error("ErrorMessage empty; want parse failure detail")
	}
}

func TestLastRowTimestamp(t *testing.T) {
	cmd := "scan 'mytable', {REVERSED => true, LIMIT => 1}"
	f := &fakeShell{outputs: map[string]string{
		"exists 'mytable'": existsTranscript("mytable", true),
		cmd: scanTranscript(cmd,
			dataLine("rowZ", "cf", "q1", 1500, "v1"),
			dataLine("rowZ", "cf", "q2", 1700, "v2"),
		),
	}}
	c := newTestClient(f)

	ts, err := c.LastRowTimestamp(context.Background(), "mytable")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ts != 1700 {
		t.Errorf("ts=%d; want newest cell timestamp 1700", ts)
	}
}

func TestLastRowTimestamp_EmptyTable(t *testing.T) {
	cmd := "scan 'empty', {REVERSED => true, LIMIT => 1}"
	f := &fakeShell{outputs: map[string]string{
		"exists 'empty'": existsTranscript("empty", true),
		cmd:              cmd + "\nROW                COLUMN+CELL\n0 row(s)\nTook 0.0100 seconds\nhbase(main):005:0> ",
	}}
	c := newTestClient(f)

	ts, err := c.LastRowTimestamp(context.Background(), "empty")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if ts != 0 {
		t.Errorf("ts=%d; want 0 for empty table", ts)
	}
}

func TestReverseTimestamp(t *testing.T) {
	ts := int64(1755000000000)
	rev := ReverseTimestamp(ts)
	if rev != javaLongMax-ts {
		t.Errorf("rev=%d", rev)
	}
	if ReverseTimestamp(rev) != ts {
		t.Errorf("ReverseTimestamp is not its own inverse")
	}
}

func TestClientClose(t *testing.T) {
	f := &fakeShell{}
	c := newTestClient(f)

	if err := c.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if !f.closed {
		t.Error("shell not closed")
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close err=%v", err)
	}
}
