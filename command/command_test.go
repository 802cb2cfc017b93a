// Copyright © NGRSoftlab 2020-2025

package command_test

import (
	"testing"
	"time"

	"github.com/evergrid/hbaseshell/command"
)

func TestScanQuery_String(t *testing.T) {
	// timestamps carried in a non-UTC zone; rendering must normalize to UTC ms
	cst := time.FixedZone("CST", 8*3600)
	start := time.UnixMilli(1000).In(cst)
	end := time.UnixMilli(2000).In(cst)

	tests := []struct {
		name string
		opts []command.ScanOption
		want string
	}{
		{
			name: "bare scan",
			opts: nil,
			want: "scan 'mytable'",
		},
		{
			name: "time range",
			opts: []command.ScanOption{command.WithTimeRange(start, end)},
			want: "scan 'mytable', {TIMERANGE => [1000, 2000]}",
		},
		{
			name: "time range with limit",
			opts: []command.ScanOption{command.WithTimeRange(start, end), command.WithLimit(100)},
			want: "scan 'mytable', {TIMERANGE => [1000, 2000], LIMIT => 100}",
		},
		{
			name: "time range with start row",
			opts: []command.ScanOption{command.WithTimeRange(start, end), command.WithStartRow("abc")},
			want: "scan 'mytable', {TIMERANGE => [1000, 2000], STARTROW => 'abc'}",
		},
		{
			name: "time range with start row and limit",
			opts: []command.ScanOption{
				command.WithTimeRange(start, end),
				command.WithStartRow("abc"),
				command.WithLimit(1001),
			},
			want: "scan 'mytable', {TIMERANGE => [1000, 2000], STARTROW => 'abc', LIMIT => 1001}",
		},
		{
			name: "reversed limit 1",
			opts: []command.ScanOption{command.WithReversed(), command.WithLimit(1)},
			want: "scan 'mytable', {REVERSED => true, LIMIT => 1}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := command.NewScan("mytable", tc.opts...).String()
			if got != tc.want {
				t.Errorf("String() = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestCountQuery_String(t *testing.T) {
	start := time.UnixMilli(1000).UTC()
	end := time.UnixMilli(2000).UTC()

	tests := []struct {
		name string
		q    *command.CountQuery
		want string
	}{
		{"whole table", command.NewCount("mytable"), "count 'mytable'"},
		{
			"time range",
			command.NewCountTimeRange("mytable", start, end),
			"count 'mytable', {TIMERANGE => [1000, 2000]}",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.q.String(); got != tc.want {
				t.Errorf("String() = %q; want %q", got, tc.want)
			}
		})
	}
}

func TestExistsQuery_String(t *testing.T) {
	if got := command.NewExists("mytable").String(); got != "exists 'mytable'" {
		t.Errorf("String() = %q; want %q", got, "exists 'mytable'")
	}
}
