// Copyright © NGRSoftlab 2020-2025

package shellout

// Cell is a single column entry of an HBase row as printed by the shell
type Cell struct {
	Family    string // column family
	Qualifier string // column qualifier within the family
	Timestamp int64  // cell timestamp, epoch milliseconds
	Value     string // raw cell value text
}

// Row groups all cells sharing one row key
type Row struct {
	Key   string
	Cells []Cell
}

// ScanResult is the parsed outcome of one scan command.
// RowCount and ExecutionTime are the values the shell itself reported;
// RowCount is never corrected to match len(Rows)
type ScanResult struct {
	Success       bool
	ErrorMessage  string
	TableName     string
	Command       string
	RowCount      int64   // row count declared by the shell
	ExecutionTime float64 // seconds, as declared by the shell
	Rows          []Row
	LastRowKey    string // next row key to resume a capped paginated fetch, empty if not applicable
}

// RowByKey returns the row with the given key, or nil
func (r *ScanResult) RowByKey(key string) *Row {
	for i := range r.Rows {
		if r.Rows[i].Key == key {
			return &r.Rows[i]
		}
	}
	return nil
}

// CellValue returns the value of the first cell matching family and qualifier
func (row *Row) CellValue(family, qualifier string) (string, bool) {
	for _, c := range row.Cells {
		if c.Family == family && c.Qualifier == qualifier {
			return c.Value, true
		}
	}
	return "", false
}

// Families returns the distinct column families of the row, in first-occurrence order
func (row *Row) Families() []string {
	seen := make(map[string]struct{}, len(row.Cells))
	var out []string
	for _, c := range row.Cells {
		if _, ok := seen[c.Family]; ok {
			continue
		}
		seen[c.Family] = struct{}{}
		out = append(out, c.Family)
	}
	return out
}
