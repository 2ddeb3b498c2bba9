// Package export writes result sets as CSV or XLSX tables. Columns follow
// the result's field order; nodes and relationships are flattened to a JSON
// object of their properties.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/brunobiangulo/gocypher/graph"
)

// ErrUnknownFormat is returned for formats other than csv and xlsx.
var ErrUnknownFormat = errors.New("export: unknown format")

// Formats lists the supported export formats.
var Formats = []string{"csv", "xlsx"}

// Supported reports whether format is one of Formats.
func Supported(format string) bool {
	for _, f := range Formats {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

// ContentType returns the MIME type for a format.
func ContentType(format string) string {
	switch strings.ToLower(format) {
	case "csv":
		return "text/csv; charset=utf-8"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Write encodes rs in the named format.
func Write(w io.Writer, format string, rs *graph.ResultSet) error {
	switch strings.ToLower(format) {
	case "csv":
		return WriteCSV(w, rs)
	case "xlsx":
		return WriteXLSX(w, rs)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteCSV writes a header row of field names followed by one row per
// record.
func WriteCSV(w io.Writer, rs *graph.ResultSet) error {
	cw := csv.NewWriter(w)
	for _, row := range Rows(rs) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Rows renders rs as a string table, header first. A nil result set
// yields no rows.
func Rows(rs *graph.ResultSet) [][]string {
	if rs == nil {
		return nil
	}
	fields := columns(rs)
	rows := make([][]string, 0, len(rs.Records)+1)
	rows = append(rows, append([]string(nil), fields...))
	for _, rec := range rs.Records {
		row := make([]string, len(fields))
		for i, f := range fields {
			row[i] = Cell(rec[f])
		}
		rows = append(rows, row)
	}
	return rows
}

// columns returns the result's fields, or the keys of the first record
// when no fields were reported.
func columns(rs *graph.ResultSet) []string {
	if len(rs.Fields) > 0 || len(rs.Records) == 0 {
		return rs.Fields
	}
	keys := make([]string, 0, len(rs.Records[0]))
	for k := range rs.Records[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Cell renders a single value as text.
func Cell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		data, err := json.Marshal(flatten(v))
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// flatten replaces graph entities with their property maps.
func flatten(v any) any {
	switch x := v.(type) {
	case *graph.Node:
		if x == nil {
			return nil
		}
		return x.Properties
	case *graph.Relationship:
		if x == nil {
			return nil
		}
		return x.Properties
	case graph.Path:
		out := make([]any, 0, len(x.Nodes))
		for _, n := range x.Nodes {
			out = append(out, flatten(n))
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = flatten(e)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, e := range x {
			out[k] = flatten(e)
		}
		return out
	default:
		return v
	}
}
