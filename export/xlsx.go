package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/brunobiangulo/gocypher/graph"
)

const (
	resultsSheet       = "Results"
	nodesSheet         = "Nodes"
	relationshipsSheet = "Relationships"
)

// WriteXLSX writes a workbook with the records on a Results sheet and,
// when present, the distinct nodes and relationships on their own sheets.
// Numbers and booleans keep their cell types.
func WriteXLSX(w io.Writer, rs *graph.ResultSet) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", resultsSheet); err != nil {
		return fmt.Errorf("naming sheet: %w", err)
	}
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	if rs == nil {
		rs = &graph.ResultSet{}
	}

	fields := columns(rs)
	rows := make([][]any, 0, len(rs.Records)+1)
	rows = append(rows, toAny(fields))
	for _, rec := range rs.Records {
		row := make([]any, len(fields))
		for i, field := range fields {
			row[i] = xlsxValue(rec[field])
		}
		rows = append(rows, row)
	}
	if err := writeSheet(f, resultsSheet, rows, header); err != nil {
		return err
	}

	if len(rs.Nodes) > 0 {
		rows := [][]any{{"id", "labels", "properties"}}
		for _, n := range rs.Nodes {
			rows = append(rows, []any{n.ID, strings.Join(n.Labels, ":"), Cell(n.Properties)})
		}
		if err := addSheet(f, nodesSheet, rows, header); err != nil {
			return err
		}
	}
	if len(rs.Relationships) > 0 {
		rows := [][]any{{"id", "type", "startNode", "endNode", "properties"}}
		for _, r := range rs.Relationships {
			rows = append(rows, []any{r.ID, r.Type, r.StartNode, r.EndNode, Cell(r.Properties)})
		}
		if err := addSheet(f, relationshipsSheet, rows, header); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("writing xlsx: %w", err)
	}
	return nil
}

func addSheet(f *excelize.File, name string, rows [][]any, header int) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("creating sheet %s: %w", name, err)
	}
	return writeSheet(f, name, rows, header)
}

func writeSheet(f *excelize.File, sheet string, rows [][]any, header int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) > 0 {
		if err := f.SetRowStyle(sheet, 1, 1, header); err != nil {
			return fmt.Errorf("styling %s header: %w", sheet, err)
		}
	}
	return nil
}

func xlsxValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string, bool, int, int64, float64:
		return x
	default:
		return Cell(v)
	}
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
