package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

const maxCellWidth = 60

// column describes one table column. Numeric columns are right aligned.
type column struct {
	Header  string
	Numeric bool
}

var (
	reportColumns = []column{{Header: "Source"}, {Header: "Status"}, {Header: "Records", Numeric: true}, {Header: "Duration", Numeric: true}, {Header: "Error"}}
	sourceColumns = []column{{Header: "Name"}, {Header: "Kind"}, {Header: "Listings", Numeric: true}, {Header: "Categories"}, {Header: "Domains"}, {Header: "State"}}
	statsColumns  = []column{{Header: "Source"}, {Header: "Headlines", Numeric: true}, {Header: "Avg confidence", Numeric: true}, {Header: "Max seen", Numeric: true}}
)

// renderTable draws rows under columns. A non-nil footer is drawn below
// the rows, for totals.
func renderTable(columns []column, rows [][]string, footer []string) string {
	if len(columns) == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(toRow(columns, func(i int) string { return columns[i].Header }))
	for _, row := range rows {
		tw.AppendRow(toRow(columns, cell(row)))
	}
	if footer != nil {
		tw.AppendFooter(toRow(columns, cell(footer)))
	}

	configs := make([]table.ColumnConfig, len(columns))
	for i, c := range columns {
		configs[i] = table.ColumnConfig{
			Number:      i + 1,
			Align:       text.AlignLeft,
			AlignHeader: text.AlignLeft,
			AlignFooter: text.AlignLeft,
			WidthMax:    maxCellWidth,
		}
		if c.Numeric {
			configs[i].Align = text.AlignRight
			configs[i].AlignFooter = text.AlignRight
		}
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func toRow(columns []column, value func(int) string) table.Row {
	r := make(table.Row, len(columns))
	for i := range columns {
		r[i] = value(i)
	}
	return r
}

// cell pads short rows with empty cells.
func cell(row []string) func(int) string {
	return func(i int) string {
		if i < len(row) {
			return row[i]
		}
		return ""
	}
}
