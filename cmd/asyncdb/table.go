package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"github.com/tianxinzizhen/asyncdb"
)

var nullText = color.New(color.Faint).Sprint("NULL")

func printTable(w io.Writer, r *asyncdb.Result) error {
	data := pterm.TableData{r.Columns()}
	for _, row := range r.Rows() {
		cells := make([]string, 0, row.Len())
		for _, f := range row.Fields() {
			if f.IsNull() {
				cells = append(cells, nullText)
				continue
			}
			cells = append(cells, f.String())
		}
		data = append(data, cells)
	}
	text, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n(%d rows)\n", text, r.Len())
	return err
}
