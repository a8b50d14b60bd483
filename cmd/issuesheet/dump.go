package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/coder/serpent"

	"github.com/coder/issuesheet"
)

func printCells(w io.Writer, cells [][]string) error {
	twr := tabwriter.NewWriter(w, 0, 0, 1, ' ', 0)
	for _, row := range cells {
		fmt.Fprintln(twr, strings.Join(row, "\t"))
	}
	return twr.Flush()
}

func (r *rootCmd) dumpCmd() *serpent.Command {
	return &serpent.Command{
		Use:   "dump",
		Short: "Print the cells of the tab at --sheet-url",
		Handler: func(inv *serpent.Invocation) error {
			log := newLogger()
			ctx := inv.Context()

			spreadsheetID, tabID, err := issuesheet.ParseSheetURL(r.job.SheetURL)
			if err != nil {
				return err
			}
			sheets, err := r.sheets(ctx, log)
			if err != nil {
				return fmt.Errorf("sheets: %w", err)
			}
			tab, err := sheets.OpenTab(ctx, spreadsheetID, tabID)
			if err != nil {
				return err
			}
			cells, err := tab.Cells(ctx)
			if err != nil {
				return err
			}
			log.Debug("loaded tab", "title", tab.Title(), "rows", len(cells))
			return printCells(inv.Stdout, cells)
		},
	}
}
