package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fhwedel/firma/internal/firma"
	"github.com/fhwedel/firma/internal/ui"
)

var showCmd = &cobra.Command{
	Use:     "show <table>",
	GroupID: GroupData,
	Short:   "Print every row of a table",
	Example: `  firma show personal
  firma show krankenversicherung --json`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db, store := openStore()
		defer func() { _ = db.Close() }()

		dump, err := store.DumpTable(rootCtx, args[0])
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			outputJSON(dump)
			return
		}

		noPager, _ := cmd.Flags().GetBool("no-pager")
		out := renderDump(dump) + ui.RenderMuted(fmt.Sprintf("%d rows", len(dump.Rows))) + "\n"
		if err := ui.ToPager(out, ui.PagerOptions{NoPager: noPager}); err != nil {
			fail(err)
		}
	},
}

func init() {
	showCmd.Flags().Bool("no-pager", false, "Disable pager output")
	rootCmd.AddCommand(showCmd)
}

func renderDump(d *firma.Dump) string {
	rows := make([][]string, len(d.Rows))
	for i, r := range d.Rows {
		rows[i] = make([]string, len(r))
		for j, cell := range r {
			if cell == nil {
				rows[i][j] = ui.NullText
			} else {
				rows[i][j] = *cell
			}
		}
	}
	return ui.RenderTable(d.Columns, rows) + "\n"
}
