package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fhwedel/firma/internal/migrate"
	"github.com/fhwedel/firma/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	GroupID: GroupMigration,
	Short:   "Show which migration steps are still pending",
	Long: `Inspects the catalog without changing anything and reports, per step,
whether migrate would apply it. Exits 0 in every case.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		db, store := openStore()
		defer func() { _ = db.Close() }()

		engine, err := migrate.NewEngine(db, migrate.DefaultPlan().WithSchema(store.Schema()), migrate.WithLogger(logger))
		if err != nil {
			fail(err)
		}
		status, err := engine.Status(rootCtx)
		if err != nil {
			fail(err)
		}
		layout, err := store.Layout(rootCtx)
		if err != nil {
			fail(err)
		}

		if jsonOutput {
			outputJSON(map[string]interface{}{
				"dialect": db.Dialect().Name(),
				"schema":  store.Schema(),
				"layout":  layout.String(),
				"steps":   status,
			})
			return
		}
		fmt.Print(renderStatus(status, layout.String()))
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func renderStatus(status []migrate.StepStatus, layout string) string {
	var b strings.Builder
	b.WriteString(ui.RenderCategory("Migration status") + " " + ui.RenderMuted("("+layout+")") + "\n")
	pending := 0
	for _, s := range status {
		st := ui.StatusPass
		if s.Pending {
			st = ui.StatusWarn
			pending++
		}
		b.WriteString(ui.RenderLine(st, string(s.Step), s.Detail) + "\n")
	}
	b.WriteString(ui.RenderSeparator() + "\n")
	if pending == 0 {
		b.WriteString(ui.RenderPass("Nothing to do") + "\n")
	} else {
		b.WriteString(ui.RenderWarn(fmt.Sprintf("%d steps pending; run 'firma migrate'", pending)) + "\n")
	}
	return b.String()
}
