package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fhwedel/firma/internal/logging"
)

var salaryCmd = &cobra.Command{
	Use:     "salary",
	GroupID: GroupData,
	Short:   "Change salary grades",
}

var salaryRaiseCmd = &cobra.Command{
	Use:   "raise <percent> <geh_stufe>",
	Short: "Raise a salary grade by a percentage, rounded to whole units",
	Example: `  firma salary raise 10 it1
  firma salary raise -- -5 it3`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		percent, err := strconv.Atoi(args[0])
		if err != nil {
			fail(fmt.Errorf("percent must be a whole number, got %q", args[0]))
		}

		db, store := openStore()
		defer func() { _ = db.Close() }()

		n, err := store.RaiseSalary(rootCtx, percent, args[1])
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"geh_stufe": args[1], "percent": percent, "affected": n})
			return
		}
		if n == 0 {
			WarnError("no salary grade %q", args[1])
			return
		}
		logging.PrintNormal("Raised %s by %d%%\n", args[1], percent)
	},
}

func init() {
	salaryCmd.AddCommand(salaryRaiseCmd)
	rootCmd.AddCommand(salaryCmd)
}
