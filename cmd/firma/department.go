package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fhwedel/firma/internal/ui"
)

var departmentCmd = &cobra.Command{
	Use:     "department <name>",
	GroupID: GroupData,
	Short:   "List the employees of a department",
	Example: `  firma department Verkauf`,
	Args:    cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		name := strings.Join(args, " ")

		db, store := openStore()
		defer func() { _ = db.Close() }()

		employees, err := store.EmployeesInDepartment(rootCtx, name)
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			outputJSON(employees)
			return
		}
		if len(employees) == 0 {
			fmt.Println(ui.RenderMuted(fmt.Sprintf("No employees in %q", name)))
			return
		}
		fmt.Println(ui.RenderCategory(name))
		for i, e := range employees {
			prefix := ui.TreeChild
			if i == len(employees)-1 {
				prefix = ui.TreeLast
			}
			fmt.Println(prefix + e.String())
		}
	},
}

func init() {
	rootCmd.AddCommand(departmentCmd)
}
