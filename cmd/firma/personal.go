package main

import (
	"github.com/spf13/cobra"

	"github.com/fhwedel/firma/internal/firma"
	"github.com/fhwedel/firma/internal/logging"
)

var personalCmd = &cobra.Command{
	Use:     "personal",
	GroupID: GroupData,
	Short:   "Add or delete employees",
}

var personalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an employee, or update the one with the same pnr",
	Long: `Adds an employee. Before the migration the insurer code is stored as is;
afterwards it is resolved to kkid and an unknown code is stored as NULL.`,
	Example: `  firma personal add --pnr 417 --name Krause --vorname Henrik --geh-stufe it1 --abt-nr d13 --krankenkasse tkk`,
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		p := firma.Personal{}
		p.Pnr, _ = cmd.Flags().GetInt64("pnr")
		p.Name, _ = cmd.Flags().GetString("name")
		p.Vorname, _ = cmd.Flags().GetString("vorname")
		p.GehStufe, _ = cmd.Flags().GetString("geh-stufe")
		p.AbtNr, _ = cmd.Flags().GetString("abt-nr")
		p.Krankenkasse, _ = cmd.Flags().GetString("krankenkasse")
		if err := p.Validate(); err != nil {
			fail(err)
		}

		db, store := openStore()
		defer func() { _ = db.Close() }()

		n, err := store.AddPersonal(rootCtx, p)
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"personal": p, "affected": n})
			return
		}
		logging.PrintNormal("Saved %d - %s (%d rows affected)\n", p.Pnr, p.Name, n)
	},
}

var personalDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete every employee with exactly this name",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		db, store := openStore()
		defer func() { _ = db.Close() }()

		n, err := store.DeletePersonalByName(rootCtx, args[0])
		if err != nil {
			fail(err)
		}
		if jsonOutput {
			outputJSON(map[string]interface{}{"name": args[0], "deleted": n})
			return
		}
		if n == 0 {
			WarnError("no employee named %q", args[0])
			return
		}
		logging.PrintNormal("Deleted %d %s named %q\n", n, plural(n, "employee", "employees"), args[0])
	},
}

func plural(n int64, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func init() {
	personalAddCmd.Flags().Int64("pnr", 0, "Personnel number (required)")
	personalAddCmd.Flags().String("name", "", "Last name (required, at most 20 characters)")
	personalAddCmd.Flags().String("vorname", "", "First name")
	personalAddCmd.Flags().String("geh-stufe", "", "Salary grade, e.g. it1")
	personalAddCmd.Flags().String("abt-nr", "", "Department number, e.g. d13")
	personalAddCmd.Flags().String("krankenkasse", "", "Insurer code, e.g. tkk")
	_ = personalAddCmd.MarkFlagRequired("pnr")
	_ = personalAddCmd.MarkFlagRequired("name")

	personalCmd.AddCommand(personalAddCmd, personalDeleteCmd)
	rootCmd.AddCommand(personalCmd)
}
