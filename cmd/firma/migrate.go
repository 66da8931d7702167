package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/fhwedel/firma/internal/config"
	"github.com/fhwedel/firma/internal/migrate"
	"github.com/fhwedel/firma/internal/storage"
	"github.com/fhwedel/firma/internal/ui"
)

var migrateCmd = &cobra.Command{
	Use:     "migrate",
	GroupID: GroupMigration,
	Short:   "Replace personal.krankenkasse with a reference to krankenversicherung",
	Long: `Creates and seeds krankenversicherung, adds personal.kkid, maps every
insurer code to its kkid, drops the krankenkasse column and adds the foreign
key. kkid becomes NOT NULL once every row has a reference.

Every step checks the catalog first, so migrate can be re-run safely on a
database in any state. The run is one transaction that commits or rolls back
as a whole. On MySQL and MariaDB, DDL commits implicitly and cannot be rolled back.`,
	Args: cobra.NoArgs,
	Run:  runMigrate,
}

func init() {
	migrateCmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	migrateCmd.Flags().String("seed-file", "", "YAML or TOML file with the insurer seed rows (default: migrate.seed-file, or built-in)")
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, _ []string) {
	seeds, err := loadSeeds(cmd)
	if err != nil {
		fail(err)
	}

	db := openDB()
	defer func() { _ = db.Close() }()

	engine, err := migrate.NewEngine(db, migrate.DefaultPlan().WithSchema(schemaFlag),
		migrate.WithLogger(logger), migrate.WithSeeds(seeds))
	if err != nil {
		fail(err)
	}

	yes, _ := cmd.Flags().GetBool("yes")
	if !yes && !jsonOutput && ui.StdinIsTerminal() && ui.IsTerminal() {
		if !confirmMigration(engine, db.Dialect()) {
			fmt.Fprintln(os.Stderr, "Migration cancelled.")
			return
		}
	}

	result, err := engine.Run(rootCtx)
	if jsonOutput {
		if result != nil {
			outputJSON(result)
		}
		if err != nil {
			outputJSONError(err, errorCode(err))
		}
		return
	}
	if result != nil {
		fmt.Print(renderResult(result))
	}
	if err != nil {
		fail(err)
	}
}

func loadSeeds(cmd *cobra.Command) (migrate.SeedSet, error) {
	path, _ := cmd.Flags().GetString("seed-file")
	if !cmd.Flags().Changed("seed-file") {
		path = config.GetString("migrate.seed-file")
	}
	if path == "" {
		return migrate.DefaultSeedSet(), nil
	}
	return migrate.LoadSeedFile(path)
}

// confirmMigration shows the pending steps and asks before running.
// Returns true without asking when nothing structural is pending.
func confirmMigration(engine *migrate.Engine, d storage.Dialect) bool {
	status, err := engine.Status(rootCtx)
	if err != nil {
		fail(err)
	}
	var pending []string
	for _, s := range status {
		if s.Pending && s.Step != migrate.StateSeedReference {
			pending = append(pending, fmt.Sprintf("%s: %s", s.Step, s.Detail))
		}
	}
	if len(pending) == 0 {
		return true
	}

	desc := strings.Join(pending, "\n")
	if !d.TransactionalDDL() {
		desc += "\n\n" + d.Name() + " commits DDL implicitly; a failed run cannot undo schema changes."
	}
	proceed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Migrate %s.%s?", engine.Plan().Schema, engine.Plan().EntityTable)).
				Description(desc).
				Affirmative("Migrate").
				Negative("Cancel").
				Value(&proceed),
		),
	).WithTheme(huh.ThemeDracula())

	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false
		}
		FatalError("form error: %v", err)
	}
	return proceed
}

// renderResult formats a migration result for the terminal.
func renderResult(r *migrate.Result) string {
	var b strings.Builder
	b.WriteString(ui.RenderCategory("Steps") + "\n")
	for _, s := range r.Steps {
		status := ui.StatusSkip
		if s.Applied {
			status = ui.StatusPass
		}
		b.WriteString(ui.RenderLine(status, string(s.Step), s.Detail) + "\n")
	}
	if r.State == migrate.StateRolledBack {
		b.WriteString(ui.RenderLine(ui.StatusFail, string(migrate.StateRolledBack), "transaction rolled back") + "\n")
	}

	b.WriteString("\n" + ui.RenderCategory("Result") + "\n")
	b.WriteString(ui.RenderKeyValues([][2]string{
		{"state", string(r.State)},
		{"dialect", r.Dialect},
		{"schema", r.Schema},
		{"seed inserted", strconv.Itoa(r.Seed.Inserted)},
		{"seed updated", strconv.Itoa(r.Seed.Updated)},
		{"resolved", strconv.FormatInt(r.Resolved, 10)},
		{"unresolved", strconv.FormatInt(r.Unresolved, 10)},
		{"kkid NOT NULL", strconv.FormatBool(r.NotNull)},
		{"duration", r.Duration.Round(time.Millisecond).String()},
	}))
	if r.State == migrate.StateCommitted && r.Unresolved > 0 {
		b.WriteString("\n" + ui.RenderLine(ui.StatusWarn,
			fmt.Sprintf("%d rows have no insurer", r.Unresolved),
			"kkid stays nullable; fix the codes and run migrate again") + "\n")
	}
	return b.String()
}
