package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/fhwedel/firma/internal/config"
	"github.com/fhwedel/firma/internal/export"
	"github.com/fhwedel/firma/internal/firma"
	"github.com/fhwedel/firma/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	GroupID: GroupData,
	Short:   "Copy the migrated database into MongoDB",
	Long: `Replaces the abteilungen, gehalt and personal collections with the current
database content. Each personal document embeds the employee's children,
bonuses and machines and carries the insurer code joined from
krankenversicherung. Requires a migrated schema.`,
	Example: `  firma export --mongo-uri mongodb://localhost:27017 --mongo-db firma
  firma export --dry-run --json`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		policy, err := export.ParseErrorPolicy(flagOrConfig(cmd, "error-policy", "export.error-policy"))
		if err != nil {
			fail(err)
		}
		workers, err := strconv.Atoi(flagOrConfig(cmd, "workers", "export.workers"))
		if err != nil {
			fail(fmt.Errorf("workers must be a number: %w", err))
		}
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		db, store := openStore()
		defer func() { _ = db.Close() }()

		var sink export.DocumentSink
		if dryRun {
			sink = export.NewMemorySink()
		} else {
			mongoSink, err := export.ConnectMongo(rootCtx,
				flagOrConfig(cmd, "mongo-uri", "mongo.uri"),
				flagOrConfig(cmd, "mongo-db", "mongo.database"),
				logger)
			if err != nil {
				fail(err)
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = mongoSink.Close(ctx)
			}()
			sink = mongoSink
		}

		manifest, err := export.New(store, sink, export.Options{Policy: policy, Workers: workers}, logger).Export(rootCtx)
		if err != nil {
			if errors.Is(err, firma.ErrNotMigrated) && !jsonOutput {
				FatalErrorWithHint(err.Error(), "Run 'firma migrate' before exporting")
			}
			fail(err)
		}

		if path, _ := cmd.Flags().GetString("manifest"); path != "" {
			if err := export.WriteManifest(path, manifest); err != nil {
				WarnError("%v", err)
			}
		}

		if jsonOutput {
			outputJSON(manifest)
			return
		}
		fmt.Print(renderManifest(manifest, dryRun))
	},
}

func init() {
	exportCmd.Flags().String("mongo-uri", "", "MongoDB connection URI (default: mongo.uri)")
	exportCmd.Flags().String("mongo-db", "", "MongoDB database (default: mongo.database)")
	exportCmd.Flags().String("error-policy", "", "strict or best-effort (default: export.error-policy)")
	exportCmd.Flags().Int("workers", 0, "Concurrent per-employee loads (default: export.workers)")
	exportCmd.Flags().String("manifest", "", "Write an export manifest (JSON) to this path")
	exportCmd.Flags().Bool("dry-run", false, "Read and assemble every document without connecting to MongoDB")
	rootCmd.AddCommand(exportCmd)
}

// flagOrConfig returns the flag value when it was set on the command line,
// and the config value otherwise.
func flagOrConfig(cmd *cobra.Command, flag, key string) string {
	if cmd.Flags().Changed(flag) {
		return cmd.Flags().Lookup(flag).Value.String()
	}
	return config.GetString(key)
}

func renderManifest(m *export.Manifest, dryRun bool) string {
	title := "Export"
	if dryRun {
		title += " (dry run)"
	}
	out := ui.RenderCategory(title) + "\n"
	for _, c := range []string{export.CollectionPersonnel, export.CollectionDepartments, export.CollectionSalaries} {
		out += ui.RenderLine(ui.StatusPass, c, fmt.Sprintf("%d documents", m.Counts[c])) + "\n"
	}
	if n := len(m.WithoutInsurer); n > 0 {
		out += ui.RenderLine(ui.StatusWarn, "without insurer", fmt.Sprintf("%d employees: %v", n, m.WithoutInsurer)) + "\n"
	}
	for _, s := range m.Skipped {
		out += ui.RenderLine(ui.StatusFail, fmt.Sprintf("pnr %d exported without embedded records", s.Pnr), s.Error) + "\n"
	}
	return out
}
