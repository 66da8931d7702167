package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fhwedel/firma/internal/config"
	"github.com/fhwedel/firma/internal/logging"
	"github.com/fhwedel/firma/internal/telemetry"
)

var (
	dialectFlag string
	dsnFlag     string
	schemaFlag  string
	logFileFlag string
	jsonOutput  bool
	verboseFlag bool // Enable verbose/debug output
	quietFlag   bool // Suppress non-essential output

	// Signal-aware context for graceful cancellation
	rootCtx    context.Context
	rootCancel context.CancelFunc

	logger    = zap.NewNop()
	logCloser io.Closer
)

// Command group IDs for help output
const (
	GroupMigration = "migration"
	GroupData      = "data"
	GroupSetup     = "setup"
)

func init() {
	// Initialize viper configuration
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to initialize config: %v\n", err)
	}

	rootCmd.AddGroup(
		&cobra.Group{ID: GroupMigration, Title: "Insurer Migration:"},
		&cobra.Group{ID: GroupData, Title: "Personnel Data:"},
		&cobra.Group{ID: GroupSetup, Title: "Setup & Configuration:"},
	)

	rootCmd.PersistentFlags().StringVar(&dialectFlag, "dialect", "", "SQL dialect: mysql or postgres (default: db.dialect)")
	rootCmd.PersistentFlags().StringVar(&dsnFlag, "dsn", "", "Driver connection string (default: db.dsn, or built from db.host etc.)")
	rootCmd.PersistentFlags().StringVar(&schemaFlag, "schema", "", "Schema holding the firma tables (default: database name on MySQL, public on PostgreSQL)")
	rootCmd.PersistentFlags().StringVar(&logFileFlag, "log-file", "", "Write JSON logs to this file (rotated)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose/debug output")
	rootCmd.PersistentFlags().BoolVarP(&quietFlag, "quiet", "q", false, "Suppress non-essential output (errors only)")

	rootCmd.Flags().BoolP("version", "V", false, "Print version information")
}

var rootCmd = &cobra.Command{
	Use:           "firma",
	Short:         "firma - personnel database migration and maintenance",
	Long:          `Migrates personal.krankenkasse to the krankenversicherung reference table and maintains the firma personnel database.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Run: func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("firma version %s (%s)\n", Version, Build)
			return
		}
		_ = cmd.Help() // Help() always returns nil for cobra commands
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupSignalContext()
		applyViperOverrides(cmd)
		applyVerbosityFlags()
		setupLogging()
		if err := telemetry.Init(rootCtx, "firma", Version); err != nil {
			WarnError("%v", err)
		}
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func setupSignalContext() {
	rootCtx, rootCancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// applyViperOverrides merges config file and environment values into flags
// that were not set on the command line. Flags that were set are pushed into
// viper so that config reads see them.
// Priority: flags > viper (config file + env vars) > defaults.
func applyViperOverrides(cmd *cobra.Command) {
	if !cmd.Flags().Changed("json") {
		jsonOutput = config.GetBool("json")
	}
	if cmd.Flags().Changed("dialect") {
		config.Set("db.dialect", dialectFlag)
	}
	if cmd.Flags().Changed("dsn") {
		config.Set("db.dsn", dsnFlag)
	}
	if cmd.Flags().Changed("schema") {
		config.Set("migrate.schema", schemaFlag)
	} else {
		schemaFlag = config.GetString("migrate.schema")
	}
	if cmd.Flags().Changed("log-file") {
		config.Set("log.file", logFileFlag)
	}
	if isConfigCommand(cmd) {
		return
	}
	if err := config.Validate(); err != nil {
		FatalErrorWithHint(err.Error(), "Run 'firma config list' to see the effective settings")
	}
}

// isConfigCommand reports whether cmd is "firma config" or one of its
// subcommands, which must work even when the configuration is invalid.
func isConfigCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == configCmd {
			return true
		}
	}
	return false
}

// applyVerbosityFlags propagates --verbose and --quiet to the output helpers.
func applyVerbosityFlags() {
	logging.SetVerbose(verboseFlag)
	logging.SetQuiet(quietFlag)
}

func setupLogging() {
	l, closer, err := logging.New(logging.Options{
		Level:     config.GetString("log.level"),
		File:      config.GetString("log.file"),
		MaxSizeMB: config.GetInt("log.max-size-mb"),
		Verbose:   verboseFlag || logging.Enabled(),
		Quiet:     quietFlag,
	})
	if err != nil {
		FatalError("failed to set up logging: %v", err)
	}
	logger, logCloser = l, closer
}

func shutdown() {
	telemetry.Shutdown(context.Background())
	_ = logger.Sync() // Best effort: stderr sync fails on some terminals
	if logCloser != nil {
		_ = logCloser.Close()
	}
	if rootCancel != nil {
		rootCancel()
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fail(err)
	}
}
