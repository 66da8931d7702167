package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/fhwedel/firma/internal/firma"
	"github.com/fhwedel/firma/internal/migrate"
)

// FatalError writes an error message to stderr and exits with code 1.
// Use this for fatal errors that prevent the command from completing.
//
// Example:
//
//	if err := store.RaiseSalary(ctx, 10, "it1"); err != nil {
//	    FatalError("%v", err)
//	}
func FatalError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	exit(1)
}

// FatalErrorWithHint writes an error message with a hint to stderr and exits.
//
// Example:
//
//	FatalErrorWithHint("personal has not been migrated", "Run 'firma migrate' first")
func FatalErrorWithHint(message, hint string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
	fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
	exit(1)
}

// WarnError writes a warning message to stderr and returns.
func WarnError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Warning: "+format+"\n", args...)
}

// exit flushes logs and telemetry, since os.Exit skips PersistentPostRun.
func exit(code int) {
	shutdown()
	os.Exit(code)
}

// errorCode classifies err for --json output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, migrate.ErrSeedConflict):
		return "seed_conflict"
	case errors.Is(err, migrate.ErrInvalidSeed):
		return "invalid_seed"
	case errors.Is(err, migrate.ErrInvalidPlan):
		return "invalid_plan"
	case errors.Is(err, migrate.ErrConstraintViolation):
		return "constraint_violation"
	case errors.Is(err, migrate.ErrIntrospection):
		return "introspection"
	case errors.Is(err, firma.ErrNotMigrated):
		return "not_migrated"
	case errors.Is(err, firma.ErrNoSuchTable):
		return "no_such_table"
	case errors.Is(err, firma.ErrInvalidPersonal):
		return "invalid_input"
	default:
		return ""
	}
}

// hintFor returns an actionable suggestion for well-known errors.
func hintFor(err error) string {
	switch {
	case errors.Is(err, firma.ErrNotMigrated):
		return "Run 'firma migrate' first"
	case errors.Is(err, migrate.ErrSeedConflict):
		return "The reference table maps an id or code differently than the seed set; fix the seed file or the table"
	case errors.Is(err, migrate.ErrConstraintViolation):
		return "Some personal rows reference a kkid missing from krankenversicherung; run 'firma status' to inspect"
	case errors.Is(err, firma.ErrNoSuchTable):
		return "Check the table name and --schema"
	default:
		return ""
	}
}

// fail reports err in the current output mode and exits.
func fail(err error) {
	if jsonOutput {
		outputJSONError(err, errorCode(err))
	}
	if hint := hintFor(err); hint != "" {
		FatalErrorWithHint(err.Error(), hint)
	}
	FatalError("%v", err)
}

// outputJSON outputs data as pretty-printed JSON to stdout.
func outputJSON(v interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		exit(1)
	}
}

// outputJSONError outputs an error as JSON to stderr and exits with code 1.
func outputJSONError(err error, code string) {
	errObj := map[string]string{"error": err.Error()}
	if code != "" {
		errObj["code"] = code
	}
	encoder := json.NewEncoder(os.Stderr)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(errObj) // Best effort: if JSON encoding fails, error is already printed to stderr
	exit(1)
}
