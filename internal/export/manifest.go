package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrorPolicy decides what Export does when one employee's embedded
// records cannot be loaded.
type ErrorPolicy string

const (
	// PolicyStrict aborts the export before anything is written.
	PolicyStrict ErrorPolicy = "strict"
	// PolicyBestEffort exports the employee without embeddings and records
	// the failure in the manifest.
	PolicyBestEffort ErrorPolicy = "best-effort"

	DefaultErrorPolicy = PolicyStrict
)

// ParseErrorPolicy maps a config value to an ErrorPolicy. Empty means the default.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch ErrorPolicy(s) {
	case "":
		return DefaultErrorPolicy, nil
	case PolicyStrict, PolicyBestEffort:
		return ErrorPolicy(s), nil
	default:
		return "", fmt.Errorf("unknown export error policy %q (want %s or %s)", s, PolicyStrict, PolicyBestEffort)
	}
}

// SkippedRecord is an employee whose embedded records failed to load.
type SkippedRecord struct {
	Pnr   int64  `json:"pnr"`
	Error string `json:"error"`
}

// Manifest summarizes one export run.
type Manifest struct {
	ExportedAt     time.Time        `json:"exported_at"`
	Schema         string           `json:"schema"`
	ErrorPolicy    string           `json:"error_policy"`
	Counts         map[string]int64 `json:"counts"`
	WithoutInsurer []int64          `json:"without_insurer,omitempty"`
	Skipped        []SkippedRecord  `json:"skipped,omitempty"`
	Complete       bool             `json:"complete"`
}

// NewManifest creates a new export manifest
func NewManifest(schema string, policy ErrorPolicy) *Manifest {
	return &Manifest{
		ExportedAt:  time.Now().UTC(),
		Schema:      schema,
		ErrorPolicy: string(policy),
		Counts:      make(map[string]int64),
		Complete:    true, // Will be set to false if any embedding is missing
	}
}

// WriteManifest writes manifest as indented JSON to path, replacing any
// existing file atomically.
func WriteManifest(path string, manifest *Manifest) error {
	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	// Create temp file for atomic write
	tempFile, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("failed to create temp manifest file: %w", err)
	}
	tempPath := tempFile.Name()
	defer func() {
		_ = tempFile.Close()    // Best effort: may already be closed before rename
		_ = os.Remove(tempPath) // Best effort: may already be renamed
	}()

	if _, err := tempFile.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close manifest: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}
	return nil
}
