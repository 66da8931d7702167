package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestParseErrorPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    ErrorPolicy
		wantErr bool
	}{
		{"", PolicyStrict, false},
		{"strict", PolicyStrict, false},
		{"best-effort", PolicyBestEffort, false},
		{"lenient", "", true},
	}
	for _, tt := range tests {
		got, err := ParseErrorPolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseErrorPolicy(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseErrorPolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestWriteManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.manifest.json")

	m := NewManifest("firma", PolicyBestEffort)
	m.Counts[CollectionPersonnel] = 4
	m.WithoutInsurer = []int64{88, 112}
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	// Second write replaces the first
	m.Counts[CollectionPersonnel] = 5
	if err := WriteManifest(path, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got Manifest
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("manifest is not JSON: %v\n%s", err, data)
	}
	if got.Counts[CollectionPersonnel] != 5 || got.ErrorPolicy != "best-effort" || !got.Complete {
		t.Errorf("unexpected manifest: %+v", got)
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}
