package ui

import (
	"bytes"
	"reflect"
	"testing"
)

func TestPagerArgv(t *testing.T) {
	t.Setenv("FIRMA_NO_PAGER", "")
	t.Setenv("FIRMA_PAGER", "")
	t.Setenv("PAGER", "")
	if got := pagerArgv(); !reflect.DeepEqual(got, []string{"less"}) {
		t.Errorf("default pager = %q, want less", got)
	}
	t.Setenv("PAGER", "more")
	if got := pagerArgv(); !reflect.DeepEqual(got, []string{"more"}) {
		t.Errorf("pager = %q, want more", got)
	}
	t.Setenv("FIRMA_PAGER", "bat -p")
	if got := pagerArgv(); !reflect.DeepEqual(got, []string{"bat", "-p"}) {
		t.Errorf("pager = %q, want FIRMA_PAGER split into args", got)
	}
	t.Setenv("FIRMA_NO_PAGER", "1")
	if got := pagerArgv(); got != nil {
		t.Errorf("pager = %q with FIRMA_NO_PAGER set", got)
	}
}

func TestFits(t *testing.T) {
	tests := []struct {
		content string
		height  int
		want    bool
	}{
		{"a\nb\n", 3, true},
		{"a\nb\nc\n", 3, false},
		{"a", 0, false},
		{"", 1, true},
	}
	for _, tt := range tests {
		if got := fits(tt.content, tt.height); got != tt.want {
			t.Errorf("fits(%q, %d) = %v, want %v", tt.content, tt.height, got, tt.want)
		}
	}
}

func TestLineCount(t *testing.T) {
	for in, want := range map[string]int{"": 0, "\n": 0, "a": 1, "a\nb": 2, "a\nb\n": 2} {
		if got := lineCount(in); got != want {
			t.Errorf("lineCount(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestToPagerWritesThroughWhenNotATerminal(t *testing.T) {
	t.Setenv("FIRMA_PAGER", "false")
	var buf bytes.Buffer
	dump := "kkid  kuerzel\n1     aok\n"
	if err := ToPager(dump, PagerOptions{Out: &buf, Height: 1}); err != nil {
		t.Fatalf("ToPager: %v", err)
	}
	if buf.String() != dump {
		t.Errorf("output = %q, want %q", buf.String(), dump)
	}

	buf.Reset()
	if err := ToPager(dump, PagerOptions{Out: &buf, NoPager: true}); err != nil {
		t.Fatalf("ToPager(NoPager): %v", err)
	}
	if buf.String() != dump {
		t.Errorf("NoPager output = %q", buf.String())
	}
}
