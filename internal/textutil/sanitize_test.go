package textutil

import (
	"errors"
	"testing"
)

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ABBA", "ABBA"},
		{"  AC/DC  ", "AC_DC"},
		{"What? Why: Now*", "What_ Why_ Now"},
		{"Too    many\tspaces", "Too many spaces"},
		{"under___scores", "under_scores"},
		{"...leading and trailing..", "leading and trailing"},
		{"_-_edge-_", "edge"},
		{"Beyoncé", "Beyoncé"},
		{"line\nbreak", "line break"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSanitizeFileNameIsFixedPoint(t *testing.T) {
	inputs := []string{
		"ABBA - Waterloo",
		" a//b\\\\c ",
		"__x  __  y__",
		"Résumé <live>",
		"???",
		". _ - .",
	}
	for _, in := range inputs {
		once := SanitizeFileName(in)
		twice := SanitizeFileName(once)
		if once != twice {
			t.Errorf("not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	if got := SanitizeToken("Audio Separation"); got != "audio_separation" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := SanitizeToken("  "); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}

func TestCollapseRepeatsHonoursLimit(t *testing.T) {
	got, err := CollapseRepeats("a________b", "_", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a_b" {
		t.Fatalf("unexpected collapse %q", got)
	}

	_, err = CollapseRepeats("a________b", "_", 1)
	if !errors.Is(err, ErrIterationLimitExceeded) {
		t.Fatalf("expected iteration limit error, got %v", err)
	}
	var limitErr *IterationLimitExceededError
	if !errors.As(err, &limitErr) || limitErr.Limit != 1 {
		t.Fatalf("expected typed limit error, got %#v", err)
	}
}
