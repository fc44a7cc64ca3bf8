package main

import (
	"fmt"
	"strings"
	"testing"

	"karaokeprep/internal/deps"
)

func TestRenderStatusLineNoColor(t *testing.T) {
	got := renderStatusLine("Separate", statusError, "binary missing", false)
	want := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, "Separate:", "[ERROR] binary missing")
	if got != want {
		t.Fatalf("renderStatusLine mismatch\n got: %q\nwant: %q", got, want)
	}
}

func TestRenderStatusLineWithColor(t *testing.T) {
	got := renderStatusLine("Lock", statusOK, "free", true)
	if !strings.HasPrefix(got, ansiGreen) {
		t.Fatalf("expected green prefix, got %q", got)
	}
	if !strings.HasSuffix(got, ansiReset) {
		t.Fatalf("expected reset suffix, got %q", got)
	}
}

func TestDependencyLine(t *testing.T) {
	tests := []struct {
		status deps.Status
		kind   statusKind
		msg    string
	}{
		{deps.Status{Name: "Separator", Command: "/usr/bin/karaoke-separate", Available: true}, statusOK, "/usr/bin/karaoke-separate"},
		{deps.Status{Name: "Separator", Command: "karaoke-separate", Detail: `binary "karaoke-separate" not found`}, statusError, `binary "karaoke-separate" not found`},
		{deps.Status{Name: "Downloader", Command: "yt-dlp", Optional: true, Detail: "missing"}, statusWarn, "missing (optional)"},
	}
	for _, tc := range tests {
		kind, msg := dependencyLine(tc.status)
		if kind != tc.kind || msg != tc.msg {
			t.Fatalf("dependencyLine(%+v) = %v %q, want %v %q", tc.status, kind, msg, tc.kind, tc.msg)
		}
	}
}

func TestDisplayStage(t *testing.T) {
	if got := displayStage("separate"); got != "Separate" {
		t.Fatalf("displayStage = %q", got)
	}
	if got := displayStage("title_card"); got != "Title Card" {
		t.Fatalf("displayStage = %q", got)
	}
}

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable([]string{"Row", "Status"}, [][]string{{"1"}}, []columnAlignment{alignRight})
	// Headers render upper-cased.
	if !strings.Contains(out, "ROW") || !strings.Contains(out, "STATUS") || !strings.Contains(out, "1") {
		t.Fatalf("unexpected table:\n%s", out)
	}
	if renderTable(nil, nil, nil) != "" {
		t.Fatal("expected empty output without headers")
	}
}
