package deps

import (
	"os"
	"path/filepath"
	"testing"

	"karaokeprep/internal/testsupport"
)

func TestCheckBinaries(t *testing.T) {
	binDir := t.TempDir()
	present := filepath.Join(binDir, "present")
	script := []byte("#!/bin/sh\nexit 0\n")
	if err := os.WriteFile(present, script, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	reqs := []Requirement{
		{Name: "Present", Command: present},
		{Name: "Missing", Command: "clearly-not-present-binary"},
		{Name: "Blank", Command: "  ", Optional: true},
	}

	results := CheckBinaries(reqs)
	if len(results) != len(reqs) {
		t.Fatalf("expected %d results, got %d", len(reqs), len(results))
	}

	if !results[0].Available {
		t.Fatalf("expected first requirement to be available, got %#v", results[0])
	}
	if results[0].Detail != "" {
		t.Fatalf("unexpected detail for available dependency: %s", results[0].Detail)
	}

	if results[1].Available {
		t.Fatalf("expected missing binary to be unavailable")
	}
	if results[1].Detail == "" {
		t.Fatalf("expected detail message for missing binary")
	}
	if results[1].Command != "clearly-not-present-binary" {
		t.Fatalf("unexpected command recorded: %s", results[1].Command)
	}

	if results[2].Detail != "command not configured" {
		t.Fatalf("unexpected detail for blank command: %q", results[2].Detail)
	}

	missing := Missing(results)
	if len(missing) != 1 || missing[0].Name != "Missing" {
		t.Fatalf("expected only the required missing binary, got %#v", missing)
	}
}

func TestEngineRequirementsFollowConfig(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Engines.Separator = []string{"my-separator", "{input}"}

	reqs := EngineRequirements(cfg)
	if len(reqs) != 6 {
		t.Fatalf("expected 6 requirements, got %d", len(reqs))
	}
	if !reqs[0].Optional {
		t.Fatal("expected downloader to be optional")
	}
	var found bool
	for _, r := range reqs {
		if r.Name == "Separator" {
			found = r.Command == "my-separator"
		}
	}
	if !found {
		t.Fatalf("expected separator command from config, got %#v", reqs)
	}
}

func TestEngineRequirementsWithStubbedBinaries(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	for _, status := range CheckBinaries(EngineRequirements(cfg)) {
		if !status.Available {
			t.Fatalf("expected stubbed %s to resolve, got %q", status.Name, status.Detail)
		}
	}
}

func TestCheckDirectories(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Paths.OutputDir = filepath.Join(testsupport.BaseDir(cfg), "not-yet", "tracks")

	byName := make(map[string]Status)
	for _, s := range CheckDirectories(cfg) {
		byName[s.Name] = s
	}
	if s := byName["Output directory"]; !s.Available || s.Detail != "will be created" {
		t.Fatalf("expected creatable output dir, got %#v", s)
	}
	if s := byName["Organised directory"]; !s.Available {
		t.Fatalf("expected organised dir available, got %#v", s)
	}

	cfg.Paths.OrganisedDir = filepath.Join(testsupport.BaseDir(cfg), "absent")
	for _, s := range CheckDirectories(cfg) {
		if s.Name == "Organised directory" && s.Available {
			t.Fatal("expected missing organised dir to be reported")
		}
	}
}
