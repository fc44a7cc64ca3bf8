package stage_test

import (
	"context"
	"strings"
	"testing"

	"karaokeprep/internal/naming"
	"karaokeprep/internal/stage"
)

type namedStage string

func (s namedStage) Name() string                             { return string(s) }
func (namedStage) Outputs(*stage.Job) []string                { return nil }
func (namedStage) DependsOn() []string                        { return nil }
func (namedStage) Execute(context.Context, *stage.Job) error  { return nil }
func (s namedStage) HealthCheck(context.Context) stage.Health { return stage.Healthy(string(s)) }

func TestRegistrySelectPreservesCallerOrder(t *testing.T) {
	reg := stage.NewRegistry(namedStage("acquire"), namedStage("separate"), namedStage("compose"))

	selected, err := reg.Select([]string{"compose", " Acquire "})
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if len(selected) != 2 || selected[0].Name() != "compose" || selected[1].Name() != "acquire" {
		t.Fatalf("unexpected selection %v", selected)
	}

	if _, err := reg.Select([]string{"acquire", "mastering"}); err == nil || !strings.Contains(err.Error(), "mastering") {
		t.Fatalf("expected unknown stage error, got %v", err)
	}
	if got := strings.Join(reg.Names(), ","); got != "acquire,separate,compose" {
		t.Fatalf("unexpected names %q", got)
	}
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate registration")
		}
	}()
	stage.NewRegistry(namedStage("lyrics"), namedStage("lyrics"))
}

func TestJobPaths(t *testing.T) {
	id, err := naming.NewIdentity("ABBA", "Waterloo")
	if err != nil {
		t.Fatal(err)
	}
	job := stage.NewJob(id, "waterloo.wav", "/out")
	if job.Dir != "/out/ABBA - Waterloo" {
		t.Fatalf("unexpected dir %q", job.Dir)
	}
	got := job.Path(naming.Output{Tag: naming.TagLyrics, Ext: "lrc"})
	if got != "/out/ABBA - Waterloo/ABBA - Waterloo (Lyrics).lrc" {
		t.Fatalf("unexpected path %q", got)
	}
}
