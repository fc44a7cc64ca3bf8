package services_test

import (
	"context"
	"testing"

	"karaokeprep/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTrack(ctx, "ABBA - Waterloo")
	ctx = services.WithStage(ctx, "separate")
	ctx = services.WithPhase(ctx, "phase1")
	ctx = services.WithItemIndex(ctx, 3)
	ctx = services.WithRequestID(ctx, "req-123")

	if track, ok := services.TrackFromContext(ctx); !ok || track != "ABBA - Waterloo" {
		t.Fatalf("unexpected track: %v %v", track, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "separate" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if phase, ok := services.PhaseFromContext(ctx); !ok || phase != "phase1" {
		t.Fatalf("unexpected phase: %v %v", phase, ok)
	}
	if idx, ok := services.ItemIndexFromContext(ctx); !ok || idx != 3 {
		t.Fatalf("unexpected item index: %v %v", idx, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.ItemIndexFromContext(ctx); ok {
		t.Fatal("expected no item index")
	}
}
