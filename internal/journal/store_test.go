package journal_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"karaokeprep/internal/journal"
	"karaokeprep/internal/testsupport"
)

func openStore(t *testing.T) *journal.Store {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store, err := journal.Open(cfg.JournalPath())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	base := time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)
	entries := []journal.Entry{
		{RunID: "r1", Phase: journal.PhasePrep, Row: 1, Track: "ABBA - Waterloo", OldStatus: "Uploaded", NewStatus: "PrepComplete", Duration: 1500 * time.Millisecond, CreatedAt: base},
		{RunID: "r1", Phase: journal.PhasePrep, Row: 2, Track: "Toto - Africa", OldStatus: "Uploaded", NewStatus: "PrepFailed", FailedStages: []string{"acquire", "separate"}, Error: "acquire: not found", CreatedAt: base.Add(time.Second)},
		{RunID: "r2", Phase: journal.PhaseRender, Row: 1, Track: "ABBA - Waterloo", OldStatus: "PrepComplete", NewStatus: "Completed", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if _, err := store.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	recent, err := store.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 || recent[0].NewStatus != "Completed" || recent[1].Track != "Toto - Africa" {
		t.Fatalf("unexpected recent entries %#v", recent)
	}
	failed := recent[1]
	if failed.Succeeded() || len(failed.FailedStages) != 2 || failed.FailedStages[1] != "separate" {
		t.Fatalf("unexpected failed entry %#v", failed)
	}
	if !failed.CreatedAt.Equal(base.Add(time.Second)) {
		t.Fatalf("unexpected timestamp %v", failed.CreatedAt)
	}

	run, err := store.ForRun(ctx, "r1")
	if err != nil || len(run) != 2 || run[0].Duration != 1500*time.Millisecond {
		t.Fatalf("unexpected run entries %#v (%v)", run, err)
	}
	track, err := store.ForTrack(ctx, "ABBA - Waterloo", 10)
	if err != nil || len(track) != 2 {
		t.Fatalf("unexpected track entries %#v (%v)", track, err)
	}
}

func TestRecordRequiresTrack(t *testing.T) {
	store := openStore(t)
	if _, err := store.Record(context.Background(), journal.Entry{RunID: "x"}); err == nil {
		t.Fatal("expected error for missing track")
	}
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	store, err := journal.Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Record(context.Background(), journal.Entry{RunID: "r", Phase: journal.PhaseRun, Track: "A - B"}); err != nil {
		t.Fatalf("Record: %v", err)
	}
	_ = store.Close()

	reopened, err := journal.Open(path)
	if err != nil {
		if errors.Is(err, journal.ErrSchemaMismatch) {
			t.Fatalf("unexpected schema mismatch: %v", err)
		}
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	entries, err := reopened.Recent(context.Background(), 0)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected persisted entry, got %d (%v)", len(entries), err)
	}
}
