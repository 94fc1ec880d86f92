package history

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := openTestStore(t)

	runID, err := store.BeginRun("batch", 3)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if runID == "" {
		t.Fatal("run id must not be empty")
	}

	if err := store.RecordChunk(runID, 0, "done", "voicelines/voiceline_0001_n.mp3"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.RecordChunk(runID, 1, "error", "synthesis diverged"); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := store.FinishRun(runID, 2, 1); err != nil {
		t.Fatalf("finish: %v", err)
	}

	runs, err := store.Runs(context.Background(), 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	run := runs[0]
	if run.Mode != "batch" || run.Total != 3 || run.Completed != 2 || run.Failed != 1 {
		t.Fatalf("run = %+v", run)
	}
	if run.FinishedAt == "" {
		t.Fatal("finished run must carry a timestamp")
	}

	events, err := store.RunChunks(context.Background(), runID)
	if err != nil {
		t.Fatalf("run chunks: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[1].Status != "error" || events[1].Detail != "synthesis diverged" {
		t.Fatalf("event = %+v", events[1])
	}
}

func TestEmptyRunIDIsNoop(t *testing.T) {
	store := openTestStore(t)
	if err := store.RecordChunk("", 0, "done", ""); err != nil {
		t.Fatalf("record with empty run id: %v", err)
	}
	if err := store.FinishRun("", 0, 0); err != nil {
		t.Fatalf("finish with empty run id: %v", err)
	}
}

func TestRunsLimit(t *testing.T) {
	store := openTestStore(t)
	for i := 0; i < 5; i++ {
		if _, err := store.BeginRun("single", 1); err != nil {
			t.Fatalf("begin: %v", err)
		}
	}

	runs, err := store.Runs(context.Background(), 3)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("expected limit of 3, got %d", len(runs))
	}
}
