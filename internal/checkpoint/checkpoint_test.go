package checkpoint

import (
	"testing"
	"time"
)

func TestWriteLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cp := Checkpoint{
		Stage:     "stage-1-small",
		Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		QueueState: QueueState{LastFetchedID: 4200},
		Statistics: Statistics{
			Completed:       10,
			Failed:          1,
			Skipped:         2,
			BytesDownloaded: 123456,
			ByPortal:        map[string]int64{"Historical": 8, "Mid": 2},
			ByErrorKind:     map[string]int64{"timeout": 1},
		},
	}

	if err := Write(dir, cp); err != nil {
		t.Fatalf("write: %v", err)
	}

	loaded, err := Load(dir, "stage-1-small")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a checkpoint, got nil")
	}
	if loaded.QueueState.LastFetchedID != 4200 {
		t.Fatalf("unexpected last_fetched_id: %d", loaded.QueueState.LastFetchedID)
	}
	if loaded.Statistics.Completed != 10 || loaded.Statistics.ByPortal["Historical"] != 8 {
		t.Fatalf("unexpected statistics: %+v", loaded.Statistics)
	}
}

func TestLoadMissingIsNotError(t *testing.T) {
	dir := t.TempDir()
	loaded, err := Load(dir, "never-run")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loaded != nil {
		t.Fatalf("expected nil checkpoint, got %+v", loaded)
	}
}

func TestWriteOverwritesPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	first := Checkpoint{Stage: "stage-0-test", Timestamp: time.Now().UTC(), QueueState: QueueState{LastFetchedID: 1}}
	second := Checkpoint{Stage: "stage-0-test", Timestamp: time.Now().UTC(), QueueState: QueueState{LastFetchedID: 2}}

	if err := Write(dir, first); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := Write(dir, second); err != nil {
		t.Fatalf("write second: %v", err)
	}

	loaded, err := Load(dir, "stage-0-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.QueueState.LastFetchedID != 2 {
		t.Fatalf("expected the latest snapshot (2), got %d", loaded.QueueState.LastFetchedID)
	}
}
