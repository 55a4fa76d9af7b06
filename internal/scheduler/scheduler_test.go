package scheduler

import (
	"testing"

	"github.com/local/titleplant/internal/model"
	"github.com/local/titleplant/internal/worker"
)

func TestStatsRecordTalliesByStatusPortalAndErrorKind(t *testing.T) {
	s := newStats()
	s.record(worker.Outcome{Status: model.StatusCompleted, Portal: model.PortalHistorical, OptimizedSize: 1000})
	s.record(worker.Outcome{Status: model.StatusCompleted, Portal: model.PortalMid, OptimizedSize: 2000})
	s.record(worker.Outcome{Status: model.StatusFailed, Portal: model.PortalMid, ErrorKind: "timeout"})
	s.record(worker.Outcome{Status: model.StatusSkipped, ErrorKind: "not_found"})

	snap := s.snapshot()
	if snap.Completed != 2 || snap.Failed != 1 || snap.Skipped != 1 {
		t.Fatalf("unexpected counts: %+v", snap)
	}
	if snap.BytesDownloaded != 3000 {
		t.Fatalf("expected 3000 bytes downloaded, got %d", snap.BytesDownloaded)
	}
	if snap.ByPortal["Historical"] != 1 || snap.ByPortal["Mid"] != 2 {
		t.Fatalf("unexpected portal breakdown: %+v", snap.ByPortal)
	}
	if snap.ByErrorKind["timeout"] != 1 || snap.ByErrorKind["not_found"] != 1 {
		t.Fatalf("unexpected error kind breakdown: %+v", snap.ByErrorKind)
	}
}

func TestStatsTotalSumsAllTerminalOutcomes(t *testing.T) {
	s := newStats()
	s.record(worker.Outcome{Status: model.StatusCompleted})
	s.record(worker.Outcome{Status: model.StatusFailed})
	s.record(worker.Outcome{Status: model.StatusSkipped})
	if got := s.total(); got != 3 {
		t.Fatalf("expected total 3, got %d", got)
	}
}

func TestMaxID(t *testing.T) {
	if maxID(5, 3) != 5 {
		t.Fatal("expected 5")
	}
	if maxID(3, 5) != 5 {
		t.Fatal("expected 5")
	}
}
