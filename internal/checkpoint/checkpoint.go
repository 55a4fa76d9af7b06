// Package checkpoint implements C8's checkpoint file: a complete JSON
// snapshot written periodically during a download run, for stats
// continuity and operator visibility across a `--resume`. The store
// remains the sole authority for queue state (spec.md §4.7) — a checkpoint
// is never consulted to decide what to fetch next, only to report where a
// run left off. Grounded on
// original_source/madison_county_doc_puller/staged_downloader.py's
// checkpoint JSON file, one per stage under a checkpoints/ directory.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// QueueState records the queue cursor at checkpoint time.
type QueueState struct {
	LastFetchedID int64 `json:"last_fetched_id"`
}

// Statistics is the stats snapshot embedded in a checkpoint, mirroring the
// scheduler's in-memory accumulator.
type Statistics struct {
	Completed        int64            `json:"completed"`
	Failed           int64            `json:"failed"`
	Skipped          int64            `json:"skipped"`
	BytesDownloaded  int64            `json:"bytes_downloaded"`
	ByPortal         map[string]int64 `json:"by_portal"`
	ByErrorKind      map[string]int64 `json:"by_error_kind"`
}

// Checkpoint is the full JSON document written to disk, per spec.md §6's
// shape: {stage, timestamp, queue_state, statistics}.
type Checkpoint struct {
	Stage      string     `json:"stage"`
	Timestamp  time.Time  `json:"timestamp"`
	QueueState QueueState `json:"queue_state"`
	Statistics Statistics `json:"statistics"`
}

// pathFor builds the checkpoint file path for a stage: one file per stage,
// overwritten on every write (a checkpoint is a full snapshot, not a log).
func pathFor(dir, stage string) string {
	return filepath.Join(dir, fmt.Sprintf("checkpoint-%s.json", stage))
}

// Write atomically persists cp to dir, creating dir if needed. The write is
// temp-file-then-rename so a crash mid-write never leaves a truncated
// checkpoint behind for the next --resume to read.
func Write(dir string, cp Checkpoint) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	final := pathFor(dir, cp.Stage)
	tmp, err := os.CreateTemp(dir, "checkpoint-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp checkpoint: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename checkpoint into place: %w", err)
	}
	return nil
}

// Load reads the newest checkpoint for stage, for `--resume`'s stats
// continuity. A missing checkpoint is not an error: it just means this is
// the stage's first run.
func Load(dir, stage string) (*Checkpoint, error) {
	data, err := os.ReadFile(pathFor(dir, stage))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("parse checkpoint: %w", err)
	}
	return &cp, nil
}
