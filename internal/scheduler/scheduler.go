// Package scheduler implements C8: the N-worker pool that drains a stage's
// queue batch by batch, checkpointing stats periodically and shutting down
// cooperatively on operator interrupt. Grounded on
// internal/dispatcher/worker.go's pool-of-goroutines-over-a-stop-channel
// shape and original_source/madison_county_doc_puller/staged_downloader.py's
// / parallel_staged_downloader.py's stage loop (fetch batch, submit to
// pool, checkpoint every K, stop when the batch is empty or the stage cap
// is hit).
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/titleplant/internal/checkpoint"
	mpkg "github.com/local/titleplant/internal/metrics"
	"github.com/local/titleplant/internal/model"
	"github.com/local/titleplant/internal/queue"
	"github.com/local/titleplant/internal/queue/stage"
	"github.com/local/titleplant/internal/worker"
)

// Config holds the scheduler's tunables, sourced from config.SchedulerConfig.
type Config struct {
	Workers            int
	BatchMultiplier    int
	CheckpointEvery    int
	CheckpointDir      string
	StaleThreshold     time.Duration
	Resume             bool
	ShutdownDrainExtra time.Duration
}

// Stats is the shared, mutex-guarded statistics accumulator spec.md §5
// requires: every worker outcome folds into it under one lock.
type Stats struct {
	mu              sync.Mutex
	Completed       int64
	Failed          int64
	Skipped         int64
	BytesDownloaded int64
	ByPortal        map[string]int64
	ByErrorKind     map[string]int64
}

func newStats() *Stats {
	return &Stats{ByPortal: map[string]int64{}, ByErrorKind: map[string]int64{}}
}

func (s *Stats) record(out worker.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch out.Status {
	case model.StatusCompleted:
		s.Completed++
		s.BytesDownloaded += out.OptimizedSize
	case model.StatusFailed:
		s.Failed++
	case model.StatusSkipped:
		s.Skipped++
	}
	if out.Portal != "" {
		s.ByPortal[string(out.Portal)]++
	}
	if out.ErrorKind != "" {
		s.ByErrorKind[out.ErrorKind]++
	}
}

func (s *Stats) snapshot() checkpoint.Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	byPortal := make(map[string]int64, len(s.ByPortal))
	for k, v := range s.ByPortal {
		byPortal[k] = v
	}
	byErrorKind := make(map[string]int64, len(s.ByErrorKind))
	for k, v := range s.ByErrorKind {
		byErrorKind[k] = v
	}
	return checkpoint.Statistics{
		Completed:       s.Completed,
		Failed:          s.Failed,
		Skipped:         s.Skipped,
		BytesDownloaded: s.BytesDownloaded,
		ByPortal:        byPortal,
		ByErrorKind:     byErrorKind,
	}
}

func (s *Stats) total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Completed + s.Failed + s.Skipped
}

// Scheduler drives a worker.Worker pool over one stage's queue.
type Scheduler struct {
	q      *queue.Manager
	w      *worker.Worker
	cfg    Config
	stats  *Stats
	cursor int64
}

// New builds a Scheduler. A non-positive Workers is clamped to 5, matching
// config.FromEnv's default; the caller is expected to have already clamped
// to [1, 20] per spec.md §4.7.
func New(q *queue.Manager, w *worker.Worker, cfg Config) *Scheduler {
	if cfg.Workers <= 0 {
		cfg.Workers = 5
	}
	if cfg.BatchMultiplier <= 0 {
		cfg.BatchMultiplier = 10
	}
	if cfg.CheckpointEvery <= 0 {
		cfg.CheckpointEvery = 100
	}
	if cfg.CheckpointDir == "" {
		cfg.CheckpointDir = "checkpoints"
	}
	if cfg.StaleThreshold <= 0 {
		cfg.StaleThreshold = 30 * time.Minute
	}
	if cfg.ShutdownDrainExtra <= 0 {
		cfg.ShutdownDrainExtra = 10 * time.Second
	}
	return &Scheduler{q: q, w: w, cfg: cfg, stats: newStats()}
}

// Run drains s stage-batch by stage-batch until the queue reports an empty
// batch, the stage's overall item cap is reached, or ctx is canceled,
// returning the final stats snapshot. Stale in_progress rows are reset at
// startup and again after every batch.
//
// Shutdown semantics (spec.md §5): ctx cancellation stops new batches from
// being fetched and new records from being submitted, but records already
// submitted to the pool keep running against their own grace-period context
// (ShutdownDrainExtra) instead of ctx itself, so in-flight HTTP fetches and
// S3 uploads are allowed to reach a terminal status rather than being
// hard-canceled mid-request. Workers observe shutdown between records, not
// mid-HTTP.
func (s *Scheduler) Run(ctx context.Context, st stage.Name) (checkpoint.Statistics, error) {
	if n, err := s.q.ResetStale(ctx, s.cfg.StaleThreshold); err != nil {
		return checkpoint.Statistics{}, fmt.Errorf("reset_stale: %w", err)
	} else if n > 0 {
		log.Info().Int64("recovered", n).Msg("reset_stale recovered crashed in_progress rows")
		mpkg.AddStaleRecovered(int(n))
	}

	if s.cfg.Resume {
		if cp, err := checkpoint.Load(s.cfg.CheckpointDir, string(st)); err != nil {
			log.Warn().Err(err).Msg("failed to load checkpoint for --resume, starting fresh")
		} else if cp != nil {
			s.cursor = cp.QueueState.LastFetchedID
			s.stats.Completed = cp.Statistics.Completed
			s.stats.Failed = cp.Statistics.Failed
			s.stats.Skipped = cp.Statistics.Skipped
			s.stats.BytesDownloaded = cp.Statistics.BytesDownloaded
			for k, v := range cp.Statistics.ByPortal {
				s.stats.ByPortal[k] = v
			}
			for k, v := range cp.Statistics.ByErrorKind {
				s.stats.ByErrorKind[k] = v
			}
			log.Info().Str("stage", string(st)).Int64("last_fetched_id", s.cursor).Msg("resumed from checkpoint")
		}
	}

	batchSize := s.cfg.Workers * s.cfg.BatchMultiplier
	stageCfg, _ := stage.Lookup(st)

	for {
		if ctx.Err() != nil {
			break
		}

		limit := batchSize
		if stageCfg.Cap > 0 {
			remaining := int64(stageCfg.Cap) - s.stats.total()
			if remaining <= 0 {
				break
			}
			if remaining < int64(limit) {
				limit = int(remaining)
			}
		}

		batch, err := s.q.FetchNextBatch(ctx, st, limit)
		if err != nil {
			return s.stats.snapshot(), fmt.Errorf("fetch_next_batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		s.runBatch(ctx, st, batch)

		if err := s.checkpointNow(st); err != nil {
			log.Error().Err(err).Msg("checkpoint write failed, continuing")
		}

		if n, err := s.q.ResetStale(ctx, s.cfg.StaleThreshold); err != nil {
			log.Error().Err(err).Msg("periodic reset_stale failed, continuing")
		} else if n > 0 {
			mpkg.AddStaleRecovered(int(n))
		}
	}

	if err := s.checkpointNow(st); err != nil {
		log.Error().Err(err).Msg("final checkpoint write failed")
	}

	return s.stats.snapshot(), nil
}

// runBatch submits every record in batch to a bounded pool of s.cfg.Workers
// goroutines and waits for them all to settle, checkpointing every
// CheckpointEvery completions along the way (spec.md §4.7 step 5).
//
// In-flight workers run against workCtx, a context detached from ctx's
// cancellation (though not its values) so an operator interrupt doesn't
// hard-cancel a live fetch or upload. Once ctx is canceled, a watcher grants
// ShutdownDrainExtra for in-flight work to finish before force-canceling
// workCtx too, bounding how long shutdown can hang.
func (s *Scheduler) runBatch(ctx context.Context, st stage.Name, batch []*model.IndexDocument) {
	workCtx, workCancel := context.WithCancel(context.WithoutCancel(ctx))
	defer workCancel()

	drainDone := make(chan struct{})
	defer close(drainDone)
	go func() {
		select {
		case <-ctx.Done():
			select {
			case <-time.After(s.cfg.ShutdownDrainExtra):
				workCancel()
			case <-drainDone:
			}
		case <-drainDone:
		}
	}()

	jobs := make(chan *model.IndexDocument)
	var wg sync.WaitGroup
	var completedSinceCheckpoint int64
	var mu sync.Mutex

	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for d := range jobs {
				out, err := s.w.Process(workCtx, d)
				if err != nil {
					if err == worker.ErrNotClaimed {
						continue
					}
					log.Error().Int64("id", d.ID).Err(err).Msg("worker.Process returned an unexpected error")
					continue
				}
				s.stats.record(out)

				mu.Lock()
				s.cursor = maxID(s.cursor, d.ID)
				completedSinceCheckpoint++
				due := completedSinceCheckpoint >= int64(s.cfg.CheckpointEvery)
				if due {
					completedSinceCheckpoint = 0
				}
				mu.Unlock()

				if due {
					if err := s.checkpointNow(st); err != nil {
						log.Error().Err(err).Msg("periodic checkpoint write failed, continuing")
					}
				}
			}
		}()
	}

feed:
	for _, d := range batch {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- d:
		}
	}
	close(jobs)
	wg.Wait()
}

// checkpointNow writes the current stats snapshot and queue cursor to disk.
func (s *Scheduler) checkpointNow(st stage.Name) error {
	cp := checkpoint.Checkpoint{
		Stage:      string(st),
		Timestamp:  timeNow(),
		QueueState: checkpoint.QueueState{LastFetchedID: s.cursor},
		Statistics: s.stats.snapshot(),
	}
	if err := checkpoint.Write(s.cfg.CheckpointDir, cp); err != nil {
		return err
	}
	mpkg.IncCheckpointWritten()
	return nil
}

// timeNow is a seam so tests could stub the clock; production always uses
// the real one.
var timeNow = time.Now

func maxID(a, b int64) int64 {
	if b > a {
		return b
	}
	return a
}
