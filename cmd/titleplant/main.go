// Command titleplant is the single-binary CLI surface spec.md §6 defines:
// clean, parse-related, download, validate, report, and monitor
// subcommands over one shared index store. Grounded on cmd/app/main.go's
// bootstrap sequence (.env, logger.Init, graceful shutdown on SIGINT/
// SIGTERM) adapted from an always-on HTTP server to a one-shot CLI.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/titleplant/internal/archive"
	"github.com/local/titleplant/internal/config"
	"github.com/local/titleplant/internal/limiter"
	"github.com/local/titleplant/internal/logger"
	mpkg "github.com/local/titleplant/internal/metrics"
	"github.com/local/titleplant/internal/monitor"
	"github.com/local/titleplant/internal/optimizer"
	"github.com/local/titleplant/internal/portal"
	"github.com/local/titleplant/internal/queue"
	"github.com/local/titleplant/internal/queue/stage"
	"github.com/local/titleplant/internal/related"
	"github.com/local/titleplant/internal/scheduler"
	"github.com/local/titleplant/internal/store"
	"github.com/local/titleplant/internal/worker"
)

const (
	exitOK        = 0
	exitConfig    = 1
	exitInterrupt = 130
)

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	if err := logger.Init(logger.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger init: %v\n", err)
		return exitConfig
	}
	defer logger.Close()

	mpkg.Init()

	if len(os.Args) < 2 {
		printUsage()
		return exitConfig
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DB)
	if err != nil {
		log.Error().Err(err).Msg("failed to open index store")
		return exitConfig
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Error().Err(err).Msg("failed to migrate index store")
		return exitConfig
	}

	switch os.Args[1] {
	case "clean":
		return cmdClean(ctx, st, cfg, os.Args[2:])
	case "parse-related":
		return cmdParseRelated(ctx, st, os.Args[2:])
	case "download":
		return cmdDownload(ctx, st, cfg, os.Args[2:])
	case "validate":
		return cmdValidate(ctx, st, os.Args[2:])
	case "report":
		return cmdReport(ctx, st, cfg)
	case "monitor":
		return cmdMonitor(ctx, st, cfg)
	default:
		printUsage()
		return exitConfig
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `usage: titleplant <command> [flags]

commands:
  clean          run the one-shot cleaning pass
  parse-related  parse related_items_raw into structured related_items
  download       run the scheduler against one stage
  validate       read-only recent-activity view
  report         read-only store/archive summary
  monitor        read-only health check of dependencies`)
}

func cmdClean(ctx context.Context, st *store.Store, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("clean", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "report what would change without writing")
	reportOnly := fs.Bool("report-only", false, "alias for --dry-run")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	q := queue.New(st, cfg.Scheduler.MaxAttempts)
	stats, err := q.Clean(ctx, *dryRun || *reportOnly)
	if err != nil {
		log.Error().Err(err).Msg("clean failed")
		return exitConfig
	}

	log.Info().
		Int64("invalid_skipped", stats.InvalidSkipped).
		Int64("excluded_skipped", stats.ExcludedSkipped).
		Int64("duplicate_skipped", stats.DuplicateSkipped).
		Int64("priorities_set", stats.PrioritiesSet).
		Bool("dry_run", *dryRun || *reportOnly).
		Msg("clean complete")
	return exitOK
}

func cmdParseRelated(ctx context.Context, st *store.Store, args []string) int {
	fs := flag.NewFlagSet("parse-related", flag.ContinueOnError)
	dryRun := fs.Bool("dry-run", false, "parse and report without writing")
	batchSize := fs.Int("batch-size", 1000, "rows processed per round trip")
	statsOnly := fs.Bool("stats-only", false, "alias for --dry-run")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	p := related.New(st, *batchSize)
	stats, err := p.Run(ctx, *dryRun || *statsOnly)
	if err != nil {
		log.Error().Err(err).Msg("parse-related failed")
		return exitConfig
	}

	log.Info().
		Int("rows_scanned", stats.RowsScanned).
		Int("rows_updated", stats.RowsUpdated).
		Int("references_out", stats.ReferencesOut).
		Msg("parse-related complete")
	return exitOK
}

func cmdDownload(ctx context.Context, st *store.Store, cfg config.Config, args []string) int {
	fs := flag.NewFlagSet("download", flag.ContinueOnError)
	stageFlag := fs.String("stage", "", "stage name: test, historical-all, small, medium, large, retry-failed")
	workers := fs.Int("workers", cfg.Scheduler.Workers, "number of concurrent download workers (1-20)")
	dryRun := fs.Bool("dry-run", false, "fetch a batch and log it without downloading")
	resume := fs.Bool("resume", false, "resume stats continuity from the stage's checkpoint")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}
	if *stageFlag == "" {
		fmt.Fprintln(os.Stderr, "download: --stage is required")
		return exitConfig
	}
	stageName := stage.Name(*stageFlag)
	if _, ok := stage.Lookup(stageName); !ok {
		fmt.Fprintf(os.Stderr, "download: unknown stage %q\n", *stageFlag)
		return exitConfig
	}
	if *workers < 1 {
		*workers = 1
	}
	if *workers > 20 {
		*workers = 20
	}

	if *dryRun {
		q := queue.New(st, cfg.Scheduler.MaxAttempts)
		batch, err := q.FetchNextBatch(ctx, stageName, (*workers)*cfg.Scheduler.BatchMultiplier)
		if err != nil {
			log.Error().Err(err).Msg("dry-run fetch failed")
			return exitConfig
		}
		log.Info().Int("would_process", len(batch)).Str("stage", string(stageName)).Msg("dry-run: no records downloaded")
		return exitOK
	}

	ar, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		log.Error().Err(err).Msg("failed to open archive")
		return exitConfig
	}
	if err := ar.Bootstrap(ctx); err != nil {
		log.Warn().Err(err).Msg("archive bootstrap failed, continuing")
	}

	clients := worker.Clients{
		Historical: portal.NewHistorical(portal.HistoricalOptions{
			Host:       cfg.Portal.HistoricalMidHost,
			UserAgent:  cfg.Portal.UserAgent,
			Timeout:    cfg.Portal.RequestTimeout,
			MaxRetries: cfg.Portal.MaxRetries,
			RetryDelay: time.Second,
		}),
		Mid: portal.NewMid(portal.MidOptions{
			Host:       cfg.Portal.HistoricalMidHost,
			UserAgent:  cfg.Portal.UserAgent,
			Timeout:    cfg.Portal.RequestTimeout,
			MaxRetries: cfg.Portal.MaxRetries,
			RetryDelay: time.Second,
		}),
	}

	q := queue.New(st, cfg.Scheduler.MaxAttempts)
	opt := optimizer.New(cfg.Scheduler.OptimizerTimeout)
	lim := limiter.New(cfg.Scheduler.RequestRateDelay)

	var adv *limiter.Advisory
	if cfg.Redis.URL != "" {
		adv, err = limiter.NewAdvisory(limiter.AdvisoryOptions{
			RedisURL:    cfg.Redis.URL,
			BaseBackoff: cfg.Redis.BaseBackoff,
			MaxBackoff:  cfg.Redis.MaxBackoff,
		})
		if err != nil {
			log.Warn().Err(err).Msg("advisory layer unavailable, continuing SQL-only")
			adv = nil
		} else {
			defer adv.Close()
		}
	}

	w, err := worker.New(q, clients, ar, opt, lim, adv, os.TempDir())
	if err != nil {
		log.Error().Err(err).Msg("failed to build worker")
		return exitConfig
	}

	sched := scheduler.New(q, w, scheduler.Config{
		Workers:            *workers,
		BatchMultiplier:    cfg.Scheduler.BatchMultiplier,
		CheckpointEvery:    cfg.Scheduler.CheckpointEvery,
		CheckpointDir:      cfg.Scheduler.CheckpointDir,
		StaleThreshold:     cfg.Scheduler.StaleThreshold,
		Resume:             *resume,
		ShutdownDrainExtra: cfg.Scheduler.ShutdownDrainExtra,
	})

	stats, err := sched.Run(ctx, stageName)
	interrupted := ctx.Err() != nil
	if err != nil {
		log.Error().Err(err).Msg("download run ended with an error")
		return exitConfig
	}
	log.Info().
		Int64("completed", stats.Completed).
		Int64("failed", stats.Failed).
		Int64("skipped", stats.Skipped).
		Int64("bytes_downloaded", stats.BytesDownloaded).
		Msg("download run complete")
	if interrupted {
		return exitInterrupt
	}
	return exitOK
}

func cmdValidate(ctx context.Context, st *store.Store, args []string) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	lastHours := fs.Int("last-hours", 24, "window, in hours, for the recent-activity view")
	if err := fs.Parse(args); err != nil {
		return exitConfig
	}

	row := st.DB.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE download_status = 'completed' AND downloaded_at > now() - ($1 || ' hours')::interval),
			count(*) FILTER (WHERE download_status = 'failed' AND updated_at > now() - ($1 || ' hours')::interval),
			count(*) FILTER (WHERE book_page_mismatch AND downloaded_at > now() - ($1 || ' hours')::interval)
	`, *lastHours)

	var completed, failed, mismatched int64
	if err := row.Scan(&completed, &failed, &mismatched); err != nil {
		log.Error().Err(err).Msg("validate query failed")
		return exitConfig
	}

	log.Info().
		Int("last_hours", *lastHours).
		Int64("completed", completed).
		Int64("failed", failed).
		Int64("book_page_mismatches", mismatched).
		Msg("validate")
	return exitOK
}

func cmdReport(ctx context.Context, st *store.Store, cfg config.Config) int {
	q := queue.New(st, cfg.Scheduler.MaxAttempts)
	depth, err := q.Depth(ctx)
	if err != nil {
		log.Error().Err(err).Msg("report: queue depth failed")
		return exitConfig
	}
	for status, n := range depth {
		mpkg.SetQueueDepth(string(status), n)
		log.Info().Str("status", string(status)).Int64("count", n).Msg("queue depth")
	}

	ar, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		log.Warn().Err(err).Msg("report: archive unavailable, skipping storage stats")
		return exitOK
	}
	stats, err := ar.Stats(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("report: archive stats failed")
		return exitOK
	}
	log.Info().
		Int64("total_files", stats.TotalFiles).
		Int64("total_bytes", stats.TotalBytes).
		Interface("by_range", stats.ByRange).
		Msg("archive report")
	return exitOK
}

func cmdMonitor(ctx context.Context, st *store.Store, cfg config.Config) int {
	q := queue.New(st, cfg.Scheduler.MaxAttempts)
	checker := monitor.New(st, q, cfg.Archive)
	summary := checker.Summary(ctx)

	log.Info().
		Bool("store_ok", summary.Store.OK).Str("store_msg", summary.Store.Message).
		Bool("archive_ok", summary.Archive.OK).Str("archive_msg", summary.Archive.Message).
		Interface("queue_depth", summary.Depth).
		Msg("monitor")

	if !summary.Store.OK {
		return exitConfig
	}
	return exitOK
}
