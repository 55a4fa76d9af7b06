// Package logger wires up the process-wide zerolog logger: rotating file
// output via lumberjack, an optional pretty console writer, and optional
// batched forwarding to Axiom. Grounded on internal/logger/logger.go from
// the teacher repo, restructured around an explicit writer-building step and
// a configurable service tag (instead of a hardcoded one) since this module
// is no longer a single aidispatcher process.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls Init. Service defaults to "titleplant" and is stamped on
// every event forwarded to Axiom, so a shared Axiom dataset can distinguish
// this pipeline's logs from other tenants.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
	Service    string

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration
}

var batcher *axiomBatcher

// Init builds the process-wide zerolog logger from opts and installs it as
// zerolog/log's package-level logger, which is what every other package in
// this module logs through.
func Init(opts Options) error {
	if opts.Service == "" {
		opts.Service = "titleplant"
	}

	writers, err := buildWriters(opts)
	if err != nil {
		return err
	}

	zerolog.TimeFieldFormat = time.RFC3339
	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	log.Logger = zerolog.New(io.MultiWriter(writers...)).Level(lvl).With().Timestamp().Logger()
	return nil
}

// buildWriters assembles the fan-out destinations Init multiplexes into:
// a rotating file (if opts.File is set), stdout or a pretty console writer,
// and an Axiom forwarder if credentials are present and reachable.
func buildWriters(opts Options) ([]io.Writer, error) {
	var writers []io.Writer

	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   opts.Compress,
		})
	}

	if opts.Pretty {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		writers = append(writers, os.Stdout)
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		b, err := newAxiomBatcher(opts.AxiomAPIKey, opts.AxiomOrgID, opts.AxiomDataset, opts.AxiomFlush)
		if err != nil {
			fmt.Fprintf(os.Stderr, "axiom forwarding disabled: %v\n", err)
		} else {
			batcher = b
			writers = append(writers, &axiomForwarder{batcher: b, service: opts.Service})
		}
	}

	return writers, nil
}

// Close flushes and stops the Axiom batcher, if one was started. Safe to
// call even when Axiom forwarding was never enabled.
func Close() {
	if batcher != nil {
		_ = batcher.Close()
	}
}

// axiomForwarder turns each zerolog JSON line back into an Axiom event,
// dropping debug-level lines to keep the forwarded volume down.
type axiomForwarder struct {
	batcher *axiomBatcher
	service string
}

func (f *axiomForwarder) Write(p []byte) (int, error) {
	var fields map[string]interface{}
	if err := json.Unmarshal(p, &fields); err != nil {
		fields = map[string]interface{}{"message": string(p), "level": "info"}
	}
	if lvl, _ := fields["level"].(string); lvl == "debug" {
		return len(p), nil
	}
	fields["service"] = f.service
	if _, ok := fields[ingest.TimestampField]; !ok {
		fields[ingest.TimestampField] = time.Now()
	}
	f.batcher.enqueue(axiom.Event(fields))
	return len(p), nil
}

// axiomBatcher accumulates events in memory and ships them to Axiom on a
// fixed interval or once a batch fills up, whichever comes first.
type axiomBatcher struct {
	client  *axiom.Client
	dataset string
	events  chan axiom.Event
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

const (
	axiomBatchSize     = 200
	axiomQueueCapacity = 1000
)

func newAxiomBatcher(token, orgID, dataset string, flushEvery time.Duration) (*axiomBatcher, error) {
	if dataset == "" {
		dataset = "dev_titleplant"
	}

	clientOpts := []axiom.Option{axiom.SetToken(token)}
	if orgID != "" {
		clientOpts = append(clientOpts, axiom.SetOrganizationID(orgID))
	}
	client, err := axiom.NewClient(clientOpts...)
	if err != nil {
		return nil, err
	}

	if flushEvery <= 0 {
		flushEvery = 10 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &axiomBatcher{
		client:  client,
		dataset: dataset,
		events:  make(chan axiom.Event, axiomQueueCapacity),
		cancel:  cancel,
	}
	b.wg.Add(1)
	go b.run(ctx, flushEvery)
	return b, nil
}

// enqueue drops the event if the channel is full rather than blocking the
// logging caller.
func (b *axiomBatcher) enqueue(ev axiom.Event) {
	select {
	case b.events <- ev:
	default:
	}
}

func (b *axiomBatcher) run(ctx context.Context, flushEvery time.Duration) {
	defer b.wg.Done()

	ticker := time.NewTicker(flushEvery)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, axiomBatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		ingestCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		_, _ = b.client.IngestEvents(ingestCtx, b.dataset, batch)
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-ticker.C:
			flush()
		case ev := <-b.events:
			batch = append(batch, ev)
			if len(batch) >= axiomBatchSize {
				flush()
			}
		}
	}
}

func (b *axiomBatcher) Close() error {
	b.cancel()
	b.wg.Wait()
	return nil
}
