// Package worker implements C7, the Download Worker: the single-record
// pipeline the scheduler's pool runs concurrently — lease, fetch, optimize,
// check, archive, settle. Grounded on internal/dispatcher's worker loop
// (internal/dispatcher/worker.go, failover.go) for its shape: a typed-error
// policy table instead of an if-ladder, structured zerolog events at each
// step, and "never crash the caller, always settle the record."
//
// Unlike the dispatcher's multi-attempt provider failover, this pipeline
// makes a single attempt per lease (spec.md §4.6); retries happen across
// leases, through the queue's pending/failed state machine, not inside one
// worker call.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/titleplant/internal/archive"
	"github.com/local/titleplant/internal/limiter"
	mpkg "github.com/local/titleplant/internal/metrics"
	"github.com/local/titleplant/internal/model"
	"github.com/local/titleplant/internal/optimizer"
	"github.com/local/titleplant/internal/optimizer/pdfcheck"
	"github.com/local/titleplant/internal/portal"
	"github.com/local/titleplant/internal/queue"
	"github.com/local/titleplant/internal/router"
)

// ErrNotClaimed is returned when MarkInProgress loses its CAS race; the
// scheduler should simply drop the record from this batch, not count it as
// a failure.
var ErrNotClaimed = errors.New("worker: record claimed by another worker")

// Clients resolves a portal to the client that serves it. The New portal
// has no client: it is excluded from download entirely (spec.md §4.1).
type Clients struct {
	Historical portal.Client
	Mid        portal.Client
}

func (c Clients) forBook(book int) (portal.Client, model.Portal, error) {
	p, ok := router.RouteOK(book)
	if !ok {
		return nil, "", fmt.Errorf("book %d does not route to a portal", book)
	}
	switch p {
	case model.PortalHistorical:
		return c.Historical, p, nil
	case model.PortalMid:
		return c.Mid, p, nil
	default:
		return nil, p, fmt.Errorf("portal %s is excluded from download", p)
	}
}

// Outcome summarizes what happened to one record, for the scheduler's
// shared statistics accumulator.
type Outcome struct {
	ID               int64
	Portal           model.Portal
	Status           model.DownloadStatus
	ErrorKind        string
	OriginalSize     int64
	OptimizedSize    int64
	BookPageMismatch bool
}

// Worker runs the C7 pipeline for one record at a time. It holds no
// per-record state and is safe to call concurrently from multiple
// goroutines sharing the same limiter and archive client.
type Worker struct {
	q       *queue.Manager
	clients Clients
	ar      *archive.Archive
	opt     *optimizer.Optimizer
	lim     *limiter.RateLimiter
	adv     *limiter.Advisory
	tempDir string
}

// leaseTTL bounds how long a cross-process lease hint lives in the advisory
// layer; chosen to match the scheduler's default stale-in-progress threshold.
const leaseTTL = 30 * time.Minute

// New builds a Worker. tempDir holds per-record scratch PDFs before upload;
// it is created if missing. adv may be nil, in which case every advisory
// check is a no-op and the worker falls back to SQL-only leasing.
func New(q *queue.Manager, clients Clients, ar *archive.Archive, opt *optimizer.Optimizer, lim *limiter.RateLimiter, adv *limiter.Advisory, tempDir string) (*Worker, error) {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	return &Worker{q: q, clients: clients, ar: ar, opt: opt, lim: lim, adv: adv, tempDir: tempDir}, nil
}

// Process runs the single-attempt pipeline for d. It settles the record's
// status in the queue before returning in every case except ErrNotClaimed,
// where another worker already owns it, and a failed queue write
// (mark_in_progress or mark_completed), which is returned as an error.
func (w *Worker) Process(ctx context.Context, d *model.IndexDocument) (out Outcome, err error) {
	out = Outcome{ID: d.ID}
	start := time.Now()
	defer func() {
		result := string(out.Status)
		if result == "" {
			result = "not_claimed"
		}
		mpkg.ObserveRecord(string(out.Portal), result, time.Since(start))
		if out.ErrorKind != "" {
			mpkg.IncError(out.ErrorKind)
		}
		mpkg.AddBytes("original", int(out.OriginalSize))
		mpkg.AddBytes("optimized", int(out.OptimizedSize))
	}()

	if d.Book != nil && *d.Book > 0 {
		page := 0
		if d.Page != nil {
			page = *d.Page
		}
		if w.adv.IsLeased(ctx, *d.Book, page, string(d.Source)) {
			// A sibling process almost certainly already claimed this row via
			// CAS; skip the wasted mark_in_progress round trip.
			return out, ErrNotClaimed
		}
	}

	claimed, err := w.q.MarkInProgress(ctx, d.ID)
	if err != nil {
		return out, fmt.Errorf("mark_in_progress: %w", err)
	}
	if !claimed {
		return out, ErrNotClaimed
	}

	if err := w.lim.Wait(ctx); err != nil {
		return w.settleFailed(ctx, d.ID, out, "timeout", err, true)
	}

	if d.Book == nil || *d.Book <= 0 {
		// The cleaning pass should have already skipped these; a worker
		// seeing one anyway means it was fetched outside a cleaned stage.
		return w.settleSkipped(ctx, d.ID, out, "invalid_record", fmt.Errorf("record has no routable book"))
	}

	client, p, err := w.clients.forBook(*d.Book)
	out.Portal = p
	if err != nil {
		return w.settleSkipped(ctx, d.ID, out, "excluded_portal", err)
	}

	key := lookupKeyFor(d)
	w.adv.MarkLeased(ctx, *d.Book, key.Page, string(d.Source), leaseTTL)

	if w.adv.IsCoolingDown(ctx, string(p)) {
		return w.settleFailed(ctx, d.ID, out, "timeout", fmt.Errorf("portal %s is in advisory cooldown", p), true)
	}

	log.Debug().Int64("id", d.ID).Str("portal", string(p)).Int("book", *d.Book).Msg("fetching document")

	res, err := client.Fetch(ctx, key)
	if err != nil {
		w.adv.OpenCooldown(ctx, string(p))
		return w.settleFetchError(ctx, d.ID, out, err)
	}
	w.adv.CloseCooldown(ctx, string(p))
	out.OriginalSize = int64(len(res.PDFBytes))

	expectedPage := 0
	if d.Page != nil {
		expectedPage = *d.Page
	}
	mismatch := res.Metadata.ActualBook != *d.Book || res.Metadata.ActualPage != expectedPage
	out.BookPageMismatch = mismatch
	if mismatch {
		log.Warn().Int64("id", d.ID).
			Int("expected_book", *d.Book).Int("expected_page", expectedPage).
			Int("actual_book", res.Metadata.ActualBook).Int("actual_page", res.Metadata.ActualPage).
			Msg("book/page mismatch reported by portal")
	}

	tmpPath := filepath.Join(w.tempDir, fmt.Sprintf("titleplant-%d-%s.pdf", d.ID, uuid.NewString()))
	if err := os.WriteFile(tmpPath, res.PDFBytes, 0o644); err != nil {
		return w.settleFailed(ctx, d.ID, out, "db_error", fmt.Errorf("write temp pdf: %w", err), true)
	}
	defer os.Remove(tmpPath)

	optResult, err := w.opt.OptimizeInPlace(ctx, tmpPath)
	if err != nil {
		// optimizer_failure is soft per spec.md §7: fall back to the
		// original bytes already on disk rather than failing the record.
		log.Warn().Int64("id", d.ID).Err(err).Msg("optimizer_failure, falling back to original bytes")
		optResult = optimizer.Result{OriginalSize: out.OriginalSize, OptimizedSize: out.OriginalSize, Skipped: true}
	}
	out.OptimizedSize = optResult.OptimizedSize

	if _, err := pdfcheck.Open(tmpPath); err != nil {
		return w.settleFailed(ctx, d.ID, out, "parse_error", fmt.Errorf("post-optimize sanity check: %w", err), true)
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return w.settleFailed(ctx, d.ID, out, "db_error", fmt.Errorf("read optimized pdf: %w", err), true)
	}

	docType := ""
	if d.DocumentType != nil {
		docType = *d.DocumentType
	}
	remotePath := archive.RemotePath(archive.PortalRange(*d.Book), docType, res.Metadata.ActualBook, res.Metadata.ActualPage)
	meta := archive.Metadata{
		Book:             *d.Book,
		Page:             expectedPage,
		InstrumentNumber: key.InstrumentNumber,
		DocumentType:     docType,
		OriginalSize:     out.OriginalSize,
		OptimizedSize:    out.OptimizedSize,
	}

	uploaded, err := w.ar.Upload(ctx, remotePath, data, meta)
	if err != nil {
		return w.settleFailed(ctx, d.ID, out, "upload_failure", err, true)
	}

	actualBook, actualPage := res.Metadata.ActualBook, res.Metadata.ActualPage
	if err := w.q.MarkCompleted(ctx, d.ID, uploaded.URI, &actualBook, &actualPage, mismatch); err != nil {
		out.ErrorKind = "db_error"
		return out, fmt.Errorf("mark_completed: %w", err)
	}

	out.Status = model.StatusCompleted
	return out, nil
}

// settleFetchError maps a Client.Fetch failure onto the policy table:
// transient kinds retry through mark_failed, kinds that mean "this record
// has no document to find" skip outright.
func (w *Worker) settleFetchError(ctx context.Context, id int64, out Outcome, err error) (Outcome, error) {
	var fe *portal.FetchError
	if errors.As(err, &fe) {
		switch fe.Kind {
		case portal.KindNotFound, portal.KindNoImageAvailable:
			return w.settleSkipped(ctx, id, out, string(fe.Kind), err)
		default:
			return w.settleFailed(ctx, id, out, string(fe.Kind), err, true)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return w.settleFailed(ctx, id, out, "timeout", err, true)
	}
	return w.settleFailed(ctx, id, out, "network", err, true)
}

func (w *Worker) settleFailed(ctx context.Context, id int64, out Outcome, kind string, cause error, retry bool) (Outcome, error) {
	out.ErrorKind = kind
	out.Status = model.StatusFailed
	log.Error().Int64("id", id).Str("kind", kind).Err(cause).Msg("record failed")
	if err := w.q.MarkFailed(ctx, id, cause.Error(), retry); err != nil {
		return out, fmt.Errorf("mark_failed: %w", err)
	}
	return out, nil
}

func (w *Worker) settleSkipped(ctx context.Context, id int64, out Outcome, reason string, cause error) (Outcome, error) {
	out.ErrorKind = reason
	out.Status = model.StatusSkipped
	log.Warn().Int64("id", id).Str("reason", reason).Err(cause).Msg("record skipped")
	if err := w.q.MarkSkipped(ctx, id, fmt.Sprintf("%s: %v", reason, cause)); err != nil {
		return out, fmt.Errorf("mark_skipped: %w", err)
	}
	return out, nil
}

// lookupKeyFor builds the portal lookup key, preferring instrument_number
// per spec.md §4.2/§4.6.
func lookupKeyFor(d *model.IndexDocument) portal.LookupKey {
	key := portal.LookupKey{}
	if d.InstrumentNumber != nil {
		key.InstrumentNumber = *d.InstrumentNumber
	}
	if d.Book != nil {
		key.Book = *d.Book
	}
	if d.Page != nil {
		key.Page = *d.Page
	}
	if d.DocumentType != nil {
		key.DocTypeCode = *d.DocumentType
	}
	return key
}
