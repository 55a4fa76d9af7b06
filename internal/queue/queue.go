// Package queue implements C6, the Queue Manager: stateless views over C1
// that hand out batches of pending records by stage/priority and transition
// records through the status state machine (spec.md §4.5).
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/local/titleplant/internal/model"
	"github.com/local/titleplant/internal/queue/stage"
	"github.com/local/titleplant/internal/store"
)

// Manager is C6, backed by a *store.Store.
type Manager struct {
	st          *store.Store
	maxAttempts int
}

// New builds a Manager. maxAttempts is MAX_ATTEMPTS (default 5 per spec.md §4.5).
func New(st *store.Store, maxAttempts int) *Manager {
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &Manager{st: st, maxAttempts: maxAttempts}
}

// FetchNextBatch selects up to limit pending rows matching the stage's
// predicate, ordered by (priority asc, book asc, page asc). Pure read: the
// returned rows are candidates only, another worker may claim them first.
func (m *Manager) FetchNextBatch(ctx context.Context, s stage.Name, limit int) ([]*model.IndexDocument, error) {
	cfg, ok := stage.Lookup(s)
	if !ok {
		return nil, fmt.Errorf("unknown stage %q", s)
	}

	query := fmt.Sprintf(`
		SELECT id, source, source_file,
			book, page, instrument_number, gin, book_volume,
			instrument_type_raw, instrument_type_parsed, document_type,
			file_date, num_pages,
			party_type, party_seq, searched_name, cross_party_name, grantor_party, grantee_party,
			description, location, direction, legals, sub_div, block, lot, sec, town, rng, square, remarks,
			ne_ne, ne_nw, ne_se, ne_sw, nw_ne, nw_nw, nw_se, nw_sw,
			se_ne, se_nw, se_se, se_sw, sw_ne, sw_nw, sw_se, sw_sw,
			address, street_name, city, zip, parcel_num, parcel_id, ppin, patent_num,
			download_status, download_priority, download_attempts, download_error,
			downloaded_at, updated_at, import_date, gcs_path,
			actual_book, actual_page, book_page_mismatch,
			related_items_raw, related_items
		FROM index_documents
		WHERE %s
		ORDER BY download_priority ASC NULLS LAST, book ASC, page ASC
		LIMIT %s
	`, cfg.Where, limitClause(cfg.Cap, limit))

	var args []interface{}
	if cfg.NeedsMaxAttemptsParam() {
		args = append(args, m.maxAttempts)
	}

	rows, err := m.st.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch_next_batch: %w", err)
	}
	defer rows.Close()

	var out []*model.IndexDocument
	for rows.Next() {
		d, err := store.ScanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func limitClause(cap, requested int) string {
	if cap > 0 && requested > cap {
		requested = cap
	}
	if requested <= 0 {
		requested = 100
	}
	return fmt.Sprintf("%d", requested)
}

// MarkInProgress is the CAS transition pending -> in_progress, incrementing
// download_attempts. Returns false (no error) if another worker already
// claimed the row.
func (m *Manager) MarkInProgress(ctx context.Context, id int64) (bool, error) {
	res, err := m.st.DB.ExecContext(ctx, `
		UPDATE index_documents
		SET download_status = 'in_progress', download_attempts = download_attempts + 1, updated_at = now()
		WHERE id = $1 AND download_status = 'pending'
	`, id)
	if err != nil {
		return false, fmt.Errorf("mark_in_progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkCompleted unconditionally transitions a row to completed.
func (m *Manager) MarkCompleted(ctx context.Context, id int64, gcsPath string, actualBook, actualPage *int, mismatch bool) error {
	_, err := m.st.DB.ExecContext(ctx, `
		UPDATE index_documents
		SET download_status = 'completed', download_error = NULL, gcs_path = $2,
			actual_book = $3, actual_page = $4, book_page_mismatch = $5,
			downloaded_at = now(), updated_at = now()
		WHERE id = $1
	`, id, gcsPath, actualBook, actualPage, mismatch)
	if err != nil {
		return fmt.Errorf("mark_completed: %w", err)
	}
	return nil
}

// MarkFailed records an error and, if retry is true and download_attempts is
// still under MAX_ATTEMPTS, re-queues the row to pending; otherwise it lands
// in the terminal failed status.
func (m *Manager) MarkFailed(ctx context.Context, id int64, errMsg string, retry bool) error {
	truncated := model.TruncateError(errMsg)

	if retry {
		res, err := m.st.DB.ExecContext(ctx, `
			UPDATE index_documents
			SET download_status = 'pending', download_error = $2, updated_at = now()
			WHERE id = $1 AND download_attempts < $3
		`, id, truncated, m.maxAttempts)
		if err != nil {
			return fmt.Errorf("mark_failed (retry): %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 1 {
			return nil
		}
		// attempts exhausted: fall through to terminal failed
	}

	_, err := m.st.DB.ExecContext(ctx, `
		UPDATE index_documents
		SET download_status = 'failed', download_error = $2, updated_at = now()
		WHERE id = $1
	`, id, truncated)
	if err != nil {
		return fmt.Errorf("mark_failed (terminal): %w", err)
	}
	return nil
}

// MarkSkipped unconditionally transitions a row to skipped with a reason.
func (m *Manager) MarkSkipped(ctx context.Context, id int64, reason string) error {
	_, err := m.st.DB.ExecContext(ctx, `
		UPDATE index_documents
		SET download_status = 'skipped', download_error = $2, updated_at = now()
		WHERE id = $1
	`, id, model.TruncateError(reason))
	if err != nil {
		return fmt.Errorf("mark_skipped: %w", err)
	}
	return nil
}

// ResetStale returns any row stuck in in_progress past threshold back to
// pending, and reports how many rows were recovered. Run at scheduler
// startup and periodically thereafter (spec.md §4.5/§5).
func (m *Manager) ResetStale(ctx context.Context, threshold time.Duration) (int64, error) {
	cutoff := time.Now().Add(-threshold)
	res, err := m.st.DB.ExecContext(ctx, `
		UPDATE index_documents
		SET download_status = 'pending', updated_at = now()
		WHERE download_status = 'in_progress' AND updated_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset_stale: %w", err)
	}
	return res.RowsAffected()
}

// Depth returns the current row count per download_status, for metrics and
// the `report`/`monitor` CLI views.
func (m *Manager) Depth(ctx context.Context) (map[model.DownloadStatus]int64, error) {
	rows, err := m.st.DB.QueryContext(ctx, `
		SELECT download_status, count(*) FROM index_documents GROUP BY download_status
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[model.DownloadStatus]int64{}
	for rows.Next() {
		var s string
		var n int64
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[model.DownloadStatus(s)] = n
	}
	return out, rows.Err()
}
