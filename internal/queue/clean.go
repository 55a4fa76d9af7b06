package queue

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/local/titleplant/internal/doctype"
)

// typeResolver backfills document_type from instrument_type_raw during the
// cleaning pass, for rows the importer left unclassified.
var typeResolver = doctype.NewResolver(doctype.DefaultMinSimilarity)

// CleanStats summarizes one run of Clean, for the `clean` CLI subcommand's
// report.
type CleanStats struct {
	InvalidSkipped  int64
	ExcludedSkipped int64
	DuplicateSkipped int64
	PrioritiesSet   int64
}

// Clean runs the one-shot, idempotent cleaning pass spec.md §4.5 and §8 law
// 1 describe: invalid rows and rows routed to an excluded portal are marked
// skipped, duplicate (book, page, source) rows are collapsed to the earliest
// by file_date (falling back to import_date) keeping exactly one candidate,
// and every surviving pending row gets a download_priority. Safe to run
// repeatedly: already-skipped or already-prioritized rows are left alone.
func (m *Manager) Clean(ctx context.Context, dryRun bool) (CleanStats, error) {
	var stats CleanStats

	if dryRun {
		return m.cleanDryRun(ctx)
	}

	n, err := m.exec(ctx, `
		UPDATE index_documents
		SET download_status = 'skipped', download_error = 'invalid_record', updated_at = now()
		WHERE download_status = 'pending'
		  AND (book IS NULL OR book <= 0 OR page IS NULL OR page <= 0)
	`)
	if err != nil {
		return stats, fmt.Errorf("clean invalid: %w", err)
	}
	stats.InvalidSkipped = n

	n, err = m.exec(ctx, `
		UPDATE index_documents
		SET download_status = 'skipped', download_error = 'excluded_portal', updated_at = now()
		WHERE download_status = 'pending'
		  AND book IS NOT NULL AND book >= 3972
	`)
	if err != nil {
		return stats, fmt.Errorf("clean excluded portal: %w", err)
	}
	stats.ExcludedSkipped = n

	// Dedup: among pending rows sharing (book, page, source), keep the one
	// ranked first (earliest file_date, then earliest import_date, then
	// lowest id as a deterministic tiebreaker) and skip the rest.
	n, err = m.exec(ctx, `
		WITH ranked AS (
			SELECT id,
				row_number() OVER (
					PARTITION BY book, page, source
					ORDER BY file_date ASC NULLS LAST, import_date ASC NULLS LAST, id ASC
				) AS rnk
			FROM index_documents
			WHERE download_status = 'pending' AND book IS NOT NULL AND page IS NOT NULL
		)
		UPDATE index_documents d
		SET download_status = 'skipped', download_error = 'duplicate', updated_at = now()
		FROM ranked
		WHERE d.id = ranked.id AND ranked.rnk > 1
	`)
	if err != nil {
		return stats, fmt.Errorf("clean duplicates: %w", err)
	}
	stats.DuplicateSkipped = n

	n, err = m.assignPriorities(ctx)
	if err != nil {
		return stats, fmt.Errorf("assign priorities: %w", err)
	}
	stats.PrioritiesSet = n

	return stats, nil
}

// assignPriorities sets download_priority on pending rows that don't have
// one yet: 1 for wills/testaments, 2 for book < 238 (historical), 3 for
// 238 <= book < 3972 (mid), 4 otherwise. Will/testament detection requires
// reading instrument_type_parsed in Go (doctype.IsWillOrTestament), so rows
// are read into memory and updated one by one rather than expressed as a
// single UPDATE. Rows whose
// document_type the importer left unset are also backfilled here, from
// instrument_type_raw via typeResolver.DocumentType, so the priority rule
// and the archive's RemotePath classification agree on the same value.
func (m *Manager) assignPriorities(ctx context.Context) (int64, error) {
	rows, err := m.st.DB.QueryContext(ctx, `
		SELECT id, book, instrument_type_raw, instrument_type_parsed, document_type
		FROM index_documents
		WHERE download_status = 'pending' AND download_priority IS NULL
	`)
	if err != nil {
		return 0, err
	}
	type candidate struct {
		id           int64
		priority     int
		backfillType string // empty: document_type already set, nothing to backfill
	}
	var candidates []candidate
	for rows.Next() {
		var id int64
		var book *int
		var raw, parsed, docType *string
		if err := rows.Scan(&id, &book, &raw, &parsed, &docType); err != nil {
			rows.Close()
			return 0, err
		}

		effectiveType := docType
		backfill := ""
		if (docType == nil || *docType == "") && raw != nil && *raw != "" {
			backfill = typeResolver.DocumentType(*raw)
			effectiveType = &backfill
		}

		p := priorityFor(book, parsed, effectiveType)
		candidates = append(candidates, candidate{id: id, priority: p, backfillType: backfill})
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	rows.Close()

	var updated int64
	for _, c := range candidates {
		var res sql.Result
		var err error
		if c.backfillType != "" {
			res, err = m.st.DB.ExecContext(ctx, `
				UPDATE index_documents
				SET download_priority = $2, document_type = COALESCE(NULLIF(document_type, ''), $3), updated_at = now()
				WHERE id = $1 AND download_priority IS NULL
			`, c.id, c.priority, c.backfillType)
		} else {
			res, err = m.st.DB.ExecContext(ctx, `
				UPDATE index_documents SET download_priority = $2, updated_at = now()
				WHERE id = $1 AND download_priority IS NULL
			`, c.id, c.priority)
		}
		if err != nil {
			return updated, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return updated, err
		}
		updated += n
	}
	return updated, nil
}

// priorityFor implements spec.md §4.5's priority rule: 1=will/testament,
// 2=book<238, 3=238<=book<3972, 4=everything else.
func priorityFor(book *int, parsed, docType *string) int {
	if (parsed != nil && doctype.IsWillOrTestament(*parsed)) ||
		(docType != nil && doctype.IsWillOrTestament(*docType)) {
		return 1
	}
	if book == nil {
		return 4
	}
	switch {
	case *book < 238:
		return 2
	case *book < 3972:
		return 3
	default:
		return 4
	}
}

func (m *Manager) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	res, err := m.st.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// cleanDryRun reports what Clean would do without mutating any row.
func (m *Manager) cleanDryRun(ctx context.Context) (CleanStats, error) {
	var stats CleanStats

	row := m.st.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM index_documents
		WHERE download_status = 'pending' AND (book IS NULL OR book <= 0 OR page IS NULL OR page <= 0)
	`)
	if err := row.Scan(&stats.InvalidSkipped); err != nil {
		return stats, err
	}

	row = m.st.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM index_documents
		WHERE download_status = 'pending' AND book IS NOT NULL AND book >= 3972
	`)
	if err := row.Scan(&stats.ExcludedSkipped); err != nil {
		return stats, err
	}

	row = m.st.DB.QueryRowContext(ctx, `
		WITH ranked AS (
			SELECT id,
				row_number() OVER (
					PARTITION BY book, page, source
					ORDER BY file_date ASC NULLS LAST, import_date ASC NULLS LAST, id ASC
				) AS rnk
			FROM index_documents
			WHERE download_status = 'pending' AND book IS NOT NULL AND page IS NOT NULL
		)
		SELECT count(*) FROM ranked WHERE rnk > 1
	`)
	if err := row.Scan(&stats.DuplicateSkipped); err != nil {
		return stats, err
	}

	row = m.st.DB.QueryRowContext(ctx, `
		SELECT count(*) FROM index_documents WHERE download_status = 'pending' AND download_priority IS NULL
	`)
	if err := row.Scan(&stats.PrioritiesSet); err != nil {
		return stats, err
	}

	return stats, nil
}
