package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/local/titleplant/internal/model"
)

// UpdateRelatedItems writes the parsed related_items column for one row,
// used by C9 after enrichment.
func (s *Store) UpdateRelatedItems(ctx context.Context, id int64, items []model.RelatedItem) error {
	payload, err := MarshalRelatedItems(items)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `UPDATE index_documents SET related_items = $1 WHERE id = $2`, payload, id)
	return err
}

// RowsWithRelatedItemsRaw returns up to limit rows (ordered by id) whose
// related_items_raw is non-null, starting after afterID, for C9's batch
// processing.
func (s *Store) RowsWithRelatedItemsRaw(ctx context.Context, afterID int64, limit int) ([]*model.IndexDocument, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT `+columns+` FROM index_documents
		WHERE related_items_raw IS NOT NULL AND id > $1
		ORDER BY id ASC
		LIMIT $2
	`, afterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*model.IndexDocument
	for rows.Next() {
		d, err := ScanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// BookPageKey identifies a row by (book, page) for C9's bulk cross-reference
// lookup; source is intentionally excluded because related-item references
// in the index do not carry a source of their own.
type BookPageKey struct {
	Book int
	Page int
}

// BulkLookupByBookPage resolves a set of (book, page) pairs to the id of
// the first matching row (lowest id), for C9's exists_in_db/target_id
// enrichment. Pairs with no match are simply absent from the result map.
func (s *Store) BulkLookupByBookPage(ctx context.Context, keys []BookPageKey) (map[BookPageKey]int64, error) {
	if len(keys) == 0 {
		return map[BookPageKey]int64{}, nil
	}
	books := make([]int64, len(keys))
	pages := make([]int64, len(keys))
	for i, k := range keys {
		books[i] = int64(k.Book)
		pages[i] = int64(k.Page)
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT DISTINCT ON (book, page) book, page, id
		FROM index_documents
		WHERE (book, page) IN (
			SELECT unnest($1::bigint[]), unnest($2::bigint[])
		)
		ORDER BY book, page, id ASC
	`, pq.Array(books), pq.Array(pages))
	if err != nil {
		return nil, fmt.Errorf("bulk lookup: %w", err)
	}
	defer rows.Close()

	out := make(map[BookPageKey]int64, len(keys))
	for rows.Next() {
		var book, page, id int64
		if err := rows.Scan(&book, &page, &id); err != nil {
			return nil, err
		}
		out[BookPageKey{Book: int(book), Page: int(page)}] = id
	}
	return out, rows.Err()
}
