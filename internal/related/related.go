// Package related implements C9, the Related-Items Parser: an offline batch
// pass that turns each row's free-text related_items_raw cross-references
// into structured, cross-referenced JSON. Grounded on
// original_source/index_database/parse_related_items.py and
// analyze_related_items.py for the "INSTRUMENT bk:BOOK/PAGE" format and the
// book/page cross-reference step. The regex also accepts whitespace after
// the slash ("bk:501 /  13").
package related

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/local/titleplant/internal/model"
	"github.com/local/titleplant/internal/store"
)

// refRe matches one "INSTRUMENT bk:BOOK/PAGE" cross-reference, tolerant of
// the whitespace variants seen in the source data ("bk:500/12", "bk:501 /13").
var refRe = regexp.MustCompile(`(\d+)\s+bk:(\d+)\s*/\s*(\d+)`)

// Stats summarizes one Run call, for the CLI's `--stats-only` view.
type Stats struct {
	RowsScanned   int
	RowsUpdated   int
	ReferencesOut int
}

// Parser runs C9 against a *store.Store.
type Parser struct {
	st        *store.Store
	batchSize int
}

// New builds a Parser. batchSize bounds how many rows are read per round
// trip; every distinct (book, page) pair referenced by those rows is then
// resolved in one bulk lookup. Non-positive uses 1000 (the original's default).
func New(st *store.Store, batchSize int) *Parser {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &Parser{st: st, batchSize: batchSize}
}

// parseRow extracts the deduplicated set of references from one row's raw
// text, in first-seen order.
func parseRow(raw string) []model.RelatedItem {
	matches := refRe.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[[3]int]bool, len(matches))
	items := make([]model.RelatedItem, 0, len(matches))
	for _, m := range matches {
		inst, err1 := strconv.Atoi(m[1])
		book, err2 := strconv.Atoi(m[2])
		page, err3 := strconv.Atoi(m[3])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}
		key := [3]int{inst, book, page}
		if seen[key] {
			continue
		}
		seen[key] = true
		items = append(items, model.RelatedItem{InstrumentNumber: inst, Book: book, Page: page})
	}
	return items
}

// Run processes every row with a non-null related_items_raw, batchSize rows
// at a time, and writes the enriched related_items JSON back. When dryRun is
// true, nothing is written and Stats.RowsUpdated reflects what would have
// changed.
func (p *Parser) Run(ctx context.Context, dryRun bool) (Stats, error) {
	var stats Stats
	var afterID int64

	for {
		rows, err := p.st.RowsWithRelatedItemsRaw(ctx, afterID, p.batchSize)
		if err != nil {
			return stats, fmt.Errorf("rows_with_related_items_raw: %w", err)
		}
		if len(rows) == 0 {
			break
		}

		parsed := make(map[int64][]model.RelatedItem, len(rows))
		var lookupKeys []store.BookPageKey
		seenKeys := map[store.BookPageKey]bool{}

		for _, d := range rows {
			stats.RowsScanned++
			if d.RelatedItemsRaw == nil {
				continue
			}
			items := parseRow(*d.RelatedItemsRaw)
			parsed[d.ID] = items
			for _, it := range items {
				k := store.BookPageKey{Book: it.Book, Page: it.Page}
				if !seenKeys[k] {
					seenKeys[k] = true
					lookupKeys = append(lookupKeys, k)
				}
			}
		}

		targets, err := p.st.BulkLookupByBookPage(ctx, lookupKeys)
		if err != nil {
			return stats, fmt.Errorf("bulk_lookup_by_book_page: %w", err)
		}

		for _, d := range rows {
			items := parsed[d.ID]
			for i := range items {
				k := store.BookPageKey{Book: items[i].Book, Page: items[i].Page}
				if id, ok := targets[k]; ok {
					id := id
					items[i].ExistsInDB = true
					items[i].TargetID = &id
				}
			}
			stats.ReferencesOut += len(items)
			if dryRun {
				stats.RowsUpdated++
				continue
			}
			if err := p.st.UpdateRelatedItems(ctx, d.ID, items); err != nil {
				return stats, fmt.Errorf("update_related_items(id=%d): %w", d.ID, err)
			}
			stats.RowsUpdated++
		}

		log.Debug().Int("batch", len(rows)).Int64("after_id", afterID).Msg("related-items batch processed")
		afterID = rows[len(rows)-1].ID
	}

	return stats, nil
}
