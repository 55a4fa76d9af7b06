// Package store implements C1, the Index Store: the durable table of one
// row per recorded document, plus the CAS primitives and schema migrations
// every other component builds on. It is the only component with
// persistent state (spec.md §2).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/local/titleplant/internal/config"
	"github.com/local/titleplant/internal/model"
)

// Store wraps the index-store connection pool.
type Store struct {
	DB *sql.DB
}

// Open connects to Postgres using lib/pq and sizes the connection pool per
// cfg, grounded on download_queue_manager.py's psycopg2 connection.
func Open(cfg config.DBConfig) (*Store, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.Name, cfg.User, cfg.Password, cfg.SSLMode,
	)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	return &Store{DB: db}, nil
}

// Close releases the connection pool.
func (s *Store) Close() error { return s.DB.Close() }

// Ping verifies connectivity, used by the monitor CLI view.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return s.DB.PingContext(ctx)
}

// schema is the full index_documents DDL plus the indexes spec.md §6
// requires: one on download_status, a composite on
// (download_status, download_priority, book, page), and a unique
// constraint on (book, page, source).
const schema = `
CREATE TABLE IF NOT EXISTS index_documents (
	id                     BIGSERIAL PRIMARY KEY,
	source                 TEXT NOT NULL,
	source_file            TEXT,

	book                   INTEGER,
	page                   INTEGER,
	instrument_number      INTEGER,
	gin                    INTEGER,
	book_volume            TEXT,

	instrument_type_raw    TEXT,
	instrument_type_parsed TEXT,
	document_type          TEXT,

	file_date              TIMESTAMPTZ,
	num_pages              INTEGER,

	party_type             TEXT,
	party_seq              INTEGER,
	searched_name          TEXT,
	cross_party_name       TEXT,
	grantor_party          TEXT,
	grantee_party          TEXT,

	description            TEXT,
	location               TEXT,
	direction              TEXT,
	legals                 TEXT,
	sub_div                TEXT,
	block                  TEXT,
	lot                    TEXT,
	sec                    TEXT,
	town                   TEXT,
	rng                    TEXT,
	square                 TEXT,
	remarks                TEXT,

	ne_ne BOOLEAN NOT NULL DEFAULT FALSE, ne_nw BOOLEAN NOT NULL DEFAULT FALSE,
	ne_se BOOLEAN NOT NULL DEFAULT FALSE, ne_sw BOOLEAN NOT NULL DEFAULT FALSE,
	nw_ne BOOLEAN NOT NULL DEFAULT FALSE, nw_nw BOOLEAN NOT NULL DEFAULT FALSE,
	nw_se BOOLEAN NOT NULL DEFAULT FALSE, nw_sw BOOLEAN NOT NULL DEFAULT FALSE,
	se_ne BOOLEAN NOT NULL DEFAULT FALSE, se_nw BOOLEAN NOT NULL DEFAULT FALSE,
	se_se BOOLEAN NOT NULL DEFAULT FALSE, se_sw BOOLEAN NOT NULL DEFAULT FALSE,
	sw_ne BOOLEAN NOT NULL DEFAULT FALSE, sw_nw BOOLEAN NOT NULL DEFAULT FALSE,
	sw_se BOOLEAN NOT NULL DEFAULT FALSE, sw_sw BOOLEAN NOT NULL DEFAULT FALSE,

	address                TEXT,
	street_name            TEXT,
	city                   TEXT,
	zip                    TEXT,
	parcel_num             TEXT,
	parcel_id              TEXT,
	ppin                   TEXT,
	patent_num             TEXT,

	download_status        TEXT NOT NULL DEFAULT 'pending',
	download_priority      INTEGER,
	download_attempts      INTEGER NOT NULL DEFAULT 0,
	download_error         TEXT,
	downloaded_at          TIMESTAMPTZ,
	updated_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	import_date            TIMESTAMPTZ,
	gcs_path               TEXT,
	actual_book            INTEGER,
	actual_page            INTEGER,
	book_page_mismatch     BOOLEAN NOT NULL DEFAULT FALSE,

	related_items_raw      TEXT,
	related_items          JSONB
);

CREATE INDEX IF NOT EXISTS idx_index_documents_status
	ON index_documents (download_status);

CREATE INDEX IF NOT EXISTS idx_index_documents_queue
	ON index_documents (download_status, download_priority, book, page);

CREATE UNIQUE INDEX IF NOT EXISTS uq_index_documents_book_page_source
	ON index_documents (book, page, source)
	WHERE book IS NOT NULL AND page IS NOT NULL AND download_status <> 'skipped';
`

// Migrate applies the schema, idempotently.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// columns lists every index_documents column in the fixed order Scan and
// the SELECT list both rely on.
const columns = `
	id, source, source_file,
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
`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// ScanDocument reads one index_documents row, in the exact column order of
// `columns`, into an IndexDocument.
func ScanDocument(r rowScanner) (*model.IndexDocument, error) {
	var d model.IndexDocument
	var source string
	var relatedItemsJSON sql.NullString
	qs := make([]sql.NullBool, 16)

	dest := []interface{}{
		&d.ID, &source, &d.SourceFile,
		&d.Book, &d.Page, &d.InstrumentNumber, &d.GIN, &d.BookVolume,
		&d.InstrumentTypeRaw, &d.InstrumentTypeParsed, &d.DocumentType,
		&d.FileDate, &d.NumPages,
		&d.PartyType, &d.PartySeq, &d.SearchedName, &d.CrossPartyName, &d.GrantorParty, &d.GranteeParty,
		&d.Description, &d.Location, &d.Direction, &d.Legals, &d.SubDiv, &d.Block, &d.Lot, &d.Sec, &d.Town, &d.Rng, &d.Square, &d.Remarks,
	}
	for i := range qs {
		dest = append(dest, &qs[i])
	}
	dest = append(dest,
		&d.Address, &d.StreetName, &d.City, &d.Zip, &d.ParcelNum, &d.ParcelID, &d.PPIN, &d.PatentNum,
		&d.DownloadStatus, &d.DownloadPriority, &d.DownloadAttempts, &d.DownloadError,
		&d.DownloadedAt, &d.UpdatedAt, &d.ImportDate, &d.GCSPath,
		&d.ActualBook, &d.ActualPage, &d.BookPageMismatch,
		&d.RelatedItemsRaw, &relatedItemsJSON,
	)

	if err := r.Scan(dest...); err != nil {
		return nil, err
	}
	d.Source = model.Source(source)
	for i := range qs {
		d.QuarterSections[i] = qs[i].Valid && qs[i].Bool
	}
	if relatedItemsJSON.Valid && relatedItemsJSON.String != "" {
		items, err := unmarshalRelatedItems(relatedItemsJSON.String)
		if err == nil {
			d.RelatedItems = items
		}
	}
	return &d, nil
}

// GetByID fetches a single row by id.
func (s *Store) GetByID(ctx context.Context, id int64) (*model.IndexDocument, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+columns+` FROM index_documents WHERE id = $1`, id)
	return ScanDocument(row)
}

// InsertRaw inserts a new row as produced by the (out-of-scope) bulk
// ingest loaders; only the columns an ingest row can possibly populate are
// accepted here, matching spec.md §1's "only their output schema matters."
func (s *Store) InsertRaw(ctx context.Context, d *model.IndexDocument) (int64, error) {
	var id int64
	err := s.DB.QueryRowContext(ctx, `
		INSERT INTO index_documents (
			source, source_file, book, page, instrument_number, gin, book_volume,
			instrument_type_raw, instrument_type_parsed, document_type,
			file_date, num_pages,
			party_type, party_seq, searched_name, cross_party_name, grantor_party, grantee_party,
			description, location, direction, legals, sub_div, block, lot, sec, town, rng, square, remarks,
			address, street_name, city, zip, parcel_num, parcel_id, ppin, patent_num,
			related_items_raw, import_date, download_status
		) VALUES (
			$1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,
			$19,$20,$21,$22,$23,$24,$25,$26,$27,$28,$29,$30,
			$31,$32,$33,$34,$35,$36,$37,$38,$39,now(),'pending'
		)
		ON CONFLICT (book, page, source) WHERE book IS NOT NULL AND page IS NOT NULL AND download_status <> 'skipped'
		DO UPDATE SET source_file = EXCLUDED.source_file, updated_at = now()
		RETURNING id
	`,
		string(d.Source), d.SourceFile, d.Book, d.Page, d.InstrumentNumber, d.GIN, d.BookVolume,
		d.InstrumentTypeRaw, d.InstrumentTypeParsed, d.DocumentType,
		d.FileDate, d.NumPages,
		d.PartyType, d.PartySeq, d.SearchedName, d.CrossPartyName, d.GrantorParty, d.GranteeParty,
		d.Description, d.Location, d.Direction, d.Legals, d.SubDiv, d.Block, d.Lot, d.Sec, d.Town, d.Rng, d.Square, d.Remarks,
		d.Address, d.StreetName, d.City, d.Zip, d.ParcelNum, d.ParcelID, d.PPIN, d.PatentNum,
		d.RelatedItemsRaw,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert raw: %w", err)
	}
	return id, nil
}
