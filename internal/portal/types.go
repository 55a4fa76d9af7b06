// Package portal implements C3, the portal clients: fetching one document's
// bytes and associated metadata from the Historical or Mid upstream
// portals. Both portals share a host and a form-style query protocol;
// grounded on original_source/madison_title_plant/scrapers (base_scraper.py,
// historical_scraper.py, mid_scraper.py).
package portal

import (
	"context"
	"fmt"
	"time"
)

// Kind classifies a FetchError per spec.md §4.2/§7.
type Kind string

const (
	KindTimeout         Kind = "timeout"
	KindNetworkError    Kind = "network_error"
	KindNotFound        Kind = "not_found"
	KindInvalidResponse Kind = "invalid_response"
	KindNoImageAvailable Kind = "no_image_available"
	KindParseError      Kind = "parse_error"
)

// FetchError is the typed error every client returns on failure, carrying
// enough context for the worker's error classifier and for download_error.
type FetchError struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *FetchError) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, err error) *FetchError {
	return &FetchError{Kind: kind, Msg: msg, Err: err}
}

// LookupKey identifies the record to fetch. InstrumentNumber is preferred
// when non-zero; otherwise Book/Page is used.
type LookupKey struct {
	InstrumentNumber int
	Book             int
	Page             int
	DocTypeCode      string // best-known document type code, used as a search hint
}

func (k LookupKey) hasInstrumentNumber() bool { return k.InstrumentNumber > 0 }

// Metadata is what a client can recover from the result page, independent
// of the PDF bytes themselves.
type Metadata struct {
	ActualBook    int
	ActualPage    int
	Grantor       string
	Grantee       string
	Nature        string
	RecordedDate  time.Time
	HasDate       bool
	Subdivision   string
	Section       string
	Township      string
	Range         string
}

// FetchResult is what a successful Client.Fetch returns.
type FetchResult struct {
	Metadata Metadata
	PDFBytes []byte
}

// Client is the contract every portal client satisfies (spec.md §4.2).
type Client interface {
	Fetch(ctx context.Context, key LookupKey) (*FetchResult, error)
}
