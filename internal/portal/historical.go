package portal

import (
	"bytes"
	"context"
	"net/url"
	"strconv"
	"time"
)

// searchPath is the shared form-style lookup endpoint both portals use,
// grounded on historical_scraper.py/mid_scraper.py's SEARCH_URL.
const searchPath = "/elected-offices/chancery-clerk/court-house-search/drupal-deed-record-lookup.php"

// HistoricalClient fetches records from the Historical portal (books < 238).
type HistoricalClient struct {
	host string
	http *httpClient
}

// HistoricalOptions configures a HistoricalClient.
type HistoricalOptions struct {
	Host       string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewHistorical builds a HistoricalClient.
func NewHistorical(opts HistoricalOptions) *HistoricalClient {
	return &HistoricalClient{
		host: opts.Host,
		http: newHTTPClient(opts.Timeout, opts.UserAgent, opts.MaxRetries, opts.RetryDelay),
	}
}

func (c *HistoricalClient) Fetch(ctx context.Context, key LookupKey) (*FetchResult, error) {
	return fetchSearchForm(ctx, c.http, c.host, key)
}

// fetchSearchForm runs the shared protocol spec.md §4.2 describes for both
// portals: issue the search form, and either take a direct PDF response or
// parse the HTML results page and fetch the image URL it names.
func fetchSearchForm(ctx context.Context, hc *httpClient, host string, key LookupKey) (*FetchResult, error) {
	q := searchParams(key)
	body, header, err := hc.get(ctx, host+searchPath, q)
	if err != nil {
		return nil, err
	}

	if isPDF(header, body) {
		return &FetchResult{
			Metadata: Metadata{ActualBook: key.Book, ActualPage: key.Page},
			PDFBytes: body,
		}, nil
	}

	rp, err := parseResultPage(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if rp.NoRecords {
		return nil, newErr(KindNotFound, "portal reported no matching record", nil)
	}

	if len(rp.PageURLs) > 0 {
		pdfBytes, err := fetchAndStitch(ctx, hc, host, rp.PageURLs)
		if err != nil {
			return nil, err
		}
		return &FetchResult{Metadata: rp.Metadata, PDFBytes: pdfBytes}, nil
	}

	if rp.ImageURL == "" {
		return nil, newErr(KindNoImageAvailable, "no image link found in results page", nil)
	}

	imgURL := absoluteURL(host, rp.ImageURL)
	pdfBytes, imgHeader, err := hc.get(ctx, imgURL, nil)
	if err != nil {
		return nil, err
	}
	if !isPDF(imgHeader, pdfBytes) {
		return nil, newErr(KindInvalidResponse, "image link did not return a PDF", nil)
	}

	return &FetchResult{Metadata: rp.Metadata, PDFBytes: pdfBytes}, nil
}

// searchParams builds the shared form-style query, preferring
// instrument_number when present and falling back to (book, page), per
// spec.md §4.2 and historical_scraper.py/mid_scraper.py's params dict.
func searchParams(key LookupKey) url.Values {
	q := url.Values{}
	q.Set("grantor", "")
	q.Set("doc_type", key.DocTypeCode)
	q.Set("month", "")
	q.Set("day", "")
	q.Set("year", "")
	q.Set("thru_month", "")
	q.Set("thru_day", "")
	q.Set("thru_year", "")
	q.Set("section", "")
	q.Set("township", "")
	q.Set("range", "")
	q.Set("code", "")
	q.Set("lot", "")
	q.Set("iyear", "")
	q.Set("do_search", "Submit Query")

	if key.hasInstrumentNumber() {
		q.Set("instrument", strconv.Itoa(key.InstrumentNumber))
		q.Set("book", "")
		q.Set("bpage", "")
	} else {
		q.Set("instrument", "")
		q.Set("book", strconv.Itoa(key.Book))
		q.Set("bpage", strconv.Itoa(key.Page))
	}
	return q
}

func absoluteURL(host, href string) string {
	if len(href) >= 4 && (href[:4] == "http") {
		return href
	}
	if len(href) > 0 && href[0] == '/' {
		return host + href
	}
	return host + "/" + href
}
