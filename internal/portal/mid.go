package portal

import (
	"context"
	"time"
)

// MidClient fetches records from the Mid portal (books 238-3971), sharing
// the Historical portal's host and form protocol, grounded on
// mid_scraper.py.
type MidClient struct {
	host string
	http *httpClient
}

// MidOptions configures a MidClient.
type MidOptions struct {
	Host       string
	UserAgent  string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// NewMid builds a MidClient.
func NewMid(opts MidOptions) *MidClient {
	return &MidClient{
		host: opts.Host,
		http: newHTTPClient(opts.Timeout, opts.UserAgent, opts.MaxRetries, opts.RetryDelay),
	}
}

func (c *MidClient) Fetch(ctx context.Context, key LookupKey) (*FetchResult, error) {
	if key.DocTypeCode == "" {
		key.DocTypeCode = "01" // default to DEED, matching mid_scraper.py
	}
	return fetchSearchForm(ctx, c.http, c.host, key)
}
