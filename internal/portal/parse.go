package portal

import (
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// imageLinkRe matches the anchor href the result page uses for the PDF
// image behind a single-page record (spec.md §4.2 step 3).
var imageLinkRe = regexp.MustCompile(`pdf-records\.php\?image=(\d+)`)

// downloadImageTextRe matches the anchor text MID uses for each page of a
// multi-page record, grounded on mid_scraper.py's
// `soup.find_all('a', string=re.compile(r'Download Image \d+'))`.
var downloadImageTextRe = regexp.MustCompile(`Download Image \d+`)

var bookRe = regexp.MustCompile(`Book[:\s]+(\d+)`)
var pageRe = regexp.MustCompile(`Page[:\s]+(\d+)`)

// resultPage is what parseResultPage recovers from a portal's HTML results
// page before PDF bytes are fetched.
type resultPage struct {
	Metadata  Metadata
	ImageURL  string   // single-page case
	PageURLs  []string // multi-page case (MID stitching)
	NoRecords bool
}

// parseResultPage parses a Historical/Mid HTML results page per spec.md
// §4.2: it extracts grantor/grantee/nature/date/subdivision/section-
// township-range from the heading/table block, the server-reported
// (book, page), and either the single image anchor or the set of
// "Download Image N" anchors for multi-page stitching.
func parseResultPage(body io.Reader) (*resultPage, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, newErr(KindParseError, "parse result HTML", err)
	}

	text := doc.Text()
	if strings.Contains(text, "No records found") || strings.Contains(text, "No documents found") {
		return &resultPage{NoRecords: true}, nil
	}

	rp := &resultPage{}

	doc.Find("table tr").Each(func(_ int, s *goquery.Selection) {
		label := strings.TrimSpace(s.Find("th").First().Text())
		value := strings.TrimSpace(s.Find("td").First().Text())
		if label == "" || value == "" {
			return
		}
		switch strings.ToLower(label) {
		case "grantor":
			rp.Metadata.Grantor = value
		case "grantee":
			rp.Metadata.Grantee = value
		case "nature", "instrument type", "type":
			rp.Metadata.Nature = value
		case "subdivision":
			rp.Metadata.Subdivision = value
		case "section":
			rp.Metadata.Section = value
		case "township":
			rp.Metadata.Township = value
		case "range":
			rp.Metadata.Range = value
		case "date", "recorded date", "file date":
			if t, err := parseRecordedDate(value); err == nil {
				rp.Metadata.RecordedDate = t
				rp.Metadata.HasDate = true
			}
		}
	})

	if m := bookRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rp.Metadata.ActualBook = n
		}
	}
	if m := pageRe.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			rp.Metadata.ActualPage = n
		}
	}

	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := s.Attr("href")
		if !ok || href == "" {
			return
		}
		if downloadImageTextRe.MatchString(strings.TrimSpace(s.Text())) {
			rp.PageURLs = append(rp.PageURLs, href)
			return
		}
		if imageLinkRe.MatchString(href) && rp.ImageURL == "" {
			rp.ImageURL = href
		}
	})

	return rp, nil
}

var dateLayouts = []string{"01/02/2006", "2006-01-02", "January 2, 2006"}

func parseRecordedDate(s string) (time.Time, error) {
	var firstErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return time.Time{}, firstErr
}
