package portal

import (
	"net/http"
	"strings"
	"testing"
)

func TestIsPDFByContentType(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "application/pdf")
	if !isPDF(h, []byte("whatever")) {
		t.Fatal("expected Content-Type: application/pdf to be recognized")
	}
}

func TestIsPDFByMagicBytes(t *testing.T) {
	if !isPDF(nil, []byte("%PDF-1.4 ...")) {
		t.Fatal("expected %PDF- magic bytes to be recognized regardless of headers")
	}
}

func TestIsPDFRejectsHTML(t *testing.T) {
	h := http.Header{}
	h.Set("Content-Type", "text/html")
	if isPDF(h, []byte("<html></html>")) {
		t.Fatal("expected an HTML response to not be classified as PDF")
	}
}

func TestSearchParamsPrefersInstrumentNumber(t *testing.T) {
	q := searchParams(LookupKey{InstrumentNumber: 4242, Book: 100, Page: 5})
	if q.Get("instrument") != "4242" {
		t.Fatalf("expected instrument=4242, got %q", q.Get("instrument"))
	}
	if q.Get("book") != "" || q.Get("bpage") != "" {
		t.Fatal("expected book/bpage to be blank when instrument_number is present")
	}
}

func TestSearchParamsFallsBackToBookPage(t *testing.T) {
	q := searchParams(LookupKey{Book: 100, Page: 5})
	if q.Get("book") != "100" || q.Get("bpage") != "5" {
		t.Fatalf("expected book=100 bpage=5, got book=%q bpage=%q", q.Get("book"), q.Get("bpage"))
	}
	if q.Get("instrument") != "" {
		t.Fatal("expected instrument to be blank in the legacy (book,page) path")
	}
}

func TestParseResultPageNoRecords(t *testing.T) {
	html := `<html><body>No records found for this search.</body></html>`
	rp, err := parseResultPage(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !rp.NoRecords {
		t.Fatal("expected NoRecords to be true")
	}
}

func TestParseResultPageFindsImageLink(t *testing.T) {
	html := `<html><body>
		<table>
			<tr><th>Grantor</th><td>Jane Doe</td></tr>
			<tr><th>Grantee</th><td>John Roe</td></tr>
		</table>
		Book: 0042 Page: 0103
		<a href="pdf-records.php?image=998877">View</a>
	</body></html>`
	rp, err := parseResultPage(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rp.NoRecords {
		t.Fatal("did not expect NoRecords")
	}
	if rp.ImageURL != "pdf-records.php?image=998877" {
		t.Fatalf("unexpected image url: %q", rp.ImageURL)
	}
	if rp.Metadata.ActualBook != 42 || rp.Metadata.ActualPage != 103 {
		t.Fatalf("unexpected actual book/page: %d/%d", rp.Metadata.ActualBook, rp.Metadata.ActualPage)
	}
	if rp.Metadata.Grantor != "Jane Doe" || rp.Metadata.Grantee != "John Roe" {
		t.Fatalf("unexpected grantor/grantee: %q/%q", rp.Metadata.Grantor, rp.Metadata.Grantee)
	}
}

func TestParseResultPageCollectsMultiPageLinks(t *testing.T) {
	html := `<html><body>
		<a href="/img/1.pdf">Download Image 1</a>
		<a href="/img/2.pdf">Download Image 2</a>
	</body></html>`
	rp, err := parseResultPage(strings.NewReader(html))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rp.PageURLs) != 2 {
		t.Fatalf("expected 2 page urls, got %d", len(rp.PageURLs))
	}
	if rp.PageURLs[0] != "/img/1.pdf" || rp.PageURLs[1] != "/img/2.pdf" {
		t.Fatalf("expected page urls in document order, got %v", rp.PageURLs)
	}
}

func TestAbsoluteURL(t *testing.T) {
	cases := []struct{ host, href, want string }{
		{"https://tools.madison-co.net", "/img/1.pdf", "https://tools.madison-co.net/img/1.pdf"},
		{"https://tools.madison-co.net", "img/1.pdf", "https://tools.madison-co.net/img/1.pdf"},
		{"https://tools.madison-co.net", "https://other.example/x.pdf", "https://other.example/x.pdf"},
	}
	for _, c := range cases {
		if got := absoluteURL(c.host, c.href); got != c.want {
			t.Fatalf("absoluteURL(%q,%q) = %q, want %q", c.host, c.href, got, c.want)
		}
	}
}
