package portal

import (
	"context"
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// fetchAndStitch downloads every page URL in order and concatenates them
// into a single PDF, grounded on mid_scraper.py's _download_pdf_image +
// _concatenate_pdfs (PdfMerger). pdfcpu's file-based merge is used instead
// of pypdf's PdfMerger since that's the PDF library the example pack
// carries (declared in the teacher's go.mod but never previously wired to
// anything - this is its first real use).
func fetchAndStitch(ctx context.Context, hc *httpClient, host string, pageURLs []string) ([]byte, error) {
	tmpFiles := make([]string, 0, len(pageURLs))
	defer func() {
		for _, f := range tmpFiles {
			os.Remove(f)
		}
	}()

	for i, href := range pageURLs {
		full := absoluteURL(host, href)
		body, header, err := hc.get(ctx, full, nil)
		if err != nil {
			return nil, err
		}
		if !isPDF(header, body) {
			return nil, newErr(KindInvalidResponse, fmt.Sprintf("page %d of stitched document was not a PDF", i+1), nil)
		}

		f, err := os.CreateTemp("", "titleplant-page-*.pdf")
		if err != nil {
			return nil, newErr(KindParseError, "create temp file for stitching", err)
		}
		if _, err := f.Write(body); err != nil {
			f.Close()
			return nil, newErr(KindParseError, "write temp file for stitching", err)
		}
		f.Close()
		tmpFiles = append(tmpFiles, f.Name())
	}

	if len(tmpFiles) == 1 {
		return os.ReadFile(tmpFiles[0])
	}

	out, err := os.CreateTemp("", "titleplant-merged-*.pdf")
	if err != nil {
		return nil, newErr(KindParseError, "create temp file for merged output", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	if err := api.MergeCreateFile(tmpFiles, outPath, false, nil); err != nil {
		return nil, newErr(KindParseError, "merge stitched pages", err)
	}

	return os.ReadFile(outPath)
}
