// Package pdfcheck verifies that a PDF file is openable and reports its
// page count, the post-optimize sanity check C7 runs before archiving.
// Adapted from internal/pdftest's fitz-backed Opener (doc_open_fitz.go) and
// internal/mupdf/gofitz_extractor.go's GetPageCount — stripped of their
// OCR/text-extractability sampling, which has no role in this domain.
package pdfcheck

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
)

// Open verifies path is an openable PDF and returns its page count. A
// failure here means the document the portal returned (or the optimizer
// rewrote) is not a usable PDF, and the record should fail with
// optimizer_failure/parse_error per spec.md §7.
func Open(path string) (pages int, err error) {
	doc, err := fitz.New(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	n := doc.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("pdf reports %d pages", n)
	}
	return n, nil
}
