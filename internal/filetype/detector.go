// Package filetype provides a secondary magic-byte check on archived
// bytes. Trimmed from the teacher's Detector (which classified the full
// Office/image/markup zoo to decide OCR/conversion routing) down to the
// single case this domain needs: confirming an upload really is a PDF.
// The primary check is the %PDF-/Content-Type rule C3 already enforces;
// this is a belt-and-suspenders sniff at archive time.
package filetype

import (
	"fmt"

	"github.com/gabriel-vasile/mimetype"
)

// Detector wraps mimetype's magic-byte sniffing.
type Detector struct{}

// NewDetector builds a Detector.
func NewDetector() *Detector { return &Detector{} }

// Sniff returns the detected MIME type and whether it looks like a PDF.
func (d *Detector) Sniff(data []byte) (mimeType string, isPDF bool, err error) {
	mtype := mimetype.Detect(data)
	if mtype == nil {
		return "", false, fmt.Errorf("detect mime type: empty result")
	}
	mimeType = mtype.String()
	return mimeType, mimeType == "application/pdf", nil
}
