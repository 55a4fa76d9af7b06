// Package optimizer implements C4, the PDF Optimizer: shrink a PDF's
// on-disk footprint while preserving its visual content, matching the
// contract original_source/madison_county_doc_puller/pdf_optimizer.py
// establishes (120s timeout, atomic in-place rewrite, size reporting) but
// implemented with pdfcpu instead of shelling out to Ghostscript.
package optimizer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// DefaultTimeout is the hard operation timeout spec.md §4.3 requires (120s
// in the Ghostscript original's subprocess call).
const DefaultTimeout = 120 * time.Second

// Result reports the size change an optimize pass produced.
type Result struct {
	OriginalSize  int64
	OptimizedSize int64
	// Skipped is true when the optimizer timed out or otherwise fell back
	// to a no-op; OptimizedSize then equals OriginalSize.
	Skipped bool
}

// Optimizer runs pdfcpu's content-stream/font optimization pass.
type Optimizer struct {
	timeout time.Duration
	conf    *model.Configuration
}

// New builds an Optimizer. A non-positive timeout uses DefaultTimeout.
func New(timeout time.Duration) *Optimizer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	conf := model.NewDefaultConfiguration()
	return &Optimizer{timeout: timeout, conf: conf}
}

// OptimizeInPlace rewrites path with an optimized version, atomically: the
// optimized output is written to a sibling temp file and renamed over path
// only on success, so a crash or timeout never leaves a partially-written
// file (spec.md §4.3's atomicity requirement, grounded on
// pdf_optimizer.py's optimize_in_place tempfile+rename pattern).
//
// On timeout or optimizer failure, OptimizeInPlace is a no-op: path is left
// untouched and Result.Skipped is true with OptimizedSize == OriginalSize.
func (o *Optimizer) OptimizeInPlace(ctx context.Context, path string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("stat input: %w", err)
	}
	originalSize := info.Size()

	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "optimize-*.pdf")
	if err != nil {
		return Result{}, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	done := make(chan error, 1)
	go func() {
		done <- api.OptimizeFile(path, tmpPath, o.conf)
	}()

	select {
	case <-ctx.Done():
		return Result{OriginalSize: originalSize, OptimizedSize: originalSize, Skipped: true}, nil
	case err := <-done:
		if err != nil {
			// Optimizer failure is soft per spec.md §7 (optimizer_failure):
			// fall back to the original bytes rather than failing the record.
			return Result{OriginalSize: originalSize, OptimizedSize: originalSize, Skipped: true}, nil
		}
	}

	optInfo, err := os.Stat(tmpPath)
	if err != nil {
		return Result{OriginalSize: originalSize, OptimizedSize: originalSize, Skipped: true}, nil
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return Result{}, fmt.Errorf("atomic rename: %w", err)
	}

	return Result{OriginalSize: originalSize, OptimizedSize: optInfo.Size()}, nil
}
