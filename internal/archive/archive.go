// Package archive implements C5, the Object Archive: an S3-compatible,
// content-addressed store for optimized PDFs. Adapted from
// internal/storage/s3.go (the aws-sdk-go-v2 client setup and PutObject/
// GetObject plumbing) with the PBKDF2/AES encryption layers stripped —
// this domain has no confidentiality requirement, and the checksum itself
// is now the integrity/idempotence mechanism instead of a decryption key.
package archive

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/local/titleplant/internal/config"
	"github.com/local/titleplant/internal/filetype"
)

// Metadata is the per-object metadata spec.md §4.4 requires at minimum.
type Metadata struct {
	Book           int
	Page           int
	InstrumentNumber int
	DocumentType   string
	OriginalSize   int64
	OptimizedSize  int64
}

func (m Metadata) toS3() map[string]string {
	docType := strings.ToLower(strings.TrimSpace(m.DocumentType))
	if docType == "" {
		docType = "unknown"
	}
	return map[string]string{
		"book":              strconv.Itoa(m.Book),
		"page":              strconv.Itoa(m.Page),
		"instrument-number": strconv.Itoa(m.InstrumentNumber),
		"document-type":     docType,
		"original-size":     strconv.FormatInt(m.OriginalSize, 10),
		"optimized-size":    strconv.FormatInt(m.OptimizedSize, 10),
	}
}

// Archive wraps the S3-compatible object store connection.
type Archive struct {
	client     *s3.Client
	bucket     string
	uploadDeadline time.Duration
	detector   *filetype.Detector
}

// Open builds an Archive from cfg. When cfg.Endpoint is set, the client
// targets an S3-compatible endpoint (e.g. MinIO) instead of AWS proper.
func Open(ctx context.Context, cfg config.ArchiveConfig) (*Archive, error) {
	var optFns []func(*awscfg.LoadOptions) error
	if cfg.Region != "" {
		optFns = append(optFns, awscfg.WithRegion(cfg.Region))
	}
	if cfg.CredentialsFile != "" {
		optFns = append(optFns, awscfg.WithSharedCredentialsFiles([]string{cfg.CredentialsFile}))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	deadline := cfg.UploadTimeout
	if deadline <= 0 {
		deadline = 60 * time.Second
	}

	return &Archive{
		client:         client,
		bucket:         cfg.Bucket,
		uploadDeadline: deadline,
		detector:       filetype.NewDetector(),
	}, nil
}

// RemotePath builds the content path per spec.md §4.4: by book range then
// document type, lower-kebab-case, unknown document types mapping to
// "unknown".
func RemotePath(portalRange string, documentType string, book, page int) string {
	dt := strings.ToLower(strings.TrimSpace(documentType))
	if dt == "" {
		dt = "unknown"
	}
	dt = strings.ReplaceAll(dt, " ", "-")
	return fmt.Sprintf("documents/%s/%s/%04d-%04d.pdf", portalRange, dt, book, page)
}

// PortalRange maps a book number to the path schema's range token:
// historical (<238), mid-early (238..<2000), or mid-recent (>=2000, <3972).
// Books >= 3972 (the New/excluded portal) never reach the archive.
func PortalRange(book int) string {
	switch {
	case book < 238:
		return "historical"
	case book < 2000:
		return "mid-early"
	default:
		return "mid-recent"
	}
}

// Result is what Upload returns on success.
type Result struct {
	URI      string
	Checksum string
}

// Upload implements spec.md §4.4's contract: content-addressed by SHA-256
// checksum, idempotent when an object already exists at remotePath with a
// matching checksum, retried with exponential backoff up to the configured
// deadline (default 60s).
func (a *Archive) Upload(ctx context.Context, remotePath string, data []byte, meta Metadata) (Result, error) {
	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])

	if existing, ok := a.existingChecksum(ctx, remotePath); ok && existing == checksum {
		return Result{URI: a.uri(remotePath), Checksum: checksum}, nil
	}

	s3Meta := meta.toS3()
	s3Meta["sha256"] = checksum

	if ct, _, err := a.detector.Sniff(data); err == nil && ct != "" {
		s3Meta["sniffed-content-type"] = ct
	}

	ctx, cancel := context.WithTimeout(ctx, a.uploadDeadline)
	defer cancel()

	var lastErr error
	backoff := 500 * time.Millisecond
	for {
		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(remotePath),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/pdf"),
			Metadata:    s3Meta,
		})
		if err == nil {
			return Result{URI: a.uri(remotePath), Checksum: checksum}, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return Result{}, fmt.Errorf("upload_failure: deadline exceeded: %w", lastErr)
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

func (a *Archive) existingChecksum(ctx context.Context, remotePath string) (string, bool) {
	out, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(remotePath),
	})
	if err != nil {
		return "", false
	}
	if out.Metadata == nil {
		return "", false
	}
	if sum, ok := out.Metadata["sha256"]; ok {
		return sum, true
	}
	return "", false
}

func (a *Archive) uri(remotePath string) string {
	return fmt.Sprintf("s3://%s/%s", a.bucket, remotePath)
}
