// Package monitor implements the `monitor` CLI view's health summary.
// Adapted from internal/statuscheck/status.go's Checker/Summary shape —
// Redis/OpenAI/Anthropic/LibreOffice/MuPDF checks have no analog in this
// domain, so they are replaced with the index-store and object-archive
// reachability checks this pipeline actually depends on.
package monitor

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/local/titleplant/internal/config"
	"github.com/local/titleplant/internal/queue"
	"github.com/local/titleplant/internal/store"
)

// Status represents the readiness of a single subsystem.
type Status struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// Summary bundles every subsystem's status plus the current queue depth
// breakdown, for the `monitor` CLI view.
type Summary struct {
	Store   Status           `json:"store"`
	Archive Status           `json:"archive"`
	Depth   map[string]int64 `json:"queue_depth"`
}

// Checker aggregates the health checks monitor needs.
type Checker struct {
	st        *store.Store
	q         *queue.Manager
	archiveCfg config.ArchiveConfig
}

// New builds a Checker.
func New(st *store.Store, q *queue.Manager, archiveCfg config.ArchiveConfig) *Checker {
	return &Checker{st: st, q: q, archiveCfg: archiveCfg}
}

// Summary runs every check and returns the aggregate view.
func (c *Checker) Summary(ctx context.Context) Summary {
	depth := map[string]int64{}
	if c.q != nil {
		if d, err := c.q.Depth(ctx); err == nil {
			for status, n := range d {
				depth[string(status)] = n
			}
		}
	}
	return Summary{
		Store:   c.checkStore(ctx),
		Archive: c.checkArchive(ctx),
		Depth:   depth,
	}
}

func (c *Checker) checkStore(ctx context.Context) Status {
	if c.st == nil {
		return Status{OK: false, Message: "store unavailable"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.st.Ping(ctx); err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	return Status{OK: true, Message: "connected"}
}

func (c *Checker) checkArchive(ctx context.Context) Status {
	if c.archiveCfg.Bucket == "" {
		return Status{OK: false, Message: "bucket not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var optFns []func(*awscfg.LoadOptions) error
	if c.archiveCfg.Region != "" {
		optFns = append(optFns, awscfg.WithRegion(c.archiveCfg.Region))
	}
	awsCfg, err := awscfg.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return Status{OK: false, Message: err.Error()}
	}
	cli := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if c.archiveCfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.archiveCfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	if _, err := cli.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.archiveCfg.Bucket)}); err != nil {
		return Status{OK: false, Message: trimError(err)}
	}
	return Status{OK: true, Message: "connected"}
}

func trimError(err error) string {
	msg := err.Error()
	if len(msg) > 160 {
		return msg[:160]
	}
	return msg
}
