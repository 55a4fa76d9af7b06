package archive

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// folders is the expected top-level layout, grounded on
// gcs_manager.py's create_folder_structure (there: deeds/deeds-of-trust/
// wills/chancery under documents/optimized-pdfs and documents/extracted-text;
// here: one folder per portal range, since document-type subfolders are
// created lazily by Upload).
var folders = []string{
	"documents/historical/",
	"documents/mid-early/",
	"documents/mid-recent/",
}

// Bootstrap creates placeholder objects marking the expected folder
// structure, since S3-compatible stores have no real directories. Safe to
// call repeatedly.
func (a *Archive) Bootstrap(ctx context.Context) error {
	for _, folder := range folders {
		key := folder + ".placeholder"
		_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{Bucket: aws.String(a.bucket), Key: aws.String(key)})
		if err == nil {
			continue
		}
		_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        strings.NewReader(""),
			ContentType: aws.String("text/plain"),
		})
		if err != nil {
			return fmt.Errorf("bootstrap %s: %w", folder, err)
		}
	}
	return nil
}

// Stats summarizes archive contents, for the `report` CLI view, grounded
// on gcs_manager.py's get_storage_statistics.
type Stats struct {
	TotalFiles int64
	TotalBytes int64
	ByRange    map[string]int64
}

// Stats walks the bucket (paginated) and tallies file counts/sizes by
// portal-range folder.
func (a *Archive) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{ByRange: map[string]int64{}}

	paginator := s3.NewListObjectsV2Paginator(a.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(a.bucket),
		Prefix: aws.String("documents/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return stats, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || strings.HasSuffix(*obj.Key, ".placeholder") {
				continue
			}
			stats.TotalFiles++
			if obj.Size != nil {
				stats.TotalBytes += *obj.Size
			}
			parts := strings.SplitN(strings.TrimPrefix(*obj.Key, "documents/"), "/", 2)
			if len(parts) > 0 {
				stats.ByRange[parts[0]]++
			}
		}
	}
	return stats, nil
}
