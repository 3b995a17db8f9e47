package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/scalpbot/internal/domain"
)

// uploadPartSize is the multipart chunk size; the S3 minimum is 5 MiB.
const uploadPartSize int64 = 5 * 1024 * 1024

// Writer implements domain.BlobWriter on the S3-compatible backend. Uploads
// go through the SDK upload manager so large daily files are split into
// parts transparently.
type Writer struct {
	client *Client
}

// NewWriter creates a Writer for the client's configured bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c}
}

// Put uploads one object.
func (w *Writer) Put(ctx context.Context, path string, data []byte, contentType string) error {
	uploader := manager.NewUploader(w.client.s3, func(u *manager.Uploader) {
		u.PartSize = uploadPartSize
	})

	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.client.bucket),
		Key:         aws.String(path),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", path, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
