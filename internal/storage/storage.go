package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"time"

	"github.com/securetransfer/server/internal/config"
)

// ObjectStore is the bucket the transfer bytes live in. Objects are written
// once at submission and read only through presigned URLs.
type ObjectStore interface {
	Upload(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Delete(ctx context.Context, objectName string) error
	PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	PresignedGetURLWithResponse(ctx context.Context, objectName string, expiry time.Duration, contentType string, contentDisposition string) (string, error)
	EnsureBucket(ctx context.Context) error
}

func New(cfg config.StorageConfig) (ObjectStore, error) {
	switch cfg.Driver {
	case "", "minio":
		return NewMinIOClient(cfg.MinIO)
	case "s3", "r2":
		return NewS3Client(cfg.S3)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}

// AttachmentDisposition builds a Content-Disposition value that makes browsers
// save the object under fileName.
func AttachmentDisposition(fileName string) string {
	if fileName == "" {
		return "attachment"
	}
	return mime.FormatMediaType("attachment", map[string]string{"filename": fileName})
}
