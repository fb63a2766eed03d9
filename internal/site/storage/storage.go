// Package storage puts report attachments into a blob store and hands out
// download URLs. Drivers: local disk, S3 and MinIO.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/aws/smithy-go"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/config"
	"github.com/minio/minio-go/v7"
)

// BlobStore is the attachment store contract.
type BlobStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	URL(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, key string) error
}

// New builds the store selected by cfg.Driver.
func New(ctx context.Context, cfg config.StorageConfig, publicURL string) (BlobStore, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStore(cfg.LocalDir, strings.TrimRight(publicURL, "/")+LocalURLPrefix)
	case "s3":
		return NewS3Store(ctx, cfg)
	case "minio":
		return NewMinIOStore(ctx, cfg)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}

// AttachmentKey is daily_reports/<swo_id>/<date>/<unix_ms>_<filename>.
func AttachmentKey(swoID, date string, at time.Time, filename string) string {
	return fmt.Sprintf("daily_reports/%s/%s/%d_%s", swoID, date, at.UnixMilli(), CleanFilename(filename))
}

// CleanFilename strips directories and characters unsafe in object keys.
func CleanFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return "file"
	}
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteRune('_')
		case r < 0x20 || r == 0x7f || strings.ContainsRune(`#?%*:|"<>`, r):
			continue
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}

// 错误码
const (
	CodeAccessDenied = "AccessDenied"
	CodeNoSuchKey    = "NoSuchKey"
	CodeInvalidKey   = "InvalidKey"
	CodeTimeout      = "Timeout"
	CodeCanceled     = "Canceled"
	CodeIO           = "IOError"
	CodeUnknown      = "Unknown"
)

// Error is a store failure carrying a driver independent code.
type Error struct {
	Code string
	Key  string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Code, e.Key, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorCode extracts the store error code of err so callers can tell
// permission problems from transient faults.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var se *Error
	if errors.As(err, &se) && se.Code != "" {
		return se.Code
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	var mErr minio.ErrorResponse
	if errors.As(err, &mErr) && mErr.Code != "" {
		return mErr.Code
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, fs.ErrPermission):
		return CodeAccessDenied
	case errors.Is(err, fs.ErrNotExist):
		return CodeNoSuchKey
	}
	return CodeUnknown
}
