package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttachmentKey(t *testing.T) {
	at := time.UnixMilli(1714550400123)
	assert.Equal(t, "daily_reports/s1/2024-05-01/1714550400123_site_photo.jpg",
		AttachmentKey("s1", "2024-05-01", at, "site photo.jpg"))
	assert.Equal(t, "daily_reports/s1/2024-05-01/1714550400123_passwd",
		AttachmentKey("s1", "2024-05-01", at, "../../etc/passwd"))
	assert.Equal(t, "daily_reports/s1/2024-05-01/1714550400123_x.pdf",
		AttachmentKey("s1", "2024-05-01", at, `C:\docs\x.pdf`))
}

func TestCleanFilename(t *testing.T) {
	assert.Equal(t, "file", CleanFilename(""))
	assert.Equal(t, "file", CleanFilename(".."))
	assert.Equal(t, "ab.txt", CleanFilename("a?b.txt"))
}

func TestLocalStore_PutURLDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStore(dir, "http://localhost:8080/files")
	require.NoError(t, err)
	ctx := context.Background()

	key := "daily_reports/s1/2024-05-01/1_a b.txt"
	require.NoError(t, s.Put(ctx, key, strings.NewReader("hello"), 5, "text/plain"))

	data, err := os.ReadFile(filepath.Join(dir, "daily_reports", "s1", "2024-05-01", "1_a b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	u, err := s.URL(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/files/daily_reports/s1/2024-05-01/1_a%20b.txt", u)

	require.NoError(t, s.Delete(ctx, key))
	_, err = s.URL(ctx, key)
	assert.Equal(t, CodeNoSuchKey, ErrorCode(err))
	assert.NoError(t, s.Delete(ctx, key), "deleting a missing key is fine")
}

func TestLocalStore_RejectsTraversal(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	for _, key := range []string{"../x", "a/../../x", "/abs", "", "a//b"} {
		err := s.Put(context.Background(), key, strings.NewReader("x"), 1, "")
		assert.Equal(t, CodeInvalidKey, ErrorCode(err), key)
	}
}

func TestLocalStore_CanceledContext(t *testing.T) {
	s, err := NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = s.Put(ctx, "k", strings.NewReader("x"), 1, "")
	assert.Equal(t, CodeCanceled, ErrorCode(err))
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "", ErrorCode(nil))
	assert.Equal(t, CodeUnknown, ErrorCode(errors.New("boom")))
	assert.Equal(t, CodeTimeout, ErrorCode(fmt.Errorf("put: %w", context.DeadlineExceeded)))
	assert.Equal(t, CodeAccessDenied, ErrorCode(&Error{Code: CodeAccessDenied}))

	apiErr := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
	assert.Equal(t, "AccessDenied", ErrorCode(fmt.Errorf("s3 put k: %w", apiErr)))

	mErr := minio.ErrorResponse{Code: "NoSuchBucket", Message: "missing"}
	assert.Equal(t, "NoSuchBucket", ErrorCode(fmt.Errorf("minio put k: %w", mErr)))
}
