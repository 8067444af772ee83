package files

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datafit/internal/infrastructure"
)

func TestReportKey(t *testing.T) {
	assert.Equal(t, "7/report_files/u1/sales.xlsx", ReportKey(7, "u1", "sales.xlsx"))
	assert.Equal(t, "7/report_files/u1/sales.xlsx", ReportKey(7, "u1", "../../etc/sales.xlsx"))
	assert.Equal(t, "7/report_files/u1/sales.xlsx", ReportKey(7, "u1", `C:\Users\me\sales.xlsx`))
	assert.Equal(t, "7/report_files/u1/sales.xlsx", ReportKey(7, "../u1", "sales.xlsx"))
	assert.NotEqual(t, ReportKey(7, "u1", "sales.xlsx"), ReportKey(7, "u2", "sales.xlsx"))
}

func TestCleanKeyRejectsEscapes(t *testing.T) {
	for _, key := range []string{"", "/abs/path", "..", "../x", "a/../../x"} {
		_, err := cleanKey(key)
		assert.ErrorIs(t, err, ErrInvalidKey, key)
	}

	cleaned, err := cleanKey("7/report_files/./a.xlsx")
	require.NoError(t, err)
	assert.Equal(t, "7/report_files/a.xlsx", cleaned)
}

func TestLocalStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), infrastructure.NopLogger())
	require.NoError(t, err)

	key := ReportKey(3, "u1", "data.xlsx")
	link, err := store.Save(ctx, key, strings.NewReader("content"))
	require.NoError(t, err)
	assert.Equal(t, key, link)

	ok, err := store.Exists(ctx, link)
	require.NoError(t, err)
	assert.True(t, ok)

	path, err := store.LocalPath(ctx, link)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "content", string(raw))

	rc, err := store.Open(ctx, link)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "content", string(body))

	require.NoError(t, store.Delete(ctx, link))
	ok, err = store.Exists(ctx, link)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.LocalPath(ctx, link)
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = store.Open(ctx, link)
	assert.ErrorIs(t, err, ErrNotExist)

	assert.NoError(t, store.Delete(ctx, link), "deleting twice is fine")
}

func TestLocalStoreIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), infrastructure.NopLogger())
	require.NoError(t, err)

	key := ReportKey(3, "u1", "data.xlsx")
	_, err = store.Save(ctx, key, strings.NewReader("first"))
	require.NoError(t, err)

	_, err = store.Save(ctx, key, strings.NewReader("second"))
	assert.ErrorIs(t, err, ErrExists)

	rc, err := store.Open(ctx, key)
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	rc.Close()
	assert.Equal(t, "first", string(body))
}

func TestLocalStoreRejectsTraversal(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), infrastructure.NopLogger())
	require.NoError(t, err)

	_, err = store.Save(context.Background(), "../outside.xlsx", strings.NewReader("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

// fakeS3 is an in-memory bucket good enough for single-part uploads.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeS3() *fakeS3 { return &fakeS3{objects: make(map[string][]byte)} }

func notFound() error { return &smithy.GenericAPIError{Code: "NotFound", Message: "not found"} }

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	key := aws.ToString(in.Key)
	if _, ok := f.objects[key]; ok && aws.ToString(in.IfNoneMatch) == "*" {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed"}
	}
	f.objects[key] = body
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	body, ok := f.objects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey"}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: aws.Int64(int64(len(body))),
	}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	body, ok := f.objects[aws.ToString(in.Key)]
	f.mu.Unlock()
	if !ok {
		return nil, notFound()
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

func (f *fakeS3) DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	f.mu.Lock()
	delete(f.objects, aws.ToString(in.Key))
	f.mu.Unlock()
	return &s3.DeleteObjectOutput{}, nil
}

func (f *fakeS3) UploadPart(context.Context, *s3.UploadPartInput, ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	panic("multipart upload not supported by fake")
}

func (f *fakeS3) CreateMultipartUpload(context.Context, *s3.CreateMultipartUploadInput, ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	panic("multipart upload not supported by fake")
}

func (f *fakeS3) CompleteMultipartUpload(context.Context, *s3.CompleteMultipartUploadInput, ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	panic("multipart upload not supported by fake")
}

func (f *fakeS3) AbortMultipartUpload(context.Context, *s3.AbortMultipartUploadInput, ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return &s3.AbortMultipartUploadOutput{}, nil
}

func TestS3StoreLifecycle(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	cacheDir := t.TempDir()
	store, err := NewS3StoreWithClient(fake, S3Config{Bucket: "reports", Prefix: "uploads", CacheDir: cacheDir}, infrastructure.NopLogger())
	require.NoError(t, err)

	key := ReportKey(9, "u1", "q1.xlsx")
	link, err := store.Save(ctx, key, strings.NewReader("workbook"))
	require.NoError(t, err)
	assert.Equal(t, key, link)
	assert.Contains(t, fake.objects, "uploads/9/report_files/u1/q1.xlsx")

	_, err = store.Save(ctx, key, strings.NewReader("replacement"))
	assert.ErrorIs(t, err, ErrExists)
	assert.Equal(t, "workbook", string(fake.objects["uploads/9/report_files/u1/q1.xlsx"]))

	ok, err := store.Exists(ctx, link)
	require.NoError(t, err)
	assert.True(t, ok)

	path, err := store.LocalPath(ctx, link)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cacheDir, "9", "report_files", "u1", "q1.xlsx"), path)
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "workbook", string(raw))

	require.NoError(t, store.Delete(ctx, link))
	ok, err = store.Exists(ctx, link)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Open(ctx, link)
	assert.ErrorIs(t, err, ErrNotExist)
	_, err = store.LocalPath(ctx, link)
	assert.ErrorIs(t, err, ErrNotExist)
}

func TestS3StoreConditionalWriteConflict(t *testing.T) {
	fake := newFakeS3()
	store, err := NewS3StoreWithClient(fake, S3Config{Bucket: "reports", CacheDir: t.TempDir()}, infrastructure.NopLogger())
	require.NoError(t, err)

	assert.True(t, isPreconditionFailed(&smithy.GenericAPIError{Code: "PreconditionFailed"}))
	assert.True(t, isPreconditionFailed(&smithy.GenericAPIError{Code: "ConditionalRequestConflict"}))
	assert.False(t, isPreconditionFailed(notFound()))
	assert.False(t, isPreconditionFailed(nil))

	key := ReportKey(1, "u1", "a.xlsx")
	_, err = store.Save(context.Background(), key, strings.NewReader("a"))
	require.NoError(t, err)
	_, err = store.Save(context.Background(), key, strings.NewReader("b"))
	assert.ErrorIs(t, err, ErrExists)
}

func TestNewS3StoreRequiresBucket(t *testing.T) {
	_, err := NewS3StoreWithClient(newFakeS3(), S3Config{CacheDir: t.TempDir()}, infrastructure.NopLogger())
	assert.Error(t, err)
}
