package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type MinIO struct {
	client *minio.Client
	bucket string
	// tempDir holds staged uploads; empty means os.TempDir.
	tempDir string
}

func NewMinIO(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinIO, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &MinIO{client: client, bucket: bucket}, nil
}

// Stage buffers the upload on local disk; the object is only written on Commit,
// and a PutObject is all-or-nothing.
func (m *MinIO) Stage(ctx context.Context, key string, r io.Reader) (Staged, error) {
	if !ValidKey(key) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	f, err := os.CreateTemp(m.tempDir, "catalog-upload-*")
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(f, contextReader{ctx: ctx, r: r})
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("buffer upload: %w", err)
	}
	return &minioStaged{store: m, key: key, file: f, size: n}, nil
}

func (m *MinIO) Open(ctx context.Context, key string) (*Object, error) {
	if !ValidKey(key) {
		return nil, notFound(key)
	}
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get object: %w", err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, notFound(key)
		}
		return nil, fmt.Errorf("failed to stat object: %w", err)
	}
	return &Object{ReadSeekCloser: obj, Name: key, Size: info.Size, ModTime: info.LastModified}, nil
}

func (m *MinIO) Remove(ctx context.Context, key string) error {
	if !ValidKey(key) {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

type minioStaged struct {
	store *MinIO
	key   string
	file  *os.File
	size  int64
	done  bool
}

func (st *minioStaged) Key() string { return st.key }
func (st *minioStaged) Size() int64 { return st.size }

func (st *minioStaged) Commit(ctx context.Context) error {
	if st.done {
		return errors.New("staged upload already finished")
	}
	if _, err := st.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	contentType := mime.TypeByExtension(filepath.Ext(st.key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := st.store.client.PutObject(ctx, st.store.bucket, st.key, st.file, st.size, minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return fmt.Errorf("failed to upload file: %w", err)
	}
	st.release()
	return nil
}

func (st *minioStaged) Discard() error {
	if st.done {
		return nil
	}
	st.release()
	return nil
}

func (st *minioStaged) release() {
	st.done = true
	st.file.Close()
	os.Remove(st.file.Name())
}
