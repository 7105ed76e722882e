package objstore

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
)

// Store keeps message attachments in a MinIO bucket. Objects keep their
// original filenames so share links stay readable; collisions get a
// "(n)" suffix like a desktop file manager.
type Store struct {
	client *minio.Client
	bucket string
}

// New creates a store and ensures the bucket exists.
func New(ctx context.Context, client *minio.Client, bucket string) (*Store, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}
	return &Store{client: client, bucket: bucket}, nil
}

// ObjectInfo describes a stored attachment.
type ObjectInfo struct {
	Name        string
	Size        int64
	ContentType string
}

// Put stores the attachment under a collision-free name and returns the
// name actually used.
func (s *Store) Put(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	name, err := s.resolveName(ctx, filename)
	if err != nil {
		return "", err
	}

	_, err = s.client.PutObject(ctx, s.bucket, name, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to store object: %w", err)
	}
	return name, nil
}

// Get opens an attachment for streaming.
func (s *Store) Get(ctx context.Context, name string) (io.ReadCloser, *ObjectInfo, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open object: %w", err)
	}

	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, nil, fmt.Errorf("object not found: %w", err)
	}

	return obj, &ObjectInfo{
		Name:        name,
		Size:        stat.Size,
		ContentType: stat.ContentType,
	}, nil
}

// exists reports whether an object with this exact name is stored.
func (s *Store) exists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// resolveName finds a free name: "report.pdf", "report(2).pdf", ...
func (s *Store) resolveName(ctx context.Context, filename string) (string, error) {
	ext := filepath.Ext(filename)
	base := strings.TrimSuffix(filename, ext)

	name := filename
	for n := 2; ; n++ {
		taken, err := s.exists(ctx, name)
		if err != nil {
			return "", err
		}
		if !taken {
			return name, nil
		}
		name = fmt.Sprintf("%s(%d)%s", base, n, ext)
	}
}
