package storage

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"detection-bot/internal/core/types"
)

// Stager moves files between the local filesystem and a single bucket laid
// out under a fixed set of prefixes.
type Stager struct {
	provider Provider
	bucket   string
	layout   []string
}

func NewStager(provider Provider, bucket string) *Stager {
	return &Stager{provider: provider, bucket: bucket, layout: DefaultLayout}
}

func (s *Stager) Bucket() string {
	return s.bucket
}

// Upload stores the local file under "<prefix>/<basename>" and returns the key.
func (s *Stager) Upload(ctx context.Context, localPath, prefix string) (string, error) {
	key := path.Join(prefix, filepath.Base(localPath))
	if err := s.UploadAs(ctx, localPath, key); err != nil {
		return "", err
	}
	return key, nil
}

func (s *Stager) UploadAs(ctx context.Context, localPath, key string) error {
	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("error opening %s: %w: %w", localPath, types.ErrUploadFailure, err)
	}
	defer file.Close()

	if err := s.provider.PutObject(ctx, s.bucket, key, file); err != nil {
		return fmt.Errorf("error uploading %s: %w: %w", key, types.ErrUploadFailure, err)
	}
	return nil
}

func (s *Stager) PutDocument(ctx context.Context, key string, data []byte) error {
	if err := s.provider.PutObject(ctx, s.bucket, key, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("error uploading %s: %w: %w", key, types.ErrUploadFailure, err)
	}
	return nil
}

func (s *Stager) Download(ctx context.Context, key, localPath string) error {
	if err := s.provider.DownloadObject(ctx, s.bucket, key, localPath); err != nil {
		return fmt.Errorf("error downloading %s: %w: %w", key, types.ErrDownloadFailure, err)
	}
	return nil
}
