package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"detection-bot/internal/core/types"
)

const (
	PhotosPrefix          = "photos"
	PredictedPhotosPrefix = "predicted_photos"
	JsonPrefix            = "json"
)

var DefaultLayout = []string{PhotosPrefix, PredictedPhotosPrefix, JsonPrefix}

// EnsureLayout creates a zero-byte "<prefix>/" marker for every layout prefix
// that does not exist yet. Concurrent callers may both create the same
// marker; the second put overwrites an identical empty object.
func (s *Stager) EnsureLayout(ctx context.Context) error {
	for _, prefix := range s.layout {
		marker := prefix + "/"

		result, err := s.provider.ProbeObject(ctx, s.bucket, marker)
		switch result {
		case ObjectExists:
			continue
		case ObjectAbsent:
			if err := s.provider.PutObject(ctx, s.bucket, marker, bytes.NewReader(nil)); err != nil {
				return fmt.Errorf("error creating layout marker %s: %w: %w", marker, types.ErrUploadFailure, err)
			}
			slog.Info("created layout marker", "bucket", s.bucket, "marker", marker)
		default:
			if err == nil {
				err = fmt.Errorf("probe returned %s", result)
			}
			return fmt.Errorf("error probing layout marker %s: %w: %w", marker, types.ErrUploadFailure, err)
		}
	}
	return nil
}
