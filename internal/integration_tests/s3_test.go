//go:build integration

package integrationtests

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"detection-bot/internal/core/types"
	"detection-bot/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestS3ProviderProbe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider, _ := setupS3Stager(t, ctx)

	result, err := provider.ProbeObject(ctx, testBucket, "photos/")
	require.NoError(t, err)
	assert.Equal(t, storage.ObjectAbsent, result)

	require.NoError(t, provider.PutObject(ctx, testBucket, "photos/", bytes.NewReader(nil)))

	result, err = provider.ProbeObject(ctx, testBucket, "photos/")
	require.NoError(t, err)
	assert.Equal(t, storage.ObjectExists, result)
}

func TestS3StagerRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	provider, stager := setupS3Stager(t, ctx)

	require.NoError(t, stager.EnsureLayout(ctx))
	require.NoError(t, stager.EnsureLayout(ctx))

	objects, err := provider.ListObjects(ctx, testBucket, "")
	require.NoError(t, err)
	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		keys = append(keys, obj.Name)
	}
	assert.ElementsMatch(t, []string{"photos/", "predicted_photos/", "json/"}, keys)

	localPath := filepath.Join(t.TempDir(), "2024-01-02 03:04:05.jpg")
	require.NoError(t, os.WriteFile(localPath, []byte("photo bytes"), 0644))

	key, err := stager.Upload(ctx, localPath, storage.PhotosPrefix)
	require.NoError(t, err)
	assert.Equal(t, "photos/2024-01-02 03:04:05.jpg", key)

	data, err := provider.GetObject(ctx, testBucket, key)
	require.NoError(t, err)
	assert.Equal(t, "photo bytes", string(data))

	downloaded := filepath.Join(t.TempDir(), "copy.jpg")
	require.NoError(t, stager.Download(ctx, key, downloaded))
	data, err = os.ReadFile(downloaded)
	require.NoError(t, err)
	assert.Equal(t, "photo bytes", string(data))

	err = stager.Download(ctx, "photos/missing.jpg", filepath.Join(t.TempDir(), "missing.jpg"))
	assert.ErrorIs(t, err, types.ErrDownloadFailure)
}
