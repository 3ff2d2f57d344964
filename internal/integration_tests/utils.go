//go:build integration

package integrationtests

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"detection-bot/internal/core/types"
	"detection-bot/internal/storage"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/modules/rabbitmq"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	minioUsername = "admin"
	minioPassword = "password"

	testBucket = "detection-bot-test"
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		err := minioContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

func setupPostgresContainer(t *testing.T, ctx context.Context) string {
	dbName, dbUser, dbPassword := "test_db", "test_user", "test_password"

	postgresContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err, "Failed to start PostgreSQL container")

	t.Cleanup(func() {
		err := postgresContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate PostgreSQL container")
	})

	connStr, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err, "Failed to get PostgreSQL connection string")

	return connStr
}

func setupRabbitMQContainer(t *testing.T, ctx context.Context) string {
	rabbitmqContainer, err := rabbitmq.Run(ctx, "rabbitmq:3.12.11-management-alpine")
	require.NoError(t, err, "Failed to start RabbitMQ container")

	t.Cleanup(func() {
		err := rabbitmqContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate RabbitMQ container")
	})

	connStr, err := rabbitmqContainer.AmqpURL(ctx)
	require.NoError(t, err, "Failed to get RabbitMQ AMQP URL")

	return connStr
}

func setupS3Stager(t *testing.T, ctx context.Context) (*storage.S3Provider, *storage.Stager) {
	endpoint := setupMinioContainer(t, ctx)

	provider, err := storage.NewS3Provider(&storage.S3ProviderConfig{
		S3EndpointURL:     endpoint,
		S3AccessKeyID:     minioUsername,
		S3SecretAccessKey: minioPassword,
		S3Region:          "us-east-1",
	})
	require.NoError(t, err)
	require.NoError(t, provider.CreateBucket(ctx, testBucket))

	return provider, storage.NewStager(provider, testBucket)
}

// stubEngine stands in for the detection model: it copies the input as the
// annotated image and writes a fixed label file when labels is not empty.
type stubEngine struct {
	labels string
}

func (e *stubEngine) Detect(ctx context.Context, imagePath, runDir string) (types.InferenceOutput, error) {
	base := filepath.Base(imagePath)
	out := types.InferenceOutput{
		AnnotatedImagePath: filepath.Join(runDir, base),
		LabelsPath:         filepath.Join(runDir, "labels", strings.TrimSuffix(base, filepath.Ext(base))+".txt"),
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return out, err
	}
	if err := os.MkdirAll(filepath.Dir(out.LabelsPath), os.ModePerm); err != nil {
		return out, err
	}
	if err := os.WriteFile(out.AnnotatedImagePath, data, 0644); err != nil {
		return out, err
	}
	if e.labels != "" {
		if err := os.WriteFile(out.LabelsPath, []byte(e.labels), 0644); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (e *stubEngine) Release() {}
