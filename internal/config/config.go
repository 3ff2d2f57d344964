package config

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"detection-bot/internal/storage"

	"github.com/caarlos0/env/v11"
)

// StorageConfig selects the object store. When S3_ENDPOINT_URL is empty the
// photos are kept in a local directory tree under LOCAL_STORAGE_DIR.
type StorageConfig struct {
	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`
	Bucket            string `env:"S3_BUCKET" envDefault:"photos"`
	LocalStorageDir   string `env:"LOCAL_STORAGE_DIR" envDefault:"./data/storage"`
}

func (c StorageConfig) UseS3() bool {
	return c.S3EndpointURL != ""
}

func (c StorageConfig) NewProvider() (storage.Provider, error) {
	if !c.UseS3() {
		slog.Info("using local storage", "dir", c.LocalStorageDir)
		return storage.NewLocalProvider(c.LocalStorageDir), nil
	}

	if c.S3AccessKeyID == "" || c.S3SecretAccessKey == "" {
		slog.Warn("S3_ENDPOINT_URL is set, but AWS_ACCESS_KEY_ID or AWS_SECRET_ACCESS_KEY are missing")
	}

	return storage.NewS3Provider(&storage.S3ProviderConfig{
		S3EndpointURL:     c.S3EndpointURL,
		S3AccessKeyID:     c.S3AccessKeyID,
		S3SecretAccessKey: c.S3SecretAccessKey,
		S3Region:          c.S3Region,
	})
}

// NewStager builds the stager over the configured provider and makes sure the
// bucket exists.
func (c StorageConfig) NewStager(ctx context.Context) (*storage.Stager, error) {
	provider, err := c.NewProvider()
	if err != nil {
		return nil, fmt.Errorf("error creating storage provider: %w", err)
	}

	if err := provider.CreateBucket(ctx, c.Bucket); err != nil {
		return nil, fmt.Errorf("error creating bucket %s: %w", c.Bucket, err)
	}

	return storage.NewStager(provider, c.Bucket), nil
}

type BotConfig struct {
	StorageConfig

	TelegramToken    string        `env:"TELEGRAM_TOKEN,notEmpty,required"`
	TelegramAPIURL   string        `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org"`
	TelegramAppURL   string        `env:"TELEGRAM_APP_URL"`
	Port             string        `env:"PORT" envDefault:"8080"`
	InferenceURL     string        `env:"INFERENCE_URL" envDefault:"http://localhost:8001"`
	InferenceTimeout time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"60s"`
	DownloadDir      string        `env:"DOWNLOAD_DIR" envDefault:"./data/images"`
	NamingStrategy   string        `env:"NAMING_STRATEGY" envDefault:"timestamp"`
	ResponsesPath    string        `env:"RESPONSES_PATH"`
}

type PredictorConfig struct {
	StorageConfig

	DatabaseURL      string   `env:"DATABASE_URL"`
	RabbitMQURL      string   `env:"RABBITMQ_URL"`
	Port             string   `env:"API_PORT" envDefault:"8001"`
	CorsOrigins      []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
	WorkDir          string   `env:"WORK_DIR" envDefault:"./data/work"`
	KeepArtifacts    bool     `env:"KEEP_ARTIFACTS" envDefault:"false"`
	ClassesPath      string   `env:"CLASSES_PATH,notEmpty,required"`
	EngineType       string   `env:"ENGINE_TYPE" envDefault:"onnx"`
	ModelPath        string   `env:"MODEL_PATH,notEmpty,required"`
	OnnxRuntimeLib   string   `env:"ONNX_RUNTIME_DYLIB"`
	ConfThreshold    float32  `env:"CONF_THRESHOLD" envDefault:"0.25"`
	IouThreshold     float32  `env:"IOU_THRESHOLD" envDefault:"0.45"`
	PythonExecutable string   `env:"PYTHON_EXECUTABLE" envDefault:"python3"`
	DetectScript     string   `env:"DETECT_SCRIPT" envDefault:"detect.py"`
}

type DetectConfig struct {
	StorageConfig

	InferenceURL     string        `env:"INFERENCE_URL" envDefault:"http://localhost:8001"`
	InferenceTimeout time.Duration `env:"INFERENCE_TIMEOUT" envDefault:"60s"`
	NamingStrategy   string        `env:"NAMING_STRATEGY" envDefault:"timestamp"`
}

// Parse fills cfg from the environment.
func Parse[T any]() (T, error) {
	var cfg T
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("error parsing config: %w", err)
	}
	return cfg, nil
}
