package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"detection-bot/cmd"
	"detection-bot/internal/api"
	"detection-bot/internal/config"
	"detection-bot/internal/core"
	"detection-bot/internal/core/yolo"
	"detection-bot/internal/database"
	"detection-bot/internal/messaging"
	"detection-bot/internal/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	ort "github.com/yalue/onnxruntime_go"
)

func loadEngine(cfg config.PredictorConfig, numClasses int) core.Engine {
	engineType := core.EngineType(cfg.EngineType)

	if engineType == core.OnnxEngine {
		if cfg.OnnxRuntimeLib == "" {
			log.Fatalf("ONNX_RUNTIME_DYLIB must be set for the onnx engine")
		}
		if err := yolo.InitOnnxRuntime(cfg.OnnxRuntimeLib); err != nil {
			log.Fatalf("could not init ONNX Runtime: %v", err)
		}
	}

	loaders := core.NewEngineLoaders(core.EngineOptions{
		ModelPath:        cfg.ModelPath,
		NumClasses:       numClasses,
		ConfThreshold:    cfg.ConfThreshold,
		IouThreshold:     cfg.IouThreshold,
		PythonExecutable: cfg.PythonExecutable,
		DetectScript:     cfg.DetectScript,
		DataConfig:       cfg.ClassesPath,
	})

	engine, err := core.LoadEngine(engineType, loaders)
	if err != nil {
		log.Fatalf("could not load detection engine: %v", err)
	}
	return engine
}

func createServer(cfg config.PredictorConfig, service *api.PredictionService) *http.Server {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CorsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Handle("/metrics", metrics.Handler())
	service.AddRoutes(r)

	return &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}
}

func main() {
	cmd.LoadEnvFile()
	cmd.SetupLogging()

	cfg, err := config.Parse[config.PredictorConfig]()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	slog.Info("starting predictor", "port", cfg.Port, "engine", cfg.EngineType, "model", cfg.ModelPath, "bucket", cfg.Bucket)

	classes, err := core.LoadClasses(cfg.ClassesPath)
	if err != nil {
		log.Fatalf("could not load class table: %v", err)
	}

	if core.EngineType(cfg.EngineType) == core.OnnxEngine {
		defer func() {
			if err := ort.DestroyEnvironment(); err != nil {
				slog.Error("error destroying onnx env", "error", err)
			}
		}()
	}
	engine := loadEngine(cfg, len(classes))
	defer engine.Release()

	stager, err := cfg.NewStager(context.Background())
	if err != nil {
		log.Fatalf("could not create storage: %v", err)
	}
	if err := stager.EnsureLayout(context.Background()); err != nil {
		log.Fatalf("could not prepare storage layout: %v", err)
	}

	if err := os.MkdirAll(cfg.WorkDir, os.ModePerm); err != nil {
		log.Fatalf("could not create work dir: %v", err)
	}

	var summaryStore core.SummaryStore
	var predictionStore api.PredictionStore
	if cfg.DatabaseURL != "" {
		db, err := database.NewDatabase(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to connect to database: %v", err)
		}
		store := database.NewStore(db)
		summaryStore, predictionStore = store, store
	} else {
		slog.Warn("DATABASE_URL not set, predictions are only stored as json documents")
	}

	if cfg.RabbitMQURL == "" {
		slog.Info("RABBITMQ_URL not set, prediction events stay in process")
	}
	publisher, stopEvents, err := messaging.StartPredictionEvents(context.Background(), cfg.RabbitMQURL, messaging.LogPredictionEvent)
	if err != nil {
		log.Fatalf("failed to start prediction events: %v", err)
	}
	defer stopEvents()

	predictor := core.NewPredictor(stager, engine, classes, summaryStore, publisher, cfg.WorkDir)
	predictor.KeepArtifacts = cfg.KeepArtifacts

	server := createServer(cfg, api.NewPredictionService(predictor, predictionStore))
	cmd.RunServer(server)
}
