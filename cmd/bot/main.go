package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"time"

	"detection-bot/cmd"
	"detection-bot/internal/bot"
	"detection-bot/internal/chat"
	"detection-bot/internal/config"
	"detection-bot/internal/inference"
	"detection-bot/internal/metrics"
	"detection-bot/internal/naming"
	"detection-bot/internal/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func loadResponses(path string) *bot.Responses {
	if path == "" {
		return bot.DefaultResponses()
	}

	responses, err := bot.LoadResponses(path)
	if err != nil {
		slog.Warn("could not load responses, using built-in defaults", "path", path, "error", err)
		return bot.DefaultResponses()
	}
	return responses
}

func main() {
	cmd.LoadEnvFile()
	cmd.SetupLogging()

	cfg, err := config.Parse[config.BotConfig]()
	if err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	ctx := context.Background()

	client := chat.NewClient(cfg.TelegramAPIURL, cfg.TelegramToken)

	if cfg.TelegramAppURL != "" {
		if err := bot.RegisterWebhook(ctx, client, cfg.TelegramAppURL, cfg.TelegramToken); err != nil {
			log.Fatalf("could not register webhook: %v", err)
		}
	} else {
		slog.Warn("TELEGRAM_APP_URL not set, skipping webhook registration")
	}

	me, err := client.GetMe(ctx)
	if err != nil {
		log.Fatalf("could not reach telegram: %v", err)
	}
	slog.Info("telegram bot information", "id", me.Id, "username", me.Username)

	namer, err := naming.NewNamer(naming.Strategy(cfg.NamingStrategy))
	if err != nil {
		log.Fatalf("invalid naming strategy: %v", err)
	}

	stager, err := cfg.NewStager(ctx)
	if err != nil {
		log.Fatalf("could not create storage: %v", err)
	}

	if err := os.MkdirAll(cfg.DownloadDir, os.ModePerm); err != nil {
		log.Fatalf("could not create download dir: %v", err)
	}

	detector := inference.NewClient(cfg.InferenceURL, cfg.InferenceTimeout)
	photos := pipeline.New(client, namer, stager, detector, cfg.DownloadDir)
	handler := bot.NewHandler(client, photos, loadResponses(cfg.ResponsesPath))

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", metrics.Handler())
	bot.NewWebhookService(cfg.TelegramToken, handler).AddRoutes(r)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	cmd.RunServer(server)
}
