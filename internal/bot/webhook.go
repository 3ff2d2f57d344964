package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"detection-bot/internal/chat"

	"github.com/go-chi/chi/v5"
)

type WebhookRegistrar interface {
	DeleteWebhook(ctx context.Context) error
	SetWebhook(ctx context.Context, url string) error
}

// RegisterWebhook removes any existing webhook and points Telegram at
// <appURL>/<token>/.
func RegisterWebhook(ctx context.Context, registrar WebhookRegistrar, appURL, token string) error {
	if err := registrar.DeleteWebhook(ctx); err != nil {
		return fmt.Errorf("error removing webhook: %w", err)
	}

	// Telegram rejects a setWebhook issued immediately after deleteWebhook.
	select {
	case <-time.After(500 * time.Millisecond):
	case <-ctx.Done():
		return ctx.Err()
	}

	url := fmt.Sprintf("%s/%s/", strings.TrimSuffix(appURL, "/"), token)
	if err := registrar.SetWebhook(ctx, url); err != nil {
		return fmt.Errorf("error setting webhook: %w", err)
	}

	slog.Info("webhook registered", "app_url", appURL)
	return nil
}

type WebhookService struct {
	token   string
	handler *Handler
}

func NewWebhookService(token string, handler *Handler) *WebhookService {
	return &WebhookService{token: token, handler: handler}
}

func (s *WebhookService) AddRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Ok"))
	})
	r.Post("/{token}/", s.Webhook)
}

// Webhook handles one Telegram update. The update is processed before the
// response is written, so Telegram sees the request as delivered only after
// the reply was sent or dropped.
func (s *WebhookService) Webhook(w http.ResponseWriter, r *http.Request) {
	if chi.URLParam(r, "token") != s.token {
		http.NotFound(w, r)
		return
	}

	var update chat.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		slog.Error("error decoding update", "error", err)
		http.Error(w, "invalid update", http.StatusBadRequest)
		return
	}

	s.handler.HandleUpdate(context.WithoutCancel(r.Context()), update)

	w.Write([]byte("Ok"))
}
