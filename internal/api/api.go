package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"detection-bot/internal/core"
	"detection-bot/internal/core/types"
	"detection-bot/internal/database"
	"detection-bot/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

type Predictor interface {
	Predict(ctx context.Context, imgName string) (*api.PredictionSummary, error)
}

type PredictionStore interface {
	GetSummary(ctx context.Context, predictionId uuid.UUID) (*api.PredictionSummary, error)

	ListSummaries(ctx context.Context, limit int) ([]api.PredictionSummary, error)

	ClassTotals(ctx context.Context) (map[string]int, error)
}

type PredictionService struct {
	predictor Predictor
	store     PredictionStore
}

// NewPredictionService creates the inference service. The query endpoints are
// only registered when store is not nil.
func NewPredictionService(predictor Predictor, store PredictionStore) *PredictionService {
	return &PredictionService{predictor: predictor, store: store}
}

func (s *PredictionService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Post("/predict", RestHandler(s.Predict))

	if s.store != nil {
		r.Route("/predictions", func(r chi.Router) {
			r.Get("/", RestHandler(s.ListPredictions))
			r.Get("/stats", RestHandler(s.PredictionStats))
			r.Get("/{prediction_id}", RestHandler(s.GetPrediction))
		})
	}
}

func (s *PredictionService) Predict(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.PredictParams](r)
	if err != nil {
		return nil, err
	}

	if params.ImgName == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Missing 'imgName' parameter")
	}

	requestId := middleware.GetReqID(r.Context())
	if requestId == "" {
		requestId = r.Header.Get(middleware.RequestIDHeader)
	}
	slog.Info("received prediction request", "img_name", params.ImgName, "request_id", requestId)

	summary, err := s.predictor.Predict(core.WithRequestId(r.Context(), requestId), params.ImgName)
	if err != nil {
		switch {
		case errors.Is(err, types.ErrResultNotFound):
			return nil, PlainErrorf(http.StatusNotFound, "%s", err.Error())
		default:
			return nil, CodedError(http.StatusInternalServerError, err)
		}
	}

	return summary, nil
}

func (s *PredictionService) GetPrediction(r *http.Request) (any, error) {
	predictionId, err := URLParamUUID(r, "prediction_id")
	if err != nil {
		return nil, err
	}

	summary, err := s.store.GetSummary(r.Context(), predictionId)
	if err != nil {
		if errors.Is(err, database.ErrPredictionNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "prediction %s not found", predictionId)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "error retrieving prediction")
	}

	return summary, nil
}

func (s *PredictionService) ListPredictions(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[api.ListPredictionsParams](r)
	if err != nil {
		return nil, err
	}

	if params.Limit < 0 {
		return nil, CodedErrorf(http.StatusBadRequest, "limit must not be negative")
	}

	summaries, err := s.store.ListSummaries(r.Context(), params.Limit)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error listing predictions")
	}

	return summaries, nil
}

func (s *PredictionService) PredictionStats(r *http.Request) (any, error) {
	totals, err := s.store.ClassTotals(r.Context())
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "error computing prediction stats")
	}

	return api.PredictionStats{ClassTotals: totals}, nil
}
