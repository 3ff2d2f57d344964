package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	backend "detection-bot/internal/api"
	"detection-bot/internal/core"
	"detection-bot/internal/core/types"
	"detection-bot/internal/database"
	"detection-bot/pkg/api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type mockPredictor struct {
	calls      []string
	requestIds []string
	summary    *api.PredictionSummary
	err        error
}

func (m *mockPredictor) Predict(ctx context.Context, imgName string) (*api.PredictionSummary, error) {
	m.calls = append(m.calls, imgName)
	m.requestIds = append(m.requestIds, core.RequestIdFromContext(ctx))
	return m.summary, m.err
}

func createStore(t *testing.T, summaries ...*api.PredictionSummary) *database.Store {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	store := database.NewStore(db)
	for _, s := range summaries {
		require.NoError(t, store.SaveSummary(context.Background(), s))
	}
	return store
}

func newRouter(predictor backend.Predictor, store backend.PredictionStore) chi.Router {
	router := chi.NewRouter()
	backend.NewPredictionService(predictor, store).AddRoutes(router)
	return router
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestPredictMissingImgName(t *testing.T) {
	predictor := &mockPredictor{}
	router := newRouter(predictor, nil)

	for _, target := range []string{"/predict", "/predict?imgName="} {
		rec := serve(router, http.MethodPost, target)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"error": "Missing 'imgName' parameter"}`, rec.Body.String())
	}
	assert.Empty(t, predictor.calls)
}

func TestPredictSuccess(t *testing.T) {
	summary := &api.PredictionSummary{
		PredictionId:     uuid.New(),
		OriginalImgPath:  "photos/2024-05-17 14:03:09.jpg",
		PredictedImgPath: "predicted_photos/2024-05-17 14:03:09-predict.jpg",
		Labels:           []api.Label{{Class: "person", Cx: 0.5, Cy: 0.5, Width: 0.2, Height: 0.4}},
		Time:             1715954589.5,
	}
	predictor := &mockPredictor{summary: summary}
	router := newRouter(predictor, nil)

	rec := serve(router, http.MethodPost, "/predict?imgName=photos%2F2024-05-17+14%3A03%3A09.jpg")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"photos/2024-05-17 14:03:09.jpg"}, predictor.calls)

	var response api.PredictionSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, *summary, response)
}

func TestPredictForwardsRequestId(t *testing.T) {
	predictor := &mockPredictor{summary: &api.PredictionSummary{PredictionId: uuid.New()}}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	backend.NewPredictionService(predictor, nil).AddRoutes(router)

	req := httptest.NewRequest(http.MethodPost, "/predict?imgName=photos/a.jpg", nil)
	req.Header.Set("X-Request-Id", "7b0f5c1e-correlation")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(newRouter(predictor, nil), http.MethodPost, "/predict?imgName=photos/b.jpg")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []string{"7b0f5c1e-correlation", ""}, predictor.requestIds)
}

func TestPredictResultNotFound(t *testing.T) {
	predictionId := uuid.New()
	predictor := &mockPredictor{err: &core.ResultNotFoundError{PredictionId: predictionId, ImgName: "photos/a.jpg"}}
	router := newRouter(predictor, nil)

	rec := serve(router, http.MethodPost, "/predict?imgName=photos/a.jpg")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
	assert.Equal(t, "prediction: "+predictionId.String()+"/photos/a.jpg. prediction result not found\n", rec.Body.String())
}

func TestPredictInternalError(t *testing.T) {
	predictor := &mockPredictor{err: errors.Join(types.ErrUploadFailure, errors.New("bucket gone"))}
	router := newRouter(predictor, nil)

	rec := serve(router, http.MethodPost, "/predict?imgName=photos/a.jpg")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var response api.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Contains(t, response.Error, "bucket gone")
}

func TestPredictionQueries(t *testing.T) {
	first := &api.PredictionSummary{
		PredictionId:     uuid.New(),
		OriginalImgPath:  "photos/a.jpg",
		PredictedImgPath: "predicted_photos/a-predict.jpg",
		Labels:           []api.Label{{Class: "person", Cx: 0.5, Cy: 0.5, Width: 0.2, Height: 0.4}},
		Time:             100,
	}
	second := &api.PredictionSummary{
		PredictionId:     uuid.New(),
		OriginalImgPath:  "photos/b.jpg",
		PredictedImgPath: "predicted_photos/b-predict.jpg",
		Labels: []api.Label{
			{Class: "dog", Cx: 0.1, Cy: 0.1, Width: 0.1, Height: 0.1},
			{Class: "person", Cx: 0.2, Cy: 0.2, Width: 0.1, Height: 0.1},
		},
		Time: 200,
	}
	router := newRouter(&mockPredictor{}, createStore(t, first, second))

	t.Run("get", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/predictions/"+first.PredictionId.String())
		require.Equal(t, http.StatusOK, rec.Code)

		var response api.PredictionSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, *first, response)
	})

	t.Run("get unknown", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/predictions/"+uuid.New().String())
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("get invalid id", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/predictions/not-a-uuid")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/predictions?limit=1")
		require.Equal(t, http.StatusOK, rec.Code)

		var response []api.PredictionSummary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		require.Len(t, response, 1)
		assert.Equal(t, second.PredictionId, response[0].PredictionId)
	})

	t.Run("stats", func(t *testing.T) {
		rec := serve(router, http.MethodGet, "/predictions/stats")
		require.Equal(t, http.StatusOK, rec.Code)

		var response api.PredictionStats
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
		assert.Equal(t, map[string]int{"dog": 1, "person": 2}, response.ClassTotals)
	})
}

func TestHealth(t *testing.T) {
	rec := serve(newRouter(&mockPredictor{}, nil), http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
}
