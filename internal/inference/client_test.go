package inference_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"detection-bot/internal/core/types"
	"detection-bot/internal/inference"
	"detection-bot/pkg/api"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *atomic.Int32) {
	calls := &atomic.Int32{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func TestDetectSuccess(t *testing.T) {
	correlationId := uuid.New()
	expected := api.PredictionSummary{
		PredictionId:     uuid.New(),
		OriginalImgPath:  "photos/2024-01-01 10:00:00.jpg",
		PredictedImgPath: "predicted_photos/2024-01-01 10:00:00-predict.jpg",
		Labels: []api.Label{
			{Class: "person", Cx: 0.5, Cy: 0.5, Width: 0.2, Height: 0.4},
			{Class: "person", Cx: 0.1, Cy: 0.2, Width: 0.1, Height: 0.3},
		},
		Time: 1704103200.5,
	}

	server, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, expected.OriginalImgPath, r.URL.Query().Get("imgName"))
		assert.Equal(t, correlationId.String(), r.Header.Get(inference.RequestIdHeader))
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(expected))
	})

	client := inference.NewClient(server.URL, time.Second)
	summary, err := client.Detect(context.Background(), expected.OriginalImgPath, correlationId)
	require.NoError(t, err)
	assert.Equal(t, expected, *summary)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDetectNotFound(t *testing.T) {
	server, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "prediction: x/photos/a.jpg. prediction result not found", http.StatusNotFound)
	})

	client := inference.NewClient(server.URL, time.Second)
	_, err := client.Detect(context.Background(), "photos/a.jpg", uuid.New())
	require.ErrorIs(t, err, types.ErrResultNotFound)
	assert.NotErrorIs(t, err, types.ErrServiceError)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDetectServiceErrorIsNotRetried(t *testing.T) {
	server, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "engine exploded", http.StatusInternalServerError)
	})

	client := inference.NewClient(server.URL, time.Second)
	_, err := client.Detect(context.Background(), "photos/a.jpg", uuid.New())
	require.ErrorIs(t, err, types.ErrServiceError)

	serr, ok := inference.IsServiceError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, serr.StatusCode)
	assert.Contains(t, serr.Body, "engine exploded")
	assert.EqualValues(t, 1, calls.Load())
}

func TestDetectBadRequestIsServiceError(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"Missing 'imgName' parameter"}`))
	})

	client := inference.NewClient(server.URL, time.Second)
	_, err := client.Detect(context.Background(), "photos/a.jpg", uuid.New())
	require.ErrorIs(t, err, types.ErrServiceError)
}

func TestDetectMalformedBody(t *testing.T) {
	server, _ := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	})

	client := inference.NewClient(server.URL, time.Second)
	_, err := client.Detect(context.Background(), "photos/a.jpg", uuid.New())
	require.ErrorIs(t, err, types.ErrParseFailure)
}

func TestDetectTimeout(t *testing.T) {
	release := make(chan struct{})
	server, calls := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	client := inference.NewClient(server.URL, 50*time.Millisecond)
	_, err := client.Detect(context.Background(), "photos/a.jpg", uuid.New())
	require.ErrorIs(t, err, types.ErrTransportFailure)
	assert.EqualValues(t, 1, calls.Load())
}

func TestDetectUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := inference.NewClient(url, time.Second)
	_, err := client.Detect(context.Background(), "photos/a.jpg", uuid.New())
	require.ErrorIs(t, err, types.ErrTransportFailure)
}

func TestDetectEmptyKey(t *testing.T) {
	client := inference.NewClient("http://127.0.0.1:1", time.Second)
	_, err := client.Detect(context.Background(), "", uuid.New())
	require.ErrorIs(t, err, types.ErrMissingParameter)
}
