package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"detection-bot/internal/core/types"
	"detection-bot/internal/messaging"
	"detection-bot/internal/storage"
	"detection-bot/pkg/api"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine copies the input as the annotated image and writes labels when
// it has any.
type fakeEngine struct {
	labels string
	err    error
	calls  int
}

func (e *fakeEngine) Detect(ctx context.Context, imagePath, runDir string) (types.InferenceOutput, error) {
	e.calls++
	if e.err != nil {
		return types.InferenceOutput{}, e.err
	}

	base := filepath.Base(imagePath)
	out := types.InferenceOutput{
		AnnotatedImagePath: filepath.Join(runDir, base),
		LabelsPath:         filepath.Join(runDir, "labels", base[:len(base)-len(filepath.Ext(base))]+".txt"),
	}

	data, err := os.ReadFile(imagePath)
	if err != nil {
		return out, err
	}
	if err := os.MkdirAll(filepath.Dir(out.LabelsPath), os.ModePerm); err != nil {
		return out, err
	}
	if err := os.WriteFile(out.AnnotatedImagePath, append(data, []byte("-annotated")...), 0644); err != nil {
		return out, err
	}
	if e.labels != "" {
		if err := os.WriteFile(out.LabelsPath, []byte(e.labels), 0644); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (e *fakeEngine) Release() {}

type memoryStore struct {
	mu        sync.Mutex
	summaries []*api.PredictionSummary
	err       error
}

func (s *memoryStore) SaveSummary(ctx context.Context, summary *api.PredictionSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.summaries = append(s.summaries, summary)
	return nil
}

const testBucket = "detections"

var predictTime = time.Date(2024, 5, 17, 14, 3, 9, 500000000, time.UTC)

func setupPredictor(t *testing.T, engine Engine, store SummaryStore, publisher messaging.Publisher) (*Predictor, string) {
	t.Helper()

	storeDir := t.TempDir()
	stager := storage.NewStager(storage.NewLocalProvider(storeDir), testBucket)
	require.NoError(t, stager.EnsureLayout(context.Background()))

	photo := filepath.Join(storeDir, testBucket, "photos", "2024-05-17 14:03:09.jpg")
	require.NoError(t, os.WriteFile(photo, []byte("photo"), 0644))

	predictor := NewPredictor(stager, engine, []string{"person", "bicycle", "car"}, store, publisher, t.TempDir())
	predictor.Now = func() time.Time { return predictTime }

	return predictor, storeDir
}

func TestPredictorPredict(t *testing.T) {
	engine := &fakeEngine{labels: "0 0.25 0.5 0.1 0.4\n0 0.75 0.5 0.1 0.4\n"}
	store := &memoryStore{}
	queue := messaging.NewInMemoryQueue()
	defer queue.Close()

	predictor, storeDir := setupPredictor(t, engine, store, queue)

	summary, err := predictor.Predict(context.Background(), "photos/2024-05-17 14:03:09.jpg")
	require.NoError(t, err)

	assert.Equal(t, "photos/2024-05-17 14:03:09.jpg", summary.OriginalImgPath)
	assert.Equal(t, "predicted_photos/2024-05-17 14:03:09-predict.jpg", summary.PredictedImgPath)
	assert.Equal(t, float64(predictTime.Unix())+0.5, summary.Time)
	assert.Equal(t, []api.Label{
		{Class: "person", Cx: 0.25, Cy: 0.5, Width: 0.1, Height: 0.4},
		{Class: "person", Cx: 0.75, Cy: 0.5, Width: 0.1, Height: 0.4},
	}, summary.Labels)

	assert.Equal(t,
		"Prediction results:\nObject: person Count: 2",
		FormatMessage(Aggregate(DetectionsFromSummary(summary))),
	)

	annotated, err := os.ReadFile(filepath.Join(storeDir, testBucket, "predicted_photos", "2024-05-17 14:03:09-predict.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "photo-annotated", string(annotated))

	doc, err := os.ReadFile(filepath.Join(storeDir, testBucket, "json", "2024-05-17 14:03:09.json"))
	require.NoError(t, err)
	var stored api.PredictionSummary
	require.NoError(t, json.Unmarshal(doc, &stored))
	assert.Equal(t, *summary, stored)

	require.Len(t, store.summaries, 1)
	assert.Equal(t, summary.PredictionId, store.summaries[0].PredictionId)

	task := <-queue.Tasks()
	var event messaging.PredictionEventPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &event))
	assert.Equal(t, summary.PredictionId, event.PredictionId)
	assert.Equal(t, 2, event.LabelCount)
}

func TestPredictorNoLabels(t *testing.T) {
	engine := &fakeEngine{}
	store := &memoryStore{}
	predictor, storeDir := setupPredictor(t, engine, store, nil)

	_, err := predictor.Predict(context.Background(), "photos/2024-05-17 14:03:09.jpg")
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrResultNotFound)

	var notFound *ResultNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "prediction: "+notFound.PredictionId.String()+"/photos/2024-05-17 14:03:09.jpg. prediction result not found", err.Error())

	// The annotated image is still uploaded.
	_, err = os.Stat(filepath.Join(storeDir, testBucket, "predicted_photos", "2024-05-17 14:03:09-predict.jpg"))
	assert.NoError(t, err)
	assert.Empty(t, store.summaries)
}

func TestPredictorMissingImage(t *testing.T) {
	engine := &fakeEngine{labels: "0 0.5 0.5 0.1 0.1\n"}
	predictor, _ := setupPredictor(t, engine, nil, nil)

	_, err := predictor.Predict(context.Background(), "photos/missing.jpg")
	assert.ErrorIs(t, err, types.ErrDownloadFailure)
	assert.Equal(t, 0, engine.calls)
}

func TestPredictorRejectsKeysOutsideBucket(t *testing.T) {
	engine := &fakeEngine{labels: "0 0.5 0.5 0.1 0.1\n"}
	predictor, storeDir := setupPredictor(t, engine, nil, nil)
	require.NoError(t, os.WriteFile(filepath.Join(storeDir, "outside.jpg"), []byte("private"), 0644))

	_, err := predictor.Predict(context.Background(), "../outside.jpg")
	assert.ErrorIs(t, err, types.ErrDownloadFailure)
	assert.Equal(t, 0, engine.calls)
}

func TestPredictorMalformedLabels(t *testing.T) {
	engine := &fakeEngine{labels: "7 0.5 0.5 0.1 0.1\n"}
	predictor, _ := setupPredictor(t, engine, nil, nil)

	_, err := predictor.Predict(context.Background(), "photos/2024-05-17 14:03:09.jpg")
	assert.ErrorIs(t, err, types.ErrParseFailure)
}

func TestPredictorNaNLabels(t *testing.T) {
	engine := &fakeEngine{labels: "0 NaN 0.5 0.2 0.2\n"}
	store := &memoryStore{}
	predictor, _ := setupPredictor(t, engine, store, nil)

	summary, err := predictor.Predict(context.Background(), "photos/2024-05-17 14:03:09.jpg")
	assert.ErrorIs(t, err, types.ErrParseFailure)
	assert.Nil(t, summary)
	assert.Empty(t, store.summaries)
}

func TestPredictorLogsRequestId(t *testing.T) {
	var logs bytes.Buffer
	previous := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&logs, nil)))
	t.Cleanup(func() { slog.SetDefault(previous) })

	engine := &fakeEngine{labels: "0 0.5 0.5 0.1 0.1\n"}
	predictor, _ := setupPredictor(t, engine, nil, nil)

	ctx := WithRequestId(context.Background(), "req-42")
	_, err := predictor.Predict(ctx, "photos/2024-05-17 14:03:09.jpg")
	require.NoError(t, err)

	assert.Contains(t, logs.String(), `"msg":"prediction: start processing"`)
	assert.Contains(t, logs.String(), `"request_id":"req-42"`)
}

func TestPredictorEngineFailure(t *testing.T) {
	engine := &fakeEngine{err: errors.New("engine crashed")}
	predictor, _ := setupPredictor(t, engine, nil, nil)

	_, err := predictor.Predict(context.Background(), "photos/2024-05-17 14:03:09.jpg")
	require.Error(t, err)
	assert.False(t, errors.Is(err, types.ErrResultNotFound))
}

func TestPredictorStoreFailureIsAdvisory(t *testing.T) {
	engine := &fakeEngine{labels: "2 0.5 0.5 0.1 0.1\n"}
	store := &memoryStore{err: errors.New("db down")}
	predictor, _ := setupPredictor(t, engine, store, nil)

	summary, err := predictor.Predict(context.Background(), "photos/2024-05-17 14:03:09.jpg")
	require.NoError(t, err)
	assert.Equal(t, "car", summary.Labels[0].Class)
}

func TestPredictorMissingName(t *testing.T) {
	engine := &fakeEngine{}
	predictor, _ := setupPredictor(t, engine, nil, nil)

	_, err := predictor.Predict(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrMissingParameter)
	assert.Equal(t, 0, engine.calls)
}

func TestSummaryJsonRoundTrip(t *testing.T) {
	input := `{"prediction_id":"0b5c1c52-3f6f-4d3e-9a3b-2c4d5e6f7a8b","original_img_path":"photos/a.jpg","predicted_img_path":"predicted_photos/a-predict.jpg","labels":[{"class":"person","cx":0.5,"cy":0.5,"width":0.2,"height":0.4}],"time":1715954589.5}`

	var summary api.PredictionSummary
	require.NoError(t, json.Unmarshal([]byte(input), &summary))

	output, err := json.Marshal(summary)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(output))
}
