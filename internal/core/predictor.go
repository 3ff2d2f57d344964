package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"detection-bot/internal/core/types"
	"detection-bot/internal/messaging"
	"detection-bot/internal/metrics"
	"detection-bot/internal/storage"
	"detection-bot/pkg/api"

	"github.com/google/uuid"
)

// ResultNotFoundError is returned when the engine found no objects, so no
// label output exists for the prediction.
type ResultNotFoundError struct {
	PredictionId uuid.UUID
	ImgName      string
}

func (e *ResultNotFoundError) Error() string {
	return fmt.Sprintf("prediction: %s/%s. %s", e.PredictionId, e.ImgName, types.ErrResultNotFound)
}

func (e *ResultNotFoundError) Unwrap() error {
	return types.ErrResultNotFound
}

type SummaryStore interface {
	SaveSummary(ctx context.Context, summary *api.PredictionSummary) error
}

// Predictor serves a single prediction: it fetches the staged photo, runs the
// detection engine, uploads the annotated image and assembles the summary.
type Predictor struct {
	stager    *storage.Stager
	engine    Engine
	classes   []string
	store     SummaryStore
	publisher messaging.Publisher
	workDir   string

	KeepArtifacts bool
	Now           func() time.Time
}

// NewPredictor creates a predictor. store and publisher are optional.
func NewPredictor(stager *storage.Stager, engine Engine, classes []string, store SummaryStore, publisher messaging.Publisher, workDir string) *Predictor {
	return &Predictor{
		stager:    stager,
		engine:    engine,
		classes:   classes,
		store:     store,
		publisher: publisher,
		workDir:   workDir,
		Now:       time.Now,
	}
}

type requestIdKey struct{}

// WithRequestId attaches the caller's correlation id so prediction logs can be
// matched with the request that triggered them.
func WithRequestId(ctx context.Context, requestId string) context.Context {
	return context.WithValue(ctx, requestIdKey{}, requestId)
}

func RequestIdFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIdKey{}).(string)
	return id
}

func splitName(name string) (string, string) {
	base := path.Base(name)
	ext := path.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

func PredictedImageKey(imgName string) string {
	stem, ext := splitName(imgName)
	return path.Join(storage.PredictedPhotosPrefix, stem+"-predict"+ext)
}

func SummaryDocumentKey(imgName string) string {
	stem, _ := splitName(imgName)
	return path.Join(storage.JsonPrefix, stem+".json")
}

func unixSeconds(t time.Time) float64 {
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second)
}

func (p *Predictor) Predict(ctx context.Context, imgName string) (*api.PredictionSummary, error) {
	if imgName == "" {
		return nil, types.ErrMissingParameter
	}

	start := time.Now()
	summary, err := p.predict(ctx, uuid.New(), imgName)

	result := "success"
	switch {
	case errors.Is(err, types.ErrResultNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
	}
	metrics.Predictions.WithLabelValues(result).Inc()
	metrics.PredictionDuration.Observe(time.Since(start).Seconds())

	return summary, err
}

func (p *Predictor) predict(ctx context.Context, predictionId uuid.UUID, imgName string) (*api.PredictionSummary, error) {
	logger := slog.With("prediction_id", predictionId, "img_name", imgName, "request_id", RequestIdFromContext(ctx))
	logger.Info("prediction: start processing")

	inputDir := filepath.Join(p.workDir, "inputs", predictionId.String())
	runDir := filepath.Join(p.workDir, "runs", predictionId.String())
	if !p.KeepArtifacts {
		defer func() {
			if err := os.RemoveAll(inputDir); err != nil {
				logger.Warn("error removing prediction input", "error", err)
			}
			if err := os.RemoveAll(runDir); err != nil {
				logger.Warn("error removing prediction run dir", "error", err)
			}
		}()
	}

	localPath := filepath.Join(inputDir, path.Base(imgName))
	if err := p.stager.Download(ctx, imgName, localPath); err != nil {
		logger.Error("error downloading image", "error", err)
		return nil, err
	}

	output, err := p.engine.Detect(ctx, localPath, runDir)
	if err != nil {
		logger.Error("error running detection engine", "error", err)
		return nil, fmt.Errorf("error running detection engine: %w", err)
	}

	predictedKey := PredictedImageKey(imgName)
	if err := p.stager.UploadAs(ctx, output.AnnotatedImagePath, predictedKey); err != nil {
		logger.Error("error uploading annotated image", "error", err)
		return nil, err
	}

	labelFile, err := os.Open(output.LabelsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logger.Info("prediction: no labels produced")
			return nil, &ResultNotFoundError{PredictionId: predictionId, ImgName: imgName}
		}
		return nil, fmt.Errorf("error opening label file: %w: %w", types.ErrParseFailure, err)
	}
	defer labelFile.Close()

	detections, err := ParseLabels(labelFile, p.classes)
	if err != nil {
		logger.Error("error parsing label file", "path", output.LabelsPath, "error", err)
		return nil, err
	}

	summary := &api.PredictionSummary{
		PredictionId:     predictionId,
		OriginalImgPath:  imgName,
		PredictedImgPath: predictedKey,
		Labels:           DetectionsToLabels(detections),
		Time:             unixSeconds(p.Now()),
	}

	for _, d := range detections {
		metrics.DetectedObjects.WithLabelValues(d.Class).Inc()
	}

	p.persist(ctx, logger, summary)

	logger.Info("prediction: complete", "labels", len(summary.Labels))

	return summary, nil
}

// persist records the summary in the object store, the structured store and
// the event queue. Failures are logged and never fail the prediction.
func (p *Predictor) persist(ctx context.Context, logger *slog.Logger, summary *api.PredictionSummary) {
	doc, err := json.Marshal(summary)
	if err != nil {
		logger.Error("error serializing prediction summary", "error", err)
	} else if err := p.stager.PutDocument(ctx, SummaryDocumentKey(summary.OriginalImgPath), doc); err != nil {
		logger.Error("error storing prediction summary document", "error", err)
	}

	if p.store != nil {
		if err := p.store.SaveSummary(ctx, summary); err != nil {
			logger.Error("error saving prediction summary", "error", err)
		}
	}

	if p.publisher != nil {
		event := messaging.PredictionEventPayload{
			PredictionId:     summary.PredictionId,
			OriginalImgPath:  summary.OriginalImgPath,
			PredictedImgPath: summary.PredictedImgPath,
			LabelCount:       len(summary.Labels),
			Time:             summary.Time,
		}
		if err := p.publisher.PublishPredictionEvent(ctx, event); err != nil {
			logger.Error("error publishing prediction event", "error", err)
		}
	}
}
