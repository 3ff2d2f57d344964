package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"detection-bot/pkg/api"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrPredictionNotFound = errors.New("prediction not found")

const DefaultListLimit = 20

// Store persists prediction summaries.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

func classCounts(labels []api.Label) (datatypes.JSON, error) {
	counts := make(map[string]int)
	for _, l := range labels {
		counts[l.Class]++
	}
	data, err := json.Marshal(counts)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func (s *Store) SaveSummary(ctx context.Context, summary *api.PredictionSummary) error {
	counts, err := classCounts(summary.Labels)
	if err != nil {
		return fmt.Errorf("error serializing class counts: %w", err)
	}

	prediction := Prediction{
		Id:               summary.PredictionId,
		OriginalImgPath:  summary.OriginalImgPath,
		PredictedImgPath: summary.PredictedImgPath,
		Time:             summary.Time,
		CreationTime:     time.Now().UTC(),
		ClassCounts:      counts,
	}
	for i, l := range summary.Labels {
		prediction.Labels = append(prediction.Labels, PredictionLabel{
			PredictionId: summary.PredictionId,
			Position:     i,
			Class:        l.Class,
			Cx:           l.Cx,
			Cy:           l.Cy,
			Width:        l.Width,
			Height:       l.Height,
		})
	}

	if err := s.db.WithContext(ctx).Create(&prediction).Error; err != nil {
		slog.Error("error saving prediction", "prediction_id", summary.PredictionId, "error", err)
		return fmt.Errorf("error saving prediction: %w", err)
	}
	return nil
}

func labelsQuery(db *gorm.DB) *gorm.DB {
	return db.Order("position")
}

func (p *Prediction) toSummary() *api.PredictionSummary {
	summary := &api.PredictionSummary{
		PredictionId:     p.Id,
		OriginalImgPath:  p.OriginalImgPath,
		PredictedImgPath: p.PredictedImgPath,
		Labels:           make([]api.Label, 0, len(p.Labels)),
		Time:             p.Time,
	}
	for _, l := range p.Labels {
		summary.Labels = append(summary.Labels, api.Label{Class: l.Class, Cx: l.Cx, Cy: l.Cy, Width: l.Width, Height: l.Height})
	}
	return summary
}

func (s *Store) GetSummary(ctx context.Context, predictionId uuid.UUID) (*api.PredictionSummary, error) {
	var prediction Prediction
	if err := s.db.WithContext(ctx).Preload("Labels", labelsQuery).First(&prediction, "id = ?", predictionId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPredictionNotFound
		}
		slog.Error("error loading prediction", "prediction_id", predictionId, "error", err)
		return nil, fmt.Errorf("error loading prediction: %w", err)
	}
	return prediction.toSummary(), nil
}

// ListSummaries returns the most recent predictions first.
func (s *Store) ListSummaries(ctx context.Context, limit int) ([]api.PredictionSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var predictions []Prediction
	if err := s.db.WithContext(ctx).Preload("Labels", labelsQuery).Order("time DESC").Limit(limit).Find(&predictions).Error; err != nil {
		slog.Error("error listing predictions", "error", err)
		return nil, fmt.Errorf("error listing predictions: %w", err)
	}

	summaries := make([]api.PredictionSummary, 0, len(predictions))
	for i := range predictions {
		summaries = append(summaries, *predictions[i].toSummary())
	}
	return summaries, nil
}

// ClassTotals sums detections per class over all stored predictions.
func (s *Store) ClassTotals(ctx context.Context) (map[string]int, error) {
	var rows []struct {
		Class string
		Total int
	}
	if err := s.db.WithContext(ctx).Model(&PredictionLabel{}).Select("class, count(*) as total").Group("class").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("error counting classes: %w", err)
	}

	totals := make(map[string]int, len(rows))
	for _, r := range rows {
		totals[r.Class] = r.Total
	}
	return totals, nil
}
