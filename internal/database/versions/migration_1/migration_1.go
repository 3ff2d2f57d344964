package migration_1

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Prediction struct {
	Id          uuid.UUID `gorm:"type:uuid;primaryKey"`
	ClassCounts datatypes.JSON
}

type PredictionLabel struct {
	PredictionId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position     int       `gorm:"primaryKey;autoIncrement:false"`
	Class        string
}

// Migration adds the class_counts column and backfills it from the existing
// label rows.
func Migration(db *gorm.DB) error {
	if err := db.Migrator().AddColumn(&Prediction{}, "ClassCounts"); err != nil {
		return fmt.Errorf("error adding ClassCounts column: %w", err)
	}

	if err := db.Model(&Prediction{}).Where("1 = 1").Update("class_counts", datatypes.JSON("{}")).Error; err != nil {
		return fmt.Errorf("error initializing class counts: %w", err)
	}

	var labels []PredictionLabel
	if err := db.Order("prediction_id, position").Find(&labels).Error; err != nil {
		return fmt.Errorf("error loading prediction labels: %w", err)
	}

	counts := make(map[uuid.UUID]map[string]int)
	for _, label := range labels {
		if counts[label.PredictionId] == nil {
			counts[label.PredictionId] = make(map[string]int)
		}
		counts[label.PredictionId][label.Class]++
	}

	for predictionId, classCounts := range counts {
		data, err := json.Marshal(classCounts)
		if err != nil {
			return fmt.Errorf("error serializing class counts: %w", err)
		}
		if err := db.Model(&Prediction{Id: predictionId}).Update("class_counts", datatypes.JSON(data)).Error; err != nil {
			return fmt.Errorf("error backfilling class counts for %s: %w", predictionId, err)
		}
	}

	return nil
}

func Rollback(db *gorm.DB) error {
	if err := db.Migrator().DropColumn(&Prediction{}, "ClassCounts"); err != nil {
		return fmt.Errorf("error dropping ClassCounts column: %w", err)
	}
	return nil
}
