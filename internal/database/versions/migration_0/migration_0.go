package migration_0

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Prediction struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OriginalImgPath  string    `gorm:"not null;index"`
	PredictedImgPath string    `gorm:"not null"`
	Time             float64
	CreationTime     time.Time `gorm:"index"`

	Labels []PredictionLabel `gorm:"foreignKey:PredictionId;constraint:OnDelete:CASCADE"`
}

type PredictionLabel struct {
	PredictionId uuid.UUID `gorm:"type:uuid;primaryKey"`
	Position     int       `gorm:"primaryKey;autoIncrement:false"`
	Class        string    `gorm:"not null;index"`
	Cx           float64
	Cy           float64
	Width        float64
	Height       float64
}

func Migration(db *gorm.DB) error {
	if err := db.AutoMigrate(&Prediction{}, &PredictionLabel{}); err != nil {
		return fmt.Errorf("error creating prediction tables: %w", err)
	}
	return nil
}
