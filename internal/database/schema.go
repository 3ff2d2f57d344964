package database

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type Prediction struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey"`
	OriginalImgPath  string    `gorm:"not null;index"`
	PredictedImgPath string    `gorm:"not null"`
	// Time is the prediction time in seconds since the unix epoch, as reported
	// in the summary.
	Time         float64
	CreationTime time.Time `gorm:"index"`

	// ClassCounts maps class name to the number of detections of that class.
	ClassCounts datatypes.JSON

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
