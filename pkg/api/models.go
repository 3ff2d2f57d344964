package api

import (
	"github.com/google/uuid"
)

type Label struct {
	Class  string  `json:"class"`
	Cx     float64 `json:"cx"`
	Cy     float64 `json:"cy"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PredictionSummary is the document returned by POST /predict and stored
// under the json/ prefix.
type PredictionSummary struct {
	PredictionId     uuid.UUID `json:"prediction_id"`
	OriginalImgPath  string    `json:"original_img_path"`
	PredictedImgPath string    `json:"predicted_img_path"`
	Labels           []Label   `json:"labels"`
	// Time is seconds since the unix epoch.
	Time float64 `json:"time"`
}

type PredictParams struct {
	ImgName string `schema:"imgName"`
}

type ListPredictionsParams struct {
	Limit int `schema:"limit"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PredictionStats struct {
	ClassTotals map[string]int `json:"class_totals"`
}
