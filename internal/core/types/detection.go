package types

import (
	"fmt"
	"math"
)

// Detection is a single object found by the inference engine. Coordinates
// are normalized to [0,1] relative to the source image.
type Detection struct {
	Class   string
	CenterX float64
	CenterY float64
	Width   float64
	Height  float64
}

func (d Detection) Validate() error {
	for name, v := range map[string]float64{"cx": d.CenterX, "cy": d.CenterY, "width": d.Width, "height": d.Height} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("%w: %s=%v is outside [0,1]", ErrParseFailure, name, v)
		}
	}
	return nil
}

type ObjectCount struct {
	Class string
	Count int
}

type InferenceOutput struct {
	// AnnotatedImagePath is the image with detections drawn on it.
	AnnotatedImagePath string
	// LabelsPath is where the engine writes its label file. The file only
	// exists if at least one object was detected.
	LabelsPath string
}
