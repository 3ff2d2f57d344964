package yolo

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"detection-bot/internal/core/types"

	"github.com/disintegration/imaging"
)

// RunOutputPaths returns where a run writes its annotated image and label
// file: "<runDir>/<basename>" and "<runDir>/labels/<stem>.txt".
func RunOutputPaths(imagePath, runDir string) types.InferenceOutput {
	base := filepath.Base(imagePath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return types.InferenceOutput{
		AnnotatedImagePath: filepath.Join(runDir, base),
		LabelsPath:         filepath.Join(runDir, "labels", stem+".txt"),
	}
}

// writeRunOutputs saves the annotated image and, if there is at least one
// box, the label file.
func writeRunOutputs(img image.Image, boxes []Box, imagePath, runDir string) (types.InferenceOutput, error) {
	out := RunOutputPaths(imagePath, runDir)

	if err := os.MkdirAll(runDir, os.ModePerm); err != nil {
		return out, fmt.Errorf("error creating run dir: %w", err)
	}

	if err := imaging.Save(DrawBoxes(img, boxes), out.AnnotatedImagePath); err != nil {
		return out, fmt.Errorf("error saving annotated image: %w", err)
	}

	if len(boxes) == 0 {
		return out, nil
	}

	bounds := img.Bounds()
	if err := writeLabelFile(out.LabelsPath, boxes, bounds.Dx(), bounds.Dy()); err != nil {
		return out, err
	}

	return out, nil
}
