package core

import (
	"context"
	"fmt"
	"path/filepath"

	"detection-bot/internal/core/types"
	"detection-bot/internal/core/yolo"
)

// Engine runs object detection on a local image. It writes an annotated copy
// of the image and, only when objects were found, a label file into runDir.
type Engine interface {
	Detect(ctx context.Context, imagePath, runDir string) (types.InferenceOutput, error)

	Release()
}

type EngineType string

const (
	OnnxEngine    EngineType = "onnx"
	CommandEngine EngineType = "command"
)

type EngineLoader func() (Engine, error)

type EngineOptions struct {
	ModelPath     string
	NumClasses    int
	ConfThreshold float32
	IouThreshold  float32

	PythonExecutable string
	DetectScript     string
	DataConfig       string
}

func NewEngineLoaders(opts EngineOptions) map[EngineType]EngineLoader {
	return map[EngineType]EngineLoader{
		OnnxEngine: func() (Engine, error) {
			return yolo.NewOnnxEngine(yolo.OnnxConfig{
				ModelPath:     opts.ModelPath,
				NumClasses:    opts.NumClasses,
				ConfThreshold: opts.ConfThreshold,
				IouThreshold:  opts.IouThreshold,
			})
		},
		CommandEngine: func() (Engine, error) {
			script, err := filepath.Abs(opts.DetectScript)
			if err != nil {
				return nil, fmt.Errorf("invalid detect script path: %w", err)
			}
			return &yolo.CommandEngine{
				Python:  opts.PythonExecutable,
				Script:  script,
				Weights: opts.ModelPath,
				Data:    opts.DataConfig,
			}, nil
		},
	}
}

func LoadEngine(engineType EngineType, loaders map[EngineType]EngineLoader) (Engine, error) {
	loader, ok := loaders[engineType]
	if !ok {
		return nil, fmt.Errorf("unsupported engine type '%s'", engineType)
	}
	return loader()
}
