package yolo

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"detection-bot/internal/core/types"

	"github.com/disintegration/imaging"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultInputSize     = 640
	DefaultConfThreshold = 0.25
	DefaultIouThreshold  = 0.45
)

var (
	initOnce sync.Once
	initErr  error
)

// InitOnnxRuntime loads the onnxruntime shared library. It is safe to call
// more than once, only the first call has an effect.
func InitOnnxRuntime(libPath string) error {
	initOnce.Do(func() {
		ort.SetSharedLibraryPath(libPath)
		initErr = ort.InitializeEnvironment()
	})
	return initErr
}

type OnnxConfig struct {
	ModelPath     string
	NumClasses    int
	InputSize     int
	ConfThreshold float32
	IouThreshold  float32
}

// numAnchors is the number of candidate rows YOLOv5 emits for a square input:
// three anchors per cell over the stride 8, 16 and 32 grids.
func numAnchors(inputSize int) int64 {
	total := 0
	for _, stride := range []int{8, 16, 32} {
		cells := inputSize / stride
		total += 3 * cells * cells
	}
	return int64(total)
}

// OnnxEngine runs a YOLOv5 ONNX export with a single "images" input of shape
// 1x3xSxS and a single "output0" output of shape 1xNx(5+classes).
type OnnxEngine struct {
	cfg OnnxConfig

	// The session is bound to fixed input/output tensors so runs are serialized.
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[float32]
}

func NewOnnxEngine(cfg OnnxConfig) (*OnnxEngine, error) {
	if cfg.NumClasses <= 0 {
		return nil, fmt.Errorf("onnx engine requires a non empty class table")
	}
	if cfg.InputSize == 0 {
		cfg.InputSize = DefaultInputSize
	}
	if cfg.ConfThreshold == 0 {
		cfg.ConfThreshold = DefaultConfThreshold
	}
	if cfg.IouThreshold == 0 {
		cfg.IouThreshold = DefaultIouThreshold
	}

	size := int64(cfg.InputSize)
	input, err := ort.NewEmptyTensor[float32](ort.NewShape(1, 3, size, size))
	if err != nil {
		return nil, fmt.Errorf("error creating input tensor: %w", err)
	}

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(1, numAnchors(cfg.InputSize), int64(5+cfg.NumClasses)))
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("error creating output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{"images"},
		[]string{"output0"},
		[]ort.Value{input},
		[]ort.Value{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("error creating onnx session for %s: %w", cfg.ModelPath, err)
	}

	slog.Info("loaded onnx detection model", "path", cfg.ModelPath, "classes", cfg.NumClasses, "input_size", cfg.InputSize)

	return &OnnxEngine{cfg: cfg, session: session, input: input, output: output}, nil
}

func fillInput(dst []float32, img image.Image, size int) {
	resized := imaging.Resize(img, size, size, imaging.Linear)
	channel := size * size
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			i := y*size + x
			c := resized.NRGBAAt(x, y)
			dst[i] = float32(c.R) / 255.0
			dst[channel+i] = float32(c.G) / 255.0
			dst[2*channel+i] = float32(c.B) / 255.0
		}
	}
}

func (e *OnnxEngine) infer(img image.Image) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	fillInput(e.input.GetData(), img, e.cfg.InputSize)

	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("error running onnx session: %w", err)
	}

	data := e.output.GetData()
	result := make([]float32, len(data))
	copy(result, data)
	return result, nil
}

func (e *OnnxEngine) Detect(ctx context.Context, imagePath, runDir string) (types.InferenceOutput, error) {
	img, err := imaging.Open(imagePath, imaging.AutoOrientation(true))
	if err != nil {
		return types.InferenceOutput{}, fmt.Errorf("error opening image %s: %w", imagePath, err)
	}

	if err := ctx.Err(); err != nil {
		return types.InferenceOutput{}, err
	}

	raw, err := e.infer(img)
	if err != nil {
		return types.InferenceOutput{}, err
	}

	bounds := img.Bounds()
	candidates := DecodeOutput(raw, e.cfg.NumClasses, e.cfg.ConfThreshold, e.cfg.InputSize, bounds.Dx(), bounds.Dy())
	boxes := NonMaxSuppression(candidates, e.cfg.IouThreshold)

	slog.Debug("onnx detection complete", "image", imagePath, "candidates", len(candidates), "boxes", len(boxes))

	return writeRunOutputs(img, boxes, imagePath, runDir)
}

func (e *OnnxEngine) Release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.input != nil {
		e.input.Destroy()
		e.input = nil
	}
	if e.output != nil {
		e.output.Destroy()
		e.output = nil
	}
}
