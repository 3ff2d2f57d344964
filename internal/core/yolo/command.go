package yolo

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"detection-bot/internal/core/types"
)

// CommandEngine runs the YOLOv5 detect.py script as a subprocess. The script
// writes "<project>/<name>/<basename>" and, when objects are found,
// "<project>/<name>/labels/<stem>.txt", which matches RunOutputPaths.
type CommandEngine struct {
	Python  string
	Script  string
	Weights string
	Data    string
}

func (e *CommandEngine) args(imagePath, runDir string) []string {
	args := []string{
		e.Script,
		"--weights", e.Weights,
		"--source", imagePath,
		"--project", filepath.Dir(runDir),
		"--name", filepath.Base(runDir),
		"--save-txt",
		"--exist-ok",
	}
	if e.Data != "" {
		args = append(args, "--data", e.Data)
	}
	return args
}

func (e *CommandEngine) Detect(ctx context.Context, imagePath, runDir string) (types.InferenceOutput, error) {
	if err := os.MkdirAll(filepath.Dir(runDir), os.ModePerm); err != nil {
		return types.InferenceOutput{}, fmt.Errorf("error creating run dir: %w", err)
	}

	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Python, e.args(imagePath, runDir)...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		slog.Error("detect command failed", "script", e.Script, "image", imagePath, "output", output.String(), "error", err)
		return types.InferenceOutput{}, fmt.Errorf("error running %s: %w", e.Script, err)
	}

	out := RunOutputPaths(imagePath, runDir)
	if _, err := os.Stat(out.AnnotatedImagePath); err != nil {
		return out, fmt.Errorf("detect command produced no annotated image: %w", err)
	}

	return out, nil
}

func (e *CommandEngine) Release() {}
