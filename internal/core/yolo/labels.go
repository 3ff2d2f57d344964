package yolo

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteLabels writes one "class cx cy w h" line per box with coordinates
// normalized to the image size.
func WriteLabels(w io.Writer, boxes []Box, width, height int) error {
	bw := bufio.NewWriter(w)
	for _, b := range boxes {
		cx := (b.X1 + b.X2) / 2 / float32(width)
		cy := (b.Y1 + b.Y2) / 2 / float32(height)
		bwidth := (b.X2 - b.X1) / float32(width)
		bheight := (b.Y2 - b.Y1) / float32(height)

		if _, err := fmt.Fprintf(bw, "%d %.6f %.6f %.6f %.6f\n", b.ClassId, cx, cy, bwidth, bheight); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeLabelFile(path string, boxes []Box, width, height int) error {
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		return fmt.Errorf("error creating label dir: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating label file: %w", err)
	}
	defer file.Close()

	if err := WriteLabels(file, boxes, width, height); err != nil {
		return fmt.Errorf("error writing label file: %w", err)
	}
	return nil
}
