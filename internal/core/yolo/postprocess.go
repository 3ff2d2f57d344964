package yolo

import (
	"sort"
)

// Box is a detection in pixel coordinates of the source image.
type Box struct {
	ClassId    int
	Confidence float32
	X1, Y1     float32
	X2, Y2     float32
}

func (b Box) area() float32 {
	return max(0, b.X2-b.X1) * max(0, b.Y2-b.Y1)
}

func iou(a, b Box) float32 {
	x1, y1 := max(a.X1, b.X1), max(a.Y1, b.Y1)
	x2, y2 := min(a.X2, b.X2), min(a.Y2, b.Y2)

	inter := max(0, x2-x1) * max(0, y2-y1)
	union := a.area() + b.area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// DecodeOutput reads a YOLOv5 output tensor laid out as rows of
// [cx, cy, w, h, objectness, class scores...] in model input pixels and
// returns the candidates above confThreshold scaled to the source image and
// clipped to its bounds.
func DecodeOutput(output []float32, numClasses int, confThreshold float32, inputSize, srcWidth, srcHeight int) []Box {
	stride := 5 + numClasses
	if numClasses <= 0 || len(output)%stride != 0 {
		return nil
	}

	scaleX := float32(srcWidth) / float32(inputSize)
	scaleY := float32(srcHeight) / float32(inputSize)

	var boxes []Box
	for offset := 0; offset < len(output); offset += stride {
		row := output[offset : offset+stride]

		objectness := row[4]
		if objectness < confThreshold {
			continue
		}

		classId, best := 0, float32(0)
		for c, score := range row[5:] {
			if score > best {
				classId, best = c, score
			}
		}

		confidence := objectness * best
		if confidence < confThreshold {
			continue
		}

		cx, cy, w, h := row[0]*scaleX, row[1]*scaleY, row[2]*scaleX, row[3]*scaleY
		boxes = append(boxes, Box{
			ClassId:    classId,
			Confidence: confidence,
			X1:         clip(cx-w/2, float32(srcWidth)),
			Y1:         clip(cy-h/2, float32(srcHeight)),
			X2:         clip(cx+w/2, float32(srcWidth)),
			Y2:         clip(cy+h/2, float32(srcHeight)),
		})
	}

	return boxes
}

func clip(v, limit float32) float32 {
	return min(max(v, 0), limit)
}

// NonMaxSuppression keeps the highest confidence box of every overlapping
// group. Boxes of different classes never suppress each other. The result is
// sorted by descending confidence.
func NonMaxSuppression(boxes []Box, iouThreshold float32) []Box {
	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})

	suppressed := make([]bool, len(sorted))
	kept := make([]Box, 0, len(sorted))
	for i := range sorted {
		if suppressed[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if suppressed[j] || sorted[j].ClassId != sorted[i].ClassId {
				continue
			}
			if iou(sorted[i], sorted[j]) > iouThreshold {
				suppressed[j] = true
			}
		}
	}

	return kept
}
