package yolo

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const boxThickness = 3

var palette = []color.NRGBA{
	{R: 255, G: 56, B: 56, A: 255},
	{R: 255, G: 157, B: 151, A: 255},
	{R: 255, G: 112, B: 31, A: 255},
	{R: 255, G: 178, B: 29, A: 255},
	{R: 207, G: 210, B: 49, A: 255},
	{R: 72, G: 249, B: 10, A: 255},
	{R: 146, G: 204, B: 23, A: 255},
	{R: 61, G: 219, B: 134, A: 255},
	{R: 26, G: 147, B: 52, A: 255},
	{R: 0, G: 212, B: 187, A: 255},
}

func classColor(classId int) color.NRGBA {
	return palette[classId%len(palette)]
}

// DrawBoxes returns a copy of img with a rectangle outline for every box.
func DrawBoxes(img image.Image, boxes []Box) *image.NRGBA {
	out := imaging.Clone(img)
	bounds := out.Bounds()

	for _, b := range boxes {
		x1, y1 := int(b.X1), int(b.Y1)
		x2, y2 := int(b.X2), int(b.Y2)
		w, h := x2-x1, y2-y1
		if w <= 0 || h <= 0 {
			continue
		}

		t := min(boxThickness, w, h)
		c := classColor(b.ClassId)

		edges := []image.Rectangle{
			image.Rect(x1, y1, x2, y1+t),
			image.Rect(x1, y2-t, x2, y2),
			image.Rect(x1, y1, x1+t, y2),
			image.Rect(x2-t, y1, x2, y2),
		}
		for _, edge := range edges {
			r := edge.Intersect(bounds)
			if r.Empty() {
				continue
			}
			out = imaging.Paste(out, imaging.New(r.Dx(), r.Dy(), c), r.Min)
		}
	}

	return out
}
