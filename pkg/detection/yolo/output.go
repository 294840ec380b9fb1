package yolo

import "image"

// Candidate is a scored box before non-maximum suppression.
type Candidate struct {
	Rect    image.Rectangle
	Score   float32
	ClassID int
}

// ParseOutput decodes a YOLOv8 head laid out as [features][anchors], where
// features = 4 box values (cx, cy, w, h in model-input pixels) followed by
// one score per class. Boxes are scaled back to frame pixels.
func ParseOutput(data []float32, features, anchors int, scaleX, scaleY, thresh float32) []Candidate {
	if features < 5 || anchors <= 0 || len(data) < features*anchors {
		return nil
	}

	var out []Candidate
	for i := 0; i < anchors; i++ {
		maxScore := float32(0)
		maxClass := 0
		for c := 4; c < features; c++ {
			score := data[c*anchors+i]
			if score > maxScore {
				maxScore = score
				maxClass = c - 4
			}
		}
		if maxScore < thresh {
			continue
		}

		cx := data[0*anchors+i]
		cy := data[1*anchors+i]
		w := data[2*anchors+i]
		h := data[3*anchors+i]

		x1 := int((cx - w/2) * scaleX)
		y1 := int((cy - h/2) * scaleY)
		x2 := int((cx + w/2) * scaleX)
		y2 := int((cy + h/2) * scaleY)

		out = append(out, Candidate{
			Rect:    image.Rect(x1, y1, x2, y2),
			Score:   maxScore,
			ClassID: maxClass,
		})
	}
	return out
}
