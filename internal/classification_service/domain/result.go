package domain

import (
	"fmt"
	"math"
)

// InputSize is the edge length every image is resized to before
// prediction. Models must accept a 1 x InputSize x InputSize x 3 tensor.
const InputSize = 224

// Result is the prediction for one image.
type Result struct {
	Label      string
	Confidence string
	Index      int
	Score      float32
}

// Model runs one forward pass over a preprocessed image tensor laid out as
// row-major height x width x 3, values in [0,1].
type Model interface {
	InputSize() (height, width int)
	Predict(input []float32) ([]float32, error)
}

// ModelSpec locates a model's files on disk.
type ModelSpec struct {
	Name         string
	ModelPath    string
	MetadataPath string
}

// ArgMax returns the index and value of the largest score. Ties resolve to
// the lowest index; NaN never wins. It returns -1 for an empty slice.
func ArgMax(scores []float32) (int, float32) {
	best, bestScore := -1, float32(math.Inf(-1))
	for i, s := range scores {
		if s != s {
			continue
		}
		if best == -1 || s > bestScore {
			best, bestScore = i, s
		}
	}
	if best == -1 {
		return -1, 0
	}
	return best, bestScore
}

// LabelFor returns labels[i] or "Class i" when no label exists.
func LabelFor(labels []string, i int) string {
	if i >= 0 && i < len(labels) && labels[i] != "" {
		return labels[i]
	}
	return fmt.Sprintf("Class %d", i)
}

// FormatConfidence renders a probability as a percentage with one decimal.
func FormatConfidence(score float32) string {
	return fmt.Sprintf("%.1f%%", float64(score)*100)
}

// NewResult picks the winning class from raw model output.
func NewResult(scores []float32, labels []string) (*Result, error) {
	i, s := ArgMax(scores)
	if i < 0 {
		return nil, fmt.Errorf("model produced no usable scores")
	}
	return &Result{
		Label:      LabelFor(labels, i),
		Confidence: FormatConfidence(s),
		Index:      i,
		Score:      s,
	}, nil
}
