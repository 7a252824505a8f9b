package domain

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResult_PicksHighestScore(t *testing.T) {
	r, err := NewResult([]float32{0.1, 0.7, 0.2}, []string{"A", "B", "C"})
	require.NoError(t, err)
	assert.Equal(t, "B", r.Label)
	assert.Equal(t, "70.0%", r.Confidence)
	assert.Equal(t, 1, r.Index)
}

func TestArgMax_TieResolvesToLowerIndex(t *testing.T) {
	i, s := ArgMax([]float32{0.2, 0.4, 0.4})
	assert.Equal(t, 1, i)
	assert.Equal(t, float32(0.4), s)
}

func TestArgMax_SkipsNaN(t *testing.T) {
	nan := float32(math.NaN())
	i, _ := ArgMax([]float32{nan, 0.3, nan})
	assert.Equal(t, 1, i)

	i, _ = ArgMax([]float32{nan})
	assert.Equal(t, -1, i)
	i, _ = ArgMax(nil)
	assert.Equal(t, -1, i)
}

func TestLabelFor_FallsBackToClassIndex(t *testing.T) {
	assert.Equal(t, "Class 3", LabelFor([]string{"A", "B"}, 3))
	assert.Equal(t, "Class 0", LabelFor(nil, 0))
	assert.Equal(t, "Class 1", LabelFor([]string{"A", ""}, 1))
}

func TestFormatConfidence(t *testing.T) {
	assert.Equal(t, "99.9%", FormatConfidence(0.9994))
	assert.Equal(t, "100.0%", FormatConfidence(1))
	assert.Equal(t, "0.0%", FormatConfidence(0))
}

func TestNewResult_Empty(t *testing.T) {
	_, err := NewResult(nil, nil)
	assert.Error(t, err)
}
