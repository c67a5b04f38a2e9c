package kernels

import (
	"math"
	"testing"

	"github.com/born-ml/convnet/internal/matrix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSoftmax_RowsSumToOne(t *testing.T) {
	tests := []struct {
		name string
		row  []float64
	}{
		{"small", []float64{0.1, -0.2, 0.3}},
		{"large positive", []float64{1000, 999, 998}},
		{"large negative", []float64{-1000, -1001, -1200}},
		{"mixed extremes", []float64{800, -800, 0}},
		{"constant", []float64{5, 5, 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := matrix.FromSlice(1, len(tt.row), append([]float64(nil), tt.row...))
			target := &matrix.Matrix{}

			Softmax(input, target, 0, 1)

			sum := 0.0
			for _, v := range target.Raw() {
				require.False(t, math.IsNaN(v) || math.IsInf(v, 0), "non-finite output %v", v)
				sum += v
			}
			assert.InDelta(t, 1.0, sum, 1e-12)
		})
	}
}

func TestSoftmax_TransposedInput(t *testing.T) {
	input := matrix.FromSlice(3, 2, []float64{0, 1, 0, 1, 0, 1})
	input.Transpose() // two cases of three classes
	target := &matrix.Matrix{}

	Softmax(input, target, 0, 1)

	require.Equal(t, 2, target.Rows())
	for j := 0; j < 3; j++ {
		assert.InDelta(t, 1.0/3, target.At(0, j), 1e-12)
	}
}

func TestSoftmaxGrad_MatchesJacobian(t *testing.T) {
	logits := matrix.FromSlice(1, 3, []float64{0.5, -1, 2})
	acts := &matrix.Matrix{}
	Softmax(logits, acts, 0, 1)
	grad := matrix.FromSlice(1, 3, []float64{1, -2, 0.5})

	target := &matrix.Matrix{}
	SoftmaxGrad(grad, acts, target, 0)

	y := acts.Raw()
	for j := 0; j < 3; j++ {
		want := 0.0
		for i := 0; i < 3; i++ {
			delta := 0.0
			if i == j {
				delta = 1
			}
			want += grad.At(0, i) * y[i] * (delta - y[j])
		}
		assert.InDelta(t, want, target.At(0, j), 1e-12)
	}

	before := append([]float64(nil), target.Raw()...)
	SoftmaxGrad(grad, acts, target, 1)
	for j := range before {
		assert.InDelta(t, 2*before[j], target.Raw()[j], 1e-12)
	}
}

func TestLogregCost(t *testing.T) {
	labels := matrix.FromSlice(3, 1, []float64{0, 2, 1})
	probs := matrix.FromSlice(3, 3, []float64{
		0.7, 0.2, 0.1,
		0.5, 0.3, 0.2,
		0.4, 0.4, 0.2,
	})

	logProbs, correct := LogregCost(labels, probs)
	assert.InDeltaSlice(t, []float64{math.Log(0.7), math.Log(0.2), math.Log(0.4)}, logProbs, 1e-12)
	assert.Equal(t, []float64{1, 0, 1}, correct)
}

func TestLogregGrad(t *testing.T) {
	labels := matrix.FromSlice(2, 1, []float64{1, 0})
	probs := matrix.FromSlice(2, 2, []float64{0.25, 0.75, 0.5, 0.5})
	target := &matrix.Matrix{}

	LogregGrad(labels, probs, target, 0, 2)
	assert.InDeltaSlice(t, []float64{0, 2 / 0.75, 4, 0}, target.Raw(), 1e-12)
}

func TestLogregCost_BadLabel(t *testing.T) {
	labels := matrix.FromSlice(1, 1, []float64{3})
	probs := matrix.FromSlice(1, 2, []float64{0.5, 0.5})

	defer func() {
		le, ok := recover().(*matrix.LaunchError)
		require.True(t, ok)
		assert.Equal(t, "logregCost", le.Kernel)
	}()
	LogregCost(labels, probs)
}
