package graph

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func setRow(w interface{ Set(i, j int, v float64) }, vals ...float64) {
	for j, v := range vals {
		w.Set(0, j, v)
	}
}

func TestNewWeights_Init(t *testing.T) {
	b := NewWeights("b", 1, 4, 0.25, nil, 0, 0, 0)
	assert.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, b.W().Raw())
	assert.Equal(t, 0.0, floats.Sum(b.Inc().Raw()))

	w := NewWeights("w", 100, 100, 0.1, rand.New(rand.NewSource(1)), 0, 0, 0)
	mean, std := stat.MeanStdDev(w.W().Raw(), nil)
	assert.InDelta(t, 0, mean, 0.005)
	assert.InDelta(t, 0.1, std, 0.005)
}

func TestWeights_TrainUpdate(t *testing.T) {
	w := NewWeights("w", 1, 2, 0, nil, 0.5, 0.9, 0)
	setRow(w.Inc(), 1, 1)
	setRow(w.Grad(), 2, 4)

	w.Accumulate(PassTrain, 2)
	assert.InDeltaSlice(t, []float64{1.4, 1.9}, w.Inc().Raw(), 1e-12, "first contribution applies momentum")
	assert.Equal(t, 1, w.NumUpdates())

	w.Accumulate(PassTrain, 2)
	assert.InDeltaSlice(t, []float64{1.9, 2.9}, w.Inc().Raw(), 1e-12, "later contributions accumulate")

	w.Update()
	assert.InDeltaSlice(t, []float64{1.9, 2.9}, w.W().Raw(), 1e-12)
	assert.Equal(t, 0, w.NumUpdates())
}

func TestWeights_Decay(t *testing.T) {
	w := NewWeights("w", 1, 2, 0, nil, 0.5, 0, 0.1)
	setRow(w.W(), 1, 2)

	w.Update()
	assert.InDeltaSlice(t, []float64{0.95, 1.9}, w.W().Raw(), 1e-12)
}

func TestWeights_GradCheckAccumulate(t *testing.T) {
	w := NewWeights("w", 1, 2, 0, nil, 0.5, 0.9, 0)
	setRow(w.Inc(), 5, 5)
	setRow(w.Grad(), 1, 2)

	w.Accumulate(PassGradCheck, 10)
	assert.Equal(t, []float64{1, 2}, w.Inc().Raw(), "raw gradient replaces the increment")
	w.Accumulate(PassGradCheck, 10)
	assert.Equal(t, []float64{2, 4}, w.Inc().Raw())
}

func TestWeights_HostRoundTrip(t *testing.T) {
	w := NewWeights("w", 2, 2, 0.1, rand.New(rand.NewSource(2)), 0.1, 0, 0)
	assert.Nil(t, w.Host())
	w.CopyToDevice() // no snapshot yet

	want := append([]float64(nil), w.W().Raw()...)
	w.CopyToHost()
	w.W().Scale(3)
	w.CopyToDevice()
	assert.Equal(t, want, w.W().Raw())
	assert.Equal(t, want, w.Host().RawMatrix().Data)
}
