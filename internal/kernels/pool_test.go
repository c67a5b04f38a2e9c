package kernels

import (
	"math/rand"
	"testing"

	"github.com/born-ml/convnet/internal/matrix"
	"github.com/born-ml/convnet/internal/parallel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestDefaultOutputsX(t *testing.T) {
	assert.Equal(t, 2, DefaultOutputsX(4, 2, 0, 2))
	assert.Equal(t, 3, DefaultOutputsX(5, 2, 0, 2))
	assert.Equal(t, 4, DefaultOutputsX(6, 3, 0, 1))
	assert.Equal(t, 2, DefaultOutputsX(4, 3, -1, 2))
}

func TestPool_Max(t *testing.T) {
	g := PoolGeometry{Channels: 1, ImgSize: 4, SizeX: 2, Stride: 2, OutputsX: 2}
	images := matrix.FromSlice(1, 16, []float64{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
		13, 14, 15, 16,
	})
	target := &matrix.Matrix{}

	Pool(images, target, g, PoolMax, 0, 1, parallel.Sequential())
	assert.Equal(t, []float64{6, 8, 14, 16}, target.Raw())
}

func TestPool_AvgClipsWindowButKeepsArea(t *testing.T) {
	g := PoolGeometry{Channels: 1, ImgSize: 3, SizeX: 2, Stride: 2, OutputsX: 2}
	images := matrix.FromSlice(1, 9, []float64{
		1, 1, 2,
		1, 1, 2,
		4, 4, 8,
	})
	target := &matrix.Matrix{}

	Pool(images, target, g, PoolAvg, 0, 1, parallel.Sequential())
	assert.Equal(t, []float64{1, 1, 2, 2}, target.Raw())
}

func TestMaxUndo_RoutesToArgmax(t *testing.T) {
	g := PoolGeometry{Channels: 1, ImgSize: 2, SizeX: 2, Stride: 2, OutputsX: 1}
	images := matrix.FromSlice(1, 4, []float64{1, 7, 3, 2})
	maxes := &matrix.Matrix{}
	Pool(images, maxes, g, PoolMax, 0, 1, parallel.Sequential())
	grad := matrix.FromSlice(1, 1, []float64{0.5})
	target := &matrix.Matrix{}

	MaxUndo(images, maxes, grad, target, g, 0, 1, parallel.Sequential())
	assert.Equal(t, []float64{0, 0.5, 0, 0}, target.Raw())

	MaxUndo(images, maxes, grad, target, g, 1, 1, parallel.Sequential())
	assert.Equal(t, []float64{0, 1, 0, 0}, target.Raw())
}

func TestAvgUndo_OverlappingWindows(t *testing.T) {
	g := PoolGeometry{Channels: 1, ImgSize: 3, SizeX: 2, Stride: 1, OutputsX: 2}
	grad := matrix.FromSlice(1, 4, []float64{4, 4, 4, 4})
	target := &matrix.Matrix{}

	AvgUndo(grad, target, g, 0, 1, parallel.Sequential())
	assert.Equal(t, []float64{
		1, 2, 1,
		2, 4, 2,
		1, 2, 1,
	}, target.Raw())
}

// TestAvgUndo_IsAdjoint checks <pool(x), h> == <x, avgUndo(h)>.
func TestAvgUndo_IsAdjoint(t *testing.T) {
	g := PoolGeometry{Channels: 2, ImgSize: 5, SizeX: 3, Start: -1, Stride: 2}
	g.OutputsX = DefaultOutputsX(g.ImgSize, g.SizeX, g.Start, g.Stride)
	images := randMatrix(newRand(5), 3, g.ImgPixels())
	hid := randMatrix(newRand(6), 3, g.Outputs())

	pooled := &matrix.Matrix{}
	Pool(images, pooled, g, PoolAvg, 0, 1, parallel.DefaultConfig())
	back := &matrix.Matrix{}
	AvgUndo(hid, back, g, 0, 1, parallel.DefaultConfig())

	require.Equal(t, g.ImgPixels(), back.Cols())
	assert.InDelta(t, dot(pooled, hid), dot(images, back), 1e-9)
}

func TestPoolGeometry_Validate(t *testing.T) {
	assert.Panics(t, func() {
		PoolGeometry{Channels: 1, ImgSize: 4, SizeX: 2, Stride: 2, OutputsX: 3}.Validate("test")
	})
	assert.Panics(t, func() {
		PoolGeometry{Channels: 1, ImgSize: 4, SizeX: 2, Start: -2, Stride: 2, OutputsX: 1}.Validate("test")
	})
	assert.NotPanics(t, func() {
		PoolGeometry{Channels: 1, ImgSize: 4, SizeX: 2, Stride: 2, OutputsX: 2}.Validate("test")
	})
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

func dot(a, b *matrix.Matrix) float64 {
	return mat.Dot(vec(a), vec(b))
}
