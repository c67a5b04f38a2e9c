package graph

import (
	"io"
	"math/rand"
	"testing"

	"github.com/born-ml/convnet/internal/config"
	"github.com/born-ml/convnet/internal/matrix"
	"github.com/born-ml/convnet/internal/parallel"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Diag = io.Discard
	cfg.Parallel = parallel.Sequential()
	return cfg
}

// tinyNet is data(3) -> fc(2) -> softmax -> logreg.
func tinyNet(coeff float64) []config.LayerDecl {
	return []config.LayerDecl{
		{Name: "data", Type: config.TypeData, DataIdx: 0, Outputs: 3},
		{Name: "labels", Type: config.TypeData, DataIdx: 1, Outputs: 1},
		{Name: "fc", Type: config.TypeFC, Inputs: []int{0}, Outputs: 2,
			InitW: []float64{0.5}, EpsW: []float64{0.1}, EpsB: 0.1},
		{Name: "probs", Type: config.TypeSoftmax, Inputs: []int{2}},
		{Name: "cost", Type: config.TypeLogregCost, Inputs: []int{1, 3}, Coeff: config.Float(coeff)},
	}
}

// randomBatch draws Gaussian features and uniform labels.
func randomBatch(seed int64, numCases, features, classes int) *Dataset {
	rng := rand.New(rand.NewSource(seed))
	x := matrix.New(numCases, features)
	y := matrix.New(numCases, 1)
	for i := 0; i < numCases; i++ {
		for j := 0; j < features; j++ {
			x.Set(i, j, rng.NormFloat64())
		}
		y.Set(i, 0, float64(rng.Intn(classes)))
	}
	return NewDataset(numCases, x, y)
}

func mustBuild(t *testing.T, decls []config.LayerDecl, cfg Config) *Graph {
	t.Helper()
	g, err := New(decls, cfg)
	require.NoError(t, err)
	return g
}

func mustLayer(t *testing.T, g *Graph, name string) *Layer {
	t.Helper()
	l, ok := g.Layer(name)
	require.True(t, ok, "layer %q", name)
	return l
}

// countingVariant counts forward computations of the wrapped variant.
type countingVariant struct {
	variant
	fprops int
}

func (c *countingVariant) fprop(l *Layer, inputs []*matrix.Matrix, pass PassType) {
	c.fprops++
	c.variant.fprop(l, inputs, pass)
}

func names(ls []*Layer) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.Name()
	}
	return out
}

func count(xs []string, x string) int {
	n := 0
	for _, v := range xs {
		if v == x {
			n++
		}
	}
	return n
}
