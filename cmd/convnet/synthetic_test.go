package main

import (
	"io"
	"strings"
	"testing"

	"github.com/born-ml/convnet/graph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinNet(t *testing.T) {
	decls, err := graph.LoadDefinition(strings.NewReader(builtinNet))
	require.NoError(t, err)
	cfg := graph.DefaultConfig()
	cfg.Diag = io.Discard
	g, err := graph.New(decls, cfg)
	require.NoError(t, err)

	batch, err := syntheticBatch(g, 6, 3)
	require.NoError(t, err)
	require.Len(t, batch.Data, 2)
	assert.Equal(t, 128, batch.Data[0].Cols())
	for i := 0; i < 6; i++ {
		label := batch.Data[1].At(i, 0)
		assert.GreaterOrEqual(t, label, 0.0)
		assert.Less(t, label, 4.0)
	}

	first, err := g.TrainStep(batch)
	require.NoError(t, err)
	var last *graph.ErrorResult
	for i := 0; i < 30; i++ {
		last, err = g.TrainStep(batch)
		require.NoError(t, err)
	}
	assert.Less(t, last.Cost(), first.Cost())
}

func TestSyntheticBatch_TransposedSlot(t *testing.T) {
	decls := []graph.LayerDecl{
		{Name: "x", Type: "data", Outputs: 3, Trans: true},
		{Name: "labels", Type: "data", DataIdx: 1, Outputs: 1},
		{Name: "probs", Type: "softmax", Inputs: []int{0}},
		{Name: "cost", Type: "cost.logreg", Inputs: []int{1, 2}},
	}
	cfg := graph.DefaultConfig()
	cfg.Diag = io.Discard
	g, err := graph.New(decls, cfg)
	require.NoError(t, err)

	batch, err := syntheticBatch(g, 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, batch.Data[0].Rows(), "stored neuron-major")
	_, err = g.Evaluate(batch)
	assert.NoError(t, err)

	_, err = syntheticBatch(g, 0, 1)
	assert.Error(t, err)
}
