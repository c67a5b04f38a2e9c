package graph

import (
	"math"
	"testing"

	"github.com/born-ml/convnet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// convNet is a 5x5 single-channel image -> conv(2 filters, 3x3, pad 1)
// -> pool(2x2, stride 2) -> fc(3) -> softmax -> logreg.
func convNet(pool string, partialSum int) []config.LayerDecl {
	return []config.LayerDecl{
		{Name: "images", Type: config.TypeData, Outputs: 25},
		{Name: "labels", Type: config.TypeData, DataIdx: 1, Outputs: 1},
		{Name: "conv", Type: config.TypeConv, Inputs: []int{0}, Channels: 1, ImgSize: 5,
			FilterSize: 3, Padding: 1, Filters: 2, PartialSum: partialSum,
			InitW: []float64{0.3}, InitB: 0.05, Neuron: "logistic"},
		{Name: "pool", Type: config.TypePool, Inputs: []int{2}, Pool: pool, Channels: 2, ImgSize: 5, SizeX: 2},
		{Name: "fc", Type: config.TypeFC, Inputs: []int{3}, Outputs: 3, InitW: []float64{0.3}},
		{Name: "probs", Type: config.TypeSoftmax, Inputs: []int{4}},
		{Name: "cost", Type: config.TypeLogregCost, Inputs: []int{1, 5}},
	}
}

func TestConvPoolShapes(t *testing.T) {
	g := mustBuild(t, convNet("max", 0), testConfig())

	conv := mustLayer(t, g, "conv")
	pool := mustLayer(t, g, "pool")
	assert.Equal(t, 50, conv.Outputs())
	assert.Equal(t, 18, pool.Outputs(), "outputsX derived as 3")

	r, c := conv.Weights()[0].Dims()
	assert.Equal(t, []int{2, 9}, []int{r, c})
	r, c = conv.Weights()[1].Dims()
	assert.Equal(t, []int{1, 2}, []int{r, c}, "one shared bias per filter")

	require.NoError(t, g.Fprop(randomBatch(20, 4, 25, 3), PassTest))
	r, c = pool.Acts().Dims()
	assert.Equal(t, []int{4, 18}, []int{r, c})
	assert.True(t, pool.IsGradConsumer(), "gradients flow through to the conv weights")
	assert.True(t, pool.IsGradProducer())
}

func TestConvPool_InfersDataWidth(t *testing.T) {
	convFirst := convNet("max", 0)
	convFirst[0].Outputs = 0

	poolFirst := []config.LayerDecl{
		{Name: "images", Type: config.TypeData},
		{Name: "labels", Type: config.TypeData, DataIdx: 1, Outputs: 1},
		{Name: "pool", Type: config.TypePool, Inputs: []int{0}, Pool: "avg", Channels: 1, ImgSize: 5, SizeX: 2},
		{Name: "fc", Type: config.TypeFC, Inputs: []int{2}, Outputs: 3, InitW: []float64{0.3}},
		{Name: "probs", Type: config.TypeSoftmax, Inputs: []int{3}},
		{Name: "cost", Type: config.TypeLogregCost, Inputs: []int{1, 4}},
	}

	for name, decls := range map[string][]config.LayerDecl{"conv": convFirst, "pool": poolFirst} {
		t.Run(name, func(t *testing.T) {
			g := mustBuild(t, decls, testConfig())
			assert.Equal(t, 25, mustLayer(t, g, "images").Outputs())

			assert.ErrorIs(t, g.Fprop(randomBatch(22, 4, 24, 3), PassTest), ErrBadDataset)
			assert.NoError(t, g.Fprop(randomBatch(22, 4, 25, 3), PassTest))
		})
	}
}

func TestConv_PartialSumMatchesWholeSum(t *testing.T) {
	batch := randomBatch(21, 4, 25, 3)
	grads := make([]*mat.Dense, 0, 3)
	for _, ps := range []int{0, 5, 25} {
		g := mustBuild(t, convNet("avg", ps), testConfig())
		require.NoError(t, g.Fprop(batch, PassGradCheck))
		require.NoError(t, g.Bprop(PassGradCheck))
		grads = append(grads, mustLayer(t, g, "conv").Weights()[0].Grad().Clone().Dense())
	}
	assert.True(t, mat.EqualApprox(grads[0], grads[1], 1e-12))
	assert.True(t, mat.Equal(grads[0], grads[2]))
}

func TestConv_SharedBiases(t *testing.T) {
	g := mustBuild(t, convNet("avg", 0), testConfig())
	conv := mustLayer(t, g, "conv")
	b := conv.Weights()[1]
	b.W().Set(0, 0, 0.5)
	b.W().Set(0, 1, -0.5)

	// With zero filters the output is the activated bias everywhere.
	conv.Weights()[0].W().Zero()
	require.NoError(t, g.Fprop(randomBatch(22, 2, 25, 3), PassTest))
	acts := conv.Acts()
	want0, want1 := 1/(1+math.Exp(-0.5)), 1/(1+math.Exp(0.5))
	for i := 0; i < 2; i++ {
		for m := 0; m < 25; m++ {
			assert.InDelta(t, want0, acts.At(i, m), 1e-12)
			assert.InDelta(t, want1, acts.At(i, 25+m), 1e-12)
		}
	}
}

func TestSoftmaxLayer_RowsSumToOne(t *testing.T) {
	g := mustBuild(t, tinyNet(1), testConfig())
	fc := mustLayer(t, g, "fc")
	fc.Weights()[0].W().Scale(1000)

	require.NoError(t, g.Fprop(randomBatch(23, 6, 3, 2), PassTest))
	probs := mustLayer(t, g, "probs").Acts()
	for i := 0; i < probs.Rows(); i++ {
		row := mat.Row(nil, i, probs.View())
		assert.InDelta(t, 1, floats.Sum(row), 1e-12)
		for _, p := range row {
			assert.False(t, math.IsNaN(p))
		}
	}
}

func TestLogregCost_Components(t *testing.T) {
	g := mustBuild(t, tinyNet(2), testConfig())
	batch := randomBatch(24, 5, 3, 2)
	require.NoError(t, g.Fprop(batch, PassTest))

	probs := mustLayer(t, g, "probs").Acts()
	var nll, wrong float64
	for i := 0; i < 5; i++ {
		label := int(batch.Data[1].At(i, 0))
		p := probs.At(i, label)
		nll -= math.Log(p)
		if p < probs.At(i, 1-label) {
			wrong++
		}
	}

	res := g.Cost()
	require.Equal(t, []string{"cost"}, res.Names())
	assert.InDelta(t, nll, res.Components("cost")[0], 1e-12)
	assert.Equal(t, wrong, res.Components("cost")[1])
	assert.InDelta(t, 2*nll, res.Cost(), 1e-12)
	assert.Equal(t, 2.0, res.Coeff("cost"))
}
