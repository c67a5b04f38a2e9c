package graph

import (
	"bytes"
	"testing"

	"github.com/born-ml/convnet/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckGradients_FC(t *testing.T) {
	g := mustBuild(t, tinyNet(1), testConfig())

	report, err := g.CheckGradients(randomBatch(11, 4, 3, 2))
	require.NoError(t, err)
	require.Len(t, report.Results, 2)
	for _, r := range report.Results {
		assert.True(t, r.Passed, "%s: relative error %g", r.Name, r.RelErr)
		assert.Less(t, r.RelErr, GradCheckThreshold)
	}
	assert.Equal(t, "fc.w0", report.Results[0].Name)
	assert.Equal(t, "fc.b", report.Results[1].Name)
	assert.Equal(t, 2, report.Passed)
	assert.True(t, report.OK())
}

func TestCheckGradients_SharedHiddenLayer(t *testing.T) {
	decls := twoHeads(0.5)
	decls[3].Neuron = "logistic"
	g := mustBuild(t, decls, testConfig())

	report, err := g.CheckGradients(randomBatch(12, 5, 3, 3))
	require.NoError(t, err)
	assert.Len(t, report.Results, 6)
	for _, r := range report.Results {
		assert.True(t, r.Passed, "%s: relative error %g", r.Name, r.RelErr)
	}
}

func TestCheckGradients_MultiInputFC(t *testing.T) {
	decls := []config.LayerDecl{
		{Name: "x", Type: config.TypeData, Outputs: 3},
		{Name: "labels", Type: config.TypeData, DataIdx: 1, Outputs: 1},
		{Name: "y", Type: config.TypeData, DataIdx: 2, Outputs: 2},
		{Name: "fc", Type: config.TypeFC, Inputs: []int{0, 2}, Outputs: 3,
			InitW: []float64{0.3, 0.6}, InitB: 0.1, Neuron: "tanh[1.7159,0.6666]"},
		{Name: "probs", Type: config.TypeSoftmax, Inputs: []int{3}},
		{Name: "cost", Type: config.TypeLogregCost, Inputs: []int{1, 4}},
	}
	g := mustBuild(t, decls, testConfig())

	batch := randomBatch(13, 4, 3, 3)
	extra := randomBatch(14, 4, 2, 1)
	batch.Data = append(batch.Data, extra.Data[0])

	report, err := g.CheckGradients(batch)
	require.NoError(t, err)
	require.Len(t, report.Results, 3)
	assert.Equal(t, "fc.w1", report.Results[1].Name)
	assert.True(t, report.OK(), "%+v", report.Results)
}

func TestCheckGradients_ConvPool(t *testing.T) {
	for _, pool := range []string{"avg", "max"} {
		t.Run(pool, func(t *testing.T) {
			g := mustBuild(t, convNet(pool, 5), testConfig())

			report, err := g.CheckGradients(randomBatch(15, 3, 25, 3))
			require.NoError(t, err)
			require.Len(t, report.Results, 4)
			for _, r := range report.Results {
				assert.True(t, r.Passed, "%s: relative error %g", r.Name, r.RelErr)
			}
		})
	}
}

func TestCheckGradientsW_DetectsBadGradient(t *testing.T) {
	var diag bytes.Buffer
	cfg := testConfig()
	cfg.Diag = &diag
	g := mustBuild(t, tinyNet(1), cfg)

	report, err := g.CheckGradients(randomBatch(16, 4, 3, 2))
	require.NoError(t, err)
	require.True(t, report.OK())
	assert.Equal(t, "2/2 gradient checks passed\n", diag.String(), "passing checks are quiet")

	w := mustLayer(t, g, "fc").Weights()[0]
	w.Grad().Scale(2)
	assert.False(t, g.CheckGradientsW("fc.w0", DefaultGradCheckStep, w))
	assert.Contains(t, diag.String(), "(FAILED) fc.w0 GRADIENT CHECK")
	assert.Contains(t, diag.String(), "Analytic:")

	passed, failed := g.GradCheckTotals()
	assert.Equal(t, 2, passed)
	assert.Equal(t, 1, failed)

	// Totals accumulate across sessions; the report covers one call.
	report, err = g.CheckGradients(randomBatch(17, 4, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Passed)
	assert.Equal(t, 0, report.Failed)
	passed, failed = g.GradCheckTotals()
	assert.Equal(t, 4, passed)
	assert.Equal(t, 1, failed)
}

func TestCheckGradientsW_RestoresWeights(t *testing.T) {
	g := mustBuild(t, tinyNet(1), testConfig())
	w := mustLayer(t, g, "fc").Weights()[0]
	before := w.W().Clone()

	_, err := g.CheckGradients(randomBatch(18, 4, 3, 2))
	require.NoError(t, err)
	assert.Equal(t, before.Raw(), w.W().Raw())
}

func TestCheckGradientsW_WithoutBatch(t *testing.T) {
	g := mustBuild(t, tinyNet(1), testConfig())
	w := mustLayer(t, g, "fc").Weights()[0]
	assert.False(t, g.CheckGradientsW("fc.w0", DefaultGradCheckStep, w))
	_, failed := g.GradCheckTotals()
	assert.Equal(t, 1, failed)
}

func TestCheckGradients_LeavesTrainingStateAlone(t *testing.T) {
	decls := tinyNet(1)
	decls[2].EpsW, decls[2].EpsB = []float64{0}, 0
	g := mustBuild(t, decls, testConfig())
	batch := randomBatch(19, 4, 3, 2)
	weights := mustLayer(t, g, "fc").Weights()

	before := make([][]float64, len(weights))
	for i, w := range weights {
		before[i] = append([]float64(nil), w.W().Raw()...)
	}

	_, err := g.CheckGradients(batch)
	require.NoError(t, err)
	for _, w := range weights {
		assert.Equal(t, 0, w.NumUpdates(), w.Name())
		assert.Equal(t, 0.0, w.Inc().Norm(), w.Name())
	}

	// With zero learning rates a training step must not move the weights.
	_, err = g.TrainStep(batch)
	require.NoError(t, err)
	for i, w := range weights {
		assert.Equal(t, before[i], w.W().Raw(), w.Name())
	}
}

func TestCheckGradients_KeepsMomentum(t *testing.T) {
	decls := tinyNet(1)
	decls[2].MomW = []float64{0.9}
	g := mustBuild(t, decls, testConfig())
	batch := randomBatch(21, 4, 3, 2)
	w := mustLayer(t, g, "fc").Weights()[0]

	_, err := g.TrainStep(batch)
	require.NoError(t, err)
	inc := append([]float64(nil), w.Inc().Raw()...)
	require.NotZero(t, w.Inc().Norm())

	_, err = g.CheckGradients(batch)
	require.NoError(t, err)
	assert.Equal(t, inc, w.Inc().Raw())
}
