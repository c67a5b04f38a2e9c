package graph

import (
	"github.com/born-ml/convnet/internal/kernels"
	"github.com/born-ml/convnet/internal/matrix"
	"gonum.org/v1/gonum/floats"
)

// logregCost is a multinomial logistic regression cost over inputs
// [labels, probs]. It reports two components: the negative log-likelihood
// summed over cases and the number of misclassified cases.
//
// The objective maximized during training is coeff * sum log probs[label].
type logregCost struct {
	coeff   float64
	errName string
	errs    []float64
}

const (
	costLabels = 0
	costProbs  = 1
)

func (c *logregCost) fprop(_ *Layer, inputs []*matrix.Matrix, _ PassType) {
	logProbs, correct := kernels.LogregCost(inputs[costLabels], inputs[costProbs])
	numCases := float64(len(logProbs))
	c.errs = []float64{-floats.Sum(logProbs), numCases - floats.Sum(correct)}
}

func (c *logregCost) bprop(l *Layer, _ *matrix.Matrix, _ PassType) error {
	return &UnsupportedOpError{Layer: l.name, Kind: l.kind, Op: "bprop from successor"}
}

// drive starts the backward pass: it writes the gradient of the objective
// into the predictions' buffer and hands over to that layer.
func (c *logregCost) drive(l *Layer, pass PassType) error {
	if c.coeff == 0 || !l.sendsGradTo(costProbs) {
		return nil
	}
	inputs := l.inputs()
	target, scale := l.prevGrad(costProbs)
	kernels.LogregGrad(inputs[costLabels], inputs[costProbs], target, scale, c.coeff)
	return l.graph.layers[l.prev[costProbs]].Bprop(pass)
}

// gradInputs routes gradients to the predictions only.
func (c *logregCost) gradInputs(*Layer) []int {
	return []int{costProbs}
}
