package graph

import (
	"fmt"

	"github.com/born-ml/convnet/internal/matrix"
	"github.com/born-ml/convnet/internal/neuron"
)

// fcLayer is a fully connected layer with one weight matrix per input:
//
//	acts = neuron(sum_i in_i * W_i + b)
//
// W_i is [in_i neurons x outputs] and b is [1 x outputs].
type fcLayer struct {
	neuron neuron.Neuron
	w      []*Weights
	b      *Weights
}

func (f *fcLayer) weights() []*Weights {
	return append(append([]*Weights(nil), f.w...), f.b)
}

func (f *fcLayer) fprop(l *Layer, inputs []*matrix.Matrix, _ PassType) {
	for i, in := range inputs {
		scale := 1.0
		if i == 0 {
			scale = 0
		}
		l.acts.AddProduct(in.View(), f.w[i].W().View(), scale, 1)
	}
	l.acts.AddRowVector(f.b.W().View(), 1)
	f.neuron.Activate(l.acts)
}

func (f *fcLayer) bprop(l *Layer, grad *matrix.Matrix, pass PassType) error {
	numCases := l.graph.NumCases()
	local := matrix.FromDense(f.neuron.Gradient(grad, l.acts))

	f.b.Grad().Add(local.SumRows(), 0, 1)
	f.b.Accumulate(pass, numCases)

	inputs := l.inputs()
	for i := range inputs {
		if !l.sendsGradTo(i) {
			continue
		}
		target, scale := l.prevGrad(i)
		target.AddProduct(local.View(), f.w[i].W().View().T(), scale, 1)
	}
	for i, in := range inputs {
		f.w[i].Grad().AddProduct(in.View().T(), local.View(), 0, 1)
		f.w[i].Accumulate(pass, numCases)
	}

	l.TruncActGrads()
	return l.bpropPrev(pass)
}

func newFC(g *Graph, l *Layer, d *declCtx) (variant, error) {
	n, err := neuron.Parse(d.decl.Neuron)
	if err != nil {
		return nil, d.fail("%v", err)
	}
	f := &fcLayer{neuron: n}
	for i, p := range l.prev {
		in := g.layers[p].outputs
		if in <= 0 {
			return nil, d.fail("input %q has no declared width", g.layers[p].name)
		}
		f.w = append(f.w, NewWeights(fmt.Sprintf("w%d", i), in, d.decl.Outputs,
			d.perInput(d.decl.InitW, i, 0.01), g.rng,
			d.perInput(d.decl.EpsW, i, 0), d.perInput(d.decl.MomW, i, 0), d.perInput(d.decl.WC, i, 0)))
	}
	f.b = NewWeights("b", 1, d.decl.Outputs, d.decl.InitB, nil, d.decl.EpsB, d.decl.MomB, 0)
	l.outputs = d.decl.Outputs
	return f, nil
}
