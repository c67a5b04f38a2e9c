package graph

import (
	"github.com/born-ml/convnet/internal/kernels"
	"github.com/born-ml/convnet/internal/matrix"
	"github.com/born-ml/convnet/internal/neuron"
	"gonum.org/v1/gonum/mat"
)

// convLayer convolves its single input with NumFilters filters. Biases are
// shared across output locations: one per filter.
type convLayer struct {
	geom       kernels.ConvGeometry
	partialSum int
	neuron     neuron.Neuron
	w          *Weights // [filters x channels*filterSize^2]
	b          *Weights // [1 x filters]
}

func (c *convLayer) weights() []*Weights {
	return []*Weights{c.w, c.b}
}

func (c *convLayer) fprop(l *Layer, inputs []*matrix.Matrix, _ PassType) {
	kernels.FilterActs(inputs[0], c.w.W(), l.acts, c.geom, 0, 1, l.graph.cfg.Parallel)
	l.acts.AddRowVector(c.expandBiases(), 1)
	c.neuron.Activate(l.acts)
}

func (c *convLayer) bprop(l *Layer, grad *matrix.Matrix, pass PassType) error {
	numCases := l.graph.NumCases()
	cfg := l.graph.cfg.Parallel
	local := matrix.FromDense(c.neuron.Gradient(grad, l.acts))

	c.b.Grad().Add(c.reduceBiases(local.SumRows()), 0, 1)
	c.b.Accumulate(pass, numCases)

	if l.sendsGradTo(0) {
		target, scale := l.prevGrad(0)
		kernels.ImgActs(local, c.w.W(), target, c.geom, scale, 1, cfg)
	}
	kernels.WeightActs(l.inputs()[0], local, c.w.Grad(), c.geom, c.partialSum, 0, 1, cfg)
	c.w.Accumulate(pass, numCases)

	l.TruncActGrads()
	return l.bpropPrev(pass)
}

// expandBiases repeats each filter's bias over its output locations.
func (c *convLayer) expandBiases() *mat.Dense {
	numModules := c.geom.NumModules()
	out := mat.NewDense(1, c.geom.Outputs(), nil)
	row := out.RawRowView(0)
	for f := 0; f < c.geom.NumFilters; f++ {
		b := c.b.W().At(0, f)
		for m := 0; m < numModules; m++ {
			row[f*numModules+m] = b
		}
	}
	return out
}

// reduceBiases sums a [1 x Outputs] row over output locations per filter.
func (c *convLayer) reduceBiases(sums *mat.Dense) *mat.Dense {
	numModules := c.geom.NumModules()
	out := mat.NewDense(1, c.geom.NumFilters, nil)
	row := sums.RawRowView(0)
	for f := 0; f < c.geom.NumFilters; f++ {
		var s float64
		for _, v := range row[f*numModules : (f+1)*numModules] {
			s += v
		}
		out.Set(0, f, s)
	}
	return out
}

func newConv(g *Graph, l *Layer, d *declCtx) (variant, error) {
	decl := d.decl
	n, err := neuron.Parse(decl.Neuron)
	if err != nil {
		return nil, d.fail("%v", err)
	}
	geom := kernels.ConvGeometry{
		Channels:   decl.Channels,
		ImgSize:    decl.ImgSize,
		FilterSize: decl.FilterSize,
		Stride:     max(decl.Stride, 1),
		Padding:    decl.Padding,
		NumFilters: decl.Filters,
	}
	if geom.ModulesX() <= 0 {
		return nil, d.fail("filter %d does not fit image %d with padding %d", geom.FilterSize, geom.ImgSize, geom.Padding)
	}
	if err := g.imageInput(l, d, geom.ImgPixels()); err != nil {
		return nil, err
	}
	if ps := decl.PartialSum; ps > 0 && geom.NumModules()%ps != 0 {
		return nil, d.fail("partialSum %d does not divide %d output locations", ps, geom.NumModules())
	}

	c := &convLayer{geom: geom, partialSum: decl.PartialSum, neuron: n}
	c.w = NewWeights("w0", geom.NumFilters, geom.FilterPixels(), d.perInput(decl.InitW, 0, 0.01), g.rng,
		d.perInput(decl.EpsW, 0, 0), d.perInput(decl.MomW, 0, 0), d.perInput(decl.WC, 0, 0))
	c.b = NewWeights("b", 1, geom.NumFilters, decl.InitB, nil, decl.EpsB, decl.MomB, 0)
	l.outputs = geom.Outputs()
	return c, nil
}
