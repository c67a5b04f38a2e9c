package graph

import (
	"github.com/born-ml/convnet/internal/matrix"
)

// variant is the type-specific part of a layer.
//
// fprop computes l's activations from inputs (the predecessors' activations,
// in declaration order). bprop receives the layer's accumulated activation
// gradient; it writes gradients into predecessors' buffers, folds weight
// gradients into the layer's Weights, and finally calls Bprop on every
// predecessor that consumes gradients.
type variant interface {
	fprop(l *Layer, inputs []*matrix.Matrix, pass PassType)
	bprop(l *Layer, grad *matrix.Matrix, pass PassType) error
}

// weighted is implemented by variants that own trainable weights.
type weighted interface {
	weights() []*Weights
}

// bpropDriver replaces the counted backward entry for layers that start or
// terminate a backward pass.
type bpropDriver interface {
	drive(l *Layer, pass PassType) error
}

// gradRouter restricts which predecessors a layer sends gradients to.
// Layers without it send to all of them.
type gradRouter interface {
	gradInputs(l *Layer) []int
}

// Layer is one node of a Graph.
//
// A layer computes once per pass: forward when every predecessor has
// delivered its activations, backward when every successor that produces
// gradients for it has delivered them.
type Layer struct {
	name  string
	kind  string
	graph *Graph
	index int
	prev  []int
	next  []int

	acts     *matrix.Matrix
	actsGrad *matrix.Matrix
	outputs  int // Neurons per case, 0 when the layer has no activations

	rcvdFInputs          int
	rcvdBInputs          int
	numGradProducersNext int
	gradConsumer         bool
	gradProducer         bool
	trans                bool

	impl variant
}

func newLayer(g *Graph, index int, name, kind string, trans bool) *Layer {
	l := &Layer{
		name:     name,
		kind:     kind,
		graph:    g,
		index:    index,
		acts:     &matrix.Matrix{},
		actsGrad: &matrix.Matrix{},
		trans:    trans,
	}
	l.acts.SetTrans(trans)
	l.actsGrad.SetTrans(trans)
	return l
}

// Name returns the declared layer name.
func (l *Layer) Name() string { return l.name }

// Kind returns the layer type tag.
func (l *Layer) Kind() string { return l.kind }

// Index returns the layer's position in the declaration list.
func (l *Layer) Index() int { return l.index }

// DataIdx returns the dataset slot a data layer reads, or -1 for other layers.
func (l *Layer) DataIdx() int {
	if d, ok := l.impl.(*dataLayer); ok {
		return d.dataIdx
	}
	return -1
}

// Outputs returns the number of neurons per case.
func (l *Layer) Outputs() int { return l.outputs }

// Trans reports whether the layer keeps its buffers neuron-major.
func (l *Layer) Trans() bool { return l.trans }

// Acts returns the activations of the current pass.
func (l *Layer) Acts() *matrix.Matrix { return l.acts }

// ActsGrad returns the gradient accumulated for the activations.
func (l *Layer) ActsGrad() *matrix.Matrix { return l.actsGrad }

// Prev returns the predecessors in declaration order.
func (l *Layer) Prev() []*Layer { return l.graph.resolve(l.prev) }

// Next returns the successors in declaration order.
func (l *Layer) Next() []*Layer { return l.graph.resolve(l.next) }

// IsGradConsumer reports whether gradients must reach this layer.
func (l *Layer) IsGradConsumer() bool { return l.gradConsumer }

// IsGradProducer reports whether this layer sends gradients to its predecessors.
func (l *Layer) IsGradProducer() bool { return l.gradProducer }

// ReceivedForwardInputs returns how many predecessors delivered activations this pass.
func (l *Layer) ReceivedForwardInputs() int { return l.rcvdFInputs }

// ReceivedBackwardInputs returns how many successors delivered gradients this pass.
func (l *Layer) ReceivedBackwardInputs() int { return l.rcvdBInputs }

// NumGradProducersNext returns how many successors send gradients to this layer.
func (l *Layer) NumGradProducersNext() int { return l.numGradProducersNext }

// Weights returns the layer's trainable weights, or nil.
func (l *Layer) Weights() []*Weights {
	if w, ok := l.impl.(weighted); ok {
		return w.weights()
	}
	return nil
}

// Fprop registers the arrival of one predecessor's activations. When all
// predecessors have arrived the layer computes its activations and forwards
// the pass to its successors.
func (l *Layer) Fprop(pass PassType) error {
	if _, ok := l.impl.(*dataLayer); ok {
		return &UnsupportedOpError{Layer: l.name, Kind: l.kind, Op: "fprop without data"}
	}
	l.rcvdFInputs++
	if l.rcvdFInputs != len(l.prev) {
		return nil
	}
	l.acts.SetTrans(l.trans)
	l.impl.fprop(l, l.inputs(), pass)
	return l.fpropNext(pass)
}

// Bprop registers the arrival of one successor's gradient. When every
// gradient-producing successor has delivered, the layer runs its backward step.
func (l *Layer) Bprop(pass PassType) error {
	if d, ok := l.impl.(bpropDriver); ok {
		return d.drive(l, pass)
	}
	l.rcvdBInputs++
	if l.rcvdBInputs != l.numGradProducersNext {
		return nil
	}
	return l.impl.bprop(l, l.actsGrad, pass)
}

// Reset clears the per-pass arrival counters.
func (l *Layer) Reset() {
	l.rcvdFInputs = 0
	l.rcvdBInputs = 0
}

// TruncActGrads releases the activation-gradient storage unless the graph is
// configured to keep it.
func (l *Layer) TruncActGrads() {
	if !l.graph.cfg.SaveBwdActs {
		l.actsGrad.Truncate()
	}
}

// UpdateWeights applies pending increments to every weight matrix.
func (l *Layer) UpdateWeights() {
	for _, w := range l.Weights() {
		w.Update()
	}
}

// CopyToHost snapshots the layer's weights.
func (l *Layer) CopyToHost() {
	for _, w := range l.Weights() {
		w.CopyToHost()
	}
}

// CopyToDevice restores the layer's weights from their snapshots.
func (l *Layer) CopyToDevice() {
	for _, w := range l.Weights() {
		w.CopyToDevice()
	}
}

// CheckGradients compares the analytic gradient of each of the layer's
// weights against a numeric estimate. It returns false if any check failed.
func (l *Layer) CheckGradients() bool {
	ok := true
	for _, w := range l.Weights() {
		if !l.graph.CheckGradientsW(l.name+"."+w.Name(), l.graph.cfg.GradCheckStep, w) {
			ok = false
		}
	}
	return ok
}

func (l *Layer) inputs() []*matrix.Matrix {
	in := make([]*matrix.Matrix, len(l.prev))
	for i, p := range l.prev {
		in[i] = l.graph.layers[p].acts
	}
	return in
}

func (l *Layer) fpropNext(pass PassType) error {
	for _, n := range l.next {
		if err := l.graph.layers[n].Fprop(pass); err != nil {
			return err
		}
	}
	return nil
}

// routes returns the positions in prev this layer sends gradients to.
func (l *Layer) routes() []int {
	if r, ok := l.impl.(gradRouter); ok {
		return r.gradInputs(l)
	}
	all := make([]int, len(l.prev))
	for i := range all {
		all[i] = i
	}
	return all
}

// sendsGradTo reports whether predecessor position i receives a gradient.
func (l *Layer) sendsGradTo(i int) bool {
	if !l.gradProducer || !l.graph.layers[l.prev[i]].gradConsumer {
		return false
	}
	for _, r := range l.routes() {
		if r == i {
			return true
		}
	}
	return false
}

// prevGrad returns the gradient buffer of predecessor i and the scale to
// apply to its current contents: the first successor to write overwrites,
// later ones accumulate.
func (l *Layer) prevGrad(i int) (*matrix.Matrix, float64) {
	p := l.graph.layers[l.prev[i]]
	if p.rcvdBInputs == 0 {
		return p.actsGrad, 0
	}
	return p.actsGrad, 1
}

// bpropPrev hands the backward pass to every predecessor this layer sent a
// gradient to.
func (l *Layer) bpropPrev(pass PassType) error {
	for i, p := range l.prev {
		if !l.sendsGradTo(i) {
			continue
		}
		if err := l.graph.layers[p].Bprop(pass); err != nil {
			return err
		}
	}
	return nil
}
