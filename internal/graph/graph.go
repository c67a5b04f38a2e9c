// Package graph builds a directed acyclic graph of neural-network layers
// from declarations and runs forward, backward and gradient-check passes
// over it.
//
// Passes are dependency driven. Feeding a minibatch activates the data
// layers, and each layer computes once every predecessor has delivered its
// activations. The backward pass starts at the cost layers and reaches a
// layer once every successor that produces gradients for it has written its
// contribution. The first contribution overwrites the layer's gradient
// buffer and later ones accumulate into it.
package graph

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/born-ml/convnet/internal/config"
	"gonum.org/v1/gonum/mat"
)

// Graph owns the layers built from a declaration list.
type Graph struct {
	cfg        Config
	layers     []*Layer
	byName     map[string]*Layer
	dataLayers []int // Ordered by dataset slot
	costLayers []int
	dataset    *Dataset
	rng        *rand.Rand

	gcPassed  int
	gcFailed  int
	gcResults []GradCheckResult
}

// declCtx carries the record being built, for error reporting.
type declCtx struct {
	index int
	decl  *config.LayerDecl
}

func (d *declCtx) fail(format string, args ...any) error {
	return constructionErr(d.index, d.decl, format, args...)
}

func (d *declCtx) perInput(vals []float64, i int, def float64) float64 {
	return config.PerInput(vals, i, def)
}

// New builds a graph from decls. Declarations must be in dependency order:
// every input index refers to an earlier record.
//
// Returns a *ConstructionError describing the first bad record.
func New(decls []config.LayerDecl, cfg Config) (*Graph, error) {
	if err := config.Validate(decls); err != nil {
		var de *config.DeclError
		if errors.As(err, &de) {
			return nil, &ConstructionError{Index: de.Index, Layer: de.Name, Type: decls[de.Index].Type, Err: de.Err}
		}
		return nil, &ConstructionError{Index: -1, Err: err}
	}

	g := &Graph{
		cfg:    cfg.withDefaults(),
		byName: make(map[string]*Layer, len(decls)),
		rng:    rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // weight init, not security-critical
	}
	for i := range decls {
		d := &decls[i]
		l := newLayer(g, i, d.Name, d.Type, d.Trans)
		l.prev = append([]int(nil), d.Inputs...)
		g.layers = append(g.layers, l)

		impl, err := g.newVariant(l, &declCtx{index: i, decl: d})
		if err != nil {
			return nil, err
		}
		l.impl = impl
		g.byName[d.Name] = l
	}

	sort.SliceStable(g.dataLayers, func(a, b int) bool {
		return g.layers[g.dataLayers[a]].DataIdx() < g.layers[g.dataLayers[b]].DataIdx()
	})
	g.link()
	g.Reset()
	return g, nil
}

func (g *Graph) newVariant(l *Layer, d *declCtx) (variant, error) {
	switch d.decl.Type {
	case config.TypeData:
		l.outputs = d.decl.Outputs
		g.dataLayers = append(g.dataLayers, l.index)
		return &dataLayer{dataIdx: d.decl.DataIdx}, nil
	case config.TypeFC:
		return newFC(g, l, d)
	case config.TypeConv:
		return newConv(g, l, d)
	case config.TypePool:
		return newPool(g, l, d)
	case config.TypeSoftmax:
		l.outputs = g.layers[l.prev[0]].outputs
		return softmaxLayer{}, nil
	case config.TypeLogregCost:
		g.costLayers = append(g.costLayers, l.index)
		return &logregCost{coeff: d.decl.Coefficient(), errName: d.decl.ErrorName()}, nil
	default:
		return nil, &ConstructionError{
			Index: d.index,
			Layer: d.decl.Name,
			Type:  d.decl.Type,
			Err:   fmt.Errorf("%w %q", ErrUnknownLayerType, d.decl.Type),
		}
	}
}

// imageInput checks that l's single input carries pixels neurons per case.
// A data layer declared without a width takes it from here, so fprop can
// reject a dataset slot that does not match the image geometry.
func (g *Graph) imageInput(l *Layer, d *declCtx, pixels int) error {
	in := g.layers[l.prev[0]]
	if _, ok := in.impl.(*dataLayer); ok && in.outputs == 0 {
		in.outputs = pixels
		return nil
	}
	if in.outputs != pixels {
		return d.fail("input %q has %d neurons, geometry wants %d", in.name, in.outputs, pixels)
	}
	return nil
}

// link derives successor lists and the gradient flow flags.
func (g *Graph) link() {
	for i, l := range g.layers {
		for _, p := range l.prev {
			g.layers[p].next = append(g.layers[p].next, i)
		}
	}

	// Declaration order is a topological order.
	for _, l := range g.layers {
		l.gradConsumer = len(l.Weights()) > 0
		for _, p := range l.prev {
			l.gradConsumer = l.gradConsumer || g.layers[p].gradConsumer
		}
	}

	// A layer produces gradients only if some reach it, so a branch that
	// ends in a zero-coefficient cost never holds up its shared ancestors.
	for i := len(g.layers) - 1; i >= 0; i-- {
		l := g.layers[i]
		for _, n := range l.next {
			s := g.layers[n]
			for j, p := range s.prev {
				if p == l.index && s.sendsGradTo(j) {
					l.numGradProducersNext++
				}
			}
		}
		switch impl := l.impl.(type) {
		case *dataLayer:
			l.gradProducer = false
		case *logregCost:
			l.gradProducer = impl.coeff != 0
		default:
			l.gradProducer = l.numGradProducersNext > 0
		}
	}
}

func (g *Graph) resolve(idx []int) []*Layer {
	out := make([]*Layer, len(idx))
	for i, j := range idx {
		out[i] = g.layers[j]
	}
	return out
}

// Config returns the graph configuration.
func (g *Graph) Config() Config { return g.cfg }

// Layers returns every layer in declaration order.
func (g *Graph) Layers() []*Layer { return append([]*Layer(nil), g.layers...) }

// Layer returns the layer with the given name.
func (g *Graph) Layer(name string) (*Layer, bool) {
	l, ok := g.byName[name]
	return l, ok
}

// DataLayers returns the data layers ordered by dataset slot.
func (g *Graph) DataLayers() []*Layer { return g.resolve(g.dataLayers) }

// CostLayers returns the cost layers in declaration order.
func (g *Graph) CostLayers() []*Layer { return g.resolve(g.costLayers) }

// NumCases returns the case count of the bound minibatch, or 0.
func (g *Graph) NumCases() int {
	if g.dataset == nil {
		return 0
	}
	return g.dataset.NumCases
}

// Fprop binds ds and runs a forward pass over the whole graph.
func (g *Graph) Fprop(ds *Dataset, pass PassType) error {
	g.Reset()
	g.dataset = ds
	for _, i := range g.dataLayers {
		l := g.layers[i]
		if err := l.impl.(*dataLayer).fpropData(l, ds, pass); err != nil {
			return fmt.Errorf("fprop %s: %w", l.name, err)
		}
	}
	return nil
}

// Bprop runs a backward pass from every cost layer, then resets the
// per-pass counters.
func (g *Graph) Bprop(pass PassType) error {
	if g.dataset == nil {
		return fmt.Errorf("%w: bprop before fprop", ErrBadDataset)
	}
	for _, i := range g.costLayers {
		if err := g.layers[i].Bprop(pass); err != nil {
			return fmt.Errorf("bprop %s: %w", g.layers[i].name, err)
		}
	}
	g.Reset()
	return nil
}

// Reset clears the per-pass counters of every layer.
func (g *Graph) Reset() {
	for _, l := range g.layers {
		l.Reset()
	}
}

// UpdateWeights applies pending increments to every layer's weights.
func (g *Graph) UpdateWeights() {
	for _, l := range g.layers {
		l.UpdateWeights()
	}
}

// Cost collects the errors reported by the cost layers in the last forward pass.
func (g *Graph) Cost() *ErrorResult {
	r := NewErrorResult()
	for _, i := range g.costLayers {
		c := g.layers[i].impl.(*logregCost)
		if c.errs == nil {
			continue
		}
		one := NewErrorResult()
		one.Add(c.errName, c.errs, c.coeff)
		r.Accumulate(one)
	}
	return r
}

// TrainStep runs one training iteration on ds: forward, cost, backward and
// weight update. The returned errors are those of the forward pass.
func (g *Graph) TrainStep(ds *Dataset) (*ErrorResult, error) {
	if err := g.Fprop(ds, PassTrain); err != nil {
		return nil, err
	}
	res := g.Cost()
	if err := g.Bprop(PassTrain); err != nil {
		return nil, err
	}
	g.UpdateWeights()
	return res, nil
}

// Evaluate runs a test-mode forward pass on ds and returns the errors.
func (g *Graph) Evaluate(ds *Dataset) (*ErrorResult, error) {
	if err := g.Fprop(ds, PassTest); err != nil {
		return nil, err
	}
	return g.Cost(), nil
}

// CopyToHost snapshots every layer's weights.
func (g *Graph) CopyToHost() {
	for _, l := range g.layers {
		l.CopyToHost()
	}
}

// CopyToDevice restores every layer's weights from their snapshots.
func (g *Graph) CopyToDevice() {
	for _, l := range g.layers {
		l.CopyToDevice()
	}
}

// Checkpoint snapshots the weights and returns them keyed "<layer>.<weights>".
func (g *Graph) Checkpoint() map[string]*mat.Dense {
	g.CopyToHost()
	out := make(map[string]*mat.Dense)
	for _, l := range g.layers {
		for _, w := range l.Weights() {
			out[l.name+"."+w.Name()] = w.Host()
		}
	}
	return out
}

// Restore loads weights produced by Checkpoint. Every weight matrix of the
// graph must be present with a matching shape; pending increments are cleared.
func (g *Graph) Restore(weights map[string]*mat.Dense) error {
	for _, l := range g.layers {
		for _, w := range l.Weights() {
			key := l.name + "." + w.Name()
			d, ok := weights[key]
			if !ok {
				return fmt.Errorf("%w: %q", ErrMissingWeights, key)
			}
			r, c := d.Dims()
			if wr, wc := w.Dims(); r != wr || c != wc {
				return fmt.Errorf("%w: %q is %dx%d, want %dx%d", ErrMissingWeights, key, r, c, wr, wc)
			}
		}
	}
	for _, l := range g.layers {
		for _, w := range l.Weights() {
			w.setHost(weights[l.name+"."+w.Name()])
			w.CopyToDevice()
		}
	}
	return nil
}
