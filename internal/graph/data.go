package graph

import (
	"fmt"

	"github.com/born-ml/convnet/internal/matrix"
)

// dataLayer exposes one dataset slot as activations. It has no predecessors
// and consumes no gradients.
type dataLayer struct {
	dataIdx int
}

func (d *dataLayer) fprop(*Layer, []*matrix.Matrix, PassType) {}

func (d *dataLayer) bprop(l *Layer, _ *matrix.Matrix, _ PassType) error {
	return &UnsupportedOpError{Layer: l.name, Kind: l.kind, Op: "bprop"}
}

// drive makes Bprop a no-op: nothing upstream of a data layer.
func (d *dataLayer) drive(*Layer, PassType) error {
	return nil
}

// fpropData aliases the dataset slot as the layer's activations and starts
// the forward pass of its successors.
func (d *dataLayer) fpropData(l *Layer, ds *Dataset, pass PassType) error {
	m, err := ds.slot(d.dataIdx, l.trans)
	if err != nil {
		return err
	}
	if l.outputs > 0 && m.Cols() != l.outputs {
		return fmt.Errorf("%w: layer %q expects %d neurons, slot %d holds %d",
			ErrBadDataset, l.name, l.outputs, d.dataIdx, m.Cols())
	}
	l.acts = m
	return l.fpropNext(pass)
}
