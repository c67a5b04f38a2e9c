package graph

import (
	"fmt"

	"github.com/born-ml/convnet/internal/matrix"
)

// Dataset is one minibatch: an ordered list of matrices addressed by the data
// layers' dataIdx, plus the number of cases they hold.
//
// Slots are case-major unless the data layer reading them is declared
// transposed, in which case the slot is stored neuron-major.
type Dataset struct {
	Data     []*matrix.Matrix
	NumCases int
}

// NewDataset returns a dataset over data.
func NewDataset(numCases int, data ...*matrix.Matrix) *Dataset {
	return &Dataset{Data: data, NumCases: numCases}
}

// slot returns the matrix at index idx viewed with the given orientation.
func (d *Dataset) slot(idx int, trans bool) (*matrix.Matrix, error) {
	if d == nil {
		return nil, fmt.Errorf("%w: nil dataset", ErrBadDataset)
	}
	if d.NumCases <= 0 {
		return nil, fmt.Errorf("%w: %d cases", ErrBadDataset, d.NumCases)
	}
	if idx >= len(d.Data) || d.Data[idx].Empty() {
		return nil, fmt.Errorf("%w: no matrix in slot %d", ErrBadDataset, idx)
	}
	m := d.Data[idx].Alias()
	m.SetTrans(trans)
	if m.Rows() != d.NumCases {
		return nil, fmt.Errorf("%w: slot %d holds %d cases, want %d", ErrBadDataset, idx, m.Rows(), d.NumCases)
	}
	return m, nil
}
