package graph

import (
	"math/rand"

	"github.com/born-ml/convnet/internal/matrix"
	"gonum.org/v1/gonum/mat"
)

// Weights is one trainable parameter matrix together with its pending
// increment and the gradient of the last backward pass.
//
// Update rule (train and test passes):
//
//	Inc = Mom*Inc + EpsW/numCases * Grad   (first contribution since the last update)
//	Inc = Inc + EpsW/numCases * Grad       (later contributions)
//	Inc -= Wc*EpsW*W                       (on Update, when Wc > 0)
//	W += Inc
//
// During a gradient-check pass Inc simply collects the raw gradient.
type Weights struct {
	name string
	w    *matrix.Matrix
	inc  *matrix.Matrix
	grad *matrix.Matrix

	EpsW float64 // Learning rate
	Mom  float64 // Momentum
	Wc   float64 // Weight decay

	numUpdates int

	hostW   *mat.Dense
	hostInc *mat.Dense
}

// NewWeights allocates rows x cols weights drawn from N(0, initStd^2).
// When rng is nil every element is set to initStd instead, which is how
// biases are initialized.
func NewWeights(name string, rows, cols int, initStd float64, rng *rand.Rand, epsW, mom, wc float64) *Weights {
	w := &Weights{
		name: name,
		w:    matrix.New(rows, cols),
		inc:  matrix.New(rows, cols),
		grad: matrix.New(rows, cols),
		EpsW: epsW,
		Mom:  mom,
		Wc:   wc,
	}
	raw := w.w.Raw()
	for i := range raw {
		if rng == nil {
			raw[i] = initStd
			continue
		}
		raw[i] = rng.NormFloat64() * initStd
	}
	return w
}

// Name returns the weights' name within their layer.
func (w *Weights) Name() string { return w.name }

// W returns the parameter matrix.
func (w *Weights) W() *matrix.Matrix { return w.w }

// Inc returns the pending increment.
func (w *Weights) Inc() *matrix.Matrix { return w.inc }

// Grad returns the gradient written by the last backward pass.
func (w *Weights) Grad() *matrix.Matrix { return w.grad }

// Dims returns the shape shared by W, Inc and Grad.
func (w *Weights) Dims() (rows, cols int) { return w.w.Dims() }

// NumUpdates returns the number of gradient contributions since the last Update.
func (w *Weights) NumUpdates() int { return w.numUpdates }

// Accumulate folds the gradient just written to Grad into Inc.
func (w *Weights) Accumulate(pass PassType, numCases int) {
	first := w.numUpdates == 0
	switch pass {
	case PassGradCheck:
		scale := 1.0
		if first {
			scale = 0
		}
		w.inc.Add(w.grad.View(), scale, 1)
	default:
		scale := 1.0
		if first {
			scale = w.Mom
		}
		w.inc.Add(w.grad.View(), scale, w.EpsW/float64(numCases))
	}
	w.numUpdates++
}

// Update applies weight decay and the pending increment to W.
func (w *Weights) Update() {
	if w.Wc > 0 {
		w.inc.Add(w.w.View(), 1, -w.Wc*w.EpsW)
	}
	w.w.Add(w.inc.View(), 1, 1)
	w.numUpdates = 0
}

// resetUpdates forgets contributions made since the last Update, so the next
// backward pass starts a fresh increment.
func (w *Weights) resetUpdates() {
	w.numUpdates = 0
}

// pendingInc is the increment state between two updates.
type pendingInc struct {
	inc        *matrix.Matrix
	numUpdates int
}

func (w *Weights) savePending() pendingInc {
	return pendingInc{inc: w.inc.Clone(), numUpdates: w.numUpdates}
}

func (w *Weights) restorePending(p pendingInc) {
	w.inc.Add(p.inc.View(), 0, 1)
	w.numUpdates = p.numUpdates
}

// CopyToHost snapshots W and Inc into host matrices.
func (w *Weights) CopyToHost() {
	w.hostW = w.w.Clone().Dense()
	w.hostInc = w.inc.Clone().Dense()
}

// CopyToDevice restores W and Inc from the host snapshot. It is a no-op when
// no snapshot was taken.
func (w *Weights) CopyToDevice() {
	if w.hostW == nil {
		return
	}
	w.w.Add(w.hostW, 0, 1)
	w.inc.Add(w.hostInc, 0, 1)
}

// Host returns the host snapshot of W, or nil before CopyToHost.
func (w *Weights) Host() *mat.Dense { return w.hostW }

// setHost installs d as the host snapshot of W with a zero increment.
func (w *Weights) setHost(d *mat.Dense) {
	w.hostW = mat.DenseCopyOf(d)
	r, c := d.Dims()
	w.hostInc = mat.NewDense(r, c, nil)
}
