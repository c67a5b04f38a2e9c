package kernels

import (
	"math"

	"github.com/born-ml/convnet/internal/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Softmax normalizes every row of input into target.
//
// The row maximum is subtracted before exponentiating, so arbitrarily large
// finite inputs never overflow.
func Softmax(input, target *matrix.Matrix, scaleTargets, scaleOutput float64) {
	in := input.CaseMajor()
	rows, cols := in.Dims()
	out := mat.NewDense(rows, cols, nil)

	for i := 0; i < rows; i++ {
		src, dst := in.RawRowView(i), out.RawRowView(i)
		peak := floats.Max(src)
		for j, v := range src {
			dst[j] = math.Exp(v - peak)
		}
		floats.Scale(1/floats.Sum(dst), dst)
	}

	target.Add(out, scaleTargets, scaleOutput)
}

// SoftmaxGrad applies the softmax Jacobian to actsGrad:
//
//	target[i,j] = acts[i,j] * (actsGrad[i,j] - sum_k actsGrad[i,k]*acts[i,k])
//
// scaleTargets selects overwrite (0) or accumulate (1).
func SoftmaxGrad(actsGrad, acts, target *matrix.Matrix, scaleTargets float64) {
	g := actsGrad.CaseMajor()
	y := acts.CaseMajor()
	rows, cols := y.Dims()
	gr, gc := g.Dims()
	matrix.Check(rows == gr && cols == gc, "softmaxGrad", "acts %dx%d, grad %dx%d", rows, cols, gr, gc)

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		gi, yi, dst := g.RawRowView(i), y.RawRowView(i), out.RawRowView(i)
		dot := floats.Dot(gi, yi)
		for j := range dst {
			dst[j] = yi[j] * (gi[j] - dot)
		}
	}

	target.Add(out, scaleTargets, 1)
}
