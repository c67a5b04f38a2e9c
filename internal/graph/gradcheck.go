package graph

import (
	"fmt"
	"math"

	"github.com/born-ml/convnet/internal/matrix"
	"gonum.org/v1/gonum/diff/fd"
)

// GradCheckResult is the outcome of checking one weight matrix.
type GradCheckResult struct {
	Name   string
	RelErr float64
	Passed bool
}

// GradCheckReport lists the checks made by one CheckGradients call.
type GradCheckReport struct {
	Results []GradCheckResult
	Passed  int
	Failed  int
}

// OK reports whether every check passed.
func (r *GradCheckReport) OK() bool {
	return r.Failed == 0
}

// CheckGradients runs a gradient-check pass on ds and compares every
// weight matrix's analytic gradient against a forward-difference estimate.
// Failed checks are counted, not returned as errors; the error result is
// reserved for passes that could not run. Pending weight increments are
// left as they were before the call.
func (g *Graph) CheckGradients(ds *Dataset) (*GradCheckReport, error) {
	// The check collects raw gradients in Inc; training resumes from the
	// increments pending before it.
	var weights []*Weights
	for _, l := range g.layers {
		weights = append(weights, l.Weights()...)
	}
	saved := make([]pendingInc, len(weights))
	for i, w := range weights {
		saved[i] = w.savePending()
		w.resetUpdates()
	}
	defer func() {
		for i, w := range weights {
			w.restorePending(saved[i])
		}
	}()

	if err := g.Fprop(ds, PassGradCheck); err != nil {
		return nil, err
	}
	if err := g.Bprop(PassGradCheck); err != nil {
		return nil, err
	}

	passed, failed := g.gcPassed, g.gcFailed
	g.gcResults = g.gcResults[:0]
	for _, l := range g.layers {
		l.CheckGradients()
	}

	report := &GradCheckReport{
		Results: append([]GradCheckResult(nil), g.gcResults...),
		Passed:  g.gcPassed - passed,
		Failed:  g.gcFailed - failed,
	}
	fmt.Fprintf(g.cfg.Diag, "%d/%d gradient checks passed\n", report.Passed, report.Passed+report.Failed)
	return report, nil
}

// GradCheckTotals returns the number of passed and failed checks made over
// the graph's lifetime.
func (g *Graph) GradCheckTotals() (passed, failed int) {
	return g.gcPassed, g.gcFailed
}

// CheckGradientsW compares the gradient left in w.Grad() by the last
// gradient-check backward pass against a forward-difference estimate over
// the bound minibatch. Each element of W is perturbed by eps in turn; W is
// restored afterwards.
//
// Both gradients refer to the cost per case. The check passes when
// ||analytic - numeric|| / ||numeric|| < GradCheckThreshold.
func (g *Graph) CheckGradientsW(name string, eps float64, w *Weights) bool {
	if g.dataset == nil {
		fmt.Fprintf(g.cfg.Diag, "(FAILED) %s GRADIENT CHECK: no minibatch bound\n", name)
		g.record(name, math.NaN(), false)
		return false
	}
	numCases := float64(g.dataset.NumCases)
	rows, cols := w.Dims()
	orig := append([]float64(nil), w.W().Raw()...)

	var fpropErr error
	cost := func(x []float64) float64 {
		copy(w.W().Raw(), x)
		if err := g.Fprop(g.dataset, PassGradCheck); err != nil {
			fpropErr = err
			return math.NaN()
		}
		return g.Cost().Cost()
	}
	base := cost(orig)
	numeric := fd.Gradient(nil, cost, orig, &fd.Settings{
		Formula:     fd.Forward,
		Step:        eps,
		OriginKnown: true,
		OriginValue: base,
	})
	copy(w.W().Raw(), orig)
	g.Reset()

	numGrad := matrix.FromSlice(rows, cols, numeric)
	numGrad.Scale(1 / numCases)
	// Grad holds the gradient of the maximized objective, the negated cost.
	analytic := w.Grad().Clone()
	analytic.Scale(-1 / numCases)

	diff := analytic.Clone()
	diff.Add(numGrad.View(), 1, -1)
	relErr := diff.Norm()
	if n := numGrad.Norm(); n > 0 {
		relErr /= n
	}
	ok := fpropErr == nil && relErr < GradCheckThreshold

	if !ok || !g.cfg.SuppressPasses {
		status := "PASSED"
		if !ok {
			status = "FAILED"
		}
		if fpropErr != nil {
			fmt.Fprintf(g.cfg.Diag, "(%s) %s GRADIENT CHECK: %v\n", status, name, fpropErr)
		} else {
			fmt.Fprintf(g.cfg.Diag, "Numeric:\n%v\nAnalytic:\n%v\n", numGrad, analytic)
			fmt.Fprintf(g.cfg.Diag, "(%s) %s GRADIENT CHECK, relative error %.6g\n", status, name, relErr)
		}
	}
	g.record(name, relErr, ok)
	return ok
}

func (g *Graph) record(name string, relErr float64, ok bool) {
	if ok {
		g.gcPassed++
	} else {
		g.gcFailed++
	}
	g.gcResults = append(g.gcResults, GradCheckResult{Name: name, RelErr: relErr, Passed: ok})
}
