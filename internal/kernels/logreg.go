package kernels

import (
	"math"

	"github.com/born-ml/convnet/internal/matrix"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// LogregCost evaluates a multinomial logistic regression per case.
//
// labels is [cases x 1] holding class indices; probs is [cases x classes] and
// must already be normalized. For every case it returns log(probs[label]) and
// 1 when the true class has the highest probability (ties count as correct),
// 0 otherwise.
func LogregCost(labels, probs *matrix.Matrix) (logProbs, correct []float64) {
	l := labels.CaseMajor()
	p := probs.CaseMajor()
	numCases, numClasses := p.Dims()
	lr, lc := l.Dims()
	matrix.Check(lr == numCases && lc == 1, "logregCost", "labels %dx%d for %d cases", lr, lc, numCases)

	logProbs = make([]float64, numCases)
	correct = make([]float64, numCases)
	for i := 0; i < numCases; i++ {
		label := classIndex(l.At(i, 0), numClasses, "logregCost")
		row := p.RawRowView(i)
		logProbs[i] = math.Log(row[label])
		if row[label] == floats.Max(row) {
			correct[i] = 1
		}
	}
	return logProbs, correct
}

// LogregGrad writes the gradient of coeff*log(probs[label]) with respect to
// probs into target:
//
//	target[i,j] = coeff * [j == label_i] / probs[i,j]
//
// scaleTargets selects overwrite (0) or accumulate (1).
func LogregGrad(labels, probs, target *matrix.Matrix, scaleTargets, coeff float64) {
	l := labels.CaseMajor()
	p := probs.CaseMajor()
	numCases, numClasses := p.Dims()
	lr, lc := l.Dims()
	matrix.Check(lr == numCases && lc == 1, "logregGrad", "labels %dx%d for %d cases", lr, lc, numCases)

	out := mat.NewDense(numCases, numClasses, nil)
	for i := 0; i < numCases; i++ {
		label := classIndex(l.At(i, 0), numClasses, "logregGrad")
		out.Set(i, label, coeff/p.At(i, label))
	}

	target.Add(out, scaleTargets, 1)
}

func classIndex(v float64, numClasses int, kernel string) int {
	label := int(v)
	matrix.Check(float64(label) == v && label >= 0 && label < numClasses, kernel,
		"label %v outside [0, %d)", v, numClasses)
	return label
}
