// Package neuron implements the elementwise activation functions applied by
// fully-connected and convolutional layers.
//
// Every gradient is expressed in terms of the activation output, so a layer
// only has to keep its activations (not its pre-activations) around for the
// backward pass.
package neuron

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/born-ml/convnet/internal/matrix"
	"gonum.org/v1/gonum/mat"
)

// Neuron is an elementwise activation function with its derivative.
type Neuron interface {
	// Name returns the declaration string this neuron was parsed from.
	Name() string

	// Activate replaces every pre-activation in acts with f(x), in place.
	Activate(acts *matrix.Matrix)

	// Gradient returns actsGrad ⊙ f'(x), with f'(x) computed from acts = f(x).
	// The result has the logical (case-major) shape of acts.
	Gradient(actsGrad, acts *matrix.Matrix) *mat.Dense
}

// Parse returns the neuron named by s.
//
// Supported forms: "" or "ident", "logistic", "relu", "brelu[a]",
// "softrelu", "tanh" and "tanh[a,b]" (computes a*tanh(b*x)).
func Parse(s string) (Neuron, error) {
	name, args, err := splitArgs(s)
	if err != nil {
		return nil, err
	}
	switch name {
	case "", "ident", "linear":
		return elementwise{name: "ident", fn: func(x float64) float64 { return x }, deriv: func(float64) float64 { return 1 }}, nil
	case "logistic":
		return elementwise{
			name:  "logistic",
			fn:    func(x float64) float64 { return 1 / (1 + math.Exp(-x)) },
			deriv: func(y float64) float64 { return y * (1 - y) },
		}, nil
	case "relu":
		return elementwise{
			name: "relu",
			fn:   func(x float64) float64 { return math.Max(0, x) },
			deriv: func(y float64) float64 {
				if y > 0 {
					return 1
				}
				return 0
			},
		}, nil
	case "brelu":
		if len(args) != 1 {
			return nil, fmt.Errorf("neuron %q: brelu takes one parameter", s)
		}
		a := args[0]
		return elementwise{
			name: s,
			fn:   func(x float64) float64 { return math.Min(a, math.Max(0, x)) },
			deriv: func(y float64) float64 {
				if y > 0 && y < a {
					return 1
				}
				return 0
			},
		}, nil
	case "softrelu":
		return elementwise{
			name: "softrelu",
			fn: func(x float64) float64 {
				// log(1+e^x) overflows for large x; it is x to double precision there.
				if x > 30 {
					return x
				}
				return math.Log1p(math.Exp(x))
			},
			deriv: func(y float64) float64 { return 1 - math.Exp(-y) },
		}, nil
	case "tanh":
		a, b := 1.0, 1.0
		switch len(args) {
		case 0:
		case 2:
			a, b = args[0], args[1]
		default:
			return nil, fmt.Errorf("neuron %q: tanh takes zero or two parameters", s)
		}
		if a == 0 {
			return nil, fmt.Errorf("neuron %q: tanh amplitude must be non-zero", s)
		}
		return elementwise{
			name:  s,
			fn:    func(x float64) float64 { return a * math.Tanh(b*x) },
			deriv: func(y float64) float64 { return b / a * (a*a - y*y) },
		}, nil
	default:
		return nil, fmt.Errorf("unknown neuron type %q", s)
	}
}

type elementwise struct {
	name  string
	fn    func(x float64) float64
	deriv func(y float64) float64
}

func (e elementwise) Name() string { return e.name }

func (e elementwise) Activate(acts *matrix.Matrix) {
	if e.name == "ident" {
		return
	}
	acts.Apply(e.fn)
}

func (e elementwise) Gradient(actsGrad, acts *matrix.Matrix) *mat.Dense {
	rows, cols := acts.Dims()
	gr, gc := actsGrad.Dims()
	matrix.Check(rows == gr && cols == gc, "neuronGrad", "acts %dx%d, grad %dx%d", rows, cols, gr, gc)

	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, actsGrad.At(i, j)*e.deriv(acts.At(i, j)))
		}
	}
	return out
}

// splitArgs parses "name[a,b]" into its name and numeric arguments.
func splitArgs(s string) (string, []float64, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '[')
	if open < 0 {
		return s, nil, nil
	}
	if !strings.HasSuffix(s, "]") {
		return "", nil, fmt.Errorf("neuron %q: unterminated parameter list", s)
	}
	var args []float64
	for _, part := range strings.Split(s[open+1:len(s)-1], ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return "", nil, fmt.Errorf("neuron %q: %w", s, err)
		}
		args = append(args, v)
	}
	return s[:open], args, nil
}
