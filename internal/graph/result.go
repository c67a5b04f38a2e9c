package graph

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
)

// ErrorResult collects the error components reported by cost layers, keyed
// by cost name, together with the coefficient each cost carries in the
// objective.
type ErrorResult struct {
	names  []string
	errs   map[string][]float64
	coeffs map[string]float64
}

// NewErrorResult returns an empty result.
func NewErrorResult() *ErrorResult {
	return &ErrorResult{
		errs:   make(map[string][]float64),
		coeffs: make(map[string]float64),
	}
}

// Add records components under name, replacing any previous entry.
func (r *ErrorResult) Add(name string, components []float64, coeff float64) {
	if _, ok := r.errs[name]; !ok {
		r.names = append(r.names, name)
	}
	r.errs[name] = append([]float64(nil), components...)
	r.coeffs[name] = coeff
}

// Accumulate adds other into r component-wise. Names r has not seen are
// inserted with other's coefficient.
func (r *ErrorResult) Accumulate(other *ErrorResult) *ErrorResult {
	for _, name := range other.names {
		src := other.errs[name]
		dst, ok := r.errs[name]
		if !ok {
			r.Add(name, src, other.coeffs[name])
			continue
		}
		if len(dst) != len(src) {
			panic(fmt.Sprintf("error result %q: %d components, adding %d", name, len(dst), len(src)))
		}
		floats.Add(dst, src)
	}
	return r
}

// Divide scales every component by 1/v.
func (r *ErrorResult) Divide(v float64) *ErrorResult {
	for _, name := range r.names {
		floats.Scale(1/v, r.errs[name])
	}
	return r
}

// Cost returns sum over names of coeff * first component.
func (r *ErrorResult) Cost() float64 {
	var cost float64
	for _, name := range r.names {
		if errs := r.errs[name]; len(errs) > 0 {
			cost += r.coeffs[name] * errs[0]
		}
	}
	return cost
}

// Components returns the components recorded under name, or nil.
func (r *ErrorResult) Components(name string) []float64 {
	return r.errs[name]
}

// Coeff returns the coefficient recorded under name.
func (r *ErrorResult) Coeff(name string) float64 {
	return r.coeffs[name]
}

// Names returns the cost names in insertion order.
func (r *ErrorResult) Names() []string {
	return append([]string(nil), r.names...)
}

// String formats the result as "name: c0, c1; ...".
func (r *ErrorResult) String() string {
	var sb strings.Builder
	for i, name := range r.names {
		if i > 0 {
			sb.WriteString("; ")
		}
		fmt.Fprintf(&sb, "%s:", name)
		for j, v := range r.errs[name] {
			if j > 0 {
				sb.WriteByte(',')
			}
			fmt.Fprintf(&sb, " %.6g", v)
		}
	}
	return sb.String()
}
