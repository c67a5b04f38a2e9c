// Package config describes layer graphs declaratively.
//
// A graph is an ordered list of LayerDecl records. Each record names its
// predecessors by index into that list, so a layer may only consume layers
// declared before it. Records are flat: every type-specific parameter lives
// in the same struct and only the fields relevant to the record's Type are
// read.
//
// Example (JSON):
//
//	{"layers": [
//	  {"name": "data",   "type": "data", "dataIdx": 0, "outputs": 3},
//	  {"name": "labels", "type": "data", "dataIdx": 1, "outputs": 1},
//	  {"name": "fc1",    "type": "fc", "inputs": [0], "outputs": 2, "initW": [0.1]},
//	  {"name": "probs",  "type": "softmax", "inputs": [2]},
//	  {"name": "logreg", "type": "cost.logreg", "inputs": [1, 3], "coeff": 1}
//	]}
package config

// Layer type tags.
const (
	TypeData       = "data"
	TypeFC         = "fc"
	TypeConv       = "conv"
	TypePool       = "pool"
	TypeSoftmax    = "softmax"
	TypeLogregCost = "cost.logreg"
)

// Definition is the top-level document holding a graph declaration.
type Definition struct {
	Layers []LayerDecl `json:"layers"`
}

// LayerDecl declares one layer.
type LayerDecl struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Inputs []int  `json:"inputs,omitempty"` // Predecessor indices, in consumption order
	Trans  bool   `json:"trans,omitempty"`  // Keep buffers neuron-major

	// data
	DataIdx int `json:"dataIdx,omitempty"` // Dataset slot

	// data, fc: neurons per case
	Outputs int `json:"outputs,omitempty"`

	// fc, conv
	Neuron string    `json:"neuron,omitempty"`
	EpsW   []float64 `json:"epsW,omitempty"` // Learning rate per input (one value broadcasts)
	MomW   []float64 `json:"momW,omitempty"` // Momentum per input
	WC     []float64 `json:"wc,omitempty"`   // Weight decay per input
	InitW  []float64 `json:"initW,omitempty"` // Init stddev per input
	EpsB   float64   `json:"epsB,omitempty"`
	MomB   float64   `json:"momB,omitempty"`
	InitB  float64   `json:"initB,omitempty"`

	// conv, pool
	Channels int `json:"channels,omitempty"`
	ImgSize  int `json:"imgSize,omitempty"`
	Stride   int `json:"stride,omitempty"`

	// conv
	FilterSize int `json:"filterSize,omitempty"`
	Padding    int `json:"padding,omitempty"`
	Filters    int `json:"filters,omitempty"`
	PartialSum int `json:"partialSum,omitempty"` // Output locations per weight-gradient chunk; 0 = all

	// pool
	Pool     string `json:"pool,omitempty"` // "max" or "avg"
	SizeX    int    `json:"sizeX,omitempty"`
	Start    int    `json:"start,omitempty"`
	OutputsX int    `json:"outputsX,omitempty"` // 0 = derived from the other parameters

	// cost.logreg
	Coeff    *float64 `json:"coeff,omitempty"`    // Objective weight; nil means 1
	CostName string   `json:"costName,omitempty"` // Key in the error result; defaults to Name
}

// Coefficient returns the cost coefficient, defaulting to 1.
func (d *LayerDecl) Coefficient() float64 {
	if d.Coeff == nil {
		return 1
	}
	return *d.Coeff
}

// ErrorName returns the key under which a cost layer reports its errors.
func (d *LayerDecl) ErrorName() string {
	if d.CostName == "" {
		return d.Name
	}
	return d.CostName
}

// PerInput returns vals[i], broadcasting a single value and defaulting to def.
func PerInput(vals []float64, i int, def float64) float64 {
	switch {
	case len(vals) == 0:
		return def
	case len(vals) == 1:
		return vals[0]
	default:
		return vals[i]
	}
}

// Float returns a pointer to v, for optional fields such as Coeff.
func Float(v float64) *float64 {
	return &v
}
