package main

import (
	"fmt"
	"math/rand"

	"github.com/born-ml/convnet/graph"
)

// builtinNet classifies 8x8 two-channel images into four classes.
const builtinNet = `{"layers": [
  {"name": "images", "type": "data", "dataIdx": 0, "outputs": 128},
  {"name": "labels", "type": "data", "dataIdx": 1, "outputs": 1},
  {"name": "conv1",  "type": "conv", "inputs": [0], "channels": 2, "imgSize": 8, "filterSize": 3,
   "padding": 1, "filters": 4, "partialSum": 16, "neuron": "relu",
   "initW": [0.1], "epsW": [0.05], "momW": [0.9], "wc": [0.0005], "epsB": 0.05, "momB": 0.9},
  {"name": "pool1",  "type": "pool", "inputs": [2], "pool": "max", "channels": 4, "imgSize": 8, "sizeX": 3, "stride": 2, "start": -1},
  {"name": "fc1",    "type": "fc", "inputs": [3], "outputs": 4, "initW": [0.05],
   "epsW": [0.05], "momW": [0.9], "wc": [0.0005], "epsB": 0.05, "momB": 0.9},
  {"name": "probs",  "type": "softmax", "inputs": [4]},
  {"name": "logreg", "type": "cost.logreg", "inputs": [1, 5]}
]}`

// syntheticBatch fills every data slot of g: Gaussian features for plain
// inputs and class indices for slots feeding a cost layer's labels.
func syntheticBatch(g *graph.Graph, numCases int, seed int64) (*graph.Dataset, error) {
	if numCases <= 0 {
		return nil, fmt.Errorf("need at least one case, got %d", numCases)
	}
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // synthetic data

	classes := map[string]int{}
	for _, c := range g.CostLayers() {
		prev := c.Prev()
		classes[prev[0].Name()] = prev[1].Outputs()
	}

	var data []*graph.Matrix
	for _, l := range g.DataLayers() {
		for len(data) <= l.DataIdx() {
			data = append(data, nil)
		}
		width := 1
		if _, ok := classes[l.Name()]; !ok {
			if l.Outputs() <= 0 {
				return nil, fmt.Errorf("data layer %q declares no outputs", l.Name())
			}
			width = l.Outputs()
		}

		vals := make([]float64, numCases*width)
		for i := range vals {
			if n, ok := classes[l.Name()]; ok {
				vals[i] = float64(rng.Intn(n))
			} else {
				vals[i] = rng.NormFloat64()
			}
		}
		if l.Trans() {
			data[l.DataIdx()] = graph.NewMatrix(width, numCases, vals)
		} else {
			data[l.DataIdx()] = graph.NewMatrix(numCases, width, vals)
		}
	}
	return graph.NewDataset(numCases, data...), nil
}
