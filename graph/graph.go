// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package graph

import (
	"io"

	"github.com/born-ml/convnet/internal/checkpoint"
	"github.com/born-ml/convnet/internal/config"
	"github.com/born-ml/convnet/internal/graph"
	"github.com/born-ml/convnet/internal/matrix"
	"google.golang.org/protobuf/types/known/structpb"
)

// Graph is a network built from layer declarations.
type Graph = graph.Graph

// Layer is one node of a Graph.
type Layer = graph.Layer

// Weights is a trainable parameter matrix with its increment and gradient.
type Weights = graph.Weights

// Config holds options shared by every layer of a graph.
type Config = graph.Config

// PassType selects train, test or gradient-check behaviour.
type PassType = graph.PassType

// Pass types.
const (
	PassTrain     = graph.PassTrain
	PassTest      = graph.PassTest
	PassGradCheck = graph.PassGradCheck
)

// GradCheckThreshold is the relative error at or above which a check fails.
const GradCheckThreshold = graph.GradCheckThreshold

// Dataset is one minibatch.
type Dataset = graph.Dataset

// Matrix is the dense buffer exchanged with the graph.
type Matrix = matrix.Matrix

// ErrorResult collects the errors reported by cost layers.
type ErrorResult = graph.ErrorResult

// GradCheckReport lists the outcome of a gradient check.
type GradCheckReport = graph.GradCheckReport

// GradCheckResult is the outcome for one weight matrix.
type GradCheckResult = graph.GradCheckResult

// LayerDecl declares one layer.
type LayerDecl = config.LayerDecl

// Errors.
type (
	ConstructionError  = graph.ConstructionError
	UnsupportedOpError = graph.UnsupportedOpError
)

// Sentinel errors.
var (
	ErrUnknownLayerType = graph.ErrUnknownLayerType
	ErrBadDeclaration   = graph.ErrBadDeclaration
	ErrUnsupportedOp    = graph.ErrUnsupportedOp
	ErrBadDataset       = graph.ErrBadDataset
	ErrMissingWeights   = graph.ErrMissingWeights
)

// New builds a graph from decls.
func New(decls []LayerDecl, cfg Config) (*Graph, error) {
	return graph.New(decls, cfg)
}

// DefaultConfig returns a configuration with parallel kernels, quiet
// gradient checks and diagnostics on stderr.
func DefaultConfig() Config {
	return graph.DefaultConfig()
}

// NewDataset returns a minibatch over data.
func NewDataset(numCases int, data ...*Matrix) *Dataset {
	return graph.NewDataset(numCases, data...)
}

// NewMatrix wraps row-major data as a rows x cols matrix.
func NewMatrix(rows, cols int, data []float64) *Matrix {
	return matrix.FromSlice(rows, cols, data)
}

// LoadDefinition decodes and validates a JSON layer definition.
func LoadDefinition(r io.Reader) ([]LayerDecl, error) {
	return config.Load(r)
}

// LoadDefinitionFile reads a JSON layer definition from path.
func LoadDefinitionFile(path string) ([]LayerDecl, error) {
	return config.LoadFile(path)
}

// DefinitionFromStruct decodes a layer definition carried in a protobuf Struct.
func DefinitionFromStruct(s *structpb.Struct) ([]LayerDecl, error) {
	return config.FromStruct(s)
}

// SaveCheckpoint writes g's weights to path in the SafeTensors layout.
func SaveCheckpoint(g *Graph, path string, metadata map[string]string) error {
	return checkpoint.WriteFile(path, g.Checkpoint(), metadata)
}

// LoadCheckpoint restores g's weights from path and returns the file metadata.
func LoadCheckpoint(g *Graph, path string) (map[string]string, error) {
	weights, meta, err := checkpoint.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := g.Restore(weights); err != nil {
		return nil, err
	}
	return meta, nil
}
