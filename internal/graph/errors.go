package graph

import (
	"errors"
	"fmt"

	"github.com/born-ml/convnet/internal/config"
)

// Common errors.
var (
	ErrUnknownLayerType = config.ErrUnknownLayerType
	ErrBadDeclaration   = config.ErrBadDeclaration
	ErrUnsupportedOp    = errors.New("operation not supported by layer")
	ErrBadDataset       = errors.New("dataset does not match data layers")
	ErrMissingWeights   = errors.New("checkpoint does not match graph weights")
)

// ConstructionError reports a declaration the graph could not be built from.
type ConstructionError struct {
	Index int    // Position in the declaration list, -1 if not tied to one record
	Layer string // Layer name, if known
	Type  string // Declared type tag
	Err   error
}

// Error implements the error interface.
func (e *ConstructionError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("build graph: %v", e.Err)
	case e.Layer != "":
		return fmt.Sprintf("build graph: layer %d (%q, %s): %v", e.Index, e.Layer, e.Type, e.Err)
	default:
		return fmt.Sprintf("build graph: layer %d (%s): %v", e.Index, e.Type, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *ConstructionError) Unwrap() error {
	return e.Err
}

// UnsupportedOpError reports a pass entry point invoked on a layer kind that
// does not take part in it, such as the generic forward entry of a data layer.
type UnsupportedOpError struct {
	Layer string
	Kind  string
	Op    string
}

// Error implements the error interface.
func (e *UnsupportedOpError) Error() string {
	return fmt.Sprintf("layer %q (%s): %s: %v", e.Layer, e.Kind, e.Op, ErrUnsupportedOp)
}

// Is reports whether target is ErrUnsupportedOp.
func (e *UnsupportedOpError) Is(target error) bool {
	return target == ErrUnsupportedOp
}

func constructionErr(index int, d *config.LayerDecl, format string, args ...any) error {
	return &ConstructionError{
		Index: index,
		Layer: d.Name,
		Type:  d.Type,
		Err:   fmt.Errorf("%w: %s", ErrBadDeclaration, fmt.Sprintf(format, args...)),
	}
}
