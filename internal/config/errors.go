package config

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrUnknownLayerType = errors.New("unknown layer type")
	ErrBadDeclaration   = errors.New("malformed layer declaration")
)

// DeclError reports a problem with one declaration record.
type DeclError struct {
	Index int    // Position in the declaration list
	Name  string // Layer name, if known
	Err   error  // ErrUnknownLayerType or ErrBadDeclaration, possibly wrapped
}

// Error implements the error interface.
func (e *DeclError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("layer %d (%q): %v", e.Index, e.Name, e.Err)
	}
	return fmt.Sprintf("layer %d: %v", e.Index, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeclError) Unwrap() error {
	return e.Err
}

func badDecl(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadDeclaration, fmt.Sprintf(format, args...))
}
