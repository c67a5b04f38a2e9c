package config

import "fmt"

// Validate checks a declaration list for structural errors: unknown types,
// missing or duplicate names, predecessor indices that do not refer to an
// earlier non-cost layer, wrong input counts and missing type-specific parameters.
//
// Returns a *DeclError for the first offending record.
func Validate(decls []LayerDecl) error {
	if len(decls) == 0 {
		return badDecl("no layers declared")
	}

	names := make(map[string]int, len(decls))
	for i := range decls {
		d := &decls[i]
		if err := validateOne(decls, i, names); err != nil {
			return &DeclError{Index: i, Name: d.Name, Err: err}
		}
		names[d.Name] = i
	}
	return nil
}

func validateOne(decls []LayerDecl, i int, names map[string]int) error {
	d := &decls[i]
	if d.Name == "" {
		return badDecl("missing name")
	}
	if prev, dup := names[d.Name]; dup {
		return badDecl("name already used by layer %d", prev)
	}

	seen := make(map[int]bool, len(d.Inputs))
	for _, in := range d.Inputs {
		if in < 0 || in >= i {
			return badDecl("input %d does not refer to an earlier layer", in)
		}
		if seen[in] {
			return badDecl("input %d listed twice", in)
		}
		if decls[in].Type == TypeLogregCost {
			return badDecl("input %d is a cost layer, which has no activations", in)
		}
		seen[in] = true
	}

	switch d.Type {
	case TypeData:
		if len(d.Inputs) != 0 {
			return badDecl("data layers take no inputs")
		}
		if d.DataIdx < 0 {
			return badDecl("negative dataIdx %d", d.DataIdx)
		}
	case TypeFC:
		if err := wantInputs(d, 1, -1); err != nil {
			return err
		}
		if d.Outputs <= 0 {
			return badDecl("fc layers need outputs > 0")
		}
		if err := perInputLens(d); err != nil {
			return err
		}
	case TypeConv:
		if err := wantInputs(d, 1, 1); err != nil {
			return err
		}
		if d.Channels <= 0 || d.ImgSize <= 0 || d.FilterSize <= 0 || d.Filters <= 0 {
			return badDecl("conv layers need channels, imgSize, filterSize and filters > 0")
		}
		if d.Stride < 0 || d.Padding < 0 || d.PartialSum < 0 {
			return badDecl("conv stride, padding and partialSum must be non-negative")
		}
		if err := perInputLens(d); err != nil {
			return err
		}
	case TypePool:
		if err := wantInputs(d, 1, 1); err != nil {
			return err
		}
		if d.Pool != "max" && d.Pool != "avg" {
			return badDecl("pool must be \"max\" or \"avg\", got %q", d.Pool)
		}
		if d.Channels <= 0 || d.ImgSize <= 0 || d.SizeX <= 0 {
			return badDecl("pool layers need channels, imgSize and sizeX > 0")
		}
		if d.Stride < 0 || d.Start > 0 || d.OutputsX < 0 {
			return badDecl("pool stride and outputsX must be non-negative and start must not be positive")
		}
	case TypeSoftmax:
		if err := wantInputs(d, 1, 1); err != nil {
			return err
		}
	case TypeLogregCost:
		if err := wantInputs(d, 2, 2); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w %q", ErrUnknownLayerType, d.Type)
	}
	return nil
}

// wantInputs checks the input count against [lo, hi]; hi < 0 means unbounded.
func wantInputs(d *LayerDecl, lo, hi int) error {
	n := len(d.Inputs)
	if n < lo || (hi >= 0 && n > hi) {
		if lo == hi {
			return badDecl("%s layers take %d input(s), got %d", d.Type, lo, n)
		}
		return badDecl("%s layers take at least %d input(s), got %d", d.Type, lo, n)
	}
	return nil
}

func perInputLens(d *LayerDecl) error {
	for key, vals := range map[string][]float64{"epsW": d.EpsW, "momW": d.MomW, "wc": d.WC, "initW": d.InitW} {
		if len(vals) > 1 && len(vals) != len(d.Inputs) {
			return badDecl("%s has %d values for %d inputs", key, len(vals), len(d.Inputs))
		}
	}
	return nil
}
