package matrix

import "fmt"

// LaunchError reports a compute primitive that could not run, typically a
// shape mismatch between operands. Device state is undefined after a failed
// launch, so primitives panic with a *LaunchError instead of returning it.
type LaunchError struct {
	Kernel string // Primitive that failed (e.g., "filterActs")
	Msg    string // Details
}

// Error implements the error interface.
func (e *LaunchError) Error() string {
	return fmt.Sprintf("kernel %s: %s", e.Kernel, e.Msg)
}

// Check panics with a *LaunchError when ok is false.
func Check(ok bool, kernel, format string, args ...any) {
	if !ok {
		panic(&LaunchError{Kernel: kernel, Msg: fmt.Sprintf(format, args...)})
	}
}
