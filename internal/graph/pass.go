package graph

import (
	"io"
	"os"

	"github.com/born-ml/convnet/internal/parallel"
)

// PassType selects how a forward/backward pass treats weight updates.
type PassType int

// Pass types.
const (
	PassTrain PassType = iota
	PassTest
	PassGradCheck
)

// String returns the pass name.
func (p PassType) String() string {
	switch p {
	case PassTrain:
		return "train"
	case PassTest:
		return "test"
	case PassGradCheck:
		return "gradcheck"
	default:
		return "unknown"
	}
}

// DefaultGradCheckStep is the finite-difference step used by CheckGradients.
const DefaultGradCheckStep = 1e-4

// GradCheckThreshold is the relative error at or above which a check fails.
const GradCheckThreshold = 0.02

// Config holds the options shared by every layer of a graph.
type Config struct {
	// SaveBwdActs keeps activation gradients after their consumer has used
	// them instead of releasing the storage.
	SaveBwdActs bool

	// SuppressPasses limits gradient-check diagnostics to failing checks.
	SuppressPasses bool

	// Diag receives gradient-check diagnostics. Nil means os.Stderr.
	Diag io.Writer

	// Seed drives weight initialization.
	Seed int64

	// GradCheckStep is the finite-difference step. Zero means DefaultGradCheckStep.
	GradCheckStep float64

	// Parallel controls kernel parallelism.
	Parallel parallel.Config
}

// DefaultConfig returns the configuration used by the command line tool.
func DefaultConfig() Config {
	return Config{
		SuppressPasses: true,
		Diag:           os.Stderr,
		Seed:           1,
		GradCheckStep:  DefaultGradCheckStep,
		Parallel:       parallel.DefaultConfig(),
	}
}

func (c Config) withDefaults() Config {
	if c.Diag == nil {
		c.Diag = os.Stderr
	}
	if c.GradCheckStep == 0 {
		c.GradCheckStep = DefaultGradCheckStep
	}
	return c
}
