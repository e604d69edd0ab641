package optimization

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/optimize"

	"potbench/internal/domain"
	"potbench/pkg/potential"
)

// Relaxation methods accepted by NewRelaxer.
const (
	MethodLBFGS      = "lbfgs"
	MethodNelderMead = "neldermead"
)

// Relaxer drives a structure to a nearby local minimum of a potential
// surface. It is a utility on top of the same Calculator interface the
// benchmark evaluates, useful for preparing low-energy workload inputs.
type Relaxer struct {
	logger        *zap.Logger
	method        string
	gradTolerance float64
	maxIterations int
}

func NewRelaxer(logger *zap.Logger, method string) *Relaxer {
	if method == "" {
		method = MethodLBFGS
	}
	return &Relaxer{
		logger:        logger,
		method:        method,
		gradTolerance: 1e-6,
		maxIterations: 2000,
	}
}

// RelaxResult holds the minimized geometry and its energy.
type RelaxResult struct {
	Positions   []float64
	Energy      float64
	Evaluations int
}

// Relax minimizes the energy of cfg under calc, starting from the
// configuration's positions. The input is not modified.
func (r *Relaxer) Relax(ctx context.Context, cfg domain.AtomicConfiguration, calc potential.Calculator) (*RelaxResult, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	surface := NewPotentialSurface(ctx, calc, cfg.AtomicNumbers, cfg.Cell)
	problem := optimize.Problem{Func: surface.Func}

	var method optimize.Method
	switch r.method {
	case MethodNelderMead:
		method = &optimize.NelderMead{}
	case MethodLBFGS:
		problem.Grad = surface.Grad
		method = &optimize.LBFGS{}
	default:
		return nil, fmt.Errorf("unknown relaxation method %q", r.method)
	}

	settings := &optimize.Settings{
		GradientThreshold: r.gradTolerance,
		MajorIterations:   r.maxIterations,
	}

	initial := append([]float64(nil), cfg.Positions...)
	result, err := optimize.Minimize(problem, initial, settings, method)
	if err != nil {
		return nil, fmt.Errorf("relaxation failed: %w", err)
	}

	r.logger.Debug("relaxation finished",
		zap.String("status", result.Status.String()),
		zap.Float64("energy", result.F),
		zap.Int("evaluations", result.FuncEvaluations))

	return &RelaxResult{
		Positions:   result.X,
		Energy:      result.F,
		Evaluations: result.FuncEvaluations,
	}, nil
}
