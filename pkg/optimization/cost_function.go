package optimization

import (
	"context"
	"math"

	"potbench/pkg/potential"
	"potbench/pkg/wire"
)

// hugeValue is returned as the energy when the underlying calculator
// fails, steering the minimizer away without aborting it.
const hugeValue = 1e9

// PotentialSurface adapts a Calculator to the function/gradient pair a
// minimizer works on. The free variables are the flattened positions;
// atomic numbers and the cell stay fixed. The gradient is analytic: the
// negative of the forces the calculator already returns.
type PotentialSurface struct {
	ctx    context.Context
	calc   potential.Calculator
	atmnrs []uint32
	box    []float64
}

func NewPotentialSurface(ctx context.Context, calc potential.Calculator, atmnrs []uint32, box []float64) *PotentialSurface {
	return &PotentialSurface{ctx: ctx, calc: calc, atmnrs: atmnrs, box: box}
}

func (s *PotentialSurface) evaluate(x []float64) (*wire.Result, error) {
	in := &wire.ForceInput{
		Natm:   uint32(len(s.atmnrs)),
		Pos:    x,
		Atmnrs: s.atmnrs,
		Box:    s.box,
	}
	return s.calc.Calculate(s.ctx, in)
}

// Func returns the energy at x.
func (s *PotentialSurface) Func(x []float64) float64 {
	res, err := s.evaluate(x)
	if err != nil || math.IsNaN(res.Energy) {
		return hugeValue
	}
	return res.Energy
}

// Grad fills grad with the negative forces at x.
func (s *PotentialSurface) Grad(grad, x []float64) {
	res, err := s.evaluate(x)
	if err != nil {
		for i := range grad {
			grad[i] = 0
		}
		return
	}
	for i, f := range res.Forces {
		grad[i] = -f
	}
}
