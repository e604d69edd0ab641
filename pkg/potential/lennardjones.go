package potential

import (
	"context"
	"math"

	"potbench/pkg/wire"
)

// LennardJones is a shifted 12-6 Lennard-Jones potential with minimum
// image convention for periodic boundaries. The box is assumed to be
// orthogonal; only the diagonal of the lattice matrix is used.
type LennardJones struct {
	u0      float64
	cutoffR float64
	psi     float64
	cutoffU float64
}

// NewLennardJones returns the reference parameterization (u0=1, psi=1,
// cutoff 15).
func NewLennardJones() *LennardJones {
	lj := &LennardJones{u0: 1.0, cutoffR: 15.0, psi: 1.0}
	a := math.Pow(lj.psi/lj.cutoffR, 6)
	lj.cutoffU = 4 * lj.u0 * a * (a - 1)
	return lj
}

func (lj *LennardJones) Name() string { return "LJ" }

// Calculate sums pairwise interactions within the cutoff radius. Energies
// are shifted so a pair at exactly the cutoff contributes zero.
func (lj *LennardJones) Calculate(_ context.Context, in *wire.ForceInput) (*wire.Result, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	n := int(in.Natm)
	pos := in.Pos
	box := in.Box
	forces := make([]float64, 3*n)
	var energy float64

	for i := 0; i < n-1; i++ {
		for j := i + 1; j < n; j++ {
			dx := pos[3*i] - pos[3*j]
			dy := pos[3*i+1] - pos[3*j+1]
			dz := pos[3*i+2] - pos[3*j+2]

			// Minimum image convention against the box diagonal.
			dx -= box[0] * math.Floor(dx/box[0]+0.5)
			dy -= box[4] * math.Floor(dy/box[4]+0.5)
			dz -= box[8] * math.Floor(dz/box[8]+0.5)

			r := math.Sqrt(dx*dx + dy*dy + dz*dz)
			if r >= lj.cutoffR {
				continue
			}

			a := math.Pow(lj.psi/r, 6)
			b := 4 * lj.u0 * a
			energy += b*(a-1) - lj.cutoffU

			dU := -6 * b / r * (2*a - 1)

			forces[3*i] -= dU * dx / r
			forces[3*i+1] -= dU * dy / r
			forces[3*i+2] -= dU * dz / r

			forces[3*j] += dU * dx / r
			forces[3*j+1] += dU * dy / r
			forces[3*j+2] += dU * dz / r
		}
	}

	return &wire.Result{Energy: energy, Forces: forces}, nil
}
