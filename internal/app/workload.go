package app

import (
	"fmt"

	"go.uber.org/zap"

	"potbench/internal/domain"
)

// Atomic numbers used by the built-in workload.
const (
	numH  = 1
	numC  = 6
	numO  = 8
	numNa = 11
	numSi = 14
	numCl = 17
	numCu = 29
	numAu = 79
)

// workloadCell is the cubic cell edge given to every built-in structure,
// matching the reference harness.
const workloadCell = 90.0

// WorkloadBuilder produces the built-in benchmark workload: a fixed set
// of bulk crystals and molecules, each centered in a large cubic cell.
// Bulk structures can be expanded into s x s x s supercells to scale the
// per-item cost.
type WorkloadBuilder struct {
	logger    *zap.Logger
	supercell int
}

func NewWorkloadBuilder(logger *zap.Logger, supercell int) *WorkloadBuilder {
	if supercell < 1 {
		supercell = 1
	}
	return &WorkloadBuilder{logger: logger, supercell: supercell}
}

// Build returns the workload items in a fixed, reproducible order.
func (b *WorkloadBuilder) Build() ([]domain.WorkItem, error) {
	type entry struct {
		id      string
		cfg     domain.AtomicConfiguration
		lattice float64 // non-zero marks a crystal eligible for supercell expansion
	}

	entries := []entry{
		{"Cu_bulk", fccCell(numCu, 3.6), 3.6},
		{"H2O_molecule", moleculeH2O(), 0},
		{"Au_bulk", fccCell(numAu, 4.07), 4.07},
		{"CH4_molecule", moleculeCH4(), 0},
		{"Si_bulk", diamondCell(numSi, 5.43), 5.43},
		{"O2_molecule", moleculeO2(), 0},
		{"NaCl_crystal", rocksaltCell(numNa, numCl, 5.64), 5.64},
		{"C6H6_benzene", moleculeC6H6(), 0},
	}

	items := make([]domain.WorkItem, 0, len(entries))
	for _, e := range entries {
		cfg := e.cfg
		if e.lattice > 0 && b.supercell > 1 {
			cfg = repeatCell(cfg, e.lattice, b.supercell)
		}
		cfg.Cell = []float64{workloadCell, 0, 0, 0, workloadCell, 0, 0, 0, workloadCell}
		cfg.Center()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("workload %s: %w", e.id, err)
		}
		if !cfg.HasValidCell() {
			return nil, fmt.Errorf("workload %s: degenerate cell", e.id)
		}
		b.logger.Debug("built structure",
			zap.String("id", e.id),
			zap.Uint32("atoms", cfg.AtomCount))
		items = append(items, domain.WorkItem{ID: e.id, Structure: cfg})
	}
	return items, nil
}

func newConfiguration(numbers []uint32, positions []float64) domain.AtomicConfiguration {
	return domain.AtomicConfiguration{
		AtomCount:     uint32(len(numbers)),
		Positions:     positions,
		AtomicNumbers: numbers,
	}
}

// fccCell builds the 4-atom conventional fcc cell with lattice constant a.
func fccCell(number uint32, a float64) domain.AtomicConfiguration {
	h := a / 2
	return newConfiguration(
		[]uint32{number, number, number, number},
		[]float64{
			0, 0, 0,
			0, h, h,
			h, 0, h,
			h, h, 0,
		},
	)
}

// diamondCell builds the 8-atom conventional diamond cell: fcc plus a
// basis shifted by a/4 along each axis.
func diamondCell(number uint32, a float64) domain.AtomicConfiguration {
	fcc := fccCell(number, a)
	q := a / 4
	numbers := make([]uint32, 0, 8)
	positions := make([]float64, 0, 24)
	for i := 0; i < 4; i++ {
		numbers = append(numbers, number, number)
		x, y, z := fcc.Positions[3*i], fcc.Positions[3*i+1], fcc.Positions[3*i+2]
		positions = append(positions, x, y, z, x+q, y+q, z+q)
	}
	return newConfiguration(numbers, positions)
}

// rocksaltCell builds the 8-atom conventional rocksalt cell.
func rocksaltCell(cation, anion uint32, a float64) domain.AtomicConfiguration {
	fcc := fccCell(cation, a)
	h := a / 2
	numbers := make([]uint32, 0, 8)
	positions := make([]float64, 0, 24)
	for i := 0; i < 4; i++ {
		numbers = append(numbers, cation, anion)
		x, y, z := fcc.Positions[3*i], fcc.Positions[3*i+1], fcc.Positions[3*i+2]
		positions = append(positions, x, y, z, x+h, y, z)
	}
	return newConfiguration(numbers, positions)
}

// repeatCell tiles a crystal cell s times along each axis.
func repeatCell(cfg domain.AtomicConfiguration, a float64, s int) domain.AtomicConfiguration {
	n := int(cfg.AtomCount)
	numbers := make([]uint32, 0, n*s*s*s)
	positions := make([]float64, 0, 3*n*s*s*s)
	for ix := 0; ix < s; ix++ {
		for iy := 0; iy < s; iy++ {
			for iz := 0; iz < s; iz++ {
				for i := 0; i < n; i++ {
					numbers = append(numbers, cfg.AtomicNumbers[i])
					positions = append(positions,
						cfg.Positions[3*i]+float64(ix)*a,
						cfg.Positions[3*i+1]+float64(iy)*a,
						cfg.Positions[3*i+2]+float64(iz)*a,
					)
				}
			}
		}
	}
	return newConfiguration(numbers, positions)
}

func moleculeH2O() domain.AtomicConfiguration {
	return newConfiguration(
		[]uint32{numO, numH, numH},
		[]float64{
			0, 0, 0.119262,
			0, 0.763239, -0.477047,
			0, -0.763239, -0.477047,
		},
	)
}

func moleculeCH4() domain.AtomicConfiguration {
	d := 0.629118 // C-H bond of 1.087 projected on each axis
	return newConfiguration(
		[]uint32{numC, numH, numH, numH, numH},
		[]float64{
			0, 0, 0,
			d, d, d,
			-d, -d, d,
			d, -d, -d,
			-d, d, -d,
		},
	)
}

func moleculeO2() domain.AtomicConfiguration {
	return newConfiguration(
		[]uint32{numO, numO},
		[]float64{
			0, 0, 0,
			0, 0, 1.2075,
		},
	)
}

func moleculeC6H6() domain.AtomicConfiguration {
	// Planar ring: carbons at 1.395, hydrogens at 2.482, every 60 degrees.
	ringC := []float64{1.395, 0.697500, -0.697500, -1.395, -0.697500, 0.697500}
	ringY := []float64{0, 1.207927, 1.207927, 0, -1.207927, -1.207927}
	hC := []float64{2.482, 1.241, -1.241, -2.482, -1.241, 1.241}
	hY := []float64{0, 2.149475, 2.149475, 0, -2.149475, -2.149475}

	numbers := make([]uint32, 0, 12)
	positions := make([]float64, 0, 36)
	for i := 0; i < 6; i++ {
		numbers = append(numbers, numC)
		positions = append(positions, ringC[i], ringY[i], 0)
	}
	for i := 0; i < 6; i++ {
		numbers = append(numbers, numH)
		positions = append(positions, hC[i], hY[i], 0)
	}
	return newConfiguration(numbers, positions)
}
