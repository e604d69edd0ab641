package domain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"potbench/pkg/wire"
)

// Validate checks the structural invariants: 3*AtomCount positions,
// AtomCount atomic numbers, and a 9-element cell.
func (c *AtomicConfiguration) Validate() error {
	if len(c.Positions) != 3*int(c.AtomCount) {
		return &EncodingError{Reason: fmt.Sprintf("%d position values for %d atoms", len(c.Positions), c.AtomCount)}
	}
	if len(c.AtomicNumbers) != int(c.AtomCount) {
		return &EncodingError{Reason: fmt.Sprintf("%d atomic numbers for %d atoms", len(c.AtomicNumbers), c.AtomCount)}
	}
	if len(c.Cell) != 9 {
		return &EncodingError{Reason: fmt.Sprintf("cell has %d values, want 9", len(c.Cell))}
	}
	return nil
}

// CellVolume returns the absolute determinant of the lattice matrix.
func (c *AtomicConfiguration) CellVolume() float64 {
	if len(c.Cell) != 9 {
		return 0
	}
	return math.Abs(mat.Det(mat.NewDense(3, 3, c.Cell)))
}

// HasValidCell reports whether the cell is non-degenerate. Computations on
// a degenerate cell are rejected by the workload builder, not by the wire
// format.
func (c *AtomicConfiguration) HasValidCell() bool {
	return len(c.Cell) == 9 && c.CellVolume() > 1e-12
}

// Center translates the atoms so their centroid sits at the center of the
// (orthogonal) cell.
func (c *AtomicConfiguration) Center() {
	n := int(c.AtomCount)
	if n == 0 || len(c.Positions) != 3*n || len(c.Cell) != 9 {
		return
	}
	var cx, cy, cz float64
	for i := 0; i < n; i++ {
		cx += c.Positions[3*i]
		cy += c.Positions[3*i+1]
		cz += c.Positions[3*i+2]
	}
	cx /= float64(n)
	cy /= float64(n)
	cz /= float64(n)
	sx := c.Cell[0]/2 - cx
	sy := c.Cell[4]/2 - cy
	sz := c.Cell[8]/2 - cz
	for i := 0; i < n; i++ {
		c.Positions[3*i] += sx
		c.Positions[3*i+1] += sy
		c.Positions[3*i+2] += sz
	}
}

// EncodeStructure converts a configuration into the canonical wire
// message. It is pure: the input is not modified and the output holds
// copies. Floating-point values carry over bit-exact.
func EncodeStructure(c AtomicConfiguration) (*wire.ForceInput, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	in := &wire.ForceInput{
		Natm:   c.AtomCount,
		Pos:    append([]float64(nil), c.Positions...),
		Atmnrs: append([]uint32(nil), c.AtomicNumbers...),
		Box:    append([]float64(nil), c.Cell...),
	}
	return in, nil
}

// DecodeStructure is the inverse of EncodeStructure.
func DecodeStructure(in *wire.ForceInput) (AtomicConfiguration, error) {
	if err := in.Validate(); err != nil {
		return AtomicConfiguration{}, err
	}
	return AtomicConfiguration{
		AtomCount:     in.Natm,
		Positions:     append([]float64(nil), in.Pos...),
		AtomicNumbers: append([]uint32(nil), in.Atmnrs...),
		Cell:          append([]float64(nil), in.Box...),
	}, nil
}
