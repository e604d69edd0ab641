package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// MethodCalculate is the only method offered by a potential server.
const MethodCalculate = "Potential.calculate"

var ErrMalformedPayload = errors.New("wire: malformed payload")

// ForceInput is the request payload for Potential.calculate. Pos holds
// flattened x,y,z coordinates in atom order, Atmnrs one atomic number per
// atom in the same order, and Box the row-major 3x3 lattice matrix.
type ForceInput struct {
	Natm   uint32
	Pos    []float64
	Atmnrs []uint32
	Box    []float64
}

// Result is the response payload: scalar potential energy and flattened
// forces with the same layout convention as ForceInput.Pos.
type Result struct {
	Energy float64
	Forces []float64
}

// Validate checks the length invariants tying Pos, Atmnrs and Box to Natm.
func (f *ForceInput) Validate() error {
	if len(f.Pos) != 3*int(f.Natm) {
		return fmt.Errorf("%w: pos has %d values, want %d", ErrMalformedPayload, len(f.Pos), 3*f.Natm)
	}
	if len(f.Atmnrs) != int(f.Natm) {
		return fmt.Errorf("%w: atmnrs has %d values, want %d", ErrMalformedPayload, len(f.Atmnrs), f.Natm)
	}
	if len(f.Box) != 9 {
		return fmt.Errorf("%w: box has %d values, want 9", ErrMalformedPayload, len(f.Box))
	}
	return nil
}

// MarshalBinary encodes the message as
// [u32 natm][3*natm f64 pos][natm u32 atmnrs][9 f64 box], big-endian.
// Doubles are transmitted bit-exact via their IEEE-754 representation.
func (f *ForceInput) MarshalBinary() ([]byte, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	n := int(f.Natm)
	buf := make([]byte, 4+8*3*n+4*n+8*9)
	binary.BigEndian.PutUint32(buf[0:4], f.Natm)
	off := 4
	for _, v := range f.Pos {
		binary.BigEndian.PutUint64(buf[off:], math.Float64bits(v))
		off += 8
	}
	for _, v := range f.Atmnrs {
		binary.BigEndian.PutUint32(buf[off:], v)
		off += 4
	}
	for _, v := range f.Box {
		binary.BigEndian.PutUint64(buf[off:], math.Float64bits(v))
		off += 8
	}
	return buf, nil
}

func (f *ForceInput) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("%w: truncated header", ErrMalformedPayload)
	}
	natm := binary.BigEndian.Uint32(data[0:4])
	n := int(natm)
	want := 4 + 8*3*n + 4*n + 8*9
	if len(data) != want {
		return fmt.Errorf("%w: %d bytes for %d atoms, want %d", ErrMalformedPayload, len(data), natm, want)
	}
	f.Natm = natm
	f.Pos = make([]float64, 3*n)
	f.Atmnrs = make([]uint32, n)
	f.Box = make([]float64, 9)
	off := 4
	for i := range f.Pos {
		f.Pos[i] = math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
		off += 8
	}
	for i := range f.Atmnrs {
		f.Atmnrs[i] = binary.BigEndian.Uint32(data[off:])
		off += 4
	}
	for i := range f.Box {
		f.Box[i] = math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
		off += 8
	}
	return nil
}

// MarshalBinary encodes the result as [f64 energy][u32 n][n f64 forces].
func (r *Result) MarshalBinary() ([]byte, error) {
	buf := make([]byte, 8+4+8*len(r.Forces))
	binary.BigEndian.PutUint64(buf[0:8], math.Float64bits(r.Energy))
	binary.BigEndian.PutUint32(buf[8:12], uint32(len(r.Forces)))
	off := 12
	for _, v := range r.Forces {
		binary.BigEndian.PutUint64(buf[off:], math.Float64bits(v))
		off += 8
	}
	return buf, nil
}

func (r *Result) UnmarshalBinary(data []byte) error {
	if len(data) < 12 {
		return fmt.Errorf("%w: truncated result", ErrMalformedPayload)
	}
	n := int(binary.BigEndian.Uint32(data[8:12]))
	if len(data) != 12+8*n {
		return fmt.Errorf("%w: %d bytes for %d forces", ErrMalformedPayload, len(data), n)
	}
	r.Energy = math.Float64frombits(binary.BigEndian.Uint64(data[0:8]))
	r.Forces = make([]float64, n)
	off := 12
	for i := range r.Forces {
		r.Forces[i] = math.Float64frombits(binary.BigEndian.Uint64(data[off:]))
		off += 8
	}
	return nil
}
