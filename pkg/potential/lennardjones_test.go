package potential

import (
	"context"
	"math"
	"strings"
	"testing"
	"time"

	"potbench/pkg/wire"
)

func pairInput(r float64) *wire.ForceInput {
	return &wire.ForceInput{
		Natm:   2,
		Pos:    []float64{0, 0, 0, r, 0, 0},
		Atmnrs: []uint32{29, 1},
		Box:    []float64{90, 0, 0, 0, 90, 0, 0, 0, 90},
	}
}

func TestLennardJonesPairSymmetry(t *testing.T) {
	lj := NewLennardJones()
	res, err := lj.Calculate(context.Background(), pairInput(1.5))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}

	if res.Energy >= 0 {
		t.Errorf("energy %v, want attractive (negative) at r=1.5", res.Energy)
	}
	// Forces along x are equal and opposite; atom 0 is pulled toward atom 1.
	if res.Forces[0] <= 0 {
		t.Errorf("force on atom 0 is %v, want positive x", res.Forces[0])
	}
	if res.Forces[0] != -res.Forces[3] {
		t.Errorf("forces not equal and opposite: %v vs %v", res.Forces[0], res.Forces[3])
	}
	for _, i := range []int{1, 2, 4, 5} {
		if res.Forces[i] != 0 {
			t.Errorf("off-axis force component %d is %v, want 0", i, res.Forces[i])
		}
	}
}

func TestLennardJonesBeyondCutoff(t *testing.T) {
	lj := NewLennardJones()
	res, err := lj.Calculate(context.Background(), pairInput(20))
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Energy != 0 {
		t.Errorf("energy %v beyond cutoff, want 0", res.Energy)
	}
	for i, f := range res.Forces {
		if f != 0 {
			t.Errorf("forces[%d] = %v beyond cutoff, want 0", i, f)
		}
	}
}

func TestLennardJonesMinimumImage(t *testing.T) {
	lj := NewLennardJones()

	// Atoms 1.0 apart through the periodic boundary of a 10 box.
	wrapped := &wire.ForceInput{
		Natm:   2,
		Pos:    []float64{0.5, 0, 0, 9.5, 0, 0},
		Atmnrs: []uint32{1, 1},
		Box:    []float64{10, 0, 0, 0, 10, 0, 0, 0, 10},
	}
	direct := &wire.ForceInput{
		Natm:   2,
		Pos:    []float64{0, 0, 0, 1.0, 0, 0},
		Atmnrs: []uint32{1, 1},
		Box:    []float64{10, 0, 0, 0, 10, 0, 0, 0, 10},
	}

	wres, err := lj.Calculate(context.Background(), wrapped)
	if err != nil {
		t.Fatalf("Calculate wrapped: %v", err)
	}
	dres, err := lj.Calculate(context.Background(), direct)
	if err != nil {
		t.Fatalf("Calculate direct: %v", err)
	}
	if math.Float64bits(wres.Energy) != math.Float64bits(dres.Energy) {
		t.Errorf("wrapped energy %v != direct energy %v", wres.Energy, dres.Energy)
	}
}

func TestLennardJonesSingleAtom(t *testing.T) {
	lj := NewLennardJones()
	res, err := lj.Calculate(context.Background(), &wire.ForceInput{
		Natm:   1,
		Pos:    []float64{1, 2, 3},
		Atmnrs: []uint32{29},
		Box:    []float64{90, 0, 0, 0, 90, 0, 0, 0, 90},
	})
	if err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if res.Energy != 0 || res.Forces[0] != 0 || res.Forces[1] != 0 || res.Forces[2] != 0 {
		t.Errorf("single atom: got energy %v forces %v, want zeros", res.Energy, res.Forces)
	}
}

func TestLennardJonesRejectsInvalidInput(t *testing.T) {
	lj := NewLennardJones()
	in := pairInput(1.5)
	in.Pos = in.Pos[:3]
	if _, err := lj.Calculate(context.Background(), in); err == nil {
		t.Error("Calculate accepted invalid input")
	}
}

func TestRegistry(t *testing.T) {
	calc, err := New("LJ")
	if err != nil {
		t.Fatalf("New(LJ): %v", err)
	}
	if calc.Name() != "LJ" {
		t.Errorf("name: got %q, want LJ", calc.Name())
	}

	_, err = New("CuH2")
	if err == nil {
		t.Fatal("New(CuH2) succeeded, want unknown potential error")
	}
	if !strings.Contains(err.Error(), "LJ") {
		t.Errorf("error %q does not list available potentials", err)
	}
}

func TestWithSleep(t *testing.T) {
	calc := WithSleep(NewLennardJones(), 50*time.Millisecond)

	start := time.Now()
	if _, err := calc.Calculate(context.Background(), pairInput(1.5)); err != nil {
		t.Fatalf("Calculate: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("returned after %v, want at least the configured sleep", elapsed)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := calc.Calculate(ctx, pairInput(1.5)); err == nil {
		t.Error("Calculate ignored context cancellation during sleep")
	}

	if WithSleep(NewLennardJones(), 0).Name() != "LJ" {
		t.Error("zero sleep should return the inner calculator")
	}
}
