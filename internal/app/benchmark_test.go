package app

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"potbench/internal/domain"
	"potbench/pkg/potential"
)

func TestSpeedup(t *testing.T) {
	tests := []struct {
		name   string
		local  time.Duration
		remote time.Duration
		ratio  float64
		faster string
	}{
		{"remote faster", 2 * time.Second, 1 * time.Second, 2, "remote"},
		{"local faster", 1 * time.Second, 2 * time.Second, 2, "local"},
		{"equal", time.Second, time.Second, 1, "local"},
		{"zero remote", time.Second, 0, 1, "local"},
		{"zero local", 0, time.Second, 1, "local"},
		{"both zero", 0, 0, 1, "local"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ratio, faster := Speedup(tt.local, tt.remote)
			if math.Abs(ratio-tt.ratio) > 1e-12 || faster != tt.faster {
				t.Errorf("got %.2fx %s, want %.2fx %s", ratio, faster, tt.ratio, tt.faster)
			}
		})
	}
}

func newTestBenchmark(opts DispatchOptions) *Benchmark {
	logger := zap.NewNop()
	cfg := &domain.Config{Workers: 2}
	return NewBenchmark(logger, cfg,
		NewDispatcher(logger, opts),
		NewLocalExecutor(logger, potential.NewLennardJones()),
		nil, nil)
}

func TestRunEmptyWorkload(t *testing.T) {
	b := newTestBenchmark(fastOpts)
	pool := domain.Pool{{Host: "localhost", Port: 1}}
	if _, err := b.Run(context.Background(), pool, nil); !errors.Is(err, ErrEmptyWorkload) {
		t.Errorf("got %v, want ErrEmptyWorkload", err)
	}
}

func TestBenchmarkRunEndToEnd(t *testing.T) {
	// Both paths evaluate the same potential, so every remote result must
	// match its local counterpart to the bit.
	pool := domain.Pool{startPotServer(t, potential.NewLennardJones())}
	items := testItems(4)

	b := newTestBenchmark(fastOpts)
	report, err := b.Run(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.RunID == "" {
		t.Error("empty run ID")
	}
	if report.Items != len(items) {
		t.Errorf("items: got %d, want %d", report.Items, len(items))
	}
	if report.LocalFailures != 0 || report.RemoteFailures != 0 {
		t.Fatalf("failures: %d local, %d remote, want none", report.LocalFailures, report.RemoteFailures)
	}
	if report.Ratio < 1 {
		t.Errorf("ratio %v below 1, max/min convention broken", report.Ratio)
	}
	if report.Faster != "local" && report.Faster != "remote" {
		t.Errorf("faster: got %q", report.Faster)
	}
	if report.AllRemoteUnreachable() {
		t.Error("AllRemoteUnreachable true with a live endpoint")
	}

	for _, item := range items {
		l, r := report.Local[item.ID], report.Remote[item.ID]
		if math.Float64bits(l.Result.Energy) != math.Float64bits(r.Result.Energy) {
			t.Errorf("%s: local energy %v != remote energy %v", item.ID, l.Result.Energy, r.Result.Energy)
		}
		for i := range l.Result.Forces {
			if math.Float64bits(l.Result.Forces[i]) != math.Float64bits(r.Result.Forces[i]) {
				t.Errorf("%s: forces[%d] differ across paths", item.ID, i)
			}
		}
	}
}

func TestBenchmarkRunDegenerateSingleItem(t *testing.T) {
	pool := domain.Pool{startPotServer(t, potential.NewLennardJones())}

	b := newTestBenchmark(fastOpts)
	report, err := b.Run(context.Background(), pool, testItems(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Items != 1 || report.RemoteFailures != 0 {
		t.Errorf("report: %d items, %d remote failures", report.Items, report.RemoteFailures)
	}
}

func TestAllRemoteUnreachable(t *testing.T) {
	pool := domain.Pool{deadEndpoint(t)}
	items := testItems(3)

	b := newTestBenchmark(fastOpts)
	report, err := b.Run(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.LocalFailures != 0 {
		t.Errorf("local failures: %d, want 0", report.LocalFailures)
	}
	if report.RemoteFailures != len(items) {
		t.Errorf("remote failures: %d, want %d", report.RemoteFailures, len(items))
	}
	if !report.AllRemoteUnreachable() {
		t.Error("AllRemoteUnreachable false with every endpoint down")
	}
}

func TestSummary(t *testing.T) {
	report := &RunReport{
		RunID:          "test-run",
		Items:          2,
		LocalDuration:  2 * time.Second,
		RemoteDuration: time.Second,
		RemoteFailures: 1,
		Ratio:          2,
		Faster:         "remote",
		Local: map[string]domain.Outcome{
			"a": {WorkID: "a", Duration: time.Second, Result: &domain.CalculationResult{}},
			"b": {WorkID: "b", Duration: time.Second, Result: &domain.CalculationResult{}},
		},
		Remote: map[string]domain.Outcome{
			"a": {WorkID: "a", Endpoint: "localhost:5000", Duration: 500 * time.Millisecond,
				Result: &domain.CalculationResult{}},
			"b": {WorkID: "b", Endpoint: "localhost:5001", Duration: 100 * time.Millisecond,
				Err: &domain.RPCError{Endpoint: domain.Endpoint{Host: "localhost", Port: 5001}, Err: errors.New("boom")}},
		},
	}

	s := report.Summary()
	for _, want := range []string{
		"run test-run",
		"2.00x faster",
		"b [localhost:5001]",
		"boom",
	} {
		if !strings.Contains(s, want) {
			t.Errorf("summary missing %q:\n%s", want, s)
		}
	}
}
