package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"

	"potbench/internal/domain"
	"potbench/pkg/potential"
	"potbench/pkg/wire"
)

// fastOpts keeps connection failures cheap in tests.
var fastOpts = DispatchOptions{ConnectAttempts: 1, ConnectRetryDelay: time.Millisecond}

func startPotServer(t *testing.T, calc potential.Calculator) domain.Endpoint {
	t.Helper()
	server, err := wire.Listen("127.0.0.1:0", calc.Calculate, zap.NewNop())
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go server.Serve(ctx)

	ep, err := domain.ParseEndpoint(server.Addr())
	if err != nil {
		t.Fatalf("ParseEndpoint(%q): %v", server.Addr(), err)
	}
	return ep
}

// deadEndpoint returns an address that refuses connections.
func deadEndpoint(t *testing.T) domain.Endpoint {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	ep, err := domain.ParseEndpoint(addr)
	if err != nil {
		t.Fatalf("ParseEndpoint(%q): %v", addr, err)
	}
	return ep
}

func testItems(n int) []domain.WorkItem {
	items := make([]domain.WorkItem, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, domain.WorkItem{
			ID: fmt.Sprintf("item-%d", i),
			Structure: domain.AtomicConfiguration{
				AtomCount:     2,
				Positions:     []float64{0, 0, 0, 1.5 + float64(i)*0.1, 0, 0},
				AtomicNumbers: []uint32{29, 1},
				Cell:          []float64{90, 0, 0, 0, 90, 0, 0, 0, 90},
			},
		})
	}
	return items
}

// constCalc answers every request with a fixed energy, used to observe
// which endpoint served an item.
type constCalc struct{ energy float64 }

func (c constCalc) Name() string { return "const" }

func (c constCalc) Calculate(_ context.Context, in *wire.ForceInput) (*wire.Result, error) {
	return &wire.Result{Energy: c.energy, Forces: make([]float64, len(in.Pos))}, nil
}

func TestDispatchAllCompleteness(t *testing.T) {
	pool := domain.Pool{
		startPotServer(t, potential.NewLennardJones()),
		startPotServer(t, potential.NewLennardJones()),
		startPotServer(t, potential.NewLennardJones()),
	}
	items := testItems(10)

	d := NewDispatcher(zap.NewNop(), fastOpts)
	outcomes, err := d.DispatchAll(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}

	if len(outcomes) != len(items) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(items))
	}
	for _, item := range items {
		o, ok := outcomes[item.ID]
		if !ok {
			t.Errorf("no outcome for %s", item.ID)
			continue
		}
		if !o.OK() {
			t.Errorf("%s failed: %v", item.ID, o.Err)
		}
		if o.Result == nil || len(o.Result.Forces) != 6 {
			t.Errorf("%s: malformed result %+v", item.ID, o.Result)
		}
	}
}

func TestDispatchAllRecordsDurations(t *testing.T) {
	pool := domain.Pool{startPotServer(t, potential.NewLennardJones())}
	items := testItems(2)

	d := NewDispatcher(zap.NewNop(), fastOpts)
	outcomes, err := d.DispatchAll(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}

	for _, item := range items {
		if got := outcomes[item.ID].Duration; got <= 0 {
			t.Errorf("%s: remote outcome duration = %v, never recorded", item.ID, got)
		}
	}

	// Failed items get their duration recorded too.
	dead := NewDispatcher(zap.NewNop(), fastOpts)
	failed, err := dead.DispatchAll(context.Background(), domain.Pool{deadEndpoint(t)}, testItems(1))
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}
	for id, o := range failed {
		if o.Duration <= 0 {
			t.Errorf("%s: failed outcome duration = %v, never recorded", id, o.Duration)
		}
	}
}

func TestDispatchAllEmptyPool(t *testing.T) {
	d := NewDispatcher(zap.NewNop(), fastOpts)
	_, err := d.DispatchAll(context.Background(), nil, testItems(1))
	if !errors.Is(err, ErrEmptyPool) {
		t.Errorf("got %v, want ErrEmptyPool", err)
	}
}

func TestDispatchAllDeterministicAssignment(t *testing.T) {
	// Two servers that are distinguishable by the energy they return:
	// item i must land on pool[i mod 2].
	pool := domain.Pool{
		startPotServer(t, constCalc{energy: 1}),
		startPotServer(t, constCalc{energy: 2}),
	}
	items := testItems(7)

	d := NewDispatcher(zap.NewNop(), fastOpts)
	outcomes, err := d.DispatchAll(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}

	for i, item := range items {
		o := outcomes[item.ID]
		if !o.OK() {
			t.Fatalf("%s failed: %v", item.ID, o.Err)
		}
		want := float64(i%2) + 1
		if o.Result.Energy != want {
			t.Errorf("item %d served with energy %v, want %v", i, o.Result.Energy, want)
		}
		if o.Endpoint != pool.Pick(i).Addr() {
			t.Errorf("item %d recorded endpoint %s, want %s", i, o.Endpoint, pool.Pick(i).Addr())
		}
	}
}

func TestDispatchAllFailureIsolation(t *testing.T) {
	live := startPotServer(t, potential.NewLennardJones())
	dead := deadEndpoint(t)
	pool := domain.Pool{live, dead}
	items := testItems(6)

	d := NewDispatcher(zap.NewNop(), fastOpts)
	outcomes, err := d.DispatchAll(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}
	if len(outcomes) != len(items) {
		t.Fatalf("got %d outcomes, want %d", len(outcomes), len(items))
	}

	for i, item := range items {
		o := outcomes[item.ID]
		if i%2 == 0 {
			if !o.OK() {
				t.Errorf("item %d routed to the live endpoint failed: %v", i, o.Err)
			}
			continue
		}
		var connectErr *domain.ConnectError
		if !errors.As(o.Err, &connectErr) {
			t.Errorf("item %d: got %v, want ConnectError", i, o.Err)
			continue
		}
		if connectErr.Endpoint != dead {
			t.Errorf("item %d: ConnectError names %+v, want %+v", i, connectErr.Endpoint, dead)
		}
	}
}

func TestDispatchAllEncodingFailureIsolated(t *testing.T) {
	pool := domain.Pool{startPotServer(t, potential.NewLennardJones())}
	items := testItems(3)
	items[1].Structure.Positions = items[1].Structure.Positions[:3] // violate the invariant

	d := NewDispatcher(zap.NewNop(), fastOpts)
	outcomes, err := d.DispatchAll(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}

	var encodingErr *domain.EncodingError
	if !errors.As(outcomes[items[1].ID].Err, &encodingErr) {
		t.Errorf("bad item: got %v, want EncodingError", outcomes[items[1].ID].Err)
	}
	for _, id := range []string{items[0].ID, items[2].ID} {
		if !outcomes[id].OK() {
			t.Errorf("%s failed alongside the bad item: %v", id, outcomes[id].Err)
		}
	}
}

func TestDispatchAllTimeout(t *testing.T) {
	slow := startPotServer(t, potential.WithSleep(potential.NewLennardJones(), 300*time.Millisecond))
	pool := domain.Pool{slow}
	items := testItems(2)

	opts := fastOpts
	opts.CallTimeout = 30 * time.Millisecond
	d := NewDispatcher(zap.NewNop(), opts)

	start := time.Now()
	outcomes, err := d.DispatchAll(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 200*time.Millisecond {
		t.Errorf("barrier released after %v, timeout did not bound the wait", elapsed)
	}

	for _, item := range items {
		var timeoutErr *domain.TimeoutError
		if !errors.As(outcomes[item.ID].Err, &timeoutErr) {
			t.Errorf("%s: got %v, want TimeoutError", item.ID, outcomes[item.ID].Err)
		}
	}
}

func TestDispatchAllBarrier(t *testing.T) {
	// Every task sleeps; the call must not return before all of them did.
	delay := 80 * time.Millisecond
	pool := domain.Pool{startPotServer(t, potential.WithSleep(potential.NewLennardJones(), delay))}
	items := testItems(4)

	d := NewDispatcher(zap.NewNop(), fastOpts)
	start := time.Now()
	outcomes, err := d.DispatchAll(context.Background(), pool, items)
	if err != nil {
		t.Fatalf("DispatchAll: %v", err)
	}
	if elapsed := time.Since(start); elapsed < delay {
		t.Errorf("returned after %v, before any task could finish", elapsed)
	}
	for _, item := range items {
		if o, ok := outcomes[item.ID]; !ok || !o.OK() {
			t.Errorf("%s: missing or failed outcome after barrier", item.ID)
		}
	}
}
