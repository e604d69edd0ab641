// Package potential provides force/energy calculators for atomic
// configurations, shared by the local benchmark baseline and the
// potserv reference server.
package potential

import (
	"context"
	"fmt"
	"sort"
	"time"

	"potbench/pkg/wire"
)

// Calculator evaluates the potential energy and forces of one
// configuration. Implementations must be safe for concurrent use.
type Calculator interface {
	Name() string
	Calculate(ctx context.Context, in *wire.ForceInput) (*wire.Result, error)
}

var registry = map[string]func() Calculator{
	"LJ": func() Calculator { return NewLennardJones() },
}

// New returns the calculator registered under name.
func New(name string) (Calculator, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("potential: unknown potential %q (available: %v)", name, Available())
	}
	return factory(), nil
}

// Available lists the registered potential names, sorted.
func Available() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type sleepy struct {
	inner Calculator
	delay time.Duration
}

// WithSleep wraps a calculator with a fixed per-call sleep, simulating a
// heavier potential so local and remote paths can be compared fairly.
func WithSleep(c Calculator, delay time.Duration) Calculator {
	if delay <= 0 {
		return c
	}
	return &sleepy{inner: c, delay: delay}
}

func (s *sleepy) Name() string { return s.inner.Name() }

func (s *sleepy) Calculate(ctx context.Context, in *wire.ForceInput) (*wire.Result, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	return s.inner.Calculate(ctx, in)
}
