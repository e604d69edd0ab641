package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"potbench/internal/domain"
	"potbench/pkg/wire"
)

// ErrEmptyPool is returned when dispatch is attempted without endpoints.
var ErrEmptyPool = errors.New("empty endpoint pool")

// DispatchOptions tunes connection retry and the optional per-call
// deadline. Zero values fall back to the reference behavior: 10 connect
// attempts, 500ms apart, no call timeout.
type DispatchOptions struct {
	ConnectAttempts   int
	ConnectRetryDelay time.Duration
	CallTimeout       time.Duration
}

func (o *DispatchOptions) setDefaults() {
	if o.ConnectAttempts == 0 {
		o.ConnectAttempts = 10
	}
	if o.ConnectRetryDelay == 0 {
		o.ConnectRetryDelay = 500 * time.Millisecond
	}
}

// Dispatcher routes work items across an endpoint pool by round-robin and
// supervises one concurrent call per item.
type Dispatcher struct {
	logger *zap.Logger
	opts   DispatchOptions
}

func NewDispatcher(logger *zap.Logger, opts DispatchOptions) *Dispatcher {
	opts.setDefaults()
	return &Dispatcher{logger: logger, opts: opts}
}

// DispatchAll sends every item to pool[i mod len(pool)], one goroutine and
// one connection per item, and returns after every task has reached a
// terminal state. Per-task failures become error outcomes and never abort
// sibling tasks. The returned map holds exactly one outcome per item.
func (d *Dispatcher) DispatchAll(ctx context.Context, pool domain.Pool, items []domain.WorkItem) (map[string]domain.Outcome, error) {
	if len(pool) == 0 {
		return nil, ErrEmptyPool
	}

	outcomeChan := make(chan domain.Outcome, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		endpoint := pool.Pick(i)
		wg.Add(1)
		go func(item domain.WorkItem, endpoint domain.Endpoint) {
			defer wg.Done()
			outcomeChan <- d.evaluate(ctx, endpoint, item)
		}(item, endpoint)
	}

	wg.Wait()
	close(outcomeChan)

	outcomes := make(map[string]domain.Outcome, len(items))
	for o := range outcomeChan {
		if o.Err != nil {
			d.logger.Warn("work item failed",
				zap.String("id", o.WorkID),
				zap.String("endpoint", o.Endpoint),
				zap.Error(o.Err))
		}
		outcomes[o.WorkID] = o
	}
	return outcomes, nil
}

func (d *Dispatcher) evaluate(ctx context.Context, endpoint domain.Endpoint, item domain.WorkItem) (out domain.Outcome) {
	start := time.Now()
	out = domain.Outcome{WorkID: item.ID, Endpoint: endpoint.Addr()}
	defer func() {
		out.Duration = time.Since(start)
	}()

	in, err := domain.EncodeStructure(item.Structure)
	if err != nil {
		out.Err = err
		return out
	}

	callCtx := ctx
	if d.opts.CallTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.opts.CallTimeout)
		defer cancel()
	}

	conn, err := wire.DialRetry(callCtx, endpoint.Addr(), d.opts.ConnectAttempts, d.opts.ConnectRetryDelay)
	if err != nil {
		if d.timedOut(ctx, callCtx) {
			out.Err = &domain.TimeoutError{Endpoint: endpoint, Timeout: d.opts.CallTimeout}
		} else {
			out.Err = &domain.ConnectError{Endpoint: endpoint, Attempts: d.opts.ConnectAttempts, Err: err}
		}
		return out
	}
	defer conn.Close()

	res, err := conn.Calculate(callCtx, in)
	if err != nil {
		if d.timedOut(ctx, callCtx) {
			out.Err = &domain.TimeoutError{Endpoint: endpoint, Timeout: d.opts.CallTimeout}
		} else {
			out.Err = &domain.RPCError{Endpoint: endpoint, Err: err}
		}
		return out
	}

	out.Result = &domain.CalculationResult{Energy: res.Energy, Forces: res.Forces}
	d.logger.Debug("remote result",
		zap.String("id", item.ID),
		zap.String("endpoint", endpoint.Addr()),
		zap.Float64("energy", res.Energy))
	return out
}

// timedOut distinguishes the per-call deadline from an outer cancellation.
func (d *Dispatcher) timedOut(parent, call context.Context) bool {
	return d.opts.CallTimeout > 0 &&
		errors.Is(call.Err(), context.DeadlineExceeded) &&
		parent.Err() == nil
}
