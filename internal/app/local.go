package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"potbench/internal/domain"
	"potbench/pkg/potential"
)

// LocalExecutor runs the same per-item computation on a fixed-size local
// worker pool, as the comparison baseline for the remote path.
type LocalExecutor struct {
	logger *zap.Logger
	calc   potential.Calculator
}

func NewLocalExecutor(logger *zap.Logger, calc potential.Calculator) *LocalExecutor {
	return &LocalExecutor{logger: logger, calc: calc}
}

// RunAll evaluates every item on workers goroutines and returns one
// outcome per item after all of them finished. A failure (or panic)
// inside one evaluation degrades only that item's outcome.
func (e *LocalExecutor) RunAll(ctx context.Context, items []domain.WorkItem, workers int) map[string]domain.Outcome {
	if workers < 1 {
		workers = 1
	}

	taskChan := make(chan domain.WorkItem, workers*2)
	resultChan := make(chan domain.Outcome, len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		e.logger.Debug("starting worker", zap.Int("id", i))
		go e.worker(ctx, i, taskChan, resultChan, &wg)
	}

	go func() {
		for _, item := range items {
			taskChan <- item
		}
		close(taskChan)
	}()

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	outcomes := make(map[string]domain.Outcome, len(items))
	for o := range resultChan {
		if o.Err != nil {
			e.logger.Warn("local evaluation failed",
				zap.String("id", o.WorkID),
				zap.Error(o.Err))
		}
		outcomes[o.WorkID] = o
	}
	return outcomes
}

func (e *LocalExecutor) worker(ctx context.Context, id int, tasks <-chan domain.WorkItem, results chan<- domain.Outcome, wg *sync.WaitGroup) {
	defer wg.Done()

	for task := range tasks {
		e.logger.Debug("evaluating structure",
			zap.Int("worker", id),
			zap.String("id", task.ID))
		results <- e.evaluate(ctx, task)
	}
}

func (e *LocalExecutor) evaluate(ctx context.Context, item domain.WorkItem) (out domain.Outcome) {
	start := time.Now()
	out = domain.Outcome{WorkID: item.ID}
	defer func() {
		if r := recover(); r != nil {
			out.Result = nil
			out.Err = &domain.ComputeError{Err: fmt.Errorf("panic: %v", r)}
		}
		out.Duration = time.Since(start)
	}()

	in, err := domain.EncodeStructure(item.Structure)
	if err != nil {
		out.Err = err
		return out
	}

	res, err := e.calc.Calculate(ctx, in)
	if err != nil {
		out.Err = &domain.ComputeError{Err: err}
		return out
	}

	out.Result = &domain.CalculationResult{Energy: res.Energy, Forces: res.Forces}
	return out
}
