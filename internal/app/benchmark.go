package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"

	"potbench/internal/domain"
)

// ErrEmptyWorkload is returned for a run with no work items.
var ErrEmptyWorkload = errors.New("empty workload")

// Benchmark orchestrates one run: local baseline, remote dispatch,
// aggregation and reporting. The two timed phases are strictly
// sequential so their wall-clock windows do not overlap.
type Benchmark struct {
	logger     *zap.Logger
	config     *domain.Config
	dispatcher *Dispatcher
	executor   *LocalExecutor
	timings    domain.TimingsWriter // optional
	chart      domain.ChartWriter   // optional
}

func NewBenchmark(logger *zap.Logger, config *domain.Config, dispatcher *Dispatcher, executor *LocalExecutor, timings domain.TimingsWriter, chart domain.ChartWriter) *Benchmark {
	return &Benchmark{
		logger:     logger,
		config:     config,
		dispatcher: dispatcher,
		executor:   executor,
		timings:    timings,
		chart:      chart,
	}
}

// RunReport aggregates both execution paths of one benchmark run.
type RunReport struct {
	RunID          string
	Items          int
	LocalDuration  time.Duration
	RemoteDuration time.Duration
	LocalFailures  int
	RemoteFailures int
	Ratio          float64
	Faster         string
	Local          map[string]domain.Outcome
	Remote         map[string]domain.Outcome
}

// Run executes both paths over the same items and aggregates the result.
func (b *Benchmark) Run(ctx context.Context, pool domain.Pool, items []domain.WorkItem) (*RunReport, error) {
	if len(items) == 0 {
		return nil, ErrEmptyWorkload
	}

	runID := uuid.NewString()
	b.logger.Info("benchmark run starting",
		zap.String("run_id", runID),
		zap.Int("items", len(items)),
		zap.Int("endpoints", len(pool)),
		zap.Int("workers", b.config.Workers))

	localStart := time.Now()
	local := b.executor.RunAll(ctx, items, b.config.Workers)
	localDuration := time.Since(localStart)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.logger.Info("local phase done", zap.Duration("elapsed", localDuration))

	remoteStart := time.Now()
	remote, err := b.dispatcher.DispatchAll(ctx, pool, items)
	if err != nil {
		return nil, err
	}
	remoteDuration := time.Since(remoteStart)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.logger.Info("remote phase done", zap.Duration("elapsed", remoteDuration))

	ratio, faster := Speedup(localDuration, remoteDuration)
	report := &RunReport{
		RunID:          runID,
		Items:          len(items),
		LocalDuration:  localDuration,
		RemoteDuration: remoteDuration,
		LocalFailures:  countFailures(local),
		RemoteFailures: countFailures(remote),
		Ratio:          ratio,
		Faster:         faster,
		Local:          local,
		Remote:         remote,
	}

	b.writeArtifacts(items, report)
	return report, nil
}

func (b *Benchmark) writeArtifacts(items []domain.WorkItem, report *RunReport) {
	if b.timings != nil && b.config.TimingsFile != "" {
		rows := make([]domain.TimingRow, 0, len(items))
		for _, item := range items {
			rows = append(rows, domain.TimingRow{
				WorkID: item.ID,
				Local:  report.Local[item.ID].Duration,
				Remote: report.Remote[item.ID].Duration,
			})
		}
		if err := b.timings.WriteTimings(b.config.TimingsFile, rows); err != nil {
			b.logger.Error("failed to write timings", zap.Error(err))
		} else {
			b.logger.Info("wrote timings", zap.String("file", b.config.TimingsFile))
		}
	}

	if b.chart != nil && b.config.ChartFile != "" {
		err := b.chart.WriteChart(b.config.ChartFile,
			report.LocalDuration.Seconds(), report.RemoteDuration.Seconds())
		if err != nil {
			b.logger.Error("failed to write chart", zap.Error(err))
		} else {
			b.logger.Info("wrote chart", zap.String("file", b.config.ChartFile))
		}
	}
}

// Speedup returns the max/min ratio of the two durations and which path
// was faster. Equal durations count as a 1.0x "local" result, and a zero
// duration on either side degenerates to the same.
func Speedup(local, remote time.Duration) (float64, string) {
	l, r := local.Seconds(), remote.Seconds()
	if l <= 0 || r <= 0 {
		return 1, "local"
	}
	if r < l {
		return l / r, "remote"
	}
	return r / l, "local"
}

// AllRemoteUnreachable reports whether every remote outcome failed to
// even connect, i.e. no endpoint in the pool was reachable.
func (r *RunReport) AllRemoteUnreachable() bool {
	if len(r.Remote) == 0 {
		return false
	}
	for _, o := range r.Remote {
		var connectErr *domain.ConnectError
		if !errors.As(o.Err, &connectErr) {
			return false
		}
	}
	return true
}

func countFailures(outcomes map[string]domain.Outcome) int {
	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	return failed
}

// Summary renders the human-readable report: per-path durations, the
// speedup direction, failure counts and per-item error lines.
func (r *RunReport) Summary() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- Summary (run %s) ---\n", r.RunID)
	fmt.Fprintf(&sb, "Items:              %d\n", r.Items)
	fmt.Fprintf(&sb, "Parallel local:     %.4fs (%d failed, mean per item %.4fs)\n",
		r.LocalDuration.Seconds(), r.LocalFailures, meanItemSeconds(r.Local))
	fmt.Fprintf(&sb, "Parallel RPC pool:  %.4fs (%d failed, mean per item %.4fs)\n",
		r.RemoteDuration.Seconds(), r.RemoteFailures, meanItemSeconds(r.Remote))
	fmt.Fprintf(&sb, "RPC pool was %.2fx %s.\n", r.Ratio, directionLabel(r.Faster))

	if r.LocalFailures+r.RemoteFailures > 0 {
		fmt.Fprintf(&sb, "Failures (%d local, %d remote):\n", r.LocalFailures, r.RemoteFailures)
		for _, line := range failureLines(r.Local, "local") {
			sb.WriteString(line)
		}
		for _, line := range failureLines(r.Remote, "remote") {
			sb.WriteString(line)
		}
	}
	return sb.String()
}

func directionLabel(faster string) string {
	if faster == "remote" {
		return "faster"
	}
	return "slower"
}

func meanItemSeconds(outcomes map[string]domain.Outcome) float64 {
	seconds := make([]float64, 0, len(outcomes))
	for _, o := range outcomes {
		if o.OK() {
			seconds = append(seconds, o.Duration.Seconds())
		}
	}
	if len(seconds) == 0 {
		return 0
	}
	return stat.Mean(seconds, nil)
}

func failureLines(outcomes map[string]domain.Outcome, path string) []string {
	ids := make([]string, 0, len(outcomes))
	for id := range outcomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var lines []string
	for _, id := range ids {
		o := outcomes[id]
		if o.OK() {
			continue
		}
		where := path
		if o.Endpoint != "" {
			where = o.Endpoint
		}
		lines = append(lines, fmt.Sprintf("  %s [%s]: %v\n", id, where, o.Err))
	}
	return lines
}
