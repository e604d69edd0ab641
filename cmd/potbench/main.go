package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"potbench/internal/app"
	"potbench/internal/domain"
	"potbench/internal/infrastructure"
	"potbench/pkg/potential"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	workers := flag.Int("workers", 0, "Local worker count")
	attempts := flag.Int("connect-attempts", 0, "Connection attempts per endpoint")
	retryDelay := flag.Duration("connect-retry-delay", 0, "Delay between connection attempts")
	timeout := flag.Duration("timeout", 0, "Per-call deadline (0 = none)")
	sleep := flag.Duration("sleep", 0, "Simulated per-call workload for the local path")
	supercell := flag.Int("supercell", 0, "Supercell repeat for bulk structures")
	structures := flag.String("structures", "", "XYZ workload file (replaces the built-in workload)")
	chartFile := flag.String("chart", "", "Write comparison chart PNG to this file")
	timingsFile := flag.String("timings", "", "Write raw per-item timings to this file")
	logLevel := flag.String("log-level", "", "Log level")
	flag.Usage = usage
	flag.Parse()

	logger := initLogger("info")
	defer logger.Sync()

	configReader := infrastructure.NewYAMLConfigReader(logger)
	config, err := configReader.ReadConfig(*configPath)
	if err != nil {
		logger.Fatal("Failed to read config", zap.Error(err))
	}

	applyFlagOverrides(config, flagOverrides{
		workers:     *workers,
		attempts:    *attempts,
		retryDelay:  *retryDelay,
		timeout:     *timeout,
		sleep:       *sleep,
		supercell:   *supercell,
		structures:  *structures,
		chartFile:   *chartFile,
		timingsFile: *timingsFile,
		logLevel:    *logLevel,
	})

	logger = initLogger(config.LogLevel, config.LogFile)
	defer logger.Sync()

	pool, err := domain.ParsePool(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "potbench: %v\n\n", err)
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	items, err := buildWorkload(logger, config)
	if err != nil {
		logger.Fatal("Failed to build workload", zap.Error(err))
	}

	logger.Info("Starting potential benchmark",
		zap.Int("items", len(items)),
		zap.Int("endpoints", len(pool)),
		zap.Int("workers", config.Workers))

	calc := potential.WithSleep(potential.NewLennardJones(), config.Sleep.Std())
	dispatcher := app.NewDispatcher(logger, app.DispatchOptions{
		ConnectAttempts:   config.ConnectAttempts,
		ConnectRetryDelay: config.ConnectRetryDelay.Std(),
		CallTimeout:       config.CallTimeout.Std(),
	})
	executor := app.NewLocalExecutor(logger, calc)
	bench := app.NewBenchmark(logger, config, dispatcher, executor,
		infrastructure.NewTXTReportWriter(logger),
		infrastructure.NewPNGChartWriter(logger))

	report, err := bench.Run(ctx, pool, items)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Benchmark cancelled")
			os.Exit(1)
		}
		logger.Fatal("Benchmark failed", zap.Error(err))
	}

	fmt.Print(report.Summary())

	if report.AllRemoteUnreachable() {
		logger.Error("No endpoint was reachable after retries")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: potbench [flags] host:port [host:port ...]\n\n")
	fmt.Fprintf(os.Stderr, "Compares local parallel potential evaluation against a pool of\nremote compute servers (start them with potserv).\n\nFlags:\n")
	flag.PrintDefaults()
}

type flagOverrides struct {
	workers     int
	attempts    int
	retryDelay  time.Duration
	timeout     time.Duration
	sleep       time.Duration
	supercell   int
	structures  string
	chartFile   string
	timingsFile string
	logLevel    string
}

func applyFlagOverrides(config *domain.Config, o flagOverrides) {
	if o.workers > 0 {
		config.Workers = o.workers
	}
	if o.attempts > 0 {
		config.ConnectAttempts = o.attempts
	}
	if o.retryDelay > 0 {
		config.ConnectRetryDelay = domain.Duration(o.retryDelay)
	}
	if o.timeout > 0 {
		config.CallTimeout = domain.Duration(o.timeout)
	}
	if o.sleep > 0 {
		config.Sleep = domain.Duration(o.sleep)
	}
	if o.supercell > 0 {
		config.Supercell = o.supercell
	}
	if o.structures != "" {
		config.StructuresFile = o.structures
	}
	if o.chartFile != "" {
		config.ChartFile = o.chartFile
	}
	if o.timingsFile != "" {
		config.TimingsFile = o.timingsFile
	}
	if o.logLevel != "" {
		config.LogLevel = o.logLevel
	}
}

func buildWorkload(logger *zap.Logger, config *domain.Config) ([]domain.WorkItem, error) {
	if config.StructuresFile != "" {
		reader := infrastructure.NewXYZStructureReader(logger)
		return reader.ReadStructures(config.StructuresFile)
	}
	builder := app.NewWorkloadBuilder(logger, config.Supercell)
	return builder.Build()
}

// initLogger initializes the logger with the specified level and log file name.
func initLogger(level string, logfileName ...string) *zap.Logger {
	config := zap.NewProductionConfig()

	switch level {
	case "debug":
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		config.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		config.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	outputPaths := []string{"stderr"}
	for _, item := range logfileName {
		if item != "" {
			outputPaths = append(outputPaths, item)
		}
	}

	config.OutputPaths = outputPaths
	config.ErrorOutputPaths = outputPaths
	config.EncoderConfig.TimeKey = "t"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	config.DisableCaller = false

	logger, _ := config.Build()
	return logger
}
