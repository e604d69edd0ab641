package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"potbench/pkg/potential"
	"potbench/pkg/wire"
)

func main() {
	sleep := flag.Duration("sleep", 0, "Simulated extra work per calculation")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) != 2 {
		usage()
		os.Exit(2)
	}

	port, err := strconv.Atoi(args[0])
	if err != nil || port < 1 || port > 65535 {
		fmt.Fprintf(os.Stderr, "potserv: invalid port %q\n", args[0])
		os.Exit(2)
	}

	calc, err := potential.New(args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "potserv: %v\n", err)
		os.Exit(2)
	}
	calc = potential.WithSleep(calc, *sleep)

	logger := initLogger(*logLevel)
	defer logger.Sync()

	server, err := wire.Listen(fmt.Sprintf(":%d", port), calc.Calculate, logger)
	if err != nil {
		logger.Fatal("Failed to listen", zap.Int("port", port), zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Server running",
		zap.String("addr", server.Addr()),
		zap.String("potential", calc.Name()))

	if err := server.Serve(ctx); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
	logger.Info("Server stopped")
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: potserv [flags] <port> <potential>\n\n")
	fmt.Fprintf(os.Stderr, "Serves Potential.calculate for one named potential on one port.\nAvailable potentials: %v\n\nFlags:\n", potential.Available())
	flag.PrintDefaults()
}

func initLogger(level string) *zap.Logger {
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

	config.EncoderConfig.TimeKey = "t"
	config.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder

	logger, _ := config.Build()
	return logger
}
