package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/ALEYI17/InfraSight_gputrace/internal/chrometrace"
	"github.com/ALEYI17/InfraSight_gputrace/internal/collector"
	"github.com/ALEYI17/InfraSight_gputrace/internal/collector/aggregator"
	"github.com/ALEYI17/InfraSight_gputrace/internal/collector/timeserie"
	"github.com/ALEYI17/InfraSight_gputrace/internal/compute"
	"github.com/ALEYI17/InfraSight_gputrace/internal/config"
	"github.com/ALEYI17/InfraSight_gputrace/internal/grpc"
	"github.com/ALEYI17/InfraSight_gputrace/internal/loaders"
	"github.com/ALEYI17/InfraSight_gputrace/internal/metrics"
	"github.com/ALEYI17/InfraSight_gputrace/internal/sink"
	"github.com/ALEYI17/InfraSight_gputrace/internal/workload"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/logutil"
	"github.com/ALEYI17/InfraSight_gputrace/pkg/types"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logutil.InitLogger()

	logger := logutil.GetLogger()

	go func() {
		sigch := make(chan os.Signal, 1)
		signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigch
		logutil.GetLogger().Info("Received signal, shutting down", zap.String("signal", sig.String()))
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Invalid configuration", zap.Error(err))
	}
	if err := logutil.Configure(cfg.LogLevel, cfg.LogDev); err != nil {
		logger.Warn("Keeping default logger", zap.Error(err))
	}
	logger = logutil.GetLogger()
	defer logger.Sync()

	for _, program := range cfg.IdleProbes() {
		logger.Warn("Probe cannot observe the compute backend, its counts will stay at zero",
			zap.String("program", program),
			zap.String("backend", cfg.Backend),
			zap.String("library", cfg.ProbeLibrary))
	}

	var probes []types.Probe_loaders
	for _, program := range cfg.EnableProbes {
		probe, err := loaders.NewEbpfProbe(program, cfg.ProbeLibrary)
		if err != nil {
			logger.Error("error to load probe", zap.String("program", program), zap.Error(err))
			continue
		}
		probes = append(probes, probe)
		logger.Info("Loaded probe", zap.String("Loader", program))
	}

	dev, err := compute.NewDevice(cfg.Backend)
	if err != nil {
		logger.Fatal("Error creating the compute device", zap.String("backend", cfg.Backend), zap.Error(err))
	}

	m := metrics.NewMetrics()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Error("Metrics server failed", zap.Error(err))
			}
		}()
	}

	tracer := chrometrace.New()
	s := sink.New(
		sink.WithObservers(tracer),
		sink.WithCollectors(
			timeserie.NewTimeSeriesCollector(cfg.FlushInterval),
			aggregator.NewGPUAggregator(cfg.FlushInterval)))

	// Collectors flush one last time when pipelineCtx is cancelled, after
	// the workload finished.
	pipelineCtx, stopPipeline := context.WithCancel(ctx)
	batches := s.Run(pipelineCtx, cfg.Nodename)

	exported := make(chan error, 1)
	if cfg.ServerAdress != "" {
		client, err := grpc.NewGrpcClient(cfg.ServerAdress, cfg.Serverport)
		if err != nil {
			logger.Fatal("Error creating the client", zap.Error(err))
		}
		defer client.Close()
		logger.Info("gRPC Client created successfully")

		go func() {
			err := client.Run(ctx, batches)
			for range batches {
			}
			exported <- err
		}()
	} else {
		go func() {
			n := collector.LogBatches(batches)
			logger.Debug("Batch stream drained", zap.Int("batches", n))
			exported <- nil
		}()
	}

	res, runErr := workload.Run(dev, s, workload.Options{
		ContextLabel: cfg.ContextLabel,
		SpanName:     cfg.SpanName,
		BufferLen:    cfg.BufferLen,
		Scalar:       cfg.Scalar,
		SampleIndex:  cfg.SampleIndex,
		Profiling:    cfg.Profiling,
		Metrics:      m,
	})

	stopPipeline()
	if err := <-exported; err != nil {
		logger.Error("Error running client", zap.Error(err))
	}

	if cfg.ChromeTrace != "" {
		if err := tracer.WriteFile(cfg.ChromeTrace); err != nil {
			logger.Error("Writing chrome trace", zap.String("path", cfg.ChromeTrace), zap.Error(err))
		} else {
			logger.Info("Chrome trace written", zap.String("path", cfg.ChromeTrace), zap.Int("spans", tracer.Len()))
		}
	}

	var closeErr error
	for _, p := range probes {
		counts, err := p.Counts()
		if err != nil {
			logger.Warn("Reading probe counts", zap.String("probe", p.Name()), zap.Error(err))
		}
		for sym, n := range counts {
			logger.Info("Driver calls", zap.String("probe", p.Name()), zap.String("function", sym), zap.Uint64("calls", n))
		}
		closeErr = multierr.Append(closeErr, p.Close())
	}
	closeErr = multierr.Append(closeErr, s.Close())
	closeErr = multierr.Append(closeErr, dev.Close())
	if closeErr != nil {
		logger.Warn("Errors during shutdown", zap.Error(closeErr))
	}

	if runErr != nil {
		stage := "unknown"
		var stageErr *types.StageError
		if errors.As(runErr, &stageErr) {
			stage = stageErr.Stage
		}
		logger.Fatal("Workload failed", zap.String("stage", stage), zap.Error(runErr))
	}

	logger.Info("Workload finished",
		zap.String("device", res.Device.Name),
		zap.Int64("calibration_end_ns", res.AnchorNs),
		zap.Int64("start_ns", res.Timestamps.StartNs),
		zap.Int64("end_ns", res.Timestamps.EndNs),
		zap.Int("index", res.SampleIndex),
		zap.Float32("value", res.Sample))
}
