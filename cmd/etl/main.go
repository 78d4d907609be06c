package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/county-rates-etl/internal/adapter/file"
	httpadapter "github.com/couchcryptid/county-rates-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/county-rates-etl/internal/adapter/kafka"
	"github.com/couchcryptid/county-rates-etl/internal/config"
	"github.com/couchcryptid/county-rates-etl/internal/observability"
	"github.com/couchcryptid/county-rates-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	extractor := &file.Extractor{
		CasesPath:      cfg.CasesPath,
		DeathsPath:     cfg.DeathsPath,
		PopulationPath: cfg.PopulationPath,
		Sheet:          cfg.XLSXSheet,
	}

	var loaders []pipeline.Loader
	if cfg.OutputDir != "" {
		loaders = append(loaders, &file.Writer{Dir: cfg.OutputDir})
		logger.Info("file sink enabled", "dir", cfg.OutputDir)
	}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		loaders = append(loaders, writer)
		logger.Info("kafka sink enabled",
			"brokers", cfg.KafkaBrokers,
			"incidence_topic", cfg.KafkaIncidenceTopic,
			"rate_topic", cfg.KafkaRateTopic,
		)
	}
	if len(loaders) == 0 {
		logger.Warn("no sinks configured, results are served over HTTP only")
	}

	p := pipeline.New(extractor, loaders, pipeline.Options{
		Policy:   cfg.IntegrityPolicy,
		Interval: cfg.RefreshInterval,
	}, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.OneShot {
		os.Exit(runOnce(ctx, p, writer, logger))
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start ETL pipeline.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	closeWriter(writer, logger)

	logger.Info("shutdown complete")
}

// runOnce performs a single run and returns the process exit code.
func runOnce(ctx context.Context, p *pipeline.Pipeline, writer *kafkaadapter.Writer, logger *slog.Logger) int {
	defer closeWriter(writer, logger)

	report, err := p.RunOnce(ctx)
	if err != nil {
		logger.Error("run failed", "error", err, "kind", pipeline.ErrorKind(err))
		return 1
	}
	for _, m := range report.Metrics {
		attrs := []any{"metric", m.Metric, "complete_weeks", m.CompleteWeeks, "entities", m.Entities}
		if m.CurrentWeek != nil {
			attrs = append(attrs, "current_week", m.CurrentWeek.Week, "current_week_total", m.CurrentWeek.Total)
		}
		logger.Info("metric summary", attrs...)
	}
	return 0
}

func closeWriter(writer *kafkaadapter.Writer, logger *slog.Logger) {
	if writer == nil {
		return
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
}
