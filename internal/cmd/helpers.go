package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/aleister1102/hotpatch/internal/common/errorwrapper"
	"github.com/aleister1102/hotpatch/internal/config"
	"github.com/aleister1102/hotpatch/internal/datastore"
	"github.com/aleister1102/hotpatch/internal/logger"
	"github.com/aleister1102/hotpatch/internal/orchestrator"
	"github.com/rs/zerolog"
)

// appContext bundles what every verb needs: validated configuration and
// a configured logger.
type appContext struct {
	cfg    *config.GlobalConfig
	logger zerolog.Logger
}

// bootstrap loads and validates configuration, then builds the logger.
func bootstrap() (*appContext, error) {
	cfg, err := config.LoadGlobalConfig(configPath, zerolog.Nop())
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to load configuration")
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}

	zLogger, err := logger.New(cfg.LogConfig)
	if err != nil {
		return nil, errorwrapper.WrapError(err, "failed to initialize logger")
	}

	return &appContext{cfg: cfg, logger: zLogger}, nil
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// buildOrchestrator wires an update orchestrator for the configured app
// root, attaching the parquet audit trail when storage configures one.
func buildOrchestrator(app *appContext) (*orchestrator.UpdateOrchestrator, error) {
	builder := orchestrator.NewUpdateOrchestratorBuilder(app.logger).
		WithConfig(app.cfg).
		WithAppRoot(appRoot)

	if path := app.cfg.StorageConfig.AuditParquetPath; path != "" {
		builder = builder.WithAuditStore(newAuditStore(app, path))
	}
	return builder.Build()
}

func newAuditStore(app *appContext, path string) *datastore.AuditStore {
	return datastore.NewAuditStore(resolveUnderRoot(path), app.cfg.StorageConfig.CompressionCodec, app.logger)
}

// resolveUnderRoot anchors a relative configured path at the app root.
func resolveUnderRoot(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(appRoot, filepath.FromSlash(path))
}
