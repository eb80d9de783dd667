package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"StratEq/internal/jobs"
	pkgch "StratEq/pkg/clickhouse"
	"StratEq/pkg/config"
	xhttp "StratEq/pkg/http"
	applogger "StratEq/pkg/logger"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg          *config.Config
	logger       *applogger.Logger
	handler      xhttp.Handler
	orchestrator *jobs.Orchestrator
	chClient     *pkgch.Client
	httpServer   *xhttp.Server
	closers      []func() error
}

// New creates a new App instance with all dependencies.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	orchestrator *jobs.Orchestrator,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:          cfg,
		logger:       l,
		handler:      handler,
		orchestrator: orchestrator,
		chClient:     chClient,
	}
}

// AddCloser registers a resource to close on shutdown, after the workers stop.
func (a *App) AddCloser(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Recover jobs orphaned by a previous process before accepting traffic.
	if err := a.orchestrator.Start(ctx); err != nil {
		a.logger.Error("orchestrator start failed", applogger.Error(err))
		return err
	}

	a.httpServer = xhttp.NewServer(a.handler,
		xhttp.WithHost(a.cfg.Server.Host),
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithRequestMetrics(a.logger, a.cfg.Server.SlowThreshold),
	)
	if err := a.httpServer.Start(); err != nil {
		a.logger.Error("http server start error", applogger.Error(err))
		return err
	}
	a.logger.Info("server started",
		applogger.String("env", a.cfg.Environment),
		applogger.Int("port", a.cfg.Server.Port),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.logger.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown stops traffic first, then workers, then infrastructure clients.
func (a *App) shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.logger.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.orchestrator.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("orchestrator shutdown error", applogger.Error(err))
	}

	for _, closeFn := range a.closers {
		if err := closeFn(); err != nil {
			a.logger.Warn("resource close error", applogger.Error(err))
		}
	}
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.logger.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	a.logger.Info("shutdown complete")
	return nil
}
