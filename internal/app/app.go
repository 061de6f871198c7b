package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/chrissnell/spmanalyzer/internal/analysis"
	"github.com/chrissnell/spmanalyzer/internal/controllers/restserver"
	"github.com/chrissnell/spmanalyzer/internal/history"
	"github.com/chrissnell/spmanalyzer/internal/log"
	"github.com/chrissnell/spmanalyzer/internal/session"
	"github.com/chrissnell/spmanalyzer/internal/tracing"
	"github.com/chrissnell/spmanalyzer/pkg/config"
	"go.uber.org/zap"
)

// App represents the main application
type App struct {
	cfg    *config.ConfigData
	logger *zap.SugaredLogger
}

// New creates a new application instance
func New(cfg *config.ConfigData, logger *zap.SugaredLogger) *App {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &App{
		cfg:    cfg,
		logger: logger,
	}
}

// components are the long-lived parts built from the configuration.
type components struct {
	store      history.Store
	sessions   *session.Registry
	service    *analysis.Service
	controller *restserver.Controller
	shutdown   tracing.ShutdownFunc
}

func (c *components) close() {
	c.sessions.CloseAll()
	if err := c.store.Close(); err != nil {
		log.Errorf("closing history store: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.shutdown(ctx); err != nil {
		log.Errorf("flushing traces: %v", err)
	}
}

func (a *App) build(ctx context.Context, wg *sync.WaitGroup) (*components, error) {
	tp, shutdown, err := tracing.Setup(a.cfg.Tracing)
	if err != nil {
		return nil, err
	}

	store, err := history.Open(ctx, a.cfg.History)
	if err != nil {
		shutdown(context.Background())
		return nil, fmt.Errorf("opening %s history: %w", a.cfg.History.Backend, err)
	}

	sessions := session.NewRegistry(a.cfg.Analysis.CacheSize, a.cfg.Server.DataRoot, a.logger.Named("session"))
	service := analysis.NewService(sessions, store, a.cfg.Analysis, a.logger.Named("analysis"))
	service.SetTracerProvider(tp)

	ctrl, err := restserver.NewController(ctx, wg, a.cfg.Server, service, a.logger.Named("rest"))
	if err != nil {
		store.Close()
		shutdown(context.Background())
		return nil, err
	}
	return &components{store: store, sessions: sessions, service: service, controller: ctrl, shutdown: shutdown}, nil
}

// Run starts the application and blocks until shutdown
func (a *App) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c, err := a.build(ctx, &wg)
	if err != nil {
		return err
	}
	defer c.close()

	if err := c.controller.StartController(); err != nil {
		return err
	}

	log.Infow("Application started successfully",
		"addr", a.cfg.Server.Addr(),
		"history", a.cfg.History.Backend,
		"sampling", a.cfg.Analysis.DefaultSampling,
		"tracing", a.cfg.Tracing.Enabled)

	// Set up signal handling
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigs)

	// Wait for shutdown signal
	select {
	case <-sigs:
		log.Info("shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
		log.Info("context cancelled, shutting down...")
	}

	// Cancel context to signal all goroutines to stop
	cancel()

	// Wait for all workers to terminate
	log.Info("waiting for all workers to terminate...")
	wg.Wait()
	log.Info("shutdown complete")

	return nil
}
