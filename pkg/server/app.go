package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"SpreadScout/pkg/config"
	xhttp "SpreadScout/pkg/http"
	pkgkafka "SpreadScout/pkg/kafka"
	"SpreadScout/pkg/logger"
	"SpreadScout/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *logger.Logger
	queue      queue.Queue
	consumer   *pkgkafka.Consumer
	httpServer *xhttp.Server
}

// New creates a new App instance. consumer may be nil.
func New(
	cfg *config.Config,
	log *logger.Logger,
	q queue.Queue,
	consumer *pkgkafka.Consumer,
	httpServer *xhttp.Server,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		queue:      q,
		consumer:   consumer,
		httpServer: httpServer,
	}
}

// Run starts the job queue, the snapshot consumer and the HTTP server, then
// blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.start(); err != nil {
		a.shutdown(context.Background())
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	a.shutdown(context.Background())
	return nil
}

func (a *App) start() error {
	if err := a.queue.Start(); err != nil {
		return fmt.Errorf("start queue: %w", err)
	}

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			return fmt.Errorf("start kafka consumer: %w", err)
		}
	}

	if err := a.httpServer.Start(); err != nil {
		return fmt.Errorf("start http server: %w", err)
	}
	return nil
}

// shutdown stops intake first, then background work. Infrastructure clients
// are closed by the DI cleanup afterwards.
func (a *App) shutdown(ctx context.Context) {
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", logger.Error(err))
	}

	stopCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.consumer != nil {
		if err := a.consumer.Stop(stopCtx); err != nil {
			a.log.Warn("kafka consumer stop error", logger.Error(err))
		}
	}

	if err := a.queue.Stop(stopCtx); err != nil {
		a.log.Warn("job queue stop error", logger.Error(err))
	}

	a.log.Info("shutdown complete")
	a.log.RemoveCollector()
}
