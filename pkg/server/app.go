package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SigFuse/internal/usecase"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/cache"
	pkgch "SigFuse/pkg/clickhouse"
	"SigFuse/pkg/config"
	xhttp "SigFuse/pkg/http"
	pkgkafka "SigFuse/pkg/kafka"
	applogger "SigFuse/pkg/logger"
)

// reconnectCheckInterval is how often the watchdog inspects transport
// health while the publisher is buffering.
const reconnectCheckInterval = 5 * time.Second

// App encapsulates the entire application lifecycle.
type App struct {
	cfg         *config.Config
	log         *applogger.Logger
	busClient   *bus.Client
	agg         *usecase.Aggregator
	httpHandler xhttp.Handler
	chClient    *pkgch.Client
	producer    *pkgkafka.Producer
	respCache   cache.Service
	httpServer  *xhttp.Server
}

// New creates a new App instance with all dependencies. chClient, producer
// and respCache may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	busClient *bus.Client,
	agg *usecase.Aggregator,
	httpHandler xhttp.Handler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	respCache cache.Service,
) *App {
	return &App{
		cfg:         cfg,
		log:         log,
		busClient:   busClient,
		agg:         agg,
		httpHandler: httpHandler,
		chClient:    chClient,
		producer:    producer,
		respCache:   respCache,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Probe the transport once so an unreachable broker is visible at
	// startup. Startup proceeds either way; the publisher buffers until
	// the watchdog reconnects.
	if err := a.busClient.Ping(ctx); err != nil {
		a.log.Warn("transport unreachable at startup, operating in buffered mode",
			applogger.Error(err))
	}

	if err := a.agg.Start(ctx); err != nil {
		return err
	}
	go func() {
		if err := a.agg.Listen(ctx); err != nil {
			a.log.Error("aggregator listen error", applogger.Error(err))
		}
	}()

	go a.reconnectWatchdog(ctx)

	a.httpServer = xhttp.NewServer(a.httpHandler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsLogger(a.log.With("http")),
	)
	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("application started",
		applogger.Int("port", a.cfg.Server.Port),
		applogger.String("redis", a.cfg.Redis.Addr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// reconnectWatchdog restores the transport after publish failures. The
// publisher flips into buffering mode on its first failed send; this loop
// notices and drives the bounded reconnect cycle, which resets the breaker
// and replays the buffer on success.
func (a *App) reconnectWatchdog(ctx context.Context) {
	ticker := time.NewTicker(reconnectCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		st := a.busClient.Status()
		if !st.Buffering && st.Breaker.State != "open" {
			continue
		}

		a.log.Warn("transport degraded, attempting reconnect",
			applogger.String("breaker_state", st.Breaker.State),
			applogger.Int("buffered", st.Buffer.Size))

		if a.busClient.Reconnect(ctx) {
			a.log.Info("transport restored")
		} else {
			a.log.Error("reconnect cycle exhausted, will retry")
		}
	}
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	if err := a.agg.Stop(); err != nil {
		a.log.Warn("aggregator stop error", applogger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if err := a.busClient.Close(); err != nil {
		a.log.Warn("transport close error", applogger.Error(err))
	}

	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.log.Warn("kafka producer close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.respCache != nil {
		_ = a.respCache.Close()
	}

	a.log.Info("shutdown complete")
	return nil
}
