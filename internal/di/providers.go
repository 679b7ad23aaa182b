package di

import (
	"context"
	"fmt"
	"time"

	"SigFuse/internal/domain/repository"
	"SigFuse/internal/handler/api"
	internalrepo "SigFuse/internal/repository"
	"SigFuse/internal/usecase"
	"SigFuse/pkg/bus"
	"SigFuse/pkg/cache"
	pkgch "SigFuse/pkg/clickhouse"
	"SigFuse/pkg/config"
	xhttp "SigFuse/pkg/http"
	pkgkafka "SigFuse/pkg/kafka"
	"SigFuse/pkg/logger"
	"SigFuse/pkg/metrics"
	"SigFuse/pkg/resilience"
	"SigFuse/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideBusClient creates the resilient pub/sub transport client.
func ProvideBusClient(cfg *config.Config, l *logger.Logger) (*bus.Client, error) {
	client, err := bus.NewClient(bus.Config{
		Addr:             cfg.Redis.Addr,
		Password:         cfg.Redis.Password,
		DB:               cfg.Redis.DB,
		PollTimeout:      cfg.Redis.PollTimeout,
		BufferCapacity:   cfg.Buffer.Capacity,
		Staleness:        cfg.Buffer.Staleness,
		FailureThreshold: cfg.Breaker.FailureThreshold,
		RecoveryTimeout:  cfg.Breaker.RecoveryTimeout,
		HalfOpenMaxCalls: cfg.Breaker.HalfOpenMaxCalls,
		Retry: resilience.RetryPolicy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			MaxDelay:    cfg.Retry.MaxDelay,
			Jitter:      cfg.Retry.Jitter,
		},
		MaxReconnectAttempts: cfg.Retry.MaxAttempts,
	}, l.With("bus"))
	if err != nil {
		return nil, fmt.Errorf("bus client: %w", err)
	}
	return client, nil
}

// ProvidePublisher exposes the client's buffering publisher.
func ProvidePublisher(client *bus.Client) *bus.Publisher {
	return client.Publisher()
}

// ProvideSubscriber opens the input subscription. Its lifetime follows the
// aggregator, which closes it on Stop.
func ProvideSubscriber(client *bus.Client) *bus.Subscriber {
	return client.NewSubscriber(context.Background())
}

// ProvideClickHouseClient creates a ClickHouse client when persistence is
// enabled. Returns nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideSignalStore creates the ClickHouse signal log. Nil when persistence
// is disabled; the aggregator and HTTP layer degrade gracefully.
func ProvideSignalStore(chClient *pkgch.Client, cfg *config.Config) (repository.SignalStore, error) {
	if chClient == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseSignalStore(chClient.DB(), cfg.ClickHouse.Database+".signals")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("signal store schema: %w", err)
	}
	return store, nil
}

// ProvideKafkaProducer creates a Kafka producer when the audit mirror is
// enabled. Returns nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.WriteTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideSignalSink mirrors emitted signals to Kafka. Nil when disabled.
func ProvideSignalSink(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalSink {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalSink(producer, cfg.Kafka.Topic)
}

// ProvideAggregator creates the signal aggregator use case.
func ProvideAggregator(
	cfg *config.Config,
	l *logger.Logger,
	pub *bus.Publisher,
	sub *bus.Subscriber,
	store repository.SignalStore,
	sink repository.SignalSink,
	m repository.Metrics,
) (*usecase.Aggregator, error) {
	agg, err := usecase.NewAggregator(usecase.AggregatorConfig{
		WeightSentiment: cfg.Aggregator.Weights.Sentiment,
		WeightTechnical: cfg.Aggregator.Weights.Technical,
		WeightRegime:    cfg.Aggregator.Weights.Regime,
		BuyThreshold:    cfg.Aggregator.BuyThreshold,
		SellThreshold:   cfg.Aggregator.SellThreshold,
		MaxEvents:       cfg.Aggregator.MaxEvents,
	}, l.With("aggregator"), pub, sub, store, sink, m)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	return agg, nil
}

// ProvideResponseCache creates the in-memory response cache for the HTTP
// read endpoints.
func ProvideResponseCache() cache.Service {
	return cache.NewMemoryCache(
		cache.WithMemoryMaxSize(256),
		cache.WithDefaultTTL(5*time.Second),
	)
}

// ProvideHTTPHandler creates the signals HTTP handler.
func ProvideHTTPHandler(
	l *logger.Logger,
	agg *usecase.Aggregator,
	client *bus.Client,
	store repository.SignalStore,
	c cache.Service,
) xhttp.Handler {
	return api.NewSignalsHandler(l.With("http"), agg, client, store, c)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	client *bus.Client,
	agg *usecase.Aggregator,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	respCache cache.Service,
) *server.App {
	return server.New(cfg, l, client, agg, handler, chClient, producer, respCache)
}
