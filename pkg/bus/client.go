package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SigFuse/pkg/logger"
	"SigFuse/pkg/resilience"

	"github.com/redis/go-redis/v9"
)

// Config holds transport client configuration. Zero values fall back to
// the defaults from the origin system (buffer 1000, staleness 5m, breaker
// 5/30s/3, five reconnect attempts).
type Config struct {
	Addr                 string
	Password             string
	DB                   int
	PollTimeout          time.Duration
	BufferCapacity       int
	Staleness            time.Duration
	FailureThreshold     int
	RecoveryTimeout      time.Duration
	HalfOpenMaxCalls     int
	Retry                resilience.RetryPolicy
	MaxReconnectAttempts int
}

func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PollTimeout <= 0 {
		c.PollTimeout = 1 * time.Second
	}
	if c.BufferCapacity == 0 {
		c.BufferCapacity = 1000
	}
	if c.Staleness <= 0 {
		c.Staleness = 5 * time.Minute
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 5
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = 30 * time.Second
	}
	if c.HalfOpenMaxCalls <= 0 {
		c.HalfOpenMaxCalls = 3
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = resilience.DefaultRetryPolicy()
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = 5
	}
}

// ClientOption configures Client.
type ClientOption func(*Client)

// WithSender overrides the outbound transport, for tests.
func WithSender(s Sender) ClientOption {
	return func(c *Client) {
		c.sender = s
	}
}

// WithDialFunc overrides the connection probe used during reconnection,
// for tests.
func WithDialFunc(fn func(ctx context.Context) error) ClientOption {
	return func(c *Client) {
		c.dialFn = fn
	}
}

// Client owns the transport connection and its failure-recovery loop:
// breaker, outbound buffer, reconnection with backoff and buffer replay.
// Construct it explicitly and hand it to every component that needs the
// bus; there is no hidden process-wide instance.
type Client struct {
	cfg       Config
	log       *logger.Logger
	rdb       *redis.Client
	sender    Sender
	dialFn    func(ctx context.Context) error
	breaker   *resilience.Breaker
	publisher *Publisher

	reconnectAttempts atomic.Uint64
	reconnects        atomic.Uint64
	closeOnce         sync.Once
}

// NewClient creates the transport client. The connection itself is lazy;
// use Ping to probe it at startup.
func NewClient(cfg Config, log *logger.Logger, opts ...ClientOption) (*Client, error) {
	cfg.applyDefaults()

	buf, err := resilience.NewQueue[BufferedMessage](cfg.BufferCapacity)
	if err != nil {
		return nil, fmt.Errorf("outbound buffer: %w", err)
	}

	initBusMetricsOnce()
	c := &Client{
		cfg: cfg,
		log: log,
		rdb: redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
	c.sender = redisSender{rdb: c.rdb}
	c.dialFn = func(ctx context.Context) error {
		return c.rdb.Ping(ctx).Err()
	}

	c.breaker = resilience.NewBreaker("bus",
		resilience.WithFailureThreshold(cfg.FailureThreshold),
		resilience.WithRecoveryTimeout(cfg.RecoveryTimeout),
		resilience.WithHalfOpenMaxCalls(cfg.HalfOpenMaxCalls),
		resilience.WithStateChangeHook(func(name string, from, to resilience.State) {
			breakerTransition.WithLabelValues(name, from.String(), to.String()).Inc()
			log.Warn("circuit breaker state change",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()))
		}),
	)

	for _, opt := range opts {
		opt(c)
	}

	c.publisher = NewPublisher(log, c.sender, c.breaker, buf, cfg.Staleness)
	return c, nil
}

// Publisher returns the resilient publisher bound to this connection.
func (c *Client) Publisher() *Publisher {
	return c.publisher
}

// NewSubscriber creates a subscriber over a dedicated pub/sub connection.
func (c *Client) NewSubscriber(ctx context.Context) *Subscriber {
	return NewSubscriber(c.log, &redisReceiver{ps: c.rdb.Subscribe(ctx)}, c.cfg.PollTimeout)
}

// Ping probes the connection through the circuit breaker.
func (c *Client) Ping(ctx context.Context) error {
	return c.breaker.Do(func() error {
		return c.dialFn(ctx)
	})
}

// Reconnect tries to re-establish the connection with exponential backoff,
// up to the configured attempt budget. On success it resets the breaker and
// replays the outbound buffer. Returns whether the connection came back.
func (c *Client) Reconnect(ctx context.Context) bool {
	for attempt := 0; attempt < c.cfg.MaxReconnectAttempts; attempt++ {
		delay := c.cfg.Retry.Delay(attempt)
		c.log.Info("reconnect attempt",
			logger.Int("attempt", attempt+1),
			logger.Int("max_attempts", c.cfg.MaxReconnectAttempts),
			logger.Duration("backoff", delay))

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}

		c.reconnectAttempts.Add(1)
		if err := c.dialFn(ctx); err != nil {
			reconnectTotal.WithLabelValues("failure").Inc()
			c.log.Warn("reconnect failed", logger.Error(err))
			continue
		}

		reconnectTotal.WithLabelValues("success").Inc()
		c.reconnects.Add(1)
		c.breaker.Reset()
		replayed := c.publisher.Replay(ctx)
		c.log.Info("reconnected",
			logger.Int("replayed", replayed),
			logger.Int("still_buffered", c.publisher.buf.Len()))
		return true
	}

	c.log.Error("reconnect attempts exhausted",
		logger.Int("max_attempts", c.cfg.MaxReconnectAttempts))
	return false
}

// Status is a point-in-time view of transport health for the status
// endpoint. Silent degradation is this design's main operational risk, so
// everything that can degrade is reported here.
type Status struct {
	Breaker           resilience.Status     `json:"breaker"`
	Buffer            resilience.QueueStats `json:"buffer"`
	Buffering         bool                  `json:"buffering"`
	ReconnectAttempts uint64                `json:"reconnect_attempts"`
	Reconnects        uint64                `json:"reconnects"`
}

// Status reports breaker, buffer and reconnect state.
func (c *Client) Status() Status {
	return Status{
		Breaker:           c.breaker.Status(),
		Buffer:            c.publisher.BufferStats(),
		Buffering:         c.publisher.Buffering(),
		ReconnectAttempts: c.reconnectAttempts.Load(),
		Reconnects:        c.reconnects.Load(),
	}
}

// Close releases the underlying connection. Idempotent.
func (c *Client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.rdb.Close()
	})
	return err
}
