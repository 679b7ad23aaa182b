package bus

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"SigFuse/pkg/logger"
	"SigFuse/pkg/resilience"
)

// Publisher publishes messages through the circuit breaker and parks them
// in a bounded local buffer when the transport is down. Publish never
// blocks on retries; draining the buffer is the reconnect path's job.
type Publisher struct {
	log       *logger.Logger
	sender    Sender
	breaker   *resilience.Breaker
	buf       *resilience.Queue[BufferedMessage]
	staleness time.Duration
	buffering atomic.Bool
	nowFn     func() time.Time
}

// NewPublisher creates a publisher over the given sender.
func NewPublisher(log *logger.Logger, sender Sender, breaker *resilience.Breaker, buf *resilience.Queue[BufferedMessage], staleness time.Duration) *Publisher {
	if staleness <= 0 {
		staleness = 5 * time.Minute
	}
	initBusMetricsOnce()
	return &Publisher{
		log:       log,
		sender:    sender,
		breaker:   breaker,
		buf:       buf,
		staleness: staleness,
		nowFn:     time.Now,
	}
}

// Publish serializes v and sends it on channel. On any transport failure
// (circuit-open rejection included) the message is buffered and false is
// returned; the caller decides whether to trigger a reconnect.
func (p *Publisher) Publish(ctx context.Context, channel string, v interface{}) bool {
	data, err := json.Marshal(v)
	if err != nil {
		// Not a transport failure: buffering an unserializable value
		// could never succeed later.
		p.log.Error("publish marshal failed",
			logger.String("channel", channel),
			logger.Error(err))
		publishTotal.WithLabelValues(channel, "marshal_error").Inc()
		return false
	}

	if err := p.send(ctx, channel, data); err != nil {
		p.buffering.Store(true)
		if evicted := p.buf.Enqueue(BufferedMessage{
			Channel:    channel,
			Payload:    data,
			EnqueuedAt: p.nowFn(),
		}); evicted {
			bufferDropped.Inc()
		}
		bufferedTotal.WithLabelValues(channel).Inc()
		bufferDepth.Set(float64(p.buf.Len()))
		publishTotal.WithLabelValues(channel, "error").Inc()
		p.log.Warn("publish failed, message buffered",
			logger.String("channel", channel),
			logger.Int("buffered", p.buf.Len()),
			logger.Error(err))
		return false
	}

	publishTotal.WithLabelValues(channel, "ok").Inc()
	return true
}

func (p *Publisher) send(ctx context.Context, channel string, data []byte) error {
	return p.breaker.Do(func() error {
		return p.sender.Send(ctx, channel, data)
	})
}

// Replay drains the buffer in FIFO order: stale entries are evicted, live
// ones re-published, and entries that still fail go back to the tail. The
// pass is bounded by the buffer size at entry so re-enqueued failures are
// not retried within the same pass. Buffering mode is switched off once
// the buffer is fully drained.
func (p *Publisher) Replay(ctx context.Context) int {
	n := p.buf.Len()
	if n == 0 {
		p.buffering.Store(false)
		return 0
	}

	replayed, skipped, failed := 0, 0, 0
	for i := 0; i < n; i++ {
		msg, ok := p.buf.Dequeue()
		if !ok {
			break
		}
		if age := p.nowFn().Sub(msg.EnqueuedAt); age > p.staleness {
			skipped++
			p.log.Warn("skipping stale buffered message",
				logger.String("channel", msg.Channel),
				logger.Duration("age", age))
			continue
		}
		if err := p.send(ctx, msg.Channel, msg.Payload); err != nil {
			failed++
			if evicted := p.buf.Enqueue(msg); evicted {
				bufferDropped.Inc()
			}
			continue
		}
		replayed++
	}

	if p.buf.Len() == 0 {
		p.buffering.Store(false)
	}
	bufferDepth.Set(float64(p.buf.Len()))
	p.log.Info("buffer replay finished",
		logger.Int("replayed", replayed),
		logger.Int("skipped_stale", skipped),
		logger.Int("failed", failed),
		logger.Int("remaining", p.buf.Len()))
	return replayed
}

// Buffering reports whether the publisher is in buffering mode.
func (p *Publisher) Buffering() bool {
	return p.buffering.Load()
}

// BufferStats returns buffer occupancy and eviction counters.
func (p *Publisher) BufferStats() resilience.QueueStats {
	return p.buf.Stats()
}
