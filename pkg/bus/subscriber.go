package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SigFuse/pkg/logger"
)

// Handler processes one message from a channel. Handlers on the same
// channel run in registration order; an error (or panic) in one handler
// never prevents sibling handlers from running.
type Handler func(ctx context.Context, channel string, payload []byte) error

// Subscriber maintains a channel-to-handler registry and a blocking
// dispatch loop over the transport's inbound half.
type Subscriber struct {
	log         *logger.Logger
	recv        Receiver
	pollTimeout time.Duration

	mu         sync.Mutex
	handlers   map[string][]Handler
	registered map[string]bool

	running   atomic.Bool
	stopCh    chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
}

// NewSubscriber creates a subscriber over the given receiver.
func NewSubscriber(log *logger.Logger, recv Receiver, pollTimeout time.Duration) *Subscriber {
	if pollTimeout <= 0 {
		pollTimeout = 1 * time.Second
	}
	initBusMetricsOnce()
	return &Subscriber{
		log:         log,
		recv:        recv,
		pollTimeout: pollTimeout,
		handlers:    make(map[string][]Handler),
		registered:  make(map[string]bool),
		stopCh:      make(chan struct{}),
	}
}

// Subscribe registers handler for each channel. Transport registration
// happens once per channel; subscribing the same channel again only
// appends the handler.
func (s *Subscriber) Subscribe(ctx context.Context, channels []string, handler Handler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range channels {
		if !s.registered[ch] {
			if err := s.recv.Subscribe(ctx, ch); err != nil {
				return fmt.Errorf("subscribe %s: %w", ch, err)
			}
			s.registered[ch] = true
			s.log.Info("subscribed to channel", logger.String("channel", ch))
		}
		s.handlers[ch] = append(s.handlers[ch], handler)
	}
	return nil
}

// Unsubscribe removes the transport registration and all handlers for the
// given channels.
func (s *Subscriber) Unsubscribe(ctx context.Context, channels []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ch := range channels {
		if !s.registered[ch] {
			continue
		}
		if err := s.recv.Unsubscribe(ctx, ch); err != nil {
			return fmt.Errorf("unsubscribe %s: %w", ch, err)
		}
		delete(s.registered, ch)
		delete(s.handlers, ch)
		s.log.Info("unsubscribed from channel", logger.String("channel", ch))
	}
	return nil
}

// Listen polls for messages and dispatches them until Stop is called or
// ctx is cancelled. Each poll blocks at most pollTimeout, so a stop
// request is observed within one interval. Transport errors are logged and
// retried after a short pause; they never terminate the loop.
func (s *Subscriber) Listen(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("subscriber already listening")
	}
	defer s.running.Store(false)

	s.log.Info("dispatch loop started")
	for {
		select {
		case <-s.stopCh:
			s.log.Info("dispatch loop stopped")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		d, err := s.recv.Receive(ctx, s.pollTimeout)
		if err != nil {
			s.log.Error("receive error", logger.Error(err))
			select {
			case <-s.stopCh:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.pollTimeout):
			}
			continue
		}
		if d == nil {
			continue
		}
		s.dispatch(ctx, d)
	}
}

func (s *Subscriber) dispatch(ctx context.Context, d *Delivery) {
	if !json.Valid(d.Payload) {
		malformedTotal.WithLabelValues(d.Channel).Inc()
		s.log.Error("dropping malformed payload",
			logger.String("channel", d.Channel),
			logger.Int("bytes", len(d.Payload)))
		return
	}

	s.mu.Lock()
	hs := make([]Handler, len(s.handlers[d.Channel]))
	copy(hs, s.handlers[d.Channel])
	s.mu.Unlock()

	dispatchedTotal.WithLabelValues(d.Channel).Inc()
	for _, h := range hs {
		s.invoke(ctx, h, d)
	}
}

// invoke isolates a single handler call: errors and panics are logged and
// confined to this handler and this message.
func (s *Subscriber) invoke(ctx context.Context, h Handler, d *Delivery) {
	defer func() {
		if r := recover(); r != nil {
			handlerErrors.WithLabelValues(d.Channel).Inc()
			s.log.Error("handler panic",
				logger.String("channel", d.Channel),
				logger.Any("panic", r))
		}
	}()
	if err := h(ctx, d.Channel, d.Payload); err != nil {
		handlerErrors.WithLabelValues(d.Channel).Inc()
		s.log.Error("handler error",
			logger.String("channel", d.Channel),
			logger.Error(err))
	}
}

// Stop requests loop termination; the loop exits within one poll timeout.
// Buffered outbound messages are untouched. Safe to call concurrently with
// Listen and more than once.
func (s *Subscriber) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopCh)
	})
}

// Close stops the loop and releases the underlying subscription. Idempotent.
func (s *Subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.Stop()
		err = s.recv.Close()
	})
	return err
}
