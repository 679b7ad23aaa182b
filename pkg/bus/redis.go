package bus

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisSender adapts a go-redis client to the Sender interface.
type redisSender struct {
	rdb *redis.Client
}

func (s redisSender) Send(ctx context.Context, channel string, payload []byte) error {
	return s.rdb.Publish(ctx, channel, payload).Err()
}

// redisReceiver adapts a go-redis PubSub to the Receiver interface.
type redisReceiver struct {
	ps *redis.PubSub
}

func (r *redisReceiver) Subscribe(ctx context.Context, channels ...string) error {
	return r.ps.Subscribe(ctx, channels...)
}

func (r *redisReceiver) Unsubscribe(ctx context.Context, channels ...string) error {
	return r.ps.Unsubscribe(ctx, channels...)
}

// Receive polls for the next message with a bounded timeout. Subscription
// confirmations and pongs are swallowed: they are transport chatter, not
// deliveries.
func (r *redisReceiver) Receive(ctx context.Context, timeout time.Duration) (*Delivery, error) {
	msg, err := r.ps.ReceiveTimeout(ctx, timeout)
	if err != nil {
		if os.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}

	switch m := msg.(type) {
	case *redis.Message:
		return &Delivery{Channel: m.Channel, Payload: []byte(m.Payload)}, nil
	default:
		return nil, nil
	}
}

func (r *redisReceiver) Close() error {
	return r.ps.Close()
}
