package bus

import (
	"context"
	"encoding/json"
	"time"
)

// Well-known channel names. Producers for the first four are external;
// signals is this system's output.
const (
	ChannelSentiment  = "sentiment"
	ChannelEvents     = "events"
	ChannelIndicators = "indicators"
	ChannelRegime     = "regime"
	ChannelSignals    = "signals"
)

// AllChannels returns every channel in the catalog.
func AllChannels() []string {
	return []string{ChannelSentiment, ChannelEvents, ChannelIndicators, ChannelRegime, ChannelSignals}
}

// InputChannels returns the channels the aggregator consumes.
func InputChannels() []string {
	return []string{ChannelSentiment, ChannelEvents, ChannelIndicators, ChannelRegime}
}

// Sender is the outbound half of the transport connection.
type Sender interface {
	Send(ctx context.Context, channel string, payload []byte) error
}

// Delivery is a single message received from the transport.
type Delivery struct {
	Channel string
	Payload []byte
}

// Receiver is the inbound half of the transport connection. Receive blocks
// up to timeout; a nil Delivery with nil error means nothing arrived this
// poll (timeout or a non-data frame).
type Receiver interface {
	Subscribe(ctx context.Context, channels ...string) error
	Unsubscribe(ctx context.Context, channels ...string) error
	Receive(ctx context.Context, timeout time.Duration) (*Delivery, error)
	Close() error
}

// BufferedMessage is an outbound message parked locally while the transport
// is unavailable. Payload is kept pre-serialized so replay never re-marshals.
type BufferedMessage struct {
	Channel    string          `json:"channel"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
}
