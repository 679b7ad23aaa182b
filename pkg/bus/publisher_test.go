package bus

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"SigFuse/pkg/logger"
	"SigFuse/pkg/resilience"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	err  error
	sent []Delivery
}

func (f *fakeSender) Send(_ context.Context, channel string, payload []byte) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, Delivery{Channel: channel, Payload: append([]byte(nil), payload...)})
	return nil
}

func newTestPublisher(t *testing.T, sender Sender, capacity int) *Publisher {
	t.Helper()
	buf, err := resilience.NewQueue[BufferedMessage](capacity)
	require.NoError(t, err)
	br := resilience.NewBreaker("test", resilience.WithFailureThreshold(1000))
	return NewPublisher(logger.Nop(), sender, br, buf, 5*time.Minute)
}

func TestPublishDelivers(t *testing.T) {
	sender := &fakeSender{}
	p := newTestPublisher(t, sender, 10)

	ok := p.Publish(context.Background(), ChannelSignals, map[string]string{"k": "v"})

	assert.True(t, ok)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, ChannelSignals, sender.sent[0].Channel)
	assert.JSONEq(t, `{"k":"v"}`, string(sender.sent[0].Payload))
	assert.False(t, p.Buffering())
}

func TestPublishBuffersOnFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection refused")}
	p := newTestPublisher(t, sender, 10)

	ok := p.Publish(context.Background(), ChannelSentiment, map[string]float64{"score": 0.5})

	assert.False(t, ok)
	assert.True(t, p.Buffering())
	assert.Equal(t, 1, p.BufferStats().Size)
}

func TestPublishMarshalErrorNotBuffered(t *testing.T) {
	sender := &fakeSender{}
	p := newTestPublisher(t, sender, 10)

	ok := p.Publish(context.Background(), ChannelEvents, func() {})

	assert.False(t, ok)
	assert.False(t, p.Buffering())
	assert.Zero(t, p.BufferStats().Size)
}

func TestReplayPreservesOrder(t *testing.T) {
	sender := &fakeSender{err: errors.New("down")}
	p := newTestPublisher(t, sender, 10)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p.Publish(ctx, ChannelEvents, map[string]int{"seq": i})
	}
	require.Equal(t, 3, p.BufferStats().Size)

	sender.err = nil
	replayed := p.Replay(ctx)

	assert.Equal(t, 3, replayed)
	assert.False(t, p.Buffering())
	require.Len(t, sender.sent, 3)
	for i, d := range sender.sent {
		var got map[string]int
		require.NoError(t, json.Unmarshal(d.Payload, &got))
		assert.Equal(t, i, got["seq"])
	}
}

func TestReplaySkipsStaleMessages(t *testing.T) {
	sender := &fakeSender{err: errors.New("down")}
	p := newTestPublisher(t, sender, 10)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p.nowFn = func() time.Time { return now }

	ctx := context.Background()
	p.Publish(ctx, ChannelEvents, map[string]string{"id": "old"})
	now = now.Add(2 * time.Minute)
	p.Publish(ctx, ChannelEvents, map[string]string{"id": "fresh"})

	// Advance so the first message exceeds the 5m staleness window.
	now = now.Add(4 * time.Minute)
	sender.err = nil
	replayed := p.Replay(ctx)

	assert.Equal(t, 1, replayed)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, string(sender.sent[0].Payload), "fresh")
	assert.False(t, p.Buffering())
}

func TestReplayReenqueuesFailuresAtTail(t *testing.T) {
	sender := &fakeSender{err: errors.New("down")}
	p := newTestPublisher(t, sender, 10)

	ctx := context.Background()
	p.Publish(ctx, ChannelEvents, map[string]int{"seq": 0})
	p.Publish(ctx, ChannelEvents, map[string]int{"seq": 1})

	// Transport still down: nothing replays, entries survive in order.
	replayed := p.Replay(ctx)
	assert.Zero(t, replayed)
	assert.Equal(t, 2, p.BufferStats().Size)
	assert.True(t, p.Buffering())

	sender.err = nil
	assert.Equal(t, 2, p.Replay(ctx))
	var first map[string]int
	require.NoError(t, json.Unmarshal(sender.sent[0].Payload, &first))
	assert.Equal(t, 0, first["seq"])
}

func TestReplayEmptyBufferClearsBufferingFlag(t *testing.T) {
	p := newTestPublisher(t, &fakeSender{}, 10)
	p.buffering.Store(true)

	assert.Zero(t, p.Replay(context.Background()))
	assert.False(t, p.Buffering())
}

func TestBufferDropsOldestWhenFull(t *testing.T) {
	sender := &fakeSender{err: errors.New("down")}
	p := newTestPublisher(t, sender, 2)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		p.Publish(ctx, ChannelEvents, map[string]int{"seq": i})
	}

	stats := p.BufferStats()
	assert.Equal(t, 2, stats.Size)
	assert.Equal(t, uint64(1), stats.Dropped)

	sender.err = nil
	p.Replay(ctx)
	var first map[string]int
	require.NoError(t, json.Unmarshal(sender.sent[0].Payload, &first))
	assert.Equal(t, 1, first["seq"])
}
