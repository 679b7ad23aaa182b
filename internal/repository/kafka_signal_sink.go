package repository

import (
	"context"

	"SigFuse/internal/domain/models"
	domrepo "SigFuse/internal/domain/repository"
	pkgkafka "SigFuse/pkg/kafka"
)

// KafkaSignalSink mirrors emitted signals to a Kafka audit topic, keyed by
// signal type so per-decision ordering is preserved within a partition.
type KafkaSignalSink struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaSignalSink creates the audit sink.
func NewKafkaSignalSink(producer *pkgkafka.Producer, topic string) domrepo.SignalSink {
	if topic == "" {
		topic = "signals.audit"
	}
	return &KafkaSignalSink{producer: producer, topic: topic}
}

func (k *KafkaSignalSink) Emit(ctx context.Context, s *models.TradingSignal) error {
	return k.producer.Publish(ctx, k.topic, []byte(s.SignalType), models.NewSignalPayload(s))
}

func (k *KafkaSignalSink) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}
