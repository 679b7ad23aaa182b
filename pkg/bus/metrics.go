package bus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bus metrics
var (
	publishTotal      *prometheus.CounterVec
	bufferedTotal     *prometheus.CounterVec
	bufferDepth       prometheus.Gauge
	bufferDropped     prometheus.Counter
	breakerTransition *prometheus.CounterVec
	reconnectTotal    *prometheus.CounterVec
	dispatchedTotal   *prometheus.CounterVec
	handlerErrors     *prometheus.CounterVec
	malformedTotal    *prometheus.CounterVec
	busOnce           = make(chan struct{}, 1)
)

func initBusMetricsOnce() {
	select {
	case busOnce <- struct{}{}:
		publishTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_bus_publish_total",
				Help: "Publish attempts by channel and result",
			},
			[]string{"channel", "result"},
		)
		bufferedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_bus_buffered_total",
				Help: "Messages parked in the outbound buffer after a publish failure",
			},
			[]string{"channel"},
		)
		bufferDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sigfuse_bus_buffer_depth",
				Help: "Current outbound buffer occupancy",
			},
		)
		bufferDropped = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "sigfuse_bus_buffer_dropped_total",
				Help: "Buffered messages evicted because the buffer was full",
			},
		)
		breakerTransition = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_bus_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		)
		reconnectTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_bus_reconnect_attempts_total",
				Help: "Reconnect attempts by result",
			},
			[]string{"result"},
		)
		dispatchedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_bus_dispatched_total",
				Help: "Messages dispatched to handlers by channel",
			},
			[]string{"channel"},
		)
		handlerErrors = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_bus_handler_errors_total",
				Help: "Handler errors by channel",
			},
			[]string{"channel"},
		)
		malformedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sigfuse_bus_malformed_total",
				Help: "Malformed payloads dropped at the subscriber boundary",
			},
			[]string{"channel"},
		)
	default:
		// already initialized
	}
}
