package websocket

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metrics records event stream activity.
type Metrics struct {
	connectionsActive  metric.Int64UpDownCounter
	connectionDuration metric.Float64Histogram
	messagesSent       metric.Int64Counter
	droppedMessages    metric.Int64Counter
}

// NewMetrics creates the event stream instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	active, err := meter.Int64UpDownCounter("websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"))
	if err != nil {
		return nil, fmt.Errorf("failed to create connections gauge: %w", err)
	}
	duration, err := meter.Float64Histogram("websocket_connection_duration_seconds",
		metric.WithDescription("Duration of WebSocket connections"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("failed to create connection duration histogram: %w", err)
	}
	sent, err := meter.Int64Counter("websocket_messages_sent_total",
		metric.WithDescription("Messages queued for delivery to clients"))
	if err != nil {
		return nil, fmt.Errorf("failed to create messages counter: %w", err)
	}
	dropped, err := meter.Int64Counter("websocket_dropped_messages_total",
		metric.WithDescription("Messages dropped because a client buffer was full"))
	if err != nil {
		return nil, fmt.Errorf("failed to create dropped messages counter: %w", err)
	}

	return &Metrics{
		connectionsActive:  active,
		connectionDuration: duration,
		messagesSent:       sent,
		droppedMessages:    dropped,
	}, nil
}

// NoopMetrics discards all measurements.
func NoopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider().Meter("websocket"))
	return m
}

func (m *Metrics) connected(ctx context.Context) {
	m.connectionsActive.Add(ctx, 1)
}

func (m *Metrics) disconnected(ctx context.Context, d time.Duration) {
	m.connectionsActive.Add(ctx, -1)
	m.connectionDuration.Record(ctx, d.Seconds())
}

func (m *Metrics) sent(ctx context.Context, messageType string) {
	m.messagesSent.Add(ctx, 1, metric.WithAttributes(attribute.String("type", messageType)))
}

func (m *Metrics) dropped(ctx context.Context) {
	m.droppedMessages.Add(ctx, 1)
}
