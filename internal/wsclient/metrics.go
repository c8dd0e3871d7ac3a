package wsclient

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const (
	tracerName = "github.com/fd1az/venue-gateway/internal/wsclient"
	meterName  = "github.com/fd1az/venue-gateway/internal/wsclient"
)

type clientMetrics struct {
	messagesReceived metric.Int64Counter
	messagesSent     metric.Int64Counter
	reconnectsTotal  metric.Int64Counter
	droppedMessages  metric.Int64Counter
	pingsTotal       metric.Int64Counter
	pingsFailed      metric.Int64Counter
}

func newClientMetrics() (*clientMetrics, error) {
	meter := otel.Meter(meterName)
	m := &clientMetrics{}
	var err error

	if m.messagesReceived, err = meter.Int64Counter(
		"wsclient_messages_received_total",
		metric.WithDescription("Upstream messages decoded and forwarded"),
	); err != nil {
		return nil, err
	}
	if m.messagesSent, err = meter.Int64Counter(
		"wsclient_messages_sent_total",
		metric.WithDescription("Frames written to the upstream connection"),
	); err != nil {
		return nil, err
	}
	if m.reconnectsTotal, err = meter.Int64Counter(
		"wsclient_reconnects_total",
		metric.WithDescription("Watchdog-triggered reconnect attempts"),
	); err != nil {
		return nil, err
	}
	if m.droppedMessages, err = meter.Int64Counter(
		"wsclient_messages_dropped_total",
		metric.WithDescription("Frames dropped: a full outbound or inbound buffer, or an inbound frame that is not valid JSON"),
	); err != nil {
		return nil, err
	}
	if m.pingsTotal, err = meter.Int64Counter(
		"wsclient_pings_total",
		metric.WithDescription("Heartbeat pings sent"),
	); err != nil {
		return nil, err
	}
	if m.pingsFailed, err = meter.Int64Counter(
		"wsclient_pings_failed_total",
		metric.WithDescription("Heartbeat pings that found the connection dead"),
	); err != nil {
		return nil, err
	}

	return m, nil
}
