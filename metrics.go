package main

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the OTel instruments of the monitor. A nil *Metrics records nothing.
type Metrics struct {
	cycles        metric.Int64Counter
	cycleDuration metric.Float64Histogram
	fetchErrors   metric.Int64Counter
	fetched       metric.Int64Counter
	matches       metric.Int64Counter
	dispatches    metric.Int64Counter
	dropped       metric.Int64Counter
}

func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter("hll-tkbot")
	var m Metrics
	var err error

	if m.cycles, err = meter.Int64Counter("tkbot.cycles",
		metric.WithDescription("Completed server poll cycles")); err != nil {
		return nil, fmt.Errorf("cycles counter: %w", err)
	}
	if m.cycleDuration, err = meter.Float64Histogram("tkbot.cycle.duration",
		metric.WithDescription("Duration of one server poll cycle"), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("cycle duration histogram: %w", err)
	}
	if m.fetchErrors, err = meter.Int64Counter("tkbot.fetch.errors",
		metric.WithDescription("Failed log fetches by error kind")); err != nil {
		return nil, fmt.Errorf("fetch errors counter: %w", err)
	}
	if m.fetched, err = meter.Int64Counter("tkbot.entries.new",
		metric.WithDescription("Log entries newer than the watermark")); err != nil {
		return nil, fmt.Errorf("entries counter: %w", err)
	}
	if m.matches, err = meter.Int64Counter("tkbot.events.matched",
		metric.WithDescription("Chat events matching a trigger phrase")); err != nil {
		return nil, fmt.Errorf("matched counter: %w", err)
	}
	if m.dispatches, err = meter.Int64Counter("tkbot.dispatches",
		metric.WithDescription("Private message attempts by result")); err != nil {
		return nil, fmt.Errorf("dispatches counter: %w", err)
	}
	if m.dropped, err = meter.Int64Counter("tkbot.audit.dropped",
		metric.WithDescription("Audit records dropped because the queue was full")); err != nil {
		return nil, fmt.Errorf("audit dropped counter: %w", err)
	}
	return &m, nil
}

func serverAttr(server string) attribute.KeyValue { return attribute.String("server", server) }

func (m *Metrics) recordCycle(ctx context.Context, server string, stats CycleStats, d time.Duration) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(serverAttr(server))
	m.cycles.Add(ctx, 1, attrs)
	m.cycleDuration.Record(ctx, d.Seconds(), attrs)
	if stats.New > 0 {
		m.fetched.Add(ctx, int64(stats.New), attrs)
	}
}

func (m *Metrics) fetchError(ctx context.Context, server, kind string) {
	if m == nil {
		return
	}
	m.fetchErrors.Add(ctx, 1, metric.WithAttributes(serverAttr(server), attribute.String("kind", kind)))
}

func (m *Metrics) matched(ctx context.Context, server string) {
	if m == nil {
		return
	}
	m.matches.Add(ctx, 1, metric.WithAttributes(serverAttr(server)))
}

func (m *Metrics) dispatch(ctx context.Context, server, result string) {
	if m == nil {
		return
	}
	m.dispatches.Add(ctx, 1, metric.WithAttributes(serverAttr(server), attribute.String("result", result)))
}

func (m *Metrics) auditDropped(ctx context.Context, server string) {
	if m == nil {
		return
	}
	m.dropped.Add(ctx, 1, metric.WithAttributes(serverAttr(server)))
}
