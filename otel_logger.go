package main

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
)

// OTelAudit exports audit records as structured OTel log records.
type OTelAudit struct {
	logger otellog.Logger
}

func NewOTelAudit(logger otellog.Logger) *OTelAudit {
	return &OTelAudit{logger: logger}
}

func (a *OTelAudit) Name() string { return "OTel" }

func (a *OTelAudit) Send(ctx context.Context, rec AuditRecord) error {
	logEvent(ctx, a.logger, "tk_joke", rec.Time,
		otellog.String("server", rec.Server),
		otellog.String("player", rec.PlayerName),
		otellog.String("player_id", rec.PlayerID),
		otellog.String("message", rec.Message),
		otellog.String("content", rec.Content),
	)
	return nil
}

func logEvent(ctx context.Context, logger otellog.Logger, event string, ts time.Time, attrs ...otellog.KeyValue) {
	var r otellog.Record
	r.SetTimestamp(ts)
	r.SetObservedTimestamp(time.Now())
	r.SetBody(otellog.StringValue(event))
	r.SetSeverity(otellog.SeverityInfo)
	r.AddAttributes(attrs...)
	logger.Emit(ctx, r)
}
