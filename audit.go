package main

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

const auditSendTimeout = 10 * time.Second

// AuditChannel is a destination for audit records (Discord, OTel logs, ...).
type AuditChannel interface {
	Name() string
	Send(ctx context.Context, rec AuditRecord) error
}

// AuditBridge queues audit records and fans them out to every channel.
// Publish never blocks the poll loop; records are dropped when the queue is full.
type AuditBridge struct {
	channels    []AuditChannel
	records     chan AuditRecord
	sendTimeout time.Duration
	dropped     atomic.Int64
	metrics     *Metrics
}

func NewAuditBridge(channels []AuditChannel, metrics *Metrics) *AuditBridge {
	return &AuditBridge{
		channels:    channels,
		records:     make(chan AuditRecord, 100),
		sendTimeout: auditSendTimeout,
		metrics:     metrics,
	}
}

func (b *AuditBridge) Publish(rec AuditRecord) {
	select {
	case b.records <- rec:
	default:
		b.dropped.Add(1)
		b.metrics.auditDropped(context.Background(), rec.Server)
		log.Printf("[%s] audit queue full, dropping record for %s", rec.Server, rec.PlayerName)
	}
}

// Dropped returns how many records were discarded because the queue was full.
func (b *AuditBridge) Dropped() int64 { return b.dropped.Load() }

// Run delivers queued records until ctx is done, then flushes what is already queued.
// A send in progress when ctx ends is finished, bounded by the send timeout.
func (b *AuditBridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			b.flush()
			return
		case rec := <-b.records:
			b.deliver(ctx, rec)
		}
	}
}

func (b *AuditBridge) flush() {
	ctx := context.Background()
	for {
		select {
		case rec := <-b.records:
			b.deliver(ctx, rec)
		default:
			return
		}
	}
}

func (b *AuditBridge) deliver(ctx context.Context, rec AuditRecord) {
	ctx = context.WithoutCancel(ctx)
	for _, ch := range b.channels {
		sendCtx, cancel := context.WithTimeout(ctx, b.sendTimeout)
		err := ch.Send(sendCtx, rec)
		cancel()
		if err != nil {
			log.Printf("[%s] audit to %s: %v", rec.Server, ch.Name(), err)
		}
	}
}
