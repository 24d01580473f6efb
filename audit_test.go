package main

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recordingChannel struct {
	mu      sync.Mutex
	name    string
	err     error
	records []AuditRecord
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(ctx context.Context, rec AuditRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return c.err
}

func (c *recordingChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

func TestAuditBridgePublishNeverBlocks(t *testing.T) {
	b := NewAuditBridge(nil, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < cap(b.records)+5; i++ {
			b.Publish(AuditRecord{Server: "s1", PlayerName: "p"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked with no consumer")
	}
	if got := b.Dropped(); got != 5 {
		t.Errorf("Dropped = %d, want 5", got)
	}
}

func TestAuditBridgeDeliversToEveryChannel(t *testing.T) {
	failing := &recordingChannel{name: "failing", err: errors.New("down")}
	ok := &recordingChannel{name: "ok"}
	b := NewAuditBridge([]AuditChannel{failing, ok}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(stopped)
	}()

	b.Publish(AuditRecord{Server: "s1", PlayerID: "1"})
	b.Publish(AuditRecord{Server: "s1", PlayerID: "2"})

	deadline := time.Now().Add(2 * time.Second)
	for ok.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-stopped

	if ok.count() != 2 {
		t.Errorf("ok channel got %d records, want 2", ok.count())
	}
	if failing.count() != 2 {
		t.Errorf("a failing channel must not stop delivery, got %d records", failing.count())
	}
}

func TestAuditBridgeFlushesOnShutdown(t *testing.T) {
	ch := &recordingChannel{name: "ok"}
	b := NewAuditBridge([]AuditChannel{ch}, nil)

	b.Publish(AuditRecord{Server: "s1"})
	b.Publish(AuditRecord{Server: "s1"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b.Run(ctx)

	if ch.count() != 2 {
		t.Errorf("flushed %d records, want 2", ch.count())
	}
}

// gatedChannel blocks in Send until release is closed and records the context state it saw.
type gatedChannel struct {
	entered chan struct{}
	release chan struct{}
	ctxErr  error
	sent    atomic.Int64
}

func (c *gatedChannel) Name() string { return "gated" }

func (c *gatedChannel) Send(ctx context.Context, rec AuditRecord) error {
	close(c.entered)
	select {
	case <-c.release:
	case <-ctx.Done():
	}
	c.ctxErr = ctx.Err()
	if c.ctxErr != nil {
		return c.ctxErr
	}
	c.sent.Add(1)
	return nil
}

func TestAuditBridgeFinishesInFlightSendOnShutdown(t *testing.T) {
	ch := &gatedChannel{entered: make(chan struct{}), release: make(chan struct{})}
	b := NewAuditBridge([]AuditChannel{ch}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(stopped)
	}()

	b.Publish(AuditRecord{Server: "s1"})
	select {
	case <-ch.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("record never reached the channel")
	}

	cancel()
	time.Sleep(20 * time.Millisecond)
	close(ch.release)
	<-stopped

	if ch.ctxErr != nil {
		t.Errorf("send context ended with %v, want it to survive shutdown", ch.ctxErr)
	}
	if ch.sent.Load() != 1 {
		t.Errorf("sent = %d, want 1", ch.sent.Load())
	}
}

func TestAuditBridgeSendTimeout(t *testing.T) {
	ch := &gatedChannel{entered: make(chan struct{}), release: make(chan struct{})}
	b := NewAuditBridge([]AuditChannel{ch}, nil)
	b.sendTimeout = 20 * time.Millisecond

	b.deliver(context.Background(), AuditRecord{Server: "s1"})
	if ch.ctxErr == nil {
		t.Fatal("a hung send should be cut off by the send timeout")
	}
}
