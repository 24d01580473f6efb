package main

import (
	"context"
	"log"
	"time"
)

// Server bundles everything one poll loop needs for a single monitored server.
type Server struct {
	Name       string
	Source     LogSource
	Dispatcher *Dispatcher
	State      *ServerState
}

// CycleOptions are the static tunables of a server cycle.
type CycleOptions struct {
	BatchSize        int
	CooldownWindow   time.Duration
	CooldownTTL      time.Duration
	MaxAttempts      int
	RequestTimeout   time.Duration
	GeneratorTimeout time.Duration
}

// CycleStats summarizes one cycle for logs and metrics.
type CycleStats struct {
	Fetched    int
	New        int
	Matched    int
	Suppressed int // matched but cooling down
	Dispatched int
	Failed     int
	Throttled  int
}

// Monitor runs server cycles. It holds no per-server state; that lives in Server.State.
type Monitor struct {
	opts      CycleOptions
	matcher   *TriggerMatcher
	generator Generator
	audit     AuditSink
	metrics   *Metrics
	now       func() time.Time
}

func NewMonitor(opts CycleOptions, matcher *TriggerMatcher, gen Generator, audit AuditSink, metrics *Metrics) *Monitor {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if opts.GeneratorTimeout <= 0 {
		opts.GeneratorTimeout = 5 * time.Second
	}
	return &Monitor{
		opts:      opts,
		matcher:   matcher,
		generator: gen,
		audit:     audit,
		metrics:   metrics,
		now:       time.Now,
	}
}

// RunCycle performs one fetch-classify-match-dispatch pass for srv.
func (m *Monitor) RunCycle(ctx context.Context, srv *Server) CycleStats {
	var stats CycleStats
	start := time.Now()
	defer func() { m.metrics.recordCycle(ctx, srv.Name, stats, time.Since(start)) }()

	fetchCtx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	batch, err := srv.Source.FetchLogs(fetchCtx, m.opts.BatchSize)
	cancel()
	if err != nil {
		log.Printf("[%s] fetch logs (%s): %v", srv.Name, errorKind(err), err)
		m.metrics.fetchError(ctx, srv.Name, errorKind(err))
		return stats
	}
	stats.Fetched = len(batch)
	if len(batch) == 0 {
		return stats
	}

	st := srv.State
	var candidates []LogEntry
	var maxID int64
	fresh := false
	for _, e := range batch {
		if e.ID > maxID {
			maxID = e.ID
		}
		switch {
		case e.ID > st.HighWaterMark():
			fresh = true
			stats.New++
			candidates = append(candidates, e)
		case st.PendingRetry(e.ID):
			candidates = append(candidates, e)
		}
	}
	if fresh {
		st.Advance(maxID)
	}

	now := m.now()
	// The source returns newest first; dispatch in chronological order.
	for i := len(candidates) - 1; i >= 0; i-- {
		m.handleEntry(ctx, srv, candidates[i], now, &stats)
	}

	st.PurgeCooldowns(now, m.opts.CooldownTTL)
	return stats
}

func (m *Monitor) handleEntry(ctx context.Context, srv *Server, e LogEntry, now time.Time, stats *CycleStats) {
	st := srv.State
	if st.Seen(e.ID) {
		return
	}
	ev, ok := Classify(e)
	if !ok || !m.matcher.Matches(ev.Text) {
		st.Drop(e.ID)
		return
	}
	stats.Matched++
	m.metrics.matched(ctx, srv.Name)

	if st.CoolingDown(ev.PlayerID, now, m.opts.CooldownWindow) {
		stats.Suppressed++
		st.Drop(e.ID)
		return
	}

	if !srv.Dispatcher.Allow() {
		stats.Throttled++
		st.MarkDeferred(e.ID)
		m.metrics.dispatch(ctx, srv.Name, "throttled")
		return
	}

	genCtx, cancel := context.WithTimeout(ctx, m.opts.GeneratorTimeout)
	content := m.generator.Generate(genCtx, ev)
	cancel()

	sendCtx, cancel := context.WithTimeout(ctx, m.opts.RequestTimeout)
	out := srv.Dispatcher.Dispatch(sendCtx, ev, content)
	cancel()

	if out.Delivered {
		stats.Dispatched++
		st.MarkHandled(e.ID, ev.PlayerID, now)
		log.Printf("[%s] sent message to %s (%s) for event %d", srv.Name, ev.PlayerName, ev.PlayerID, e.ID)
		m.audit.Publish(AuditRecord{
			Server:     srv.Name,
			PlayerID:   ev.PlayerID,
			PlayerName: ev.PlayerName,
			Message:    ev.Text,
			Content:    content,
			Time:       now,
		})
		m.metrics.dispatch(ctx, srv.Name, "delivered")
		return
	}

	stats.Failed++
	if st.MarkFailed(e.ID, m.opts.MaxAttempts) {
		log.Printf("[%s] message to %s failed, will retry event %d: %v", srv.Name, ev.PlayerName, e.ID, out.Err)
	} else {
		log.Printf("[%s] message to %s failed, giving up on event %d: %v", srv.Name, ev.PlayerName, e.ID, out.Err)
	}
	m.metrics.dispatch(ctx, srv.Name, "failed")
}
