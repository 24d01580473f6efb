package main

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
)

// serverCounters are lifetime totals for one server, read by the heartbeat.
type serverCounters struct {
	cycles     atomic.Int64
	dispatched atomic.Int64
	failed     atomic.Int64
	panics     atomic.Int64
	watermark  atomic.Int64
}

// Scheduler drives server cycles for the lifetime of the process.
type Scheduler struct {
	monitor      *Monitor
	servers      []*Server
	mode         string
	interval     time.Duration
	serverDelay  time.Duration
	errorBackoff time.Duration
	heartbeat    string

	counters map[string]*serverCounters
}

type SchedulerOptions struct {
	Mode         string
	Interval     time.Duration
	ServerDelay  time.Duration
	ErrorBackoff time.Duration
	Heartbeat    string // cron expression, empty disables
}

func NewScheduler(m *Monitor, servers []*Server, opts SchedulerOptions) *Scheduler {
	s := &Scheduler{
		monitor:      m,
		servers:      servers,
		mode:         opts.Mode,
		interval:     opts.Interval,
		serverDelay:  opts.ServerDelay,
		errorBackoff: opts.ErrorBackoff,
		heartbeat:    opts.Heartbeat,
		counters:     make(map[string]*serverCounters, len(servers)),
	}
	for _, srv := range servers {
		s.counters[srv.Name] = &serverCounters{}
	}
	return s
}

// Run polls until ctx is done. Cancellation stops new cycles; a cycle already
// in flight runs to completion before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	if s.heartbeat != "" {
		c := cron.New()
		if _, err := c.AddFunc(s.heartbeat, s.logHeartbeat); err != nil {
			log.Printf("heartbeat disabled: %v", err)
		} else {
			c.Start()
			defer c.Stop()
		}
	}

	if s.mode == ModeConcurrent {
		var wg sync.WaitGroup
		for _, srv := range s.servers {
			wg.Add(1)
			go func(srv *Server) {
				defer wg.Done()
				s.runServer(ctx, srv)
			}(srv)
		}
		wg.Wait()
		return
	}
	s.runSequential(ctx)
}

// RunOnce performs one cycle for every server, sequentially.
func (s *Scheduler) RunOnce(ctx context.Context) {
	for _, srv := range s.servers {
		if ctx.Err() != nil {
			return
		}
		s.cycle(ctx, srv)
	}
}

func (s *Scheduler) runServer(ctx context.Context, srv *Server) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if !s.cycle(ctx, srv) && !sleepCtx(ctx, s.errorBackoff) {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) runSequential(ctx context.Context) {
	for {
		for i, srv := range s.servers {
			if ctx.Err() != nil {
				return
			}
			if !s.cycle(ctx, srv) && !sleepCtx(ctx, s.errorBackoff) {
				return
			}
			if i < len(s.servers)-1 && !sleepCtx(ctx, s.serverDelay) {
				return
			}
		}
		if !sleepCtx(ctx, s.interval) {
			return
		}
	}
}

// cycle runs one server cycle shielded from cancellation and from panics.
// It returns false if the cycle panicked.
func (s *Scheduler) cycle(ctx context.Context, srv *Server) (ok bool) {
	c := s.counters[srv.Name]
	defer func() {
		if r := recover(); r != nil {
			c.panics.Add(1)
			log.Printf("[%s] cycle panic: %v", srv.Name, r)
			ok = false
		}
	}()

	stats := s.monitor.RunCycle(context.WithoutCancel(ctx), srv)
	c.cycles.Add(1)
	c.dispatched.Add(int64(stats.Dispatched))
	c.failed.Add(int64(stats.Failed))
	c.watermark.Store(srv.State.HighWaterMark())
	if stats.Matched > 0 {
		log.Printf("[%s] cycle: %s", srv.Name, stats)
	}
	return true
}

func (s *Scheduler) logHeartbeat() {
	for _, srv := range s.servers {
		c := s.counters[srv.Name]
		log.Printf("[%s] running: cycles=%d dispatched=%d failed=%d panics=%d watermark=%d",
			srv.Name, c.cycles.Load(), c.dispatched.Load(), c.failed.Load(), c.panics.Load(), c.watermark.Load())
	}
}

func (cs CycleStats) String() string {
	return fmt.Sprintf("fetched=%d new=%d matched=%d suppressed=%d throttled=%d dispatched=%d failed=%d",
		cs.Fetched, cs.New, cs.Matched, cs.Suppressed, cs.Throttled, cs.Dispatched, cs.Failed)
}

// sleepCtx waits for d and reports false if ctx ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
