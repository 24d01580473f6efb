package main

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// DispatchOutcome reports whether a private message reached the player.
type DispatchOutcome struct {
	Delivered bool
	Err       error
}

// Dispatcher sends generated content to players of one server, rate limited.
type Dispatcher struct {
	messenger Messenger
	limiter   *rate.Limiter
	footer    string
}

// NewDispatcher limits sends to perSecond with the given burst. perSecond <= 0 disables the limit.
func NewDispatcher(m Messenger, perSecond float64, burst int, footer string) *Dispatcher {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	if burst < 1 {
		burst = 1
	}
	return &Dispatcher{
		messenger: m,
		limiter:   rate.NewLimiter(limit, burst),
		footer:    strings.TrimSpace(footer),
	}
}

// Allow consumes one send token. It returns false when the server's budget is exhausted.
func (d *Dispatcher) Allow() bool {
	return d.limiter.Allow()
}

// Dispatch makes a single delivery attempt. It never panics on messenger errors.
func (d *Dispatcher) Dispatch(ctx context.Context, ev ChatEvent, payload string) (out DispatchOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = DispatchOutcome{Err: fmt.Errorf("message player: panic: %v", r)}
		}
	}()

	if err := d.messenger.MessagePlayer(ctx, ev.PlayerID, d.compose(payload)); err != nil {
		return DispatchOutcome{Err: err}
	}
	return DispatchOutcome{Delivered: true}
}

func (d *Dispatcher) compose(payload string) string {
	payload = strings.TrimSpace(payload)
	if d.footer == "" {
		return payload
	}
	return payload + "\n\n" + d.footer
}
