package main

import (
	"context"
	"testing"
)

type panicMessenger struct{}

func (panicMessenger) MessagePlayer(ctx context.Context, playerID, message string) error {
	panic("rcon exploded")
}

func TestDispatcherAppendsFooter(t *testing.T) {
	msg := &fakeMessenger{}
	d := NewDispatcher(msg, 0, 1, " discord.gg/gbg-hll ")

	out := d.Dispatch(context.Background(), ChatEvent{PlayerID: "765"}, "  a joke \n")
	if !out.Delivered || out.Err != nil {
		t.Fatalf("outcome = %+v", out)
	}
	if got, want := msg.sent[0].message, "a joke\n\ndiscord.gg/gbg-hll"; got != want {
		t.Errorf("message = %q, want %q", got, want)
	}
	if msg.sent[0].playerID != "765" {
		t.Errorf("player = %q", msg.sent[0].playerID)
	}
}

func TestDispatcherReportsFailure(t *testing.T) {
	d := NewDispatcher(&fakeMessenger{fail: true}, 0, 1, "")
	out := d.Dispatch(context.Background(), ChatEvent{PlayerID: "1"}, "x")
	if out.Delivered || out.Err == nil {
		t.Fatalf("outcome = %+v, want failure", out)
	}
	if errorKind(out.Err) != "status" {
		t.Errorf("kind = %s, want status", errorKind(out.Err))
	}
}

func TestDispatcherRecoversPanic(t *testing.T) {
	d := NewDispatcher(panicMessenger{}, 0, 1, "")
	out := d.Dispatch(context.Background(), ChatEvent{PlayerID: "1"}, "x")
	if out.Delivered || out.Err == nil {
		t.Fatalf("outcome = %+v, want recovered failure", out)
	}
}

func TestDispatcherAllowHonoursBurst(t *testing.T) {
	d := NewDispatcher(&fakeMessenger{}, 0.001, 2, "")
	if !d.Allow() || !d.Allow() {
		t.Fatal("burst of 2 should allow two sends")
	}
	if d.Allow() {
		t.Error("third send should be throttled")
	}

	unlimited := NewDispatcher(&fakeMessenger{}, 0, 0, "")
	for i := 0; i < 100; i++ {
		if !unlimited.Allow() {
			t.Fatalf("send %d throttled with rate limiting disabled", i)
		}
	}
}
