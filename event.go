package main

import (
	"context"
	"time"
)

// LogEntry is one record from a server's historical log feed.
// IDs increase per server but are not contiguous and are only unique within one feed.
type LogEntry struct {
	ID         int64
	Kind       string // CRCON log type, e.g. "CHAT[Allies][Unit]", "KILL", "CONNECTED"
	PlayerID   string
	PlayerName string
	Text       string // verbatim message content
	Raw        string // raw log line, used when structured identity is missing
}

// ChatEvent is a chat LogEntry with a resolved player identity.
type ChatEvent struct {
	ID         int64
	PlayerID   string
	PlayerName string
	Text       string
}

// LogSource fetches the most recent entries of one server, newest first.
type LogSource interface {
	FetchLogs(ctx context.Context, limit int) ([]LogEntry, error)
}

// Messenger delivers a private message to a player on one server.
type Messenger interface {
	MessagePlayer(ctx context.Context, playerID, message string) error
}

// Generator produces the message body for a matching event.
// Implementations must always return a usable string.
type Generator interface {
	Generate(ctx context.Context, event ChatEvent) string
}

// AuditRecord describes one handled event.
type AuditRecord struct {
	Server     string
	PlayerID   string
	PlayerName string
	Message    string // original chat text, original case
	Content    string // generated content that was sent
	Time       time.Time
}

// AuditSink accepts handled-event notifications. Publish must not block.
type AuditSink interface {
	Publish(rec AuditRecord)
}
