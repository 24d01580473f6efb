package main

import "time"

// ServerState is the mutable ingestion state of one monitored server.
// It is owned by that server's poll loop and is never shared, so it has no lock.
type ServerState struct {
	highWaterMark int64
	seen          *seenRing
	cooldowns     map[string]time.Time

	// retries holds IDs already passed by the watermark whose dispatch failed
	// or was throttled; attempts counts failed deliveries per pending ID.
	retries  *seenRing
	attempts map[int64]int
}

func NewServerState(capacity int) *ServerState {
	s := &ServerState{
		seen:      newSeenRing(capacity),
		cooldowns: make(map[string]time.Time),
		retries:   newSeenRing(capacity),
		attempts:  make(map[int64]int),
	}
	s.retries.onEvict = func(id int64) { delete(s.attempts, id) }
	return s
}

func (s *ServerState) HighWaterMark() int64 { return s.highWaterMark }

// Advance raises the watermark to id. Lower values are ignored.
func (s *ServerState) Advance(id int64) {
	if id > s.highWaterMark {
		s.highWaterMark = id
	}
}

func (s *ServerState) Seen(id int64) bool { return s.seen.Contains(id) }

func (s *ServerState) SeenLen() int { return s.seen.Len() }

func (s *ServerState) PendingRetry(id int64) bool { return s.retries.Contains(id) }

func (s *ServerState) PendingLen() int { return s.retries.Len() }

// CoolingDown reports whether player last triggered a dispatch less than window ago.
func (s *ServerState) CoolingDown(playerID string, now time.Time, window time.Duration) bool {
	last, ok := s.cooldowns[playerID]
	if !ok {
		return false
	}
	return now.Sub(last) < window
}

// MarkHandled records a successful dispatch of event id for player.
func (s *ServerState) MarkHandled(id int64, playerID string, now time.Time) {
	s.seen.Add(id)
	s.cooldowns[playerID] = now
	s.retries.Remove(id)
	delete(s.attempts, id)
}

// MarkFailed keeps id eligible for retry. It returns false once id has failed
// maxAttempts times (0 means unlimited); the ID is then dropped and, being below
// the watermark, never considered again.
func (s *ServerState) MarkFailed(id int64, maxAttempts int) bool {
	s.attempts[id]++
	if maxAttempts > 0 && s.attempts[id] >= maxAttempts {
		s.Drop(id)
		return false
	}
	s.retries.Add(id)
	return true
}

// MarkDeferred keeps id eligible for retry without counting an attempt.
func (s *ServerState) MarkDeferred(id int64) {
	s.retries.Add(id)
}

// Drop forgets a pending retry, e.g. when the event no longer qualifies.
func (s *ServerState) Drop(id int64) {
	s.retries.Remove(id)
	delete(s.attempts, id)
}

// PurgeCooldowns removes cooldown entries older than ttl.
func (s *ServerState) PurgeCooldowns(now time.Time, ttl time.Duration) int {
	n := 0
	cutoff := now.Add(-ttl)
	for player, t := range s.cooldowns {
		if !t.After(cutoff) {
			delete(s.cooldowns, player)
			n++
		}
	}
	return n
}

func (s *ServerState) CooldownLen() int { return len(s.cooldowns) }
