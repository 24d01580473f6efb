package main

import (
	"regexp"
	"strings"
)

const unknownPlayer = "Unknown"

// rawChatPattern matches CRCON chat lines such as
// "CHAT[Allies][Some Name(Allies/76561198000000000)]: sorry tk".
var rawChatPattern = regexp.MustCompile(`^CHAT\[[^\]]*\]\[(.+)\((?:Allies|Axis|None)/([^()]+)\)\]:\s?(.*)$`)

// Classify returns the chat event carried by entry, if any.
// Entries that are not chat, or whose player cannot be identified, are dropped.
func Classify(entry LogEntry) (ChatEvent, bool) {
	if !strings.Contains(strings.ToUpper(entry.Kind), "CHAT") {
		return ChatEvent{}, false
	}

	ev := ChatEvent{
		ID:         entry.ID,
		PlayerID:   strings.TrimSpace(entry.PlayerID),
		PlayerName: strings.TrimSpace(entry.PlayerName),
		Text:       entry.Text,
	}

	if ev.PlayerID == "" {
		m := rawChatPattern.FindStringSubmatch(strings.TrimSpace(entry.Raw))
		if m == nil {
			return ChatEvent{}, false
		}
		ev.PlayerID = strings.TrimSpace(m[2])
		if ev.PlayerName == "" {
			ev.PlayerName = strings.TrimSpace(m[1])
		}
		if ev.Text == "" {
			ev.Text = m[3]
		}
	}
	if ev.PlayerID == "" {
		return ChatEvent{}, false
	}
	if ev.PlayerName == "" {
		ev.PlayerName = unknownPlayer
	}
	return ev, true
}

// TriggerMatcher reports whether chat text contains any trigger phrase.
// Matching is a case-insensitive substring test, so "tk" also matches inside longer words.
type TriggerMatcher struct {
	phrases []string
}

func NewTriggerMatcher(phrases []string) *TriggerMatcher {
	m := &TriggerMatcher{}
	for _, p := range phrases {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			m.phrases = append(m.phrases, p)
		}
	}
	return m
}

func (m *TriggerMatcher) Matches(text string) bool {
	lower := strings.ToLower(text)
	for _, p := range m.phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
