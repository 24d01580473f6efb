package main

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		entry  LogEntry
		ok     bool
		player string
		pname  string
		text   string
	}{
		{
			name:   "structured chat",
			entry:  LogEntry{ID: 1, Kind: "CHAT[Allies][Unit]", PlayerID: "7656", PlayerName: "Bob", Text: "Sorry TK"},
			ok:     true,
			player: "7656", pname: "Bob", text: "Sorry TK",
		},
		{
			name:  "not chat",
			entry: LogEntry{ID: 2, Kind: "KILL", PlayerID: "7656", Text: "tk"},
		},
		{
			name:  "chat without identity",
			entry: LogEntry{ID: 3, Kind: "CHAT", Text: "tk"},
		},
		{
			name:   "missing name",
			entry:  LogEntry{ID: 4, Kind: "chat[axis]", PlayerID: " 42 ", Text: "hi"},
			ok:     true,
			player: "42", pname: unknownPlayer, text: "hi",
		},
		{
			name: "identity from raw line",
			entry: LogEntry{ID: 5, Kind: "CHAT[Axis][Team]",
				Raw: "CHAT[Axis][Hans (Müller)(Axis/76561198000000001)]: my bad, tk"},
			ok:     true,
			player: "76561198000000001", pname: "Hans (Müller)", text: "my bad, tk",
		},
		{
			name:  "unparseable raw line",
			entry: LogEntry{ID: 6, Kind: "CHAT", Raw: "CHAT something else"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, ok := Classify(tt.entry)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if !ok {
				return
			}
			if ev.ID != tt.entry.ID || ev.PlayerID != tt.player || ev.PlayerName != tt.pname || ev.Text != tt.text {
				t.Errorf("event = %+v, want id=%d player=%q name=%q text=%q",
					ev, tt.entry.ID, tt.player, tt.pname, tt.text)
			}
		})
	}
}

func TestTriggerMatcher(t *testing.T) {
	m := NewTriggerMatcher([]string{"TK", "friendly fire", "  ", ""})

	tests := map[string]bool{
		"sorry tk":                 true,
		"SORRY TK!!":               true,
		"oops, Friendly Fire":      true,
		"gg wp":                    false,
		"":                         false,
		"nice tkachenko reference": true, // substring matching, not word-aware
	}
	for text, want := range tests {
		if got := m.Matches(text); got != want {
			t.Errorf("Matches(%q) = %v, want %v", text, got, want)
		}
	}
	if len(m.phrases) != 2 {
		t.Errorf("phrases = %v, want blank phrases ignored", m.phrases)
	}
}
