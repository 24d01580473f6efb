package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// RCONSource reads the log feed through a console command that prints the
// same JSON the CRCON HTTP API returns, e.g. "get_historical_logs {limit}".
type RCONSource struct {
	rcon    commandExecutor
	command string
}

func NewRCONSource(exec commandExecutor, command string) *RCONSource {
	return &RCONSource{rcon: exec, command: command}
}

func (s *RCONSource) FetchLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	cmd := strings.ReplaceAll(s.command, "{limit}", strconv.Itoa(limit))
	resp, err := executeContext(ctx, s.rcon, cmd)
	if err != nil {
		return nil, err
	}

	resp = strings.TrimSpace(resp)
	if resp == "" || resp == "[]" {
		return nil, nil
	}
	entries, err := decodeEntries([]byte(resp))
	if err != nil {
		return nil, malformedError("rcon logs", fmt.Errorf("%w (resp=%.200s)", err, resp))
	}
	return entries, nil
}

// RCONMessenger sends private messages with a command template containing
// {player_id} and {message} placeholders.
type RCONMessenger struct {
	rcon     commandExecutor
	template string
	expect   string // substring required in the response; empty accepts any
}

func NewRCONMessenger(exec commandExecutor, template, expect string) *RCONMessenger {
	return &RCONMessenger{rcon: exec, template: template, expect: expect}
}

func (m *RCONMessenger) MessagePlayer(ctx context.Context, playerID, message string) error {
	if !validPlayerID(playerID) {
		return malformedError("rcon message", fmt.Errorf("player id %q is not a single token", playerID))
	}
	cmd := strings.NewReplacer(
		"{player_id}", playerID,
		"{message}", escapeCommandArg(message),
	).Replace(m.template)

	resp, err := executeContext(ctx, m.rcon, cmd)
	if err != nil {
		return err
	}
	if m.expect != "" && !strings.Contains(resp, m.expect) {
		return &CallError{Op: "rcon message", Kind: KindStatus, Err: fmt.Errorf("unexpected response %.200q", resp)}
	}
	return nil
}

// validPlayerID accepts ids that cannot break out of a command argument.
func validPlayerID(id string) bool {
	if id == "" {
		return false
	}
	for _, r := range id {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(`"'\{}`, r) {
			return false
		}
	}
	return true
}

func escapeCommandArg(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return s
}

// executeContext runs cmd and gives up waiting once ctx is done. The RCON
// connection itself is bounded by its own deadline, so the goroutine cannot leak forever.
func executeContext(ctx context.Context, exec commandExecutor, cmd string) (string, error) {
	type result struct {
		resp string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := exec.Execute(cmd)
		done <- result{resp, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", callError("rcon", r.err)
		}
		return r.resp, nil
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &CallError{Op: "rcon", Kind: KindTimeout, Err: err}
		}
		return "", callError("rcon", err)
	}
}
