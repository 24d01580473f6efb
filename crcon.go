package main

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	logsEndpoint    = "get_historical_logs"
	messageEndpoint = "message_player"
	maxResponseSize = 4 << 20
)

// CRCONClient talks to the HTTP API of a Hell Let Loose community RCON instance.
// It implements both LogSource and Messenger.
type CRCONClient struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewCRCONClient(baseURL, token string, skipVerify bool) *CRCONClient {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if skipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &CRCONClient{
		baseURL: normalizeBaseURL(baseURL),
		token:   token,
		// Request deadlines come from the caller's context.
		client: &http.Client{Transport: transport},
	}
}

// crconEntry is the wire shape of one historical log record.
type crconEntry struct {
	ID          int64  `json:"id"`
	Type        string `json:"type"`
	Player1ID   string `json:"player1_id"`
	Player1Name string `json:"player1_name"`
	PlayerID    string `json:"player_id"`
	PlayerName  string `json:"player_name"`
	Content     string `json:"content"`
	Raw         string `json:"raw"`
}

func (e crconEntry) toLogEntry() LogEntry {
	le := LogEntry{
		ID:         e.ID,
		Kind:       e.Type,
		PlayerID:   e.Player1ID,
		PlayerName: e.Player1Name,
		Text:       e.Content,
		Raw:        e.Raw,
	}
	if le.PlayerID == "" {
		le.PlayerID = e.PlayerID
	}
	if le.PlayerName == "" {
		le.PlayerName = e.PlayerName
	}
	return le
}

func (c *CRCONClient) FetchLogs(ctx context.Context, limit int) ([]LogEntry, error) {
	body, err := c.post(ctx, logsEndpoint, map[string]any{"limit": limit})
	if err != nil {
		return nil, err
	}
	entries, err := decodeEntries(body)
	if err != nil {
		return nil, malformedError(logsEndpoint, err)
	}
	return entries, nil
}

// MessagePlayer succeeds only on a 2xx response whose envelope, if any, is not marked failed.
func (c *CRCONClient) MessagePlayer(ctx context.Context, playerID, message string) error {
	body, err := c.post(ctx, messageEndpoint, map[string]any{
		"player_id": playerID,
		"message":   message,
	})
	if err != nil {
		return err
	}
	var envelope struct {
		Failed bool   `json:"failed"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(bytes.TrimSpace(body), &envelope) == nil && envelope.Failed {
		return &CallError{Op: messageEndpoint, Kind: KindStatus, Status: http.StatusOK,
			Err: fmt.Errorf("api reported failure: %s", truncate(envelope.Error, 200))}
	}
	return nil
}

func (c *CRCONClient) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s request: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, callError(endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, callError(endpoint, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(endpoint, resp.StatusCode, truncate(strings.TrimSpace(string(body)), 200))
	}
	return body, nil
}

// decodeEntries accepts either {"result": [...]} or a bare array.
func decodeEntries(data []byte) ([]LogEntry, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	var raw []crconEntry
	if data[0] == '[' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	} else {
		var envelope struct {
			Result []crconEntry `json:"result"`
			Failed bool         `json:"failed"`
			Error  string       `json:"error"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			return nil, err
		}
		if envelope.Failed {
			return nil, fmt.Errorf("api reported failure: %s", envelope.Error)
		}
		raw = envelope.Result
	}

	entries := make([]LogEntry, 0, len(raw))
	for _, e := range raw {
		entries = append(entries, e.toLogEntry())
	}
	return entries, nil
}

// normalizeBaseURL guarantees a trailing slash so endpoints can be appended.
func normalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	if !strings.HasSuffix(u, "/") {
		u += "/"
	}
	return u
}

// serverLabel derives a short display name from a base URL, preferring its port.
func serverLabel(baseURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || parsed.Host == "" {
		return strings.TrimSpace(baseURL)
	}
	if port := parsed.Port(); port != "" {
		return "port " + port
	}
	return parsed.Hostname()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
