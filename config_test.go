package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"CONFIG_PATH", "CRCON_BASE_URLS", "CRCON_BASE_URL", "CRCON_TOKEN", "RCON_PASSWORD",
		"XAI_API_KEY", "DISCORD_WEBHOOK_URL", "DISCORD_BOT_TOKEN", "DISCORD_CHANNEL_ID",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigFromEnvOnly(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRCON_BASE_URLS", "https://a.example.com:8010/api, https://b.example.com:8011/api/ ,")
	t.Setenv("CRCON_TOKEN", "tok")
	t.Setenv("XAI_API_KEY", "key")
	t.Setenv("DISCORD_WEBHOOK_URL", "https://discord.com/api/webhooks/1/abc")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.Servers) != 2 {
		t.Fatalf("servers = %d, want 2", len(cfg.Servers))
	}
	if s := cfg.Servers[0]; s.URL != "https://a.example.com:8010/api/" || s.Name != "port 8010" || s.Transport != TransportHTTP {
		t.Errorf("servers[0] = %+v", s)
	}
	if cfg.Servers[1].Name != "port 8011" {
		t.Errorf("servers[1].Name = %q", cfg.Servers[1].Name)
	}
	if cfg.CRCON.Token != "tok" || cfg.Generator.APIKey != "key" {
		t.Error("secrets not applied from env")
	}
	if !cfg.Discord.Enabled {
		t.Error("discord should stay enabled with a webhook url")
	}
	if cfg.State.SeenCapacity != 2000 || cfg.State.Cooldown != time.Minute || cfg.Poll.BatchSize != 200 {
		t.Errorf("defaults not applied: %+v %+v", cfg.State, cfg.Poll)
	}
	if cfg.State.MaxAttempts != 0 {
		t.Errorf("max_attempts default = %d, want 0 (retry while in the fetch window)", cfg.State.MaxAttempts)
	}
}

func TestLoadConfigSingleURLFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRCON_BASE_URL", "http://10.0.0.1:7010/api")
	t.Setenv("CRCON_TOKEN", "tok")

	cfg, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].URL != "http://10.0.0.1:7010/api/" {
		t.Errorf("servers = %+v", cfg.Servers)
	}
	if cfg.Discord.Enabled {
		t.Error("discord should be disabled without credentials")
	}
}

func TestLoadConfigFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRCON_TOKEN", "tok")
	t.Setenv("RCON_PASSWORD", "pw")
	path := writeConfig(t, `
servers:
  - name: main
    url: https://rcon.example.com/api
  - name: event
    transport: RCON
    rcon:
      host: 10.0.0.2
      port: "27015"
      logs_command: "get_historical_logs {limit}"
      message_command: "message_player {player_id} {message}"
triggers: ["oops", "my bad"]
poll:
  mode: concurrent
  interval: 30s
  heartbeat: "@hourly"
state:
  cooldown: 2m
  cooldown_ttl: 30m
  max_attempts: 5
dispatch:
  footer: discord.gg/example
`)

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if len(cfg.Servers) != 2 || cfg.Servers[1].Transport != TransportRCON {
		t.Fatalf("servers = %+v", cfg.Servers)
	}
	if cfg.Poll.Mode != ModeConcurrent || cfg.Poll.Interval != 30*time.Second {
		t.Errorf("poll = %+v", cfg.Poll)
	}
	if cfg.Poll.BatchSize != 200 {
		t.Errorf("batch size default lost: %d", cfg.Poll.BatchSize)
	}
	if strings.Join(cfg.Triggers, ",") != "oops,my bad" {
		t.Errorf("triggers = %v", cfg.Triggers)
	}
	if cfg.State.Cooldown != 2*time.Minute || cfg.State.CooldownTTL != 30*time.Minute || cfg.State.MaxAttempts != 5 {
		t.Errorf("state = %+v", cfg.State)
	}
	if cfg.Dispatch.Footer != "discord.gg/example" {
		t.Errorf("footer = %q", cfg.Dispatch.Footer)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		file    string
		wantErr string
	}{
		{
			name:    "no servers",
			env:     map[string]string{"CRCON_TOKEN": "tok"},
			wantErr: "no servers configured",
		},
		{
			name:    "missing token",
			env:     map[string]string{"CRCON_BASE_URL": "http://x/api"},
			wantErr: "CRCON_TOKEN",
		},
		{
			name:    "bot token without channel",
			env:     map[string]string{"CRCON_BASE_URL": "http://x/api", "CRCON_TOKEN": "t", "DISCORD_BOT_TOKEN": "b"},
			wantErr: "DISCORD_CHANNEL_ID",
		},
		{
			name:    "bad mode",
			env:     map[string]string{"CRCON_BASE_URL": "http://x/api", "CRCON_TOKEN": "t"},
			file:    "poll:\n  mode: parallel\n",
			wantErr: "poll.mode",
		},
		{
			name:    "bad heartbeat",
			env:     map[string]string{"CRCON_BASE_URL": "http://x/api", "CRCON_TOKEN": "t"},
			file:    "poll:\n  heartbeat: \"every now and then\"\n",
			wantErr: "poll.heartbeat",
		},
		{
			name:    "rcon without password",
			file:    "servers:\n  - transport: rcon\n    rcon: {host: h, port: \"1\", logs_command: l, message_command: m}\n",
			wantErr: "RCON_PASSWORD",
		},
		{
			name:    "ttl shorter than cooldown",
			env:     map[string]string{"CRCON_BASE_URL": "http://x/api", "CRCON_TOKEN": "t"},
			file:    "state:\n  cooldown: 2h\n",
			wantErr: "cooldown_ttl",
		},
		{
			name:    "no triggers",
			env:     map[string]string{"CRCON_BASE_URL": "http://x/api", "CRCON_TOKEN": "t"},
			file:    "triggers: [\" \"]\n",
			wantErr: "trigger phrase",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := loadConfig(path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("err = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigExplicitPathMustExist(t *testing.T) {
	clearEnv(t)
	t.Setenv("CRCON_BASE_URL", "http://x/api")
	t.Setenv("CRCON_TOKEN", "t")

	if _, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("explicit missing config file should fail")
	}
}
