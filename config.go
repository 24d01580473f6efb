package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	TransportHTTP = "http"
	TransportRCON = "rcon"

	ModeConcurrent = "concurrent"
	ModeSequential = "sequential"
)

type Config struct {
	Servers   []ServerConfig  `yaml:"servers"`
	CRCON     CRCONConfig     `yaml:"crcon"`
	Triggers  []string        `yaml:"triggers"`
	Poll      PollConfig      `yaml:"poll"`
	State     StateConfig     `yaml:"state"`
	Dispatch  DispatchConfig  `yaml:"dispatch"`
	Generator GeneratorConfig `yaml:"generator"`
	Discord   DiscordConfig   `yaml:"discord"`
	OTel      OTelConfig      `yaml:"otel"`
}

type ServerConfig struct {
	Name      string           `yaml:"name"`
	URL       string           `yaml:"url"`       // CRCON API base, for transport http
	Transport string           `yaml:"transport"` // "http" or "rcon"
	RCON      RCONServerConfig `yaml:"rcon"`
}

type RCONServerConfig struct {
	Host           string `yaml:"host"`
	Port           string `yaml:"port"`
	LogsCommand    string `yaml:"logs_command"`    // {limit} is replaced by the batch size
	MessageCommand string `yaml:"message_command"` // {player_id} and {message} placeholders
	MessageOK      string `yaml:"message_ok"`      // required response substring, optional
}

type CRCONConfig struct {
	Token         string `yaml:"-"` // from env only
	SkipTLSVerify bool   `yaml:"skip_tls_verify"`
	RCONPassword  string `yaml:"-"` // from env only
}

type PollConfig struct {
	Mode           string        `yaml:"mode"` // "concurrent" or "sequential"
	Interval       time.Duration `yaml:"interval"`
	ServerDelay    time.Duration `yaml:"server_delay"` // sequential mode only
	ErrorBackoff   time.Duration `yaml:"error_backoff"`
	BatchSize      int           `yaml:"batch_size"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Heartbeat      string        `yaml:"heartbeat"` // cron expression, empty disables
}

type StateConfig struct {
	SeenCapacity int           `yaml:"seen_capacity"`
	Cooldown     time.Duration `yaml:"cooldown"`
	CooldownTTL  time.Duration `yaml:"cooldown_ttl"`
	MaxAttempts  int           `yaml:"max_attempts"` // 0 retries while the event is in the fetch window
}

type DispatchConfig struct {
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	Footer        string  `yaml:"footer"`
}

type GeneratorConfig struct {
	APIKey       string        `yaml:"-"` // from env only
	BaseURL      string        `yaml:"base_url"`
	Model        string        `yaml:"model"`
	MaxTokens    int           `yaml:"max_tokens"`
	Temperature  float64       `yaml:"temperature"`
	Timeout      time.Duration `yaml:"timeout"`
	SystemPrompt string        `yaml:"system_prompt"`
	UserPrompt   string        `yaml:"user_prompt"`
	Fallback     string        `yaml:"fallback"`
}

type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"-"` // from env only
	BotToken   string `yaml:"-"` // from env only
	ChannelID  string `yaml:"-"` // from env only
}

type OTelConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	ServiceName    string        `yaml:"service_name"`
	MetricInterval time.Duration `yaml:"metric_interval"`
}

// envConfig holds secrets and runtime overrides read from the environment.
type envConfig struct {
	ConfigPath        string   `env:"CONFIG_PATH" envDefault:"/etc/hll-tkbot/config.yaml"`
	BaseURLs          []string `env:"CRCON_BASE_URLS" envSeparator:","`
	BaseURL           string   `env:"CRCON_BASE_URL"`
	CRCONToken        string   `env:"CRCON_TOKEN"`
	RCONPassword      string   `env:"RCON_PASSWORD"`
	XAIAPIKey         string   `env:"XAI_API_KEY"`
	DiscordWebhookURL string   `env:"DISCORD_WEBHOOK_URL"`
	DiscordBotToken   string   `env:"DISCORD_BOT_TOKEN"`
	DiscordChannelID  string   `env:"DISCORD_CHANNEL_ID"`
}

var defaultTriggers = []string{"tk", "teamkill", "team kill", "friendly fire", "sorry tk", "tk'ed", "teamkilled"}

func defaultConfig() Config {
	return Config{
		Triggers: append([]string(nil), defaultTriggers...),
		Poll: PollConfig{
			Mode:           ModeSequential,
			Interval:       10 * time.Second,
			ServerDelay:    2 * time.Second,
			ErrorBackoff:   5 * time.Second,
			BatchSize:      200,
			RequestTimeout: 10 * time.Second,
			Heartbeat:      "@every 15m",
		},
		State: StateConfig{
			SeenCapacity: 2000,
			Cooldown:     60 * time.Second,
			CooldownTTL:  time.Hour,
			MaxAttempts:  0,
		},
		Dispatch: DispatchConfig{
			RatePerSecond: 1,
			Burst:         3,
		},
		Generator: GeneratorConfig{
			BaseURL:     "https://api.x.ai/v1",
			Model:       "grok-3",
			MaxTokens:   80,
			Temperature: 1.0,
			Timeout:     5 * time.Second,
			SystemPrompt: "You are a friendly, funny bot for the Hell Let Loose community. " +
				"Tell a short, harmless joke about teamkills in the game: general, positive, gamer-style, " +
				"creative and varied. Never personal, never address the player directly, never sarcastic " +
				"or insulting. Light humour only, like a nice squad mate. 1-2 sentences.",
			UserPrompt: "A new, harmless joke about teamkills in HLL.",
			Fallback:   "In HLL teamkills are like unexpected plot twists: they keep the round exciting!",
		},
		Discord: DiscordConfig{
			Enabled: true,
		},
		OTel: OTelConfig{
			Enabled:        false,
			ServiceName:    "hll-tkbot",
			MetricInterval: 15 * time.Second,
		},
	}
}

// loadConfig reads the YAML file (optional) and applies environment overrides.
// pathOverride, when set, wins over CONFIG_PATH.
func loadConfig(pathOverride string) (Config, error) {
	cfg := defaultConfig()

	var ev envConfig
	if err := env.Parse(&ev); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	configPath := ev.ConfigPath
	if pathOverride != "" {
		configPath = pathOverride
	}
	// the default config path is optional, an explicit one is not
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", configPath, err)
		}
	case pathOverride != "" || !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read config %s: %w", configPath, err)
	}

	applyEnv(&cfg, ev)
	cfg.normalize()

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, ev envConfig) {
	urls := ev.BaseURLs
	if len(urls) == 0 && strings.TrimSpace(ev.BaseURL) != "" {
		urls = []string{ev.BaseURL}
	}
	var servers []ServerConfig
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			servers = append(servers, ServerConfig{URL: u, Transport: TransportHTTP})
		}
	}
	if len(servers) > 0 {
		cfg.Servers = servers
	}

	cfg.CRCON.Token = ev.CRCONToken
	cfg.CRCON.RCONPassword = ev.RCONPassword
	cfg.Generator.APIKey = ev.XAIAPIKey
	cfg.Discord.WebhookURL = ev.DiscordWebhookURL
	cfg.Discord.BotToken = ev.DiscordBotToken
	cfg.Discord.ChannelID = ev.DiscordChannelID
}

func (c *Config) normalize() {
	for i := range c.Servers {
		s := &c.Servers[i]
		s.Transport = strings.ToLower(strings.TrimSpace(s.Transport))
		if s.Transport == "" {
			s.Transport = TransportHTTP
		}
		if s.Transport == TransportHTTP && s.URL != "" {
			s.URL = normalizeBaseURL(s.URL)
		}
		if s.Name == "" {
			if s.Transport == TransportRCON {
				s.Name = net.JoinHostPort(s.RCON.Host, s.RCON.Port)
			} else {
				s.Name = serverLabel(s.URL)
			}
		}
	}
	c.Poll.Mode = strings.ToLower(strings.TrimSpace(c.Poll.Mode))
	if c.Discord.WebhookURL == "" && c.Discord.BotToken == "" {
		c.Discord.Enabled = false
	}
}

func (c *Config) validate() error {
	if len(c.Servers) == 0 {
		return errors.New("no servers configured: set CRCON_BASE_URLS or servers in the config file")
	}

	names := make(map[string]bool, len(c.Servers))
	for _, s := range c.Servers {
		if names[s.Name] {
			return fmt.Errorf("duplicate server name %q", s.Name)
		}
		names[s.Name] = true

		switch s.Transport {
		case TransportHTTP:
			if s.URL == "" {
				return fmt.Errorf("server %s: url is required", s.Name)
			}
			if c.CRCON.Token == "" {
				return fmt.Errorf("server %s: CRCON_TOKEN env is required", s.Name)
			}
		case TransportRCON:
			if s.RCON.Host == "" || s.RCON.Port == "" {
				return fmt.Errorf("server %s: rcon host and port are required", s.Name)
			}
			if s.RCON.LogsCommand == "" || s.RCON.MessageCommand == "" {
				return fmt.Errorf("server %s: rcon logs_command and message_command are required", s.Name)
			}
			if c.CRCON.RCONPassword == "" {
				return fmt.Errorf("server %s: RCON_PASSWORD env is required", s.Name)
			}
		default:
			return fmt.Errorf("server %s: unknown transport %q", s.Name, s.Transport)
		}
	}

	if c.Poll.Mode != ModeConcurrent && c.Poll.Mode != ModeSequential {
		return fmt.Errorf("poll.mode must be %q or %q, got %q", ModeConcurrent, ModeSequential, c.Poll.Mode)
	}
	if c.Poll.Interval <= 0 || c.Poll.RequestTimeout <= 0 || c.Generator.Timeout <= 0 {
		return errors.New("poll.interval, poll.request_timeout and generator.timeout must be positive")
	}
	if c.Poll.BatchSize < 1 {
		return fmt.Errorf("poll.batch_size must be at least 1, got %d", c.Poll.BatchSize)
	}
	if c.Poll.Heartbeat != "" {
		if _, err := cron.ParseStandard(c.Poll.Heartbeat); err != nil {
			return fmt.Errorf("poll.heartbeat: %w", err)
		}
	}
	if c.State.SeenCapacity < 1 {
		return fmt.Errorf("state.seen_capacity must be at least 1, got %d", c.State.SeenCapacity)
	}
	if c.State.Cooldown < 0 || c.State.CooldownTTL < c.State.Cooldown {
		return errors.New("state.cooldown_ttl must be at least state.cooldown")
	}
	if len(NewTriggerMatcher(c.Triggers).phrases) == 0 {
		return errors.New("at least one trigger phrase is required")
	}
	if c.Discord.BotToken != "" && c.Discord.ChannelID == "" {
		return errors.New("DISCORD_CHANNEL_ID is required when DISCORD_BOT_TOKEN is set")
	}
	return nil
}
