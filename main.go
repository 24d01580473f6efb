package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	otellog "go.opentelemetry.io/otel/log"
	lognoop "go.opentelemetry.io/otel/log/noop"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

var (
	configPath string
	runOnce    bool
)

var rootCmd = &cobra.Command{
	Use:           "hll-tkbot",
	Short:         "Watch Hell Let Loose chat logs and answer teamkill apologies",
	RunE:          runMonitor,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load and validate the configuration, then print it",
	RunE:  runCheck,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH or /etc/hll-tkbot/config.yaml)")
	rootCmd.Flags().BoolVar(&runOnce, "once", false, "run a single cycle for every server and exit")
	rootCmd.AddCommand(checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("hll-tkbot: %v", err)
	}
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	meterProvider, loggerProvider, shutdown, err := setupOTel(ctx, cfg.OTel)
	if err != nil {
		return err
	}
	defer shutdown()

	metrics, err := NewMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// Audit channels
	var channels []AuditChannel
	if cfg.Discord.Enabled {
		dc, err := newDiscordAudit(cfg.Discord)
		if err != nil {
			return fmt.Errorf("discord: %w", err)
		}
		channels = append(channels, dc)
	}
	if cfg.OTel.Enabled {
		channels = append(channels, NewOTelAudit(loggerProvider.Logger(cfg.OTel.ServiceName)))
	}
	audit := NewAuditBridge(channels, metrics)

	// Content generator
	var gen Generator = staticGenerator{text: cfg.Generator.Fallback}
	if cfg.Generator.APIKey != "" {
		gen = NewChatGenerator(cfg.Generator)
	} else {
		log.Println("XAI_API_KEY not set, using fallback text for every message")
	}

	servers, closeServers := buildServers(cfg)
	defer closeServers()

	monitor := NewMonitor(CycleOptions{
		BatchSize:        cfg.Poll.BatchSize,
		CooldownWindow:   cfg.State.Cooldown,
		CooldownTTL:      cfg.State.CooldownTTL,
		MaxAttempts:      cfg.State.MaxAttempts,
		RequestTimeout:   cfg.Poll.RequestTimeout,
		GeneratorTimeout: cfg.Generator.Timeout,
	}, NewTriggerMatcher(cfg.Triggers), gen, audit, metrics)

	scheduler := NewScheduler(monitor, servers, SchedulerOptions{
		Mode:         cfg.Poll.Mode,
		Interval:     cfg.Poll.Interval,
		ServerDelay:  cfg.Poll.ServerDelay,
		ErrorBackoff: cfg.Poll.ErrorBackoff,
		Heartbeat:    cfg.Poll.Heartbeat,
	})

	auditCtx, stopAudit := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		audit.Run(auditCtx)
	}()

	channelNames := make([]string, len(channels))
	for i, ch := range channels {
		channelNames[i] = ch.Name()
	}
	log.Printf("hll-tkbot started (servers=%d, mode=%s, audit=%v)", len(servers), cfg.Poll.Mode, channelNames)

	if runOnce {
		scheduler.RunOnce(ctx)
	} else {
		scheduler.Run(ctx)
	}

	// Polling has stopped; let the audit bridge flush queued records.
	stopAudit()
	wg.Wait()
	log.Println("shutting down")
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "config ok: %d server(s), mode=%s, interval=%s\n", len(cfg.Servers), cfg.Poll.Mode, cfg.Poll.Interval)
	for _, s := range cfg.Servers {
		target := s.URL
		if s.Transport == TransportRCON {
			target = s.RCON.Host + ":" + s.RCON.Port
		}
		fmt.Fprintf(out, "  - %s (%s) %s\n", s.Name, s.Transport, target)
	}
	fmt.Fprintf(out, "triggers: %v\n", cfg.Triggers)
	fmt.Fprintf(out, "cooldown=%s ttl=%s seen_capacity=%d max_attempts=%d\n",
		cfg.State.Cooldown, cfg.State.CooldownTTL, cfg.State.SeenCapacity, cfg.State.MaxAttempts)
	fmt.Fprintf(out, "generator=%v discord=%v otel=%v\n", cfg.Generator.APIKey != "", cfg.Discord.Enabled, cfg.OTel.Enabled)
	return nil
}

// buildServers creates one Server per configured endpoint. The returned
// function closes any RCON connections.
func buildServers(cfg Config) ([]*Server, func()) {
	var pools []*RCONPool
	servers := make([]*Server, 0, len(cfg.Servers))

	for _, sc := range cfg.Servers {
		var (
			src LogSource
			msg Messenger
		)
		switch sc.Transport {
		case TransportRCON:
			pool := NewRCONPool(sc.RCON.Host, sc.RCON.Port, cfg.CRCON.RCONPassword, cfg.Poll.RequestTimeout)
			pools = append(pools, pool)
			src = NewRCONSource(pool, sc.RCON.LogsCommand)
			msg = NewRCONMessenger(pool, sc.RCON.MessageCommand, sc.RCON.MessageOK)
		default:
			client := NewCRCONClient(sc.URL, cfg.CRCON.Token, cfg.CRCON.SkipTLSVerify)
			src, msg = client, client
		}

		servers = append(servers, &Server{
			Name:       sc.Name,
			Source:     src,
			Dispatcher: NewDispatcher(msg, cfg.Dispatch.RatePerSecond, cfg.Dispatch.Burst, cfg.Dispatch.Footer),
			State:      NewServerState(cfg.State.SeenCapacity),
		})
		log.Printf("monitoring %s via %s", sc.Name, sc.Transport)
	}

	return servers, func() {
		for _, p := range pools {
			if err := p.Close(); err != nil {
				log.Printf("close rcon %s: %v", p.Addr(), err)
			}
		}
	}
}

func newDiscordAudit(cfg DiscordConfig) (*DiscordAudit, error) {
	if cfg.WebhookURL != "" {
		return NewDiscordWebhookAudit(cfg.WebhookURL)
	}
	return NewDiscordBotAudit(cfg.BotToken, cfg.ChannelID)
}

// setupOTel builds the metric and log providers. With OTel disabled both are no-ops.
func setupOTel(ctx context.Context, cfg OTelConfig) (metric.MeterProvider, otellog.LoggerProvider, func(), error) {
	if !cfg.Enabled {
		return metricnoop.NewMeterProvider(), lognoop.NewLoggerProvider(), func() {}, nil
	}

	metricOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
	logOpts := []otlploggrpc.Option{otlploggrpc.WithInsecure()}
	if cfg.Endpoint != "" {
		metricOpts = append(metricOpts, otlpmetricgrpc.WithEndpoint(cfg.Endpoint))
		logOpts = append(logOpts, otlploggrpc.WithEndpoint(cfg.Endpoint))
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	metricExporter, err := otlpmetricgrpc.New(ctx, metricOpts...)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("metric exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter, sdkmetric.WithInterval(cfg.MetricInterval))),
	)

	logExporter, err := otlploggrpc.New(ctx, logOpts...)
	if err != nil {
		meterProvider.Shutdown(ctx)
		return nil, nil, nil, fmt.Errorf("log exporter: %w", err)
	}
	loggerProvider := sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
	)

	shutdown := func() {
		// the signal context is already cancelled at this point
		ctx := context.Background()
		if err := meterProvider.Shutdown(ctx); err != nil {
			log.Printf("meter provider shutdown: %v", err)
		}
		if err := loggerProvider.Shutdown(ctx); err != nil {
			log.Printf("logger provider shutdown: %v", err)
		}
	}
	return meterProvider, loggerProvider, shutdown, nil
}
