package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"txguardmon/internal/api"
	"txguardmon/internal/config"
	"txguardmon/internal/delivery"
	"txguardmon/internal/feetier"
	"txguardmon/internal/ledger"
	"txguardmon/internal/model"
	"txguardmon/internal/monitor"
	"txguardmon/internal/poller"
	"txguardmon/internal/storage"
	"txguardmon/internal/storage/postgres"
)

func main() {
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:          "monitor",
		Short:        "txguard ledger monitoring and analysis",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the monitoring engine",
		RunE:  runMonitor,
	}
	addLedgerFlags(runCmd)
	runCmd.Flags().Duration("poll-interval", 10*time.Second, "snapshot poll interval")
	runCmd.Flags().String("out", "", "output JSONL path for inferred events (empty disables)")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for inferred events (empty disables)")
	runCmd.Flags().String("http-listen", "", "REST API listen address (empty disables)")
	runCmd.Flags().Bool("delivery-enabled", false, "enable the delivery-optimization gateway")
	runCmd.Flags().String("delivery-endpoint", "", "delivery-optimization service endpoint")
	root.AddCommand(runCmd)

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Poll once and print the analysis report",
		RunE:  runReport,
	}
	addLedgerFlags(reportCmd)
	root.AddCommand(reportCmd)

	classifyCmd := &cobra.Command{
		Use:   "classify <error text>",
		Short: "Classify a failure message against the taxonomy",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runClassify,
	}
	classifyCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(classifyCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll continuously and chart the success rate",
		RunE:  runWatch,
	}
	addLedgerFlags(watchCmd)
	watchCmd.Flags().Duration("poll-interval", 10*time.Second, "snapshot poll interval")
	watchCmd.Flags().Int("history", 60, "number of samples kept on the chart")
	root.AddCommand(watchCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addLedgerFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", "", "ledger JSON-RPC URL")
	cmd.Flags().String("registry-account", "", "transaction registry account address")
	cmd.Flags().String("catalog-account", "", "failure catalog account address")
	cmd.Flags().String("priority-account", "", "priority fee stats account address")
	cmd.Flags().Float64("rate-limit", 5.0, "max ledger RPC requests per second (0 disables)")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

func loadConfig(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func buildService(ctx context.Context, cfg config.Config, logger *zap.Logger) (*monitor.Service, *ledger.Client, error) {
	client, err := ledger.NewClient(ctx, cfg.RPCURL, ledger.Accounts{
		Registry: cfg.RegistryAccount,
		Catalog:  cfg.CatalogAccount,
		Priority: cfg.PriorityAccount,
	}, cfg.RateLimit)
	if err != nil {
		return nil, nil, fmt.Errorf("connect rpc: %w", err)
	}

	p := poller.New(client, logger)
	gateway := delivery.NewGateway(cfg.DeliveryEnabled, cfg.DeliveryEndpoint)
	service := monitor.NewService(p, feetier.NewAnalyzer(), gateway, logger)
	return service, client, nil
}

func runMonitor(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service, client, err := buildService(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	if cfg.Out != "" {
		service.AttachEventSink(storage.NewJsonlStorage(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		service.AttachEventSink(store)
	}

	service.OnTxRecorded(func(event model.InferredEvent) {
		logger.Info("tx inferred",
			zap.Bool("success", event.Success),
			zap.String("failure_type", string(event.FailureType)),
			zap.Int("tier_guess", int(event.TierGuess)),
			zap.Int("sequence", event.SequenceIndex),
		)
	})
	service.OnStatsUpdate(func(stats model.DerivedStats) {
		logger.Info("stats updated",
			zap.Uint64("tx_count", stats.Snapshot.TxCount),
			zap.Float64("success_rate", stats.SuccessRate),
		)
	})

	logger.Info("monitor start",
		zap.String("rpc", cfg.RPCURL),
		zap.Duration("poll_interval", cfg.PollInterval),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
		zap.String("http_listen", cfg.HTTPListen),
		zap.Bool("delivery_enabled", cfg.DeliveryEnabled),
	)

	service.StartMonitoring(ctx, cfg.PollInterval)
	defer service.StopMonitoring()

	errCh := make(chan error, 1)
	if cfg.HTTPListen != "" {
		server := api.NewServer(service, logger)
		go func() { errCh <- server.Listen(cfg.HTTPListen) }()
	}

	select {
	case <-ctx.Done():
		logger.Info("monitor stop")
		return nil
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	}
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
