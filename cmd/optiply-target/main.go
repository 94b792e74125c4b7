package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/optisync/optiply-target/internal/pipeline"
	"github.com/optisync/optiply-target/pkg/config"
	"github.com/optisync/optiply-target/pkg/connector/registry"
	"github.com/optisync/optiply-target/pkg/logger"
	"github.com/optisync/optiply-target/pkg/observability"

	// Importing the destination registers it
	"github.com/optisync/optiply-target/pkg/connector/destinations/optiply"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "optiply-target",
		Short: "Optiply target - push typed business records to the Optiply API",
		Long: `Optiply target reads a newline-delimited JSON record stream and pushes
products, suppliers, orders and order lines to the Optiply inventory
planning API, one request per record.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("optiply-target v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "streams",
		Short: "List supported streams",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("Supported streams:")
			streams := optiply.Streams()
			sort.Strings(streams)
			for _, s := range streams {
				fmt.Printf("  - %s\n", s)
			}
			fmt.Println("\nRegistered destinations:")
			for _, d := range registry.ListDestinations() {
				fmt.Printf("  - %s\n", d)
			}
		},
	})

	var configFile, inputFile, logLevel, metricsAddr string
	var timeout time.Duration

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a sync",
		Long: `Run a sync: read RECORD/SCHEMA/STATE messages from the input stream and
push them to the Optiply API. STATE messages are echoed to stdout once every
preceding record has been handled.

Example:
  tap-something | optiply-target run --config config.yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(configFile, inputFile, logLevel, metricsAddr, timeout)
		},
	}

	runCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file, YAML or JSON (required)")
	_ = runCmd.MarkFlagRequired("config")
	runCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Read messages from a file instead of stdin")
	runCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9464", "Prometheus metrics listen address")
	runCmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the sync after this duration (0 disables)")

	root.AddCommand(runCmd)

	healthCmd := &cobra.Command{
		Use:   "check",
		Short: "Verify credentials and API reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(configFile, logLevel)
		},
	}
	healthCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file, YAML or JSON (required)")
	_ = healthCmd.MarkFlagRequired("config")
	healthCmd.Flags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	root.AddCommand(healthCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setup loads the config and initializes logging and the destination.
func setup(configFile, logLevel string) (*config.BaseConfig, *zap.Logger, error) {
	cfg := config.NewBaseConfig("optiply", "destination")
	if err := config.Load(configFile, cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to load config %s: %w", configFile, err)
	}
	if logLevel != "" {
		cfg.Observability.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Observability.LogLevel,
		Encoding:    "json",
		OutputPaths: []string{"stderr"},
	}); err != nil {
		return nil, nil, err
	}
	log := logger.Get().With(zap.String("component", "optiply-target-cli"))

	if cfg.Observability.EnableTracing {
		if err := observability.Initialize(observability.TracingConfig{
			ServiceName:    "optiply-target",
			ServiceVersion: version,
			Environment:    os.Getenv("ENVIRONMENT"),
			SamplingRate:   cfg.Observability.TracingSampleRate,
		}); err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		}
	}

	return cfg, log, nil
}

func runSync(configFile, inputFile, logLevel, metricsAddr string, timeout time.Duration) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cfg, log, err := setup(configFile, logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if cfg.Observability.EnableMetrics && metricsAddr != "" {
		go serveMetrics(metricsAddr, log)
	}

	destination, err := registry.CreateDestination("optiply", cfg)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if err := destination.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize destination: %w", err)
	}
	defer func() {
		if err := destination.Close(context.Background()); err != nil {
			log.Warn("failed to close destination", zap.Error(err))
		}
	}()

	input := os.Stdin
	if inputFile != "" {
		f, err := os.Open(inputFile)
		if err != nil {
			return fmt.Errorf("failed to open input %s: %w", inputFile, err)
		}
		defer f.Close()
		input = f
	}

	log.Info("starting sync", zap.String("config", configFile))
	startTime := time.Now()

	summary, err := pipeline.New(destination, os.Stdout, log).Run(ctx, input)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	duration := time.Since(startTime)
	log.Info("sync completed",
		zap.Duration("duration", duration),
		zap.Int64("records", summary.Records),
		zap.Int64("written", summary.Written),
		zap.Int64("skipped", summary.Skipped),
		zap.Int64("failed", summary.Failed),
		zap.Int64("states", summary.States))
	return nil
}

func runCheck(configFile, logLevel string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, log, err := setup(configFile, logLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	destination, err := registry.CreateDestination("optiply", cfg)
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}
	if err := destination.Initialize(ctx, cfg); err != nil {
		return fmt.Errorf("failed to initialize destination: %w", err)
	}
	defer func() { _ = destination.Close(context.Background()) }()

	if err := destination.Health(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("health check passed")
	fmt.Println("OK")
	return nil
}

func serveMetrics(addr string, log *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	log.Info("serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Warn("metrics server stopped", zap.Error(err))
	}
}
