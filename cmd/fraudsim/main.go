// Package main implements the fraudsim binary.
// It generates a stream of synthetic card transactions as JSON lines on
// stdout and optionally forwards every record to a streaming sink.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/arkilian/fraudsim/internal/app"
	"github.com/arkilian/fraudsim/internal/config"
	simerrors "github.com/arkilian/fraudsim/internal/errors"
)

var (
	version = "dev"
	commit  = "unknown"
)

type flags struct {
	configFile   string
	envFile      string
	cards        int
	transactions int
	seed         int64
	sinkType     string
	pace         bool
	metricsAddr  string
	logLevel     string
}

func main() {
	var (
		f           flags
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&f.configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&f.envFile, "env-file", ".env", "Optional dotenv file loaded before the environment is read")
	flag.IntVar(&f.cards, "cards", 0, "Number of cards in the population")
	flag.IntVar(&f.transactions, "transactions", -1, "Number of transactions to emit")
	flag.Int64Var(&f.seed, "seed", -1, "Seed for a reproducible run (negative means unseeded)")
	flag.StringVar(&f.sinkType, "sink", "", "External sink: none, kinesis, kafka, redis")
	flag.BoolVar(&f.pace, "pace", false, "Sleep between transactions to approximate real time")
	flag.StringVar(&f.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	flag.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "fraudsim - synthetic card transaction and fraud event generator\n\n")
		fmt.Fprintf(os.Stderr, "Usage: fraudsim [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  fraudsim --transactions 100 > tx.jsonl\n")
		fmt.Fprintf(os.Stderr, "  fraudsim --seed 42 --cards 10\n")
		fmt.Fprintf(os.Stderr, "  fraudsim --config /etc/fraudsim/config.yaml --sink kinesis\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  FRAUDSIM_CARDS           Population size\n")
		fmt.Fprintf(os.Stderr, "  FRAUDSIM_TRANSACTIONS    Number of transactions\n")
		fmt.Fprintf(os.Stderr, "  FRAUDSIM_SEED            Seed for a reproducible run\n")
		fmt.Fprintf(os.Stderr, "  FRAUDSIM_SINK_TYPE       External sink (none, kinesis, kafka, redis)\n")
		fmt.Fprintf(os.Stderr, "  FRAUDSIM_KINESIS_STREAM  Kinesis stream name\n")
		fmt.Fprintf(os.Stderr, "  FRAUDSIM_KAFKA_BROKERS   Comma-separated Kafka brokers\n")
		fmt.Fprintf(os.Stderr, "  FRAUDSIM_REDIS_ADDR      Redis address\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("fraudsim version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := loadConfig(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(2)
	}

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	printBanner(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, app.WithLogger(logger))
	if err != nil {
		logger.Error("Failed to create application", slog.String("error", err.Error()))
		os.Exit(exitCode(err))
	}

	_, runErr := application.Run(ctx)

	reason := "finished"
	if ctx.Err() != nil {
		reason = "interrupted"
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := application.Close(shutdownCtx, reason); err != nil {
		logger.Error("Shutdown error", slog.String("error", err.Error()))
	}

	if runErr != nil && ctx.Err() == nil {
		logger.Error("Run failed", slog.String("error", runErr.Error()))
		os.Exit(1)
	}
}

// exitCode maps configuration errors to 2 and everything else to 1.
func exitCode(err error) int {
	if simerrors.GetCategory(err) == simerrors.ErrCategoryValidation {
		return 2
	}
	return 1
}

// loadConfig loads configuration from the dotenv file, config file,
// environment, and command line flags, in increasing priority.
func loadConfig(f flags) (*config.Config, error) {
	if f.envFile != "" {
		if err := godotenv.Load(f.envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}

	var cfg *config.Config
	var err error

	// Start with defaults or load from file
	if f.configFile != "" {
		cfg, err = config.LoadFromFile(f.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	// Apply environment variables
	config.LoadFromEnv(cfg)

	// Apply command line flags (highest priority)
	if f.cards > 0 {
		cfg.Simulation.Cards = f.cards
	}
	if f.transactions >= 0 {
		cfg.Simulation.Transactions = f.transactions
	}
	if f.seed >= 0 {
		seed := uint64(f.seed)
		cfg.Simulation.Seed = &seed
	}
	if f.sinkType != "" {
		cfg.Sink.Type = config.SinkType(f.sinkType)
	}
	if f.pace {
		cfg.Pacing.Enabled = true
	}
	if f.metricsAddr != "" {
		cfg.Metrics.Addr = f.metricsAddr
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}

	return cfg, nil
}

// newLogger builds a JSON logger on stderr; stdout carries the records.
func newLogger(level string) *slog.Logger {
	var lv slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lv = slog.LevelDebug
	case "warn":
		lv = slog.LevelWarn
	case "error":
		lv = slog.LevelError
	default:
		lv = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lv}))
}

// printBanner logs the configuration summary.
func printBanner(logger *slog.Logger, cfg *config.Config) {
	seeded := cfg.Simulation.Seed != nil
	logger.Info("fraudsim starting",
		slog.String("version", version),
		slog.Int("cards", cfg.Simulation.Cards),
		slog.Int("transactions", cfg.Simulation.Transactions),
		slog.Bool("seeded", seeded),
		slog.Bool("pacing", cfg.Pacing.Enabled))

	switch cfg.Sink.Type {
	case config.SinkKinesis:
		logger.Info("sink configured",
			slog.String("type", string(cfg.Sink.Type)),
			slog.String("stream", cfg.Sink.Kinesis.StreamName),
			slog.String("region", cfg.Sink.Kinesis.Region),
			slog.String("endpoint", cfg.Sink.Kinesis.Endpoint))
	case config.SinkKafka:
		logger.Info("sink configured",
			slog.String("type", string(cfg.Sink.Type)),
			slog.String("brokers", strings.Join(cfg.Sink.Kafka.Brokers, ",")),
			slog.String("topic", cfg.Sink.Kafka.Topic))
	case config.SinkRedis:
		logger.Info("sink configured",
			slog.String("type", string(cfg.Sink.Type)),
			slog.String("addr", cfg.Sink.Redis.Addr),
			slog.String("stream", cfg.Sink.Redis.Stream),
			slog.Int("shards", cfg.Sink.Redis.Shards))
	}

	if cfg.Metrics.Addr != "" {
		logger.Info("metrics enabled", slog.String("addr", cfg.Metrics.Addr))
	}
}
