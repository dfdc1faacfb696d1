// Package app wires configuration, the transaction generator, the output
// boundaries and metrics into a single run.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/arkilian/fraudsim/internal/config"
	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/internal/metrics"
	"github.com/arkilian/fraudsim/internal/server"
	"github.com/arkilian/fraudsim/internal/simulator"
	"github.com/arkilian/fraudsim/internal/sink"
)

// Summary reports what a run produced.
type Summary struct {
	Emitted      int
	Fraud        int
	Forced       int
	SinkFailures int
}

// App manages one generator run.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *metrics.Collector

	gen      *simulator.Generator
	output   sink.Sink
	external sink.Sink
	shutdown *server.ShutdownManager

	genOpts []simulator.Option
	writer  io.Writer
	pacer   *rand.Rand
	sleep   func(context.Context, time.Duration) error

	mu      sync.Mutex
	running bool
}

// Option configures an App.
type Option func(*App)

// WithOutput sets the local output writer. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) {
		a.writer = w
	}
}

// WithSink overrides the external sink built from configuration.
func WithSink(s sink.Sink) Option {
	return func(a *App) {
		a.external = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(a *App) {
		a.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(a *App) {
		a.metrics = m
	}
}

// WithGeneratorOptions passes options through to the generator, after the
// seed and start time derived from configuration.
func WithGeneratorOptions(opts ...simulator.Option) Option {
	return func(a *App) {
		a.genOpts = append(a.genOpts, opts...)
	}
}

// WithSleep replaces the pacing sleep.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(a *App) {
		a.sleep = fn
	}
}

// New validates cfg, bootstraps the card population and connects the
// configured sink.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{
		cfg:   cfg,
		sleep: sleepContext,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.metrics == nil {
		a.metrics = metrics.NewCollector(a.logger)
	}
	if a.writer == nil {
		a.writer = os.Stdout
	}
	a.pacer = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))

	params := cfg.Params()
	a.logger.Info("initializing cards",
		slog.Int("cards", params.Cards),
		slog.Float64("compromise_probability", params.CompromiseProbability))

	genOpts, err := generatorOptions(cfg)
	if err != nil {
		return nil, err
	}
	a.gen, err = simulator.NewGenerator(params, append(genOpts, a.genOpts...)...)
	if err != nil {
		return nil, err
	}

	compromised := a.gen.Population().Compromised()
	a.metrics.SetCompromisedCards(compromised)
	a.logger.Info("cards initialized",
		slog.Int("cards", a.gen.Population().Len()),
		slog.Int("compromised", compromised))

	a.shutdown = server.NewShutdownManager(server.DefaultShutdownConfig())
	a.shutdown.OnShutdownStart(func(reason string) {
		a.logger.Info("shutting down", slog.String("reason", reason))
	})

	a.output = sink.NewJSONLines(a.writer)
	a.shutdown.RegisterCloser(a.output.Name(), a.output)

	if a.external == nil {
		a.external, err = newSink(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}
	if a.external != nil {
		a.shutdown.RegisterCloser(a.external.Name(), a.external)
		a.logger.Info("sink connected", slog.String("sink", a.external.Name()))
	}

	if cfg.Metrics.Addr != "" {
		a.metrics.StartServer(cfg.Metrics.Addr)
		a.shutdown.RegisterCloser("metrics", server.CloserFunc(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return a.metrics.Shutdown(ctx)
		}))
	}

	return a, nil
}

// Run emits the configured number of transactions. Every record is written
// to the local output first, then handed to the external sink if one is
// configured. A local write failure stops the run; a sink failure is logged
// and counted, and stops the run only when stop_on_failure is set.
func (a *App) Run(ctx context.Context) (Summary, error) {
	a.mu.Lock()
	if a.running {
		a.mu.Unlock()
		return Summary{}, fmt.Errorf("app is already running")
	}
	a.running = true
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.running = false
		a.mu.Unlock()
	}()

	var sum Summary
	avg := a.gen.Params().AvgDelay

	for a.gen.Remaining() > 0 {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		res, err := a.gen.Next()
		if err != nil {
			return sum, simerrors.NewInternalError("failed to generate transaction", err)
		}
		tx := &res.Transaction

		if err := a.output.Put(ctx, tx, tx.CardID); err != nil {
			return sum, err
		}

		sum.Emitted++
		if tx.IsFraud {
			sum.Fraud++
		}
		if res.Forced {
			sum.Forced++
			a.logger.Debug("velocity anomaly forced",
				slog.String("transaction_id", tx.TransactionID),
				slog.String("card_id", tx.CardID),
				slog.Float64("velocity_kmh", res.VelocityKmh))
		}
		a.metrics.RecordTransaction(tx.Amount, tx.IsFraud, res.Forced)
		if res.HasVelocity {
			a.metrics.ObserveVelocity(res.VelocityKmh)
		}

		if a.external != nil {
			start := time.Now()
			err := a.external.Put(ctx, tx, tx.CardID)
			a.metrics.RecordSinkPut(a.external.Name(), time.Since(start), err)
			if err != nil {
				sum.SinkFailures++
				a.logger.Error("sink put failed",
					slog.String("sink", a.external.Name()),
					slog.String("transaction_id", tx.TransactionID),
					slog.String("code", simerrors.GetCode(err)),
					slog.Bool("retryable", simerrors.IsRetryable(err)),
					slog.String("error", err.Error()))
				if a.cfg.Sink.StopOnFailure {
					return sum, fmt.Errorf("stopping after sink failure on %s: %w", tx.TransactionID, err)
				}
			}
		}

		if a.cfg.Pacing.Enabled && a.gen.Remaining() > 0 {
			if err := a.sleep(ctx, simulator.PacingDelay(a.pacer, avg)); err != nil {
				return sum, err
			}
		}
	}

	a.logger.Info("finished",
		slog.Int("transactions", sum.Emitted),
		slog.Int("fraud", sum.Fraud),
		slog.Int("forced_anomalies", sum.Forced),
		slog.Int("sink_failures", sum.SinkFailures))
	return sum, nil
}

// Close releases the sinks and the metrics server.
func (a *App) Close(ctx context.Context, reason string) error {
	return a.shutdown.Shutdown(ctx, reason)
}

// Generator returns the run's generator.
func (a *App) Generator() *simulator.Generator {
	return a.gen
}

// Metrics returns the run's metrics collector.
func (a *App) Metrics() *metrics.Collector {
	return a.metrics
}

func generatorOptions(cfg *config.Config) ([]simulator.Option, error) {
	var opts []simulator.Option
	if cfg.Simulation.Seed != nil {
		opts = append(opts, simulator.WithSeed(*cfg.Simulation.Seed))
	}
	start, ok, err := cfg.ParseStartTime()
	if err != nil {
		return nil, simerrors.NewValidationError(simerrors.CodeInvalidConfig, err.Error())
	}
	if ok {
		opts = append(opts, simulator.WithStartTime(start))
	}
	return opts, nil
}

// newSink builds the external sink selected by cfg, or nil when none is.
func newSink(ctx context.Context, cfg *config.Config) (sink.Sink, error) {
	switch cfg.Sink.Type {
	case config.SinkKinesis:
		kc := sink.DefaultKinesisConfig()
		kc.StreamName = cfg.Sink.Kinesis.StreamName
		if cfg.Sink.Kinesis.Region != "" {
			kc.Region = cfg.Sink.Kinesis.Region
		}
		kc.Endpoint = cfg.Sink.Kinesis.Endpoint
		kc.MaxRetries = cfg.Sink.Kinesis.MaxRetries
		return sink.NewKinesis(ctx, kc)
	case config.SinkKafka:
		kc := sink.DefaultKafkaConfig()
		kc.Brokers = cfg.Sink.Kafka.Brokers
		kc.Topic = cfg.Sink.Kafka.Topic
		if cfg.Sink.Kafka.DeliveryTimeout > 0 {
			kc.DeliveryTimeout = cfg.Sink.Kafka.DeliveryTimeout.Std()
		}
		return sink.NewKafka(kc)
	case config.SinkRedis:
		rc := sink.DefaultRedisStreamConfig()
		rc.Addr = cfg.Sink.Redis.Addr
		rc.Password = cfg.Sink.Redis.Password
		rc.DB = cfg.Sink.Redis.DB
		rc.Stream = cfg.Sink.Redis.Stream
		rc.Shards = cfg.Sink.Redis.Shards
		rc.MaxLen = cfg.Sink.Redis.MaxLen
		return sink.NewRedisStream(ctx, rc)
	default:
		return nil, nil
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
