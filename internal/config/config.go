// Package config provides configuration for the fraudsim generator.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/internal/simulator"
)

// SinkType selects the external streaming sink.
type SinkType string

const (
	SinkNone    SinkType = "none"
	SinkKinesis SinkType = "kinesis"
	SinkKafka   SinkType = "kafka"
	SinkRedis   SinkType = "redis"
)

// Config holds the complete configuration of a generator run.
type Config struct {
	// Simulation controls population and transaction behavior
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Sink configures the optional external streaming sink
	Sink SinkConfig `json:"sink" yaml:"sink"`

	// Pacing configures advisory wall-clock delays between transactions
	Pacing PacingConfig `json:"pacing" yaml:"pacing"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `json:"metrics" yaml:"metrics"`

	// Log configures process logging
	Log LogConfig `json:"log" yaml:"log"`
}

// SimulationConfig holds the generator parameters.
type SimulationConfig struct {
	// Cards is the population size
	Cards int `json:"cards" yaml:"cards"`

	// Transactions is the number of records to emit
	Transactions int `json:"transactions" yaml:"transactions"`

	// CompromiseProbability is the chance a card starts compromised
	CompromiseProbability float64 `json:"compromise_probability" yaml:"compromise_probability"`

	// FraudProbability is the chance a compromised card's transaction is fraud
	FraudProbability float64 `json:"fraud_probability" yaml:"fraud_probability"`

	// AvgDelay is the mean logical time between transactions
	AvgDelay Duration `json:"avg_delay" yaml:"avg_delay"`

	// NormalRadiusKm bounds normal merchants around home
	NormalRadiusKm float64 `json:"normal_radius_km" yaml:"normal_radius_km"`

	// FraudRadiusKm is the far bound for fraud merchants
	FraudRadiusKm float64 `json:"fraud_radius_km" yaml:"fraud_radius_km"`

	NormalAmount simulator.Range `json:"normal_amount" yaml:"normal_amount"`
	FraudAmount  simulator.Range `json:"fraud_amount" yaml:"fraud_amount"`

	// VelocityThresholdKmh is the suspicious travel speed
	VelocityThresholdKmh float64 `json:"velocity_threshold_kmh" yaml:"velocity_threshold_kmh"`

	// ForceProbability is the chance a slow fraud transaction is rewound
	ForceProbability float64 `json:"force_probability" yaml:"force_probability"`

	// Seed makes the run reproducible when set
	Seed *uint64 `json:"seed,omitempty" yaml:"seed,omitempty"`

	// StartTime is the initial clock value (RFC 3339); empty means now
	StartTime string `json:"start_time,omitempty" yaml:"start_time,omitempty"`
}

// SinkConfig holds external sink configuration.
type SinkConfig struct {
	// Type is the sink type: none, kinesis, kafka, redis
	Type SinkType `json:"type" yaml:"type"`

	// StopOnFailure aborts the run on the first failed put
	StopOnFailure bool `json:"stop_on_failure" yaml:"stop_on_failure"`

	Kinesis KinesisConfig `json:"kinesis" yaml:"kinesis"`
	Kafka   KafkaConfig   `json:"kafka" yaml:"kafka"`
	Redis   RedisConfig   `json:"redis" yaml:"redis"`
}

// KinesisConfig holds Kinesis sink configuration.
type KinesisConfig struct {
	// StreamName is the Kinesis data stream name
	StreamName string `json:"stream_name" yaml:"stream_name"`

	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Endpoint is a custom endpoint (for LocalStack)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// MaxRetries bounds retries per record
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
}

// KafkaConfig holds Kafka sink configuration.
type KafkaConfig struct {
	// Brokers is the bootstrap server list
	Brokers []string `json:"brokers" yaml:"brokers"`

	// Topic is the destination topic
	Topic string `json:"topic" yaml:"topic"`

	// DeliveryTimeout bounds the wait for each delivery report
	DeliveryTimeout Duration `json:"delivery_timeout" yaml:"delivery_timeout"`
}

// RedisConfig holds Redis stream sink configuration.
type RedisConfig struct {
	// Addr is the Redis server address
	Addr string `json:"addr" yaml:"addr"`

	// Password is the optional AUTH password
	Password string `json:"password" yaml:"password"`

	// DB is the database index
	DB int `json:"db" yaml:"db"`

	// Stream is the stream key or shard prefix
	Stream string `json:"stream" yaml:"stream"`

	// Shards is the number of streams records are spread over
	Shards int `json:"shards" yaml:"shards"`

	// MaxLen approximately caps each stream (0 disables trimming)
	MaxLen int64 `json:"max_len" yaml:"max_len"`
}

// PacingConfig holds pacing configuration.
type PacingConfig struct {
	// Enabled sleeps between transactions to approximate real time
	Enabled bool `json:"enabled" yaml:"enabled"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Addr serves /metrics when non-empty
	Addr string `json:"addr" yaml:"addr"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	p := simulator.DefaultParams()
	return &Config{
		Simulation: SimulationConfig{
			Cards:                 p.Cards,
			Transactions:          p.Transactions,
			CompromiseProbability: p.CompromiseProbability,
			FraudProbability:      p.FraudProbability,
			AvgDelay:              Duration(p.AvgDelay),
			NormalRadiusKm:        p.NormalRadiusKm,
			FraudRadiusKm:         p.FraudRadiusKm,
			NormalAmount:          p.NormalAmount,
			FraudAmount:           p.FraudAmount,
			VelocityThresholdKmh:  p.VelocityThresholdKmh,
			ForceProbability:      p.ForceProbability,
		},
		Sink: SinkConfig{
			Type: SinkNone,
			Kinesis: KinesisConfig{
				StreamName: "fraud-detection-stream",
				Region:     "us-east-1",
				MaxRetries: 3,
			},
			Kafka: KafkaConfig{
				Brokers:         []string{"localhost:9092"},
				Topic:           "raw_transactions",
				DeliveryTimeout: Duration(10 * time.Second),
			},
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Stream: "transactions",
				Shards: 1,
			},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Params converts the simulation section to generator parameters.
func (c *Config) Params() simulator.Params {
	p := simulator.DefaultParams()
	s := c.Simulation
	p.Cards = s.Cards
	p.Transactions = s.Transactions
	p.CompromiseProbability = s.CompromiseProbability
	p.FraudProbability = s.FraudProbability
	p.AvgDelay = s.AvgDelay.Std()
	p.NormalRadiusKm = s.NormalRadiusKm
	p.FraudRadiusKm = s.FraudRadiusKm
	p.NormalAmount = s.NormalAmount
	p.FraudAmount = s.FraudAmount
	p.VelocityThresholdKmh = s.VelocityThresholdKmh
	p.ForceProbability = s.ForceProbability
	return p
}

// ParseStartTime returns the configured start time, or ok=false when unset.
func (c *Config) ParseStartTime() (t time.Time, ok bool, err error) {
	if c.Simulation.StartTime == "" {
		return time.Time{}, false, nil
	}
	t, err = time.Parse(time.RFC3339, c.Simulation.StartTime)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid start_time %q: %w", c.Simulation.StartTime, err)
	}
	return t.UTC(), true, nil
}

// Validate validates the configuration. All errors are VALIDATION errors so
// a bad configuration fails before any transaction is generated.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return err
	}

	if _, _, err := c.ParseStartTime(); err != nil {
		return invalid(err.Error())
	}

	switch c.Sink.Type {
	case SinkNone, "":
	case SinkKinesis:
		if c.Sink.Kinesis.StreamName == "" {
			return invalid("sink.kinesis.stream_name is required when sink type is kinesis")
		}
		if c.Sink.Kinesis.MaxRetries < 0 {
			return invalid(fmt.Sprintf("sink.kinesis.max_retries must not be negative, got %d", c.Sink.Kinesis.MaxRetries))
		}
	case SinkKafka:
		if len(c.Sink.Kafka.Brokers) == 0 {
			return invalid("sink.kafka.brokers is required when sink type is kafka")
		}
		if c.Sink.Kafka.Topic == "" {
			return invalid("sink.kafka.topic is required when sink type is kafka")
		}
	case SinkRedis:
		if c.Sink.Redis.Addr == "" || c.Sink.Redis.Stream == "" {
			return invalid("sink.redis.addr and sink.redis.stream are required when sink type is redis")
		}
		if c.Sink.Redis.Shards < 1 {
			return invalid(fmt.Sprintf("sink.redis.shards must be at least 1, got %d", c.Sink.Redis.Shards))
		}
	default:
		return invalid(fmt.Sprintf("invalid sink type: %s (must be none, kinesis, kafka, or redis)", c.Sink.Type))
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return invalid(fmt.Sprintf("invalid log level: %s", c.Log.Level))
	}

	return nil
}

// SinkEnabled returns true if an external sink is configured.
func (c *Config) SinkEnabled() bool {
	return c.Sink.Type != "" && c.Sink.Type != SinkNone
}

// LoadFromFile loads configuration from a YAML or JSON file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the FRAUDSIM_ prefix.
func LoadFromEnv(cfg *Config) {
	// Simulation configuration
	if v := os.Getenv("FRAUDSIM_CARDS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Simulation.Cards)
	}
	if v := os.Getenv("FRAUDSIM_TRANSACTIONS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Simulation.Transactions)
	}
	if v := os.Getenv("FRAUDSIM_COMPROMISE_PROBABILITY"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Simulation.CompromiseProbability)
	}
	if v := os.Getenv("FRAUDSIM_FRAUD_PROBABILITY"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Simulation.FraudProbability)
	}
	if v := os.Getenv("FRAUDSIM_AVG_DELAY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Simulation.AvgDelay = Duration(d)
		}
	}
	if v := os.Getenv("FRAUDSIM_NORMAL_RADIUS_KM"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Simulation.NormalRadiusKm)
	}
	if v := os.Getenv("FRAUDSIM_FRAUD_RADIUS_KM"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Simulation.FraudRadiusKm)
	}
	if v := os.Getenv("FRAUDSIM_VELOCITY_THRESHOLD_KMH"); v != "" {
		fmt.Sscanf(v, "%g", &cfg.Simulation.VelocityThresholdKmh)
	}
	if v := os.Getenv("FRAUDSIM_SEED"); v != "" {
		var seed uint64
		if _, err := fmt.Sscanf(v, "%d", &seed); err == nil {
			cfg.Simulation.Seed = &seed
		}
	}
	if v := os.Getenv("FRAUDSIM_START_TIME"); v != "" {
		cfg.Simulation.StartTime = v
	}

	// Sink configuration
	if v := os.Getenv("FRAUDSIM_SINK_TYPE"); v != "" {
		cfg.Sink.Type = SinkType(v)
	}
	if v := os.Getenv("FRAUDSIM_SINK_STOP_ON_FAILURE"); v != "" {
		cfg.Sink.StopOnFailure = v == "true" || v == "1"
	}
	if v := os.Getenv("FRAUDSIM_KINESIS_STREAM"); v != "" {
		cfg.Sink.Kinesis.StreamName = v
	}
	if v := os.Getenv("FRAUDSIM_KINESIS_REGION"); v != "" {
		cfg.Sink.Kinesis.Region = v
	}
	if v := os.Getenv("FRAUDSIM_KINESIS_ENDPOINT"); v != "" {
		cfg.Sink.Kinesis.Endpoint = v
	}
	if v := os.Getenv("FRAUDSIM_KAFKA_BROKERS"); v != "" {
		cfg.Sink.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("FRAUDSIM_KAFKA_TOPIC"); v != "" {
		cfg.Sink.Kafka.Topic = v
	}
	if v := os.Getenv("FRAUDSIM_REDIS_ADDR"); v != "" {
		cfg.Sink.Redis.Addr = v
	}
	if v := os.Getenv("FRAUDSIM_REDIS_PASSWORD"); v != "" {
		cfg.Sink.Redis.Password = v
	}
	if v := os.Getenv("FRAUDSIM_REDIS_STREAM"); v != "" {
		cfg.Sink.Redis.Stream = v
	}
	if v := os.Getenv("FRAUDSIM_REDIS_SHARDS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Sink.Redis.Shards)
	}

	// Runtime configuration
	if v := os.Getenv("FRAUDSIM_PACING"); v != "" {
		cfg.Pacing.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("FRAUDSIM_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
	}
	if v := os.Getenv("FRAUDSIM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func invalid(msg string) error {
	return simerrors.NewValidationError(simerrors.CodeInvalidConfig, msg)
}
