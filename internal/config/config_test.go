package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/internal/simulator"
)

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.SinkEnabled())
	assert.Equal(t, simulator.DefaultParams(), cfg.Params())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"zero cards", func(c *Config) { c.Simulation.Cards = 0 }, false},
		{"fraud probability above one", func(c *Config) { c.Simulation.FraudProbability = 1.5 }, false},
		{"bad start time", func(c *Config) { c.Simulation.StartTime = "yesterday" }, false},
		{"kinesis without stream", func(c *Config) {
			c.Sink.Type = SinkKinesis
			c.Sink.Kinesis.StreamName = ""
		}, false},
		{"kinesis with stream", func(c *Config) { c.Sink.Type = SinkKinesis }, true},
		{"kafka without topic", func(c *Config) {
			c.Sink.Type = SinkKafka
			c.Sink.Kafka.Topic = ""
		}, false},
		{"kafka without brokers", func(c *Config) {
			c.Sink.Type = SinkKafka
			c.Sink.Kafka.Brokers = nil
		}, false},
		{"redis zero shards", func(c *Config) {
			c.Sink.Type = SinkRedis
			c.Sink.Redis.Shards = 0
		}, false},
		{"redis defaults", func(c *Config) { c.Sink.Type = SinkRedis }, true},
		{"unknown sink", func(c *Config) { c.Sink.Type = "pigeon" }, false},
		{"unknown log level", func(c *Config) { c.Log.Level = "loud" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, simerrors.ErrCategoryValidation, simerrors.GetCategory(err))
		})
	}
}

func TestParseStartTime(t *testing.T) {
	cfg := DefaultConfig()
	_, ok, err := cfg.ParseStartTime()
	require.NoError(t, err)
	assert.False(t, ok)

	cfg.Simulation.StartTime = "2024-03-01T12:00:00+02:00"
	ts, ok, err := cfg.ParseStartTime()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), ts)
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fraudsim.yaml")
	data := `
simulation:
  cards: 5
  transactions: 20
  avg_delay: 2s
  seed: 42
  fraud_amount:
    min: 500
    max: 900
sink:
  type: redis
  redis:
    addr: redis:6379
    shards: 4
pacing:
  enabled: true
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Simulation.Cards)
	assert.Equal(t, 20, cfg.Simulation.Transactions)
	assert.Equal(t, 2*time.Second, cfg.Simulation.AvgDelay.Std())
	require.NotNil(t, cfg.Simulation.Seed)
	assert.Equal(t, uint64(42), *cfg.Simulation.Seed)
	assert.Equal(t, simulator.Range{Min: 500, Max: 900}, cfg.Simulation.FraudAmount)
	assert.Equal(t, SinkRedis, cfg.Sink.Type)
	assert.Equal(t, "redis:6379", cfg.Sink.Redis.Addr)
	assert.Equal(t, 4, cfg.Sink.Redis.Shards)
	// Unset keys keep their defaults.
	assert.Equal(t, "transactions", cfg.Sink.Redis.Stream)
	assert.Equal(t, 0.10, cfg.Simulation.CompromiseProbability)
	assert.True(t, cfg.Pacing.Enabled)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromFile_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fraudsim.json")
	data := `{"simulation": {"cards": 3, "transactions": 7}, "sink": {"type": "kafka", "kafka": {"topic": "tx"}}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Simulation.Cards)
	assert.Equal(t, 7, cfg.Simulation.Transactions)
	assert.Equal(t, SinkKafka, cfg.Sink.Type)
	assert.Equal(t, "tx", cfg.Sink.Kafka.Topic)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Sink.Kafka.Brokers)
}

func TestLoadFromFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	toml := filepath.Join(dir, "fraudsim.toml")
	require.NoError(t, os.WriteFile(toml, []byte("cards = 1"), 0o644))
	_, err = LoadFromFile(toml)
	assert.Error(t, err)

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("simulation: [unclosed"), 0o644))
	_, err = LoadFromFile(broken)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FRAUDSIM_CARDS", "12")
	t.Setenv("FRAUDSIM_TRANSACTIONS", "34")
	t.Setenv("FRAUDSIM_FRAUD_PROBABILITY", "0.25")
	t.Setenv("FRAUDSIM_AVG_DELAY", "250ms")
	t.Setenv("FRAUDSIM_SEED", "7")
	t.Setenv("FRAUDSIM_SINK_TYPE", "kinesis")
	t.Setenv("FRAUDSIM_SINK_STOP_ON_FAILURE", "true")
	t.Setenv("FRAUDSIM_KINESIS_STREAM", "tx-stream")
	t.Setenv("FRAUDSIM_KINESIS_ENDPOINT", "http://localhost:4566")
	t.Setenv("FRAUDSIM_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("FRAUDSIM_PACING", "1")
	t.Setenv("FRAUDSIM_METRICS_ADDR", ":9100")
	t.Setenv("FRAUDSIM_LOG_LEVEL", "debug")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)

	assert.Equal(t, 12, cfg.Simulation.Cards)
	assert.Equal(t, 34, cfg.Simulation.Transactions)
	assert.InDelta(t, 0.25, cfg.Simulation.FraudProbability, 1e-12)
	assert.Equal(t, 250*time.Millisecond, cfg.Simulation.AvgDelay.Std())
	require.NotNil(t, cfg.Simulation.Seed)
	assert.Equal(t, uint64(7), *cfg.Simulation.Seed)
	assert.Equal(t, SinkKinesis, cfg.Sink.Type)
	assert.True(t, cfg.Sink.StopOnFailure)
	assert.Equal(t, "tx-stream", cfg.Sink.Kinesis.StreamName)
	assert.Equal(t, "http://localhost:4566", cfg.Sink.Kinesis.Endpoint)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Sink.Kafka.Brokers)
	assert.True(t, cfg.Pacing.Enabled)
	assert.Equal(t, ":9100", cfg.Metrics.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnv_IgnoresUnparsable(t *testing.T) {
	t.Setenv("FRAUDSIM_AVG_DELAY", "soon")
	t.Setenv("FRAUDSIM_SEED", "abc")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	assert.Equal(t, 500*time.Millisecond, cfg.Simulation.AvgDelay.Std())
	assert.Nil(t, cfg.Simulation.Seed)
}
