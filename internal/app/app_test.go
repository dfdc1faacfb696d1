package app

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/fraudsim/internal/config"
	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/pkg/types"
)

type recordingSink struct {
	mu     sync.Mutex
	keys   []string
	txs    []types.Transaction
	err    error
	closed bool
}

func (s *recordingSink) Put(_ context.Context, tx *types.Transaction, partitionKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.keys = append(s.keys, partitionKey)
	s.txs = append(s.txs, *tx)
	return nil
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func testConfig(n int) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Simulation.Cards = 4
	cfg.Simulation.Transactions = n
	cfg.Simulation.StartTime = "2024-01-01T00:00:00Z"
	seed := uint64(99)
	cfg.Simulation.Seed = &seed
	return cfg
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func decodeLines(t *testing.T, data []byte) []types.Transaction {
	t.Helper()
	var out []types.Transaction
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var tx types.Transaction
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &tx))
		out = append(out, tx)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestRun_WritesOneLinePerTransaction(t *testing.T) {
	var buf bytes.Buffer
	a, err := New(context.Background(), testConfig(25), WithOutput(&buf), WithLogger(quietLogger()))
	require.NoError(t, err)

	sum, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 25, sum.Emitted)
	assert.Zero(t, sum.SinkFailures)

	txs := decodeLines(t, buf.Bytes())
	require.Len(t, txs, 25)
	for _, tx := range txs {
		assert.True(t, strings.HasPrefix(tx.CardID, "CARD_"))
		assert.True(t, strings.HasPrefix(tx.MerchantID, "MERCHANT_"))
		_, err := types.ParseTimestamp(tx.Timestamp)
		assert.NoError(t, err)
	}
	require.NoError(t, a.Close(context.Background(), "finished"))
}

func TestRun_SeededOutputIsReproducible(t *testing.T) {
	run := func() []byte {
		var buf bytes.Buffer
		a, err := New(context.Background(), testConfig(40), WithOutput(&buf), WithLogger(quietLogger()))
		require.NoError(t, err)
		_, err = a.Run(context.Background())
		require.NoError(t, err)
		return buf.Bytes()
	}
	assert.Equal(t, run(), run())
}

func TestRun_ExternalSinkReceivesSameRecords(t *testing.T) {
	var buf bytes.Buffer
	s := &recordingSink{}
	a, err := New(context.Background(), testConfig(30),
		WithOutput(&buf), WithSink(s), WithLogger(quietLogger()))
	require.NoError(t, err)

	_, err = a.Run(context.Background())
	require.NoError(t, err)

	local := decodeLines(t, buf.Bytes())
	require.Len(t, s.txs, len(local))
	for i := range local {
		assert.Equal(t, local[i], s.txs[i])
		assert.Equal(t, local[i].CardID, s.keys[i], "partition key is the card ID")
	}

	require.NoError(t, a.Close(context.Background(), "finished"))
	assert.True(t, s.closed)
}

func TestRun_SinkFailureContinues(t *testing.T) {
	var buf bytes.Buffer
	s := &recordingSink{err: simerrors.NewSinkError(simerrors.CodePutFailed, "throttled", nil)}
	a, err := New(context.Background(), testConfig(10),
		WithOutput(&buf), WithSink(s), WithLogger(quietLogger()))
	require.NoError(t, err)

	sum, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, sum.Emitted)
	assert.Equal(t, 10, sum.SinkFailures)
	assert.Len(t, decodeLines(t, buf.Bytes()), 10)
}

func TestRun_StopOnSinkFailure(t *testing.T) {
	cfg := testConfig(10)
	cfg.Sink.StopOnFailure = true
	sinkErr := simerrors.NewSinkError(simerrors.CodePutFailed, "throttled", nil)

	var buf bytes.Buffer
	a, err := New(context.Background(), cfg,
		WithOutput(&buf), WithSink(&recordingSink{err: sinkErr}), WithLogger(quietLogger()))
	require.NoError(t, err)

	sum, err := a.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, sinkErr))
	assert.Equal(t, 1, sum.Emitted)
	assert.Equal(t, 1, sum.SinkFailures)
}

func TestRun_LocalWriteFailureStops(t *testing.T) {
	a, err := New(context.Background(), testConfig(10),
		WithOutput(failingWriter{}), WithLogger(quietLogger()))
	require.NoError(t, err)

	sum, err := a.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, simerrors.ErrCategoryOutput, simerrors.GetCategory(err))
	assert.Zero(t, sum.Emitted)
}

func TestRun_PacingSleepsBetweenTransactions(t *testing.T) {
	cfg := testConfig(5)
	cfg.Pacing.Enabled = true

	var delays []time.Duration
	a, err := New(context.Background(), cfg,
		WithOutput(io.Discard),
		WithLogger(quietLogger()),
		WithSleep(func(_ context.Context, d time.Duration) error {
			delays = append(delays, d)
			return nil
		}))
	require.NoError(t, err)

	clockBefore := a.Generator().Clock()
	_, err = a.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, delays, 4)
	for _, d := range delays {
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
	}
	assert.False(t, a.Generator().Clock().Equal(clockBefore))
}

func TestRun_PacingDoesNotChangeRecords(t *testing.T) {
	run := func(paced bool) []byte {
		cfg := testConfig(20)
		cfg.Pacing.Enabled = paced
		var buf bytes.Buffer
		a, err := New(context.Background(), cfg,
			WithOutput(&buf),
			WithLogger(quietLogger()),
			WithSleep(func(context.Context, time.Duration) error { return nil }))
		require.NoError(t, err)
		_, err = a.Run(context.Background())
		require.NoError(t, err)
		return buf.Bytes()
	}
	assert.Equal(t, run(false), run(true))
}

func TestRun_CancelledContext(t *testing.T) {
	a, err := New(context.Background(), testConfig(10), WithOutput(io.Discard), WithLogger(quietLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sum, err := a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, sum.Emitted)
}

func TestRun_InterruptedDuringPacing(t *testing.T) {
	cfg := testConfig(10)
	cfg.Pacing.Enabled = true

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := New(ctx, cfg, WithOutput(io.Discard), WithLogger(quietLogger()),
		WithSleep(func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		}))
	require.NoError(t, err)

	sum, err := a.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, sum.Emitted)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(10)
	cfg.Simulation.CompromiseProbability = -0.1

	_, err := New(context.Background(), cfg, WithOutput(io.Discard), WithLogger(quietLogger()))
	require.Error(t, err)
	assert.Equal(t, simerrors.ErrCategoryValidation, simerrors.GetCategory(err))
}

func TestNew_LogsInitialization(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))

	a, err := New(context.Background(), testConfig(3), WithOutput(io.Discard), WithLogger(logger))
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	require.NoError(t, err)

	out := logs.String()
	assert.Contains(t, out, `"msg":"initializing cards"`)
	assert.Contains(t, out, `"msg":"finished"`)
	assert.Contains(t, out, `"transactions":3`)
}

func TestRun_MetricsCountTransactions(t *testing.T) {
	a, err := New(context.Background(), testConfig(12), WithOutput(io.Discard), WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = a.Run(context.Background())
	require.NoError(t, err)

	families, err := a.Metrics().Registry().Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != "fraudsim_transactions_generated_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 12.0, total)
}
