package sink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kinesis"
	kinesistypes "github.com/aws/aws-sdk-go-v2/service/kinesis/types"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/pkg/types"
)

// KinesisAPI is the subset of the Kinesis client used by the sink.
type KinesisAPI interface {
	PutRecord(ctx context.Context, params *kinesis.PutRecordInput, optFns ...func(*kinesis.Options)) (*kinesis.PutRecordOutput, error)
}

// KinesisConfig holds configuration for the Kinesis sink.
type KinesisConfig struct {
	// StreamName is the destination data stream.
	StreamName string
	// Region is the AWS region of the stream.
	Region string
	// Endpoint is an optional custom endpoint (for LocalStack and similar).
	Endpoint string
	// MaxRetries bounds retries of throttled or failed puts.
	MaxRetries int
	// RetryBaseDelay is the first backoff interval.
	RetryBaseDelay time.Duration
}

// DefaultKinesisConfig returns the default Kinesis configuration.
func DefaultKinesisConfig() KinesisConfig {
	return KinesisConfig{
		Region:         "us-east-1",
		MaxRetries:     3,
		RetryBaseDelay: 100 * time.Millisecond,
	}
}

// Kinesis puts one record per transaction onto a Kinesis data stream.
type Kinesis struct {
	client KinesisAPI
	cfg    KinesisConfig
	retry  retryPolicy
}

// NewKinesis creates a Kinesis sink using the default AWS credential chain.
func NewKinesis(ctx context.Context, cfg KinesisConfig) (*Kinesis, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, simerrors.NewSinkError(simerrors.CodeSinkUnavailable, "failed to load AWS config", err)
	}

	var kinesisOpts []func(*kinesis.Options)
	if cfg.Endpoint != "" {
		kinesisOpts = append(kinesisOpts, func(o *kinesis.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	return NewKinesisWithClient(kinesis.NewFromConfig(awsCfg, kinesisOpts...), cfg), nil
}

// NewKinesisWithClient creates a Kinesis sink with a pre-configured client.
func NewKinesisWithClient(client KinesisAPI, cfg KinesisConfig) *Kinesis {
	return &Kinesis{
		client: client,
		cfg:    cfg,
		retry: retryPolicy{
			maxRetries: cfg.MaxRetries,
			baseDelay:  cfg.RetryBaseDelay,
		},
	}
}

// Put sends tx to the stream with partitionKey as the Kinesis partition key.
func (k *Kinesis) Put(ctx context.Context, tx *types.Transaction, partitionKey string) error {
	data, err := Encode(tx)
	if err != nil {
		return err
	}

	msg := fmt.Sprintf("kinesis put to %s failed", k.cfg.StreamName)
	err = k.retry.do(ctx, func() error {
		_, putErr := k.client.PutRecord(ctx, &kinesis.PutRecordInput{
			StreamName:   aws.String(k.cfg.StreamName),
			Data:         data,
			PartitionKey: aws.String(partitionKey),
		})
		return classifyKinesisError(msg, putErr)
	})
	if err != nil && simerrors.GetCategory(err) == "" {
		return simerrors.NewSinkError(simerrors.CodePutFailed, msg, err)
	}
	return err
}

// Name returns "kinesis".
func (k *Kinesis) Name() string {
	return "kinesis"
}

// Close is a no-op; PutRecord is unbuffered.
func (k *Kinesis) Close() error {
	return nil
}

// classifyKinesisError marks a missing stream, a rejected request or a
// cancelled put as not retryable. Anything else, throttling included, is a
// retryable put failure.
func classifyKinesisError(msg string, err error) error {
	if err == nil {
		return nil
	}
	var notFound *kinesistypes.ResourceNotFoundException
	var invalid *kinesistypes.InvalidArgumentException
	if errors.As(err, &notFound) || errors.As(err, &invalid) || errors.Is(err, context.Canceled) {
		return simerrors.Wrap(simerrors.ErrCategorySink, simerrors.CodeRejected, msg, err)
	}
	return simerrors.NewSinkError(simerrors.CodePutFailed, msg, err)
}
