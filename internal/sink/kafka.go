package sink

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/pkg/types"
)

// KafkaProducer is the subset of *kafka.Producer used by the sink.
type KafkaProducer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// KafkaConfig holds configuration for the Kafka sink.
type KafkaConfig struct {
	// Brokers is the bootstrap server list.
	Brokers []string
	// Topic receives one message per transaction.
	Topic string
	// DeliveryTimeout bounds the wait for each delivery report.
	DeliveryTimeout time.Duration
	// FlushTimeout bounds the final flush on Close.
	FlushTimeout time.Duration
}

// DefaultKafkaConfig returns the default Kafka configuration.
func DefaultKafkaConfig() KafkaConfig {
	return KafkaConfig{
		Brokers:         []string{"localhost:9092"},
		Topic:           "raw_transactions",
		DeliveryTimeout: 10 * time.Second,
		FlushTimeout:    5 * time.Second,
	}
}

// Kafka produces transactions to a Kafka topic keyed by partition key, so
// all records of a card land on the same partition.
type Kafka struct {
	producer KafkaProducer
	cfg      KafkaConfig
}

// NewKafka connects a producer to the configured brokers.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": strings.Join(cfg.Brokers, ","),
		"acks":              "all",
	})
	if err != nil {
		return nil, simerrors.NewSinkError(simerrors.CodeSinkUnavailable, "failed to create kafka producer", err)
	}
	return NewKafkaWithProducer(p, cfg), nil
}

// NewKafkaWithProducer creates a Kafka sink over an existing producer.
func NewKafkaWithProducer(p KafkaProducer, cfg KafkaConfig) *Kafka {
	return &Kafka{producer: p, cfg: cfg}
}

// Put produces tx and waits for its delivery report.
func (k *Kafka) Put(ctx context.Context, tx *types.Transaction, partitionKey string) error {
	data, err := Encode(tx)
	if err != nil {
		return err
	}

	topic := k.cfg.Topic
	deliveryChan := make(chan kafka.Event, 1)
	err = k.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(partitionKey),
		Value:          data,
	}, deliveryChan)
	if err != nil {
		return simerrors.NewSinkError(simerrors.CodePutFailed, fmt.Sprintf("kafka produce to %s failed", topic), err)
	}

	timeout := k.cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = DefaultKafkaConfig().DeliveryTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case e := <-deliveryChan:
		m, ok := e.(*kafka.Message)
		if !ok {
			return simerrors.NewSinkError(simerrors.CodePutFailed,
				fmt.Sprintf("unexpected kafka delivery event %v", e), nil)
		}
		if m.TopicPartition.Error != nil {
			return simerrors.NewSinkError(simerrors.CodePutFailed,
				fmt.Sprintf("kafka delivery to %s failed", topic), m.TopicPartition.Error)
		}
		return nil
	case <-timer.C:
		return simerrors.NewSinkError(simerrors.CodePutFailed,
			fmt.Sprintf("kafka delivery to %s timed out after %v", topic, timeout), nil)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name returns "kafka".
func (k *Kafka) Name() string {
	return "kafka"
}

// Close flushes outstanding messages and closes the producer.
func (k *Kafka) Close() error {
	remaining := k.producer.Flush(int(k.cfg.FlushTimeout.Milliseconds()))
	k.producer.Close()
	if remaining > 0 {
		return simerrors.NewSinkError(simerrors.CodePutFailed,
			fmt.Sprintf("%d kafka messages not delivered before close", remaining), nil)
	}
	return nil
}
