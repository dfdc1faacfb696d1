// Package sink provides the output boundaries a generated transaction is
// handed to: the local JSON-lines stream and optional external streaming
// endpoints keyed by a partition key.
package sink

import (
	"context"
	"encoding/json"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/pkg/types"
)

// Sink accepts transaction records. Put is synchronous: it returns once the
// record is accepted or has failed.
type Sink interface {
	// Put delivers tx. partitionKey routes the record to a shard or
	// partition and is the card ID for generated transactions.
	Put(ctx context.Context, tx *types.Transaction, partitionKey string) error

	// Name identifies the sink in logs and metrics.
	Name() string

	// Close flushes pending records and releases resources.
	Close() error
}

// Encode renders tx in the wire format shared by all sinks.
func Encode(tx *types.Transaction) ([]byte, error) {
	data, err := json.Marshal(tx)
	if err != nil {
		return nil, simerrors.NewSinkError(simerrors.CodeEncodeFailed, "failed to encode transaction", err)
	}
	return data, nil
}

// Discard accepts and drops every record.
type Discard struct{}

func (Discard) Put(context.Context, *types.Transaction, string) error { return nil }
func (Discard) Name() string                                          { return "discard" }
func (Discard) Close() error                                          { return nil }
