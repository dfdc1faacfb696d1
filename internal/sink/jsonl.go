package sink

import (
	"context"
	"io"
	"sync"

	simerrors "github.com/arkilian/fraudsim/internal/errors"
	"github.com/arkilian/fraudsim/pkg/types"
)

// JSONLines writes one JSON object per line to an io.Writer in emission
// order. It is the local output boundary, normally bound to stdout.
type JSONLines struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONLines creates a JSON-lines sink over w.
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{w: w}
}

// Put writes tx as a single line. The partition key is ignored.
func (j *JSONLines) Put(ctx context.Context, tx *types.Transaction, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := Encode(tx)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if _, err := j.w.Write(data); err != nil {
		return simerrors.NewOutputError("failed to write transaction", err)
	}
	return nil
}

// Name returns "jsonl".
func (j *JSONLines) Name() string {
	return "jsonl"
}

// Close closes the underlying writer when it is an io.Closer other than
// the process's standard streams.
func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if f, ok := j.w.(interface{ Fd() uintptr }); ok && f.Fd() <= 2 {
		return nil
	}
	if c, ok := j.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
