// Package artifacts implements the blob store holding tape uploads and
// prover result envelopes, keyed by job id. The coordinator is the
// only writer for tape artifacts; result artifacts are co-owned and
// survive past record pruning for external retrieval.
package artifacts

import (
	"context"
	"errors"
	"fmt"
)

// ErrNotFound is returned when a key has no stored blob.
var ErrNotFound = errors.New("artifacts: not found")

// Store is a minimal blob store partitioned by key prefix.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// TapeKey returns the well-known key for a job's input tape.
func TapeKey(jobID string) string {
	return fmt.Sprintf("proof-jobs/%s/input.tape", jobID)
}

// ResultKey returns the well-known key for a job's result envelope.
func ResultKey(jobID string) string {
	return fmt.Sprintf("proof-jobs/%s/result.json", jobID)
}
