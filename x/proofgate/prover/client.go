package prover

import "context"

// Client is the Prover Client contract: submit a tape for proving and
// poll a previously submitted job. Both methods classify every failure
// mode into the returned outcome's tag rather than via error; error is
// reserved for context cancellation, since the coordinator's state
// machine is meant to be a pure dispatch on data (see SPEC_FULL.md §12).
type Client interface {
	Submit(ctx context.Context, tape []byte, opts SubmitOptions) (SubmitOutcome, error)
	PollOnce(ctx context.Context, proverJobID string) (PollResult, error)
	GetHealth(ctx context.Context) (HealthStatus, error)
}
