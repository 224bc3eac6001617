package consumers

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/compose-network/proofgate/x/proofgate/coordinator"
	"github.com/compose-network/proofgate/x/proofgate/queue"
)

// ClaimOutcomeKind tags the result of a claim submission.
type ClaimOutcomeKind string

const (
	ClaimSuccess   ClaimOutcomeKind = "success"
	ClaimTransient ClaimOutcomeKind = "transient"
	ClaimFatal     ClaimOutcomeKind = "fatal"
)

// ClaimOutcome is the sum type a ClaimSubmitter returns.
type ClaimOutcome struct {
	Kind    ClaimOutcomeKind
	TxHash  string
	Message string
}

// ClaimSubmitter performs the out-of-scope on-chain claim submission
// (smart-contract transaction construction is an explicit non-goal;
// see SPEC_FULL.md §1).
type ClaimSubmitter interface {
	Submit(ctx context.Context, jobID, claimantAddress string, summary coordinator.ResultState) (ClaimOutcome, error)
}

// ClaimCoordinator is the subset of *coordinator.Coordinator the claim
// consumer depends on.
type ClaimCoordinator interface {
	BeginClaimAttempt(ctx context.Context, jobID string, attempt int) (*coordinator.ProofJobRecord, error)
	MarkClaimRetry(ctx context.Context, jobID, reason string) (*coordinator.ProofJobRecord, error)
	MarkClaimSucceeded(ctx context.Context, jobID, txHash string) (*coordinator.ProofJobRecord, error)
	MarkClaimFailed(ctx context.Context, jobID, reason string) (*coordinator.ProofJobRecord, error)
}

// ClaimConsumer drives the claim queue, one message at a time; claim
// work is idempotent per job.
type ClaimConsumer struct {
	coord     ClaimCoordinator
	queue     queue.Queue
	submitter ClaimSubmitter
	log       zerolog.Logger
}

// NewClaimConsumer constructs a ClaimConsumer.
func NewClaimConsumer(coord ClaimCoordinator, q queue.Queue, submitter ClaimSubmitter, log zerolog.Logger) *ClaimConsumer {
	return &ClaimConsumer{
		coord:     coord,
		queue:     q,
		submitter: submitter,
		log:       log.With().Str("component", "claim-consumer").Logger(),
	}
}

// Run drives the consumer loop until ctx is cancelled.
func (c *ClaimConsumer) Run(ctx context.Context) {
	for {
		msg, err := c.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			c.log.Error().Err(err).Msg("claim queue dequeue failed")
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *ClaimConsumer) handle(ctx context.Context, msg *queue.Message) {
	rec, err := c.coord.BeginClaimAttempt(ctx, msg.JobID, msg.Attempts)
	if err != nil {
		c.log.Error().Err(err).Str("job_id", msg.JobID).Msg("begin claim attempt failed")
		return
	}
	if rec == nil || rec.Status != coordinator.StatusSucceeded {
		return // ack: job never reached succeeded, or was pruned
	}
	if rec.Claim.Status == coordinator.ClaimSucceeded || rec.Claim.Status == coordinator.ClaimFailed {
		return // ack: idempotent short-circuit on redelivery
	}
	if rec.Result == nil {
		return // ack: I4 precondition not met, should not happen
	}

	outcome, err := c.submitter.Submit(ctx, msg.JobID, rec.Claim.ClaimantAddress, *rec.Result)
	if err != nil {
		return // context cancellation: let redelivery retry later
	}

	switch outcome.Kind {
	case ClaimSuccess:
		if _, err := c.coord.MarkClaimSucceeded(ctx, msg.JobID, outcome.TxHash); err != nil {
			c.log.Error().Err(err).Str("job_id", msg.JobID).Msg("mark claim succeeded failed")
		}

	case ClaimTransient:
		if _, err := c.coord.MarkClaimRetry(ctx, msg.JobID, outcome.Message); err != nil {
			c.log.Error().Err(err).Str("job_id", msg.JobID).Msg("mark claim retry failed")
		}
		if rerr := c.queue.RequeueWithDelay(ctx, msg.JobID, deadlineFromNow()); rerr != nil {
			c.log.Error().Err(rerr).Str("job_id", msg.JobID).Msg("requeue claim after retry failed")
		}

	case ClaimFatal:
		if _, err := c.coord.MarkClaimFailed(ctx, msg.JobID, outcome.Message); err != nil {
			c.log.Error().Err(err).Str("job_id", msg.JobID).Msg("mark claim failed failed")
		}
	}
}
