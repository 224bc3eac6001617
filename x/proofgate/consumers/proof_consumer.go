// Package consumers drives the proof and claim task queues under the
// coordinator's supervision: pure translation of queue events into
// coordinator operations, grounded on the sbcp-controller's
// peek/attempt/dequeue-or-requeue loop.
package consumers

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/compose-network/proofgate/metrics"
	"github.com/compose-network/proofgate/x/proofgate/artifacts"
	"github.com/compose-network/proofgate/x/proofgate/coordinator"
	"github.com/compose-network/proofgate/x/proofgate/prover"
	"github.com/compose-network/proofgate/x/proofgate/queue"
)

// Coordinator is the subset of *coordinator.Coordinator the proof
// consumer depends on.
type Coordinator interface {
	BeginQueueAttempt(ctx context.Context, jobID string, attempt int) (*coordinator.ProofJobRecord, error)
	MarkProverAccepted(ctx context.Context, jobID, proverJobID, statusURL string, segmentLimitPo2, recoveryAttempts int) (*coordinator.ProofJobRecord, error)
	MarkRetry(ctx context.Context, jobID, reason string, clearProverJob bool) (*coordinator.ProofJobRecord, error)
	MarkFailed(ctx context.Context, jobID, reason string) (*coordinator.ProofJobRecord, error)
}

// ProofConsumer processes exactly one proof-queue message at a time
// per SPEC_FULL.md §7 (concurrency 1).
type ProofConsumer struct {
	coord     Coordinator
	queue     queue.Queue
	artifacts artifacts.Store
	prover    prover.Client
	metrics   *metrics.CoordinatorMetrics
	log       zerolog.Logger
}

// NewProofConsumer constructs a ProofConsumer.
func NewProofConsumer(coord Coordinator, q queue.Queue, store artifacts.Store, p prover.Client, m *metrics.CoordinatorMetrics, log zerolog.Logger) *ProofConsumer {
	return &ProofConsumer{
		coord:     coord,
		queue:     q,
		artifacts: store,
		prover:    p,
		metrics:   m,
		log:       log.With().Str("component", "proof-consumer").Logger(),
	}
}

// Run drives the consumer loop until ctx is cancelled.
func (p *ProofConsumer) Run(ctx context.Context) {
	for {
		msg, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			p.log.Error().Err(err).Msg("proof queue dequeue failed")
			continue
		}
		p.handle(ctx, msg)
	}
}

func (p *ProofConsumer) handle(ctx context.Context, msg *queue.Message) {
	rec, err := p.coord.BeginQueueAttempt(ctx, msg.JobID, msg.Attempts)
	if err != nil {
		p.log.Error().Err(err).Str("job_id", msg.JobID).Msg("begin queue attempt failed")
		return
	}
	if rec == nil || rec.Status == coordinator.StatusSucceeded || rec.Status == coordinator.StatusFailed {
		return // ack: nothing more to do
	}

	if rec.Prover.JobID != "" {
		// Redelivery after crash; the timer drives polling from here.
		return
	}

	tapeBytes, err := p.artifacts.Get(ctx, rec.Tape.Key)
	if err != nil {
		if _, ferr := p.coord.MarkFailed(ctx, msg.JobID, "missing tape artifact"); ferr != nil {
			p.log.Error().Err(ferr).Str("job_id", msg.JobID).Msg("mark failed after missing tape")
		}
		return
	}

	segmentLimit := rec.Prover.SegmentLimitPo2
	submitStart := time.Now()
	outcome, err := p.prover.Submit(ctx, tapeBytes, prover.SubmitOptions{SegmentLimitPo2: segmentLimit})
	if p.metrics != nil {
		p.metrics.ProverSubmitLatency.Observe(time.Since(submitStart).Seconds())
	}
	if err != nil {
		// Context cancellation: let redelivery retry later.
		return
	}

	switch outcome.Kind {
	case prover.SubmitSuccess:
		if _, err := p.coord.MarkProverAccepted(ctx, msg.JobID, outcome.ProverJobID, outcome.StatusURL, outcome.SegmentLimitPo2, rec.Prover.RecoveryAttempts); err != nil {
			p.log.Error().Err(err).Str("job_id", msg.JobID).Msg("mark prover accepted failed")
		}

	case prover.SubmitRetry:
		if _, err := p.coord.MarkRetry(ctx, msg.JobID, outcome.Message, false); err != nil {
			p.log.Error().Err(err).Str("job_id", msg.JobID).Msg("mark retry failed")
		}
		if rerr := p.queue.RequeueWithDelay(ctx, msg.JobID, deadlineFromNow()); rerr != nil {
			p.log.Error().Err(rerr).Str("job_id", msg.JobID).Msg("requeue after retry failed")
		}

	case prover.SubmitFatal:
		if _, err := p.coord.MarkFailed(ctx, msg.JobID, outcome.Message); err != nil {
			p.log.Error().Err(err).Str("job_id", msg.JobID).Msg("mark failed failed")
		}
	}
}
