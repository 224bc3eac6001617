package coordinator

import (
	"context"
	"time"

	"github.com/compose-network/proofgate/x/proofgate/prover"
)

// BeginQueueAttempt is called by the proof-queue consumer at the start
// of each delivery attempt.
func (c *Coordinator) BeginQueueAttempt(ctx context.Context, jobID string, attempt int) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	if rec.Prover.JobID != "" {
		rec.Status = StatusProverRunning
	} else {
		rec.Status = StatusDispatching
	}
	if attempt > rec.Queue.Attempts {
		rec.Queue.Attempts = attempt
	}
	rec.Queue.NextRetryAt = nil
	rec.UpdatedAt = c.now()

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}

	if rec.Prover.JobID != "" {
		c.scheduleAlarmLocked(ctx, c.cfg.PollInterval)
	}

	return rec.Clone(), nil
}

// MarkProverAccepted records a successful submit/re-submit.
func (c *Coordinator) MarkProverAccepted(ctx context.Context, jobID, proverJobID, statusURL string, segmentLimitPo2, recoveryAttempts int) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	rec.Status = StatusProverRunning
	rec.Prover.JobID = proverJobID
	rec.Prover.StatusURL = statusURL
	rec.Prover.SegmentLimitPo2 = segmentLimitPo2
	if recoveryAttempts > rec.Prover.RecoveryAttempts {
		rec.Prover.RecoveryAttempts = recoveryAttempts
	}
	rec.Queue.LastError = ""
	rec.UpdatedAt = c.now()

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}

	c.scheduleAlarmLocked(ctx, c.cfg.PollInterval)

	return rec.Clone(), nil
}

// MarkRetry transitions a job into the transient back-off state.
func (c *Coordinator) MarkRetry(ctx context.Context, jobID, reason string, clearProverJob bool) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Status.Terminal() {
		return rec, nil
	}

	rec.Status = StatusRetrying
	rec.Queue.LastError = reason
	now := c.now()
	delay := retryDelay(rec.Prover.PollingErrors)
	next := now.Add(delay)
	rec.Queue.NextRetryAt = &next
	rec.UpdatedAt = now
	if clearProverJob {
		rec.Prover.JobID = ""
		rec.Prover.StatusURL = ""
		rec.Prover.Status = ""
	}

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}

	c.scheduleAlarmLocked(ctx, delay)

	return rec.Clone(), nil
}

// MarkSucceeded finalizes a job as succeeded, clears the singleton
// slot, and enqueues the downstream claim.
func (c *Coordinator) MarkSucceeded(ctx context.Context, jobID string, summary prover.JournalSummary, artifactKey string) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}

	now := c.now()
	rec.Status = StatusSucceeded
	rec.Result = &ResultState{ArtifactKey: artifactKey, Summary: summary}
	rec.CompletedAt = &now
	rec.UpdatedAt = now
	rec.Claim.Status = ClaimQueued

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}
	c.clearActiveIfMatchingLocked(ctx, jobID)

	if err := c.claimQueue.Enqueue(ctx, jobID); err != nil {
		c.log.Error().Err(err).Str("job_id", jobID).Msg("failed to enqueue claim; job will not be claimed until recovered")
	}

	c.metrics.JobsTerminatedTotal.WithLabelValues(string(StatusSucceeded)).Inc()
	c.metrics.JobAgeSeconds.Observe(now.Sub(rec.CreatedAt).Seconds())

	c.pruneLocked(ctx)

	return rec.Clone(), nil
}

// MarkFailed finalizes a job as failed from any non-terminal state.
func (c *Coordinator) MarkFailed(ctx context.Context, jobID, reason string) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Status.Terminal() {
		return rec, nil
	}
	return c.markFailedLocked(ctx, rec, reason)
}

func (c *Coordinator) markFailedLocked(ctx context.Context, rec *ProofJobRecord, reason string) (*ProofJobRecord, error) {
	now := c.now()
	rec.Status = StatusFailed
	rec.Error = reason
	rec.CompletedAt = &now
	rec.UpdatedAt = now
	if rec.Claim.Status != ClaimSucceeded {
		rec.Claim.Status = ClaimFailed
	}

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}
	c.clearActiveIfMatchingLocked(ctx, rec.JobID)

	c.metrics.JobsTerminatedTotal.WithLabelValues(string(StatusFailed)).Inc()
	c.metrics.JobAgeSeconds.Observe(now.Sub(rec.CreatedAt).Seconds())
	c.log.Warn().Str("job_id", rec.JobID).Str("reason", reason).Msg("proof job failed")

	c.pruneLocked(ctx)

	return rec.Clone(), nil
}

func (c *Coordinator) clearActiveIfMatchingLocked(ctx context.Context, jobID string) {
	activeID, hasActive, err := c.store.GetActiveJobID(ctx)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to read active job id while clearing")
		return
	}
	if hasActive && activeID == jobID {
		if err := c.store.ClearActiveJobID(ctx); err != nil {
			c.log.Error().Err(err).Msg("failed to clear active job id")
			return
		}
		c.metrics.ActiveJob.Set(0)
	}
}

// BeginClaimAttempt is called by the claim-queue consumer at the start
// of each delivery attempt.
func (c *Coordinator) BeginClaimAttempt(ctx context.Context, jobID string, attempt int) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Status != StatusSucceeded || rec.Claim.Status.Terminal() {
		return rec, nil
	}

	rec.Claim.Status = ClaimSubmitting
	if attempt > rec.Claim.Attempts {
		rec.Claim.Attempts = attempt
	}
	now := c.now()
	rec.Claim.LastAttemptAt = &now
	rec.Claim.NextRetryAt = nil
	rec.UpdatedAt = now

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// MarkClaimRetry transitions the claim sub-state into back-off.
func (c *Coordinator) MarkClaimRetry(ctx context.Context, jobID, reason string) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Claim.Status.Terminal() {
		return rec, nil
	}

	rec.Claim.Status = ClaimRetrying
	rec.Claim.LastError = reason
	now := c.now()
	next := now.Add(retryDelay(rec.Claim.Attempts))
	rec.Claim.NextRetryAt = &next
	rec.UpdatedAt = now

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

// MarkClaimSucceeded finalizes the claim sub-state. Idempotent under redelivery.
func (c *Coordinator) MarkClaimSucceeded(ctx context.Context, jobID, txHash string) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Claim.Status == ClaimSucceeded {
		return rec, nil
	}

	now := c.now()
	rec.Claim.Status = ClaimSucceeded
	rec.Claim.TxHash = txHash
	rec.Claim.SubmittedAt = &now
	rec.UpdatedAt = now

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}
	c.metrics.ClaimsSubmittedTotal.WithLabelValues("success").Inc()
	return rec.Clone(), nil
}

// MarkClaimFailed finalizes the claim sub-state as failed; this never
// demotes the parent job's succeeded status.
func (c *Coordinator) MarkClaimFailed(ctx context.Context, jobID, reason string) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	if rec.Claim.Status.Terminal() {
		return rec, nil
	}

	rec.Claim.Status = ClaimFailed
	rec.Claim.LastError = reason
	rec.UpdatedAt = c.now()

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}
	c.metrics.ClaimsSubmittedTotal.WithLabelValues("failed").Inc()
	return rec.Clone(), nil
}

// scheduleAlarmLocked replaces any prior deadline with a single new one.
// Callers must already hold c.mu.
func (c *Coordinator) scheduleAlarmLocked(ctx context.Context, delay time.Duration) {
	if c.stopped {
		return
	}
	if delay < c.cfg.PollInterval {
		delay = c.cfg.PollInterval
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = c.timerFactory.AfterFunc(delay, func() {
		if aerr := c.Alarm(context.Background()); aerr != nil {
			c.log.Error().Err(aerr).Msg("alarm tick failed")
		}
	})
}
