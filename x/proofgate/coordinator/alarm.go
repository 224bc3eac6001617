package coordinator

import (
	"context"
	"strings"
	"time"

	"github.com/compose-network/proofgate/x/proofgate/artifacts"
	"github.com/compose-network/proofgate/x/proofgate/prover"
)

// Alarm is the scheduled timer tick: a full poll-and-drive pass that
// may re-submit a lost prover job and always re-arms the timer.
func (c *Coordinator) Alarm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickLocked(ctx, true)
}

// KickAlarm is the opportunistic entry point invoked from a hot read:
// one poll, no scheduling, no re-submit. Safe under the single-writer
// invariant and must produce identical state to Alarm for the same
// poll result (P7).
func (c *Coordinator) KickAlarm(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tickLocked(ctx, false)
}

func (c *Coordinator) tickLocked(ctx context.Context, scheduleNext bool) error {
	activeID, hasActive, err := c.store.GetActiveJobID(ctx)
	if err != nil {
		return err
	}
	if !hasActive || activeID == "" {
		return nil
	}

	rec, err := c.store.GetJob(ctx, activeID)
	if err != nil {
		return err
	}
	if rec == nil || rec.Status.Terminal() {
		return nil
	}

	if c.now().Sub(rec.CreatedAt) > c.cfg.MaxJobWallTime {
		_, err := c.markFailedLocked(ctx, rec, "job timed out: exceeded max wall time")
		return err
	}

	if rec.Prover.JobID == "" {
		if !scheduleNext {
			// kickAlarm never re-submits; the timer will.
			return nil
		}
		return c.recoverySubmitLocked(ctx, rec)
	}

	result, err := c.prover.PollOnce(ctx, rec.Prover.JobID)
	if err != nil {
		return err
	}
	c.metrics.ProverPollsTotal.WithLabelValues(string(result.Kind)).Inc()

	return c.applyPollResultLocked(ctx, rec, result, scheduleNext)
}

// applyPollResultLocked dispatches on the prover poll outcome's tag,
// shared between Alarm and KickAlarm; scheduleNext distinguishes
// whether back-off alarms and re-submit side effects fire.
func (c *Coordinator) applyPollResultLocked(ctx context.Context, rec *ProofJobRecord, result prover.PollResult, scheduleNext bool) error {
	now := c.now()

	switch result.Kind {
	case prover.PollRunning:
		rec.Prover.Status = result.Status
		rec.Prover.LastPolledAt = &now
		rec.Prover.PollingErrors = 0
		rec.Queue.LastError = ""
		rec.UpdatedAt = now
		if err := c.store.PutJob(ctx, rec); err != nil {
			return err
		}
		if scheduleNext {
			c.scheduleAlarmLocked(ctx, c.cfg.PollInterval)
		}
		return nil

	case prover.PollSuccess:
		summary := prover.Summarize(result.Response)
		artifactKey := artifacts.ResultKey(rec.JobID)
		envelope := resultEnvelope{StoredAt: now, ProverResponse: result.Response.Raw}

		data, merr := marshalResultEnvelope(envelope)
		if merr == nil {
			merr = c.artifacts.Put(ctx, artifactKey, data)
		}
		if merr != nil {
			rec.Prover.PollingErrors++
			rec.Queue.LastError = merr.Error()
			rec.UpdatedAt = now
			if scheduleNext {
				rec.Status = StatusRetrying
				delay := retryDelay(rec.Prover.PollingErrors)
				next := now.Add(delay)
				rec.Queue.NextRetryAt = &next
				if err := c.store.PutJob(ctx, rec); err != nil {
					return err
				}
				c.scheduleAlarmLocked(ctx, delay)
				return nil
			}
			return c.store.PutJob(ctx, rec)
		}

		_, err := c.markSucceededLocked(ctx, rec, summary, artifactKey)
		return err

	case prover.PollRetry:
		return c.applyPollRetryLocked(ctx, rec, result, scheduleNext)

	case prover.PollFatal:
		_, err := c.markFailedLocked(ctx, rec, result.Message)
		return err
	}

	return nil
}

func (c *Coordinator) applyPollRetryLocked(ctx context.Context, rec *ProofJobRecord, result prover.PollResult, scheduleNext bool) error {
	now := c.now()

	if result.ClearProverJob {
		if !scheduleNext {
			// kickAlarm: only clear state, the timer performs re-submit.
			rec.Prover.JobID = ""
			rec.Prover.StatusURL = ""
			rec.Prover.Status = ""
			rec.Prover.PollingErrors++
			rec.Prover.RecoveryAttempts++
			rec.Status = StatusRetrying
			rec.Queue.LastError = result.Message
			rec.UpdatedAt = now
			return c.store.PutJob(ctx, rec)
		}

		if rec.Prover.RecoveryAttempts >= c.cfg.MaxProverRecoveryAttempts {
			_, err := c.markFailedLocked(ctx, rec, "lost prover job: exceeded max recovery attempts")
			return err
		}

		rec.Queue.LastError = result.Message
		return c.recoverySubmitLocked(ctx, rec)
	}

	rec.Prover.PollingErrors++
	rec.Queue.LastError = result.Message
	rec.UpdatedAt = now
	if scheduleNext {
		rec.Status = StatusRetrying
		delay := retryDelay(rec.Prover.PollingErrors)
		next := now.Add(delay)
		rec.Queue.NextRetryAt = &next
		if err := c.store.PutJob(ctx, rec); err != nil {
			return err
		}
		c.scheduleAlarmLocked(ctx, delay)
		return nil
	}
	return c.store.PutJob(ctx, rec)
}

// recoverySubmitLocked re-submits a tape after losing the prover job
// id, applying the OOM downscale heuristic from the last known error.
func (c *Coordinator) recoverySubmitLocked(ctx context.Context, rec *ProofJobRecord) error {
	tapeBytes, err := c.artifacts.Get(ctx, rec.Tape.Key)
	if err != nil {
		_, ferr := c.markFailedLocked(ctx, rec, "missing tape artifact")
		if ferr != nil {
			return ferr
		}
		return nil
	}

	segmentLimit := rec.Prover.SegmentLimitPo2
	if segmentLimit == 0 {
		segmentLimit = c.cfg.SegmentLimitPo2Default
	}
	if isOOMMessage(rec.Queue.LastError) && segmentLimit > c.cfg.SegmentLimitPo2Default {
		c.log.Info().Str("job_id", rec.JobID).Msg("downscaling segment_limit_po2 after OOM retry")
		segmentLimit = c.cfg.SegmentLimitPo2Default
	}

	submitStart := time.Now()
	outcome, err := c.prover.Submit(ctx, tapeBytes, prover.SubmitOptions{SegmentLimitPo2: segmentLimit})
	c.metrics.ProverSubmitLatency.Observe(time.Since(submitStart).Seconds())
	if err != nil {
		return err
	}

	switch outcome.Kind {
	case prover.SubmitSuccess:
		c.metrics.ProverRecoveryTotal.Inc()
		_, err := c.markProverAcceptedLocked(ctx, rec, outcome.ProverJobID, outcome.StatusURL, outcome.SegmentLimitPo2, rec.Prover.RecoveryAttempts+1)
		return err

	case prover.SubmitRetry:
		now := c.now()
		rec.Prover.PollingErrors++
		rec.Prover.RecoveryAttempts++
		rec.Queue.LastError = outcome.Message
		rec.UpdatedAt = now
		if rec.Prover.RecoveryAttempts >= c.cfg.MaxProverRecoveryAttempts {
			_, err := c.markFailedLocked(ctx, rec, "lost prover job: exceeded max recovery attempts during re-submit")
			return err
		}
		rec.Status = StatusRetrying
		delay := retryDelay(rec.Prover.PollingErrors)
		next := now.Add(delay)
		rec.Queue.NextRetryAt = &next
		if err := c.store.PutJob(ctx, rec); err != nil {
			return err
		}
		c.scheduleAlarmLocked(ctx, delay)
		return nil

	case prover.SubmitFatal:
		_, err := c.markFailedLocked(ctx, rec, outcome.Message)
		return err
	}
	return nil
}

func isOOMMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "out of memory") || strings.Contains(lower, "allocation failed")
}

// markProverAcceptedLocked and markSucceededLocked let internal alarm
// logic reuse the public transition bodies without re-acquiring c.mu.
func (c *Coordinator) markProverAcceptedLocked(ctx context.Context, rec *ProofJobRecord, proverJobID, statusURL string, segmentLimitPo2, recoveryAttempts int) (*ProofJobRecord, error) {
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

func (c *Coordinator) markSucceededLocked(ctx context.Context, rec *ProofJobRecord, summary prover.JournalSummary, artifactKey string) (*ProofJobRecord, error) {
	now := c.now()
	rec.Status = StatusSucceeded
	rec.Result = &ResultState{ArtifactKey: artifactKey, Summary: summary}
	rec.CompletedAt = &now
	rec.UpdatedAt = now
	rec.Claim.Status = ClaimQueued

	if err := c.store.PutJob(ctx, rec); err != nil {
		return nil, err
	}
	c.clearActiveIfMatchingLocked(ctx, rec.JobID)

	if err := c.claimQueue.Enqueue(ctx, rec.JobID); err != nil {
		c.log.Error().Err(err).Str("job_id", rec.JobID).Msg("failed to enqueue claim; job will not be claimed until recovered")
	}

	c.metrics.JobsTerminatedTotal.WithLabelValues(string(StatusSucceeded)).Inc()
	c.metrics.JobAgeSeconds.Observe(now.Sub(rec.CreatedAt).Seconds())
	c.pruneLocked(ctx)

	return rec.Clone(), nil
}
