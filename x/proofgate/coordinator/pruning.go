package coordinator

import (
	"context"
	"time"
)

// pruneLocked enforces the completed-job cap and retention window.
// Best-effort: failures are logged but never propagate, and pruning
// never blocks the state transition that triggered it (§9 design
// note). Callers must already hold c.mu.
func (c *Coordinator) pruneLocked(ctx context.Context) {
	terminal := make([]*ProofJobRecord, 0)
	after := ""
	for {
		page, hasMore, err := c.store.ListTerminalJobsPage(ctx, after, c.cfg.PrunePageSize)
		if err != nil {
			c.log.Error().Err(err).Msg("pruning: failed to list terminal jobs")
			return
		}
		terminal = append(terminal, page...)
		if !hasMore || len(page) == 0 {
			break
		}
		after = page[len(page)-1].JobID
	}

	now := c.now()
	toEvict := make([]*ProofJobRecord, 0)

	for _, rec := range terminal {
		age := latestOf(rec.CompletedAt, rec.UpdatedAt, rec.CreatedAt)
		if now.Sub(age) > c.cfg.CompletedJobRetention {
			toEvict = append(toEvict, rec)
		}
	}

	if over := len(terminal) - c.cfg.MaxCompletedJobs; over > 0 {
		sortOldestFirst(terminal)
		seen := make(map[string]bool, len(toEvict))
		for _, rec := range toEvict {
			seen[rec.JobID] = true
		}
		for _, rec := range terminal {
			if over <= 0 {
				break
			}
			if seen[rec.JobID] {
				continue
			}
			toEvict = append(toEvict, rec)
			seen[rec.JobID] = true
			over--
		}
	}

	for _, rec := range toEvict {
		if err := c.store.DeleteJob(ctx, rec.JobID); err != nil {
			c.log.Error().Err(err).Str("job_id", rec.JobID).Msg("pruning: failed to delete job record")
			continue
		}
		if err := c.artifacts.Delete(ctx, rec.Tape.Key); err != nil {
			c.log.Warn().Err(err).Str("job_id", rec.JobID).Msg("pruning: failed to delete tape artifact")
		}
		c.metrics.JobsPrunedTotal.Inc()
	}
}

func latestOf(completedAt *time.Time, updatedAt, createdAt time.Time) time.Time {
	latest := createdAt
	if updatedAt.After(latest) {
		latest = updatedAt
	}
	if completedAt != nil && completedAt.After(latest) {
		latest = *completedAt
	}
	return latest
}

func sortOldestFirst(recs []*ProofJobRecord) {
	// Insertion sort: pruning batches are small (PrunePageSize-bounded
	// pages aggregated across a bounded number of terminal jobs).
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && latestOf(recs[j].CompletedAt, recs[j].UpdatedAt, recs[j].CreatedAt).Before(
			latestOf(recs[j-1].CompletedAt, recs[j-1].UpdatedAt, recs[j-1].CreatedAt)); j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}
}
