package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/compose-network/proofgate/metrics"
	"github.com/compose-network/proofgate/x/proofgate/artifacts"
	"github.com/compose-network/proofgate/x/proofgate/prover"
	"github.com/compose-network/proofgate/x/proofgate/queue"
	"github.com/compose-network/proofgate/x/proofgate/tape"
)

var (
	// ErrNotFound is returned by operations addressing an unknown jobId.
	ErrNotFound = errors.New("coordinator: job not found")
	// ErrTerminal is returned when an operation requires a non-terminal job.
	ErrTerminal = errors.New("coordinator: job already terminal")
)

// CreateJobResult is the outcome of createJob: either the new job was
// accepted, or the singleton was busy and the caller gets the active job.
type CreateJobResult struct {
	Accepted  bool
	Job       *ProofJobRecord
	ActiveJob *ProofJobRecord
}

// Coordinator is the fleet-singleton proof coordination actor. The host
// must guarantee single-writer execution over the instance; in this
// implementation that guarantee is an in-process mutex, which is
// correct only for a single-replica or leader-elected deployment (see
// SPEC_FULL.md §6.1 and DESIGN.md).
type Coordinator struct {
	mu sync.Mutex

	log     zerolog.Logger
	cfg     Config
	metrics *metrics.CoordinatorMetrics
	now     func() time.Time

	store      Store
	artifacts  artifacts.Store
	proofQueue queue.Queue
	claimQueue queue.Queue
	prover     prover.Client

	timerFactory TimerFactory
	timer        Timer
	stopped      bool
}

// Dependencies bundles the Coordinator's collaborators.
type Dependencies struct {
	Store        Store
	Artifacts    artifacts.Store
	ProofQueue   queue.Queue
	ClaimQueue   queue.Queue
	Prover       prover.Client
	TimerFactory TimerFactory
	Now          func() time.Time
}

// New constructs a Coordinator. Nil optional dependencies get sensible
// defaults (system clock, system timer).
func New(cfg Config, deps Dependencies, log zerolog.Logger, m *metrics.CoordinatorMetrics) *Coordinator {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	tf := deps.TimerFactory
	if tf == nil {
		tf = SystemTimerFactory{}
	}
	if m == nil {
		m = metrics.NewCoordinatorMetrics()
	}

	return &Coordinator{
		log:          log.With().Str("component", "coordinator").Logger(),
		cfg:          cfg,
		metrics:      m,
		now:          now,
		store:        deps.Store,
		artifacts:    deps.Artifacts,
		proofQueue:   deps.ProofQueue,
		claimQueue:   deps.ClaimQueue,
		prover:       deps.Prover,
		timerFactory: tf,
	}
}

// createJob enforces I1 via the zombie check, allocates a jobId, and
// writes the initial record.
func (c *Coordinator) CreateJob(ctx context.Context, tapeBytes []byte, summary tape.Summary, claimantAddress string) (CreateJobResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.reapZombieLocked(ctx); err != nil {
		return CreateJobResult{}, err
	}

	activeID, hasActive, err := c.store.GetActiveJobID(ctx)
	if err != nil {
		return CreateJobResult{}, fmt.Errorf("get active job id: %w", err)
	}
	if hasActive && activeID != "" {
		active, err := c.store.GetJob(ctx, activeID)
		if err != nil {
			return CreateJobResult{}, fmt.Errorf("get active job: %w", err)
		}
		if active != nil && !active.Status.Terminal() {
			return CreateJobResult{Accepted: false, ActiveJob: active}, nil
		}
	}

	now := c.now()
	jobID := uuid.NewString()
	tapeKey := artifacts.TapeKey(jobID)

	if err := c.artifacts.Put(ctx, tapeKey, tapeBytes); err != nil {
		return CreateJobResult{}, fmt.Errorf("store tape artifact: %w", err)
	}

	rec := &ProofJobRecord{
		JobID:     jobID,
		Status:    StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
		Tape: TapeInfo{
			SizeBytes: int64(len(tapeBytes)),
			Metadata:  summary,
			Key:       tapeKey,
		},
		Claim: ClaimState{
			ClaimantAddress: claimantAddress,
			Status:          ClaimQueued,
		},
	}

	if err := c.store.PutJob(ctx, rec); err != nil {
		return CreateJobResult{}, fmt.Errorf("put job: %w", err)
	}
	if err := c.store.SetActiveJobID(ctx, jobID); err != nil {
		return CreateJobResult{}, fmt.Errorf("set active job id: %w", err)
	}

	if err := c.proofQueue.Enqueue(ctx, jobID); err != nil {
		c.log.Error().Err(err).Str("job_id", jobID).Msg("failed to enqueue proof job; alarm will recover it")
	}

	c.metrics.JobsCreatedTotal.Inc()
	c.metrics.ActiveJob.Set(1)
	c.log.Info().Str("job_id", jobID).Int64("tape_bytes", rec.Tape.SizeBytes).Msg("proof job created")

	return CreateJobResult{Accepted: true, Job: rec.Clone()}, nil
}

// reapZombieLocked force-fails a wall-clock-exceeded active job. Callers
// must already hold c.mu.
func (c *Coordinator) reapZombieLocked(ctx context.Context) error {
	activeID, hasActive, err := c.store.GetActiveJobID(ctx)
	if err != nil || !hasActive || activeID == "" {
		return err
	}

	active, err := c.store.GetJob(ctx, activeID)
	if err != nil || active == nil || active.Status.Terminal() {
		return err
	}

	if c.now().Sub(active.CreatedAt) <= c.cfg.MaxJobWallTime {
		return nil
	}

	return c.markFailedLocked(ctx, active, "zombie recovery: exceeded max job wall time")
}

// GetJob is a read-only lookup.
func (c *Coordinator) GetJob(ctx context.Context, jobID string) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.GetJob(ctx, jobID)
}

// GetActiveJob returns the job currently holding the singleton slot, if any.
func (c *Coordinator) GetActiveJob(ctx context.Context) (*ProofJobRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	activeID, hasActive, err := c.store.GetActiveJobID(ctx)
	if err != nil || !hasActive || activeID == "" {
		return nil, err
	}
	return c.store.GetJob(ctx, activeID)
}

// ListSucceeded pages through succeeded jobs for operator/edge listing.
func (c *Coordinator) ListSucceeded(ctx context.Context, afterJobID string, pageSize int) ([]*ProofJobRecord, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	page, hasMore, err := c.store.ListTerminalJobsPage(ctx, afterJobID, pageSize)
	if err != nil {
		return nil, false, err
	}
	out := make([]*ProofJobRecord, 0, len(page))
	for _, rec := range page {
		if rec.Status == StatusSucceeded {
			out = append(out, rec)
		}
	}
	return out, hasMore, nil
}
