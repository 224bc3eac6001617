// Package coordinator implements the fleet-singleton proof coordination
// state machine: the single writer of ProofJobRecord, ActiveJobPointer
// and ResultArtifact.
package coordinator

import (
	"time"

	"github.com/compose-network/proofgate/x/proofgate/prover"
	"github.com/compose-network/proofgate/x/proofgate/tape"
)

// Status is the proof-job lifecycle state.
type Status string

const (
	StatusQueued        Status = "queued"
	StatusDispatching   Status = "dispatching"
	StatusProverRunning Status = "prover_running"
	StatusRetrying      Status = "retrying"
	StatusSucceeded     Status = "succeeded"
	StatusFailed        Status = "failed"
)

// Terminal reports whether s is a sink state.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ClaimStatus is the nested claim-submission lifecycle state.
type ClaimStatus string

const (
	ClaimQueued     ClaimStatus = "queued"
	ClaimSubmitting ClaimStatus = "submitting"
	ClaimRetrying   ClaimStatus = "retrying"
	ClaimSucceeded  ClaimStatus = "succeeded"
	ClaimFailed     ClaimStatus = "failed"
)

// Terminal reports whether s is a sink state.
func (s ClaimStatus) Terminal() bool {
	return s == ClaimSucceeded || s == ClaimFailed
}

// TapeInfo describes the uploaded replay bound to a job.
type TapeInfo struct {
	SizeBytes int64
	Metadata  tape.Summary
	Key       string
}

// QueueState tracks proof-queue delivery bookkeeping for a job.
type QueueState struct {
	Attempts      int
	LastAttemptAt *time.Time
	LastError     string
	NextRetryAt   *time.Time
}

// ProverState tracks the remote prover's view of a job.
type ProverState struct {
	JobID            string
	Status           string
	StatusURL        string
	SegmentLimitPo2  int
	LastPolledAt     *time.Time
	PollingErrors    int
	RecoveryAttempts int
}

// ResultState holds the deterministic projection of a successful proof.
type ResultState struct {
	ArtifactKey string
	Summary     prover.JournalSummary
}

// ClaimState tracks the downstream on-chain claim submission.
type ClaimState struct {
	ClaimantAddress string
	Status          ClaimStatus
	Attempts        int
	LastAttemptAt   *time.Time
	LastError       string
	NextRetryAt     *time.Time
	SubmittedAt     *time.Time
	TxHash          string
}

// ProofJobRecord is the durable per-job record exclusively mutated by
// the coordinator (I8).
type ProofJobRecord struct {
	JobID       string
	Status      Status
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time

	Tape   TapeInfo
	Queue  QueueState
	Prover ProverState
	Result *ResultState
	Claim  ClaimState
	Error  string
}

// Clone returns a deep-enough copy of the record for safe handoff to
// callers outside the coordinator's lock, grounded on the teacher
// coordinator's snapshot-isolation clone helpers.
func (r *ProofJobRecord) Clone() *ProofJobRecord {
	if r == nil {
		return nil
	}
	cp := *r
	if r.CompletedAt != nil {
		t := *r.CompletedAt
		cp.CompletedAt = &t
	}
	if r.Queue.LastAttemptAt != nil {
		t := *r.Queue.LastAttemptAt
		cp.Queue.LastAttemptAt = &t
	}
	if r.Queue.NextRetryAt != nil {
		t := *r.Queue.NextRetryAt
		cp.Queue.NextRetryAt = &t
	}
	if r.Prover.LastPolledAt != nil {
		t := *r.Prover.LastPolledAt
		cp.Prover.LastPolledAt = &t
	}
	if r.Result != nil {
		res := *r.Result
		cp.Result = &res
	}
	if r.Claim.LastAttemptAt != nil {
		t := *r.Claim.LastAttemptAt
		cp.Claim.LastAttemptAt = &t
	}
	if r.Claim.NextRetryAt != nil {
		t := *r.Claim.NextRetryAt
		cp.Claim.NextRetryAt = &t
	}
	if r.Claim.SubmittedAt != nil {
		t := *r.Claim.SubmittedAt
		cp.Claim.SubmittedAt = &t
	}
	return &cp
}
