package httpapi

import (
	"time"

	"github.com/compose-network/proofgate/x/proofgate/coordinator"
	"github.com/compose-network/proofgate/x/proofgate/leaderboard"
	"github.com/compose-network/proofgate/x/proofgate/prover"
)

// jobView is the public JSON projection of a ProofJobRecord.
type jobView struct {
	JobID       string         `json:"jobId"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	CompletedAt *time.Time     `json:"completedAt,omitempty"`
	Tape        tapeView       `json:"tape"`
	Queue       queueView      `json:"queue"`
	Prover      proverView     `json:"prover,omitempty"`
	Result      *resultView    `json:"result,omitempty"`
	Claim       claimView      `json:"claim"`
	Error       string         `json:"error,omitempty"`
}

type tapeView struct {
	SizeBytes int64 `json:"sizeBytes"`
}

type queueView struct {
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"lastError,omitempty"`
	NextRetryAt *time.Time `json:"nextRetryAt,omitempty"`
}

type proverView struct {
	Status       string     `json:"status,omitempty"`
	LastPolledAt *time.Time `json:"lastPolledAt,omitempty"`
}

type resultView struct {
	ArtifactKey string                 `json:"artifactKey"`
	Summary     prover.JournalSummary `json:"summary"`
}

type claimView struct {
	Status      string     `json:"status"`
	Attempts    int        `json:"attempts"`
	LastError   string     `json:"lastError,omitempty"`
	NextRetryAt *time.Time `json:"nextRetryAt,omitempty"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty"`
	TxHash      string     `json:"txHash,omitempty"`
}

func toJobView(rec *coordinator.ProofJobRecord) jobView {
	v := jobView{
		JobID:       rec.JobID,
		Status:      string(rec.Status),
		CreatedAt:   rec.CreatedAt,
		UpdatedAt:   rec.UpdatedAt,
		CompletedAt: rec.CompletedAt,
		Tape:        tapeView{SizeBytes: rec.Tape.SizeBytes},
		Queue: queueView{
			Attempts:    rec.Queue.Attempts,
			LastError:   rec.Queue.LastError,
			NextRetryAt: rec.Queue.NextRetryAt,
		},
		Prover: proverView{
			Status:       rec.Prover.Status,
			LastPolledAt: rec.Prover.LastPolledAt,
		},
		Claim: claimView{
			Status:      string(rec.Claim.Status),
			Attempts:    rec.Claim.Attempts,
			LastError:   rec.Claim.LastError,
			NextRetryAt: rec.Claim.NextRetryAt,
			SubmittedAt: rec.Claim.SubmittedAt,
			TxHash:      rec.Claim.TxHash,
		},
		Error: rec.Error,
	}
	if rec.Result != nil {
		v.Result = &resultView{ArtifactKey: rec.Result.ArtifactKey, Summary: rec.Result.Summary}
	}
	return v
}

// playerProfileView is the public JSON projection of a leaderboard.PlayerProfile.
type playerProfileView struct {
	ClaimantAddress string    `json:"claimantAddress"`
	BestScore       int64     `json:"bestScore"`
	TotalClaims     int       `json:"totalClaims"`
	LastClaimedAt   time.Time `json:"lastClaimedAt"`
}

func toPlayerProfileView(p leaderboard.PlayerProfile) playerProfileView {
	return playerProfileView{
		ClaimantAddress: p.ClaimantAddress,
		BestScore:       p.BestScore,
		TotalClaims:     p.TotalClaims,
		LastClaimedAt:   p.LastClaimedAt,
	}
}
