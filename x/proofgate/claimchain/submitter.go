// Package claimchain provides the out-of-scope on-chain claim
// submission collaborator. Smart-contract transaction construction and
// signing are an explicit non-goal (SPEC_FULL.md §1); LoggingSubmitter
// is a real, minimal stand-in so the claim consumer has somewhere to
// run, grounded on the account-submitter's compute-then-log shape.
package claimchain

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/compose-network/proofgate/x/proofgate/consumers"
	"github.com/compose-network/proofgate/x/proofgate/coordinator"
	"github.com/compose-network/proofgate/x/proofgate/leaderboard"
)

// LoggingSubmitter logs the claim it would submit and derives a
// deterministic pseudo transaction hash from the job's result summary,
// so downstream leaderboard ingestion has something stable to key on
// without a real chain connection.
type LoggingSubmitter struct {
	log   zerolog.Logger
	board *leaderboard.Board
}

// NewLoggingSubmitter constructs a LoggingSubmitter. board is optional;
// when set, every successful submission feeds the leaderboard read
// model, standing in for the chain-event listener a production
// claim-chain client would run.
func NewLoggingSubmitter(log zerolog.Logger, board *leaderboard.Board) *LoggingSubmitter {
	return &LoggingSubmitter{
		log:   log.With().Str("component", "claim-submitter").Logger(),
		board: board,
	}
}

// Submit satisfies consumers.ClaimSubmitter.
func (s *LoggingSubmitter) Submit(ctx context.Context, jobID, claimantAddress string, summary coordinator.ResultState) (consumers.ClaimOutcome, error) {
	select {
	case <-ctx.Done():
		return consumers.ClaimOutcome{}, ctx.Err()
	default:
	}

	preimage := fmt.Sprintf("%s|%s|%d", jobID, claimantAddress, summary.Summary.FinalScore)
	hash := crypto.Keccak256([]byte(preimage))
	txHash := fmt.Sprintf("0x%x", hash)

	s.log.Info().
		Str("job_id", jobID).
		Str("claimant", claimantAddress).
		Int64("final_score", summary.Summary.FinalScore).
		Str("tx_hash", txHash).
		Msg("claim submission recorded (no chain connection configured)")

	if s.board != nil {
		if err := s.board.Ingest(leaderboard.ScoreEvent{
			ClaimantAddress: claimantAddress,
			Score:           summary.Summary.FinalScore,
			JobID:           jobID,
			TxHash:          txHash,
			ObservedAt:      time.Now(),
		}); err != nil {
			s.log.Warn().Err(err).Str("job_id", jobID).Msg("leaderboard ingest failed")
		}
	}

	return consumers.ClaimOutcome{Kind: consumers.ClaimSuccess, TxHash: txHash}, nil
}
