// Package prover implements the Prover Client: a pure translator
// between the remote proving service's HTTP wire format and the
// tagged outcome variants the coordinator dispatches on.
package prover

import "encoding/json"

// SubmitOutcomeKind tags the result of a Submit call.
type SubmitOutcomeKind string

const (
	SubmitSuccess SubmitOutcomeKind = "success"
	SubmitRetry   SubmitOutcomeKind = "retry"
	SubmitFatal   SubmitOutcomeKind = "fatal"
)

// SubmitOutcome is the sum type returned by Submit. Only the fields
// relevant to Kind are populated.
type SubmitOutcome struct {
	Kind SubmitOutcomeKind

	// SubmitSuccess
	ProverJobID     string
	StatusURL       string
	SegmentLimitPo2 int

	// SubmitRetry, SubmitFatal
	Message string
}

// SubmitOptions parameterize a proof submission.
type SubmitOptions struct {
	SegmentLimitPo2 int
	ReceiptKind     string
}

// PollResultKind tags the result of a PollOnce call.
type PollResultKind string

const (
	PollRunning PollResultKind = "running"
	PollSuccess PollResultKind = "success"
	PollRetry   PollResultKind = "retry"
	PollFatal   PollResultKind = "fatal"
)

// PollResult is the sum type returned by PollOnce.
type PollResult struct {
	Kind PollResultKind

	// PollRunning
	Status string

	// PollSuccess
	Response *Response

	// PollRetry, PollFatal
	Message        string
	ClearProverJob bool // PollRetry only
}

// Response is the raw prover success payload, preserved byte-for-byte
// for the result envelope (L1: the stored prover_response must be
// byte-identical to what the prover delivered).
type Response struct {
	Raw     json.RawMessage `json:"-"`
	Journal JournalFields   `json:"journal"`
}

// JournalFields is the subset of the prover's journal this service
// depends on to derive JournalSummary; unknown fields are preserved in
// Raw but not modeled here.
type JournalFields struct {
	Seed          uint64 `json:"seed"`
	FrameCount    uint64 `json:"frame_count"`
	FinalScore    int64  `json:"final_score"`
	FinalRNGState uint64 `json:"final_rng_state"`
	Checksum      string `json:"checksum"`
	RulesDigest   string `json:"rules_digest"`
}

// JournalSummary is the deterministic projection of a prover response
// used for client display and the downstream on-chain claim.
type JournalSummary struct {
	Seed          uint64 `json:"seed"`
	FrameCount    uint64 `json:"frame_count"`
	FinalScore    int64  `json:"final_score"`
	FinalRNGState uint64 `json:"final_rng_state"`
	Checksum      string `json:"checksum"`
	RulesDigest   string `json:"rules_digest"`
}

// Summarize extracts JournalSummary from a Response deterministically.
func Summarize(resp *Response) JournalSummary {
	return JournalSummary{
		Seed:          resp.Journal.Seed,
		FrameCount:    resp.Journal.FrameCount,
		FinalScore:    resp.Journal.FinalScore,
		FinalRNGState: resp.Journal.FinalRNGState,
		Checksum:      resp.Journal.Checksum,
		RulesDigest:   resp.Journal.RulesDigest,
	}
}

// HealthStatus is returned by GetHealth for the /api/health compatibility report.
type HealthStatus struct {
	Reachable   bool
	ImageID     string
	RulesDigest string
	Ruleset     string
}
