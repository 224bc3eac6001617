package coordinator

import "time"

// Config bounds coordinator behavior per SPEC_FULL.md §9's
// configuration table.
type Config struct {
	MaxTapeBytes int64

	MaxJobWallTime time.Duration

	MaxCompletedJobs        int
	CompletedJobRetention   time.Duration
	PrunePageSize           int

	PollInterval time.Duration

	SegmentLimitPo2Default int
	MaxProverRecoveryAttempts int

	ProverExpectedImageID string
	ExpectedRulesDigest   string
	ExpectedRuleset       string
}

// DefaultConfig returns the configuration floor SPEC_FULL.md §9 requires.
func DefaultConfig() Config {
	return Config{
		MaxTapeBytes:              2 << 20, // 2 MiB
		MaxJobWallTime:            5 * time.Minute,
		MaxCompletedJobs:          1000,
		CompletedJobRetention:     24 * time.Hour,
		PrunePageSize:             100,
		PollInterval:              500 * time.Millisecond,
		SegmentLimitPo2Default:    20,
		MaxProverRecoveryAttempts: 3,
	}
}
