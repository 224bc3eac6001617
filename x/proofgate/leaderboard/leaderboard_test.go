package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIngestTracksBestScoreAndClaimCount(t *testing.T) {
	t.Parallel()
	b := NewBoard()

	base := time.Unix(1000, 0)
	require.NoError(t, b.Ingest(ScoreEvent{ClaimantAddress: "addr-1", Score: 10, ObservedAt: base}))
	require.NoError(t, b.Ingest(ScoreEvent{ClaimantAddress: "addr-1", Score: 25, ObservedAt: base.Add(time.Minute)}))
	require.NoError(t, b.Ingest(ScoreEvent{ClaimantAddress: "addr-1", Score: 5, ObservedAt: base.Add(2 * time.Minute)}))

	p, ok := b.Profile("addr-1")
	require.True(t, ok)
	require.Equal(t, int64(25), p.BestScore)
	require.Equal(t, 3, p.TotalClaims)
	require.Equal(t, base.Add(2*time.Minute), p.LastClaimedAt)
}

func TestProfileReportsUnknownClaimant(t *testing.T) {
	t.Parallel()
	b := NewBoard()

	_, ok := b.Profile("nobody")
	require.False(t, ok)
}

func TestTopRanksByBestScoreDescending(t *testing.T) {
	t.Parallel()
	b := NewBoard()

	now := time.Now()
	require.NoError(t, b.Ingest(ScoreEvent{ClaimantAddress: "low", Score: 1, ObservedAt: now}))
	require.NoError(t, b.Ingest(ScoreEvent{ClaimantAddress: "high", Score: 100, ObservedAt: now}))
	require.NoError(t, b.Ingest(ScoreEvent{ClaimantAddress: "mid", Score: 50, ObservedAt: now}))

	top := b.Top(2)
	require.Len(t, top, 2)
	require.Equal(t, "high", top[0].ClaimantAddress)
	require.Equal(t, "mid", top[1].ClaimantAddress)
}

func TestTopWithNonPositiveNReturnsEverything(t *testing.T) {
	t.Parallel()
	b := NewBoard()

	now := time.Now()
	require.NoError(t, b.Ingest(ScoreEvent{ClaimantAddress: "a", Score: 1, ObservedAt: now}))
	require.NoError(t, b.Ingest(ScoreEvent{ClaimantAddress: "b", Score: 2, ObservedAt: now}))

	require.Len(t, b.Top(0), 2)
}
