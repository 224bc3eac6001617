package httpapi

// Route patterns for the proof-gateway HTTP surface.
const (
	routeHealth          = "/api/health"
	routeCreateJob       = "/api/proofs/jobs"
	routeGetJob          = "/api/proofs/jobs/{jobId}"
	routeGetResult       = "/api/proofs/jobs/{jobId}/result"
	routeCancelJob       = "/api/proofs/jobs/{jobId}"
	routeLeaderboardTop  = "/api/leaderboard/top"
	routeLeaderboardItem = "/api/leaderboard/{claimantAddress}"
)

// Route names for mux URL building.
const (
	routeNameHealth          = "proofs_health"
	routeNameCreateJob       = "proofs_create_job"
	routeNameGetJob          = "proofs_get_job"
	routeNameGetResult       = "proofs_get_result"
	routeNameCancelJob       = "proofs_cancel_job"
	routeNameLeaderboardTop  = "leaderboard_top"
	routeNameLeaderboardItem = "leaderboard_profile"
)
