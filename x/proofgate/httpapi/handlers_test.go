package httpapi

import (
	"bytes"
	"context"
	"encoding/base32"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/compose-network/proofgate/x/proofgate/artifacts"
	"github.com/compose-network/proofgate/x/proofgate/coordinator"
	"github.com/compose-network/proofgate/x/proofgate/leaderboard"
	"github.com/compose-network/proofgate/x/proofgate/prover"
	"github.com/compose-network/proofgate/x/proofgate/tape"
)

// validClaimant builds a well-formed strkey "G..." account address.
// strkey itself has no exported constructor, so tests that need an
// address to pass validation build one with the published algorithm
// directly rather than importing the unexported helpers.
func validClaimant() string {
	data := make([]byte, 0, 35)
	data = append(data, 6<<3) // account ID version byte
	data = append(data, make([]byte, 32)...)

	var crc uint16
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	data = append(data, byte(crc), byte(crc>>8))
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(data)
}

func validTape() []byte {
	raw := make([]byte, 40)
	raw[0], raw[1], raw[2], raw[3] = 0x50, 0x47, 0x54, 0x50
	raw[4] = 1
	raw[16] = 1
	return raw
}

type fakeCoordinatorAPI struct {
	createResult coordinator.CreateJobResult
	createErr    error
	getJobRecord *coordinator.ProofJobRecord
	getJobErr    error
	activeJob    *coordinator.ProofJobRecord
	markFailedFn func(jobID string) (*coordinator.ProofJobRecord, error)
	kickCalls    int
	kickErr      error
}

func (f *fakeCoordinatorAPI) CreateJob(context.Context, []byte, tape.Summary, string) (coordinator.CreateJobResult, error) {
	return f.createResult, f.createErr
}

func (f *fakeCoordinatorAPI) GetJob(context.Context, string) (*coordinator.ProofJobRecord, error) {
	return f.getJobRecord, f.getJobErr
}

func (f *fakeCoordinatorAPI) GetActiveJob(context.Context) (*coordinator.ProofJobRecord, error) {
	return f.activeJob, nil
}

func (f *fakeCoordinatorAPI) MarkFailed(_ context.Context, jobID, _ string) (*coordinator.ProofJobRecord, error) {
	if f.markFailedFn != nil {
		return f.markFailedFn(jobID)
	}
	return nil, coordinator.ErrNotFound
}

func (f *fakeCoordinatorAPI) KickAlarm(context.Context) error {
	f.kickCalls++
	return f.kickErr
}

type fakeHealthProver struct {
	health prover.HealthStatus
}

func (f *fakeHealthProver) Submit(context.Context, []byte, prover.SubmitOptions) (prover.SubmitOutcome, error) {
	return prover.SubmitOutcome{}, nil
}

func (f *fakeHealthProver) PollOnce(context.Context, string) (prover.PollResult, error) {
	return prover.PollResult{}, nil
}

func (f *fakeHealthProver) GetHealth(context.Context) (prover.HealthStatus, error) {
	return f.health, nil
}

func newTestServer(coord coordinatorAPI, store artifacts.Store, p prover.Client) *httptest.Server {
	h := NewHandler(coord, store, p, leaderboard.NewBoard(), Config{MaxTapeBytes: 1024}, zerolog.Nop())
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return httptest.NewServer(r)
}

func TestHandleCreateJobRejectsMissingClaimantHeader(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/proofs/jobs", "application/octet-stream", bytes.NewReader(validTape()))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleCreateJobRejectsOversizedTape(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	oversized := make([]byte, 2048)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/proofs/jobs", bytes.NewReader(oversized))
	require.NoError(t, err)
	req.Header.Set("x-claimant-address", validClaimant())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestHandleCreateJobRejectsInvalidTape(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/proofs/jobs", bytes.NewReader([]byte("not a tape")))
	require.NoError(t, err)
	req.Header.Set("x-claimant-address", validClaimant())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleCreateJobAccepted(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{createResult: coordinator.CreateJobResult{
		Accepted: true,
		Job:      &coordinator.ProofJobRecord{JobID: "job-1", Status: coordinator.StatusQueued},
	}}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/proofs/jobs", bytes.NewReader(validTape()))
	require.NoError(t, err)
	req.Header.Set("x-claimant-address", validClaimant())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Contains(t, body, "status_url")
}

func TestHandleCreateJobTooManyRequestsWhenSingletonBusy(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{createResult: coordinator.CreateJobResult{
		Accepted:  false,
		ActiveJob: &coordinator.ProofJobRecord{JobID: "job-active", Status: coordinator.StatusProverRunning},
	}}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/proofs/jobs", bytes.NewReader(validTape()))
	require.NoError(t, err)
	req.Header.Set("x-claimant-address", validClaimant())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestHandleGetJobReturnsNotFound(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{getJobRecord: nil}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/proofs/jobs/does-not-exist")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleGetJobKicksWhenPollingIsStale(t *testing.T) {
	t.Parallel()

	stale := time.Now().Add(-time.Hour)
	coord := &fakeCoordinatorAPI{getJobRecord: &coordinator.ProofJobRecord{
		JobID:  "job-1",
		Status: coordinator.StatusProverRunning,
		Prover: coordinator.ProverState{JobID: "p-1", LastPolledAt: &stale},
	}}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/proofs/jobs/job-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, 1, coord.kickCalls)
}

func TestHandleGetJobSkipsKickWhenRecentlyPolled(t *testing.T) {
	t.Parallel()

	recent := time.Now()
	coord := &fakeCoordinatorAPI{getJobRecord: &coordinator.ProofJobRecord{
		JobID:  "job-1",
		Status: coordinator.StatusProverRunning,
		Prover: coordinator.ProverState{JobID: "p-1", LastPolledAt: &recent},
	}}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/proofs/jobs/job-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Zero(t, coord.kickCalls)
}

func TestHandleGetResultConflictBeforeCompletion(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{getJobRecord: &coordinator.ProofJobRecord{JobID: "job-1", Status: coordinator.StatusProverRunning}}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/proofs/jobs/job-1/result")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestHandleGetResultReturnsStoredArtifact(t *testing.T) {
	t.Parallel()

	store := artifacts.NewMemoryStore()
	require.NoError(t, store.Put(context.Background(), artifacts.ResultKey("job-1"), []byte(`{"finalScore":7}`)))

	coord := &fakeCoordinatorAPI{getJobRecord: &coordinator.ProofJobRecord{
		JobID:  "job-1",
		Status: coordinator.StatusSucceeded,
		Result: &coordinator.ResultState{ArtifactKey: artifacts.ResultKey("job-1")},
	}}
	srv := newTestServer(coord, store, &fakeHealthProver{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/proofs/jobs/job-1/result")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, float64(7), body["finalScore"])
}

func TestHandleGetResultNotFoundForUnknownJob(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{getJobRecord: nil}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/proofs/jobs/job-1/result")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleCancelJobReturnsNotFoundForUnknownJob(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/proofs/jobs/job-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleCancelJobSucceeds(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{markFailedFn: func(jobID string) (*coordinator.ProofJobRecord, error) {
		return &coordinator.ProofJobRecord{JobID: jobID, Status: coordinator.StatusFailed, Error: "cancelled by user"}, nil
	}}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/api/proofs/jobs/job-1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHandleLeaderboardTopReturnsRankedProfiles(t *testing.T) {
	t.Parallel()

	board := leaderboard.NewBoard()
	now := time.Now()
	require.NoError(t, board.Ingest(leaderboard.ScoreEvent{ClaimantAddress: "low", Score: 1, ObservedAt: now}))
	require.NoError(t, board.Ingest(leaderboard.ScoreEvent{ClaimantAddress: "high", Score: 100, ObservedAt: now}))

	coord := &fakeCoordinatorAPI{}
	h := NewHandler(coord, artifacts.NewMemoryStore(), &fakeHealthProver{}, board, Config{MaxTapeBytes: 1024}, zerolog.Nop())
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/leaderboard/top?n=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Players []map[string]any `json:"players"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Len(t, body.Players, 1)
	require.Equal(t, "high", body.Players[0]["claimantAddress"])
}

func TestHandleLeaderboardProfileReturnsNotFoundForUnknownClaimant(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{}
	srv := newTestServer(coord, artifacts.NewMemoryStore(), &fakeHealthProver{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/leaderboard/nobody")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandleLeaderboardProfileReturnsKnownClaimant(t *testing.T) {
	t.Parallel()

	board := leaderboard.NewBoard()
	require.NoError(t, board.Ingest(leaderboard.ScoreEvent{ClaimantAddress: "addr-1", Score: 7, ObservedAt: time.Now()}))

	coord := &fakeCoordinatorAPI{}
	h := NewHandler(coord, artifacts.NewMemoryStore(), &fakeHealthProver{}, board, Config{MaxTapeBytes: 1024}, zerolog.Nop())
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/leaderboard/addr-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, float64(7), body["bestScore"])
}

func TestHandleHealthReportsProverCompatibility(t *testing.T) {
	t.Parallel()

	coord := &fakeCoordinatorAPI{}
	p := &fakeHealthProver{health: prover.HealthStatus{Reachable: true, ImageID: "img-1", RulesDigest: "digest-1"}}
	h := NewHandler(coord, artifacts.NewMemoryStore(), p, leaderboard.NewBoard(), Config{MaxTapeBytes: 1024, ExpectedImageID: "img-1", ExpectedRulesDigest: "digest-1"}, zerolog.Nop())
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	proverView, ok := body["prover"].(map[string]any)
	require.True(t, ok)
	require.Equal(t, true, proverView["compatible"])
}
