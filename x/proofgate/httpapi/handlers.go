// Package httpapi implements the edge HTTP routes described in
// SPEC_FULL.md §9: job submission, status, result retrieval and
// cancellation, plus the compatibility health report.
package httpapi

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	apicommon "github.com/compose-network/proofgate/server/api"
	"github.com/compose-network/proofgate/x/proofgate/artifacts"
	"github.com/compose-network/proofgate/x/proofgate/coordinator"
	"github.com/compose-network/proofgate/x/proofgate/leaderboard"
	"github.com/compose-network/proofgate/x/proofgate/prover"
	"github.com/compose-network/proofgate/x/proofgate/strkey"
	"github.com/compose-network/proofgate/x/proofgate/tape"
)

// kickThreshold bounds how stale prover.lastPolledAt must be before a
// hot GET opportunistically nudges progress via KickAlarm.
const kickThreshold = 2 * time.Second

// coordinatorAPI is the subset of *coordinator.Coordinator the edge
// layer depends on.
type coordinatorAPI interface {
	CreateJob(ctx context.Context, tapeBytes []byte, summary tape.Summary, claimantAddress string) (coordinator.CreateJobResult, error)
	GetJob(ctx context.Context, jobID string) (*coordinator.ProofJobRecord, error)
	GetActiveJob(ctx context.Context) (*coordinator.ProofJobRecord, error)
	MarkFailed(ctx context.Context, jobID, reason string) (*coordinator.ProofJobRecord, error)
	KickAlarm(ctx context.Context) error
}

// leaderboardAPI is the subset of *leaderboard.Board the edge layer
// depends on.
type leaderboardAPI interface {
	Top(n int) []leaderboard.PlayerProfile
	Profile(claimantAddress string) (leaderboard.PlayerProfile, bool)
}

// Handler serves the proof-gateway HTTP API.
type Handler struct {
	coord        coordinatorAPI
	artifacts    artifacts.Store
	prover       prover.Client
	board        leaderboardAPI
	log          zerolog.Logger
	maxTapeBytes int64

	expectedImageID   string
	expectedRulesHash string
	expectedRuleset   string
}

// Config bounds the health-compatibility fields reported by /api/health.
type Config struct {
	MaxTapeBytes        int64
	ExpectedImageID     string
	ExpectedRulesDigest string
	ExpectedRuleset     string
}

// NewHandler constructs a Handler. board may be nil, in which case the
// leaderboard routes report an empty read model.
func NewHandler(coord coordinatorAPI, store artifacts.Store, p prover.Client, board leaderboardAPI, cfg Config, log zerolog.Logger) *Handler {
	return &Handler{
		coord:             coord,
		artifacts:         store,
		prover:            p,
		board:             board,
		log:               log.With().Str("component", "proofs-http").Logger(),
		maxTapeBytes:      cfg.MaxTapeBytes,
		expectedImageID:   cfg.ExpectedImageID,
		expectedRulesHash: cfg.ExpectedRulesDigest,
		expectedRuleset:   cfg.ExpectedRuleset,
	}
}

// RegisterRoutes mounts the proof-gateway routes onto r.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc(routeHealth, h.handleHealth).Methods(http.MethodGet).Name(routeNameHealth)
	r.HandleFunc(routeCreateJob, h.handleCreateJob).Methods(http.MethodPost).Name(routeNameCreateJob)
	r.HandleFunc(routeGetJob, h.handleGetJob).Methods(http.MethodGet).Name(routeNameGetJob)
	r.HandleFunc(routeGetResult, h.handleGetResult).Methods(http.MethodGet).Name(routeNameGetResult)
	r.HandleFunc(routeCancelJob, h.handleCancelJob).Methods(http.MethodDelete).Name(routeNameCancelJob)
	r.HandleFunc(routeLeaderboardTop, h.handleLeaderboardTop).Methods(http.MethodGet).Name(routeNameLeaderboardTop)
	r.HandleFunc(routeLeaderboardItem, h.handleLeaderboardProfile).Methods(http.MethodGet).Name(routeNameLeaderboardItem)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	active, err := h.coord.GetActiveJob(ctx)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to load active job", nil)
		return
	}

	proverHealth, _ := h.prover.GetHealth(ctx)

	resp := map[string]any{
		"expected_image_id":    h.expectedImageID,
		"expected_rules_digest": h.expectedRulesHash,
		"expected_ruleset":     h.expectedRuleset,
		"prover": map[string]any{
			"reachable":    proverHealth.Reachable,
			"image_id":     proverHealth.ImageID,
			"rules_digest": proverHealth.RulesDigest,
			"ruleset":      proverHealth.Ruleset,
			"compatible":   proverHealth.ImageID == h.expectedImageID && proverHealth.RulesDigest == h.expectedRulesHash,
		},
	}
	if active != nil {
		v := toJobView(active)
		resp["active_job"] = v
	}

	apicommon.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	claimant := r.Header.Get("x-claimant-address")
	if !strkey.IsValidAccountID(claimant) {
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_claimant_address", "x-claimant-address header is required and must be a valid strkey address", nil)
		return
	}

	limited := io.LimitReader(r.Body, h.maxTapeBytes+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "read_error", "failed to read request body", nil)
		return
	}
	if int64(len(body)) > h.maxTapeBytes {
		apicommon.WriteError(w, r, http.StatusRequestEntityTooLarge, "tape_too_large", "tape exceeds maximum upload size", nil)
		return
	}

	summary, err := tape.Validate(body)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_tape", err.Error(), nil)
		return
	}

	result, err := h.coord.CreateJob(ctx, body, summary, claimant)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to create job", nil)
		return
	}

	if !result.Accepted {
		apicommon.WriteJSON(w, http.StatusTooManyRequests, map[string]any{"active_job": toJobView(result.ActiveJob)})
		return
	}

	apicommon.WriteJSON(w, http.StatusAccepted, map[string]any{
		"status_url": statusURLFor(result.Job.JobID),
		"job":        toJobView(result.Job),
	})
}

func (h *Handler) handleGetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := mux.Vars(r)["jobId"]

	rec, err := h.coord.GetJob(ctx, jobID)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job", nil)
		return
	}
	if rec == nil {
		apicommon.WriteError(w, r, http.StatusNotFound, "not_found", "no such job", nil)
		return
	}

	if shouldKick(rec) {
		if err := h.coord.KickAlarm(ctx); err != nil {
			h.log.Debug().Err(err).Str("job_id", jobID).Msg("opportunistic kick alarm failed")
		}
		if refreshed, err := h.coord.GetJob(ctx, jobID); err == nil && refreshed != nil {
			rec = refreshed
		}
	}

	apicommon.WriteJSON(w, http.StatusOK, toJobView(rec))
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := mux.Vars(r)["jobId"]

	rec, err := h.coord.GetJob(ctx, jobID)
	if err != nil {
		apicommon.WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to load job", nil)
		return
	}

	if rec != nil {
		if rec.Result == nil {
			apicommon.WriteError(w, r, http.StatusConflict, "no_result", "job has no result yet", nil)
			return
		}
	}

	data, err := h.artifacts.Get(ctx, artifacts.ResultKey(jobID))
	if err != nil {
		if rec == nil {
			apicommon.WriteError(w, r, http.StatusNotFound, "not_found", "no such job or result", nil)
			return
		}
		apicommon.WriteError(w, r, http.StatusConflict, "no_result", "job has no result yet", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) handleCancelJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	jobID := mux.Vars(r)["jobId"]

	rec, err := h.coord.MarkFailed(ctx, jobID, "cancelled by user")
	if err != nil {
		if errors.Is(err, coordinator.ErrNotFound) {
			apicommon.WriteError(w, r, http.StatusNotFound, "not_found", "no such job", nil)
			return
		}
		apicommon.WriteError(w, r, http.StatusInternalServerError, "internal_error", "failed to cancel job", nil)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, toJobView(rec))
}

// defaultLeaderboardTop bounds the top-N read when the caller omits
// the "n" query parameter; maxLeaderboardTop bounds it when supplied.
const (
	defaultLeaderboardTop = 10
	maxLeaderboardTop     = 100
)

func (h *Handler) handleLeaderboardTop(w http.ResponseWriter, r *http.Request) {
	n := defaultLeaderboardTop
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			apicommon.WriteError(w, r, http.StatusBadRequest, "invalid_n", "n must be a positive integer", nil)
			return
		}
		n = parsed
	}
	if n > maxLeaderboardTop {
		n = maxLeaderboardTop
	}

	var profiles []leaderboard.PlayerProfile
	if h.board != nil {
		profiles = h.board.Top(n)
	}

	views := make([]playerProfileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, toPlayerProfileView(p))
	}
	apicommon.WriteJSON(w, http.StatusOK, map[string]any{"players": views})
}

func (h *Handler) handleLeaderboardProfile(w http.ResponseWriter, r *http.Request) {
	claimant := mux.Vars(r)["claimantAddress"]

	if h.board == nil {
		apicommon.WriteError(w, r, http.StatusNotFound, "not_found", "no such claimant", nil)
		return
	}

	profile, ok := h.board.Profile(claimant)
	if !ok {
		apicommon.WriteError(w, r, http.StatusNotFound, "not_found", "no such claimant", nil)
		return
	}

	apicommon.WriteJSON(w, http.StatusOK, toPlayerProfileView(profile))
}

func shouldKick(rec *coordinator.ProofJobRecord) bool {
	if rec.Status.Terminal() {
		return false
	}
	if rec.Prover.JobID == "" {
		return false
	}
	if rec.Prover.LastPolledAt == nil {
		return true
	}
	return time.Since(*rec.Prover.LastPolledAt) > kickThreshold
}

func statusURLFor(jobID string) string {
	return routeCreateJob + "/" + jobID
}
