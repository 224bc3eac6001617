package prover

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// HTTPClient implements Client over the abstract prover REST surface
// described in SPEC_FULL.md §9: POST submit?segment_limit_po2=N&receipt_kind=...
// with the tape as the body, returning {job_id, status_url}; GET
// job/:id returning {status, result?, error?}.
type HTTPClient struct {
	baseURL    *url.URL
	httpClient *http.Client
	log        zerolog.Logger
}

// NewHTTPClient constructs a prover client for the given base URL.
func NewHTTPClient(rawURL string, httpClient *http.Client, log zerolog.Logger) (*HTTPClient, error) {
	if rawURL == "" {
		return nil, errors.New("base URL is required")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid prover base URL: %w", err)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	return &HTTPClient{
		baseURL:    parsed,
		httpClient: httpClient,
		log:        log.With().Str("component", "prover-client").Logger(),
	}, nil
}

// Submit uploads a tape for proving and classifies the response.
func (c *HTTPClient) Submit(ctx context.Context, tapeBytes []byte, opts SubmitOptions) (SubmitOutcome, error) {
	endpoint := c.buildURL("submit")
	q := url.Values{}
	if opts.SegmentLimitPo2 > 0 {
		q.Set("segment_limit_po2", strconv.Itoa(opts.SegmentLimitPo2))
	}
	if opts.ReceiptKind != "" {
		q.Set("receipt_kind", opts.ReceiptKind)
	}
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(tapeBytes))
	if err != nil {
		if ctx.Err() != nil {
			return SubmitOutcome{}, ctx.Err()
		}
		return SubmitOutcome{Kind: SubmitFatal, Message: fmt.Sprintf("prepare submit request: %v", err)}, nil
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return SubmitOutcome{}, ctx.Err()
		}
		c.log.Warn().Err(err).Str("endpoint", endpoint).Msg("prover submit request failed")
		return SubmitOutcome{Kind: SubmitRetry, Message: err.Error()}, nil
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 8192))

	switch {
	case res.StatusCode == http.StatusOK || res.StatusCode == http.StatusAccepted:
		var sub submitResponse
		if err := json.Unmarshal(body, &sub); err != nil || sub.JobID == "" {
			return SubmitOutcome{Kind: SubmitFatal, Message: fmt.Sprintf("unparseable submit response: %v", err)}, nil
		}
		return SubmitOutcome{
			Kind:            SubmitSuccess,
			ProverJobID:     sub.JobID,
			StatusURL:       sub.StatusURL,
			SegmentLimitPo2: opts.SegmentLimitPo2,
		}, nil

	case res.StatusCode == http.StatusTooManyRequests, res.StatusCode >= 500:
		return SubmitOutcome{Kind: SubmitRetry, Message: fmt.Sprintf("prover returned %s: %s", res.Status, string(body))}, nil

	default:
		return SubmitOutcome{Kind: SubmitFatal, Message: fmt.Sprintf("prover returned %s: %s", res.Status, string(body))}, nil
	}
}

// PollOnce fetches the status of a previously submitted job.
func (c *HTTPClient) PollOnce(ctx context.Context, proverJobID string) (PollResult, error) {
	if proverJobID == "" {
		return PollResult{Kind: PollFatal, Message: "empty prover job id"}, nil
	}

	endpoint := c.buildURL(path.Join("job", proverJobID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		if ctx.Err() != nil {
			return PollResult{}, ctx.Err()
		}
		return PollResult{Kind: PollFatal, Message: fmt.Sprintf("prepare poll request: %v", err)}, nil
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return PollResult{}, ctx.Err()
		}
		return PollResult{Kind: PollRetry, Message: err.Error()}, nil
	}
	defer res.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))

	switch {
	case res.StatusCode == http.StatusNotFound:
		return PollResult{Kind: PollRetry, Message: "prover job not found", ClearProverJob: true}, nil

	case res.StatusCode == http.StatusTooManyRequests, res.StatusCode >= 500:
		return PollResult{Kind: PollRetry, Message: fmt.Sprintf("prover returned %s", res.Status)}, nil

	case res.StatusCode >= 400:
		var status statusResponse
		if json.Unmarshal(body, &status) == nil && looksLikeUnknownJob(status.Error) {
			return PollResult{Kind: PollRetry, Message: status.Error, ClearProverJob: true}, nil
		}
		return PollResult{Kind: PollFatal, Message: fmt.Sprintf("prover returned %s: %s", res.Status, string(body))}, nil
	}

	var status statusResponse
	if err := json.Unmarshal(body, &status); err != nil {
		return PollResult{Kind: PollFatal, Message: fmt.Sprintf("unparseable status response: %v", err)}, nil
	}

	switch strings.ToLower(status.Status) {
	case "pending", "running", "proving", "queued":
		return PollResult{Kind: PollRunning, Status: status.Status}, nil

	case "completed", "succeeded", "success":
		if status.Result == nil {
			return PollResult{Kind: PollFatal, Message: "prover reported success with no result body"}, nil
		}
		resp := &Response{Raw: json.RawMessage(body), Journal: status.Result.Journal}
		return PollResult{Kind: PollSuccess, Response: resp}, nil

	case "failed", "error":
		return PollResult{Kind: PollFatal, Message: status.Error}, nil

	default:
		return PollResult{Kind: PollRetry, Message: fmt.Sprintf("unrecognized prover status %q", status.Status)}, nil
	}
}

// GetHealth reports prover reachability and compatibility fields.
func (c *HTTPClient) GetHealth(ctx context.Context) (HealthStatus, error) {
	endpoint := c.buildURL("health")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return HealthStatus{}, err
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return HealthStatus{Reachable: false}, nil
	}
	defer res.Body.Close()

	if res.StatusCode >= 400 {
		return HealthStatus{Reachable: false}, nil
	}

	var h healthResponse
	if err := json.NewDecoder(res.Body).Decode(&h); err != nil {
		return HealthStatus{Reachable: true}, nil
	}

	return HealthStatus{
		Reachable:   true,
		ImageID:     h.ImageID,
		RulesDigest: h.RulesDigest,
		Ruleset:     h.Ruleset,
	}, nil
}

func (c *HTTPClient) buildURL(elem ...string) string {
	clone := *c.baseURL
	clone.Path = path.Join(append([]string{c.baseURL.Path}, elem...)...)
	return clone.String()
}

func looksLikeUnknownJob(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "unknown") || strings.Contains(lower, "not found")
}

type submitResponse struct {
	JobID     string `json:"job_id"`
	StatusURL string `json:"status_url"`
}

type statusResponse struct {
	Status string        `json:"status"`
	Result *statusResult `json:"result"`
	Error  string        `json:"error"`
}

type statusResult struct {
	Journal JournalFields `json:"journal"`
}

type healthResponse struct {
	ImageID     string `json:"image_id"`
	RulesDigest string `json:"rules_digest"`
	Ruleset     string `json:"ruleset"`
}

// Ensure HTTPClient satisfies Client at compile time.
var _ Client = (*HTTPClient)(nil)
