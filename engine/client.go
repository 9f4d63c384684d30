// Package engine implements the HTTP client for the external Planning
// Engine. The engine is an opaque collaborator: jobs are submitted,
// polled and cancelled through it, and completed plans are fetched,
// explained and committed. The optimization itself never runs here.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/railops/rakeplan/core/model"
	"github.com/railops/rakeplan/infra/logger"
)

// Config holds the engine endpoint settings.
type Config struct {
	// BaseURL is the engine API root, e.g. http://localhost:8000/api.
	BaseURL string `json:"base_url"`
	// TimeoutSeconds bounds each individual request.
	TimeoutSeconds int `json:"timeout_seconds"`
	// PollIntervalMS is the status query interval for running jobs.
	PollIntervalMS int `json:"poll_interval_ms"`
	// MaxPollFailures is the number of consecutive failed polls after
	// which a job is locally marked failed.
	MaxPollFailures int `json:"max_poll_failures"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
	if c.PollIntervalMS <= 0 {
		c.PollIntervalMS = 2000
	}
	if c.MaxPollFailures <= 0 {
		c.MaxPollFailures = 5
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("engine base_url is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("engine base_url: %w", err)
	}
	return nil
}

// PollInterval returns the configured interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// Client talks to the Planning Engine over HTTP/JSON.
type Client struct {
	base   string
	client *http.Client
	log    logger.Logger
}

// NewClient creates a Client for the configured endpoint.
func NewClient(cfg Config) *Client {
	cfg.SetDefaults()
	return &Client{
		base:   strings.TrimSuffix(cfg.BaseURL, "/"),
		client: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		log:    logger.New("engine-client"),
	}
}

type generateRequest struct {
	ScenarioName string         `json:"scenario_name"`
	Config       map[string]any `json:"config"`
	Notes        string         `json:"notes,omitempty"`
}

type generateResponse struct {
	JobID  string          `json:"job_id"`
	Status model.JobStatus `json:"status"`
}

// Generate submits a planning job and returns the engine-assigned job id
// with the initial status.
func (c *Client) Generate(ctx context.Context, scenario string, config map[string]any, notes string) (string, model.JobStatus, error) {
	var out generateResponse
	err := c.do(ctx, http.MethodPost, "/plan/generate", generateRequest{
		ScenarioName: scenario,
		Config:       config,
		Notes:        notes,
	}, &out)
	if err != nil {
		return "", "", err
	}
	if out.JobID == "" {
		return "", "", fmt.Errorf("engine acknowledged submission without a job id")
	}
	if out.Status == "" {
		out.Status = model.StatusQueued
	}
	return out.JobID, out.Status, nil
}

// Status fetches the current snapshot of a job.
func (c *Client) Status(ctx context.Context, jobID string) (model.PlanningJob, error) {
	var job model.PlanningJob
	if err := c.do(ctx, http.MethodGet, "/job/"+url.PathEscape(jobID)+"/status", nil, &job); err != nil {
		return model.PlanningJob{}, err
	}
	if job.ID == "" {
		job.ID = jobID
	}
	if err := job.Validate(); err != nil {
		return model.PlanningJob{}, fmt.Errorf("invalid job snapshot: %w", err)
	}
	return job, nil
}

// Cancel requests cancellation of a job. Cancellation is asynchronous on
// the engine side; callers must re-query Status for the authoritative
// outcome, which may legitimately be completed rather than cancelled.
func (c *Client) Cancel(ctx context.Context, jobID string) (model.PlanningJob, error) {
	var job model.PlanningJob
	err := c.do(ctx, http.MethodPost, "/job/"+url.PathEscape(jobID)+"/cancel", nil, &job)
	if err != nil {
		// The engine rejects cancels for jobs that already finished.
		// That race is not an error: the terminal state wins.
		var serr *StatusError
		if errors.As(err, &serr) && serr.Code == http.StatusBadRequest {
			return c.Status(ctx, jobID)
		}
		return model.PlanningJob{}, err
	}
	if job.ID == "" {
		return c.Status(ctx, jobID)
	}
	return job, nil
}

// Plan fetches a completed plan with its rake assignments.
func (c *Client) Plan(ctx context.Context, planID string) (model.Plan, error) {
	var plan model.Plan
	if err := c.do(ctx, http.MethodGet, "/plan/"+url.PathEscape(planID), nil, &plan); err != nil {
		return model.Plan{}, err
	}
	if err := plan.Validate(); err != nil {
		return model.Plan{}, fmt.Errorf("invalid plan payload: %w", err)
	}
	return plan, nil
}

// Explanation is the engine's natural-language summary of a plan.
type Explanation struct {
	PlanID      string    `json:"plan_id"`
	Explanation string    `json:"explanation"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Explain asks the engine for a narrative explanation of a plan.
func (c *Client) Explain(ctx context.Context, planID string) (Explanation, error) {
	var out Explanation
	if err := c.do(ctx, http.MethodPost, "/plan/"+url.PathEscape(planID)+"/explain", nil, &out); err != nil {
		return Explanation{}, err
	}
	return out, nil
}

// Commit marks a plan as committed for execution and returns the plan.
// Committing an already-committed plan is a no-op: the original
// committed_at is preserved and no error is raised.
func (c *Client) Commit(ctx context.Context, planID string) (model.Plan, error) {
	err := c.do(ctx, http.MethodPost, "/plan/"+url.PathEscape(planID)+"/commit", nil, nil)
	if err != nil {
		var serr *StatusError
		if !errors.As(err, &serr) || serr.Code != http.StatusBadRequest {
			return model.Plan{}, err
		}
		// Already committed: fall through and return the stored plan.
	}
	return c.Plan(ctx, planID)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return wrapTransport(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
