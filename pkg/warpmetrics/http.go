package warpmetrics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/warp-run/warp-coder/pkg/models"
)

// DefaultBaseURL is the production warpmetrics endpoint.
const DefaultBaseURL = "https://api.warpmetrics.dev/v1"

// ErrRequestFailed indicates the service answered with a non-2xx status.
var ErrRequestFailed = errors.New("warpmetrics request failed")

// HTTPClient talks JSON over HTTP to the warpmetrics service. Transient
// failures are retried with backoff; appends are at-least-once, which the
// reconciler tolerates by treating the latest outcome as authoritative.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *retryablehttp.Client
	logger  *slog.Logger
}

var _ Client = (*HTTPClient)(nil)

// HTTPClientConfig holds the parameters needed to construct an HTTPClient.
type HTTPClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// NewHTTPClient creates a warpmetrics HTTP client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	rc := retryablehttp.NewClient()
	rc.RetryMax = 4
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 8 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil // slog below, not retryablehttp's internal logger

	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    rc,
		logger:  slog.Default().With("component", "warpmetrics"),
	}
}

type idResponse struct {
	ID string `json:"id"`
}

// ReserveAct allocates an act id without publishing the act.
func (c *HTTPClient) ReserveAct(ctx context.Context, name string) (string, error) {
	var resp idResponse
	err := c.do(ctx, http.MethodPost, "/acts/reserve", map[string]any{"name": name}, &resp)
	if err != nil {
		return "", err
	}
	return resp.ID, nil
}

// StartRun appends a new run, optionally linked to refActID.
func (c *HTTPClient) StartRun(ctx context.Context, refActID, label string, opts map[string]any) (string, error) {
	body := map[string]any{"label": label, "opts": opts}
	if refActID != "" {
		body["refActId"] = refActID
	}
	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/runs", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// CreateGroup appends a phase group to a run.
func (c *HTTPClient) CreateGroup(ctx context.Context, runID, label string, opts map[string]any) (string, error) {
	var resp idResponse
	path := "/runs/" + url.PathEscape(runID) + "/groups"
	if err := c.do(ctx, http.MethodPost, path, map[string]any{"label": label, "opts": opts}, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RecordOutcome appends an outcome to a run or group.
func (c *HTTPClient) RecordOutcome(ctx context.Context, container models.ContainerRef, name string, opts map[string]any) (string, error) {
	body := map[string]any{
		"container": map[string]any{"kind": container.Kind, "id": container.ID},
		"name":      name,
		"opts":      opts,
	}
	var resp idResponse
	if err := c.do(ctx, http.MethodPost, "/outcomes", body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// RecordAct appends an act under an outcome.
func (c *HTTPClient) RecordAct(ctx context.Context, outcomeID, reservedID, name string, opts map[string]any) (string, error) {
	body := map[string]any{"name": name, "opts": opts}
	if reservedID != "" {
		body["reservedId"] = reservedID
	}
	var resp idResponse
	path := "/outcomes/" + url.PathEscape(outcomeID) + "/acts"
	if err := c.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

type runsResponse struct {
	Runs []*models.Run `json:"runs"`
}

// FindOpenIssueRuns returns all non-terminal issue runs fully expanded.
func (c *HTTPClient) FindOpenIssueRuns(ctx context.Context) ([]*models.Run, error) {
	var resp runsResponse
	if err := c.do(ctx, http.MethodGet, "/runs?label=Issue&open=true&expand=true", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// FindRuns returns runs with the given label matching the filter.
func (c *HTTPClient) FindRuns(ctx context.Context, label string, filter RunFilter) ([]*models.Run, error) {
	q := url.Values{}
	q.Set("label", label)
	if filter.IssueID != "" {
		q.Set("issueId", filter.IssueID)
	}
	if filter.PR != 0 {
		q.Set("pr", strconv.Itoa(filter.PR))
	}
	if filter.Since != "" {
		q.Set("since", filter.Since)
	}
	var resp runsResponse
	if err := c.do(ctx, http.MethodGet, "/runs?"+q.Encode(), nil, &resp); err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

// do issues one request and decodes the JSON response into out (if non-nil).
func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("Request rejected",
			"method", method, "path", path,
			"status", resp.StatusCode)
		return fmt.Errorf("%w: %s %s: status %d: %s", ErrRequestFailed, method, path, resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response for %s %s: %w", method, path, err)
	}
	return nil
}
