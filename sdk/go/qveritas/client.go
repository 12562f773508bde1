// Package qveritas is a Go client for the QVeritas REST API.
package qveritas

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
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client.
const DefaultHTTPTimeout = 30 * time.Second

// Client wraps the HTTP interactions with the QVeritas REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("qveritas api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("qveritas api error (%d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an API error with status 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// NewClient instantiates a client for the QVeritas API. When httpClient is
// nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", rawURL)
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// Prove runs VerifyAndProve synchronously.
func (c *Client) Prove(ctx context.Context, req ProveRequest) (VerificationResult, error) {
	var out VerificationResult
	if err := c.post(ctx, "/api/v1/proofs", req, &out); err != nil {
		return VerificationResult{}, err
	}
	return out, nil
}

// VerifyProof re-verifies a cached proof. A missing proof is not an error:
// the returned result has Valid=false and the reason in Metadata["error"].
func (c *Client) VerifyProof(ctx context.Context, proofID string) (VerificationResult, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/v1/proofs/"+url.PathEscape(proofID), nil, nil)
	if err != nil {
		return VerificationResult{}, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return VerificationResult{}, fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusNotFound, http.StatusServiceUnavailable:
		var out VerificationResult
		if err := json.NewDecoder(resp.Body).Decode(&out); err == nil && out.Algorithm != "" {
			return out, nil
		}
		if resp.StatusCode == http.StatusOK {
			return VerificationResult{}, errors.New("decode response: unexpected verification body")
		}
		return VerificationResult{}, &APIError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
	default:
		return VerificationResult{}, readAPIError(resp)
	}
}

// GetProof fetches the stored proof record.
func (c *Client) GetProof(ctx context.Context, proofID string) (Proof, error) {
	var out Proof
	if err := c.get(ctx, "/api/v1/proofs/"+url.PathEscape(proofID)+"/record", nil, &out); err != nil {
		return Proof{}, err
	}
	return out, nil
}

// Compute runs a numeric operation without generating a proof.
func (c *Client) Compute(ctx context.Context, operation string, args any) (ComputeResult, error) {
	payload, err := json.Marshal(args)
	if err != nil {
		return ComputeResult{}, fmt.Errorf("encode arguments: %w", err)
	}
	body := struct {
		Operation string          `json:"operation"`
		Payload   json.RawMessage `json:"payload"`
	}{operation, payload}
	var out ComputeResult
	if err := c.post(ctx, "/api/v1/computations", body, &out); err != nil {
		return ComputeResult{}, err
	}
	return out, nil
}

// SubmitJob enqueues a VerifyAndProve call.
func (c *Client) SubmitJob(ctx context.Context, req JobRequest) (Job, error) {
	var out Job
	if err := c.post(ctx, "/api/v1/jobs", req, &out); err != nil {
		return Job{}, err
	}
	return out, nil
}

// GetJob fetches a job by identifier.
func (c *Client) GetJob(ctx context.Context, id string) (Job, error) {
	var out Job
	if err := c.get(ctx, "/api/v1/jobs/"+url.PathEscape(id), nil, &out); err != nil {
		return Job{}, err
	}
	return out, nil
}

// ListJobs returns jobs matching opts together with aggregate counts.
func (c *Client) ListJobs(ctx context.Context, opts ListJobsOptions) (JobList, error) {
	q := url.Values{}
	if len(opts.Statuses) > 0 {
		q.Set("status", strings.Join(opts.Statuses, ","))
	}
	if opts.ComputationType != "" {
		q.Set("computation_type", opts.ComputationType)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.Query != "" {
		q.Set("q", opts.Query)
	}
	if opts.Ascending {
		q.Set("order", "asc")
	}
	var out JobList
	if err := c.get(ctx, "/api/v1/jobs", q, &out); err != nil {
		return JobList{}, err
	}
	return out, nil
}

// WaitForJob polls until the job reaches a terminal status or ctx is done.
func (c *Client) WaitForJob(ctx context.Context, id string, interval time.Duration) (Job, error) {
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		job, err := c.GetJob(ctx, id)
		if err != nil {
			return Job{}, err
		}
		if job.Terminal() {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return job, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Benchmark runs the throughput benchmark. Nil sizes use the server defaults.
func (c *Client) Benchmark(ctx context.Context, sizes []int) (map[string]BenchmarkResult, error) {
	body := struct {
		Sizes []int `json:"sizes,omitempty"`
	}{sizes}
	var out map[string]BenchmarkResult
	if err := c.post(ctx, "/api/v1/benchmarks", body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// AuditReport builds the audit report without persisting it.
func (c *Client) AuditReport(ctx context.Context) (AuditReport, error) {
	var out AuditReport
	if err := c.get(ctx, "/api/v1/audit", nil, &out); err != nil {
		return AuditReport{}, err
	}
	return out, nil
}

// ExportAudit writes the audit report to the configured sink.
func (c *Client) ExportAudit(ctx context.Context) (AuditExport, error) {
	var out AuditExport
	if err := c.post(ctx, "/api/v1/audit/export", struct{}{}, &out); err != nil {
		return AuditExport{}, err
	}
	return out, nil
}

// Health checks the liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/healthz", nil, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, query url.Values, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = path.Join(c.baseURL.Path, endpoint)
	u.RawPath = ""
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readAPIError(resp *http.Response) error {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read error response: %w", err)
	}
	if len(data) > 0 {
		_ = json.Unmarshal(data, apiErr)
	}
	if apiErr.Message == "" {
		apiErr.Message = string(bytes.TrimSpace(data))
	}
	return apiErr
}
