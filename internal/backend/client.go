// Package backend is the HTTP client for the local fine-tuning service.
// Every workflow in the desktop app is a thin call through this client;
// the backend owns training, deployment, and telemetry state.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Ankesh-007/peft-studio-sub003/internal/domain"
)

// StatusError reports a non-2xx backend response.
type StatusError struct {
	Code int
	Body string
}

// Error formats the status and a response excerpt.
func (e *StatusError) Error() string {
	return fmt.Sprintf("backend returned status %d (%s)", e.Code, e.Body)
}

// Is matches any StatusError regardless of code.
func (e *StatusError) Is(target error) bool {
	_, ok := target.(*StatusError)
	return ok
}

// Client calls the backend REST API at a fixed base URL.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client, replacing the default transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// NewClient creates a backend API client for the given base URL.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse backend URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("unsupported backend URL scheme: %q", parsed.Scheme)
	}

	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		tr := http.DefaultTransport.(*http.Transport).Clone()
		tr.MaxIdleConns = 10
		tr.IdleConnTimeout = 30 * time.Second
		c.httpClient = &http.Client{Transport: tr}
	}

	return c, nil
}

// BaseURL returns the configured backend base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes the liveness endpoint. Any 2xx response counts as alive;
// the caller bounds the attempt with its context deadline.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/api/health")
	return err
}

// Dependencies fetches the backend dependency report.
func (c *Client) Dependencies(ctx context.Context) (domain.DependencyReport, error) {
	var report domain.DependencyReport
	if err := c.getJSON(ctx, "/api/dependencies", &report); err != nil {
		return domain.DependencyReport{}, err
	}
	return report, nil
}

// ListDeployments returns all deployments known to the backend.
func (c *Client) ListDeployments(ctx context.Context) ([]domain.Deployment, error) {
	var deployments []domain.Deployment
	if err := c.getJSON(ctx, "/api/deployments", &deployments); err != nil {
		return nil, err
	}
	return deployments, nil
}

// CreateDeployment submits a new deployment request.
func (c *Client) CreateDeployment(ctx context.Context, req domain.DeploymentRequest) (domain.Deployment, error) {
	var deployment domain.Deployment
	if err := c.postJSON(ctx, "/api/deployments", req, &deployment); err != nil {
		return domain.Deployment{}, err
	}
	return deployment, nil
}

// Telemetry fetches one aggregation window of backend telemetry.
func (c *Client) Telemetry(ctx context.Context, window string) (domain.TelemetrySnapshot, error) {
	var snapshot domain.TelemetrySnapshot
	path := "/api/telemetry"
	if window != "" {
		path += "?window=" + url.QueryEscape(window)
	}
	if err := c.getJSON(ctx, path, &snapshot); err != nil {
		return domain.TelemetrySnapshot{}, err
	}
	return snapshot, nil
}

// UploadDataset streams a dataset file to the backend as multipart form data.
func (c *Client) UploadDataset(ctx context.Context, uploadID, filePath string) (domain.DatasetInfo, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return domain.DatasetInfo{}, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("uploadId", uploadID); err != nil {
		return domain.DatasetInfo{}, fmt.Errorf("write upload id: %w", err)
	}
	part, err := writer.CreateFormFile("file", filepath.Base(filePath))
	if err != nil {
		return domain.DatasetInfo{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return domain.DatasetInfo{}, fmt.Errorf("copy dataset: %w", err)
	}
	if err := writer.Close(); err != nil {
		return domain.DatasetInfo{}, fmt.Errorf("finalize form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/datasets", &body)
	if err != nil {
		return domain.DatasetInfo{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	data, err := c.do(req)
	if err != nil {
		return domain.DatasetInfo{}, err
	}

	var info domain.DatasetInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return domain.DatasetInfo{}, fmt.Errorf("decode dataset response: %w", err)
	}
	return info, nil
}

// ImportConfig forwards a training configuration document to the backend.
func (c *Client) ImportConfig(ctx context.Context, payload json.RawMessage) error {
	return c.postJSON(ctx, "/api/configs/import", payload, nil)
}

// ExportConfig fetches the backend's current training configuration verbatim.
func (c *Client) ExportConfig(ctx context.Context) (json.RawMessage, error) {
	data, err := c.get(ctx, "/api/configs/export")
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// LatestVersion returns the newest published version and release notes
// for the given update channel.
func (c *Client) LatestVersion(ctx context.Context, channel string) (version, notes string, err error) {
	var payload struct {
		Version string `json:"version"`
		Notes   string `json:"notes"`
	}
	path := "/api/updates/latest"
	if channel != "" {
		path += "?channel=" + url.QueryEscape(channel)
	}
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return "", "", err
	}
	return payload.Version, payload.Notes, nil
}

// get performs a GET and returns the raw response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// getJSON performs a GET and decodes the JSON response into out.
func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	data, err := c.get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// postJSON performs a POST with a JSON body and optionally decodes the response.
func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	data, err := c.do(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// do executes a request and maps non-2xx responses to StatusError.
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt := strings.TrimSpace(string(data))
		if len(excerpt) > 200 {
			excerpt = excerpt[:200]
		}
		return nil, &StatusError{Code: resp.StatusCode, Body: excerpt}
	}

	return data, nil
}
