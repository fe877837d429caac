package runway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// State is the remote lifecycle of a generation task.
type State string

const (
	StateRunning   State = "RUNNING"
	StateSucceeded State = "SUCCEEDED"
	StateFailed    State = "FAILED"
)

// TaskState is the result of one status poll.
type TaskState struct {
	Status State
	// OutputURL is the downloadable artifact; only meaningful when
	// Status is StateSucceeded, and may still be empty while the remote
	// service finalizes the upload.
	OutputURL string
	// Detail carries the remote failure reason when Status is StateFailed.
	Detail string
}

// CreateTaskRequest is the payload for an image-to-video submission.
type CreateTaskRequest struct {
	PromptImage string `json:"promptImage"`
	PromptText  string `json:"promptText"`
	Model       string `json:"model"`
	Duration    int    `json:"duration"`
	Ratio       string `json:"ratio"`
}

// Client defines the generation service operations used by the orchestrator.
type Client interface {
	CreateTask(ctx context.Context, req CreateTaskRequest) (string, error)
	TaskStatus(ctx context.Context, taskID string) (TaskState, error)
	Download(ctx context.Context, url string) ([]byte, error)
}

// HTTPClient talks to the Runway REST API.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	apiVersion string
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// Option configures an HTTPClient.
type Option func(*HTTPClient)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *HTTPClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a Runway API client.
func New(apiKey, baseURL, apiVersion string, opts ...Option) (*HTTPClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("runway api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("runway base url required")
	}
	client := &HTTPClient{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiVersion: strings.TrimSpace(apiVersion),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// CreateTask submits an image-to-video task and returns the remote task id.
func (c *HTTPClient) CreateTask(ctx context.Context, req CreateTaskRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal task request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/image_to_video", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build task request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setAuthHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("submit task: %s", httpErrorDetail(resp))
	}

	var payload struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode task response: %w", err)
	}
	if strings.TrimSpace(payload.ID) == "" {
		return "", errors.New("no task id in response")
	}
	return payload.ID, nil
}

// TaskStatus polls one task.
func (c *HTTPClient) TaskStatus(ctx context.Context, taskID string) (TaskState, error) {
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return TaskState{}, errors.New("task id required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tasks/"+taskID, nil)
	if err != nil {
		return TaskState{}, fmt.Errorf("build status request: %w", err)
	}
	c.setAuthHeaders(httpReq)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return TaskState{}, fmt.Errorf("query task status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TaskState{}, fmt.Errorf("query task status: %s", httpErrorDetail(resp))
	}

	var payload struct {
		Status  string   `json:"status"`
		Failure string   `json:"failure"`
		Output  []string `json:"output"`
		// Older API revisions report artifacts instead of output.
		Artifacts []struct {
			URL string `json:"url"`
		} `json:"artifacts"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return TaskState{}, fmt.Errorf("decode task status: %w", err)
	}

	switch strings.ToUpper(strings.TrimSpace(payload.Status)) {
	case string(StateSucceeded):
		state := TaskState{Status: StateSucceeded}
		if len(payload.Output) > 0 {
			state.OutputURL = payload.Output[0]
		}
		if state.OutputURL == "" && len(payload.Artifacts) > 0 {
			state.OutputURL = payload.Artifacts[0].URL
		}
		return state, nil
	case string(StateFailed):
		return TaskState{Status: StateFailed, Detail: strings.TrimSpace(payload.Failure)}, nil
	default:
		return TaskState{Status: StateRunning}, nil
	}
}

// Download fetches the full artifact body.
func (c *HTTPClient) Download(ctx context.Context, url string) ([]byte, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("download url required")
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build download request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("download artifact: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("download artifact: %s", httpErrorDetail(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read artifact body: %w", err)
	}
	return data, nil
}

func (c *HTTPClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.apiVersion != "" {
		req.Header.Set("X-Runway-Version", c.apiVersion)
	}
}

func httpErrorDetail(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	detail := strings.TrimSpace(string(body))
	if detail == "" {
		return fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", resp.StatusCode, detail)
}
