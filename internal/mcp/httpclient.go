package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meltforce/mapty/internal/models"
	"github.com/meltforce/mapty/internal/tracker"
)

// HTTPClient implements DataSource by calling the mapty REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// the workouts live on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL. apiKey
// is sent as X-API-Key on every request when non-empty.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// do sends a request and returns the body of a 2xx response. Error bodies of
// the form {"error": "..."} are surfaced in the returned error; a 404 wraps
// tracker.ErrNotFound and a 400 wraps tracker.ErrValidation.
func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("httpclient: encode body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return nil, fmt.Errorf("httpclient: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := strings.TrimSpace(string(respBody))
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(respBody, &e) == nil && e.Error != "" {
			msg = e.Error
		}
		switch resp.StatusCode {
		case http.StatusNotFound:
			return nil, fmt.Errorf("%w: %s", tracker.ErrNotFound, msg)
		case http.StatusBadRequest:
			return nil, fmt.Errorf("%w: %s", tracker.ErrValidation, msg)
		}
		return nil, fmt.Errorf("httpclient: %s %s returned %d: %s", method, path, resp.StatusCode, msg)
	}

	return respBody, nil
}

func (c *HTTPClient) ListWorkouts(ctx context.Context) ([]*models.Workout, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts", nil, nil)
	if err != nil {
		return nil, err
	}
	return models.DecodeWorkouts(body)
}

func (c *HTTPClient) GetWorkout(ctx context.Context, id string) (*models.Workout, error) {
	body, err := c.do(ctx, http.MethodGet, "/api/v1/workouts/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	var w models.Workout
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return &w, nil
}

func (c *HTTPClient) LogWorkout(ctx context.Context, coords models.Coordinates, sub tracker.Submission) (*models.Workout, error) {
	payload := struct {
		tracker.Submission
		Coords models.Coordinates `json:"coords"`
	}{sub, coords}

	body, err := c.do(ctx, http.MethodPost, "/api/v1/workouts", nil, payload)
	if err != nil {
		return nil, err
	}
	var w models.Workout
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, fmt.Errorf("httpclient: decode workout: %w", err)
	}
	return &w, nil
}

func (c *HTTPClient) EditWorkout(ctx context.Context, id, field, value string) (tracker.EditResult, error) {
	body, err := c.do(ctx, http.MethodPatch, "/api/v1/workouts/"+url.PathEscape(id), nil,
		map[string]string{"field": field, "value": value})
	if err != nil {
		return tracker.EditResult{}, err
	}
	var res tracker.EditResult
	if err := json.Unmarshal(body, &res); err != nil {
		return tracker.EditResult{}, fmt.Errorf("httpclient: decode edit result: %w", err)
	}
	return res, nil
}

func (c *HTTPClient) DeleteWorkout(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/v1/workouts/"+url.PathEscape(id), nil, nil)
	return err
}
