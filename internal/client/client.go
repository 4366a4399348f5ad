// Package client calls a running pricing server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"air-server/internal/analysis"
	"air-server/internal/model"
)

// DefaultBaseURL is used when NewClient gets an empty base URL.
const DefaultBaseURL = "http://localhost:8080"

// Client sends pricing requests on behalf of one user and machine.
type Client struct {
	BaseURL  string
	UserName string
	Machine  string
	HTTP     *http.Client
	Logger   *slog.Logger
}

// NewClient creates a client with a 30s timeout.
func NewClient(baseURL string, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
		Logger:  logger,
	}
}

// PriceParams are the inputs of one pricing call. Grids are sent as JSON.
type PriceParams struct {
	Parameters [][]any
	Values     [][]any
	Option1    string
	Option2    string
	Culture    string
}

// APIError is a response with an unexpected HTTP status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// PricingError is a failure the server embedded in a 200 response.
type PricingError struct {
	Message string
}

func (e *PricingError) Error() string { return e.Message }

// Price posts p to /api/air and returns the priced rows.
func (c *Client) Price(ctx context.Context, p PriceParams) ([]model.ResultRow, error) {
	form := url.Values{}
	for name, g := range map[string][][]any{"parameters": p.Parameters, "values": p.Values} {
		if g == nil {
			continue
		}
		b, err := json.Marshal(g)
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", name, err)
		}
		form.Set(name, string(b))
	}
	for name, v := range map[string]string{"option1": p.Option1, "option2": p.Option2, "culture": p.Culture} {
		if v != "" {
			form.Set(name, v)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/air", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if c.UserName != "" {
		req.Header.Set("UserName", c.UserName)
	}
	if c.Machine != "" {
		req.Header.Set("Machine", c.Machine)
	}

	var resp model.PricingResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if msg, ok := embeddedError(resp); ok {
		return nil, &PricingError{Message: msg}
	}
	return resp.Data, nil
}

// Stats fetches the server's usage figures.
func (c *Client) Stats(ctx context.Context) (*analysis.KPIs, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	var k analysis.KPIs
	if err := c.do(req, &k); err != nil {
		return nil, err
	}
	return &k, nil
}

func (c *Client) do(req *http.Request, out any) error {
	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	c.Logger.Debug("air request",
		"method", req.Method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: errorMessage(resp)}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// errorMessage pulls the message out of an error body, falling back to the
// status text.
func errorMessage(resp *http.Response) string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if body.Error.Message != "" {
			return body.Error.Message
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return resp.Status
}

func embeddedError(resp model.PricingResponse) (string, bool) {
	if len(resp.Data) != 1 || len(resp.Data[0]) != 1 {
		return "", false
	}
	s, ok := resp.Data[0][0].Value.(string)
	if !ok || !strings.HasPrefix(s, model.ErrorPrefix) {
		return "", false
	}
	return strings.TrimPrefix(s, model.ErrorPrefix), true
}
