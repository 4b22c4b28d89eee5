package uploadapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/opensession/opensession-go/internal/extract"
)

// Client talks to a handoff server's upload API over plain HTTP/JSON. It
// follows the same functional-options construction the teacher's model
// providers use (see internal/providers/anthropic.go): a required base
// URL and API key, a sane default timeout, everything else overridable.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	scores  *extract.Registry
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client, e.g. to inject a
// custom transport for testing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.client = hc
		}
	}
}

// WithTimeout overrides the default request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithScoreRegistry attaches the scoring-plugin registry Push validates a
// request's score_plugin against before sending — an unknown plugin name
// fails the upload locally instead of being silently rejected or
// fall-back-scored by the server.
func WithScoreRegistry(scores *extract.Registry) Option {
	return func(c *Client) { c.scores = scores }
}

// NewClient creates a Client against baseURL, authenticating with apiKey
// as a bearer token.
func NewClient(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Push uploads one session, returning the server's acknowledgement.
func (c *Client) Push(ctx context.Context, req UploadRequest) (UploadResponse, error) {
	if err := ValidateUploadRequest(req, c.scores); err != nil {
		return UploadResponse{}, err
	}

	var resp UploadResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions", req, &resp); err != nil {
		return UploadResponse{}, fmt.Errorf("uploadapi: push %s: %w", req.SessionID, err)
	}
	return resp, nil
}

// Pull fetches every session summary for a team created or updated since
// req.Cursor.
func (c *Client) Pull(ctx context.Context, req PullRequest) (PullResponse, error) {
	if err := ValidatePullRequest(req); err != nil {
		return PullResponse{}, err
	}

	values := url.Values{}
	values.Set("team_id", req.TeamID)
	if req.Cursor != "" {
		values.Set("cursor", req.Cursor)
	}
	if req.Limit > 0 {
		values.Set("limit", strconv.Itoa(req.Limit))
	}

	var resp PullResponse
	path := "/v1/sessions?" + values.Encode()
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return PullResponse{}, fmt.Errorf("uploadapi: pull team %s: %w", req.TeamID, err)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server returned %s: %s", resp.Status, trimBody(respBody))
	}

	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func trimBody(b []byte) string {
	const max = 500
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
