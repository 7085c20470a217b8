package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/nodeforge/livegen/pkg/logging"
)

// DefaultBaseURL is the public Livepeer AI gateway
const DefaultBaseURL = "https://dream-gateway.livepeer.cloud"

// Client talks to the Livepeer AI gateway. All generation endpoints
// hang off one bearer-authenticated HTTP client; per-call deadlines
// come from the caller's context, not a client-wide timeout, so the
// retry layer can abandon an attempt without tearing the client down.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *logging.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithBaseURL points the client at a different gateway
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = url }
}

// WithLogger attaches a logger for request tracing
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a gateway client with the given bearer token
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = logging.NewLogger(logging.INFO, false)
	}
	return c
}

// APIError is a non-2xx gateway response
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("gateway returned %d", e.StatusCode)
}

// errorBody matches the gateway's {"detail": {"msg": "..."}} and plain
// {"detail": "..."} error shapes
type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil && len(eb.Detail) > 0 {
		var s string
		if json.Unmarshal(eb.Detail, &s) == nil {
			apiErr.Detail = s
		} else {
			var nested struct {
				Msg string `json:"msg"`
			}
			if json.Unmarshal(eb.Detail, &nested) == nil && nested.Msg != "" {
				apiErr.Detail = nested.Msg
			}
		}
	}
	if apiErr.Detail == "" && len(body) > 0 && len(body) < 512 {
		apiErr.Detail = string(body)
	}
	return apiErr
}

// postJSON sends a JSON body and decodes the response into out
func (c *Client) postJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding request for %s: %w", path, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, path, out)
}

// filePart is one uploaded file in a multipart request
type filePart struct {
	field    string
	filename string
	content  []byte
}

// postMultipart sends form fields plus file uploads and decodes the
// response into out. Empty-valued fields are omitted so the gateway
// applies its own defaults.
func (c *Client) postMultipart(ctx context.Context, path string, fields map[string]string, files []filePart, out any) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.filename)
		if err != nil {
			return fmt.Errorf("building multipart for %s: %w", path, err)
		}
		if _, err := part.Write(f.content); err != nil {
			return fmt.Errorf("building multipart for %s: %w", path, err)
		}
	}
	for k, v := range fields {
		if v == "" {
			continue
		}
		if err := w.WriteField(k, v); err != nil {
			return fmt.Errorf("building multipart for %s: %w", path, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("building multipart for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return fmt.Errorf("building request for %s: %w", path, err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(req, path, out)
}

func (c *Client) do(req *http.Request, path string, out any) error {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response from %s: %w", path, err)
	}

	c.logger.Debug("Gateway call finished", map[string]interface{}{
		"path": path, "status": resp.StatusCode, "elapsed_ms": time.Since(start).Milliseconds(),
	})

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return parseAPIError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatBool(v bool) string {
	return strconv.FormatBool(v)
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}
