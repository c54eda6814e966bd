package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Unit is one addressable sub-unit of a resource (a sheet within a
// spreadsheet). Index is the enumeration position reported by the remote.
type Unit struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Index int    `json:"index"`
}

// SubOperation is one mutation inside a batched call.
type SubOperation struct {
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// BatchResult is the remote's response to a batched mutation call.
type BatchResult struct {
	Applied int               `json:"applied"`
	Replies []json.RawMessage `json:"replies,omitempty"`
}

// Client defines the interface to the remote spreadsheet API.
type Client interface {
	// ListUnits enumerates the sub-units of a resource in remote order.
	ListUnits(ctx context.Context, resourceID string) ([]Unit, error)
	// FetchUnit reads one sub-unit's content.
	FetchUnit(ctx context.Context, resourceID, unitID string) ([]byte, error)
	// BatchUpdate applies up to the remote's batch cap of sub-operations
	// in a single call. Sub-operations are applied in slice order.
	BatchUpdate(ctx context.Context, resourceID string, ops []SubOperation) (*BatchResult, error)
}

// NewClient creates an HTTP client for the remote API based on the configuration.
func NewClient(cfg Config) Client {
	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = 30
	}
	timeoutDuration := time.Duration(timeout) * time.Second

	// Strict transport timeouts so a wedged remote surfaces as a transient
	// error instead of a hang.
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   timeoutDuration,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   timeoutDuration,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: timeoutDuration,
	}

	return &httpClient{
		cfg:  cfg,
		http: &http.Client{Transport: transport},
	}
}

type httpClient struct {
	cfg  Config
	http *http.Client
}

func (c *httpClient) ListUnits(ctx context.Context, resourceID string) ([]Unit, error) {
	var out struct {
		Units []Unit `json:"units"`
	}
	path := fmt.Sprintf("/v1/resources/%s/units", url.PathEscape(resourceID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Units, nil
}

func (c *httpClient) FetchUnit(ctx context.Context, resourceID, unitID string) ([]byte, error) {
	var out struct {
		Content json.RawMessage `json:"content"`
	}
	path := fmt.Sprintf("/v1/resources/%s/units/%s",
		url.PathEscape(resourceID), url.PathEscape(unitID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Content, nil
}

func (c *httpClient) BatchUpdate(ctx context.Context, resourceID string, ops []SubOperation) (*BatchResult, error) {
	in := struct {
		Operations []SubOperation `json:"operations"`
	}{Operations: ops}

	var out BatchResult
	path := fmt.Sprintf("/v1/resources/%s:batchUpdate", url.PathEscape(resourceID))
	if err := c.do(ctx, http.MethodPost, path, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do issues one HTTP request and decodes the JSON response, classifying
// failures into the transient/permanent taxonomy.
func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return &PermanentError{Message: "failed to encode request body", Err: err}
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, body)
	if err != nil {
		return &PermanentError{Message: "failed to build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		// Network-level failures are transient by definition.
		return &TransientError{Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransientError{Message: "failed to read response body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return classifyStatus(resp.StatusCode, data)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return &TransientError{
				StatusCode: resp.StatusCode,
				Message:    "failed to decode response body",
				Err:        err,
			}
		}
	}
	return nil
}

// classifyStatus maps a non-200 response onto the error taxonomy. The remote
// signals quota exhaustion either with 429 or with a RATE_LIMIT_EXCEEDED
// status in the error payload; both must be recognized as transient.
func classifyStatus(status int, body []byte) error {
	var payload struct {
		Error struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &payload)

	message := payload.Error.Message
	if message == "" {
		message = http.StatusText(status)
	}

	rateLimited := status == http.StatusTooManyRequests ||
		payload.Error.Status == "RATE_LIMIT_EXCEEDED" ||
		payload.Error.Status == "RESOURCE_EXHAUSTED"

	switch {
	case rateLimited:
		return &TransientError{StatusCode: status, RateLimited: true, Message: message}
	case status >= 500 || status == http.StatusRequestTimeout:
		return &TransientError{StatusCode: status, Message: message}
	case status == http.StatusNotFound:
		return &PermanentError{StatusCode: status, NotFound: true, Message: message}
	default:
		return &PermanentError{StatusCode: status, Message: message}
	}
}
