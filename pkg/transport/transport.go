// Package transport implements the HTTP request plumbing shared by all
// pulse client operations. A Transport is bound to a server's API base URL
// and handles JSON encoding, status checking, and response decoding.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bft-labs/pulse/pkg/log"
)

// DefaultTimeout is the request timeout applied when the caller does not
// supply its own HTTP client.
const DefaultTimeout = 10 * time.Second

// HTTPClient is the interface for making HTTP requests.
// *http.Client satisfies this interface.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusError is returned when the server responds with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Body)
}

// IsStatus reports whether err wraps a StatusError with the given status code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Transport issues JSON requests against a fixed API base URL.
type Transport struct {
	baseURL string
	client  HTTPClient
	logger  log.Logger
}

// New creates a Transport bound to baseURL (including the API prefix,
// e.g. "http://localhost:5600/api/0"). A trailing slash is stripped.
func New(baseURL string, client HTTPClient, logger log.Logger) *Transport {
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Transport{
		baseURL: baseURL,
		client:  client,
		logger:  logger,
	}
}

// BaseURL returns the API base URL the transport is bound to.
func (t *Transport) BaseURL() string {
	return t.baseURL
}

// Get issues a GET request and decodes the JSON response into out.
func (t *Transport) Get(ctx context.Context, path string, out interface{}) error {
	return t.do(ctx, http.MethodGet, path, nil, out)
}

// Post issues a POST request with a JSON body and decodes the response into
// out. Either body or out may be nil.
func (t *Transport) Post(ctx context.Context, path string, body, out interface{}) error {
	return t.do(ctx, http.MethodPost, path, body, out)
}

// Delete issues a DELETE request. The response body is discarded.
func (t *Transport) Delete(ctx context.Context, path string) error {
	return t.do(ctx, http.MethodDelete, path, nil, nil)
}

func (t *Transport) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	url := t.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		respBody, _ := io.ReadAll(resp.Body)
		t.logger.Debug("request failed",
			log.String("method", method),
			log.String("path", path),
			log.Int("status", resp.StatusCode))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out == nil {
		return nil
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
