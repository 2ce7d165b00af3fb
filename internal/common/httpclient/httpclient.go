// Package httpclient is the client side of the clood API. It builds requests
// against a server URL and unwraps the response envelope, turning
// success=false into an error carrying the server's message.
package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/tidwall/gjson"
)

// ServerError is a failed envelope returned by the server.
type ServerError struct {
	Message string
}

func (e *ServerError) Error() string {
	return e.Message
}

// HTTPError represents a response that was not an envelope at all.
type HTTPError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// RequestOptions contains options for making HTTP requests.
type RequestOptions struct {
	Method      string            // HTTP method (GET, POST)
	Path        string            // API endpoint path
	QueryParams map[string]string // Optional query parameters
	Body        []byte            // Optional request body
}

// HTTPClient makes requests against a clood server.
type HTTPClient struct {
	serverURL  string
	httpClient *http.Client
}

// NewClient creates a client for serverURL. A zero timeout means no client
// side limit; model calls can take minutes.
func NewClient(serverURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		serverURL:  serverURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// DoRequest makes an HTTP request and returns the raw response body.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	req, err := newRequest(ctx, c.serverURL, opts)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %v", err)
	}
	return checkStatus(resp.StatusCode, body)
}

// Call sends opts and returns the data member of a successful envelope.
func (c *HTTPClient) Call(ctx context.Context, opts RequestOptions) (gjson.Result, error) {
	return call(ctx, c, opts)
}

func call(ctx context.Context, c HTTPClientInterface, opts RequestOptions) (gjson.Result, error) {
	body, err := c.DoRequest(ctx, opts)
	if err != nil {
		return gjson.Result{}, err
	}
	return ParseEnvelope(body)
}

// ParseEnvelope validates an envelope and returns its data member.
func ParseEnvelope(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &HTTPError{StatusCode: http.StatusOK, Message: "malformed response: " + string(body)}
	}
	success := gjson.GetBytes(body, "success")
	if !success.Exists() {
		return gjson.Result{}, &HTTPError{StatusCode: http.StatusOK, Message: "response is not an envelope"}
	}
	if !success.Bool() {
		msg := gjson.GetBytes(body, "errorMessage").String()
		if msg == "" {
			msg = "request failed"
		}
		return gjson.Result{}, &ServerError{Message: msg}
	}
	return gjson.GetBytes(body, "data"), nil
}

func newRequest(ctx context.Context, serverURL string, opts RequestOptions) (*http.Request, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %v", err)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), bytes.NewReader(opts.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func checkStatus(code int, body []byte) ([]byte, error) {
	if code >= 400 {
		if code == http.StatusNotFound {
			return nil, &HTTPError{StatusCode: code, Message: "server doesn't implement this endpoint"}
		}
		return nil, &HTTPError{StatusCode: code, Message: string(body)}
	}
	return body, nil
}
