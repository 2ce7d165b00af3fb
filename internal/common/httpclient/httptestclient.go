package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"

	"github.com/tidwall/gjson"
)

// TestHTTPClient serves requests directly from an http.Handler using a
// recorder, without opening a socket.
type TestHTTPClient struct {
	handler http.Handler
}

// NewTestClient creates a client bound to handler.
func NewTestClient(handler http.Handler) *TestHTTPClient {
	return &TestHTTPClient{handler: handler}
}

// DoRequest serves opts through the handler and returns the recorded body.
func (c *TestHTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	req, err := newRequest(ctx, "http://clood.test", opts)
	if err != nil {
		return nil, err
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return checkStatus(rr.Code, rr.Body.Bytes())
}

// Call sends opts and returns the data member of a successful envelope.
func (c *TestHTTPClient) Call(ctx context.Context, opts RequestOptions) (gjson.Result, error) {
	return call(ctx, c, opts)
}
