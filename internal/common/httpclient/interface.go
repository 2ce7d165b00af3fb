package httpclient

import (
	"context"

	"github.com/tidwall/gjson"
)

// HTTPClientInterface is implemented by the network client and the
// in-process test client.
type HTTPClientInterface interface {
	// DoRequest returns the raw response body.
	DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error)
	// Call returns the data member of a successful envelope, or the
	// envelope's error message as a *ServerError.
	Call(ctx context.Context, opts RequestOptions) (gjson.Result, error)
}

var _ HTTPClientInterface = &HTTPClient{}
var _ HTTPClientInterface = &TestHTTPClient{}
