package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/clood-dev/clood/internal/clood/git"
	"github.com/clood-dev/clood/internal/clood/gittest"
	"github.com/clood-dev/clood/internal/clood/orchestrator"
	"github.com/clood-dev/clood/internal/clood/proposal"
	"github.com/clood-dev/clood/internal/clood/proposal/proposaltest"
	"github.com/clood-dev/clood/internal/clood/session"
	"github.com/clood-dev/clood/internal/common/middleware"
)

type testServer struct {
	root    string
	backend *proposaltest.Backend
	srv     *CloodServer
}

func newTestServer(t *testing.T, steps ...proposaltest.Step) *testServer {
	t.Helper()
	root := gittest.NewRepo(t, map[string]string{"a.txt": "A", "b.txt": "B"})
	backend := proposaltest.New(steps...)
	client := proposal.NewClient(backend, proposal.WithTimer(&proposaltest.Timer{}))
	orch := orchestrator.New(git.New(root), session.NewStore(), client)
	srv, err := CreateNewServer(orch, WithCORS(true))
	require.NoError(t, err)
	srv.MountHandlers()
	return &testServer{root: root, backend: backend, srv: srv}
}

func (ts *testServer) execute(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	ts.srv.Router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	checkHeader(t, rr.Result().Header)
	return rr
}

// succeed posts body to path and returns the data member of a successful
// envelope.
func (ts *testServer) succeed(t *testing.T, method, path, body string) gjson.Result {
	t.Helper()
	rsp := ts.execute(t, method, path, body).Body.String()
	require.True(t, gjson.Get(rsp, "success").Bool(), rsp)
	assert.Equal(t, gjson.Null, gjson.Get(rsp, "errorMessage").Type)
	return gjson.Get(rsp, "data")
}

// fail posts body to path and returns the error message of a failed envelope.
func (ts *testServer) fail(t *testing.T, method, path, body string) string {
	t.Helper()
	rsp := ts.execute(t, method, path, body).Body.String()
	require.False(t, gjson.Get(rsp, "success").Bool(), rsp)
	assert.Equal(t, gjson.Null, gjson.Get(rsp, "data").Type)
	return gjson.Get(rsp, "errorMessage").String()
}

func checkHeader(t *testing.T, h http.Header) {
	t.Helper()
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.NotEmpty(t, h.Get(middleware.RequestIDHeader), "no request id")
}

func compareJson(t *testing.T, expected any, actual string) {
	t.Helper()
	b, err := json.Marshal(expected)
	require.NoError(t, err)
	assert.JSONEq(t, string(b), actual)
}
