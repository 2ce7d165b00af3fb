package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/clood-dev/clood/internal/clood/gittest"
	"github.com/clood-dev/clood/internal/clood/proposal/proposaltest"
	"github.com/clood-dev/clood/internal/common/middleware"
)

const startBody = `{"prompt":"change a","files":["a.txt","b.txt"]}`

func TestGetVersion(t *testing.T) {
	ts := newTestServer(t)
	response := ts.execute(t, http.MethodGet, "/version", "")
	compareJson(t, &GetVersionRsp{
		ServerVersion: "clood server: " + Version,
		ApiVersion:    ApiVersion,
	}, response.Body.String())
}

func TestGetReadiness(t *testing.T) {
	ts := newTestServer(t, proposaltest.Step{Text: proposaltest.Changed("a.txt", "X")})
	response := ts.execute(t, http.MethodGet, "/ready", "")
	compareJson(t, map[string]any{"status": "ready", "sessions": 0}, response.Body.String())

	ts.succeed(t, http.MethodPost, "/api/clood/start", startBody)
	response = ts.execute(t, http.MethodGet, "/ready", "")
	assert.Equal(t, int64(1), gjson.Get(response.Body.String(), "sessions").Int())
}

func TestStartAndMerge(t *testing.T) {
	ts := newTestServer(t, proposaltest.Step{Text: proposaltest.Changed("a.txt", "X")})

	data := ts.succeed(t, http.MethodPost, "/api/clood/start", startBody)
	id := data.Get("id").String()
	require.NotEmpty(t, id)
	assert.Equal(t, "clood-atxt-btxt", data.Get("newBranch").String())
	assert.True(t, data.Get("proposedChanges.answered").Bool())
	assert.Equal(t, "a.txt", data.Get("proposedChanges.changedFiles.0.filename").String())
	assert.Equal(t, "X", data.Get("proposedChanges.changedFiles.0.content").String())
	assert.True(t, data.Get("proposedChanges.newFiles").IsArray())
	assert.Equal(t, "clood-atxt-btxt", gittest.Head(t, ts.root))

	list := ts.succeed(t, http.MethodGet, "/api/clood/sessions", "")
	require.Len(t, list.Array(), 1)
	assert.Equal(t, id, list.Get("0.id").String())
	assert.Equal(t, int64(1), list.Get("0.changedFiles").Int())

	data = ts.succeed(t, http.MethodPost, "/api/clood/merge", `{"id":"`+id+`"}`)
	assert.Equal(t, "merged", data.Get("outcome").String())
	assert.Equal(t, "Changes merged successfully.", data.Get("message").String())
	assert.Equal(t, "main", gittest.Head(t, ts.root))
	assert.Equal(t, "X", gittest.ReadFile(t, ts.root, "a.txt"))

	msg := ts.fail(t, http.MethodPost, "/api/clood/merge", `{"id":"`+id+`"}`)
	assert.Equal(t, "session not found", msg)

	list = ts.succeed(t, http.MethodGet, "/api/clood/sessions", "")
	assert.Empty(t, list.Array())
}

func TestStartFailures(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{name: "missing prompt", body: `{"files":["a.txt"]}`, msg: `missing required attribute "prompt"`},
		{name: "no files", body: `{"prompt":"p","files":[]}`, msg: `"files"`},
		{name: "malformed", body: `{"prompt":`, msg: "unable to parse request data"},
		{name: "missing file", body: `{"prompt":"p","files":["nope.txt"]}`, msg: "files not found: nope.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, proposaltest.Step{Text: proposaltest.Changed("a.txt", "X")})
			msg := ts.fail(t, http.MethodPost, "/api/clood/start", tt.body)
			assert.Contains(t, msg, tt.msg)
			assert.Equal(t, 0, ts.backend.Calls())
			assert.Equal(t, []string{"main"}, gittest.Branches(t, ts.root))
		})
	}
}

func TestStartCouldNotAnswer(t *testing.T) {
	ts := newTestServer(t, proposaltest.Step{Text: "```json\n{\"answered\": false}\n```"})
	msg := ts.fail(t, http.MethodPost, "/api/clood/start", startBody)
	assert.Contains(t, msg, "could not answer")
	assert.Equal(t, "main", gittest.Head(t, ts.root))
	assert.Equal(t, []string{"main"}, gittest.Branches(t, ts.root))
}

func TestStartUncommittedChanges(t *testing.T) {
	ts := newTestServer(t, proposaltest.Step{Text: proposaltest.Changed("a.txt", "X")})
	gittest.WriteFile(t, ts.root, "b.txt", "dirty")
	msg := ts.fail(t, http.MethodPost, "/api/clood/start", startBody)
	assert.Contains(t, msg, "uncommitted changes found")
	assert.Equal(t, 0, ts.backend.Calls())
}

func TestAdvisorySession(t *testing.T) {
	ts := newTestServer(t, proposaltest.Step{Text: proposaltest.Changed("a.txt", "X")})
	data := ts.succeed(t, http.MethodPost, "/api/clood/start",
		`{"prompt":"change a","files":["a.txt"],"useVersionControl":false}`)
	assert.Equal(t, "", data.Get("newBranch").String())
	assert.Equal(t, "A", gittest.ReadFile(t, ts.root, "a.txt"))

	data = ts.succeed(t, http.MethodPost, "/api/clood/merge", `{"id":"`+data.Get("id").String()+`"}`)
	assert.Equal(t, "closed", data.Get("outcome").String())
}

func TestDiscardAndRevert(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		body    func(id string) string
		outcome string
	}{
		{name: "discard", path: "/api/clood/discard", body: func(id string) string { return `{"id":"` + id + `"}` }, outcome: "discarded"},
		{name: "revert object", path: "/api/clood/revert", body: func(id string) string { return `{"id":"` + id + `"}` }, outcome: "reverted"},
		{name: "revert bare string", path: "/api/clood/revert", body: func(id string) string { return `"` + id + `"` }, outcome: "reverted"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, proposaltest.Step{Text: proposaltest.Changed("a.txt", "X")})
			id := ts.succeed(t, http.MethodPost, "/api/clood/start", startBody).Get("id").String()
			require.Equal(t, "X", gittest.ReadFile(t, ts.root, "a.txt"))

			data := ts.succeed(t, http.MethodPost, tt.path, tt.body(id))
			assert.Equal(t, tt.outcome, data.Get("outcome").String())
			assert.Equal(t, "main", gittest.Head(t, ts.root))
			assert.Equal(t, []string{"main"}, gittest.Branches(t, ts.root))
			assert.Equal(t, "A", gittest.ReadFile(t, ts.root, "a.txt"))
			assert.Empty(t, gittest.Status(t, ts.root))

			msg := ts.fail(t, http.MethodPost, tt.path, tt.body(id))
			assert.Equal(t, "session not found", msg)
		})
	}
}

func TestTerminalRequestValidation(t *testing.T) {
	ts := newTestServer(t)
	for _, path := range []string{"/api/clood/merge", "/api/clood/discard", "/api/clood/revert"} {
		t.Run(path, func(t *testing.T) {
			msg := ts.fail(t, http.MethodPost, path, `{}`)
			assert.Contains(t, msg, `missing required attribute "id"`)
			msg = ts.fail(t, http.MethodPost, path, `{"id":"unknown"}`)
			assert.Equal(t, "session not found", msg)
		})
	}
	msg := ts.fail(t, http.MethodPost, "/api/clood/revert", `""`)
	assert.Contains(t, msg, `missing required attribute "id"`)
}

func TestImprovePrompt(t *testing.T) {
	ts := newTestServer(t, proposaltest.Step{
		Text: "```json\n{\"improvedPrompt\": \"rename a.txt to alpha.txt\", \"answered\": true}\n```",
	})
	data := ts.succeed(t, http.MethodPost, "/api/clood/prompt", `{"prompt":"rename a"}`)
	assert.True(t, data.Get("answered").Bool())
	assert.Equal(t, "rename a.txt to alpha.txt", data.Get("improvedPrompt").String())

	msg := ts.fail(t, http.MethodPost, "/api/clood/prompt", `{}`)
	assert.Contains(t, msg, `missing required attribute "prompt"`)
}

func TestModelErrorIsReported(t *testing.T) {
	ts := newTestServer(t, proposaltest.Step{Err: proposaltest.Overloaded()})
	msg := ts.fail(t, http.MethodPost, "/api/clood/start", startBody)
	assert.NotEmpty(t, msg)
	assert.Equal(t, []string{"main"}, gittest.Branches(t, ts.root))
}

func TestUnroutedRequestsUseEnvelope(t *testing.T) {
	ts := newTestServer(t)
	msg := ts.fail(t, http.MethodGet, "/api/clood/start", "")
	assert.Equal(t, "request method not supported", msg)
	msg = ts.fail(t, http.MethodPost, "/api/clood/rebase", `{}`)
	assert.Equal(t, "unknown endpoint /api/clood/rebase", msg)
}

func TestCORS(t *testing.T) {
	ts := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/clood/start", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := httptest.NewRecorder()
	ts.srv.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/version", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr = httptest.NewRecorder()
	ts.srv.Router.ServeHTTP(rr, req)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t,
		strings.ToLower(rr.Header().Get("Access-Control-Expose-Headers")),
		strings.ToLower(middleware.RequestIDHeader))
}

func TestIsVersionCompatible(t *testing.T) {
	assert.True(t, IsVersionCompatible(ApiVersion))
	assert.True(t, IsVersionCompatible("1.4.2"))
	assert.False(t, IsVersionCompatible("2.0.0"))
	assert.False(t, IsVersionCompatible("0.9.0"))
	assert.False(t, IsVersionCompatible("not-a-version"))
}

func TestCreateNewServerRequiresOrchestrator(t *testing.T) {
	_, err := CreateNewServer(nil)
	assert.Error(t, err)
}
