package server

import (
	"net/http"

	"github.com/tidwall/gjson"

	"github.com/clood-dev/clood/internal/clood/orchestrator"
	"github.com/clood-dev/clood/internal/common/httpx"
)

// StartSessionReq is the body of POST /api/clood/start. UseVersionControl
// defaults to true.
type StartSessionReq struct {
	Prompt            string   `json:"prompt" validate:"required"`
	Files             []string `json:"files" validate:"required,min=1,dive,required"`
	UseVersionControl *bool    `json:"useVersionControl"`
}

// SessionReq identifies a session.
type SessionReq struct {
	ID string `json:"id" validate:"required"`
}

// PromptReq is the body of POST /api/clood/prompt.
type PromptReq struct {
	Prompt string `json:"prompt" validate:"required"`
}

func (s *CloodServer) startSession(r *http.Request) (*httpx.Response, error) {
	req := &StartSessionReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	useVCS := true
	if req.UseVersionControl != nil {
		useVCS = *req.UseVersionControl
	}
	rsp, err := s.orch.Start(r.Context(), orchestrator.StartRequest{
		Prompt:            req.Prompt,
		Files:             req.Files,
		UseVersionControl: useVCS,
	})
	if err != nil {
		return nil, err
	}
	return &httpx.Response{Data: rsp}, nil
}

func (s *CloodServer) mergeSession(r *http.Request) (*httpx.Response, error) {
	req := &SessionReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	rsp, err := s.orch.Merge(r.Context(), req.ID)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{Data: rsp}, nil
}

func (s *CloodServer) discardSession(r *http.Request) (*httpx.Response, error) {
	req := &SessionReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	rsp, err := s.orch.Discard(r.Context(), req.ID)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{Data: rsp}, nil
}

// revertSession accepts either {"id": "..."} or a bare JSON string.
func (s *CloodServer) revertSession(r *http.Request) (*httpx.Response, error) {
	body, err := httpx.ReadRequestBody(r)
	if err != nil {
		return nil, err
	}
	var id string
	if parsed := gjson.ParseBytes(body); parsed.Type == gjson.String {
		if err := httpx.DecodeRequestData(body, &id); err != nil {
			return nil, err
		}
		if id == "" {
			return nil, httpx.ErrInvalidRequest(`missing required attribute "id"`)
		}
	} else {
		req := &SessionReq{}
		if err := httpx.DecodeRequestData(body, req); err != nil {
			return nil, err
		}
		id = req.ID
	}
	rsp, err := s.orch.Revert(r.Context(), id)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{Data: rsp}, nil
}

func (s *CloodServer) improvePrompt(r *http.Request) (*httpx.Response, error) {
	req := &PromptReq{}
	if err := httpx.GetRequestData(r, req); err != nil {
		return nil, err
	}
	rsp, err := s.orch.ImprovePrompt(r.Context(), req.Prompt)
	if err != nil {
		return nil, err
	}
	return &httpx.Response{Data: rsp}, nil
}

func (s *CloodServer) listSessions(r *http.Request) (*httpx.Response, error) {
	return &httpx.Response{Data: s.orch.List()}, nil
}
