package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clood-dev/clood/internal/common/httpx"
)

// ResponseHandlerParam describes one API route.
type ResponseHandlerParam struct {
	Method  string
	Path    string
	Handler httpx.RequestHandler
}

func (s *CloodServer) apiHandlers() []ResponseHandlerParam {
	return []ResponseHandlerParam{
		{Method: http.MethodPost, Path: "/start", Handler: s.startSession},
		{Method: http.MethodPost, Path: "/merge", Handler: s.mergeSession},
		{Method: http.MethodPost, Path: "/discard", Handler: s.discardSession},
		{Method: http.MethodPost, Path: "/revert", Handler: s.revertSession},
		{Method: http.MethodPost, Path: "/prompt", Handler: s.improvePrompt},
		{Method: http.MethodGet, Path: "/sessions", Handler: s.listSessions},
	}
}

func (s *CloodServer) apiRouter(r chi.Router) {
	for _, handler := range s.apiHandlers() {
		r.Method(handler.Method, handler.Path, httpx.WrapHttpRsp(handler.Handler))
	}
}
