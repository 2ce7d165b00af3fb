package proposal

import (
	"net/http"

	"github.com/clood-dev/clood/internal/common/apperrors"
)

var (
	ErrProposalBase      apperrors.Error = apperrors.New("unable to obtain change proposal").SetStatusCode(http.StatusBadGateway)
	ErrModelRequest      apperrors.Error = ErrProposalBase.New("model request failed")
	ErrModelOverloaded   apperrors.Error = ErrProposalBase.New("model is overloaded, try again later").SetStatusCode(http.StatusServiceUnavailable)
	ErrContinuationLimit apperrors.Error = ErrProposalBase.New("model response exceeded the continuation limit")
	ErrEmptyResponse     apperrors.Error = ErrProposalBase.New("received empty response from model")
	ErrReadFile          apperrors.Error = ErrProposalBase.New("unable to read file").SetStatusCode(http.StatusBadRequest)
	ErrManifest          apperrors.Error = ErrProposalBase.New("unable to build project manifest").SetStatusCode(http.StatusInternalServerError)
	ErrBackendConfig     apperrors.Error = ErrProposalBase.New("invalid model backend configuration").SetStatusCode(http.StatusInternalServerError)
)

// ParseFailure is returned when the model answered but its response could
// not be turned into a change set.
type ParseFailure struct {
	Reason string
}

func (p *ParseFailure) Error() string {
	return "unable to parse model response: " + p.Reason
}

func parseFailure(reason string) *ParseFailure {
	return &ParseFailure{Reason: reason}
}

// OverloadError is reported by a backend when the provider signals that it
// is temporarily overloaded. Only these errors are retried.
type OverloadError struct {
	Backend    string
	StatusCode int
	Err        error
}

func (e *OverloadError) Error() string {
	return e.Backend + " is overloaded: " + e.Err.Error()
}

func (e *OverloadError) Unwrap() error {
	return e.Err
}
