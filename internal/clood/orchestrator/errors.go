package orchestrator

import (
	"net/http"

	"github.com/clood-dev/clood/internal/common/apperrors"
)

var (
	ErrSessionBase        apperrors.Error = apperrors.New("session operation failed").SetStatusCode(http.StatusInternalServerError)
	ErrInvalidRequest     apperrors.Error = ErrSessionBase.New("invalid request").SetStatusCode(http.StatusBadRequest).SetExpected(true)
	ErrMissingFiles       apperrors.Error = ErrSessionBase.New("files not found").SetStatusCode(http.StatusBadRequest).SetExpected(true)
	ErrUncommittedChanges apperrors.Error = ErrSessionBase.New("uncommitted changes found").SetStatusCode(http.StatusConflict).SetExpected(true)
	ErrCouldNotAnswer     apperrors.Error = ErrSessionBase.New("could not answer").SetStatusCode(http.StatusUnprocessableEntity).SetExpected(true)
	ErrSessionNotFound    apperrors.Error = ErrSessionBase.New("session not found").SetStatusCode(http.StatusNotFound).SetExpected(true)
	ErrSessionCollision   apperrors.Error = ErrSessionBase.New("session id already in use").SetStatusCode(http.StatusConflict)
	ErrApplyChanges       apperrors.Error = ErrSessionBase.New("unable to apply changes")
	ErrNewFileExists      apperrors.Error = ErrApplyChanges.New("new file already exists").SetStatusCode(http.StatusConflict)
)
