package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/clood-dev/clood/internal/common/apperrors"
	"github.com/clood-dev/clood/internal/common/logtrace"
	"github.com/rs/zerolog/log"
)

// Envelope is the body of every API response. Data is null on failure and
// ErrorMessage is null on success.
type Envelope struct {
	Success      bool    `json:"success"`
	Data         any     `json:"data"`
	ErrorMessage *string `json:"errorMessage"`
}

// SendJsonRsp sends a JSON response with the given status code and message.
// Pre-marshaled JSON passed as a string or []byte is written unchanged.
func SendJsonRsp(ctx context.Context, w http.ResponseWriter, statusCode int, msg any) {
	var msgJson []byte
	switch m := msg.(type) {
	case string:
		if json.Valid([]byte(m)) {
			msgJson = []byte(m)
		}
	case []byte:
		if json.Valid(m) {
			msgJson = m
		}
	default:
		var err error
		msgJson, err = json.Marshal(msg)
		if err != nil {
			log.Ctx(ctx).Err(err).Msg("unable to marshal json")
			ErrApplicationError("unable to encode response, id: " + logtrace.RequestIdFromContext(ctx)).Send(w)
			return
		}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(msgJson)
}

// SendFailure logs err and writes it as a failed envelope. Errors flagged as
// expected are logged at info level; everything else at error level.
func SendFailure(ctx context.Context, w http.ResponseWriter, err error) {
	msg := ErrorMessage(err)
	ev := log.Ctx(ctx).Error()
	if apperrors.IsExpected(err) {
		ev = log.Ctx(ctx).Info()
	}
	ev.Str("error", msg).Int("status", StatusCode(err)).Msg("request failed")
	writeEnvelope(w, Envelope{Success: false, ErrorMessage: &msg})
}

// ErrorMessage renders err for the envelope, including attached causes of
// application errors.
func ErrorMessage(err error) string {
	var httpErr *Error
	if errors.As(err, &httpErr) {
		return httpErr.Description
	}
	var appErr apperrors.Error
	if errors.As(err, &appErr) {
		return appErr.ErrorAll()
	}
	return err.Error()
}

// StatusCode returns the status code associated with err, defaulting to 500.
// It is reported in logs only; the envelope is always sent with HTTP 200.
func StatusCode(err error) int {
	var httpErr *Error
	if errors.As(err, &httpErr) && httpErr.StatusCode != 0 {
		return httpErr.StatusCode
	}
	var appErr apperrors.Error
	if errors.As(err, &appErr) && appErr.StatusCode() != 0 {
		return appErr.StatusCode()
	}
	return http.StatusInternalServerError
}

func writeEnvelope(w http.ResponseWriter, env Envelope) {
	b, err := json.Marshal(env)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("unable to encode response"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(b)
}
