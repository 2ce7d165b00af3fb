// Package httpx provides the request decoding and response envelope used by
// every clood endpoint. All API responses are HTTP 200 with a JSON envelope
// carrying a success flag, a payload and an error message.
package httpx

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"
	"github.com/rs/zerolog/log"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MaxRequestBodySize bounds the number of bytes read from a request body.
const MaxRequestBodySize int64 = 8 << 20

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// V returns the shared request validator. Field names in validation errors
// use the json tag of the field.
func V() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
			if name == "-" || name == "" {
				return f.Name
			}
			return name
		})
	})
	return validate
}

// ReadRequestBody reads the full request body, up to MaxRequestBodySize.
// Only POST and PUT requests carry a body.
func ReadRequestBody(r *http.Request) ([]byte, error) {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return nil, ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return nil, ErrUnableToParseReqData()
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, ErrUnableToReadRequest()
	}
	if int64(len(body)) > MaxRequestBodySize {
		return nil, ErrRequestTooLarge(MaxRequestBodySize)
	}
	return body, nil
}

// DecodeRequestData unmarshals body into data and, when data is a struct,
// validates it against its `validate` tags.
func DecodeRequestData(body []byte, data any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return ErrUnableToParseReqData()
	}
	if err := json.Unmarshal(body, data); err != nil {
		return ErrUnableToParseReqData()
	}
	if reflect.Indirect(reflect.ValueOf(data)).Kind() != reflect.Struct {
		return nil
	}
	if err := V().Struct(data); err != nil {
		return validationError(err)
	}
	return nil
}

// GetRequestData parses and validates the JSON request body into data.
func GetRequestData(r *http.Request, data any) error {
	body, err := ReadRequestBody(r)
	if err != nil {
		return err
	}
	return DecodeRequestData(body, data)
}

func validationError(err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return ErrInvalidRequest()
	}
	msgs := make([]string, 0, len(ve))
	for _, e := range ve {
		switch e.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("missing required attribute %q", e.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("invalid value for %q (%s)", e.Field(), e.Tag()))
		}
	}
	return ErrInvalidRequest(strings.Join(msgs, "; "))
}

// Response is the successful result of a RequestHandler. Data is placed in the
// envelope unless Plain is set, in which case it is written as bare JSON.
type Response struct {
	Data  any
	Plain bool
}

// RequestHandler defines a function type for handling HTTP requests.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler to an http.HandlerFunc, wrapping the
// result or the error in the response envelope.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			SendFailure(r.Context(), w, err)
			return
		}
		if rsp == nil {
			rsp = &Response{}
		}
		if rsp.Plain {
			SendJsonRsp(r.Context(), w, http.StatusOK, rsp.Data)
			return
		}
		SendJsonRsp(r.Context(), w, http.StatusOK, Envelope{Success: true, Data: rsp.Data})
	})
}
