package apperrors

import (
	"errors"
	"strings"
)

type appError struct {
	msg        string
	base       error   // parent sentinel, used by errors.Is
	causes     []error // attached errors, reported by ErrorAll
	statuscode int
	expected   bool
}

func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by the messages of every attached
// cause that is not itself part of the sentinel chain.
func (e *appError) ErrorAll() string {
	var b strings.Builder
	b.WriteString(e.msg)
	for _, err := range e.causes {
		if err == nil {
			continue
		}
		if _, ok := err.(*appError); ok && errors.Is(e.base, err) {
			continue
		}
		m := err.Error()
		if m == "" || m == e.msg {
			continue
		}
		b.WriteString(": ")
		b.WriteString(m)
	}
	return b.String()
}

func (e *appError) Unwrap() error {
	return e.base
}

func (e *appError) UnwrapAll() []error {
	return e.causes
}

// As lets errors.As reach typed causes attached through Err and MsgErr,
// which Unwrap alone does not expose.
func (e *appError) As(target any) bool {
	for _, err := range e.causes {
		if err == nil || err == e {
			continue
		}
		if errors.As(err, target) {
			return true
		}
	}
	return false
}

func (e *appError) derive(msg string, causes []error) *appError {
	return &appError{
		msg:        msg,
		base:       e,
		causes:     causes,
		statuscode: e.statuscode,
		expected:   e.expected,
	}
}

func (e *appError) New(msg string) Error {
	return e.derive(msg, nil)
}

func (e *appError) Msg(msg string) Error {
	return e.derive(msg, append([]error{e}, e.causes...))
}

func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, append([]error{e}, errs...))
}

func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, append([]error{e}, errs...))
}

func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

func (e *appError) StatusCode() int {
	return e.statuscode
}

func (e *appError) SetExpected(flag bool) Error {
	cp := *e
	cp.expected = flag
	return &cp
}

func (e *appError) Expected() bool {
	return e.expected
}

// Is matches the target against the sentinel chain and every attached cause.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.causes {
		if err == e {
			continue
		}
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// New creates a root-level error with the given message.
func New(msg string) Error {
	return &appError{msg: msg}
}

// IsExpected reports whether err, or any apperrors.Error in its chain, is
// flagged as an anticipated outcome.
func IsExpected(err error) bool {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.Expected()
	}
	return false
}
