// Package apperrors provides the error type used across clood. Errors carry a
// message, an optional chain of wrapped causes, an HTTP-ish status code and an
// "expected" flag that marks outcomes the caller anticipates (a session that
// was already terminated, a model that declined to answer) so they can be
// reported to users without being logged as system faults.
package apperrors

// Error defines the interface for application errors. All builder methods
// return a new Error and leave the receiver untouched so package-level
// sentinels can be derived from safely.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // new error using current as template
	Msg(msg string) Error                  // new message, wraps the current error
	MsgErr(msg string, err ...error) Error // new message, wraps current plus extra causes
	Err(err ...error) Error                // same message, attaches causes
	SetStatusCode(int) Error               // status code used by the transport layer
	StatusCode() int                       // current status code
	SetExpected(bool) Error                // marks the error as an anticipated outcome
	Expected() bool                        // reports whether the error is anticipated
	ErrorAll() string                      // message followed by every attached cause
	UnwrapAll() []error                    // attached causes in order
}
