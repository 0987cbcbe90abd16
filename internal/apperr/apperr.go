// Package apperr defines the single tagged error type shared by the store,
// the remote client and the HTTP boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap/zapcore"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindInvalidTransition Kind = "invalid_transition"
	KindConfiguration     Kind = "configuration"
	KindTransport         Kind = "transport"
	KindProtocol          Kind = "protocol"
	KindTimeout           Kind = "timeout"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrConfiguration     = &Error{Kind: KindConfiguration}
	ErrTransport         = &Error{Kind: KindTransport}
	ErrProtocol          = &Error{Kind: KindProtocol}
	ErrTimeout           = &Error{Kind: KindTimeout}
)

// BodyUnavailable replaces a response body that could not be read or decoded.
const BodyUnavailable = "body unavailable"

// ProtocolDetail is the diagnostic payload of a non-2xx remote response.
type ProtocolDetail struct {
	Status       int         `json:"status"`
	StatusText   string      `json:"status_text"`
	URL          string      `json:"url"`
	RequestBody  string      `json:"request_body,omitempty"`
	ResponseBody any         `json:"response_body"`
	Headers      http.Header `json:"headers,omitempty"`
	Timestamp    time.Time   `json:"timestamp"`
}

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error

	Protocol *ProtocolDetail
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 4)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	parts = append(parts, string(e.Kind))
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports a match against a bare sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	if t.Op != "" || t.Message != "" || t.Err != nil || t.Protocol != nil {
		return e == t
	}
	return e.Kind == t.Kind
}

func (e *Error) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("kind", string(e.Kind))
	if e.Op != "" {
		enc.AddString("op", e.Op)
	}
	if e.Message != "" {
		enc.AddString("message", e.Message)
	}
	if e.Err != nil {
		enc.AddString("cause", e.Err.Error())
	}
	if p := e.Protocol; p != nil {
		enc.AddInt("status", p.Status)
		enc.AddString("status_text", p.StatusText)
		enc.AddString("url", p.URL)
		if p.RequestBody != "" {
			enc.AddString("request_body", p.RequestBody)
		}
		if err := enc.AddReflected("response_body", p.ResponseBody); err != nil {
			return err
		}
		if len(p.Headers) > 0 {
			if err := enc.AddReflected("headers", p.Headers); err != nil {
				return err
			}
		}
		enc.AddTime("timestamp", p.Timestamp)
	}
	return nil
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// As is a shorthand for errors.As into *Error.
func As(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFound(op, id string) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf("opportunity %q not found", id)}
}

func InvalidTransition(op, format string, args ...any) *Error {
	return &Error{Kind: KindInvalidTransition, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Configuration(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Transport(op string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, Message: "request failed", Err: err}
}

func Timeout(op string, budget time.Duration, err error) *Error {
	return &Error{Kind: KindTimeout, Op: op, Message: fmt.Sprintf("no response within %s", budget), Err: err}
}

func Protocol(op string, detail ProtocolDetail) *Error {
	return &Error{
		Kind:     KindProtocol,
		Op:       op,
		Message:  fmt.Sprintf("remote returned %d %s", detail.Status, detail.StatusText),
		Protocol: &detail,
	}
}
