package shared

import (
	"context"
	"errors"
	"fmt"
)

// RequestError is used when we want a specific error message and StatusCode.
// It is only produced for failures the transport has to answer itself
// (unreadable bodies, invalid JSON). Domain failures travel inside the
// response envelope instead and never carry a status code.
type RequestError struct {
	StatusCode int
	Err        error
}

func (r *RequestError) Error() string {
	return fmt.Sprintf("status %d: err %v", r.StatusCode, r.Err)
}

func (r *RequestError) Unwrap() error {
	return r.Err
}

var (
	ErrInvalidFormat = &RequestError{Err: errors.New("invalid authentication format"), StatusCode: 401}
	ErrMissingAuth   = &RequestError{Err: errors.New("missing authorization header"), StatusCode: 401}

	ErrInvalidRequest      = &RequestError{Err: errors.New("invalid request body"), StatusCode: 400}
	ErrInternalServerError = &RequestError{Err: errors.New("internal server error"), StatusCode: 500}
)

// Domain errors. The Code is a stable label for metrics and logs, the Msg is
// what ends up in the envelope.
var (
	ErrMissingCredential  = &MetricsError{Msg: "missing credential: " + GoodfireAPIKeyEnv + " is not set", Code: "missing_credential"}
	ErrVariantNotFound    = &MetricsError{Msg: "variant not found", Code: "not_found"}
	ErrMalformedConfig    = &MetricsError{Msg: "malformed variant config", Code: "malformed_config"}
	ErrInvalidVariantName = &MetricsError{Msg: "invalid variant name", Code: "invalid_variant"}
	ErrUpstream           = &MetricsError{Msg: "upstream request failed", Code: "upstream"}
	ErrValidation         = &MetricsError{Msg: "validation failed", Code: "validation"}
)

type MetricsError struct {
	Msg  string
	Code string
}

func (m *MetricsError) Error() string {
	return m.String()
}

func (m *MetricsError) String() string {
	return m.Msg
}

// VariantNotFoundError reports the resolved path of a missing variant file.
type VariantNotFoundError struct {
	Path string
}

func (v *VariantNotFoundError) Error() string {
	return "Variant file not found: " + v.Path
}

func (v *VariantNotFoundError) Unwrap() error {
	return ErrVariantNotFound
}

// UpstreamError carries the vendor's own error text for a non-2xx answer.
type UpstreamError struct {
	StatusCode int
	Message    string
}

func (u *UpstreamError) Error() string {
	return fmt.Sprintf("goodfire: status %d: %s", u.StatusCode, u.Message)
}

func (u *UpstreamError) Unwrap() error {
	return ErrUpstream
}

// ErrorKind maps an error chain onto a metrics label.
func ErrorKind(err error) string {
	if err == nil {
		return "none"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	var merr *MetricsError
	if errors.As(err, &merr) {
		return merr.Code
	}
	return "internal"
}
