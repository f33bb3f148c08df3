package weberr

import (
	"net/http"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type RequestError struct {
	Err error
}

func (r *RequestError) Error() string { return r.Err.Error() }

func (e *RequestError) Unwrap() error { return e.Err }

func NewError(err error, msg string, status int, opts ...Opt) error {
	e := &RequestError{Err: err}
	opts = append(opts, WithResponse(
		&ErrorResponse{Error: msg},
		status,
	))

	return Wrap(e, opts...)
}

// NewCodedError builds a response-mapped error carrying a stable machine
// code in both the error chain and the rendered body.
func NewCodedError(err error, msg string, status int, code string, opts ...Opt) error {
	e := &RequestError{Err: err}
	opts = append(opts,
		WithResponse(&ErrorResponse{Error: msg, Code: code}, status),
		WithCode(code),
	)

	return Wrap(e, opts...)
}

func NotFound(err error, opts ...Opt) error {
	return NewCodedError(
		err,
		"the resource could not be found",
		http.StatusNotFound,
		CodeNotFound,
		opts...,
	)
}

func NotAuthorized(err error, opts ...Opt) error {
	return NewCodedError(
		err,
		"not authorized to access resource",
		http.StatusUnauthorized,
		CodeUnauthorized,
		opts...,
	)
}

func InternalError(err error, opts ...Opt) error {
	return NewCodedError(
		err,
		"the server encountered a problem and could not process your request",
		http.StatusInternalServerError,
		CodeInternal,
		opts...,
	)
}

func BadRequest(err error, opts ...Opt) error {
	return NewCodedError(
		err,
		"bad request",
		http.StatusBadRequest,
		CodeBadRequest,
		opts...,
	)
}

// InvalidState reports an action not permitted by the resource's current
// status. Deterministic: callers should not retry.
func InvalidState(err error, opts ...Opt) error {
	return NewCodedError(
		err,
		"action not valid in the current state",
		http.StatusConflict,
		CodeInvalidState,
		opts...,
	)
}

// PaymentProvider reports a failed call to the external payment processor.
// Potentially transient: callers may retry the whole operation.
func PaymentProvider(err error, opts ...Opt) error {
	return NewCodedError(
		err,
		"the payment provider could not process the request",
		http.StatusBadGateway,
		CodePaymentProvider,
		opts...,
	)
}
