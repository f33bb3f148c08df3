package weberr

import "errors"

// Stable machine codes clients can branch on.
const (
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInvalidState     = "INVALID_STATE"
	CodeNotFound         = "NOT_FOUND"
	CodeInvalidSignature = "INVALID_SIGNATURE"
	CodePaymentProvider  = "PAYMENT_PROVIDER"
	CodeSelfPurchase     = "SELF_PURCHASE"
	CodeBadRequest       = "BAD_REQUEST"
	CodeInternal         = "INTERNAL"
)

type coder interface {
	Code() string
}

// Code extracts the machine code attached to an error, if any.
func Code(err error) (code string, ok bool) {
	var ce coder
	if errors.As(err, &ce) {
		return ce.Code(), true
	}
	return "", false
}

type codeError struct {
	error
	code string
}

func (e *codeError) Code() string { return e.code }

func (e *codeError) Unwrap() error { return e.error }

func WithCode(code string) Opt {
	return func(err error) error {
		return &codeError{error: err, code: code}
	}
}
