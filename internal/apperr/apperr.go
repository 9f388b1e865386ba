// Package apperr defines the error taxonomy shared by the billing core and
// the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of an error.
type Kind string

const (
	KindConfig     Kind = "config"
	KindAuth       Kind = "auth"
	KindTenantLink Kind = "tenant_link"
	KindValidation Kind = "validation"
	KindNotFound   Kind = "not_found"
	KindUpstream   Kind = "upstream"
	KindInternal   Kind = "internal"
)

// Error carries a user-facing message and a machine-checkable code.
// Detail is optional diagnostic text (e.g. the gateway's own error description).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Detail  string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

func Wrap(kind Kind, code, message string, err error) *Error {
	e := &Error{Kind: kind, Code: code, Message: message, Err: err}
	if err != nil {
		e.Detail = err.Error()
	}
	return e
}

func Validation(code, message string) *Error {
	return New(KindValidation, code, message)
}

func NotFound(code, message string) *Error {
	return New(KindNotFound, code, message)
}

func Auth(code, message string) *Error {
	return New(KindAuth, code, message)
}

func Internal(message string, err error) *Error {
	return Wrap(KindInternal, "internal_error", message, err)
}

// ConfigMissing reports a required secret or setting that is not configured.
func ConfigMissing(key string) *Error {
	return &Error{
		Kind:    KindConfig,
		Code:    "config_missing",
		Message: fmt.Sprintf("%s not configured", key),
		Detail:  key,
	}
}

// Upstream wraps a payment gateway failure, keeping the provider's message as detail.
func Upstream(message string, err error) *Error {
	return Wrap(KindUpstream, "upstream_error", message, err)
}

// As extracts an *Error from err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the code of err, or "" for foreign errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return ""
}

// HTTPStatus maps a kind onto a response status.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindConfig:
		return http.StatusInternalServerError
	case KindAuth:
		return http.StatusUnauthorized
	case KindTenantLink:
		return http.StatusConflict
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
