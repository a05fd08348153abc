// Package apperr defines the error taxonomy surfaced to API callers. Every
// failure carries a stable Code; HTTP status is derived from the code.
package apperr

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/ovaphlow/pitchfork/service-audit-go/internal/storage"
	"github.com/ovaphlow/pitchfork/service-audit-go/pkg/httputil"
)

type Code string

const (
	CodeValidation         Code = "validation_error"
	CodeInvalidCredentials Code = "invalid_credentials"
	CodeUnauthorized       Code = "unauthorized"
	CodeTokenExpired       Code = "token_expired"
	CodeTokenInvalid       Code = "token_invalid"
	CodeUnknownActor       Code = "unknown_actor"
	CodeNotFound           Code = "not_found"
	CodeNotAcceptable      Code = "not_acceptable"
	CodeStorageUnavailable Code = "storage_unavailable"
	CodeInternal           Code = "internal"
)

// Error is a classified failure. Fields holds per-field messages for
// validation errors.
type Error struct {
	Code    Code
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same code, so sentinels work with errors.Is
// even after wrapping a cause.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

func New(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

// Wrap classifies cause under code.
func Wrap(code Code, msg string, cause error) *Error {
	return &Error{Code: code, Message: msg, Err: cause}
}

var (
	ErrInvalidCredentials = New(CodeInvalidCredentials, "invalid credentials")
	ErrUnauthorized       = New(CodeUnauthorized, "Unauthorized")
	ErrTokenExpired       = New(CodeTokenExpired, "token has expired")
	ErrTokenInvalid       = New(CodeTokenInvalid, "token is invalid")
	ErrUnknownActor       = New(CodeUnknownActor, "actor does not exist")
	ErrNotFound           = New(CodeNotFound, "resource not found")
	ErrNotAcceptable      = New(CodeNotAcceptable, "Only JSON requests are allowed.")
	ErrStorageUnavailable = New(CodeStorageUnavailable, "storage unavailable")
)

// Validation builds a validation error from field messages.
func Validation(fields map[string]string) *Error {
	return &Error{Code: CodeValidation, Message: "The given data was invalid.", Fields: fields}
}

// InvalidBody reports a request body that does not decode as the expected
// JSON object.
func InvalidBody(err error) *Error {
	e := Validation(map[string]string{"body": "must be a valid JSON object"})
	e.Err = err
	return e
}

// FromValidation converts ozzo-validation errors into a validation Error.
// Non-validation errors (rule internals) are classified as internal.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for k, v := range verrs {
			if v != nil {
				fields[k] = v.Error()
			}
		}
		return Validation(fields)
	}
	return Wrap(CodeInternal, "validation failed", err)
}

// FromStorage classifies a store error. Uniqueness conflicts are left to the
// caller, which knows which field collided.
func FromStorage(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrNotFound):
		return Wrap(CodeNotFound, ErrNotFound.Message, err)
	case errors.Is(err, storage.ErrForeignKey):
		return Wrap(CodeUnknownActor, ErrUnknownActor.Message, err)
	case errors.Is(err, storage.ErrUnavailable):
		return Wrap(CodeStorageUnavailable, ErrStorageUnavailable.Message, err)
	}
	return Wrap(CodeInternal, "storage failure", err)
}

// CodeOf returns the classification of err, or CodeInternal when err is not
// an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Status maps a code to its HTTP status.
func Status(code Code) int {
	switch code {
	case CodeValidation, CodeUnknownActor:
		return http.StatusUnprocessableEntity
	case CodeInvalidCredentials, CodeUnauthorized, CodeTokenExpired, CodeTokenInvalid:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeNotAcceptable:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

// Write renders err as a structured response. Internal details are never
// exposed; storage and unclassified failures render as a generic server error.
func Write(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		httputil.WriteError(w, http.StatusInternalServerError, httputil.ErrorBody{
			Code:    string(CodeInternal),
			Message: "Internal Server Error",
		})
		return
	}
	body := httputil.ErrorBody{Code: string(e.Code), Message: e.Message, Errors: e.Fields}
	if e.Code == CodeInternal {
		body.Message = "Internal Server Error"
	}
	httputil.WriteError(w, Status(e.Code), body)
}
