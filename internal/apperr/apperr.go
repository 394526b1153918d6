// Package apperr defines the domain error taxonomy shared by the auth and
// file services and the HTTP layer. Every client-visible failure carries a
// stable type tag that ends up in the response envelope's errorType field.
package apperr

import (
	"errors"
	"net/http"
)

type Type string

const (
	TypeValidation          Type = "VALIDATION_ERROR"
	TypeUserAlreadyExists   Type = "USER_ALREADY_EXISTS"
	TypeUserNotFound        Type = "USER_NOT_FOUND"
	TypeInvalidCredentials  Type = "INVALID_CREDENTIALS"
	TypeTokenInvalid        Type = "TOKEN_INVALID"
	TypeTokenExpired        Type = "TOKEN_EXPIRED"
	TypeSubjectMismatch     Type = "SUBJECT_MISMATCH"
	TypeEmptyFile           Type = "EMPTY_FILE"
	TypeInvalidFileName     Type = "INVALID_FILE_NAME"
	TypeExtensionNotAllowed Type = "EXTENSION_NOT_ALLOWED"
	TypeNotFound            Type = "NOT_FOUND"
	TypePermissionDenied    Type = "PERMISSION_DENIED"
	TypeInternal            Type = "INTERNAL_ERROR"
)

type Error struct {
	Type    Type
	Message string
	// ValidationErrors holds per-field messages for TypeValidation.
	ValidationErrors []string
}

func (e *Error) Error() string {
	return e.Message
}

func New(t Type, message string) *Error {
	return &Error{Type: t, Message: message}
}

func Validation(message string, fieldErrors []string) *Error {
	return &Error{Type: TypeValidation, Message: message, ValidationErrors: fieldErrors}
}

// As extracts an *Error from err, if it is one.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HTTPStatus maps a taxonomy type to the status code the handlers reply with.
func HTTPStatus(t Type) int {
	switch t {
	case TypeValidation, TypeEmptyFile, TypeInvalidFileName, TypeExtensionNotAllowed:
		return http.StatusBadRequest
	case TypeUserAlreadyExists:
		return http.StatusConflict
	case TypeUserNotFound, TypeNotFound:
		return http.StatusNotFound
	case TypeInvalidCredentials, TypeTokenInvalid, TypeTokenExpired, TypeSubjectMismatch:
		return http.StatusUnauthorized
	case TypePermissionDenied:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}
