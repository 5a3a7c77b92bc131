package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service failures so controllers can pick a status code
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindBadRequest
	KindNotFound
	KindForbidden
	KindUnauthorized
	KindConflict
	KindInvalidOTP
	KindUpstream
)

// Error is returned by every service operation that fails for a known reason
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

func badRequest(msg string) *Error   { return newError(KindBadRequest, msg, nil) }
func notFound(msg string) *Error     { return newError(KindNotFound, msg, nil) }
func forbidden(msg string) *Error    { return newError(KindForbidden, msg, nil) }
func unauthorized(msg string) *Error { return newError(KindUnauthorized, msg, nil) }
func conflict(msg string) *Error     { return newError(KindConflict, msg, nil) }
func invalidOTP(msg string) *Error   { return newError(KindInvalidOTP, msg, nil) }

func internal(msg string, err error) *Error { return newError(KindInternal, msg, err) }
func upstream(msg string, err error) *Error { return newError(KindUpstream, msg, err) }

// KindOf returns the kind of err, KindInternal when err is not a service error
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return KindInternal
}
