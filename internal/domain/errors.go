package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures so the HTTP boundary can map them to stable
// status codes without string matching.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindForbidden
	KindInvalidState
	KindUnauthenticated
	KindConflict
)

type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

func WrapError(kind ErrorKind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func kindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return 0
}

func IsValidation(err error) bool      { return kindOf(err) == KindValidation }
func IsNotFound(err error) bool        { return kindOf(err) == KindNotFound }
func IsForbidden(err error) bool       { return kindOf(err) == KindForbidden }
func IsInvalidState(err error) bool    { return kindOf(err) == KindInvalidState }
func IsUnauthenticated(err error) bool { return kindOf(err) == KindUnauthenticated }
func IsConflict(err error) bool        { return kindOf(err) == KindConflict }
