package digest

import (
	"errors"
	"fmt"
)

// Code classifies engine errors.
type Code string

const (
	CodeNotFound         Code = "NOT_FOUND"
	CodeInvalidSentiment Code = "INVALID_SENTIMENT"
	CodeInvalidInput     Code = "INVALID_INPUT"
)

// Error is returned by every failing engine operation. Two errors match
// under errors.Is when their codes are equal.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Code so wrapped instances compare equal to the sentinels.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

var (
	ErrNotFound         = &Error{Code: CodeNotFound, Message: "article not found"}
	ErrInvalidSentiment = &Error{Code: CodeInvalidSentiment, Message: "invalid sentiment"}
	ErrInvalidInput     = &Error{Code: CodeInvalidInput, Message: "invalid input"}
)

func notFound(id string) error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf("article %q not found", id)}
}

func invalidSentiment(v string) error {
	return &Error{Code: CodeInvalidSentiment, Message: fmt.Sprintf("sentiment %q is not one of positive, neutral, negative", v)}
}

func invalidInput(msg string) error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

// CodeOf extracts the engine code from err, or "" when err is not an *Error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
