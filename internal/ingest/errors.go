package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"echovia/internal/media"
)

// Category classifies why an ingest failed
type Category string

const (
	CategoryConversionFailed Category = "conversion_failed"
	CategoryTimeout          Category = "timeout"
	CategoryTooLarge         Category = "too_large"
	CategoryNetwork          Category = "network"
	CategoryInvalidInput     Category = "invalid_input"
)

// HTTPStatus maps a category to the status the API answers with
func (c Category) HTTPStatus() int {
	switch c {
	case CategoryConversionFailed, CategoryInvalidInput:
		return http.StatusBadRequest
	case CategoryTimeout:
		return http.StatusGatewayTimeout
	case CategoryTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusBadGateway
	}
}

// Error is an ingest failure with its category
type Error struct {
	Category Category
	Message  string
	Err      error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(c Category, msg string, err error) *Error {
	return &Error{Category: c, Message: msg, Err: err}
}

// CategoryOf returns the category of err, or network for foreign errors
func CategoryOf(err error) Category {
	var ie *Error
	if errors.As(err, &ie) {
		return ie.Category
	}
	return classify(err)
}

// classify maps transport errors onto categories
func classify(err error) Category {
	var ne net.Error
	switch {
	case errors.Is(err, media.ErrTooLarge):
		return CategoryTooLarge
	case errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &ne) && ne.Timeout():
		return CategoryTimeout
	default:
		return CategoryNetwork
	}
}

// wrap tags a transport error with its category unless it already has one
func wrap(msg string, err error) error {
	var ie *Error
	if errors.As(err, &ie) {
		return err
	}
	return newError(classify(err), msg, err)
}
