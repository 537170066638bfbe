package gcal

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"google.golang.org/api/googleapi"
)

// Category classifies a backend failure so callers can branch on the kind of
// failure instead of matching prose.
type Category string

const (
	CategoryAuth        Category = "auth"
	CategoryNotFound    Category = "not_found"
	CategoryValidation  Category = "validation"
	CategoryUnavailable Category = "unavailable"
	CategoryUnknown     Category = "unknown"
)

// Error wraps a Google Calendar failure with its category and the operation
// that produced it.
type Error struct {
	Op       string
	Category Category
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("gcal: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CategoryOf returns the category of err, or CategoryUnknown when err does not
// carry one.
func CategoryOf(err error) Category {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Category
	}
	return CategoryUnknown
}

// classify maps a raw client error onto an *Error with a category derived
// from the HTTP status when one is available.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	cat := CategoryUnknown
	var gErr *googleapi.Error
	var netErr net.Error
	switch {
	case errors.As(err, &gErr):
		switch {
		case gErr.Code == http.StatusUnauthorized || gErr.Code == http.StatusForbidden:
			cat = CategoryAuth
		case gErr.Code == http.StatusNotFound || gErr.Code == http.StatusGone:
			cat = CategoryNotFound
		case gErr.Code == http.StatusBadRequest || gErr.Code == http.StatusUnprocessableEntity:
			cat = CategoryValidation
		case gErr.Code >= 500:
			cat = CategoryUnavailable
		}
	case errors.As(err, &netErr), errors.Is(err, context.DeadlineExceeded):
		cat = CategoryUnavailable
	}

	return &Error{Op: op, Category: cat, Err: err}
}

// authError builds an auth-category error for failures before any request is
// made (missing credentials, no token).
func authError(op string, err error) error {
	return &Error{Op: op, Category: CategoryAuth, Err: err}
}

// validationError builds a validation-category error for input rejected
// before reaching the backend.
func validationError(op, msg string) error {
	return &Error{Op: op, Category: CategoryValidation, Err: errors.New(msg)}
}
