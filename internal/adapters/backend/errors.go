package backend

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("not found")

// APIError es cualquier respuesta no exitosa del backend ({code, message}).
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("backend api status %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("backend api status %d: %s", e.Status, e.Message)
}

// Is permite errors.Is(err, ErrNotFound) sobre un 404.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}

// transitorio = red o 5xx; sólo esos se reintentan
func isTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500
	}
	var tErr *transportError
	return errors.As(err, &tErr)
}

type transportError struct{ err error }

func (e *transportError) Error() string { return "backend http: " + e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }
