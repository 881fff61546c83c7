package stt

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is a non-2xx answer from the API.
type APIError struct {
	Op         string
	StatusCode int
	// Detail is the server's human-readable message, if it sent one.
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (HTTP %d)", e.Op, e.Detail, e.StatusCode)
	}

	return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.StatusCode, http.StatusText(e.StatusCode))
}

// Message returns the text suitable for a user notification.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}

	return http.StatusText(e.StatusCode)
}

// TransportError means the request never produced an HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport reports whether err is a transport level failure.
func IsTransport(err error) bool {
	var te *TransportError

	return errors.As(err, &te)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool {
	var ae *APIError

	return errors.As(err, &ae) && ae.StatusCode == http.StatusNotFound
}

// UserMessage extracts a short message from an API or transport error.
func UserMessage(err error) string {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae.Message()
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Err.Error()
	}

	return err.Error()
}
