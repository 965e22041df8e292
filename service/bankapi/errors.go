package bankapi

import (
	"errors"
	"fmt"
)

// NetworkError is returned when the bank API could not be reached or answered
// with a non-2xx status.
type NetworkError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", e.Method, e.Path, e.Err)
	}
	if e.Body != "" {
		return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func IsNetwork(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr)
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.StatusCode
	}
	return 0
}

// Describe returns the part of err worth showing to a person: the bank's own
// answer when there is one, else the status, else the error text.
func Describe(err error) string {
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		switch {
		case netErr.Body != "":
			return netErr.Body
		case netErr.StatusCode != 0:
			return fmt.Sprintf("HTTP %d", netErr.StatusCode)
		}
	}
	return err.Error()
}
