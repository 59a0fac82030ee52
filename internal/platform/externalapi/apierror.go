// Package externalapi holds what the outbound HTTP clients share.
package externalapi

import (
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of an error response is kept for logs.
const maxErrorBody = 512

// APIError is a non-2xx answer from an external service.
type APIError struct {
	Service    string
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: http %d", e.Service, e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: http %d: %s", e.Service, e.Endpoint, e.StatusCode, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
// Rate limiting and server errors are retryable, other client errors are not.
func (e *APIError) Retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// CheckResponse returns an *APIError when res is not 2xx. The body is consumed in that case.
func CheckResponse(service, endpoint string, res *http.Response) error {
	if res.StatusCode >= 200 && res.StatusCode < 300 {
		return nil
	}
	b, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	return &APIError{
		Service:    service,
		Endpoint:   endpoint,
		StatusCode: res.StatusCode,
		Body:       strings.TrimSpace(string(b)),
	}
}
