package clickup

import (
	"errors"
	"fmt"
	"net/http"
)

// APIError is any non-2xx response from the remote service.
type APIError struct {
	Status   int
	Endpoint string
	Body     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("clickup api error (%d) on %s: %s", e.Status, e.Endpoint, e.Body)
}

// IsRateLimited reports whether err is an HTTP 429 from the remote service.
// Rate limits are recoverable: the pacing policy owns the cooldown and the
// orchestrator moves on to the next item.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusTooManyRequests
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// IsSchemaRejection reports whether the remote service rejected a request
// body it considers malformed, typically a status template the workspace
// schema does not allow.
func IsSchemaRejection(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) &&
		(apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnprocessableEntity)
}
