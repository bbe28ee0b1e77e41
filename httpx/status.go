package httpx

import "net/http"

const (
	StatusOK                 = http.StatusOK                  // Successful request
	StatusNoContent          = http.StatusNoContent           // Successful with no body
	StatusBadRequest         = http.StatusBadRequest          // Validation or malformed input
	StatusNotFound           = http.StatusNotFound            // Resource not found
	StatusInternalError      = http.StatusInternalServerError // Unexpected server error
	StatusBadGateway         = http.StatusBadGateway          // Upstream answered with an unexpected status
	StatusServiceUnavailable = http.StatusServiceUnavailable  // Dependency failure or maintenance
	StatusGatewayTimeout     = http.StatusGatewayTimeout      // Upstream unreachable or timed out
)
