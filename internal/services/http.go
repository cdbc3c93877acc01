package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// HTTPDoer describes the HTTP client used by the external service clients.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// StatusMarker maps an unsuccessful HTTP status code to a sentinel.
func StatusMarker(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrConfiguration
	case code == http.StatusRequestTimeout, code == http.StatusGatewayTimeout:
		return ErrTimeout
	case code >= http.StatusInternalServerError:
		return ErrTransient
	default:
		return ErrExternalTool
	}
}

// TransportError classifies a failed round trip. Context cancellation is
// returned unchanged so callers can stop promptly.
func TransportError(stage, op string, latency time.Duration, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	marker := ErrTransient
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		marker = ErrTimeout
	}
	return Wrap(marker, stage, op, fmt.Sprintf("Request failed (latency=%v)", latency.Round(time.Millisecond)), err)
}

// StatusError builds the error for a non-2xx response.
func StatusError(stage, op string, code int, latency time.Duration) error {
	return Wrap(StatusMarker(code), stage, op, fmt.Sprintf("Returned HTTP %d (latency=%v)", code, latency.Round(time.Millisecond)), nil)
}
