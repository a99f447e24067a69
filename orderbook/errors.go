package orderbook

import (
	"errors"
	"fmt"
	"strings"
)

// Typed conditions recovered from the orderbook service's error text.
var (
	// ErrOrderNotActive means the listing is expired, filled or cancelled.
	ErrOrderNotActive = errors.New("orderbook: order is not active")

	// ErrInsufficientBalance means the service refused fulfillment because
	// the taker's balances cannot cover the order.
	ErrInsufficientBalance = errors.New("orderbook: insufficient balance for order")

	// ErrUnavailable means the service could not be reached.
	ErrUnavailable = errors.New("orderbook: service unavailable")

	// ErrNotFound means the requested listing does not exist.
	ErrNotFound = errors.New("orderbook: order not found")
)

// Error message markers emitted by the orderbook service. The service does
// not return machine-readable error codes, so these substrings are the
// integration contract; they are pinned to the service API version the
// client targets and must move in lockstep with it.
const (
	markerNotActive           = "is not active"
	markerInsufficientBalance = "does not have the balances needed"
)

// serviceError is the JSON error body returned by the orderbook service.
type serviceError struct {
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}

// translateServiceError maps a service error message onto the package's
// typed errors. Unrecognized messages pass through verbatim. This is the
// only place free-text sniffing happens; callers match with errors.Is.
func translateServiceError(status int, message string) error {
	switch {
	case strings.Contains(message, markerNotActive):
		return fmt.Errorf("%w: %s", ErrOrderNotActive, message)
	case strings.Contains(message, markerInsufficientBalance):
		return fmt.Errorf("%w: %s", ErrInsufficientBalance, message)
	case status == 404:
		return fmt.Errorf("%w: %s", ErrNotFound, message)
	default:
		return fmt.Errorf("orderbook: status %d: %s", status, message)
	}
}
