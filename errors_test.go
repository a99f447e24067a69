package checkout

import (
	"errors"
	"strings"
	"testing"
)

func TestCheckoutErrorMessage(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := NewCheckoutError(ErrCodeGetBalance, "failed to read balance", cause)

	msg := err.Error()
	if !strings.Contains(msg, "GET_BALANCE_ERROR") {
		t.Errorf("message missing code: %s", msg)
	}
	if !strings.Contains(msg, "failed to read balance") {
		t.Errorf("message missing description: %s", msg)
	}
	if !strings.Contains(msg, "rpc timeout") {
		t.Errorf("message missing cause: %s", msg)
	}
}

func TestCheckoutErrorMessageWithoutCause(t *testing.T) {
	err := NewCheckoutError(ErrCodeUnsupportedItem, "unknown item type", nil)
	if strings.Contains(err.Error(), "<nil>") {
		t.Errorf("nil cause leaked into message: %s", err.Error())
	}
}

func TestCheckoutErrorUnwrap(t *testing.T) {
	err := NewCheckoutError(ErrCodeOrderExpired, "listing inactive", ErrOrderExpired)

	if !errors.Is(err, ErrOrderExpired) {
		t.Error("errors.Is should reach the wrapped sentinel")
	}

	var checkoutErr *CheckoutError
	if !errors.As(err, &checkoutErr) {
		t.Fatal("errors.As should recover the typed error")
	}
	if checkoutErr.Code != ErrCodeOrderExpired {
		t.Errorf("code = %s, want %s", checkoutErr.Code, ErrCodeOrderExpired)
	}
}

func TestCheckoutErrorWithDetails(t *testing.T) {
	err := NewCheckoutError(ErrCodeGetOrder, "fetch failed", nil).
		WithDetails("orderId", "order-123").
		WithDetails("attempt", 2)

	if err.Details["orderId"] != "order-123" {
		t.Errorf("orderId detail = %v", err.Details["orderId"])
	}
	if err.Details["attempt"] != 2 {
		t.Errorf("attempt detail = %v", err.Details["attempt"])
	}
}
