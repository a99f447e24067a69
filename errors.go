package checkout

import (
	"errors"
	"fmt"
)

// Sentinel checkout error definitions.

var (
	// ErrInvalidAmount indicates a malformed or non-positive amount.
	ErrInvalidAmount = errors.New("checkout: invalid amount")

	// ErrInvalidAddress indicates a malformed address.
	ErrInvalidAddress = errors.New("checkout: invalid address")

	// ErrInvalidKey indicates an invalid private key.
	ErrInvalidKey = errors.New("checkout: invalid private key")

	// ErrInvalidKeystore indicates an invalid keystore file.
	ErrInvalidKeystore = errors.New("checkout: invalid keystore file")

	// ErrInvalidMnemonic indicates an invalid mnemonic phrase.
	ErrInvalidMnemonic = errors.New("checkout: invalid mnemonic phrase")

	// ErrInvalidChainID indicates a missing or non-positive chain id.
	ErrInvalidChainID = errors.New("checkout: invalid chain id")

	// ErrNoProvider indicates the engine was constructed without a provider.
	ErrNoProvider = errors.New("checkout: no provider configured")

	// ErrUnsupportedItemType indicates an item requirement outside the
	// closed Native/ERC20/ERC721/ERC1155 set.
	ErrUnsupportedItemType = errors.New("checkout: unsupported item type")

	// ErrFeeOverflow indicates the cumulative fees reach or exceed the order
	// amount.
	ErrFeeOverflow = errors.New("checkout: fees exceed order amount")

	// ErrOrderExpired indicates the order is no longer active on the
	// marketplace.
	ErrOrderExpired = errors.New("checkout: order expired")

	// ErrSigningRejected indicates the user declined to sign a transaction
	// or message. Order adapters surface this as a failed status, not as a
	// raised error.
	ErrSigningRejected = errors.New("checkout: signing rejected by user")
)

// ErrorCode classifies a CheckoutError for programmatic handling.
type ErrorCode string

const (
	ErrCodeGetAllowance      ErrorCode = "GET_ERC20_ALLOWANCE_ERROR"
	ErrCodeGetBalance        ErrorCode = "GET_BALANCE_ERROR"
	ErrCodeGetGasEstimate    ErrorCode = "GET_GAS_ESTIMATE_ERROR"
	ErrCodeUnsupportedItem   ErrorCode = "UNSUPPORTED_ITEM_TYPE_ERROR"
	ErrCodeFeeOverflow       ErrorCode = "FEE_OVERFLOW_ERROR"
	ErrCodeGetOrder          ErrorCode = "GET_ORDER_LISTING_ERROR"
	ErrCodeOrderExpired      ErrorCode = "ORDER_EXPIRED_ERROR"
	ErrCodeFulfillOrder      ErrorCode = "FULFILL_ORDER_LISTING_ERROR"
	ErrCodePrepareListing    ErrorCode = "PREPARE_ORDER_LISTING_ERROR"
	ErrCodeCreateOrder       ErrorCode = "CREATE_ORDER_LISTING_ERROR"
	ErrCodeCancelOrder       ErrorCode = "CANCEL_ORDER_LISTING_ERROR"
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED_ERROR"
)

// CheckoutError is a typed error with a classification code and contextual
// details (order id, contract address) for diagnostics.
type CheckoutError struct {
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]interface{}
}

// NewCheckoutError creates a CheckoutError wrapping an optional cause.
func NewCheckoutError(code ErrorCode, message string, err error) *CheckoutError {
	return &CheckoutError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Error implements the error interface.
func (e *CheckoutError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("checkout [%s]: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("checkout [%s]: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *CheckoutError) Unwrap() error {
	return e.Err
}

// WithDetails attaches a contextual key/value pair and returns the error for
// chaining.
func (e *CheckoutError) WithDetails(key string, value interface{}) *CheckoutError {
	e.Details[key] = value
	return e
}
