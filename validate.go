package checkout

import (
	"fmt"
	"math/big"
	"regexp"
)

// evmAddressRegex matches Ethereum-style addresses (0x followed by 40 hex chars).
var evmAddressRegex = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)

// ValidateAmount validates that an amount is a positive integer.
func ValidateAmount(amount *big.Int) error {
	if amount == nil {
		return fmt.Errorf("%w: amount is nil", ErrInvalidAmount)
	}
	if amount.Sign() <= 0 {
		return fmt.Errorf("%w: amount must be greater than 0, got %s", ErrInvalidAmount, amount)
	}
	return nil
}

// ValidateAddress validates a hex-encoded EVM address string.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("%w: address is empty", ErrInvalidAddress)
	}
	if !evmAddressRegex.MatchString(address) {
		return fmt.Errorf("%w: %s (expected 0x followed by 40 hex characters)", ErrInvalidAddress, address)
	}
	return nil
}
