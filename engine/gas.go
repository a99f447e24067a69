package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	checkout "github.com/mark3labs/checkout-go"
)

// DefaultGasLimit is the conservative fallback limit used when gas estimation
// is blocked, typically because a prerequisite approval has not yet been
// granted on-chain and simulation reverts.
const DefaultGasLimit = 400000

// GasToken identifies the token gas is paid in: the chain's native coin or an
// ERC20 gas token.
type GasToken struct {
	Type    checkout.ItemType
	Address common.Address
}

// NativeGas is the default gas token.
var NativeGas = GasToken{Type: checkout.ItemTypeNative}

// Gas describes how the checkout's gas cost is obtained: estimated from an
// explicit fulfillment transaction when Transaction is set, otherwise taken
// from the fixed Token/Limit pair.
type Gas struct {
	// Transaction, when non-nil, is simulated to obtain the gas limit.
	Transaction *checkout.TransactionRequest

	// Token is the token gas is paid in. The zero value means native.
	Token GasToken

	// Limit is the fixed gas limit used when Transaction is nil. Zero falls
	// back to DefaultGasLimit.
	Limit uint64
}

// GasItem computes the checkout's gas cost and returns it as one additional
// item requirement to fold into the aggregated list before balance checking.
func GasItem(ctx context.Context, reader checkout.ChainReader, gas Gas) (checkout.ItemRequirement, error) {
	limit := gas.Limit

	if gas.Transaction != nil {
		estimated, err := reader.EstimateGas(ctx, gas.Transaction)
		if err != nil {
			return nil, checkout.NewCheckoutError(checkout.ErrCodeGetGasEstimate, "failed to estimate gas for fulfillment transaction", err)
		}
		limit = estimated
	}
	if limit == 0 {
		limit = DefaultGasLimit
	}

	feePerGas, err := reader.SuggestGasPrice(ctx)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeGetGasEstimate, "failed to fetch gas price", err)
	}

	cost := new(big.Int).Mul(feePerGas, new(big.Int).SetUint64(limit))

	switch gas.Token.Type {
	case checkout.ItemTypeNative, "":
		return checkout.NativeItem{Amount: cost}, nil
	case checkout.ItemTypeERC20:
		return checkout.ERC20Item{
			Amount:          cost,
			ContractAddress: gas.Token.Address,
		}, nil
	default:
		return nil, checkout.NewCheckoutError(checkout.ErrCodeUnsupportedItem, "gas token must be native or ERC20", checkout.ErrUnsupportedItemType).
			WithDetails("itemType", string(gas.Token.Type))
	}
}
