package checkout

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// percentageScale bounds percentage inputs to six decimal places of the
// fraction, enough to express hundredths of a basis point without float
// rounding drift.
const percentageScale = 6

// CalculateFees computes the integer amount of each order fee against a base
// amount in the asset's smallest unit. Percentage fees use fixed-point
// decimal arithmetic and are truncated, never rounded up. Every fee amount is
// floored to be divisible by quantity so that divisible (ERC1155-style)
// listings can split fees evenly per unit; pass quantity 1 for indivisible
// listings.
//
// The cumulative fee total must stay strictly below the base amount; a total
// reaching 100% returns an ErrCodeFeeOverflow error before any signing can
// occur.
func CalculateFees(fees []OrderFee, amount *big.Int, quantity *big.Int) ([]FeeAmount, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if quantity == nil || quantity.Sign() <= 0 {
		quantity = big.NewInt(1)
	}

	base := decimal.NewFromBigInt(amount, 0)
	out := make([]FeeAmount, 0, len(fees))
	total := new(big.Int)

	for _, fee := range fees {
		feeAmount, err := feeAmountOf(fee, base)
		if err != nil {
			return nil, err
		}

		// Floor to a multiple of the listing quantity.
		feeAmount.Sub(feeAmount, new(big.Int).Mod(feeAmount, quantity))

		total.Add(total, feeAmount)
		out = append(out, FeeAmount{Recipient: fee.Recipient, Amount: feeAmount})
	}

	if total.Cmp(amount) >= 0 {
		return nil, NewCheckoutError(ErrCodeFeeOverflow, "cumulative fees reach 100% of the order amount", ErrFeeOverflow).
			WithDetails("amount", amount.String()).
			WithDetails("fees", total.String())
	}

	return out, nil
}

func feeAmountOf(fee OrderFee, base decimal.Decimal) (*big.Int, error) {
	if fee.Amount != nil {
		if fee.Amount.Sign() < 0 {
			return nil, ErrInvalidAmount
		}
		return new(big.Int).Set(fee.Amount), nil
	}

	pct, err := decimal.NewFromString(fee.Percentage)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	if pct.IsNegative() {
		return nil, ErrInvalidAmount
	}

	return base.Mul(pct.Truncate(percentageScale)).BigInt(), nil
}
