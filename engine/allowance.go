package engine

import (
	"context"
	"math/big"

	"golang.org/x/sync/errgroup"

	checkout "github.com/mark3labs/checkout-go"
	"github.com/mark3labs/checkout-go/evm"
)

// CheckAllowances queries the spender approval for every aggregated ERC20
// requirement and reports, per item, whether the current allowance covers it.
// Insufficient verdicts carry the shortfall and an unsigned approval
// transaction for exactly that shortfall; approving the minimum keeps the
// wallet's exposure to the spender as small as possible. Reads across items
// are issued concurrently.
func CheckAllowances(ctx context.Context, provider checkout.Provider, items []checkout.ItemRequirement) ([]checkout.Allowance, error) {
	owner, err := provider.Address(ctx)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeGetAllowance, "failed to read wallet address", err)
	}

	var erc20s []checkout.ERC20Item
	for _, item := range items {
		if erc20, ok := item.(checkout.ERC20Item); ok {
			erc20s = append(erc20s, erc20)
		}
	}

	results := make([]checkout.Allowance, len(erc20s))
	g, gctx := errgroup.WithContext(ctx)

	for i, item := range erc20s {
		i, item := i, item
		g.Go(func() error {
			current, err := provider.Allowance(gctx, item.ContractAddress, owner, item.SpenderAddress)
			if err != nil {
				return checkout.NewCheckoutError(checkout.ErrCodeGetAllowance, "failed to read ERC20 allowance", err).
					WithDetails("contractAddress", item.ContractAddress.Hex())
			}

			if current.Cmp(item.Amount) >= 0 {
				results[i] = checkout.Allowance{Sufficient: true, Item: item}
				return nil
			}

			delta := new(big.Int).Sub(item.Amount, current)
			data, err := evm.ApproveCalldata(item.SpenderAddress, delta)
			if err != nil {
				return checkout.NewCheckoutError(checkout.ErrCodeGetAllowance, "failed to build approval transaction", err).
					WithDetails("contractAddress", item.ContractAddress.Hex())
			}

			to := item.ContractAddress
			results[i] = checkout.Allowance{
				Item:  item,
				Delta: delta,
				ApprovalTransaction: &checkout.TransactionRequest{
					From: owner,
					To:   &to,
					Data: data,
				},
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
