package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	checkout "github.com/mark3labs/checkout-go"
	"github.com/mark3labs/checkout-go/retry"
)

// CheckBalances reads the wallet's current holding of every aggregated item,
// including the folded gas item, and compares it to the required amount.
// Reads are independent across items and issued concurrently; results are
// joined before any sufficiency decision. Each read goes through the supplied
// retry policy; errors the policy classifies as silently non-retryable yield
// a zero holding instead of failing the checkout.
func CheckBalances(ctx context.Context, provider checkout.Provider, items []checkout.ItemRequirement, policy retry.Policy) ([]checkout.TransactionRequirement, error) {
	owner, err := provider.Address(ctx)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeGetBalance, "failed to read wallet address", err)
	}

	results := make([]checkout.TransactionRequirement, len(items))
	g, gctx := errgroup.WithContext(ctx)

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			requirement, err := checkBalance(gctx, provider, owner, item, policy)
			if err != nil {
				return err
			}
			results[i] = requirement
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func checkBalance(ctx context.Context, reader checkout.ChainReader, owner common.Address, item checkout.ItemRequirement, policy retry.Policy) (checkout.TransactionRequirement, error) {
	var (
		required *big.Int
		contract common.Address
		id       *big.Int
		read     func() (*big.Int, error)
	)

	switch it := item.(type) {
	case checkout.NativeItem:
		required = it.Amount
		read = func() (*big.Int, error) { return reader.NativeBalance(ctx, owner) }
	case checkout.ERC20Item:
		required = it.Amount
		contract = it.ContractAddress
		read = func() (*big.Int, error) { return reader.ERC20Balance(ctx, owner, it.ContractAddress) }
	case checkout.ERC721Item:
		required = big.NewInt(1)
		contract = it.ContractAddress
		id = it.ID
		read = func() (*big.Int, error) { return reader.ERC721Balance(ctx, owner, it.ContractAddress, it.ID) }
	case checkout.ERC1155Item:
		required = it.Amount
		contract = it.ContractAddress
		id = it.ID
		read = func() (*big.Int, error) { return reader.ERC1155Balance(ctx, owner, it.ContractAddress, it.ID) }
	default:
		return checkout.TransactionRequirement{}, checkout.NewCheckoutError(checkout.ErrCodeUnsupportedItem, "item type is not supported", checkout.ErrUnsupportedItemType).
			WithDetails("itemType", string(item.Type()))
	}

	current, err := retry.Do(ctx, policy, read)
	if err != nil {
		return checkout.TransactionRequirement{}, checkout.NewCheckoutError(checkout.ErrCodeGetBalance, "failed to read balance", err).
			WithDetails("contractAddress", contract.Hex())
	}
	// A silently-swallowed read reports an empty holding.
	if current == nil {
		current = new(big.Int)
	}

	delta := new(big.Int).Sub(required, current)
	return checkout.TransactionRequirement{
		ItemType:        item.Type(),
		Sufficient:      delta.Sign() <= 0,
		Required:        new(big.Int).Set(required),
		Current:         current,
		Delta:           delta,
		ContractAddress: contract,
		ID:              id,
		IsFee:           item.IsFee(),
	}, nil
}
