package checkout

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

type erc20Key struct {
	contract common.Address
	spender  common.Address
}

// AggregateItems merges duplicate ERC20 requirements sharing a
// (contract, spender) pair by summing their amounts. Native, ERC721 and
// ERC1155 entries pass through unchanged and may repeat; each occurrence is a
// distinct obligation. The function is pure and idempotent: aggregating an
// already-aggregated list yields the same list.
//
// Merged ERC20 entries keep the position and fee classification of the first
// occurrence of their key.
func AggregateItems(items []ItemRequirement) []ItemRequirement {
	out := make([]ItemRequirement, 0, len(items))
	seen := make(map[erc20Key]int)

	for _, item := range items {
		erc20, ok := item.(ERC20Item)
		if !ok {
			out = append(out, item)
			continue
		}

		key := erc20Key{erc20.ContractAddress, erc20.SpenderAddress}
		if idx, dup := seen[key]; dup {
			merged := out[idx].(ERC20Item)
			merged.Amount = new(big.Int).Add(merged.Amount, erc20.Amount)
			out[idx] = merged
			continue
		}

		// Copy the amount so merging never mutates caller-owned values.
		first := erc20
		first.Amount = new(big.Int).Set(erc20.Amount)
		seen[key] = len(out)
		out = append(out, first)
	}

	return out
}
