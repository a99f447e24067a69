package checkout

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// ChainReader answers on-chain read queries: holdings, approvals and gas.
// Implementations are expected to propagate RPC timeouts as terminal errors;
// the engine applies its own retry policy on top.
type ChainReader interface {
	// NativeBalance returns the owner's native coin balance in wei.
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)

	// ERC20Balance returns the owner's token balance in the token's
	// smallest unit.
	ERC20Balance(ctx context.Context, owner, token common.Address) (*big.Int, error)

	// ERC721Balance returns 1 when the owner holds the token id, else 0.
	ERC721Balance(ctx context.Context, owner, contract common.Address, id *big.Int) (*big.Int, error)

	// ERC1155Balance returns the owner's quantity of the token id.
	ERC1155Balance(ctx context.Context, owner, contract common.Address, id *big.Int) (*big.Int, error)

	// Allowance returns the amount a spender may move on the owner's behalf.
	Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error)

	// EstimateGas simulates the transaction and returns a gas limit.
	EstimateGas(ctx context.Context, tx *TransactionRequest) (uint64, error)

	// SuggestGasPrice returns the suggested fee per gas in wei.
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// TransactionSigner is the opaque "sign and send" capability. The engine
// never broadcasts transactions itself; order adapters request signing once
// sufficiency is confirmed.
type TransactionSigner interface {
	// Address returns the connected wallet address.
	Address(ctx context.Context) (common.Address, error)

	// SignAndSend signs the transaction and broadcasts it.
	SignAndSend(ctx context.Context, tx *TransactionRequest) (common.Hash, error)

	// SignTypedData signs an EIP-712 typed message and returns the
	// hex-encoded signature.
	SignTypedData(ctx context.Context, data apitypes.TypedData) (string, error)

	// WaitMined blocks until the transaction is mined or ctx is done.
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// Provider is the blockchain connection/signer collaborator consumed by the
// engine and the order adapters. Each checkout invocation receives its own
// provider from the caller; the engine holds no cross-call state.
type Provider interface {
	ChainReader
	TransactionSigner
}
