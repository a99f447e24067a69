package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	checkout "github.com/mark3labs/checkout-go"
)

// defaultPollInterval is how often WaitMined polls for a receipt.
const defaultPollInterval = 2 * time.Second

// Provider implements checkout.Provider over a go-ethereum RPC client and a
// local Signer.
type Provider struct {
	client       *ethclient.Client
	signer       *Signer
	pollInterval time.Duration
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithPollInterval sets the receipt polling interval used by WaitMined.
func WithPollInterval(interval time.Duration) ProviderOption {
	return func(p *Provider) {
		p.pollInterval = interval
	}
}

// NewProvider creates a Provider from a connected RPC client and a signer.
func NewProvider(client *ethclient.Client, signer *Signer, opts ...ProviderOption) *Provider {
	p := &Provider{
		client:       client,
		signer:       signer,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Address implements checkout.TransactionSigner.
func (p *Provider) Address(_ context.Context) (common.Address, error) {
	return p.signer.Address(), nil
}

// NativeBalance implements checkout.ChainReader.
func (p *Provider) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return p.client.BalanceAt(ctx, owner, nil)
}

// ERC20Balance implements checkout.ChainReader.
func (p *Provider) ERC20Balance(ctx context.Context, owner, token common.Address) (*big.Int, error) {
	return p.callUint256(ctx, erc20ABI, token, "balanceOf", owner)
}

// ERC721Balance returns 1 when the owner currently holds the token id, 0
// otherwise. An ownerOf revert (burned or nonexistent token) propagates as an
// error satisfying IsRevert so callers can read it as not held; transport
// failures propagate unchanged.
func (p *Provider) ERC721Balance(ctx context.Context, owner, contract common.Address, id *big.Int) (*big.Int, error) {
	data, err := erc721ABI.Pack("ownerOf", id)
	if err != nil {
		return nil, err
	}

	out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("ownerOf call: %w", err)
	}

	results, err := erc721ABI.Unpack("ownerOf", out)
	if err != nil {
		return nil, err
	}

	if holder, ok := results[0].(common.Address); ok && holder == owner {
		return big.NewInt(1), nil
	}
	return big.NewInt(0), nil
}

// ERC1155Balance implements checkout.ChainReader.
func (p *Provider) ERC1155Balance(ctx context.Context, owner, contract common.Address, id *big.Int) (*big.Int, error) {
	return p.callUint256(ctx, erc1155ABI, contract, "balanceOf", owner, id)
}

// Allowance implements checkout.ChainReader.
func (p *Provider) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return p.callUint256(ctx, erc20ABI, token, "allowance", owner, spender)
}

// EstimateGas implements checkout.ChainReader.
func (p *Provider) EstimateGas(ctx context.Context, tx *checkout.TransactionRequest) (uint64, error) {
	return p.client.EstimateGas(ctx, ethereum.CallMsg{
		From:  tx.From,
		To:    tx.To,
		Value: tx.Value,
		Data:  tx.Data,
	})
}

// SuggestGasPrice implements checkout.ChainReader.
func (p *Provider) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return p.client.SuggestGasPrice(ctx)
}

// SignAndSend fills in the nonce, gas price and (when missing) gas limit,
// signs the transaction locally and broadcasts it.
func (p *Provider) SignAndSend(ctx context.Context, tx *checkout.TransactionRequest) (common.Hash, error) {
	from := p.signer.Address()

	nonce, err := p.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch nonce: %w", err)
	}

	gasPrice, err := p.client.SuggestGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to fetch gas price: %w", err)
	}

	gasLimit := tx.GasLimit
	if gasLimit == 0 {
		gasLimit, err = p.EstimateGas(ctx, tx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to estimate gas: %w", err)
		}
	}

	value := tx.Value
	if value == nil {
		value = new(big.Int)
	}

	unsigned := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       tx.To,
		Value:    value,
		Data:     tx.Data,
	})

	signed, err := p.signer.SignTx(unsigned)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := p.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	return signed.Hash(), nil
}

// SignTypedData implements checkout.TransactionSigner.
func (p *Provider) SignTypedData(ctx context.Context, data apitypes.TypedData) (string, error) {
	return p.signer.SignTypedData(ctx, data)
}

// WaitMined polls for the transaction receipt until it lands or ctx is done.
func (p *Provider) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := p.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// IsRevert reports whether err came from contract execution reverting rather
// than from the transport or the RPC layer. Reverts surface as rpc.DataError
// per the JSON-RPC convention; some backends omit the data, so the standard
// geth message is checked as a fallback.
func IsRevert(err error) bool {
	if err == nil {
		return false
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		return true
	}
	return strings.Contains(err.Error(), "execution reverted")
}

func (p *Provider) callUint256(ctx context.Context, contractABI abi.ABI, contract common.Address, method string, args ...interface{}) (*big.Int, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}

	out, err := p.client.CallContract(ctx, ethereum.CallMsg{To: &contract, Data: data}, nil)
	if err != nil {
		return nil, err
	}

	results, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, err
	}

	value, ok := results[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected %s result type %T", method, results[0])
	}
	return value, nil
}
