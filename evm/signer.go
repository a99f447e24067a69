// Package evm provides the go-ethereum backed blockchain provider and local
// wallet signer used by the checkout engine. The signer covers the "sign and
// send" capability: callers who hold keys elsewhere can supply their own
// checkout.Provider implementation instead.
package evm

import (
	"context"
	"crypto/ecdsa"
	"encoding/hex"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	checkout "github.com/mark3labs/checkout-go"
)

// Signer holds a local private key and signs transactions and EIP-712 typed
// messages for one EVM chain.
type Signer struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// SignerOption configures a Signer.
type SignerOption func(*Signer) error

// NewSigner creates a new signer with the given options. A key source
// (WithPrivateKey, WithKeystore or WithMnemonic) and WithChainID are required.
func NewSigner(opts ...SignerOption) (*Signer, error) {
	s := &Signer{}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.privateKey == nil {
		return nil, checkout.ErrInvalidKey
	}
	if s.chainID == nil || s.chainID.Sign() <= 0 {
		return nil, checkout.ErrInvalidChainID
	}

	s.address = crypto.PubkeyToAddress(s.privateKey.PublicKey)
	return s, nil
}

// WithPrivateKey sets the private key from a hex string.
func WithPrivateKey(hexKey string) SignerOption {
	return func(s *Signer) error {
		hexKey = strings.TrimPrefix(hexKey, "0x")

		privateKey, err := crypto.HexToECDSA(hexKey)
		if err != nil {
			return checkout.ErrInvalidKey
		}

		s.privateKey = privateKey
		return nil
	}
}

// WithChainID sets the chain the signer produces signatures for.
func WithChainID(chainID *big.Int) SignerOption {
	return func(s *Signer) error {
		s.chainID = new(big.Int).Set(chainID)
		return nil
	}
}

// Address returns the wallet address derived from the signing key.
func (s *Signer) Address() common.Address {
	return s.address
}

// ChainID returns the configured chain id.
func (s *Signer) ChainID() *big.Int {
	return new(big.Int).Set(s.chainID)
}

// SignTx signs a transaction with the signer's key using the latest
// EIP-155-aware signer for the configured chain.
func (s *Signer) SignTx(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
}

// SignTypedData signs an EIP-712 typed message and returns the hex-encoded
// 65-byte signature with the v value adjusted to 27/28.
func (s *Signer) SignTypedData(_ context.Context, data apitypes.TypedData) (string, error) {
	domainSeparator, err := data.HashStruct("EIP712Domain", data.Domain.Map())
	if err != nil {
		return "", err
	}

	messageHash, err := data.HashStruct(data.PrimaryType, data.Message)
	if err != nil {
		return "", err
	}

	// keccak256("\x19\x01" || domainSeparator || messageHash)
	rawData := append([]byte{0x19, 0x01}, append(domainSeparator, messageHash...)...)
	digest := crypto.Keccak256(rawData)

	signature, err := crypto.Sign(digest, s.privateKey)
	if err != nil {
		return "", err
	}

	signature[64] += 27

	return "0x" + hex.EncodeToString(signature), nil
}
