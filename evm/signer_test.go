package evm

import (
	"errors"
	"math/big"
	"testing"

	checkout "github.com/mark3labs/checkout-go"
)

// Well-known development key, never holds real funds.
const (
	devPrivateKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress    = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	devMnemonic   = "test test test test test test test test test test test junk"
)

func TestNewSignerDerivesAddress(t *testing.T) {
	signer, err := NewSigner(
		WithPrivateKey(devPrivateKey),
		WithChainID(big.NewInt(1)),
	)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if signer.Address().Hex() != devAddress {
		t.Errorf("address = %s, want %s", signer.Address().Hex(), devAddress)
	}
	if signer.ChainID().Cmp(big.NewInt(1)) != 0 {
		t.Errorf("chain id = %s, want 1", signer.ChainID())
	}
}

func TestNewSignerAcceptsUnprefixedKey(t *testing.T) {
	signer, err := NewSigner(
		WithPrivateKey(devPrivateKey[2:]),
		WithChainID(big.NewInt(1)),
	)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	if signer.Address().Hex() != devAddress {
		t.Errorf("address = %s, want %s", signer.Address().Hex(), devAddress)
	}
}

func TestNewSignerValidation(t *testing.T) {
	tests := []struct {
		name string
		opts []SignerOption
		want error
	}{
		{
			name: "missing key",
			opts: []SignerOption{WithChainID(big.NewInt(1))},
			want: checkout.ErrInvalidKey,
		},
		{
			name: "malformed key",
			opts: []SignerOption{WithPrivateKey("0xzz"), WithChainID(big.NewInt(1))},
			want: checkout.ErrInvalidKey,
		},
		{
			name: "missing chain id",
			opts: []SignerOption{WithPrivateKey(devPrivateKey)},
			want: checkout.ErrInvalidChainID,
		},
		{
			name: "zero chain id",
			opts: []SignerOption{WithPrivateKey(devPrivateKey), WithChainID(big.NewInt(0))},
			want: checkout.ErrInvalidChainID,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSigner(tt.opts...); !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWithMnemonicDerivesStandardPath(t *testing.T) {
	signer, err := NewSigner(
		WithMnemonic(devMnemonic, 0),
		WithChainID(big.NewInt(1)),
	)
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	// m/44'/60'/0'/0/0 of the well-known development mnemonic.
	if signer.Address().Hex() != devAddress {
		t.Errorf("address = %s, want %s", signer.Address().Hex(), devAddress)
	}
}

func TestWithMnemonicRejectsInvalidPhrase(t *testing.T) {
	_, err := NewSigner(
		WithMnemonic("definitely not a valid mnemonic phrase at all", 0),
		WithChainID(big.NewInt(1)),
	)
	if !errors.Is(err, checkout.ErrInvalidMnemonic) {
		t.Errorf("error = %v, want ErrInvalidMnemonic", err)
	}
}
