package evm

import (
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip32"
	"github.com/tyler-smith/go-bip39"

	checkout "github.com/mark3labs/checkout-go"
)

// WithKeystore loads a private key from an encrypted keystore file.
func WithKeystore(keystorePath, password string) SignerOption {
	return func(s *Signer) error {
		data, err := os.ReadFile(keystorePath)
		if err != nil {
			return fmt.Errorf("%w: %v", checkout.ErrInvalidKeystore, err)
		}

		var keyJSON struct {
			Crypto keystore.CryptoJSON `json:"crypto"`
		}
		if err := json.Unmarshal(data, &keyJSON); err != nil {
			return fmt.Errorf("%w: invalid JSON format", checkout.ErrInvalidKeystore)
		}

		privateKeyBytes, err := keystore.DecryptDataV3(keyJSON.Crypto, password)
		if err != nil {
			return fmt.Errorf("%w: decryption failed", checkout.ErrInvalidKeystore)
		}

		privateKey, err := crypto.ToECDSA(privateKeyBytes)
		if err != nil {
			return fmt.Errorf("%w: invalid private key", checkout.ErrInvalidKeystore)
		}

		s.privateKey = privateKey
		return nil
	}
}

// WithMnemonic derives a private key from a BIP-39 mnemonic phrase at the
// standard Ethereum path m/44'/60'/0'/0/{accountIndex}.
func WithMnemonic(mnemonic string, accountIndex uint32) SignerOption {
	return func(s *Signer) error {
		if !bip39.IsMnemonicValid(mnemonic) {
			return checkout.ErrInvalidMnemonic
		}

		seed := bip39.NewSeed(mnemonic, "")

		privateKey, err := deriveEthereumKey(seed, accountIndex)
		if err != nil {
			return fmt.Errorf("%w: %v", checkout.ErrInvalidMnemonic, err)
		}

		s.privateKey = privateKey
		return nil
	}
}

// deriveEthereumKey walks the BIP-44 path m/44'/60'/0'/0/{index} from a
// BIP-39 seed.
func deriveEthereumKey(seed []byte, index uint32) (*ecdsa.PrivateKey, error) {
	key, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, err
	}

	path := []uint32{
		bip32.FirstHardenedChild + 44, // purpose
		bip32.FirstHardenedChild + 60, // coin type: Ethereum
		bip32.FirstHardenedChild + 0,  // account
		0,                             // external chain
		index,                         // address index
	}
	for _, child := range path {
		if key, err = key.NewChildKey(child); err != nil {
			return nil, err
		}
	}

	return crypto.ToECDSA(key.Key)
}
