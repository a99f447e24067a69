package evm

import (
	"bytes"
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestApproveCalldata(t *testing.T) {
	spender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	data, err := ApproveCalldata(spender, big.NewInt(1000))
	if err != nil {
		t.Fatalf("ApproveCalldata: %v", err)
	}

	// approve(address,uint256) selector.
	selector, _ := hex.DecodeString("095ea7b3")
	if !bytes.HasPrefix(data, selector) {
		t.Errorf("calldata prefix = %x, want selector 095ea7b3", data[:4])
	}
	// Selector plus two 32-byte words.
	if len(data) != 4+32+32 {
		t.Errorf("calldata length = %d, want 68", len(data))
	}

	var amount big.Int
	amount.SetBytes(data[36:])
	if amount.Cmp(big.NewInt(1000)) != 0 {
		t.Errorf("encoded amount = %s, want 1000", &amount)
	}
}
