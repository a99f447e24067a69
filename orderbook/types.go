// Package orderbook is the HTTP client for the marketplace orderbook
// service. It fetches listings, requests fulfillment and signing
// instructions, and translates the service's free-text errors into typed
// ones at this boundary.
package orderbook

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	checkout "github.com/mark3labs/checkout-go"
)

// Listing statuses reported by the orderbook service.
const (
	StatusActive    = "ACTIVE"
	StatusExpired   = "EXPIRED"
	StatusFilled    = "FILLED"
	StatusCancelled = "CANCELLED"
	StatusInactive  = "INACTIVE"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus struct {
	Name string `json:"name"`
}

// ListingItem is one asset within a listing's buy or sell side.
type ListingItem struct {
	Type            string `json:"type"`
	ContractAddress string `json:"contractAddress,omitempty"`
	TokenID         string `json:"tokenId,omitempty"`
	Amount          string `json:"amount,omitempty"`
}

// ListingFee is a royalty or marketplace fee attached to a listing, expressed
// as a fixed amount in the listing's payment token.
type ListingFee struct {
	RecipientAddress string `json:"recipientAddress"`
	Amount           string `json:"amount"`
	Type             string `json:"type"`
}

// Listing is an open sell order on the orderbook.
type Listing struct {
	ID              string        `json:"id"`
	AccountAddress  string        `json:"accountAddress"`
	Status          ListingStatus `json:"status"`
	Buy             []ListingItem `json:"buy"`
	Sell            []ListingItem `json:"sell"`
	Fees            []ListingFee  `json:"fees"`
	ProtocolAddress string        `json:"protocolAddress"`
	FillableUnits   string        `json:"fillableUnits,omitempty"`
}

// Transaction purposes reported by the orderbook's fulfillment endpoints.
const (
	PurposeApproval    = "APPROVAL"
	PurposeFulfillment = "FULFILL_ORDER"
	PurposeCancel      = "CANCEL"
)

// TransactionAction is an unsigned transaction the orderbook asks the caller
// to execute, tagged with its purpose.
type TransactionAction struct {
	Purpose string `json:"purpose"`
	To      string `json:"to"`
	Data    string `json:"data"`
	Value   string `json:"value,omitempty"`
}

// ToTransactionRequest converts the action into the engine's transaction
// shape. Malformed hex in Data or Value yields empty data and a zero value.
func (a TransactionAction) ToTransactionRequest(from common.Address) checkout.TransactionRequest {
	to := common.HexToAddress(a.To)
	req := checkout.TransactionRequest{
		From:  from,
		To:    &to,
		Value: new(big.Int),
	}
	if data := strings.TrimPrefix(a.Data, "0x"); data != "" {
		req.Data = common.FromHex(a.Data)
	}
	if a.Value != "" {
		if v, ok := new(big.Int).SetString(strings.TrimPrefix(a.Value, "0x"), 16); ok {
			req.Value = v
		}
	}
	return req
}

// FulfillmentResponse is the orderbook's answer to a fulfillment request:
// any approvals the taker must execute first, then the fulfillment
// transaction itself.
type FulfillmentResponse struct {
	Approvals   []TransactionAction `json:"approvals"`
	Fulfillment TransactionAction   `json:"fulfillment"`
	Expiration  string              `json:"expiration,omitempty"`
}

// PrepareListingResponse is the orderbook's answer to a listing preparation
// request: approvals the maker must execute, then the typed data to sign.
type PrepareListingResponse struct {
	Approvals       []TransactionAction `json:"approvals"`
	SignableMessage apitypes.TypedData  `json:"signableMessage"`
}

// CancelResponse carries the unsigned cancellation transaction.
type CancelResponse struct {
	Cancellation TransactionAction `json:"cancellation"`
}

// CreateListingResponse identifies the listing the orderbook created.
type CreateListingResponse struct {
	ID string `json:"id"`
}
