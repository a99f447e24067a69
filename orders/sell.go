package orders

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	checkout "github.com/mark3labs/checkout-go"
	"github.com/mark3labs/checkout-go/engine"
	"github.com/mark3labs/checkout-go/orderbook"
)

// SellOrder describes a listing to create: one NFT offered for a fungible
// price.
type SellOrder struct {
	// CollectionAddress is the NFT contract.
	CollectionAddress common.Address

	// TokenID is the NFT to list.
	TokenID *big.Int

	// PriceToken is the payment token contract. The zero address lists for
	// the native coin.
	PriceToken common.Address

	// PriceAmount is the asking price in the payment token's smallest unit.
	PriceAmount *big.Int

	// Fees are the maker, royalty and marketplace fees applied to the
	// price. Percentages carry at most six decimal places.
	Fees []checkout.OrderFee
}

// Sell creates a listing: it verifies the maker holds the NFT and can pay
// approval gas, executes the approvals the orderbook requires, signs the
// listing's typed data and submits it. The listing itself costs no gas.
func (s *Service) Sell(ctx context.Context, order SellOrder) (*Result, error) {
	if err := checkout.ValidateAmount(order.PriceAmount); err != nil {
		return nil, err
	}

	// Fee amounts are resolved against the full asking price up front so a
	// fee schedule that consumes the whole price is rejected before any
	// orderbook call.
	feeAmounts, err := checkout.CalculateFees(order.Fees, order.PriceAmount, big.NewInt(1))
	if err != nil {
		return nil, err
	}

	owner, err := s.provider.Address(ctx)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeGetBalance,
			"failed to resolve wallet address", err)
	}

	items := []checkout.ItemRequirement{
		checkout.ERC721Item{
			ContractAddress: order.CollectionAddress,
			ID:              order.TokenID,
		},
	}
	sufficiency, err := s.engine.CheckSufficiency(ctx, items,
		&engine.Gas{Token: engine.NativeGas, Limit: engine.DefaultGasLimit})
	if err != nil {
		return nil, err
	}
	if !sufficiency.Sufficient {
		return &Result{
			Status:       StatusInsufficientFunds,
			Requirements: sufficiency.TransactionRequirements,
		}, nil
	}

	sell := orderbook.ListingItem{
		Type:            string(checkout.ItemTypeERC721),
		ContractAddress: order.CollectionAddress.Hex(),
		TokenID:         order.TokenID.String(),
	}
	buy := orderbook.ListingItem{
		Type:   string(checkout.ItemTypeNative),
		Amount: order.PriceAmount.String(),
	}
	if order.PriceToken != (common.Address{}) {
		buy.Type = string(checkout.ItemTypeERC20)
		buy.ContractAddress = order.PriceToken.Hex()
	}

	prepared, err := s.orderbook.PrepareListing(ctx, owner.Hex(), sell, buy)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodePrepareListing,
			"failed to prepare listing", err)
	}

	if err := s.executeActions(ctx, prepared.Approvals); err != nil {
		return failedResult("", err), nil
	}

	signature, err := s.provider.SignTypedData(ctx, prepared.SignableMessage)
	if err != nil {
		return failedResult("", checkout.NewCheckoutError(checkout.ErrCodeCreateOrder,
			"listing signature rejected", err)), nil
	}

	fees := make([]orderbook.ListingFee, 0, len(feeAmounts))
	for _, fee := range feeAmounts {
		fees = append(fees, orderbook.ListingFee{
			RecipientAddress: fee.Recipient.Hex(),
			Amount:           fee.Amount.String(),
			Type:             "ROYALTY",
		})
	}

	created, err := s.orderbook.CreateListing(ctx, owner.Hex(), sell, buy, fees, signature)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeCreateOrder,
			"failed to create listing", err)
	}

	s.log.Info("listing created", zap.String("orderId", created.ID))

	return &Result{Status: StatusSuccess, OrderID: created.ID}, nil
}
