package orders

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	checkout "github.com/mark3labs/checkout-go"
	"github.com/mark3labs/checkout-go/engine"
	"github.com/mark3labs/checkout-go/orderbook"
)

// BuyOrder identifies a listing to take.
type BuyOrder struct {
	// OrderID is the listing to fulfill.
	OrderID string

	// FillAmount is the number of units to take from a partially fillable
	// listing. Nil or zero takes the whole listing.
	FillAmount *big.Int

	// Fees are taker-side fees, fixed or percentage, resolved against the
	// fill-scaled payment amount together with the listing's own fees.
	Fees []checkout.OrderFee
}

// BuyOptions tunes a buy run.
type BuyOptions struct {
	// RoutingOverride, when non-nil, replaces the engine's routing options
	// for the funding-route search on insufficiency.
	RoutingOverride *checkout.AvailableRoutingOptions
}

// Buy takes a listing: it checks sufficiency for the payment items, the
// marketplace fees and the fulfillment gas, executes any missing approvals,
// then broadcasts the fulfillment transaction. On insufficiency no
// transaction is signed and the result carries the shortfalls plus any
// funding routes.
func (s *Service) Buy(ctx context.Context, order BuyOrder, opts BuyOptions) (*Result, error) {
	listing, err := s.orderbook.GetListing(ctx, order.OrderID)
	if err != nil {
		if errors.Is(err, orderbook.ErrOrderNotActive) {
			return nil, expiredError(order.OrderID, err)
		}
		return nil, checkout.NewCheckoutError(checkout.ErrCodeGetOrder,
			"failed to fetch order listing", err).WithDetails("orderId", order.OrderID)
	}
	if listing.Status.Name != orderbook.StatusActive {
		return nil, expiredError(order.OrderID, nil)
	}

	items, err := buyItems(listing, order.FillAmount, order.Fees)
	if err != nil {
		var checkoutErr *checkout.CheckoutError
		if errors.As(err, &checkoutErr) {
			return nil, err
		}
		return nil, checkout.NewCheckoutError(checkout.ErrCodeGetOrder,
			"failed to interpret order listing", err).WithDetails("orderId", order.OrderID)
	}

	owner, err := s.provider.Address(ctx)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeGetBalance,
			"failed to resolve wallet address", err)
	}

	fillAmount := ""
	if order.FillAmount != nil && order.FillAmount.Sign() > 0 {
		fillAmount = order.FillAmount.String()
	}

	// Fetch the fulfillment transaction up front so gas can be estimated
	// against the real calldata. The orderbook refuses when balances are
	// short; sufficiency still runs in that case, against a fixed gas
	// limit, so the caller gets shortfalls and routes instead of an error.
	var fulfillment *orderbook.FulfillmentResponse
	gas := &engine.Gas{Token: engine.NativeGas, Limit: engine.DefaultGasLimit}

	fulfillment, err = s.orderbook.FulfillOrder(ctx, order.OrderID, owner.Hex(), fillAmount)
	switch {
	case err == nil:
		tx := fulfillment.Fulfillment.ToTransactionRequest(owner)
		gas.Transaction = &tx
	case errors.Is(err, orderbook.ErrOrderNotActive):
		return nil, expiredError(order.OrderID, err)
	case errors.Is(err, orderbook.ErrInsufficientBalance):
		s.log.Debug("orderbook refused fulfillment, using fixed gas limit",
			zap.String("orderId", order.OrderID))
	default:
		s.log.Warn("fulfillment preparation failed, using fixed gas limit",
			zap.String("orderId", order.OrderID), zap.Error(err))
	}

	sufficiency, err := s.engine.CheckSufficiency(ctx, items, gas)
	if err != nil {
		// Estimation can revert when approvals are missing. Fall back to
		// the fixed limit so sufficiency itself still gets answered.
		var checkoutErr *checkout.CheckoutError
		if errors.As(err, &checkoutErr) && checkoutErr.Code == checkout.ErrCodeGetGasEstimate {
			sufficiency, err = s.engine.CheckSufficiency(ctx, items,
				&engine.Gas{Token: engine.NativeGas, Limit: engine.DefaultGasLimit})
		}
		if err != nil {
			return nil, err
		}
	}

	if !sufficiency.Sufficient {
		routing, err := s.engine.ComputeRoutes(ctx, sufficiency.TransactionRequirements, opts.RoutingOverride)
		if err != nil {
			s.log.Warn("funding route search failed", zap.Error(err))
			routing = &checkout.RoutingOutcome{
				Type:    checkout.NoRoutesFound,
				Message: "route search failed: " + err.Error(),
			}
		}
		return &Result{
			Status:       StatusInsufficientFunds,
			OrderID:      order.OrderID,
			Requirements: sufficiency.TransactionRequirements,
			Routing:      routing,
		}, nil
	}

	if err := s.executeApprovals(ctx, sufficiency.Allowances); err != nil {
		return failedResult(order.OrderID, err), nil
	}

	// The earlier fulfillment call may have been refused before approvals
	// existed; ask again now that they are mined.
	if fulfillment == nil {
		fulfillment, err = s.orderbook.FulfillOrder(ctx, order.OrderID, owner.Hex(), fillAmount)
		if err != nil {
			if errors.Is(err, orderbook.ErrOrderNotActive) {
				return nil, expiredError(order.OrderID, err)
			}
			return nil, checkout.NewCheckoutError(checkout.ErrCodeFulfillOrder,
				"failed to build fulfillment transaction", err).WithDetails("orderId", order.OrderID)
		}
	}

	if err := s.executeActions(ctx, fulfillment.Approvals); err != nil {
		return failedResult(order.OrderID, err), nil
	}

	tx := fulfillment.Fulfillment.ToTransactionRequest(owner)
	hash, err := s.provider.SignAndSend(ctx, &tx)
	if err != nil {
		return failedResult(order.OrderID, checkout.NewCheckoutError(
			checkout.ErrCodeFulfillOrder, "fulfillment transaction rejected", err)), nil
	}

	if s.waitForSettlement {
		receipt, err := s.provider.WaitMined(ctx, hash)
		if err != nil {
			return failedResult(order.OrderID, checkout.NewCheckoutError(
				checkout.ErrCodeTransactionFailed, "fulfillment transaction not mined", err)), nil
		}
		if receipt.Status == 0 {
			return failedResult(order.OrderID, checkout.NewCheckoutError(
				checkout.ErrCodeTransactionFailed,
				fmt.Sprintf("fulfillment transaction %s reverted", hash), nil)), nil
		}
	}

	s.log.Info("order fulfilled",
		zap.String("orderId", order.OrderID), zap.String("hash", hash.Hex()))

	return &Result{
		Status:          StatusSuccess,
		OrderID:         order.OrderID,
		TransactionHash: hash.Hex(),
	}, nil
}

// buyItems expresses the taker's side of a listing as item requirements: the
// payment items from the listing's buy side plus the listing and taker fees
// resolved through CalculateFees as fee-flagged items in the payment token.
// Amounts scale by fill/fillable when a partial fill is requested.
func buyItems(listing *orderbook.Listing, fill *big.Int, takerFees []checkout.OrderFee) ([]checkout.ItemRequirement, error) {
	if err := checkout.ValidateAddress(listing.ProtocolAddress); err != nil {
		return nil, fmt.Errorf("protocol address: %w", err)
	}
	spender := common.HexToAddress(listing.ProtocolAddress)

	fillable, err := parseAmount(listing.FillableUnits)
	if err != nil {
		return nil, err
	}

	var (
		items        []checkout.ItemRequirement
		base         = new(big.Int)
		paymentToken common.Address
		paymentIsERC bool
	)
	for _, entry := range listing.Buy {
		amount, err := parseAmount(entry.Amount)
		if err != nil {
			return nil, err
		}
		amount = scaleAmount(amount, fill, fillable)
		base.Add(base, amount)

		switch checkout.ItemType(entry.Type) {
		case checkout.ItemTypeNative:
			items = append(items, checkout.NativeItem{Amount: amount})
		case checkout.ItemTypeERC20:
			if err := checkout.ValidateAddress(entry.ContractAddress); err != nil {
				return nil, fmt.Errorf("payment token: %w", err)
			}
			contract := common.HexToAddress(entry.ContractAddress)
			items = append(items, checkout.ERC20Item{
				Amount:          amount,
				ContractAddress: contract,
				SpenderAddress:  spender,
			})
			paymentToken = contract
			paymentIsERC = true
		default:
			return nil, fmt.Errorf("%w: %s payment", checkout.ErrUnsupportedItemType, entry.Type)
		}
	}

	fees := make([]checkout.OrderFee, 0, len(listing.Fees)+len(takerFees))
	for _, fee := range listing.Fees {
		if err := checkout.ValidateAddress(fee.RecipientAddress); err != nil {
			return nil, fmt.Errorf("fee recipient: %w", err)
		}
		amount, err := parseAmount(fee.Amount)
		if err != nil {
			return nil, err
		}
		fees = append(fees, checkout.OrderFee{
			Recipient: common.HexToAddress(fee.RecipientAddress),
			Amount:    scaleAmount(amount, fill, fillable),
		})
	}
	fees = append(fees, takerFees...)
	if len(fees) == 0 {
		return items, nil
	}

	// Fees split evenly across the units taken so partial fills stay
	// divisible.
	quantity := big.NewInt(1)
	if fill != nil && fill.Sign() > 0 {
		quantity = fill
	}
	feeAmounts, err := checkout.CalculateFees(fees, base, quantity)
	if err != nil {
		return nil, err
	}
	for _, fee := range feeAmounts {
		if paymentIsERC {
			items = append(items, checkout.ERC20Item{
				Amount:          fee.Amount,
				ContractAddress: paymentToken,
				SpenderAddress:  spender,
				Fee:             true,
			})
		} else {
			items = append(items, checkout.NativeItem{Amount: fee.Amount, Fee: true})
		}
	}

	return items, nil
}

// scaleAmount returns amount * fill / fillable, floored. A nil or zero fill,
// or an unknown fillable quantity, leaves the amount untouched.
func scaleAmount(amount, fill, fillable *big.Int) *big.Int {
	if fill == nil || fill.Sign() == 0 || fillable == nil || fillable.Sign() == 0 {
		return amount
	}
	scaled := new(big.Int).Mul(amount, fill)
	return scaled.Quo(scaled, fillable)
}

func expiredError(orderID string, err error) error {
	return checkout.NewCheckoutError(checkout.ErrCodeOrderExpired,
		"order listing is no longer active",
		errorsJoin(checkout.ErrOrderExpired, err)).WithDetails("orderId", orderID)
}

// errorsJoin wraps base with detail when present.
func errorsJoin(base, detail error) error {
	if detail == nil {
		return base
	}
	return fmt.Errorf("%w: %v", base, detail)
}

func failedResult(orderID string, err error) *Result {
	return &Result{
		Status:  StatusFailed,
		OrderID: orderID,
		Reason:  err.Error(),
	}
}
