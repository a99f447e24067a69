package orders

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	checkout "github.com/mark3labs/checkout-go"
	"github.com/mark3labs/checkout-go/orderbook"
)

// Cancel cancels listings on chain. The orderbook's cancellation endpoint
// handles a single order per transaction, so only the first order ID of the
// batch is cancelled; the rest are ignored. Callers cancelling several
// listings invoke Cancel once per ID.
func (s *Service) Cancel(ctx context.Context, orderIDs []string) (*Result, error) {
	if len(orderIDs) == 0 {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeCancelOrder,
			"no order ids to cancel", nil)
	}
	orderID := orderIDs[0]
	if len(orderIDs) > 1 {
		s.log.Warn("cancelling first order of batch only",
			zap.String("orderId", orderID), zap.Int("ignored", len(orderIDs)-1))
	}

	owner, err := s.provider.Address(ctx)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeCancelOrder,
			"failed to resolve wallet address", err)
	}

	resp, err := s.orderbook.CancelOrder(ctx, orderID, owner.Hex())
	if err != nil {
		if errors.Is(err, orderbook.ErrOrderNotActive) {
			return nil, expiredError(orderID, err)
		}
		return nil, checkout.NewCheckoutError(checkout.ErrCodeCancelOrder,
			"failed to build cancellation transaction", err).WithDetails("orderId", orderID)
	}

	tx := resp.Cancellation.ToTransactionRequest(owner)
	hash, err := s.provider.SignAndSend(ctx, &tx)
	if err != nil {
		return failedResult(orderID, checkout.NewCheckoutError(checkout.ErrCodeCancelOrder,
			"cancellation transaction rejected", err)), nil
	}

	if s.waitForSettlement {
		receipt, err := s.provider.WaitMined(ctx, hash)
		if err != nil {
			return failedResult(orderID, checkout.NewCheckoutError(
				checkout.ErrCodeTransactionFailed, "cancellation transaction not mined", err)), nil
		}
		if receipt.Status == 0 {
			return failedResult(orderID, checkout.NewCheckoutError(
				checkout.ErrCodeTransactionFailed,
				fmt.Sprintf("cancellation transaction %s reverted", hash), nil)), nil
		}
	}

	s.log.Info("order cancelled",
		zap.String("orderId", orderID), zap.String("hash", hash.Hex()))

	return &Result{
		Status:          StatusSuccess,
		OrderID:         orderID,
		TransactionHash: hash.Hex(),
	}, nil
}
