// Package orders adapts marketplace listings into smart-checkout runs. Each
// adapter fetches or prepares an order via the orderbook service, expresses
// it as item requirements, runs the sufficiency check, and only then signs
// and broadcasts transactions.
package orders

import (
	"context"
	"fmt"
	"math/big"

	"go.uber.org/zap"

	checkout "github.com/mark3labs/checkout-go"
	"github.com/mark3labs/checkout-go/engine"
	"github.com/mark3labs/checkout-go/orderbook"
)

// Status is the terminal state of an order operation.
type Status string

const (
	// StatusSuccess means every required transaction was broadcast (and,
	// when settlement waiting is enabled, mined successfully).
	StatusSuccess Status = "SUCCESS"

	// StatusFailed means a transaction reverted or signing was rejected.
	StatusFailed Status = "FAILED"

	// StatusInsufficientFunds means holdings cannot cover the order; the
	// result carries the shortfalls and any funding routes found.
	StatusInsufficientFunds Status = "INSUFFICIENT_FUNDS"
)

// Result is the outcome of a buy, sell or cancel operation.
type Result struct {
	Status          Status
	TransactionHash string
	OrderID         string

	// Reason explains a FAILED status.
	Reason string

	// Requirements and Routing are populated on INSUFFICIENT_FUNDS.
	Requirements []checkout.TransactionRequirement
	Routing      *checkout.RoutingOutcome
}

// OrderbookAPI is the slice of the orderbook client the adapters consume.
type OrderbookAPI interface {
	GetListing(ctx context.Context, orderID string) (*orderbook.Listing, error)
	FulfillOrder(ctx context.Context, orderID, accountAddress, fillAmount string) (*orderbook.FulfillmentResponse, error)
	PrepareListing(ctx context.Context, accountAddress string, sell, buy orderbook.ListingItem) (*orderbook.PrepareListingResponse, error)
	CreateListing(ctx context.Context, accountAddress string, sell, buy orderbook.ListingItem, fees []orderbook.ListingFee, signature string) (*orderbook.CreateListingResponse, error)
	CancelOrder(ctx context.Context, orderID, accountAddress string) (*orderbook.CancelResponse, error)
}

// SufficiencyChecker is the slice of the checkout engine the adapters
// consume.
type SufficiencyChecker interface {
	CheckSufficiency(ctx context.Context, items []checkout.ItemRequirement, gas *engine.Gas) (*engine.SufficiencyResult, error)
	ComputeRoutes(ctx context.Context, requirements []checkout.TransactionRequirement, override *checkout.AvailableRoutingOptions) (*checkout.RoutingOutcome, error)
}

// Service runs order operations against one wallet provider.
type Service struct {
	provider  checkout.Provider
	orderbook OrderbookAPI
	engine    SufficiencyChecker

	waitForSettlement bool
	log               *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithWaitForSettlement makes the service block until fulfillment and
// cancellation transactions are mined, surfacing reverts as failures. Off by
// default; approvals are always waited on since later transactions depend on
// them.
func WithWaitForSettlement(wait bool) Option {
	return func(s *Service) {
		s.waitForSettlement = wait
	}
}

// WithLogger attaches a structured logger. The service is silent by default.
func WithLogger(log *zap.Logger) Option {
	return func(s *Service) {
		s.log = log
	}
}

// NewService creates an order service.
func NewService(provider checkout.Provider, ob OrderbookAPI, eng SufficiencyChecker, opts ...Option) (*Service, error) {
	if provider == nil {
		return nil, checkout.ErrNoProvider
	}
	s := &Service{
		provider:  provider,
		orderbook: ob,
		engine:    eng,
		log:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// executeApprovals signs and waits on the approval transactions produced by
// the sufficiency check. Approvals precede the main transaction; a failed or
// rejected approval aborts the operation.
func (s *Service) executeApprovals(ctx context.Context, allowances []checkout.Allowance) error {
	for _, allowance := range allowances {
		if allowance.Sufficient || allowance.ApprovalTransaction == nil {
			continue
		}
		hash, err := s.provider.SignAndSend(ctx, allowance.ApprovalTransaction)
		if err != nil {
			return checkout.NewCheckoutError(checkout.ErrCodeTransactionFailed,
				"approval transaction rejected", err)
		}
		receipt, err := s.provider.WaitMined(ctx, hash)
		if err != nil {
			return checkout.NewCheckoutError(checkout.ErrCodeTransactionFailed,
				"approval transaction not mined", err)
		}
		if receipt.Status == 0 {
			return checkout.NewCheckoutError(checkout.ErrCodeTransactionFailed,
				fmt.Sprintf("approval transaction %s reverted", hash), nil)
		}
		s.log.Debug("approval mined", zap.String("hash", hash.Hex()))
	}
	return nil
}

// executeActions signs and waits on orderbook-provided transaction actions,
// typically listing approvals.
func (s *Service) executeActions(ctx context.Context, actions []orderbook.TransactionAction) error {
	owner, err := s.provider.Address(ctx)
	if err != nil {
		return checkout.NewCheckoutError(checkout.ErrCodeTransactionFailed,
			"failed to resolve wallet address", err)
	}
	for _, action := range actions {
		tx := action.ToTransactionRequest(owner)
		hash, err := s.provider.SignAndSend(ctx, &tx)
		if err != nil {
			return checkout.NewCheckoutError(checkout.ErrCodeTransactionFailed,
				fmt.Sprintf("%s transaction rejected", action.Purpose), err)
		}
		receipt, err := s.provider.WaitMined(ctx, hash)
		if err != nil {
			return checkout.NewCheckoutError(checkout.ErrCodeTransactionFailed,
				fmt.Sprintf("%s transaction not mined", action.Purpose), err)
		}
		if receipt.Status == 0 {
			return checkout.NewCheckoutError(checkout.ErrCodeTransactionFailed,
				fmt.Sprintf("%s transaction %s reverted", action.Purpose, hash), nil)
		}
	}
	return nil
}

// parseAmount parses a decimal amount string from the orderbook.
func parseAmount(s string) (*big.Int, error) {
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", checkout.ErrInvalidAmount, s)
	}
	return v, nil
}
