// Package engine implements the smart-checkout orchestrator: item
// aggregation, allowance and balance checking, gas folding, and the two-phase
// handoff to the routing calculator when funds fall short.
package engine

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	checkout "github.com/mark3labs/checkout-go"
	"github.com/mark3labs/checkout-go/evm"
	"github.com/mark3labs/checkout-go/retry"
)

// RouteCalculator searches for funding routes that would close the given
// shortfalls. Absence of a route is reported as a value, never as an error.
type RouteCalculator interface {
	Routes(ctx context.Context, owner common.Address, deficits []checkout.TransactionRequirement, opts checkout.AvailableRoutingOptions) (*checkout.RoutingOutcome, error)
}

// Engine runs smart-checkout computations. It holds no cross-call state
// beyond its collaborators; every invocation works from fresh on-chain reads.
type Engine struct {
	provider       checkout.Provider
	calculator     RouteCalculator
	policy         retry.Policy
	routingOptions checkout.AvailableRoutingOptions
	log            *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithRouteCalculator attaches a funding-route calculator. Without one, every
// route search reports NoRouteOptions.
func WithRouteCalculator(calculator RouteCalculator) Option {
	return func(e *Engine) {
		e.calculator = calculator
	}
}

// WithRetryPolicy sets the retry policy applied to balance reads.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(e *Engine) {
		e.policy = policy
	}
}

// WithRoutingOptions sets the default routing options. Per-call overrides
// take precedence.
func WithRoutingOptions(opts checkout.AvailableRoutingOptions) Option {
	return func(e *Engine) {
		e.routingOptions = opts
	}
}

// WithLogger attaches a structured logger. The engine is silent by default.
func WithLogger(log *zap.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// New creates an Engine for the given provider.
func New(provider checkout.Provider, opts ...Option) (*Engine, error) {
	if provider == nil {
		return nil, checkout.ErrNoProvider
	}

	e := &Engine{
		provider: provider,
		policy:   defaultRetryPolicy(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// defaultRetryPolicy reads contract reverts as empty holdings, so an ownerOf
// probe against a burned or nonexistent token reports a zero balance instead
// of failing the check. Transport errors still retry and then surface.
func defaultRetryPolicy() retry.Policy {
	policy := retry.DefaultPolicy
	policy.NonRetryableSilently = evm.IsRevert
	return policy
}

// SufficiencyResult is the synchronous half of a smart checkout: per-item
// balance verdicts, per-ERC20 allowance verdicts, and the aggregate verdict.
type SufficiencyResult struct {
	// Sufficient is the logical AND of every per-item verdict.
	Sufficient bool

	// TransactionRequirements holds one verdict per aggregated item,
	// including the folded gas item.
	TransactionRequirements []checkout.TransactionRequirement

	// Allowances holds one verdict per aggregated ERC20 item.
	Allowances []checkout.Allowance
}

// InsufficientRequirements returns the requirements whose holdings fall
// short.
func (r *SufficiencyResult) InsufficientRequirements() []checkout.TransactionRequirement {
	var out []checkout.TransactionRequirement
	for _, req := range r.TransactionRequirements {
		if !req.Sufficient {
			out = append(out, req)
		}
	}
	return out
}

// CheckSufficiency aggregates the item requirements, checks spender
// allowances in parallel with folding the gas cost, then checks balances.
// Routing is never computed here: when holdings already cover the checkout
// there is nothing to route, and when they do not the caller decides whether
// the route search is worth its cost.
func (e *Engine) CheckSufficiency(ctx context.Context, items []checkout.ItemRequirement, gas *Gas) (*SufficiencyResult, error) {
	aggregated := checkout.AggregateItems(items)

	var (
		allowances []checkout.Allowance
		gasItem    checkout.ItemRequirement
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		allowances, err = CheckAllowances(gctx, e.provider, aggregated)
		return err
	})
	if gas != nil {
		g.Go(func() error {
			var err error
			gasItem, err = GasItem(gctx, e.provider, *gas)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	withGas := aggregated
	if gasItem != nil {
		withGas = checkout.AggregateItems(append(aggregated, gasItem))
	}

	requirements, err := CheckBalances(ctx, e.provider, withGas, e.policy)
	if err != nil {
		return nil, err
	}

	sufficient := true
	for _, req := range requirements {
		sufficient = sufficient && req.Sufficient
	}

	e.log.Debug("sufficiency check complete",
		zap.Bool("sufficient", sufficient),
		zap.Int("items", len(requirements)))

	return &SufficiencyResult{
		Sufficient:              sufficient,
		TransactionRequirements: requirements,
		Allowances:              allowances,
	}, nil
}

// ComputeRoutes searches for funding routes closing the insufficient
// requirements. It is a separate, caller-cancellable operation: callers who
// only need the sufficiency verdict never pay for the search. The override,
// when non-nil, replaces the engine's default routing options for this call.
func (e *Engine) ComputeRoutes(ctx context.Context, requirements []checkout.TransactionRequirement, override *checkout.AvailableRoutingOptions) (*checkout.RoutingOutcome, error) {
	opts := e.routingOptions
	if override != nil {
		opts = *override
	}

	if e.calculator == nil || !(opts.Bridge || opts.Swap || opts.OnRamp) {
		return &checkout.RoutingOutcome{
			Type:    checkout.NoRouteOptions,
			Message: "no routing options are enabled",
		}, nil
	}

	var deficits []checkout.TransactionRequirement
	for _, req := range requirements {
		if !req.Sufficient {
			deficits = append(deficits, req)
		}
	}
	if len(deficits) == 0 {
		return &checkout.RoutingOutcome{Type: checkout.RoutesFound}, nil
	}

	owner, err := e.provider.Address(ctx)
	if err != nil {
		return nil, checkout.NewCheckoutError(checkout.ErrCodeGetBalance, "failed to read wallet address", err)
	}

	return e.calculator.Routes(ctx, owner, deficits, opts)
}

// SmartCheckout is the combined two-phase call contract. It returns the
// sufficiency verdict promptly. When holdings fall short and onComplete is
// non-nil, the funding-route search runs in the background and the enriched
// result (with Router populated) is delivered through the callback, letting a
// caller render "insufficient funds" immediately while routes are still being
// computed. Cancelling ctx abandons the background search and suppresses the
// callback.
func (e *Engine) SmartCheckout(ctx context.Context, items []checkout.ItemRequirement, gas *Gas, override *checkout.AvailableRoutingOptions, onComplete func(*checkout.Result)) (*checkout.Result, error) {
	sufficiency, err := e.CheckSufficiency(ctx, items, gas)
	if err != nil {
		return nil, err
	}

	result := &checkout.Result{
		Sufficient:              sufficiency.Sufficient,
		TransactionRequirements: sufficiency.TransactionRequirements,
	}

	if !sufficiency.Sufficient && onComplete != nil {
		go func() {
			outcome, err := e.ComputeRoutes(ctx, sufficiency.TransactionRequirements, override)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				// Route-search failures are reportable outcomes, not errors.
				e.log.Warn("funding route search failed", zap.Error(err))
				outcome = &checkout.RoutingOutcome{
					Type:    checkout.NoRoutesFound,
					Message: "route search failed: " + err.Error(),
				}
			}
			onComplete(&checkout.Result{
				Sufficient:              false,
				TransactionRequirements: sufficiency.TransactionRequirements,
				Router:                  outcome,
			})
		}()
	}

	return result, nil
}
