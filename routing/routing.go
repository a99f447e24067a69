// Package routing computes funding routes, ordered bridge, swap and on-ramp
// steps that would close the shortfalls reported by a smart checkout. The
// search probes candidates independently and tolerates individual probe
// failures; a candidate that cannot be priced is excluded, never fatal.
package routing

import (
	"context"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	checkout "github.com/mark3labs/checkout-go"
)

// TokenReader lists the wallet's token holdings considered as funding
// sources on one chain.
type TokenReader interface {
	TokenBalances(ctx context.Context, owner common.Address, chainID uint64) ([]checkout.TokenBalance, error)
}

// Availability gates routing options on platform capability, independently of
// caller configuration. A nil Availability treats every option as available.
type Availability interface {
	// SwapAvailable probes swap liquidity. Consulted once per route search.
	SwapAvailable(ctx context.Context) (bool, error)

	// BridgeAvailable reports whether bridging is currently operational.
	BridgeAvailable(ctx context.Context) (bool, error)

	// OnRampAvailable reports whether the fiat on-ramp is currently offered.
	OnRampAvailable(ctx context.Context) (bool, error)
}

// BridgeQuote prices moving a token from a source chain to the checkout
// chain.
type BridgeQuote struct {
	GasFee      checkout.Fee
	ProtocolFee checkout.Fee
}

// BridgeQuoter prices bridge steps.
type BridgeQuoter interface {
	Quote(ctx context.Context, token checkout.TokenInfo, amount *big.Int, fromChainID, toChainID uint64) (*BridgeQuote, error)
}

// SwapQuote prices swapping one token for another on the checkout chain.
type SwapQuote struct {
	// AmountIn is the source amount required to produce the requested
	// output.
	AmountIn    *big.Int
	GasFee      checkout.Fee
	ProtocolFee checkout.Fee
}

// SwapQuoter prices swap steps.
type SwapQuoter interface {
	Quote(ctx context.Context, fromToken, toToken checkout.TokenInfo, amountOut *big.Int, chainID uint64) (*SwapQuote, error)
}

// Calculator searches for funding routes. Collaborators perform the per-
// candidate network I/O; the calculator owns candidate selection and ranking.
type Calculator struct {
	chainID      uint64
	tokens       TokenReader
	availability Availability
	bridge       BridgeQuoter
	bridgeChains []uint64
	swap         SwapQuoter
	log          *zap.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithAvailability attaches platform availability probes.
func WithAvailability(availability Availability) Option {
	return func(c *Calculator) {
		c.availability = availability
	}
}

// WithBridgeQuoter attaches a bridge quoter and the source chains scanned for
// bridgeable balances.
func WithBridgeQuoter(quoter BridgeQuoter, sourceChainIDs ...uint64) Option {
	return func(c *Calculator) {
		c.bridge = quoter
		c.bridgeChains = sourceChainIDs
	}
}

// WithSwapQuoter attaches a swap quoter.
func WithSwapQuoter(quoter SwapQuoter) Option {
	return func(c *Calculator) {
		c.swap = quoter
	}
}

// WithLogger attaches a structured logger. The calculator is silent by
// default.
func WithLogger(log *zap.Logger) Option {
	return func(c *Calculator) {
		c.log = log
	}
}

// New creates a Calculator for the given checkout chain. tokens supplies the
// wallet's holdings scanned for funding sources.
func New(chainID uint64, tokens TokenReader, opts ...Option) *Calculator {
	c := &Calculator{
		chainID: chainID,
		tokens:  tokens,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Routes searches for funding routes closing every deficit. The ranking is
// stable and deterministic for identical inputs: bridge steps rank ahead of
// swaps, swaps ahead of on-ramp, and within a kind lower total fees win.
func (c *Calculator) Routes(ctx context.Context, owner common.Address, deficits []checkout.TransactionRequirement, opts checkout.AvailableRoutingOptions) (*checkout.RoutingOutcome, error) {
	enabled := c.effectiveOptions(ctx, opts)
	if !(enabled.Bridge || enabled.Swap || enabled.OnRamp) {
		return &checkout.RoutingOutcome{
			Type:    checkout.NoRouteOptions,
			Message: "no routing options are enabled or available",
		}, nil
	}

	// Candidate steps per deficit. A route must close every deficit, so a
	// single deficit without candidates sinks the whole search.
	candidates := make([][]checkout.FundingStep, len(deficits))
	for i, deficit := range deficits {
		candidates[i] = c.candidateSteps(ctx, owner, deficit, enabled)
		if len(candidates[i]) == 0 {
			return &checkout.RoutingOutcome{
				Type:    checkout.NoRoutesFound,
				Message: fmt.Sprintf("no funding route closes the %s shortfall", deficit.ItemType),
			}, nil
		}
		rankSteps(candidates[i])
	}

	// Route k pairs the k-th best candidate of each deficit, reusing the
	// last candidate of deficits with fewer options.
	routeCount := 0
	for _, steps := range candidates {
		if len(steps) > routeCount {
			routeCount = len(steps)
		}
	}

	routes := make([]checkout.FundingRoute, 0, routeCount)
	for k := 0; k < routeCount; k++ {
		steps := make([]checkout.FundingStep, 0, len(candidates))
		for _, options := range candidates {
			idx := k
			if idx >= len(options) {
				idx = len(options) - 1
			}
			steps = append(steps, options[idx])
		}
		routes = append(routes, checkout.FundingRoute{Priority: k + 1, Steps: steps})
	}

	c.log.Debug("funding route search complete",
		zap.Int("deficits", len(deficits)),
		zap.Int("routes", len(routes)))

	return &checkout.RoutingOutcome{Type: checkout.RoutesFound, Routes: routes}, nil
}

// effectiveOptions intersects the caller's configuration with the platform
// availability probes. A probe failure disables the option for this search.
func (c *Calculator) effectiveOptions(ctx context.Context, opts checkout.AvailableRoutingOptions) checkout.AvailableRoutingOptions {
	enabled := checkout.AvailableRoutingOptions{
		Bridge: opts.Bridge && c.bridge != nil,
		Swap:   opts.Swap && c.swap != nil,
		OnRamp: opts.OnRamp,
	}
	if c.availability == nil {
		return enabled
	}

	if enabled.Bridge {
		ok, err := c.availability.BridgeAvailable(ctx)
		if err != nil {
			c.log.Warn("bridge availability probe failed", zap.Error(err))
		}
		enabled.Bridge = err == nil && ok
	}
	if enabled.Swap {
		ok, err := c.availability.SwapAvailable(ctx)
		if err != nil {
			c.log.Warn("swap liquidity probe failed", zap.Error(err))
		}
		enabled.Swap = err == nil && ok
	}
	if enabled.OnRamp {
		ok, err := c.availability.OnRampAvailable(ctx)
		if err != nil {
			c.log.Warn("on-ramp availability probe failed", zap.Error(err))
		}
		enabled.OnRamp = err == nil && ok
	}
	return enabled
}

// candidateSteps collects every viable funding step for one deficit. Only
// fungible shortfalls are routable; NFT deficits yield no candidates.
func (c *Calculator) candidateSteps(ctx context.Context, owner common.Address, deficit checkout.TransactionRequirement, enabled checkout.AvailableRoutingOptions) []checkout.FundingStep {
	if deficit.ItemType != checkout.ItemTypeNative && deficit.ItemType != checkout.ItemTypeERC20 {
		return nil
	}

	var steps []checkout.FundingStep

	if enabled.Bridge {
		steps = append(steps, c.bridgeSteps(ctx, owner, deficit)...)
	}
	if enabled.Swap {
		steps = append(steps, c.swapSteps(ctx, owner, deficit)...)
	}
	if enabled.OnRamp {
		// Fiat is assumed always purchasable; availability flags already
		// gated the option itself.
		steps = append(steps, checkout.FundingStep{
			Type:    checkout.FundingStepOnRamp,
			ChainID: c.chainID,
			FundingItem: checkout.FundingItem{
				Token:  checkout.TokenInfo{Address: deficit.ContractAddress},
				Amount: new(big.Int).Set(deficit.Delta),
			},
		})
	}

	return steps
}

// bridgeSteps scans the wallet's balances of the deficient token on the
// configured source chains. A balance qualifies when it covers the shortfall
// plus the bridge's own fees in that token.
func (c *Calculator) bridgeSteps(ctx context.Context, owner common.Address, deficit checkout.TransactionRequirement) []checkout.FundingStep {
	var steps []checkout.FundingStep

	for _, sourceChain := range c.bridgeChains {
		if sourceChain == c.chainID {
			continue
		}

		balances, err := c.tokens.TokenBalances(ctx, owner, sourceChain)
		if err != nil {
			c.log.Warn("token balance scan failed",
				zap.Uint64("chainID", sourceChain), zap.Error(err))
			continue
		}

		for _, balance := range balances {
			if !matchesDeficit(balance.Token, deficit) {
				continue
			}

			quote, err := c.bridge.Quote(ctx, balance.Token, deficit.Delta, sourceChain, c.chainID)
			if err != nil {
				c.log.Warn("bridge quote failed",
					zap.String("token", balance.Token.Symbol), zap.Error(err))
				continue
			}

			required := new(big.Int).Set(deficit.Delta)
			required.Add(required, feeInToken(quote.ProtocolFee, balance.Token))
			required.Add(required, feeInToken(quote.GasFee, balance.Token))
			if balance.Balance.Cmp(required) < 0 {
				continue
			}

			steps = append(steps, checkout.FundingStep{
				Type:    checkout.FundingStepBridge,
				ChainID: sourceChain,
				FundingItem: checkout.FundingItem{
					Token:  balance.Token,
					Amount: new(big.Int).Set(deficit.Delta),
				},
				GasFee:      quote.GasFee,
				ProtocolFee: quote.ProtocolFee,
			})
		}
	}

	return steps
}

// swapSteps scans the wallet's other balances on the checkout chain for a
// token that can be swapped into the deficient one.
func (c *Calculator) swapSteps(ctx context.Context, owner common.Address, deficit checkout.TransactionRequirement) []checkout.FundingStep {
	balances, err := c.tokens.TokenBalances(ctx, owner, c.chainID)
	if err != nil {
		c.log.Warn("token balance scan failed",
			zap.Uint64("chainID", c.chainID), zap.Error(err))
		return nil
	}

	target := checkout.TokenInfo{Address: deficit.ContractAddress}

	var steps []checkout.FundingStep
	for _, balance := range balances {
		// The deficient token itself cannot fund its own shortfall.
		if matchesDeficit(balance.Token, deficit) {
			continue
		}

		quote, err := c.swap.Quote(ctx, balance.Token, target, deficit.Delta, c.chainID)
		if err != nil {
			c.log.Warn("swap quote failed",
				zap.String("token", balance.Token.Symbol), zap.Error(err))
			continue
		}

		required := new(big.Int).Set(quote.AmountIn)
		required.Add(required, feeInToken(quote.ProtocolFee, balance.Token))
		required.Add(required, feeInToken(quote.GasFee, balance.Token))
		if balance.Balance.Cmp(required) < 0 {
			continue
		}

		steps = append(steps, checkout.FundingStep{
			Type:    checkout.FundingStepSwap,
			ChainID: c.chainID,
			FundingItem: checkout.FundingItem{
				Token:  balance.Token,
				Amount: new(big.Int).Set(quote.AmountIn),
			},
			GasFee:      quote.GasFee,
			ProtocolFee: quote.ProtocolFee,
		})
	}

	return steps
}

// matchesDeficit reports whether a held token is the deficient asset.
func matchesDeficit(token checkout.TokenInfo, deficit checkout.TransactionRequirement) bool {
	if deficit.ItemType == checkout.ItemTypeNative {
		return token.IsNative()
	}
	return token.Address == deficit.ContractAddress
}

// feeInToken returns the fee amount when it is denominated in the candidate's
// own token, zero otherwise. Fees owed in other tokens do not reduce the
// candidate's capacity to cover the shortfall.
func feeInToken(fee checkout.Fee, token checkout.TokenInfo) *big.Int {
	if fee.Amount == nil || fee.Token.Address != token.Address {
		return new(big.Int)
	}
	return fee.Amount
}

// stepRank orders step kinds: bridging ranks ahead of swapping, swapping
// ahead of the on-ramp.
func stepRank(t checkout.FundingStepType) int {
	switch t {
	case checkout.FundingStepBridge:
		return 1
	case checkout.FundingStepSwap:
		return 2
	default:
		return 3
	}
}

func rankSteps(steps []checkout.FundingStep) {
	sort.SliceStable(steps, func(i, j int) bool {
		ri, rj := stepRank(steps[i].Type), stepRank(steps[j].Type)
		if ri != rj {
			return ri < rj
		}
		fi := (checkout.FundingRoute{Steps: steps[i : i+1]}).TotalFees()
		fj := (checkout.FundingRoute{Steps: steps[j : j+1]}).TotalFees()
		if cmp := fi.Cmp(fj); cmp != 0 {
			return cmp < 0
		}
		return steps[i].ChainID < steps[j].ChainID
	})
}
