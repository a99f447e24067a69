package checkout

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ItemType identifies the asset class of an item requirement.
type ItemType string

const (
	ItemTypeNative  ItemType = "NATIVE"
	ItemTypeERC20   ItemType = "ERC20"
	ItemTypeERC721  ItemType = "ERC721"
	ItemTypeERC1155 ItemType = "ERC1155"
)

// ItemRequirement is one unit of value that must be transferred or approved
// for a checkout to succeed. The set of implementations is closed:
// NativeItem, ERC20Item, ERC721Item and ERC1155Item. Consumers switch
// exhaustively on the concrete type; anything else is ErrCodeUnsupportedItem.
type ItemRequirement interface {
	// Type returns the asset class of the requirement.
	Type() ItemType

	// IsFee reports whether this entry is a marketplace-fee line item.
	// The flag is classification only; sufficiency logic never reads it.
	IsFee() bool
}

// NativeItem is a requirement for the chain's native coin.
type NativeItem struct {
	// Amount is the required amount in wei.
	Amount *big.Int

	// Fee marks the entry as a marketplace-fee line item.
	Fee bool
}

func (i NativeItem) Type() ItemType { return ItemTypeNative }
func (i NativeItem) IsFee() bool    { return i.Fee }

// ERC20Item is a requirement for a fungible token.
type ERC20Item struct {
	// Amount is the required amount in the token's smallest unit.
	Amount *big.Int

	// ContractAddress is the token contract.
	ContractAddress common.Address

	// SpenderAddress is the contract that must be approved to move the amount.
	SpenderAddress common.Address

	// Fee marks the entry as a marketplace-fee line item.
	Fee bool
}

func (i ERC20Item) Type() ItemType { return ItemTypeERC20 }
func (i ERC20Item) IsFee() bool    { return i.Fee }

// ERC721Item is a requirement for ownership of a single NFT.
type ERC721Item struct {
	// ContractAddress is the collection contract.
	ContractAddress common.Address

	// ID is the token id.
	ID *big.Int

	// SpenderAddress is the contract that must be approved to move the token.
	SpenderAddress common.Address
}

func (i ERC721Item) Type() ItemType { return ItemTypeERC721 }
func (i ERC721Item) IsFee() bool    { return false }

// ERC1155Item is a requirement for a quantity of a semi-fungible token.
type ERC1155Item struct {
	// ContractAddress is the collection contract.
	ContractAddress common.Address

	// ID is the token id.
	ID *big.Int

	// Amount is the required quantity of the token id.
	Amount *big.Int

	// SpenderAddress is the contract that must be approved to move the tokens.
	SpenderAddress common.Address
}

func (i ERC1155Item) Type() ItemType { return ItemTypeERC1155 }
func (i ERC1155Item) IsFee() bool    { return false }

// TokenInfo describes a token referenced by balances and funding steps.
type TokenInfo struct {
	// Address is the token contract address. The zero address denotes the
	// chain's native coin.
	Address common.Address

	// Symbol is the token symbol (e.g. "USDC", "ETH").
	Symbol string

	// Decimals is the number of decimal places for the token.
	Decimals int
}

// IsNative reports whether the token is the chain's native coin.
func (t TokenInfo) IsNative() bool { return t.Address == (common.Address{}) }

// TokenBalance is a wallet holding of one token, used by the routing
// calculator when scanning for funding sources.
type TokenBalance struct {
	Token   TokenInfo
	Balance *big.Int
	ChainID uint64
}

// TransactionRequest is an unsigned transaction produced by the engine or by
// the orderbook service, to be signed and broadcast by the caller's provider.
type TransactionRequest struct {
	From     common.Address
	To       *common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// TransactionRequirement is the per-item sufficiency verdict.
type TransactionRequirement struct {
	// ItemType is the asset class the verdict refers to.
	ItemType ItemType

	// Sufficient is true iff Delta.Sign() <= 0.
	Sufficient bool

	// Required is the amount the checkout needs.
	Required *big.Int

	// Current is the wallet's holding at check time.
	Current *big.Int

	// Delta is Required - Current. A negative delta means surplus.
	Delta *big.Int

	// ContractAddress is set for token items, zero for native.
	ContractAddress common.Address

	// ID is the token id for ERC721/ERC1155 items.
	ID *big.Int

	// IsFee carries the requirement's fee classification through to callers.
	IsFee bool
}

// Allowance is the per-ERC20-requirement spender approval verdict.
type Allowance struct {
	// Sufficient is true when the current allowance covers the requirement.
	Sufficient bool

	// Item is the requirement the verdict refers to.
	Item ERC20Item

	// Delta is the approval shortfall. Nil when sufficient.
	Delta *big.Int

	// ApprovalTransaction is an unsigned approve(spender, Delta) transaction
	// for the exact shortfall. Nil when sufficient. Callers may approve the
	// delta or the full amount at their discretion.
	ApprovalTransaction *TransactionRequest
}

// AvailableRoutingOptions enables or disables each funding-route kind.
type AvailableRoutingOptions struct {
	Bridge bool
	Swap   bool
	OnRamp bool
}

// FundingStepType identifies the action a funding step performs.
type FundingStepType string

const (
	FundingStepBridge FundingStepType = "BRIDGE"
	FundingStepSwap   FundingStepType = "SWAP"
	FundingStepOnRamp FundingStepType = "ONRAMP"
)

// Fee is an amount owed in a specific token, typically gas or a protocol fee.
type Fee struct {
	Amount *big.Int
	Token  TokenInfo
}

// FundingItem is the asset a funding step produces.
type FundingItem struct {
	Token  TokenInfo
	Amount *big.Int
}

// FundingStep is one action within a funding route.
type FundingStep struct {
	// Type is the action kind: bridge, swap or on-ramp.
	Type FundingStepType

	// ChainID is the chain the step executes on.
	ChainID uint64

	// FundingItem is the asset the step supplies.
	FundingItem FundingItem

	// GasFee is the estimated gas cost of executing the step.
	GasFee Fee

	// ProtocolFee is the bridge/swap/on-ramp service fee.
	ProtocolFee Fee
}

// FundingRoute is an ordered list of funding steps that would close a
// shortfall. Lower priority means more preferred.
type FundingRoute struct {
	Priority int
	Steps    []FundingStep
}

// TotalFees sums the route's gas and protocol fees across all steps.
func (r FundingRoute) TotalFees() *big.Int {
	total := new(big.Int)
	for _, step := range r.Steps {
		if step.GasFee.Amount != nil {
			total.Add(total, step.GasFee.Amount)
		}
		if step.ProtocolFee.Amount != nil {
			total.Add(total, step.ProtocolFee.Amount)
		}
	}
	return total
}

// RoutingOutcomeType tags the result of a funding-route search.
type RoutingOutcomeType string

const (
	// RoutesFound means at least one funding route closes every shortfall.
	RoutesFound RoutingOutcomeType = "ROUTES_FOUND"

	// NoRoutesFound means routing options were enabled but no route closes
	// every shortfall.
	NoRoutesFound RoutingOutcomeType = "NO_ROUTES_FOUND"

	// NoRouteOptions means every routing option was disabled or unavailable.
	NoRouteOptions RoutingOutcomeType = "NO_ROUTE_OPTIONS"
)

// RoutingOutcome is the result of a funding-route search. Absence of a route
// is a reportable value, never an error.
type RoutingOutcome struct {
	Type    RoutingOutcomeType
	Message string
	Routes  []FundingRoute
}

// Result is the combined smart-checkout verdict delivered to callers. Router
// is nil when funds are sufficient or when routing was not computed.
type Result struct {
	Sufficient              bool
	TransactionRequirements []TransactionRequirement
	Router                  *RoutingOutcome
}

// OrderFee is a marketplace fee specification: either a percentage of the
// order amount or a fixed amount in the asset's smallest unit. Exactly one of
// Percentage or Amount should be set.
type OrderFee struct {
	// Recipient receives the fee.
	Recipient common.Address

	// Percentage is a fractional fee of the base amount (0.025 = 2.5%),
	// expressed as a decimal string to avoid float drift. Empty when Amount
	// is set.
	Percentage string

	// Amount is a fixed fee in the asset's smallest unit. Nil when
	// Percentage is set.
	Amount *big.Int
}

// FeeAmount is a computed fee line: an integer amount owed to a recipient.
type FeeAmount struct {
	Recipient common.Address
	Amount    *big.Int
}
