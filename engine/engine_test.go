package engine

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	checkout "github.com/mark3labs/checkout-go"
	"github.com/mark3labs/checkout-go/evm"
	"github.com/mark3labs/checkout-go/retry"
)

var (
	testOwner   = common.HexToAddress("0xaAaAaAaaAaAaAaaAaAAAAAAAAaaaAaAaAaaAaaAa")
	testToken   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testSpender = common.HexToAddress("0x2222222222222222222222222222222222222222")
)

// mockProvider implements checkout.Provider with overridable behavior.
// Unset funcs return zero balances and a 1 wei gas price.
type mockProvider struct {
	nativeBalance  func(owner common.Address) (*big.Int, error)
	erc20Balance   func(owner, token common.Address) (*big.Int, error)
	erc721Balance  func(owner, contract common.Address, id *big.Int) (*big.Int, error)
	erc1155Balance func(owner, contract common.Address, id *big.Int) (*big.Int, error)
	allowance      func(token, owner, spender common.Address) (*big.Int, error)
	estimateGas    func(tx *checkout.TransactionRequest) (uint64, error)
	gasPrice       func() (*big.Int, error)
}

func (m *mockProvider) NativeBalance(_ context.Context, owner common.Address) (*big.Int, error) {
	if m.nativeBalance != nil {
		return m.nativeBalance(owner)
	}
	return new(big.Int), nil
}

func (m *mockProvider) ERC20Balance(_ context.Context, owner, token common.Address) (*big.Int, error) {
	if m.erc20Balance != nil {
		return m.erc20Balance(owner, token)
	}
	return new(big.Int), nil
}

func (m *mockProvider) ERC721Balance(_ context.Context, owner, contract common.Address, id *big.Int) (*big.Int, error) {
	if m.erc721Balance != nil {
		return m.erc721Balance(owner, contract, id)
	}
	return new(big.Int), nil
}

func (m *mockProvider) ERC1155Balance(_ context.Context, owner, contract common.Address, id *big.Int) (*big.Int, error) {
	if m.erc1155Balance != nil {
		return m.erc1155Balance(owner, contract, id)
	}
	return new(big.Int), nil
}

func (m *mockProvider) Allowance(_ context.Context, token, owner, spender common.Address) (*big.Int, error) {
	if m.allowance != nil {
		return m.allowance(token, owner, spender)
	}
	return new(big.Int), nil
}

func (m *mockProvider) EstimateGas(_ context.Context, tx *checkout.TransactionRequest) (uint64, error) {
	if m.estimateGas != nil {
		return m.estimateGas(tx)
	}
	return 21000, nil
}

func (m *mockProvider) SuggestGasPrice(_ context.Context) (*big.Int, error) {
	if m.gasPrice != nil {
		return m.gasPrice()
	}
	return big.NewInt(1), nil
}

func (m *mockProvider) Address(_ context.Context) (common.Address, error) {
	return testOwner, nil
}

func (m *mockProvider) SignAndSend(_ context.Context, _ *checkout.TransactionRequest) (common.Hash, error) {
	return common.Hash{}, errors.New("not implemented")
}

func (m *mockProvider) SignTypedData(_ context.Context, _ apitypes.TypedData) (string, error) {
	return "", errors.New("not implemented")
}

func (m *mockProvider) WaitMined(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	return nil, errors.New("not implemented")
}

// mockCalculator counts invocations and returns a canned outcome.
type mockCalculator struct {
	calls   atomic.Int32
	outcome *checkout.RoutingOutcome
	err     error
	block   chan struct{}
}

func (m *mockCalculator) Routes(ctx context.Context, _ common.Address, _ []checkout.TransactionRequirement, _ checkout.AvailableRoutingOptions) (*checkout.RoutingOutcome, error) {
	m.calls.Add(1)
	if m.block != nil {
		select {
		case <-m.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return m.outcome, m.err
}

func fastPolicy() retry.Policy {
	return retry.Policy{Retries: 0, Interval: time.Millisecond}
}

func TestCheckSufficiencyNative(t *testing.T) {
	provider := &mockProvider{
		nativeBalance: func(common.Address) (*big.Int, error) { return big.NewInt(500), nil },
	}
	eng, err := New(provider, WithRetryPolicy(fastPolicy()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	items := []checkout.ItemRequirement{checkout.NativeItem{Amount: big.NewInt(100)}}
	result, err := eng.CheckSufficiency(context.Background(), items, nil)
	if err != nil {
		t.Fatalf("CheckSufficiency: %v", err)
	}

	if !result.Sufficient {
		t.Error("expected sufficient verdict")
	}
	if len(result.TransactionRequirements) != 1 {
		t.Fatalf("expected 1 requirement, got %d", len(result.TransactionRequirements))
	}
	req := result.TransactionRequirements[0]
	if req.Delta.Cmp(big.NewInt(-400)) != 0 {
		t.Errorf("delta = %s, want -400", req.Delta)
	}
	if !req.Sufficient {
		t.Error("surplus requirement should be sufficient")
	}
}

func TestCheckSufficiencyFoldsGasItem(t *testing.T) {
	provider := &mockProvider{
		nativeBalance: func(common.Address) (*big.Int, error) { return big.NewInt(1000), nil },
		gasPrice:      func() (*big.Int, error) { return big.NewInt(2), nil },
	}
	eng, err := New(provider, WithRetryPolicy(fastPolicy()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	items := []checkout.ItemRequirement{checkout.NativeItem{Amount: big.NewInt(100)}}
	result, err := eng.CheckSufficiency(context.Background(), items, &Gas{Limit: 50})
	if err != nil {
		t.Fatalf("CheckSufficiency: %v", err)
	}

	// The purchase item and the gas item stay separate entries.
	if len(result.TransactionRequirements) != 2 {
		t.Fatalf("expected 2 requirements, got %d", len(result.TransactionRequirements))
	}
	gasReq := result.TransactionRequirements[1]
	if gasReq.Required.Cmp(big.NewInt(100)) != 0 {
		t.Errorf("gas requirement = %s, want 100 (50 gas at 2 wei)", gasReq.Required)
	}
	if !result.Sufficient {
		t.Error("expected sufficient verdict")
	}
}

func TestCheckSufficiencyGasEstimatedFromTransaction(t *testing.T) {
	var estimated atomic.Int32
	provider := &mockProvider{
		nativeBalance: func(common.Address) (*big.Int, error) { return big.NewInt(1_000_000), nil },
		estimateGas: func(tx *checkout.TransactionRequest) (uint64, error) {
			estimated.Add(1)
			return 30000, nil
		},
		gasPrice: func() (*big.Int, error) { return big.NewInt(1), nil },
	}
	eng, err := New(provider, WithRetryPolicy(fastPolicy()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	to := testSpender
	gas := &Gas{Transaction: &checkout.TransactionRequest{From: testOwner, To: &to}}
	result, err := eng.CheckSufficiency(context.Background(), nil, gas)
	if err != nil {
		t.Fatalf("CheckSufficiency: %v", err)
	}
	if estimated.Load() != 1 {
		t.Errorf("EstimateGas calls = %d, want 1", estimated.Load())
	}
	if len(result.TransactionRequirements) != 1 {
		t.Fatalf("expected 1 requirement, got %d", len(result.TransactionRequirements))
	}
	if result.TransactionRequirements[0].Required.Cmp(big.NewInt(30000)) != 0 {
		t.Errorf("gas requirement = %s, want 30000", result.TransactionRequirements[0].Required)
	}
}

func TestCheckSufficiencyAllowanceShortfall(t *testing.T) {
	provider := &mockProvider{
		erc20Balance: func(common.Address, common.Address) (*big.Int, error) { return big.NewInt(100), nil },
		allowance:    func(common.Address, common.Address, common.Address) (*big.Int, error) { return big.NewInt(30), nil },
	}
	eng, err := New(provider, WithRetryPolicy(fastPolicy()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	items := []checkout.ItemRequirement{checkout.ERC20Item{
		Amount:          big.NewInt(100),
		ContractAddress: testToken,
		SpenderAddress:  testSpender,
	}}
	result, err := eng.CheckSufficiency(context.Background(), items, nil)
	if err != nil {
		t.Fatalf("CheckSufficiency: %v", err)
	}

	if !result.Sufficient {
		t.Error("balance covers the item; verdict should be sufficient")
	}
	if len(result.Allowances) != 1 {
		t.Fatalf("expected 1 allowance verdict, got %d", len(result.Allowances))
	}
	allowance := result.Allowances[0]
	if allowance.Sufficient {
		t.Error("allowance of 30 cannot cover 100")
	}
	if allowance.Delta.Cmp(big.NewInt(70)) != 0 {
		t.Errorf("allowance delta = %s, want 70", allowance.Delta)
	}
	if allowance.ApprovalTransaction == nil {
		t.Fatal("expected an unsigned approval transaction")
	}
	if allowance.ApprovalTransaction.From != testOwner {
		t.Errorf("approval from = %s, want owner", allowance.ApprovalTransaction.From)
	}
	if *allowance.ApprovalTransaction.To != testToken {
		t.Errorf("approval to = %s, want token contract", allowance.ApprovalTransaction.To)
	}
	if len(allowance.ApprovalTransaction.Data) == 0 {
		t.Error("approval calldata is empty")
	}
}

func TestCheckSufficiencyRaisingBalanceFlipsVerdict(t *testing.T) {
	balance := big.NewInt(40)
	provider := &mockProvider{
		erc20Balance: func(common.Address, common.Address) (*big.Int, error) {
			return new(big.Int).Set(balance), nil
		},
		allowance: func(common.Address, common.Address, common.Address) (*big.Int, error) {
			return big.NewInt(1000), nil
		},
	}
	eng, err := New(provider, WithRetryPolicy(fastPolicy()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	items := []checkout.ItemRequirement{checkout.ERC20Item{
		Amount:          big.NewInt(100),
		ContractAddress: testToken,
		SpenderAddress:  testSpender,
	}}

	result, err := eng.CheckSufficiency(context.Background(), items, nil)
	if err != nil {
		t.Fatalf("CheckSufficiency: %v", err)
	}
	if result.Sufficient {
		t.Fatal("40 of 100 should be insufficient")
	}
	deficit := result.TransactionRequirements[0].Delta
	if deficit.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("delta = %s, want 60", deficit)
	}

	// Raise the holding by exactly the reported delta and re-check.
	balance.Add(balance, deficit)
	result, err = eng.CheckSufficiency(context.Background(), items, nil)
	if err != nil {
		t.Fatalf("CheckSufficiency after top-up: %v", err)
	}
	if !result.Sufficient {
		t.Error("holding raised by the delta should be sufficient")
	}
}

func TestComputeRoutesWithoutCalculator(t *testing.T) {
	eng, err := New(&mockProvider{}, WithRetryPolicy(fastPolicy()),
		WithRoutingOptions(checkout.AvailableRoutingOptions{Bridge: true}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := eng.ComputeRoutes(context.Background(), []checkout.TransactionRequirement{
		{ItemType: checkout.ItemTypeNative, Delta: big.NewInt(10)},
	}, nil)
	if err != nil {
		t.Fatalf("ComputeRoutes: %v", err)
	}
	if outcome.Type != checkout.NoRouteOptions {
		t.Errorf("outcome = %s, want NO_ROUTE_OPTIONS", outcome.Type)
	}
}

func TestComputeRoutesAllOptionsDisabled(t *testing.T) {
	calc := &mockCalculator{outcome: &checkout.RoutingOutcome{Type: checkout.RoutesFound}}
	eng, err := New(&mockProvider{}, WithRetryPolicy(fastPolicy()), WithRouteCalculator(calc))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	outcome, err := eng.ComputeRoutes(context.Background(), []checkout.TransactionRequirement{
		{ItemType: checkout.ItemTypeNative, Delta: big.NewInt(10)},
	}, nil)
	if err != nil {
		t.Fatalf("ComputeRoutes: %v", err)
	}
	if outcome.Type != checkout.NoRouteOptions {
		t.Errorf("outcome = %s, want NO_ROUTE_OPTIONS", outcome.Type)
	}
	if calc.calls.Load() != 0 {
		t.Errorf("calculator called %d times with all options disabled", calc.calls.Load())
	}
}

func TestComputeRoutesOverrideReplacesDefaults(t *testing.T) {
	calc := &mockCalculator{outcome: &checkout.RoutingOutcome{Type: checkout.RoutesFound}}
	eng, err := New(&mockProvider{}, WithRetryPolicy(fastPolicy()), WithRouteCalculator(calc),
		WithRoutingOptions(checkout.AvailableRoutingOptions{Bridge: true, Swap: true}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	disabled := &checkout.AvailableRoutingOptions{}
	outcome, err := eng.ComputeRoutes(context.Background(), []checkout.TransactionRequirement{
		{ItemType: checkout.ItemTypeNative, Delta: big.NewInt(10)},
	}, disabled)
	if err != nil {
		t.Fatalf("ComputeRoutes: %v", err)
	}
	if outcome.Type != checkout.NoRouteOptions {
		t.Errorf("override disabling all options should yield NO_ROUTE_OPTIONS, got %s", outcome.Type)
	}
}

func TestSmartCheckoutSufficientSkipsRouting(t *testing.T) {
	provider := &mockProvider{
		nativeBalance: func(common.Address) (*big.Int, error) { return big.NewInt(1000), nil },
	}
	calc := &mockCalculator{outcome: &checkout.RoutingOutcome{Type: checkout.RoutesFound}}
	eng, err := New(provider, WithRetryPolicy(fastPolicy()), WithRouteCalculator(calc),
		WithRoutingOptions(checkout.AvailableRoutingOptions{Bridge: true}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var callbacks atomic.Int32
	items := []checkout.ItemRequirement{checkout.NativeItem{Amount: big.NewInt(100)}}
	result, err := eng.SmartCheckout(context.Background(), items, nil, nil, func(*checkout.Result) {
		callbacks.Add(1)
	})
	if err != nil {
		t.Fatalf("SmartCheckout: %v", err)
	}
	if !result.Sufficient {
		t.Fatal("expected sufficient verdict")
	}
	if result.Router != nil {
		t.Error("sufficient result should carry no routing outcome")
	}

	time.Sleep(50 * time.Millisecond)
	if callbacks.Load() != 0 {
		t.Error("callback fired for a sufficient checkout")
	}
	if calc.calls.Load() != 0 {
		t.Error("route calculator probed for a sufficient checkout")
	}
}

func TestSmartCheckoutDeliversRoutesInBackground(t *testing.T) {
	provider := &mockProvider{
		nativeBalance: func(common.Address) (*big.Int, error) { return big.NewInt(10), nil },
	}
	calc := &mockCalculator{outcome: &checkout.RoutingOutcome{
		Type:   checkout.RoutesFound,
		Routes: []checkout.FundingRoute{{Priority: 1}},
	}}
	eng, err := New(provider, WithRetryPolicy(fastPolicy()), WithRouteCalculator(calc),
		WithRoutingOptions(checkout.AvailableRoutingOptions{Bridge: true}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	delivered := make(chan *checkout.Result, 1)
	items := []checkout.ItemRequirement{checkout.NativeItem{Amount: big.NewInt(100)}}
	result, err := eng.SmartCheckout(context.Background(), items, nil, nil, func(r *checkout.Result) {
		delivered <- r
	})
	if err != nil {
		t.Fatalf("SmartCheckout: %v", err)
	}
	if result.Sufficient {
		t.Fatal("expected insufficient verdict")
	}
	if result.Router != nil {
		t.Error("prompt result should not carry routing; it arrives via the callback")
	}

	select {
	case enriched := <-delivered:
		if enriched.Router == nil || enriched.Router.Type != checkout.RoutesFound {
			t.Errorf("enriched result routing = %+v, want ROUTES_FOUND", enriched.Router)
		}
		if enriched.Sufficient {
			t.Error("enriched result should remain insufficient")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback never delivered")
	}
}

func TestSmartCheckoutCancellationSuppressesCallback(t *testing.T) {
	provider := &mockProvider{
		nativeBalance: func(common.Address) (*big.Int, error) { return big.NewInt(10), nil },
	}
	calc := &mockCalculator{
		outcome: &checkout.RoutingOutcome{Type: checkout.RoutesFound},
		block:   make(chan struct{}),
	}
	eng, err := New(provider, WithRetryPolicy(fastPolicy()), WithRouteCalculator(calc),
		WithRoutingOptions(checkout.AvailableRoutingOptions{Bridge: true}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	var callbacks atomic.Int32
	items := []checkout.ItemRequirement{checkout.NativeItem{Amount: big.NewInt(100)}}
	if _, err := eng.SmartCheckout(ctx, items, nil, nil, func(*checkout.Result) {
		callbacks.Add(1)
	}); err != nil {
		t.Fatalf("SmartCheckout: %v", err)
	}

	// The calculator blocks until cancellation; the abandoned search must
	// not surface through the callback.
	cancel()
	time.Sleep(50 * time.Millisecond)
	if callbacks.Load() != 0 {
		t.Error("callback fired after cancellation")
	}
}

func TestCheckSufficiencyERC721RevertReadsAsNotHeld(t *testing.T) {
	provider := &mockProvider{
		erc721Balance: func(common.Address, common.Address, *big.Int) (*big.Int, error) {
			return nil, errors.New("execution reverted: ERC721: invalid token ID")
		},
	}
	policy := fastPolicy()
	policy.NonRetryableSilently = evm.IsRevert
	eng, err := New(provider, WithRetryPolicy(policy))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	items := []checkout.ItemRequirement{checkout.ERC721Item{ContractAddress: testToken, ID: big.NewInt(7)}}
	result, err := eng.CheckSufficiency(context.Background(), items, nil)
	if err != nil {
		t.Fatalf("CheckSufficiency: %v", err)
	}

	if result.Sufficient {
		t.Error("reverting ownerOf should read as not held")
	}
	req := result.TransactionRequirements[0]
	if req.Current.Sign() != 0 {
		t.Errorf("current = %s, want 0", req.Current)
	}
	if req.Delta.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("delta = %s, want 1", req.Delta)
	}
}

func TestCheckSufficiencyERC721TransportErrorFails(t *testing.T) {
	provider := &mockProvider{
		erc721Balance: func(common.Address, common.Address, *big.Int) (*big.Int, error) {
			return nil, errors.New("dial tcp: connection refused")
		},
	}
	policy := fastPolicy()
	policy.NonRetryableSilently = evm.IsRevert
	eng, err := New(provider, WithRetryPolicy(policy))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	items := []checkout.ItemRequirement{checkout.ERC721Item{ContractAddress: testToken, ID: big.NewInt(7)}}
	_, err = eng.CheckSufficiency(context.Background(), items, nil)
	if err == nil {
		t.Fatal("expected transport failure to surface")
	}
	var checkoutErr *checkout.CheckoutError
	if !errors.As(err, &checkoutErr) || checkoutErr.Code != checkout.ErrCodeGetBalance {
		t.Errorf("expected %s error, got %v", checkout.ErrCodeGetBalance, err)
	}
}

func TestNewRequiresProvider(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, checkout.ErrNoProvider) {
		t.Errorf("expected ErrNoProvider, got %v", err)
	}
}
