package adaptor

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/types"
)

const (
	vaultAcct = "cellar:test"
	userAcct  = "alice"

	usdc = types.Asset("usdc")
	atom = types.Asset("atom")
)

func fixedRouter(t *testing.T) *oracle.FixedRouter {
	t.Helper()
	router := oracle.NewFixedRouter()
	for _, asset := range []types.Asset{usdc, atom} {
		if err := router.SetPrice(asset, sdkmath.LegacyOneDec(), 6); err != nil {
			t.Fatalf("SetPrice(%s): %v", asset, err)
		}
	}
	return router
}

func mustMarshal(t *testing.T, v any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

func mint(t *testing.T, book *ledger.Book, account string, asset types.Asset, amount int64) {
	t.Helper()
	if err := book.Mint(account, asset, sdkmath.NewInt(amount)); err != nil {
		t.Fatalf("Mint: %v", err)
	}
}

func TestDepositRequiresPrivilegedContext(t *testing.T) {
	book := ledger.NewBook()
	market := integrations.NewLendingMarket("lendex", book, usdc)
	mint(t, book, vaultAcct, usdc, 1000)

	config := mustMarshal(t, LendingConfig{Supplier: vaultAcct, Liquid: true})
	ad := NewLendingAdaptor("lendex", market)

	err := ad.Deposit(NewVaultContext(vaultAcct), sdkmath.NewInt(100), config)
	if !errors.Is(err, ErrUserDepositsNotAllowed) {
		t.Errorf("unprivileged deposit: got %v, want ErrUserDepositsNotAllowed", err)
	}
	if err := ad.Deposit(NewPrivilegedContext(vaultAcct), sdkmath.NewInt(100), config); err != nil {
		t.Errorf("privileged deposit: %v", err)
	}
	if got := market.BalanceOf(vaultAcct); !got.Equal(sdkmath.NewInt(100)) {
		t.Errorf("market balance = %s, want 100", got)
	}
}

func TestIlliquidConfigBlocksWithdrawals(t *testing.T) {
	book := ledger.NewBook()
	market := integrations.NewLendingMarket("lendex", book, usdc)
	mint(t, book, vaultAcct, usdc, 1000)

	ad := NewLendingAdaptor("lendex", market)
	config := mustMarshal(t, LendingConfig{Supplier: vaultAcct, Liquid: false})
	if err := ad.Deposit(NewPrivilegedContext(vaultAcct), sdkmath.NewInt(500), config); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	if err := ad.Withdraw(sdkmath.NewInt(100), userAcct, config, nil); !errors.Is(err, ErrUserWithdrawsNotAllowed) {
		t.Errorf("illiquid withdraw: got %v, want ErrUserWithdrawsNotAllowed", err)
	}
	if got, _ := ad.WithdrawableFrom(config, nil); !got.IsZero() {
		t.Errorf("WithdrawableFrom = %s for illiquid config, want 0", got)
	}
	// The balance still counts toward valuation.
	if got, _ := ad.BalanceOf(config); !got.Equal(sdkmath.NewInt(500)) {
		t.Errorf("BalanceOf = %s, want 500", got)
	}
}

func TestExtraDataOverridesLiquidity(t *testing.T) {
	book := ledger.NewBook()
	market := integrations.NewLendingMarket("lendex", book, usdc)
	mint(t, book, vaultAcct, usdc, 1000)

	ad := NewLendingAdaptor("lendex", market)
	config := mustMarshal(t, LendingConfig{Supplier: vaultAcct, Liquid: true})
	if err := ad.Deposit(NewPrivilegedContext(vaultAcct), sdkmath.NewInt(500), config); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	// Extra data closes an otherwise liquid position for this call.
	if err := ad.Withdraw(sdkmath.NewInt(100), userAcct, config, []byte(`{"liquid":false}`)); !errors.Is(err, ErrUserWithdrawsNotAllowed) {
		t.Errorf("extra-restricted withdraw: got %v, want ErrUserWithdrawsNotAllowed", err)
	}
	if err := ad.Withdraw(sdkmath.NewInt(100), userAcct, config, []byte(`{"liquid":true}`)); err != nil {
		t.Errorf("extra-confirmed withdraw: %v", err)
	}

	// And opens an illiquid one. Only the rebalance path ever supplies
	// extra data, so the override stays strategist-only.
	illiquid := mustMarshal(t, LendingConfig{Supplier: vaultAcct, Liquid: false})
	if err := ad.Withdraw(sdkmath.NewInt(100), userAcct, illiquid, nil); !errors.Is(err, ErrUserWithdrawsNotAllowed) {
		t.Errorf("illiquid config without override: got %v, want ErrUserWithdrawsNotAllowed", err)
	}
	if err := ad.Withdraw(sdkmath.NewInt(100), userAcct, illiquid, []byte(`{"liquid":true}`)); err != nil {
		t.Errorf("extra-opened withdraw: %v", err)
	}
}

func TestInvalidConfigRejected(t *testing.T) {
	book := ledger.NewBook()
	ad := NewHoldingAdaptor("holding", book)

	if _, err := ad.BalanceOf([]byte(`{not json`)); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("broken config: got %v, want ErrInvalidConfig", err)
	}
}

func TestSwapAdaptorEnforcesMinOut(t *testing.T) {
	book := ledger.NewBook()
	venue := integrations.NewSwapVenue("dex", book, sdkmath.LegacyZeroDec())
	if err := venue.SetRate(usdc, atom, sdkmath.LegacyNewDecWithPrec(5, 1)); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	mint(t, book, vaultAcct, usdc, 1000)
	mint(t, book, venue.Account(), atom, 1000)

	ad := NewSwapAdaptor("dex", venue, usdc)
	config := mustMarshal(t, SwapConfig{Account: vaultAcct})

	// 100 usdc at 0.5 yields 50 atom, below the 60 minimum.
	params := mustMarshal(t, SwapParams{From: usdc, To: atom, AmountIn: sdkmath.NewInt(100), MinOut: sdkmath.NewInt(60)})
	if err := ad.Call(NewPrivilegedContext(vaultAcct), SwapOpSwap, params, config); !errors.Is(err, ErrSlippage) {
		t.Errorf("slippage breach: got %v, want ErrSlippage", err)
	}

	params = mustMarshal(t, SwapParams{From: usdc, To: atom, AmountIn: sdkmath.NewInt(100), MinOut: sdkmath.NewInt(50)})
	if err := ad.Call(NewPrivilegedContext(vaultAcct), SwapOpSwap, params, config); err != nil {
		t.Errorf("swap at minimum: %v", err)
	}
	if err := ad.Call(NewVaultContext(vaultAcct), SwapOpSwap, params, config); !errors.Is(err, ErrUserDepositsNotAllowed) {
		t.Errorf("unprivileged swap: got %v, want ErrUserDepositsNotAllowed", err)
	}
}

func TestSwapAdaptorMultihopGuardsFinalLeg(t *testing.T) {
	book := ledger.NewBook()
	venue := integrations.NewSwapVenue("dex", book, sdkmath.LegacyZeroDec())
	wbtc := types.Asset("wbtc")
	if err := venue.SetRate(usdc, atom, sdkmath.LegacyNewDec(2)); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	if err := venue.SetRate(atom, wbtc, sdkmath.LegacyNewDecWithPrec(5, 1)); err != nil {
		t.Fatalf("SetRate: %v", err)
	}
	mint(t, book, vaultAcct, usdc, 1000)
	mint(t, book, venue.Account(), atom, 10_000)
	mint(t, book, venue.Account(), wbtc, 10_000)

	ad := NewSwapAdaptor("dex", venue, usdc)
	config := mustMarshal(t, SwapConfig{Account: vaultAcct})

	// 100 usdc -> 200 atom -> 100 wbtc.
	params := mustMarshal(t, MultihopParams{Path: []types.Asset{usdc, atom, wbtc}, AmountIn: sdkmath.NewInt(100), MinOut: sdkmath.NewInt(100)})
	if err := ad.Call(NewPrivilegedContext(vaultAcct), SwapOpMultihop, params, config); err != nil {
		t.Fatalf("multihop: %v", err)
	}
	if got := book.BalanceOf(vaultAcct, wbtc); !got.Equal(sdkmath.NewInt(100)) {
		t.Errorf("wbtc out = %s, want 100", got)
	}

	params = mustMarshal(t, MultihopParams{Path: []types.Asset{usdc}, AmountIn: sdkmath.NewInt(100), MinOut: sdkmath.ZeroInt()})
	if err := ad.Call(NewPrivilegedContext(vaultAcct), SwapOpMultihop, params, config); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("single-asset path: got %v, want ErrInvalidConfig", err)
	}
}

func TestVestingAdaptorClaimsLinearly(t *testing.T) {
	book := ledger.NewBook()
	start := time.Unix(1_700_000_000, 0)
	now := start
	clock := func() time.Time { return now }

	stream := integrations.NewVestingStream("grant", book, usdc, sdkmath.NewInt(1000), start, 100*time.Second, clock)
	mint(t, book, stream.Account(), usdc, 1000)

	ad := NewVestingAdaptor("grant", stream)
	config := mustMarshal(t, VestingConfig{Recipient: vaultAcct})

	// Nothing vested at the start.
	noAmount := mustMarshal(t, map[string]any{})
	if err := ad.Call(NewPrivilegedContext(vaultAcct), VestingOpClaim, noAmount, config); err == nil {
		t.Error("claim before any vesting succeeded")
	}

	// Halfway through: 500 claimable; an omitted amount sweeps it all.
	now = start.Add(50 * time.Second)
	if err := ad.Call(NewPrivilegedContext(vaultAcct), VestingOpClaim, noAmount, config); err != nil {
		t.Fatalf("claim at halfway: %v", err)
	}
	if got := book.BalanceOf(vaultAcct, usdc); !got.Equal(sdkmath.NewInt(500)) {
		t.Errorf("claimed %s, want 500", got)
	}

	// The remainder still counts toward valuation but is not withdrawable.
	if got, _ := ad.BalanceOf(config); !got.Equal(sdkmath.NewInt(500)) {
		t.Errorf("BalanceOf = %s after claim, want 500", got)
	}
	if got, _ := ad.WithdrawableFrom(config, nil); !got.IsZero() {
		t.Errorf("WithdrawableFrom = %s, want 0", got)
	}
	if err := ad.Withdraw(sdkmath.NewInt(1), vaultAcct, config, nil); !errors.Is(err, ErrUserWithdrawsNotAllowed) {
		t.Errorf("user withdraw on vesting: got %v, want ErrUserWithdrawsNotAllowed", err)
	}

	if err := ad.Call(NewPrivilegedContext(vaultAcct), "sweep", noAmount, config); !errors.Is(err, ErrUnsupportedOp) {
		t.Errorf("unknown op: got %v, want ErrUnsupportedOp", err)
	}
}

func TestPoolAdaptorAccountsForExitFee(t *testing.T) {
	book := ledger.NewBook()
	// 2% exit fee.
	pool := integrations.NewLiquidityPool("amm", book, usdc, sdkmath.LegacyNewDecWithPrec(2, 2))
	mint(t, book, vaultAcct, usdc, 1000)

	ad := NewPoolAdaptor("amm", pool)
	config := mustMarshal(t, PoolConfig{Staker: vaultAcct, Liquid: true})
	if err := ad.Deposit(NewPrivilegedContext(vaultAcct), sdkmath.NewInt(1000), config); err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	// Full stake exits to 980 net of fee.
	if got, _ := ad.WithdrawableFrom(config, nil); !got.Equal(sdkmath.NewInt(980)) {
		t.Errorf("WithdrawableFrom = %s, want 980", got)
	}

	// Delivering 98 requires burning 100 shares.
	if err := ad.Withdraw(sdkmath.NewInt(98), userAcct, config, nil); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got := book.BalanceOf(userAcct, usdc); !got.Equal(sdkmath.NewInt(98)) {
		t.Errorf("user received %s, want 98", got)
	}
	if got := pool.SharesOf(vaultAcct); !got.Equal(sdkmath.NewInt(900)) {
		t.Errorf("remaining shares = %s, want 900", got)
	}
}

func TestDebtAdaptorRefusesUserFlows(t *testing.T) {
	book := ledger.NewBook()
	router := fixedRouter(t)
	market := integrations.NewBorrowMarket("lev", book, router, usdc, atom)
	ad := NewDebtAdaptor("lev_debt", market)
	config := mustMarshal(t, DebtConfig{Borrower: vaultAcct})

	if err := ad.Deposit(NewPrivilegedContext(vaultAcct), sdkmath.NewInt(1), config); !errors.Is(err, ErrUserDepositsNotAllowed) {
		t.Errorf("deposit on debt: got %v, want ErrUserDepositsNotAllowed", err)
	}
	if err := ad.Withdraw(sdkmath.NewInt(1), userAcct, config, nil); !errors.Is(err, ErrUserWithdrawsNotAllowed) {
		t.Errorf("withdraw on debt: got %v, want ErrUserWithdrawsNotAllowed", err)
	}
	if !ad.IsDebt() {
		t.Error("debt adaptor does not report IsDebt")
	}

	assets, err := ad.AssetsUsed(config)
	if err != nil || len(assets) != 2 {
		t.Errorf("AssetsUsed = %v, %v; want both market assets", assets, err)
	}

	// No debt: health factor is effectively infinite.
	hf, err := ad.HealthFactor(config)
	if err != nil {
		t.Fatalf("HealthFactor: %v", err)
	}
	if !hf.Equal(sdkmath.LegacyMaxSortableDec) {
		t.Errorf("HealthFactor with no debt = %s, want max", hf)
	}
}

func TestWrappedNativeAdaptorRoundTrip(t *testing.T) {
	book := ledger.NewBook()
	native, wrapped := types.Asset("elys"), types.Asset("welys")
	bridge := integrations.NewWrappedNative("bridge", book, native, wrapped)
	mint(t, book, vaultAcct, native, 1000)

	ad := NewWrappedNativeAdaptor("bridge", bridge, book)
	config := mustMarshal(t, WrappedNativeConfig{Account: vaultAcct})

	wrapParams := mustMarshal(t, map[string]any{"amount": "600"})
	if err := ad.Call(NewPrivilegedContext(vaultAcct), WrapOpWrap, wrapParams, config); err != nil {
		t.Fatalf("wrap: %v", err)
	}
	if got := book.BalanceOf(vaultAcct, wrapped); !got.Equal(sdkmath.NewInt(600)) {
		t.Errorf("wrapped balance = %s, want 600", got)
	}
	if got, _ := ad.BalanceOf(config); !got.Equal(sdkmath.NewInt(600)) {
		t.Errorf("BalanceOf = %s, want 600", got)
	}

	// Withdraw unwraps back to native for the recipient.
	if err := ad.Withdraw(sdkmath.NewInt(200), userAcct, config, nil); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if got := book.BalanceOf(userAcct, native); !got.Equal(sdkmath.NewInt(200)) {
		t.Errorf("user native = %s, want 200", got)
	}
}
