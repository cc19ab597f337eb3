package cellar

import (
	"encoding/json"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/adaptor"
	"github.com/cellar-network/cellar/internal/types"
)

// buildInnerVault creates a second vault on the same ledger and registry
// with its own holding position.
func buildInnerVault(t *testing.T, env *testEnv) *Vault {
	t.Helper()

	inner, err := New(Config{
		Name:               "inner",
		BaseAsset:          usdc,
		Governance:         gov,
		Strategist:         strat,
		Registry:           env.registry,
		Book:               env.book,
		RebalanceDeviation: sdkmath.LegacyNewDecWithPrec(1, 2),
		Now:                env.clock.Now,
	})
	if err != nil {
		t.Fatalf("New(inner): %v", err)
	}

	holding := adaptor.NewHoldingAdaptor("inner_holding", env.book)
	if err := env.registry.TrustAdaptor(gov, holding); err != nil {
		t.Fatalf("TrustAdaptor(inner_holding): %v", err)
	}
	config, _ := json.Marshal(adaptor.HoldingConfig{Account: inner.Account(), Asset: usdc})
	id, err := env.registry.TrustPosition(gov, "inner_holding", config)
	if err != nil {
		t.Fatalf("TrustPosition(inner_holding): %v", err)
	}
	if err := inner.AddAdaptorToCatalogue(gov, "inner_holding"); err != nil {
		t.Fatalf("AddAdaptorToCatalogue: %v", err)
	}
	if err := inner.AddPositionToCatalogue(gov, id); err != nil {
		t.Fatalf("AddPositionToCatalogue: %v", err)
	}
	if err := inner.AddPosition(strat, 0, id, false); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}
	if err := inner.SetHoldingPosition(strat, id); err != nil {
		t.Fatalf("SetHoldingPosition: %v", err)
	}
	return inner
}

// A vault deploys into another vault whose shares are illiquid to users:
// the nested position counts toward total assets, but user withdrawals can
// only be served from the outer holding position.
func TestNestedVaultPositionIlliquidToUsers(t *testing.T) {
	env := newTestEnv(t)

	var inner *Vault
	env.buildVault(t, func(cfg *Config) {
		// Filled in below; the inner vault needs the registry built first,
		// so snapshotters are attached via the same slice.
	})
	inner = buildInnerVault(t, env)
	env.vault.snapshotters = append(env.vault.snapshotters, inner)

	metaConfig, _ := json.Marshal(adaptor.VaultConfig{Holder: env.vault.Account(), Liquid: false})
	metaID := env.activatePosition(t, adaptor.NewVaultAdaptor("meta", inner), metaConfig, false)

	env.fund(t, alice, usdc, 100_000)
	shares := env.mustDeposit(t, alice, 100_000)

	// Strategist moves 60k into the inner vault.
	if _, err := env.vault.CallOnAdaptor(strat, []types.AdaptorCall{{
		Adaptor: "meta",
		Calls:   []types.SubCall{{Type: types.SubCallDeposit, PositionID: metaID, Amount: sdkmath.NewInt(60_000)}},
	}}); err != nil {
		t.Fatalf("CallOnAdaptor: %v", err)
	}

	// Valuation sees the nested position at full value.
	if got := env.totalAssets(t); !got.Equal(sdkmath.NewInt(100_000)) {
		t.Errorf("outer total assets = %s, want 100000", got)
	}
	if got := inner.ShareBalanceOf(env.vault.Account()); got.IsZero() {
		t.Error("outer vault holds no inner shares after deposit")
	}

	// Only the 40k still in the holding position is reachable.
	max, err := env.vault.MaxWithdraw(alice)
	if err != nil {
		t.Fatalf("MaxWithdraw: %v", err)
	}
	if !max.Equal(sdkmath.NewInt(40_000)) {
		t.Errorf("MaxWithdraw = %s, want 40000", max)
	}

	if _, err := env.vault.Withdraw(alice, sdkmath.NewInt(50_000), alice, alice); !errors.Is(err, ErrWithdrawInsufficientLiquidity) {
		t.Errorf("withdraw past outer liquidity: got %v, want ErrWithdrawInsufficientLiquidity", err)
	}
	if got := env.vault.ShareBalanceOf(alice); !got.Equal(shares) {
		t.Errorf("alice shares = %s after failed withdraw, want %s", got, shares)
	}

	if _, err := env.vault.Withdraw(alice, sdkmath.NewInt(40_000), alice, alice); err != nil {
		t.Errorf("withdraw within outer liquidity: %v", err)
	}
	if got := env.book.BalanceOf(alice, usdc); !got.Equal(sdkmath.NewInt(40_000)) {
		t.Errorf("alice balance = %s, want 40000", got)
	}
}

// With the entire deposit parked in an illiquid nested position, nothing is
// reachable for users, and even the strategist cannot pull funds back without
// the position granting liquidity.
func TestNestedVaultFullyFundedBlocksAllWithdrawals(t *testing.T) {
	env := newTestEnv(t)
	env.buildVault(t, nil)
	inner := buildInnerVault(t, env)
	env.vault.snapshotters = append(env.vault.snapshotters, inner)

	metaConfig, _ := json.Marshal(adaptor.VaultConfig{Holder: env.vault.Account(), Liquid: false})
	metaID := env.activatePosition(t, adaptor.NewVaultAdaptor("meta", inner), metaConfig, false)

	env.fund(t, alice, usdc, 100_000)
	env.mustDeposit(t, alice, 100_000)

	if _, err := env.vault.CallOnAdaptor(strat, []types.AdaptorCall{{
		Adaptor: "meta",
		Calls:   []types.SubCall{{Type: types.SubCallDeposit, PositionID: metaID, Amount: sdkmath.NewInt(100_000)}},
	}}); err != nil {
		t.Fatalf("CallOnAdaptor: %v", err)
	}

	max, err := env.vault.MaxWithdraw(alice)
	if err != nil {
		t.Fatalf("MaxWithdraw: %v", err)
	}
	if !max.IsZero() {
		t.Errorf("MaxWithdraw = %s with all funds nested, want 0", max)
	}

	// A strategist withdraw through the position, with no liquidity
	// override in the call, is refused by the adaptor itself.
	if _, err := env.vault.CallOnAdaptor(strat, []types.AdaptorCall{{
		Adaptor: "meta",
		Calls:   []types.SubCall{{Type: types.SubCallWithdraw, PositionID: metaID, Amount: sdkmath.NewInt(10_000)}},
	}}); !errors.Is(err, adaptor.ErrUserWithdrawsNotAllowed) {
		t.Errorf("strategist withdraw from illiquid position: got %v, want ErrUserWithdrawsNotAllowed", err)
	}

	if got := env.totalAssets(t); !got.Equal(sdkmath.NewInt(100_000)) {
		t.Errorf("total assets = %s after blocked withdraw, want 100000", got)
	}
}

// A failed batch must roll back the inner vault's share ledger too.
func TestNestedVaultDepositRolledBackOnFailure(t *testing.T) {
	env := newTestEnv(t)
	env.buildVault(t, nil)
	inner := buildInnerVault(t, env)
	env.vault.snapshotters = append(env.vault.snapshotters, inner)

	metaConfig, _ := json.Marshal(adaptor.VaultConfig{Holder: env.vault.Account(), Liquid: false})
	metaID := env.activatePosition(t, adaptor.NewVaultAdaptor("meta", inner), metaConfig, false)

	env.fund(t, alice, usdc, 100_000)
	env.mustDeposit(t, alice, 100_000)

	// Second sub-call overdraws the holding position, failing the batch
	// after the nested deposit succeeded.
	if _, err := env.vault.CallOnAdaptor(strat, []types.AdaptorCall{{
		Adaptor: "meta",
		Calls: []types.SubCall{
			{Type: types.SubCallDeposit, PositionID: metaID, Amount: sdkmath.NewInt(60_000)},
			{Type: types.SubCallDeposit, PositionID: metaID, Amount: sdkmath.NewInt(60_000)},
		},
	}}); err == nil {
		t.Fatal("expected overdrawn batch to fail")
	}

	if got := inner.ShareBalanceOf(env.vault.Account()); !got.IsZero() {
		t.Errorf("inner shares = %s after revert, want 0", got)
	}
	if got := inner.TotalShares(); !got.IsZero() {
		t.Errorf("inner total shares = %s after revert, want 0", got)
	}
	if got := env.book.BalanceOf(env.vault.Account(), usdc); !got.Equal(sdkmath.NewInt(100_000)) {
		t.Errorf("outer holding = %s after revert, want 100000", got)
	}
}
