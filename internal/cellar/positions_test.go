package cellar

import (
	"encoding/json"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/adaptor"
	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/registry"
	"github.com/cellar-network/cellar/internal/types"
)

func TestAddPositionRequiresCatalogueAndTrust(t *testing.T) {
	env := newTestEnv(t)
	market := integrations.NewLendingMarket("lendex", env.book, usdc)
	env.buildVault(t, nil)

	ad := adaptor.NewLendingAdaptor("lendex", market)
	if err := env.registry.TrustAdaptor(gov, ad); err != nil {
		t.Fatalf("TrustAdaptor: %v", err)
	}
	config, _ := json.Marshal(adaptor.LendingConfig{Supplier: env.vault.Account(), Liquid: true})
	id, err := env.registry.TrustPosition(gov, "lendex", config)
	if err != nil {
		t.Fatalf("TrustPosition: %v", err)
	}

	// Registry-trusted but not vault-catalogued.
	if err := env.vault.AddPosition(strat, 1, id, false); !errors.Is(err, ErrPositionNotInCatalogue) {
		t.Errorf("uncatalogued position: got %v, want ErrPositionNotInCatalogue", err)
	}

	if err := env.vault.AddPositionToCatalogue(gov, id); err != nil {
		t.Fatalf("AddPositionToCatalogue: %v", err)
	}
	if err := env.vault.AddPosition(strat, 1, id, false); err != nil {
		t.Fatalf("AddPosition: %v", err)
	}

	// Already active.
	if err := env.vault.AddPosition(strat, 0, id, false); !errors.Is(err, ErrPositionAlreadyUsed) {
		t.Errorf("duplicate position: got %v, want ErrPositionAlreadyUsed", err)
	}
}

func TestAddPositionCatalogueRejectsUntrusted(t *testing.T) {
	env := newTestEnv(t)
	env.buildVault(t, nil)

	if err := env.vault.AddPositionToCatalogue(gov, types.NewPositionID()); !errors.Is(err, ErrPositionNotTrusted) {
		t.Errorf("unknown position into catalogue: got %v, want ErrPositionNotTrusted", err)
	}
}

func TestAddPositionDebtListMismatch(t *testing.T) {
	env := newTestEnv(t)
	market := integrations.NewBorrowMarket("lev", env.book, env.router, usdc, atom)
	env.buildVault(t, nil)

	ad := adaptor.NewDebtAdaptor("lev_debt", market)
	if err := env.registry.TrustAdaptor(gov, ad); err != nil {
		t.Fatalf("TrustAdaptor: %v", err)
	}
	config, _ := json.Marshal(adaptor.DebtConfig{Borrower: env.vault.Account()})
	id, err := env.registry.TrustPosition(gov, "lev_debt", config)
	if err != nil {
		t.Fatalf("TrustPosition: %v", err)
	}
	if err := env.vault.AddPositionToCatalogue(gov, id); err != nil {
		t.Fatalf("AddPositionToCatalogue: %v", err)
	}

	// A debt position forced into the credit list.
	if err := env.vault.AddPosition(strat, 0, id, false); !errors.Is(err, ErrDebtMismatch) {
		t.Errorf("debt position in credit list: got %v, want ErrDebtMismatch", err)
	}
	if err := env.vault.AddPosition(strat, 0, id, true); err != nil {
		t.Errorf("debt position in debt list: %v", err)
	}
}

func TestRemovePositionRequiresZeroBalance(t *testing.T) {
	env := newTestEnv(t)
	market := integrations.NewLendingMarket("lendex", env.book, usdc)
	env.buildVault(t, func(cfg *Config) {
		cfg.Snapshotters = []types.Snapshotter{market}
	})
	lendConfig, _ := json.Marshal(adaptor.LendingConfig{Supplier: env.vault.Account(), Liquid: true})
	lendID := env.activatePosition(t, adaptor.NewLendingAdaptor("lendex", market), lendConfig, false)

	env.fund(t, alice, usdc, 1000)
	env.mustDeposit(t, alice, 1000)
	if _, err := env.vault.CallOnAdaptor(strat, []types.AdaptorCall{{
		Adaptor: "lendex",
		Calls:   []types.SubCall{{Type: types.SubCallDeposit, PositionID: lendID, Amount: sdkmath.NewInt(600)}},
	}}); err != nil {
		t.Fatalf("CallOnAdaptor: %v", err)
	}

	// lendID sits at index 1 of the credit list.
	if err := env.vault.RemovePosition(strat, 1, false); !errors.Is(err, ErrPositionBalanceNonZero) {
		t.Errorf("removing funded position: got %v, want ErrPositionBalanceNonZero", err)
	}

	// Pull the funds back, then removal succeeds.
	if _, err := env.vault.CallOnAdaptor(strat, []types.AdaptorCall{{
		Adaptor: "lendex",
		Calls:   []types.SubCall{{Type: types.SubCallWithdraw, PositionID: lendID, Amount: sdkmath.NewInt(600)}},
	}}); err != nil {
		t.Fatalf("CallOnAdaptor withdraw: %v", err)
	}
	if err := env.vault.RemovePosition(strat, 1, false); err != nil {
		t.Errorf("removing emptied position: %v", err)
	}
}

func TestHoldingPositionCannotBeRemoved(t *testing.T) {
	env := newTestEnv(t)
	env.buildVault(t, nil)

	if err := env.vault.RemovePosition(strat, 0, false); !errors.Is(err, ErrHoldingPositionRemoval) {
		t.Errorf("removing holding position: got %v, want ErrHoldingPositionRemoval", err)
	}
	if err := env.vault.ForceRemovePosition(gov, 0, false); !errors.Is(err, ErrHoldingPositionRemoval) {
		t.Errorf("force-removing holding position: got %v, want ErrHoldingPositionRemoval", err)
	}
}

func TestForceRemovePositionIgnoresBalance(t *testing.T) {
	env := newTestEnv(t)
	market := integrations.NewLendingMarket("lendex", env.book, usdc)
	env.buildVault(t, func(cfg *Config) {
		cfg.Snapshotters = []types.Snapshotter{market}
	})
	lendConfig, _ := json.Marshal(adaptor.LendingConfig{Supplier: env.vault.Account(), Liquid: true})
	lendID := env.activatePosition(t, adaptor.NewLendingAdaptor("lendex", market), lendConfig, false)

	env.fund(t, alice, usdc, 1000)
	env.mustDeposit(t, alice, 1000)
	if _, err := env.vault.CallOnAdaptor(strat, []types.AdaptorCall{{
		Adaptor: "lendex",
		Calls:   []types.SubCall{{Type: types.SubCallDeposit, PositionID: lendID, Amount: sdkmath.NewInt(600)}},
	}}); err != nil {
		t.Fatalf("CallOnAdaptor: %v", err)
	}

	// Strategist may not force-remove.
	if err := env.vault.ForceRemovePosition(strat, 1, false); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("strategist force-remove: got %v, want ErrUnauthorized", err)
	}
	if err := env.vault.ForceRemovePosition(gov, 1, false); err != nil {
		t.Fatalf("ForceRemovePosition: %v", err)
	}

	// The orphaned 600 no longer counts toward total assets.
	if got := env.totalAssets(t); !got.Equal(sdkmath.NewInt(400)) {
		t.Errorf("total assets = %s after force-remove, want 400", got)
	}
}

func TestSetHoldingPositionValidation(t *testing.T) {
	env := newTestEnv(t)
	env.buildVault(t, nil)

	// Not an active position.
	if err := env.vault.SetHoldingPosition(strat, types.NewPositionID()); !errors.Is(err, ErrInvalidHoldingPosition) {
		t.Errorf("inactive holding candidate: got %v, want ErrInvalidHoldingPosition", err)
	}

	// Active but denominated in the wrong asset.
	atomID := env.addHoldingPosition(t, "holding_atom", atom)
	if err := env.vault.SetHoldingPosition(strat, atomID); !errors.Is(err, ErrInvalidHoldingPosition) {
		t.Errorf("wrong-asset holding candidate: got %v, want ErrInvalidHoldingPosition", err)
	}
}

func TestSwapPositionsReordersDrainPriority(t *testing.T) {
	env := newTestEnv(t)
	env.buildVault(t, nil)
	second := env.addHoldingPosition(t, "holding_atom", atom)

	if err := env.vault.SwapPositions(strat, 0, 1, false); err != nil {
		t.Fatalf("SwapPositions: %v", err)
	}
	views, err := env.vault.Positions()
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if views[0].ID != second {
		t.Errorf("position 0 = %s after swap, want %s", views[0].ID, second)
	}
	if err := env.vault.SwapPositions(strat, 0, 5, false); !errors.Is(err, ErrPositionNotFound) {
		t.Errorf("out-of-range swap: got %v, want ErrPositionNotFound", err)
	}
}

func TestPositionsViewReportsValuations(t *testing.T) {
	env := newTestEnv(t)
	env.buildVault(t, nil)
	env.fund(t, alice, usdc, 1000)
	env.mustDeposit(t, alice, 1000)

	views, err := env.vault.Positions()
	if err != nil {
		t.Fatalf("Positions: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d positions, want 1", len(views))
	}
	view := views[0]
	if !view.IsHolding || view.IsDebt {
		t.Errorf("holding view flags wrong: %+v", view)
	}
	if !view.Balance.Equal(sdkmath.NewInt(1000)) || !view.Value.Equal(sdkmath.NewInt(1000)) {
		t.Errorf("holding view balance/value = %s/%s, want 1000/1000", view.Balance, view.Value)
	}
	if view.Adaptor != "holding" || view.Asset != usdc {
		t.Errorf("holding view identity wrong: %+v", view)
	}
}

func TestAdaptorCatalogueGovernanceOnly(t *testing.T) {
	env := newTestEnv(t)
	env.buildVault(t, nil)

	if err := env.vault.AddAdaptorToCatalogue(strat, "holding"); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("strategist cataloguing adaptor: got %v, want ErrUnauthorized", err)
	}
	if err := env.vault.AddAdaptorToCatalogue(gov, "nonexistent"); !errors.Is(err, registry.ErrAdaptorUnknown) {
		t.Errorf("cataloguing unknown adaptor: got %v, want ErrAdaptorUnknown", err)
	}
}
