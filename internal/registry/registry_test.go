package registry

import (
	"encoding/json"
	"errors"
	"testing"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/adaptor"
	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/types"
)

const gov = "governance"

func newRouter(t *testing.T, assets ...types.Asset) *oracle.FixedRouter {
	t.Helper()
	router := oracle.NewFixedRouter()
	for _, asset := range assets {
		if err := router.SetPrice(asset, sdkmath.LegacyOneDec(), 6); err != nil {
			t.Fatalf("SetPrice(%s): %v", asset, err)
		}
	}
	return router
}

func holdingConfig(t *testing.T, account string, asset types.Asset) json.RawMessage {
	t.Helper()
	config, err := json.Marshal(adaptor.HoldingConfig{Account: account, Asset: asset})
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	return config
}

func TestTrustAdaptorGovernanceOnly(t *testing.T) {
	book := ledger.NewBook()
	reg := NewRegistry(gov, newRouter(t, "usdc"))
	ad := adaptor.NewHoldingAdaptor("holding", book)

	if err := reg.TrustAdaptor("mallory", ad); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("non-governance trust: got %v, want ErrUnauthorized", err)
	}
	if reg.IsAdaptorTrusted("holding") {
		t.Error("adaptor trusted after rejected call")
	}

	if err := reg.TrustAdaptor(gov, ad); err != nil {
		t.Fatalf("TrustAdaptor: %v", err)
	}
	if !reg.IsAdaptorTrusted("holding") {
		t.Error("adaptor not trusted after TrustAdaptor")
	}

	// Idempotent.
	if err := reg.TrustAdaptor(gov, ad); err != nil {
		t.Errorf("re-trusting adaptor: %v", err)
	}
}

func TestRevokeAdaptorBlocksNewPositions(t *testing.T) {
	book := ledger.NewBook()
	reg := NewRegistry(gov, newRouter(t, "usdc"))
	ad := adaptor.NewHoldingAdaptor("holding", book)

	if err := reg.TrustAdaptor(gov, ad); err != nil {
		t.Fatalf("TrustAdaptor: %v", err)
	}
	if err := reg.RevokeAdaptor(gov, "holding"); err != nil {
		t.Fatalf("RevokeAdaptor: %v", err)
	}
	if reg.IsAdaptorTrusted("holding") {
		t.Error("adaptor still trusted after revoke")
	}
	if _, err := reg.TrustPosition(gov, "holding", holdingConfig(t, "vault", "usdc")); !errors.Is(err, ErrAdaptorNotTrusted) {
		t.Errorf("position on revoked adaptor: got %v, want ErrAdaptorNotTrusted", err)
	}
}

func TestTrustPositionRequiresPricing(t *testing.T) {
	book := ledger.NewBook()
	router := newRouter(t, "usdc")
	reg := NewRegistry(gov, router)
	ad := adaptor.NewHoldingAdaptor("holding", book)
	if err := reg.TrustAdaptor(gov, ad); err != nil {
		t.Fatalf("TrustAdaptor: %v", err)
	}

	// "memecoin" has no oracle route yet.
	if _, err := reg.TrustPosition(gov, "holding", holdingConfig(t, "vault", "memecoin")); !errors.Is(err, ErrPositionPricingNotSetUp) {
		t.Errorf("unpriced position: got %v, want ErrPositionPricingNotSetUp", err)
	}

	// Once the asset is priceable, the identical call succeeds and hands
	// out a fresh identifier.
	if err := router.SetPrice("memecoin", sdkmath.LegacyOneDec(), 6); err != nil {
		t.Fatalf("SetPrice(memecoin): %v", err)
	}
	id, err := reg.TrustPosition(gov, "holding", holdingConfig(t, "vault", "memecoin"))
	if err != nil {
		t.Fatalf("TrustPosition after pricing: %v", err)
	}
	if !reg.IsPositionTrusted(id) {
		t.Error("position not trusted after TrustPosition")
	}

	other, err := reg.TrustPosition(gov, "holding", holdingConfig(t, "vault", "usdc"))
	if err != nil {
		t.Fatalf("TrustPosition: %v", err)
	}
	if other == id {
		t.Error("distinct positions share an identifier")
	}
}

func TestRevokedPositionStillResolves(t *testing.T) {
	book := ledger.NewBook()
	reg := NewRegistry(gov, newRouter(t, "usdc"))
	if err := reg.TrustAdaptor(gov, adaptor.NewHoldingAdaptor("holding", book)); err != nil {
		t.Fatalf("TrustAdaptor: %v", err)
	}
	id, err := reg.TrustPosition(gov, "holding", holdingConfig(t, "vault", "usdc"))
	if err != nil {
		t.Fatalf("TrustPosition: %v", err)
	}

	if err := reg.RevokePosition(gov, id); err != nil {
		t.Fatalf("RevokePosition: %v", err)
	}
	if reg.IsPositionTrusted(id) {
		t.Error("position still trusted after revoke")
	}

	// Vaults already holding the position must still resolve it to exit.
	ad, config, isDebt, err := reg.Lookup(id)
	if err != nil {
		t.Fatalf("Lookup after revoke: %v", err)
	}
	if ad.Name() != "holding" || isDebt || len(config) == 0 {
		t.Errorf("Lookup returned wrong tuple: %s debt=%t", ad.Name(), isDebt)
	}
}

func TestLookupUnknownPosition(t *testing.T) {
	reg := NewRegistry(gov, newRouter(t, "usdc"))
	if _, _, _, err := reg.Lookup(types.NewPositionID()); !errors.Is(err, ErrPositionDoesNotExist) {
		t.Errorf("unknown position: got %v, want ErrPositionDoesNotExist", err)
	}
}

func TestTrustPositionUnknownAdaptor(t *testing.T) {
	reg := NewRegistry(gov, newRouter(t, "usdc"))
	if _, err := reg.TrustPosition(gov, "ghost", holdingConfig(t, "vault", "usdc")); !errors.Is(err, ErrAdaptorUnknown) {
		t.Errorf("position on unknown adaptor: got %v, want ErrAdaptorUnknown", err)
	}
}
