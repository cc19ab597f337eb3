/*

Package adaptor defines the uniform capability contract the vault engine
uses to treat heterogeneous external integrations identically, plus one
reference adaptor per integration variant. Position configuration blobs are
JSON, opaque to the engine and registry, decoded only inside the owning
variant.

*/

package adaptor

import (
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/types"
)

var (
	// ErrUserDepositsNotAllowed is returned when Deposit is invoked outside
	// the owning vault engine's privileged path.
	ErrUserDepositsNotAllowed = errors.New("user deposits not allowed")

	// ErrUserWithdrawsNotAllowed is returned when a position's configuration
	// marks it illiquid to end users.
	ErrUserWithdrawsNotAllowed = errors.New("user withdraws not allowed")

	// ErrSlippage is raised by swap-type operations when realized output
	// falls below the caller's minimum.
	ErrSlippage = errors.New("slippage: output below minimum")

	// ErrInvalidConfig is returned when a configuration blob does not decode
	// for the adaptor variant it was handed to.
	ErrInvalidConfig = errors.New("invalid position configuration")

	// ErrUnsupportedOp is returned for a custom op the adaptor does not
	// implement.
	ErrUnsupportedOp = errors.New("unsupported adaptor operation")
)

// Adaptor is the capability every integration variant implements. Side
// effects are confined to the external integration and the vault's own
// ledger balances; adaptors keep no position state of their own beyond what
// the integration reports.
type Adaptor interface {
	// Name identifies the adaptor implementation, unique per variant+target.
	Name() string

	// Deposit moves amount of the vault's held asset into the integration.
	// Only the owning vault engine's privileged context is accepted.
	Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error

	// Withdraw removes amount of value from the integration back to
	// recipient. Rejected when the configuration marks the position
	// illiquid to end users.
	Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error

	// BalanceOf returns the quantity currently held, in the position's
	// native unit.
	BalanceOf(config []byte) (sdkmath.Int, error)

	// AssetOf returns the unit BalanceOf is denominated in.
	AssetOf(config []byte) (types.Asset, error)

	// WithdrawableFrom returns the portion of BalanceOf that can be pulled
	// out right now (zero for locked or user-illiquid positions).
	WithdrawableFrom(config, extra []byte) (sdkmath.Int, error)

	// IsDebt reports whether BalanceOf represents a liability.
	IsDebt() bool
}

// AssetLister is implemented by variants whose configuration touches more
// than one asset; the registry prices every listed asset at trust time.
// Variants without it are priced on AssetOf alone.
type AssetLister interface {
	AssetsUsed(config []byte) ([]types.Asset, error)
}

// Caller is implemented by variants exposing strategist-only custom
// operations (swaps, borrows, claims, wrapping). Reached exclusively through
// the engine's CallOnAdaptor entry point.
type Caller interface {
	Call(ctx VaultContext, op string, params json.RawMessage, config []byte) error
}

// HealthReporter is implemented by debt variants. The engine confirms the
// reported ratio stays at or above its configured minimum after any
// rebalance touching the position.
type HealthReporter interface {
	HealthFactor(config []byte) (sdkmath.LegacyDec, error)
}

// VaultContext identifies the vault on whose behalf an adaptor call runs.
// Contexts built by the engine's controlled entry points carry the
// privileged flag; adaptors reject fund-placement calls without it.
type VaultContext struct {
	vaultAccount string
	privileged   bool
}

// NewVaultContext builds an unprivileged context, as seen by any caller
// outside the engine's controlled path.
func NewVaultContext(vaultAccount string) VaultContext {
	return VaultContext{vaultAccount: vaultAccount}
}

// NewPrivilegedContext builds the context the vault engine uses on its
// deposit and rebalance paths.
func NewPrivilegedContext(vaultAccount string) VaultContext {
	return VaultContext{vaultAccount: vaultAccount, privileged: true}
}

// VaultAccount returns the ledger account of the calling vault.
func (c VaultContext) VaultAccount() string { return c.vaultAccount }

// Privileged reports whether this context came through the engine.
func (c VaultContext) Privileged() bool { return c.privileged }

// decodeConfig unmarshals a configuration blob for one variant.
func decodeConfig(name string, raw []byte, into any) error {
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, name, err)
	}
	return nil
}

// withdrawExtra carries the per-call liquidity override. User-facing flows
// never supply extra data, so the flag is only reachable through the
// strategist's rebalance path, where it opens (or closes) a position for one
// withdrawal without changing its stored configuration.
type withdrawExtra struct {
	Liquid *bool `json:"liquid,omitempty"`
}

func effectiveLiquidity(configLiquid bool, extra []byte) bool {
	if len(extra) == 0 {
		return configLiquid
	}
	var e withdrawExtra
	if err := json.Unmarshal(extra, &e); err != nil || e.Liquid == nil {
		return configLiquid
	}
	return *e.Liquid
}
