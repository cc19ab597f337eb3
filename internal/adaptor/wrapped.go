package adaptor

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/types"
)

// WrappedNativeConfig configures a wrapped-native position over an account's
// wrapped balance.
type WrappedNativeConfig struct {
	Account string `json:"account"`
}

// Custom ops exposed by the wrapped-native adaptor.
const (
	WrapOpWrap   = "wrap"
	WrapOpUnwrap = "unwrap"
)

type wrapOpParams struct {
	Amount sdkmath.Int `json:"amount"`
}

// WrappedNativeAdaptor tracks the account's wrapped-asset balance and
// exposes wrap/unwrap as strategist ops.
type WrappedNativeAdaptor struct {
	name   string
	bridge *integrations.WrappedNative
	book   *ledger.Book
}

// NewWrappedNativeAdaptor binds an adaptor to the native/wrapped bridge.
func NewWrappedNativeAdaptor(name string, bridge *integrations.WrappedNative, book *ledger.Book) *WrappedNativeAdaptor {
	return &WrappedNativeAdaptor{name: name, bridge: bridge, book: book}
}

func (a *WrappedNativeAdaptor) Name() string { return a.name }
func (a *WrappedNativeAdaptor) IsDebt() bool { return false }

// Deposit wraps amount of native sitting in the configured account.
func (a *WrappedNativeAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg WrappedNativeConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	return a.bridge.Wrap(cfg.Account, amount)
}

// Withdraw unwraps amount and pays the native asset to recipient.
func (a *WrappedNativeAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	var cfg WrappedNativeConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	if err := a.bridge.Unwrap(cfg.Account, amount); err != nil {
		return err
	}
	return a.book.Transfer(cfg.Account, recipient, a.bridge.Native(), amount)
}

func (a *WrappedNativeAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	var cfg WrappedNativeConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.book.BalanceOf(cfg.Account, a.bridge.Wrapped()), nil
}

func (a *WrappedNativeAdaptor) AssetOf(config []byte) (types.Asset, error) {
	return a.bridge.Wrapped(), nil
}

func (a *WrappedNativeAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	return a.BalanceOf(config)
}

// AssetsUsed lists both sides of the bridge for trust-time pricing.
func (a *WrappedNativeAdaptor) AssetsUsed(config []byte) ([]types.Asset, error) {
	return []types.Asset{a.bridge.Native(), a.bridge.Wrapped()}, nil
}

// Call executes wrap/unwrap within the configured account.
func (a *WrappedNativeAdaptor) Call(ctx VaultContext, op string, params json.RawMessage, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg WrappedNativeConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	var p wrapOpParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("%w: %s params: %w", ErrInvalidConfig, op, err)
	}

	switch op {
	case WrapOpWrap:
		return a.bridge.Wrap(cfg.Account, p.Amount)
	case WrapOpUnwrap:
		return a.bridge.Unwrap(cfg.Account, p.Amount)
	default:
		return fmt.Errorf("%w: %s: %s", ErrUnsupportedOp, a.name, op)
	}
}
