package adaptor

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/types"
)

// LendingConfig configures a supply position in a lending market.
type LendingConfig struct {
	Supplier string `json:"supplier"`
	Liquid   bool   `json:"liquid"`
}

// LendingAdaptor places vault funds into one lending market and reports the
// redeemable note value as the position balance.
type LendingAdaptor struct {
	name   string
	market *integrations.LendingMarket
}

// NewLendingAdaptor binds an adaptor to one lending market.
func NewLendingAdaptor(name string, market *integrations.LendingMarket) *LendingAdaptor {
	return &LendingAdaptor{name: name, market: market}
}

func (a *LendingAdaptor) Name() string { return a.name }
func (a *LendingAdaptor) IsDebt() bool { return false }

// Deposit supplies amount of the market asset from the vault account.
func (a *LendingAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg LendingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	return a.market.Supply(cfg.Supplier, amount)
}

// Withdraw redeems amount to recipient; blocked when the position is marked
// illiquid to end users.
func (a *LendingAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	var cfg LendingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	if !effectiveLiquidity(cfg.Liquid, extra) {
		return ErrUserWithdrawsNotAllowed
	}
	return a.market.Redeem(cfg.Supplier, recipient, amount)
}

func (a *LendingAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	var cfg LendingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.market.BalanceOf(cfg.Supplier), nil
}

func (a *LendingAdaptor) AssetOf(config []byte) (types.Asset, error) {
	var cfg LendingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return "", err
	}
	return a.market.Asset(), nil
}

func (a *LendingAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	var cfg LendingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !effectiveLiquidity(cfg.Liquid, extra) {
		return sdkmath.ZeroInt(), nil
	}
	return a.market.BalanceOf(cfg.Supplier), nil
}
