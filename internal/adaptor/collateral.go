package adaptor

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/types"
)

// CollateralConfig configures a collateral position in a borrow market.
// It is the credit-side twin of DebtConfig: the same borrower account links
// the two positions inside the market.
type CollateralConfig struct {
	Borrower string `json:"borrower"`
	Liquid   bool   `json:"liquid"`
}

// CollateralAdaptor tracks collateral posted to a borrow market as a credit
// position. Deposits post collateral; withdrawals reclaim it, subject to the
// market's own checks and the engine's post-rebalance health gate.
type CollateralAdaptor struct {
	name   string
	market *integrations.BorrowMarket
}

// NewCollateralAdaptor binds an adaptor to one borrow market.
func NewCollateralAdaptor(name string, market *integrations.BorrowMarket) *CollateralAdaptor {
	return &CollateralAdaptor{name: name, market: market}
}

func (a *CollateralAdaptor) Name() string { return a.name }
func (a *CollateralAdaptor) IsDebt() bool { return false }

// Deposit posts amount of the collateral asset from the borrower account.
func (a *CollateralAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg CollateralConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	return a.market.AddCollateral(cfg.Borrower, amount)
}

// Withdraw reclaims posted collateral to recipient. The market rejects the
// call if the borrower never posted that much; the engine's health gate
// rejects the rebalance if the remaining collateral is too thin.
func (a *CollateralAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	var cfg CollateralConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	if !effectiveLiquidity(cfg.Liquid, extra) {
		return ErrUserWithdrawsNotAllowed
	}
	if err := a.market.WithdrawCollateral(cfg.Borrower, amount); err != nil {
		return err
	}
	if recipient == cfg.Borrower {
		return nil
	}
	// WithdrawCollateral returns funds to the borrower account; forward
	// them when the engine asked for a different recipient.
	return a.market.ForwardCollateral(cfg.Borrower, recipient, amount)
}

func (a *CollateralAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	var cfg CollateralConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.market.CollateralOf(cfg.Borrower), nil
}

func (a *CollateralAdaptor) AssetOf(config []byte) (types.Asset, error) {
	return a.market.CollateralAsset(), nil
}

// WithdrawableFrom reports posted collateral not needed to back debt. A
// borrower with outstanding debt reports zero: unwinding leverage is a
// strategist operation, not a user withdrawal path.
func (a *CollateralAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	var cfg CollateralConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !effectiveLiquidity(cfg.Liquid, extra) {
		return sdkmath.ZeroInt(), nil
	}
	if a.market.DebtOf(cfg.Borrower).IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	return a.market.CollateralOf(cfg.Borrower), nil
}
