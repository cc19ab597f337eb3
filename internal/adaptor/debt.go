package adaptor

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/types"
)

// DebtConfig configures a borrow position in a borrow market.
type DebtConfig struct {
	Borrower string `json:"borrower"`
}

// debtOpParams carries the amount for the borrow-market custom ops.
type debtOpParams struct {
	Amount sdkmath.Int `json:"amount"`
}

// Custom ops exposed by the debt adaptor.
const (
	DebtOpAddCollateral      = "add_collateral"
	DebtOpWithdrawCollateral = "withdraw_collateral"
	DebtOpBorrow             = "borrow"
	DebtOpRepay              = "repay"
)

// DebtAdaptor tracks a liability: BalanceOf is the outstanding debt,
// subtracted during valuation. All movement goes through strategist custom
// ops; user deposits and withdrawals are never allowed on a debt position.
type DebtAdaptor struct {
	name   string
	market *integrations.BorrowMarket
}

// NewDebtAdaptor binds an adaptor to one borrow market.
func NewDebtAdaptor(name string, market *integrations.BorrowMarket) *DebtAdaptor {
	return &DebtAdaptor{name: name, market: market}
}

func (a *DebtAdaptor) Name() string { return a.name }
func (a *DebtAdaptor) IsDebt() bool { return true }

func (a *DebtAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	return ErrUserDepositsNotAllowed
}

func (a *DebtAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	return ErrUserWithdrawsNotAllowed
}

// BalanceOf reports the outstanding debt in the debt asset.
func (a *DebtAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	var cfg DebtConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.market.DebtOf(cfg.Borrower), nil
}

func (a *DebtAdaptor) AssetOf(config []byte) (types.Asset, error) {
	var cfg DebtConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return "", err
	}
	return a.market.DebtAsset(), nil
}

// WithdrawableFrom is always zero: liabilities never contribute liquidity.
func (a *DebtAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

// AssetsUsed lists both sides of the market so the registry prices
// collateral and debt before trusting a position.
func (a *DebtAdaptor) AssetsUsed(config []byte) ([]types.Asset, error) {
	return []types.Asset{a.market.DebtAsset(), a.market.CollateralAsset()}, nil
}

// HealthFactor reports the borrower's collateral/debt value ratio.
func (a *DebtAdaptor) HealthFactor(config []byte) (sdkmath.LegacyDec, error) {
	var cfg DebtConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	return a.market.HealthFactor(cfg.Borrower)
}

// Call executes the borrow-market strategist operations.
func (a *DebtAdaptor) Call(ctx VaultContext, op string, params json.RawMessage, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg DebtConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	var p debtOpParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("%w: %s params: %w", ErrInvalidConfig, op, err)
	}

	switch op {
	case DebtOpAddCollateral:
		return a.market.AddCollateral(cfg.Borrower, p.Amount)
	case DebtOpWithdrawCollateral:
		return a.market.WithdrawCollateral(cfg.Borrower, p.Amount)
	case DebtOpBorrow:
		return a.market.Borrow(cfg.Borrower, p.Amount)
	case DebtOpRepay:
		return a.market.Repay(cfg.Borrower, p.Amount)
	default:
		return fmt.Errorf("%w: %s: %s", ErrUnsupportedOp, a.name, op)
	}
}
