package adaptor

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/types"
)

// PoolConfig configures a staking position in a liquidity pool.
type PoolConfig struct {
	Staker string `json:"staker"`
	Liquid bool   `json:"liquid"`
}

// PoolAdaptor stakes vault funds in one liquidity pool. The balance is
// reported at par in the pool's underlying asset; the pool's exit fee is
// only realized when leaving, so large exits show up as rebalance slippage.
type PoolAdaptor struct {
	name string
	pool *integrations.LiquidityPool
}

// NewPoolAdaptor binds an adaptor to one liquidity pool.
func NewPoolAdaptor(name string, pool *integrations.LiquidityPool) *PoolAdaptor {
	return &PoolAdaptor{name: name, pool: pool}
}

func (a *PoolAdaptor) Name() string { return a.name }
func (a *PoolAdaptor) IsDebt() bool { return false }

// Deposit stakes amount of the pool asset from the vault account.
func (a *PoolAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg PoolConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	return a.pool.Join(cfg.Staker, amount)
}

// Withdraw exits enough shares to deliver amount to recipient, net of the
// pool's exit fee.
func (a *PoolAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	var cfg PoolConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	if !effectiveLiquidity(cfg.Liquid, extra) {
		return ErrUserWithdrawsNotAllowed
	}

	// sharesNeeded = ceil(amount / (1 - exitFee))
	netFactor := sdkmath.LegacyOneDec().Sub(a.pool.ExitFee())
	shares := sdkmath.LegacyNewDecFromInt(amount).Quo(netFactor).Ceil().TruncateInt()

	held := a.pool.SharesOf(cfg.Staker)
	if shares.GT(held) {
		shares = held
	}
	_, err := a.pool.Exit(cfg.Staker, recipient, shares)
	return err
}

func (a *PoolAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	var cfg PoolConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.pool.SharesOf(cfg.Staker), nil
}

func (a *PoolAdaptor) AssetOf(config []byte) (types.Asset, error) {
	var cfg PoolConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return "", err
	}
	return a.pool.Asset(), nil
}

// WithdrawableFrom reports the net amount an exit of the full stake would
// deliver right now, zero when user-illiquid.
func (a *PoolAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	var cfg PoolConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !effectiveLiquidity(cfg.Liquid, extra) {
		return sdkmath.ZeroInt(), nil
	}
	held := a.pool.SharesOf(cfg.Staker)
	netFactor := sdkmath.LegacyOneDec().Sub(a.pool.ExitFee())
	return sdkmath.LegacyNewDecFromInt(held).Mul(netFactor).TruncateInt(), nil
}
