package adaptor

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/types"
)

// SharesVault is the slice of a vault engine the nested-vault adaptor needs.
// It is satisfied by the cellar engine itself, letting one vault hold a
// position in another.
type SharesVault interface {
	Deposit(caller string, assets sdkmath.Int, receiver string) (sdkmath.Int, error)
	Withdraw(caller string, assets sdkmath.Int, receiver, owner string) (sdkmath.Int, error)
	MaxWithdraw(owner string) (sdkmath.Int, error)
	ConvertToAssets(shares sdkmath.Int) (sdkmath.Int, error)
	ShareBalanceOf(owner string) sdkmath.Int
	BaseAsset() types.Asset
}

// VaultConfig configures a nested-vault position. Holder is the account the
// outer vault holds the inner vault's shares under; Liquid controls whether
// the position may serve user withdrawals.
type VaultConfig struct {
	Holder string `json:"holder"`
	Liquid bool   `json:"liquid"`
}

// VaultAdaptor deploys capital into another shares vault. With Liquid unset
// the position contributes to valuation but never to withdrawable liquidity,
// and every withdrawal attempt through it is blocked.
type VaultAdaptor struct {
	name   string
	target SharesVault
}

// NewVaultAdaptor binds an adaptor to one target vault.
func NewVaultAdaptor(name string, target SharesVault) *VaultAdaptor {
	return &VaultAdaptor{name: name, target: target}
}

func (a *VaultAdaptor) Name() string { return a.name }
func (a *VaultAdaptor) IsDebt() bool { return false }

// Deposit places amount into the target vault for the configured holder.
func (a *VaultAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg VaultConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	_, err := a.target.Deposit(cfg.Holder, amount, cfg.Holder)
	return err
}

// Withdraw redeems amount from the target vault to recipient; blocked
// entirely when the position is configured illiquid.
func (a *VaultAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	var cfg VaultConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	if !effectiveLiquidity(cfg.Liquid, extra) {
		return ErrUserWithdrawsNotAllowed
	}
	_, err := a.target.Withdraw(cfg.Holder, amount, recipient, cfg.Holder)
	return err
}

// BalanceOf reports the asset value of the holder's shares in the target.
func (a *VaultAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	var cfg VaultConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.target.ConvertToAssets(a.target.ShareBalanceOf(cfg.Holder))
}

func (a *VaultAdaptor) AssetOf(config []byte) (types.Asset, error) {
	return a.target.BaseAsset(), nil
}

func (a *VaultAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	var cfg VaultConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if !effectiveLiquidity(cfg.Liquid, extra) {
		return sdkmath.ZeroInt(), nil
	}
	return a.target.MaxWithdraw(cfg.Holder)
}
