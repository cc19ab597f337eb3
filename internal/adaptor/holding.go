package adaptor

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/types"
)

// HoldingConfig configures a pass-through position over the vault's own
// idle balance of one asset.
type HoldingConfig struct {
	Account string      `json:"account"`
	Asset   types.Asset `json:"asset"`
}

// HoldingAdaptor is the pass-through variant: the position's balance is
// simply the configured account's ledger balance. It backs the designated
// holding position that provides default deposit/withdrawal liquidity.
type HoldingAdaptor struct {
	name string
	book *ledger.Book
}

// NewHoldingAdaptor creates a pass-through adaptor over the shared ledger.
func NewHoldingAdaptor(name string, book *ledger.Book) *HoldingAdaptor {
	return &HoldingAdaptor{name: name, book: book}
}

func (a *HoldingAdaptor) Name() string { return a.name }
func (a *HoldingAdaptor) IsDebt() bool { return false }

// Deposit validates the privileged path; the funds are already sitting in
// the configured account, so there is nothing to move.
func (a *HoldingAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg HoldingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	return nil
}

// Withdraw pays amount of the held asset out of the configured account.
func (a *HoldingAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	var cfg HoldingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	return a.book.Transfer(cfg.Account, recipient, cfg.Asset, amount)
}

func (a *HoldingAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	var cfg HoldingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return sdkmath.ZeroInt(), err
	}
	return a.book.BalanceOf(cfg.Account, cfg.Asset), nil
}

func (a *HoldingAdaptor) AssetOf(config []byte) (types.Asset, error) {
	var cfg HoldingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return "", err
	}
	return cfg.Asset, nil
}

// WithdrawableFrom reports the full idle balance; holding positions are
// always liquid.
func (a *HoldingAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	return a.BalanceOf(config)
}
