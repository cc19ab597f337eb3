package adaptor

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/types"
)

// VestingConfig configures a vesting-stream position. Recipient is where
// claimed funds land, normally the vault's own account.
type VestingConfig struct {
	Recipient string `json:"recipient"`
}

// VestingOpClaim claims vested funds into the configured recipient.
const VestingOpClaim = "claim"

type vestingOpParams struct {
	Amount sdkmath.Int `json:"amount"`
}

// VestingAdaptor tracks a vesting stream owed to the vault. The remaining
// grant counts toward total assets, but nothing is withdrawable by end
// users; vested funds only move via the strategist claim op.
type VestingAdaptor struct {
	name   string
	stream *integrations.VestingStream
}

// NewVestingAdaptor binds an adaptor to one vesting stream.
func NewVestingAdaptor(name string, stream *integrations.VestingStream) *VestingAdaptor {
	return &VestingAdaptor{name: name, stream: stream}
}

func (a *VestingAdaptor) Name() string { return a.name }
func (a *VestingAdaptor) IsDebt() bool { return false }

// Deposit is never valid: grants cannot be topped up through the vault.
func (a *VestingAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	return ErrUserDepositsNotAllowed
}

// Withdraw is never valid on the user path: the stream is illiquid.
func (a *VestingAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	return ErrUserWithdrawsNotAllowed
}

// BalanceOf reports the unclaimed remainder of the grant.
func (a *VestingAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	return a.stream.Remaining(), nil
}

func (a *VestingAdaptor) AssetOf(config []byte) (types.Asset, error) {
	return a.stream.Asset(), nil
}

// WithdrawableFrom is always zero; vesting positions never serve user
// redemptions directly.
func (a *VestingAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

// Call executes the strategist claim op, sweeping vested funds to the
// configured recipient.
func (a *VestingAdaptor) Call(ctx VaultContext, op string, params json.RawMessage, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	if op != VestingOpClaim {
		return fmt.Errorf("%w: %s: %s", ErrUnsupportedOp, a.name, op)
	}
	var cfg VestingConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}
	var p vestingOpParams
	if err := json.Unmarshal(params, &p); err != nil {
		return fmt.Errorf("%w: %s params: %w", ErrInvalidConfig, op, err)
	}
	amount := p.Amount
	if amount.IsNil() || amount.IsZero() {
		amount = a.stream.Claimable()
	}
	return a.stream.Claim(cfg.Recipient, amount)
}
