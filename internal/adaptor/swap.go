package adaptor

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/integrations"
	"github.com/cellar-network/cellar/internal/types"
)

// SwapConfig configures the account swaps are executed for.
type SwapConfig struct {
	Account string `json:"account"`
}

// Custom ops exposed by the swap adaptor.
const (
	SwapOpSwap     = "swap"
	SwapOpMultihop = "multihop_swap"
)

// SwapParams parameterizes a single swap.
type SwapParams struct {
	From     types.Asset `json:"from"`
	To       types.Asset `json:"to"`
	AmountIn sdkmath.Int `json:"amount_in"`
	MinOut   sdkmath.Int `json:"min_out"`
}

// MultihopParams parameterizes a path swap; MinOut guards the final leg.
type MultihopParams struct {
	Path     []types.Asset `json:"path"`
	AmountIn sdkmath.Int   `json:"amount_in"`
	MinOut   sdkmath.Int   `json:"min_out"`
}

// SwapAdaptor exposes venue swaps as strategist custom ops. It holds no
// balance of its own; the position exists to carry venue configuration and
// gate who may trade vault funds.
type SwapAdaptor struct {
	name  string
	venue *integrations.SwapVenue
	base  types.Asset
}

// NewSwapAdaptor binds an adaptor to one swap venue. base is the asset the
// zero balance is denominated in for valuation purposes.
func NewSwapAdaptor(name string, venue *integrations.SwapVenue, base types.Asset) *SwapAdaptor {
	return &SwapAdaptor{name: name, venue: venue, base: base}
}

func (a *SwapAdaptor) Name() string { return a.name }
func (a *SwapAdaptor) IsDebt() bool { return false }

func (a *SwapAdaptor) Deposit(ctx VaultContext, amount sdkmath.Int, config []byte) error {
	return ErrUserDepositsNotAllowed
}

func (a *SwapAdaptor) Withdraw(amount sdkmath.Int, recipient string, config, extra []byte) error {
	return ErrUserWithdrawsNotAllowed
}

func (a *SwapAdaptor) BalanceOf(config []byte) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

func (a *SwapAdaptor) AssetOf(config []byte) (types.Asset, error) {
	return a.base, nil
}

func (a *SwapAdaptor) WithdrawableFrom(config, extra []byte) (sdkmath.Int, error) {
	return sdkmath.ZeroInt(), nil
}

// Call executes swap ops, enforcing the caller's minimum-out guard.
func (a *SwapAdaptor) Call(ctx VaultContext, op string, params json.RawMessage, config []byte) error {
	if !ctx.Privileged() {
		return ErrUserDepositsNotAllowed
	}
	var cfg SwapConfig
	if err := decodeConfig(a.name, config, &cfg); err != nil {
		return err
	}

	switch op {
	case SwapOpSwap:
		var p SwapParams
		if err := json.Unmarshal(params, &p); err != nil {
			return fmt.Errorf("%w: %s params: %w", ErrInvalidConfig, op, err)
		}
		out, err := a.venue.Swap(cfg.Account, p.From, p.To, p.AmountIn)
		if err != nil {
			return err
		}
		if !p.MinOut.IsNil() && out.LT(p.MinOut) {
			return fmt.Errorf("%w: got %s %s, wanted at least %s", ErrSlippage, out, p.To, p.MinOut)
		}
		return nil

	case SwapOpMultihop:
		var p MultihopParams
		if err := json.Unmarshal(params, &p); err != nil {
			return fmt.Errorf("%w: %s params: %w", ErrInvalidConfig, op, err)
		}
		if len(p.Path) < 2 {
			return fmt.Errorf("%w: multihop path needs at least two assets", ErrInvalidConfig)
		}
		amount := p.AmountIn
		for i := 0; i < len(p.Path)-1; i++ {
			out, err := a.venue.Swap(cfg.Account, p.Path[i], p.Path[i+1], amount)
			if err != nil {
				return err
			}
			amount = out
		}
		if !p.MinOut.IsNil() && amount.LT(p.MinOut) {
			return fmt.Errorf("%w: got %s %s, wanted at least %s", ErrSlippage, amount, p.Path[len(p.Path)-1], p.MinOut)
		}
		return nil

	default:
		return fmt.Errorf("%w: %s: %s", ErrUnsupportedOp, a.name, op)
	}
}
