/*

This file contains the user-facing share accounting: deposits, withdrawals,
redemptions and share transfers, plus the max-withdraw views. Withdrawals
drain the holding position first and then the credit positions in list
order; debt positions never contribute liquidity.

*/

package cellar

import (
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/adaptor"
	"github.com/cellar-network/cellar/internal/types"
)

// Deposit takes assets of the base asset from caller, mints shares to
// receiver, and leaves the funds in the holding position. Returns the
// shares minted.
func (v *Vault) Deposit(caller string, assets sdkmath.Int, receiver string) (sdkmath.Int, error) {
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrInvalidAmount, assets)
	}
	if receiver == "" {
		receiver = caller
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if v.shutdown {
		return sdkmath.ZeroInt(), ErrVaultShutDown
	}
	if v.holdingPosition == types.NilPositionID {
		return sdkmath.ZeroInt(), ErrInvalidHoldingPosition
	}

	preTotal, err := v.totalAssetsLocked()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if v.depositCap.IsPositive() && preTotal.Add(assets).GT(v.depositCap) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: cap %s, would hold %s",
			ErrDepositCapExceeded, v.depositCap, preTotal.Add(assets))
	}

	shares := v.toShares(assets, preTotal)
	if !shares.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: deposit too small to mint shares", ErrInvalidAmount)
	}

	rp := v.capture()

	if err := v.book.Transfer(caller, v.account, v.baseAsset, assets); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("deposit transfer failed: %w", err)
	}
	if err := v.placeInHolding(assets); err != nil {
		v.restore(rp)
		return sdkmath.ZeroInt(), err
	}

	v.shares[receiver] = v.shareBalance(receiver).Add(shares)
	v.totalShares = v.totalShares.Add(shares)
	if v.lockPeriod > 0 {
		v.locks[receiver] = v.now().Add(v.lockPeriod)
	}

	v.log.Info().
		Str("vault", v.name).
		Str("caller", caller).
		Str("receiver", receiver).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Msg("Deposit accepted")
	v.recordEvent(types.VaultEvent{
		Type: types.EventDeposit, Account: caller, Receiver: receiver,
		Assets: assets, Shares: shares, Timestamp: v.now(),
	})
	return shares, nil
}

// Withdraw burns just enough of owner's shares to deliver assets worth of
// value to receiver. Only owner may spend their shares. Returns the shares
// burned.
func (v *Vault) Withdraw(caller string, assets sdkmath.Int, receiver, owner string) (sdkmath.Int, error) {
	if assets.IsNil() || !assets.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrInvalidAmount, assets)
	}
	if caller != owner {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s cannot spend shares of %s", ErrUnauthorized, caller, owner)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkLock(owner); err != nil {
		return sdkmath.ZeroInt(), err
	}
	preTotal, err := v.totalAssetsLocked()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	shares := v.toSharesCeil(assets, preTotal)
	if shares.GT(v.shareBalance(owner)) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: need %s, have %s",
			ErrInsufficientShares, shares, v.shareBalance(owner))
	}

	rp := v.capture()

	if err := v.drain(assets, receiver); err != nil {
		v.restore(rp)
		return sdkmath.ZeroInt(), err
	}
	v.burnShares(owner, shares)

	v.log.Info().
		Str("vault", v.name).
		Str("owner", owner).
		Str("receiver", receiver).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Msg("Withdrawal completed")
	v.recordEvent(types.VaultEvent{
		Type: types.EventWithdraw, Account: owner, Receiver: receiver,
		Assets: assets, Shares: shares, Timestamp: v.now(),
	})
	return shares, nil
}

// Redeem burns exactly shares of owner's balance and delivers their current
// value to receiver. Returns the base-asset value delivered.
func (v *Vault) Redeem(caller string, shares sdkmath.Int, receiver, owner string) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrInvalidAmount, shares)
	}
	if caller != owner {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s cannot spend shares of %s", ErrUnauthorized, caller, owner)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkLock(owner); err != nil {
		return sdkmath.ZeroInt(), err
	}
	if shares.GT(v.shareBalance(owner)) {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: need %s, have %s",
			ErrInsufficientShares, shares, v.shareBalance(owner))
	}
	preTotal, err := v.totalAssetsLocked()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	assets := v.toAssets(shares, preTotal)
	if !assets.IsPositive() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: shares worth nothing", ErrInvalidAmount)
	}

	rp := v.capture()

	if err := v.drain(assets, receiver); err != nil {
		v.restore(rp)
		return sdkmath.ZeroInt(), err
	}
	v.burnShares(owner, shares)

	v.log.Info().
		Str("vault", v.name).
		Str("owner", owner).
		Str("receiver", receiver).
		Str("assets", assets.String()).
		Str("shares", shares.String()).
		Msg("Redemption completed")
	v.recordEvent(types.VaultEvent{
		Type: types.EventRedeem, Account: owner, Receiver: receiver,
		Assets: assets, Shares: shares, Timestamp: v.now(),
	})
	return assets, nil
}

// TransferShares moves shares from caller to another owner. Locked shares
// cannot move; the receiver does not inherit a lock.
func (v *Vault) TransferShares(caller, to string, shares sdkmath.Int) error {
	if shares.IsNil() || !shares.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, shares)
	}
	if to == "" || to == caller {
		return fmt.Errorf("%w: invalid transfer target", ErrInvalidAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if err := v.checkLock(caller); err != nil {
		return err
	}
	if shares.GT(v.shareBalance(caller)) {
		return fmt.Errorf("%w: need %s, have %s",
			ErrInsufficientShares, shares, v.shareBalance(caller))
	}

	v.shares[caller] = v.shareBalance(caller).Sub(shares)
	v.shares[to] = v.shareBalance(to).Add(shares)

	v.recordEvent(types.VaultEvent{
		Type: types.EventTransfer, Account: caller, Receiver: to,
		Assets: sdkmath.ZeroInt(), Shares: shares, Timestamp: v.now(),
	})
	return nil
}

// MaxWithdraw reports the base-asset value owner could withdraw right now:
// the value of their shares capped by the liquidity actually reachable in
// the holding and credit positions. Debt positions never contribute. Locked
// owners report zero.
func (v *Vault) MaxWithdraw(owner string) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.lockedNow(owner) {
		return sdkmath.ZeroInt(), nil
	}
	total, err := v.totalAssetsLocked()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	owned := v.toAssets(v.shareBalance(owner), total)

	liquid, err := v.liquidAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return sdkmath.MinInt(owned, liquid), nil
}

// MaxRedeem reports how many of owner's shares are redeemable right now.
func (v *Vault) MaxRedeem(owner string) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.lockedNow(owner) {
		return sdkmath.ZeroInt(), nil
	}
	balance := v.shareBalance(owner)
	total, err := v.totalAssetsLocked()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	liquid, err := v.liquidAssets()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	if v.toAssets(balance, total).LTE(liquid) {
		return balance, nil
	}
	return sdkmath.MinInt(balance, v.toShares(liquid, total)), nil
}

// placeInHolding routes freshly deposited funds through the holding
// position's adaptor under the privileged context. Assumes the lock is held.
func (v *Vault) placeInHolding(assets sdkmath.Int) error {
	ad, config, _, err := v.registry.Lookup(v.holdingPosition)
	if err != nil {
		return err
	}
	ctx := adaptor.NewPrivilegedContext(v.account)
	if err := ad.Deposit(ctx, assets, config); err != nil {
		return fmt.Errorf("holding position deposit failed: %w", err)
	}
	return nil
}

// drain pulls assets worth of base-asset value out of the vault and
// delivers it to receiver, emptying the holding position before the other
// credit positions in list order. Assumes the lock is held and a restore
// point has been captured.
func (v *Vault) drain(assets sdkmath.Int, receiver string) error {
	remaining := assets

	for _, id := range v.drainOrder() {
		if !remaining.IsPositive() {
			break
		}
		pulled, err := v.pullFromPosition(id, remaining, receiver)
		if err != nil {
			return err
		}
		remaining = remaining.Sub(pulled)
	}
	if remaining.IsPositive() {
		return fmt.Errorf("%w: short %s %s",
			ErrWithdrawInsufficientLiquidity, remaining, v.baseAsset)
	}
	return nil
}

// drainOrder lists the credit positions with the holding position moved to
// the front. Assumes the lock is held.
func (v *Vault) drainOrder() []types.PositionID {
	order := make([]types.PositionID, 0, len(v.creditPositions))
	if v.holdingPosition != types.NilPositionID {
		order = append(order, v.holdingPosition)
	}
	for _, id := range v.creditPositions {
		if id != v.holdingPosition {
			order = append(order, id)
		}
	}
	return order
}

// pullFromPosition withdraws up to wanted base-asset value from one
// position, delivering the position's own asset to receiver. Returns the
// base-asset value actually pulled.
func (v *Vault) pullFromPosition(id types.PositionID, wanted sdkmath.Int, receiver string) (sdkmath.Int, error) {
	ad, config, _, err := v.registry.Lookup(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	withdrawable, err := ad.WithdrawableFrom(config, nil)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("withdrawable of position %s: %w", id, err)
	}
	if !withdrawable.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	asset, err := ad.AssetOf(config)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}

	// Convert the wanted base value into the position's asset, then cap at
	// what the position can actually release.
	wantedNative, err := v.router.ValueOf(v.baseAsset, wanted, asset)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("pricing withdrawal from %s: %w", id, err)
	}
	pull := sdkmath.MinInt(wantedNative, withdrawable)
	if !pull.IsPositive() {
		return sdkmath.ZeroInt(), nil
	}
	if err := ad.Withdraw(pull, receiver, config, nil); err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("withdraw from position %s: %w", id, err)
	}

	value, err := v.router.ValueOf(asset, pull, v.baseAsset)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return value, nil
}

// liquidAssets values all immediately withdrawable liquidity in the base
// asset. Assumes the lock is held.
func (v *Vault) liquidAssets() (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()
	for _, id := range v.drainOrder() {
		ad, config, _, err := v.registry.Lookup(id)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		withdrawable, err := ad.WithdrawableFrom(config, nil)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		if !withdrawable.IsPositive() {
			continue
		}
		asset, err := ad.AssetOf(config)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		value, err := v.router.ValueOf(asset, withdrawable, v.baseAsset)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		total = total.Add(value)
	}
	return total, nil
}

// burnShares assumes the lock is held and the balance has been checked.
func (v *Vault) burnShares(owner string, shares sdkmath.Int) {
	rest := v.shareBalance(owner).Sub(shares)
	if rest.IsZero() {
		delete(v.shares, owner)
		delete(v.locks, owner)
	} else {
		v.shares[owner] = rest
	}
	v.totalShares = v.totalShares.Sub(shares)
}

func (v *Vault) checkLock(owner string) error {
	if v.lockedNow(owner) {
		return fmt.Errorf("%w: until %s", ErrSharesLocked, v.locks[owner].Format("2006-01-02T15:04:05Z07:00"))
	}
	return nil
}

func (v *Vault) lockedNow(owner string) bool {
	until, ok := v.locks[owner]
	return ok && v.now().Before(until)
}
