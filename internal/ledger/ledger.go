/*

Package ledger holds the in-memory multi-asset balance book all components
move funds through: depositor accounts, the vault's own account, and every
external-integration account. It stands in for the token-transfer primitives
the cellar system treats as an external collaborator.

*/

package ledger

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/types"
)

var (
	ErrInvalidAmount     = errors.New("amount is invalid")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrEmptyAccount      = errors.New("account name is empty")
)

// Book is a balance book keyed by account name and asset. All mutating
// operations are serialized; Snapshot/Restore give callers a restore point
// for revert-based atomicity.
type Book struct {
	mu       sync.RWMutex
	balances map[string]map[types.Asset]sdkmath.Int
}

// NewBook creates an empty balance book.
func NewBook() *Book {
	return &Book{
		balances: make(map[string]map[types.Asset]sdkmath.Int),
	}
}

// BalanceOf returns the balance of asset held by account. Unknown accounts
// and assets read as zero.
func (b *Book) BalanceOf(account string, asset types.Asset) sdkmath.Int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if assets, ok := b.balances[account]; ok {
		if bal, ok := assets[asset]; ok {
			return bal
		}
	}
	return sdkmath.ZeroInt()
}

// Mint credits amount of asset to account out of thin air. Used to seed
// depositor balances and integration inventory.
func (b *Book) Mint(account string, asset types.Asset, amount sdkmath.Int) error {
	if account == "" {
		return ErrEmptyAccount
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(account, asset, amount)
	return nil
}

// Burn debits amount of asset from account.
func (b *Book) Burn(account string, asset types.Asset, amount sdkmath.Int) error {
	if account == "" {
		return ErrEmptyAccount
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.debit(account, asset, amount)
}

// Transfer moves amount of asset between accounts. Fails with
// ErrInsufficientFunds when the sender balance does not cover it.
func (b *Book) Transfer(from, to string, asset types.Asset, amount sdkmath.Int) error {
	if from == "" || to == "" {
		return ErrEmptyAccount
	}
	if err := validAmount(amount); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.debit(from, asset, amount); err != nil {
		return err
	}
	b.credit(to, asset, amount)
	return nil
}

// Snapshot returns a deep copy of all balances.
func (b *Book) Snapshot() any {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := make(map[string]map[types.Asset]sdkmath.Int, len(b.balances))
	for account, assets := range b.balances {
		copied := make(map[types.Asset]sdkmath.Int, len(assets))
		for asset, bal := range assets {
			copied[asset] = bal
		}
		snap[account] = copied
	}
	return snap
}

// Restore resets the book to a snapshot previously taken with Snapshot.
// Passing anything else is a programming error and panics.
func (b *Book) Restore(snapshot any) {
	snap, ok := snapshot.(map[string]map[types.Asset]sdkmath.Int)
	if !ok {
		panic("ledger: Restore called with a foreign snapshot")
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	restored := make(map[string]map[types.Asset]sdkmath.Int, len(snap))
	for account, assets := range snap {
		copied := make(map[types.Asset]sdkmath.Int, len(assets))
		for asset, bal := range assets {
			copied[asset] = bal
		}
		restored[account] = copied
	}
	b.balances = restored
}

// credit assumes the lock is held.
func (b *Book) credit(account string, asset types.Asset, amount sdkmath.Int) {
	assets, ok := b.balances[account]
	if !ok {
		assets = make(map[types.Asset]sdkmath.Int)
		b.balances[account] = assets
	}
	cur, ok := assets[asset]
	if !ok {
		cur = sdkmath.ZeroInt()
	}
	assets[asset] = cur.Add(amount)
}

// debit assumes the lock is held.
func (b *Book) debit(account string, asset types.Asset, amount sdkmath.Int) error {
	assets, ok := b.balances[account]
	if !ok {
		return fmt.Errorf("%w: account %s holds no %s", ErrInsufficientFunds, account, asset)
	}
	cur, ok := assets[asset]
	if !ok {
		cur = sdkmath.ZeroInt()
	}
	if cur.LT(amount) {
		return fmt.Errorf("%w: account %s holds %s %s, needs %s", ErrInsufficientFunds, account, cur, asset, amount)
	}
	assets[asset] = cur.Sub(amount)
	return nil
}

func validAmount(amount sdkmath.Int) error {
	if amount.IsNil() || amount.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}
	return nil
}
