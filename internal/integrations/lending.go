package integrations

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/types"
)

// LendingMarket is a supply-side lending market. Suppliers deposit the
// market asset and receive interest-bearing notes; the note/asset exchange
// rate moves as the market accrues yield (or realizes losses), which is how
// tests and simulations inject external gain/loss.
type LendingMarket struct {
	mu      sync.Mutex
	name    string
	book    *ledger.Book
	account string
	asset   types.Asset
	rate    sdkmath.LegacyDec
	notes   map[string]sdkmath.Int
}

// lendingSnapshot is the memento for Snapshot/Restore.
type lendingSnapshot struct {
	rate  sdkmath.LegacyDec
	notes map[string]sdkmath.Int
}

// NewLendingMarket creates a lending market for asset, holding its funds in
// the ledger account "market:<name>".
func NewLendingMarket(name string, book *ledger.Book, asset types.Asset) *LendingMarket {
	return &LendingMarket{
		name:    name,
		book:    book,
		account: "market:" + name,
		asset:   asset,
		rate:    sdkmath.LegacyOneDec(),
		notes:   make(map[string]sdkmath.Int),
	}
}

// Name returns the market's identifier.
func (m *LendingMarket) Name() string { return m.name }

// Asset returns the market's supply asset.
func (m *LendingMarket) Asset() types.Asset { return m.asset }

// Account returns the market's ledger account.
func (m *LendingMarket) Account() string { return m.account }

// Supply moves amount of the market asset from supplier into the market and
// credits notes at the current exchange rate.
func (m *LendingMarket) Supply(supplier string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: m.name, Op: "supply", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.book.Transfer(supplier, m.account, m.asset, amount); err != nil {
		return &IntegrationError{Integration: m.name, Op: "supply", Code: CodeInsufficientBalance, Detail: err.Error()}
	}

	minted := sdkmath.LegacyNewDecFromInt(amount).Quo(m.rate).TruncateInt()
	m.notes[supplier] = m.noteBalance(supplier).Add(minted)
	return nil
}

// Redeem burns supplier notes worth amount and pays out to recipient.
func (m *LendingMarket) Redeem(supplier, recipient string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: m.name, Op: "redeem", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	needed := sdkmath.LegacyNewDecFromInt(amount).Quo(m.rate).Ceil().TruncateInt()
	held := m.noteBalance(supplier)
	if held.LT(needed) {
		return &IntegrationError{
			Integration: m.name, Op: "redeem", Code: CodeInsufficientBalance,
			Detail: fmt.Sprintf("supplier %s holds %s notes, needs %s", supplier, held, needed),
		}
	}

	if err := m.book.Transfer(m.account, recipient, m.asset, amount); err != nil {
		return &IntegrationError{Integration: m.name, Op: "redeem", Code: CodeInsufficientLiquidity, Detail: err.Error()}
	}
	m.notes[supplier] = held.Sub(needed)
	return nil
}

// BalanceOf returns the redeemable asset value of a supplier's notes at the
// current exchange rate.
func (m *LendingMarket) BalanceOf(supplier string) sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sdkmath.LegacyNewDecFromInt(m.noteBalance(supplier)).Mul(m.rate).TruncateInt()
}

// SetExchangeRate updates the note/asset rate. Raising it simulates accrued
// yield; lowering it simulates a market loss.
func (m *LendingMarket) SetExchangeRate(rate sdkmath.LegacyDec) error {
	if rate.IsNil() || !rate.IsPositive() {
		return &IntegrationError{Integration: m.name, Op: "set_rate", Code: CodeInvalidAmount, Detail: "rate must be positive"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rate = rate
	return nil
}

// Snapshot returns a copy of the market's note ledger and rate.
func (m *LendingMarket) Snapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()

	notes := make(map[string]sdkmath.Int, len(m.notes))
	for supplier, n := range m.notes {
		notes[supplier] = n
	}
	return lendingSnapshot{rate: m.rate, notes: notes}
}

// Restore resets the market to a snapshot previously taken with Snapshot.
func (m *LendingMarket) Restore(snapshot any) {
	snap, ok := snapshot.(lendingSnapshot)
	if !ok {
		panic("integrations: LendingMarket.Restore called with a foreign snapshot")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rate = snap.rate
	m.notes = make(map[string]sdkmath.Int, len(snap.notes))
	for supplier, n := range snap.notes {
		m.notes[supplier] = n
	}
}

// noteBalance assumes the lock is held.
func (m *LendingMarket) noteBalance(supplier string) sdkmath.Int {
	if n, ok := m.notes[supplier]; ok {
		return n
	}
	return sdkmath.ZeroInt()
}
