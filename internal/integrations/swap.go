package integrations

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/types"
)

type pairKey struct {
	from types.Asset
	to   types.Asset
}

// SwapVenue executes spot swaps at configured rates minus a venue fee. The
// venue pays out of its own inventory account; the slippage guard itself
// lives in the swap adaptor, which compares realized output against the
// caller's minimum.
type SwapVenue struct {
	mu      sync.Mutex
	name    string
	book    *ledger.Book
	account string
	fee     sdkmath.LegacyDec
	rates   map[pairKey]sdkmath.LegacyDec
}

// NewSwapVenue creates a swap venue with the given fee fraction, holding its
// inventory in the ledger account "venue:<name>".
func NewSwapVenue(name string, book *ledger.Book, fee sdkmath.LegacyDec) *SwapVenue {
	return &SwapVenue{
		name:    name,
		book:    book,
		account: "venue:" + name,
		fee:     fee,
		rates:   make(map[pairKey]sdkmath.LegacyDec),
	}
}

func (v *SwapVenue) Name() string    { return v.name }
func (v *SwapVenue) Account() string { return v.account }

// SetRate configures the from->to exchange rate (whole units, direction
// specific; register both directions for two-way trading).
func (v *SwapVenue) SetRate(from, to types.Asset, rate sdkmath.LegacyDec) error {
	if rate.IsNil() || !rate.IsPositive() {
		return &IntegrationError{Integration: v.name, Op: "set_rate", Code: CodeInvalidAmount, Detail: "rate must be positive"}
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rates[pairKey{from: from, to: to}] = rate
	return nil
}

// SetFee updates the venue fee fraction.
func (v *SwapVenue) SetFee(fee sdkmath.LegacyDec) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.fee = fee
}

// Swap trades amountIn of from for to on behalf of account, returning the
// realized output amount.
func (v *SwapVenue) Swap(account string, from, to types.Asset, amountIn sdkmath.Int) (sdkmath.Int, error) {
	if amountIn.IsNil() || !amountIn.IsPositive() {
		return sdkmath.ZeroInt(), &IntegrationError{Integration: v.name, Op: "swap", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	rate, ok := v.rates[pairKey{from: from, to: to}]
	if !ok {
		return sdkmath.ZeroInt(), &IntegrationError{
			Integration: v.name, Op: "swap", Code: CodeUnknownPair,
			Detail: fmt.Sprintf("no rate for %s -> %s", from, to),
		}
	}

	out := sdkmath.LegacyNewDecFromInt(amountIn).Mul(rate).Mul(sdkmath.LegacyOneDec().Sub(v.fee)).TruncateInt()

	if err := v.book.Transfer(account, v.account, from, amountIn); err != nil {
		return sdkmath.ZeroInt(), &IntegrationError{Integration: v.name, Op: "swap", Code: CodeInsufficientBalance, Detail: err.Error()}
	}
	if err := v.book.Transfer(v.account, account, to, out); err != nil {
		return sdkmath.ZeroInt(), &IntegrationError{Integration: v.name, Op: "swap", Code: CodeInsufficientLiquidity, Detail: err.Error()}
	}
	return out, nil
}

// SwapVenue keeps no state beyond ledger balances and static rates, so its
// restore point is empty; the ledger snapshot covers the balances.
func (v *SwapVenue) Snapshot() any      { return nil }
func (v *SwapVenue) Restore(snapshot any) {}
