package integrations

import (
	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/types"
)

// WrappedNative converts between the native asset and its wrapped form 1:1,
// burning one side and minting the other.
type WrappedNative struct {
	name    string
	book    *ledger.Book
	native  types.Asset
	wrapped types.Asset
}

// NewWrappedNative creates the native/wrapped bridge.
func NewWrappedNative(name string, book *ledger.Book, native, wrapped types.Asset) *WrappedNative {
	return &WrappedNative{name: name, book: book, native: native, wrapped: wrapped}
}

func (w *WrappedNative) Name() string          { return w.name }
func (w *WrappedNative) Native() types.Asset   { return w.native }
func (w *WrappedNative) Wrapped() types.Asset  { return w.wrapped }

// Wrap converts amount of native held by account into wrapped.
func (w *WrappedNative) Wrap(account string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: w.name, Op: "wrap", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}
	if err := w.book.Burn(account, w.native, amount); err != nil {
		return &IntegrationError{Integration: w.name, Op: "wrap", Code: CodeInsufficientBalance, Detail: err.Error()}
	}
	if err := w.book.Mint(account, w.wrapped, amount); err != nil {
		return &IntegrationError{Integration: w.name, Op: "wrap", Code: CodeInvalidAmount, Detail: err.Error()}
	}
	return nil
}

// Unwrap converts amount of wrapped held by account back to native.
func (w *WrappedNative) Unwrap(account string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: w.name, Op: "unwrap", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}
	if err := w.book.Burn(account, w.wrapped, amount); err != nil {
		return &IntegrationError{Integration: w.name, Op: "unwrap", Code: CodeInsufficientBalance, Detail: err.Error()}
	}
	if err := w.book.Mint(account, w.native, amount); err != nil {
		return &IntegrationError{Integration: w.name, Op: "unwrap", Code: CodeInvalidAmount, Detail: err.Error()}
	}
	return nil
}

// All bridge state lives in ledger balances, so the restore point is empty.
func (w *WrappedNative) Snapshot() any        { return nil }
func (w *WrappedNative) Restore(snapshot any) {}
