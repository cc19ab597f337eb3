/*

Package oracle defines the valuation contract the vault engine and registry
depend on, plus an in-memory fixed-rate implementation. Feed aggregation and
staleness handling live behind this boundary and are not part of this module.

*/

package oracle

import (
	"errors"
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/types"
)

var (
	// ErrPricingUnsupported is returned when an asset has no registered
	// price. Callers must fail rather than assume a 1:1 rate.
	ErrPricingUnsupported = errors.New("pricing unsupported for asset")

	ErrInvalidPrice = errors.New("price is invalid")
)

// Router values one asset in terms of another. ValueOf must be monotonic in
// amount and deterministic within a single top-level call.
type Router interface {
	// ValueOf returns the value of amount base units of from, expressed in
	// base units of to.
	ValueOf(from types.Asset, amount sdkmath.Int, to types.Asset) (sdkmath.Int, error)

	// IsSupported reports whether asset is currently priceable.
	IsSupported(asset types.Asset) bool
}

type assetPrice struct {
	price    sdkmath.LegacyDec // quote per whole unit
	decimals int
}

// FixedRouter is an in-memory Router backed by governance-set prices. Each
// asset carries a price per whole unit in a common quote plus its base-unit
// precision, so conversions between assets of different decimals stay exact
// up to truncation.
type FixedRouter struct {
	mu     sync.RWMutex
	prices map[types.Asset]assetPrice
}

// NewFixedRouter creates an empty fixed-rate router.
func NewFixedRouter() *FixedRouter {
	return &FixedRouter{
		prices: make(map[types.Asset]assetPrice),
	}
}

// SetPrice registers or updates the quote price for one whole unit of asset.
func (r *FixedRouter) SetPrice(asset types.Asset, price sdkmath.LegacyDec, decimals int) error {
	if price.IsNil() || !price.IsPositive() {
		return fmt.Errorf("%w: %s", ErrInvalidPrice, asset)
	}
	if decimals < 0 || decimals > 18 {
		return fmt.Errorf("%w: decimals %d out of range for %s", ErrInvalidPrice, decimals, asset)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.prices[asset] = assetPrice{price: price, decimals: decimals}
	return nil
}

// DropPrice removes an asset's price, making it unsupported again.
func (r *FixedRouter) DropPrice(asset types.Asset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.prices, asset)
}

// IsSupported reports whether asset has a registered price.
func (r *FixedRouter) IsSupported(asset types.Asset) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.prices[asset]
	return ok
}

// ValueOf converts amount base units of from into base units of to, rounding
// down. Fails with ErrPricingUnsupported if either asset is unpriced.
func (r *FixedRouter) ValueOf(from types.Asset, amount sdkmath.Int, to types.Asset) (sdkmath.Int, error) {
	r.mu.RLock()
	fromPrice, fromOK := r.prices[from]
	toPrice, toOK := r.prices[to]
	r.mu.RUnlock()

	if !fromOK {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrPricingUnsupported, from)
	}
	if !toOK {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: %s", ErrPricingUnsupported, to)
	}
	if amount.IsNil() || amount.IsNegative() {
		return sdkmath.ZeroInt(), fmt.Errorf("%w: amount %s of %s", ErrInvalidPrice, amount, from)
	}
	if amount.IsZero() {
		return sdkmath.ZeroInt(), nil
	}

	// quoteValue = amount / 10^fromDec * fromPrice
	// result     = quoteValue / toPrice * 10^toDec
	fromFactor := sdkmath.LegacyNewDec(10).Power(uint64(fromPrice.decimals))
	toFactor := sdkmath.LegacyNewDec(10).Power(uint64(toPrice.decimals))

	quoteValue := sdkmath.LegacyNewDecFromInt(amount).Quo(fromFactor).Mul(fromPrice.price)
	result := quoteValue.Quo(toPrice.price).Mul(toFactor)

	return result.TruncateInt(), nil
}
