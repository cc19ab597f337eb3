package cellar

import (
	"errors"
	"fmt"
)

// Error definitions for zero-tolerance error handling. Every entry point
// aborts with one of these (wrapped with context) and no partial state
// change survives the failure.
var (
	// Trust errors
	ErrCallToAdaptorNotAllowed = errors.New("call to adaptor not allowed")
	ErrPositionNotTrusted      = errors.New("position is not trusted by the registry")
	ErrPositionNotInCatalogue  = errors.New("position is not in this vault's catalogue")
	ErrPositionAlreadyUsed     = errors.New("position is already active")
	ErrDebtMismatch            = errors.New("position debt flag mismatch")

	// ErrAdaptorNotInCatalogue is the catalogue-miss case of
	// ErrCallToAdaptorNotAllowed and matches both sentinels.
	ErrAdaptorNotInCatalogue = fmt.Errorf("%w: adaptor is not in this vault's catalogue", ErrCallToAdaptorNotAllowed)

	// Liquidity errors
	ErrWithdrawInsufficientLiquidity = errors.New("insufficient withdrawable liquidity")
	ErrDepositCapExceeded            = errors.New("deposit cap exceeded")

	// Safety-bound errors
	ErrTotalAssetDeviationTooHigh = errors.New("total asset deviation too high")
	ErrHealthFactorTooLow         = errors.New("health factor too low")
	ErrInvalidDeviation           = errors.New("rebalance deviation out of range")
	ErrInvalidLockPeriod          = errors.New("share lock period out of range")

	// Lifecycle errors
	ErrVaultShutDown           = errors.New("vault is shut down")
	ErrVaultNotShutDown        = errors.New("vault is not shut down")
	ErrSharesLocked            = errors.New("shares are still locked")
	ErrHoldingPositionRemoval  = errors.New("holding position cannot be removed")
	ErrInvalidHoldingPosition  = errors.New("position cannot serve as holding position")
	ErrPositionBalanceNonZero  = errors.New("position balance is not zero")
	ErrPositionNotFound        = errors.New("position is not active at that index")
	ErrUnauthorized            = errors.New("caller is not authorized")
	ErrInvalidAmount           = errors.New("amount is invalid")
	ErrInsufficientShares      = errors.New("share balance too low")
)
