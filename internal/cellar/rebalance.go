/*

This file contains CallOnAdaptor, the single controlled entry point through
which the strategist moves vault funds. Every invocation is bracketed by a
restore point and pre/post valuations; a failed sub-call, an excessive
total-asset deviation or a degraded health factor rolls the whole batch
back.

*/

package cellar

import (
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"
	"github.com/google/uuid"

	"github.com/cellar-network/cellar/internal/adaptor"
	"github.com/cellar-network/cellar/internal/types"
)

// CallOnAdaptor executes a batch of adaptor calls atomically. Returns the
// recorded snapshot; on error the vault, ledger and integrations are exactly
// as they were before the call.
func (v *Vault) CallOnAdaptor(caller string, batches []types.AdaptorCall) (types.RebalanceSnapshot, error) {
	snapshot := types.RebalanceSnapshot{
		TraceID: uuid.New().String(),
		Batches: batches,
	}

	if err := v.requireStrategist(caller); err != nil {
		return snapshot, err
	}
	if len(batches) == 0 {
		return snapshot, fmt.Errorf("%w: empty batch", ErrInvalidAmount)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	snapshot.Timestamp = v.now()
	if v.shutdown {
		return snapshot, ErrVaultShutDown
	}

	preTotal, err := v.totalAssetsLocked()
	if err != nil {
		return snapshot, err
	}
	snapshot.PreTotalAssets = preTotal

	rp := v.capture()
	log := v.log.With().Str("traceId", snapshot.TraceID).Logger()

	fail := func(err error) (types.RebalanceSnapshot, error) {
		v.restore(rp)
		snapshot.Success = false
		snapshot.Error = err.Error()
		post, taErr := v.totalAssetsLocked()
		if taErr == nil {
			snapshot.PostTotalAssets = post
		}
		log.Error().Err(err).Msg("Rebalance reverted")
		v.recordRebalance(snapshot)
		return snapshot, err
	}

	for _, batch := range batches {
		if err := v.executeBatch(batch); err != nil {
			return fail(err)
		}
	}

	postTotal, err := v.totalAssetsLocked()
	if err != nil {
		return fail(err)
	}
	snapshot.PostTotalAssets = postTotal

	if err := v.checkDeviation(preTotal, postTotal); err != nil {
		return fail(err)
	}
	if err := v.checkHealthFactors(); err != nil {
		return fail(err)
	}

	snapshot.Success = true
	log.Info().
		Str("preTotalAssets", preTotal.String()).
		Str("postTotalAssets", postTotal.String()).
		Int("batches", len(batches)).
		Msg("Rebalance committed")
	v.recordRebalance(snapshot)
	return snapshot, nil
}

// executeBatch assumes the lock is held and a restore point exists.
func (v *Vault) executeBatch(batch types.AdaptorCall) error {
	ad, ok := v.adaptorCatalogue[batch.Adaptor]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAdaptorNotInCatalogue, batch.Adaptor)
	}
	if !v.registry.IsAdaptorTrusted(batch.Adaptor) {
		return fmt.Errorf("%w: %s", ErrCallToAdaptorNotAllowed, batch.Adaptor)
	}
	if len(batch.Calls) == 0 {
		return fmt.Errorf("%w: adaptor %s batch has no calls", ErrInvalidAmount, batch.Adaptor)
	}

	for _, call := range batch.Calls {
		if err := v.executeSubCall(ad, batch.Adaptor, call); err != nil {
			return err
		}
	}
	return nil
}

// executeSubCall resolves the sub-call's position, verifies it belongs to
// the batch adaptor and is catalogued, then dispatches.
func (v *Vault) executeSubCall(ad adaptor.Adaptor, adaptorName string, call types.SubCall) error {
	posAdaptor, config, _, err := v.registry.Lookup(call.PositionID)
	if err != nil {
		return err
	}
	if posAdaptor.Name() != adaptorName {
		return fmt.Errorf("%w: position %s belongs to adaptor %s, batch targets %s",
			ErrCallToAdaptorNotAllowed, call.PositionID, posAdaptor.Name(), adaptorName)
	}
	if !v.positionCatalogue[call.PositionID] {
		return fmt.Errorf("%w: %s", ErrPositionNotInCatalogue, call.PositionID)
	}

	ctx := adaptor.NewPrivilegedContext(v.account)

	switch call.Type {
	case types.SubCallDeposit:
		// Revocation gates new fund placement only. Withdrawals and
		// custom ops stay open so the vault can exit a revoked position
		// (repay debt, claim vesting, unwind collateral).
		if !v.registry.IsPositionTrusted(call.PositionID) {
			return fmt.Errorf("%w: %s", ErrPositionNotTrusted, call.PositionID)
		}
		if call.Amount.IsNil() || !call.Amount.IsPositive() {
			return fmt.Errorf("%w: deposit amount %s", ErrInvalidAmount, call.Amount)
		}
		if err := ad.Deposit(ctx, call.Amount, config); err != nil {
			return fmt.Errorf("deposit into %s failed: %w", call.PositionID, err)
		}
	case types.SubCallWithdraw:
		if call.Amount.IsNil() || !call.Amount.IsPositive() {
			return fmt.Errorf("%w: withdraw amount %s", ErrInvalidAmount, call.Amount)
		}
		if err := ad.Withdraw(call.Amount, v.account, config, call.Extra); err != nil {
			return fmt.Errorf("withdraw from %s failed: %w", call.PositionID, err)
		}
	case types.SubCallCustom:
		caller, ok := ad.(adaptor.Caller)
		if !ok {
			return fmt.Errorf("%w: adaptor %s exposes no custom operations",
				ErrCallToAdaptorNotAllowed, adaptorName)
		}
		op := strings.TrimSpace(call.Op)
		if op == "" {
			return fmt.Errorf("%w: empty custom op", ErrInvalidAmount)
		}
		if err := caller.Call(ctx, op, call.Params, config); err != nil {
			return fmt.Errorf("custom op %q on %s failed: %w", op, call.PositionID, err)
		}
	default:
		return fmt.Errorf("%w: sub-call type %q", ErrCallToAdaptorNotAllowed, call.Type)
	}
	return nil
}

// checkDeviation enforces the bounded-loss guarantee: a rebalance may not
// move total assets outside [pre*(1-d), pre*(1+d)].
func (v *Vault) checkDeviation(pre, post sdkmath.Int) error {
	preDec := sdkmath.LegacyNewDecFromInt(pre)
	postDec := sdkmath.LegacyNewDecFromInt(post)

	lower := preDec.Mul(sdkmath.LegacyOneDec().Sub(v.deviation))
	upper := preDec.Mul(sdkmath.LegacyOneDec().Add(v.deviation))

	if postDec.LT(lower) || postDec.GT(upper) {
		return fmt.Errorf("%w: pre %s, post %s, allowed [%s, %s]",
			ErrTotalAssetDeviationTooHigh, pre, post,
			lower.TruncateInt(), upper.TruncateInt())
	}
	return nil
}

// checkHealthFactors confirms every health-reporting debt position stays at
// or above the configured minimum. Disabled when the minimum is zero.
func (v *Vault) checkHealthFactors() error {
	if !v.minHealthFactor.IsPositive() {
		return nil
	}
	for _, id := range v.debtPositions {
		ad, config, _, err := v.registry.Lookup(id)
		if err != nil {
			return err
		}
		reporter, ok := ad.(adaptor.HealthReporter)
		if !ok {
			continue
		}
		hf, err := reporter.HealthFactor(config)
		if err != nil {
			return fmt.Errorf("health factor of %s: %w", id, err)
		}
		if hf.LT(v.minHealthFactor) {
			return fmt.Errorf("%w: position %s at %s, minimum %s",
				ErrHealthFactorTooLow, id, hf, v.minHealthFactor)
		}
	}
	return nil
}
