/*

This file contains position list and catalogue management: the
governance-gated consent step that admits registry-trusted adaptors and
positions into this vault, and the strategist-facing add/remove/holding
operations on the ordered position lists.

*/

package cellar

import (
	"fmt"

	"github.com/cellar-network/cellar/internal/types"
)

// AddAdaptorToCatalogue consents to using a registry-trusted adaptor from
// this vault. Idempotent.
func (v *Vault) AddAdaptorToCatalogue(caller, name string) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	ad, err := v.registry.Adaptor(name)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.adaptorCatalogue[name] = ad
	v.log.Info().Str("vault", v.name).Str("adaptor", name).Msg("Adaptor added to catalogue")
	return nil
}

// RemoveAdaptorFromCatalogue withdraws consent for future rebalance calls
// against the adaptor. Existing positions keep working.
func (v *Vault) RemoveAdaptorFromCatalogue(caller, name string) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.adaptorCatalogue, name)
	return nil
}

// AddPositionToCatalogue consents to holding a registry-trusted position.
func (v *Vault) AddPositionToCatalogue(caller string, id types.PositionID) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	if !v.registry.IsPositionTrusted(id) {
		return fmt.Errorf("%w: %s", ErrPositionNotTrusted, id)
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.positionCatalogue[id] = true
	return nil
}

// RemovePositionFromCatalogue blocks the position from being re-added. It
// must not be active.
func (v *Vault) RemovePositionFromCatalogue(caller string, id types.PositionID) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.isActive(id) {
		return fmt.Errorf("%w: %s still active", ErrPositionAlreadyUsed, id)
	}
	delete(v.positionCatalogue, id)
	return nil
}

// AddPosition activates a catalogued position at index in the matching
// list. The inDebtList flag must agree with the position's trust record.
func (v *Vault) AddPosition(caller string, index int, id types.PositionID, inDebtList bool) error {
	if err := v.requireStrategist(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.positionCatalogue[id] {
		return fmt.Errorf("%w: %s", ErrPositionNotInCatalogue, id)
	}
	if !v.registry.IsPositionTrusted(id) {
		return fmt.Errorf("%w: %s", ErrPositionNotTrusted, id)
	}
	if v.isActive(id) {
		return fmt.Errorf("%w: %s", ErrPositionAlreadyUsed, id)
	}
	_, _, isDebt, err := v.registry.Lookup(id)
	if err != nil {
		return err
	}
	if isDebt != inDebtList {
		return fmt.Errorf("%w: position %s debt=%t, requested list debt=%t",
			ErrDebtMismatch, id, isDebt, inDebtList)
	}

	if inDebtList {
		v.debtPositions, err = insertAt(v.debtPositions, index, id)
	} else {
		v.creditPositions, err = insertAt(v.creditPositions, index, id)
	}
	if err != nil {
		return err
	}
	v.log.Info().
		Str("vault", v.name).
		Str("position", id.String()).
		Bool("debt", inDebtList).
		Int("index", index).
		Msg("Position activated")
	return nil
}

// RemovePosition deactivates the position at index. The position must be
// empty; the holding position cannot be removed.
func (v *Vault) RemovePosition(caller string, index int, inDebtList bool) error {
	if err := v.requireStrategist(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	id, err := v.positionAt(index, inDebtList)
	if err != nil {
		return err
	}
	if id == v.holdingPosition {
		return fmt.Errorf("%w: %s", ErrHoldingPositionRemoval, id)
	}

	ad, config, _, err := v.registry.Lookup(id)
	if err != nil {
		return err
	}
	balance, err := ad.BalanceOf(config)
	if err != nil {
		return err
	}
	if balance.IsPositive() {
		return fmt.Errorf("%w: %s holds %s", ErrPositionBalanceNonZero, id, balance)
	}

	v.removeAt(index, inDebtList)
	v.log.Info().Str("vault", v.name).Str("position", id.String()).Msg("Position removed")
	return nil
}

// ForceRemovePosition is the governance escape hatch for a position whose
// integration is broken: it is dropped from the list regardless of balance,
// orphaning whatever the integration still holds.
func (v *Vault) ForceRemovePosition(caller string, index int, inDebtList bool) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	id, err := v.positionAt(index, inDebtList)
	if err != nil {
		return err
	}
	if id == v.holdingPosition {
		return fmt.Errorf("%w: %s", ErrHoldingPositionRemoval, id)
	}
	v.removeAt(index, inDebtList)
	v.log.Warn().Str("vault", v.name).Str("position", id.String()).Msg("Position force-removed")
	return nil
}

// SwapPositions reorders two entries of one list, changing drain priority.
func (v *Vault) SwapPositions(caller string, i, j int, inDebtList bool) error {
	if err := v.requireStrategist(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	list := v.creditPositions
	if inDebtList {
		list = v.debtPositions
	}
	if i < 0 || j < 0 || i >= len(list) || j >= len(list) {
		return fmt.Errorf("%w: indices %d,%d out of range", ErrPositionNotFound, i, j)
	}
	list[i], list[j] = list[j], list[i]
	return nil
}

// SetHoldingPosition designates the credit position deposits land in and
// withdrawals drain first. It must be active, non-debt and denominated in
// the base asset.
func (v *Vault) SetHoldingPosition(caller string, id types.PositionID) error {
	if err := v.requireStrategist(caller); err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	found := false
	for _, p := range v.creditPositions {
		if p == id {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s is not an active credit position", ErrInvalidHoldingPosition, id)
	}
	ad, config, _, err := v.registry.Lookup(id)
	if err != nil {
		return err
	}
	asset, err := ad.AssetOf(config)
	if err != nil {
		return err
	}
	if asset != v.baseAsset {
		return fmt.Errorf("%w: %s is denominated in %s, vault base is %s",
			ErrInvalidHoldingPosition, id, asset, v.baseAsset)
	}

	v.holdingPosition = id
	v.log.Info().Str("vault", v.name).Str("position", id.String()).Msg("Holding position set")
	return nil
}

// HoldingPosition returns the current holding position identifier.
func (v *Vault) HoldingPosition() types.PositionID {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.holdingPosition
}

// Positions returns a read-only view of every active position with live
// balances and base-asset valuations.
func (v *Vault) Positions() ([]types.PositionView, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	views := make([]types.PositionView, 0, len(v.creditPositions)+len(v.debtPositions))
	appendViews := func(ids []types.PositionID, isDebt bool) error {
		for _, id := range ids {
			ad, config, _, err := v.registry.Lookup(id)
			if err != nil {
				return err
			}
			balance, err := ad.BalanceOf(config)
			if err != nil {
				return err
			}
			asset, err := ad.AssetOf(config)
			if err != nil {
				return err
			}
			value, err := v.router.ValueOf(asset, balance, v.baseAsset)
			if err != nil {
				return err
			}
			views = append(views, types.PositionView{
				ID:        id,
				Adaptor:   ad.Name(),
				Asset:     asset,
				Balance:   balance,
				Value:     value,
				IsDebt:    isDebt,
				IsHolding: id == v.holdingPosition,
			})
		}
		return nil
	}
	if err := appendViews(v.creditPositions, false); err != nil {
		return nil, err
	}
	if err := appendViews(v.debtPositions, true); err != nil {
		return nil, err
	}
	return views, nil
}

// isActive assumes the lock is held.
func (v *Vault) isActive(id types.PositionID) bool {
	for _, p := range v.creditPositions {
		if p == id {
			return true
		}
	}
	for _, p := range v.debtPositions {
		if p == id {
			return true
		}
	}
	return false
}

// positionAt assumes the lock is held.
func (v *Vault) positionAt(index int, inDebtList bool) (types.PositionID, error) {
	list := v.creditPositions
	if inDebtList {
		list = v.debtPositions
	}
	if index < 0 || index >= len(list) {
		return types.NilPositionID, fmt.Errorf("%w: index %d", ErrPositionNotFound, index)
	}
	return list[index], nil
}

// removeAt assumes the lock is held and the index has been validated.
func (v *Vault) removeAt(index int, inDebtList bool) {
	if inDebtList {
		v.debtPositions = append(v.debtPositions[:index], v.debtPositions[index+1:]...)
	} else {
		v.creditPositions = append(v.creditPositions[:index], v.creditPositions[index+1:]...)
	}
}

func insertAt(list []types.PositionID, index int, id types.PositionID) ([]types.PositionID, error) {
	if index < 0 || index > len(list) {
		return list, fmt.Errorf("%w: index %d of %d", ErrPositionNotFound, index, len(list))
	}
	list = append(list, types.NilPositionID)
	copy(list[index+1:], list[index:])
	list[index] = id
	return list, nil
}
