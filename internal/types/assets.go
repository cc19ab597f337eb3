/*

Shared domain types for the cellar system: assets, position identifiers and
the snapshot/restore contract used for revert-based atomicity.

*/

package types

import (
	"github.com/google/uuid"
)

// Asset is an opaque asset denomination, e.g. "usdc" or "lp/stable-pool".
// All amounts in the system are expressed in an asset's base units.
type Asset string

func (a Asset) String() string {
	return string(a)
}

// PositionID is the globally unique handle for a trusted position. It is
// allocated by the registry at trust time and bound permanently to one
// (adaptor, configuration) pair.
type PositionID = uuid.UUID

// NilPositionID is the zero value for a PositionID.
var NilPositionID = uuid.Nil

// NewPositionID allocates a fresh position identifier.
func NewPositionID() PositionID {
	return uuid.New()
}

// Snapshotter is implemented by every stateful collaborator that must be
// rolled back when a vault entry point fails partway through. The engine
// captures snapshots before mutating anything and restores them, in reverse
// order, if the call cannot be committed.
type Snapshotter interface {
	// Snapshot returns an opaque copy of the current state.
	Snapshot() any
	// Restore resets state to a value previously returned by Snapshot.
	Restore(snapshot any)
}
