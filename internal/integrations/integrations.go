/*

Package integrations holds the external systems the vault deploys capital
into: lending markets, borrow markets, liquidity pools, swap venues, vesting
streams and the wrapped-native bridge. The cellar core specifies these only
at their interface boundary; the in-memory implementations here keep the
whole state in process so every integration can participate in the engine's
snapshot/restore discipline.

All fund movement goes through the shared ledger book. Each integration owns
a ledger account holding the funds placed with it.

*/

package integrations

import (
	"fmt"
)

// IntegrationError is a failure reported by an external integration. The
// numeric code is the integration's own error code, propagated so callers
// can diagnose the rejection without inspecting integration state.
type IntegrationError struct {
	Integration string
	Op          string
	Code        uint32
	Detail      string
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("%s: %s failed with code %d: %s", e.Integration, e.Op, e.Code, e.Detail)
}

// Error codes reported by the in-memory integrations.
const (
	CodeInsufficientBalance uint32 = 11
	CodeInsufficientLiquidity uint32 = 12
	CodeUnknownPair           uint32 = 21
	CodeNothingVested         uint32 = 31
	CodeInvalidAmount         uint32 = 41
)
