/*

This file contains the types describing strategist rebalance calls: the
batched adaptor invocations submitted through the vault engine's single
controlled entry point, and the receipts/snapshots recorded for each one.

*/

package types

import (
	"encoding/json"
	"time"

	sdkmath "cosmossdk.io/math"
)

// SubCallType defines the specific low-level adaptor operations.
type SubCallType string

const (
	SubCallDeposit  SubCallType = "DEPOSIT"  // Move vault funds into the integration
	SubCallWithdraw SubCallType = "WITHDRAW" // Pull funds from the integration back to the vault
	SubCallCustom   SubCallType = "CUSTOM"   // Adaptor-specific operation (swap, borrow, claim, ...)
)

// SubCall is a single executable step inside a rebalance batch. Every
// sub-call references a trusted position; the engine resolves the position to
// its (adaptor, configuration) pair and dispatches against that adaptor.
type SubCall struct {
	Type       SubCallType `json:"type"`
	PositionID PositionID  `json:"position_id"`

	// Amount for DEPOSIT/WITHDRAW, in the position asset's base units.
	Amount sdkmath.Int `json:"amount,omitempty"`

	// Extra data for WITHDRAW, passed through to the adaptor untouched.
	Extra json.RawMessage `json:"extra,omitempty"`

	// Op and Params for CUSTOM calls, decoded only by the target adaptor.
	Op     string          `json:"op,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
}

// AdaptorCall groups the sub-calls aimed at one adaptor. The engine verifies
// the adaptor is in the vault's catalogue before executing any of them.
type AdaptorCall struct {
	Adaptor string    `json:"adaptor"`
	Calls   []SubCall `json:"calls"`
}

// RebalanceSnapshot captures one CallOnAdaptor invocation end to end: the
// pre/post valuations the deviation bound was checked against, the batches
// as submitted, and the outcome.
type RebalanceSnapshot struct {
	TraceID         string        `json:"trace_id"`
	Timestamp       time.Time     `json:"timestamp"`
	PreTotalAssets  sdkmath.Int   `json:"pre_total_assets"`
	PostTotalAssets sdkmath.Int   `json:"post_total_assets"`
	Batches         []AdaptorCall `json:"batches"`
	Success         bool          `json:"success"`
	Error           string        `json:"error,omitempty"`
}

// VaultEventType classifies user-facing share-ledger events.
type VaultEventType string

const (
	EventDeposit  VaultEventType = "DEPOSIT"
	EventWithdraw VaultEventType = "WITHDRAW"
	EventRedeem   VaultEventType = "REDEEM"
	EventTransfer VaultEventType = "TRANSFER"
)

// VaultEvent is the receipt recorded for a completed deposit, withdrawal,
// redemption or share transfer.
type VaultEvent struct {
	Type      VaultEventType `json:"type"`
	Account   string         `json:"account"`
	Receiver  string         `json:"receiver"`
	Assets    sdkmath.Int    `json:"assets"`
	Shares    sdkmath.Int    `json:"shares"`
	Timestamp time.Time      `json:"timestamp"`
}

// PositionView is the read-only description of one active position, as
// exposed on the ops API.
type PositionView struct {
	ID        PositionID  `json:"id"`
	Adaptor   string      `json:"adaptor"`
	Asset     Asset       `json:"asset"`
	Balance   sdkmath.Int `json:"balance"`
	Value     sdkmath.Int `json:"value"` // in the vault's base asset
	IsDebt    bool        `json:"is_debt"`
	IsHolding bool        `json:"is_holding"`
}
