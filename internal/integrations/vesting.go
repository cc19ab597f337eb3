package integrations

import (
	"fmt"
	"sync"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/types"
)

// VestingStream releases a fixed grant linearly over a duration. The stream
// account must be funded with the full grant up front; claims pay out the
// vested, unclaimed portion. The remaining grant is owed to the beneficiary
// but is not withdrawable ahead of schedule, which makes vesting positions
// the canonical illiquid position.
type VestingStream struct {
	mu       sync.Mutex
	name     string
	book     *ledger.Book
	account  string
	asset    types.Asset
	total    sdkmath.Int
	claimed  sdkmath.Int
	start    time.Time
	duration time.Duration
	now      func() time.Time
}

type vestingSnapshot struct {
	claimed sdkmath.Int
}

// NewVestingStream creates a stream of total base units of asset vesting
// linearly from start over duration. now is injectable for tests; nil means
// time.Now.
func NewVestingStream(name string, book *ledger.Book, asset types.Asset, total sdkmath.Int, start time.Time, duration time.Duration, now func() time.Time) *VestingStream {
	if now == nil {
		now = time.Now
	}
	return &VestingStream{
		name:     name,
		book:     book,
		account:  "stream:" + name,
		asset:    asset,
		total:    total,
		claimed:  sdkmath.ZeroInt(),
		start:    start,
		duration: duration,
		now:      now,
	}
}

func (s *VestingStream) Name() string      { return s.name }
func (s *VestingStream) Account() string   { return s.account }
func (s *VestingStream) Asset() types.Asset { return s.asset }

// Vested returns the cumulative amount vested at time t.
func (s *VestingStream) Vested(t time.Time) sdkmath.Int {
	if !t.After(s.start) {
		return sdkmath.ZeroInt()
	}
	elapsed := t.Sub(s.start)
	if elapsed >= s.duration || s.duration <= 0 {
		return s.total
	}
	return sdkmath.LegacyNewDecFromInt(s.total).
		MulInt64(int64(elapsed)).
		QuoInt64(int64(s.duration)).
		TruncateInt()
}

// Claimable returns the vested amount not yet claimed.
func (s *VestingStream) Claimable() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.claimableLocked()
}

// Remaining returns the part of the grant still owed (vested or not).
func (s *VestingStream) Remaining() sdkmath.Int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total.Sub(s.claimed)
}

// Claim pays amount of the vested grant to recipient.
func (s *VestingStream) Claim(recipient string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: s.name, Op: "claim", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	claimable := s.claimableLocked()
	if claimable.LT(amount) {
		return &IntegrationError{
			Integration: s.name, Op: "claim", Code: CodeNothingVested,
			Detail: fmt.Sprintf("claimable %s, requested %s", claimable, amount),
		}
	}
	if err := s.book.Transfer(s.account, recipient, s.asset, amount); err != nil {
		return &IntegrationError{Integration: s.name, Op: "claim", Code: CodeInsufficientLiquidity, Detail: err.Error()}
	}
	s.claimed = s.claimed.Add(amount)
	return nil
}

// Snapshot returns the stream's claim progress.
func (s *VestingStream) Snapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return vestingSnapshot{claimed: s.claimed}
}

// Restore resets the stream to a snapshot previously taken with Snapshot.
func (s *VestingStream) Restore(snapshot any) {
	snap, ok := snapshot.(vestingSnapshot)
	if !ok {
		panic("integrations: VestingStream.Restore called with a foreign snapshot")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.claimed = snap.claimed
}

// claimableLocked assumes the lock is held.
func (s *VestingStream) claimableLocked() sdkmath.Int {
	return s.Vested(s.now()).Sub(s.claimed)
}
