package integrations

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/types"
)

// LiquidityPool is a single-asset staking pool. Stakers receive pool shares
// at par; the pool takes a fee on exit, which is the realized slippage the
// rebalance deviation bound must tolerate (or catch, when it is too large).
type LiquidityPool struct {
	mu          sync.Mutex
	name        string
	book        *ledger.Book
	account     string
	asset       types.Asset
	exitFee     sdkmath.LegacyDec
	stakes      map[string]sdkmath.Int
	totalShares sdkmath.Int
}

type poolSnapshot struct {
	stakes      map[string]sdkmath.Int
	totalShares sdkmath.Int
}

// NewLiquidityPool creates a pool for asset with the given exit fee
// fraction, holding deposits in the ledger account "pool:<name>".
func NewLiquidityPool(name string, book *ledger.Book, asset types.Asset, exitFee sdkmath.LegacyDec) *LiquidityPool {
	return &LiquidityPool{
		name:        name,
		book:        book,
		account:     "pool:" + name,
		asset:       asset,
		exitFee:     exitFee,
		stakes:      make(map[string]sdkmath.Int),
		totalShares: sdkmath.ZeroInt(),
	}
}

func (p *LiquidityPool) Name() string      { return p.name }
func (p *LiquidityPool) Account() string   { return p.account }
func (p *LiquidityPool) Asset() types.Asset { return p.asset }

// ExitFee returns the fee fraction charged when leaving the pool.
func (p *LiquidityPool) ExitFee() sdkmath.LegacyDec { return p.exitFee }

// Join stakes amount of the pool asset and mints shares at par.
func (p *LiquidityPool) Join(staker string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: p.name, Op: "join", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.book.Transfer(staker, p.account, p.asset, amount); err != nil {
		return &IntegrationError{Integration: p.name, Op: "join", Code: CodeInsufficientBalance, Detail: err.Error()}
	}
	p.stakes[staker] = p.shares(staker).Add(amount)
	p.totalShares = p.totalShares.Add(amount)
	return nil
}

// Exit burns shares and pays the staked asset to recipient, net of the exit
// fee. Returns the amount actually paid out.
func (p *LiquidityPool) Exit(staker, recipient string, shares sdkmath.Int) (sdkmath.Int, error) {
	if shares.IsNil() || !shares.IsPositive() {
		return sdkmath.ZeroInt(), &IntegrationError{Integration: p.name, Op: "exit", Code: CodeInvalidAmount, Detail: "non-positive shares"}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	held := p.shares(staker)
	if held.LT(shares) {
		return sdkmath.ZeroInt(), &IntegrationError{
			Integration: p.name, Op: "exit", Code: CodeInsufficientBalance,
			Detail: fmt.Sprintf("staker %s holds %s shares, requested %s", staker, held, shares),
		}
	}

	out := sdkmath.LegacyNewDecFromInt(shares).Mul(sdkmath.LegacyOneDec().Sub(p.exitFee)).TruncateInt()
	if out.IsPositive() {
		if err := p.book.Transfer(p.account, recipient, p.asset, out); err != nil {
			return sdkmath.ZeroInt(), &IntegrationError{Integration: p.name, Op: "exit", Code: CodeInsufficientLiquidity, Detail: err.Error()}
		}
	}
	p.stakes[staker] = held.Sub(shares)
	p.totalShares = p.totalShares.Sub(shares)
	return out, nil
}

// SharesOf returns a staker's pool shares.
func (p *LiquidityPool) SharesOf(staker string) sdkmath.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shares(staker)
}

// Snapshot returns a copy of all stakes.
func (p *LiquidityPool) Snapshot() any {
	p.mu.Lock()
	defer p.mu.Unlock()

	stakes := make(map[string]sdkmath.Int, len(p.stakes))
	for staker, s := range p.stakes {
		stakes[staker] = s
	}
	return poolSnapshot{stakes: stakes, totalShares: p.totalShares}
}

// Restore resets the pool to a snapshot previously taken with Snapshot.
func (p *LiquidityPool) Restore(snapshot any) {
	snap, ok := snapshot.(poolSnapshot)
	if !ok {
		panic("integrations: LiquidityPool.Restore called with a foreign snapshot")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.stakes = make(map[string]sdkmath.Int, len(snap.stakes))
	for staker, s := range snap.stakes {
		p.stakes[staker] = s
	}
	p.totalShares = snap.totalShares
}

// shares assumes the lock is held.
func (p *LiquidityPool) shares(staker string) sdkmath.Int {
	if s, ok := p.stakes[staker]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}
