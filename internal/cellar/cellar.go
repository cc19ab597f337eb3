/*

Package cellar implements the vault engine: share issuance and redemption,
the ordered credit/debt position list, strategist-directed rebalances with a
bounded-loss guarantee, and the lock/shutdown lifecycle.

All mutating entry points are serialized behind one mutex and committed
all-or-nothing: the engine captures a restore point (its own state, the
ledger, every registered integration) before touching anything and rolls
everything back on failure.

*/

package cellar

import (
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/rs/zerolog"

	"github.com/cellar-network/cellar/internal/adaptor"
	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/logger"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/registry"
	"github.com/cellar-network/cellar/internal/types"
	"sync"
)

// Governance-tunable bounds.
var (
	// MaxRebalanceDeviation caps how permissive the deviation bound can be
	// set (10% of total assets per strategist call).
	MaxRebalanceDeviation = sdkmath.LegacyNewDecWithPrec(1, 1)

	// MaxShareLockPeriod caps the share lock a vault may impose.
	MaxShareLockPeriod = 7 * 24 * time.Hour
)

// Recorder receives receipts for completed (or reverted) vault operations.
// Implementations must not mutate vault state; persistence and metrics both
// hang off this hook.
type Recorder interface {
	RecordRebalance(snapshot types.RebalanceSnapshot)
	RecordEvent(event types.VaultEvent)
}

// Config holds everything needed to construct a Vault.
type Config struct {
	Name       string
	BaseAsset  types.Asset
	Governance string
	Strategist string

	Registry *registry.Registry
	Book     *ledger.Book

	LockPeriod         time.Duration
	RebalanceDeviation sdkmath.LegacyDec
	DepositCap         sdkmath.Int       // zero means uncapped
	MinHealthFactor    sdkmath.LegacyDec // zero disables the check
	DecimalsOffset     int               // share-price inflation-attack guard

	// Snapshotters are the integrations whose state must be included in
	// every restore point. The ledger book is always included.
	Snapshotters []types.Snapshotter

	Recorders []Recorder

	// Now is injectable for lock-period tests; nil means time.Now.
	Now func() time.Time
}

// Vault is one cellar instance. Its ledger account ("cellar:<name>") holds
// idle funds; everything else lives in the positions.
type Vault struct {
	mu  sync.Mutex
	log zerolog.Logger

	name       string
	account    string
	baseAsset  types.Asset
	governance string
	strategist string

	registry *registry.Registry
	router   oracle.Router
	book     *ledger.Book

	// Vault-local catalogues: which registry-trusted adaptors/positions this
	// instance has consented to use.
	adaptorCatalogue  map[string]adaptor.Adaptor
	positionCatalogue map[types.PositionID]bool

	creditPositions []types.PositionID
	debtPositions   []types.PositionID
	holdingPosition types.PositionID

	shares      map[string]sdkmath.Int
	totalShares sdkmath.Int
	locks       map[string]time.Time

	lockPeriod      time.Duration
	deviation       sdkmath.LegacyDec
	depositCap      sdkmath.Int
	minHealthFactor sdkmath.LegacyDec
	shareOffset     sdkmath.Int
	shutdown        bool

	snapshotters []types.Snapshotter
	recorders    []Recorder
	now          func() time.Time
}

// New creates a vault engine from cfg.
func New(cfg Config) (*Vault, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("cellar configuration validation failed: %w", err)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	depositCap := cfg.DepositCap
	if depositCap.IsNil() {
		depositCap = sdkmath.ZeroInt()
	}
	minHF := cfg.MinHealthFactor
	if minHF.IsNil() {
		minHF = sdkmath.LegacyZeroDec()
	}

	offset := sdkmath.NewInt(10).ToLegacyDec().Power(uint64(cfg.DecimalsOffset)).TruncateInt()

	v := &Vault{
		log:               logger.GetForComponent("vault_engine"),
		name:              cfg.Name,
		account:           "cellar:" + cfg.Name,
		baseAsset:         cfg.BaseAsset,
		governance:        cfg.Governance,
		strategist:        cfg.Strategist,
		registry:          cfg.Registry,
		router:            cfg.Registry.Router(),
		book:              cfg.Book,
		adaptorCatalogue:  make(map[string]adaptor.Adaptor),
		positionCatalogue: make(map[types.PositionID]bool),
		shares:            make(map[string]sdkmath.Int),
		totalShares:       sdkmath.ZeroInt(),
		locks:             make(map[string]time.Time),
		lockPeriod:        cfg.LockPeriod,
		deviation:         cfg.RebalanceDeviation,
		depositCap:        depositCap,
		minHealthFactor:   minHF,
		shareOffset:       offset,
		snapshotters:      cfg.Snapshotters,
		recorders:         cfg.Recorders,
		now:               now,
	}

	v.log.Info().
		Str("vault", v.name).
		Str("baseAsset", v.baseAsset.String()).
		Str("deviation", v.deviation.String()).
		Dur("lockPeriod", v.lockPeriod).
		Msg("Vault engine created")
	return v, nil
}

func validateConfig(cfg Config) error {
	if cfg.Name == "" {
		return fmt.Errorf("vault name cannot be empty")
	}
	if cfg.BaseAsset == "" {
		return fmt.Errorf("base asset cannot be empty")
	}
	if cfg.Governance == "" || cfg.Strategist == "" {
		return fmt.Errorf("governance and strategist accounts cannot be empty")
	}
	if cfg.Registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	if cfg.Book == nil {
		return fmt.Errorf("ledger book cannot be nil")
	}
	if !cfg.Registry.Router().IsSupported(cfg.BaseAsset) {
		return fmt.Errorf("base asset %s is not priceable", cfg.BaseAsset)
	}
	if cfg.LockPeriod < 0 || cfg.LockPeriod > MaxShareLockPeriod {
		return fmt.Errorf("%w: %s", ErrInvalidLockPeriod, cfg.LockPeriod)
	}
	if cfg.RebalanceDeviation.IsNil() || cfg.RebalanceDeviation.IsNegative() || cfg.RebalanceDeviation.GT(MaxRebalanceDeviation) {
		return fmt.Errorf("%w: %s", ErrInvalidDeviation, cfg.RebalanceDeviation)
	}
	if cfg.DecimalsOffset < 0 || cfg.DecimalsOffset > 18 {
		return fmt.Errorf("decimals offset out of range: %d", cfg.DecimalsOffset)
	}
	return nil
}

// Name returns the vault's name.
func (v *Vault) Name() string { return v.name }

// Account returns the vault's own ledger account.
func (v *Vault) Account() string { return v.account }

// BaseAsset returns the asset deposits and valuations are denominated in.
func (v *Vault) BaseAsset() types.Asset { return v.baseAsset }

// IsShutdown reports whether the vault is in the ShutDown state.
func (v *Vault) IsShutdown() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shutdown
}

// InitiateShutdown moves the vault to ShutDown: new deposits and strategist
// rebalances are rejected, withdrawals stay open.
func (v *Vault) InitiateShutdown(caller string) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.shutdown {
		return ErrVaultShutDown
	}
	v.shutdown = true
	v.log.Warn().Str("vault", v.name).Msg("Vault shut down")
	return nil
}

// LiftShutdown returns the vault to Active.
func (v *Vault) LiftShutdown(caller string) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.shutdown {
		return ErrVaultNotShutDown
	}
	v.shutdown = false
	v.log.Info().Str("vault", v.name).Msg("Vault shutdown lifted")
	return nil
}

// SetRebalanceDeviation tunes the bounded-loss fraction for strategist calls.
func (v *Vault) SetRebalanceDeviation(caller string, deviation sdkmath.LegacyDec) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	if deviation.IsNil() || deviation.IsNegative() || deviation.GT(MaxRebalanceDeviation) {
		return fmt.Errorf("%w: %s", ErrInvalidDeviation, deviation)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deviation = deviation
	return nil
}

// SetShareLockPeriod tunes the minimum holding period for new deposits.
func (v *Vault) SetShareLockPeriod(caller string, period time.Duration) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	if period < 0 || period > MaxShareLockPeriod {
		return fmt.Errorf("%w: %s", ErrInvalidLockPeriod, period)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.lockPeriod = period
	return nil
}

// SetDepositCap bounds total assets; zero removes the cap.
func (v *Vault) SetDepositCap(caller string, cap sdkmath.Int) error {
	if err := v.requireGovernance(caller); err != nil {
		return err
	}
	if cap.IsNil() || cap.IsNegative() {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, cap)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.depositCap = cap
	return nil
}

// TotalAssets values every active credit position minus every debt position
// in the base asset, fresh from the oracle and adaptors.
func (v *Vault) TotalAssets() (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalAssetsLocked()
}

// TotalShares returns the outstanding share supply.
func (v *Vault) TotalShares() sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.totalShares
}

// ShareBalanceOf returns owner's share balance.
func (v *Vault) ShareBalanceOf(owner string) sdkmath.Int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shareBalance(owner)
}

// SharePrice returns totalAssets/totalShares in base units per share. An
// empty vault reports the virtual-offset price of one.
func (v *Vault) SharePrice() (sdkmath.LegacyDec, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ta, err := v.totalAssetsLocked()
	if err != nil {
		return sdkmath.LegacyZeroDec(), err
	}
	supply := v.totalShares.Add(v.shareOffset)
	if supply.IsZero() {
		return sdkmath.LegacyOneDec(), nil
	}
	return sdkmath.LegacyNewDecFromInt(ta.AddRaw(1)).Quo(sdkmath.LegacyNewDecFromInt(supply)), nil
}

// ConvertToAssets values shares at the current share price, rounding down.
func (v *Vault) ConvertToAssets(shares sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ta, err := v.totalAssetsLocked()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.toAssets(shares, ta), nil
}

// ConvertToShares values assets at the current share price, rounding down.
func (v *Vault) ConvertToShares(assets sdkmath.Int) (sdkmath.Int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	ta, err := v.totalAssetsLocked()
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	return v.toShares(assets, ta), nil
}

// totalAssetsLocked assumes the lock is held. Valuations are never cached:
// every dependent entry point recomputes from live adaptor balances.
func (v *Vault) totalAssetsLocked() (sdkmath.Int, error) {
	total := sdkmath.ZeroInt()

	for _, id := range v.creditPositions {
		value, err := v.positionValue(id)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		total = total.Add(value)
	}
	for _, id := range v.debtPositions {
		value, err := v.positionValue(id)
		if err != nil {
			return sdkmath.ZeroInt(), err
		}
		total = total.Sub(value)
	}
	return total, nil
}

// positionValue prices one position's balance in the base asset.
func (v *Vault) positionValue(id types.PositionID) (sdkmath.Int, error) {
	ad, config, _, err := v.registry.Lookup(id)
	if err != nil {
		return sdkmath.ZeroInt(), err
	}
	balance, err := ad.BalanceOf(config)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("balance of position %s: %w", id, err)
	}
	asset, err := ad.AssetOf(config)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("asset of position %s: %w", id, err)
	}
	value, err := v.router.ValueOf(asset, balance, v.baseAsset)
	if err != nil {
		return sdkmath.ZeroInt(), fmt.Errorf("pricing position %s: %w", id, err)
	}
	return value, nil
}

// toShares converts assets to shares against a known totalAssets, rounding
// down. The virtual offset keeps the first depositor from inflating the
// share price on an empty vault.
func (v *Vault) toShares(assets sdkmath.Int, totalAssets sdkmath.Int) sdkmath.Int {
	supply := v.totalShares.Add(v.shareOffset)
	if supply.IsZero() {
		// Offset zero and empty vault: plain 1:1.
		return assets
	}
	return assets.Mul(supply).Quo(totalAssets.AddRaw(1))
}

// toSharesCeil is toShares rounding up, used when burning shares for an
// exact asset amount so rounding never favors the withdrawer.
func (v *Vault) toSharesCeil(assets sdkmath.Int, totalAssets sdkmath.Int) sdkmath.Int {
	supply := v.totalShares.Add(v.shareOffset)
	if supply.IsZero() {
		return assets
	}
	num := assets.Mul(supply)
	den := totalAssets.AddRaw(1)
	return num.Add(den.SubRaw(1)).Quo(den)
}

// toAssets converts shares to assets against a known totalAssets, rounding
// down.
func (v *Vault) toAssets(shares sdkmath.Int, totalAssets sdkmath.Int) sdkmath.Int {
	supply := v.totalShares.Add(v.shareOffset)
	if supply.IsZero() {
		return shares
	}
	return shares.Mul(totalAssets.AddRaw(1)).Quo(supply)
}

func (v *Vault) shareBalance(owner string) sdkmath.Int {
	if s, ok := v.shares[owner]; ok {
		return s
	}
	return sdkmath.ZeroInt()
}

func (v *Vault) requireGovernance(caller string) error {
	if caller != v.governance {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	return nil
}

func (v *Vault) requireStrategist(caller string) error {
	if caller != v.strategist && caller != v.governance {
		return fmt.Errorf("%w: %s", ErrUnauthorized, caller)
	}
	return nil
}

// engineSnapshot is the engine's own contribution to a restore point.
type engineSnapshot struct {
	creditPositions []types.PositionID
	debtPositions   []types.PositionID
	holdingPosition types.PositionID
	shares          map[string]sdkmath.Int
	totalShares     sdkmath.Int
	locks           map[string]time.Time
}

// restorePoint bundles everything needed to roll the call back: engine
// state, the ledger, and every registered integration.
type restorePoint struct {
	engine       engineSnapshot
	ledger       any
	integrations []any
}

// Snapshot implements types.Snapshotter over the engine's own state, so an
// outer vault holding a position here can include this vault in its restore
// points. Ledger balances are covered by the book's own snapshot.
func (v *Vault) Snapshot() any {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Restore resets the engine to a snapshot previously taken with Snapshot.
func (v *Vault) Restore(snapshot any) {
	snap, ok := snapshot.(engineSnapshot)
	if !ok {
		panic("cellar: Vault.Restore called with a foreign snapshot")
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.restoreLocked(snap)
}

// snapshotLocked assumes the lock is held.
func (v *Vault) snapshotLocked() engineSnapshot {
	snap := engineSnapshot{
		creditPositions: append([]types.PositionID(nil), v.creditPositions...),
		debtPositions:   append([]types.PositionID(nil), v.debtPositions...),
		holdingPosition: v.holdingPosition,
		shares:          make(map[string]sdkmath.Int, len(v.shares)),
		totalShares:     v.totalShares,
		locks:           make(map[string]time.Time, len(v.locks)),
	}
	for owner, s := range v.shares {
		snap.shares[owner] = s
	}
	for owner, t := range v.locks {
		snap.locks[owner] = t
	}
	return snap
}

// restoreLocked assumes the lock is held.
func (v *Vault) restoreLocked(snap engineSnapshot) {
	v.creditPositions = snap.creditPositions
	v.debtPositions = snap.debtPositions
	v.holdingPosition = snap.holdingPosition
	v.shares = snap.shares
	v.totalShares = snap.totalShares
	v.locks = snap.locks
}

// capture assumes the lock is held.
func (v *Vault) capture() restorePoint {
	rp := restorePoint{engine: v.snapshotLocked(), ledger: v.book.Snapshot()}
	for _, s := range v.snapshotters {
		rp.integrations = append(rp.integrations, s.Snapshot())
	}
	return rp
}

// restore assumes the lock is held. Integrations are restored in reverse
// capture order.
func (v *Vault) restore(rp restorePoint) {
	for i := len(v.snapshotters) - 1; i >= 0; i-- {
		v.snapshotters[i].Restore(rp.integrations[i])
	}
	v.book.Restore(rp.ledger)
	v.restoreLocked(rp.engine)
}

func (v *Vault) recordEvent(event types.VaultEvent) {
	for _, r := range v.recorders {
		r.RecordEvent(event)
	}
}

func (v *Vault) recordRebalance(snapshot types.RebalanceSnapshot) {
	for _, r := range v.recorders {
		r.RecordRebalance(snapshot)
	}
}
