package integrations

import (
	"fmt"
	"sync"

	sdkmath "cosmossdk.io/math"

	"github.com/cellar-network/cellar/internal/ledger"
	"github.com/cellar-network/cellar/internal/oracle"
	"github.com/cellar-network/cellar/internal/types"
)

// BorrowMarket is a collateralized borrow market: borrowers post collateral
// in one asset and draw debt in another. The market itself does not enforce
// a health floor on every action; the vault engine confirms the reported
// health factor after each rebalance that touches a debt position.
type BorrowMarket struct {
	mu              sync.Mutex
	name            string
	book            *ledger.Book
	account         string
	router          oracle.Router
	collateralAsset types.Asset
	debtAsset       types.Asset
	collateral      map[string]sdkmath.Int
	debts           map[string]sdkmath.Int
}

type borrowSnapshot struct {
	collateral map[string]sdkmath.Int
	debts      map[string]sdkmath.Int
}

// NewBorrowMarket creates a borrow market holding its reserves in the ledger
// account "market:<name>". The router prices collateral against debt for
// health-factor reporting.
func NewBorrowMarket(name string, book *ledger.Book, router oracle.Router, collateralAsset, debtAsset types.Asset) *BorrowMarket {
	return &BorrowMarket{
		name:            name,
		book:            book,
		account:         "market:" + name,
		router:          router,
		collateralAsset: collateralAsset,
		debtAsset:       debtAsset,
		collateral:      make(map[string]sdkmath.Int),
		debts:           make(map[string]sdkmath.Int),
	}
}

func (m *BorrowMarket) Name() string                { return m.name }
func (m *BorrowMarket) Account() string             { return m.account }
func (m *BorrowMarket) CollateralAsset() types.Asset { return m.collateralAsset }
func (m *BorrowMarket) DebtAsset() types.Asset       { return m.debtAsset }

// AddCollateral moves collateral from the borrower into the market.
func (m *BorrowMarket) AddCollateral(borrower string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: m.name, Op: "add_collateral", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.book.Transfer(borrower, m.account, m.collateralAsset, amount); err != nil {
		return &IntegrationError{Integration: m.name, Op: "add_collateral", Code: CodeInsufficientBalance, Detail: err.Error()}
	}
	m.collateral[borrower] = m.balance(m.collateral, borrower).Add(amount)
	return nil
}

// WithdrawCollateral returns posted collateral to the borrower.
func (m *BorrowMarket) WithdrawCollateral(borrower string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: m.name, Op: "withdraw_collateral", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.balance(m.collateral, borrower)
	if held.LT(amount) {
		return &IntegrationError{
			Integration: m.name, Op: "withdraw_collateral", Code: CodeInsufficientBalance,
			Detail: fmt.Sprintf("borrower %s posted %s, requested %s", borrower, held, amount),
		}
	}
	if err := m.book.Transfer(m.account, borrower, m.collateralAsset, amount); err != nil {
		return &IntegrationError{Integration: m.name, Op: "withdraw_collateral", Code: CodeInsufficientLiquidity, Detail: err.Error()}
	}
	m.collateral[borrower] = held.Sub(amount)
	return nil
}

// Borrow draws amount of the debt asset from market reserves.
func (m *BorrowMarket) Borrow(borrower string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: m.name, Op: "borrow", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.book.Transfer(m.account, borrower, m.debtAsset, amount); err != nil {
		return &IntegrationError{Integration: m.name, Op: "borrow", Code: CodeInsufficientLiquidity, Detail: err.Error()}
	}
	m.debts[borrower] = m.balance(m.debts, borrower).Add(amount)
	return nil
}

// Repay pays down borrower debt, up to the amount owed.
func (m *BorrowMarket) Repay(borrower string, amount sdkmath.Int) error {
	if amount.IsNil() || !amount.IsPositive() {
		return &IntegrationError{Integration: m.name, Op: "repay", Code: CodeInvalidAmount, Detail: "non-positive amount"}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	owed := m.balance(m.debts, borrower)
	if owed.LT(amount) {
		amount = owed
	}
	if amount.IsZero() {
		return nil
	}
	if err := m.book.Transfer(borrower, m.account, m.debtAsset, amount); err != nil {
		return &IntegrationError{Integration: m.name, Op: "repay", Code: CodeInsufficientBalance, Detail: err.Error()}
	}
	m.debts[borrower] = owed.Sub(amount)
	return nil
}

// ForwardCollateral moves already-withdrawn collateral from the borrower
// account to another recipient.
func (m *BorrowMarket) ForwardCollateral(borrower, recipient string, amount sdkmath.Int) error {
	if err := m.book.Transfer(borrower, recipient, m.collateralAsset, amount); err != nil {
		return &IntegrationError{Integration: m.name, Op: "forward_collateral", Code: CodeInsufficientBalance, Detail: err.Error()}
	}
	return nil
}

// DebtOf returns the borrower's outstanding debt.
func (m *BorrowMarket) DebtOf(borrower string) sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(m.debts, borrower)
}

// CollateralOf returns the borrower's posted collateral.
func (m *BorrowMarket) CollateralOf(borrower string) sdkmath.Int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balance(m.collateral, borrower)
}

// HealthFactor reports collateral value over debt value for a borrower,
// both priced in the debt asset. A borrower with no debt reports the
// maximum sortable decimal.
func (m *BorrowMarket) HealthFactor(borrower string) (sdkmath.LegacyDec, error) {
	m.mu.Lock()
	collateral := m.balance(m.collateral, borrower)
	debt := m.balance(m.debts, borrower)
	m.mu.Unlock()

	if debt.IsZero() {
		return sdkmath.LegacyMaxSortableDec, nil
	}

	collateralValue, err := m.router.ValueOf(m.collateralAsset, collateral, m.debtAsset)
	if err != nil {
		return sdkmath.LegacyZeroDec(), fmt.Errorf("pricing collateral for health factor: %w", err)
	}
	return sdkmath.LegacyNewDecFromInt(collateralValue).Quo(sdkmath.LegacyNewDecFromInt(debt)), nil
}

// Snapshot returns a copy of all borrower positions.
func (m *BorrowMarket) Snapshot() any {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := borrowSnapshot{
		collateral: make(map[string]sdkmath.Int, len(m.collateral)),
		debts:      make(map[string]sdkmath.Int, len(m.debts)),
	}
	for borrower, c := range m.collateral {
		snap.collateral[borrower] = c
	}
	for borrower, d := range m.debts {
		snap.debts[borrower] = d
	}
	return snap
}

// Restore resets the market to a snapshot previously taken with Snapshot.
func (m *BorrowMarket) Restore(snapshot any) {
	snap, ok := snapshot.(borrowSnapshot)
	if !ok {
		panic("integrations: BorrowMarket.Restore called with a foreign snapshot")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.collateral = make(map[string]sdkmath.Int, len(snap.collateral))
	for borrower, c := range snap.collateral {
		m.collateral[borrower] = c
	}
	m.debts = make(map[string]sdkmath.Int, len(snap.debts))
	for borrower, d := range snap.debts {
		m.debts[borrower] = d
	}
}

// balance assumes the lock is held.
func (m *BorrowMarket) balance(set map[string]sdkmath.Int, account string) sdkmath.Int {
	if v, ok := set[account]; ok {
		return v
	}
	return sdkmath.ZeroInt()
}
