/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements scheme.Store and scheme.TxStore using SQLite. In production,
  the same patterns apply to PostgreSQL - only minor SQL dialect
  differences.

APPEND-ONLY ENFORCEMENT:
  The transactions table is append-only:
  - No UPDATE statements on transactions
  - No DELETE statements on transactions
  - Corrections via adjustment transactions only

KEY TABLES:
  schemes:      Scheme templates (duration, amount policy, benefit rules)
  customers:    Thin customer records for account lookups
  enrollments:  Live subscriptions with cached running totals
  transactions: Immutable ledger of installments/bonuses/fines/adjustments
  redemptions:  Terminal settlements, one per enrollment

UNIQUE CONSTRAINTS:
  - enrollments(shop_id, account_number): one account number per shop
  - transactions(idempotency_key): replay protection
  - redemptions(enrollment_id): redeem-once

CONCURRENCY:
  WithEnrollmentTx takes a per-enrollment mutex (striped by ID) around a
  database transaction, so two payments racing on one enrollment serialize
  while different enrollments proceed in parallel.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/savings.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - scheme/store.go: Interface definitions
  - scheme/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aurum/savings-engine/scheme"
)

const dateLayout = "2006-01-02"

// Store implements scheme.TxStore using SQLite.
type Store struct {
	db *sql.DB

	locksMu sync.Mutex
	locks   map[scheme.EnrollmentID]*sync.Mutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, &scheme.StoreError{Op: "open", Err: err}
	}
	// a single connection keeps in-memory databases coherent and sidesteps
	// SQLITE_BUSY under concurrent writers
	db.SetMaxOpenConns(1)

	store := &Store{db: db, locks: make(map[scheme.EnrollmentID]*sync.Mutex)}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, &scheme.StoreError{Op: "migrate", Err: err}
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Scheme templates
	CREATE TABLE IF NOT EXISTS schemes (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		name TEXT NOT NULL,
		scheme_type TEXT NOT NULL,
		duration_months INTEGER NOT NULL,
		fixed_installment_amount TEXT NOT NULL,
		grace_period_days INTEGER NOT NULL DEFAULT 0,
		max_missed_payments INTEGER NOT NULL DEFAULT 0,
		benefit_type TEXT NOT NULL,
		benefit_value TEXT NOT NULL,
		gold_conversion_timing TEXT NOT NULL,
		gold_purity TEXT,
		allow_partial_payment BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schemes_shop ON schemes(shop_id);

	-- Customers (thin records for account lookups)
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		name TEXT NOT NULL,
		phone TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_shop ON customers(shop_id);

	-- Enrollments with cached totals
	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		shop_id TEXT NOT NULL,
		customer_id TEXT NOT NULL,
		scheme_id TEXT NOT NULL,
		account_number TEXT NOT NULL,
		start_date TEXT NOT NULL,
		maturity_date TEXT NOT NULL,
		status TEXT NOT NULL,
		total_paid TEXT NOT NULL,
		total_gold_weight TEXT NOT NULL,
		total_fines TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- CRITICAL: one account number per shop
	CREATE UNIQUE INDEX IF NOT EXISTS idx_enrollments_account
		ON enrollments(shop_id, account_number);
	CREATE INDEX IF NOT EXISTS idx_enrollments_shop_status
		ON enrollments(shop_id, status);
	CREATE INDEX IF NOT EXISTS idx_enrollments_scheme
		ON enrollments(scheme_id);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL,
		shop_id TEXT NOT NULL,
		tx_type TEXT NOT NULL,
		amount TEXT NOT NULL,
		gold_rate TEXT NOT NULL,
		gold_weight TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		payment_mode TEXT,
		status TEXT NOT NULL,
		reason TEXT,
		idempotency_key TEXT UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_enrollment_date
		ON transactions(enrollment_id, payment_date);
	CREATE INDEX IF NOT EXISTS idx_transactions_type
		ON transactions(tx_type);
	CREATE INDEX IF NOT EXISTS idx_transactions_idempotency
		ON transactions(idempotency_key) WHERE idempotency_key IS NOT NULL;

	-- Redemptions: redeem-once enforced by the unique enrollment_id
	CREATE TABLE IF NOT EXISTS redemptions (
		id TEXT PRIMARY KEY,
		enrollment_id TEXT NOT NULL UNIQUE,
		redeemed_date TEXT NOT NULL,
		payout_amount TEXT NOT NULL,
		payout_gold_weight TEXT NOT NULL,
		bonus_applied BOOLEAN NOT NULL,
		bonus_amount TEXT NOT NULL,
		invoice_id TEXT,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// =============================================================================
// SCHEMES
// =============================================================================

func (s *Store) CreateScheme(ctx context.Context, sc *scheme.Scheme) error {
	return createScheme(ctx, s.db, sc)
}

func createScheme(ctx context.Context, q querier, sc *scheme.Scheme) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO schemes
		(id, shop_id, name, scheme_type, duration_months, fixed_installment_amount,
		 grace_period_days, max_missed_payments, benefit_type, benefit_value,
		 gold_conversion_timing, gold_purity, allow_partial_payment, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.ShopID, sc.Name, sc.Type, sc.DurationMonths,
		sc.FixedInstallmentAmount.String(),
		sc.Rules.GracePeriodDays, sc.Rules.MaxMissedPayments,
		sc.Rules.BenefitType, sc.Rules.BenefitValue.String(),
		sc.Rules.GoldConversionTiming, sc.Rules.GoldPurity,
		sc.Rules.AllowPartialPayment, sc.IsActive,
		sc.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &scheme.StoreError{Op: "create scheme", Err: err}
	}
	return nil
}

const schemeColumns = `id, shop_id, name, scheme_type, duration_months, fixed_installment_amount,
	grace_period_days, max_missed_payments, benefit_type, benefit_value,
	gold_conversion_timing, gold_purity, allow_partial_payment, is_active, created_at`

func (s *Store) GetScheme(ctx context.Context, id scheme.SchemeID) (*scheme.Scheme, error) {
	return getScheme(ctx, s.db, id)
}

func getScheme(ctx context.Context, q querier, id scheme.SchemeID) (*scheme.Scheme, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+schemeColumns+" FROM schemes WHERE id = ?", id)
	sc, err := scanScheme(row.Scan)
	if err == sql.ErrNoRows {
		return nil, scheme.ErrSchemeNotFound
	}
	if err != nil {
		return nil, &scheme.StoreError{Op: "get scheme", Err: err}
	}
	return sc, nil
}

func (s *Store) UpdateScheme(ctx context.Context, sc *scheme.Scheme) error {
	return updateScheme(ctx, s.db, sc)
}

func updateScheme(ctx context.Context, q querier, sc *scheme.Scheme) error {
	res, err := q.ExecContext(ctx, `
		UPDATE schemes SET
			name = ?, scheme_type = ?, duration_months = ?, fixed_installment_amount = ?,
			grace_period_days = ?, max_missed_payments = ?, benefit_type = ?, benefit_value = ?,
			gold_conversion_timing = ?, gold_purity = ?, allow_partial_payment = ?, is_active = ?
		WHERE id = ?`,
		sc.Name, sc.Type, sc.DurationMonths, sc.FixedInstallmentAmount.String(),
		sc.Rules.GracePeriodDays, sc.Rules.MaxMissedPayments,
		sc.Rules.BenefitType, sc.Rules.BenefitValue.String(),
		sc.Rules.GoldConversionTiming, sc.Rules.GoldPurity,
		sc.Rules.AllowPartialPayment, sc.IsActive,
		sc.ID,
	)
	if err != nil {
		return &scheme.StoreError{Op: "update scheme", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return scheme.ErrSchemeNotFound
	}
	return nil
}

func (s *Store) ListSchemes(ctx context.Context, shopID scheme.ShopID) ([]*scheme.Scheme, error) {
	query := "SELECT " + schemeColumns + " FROM schemes"
	var args []any
	if shopID != "" {
		query += " WHERE shop_id = ?"
		args = append(args, shopID)
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &scheme.StoreError{Op: "list schemes", Err: err}
	}
	defer rows.Close()

	var out []*scheme.Scheme
	for rows.Next() {
		sc, err := scanScheme(rows.Scan)
		if err != nil {
			return nil, &scheme.StoreError{Op: "scan scheme", Err: err}
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func scanScheme(scan func(...any) error) (*scheme.Scheme, error) {
	var (
		sc                      scheme.Scheme
		fixedAmount, benefitVal string
		goldPurity              sql.NullString
		createdAt               string
	)
	err := scan(
		&sc.ID, &sc.ShopID, &sc.Name, &sc.Type, &sc.DurationMonths, &fixedAmount,
		&sc.Rules.GracePeriodDays, &sc.Rules.MaxMissedPayments,
		&sc.Rules.BenefitType, &benefitVal,
		&sc.Rules.GoldConversionTiming, &goldPurity,
		&sc.Rules.AllowPartialPayment, &sc.IsActive, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	sc.FixedInstallmentAmount = scheme.MustParseDecimal(fixedAmount)
	sc.Rules.BenefitValue = scheme.MustParseDecimal(benefitVal)
	sc.Rules.GoldPurity = goldPurity.String
	sc.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &sc, nil
}

// =============================================================================
// ENROLLMENTS
// =============================================================================

const enrollmentColumns = `id, shop_id, customer_id, scheme_id, account_number,
	start_date, maturity_date, status, total_paid, total_gold_weight, total_fines, created_at`

func (s *Store) CreateEnrollment(ctx context.Context, e *scheme.Enrollment) error {
	return createEnrollment(ctx, s.db, e)
}

func createEnrollment(ctx context.Context, q querier, e *scheme.Enrollment) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO enrollments
		(id, shop_id, customer_id, scheme_id, account_number, start_date, maturity_date,
		 status, total_paid, total_gold_weight, total_fines, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.ShopID, e.CustomerID, e.SchemeID, e.AccountNumber,
		e.StartDate.Format(dateLayout), e.MaturityDate.Format(dateLayout),
		e.Status, e.TotalPaid.String(), e.TotalGoldWeight.String(), e.TotalFines.String(),
		e.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return scheme.ErrDuplicateAccountNumber
		}
		return &scheme.StoreError{Op: "create enrollment", Err: err}
	}
	return nil
}

func (s *Store) GetEnrollment(ctx context.Context, id scheme.EnrollmentID) (*scheme.Enrollment, error) {
	return getEnrollment(ctx, s.db, id)
}

func getEnrollment(ctx context.Context, q querier, id scheme.EnrollmentID) (*scheme.Enrollment, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+enrollmentColumns+" FROM enrollments WHERE id = ?", id)
	e, err := scanEnrollment(row.Scan)
	if err == sql.ErrNoRows {
		return nil, scheme.ErrEnrollmentNotFound
	}
	if err != nil {
		return nil, &scheme.StoreError{Op: "get enrollment", Err: err}
	}
	return e, nil
}

func (s *Store) UpdateEnrollment(ctx context.Context, e *scheme.Enrollment) error {
	return updateEnrollment(ctx, s.db, e)
}

func updateEnrollment(ctx context.Context, q querier, e *scheme.Enrollment) error {
	res, err := q.ExecContext(ctx, `
		UPDATE enrollments SET
			status = ?, total_paid = ?, total_gold_weight = ?, total_fines = ?
		WHERE id = ?`,
		e.Status, e.TotalPaid.String(), e.TotalGoldWeight.String(), e.TotalFines.String(),
		e.ID,
	)
	if err != nil {
		return &scheme.StoreError{Op: "update enrollment", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return scheme.ErrEnrollmentNotFound
	}
	return nil
}

func (s *Store) ListEnrollments(ctx context.Context, shopID scheme.ShopID, status scheme.EnrollmentStatus) ([]*scheme.Enrollment, error) {
	query := "SELECT " + enrollmentColumns + " FROM enrollments"
	var (
		conds []string
		args  []any
	)
	if shopID != "" {
		conds = append(conds, "shop_id = ?")
		args = append(args, shopID)
	}
	if status != "" {
		conds = append(conds, "status = ?")
		args = append(args, status)
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &scheme.StoreError{Op: "list enrollments", Err: err}
	}
	defer rows.Close()

	var out []*scheme.Enrollment
	for rows.Next() {
		e, err := scanEnrollment(rows.Scan)
		if err != nil {
			return nil, &scheme.StoreError{Op: "scan enrollment", Err: err}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanEnrollment(scan func(...any) error) (*scheme.Enrollment, error) {
	var (
		e                   scheme.Enrollment
		startDate, maturity string
		paid, gold, fines   string
		createdAt           string
	)
	err := scan(
		&e.ID, &e.ShopID, &e.CustomerID, &e.SchemeID, &e.AccountNumber,
		&startDate, &maturity, &e.Status, &paid, &gold, &fines, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	e.StartDate, _ = time.Parse(dateLayout, startDate)
	e.MaturityDate, _ = time.Parse(dateLayout, maturity)
	e.TotalPaid = scheme.MustParseDecimal(paid)
	e.TotalGoldWeight = scheme.MustParseDecimal(gold)
	e.TotalFines = scheme.MustParseDecimal(fines)
	e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &e, nil
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

const txColumns = `id, enrollment_id, shop_id, tx_type, amount, gold_rate, gold_weight,
	payment_date, payment_mode, status, reason, idempotency_key, created_at`

func (s *Store) AppendTransaction(ctx context.Context, t *scheme.Transaction) error {
	return appendTransaction(ctx, s.db, t)
}

func appendTransaction(ctx context.Context, q querier, t *scheme.Transaction) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO transactions
		(id, enrollment_id, shop_id, tx_type, amount, gold_rate, gold_weight,
		 payment_date, payment_mode, status, reason, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.EnrollmentID, t.ShopID, t.Type,
		t.Amount.String(), t.GoldRate.String(), t.GoldWeight.String(),
		t.PaymentDate.Format(dateLayout), t.PaymentMode, t.Status, t.Reason,
		nullString(t.IdempotencyKey),
		t.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return scheme.ErrDuplicateIdempotencyKey
		}
		return &scheme.StoreError{Op: "append transaction", Err: err}
	}
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, id scheme.EnrollmentID, f scheme.TransactionFilter) ([]*scheme.Transaction, error) {
	return listTransactions(ctx, s.db, id, f)
}

func listTransactions(ctx context.Context, q querier, id scheme.EnrollmentID, f scheme.TransactionFilter) ([]*scheme.Transaction, error) {
	query := "SELECT " + txColumns + " FROM transactions WHERE enrollment_id = ?"
	args := []any{id}
	if f.Type != "" {
		query += " AND tx_type = ?"
		args = append(args, f.Type)
	}
	if !f.From.IsZero() {
		query += " AND payment_date >= ?"
		args = append(args, f.From.Format(dateLayout))
	}
	if !f.To.IsZero() {
		query += " AND payment_date <= ?"
		args = append(args, f.To.Format(dateLayout))
	}
	query += " ORDER BY payment_date ASC, created_at ASC"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &scheme.StoreError{Op: "list transactions", Err: err}
	}
	defer rows.Close()

	var out []*scheme.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, &scheme.StoreError{Op: "scan transaction", Err: err}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) FindTransactionByKey(ctx context.Context, id scheme.EnrollmentID, key string) (*scheme.Transaction, error) {
	return findTransactionByKey(ctx, s.db, id, key)
}

func findTransactionByKey(ctx context.Context, q querier, id scheme.EnrollmentID, key string) (*scheme.Transaction, error) {
	row := q.QueryRowContext(ctx,
		"SELECT "+txColumns+" FROM transactions WHERE enrollment_id = ? AND idempotency_key = ?",
		id, key)
	t, err := scanTransaction(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &scheme.StoreError{Op: "find transaction", Err: err}
	}
	return t, nil
}

func scanTransaction(scan func(...any) error) (*scheme.Transaction, error) {
	var (
		t                     scheme.Transaction
		amount, rate, weight  string
		paymentDate           string
		mode, reason, idemKey sql.NullString
		createdAt             string
	)
	err := scan(
		&t.ID, &t.EnrollmentID, &t.ShopID, &t.Type,
		&amount, &rate, &weight, &paymentDate,
		&mode, &t.Status, &reason, &idemKey, &createdAt,
	)
	if err != nil {
		return nil, err
	}
	t.Amount = scheme.MustParseDecimal(amount)
	t.GoldRate = scheme.MustParseDecimal(rate)
	t.GoldWeight = scheme.MustParseDecimal(weight)
	t.PaymentDate, _ = time.Parse(dateLayout, paymentDate)
	t.PaymentMode = mode.String
	t.Reason = reason.String
	t.IdempotencyKey = idemKey.String
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &t, nil
}

// =============================================================================
// REDEMPTIONS
// =============================================================================

func (s *Store) CreateRedemption(ctx context.Context, r *scheme.Redemption) error {
	return createRedemption(ctx, s.db, r)
}

func createRedemption(ctx context.Context, q querier, r *scheme.Redemption) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO redemptions
		(id, enrollment_id, redeemed_date, payout_amount, payout_gold_weight,
		 bonus_applied, bonus_amount, invoice_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.EnrollmentID, r.RedeemedDate.Format(dateLayout),
		r.PayoutAmount.String(), r.PayoutGoldWeight.String(),
		r.BonusApplied, r.BonusAmount.String(), r.InvoiceID,
		r.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return scheme.ErrAlreadyRedeemed
		}
		return &scheme.StoreError{Op: "create redemption", Err: err}
	}
	return nil
}

func (s *Store) GetRedemption(ctx context.Context, id scheme.EnrollmentID) (*scheme.Redemption, error) {
	return getRedemption(ctx, s.db, id)
}

func getRedemption(ctx context.Context, q querier, id scheme.EnrollmentID) (*scheme.Redemption, error) {
	var (
		r                    scheme.Redemption
		redeemedDate         string
		payout, gold, bonus  string
		invoiceID            sql.NullString
		createdAt            string
	)
	err := q.QueryRowContext(ctx, `
		SELECT id, enrollment_id, redeemed_date, payout_amount, payout_gold_weight,
		       bonus_applied, bonus_amount, invoice_id, created_at
		FROM redemptions WHERE enrollment_id = ?`, id,
	).Scan(&r.ID, &r.EnrollmentID, &redeemedDate, &payout, &gold,
		&r.BonusApplied, &bonus, &invoiceID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &scheme.StoreError{Op: "get redemption", Err: err}
	}
	r.RedeemedDate, _ = time.Parse(dateLayout, redeemedDate)
	r.PayoutAmount = scheme.MustParseDecimal(payout)
	r.PayoutGoldWeight = scheme.MustParseDecimal(gold)
	r.BonusAmount = scheme.MustParseDecimal(bonus)
	r.InvoiceID = invoiceID.String
	r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &r, nil
}

// =============================================================================
// CUSTOMERS
// =============================================================================

// Customer is a thin record used for account lookups in the API.
type Customer struct {
	ID        scheme.CustomerID
	ShopID    scheme.ShopID
	Name      string
	Phone     string
	CreatedAt time.Time
}

// SaveCustomer inserts or updates a customer.
func (s *Store) SaveCustomer(ctx context.Context, c Customer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, shop_id, name, phone, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone`,
		c.ID, c.ShopID, c.Name, c.Phone,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return &scheme.StoreError{Op: "save customer", Err: err}
	}
	return nil
}

// GetCustomer retrieves a customer by ID. Returns (nil, nil) when missing.
func (s *Store) GetCustomer(ctx context.Context, id scheme.CustomerID) (*Customer, error) {
	var c Customer
	var phone sql.NullString
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, shop_id, name, phone, created_at FROM customers WHERE id = ?", id,
	).Scan(&c.ID, &c.ShopID, &c.Name, &phone, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &scheme.StoreError{Op: "get customer", Err: err}
	}
	c.Phone = phone.String
	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &c, nil
}

// =============================================================================
// TRANSACTIONAL STORE (scheme.TxStore interface)
// =============================================================================

// WithEnrollmentTx executes fn inside a database transaction while holding
// the per-enrollment mutex, serializing writers on the same enrollment.
func (s *Store) WithEnrollmentTx(ctx context.Context, id scheme.EnrollmentID, fn func(scheme.Store) error) error {
	lock := s.enrollmentLock(id)
	lock.Lock()
	defer lock.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &scheme.StoreError{Op: "begin tx", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx, parent: s}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return &scheme.StoreError{Op: "commit tx", Err: err}
	}
	return nil
}

func (s *Store) enrollmentLock(id scheme.EnrollmentID) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// txStore is the Store view handed to WithEnrollmentTx callbacks.
type txStore struct {
	tx     *sql.Tx
	parent *Store
}

func (ts *txStore) CreateScheme(ctx context.Context, sc *scheme.Scheme) error {
	return createScheme(ctx, ts.tx, sc)
}

func (ts *txStore) GetScheme(ctx context.Context, id scheme.SchemeID) (*scheme.Scheme, error) {
	return getScheme(ctx, ts.tx, id)
}

func (ts *txStore) UpdateScheme(ctx context.Context, sc *scheme.Scheme) error {
	return updateScheme(ctx, ts.tx, sc)
}

func (ts *txStore) ListSchemes(ctx context.Context, shopID scheme.ShopID) ([]*scheme.Scheme, error) {
	return ts.parent.ListSchemes(ctx, shopID)
}

func (ts *txStore) CreateEnrollment(ctx context.Context, e *scheme.Enrollment) error {
	return createEnrollment(ctx, ts.tx, e)
}

func (ts *txStore) GetEnrollment(ctx context.Context, id scheme.EnrollmentID) (*scheme.Enrollment, error) {
	return getEnrollment(ctx, ts.tx, id)
}

func (ts *txStore) UpdateEnrollment(ctx context.Context, e *scheme.Enrollment) error {
	return updateEnrollment(ctx, ts.tx, e)
}

func (ts *txStore) ListEnrollments(ctx context.Context, shopID scheme.ShopID, status scheme.EnrollmentStatus) ([]*scheme.Enrollment, error) {
	return ts.parent.ListEnrollments(ctx, shopID, status)
}

func (ts *txStore) AppendTransaction(ctx context.Context, t *scheme.Transaction) error {
	return appendTransaction(ctx, ts.tx, t)
}

func (ts *txStore) ListTransactions(ctx context.Context, id scheme.EnrollmentID, f scheme.TransactionFilter) ([]*scheme.Transaction, error) {
	return listTransactions(ctx, ts.tx, id, f)
}

func (ts *txStore) FindTransactionByKey(ctx context.Context, id scheme.EnrollmentID, key string) (*scheme.Transaction, error) {
	return findTransactionByKey(ctx, ts.tx, id, key)
}

func (ts *txStore) CreateRedemption(ctx context.Context, r *scheme.Redemption) error {
	return createRedemption(ctx, ts.tx, r)
}

func (ts *txStore) GetRedemption(ctx context.Context, id scheme.EnrollmentID) (*scheme.Redemption, error) {
	return getRedemption(ctx, ts.tx, id)
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	tables := []string{"transactions", "redemptions", "enrollments", "customers", "schemes"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return &scheme.StoreError{Op: "reset", Err: err}
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
