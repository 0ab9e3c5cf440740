/*
Package sqlite provides the SQLite-backed implementation of the storage
contracts.

PURPOSE:
  Implements every persistence interface in the repository - the
  settlement engine's stores (ledger.TxStore) and the storefront record
  stores (agency.SupplierStore, agency.ExpenseStore, agency.StockStore).

INTERFACES IMPLEMENTED:
  ledger.LedgerStore:    Append-only transaction log
  ledger.CustomerStore:  Customer aggregate with guarded updates
  ledger.TxStore:        Atomic append + apply-delta pairs
  agency.SupplierStore, agency.ExpenseStore, agency.StockStore

APPEND-ONLY ENFORCEMENT:
  No UPDATE or DELETE statement touches the transactions table.
  Corrections are new offsetting transactions.

OPTIMISTIC CONCURRENCY:
  ApplyDelta is a compare-and-set: the UPDATE is guarded by the exact
  balance text the caller read. A concurrent commit that advanced the
  balance first makes the guard miss, and the coordinator retries from a
  fresh read.

MONEY COLUMNS:
  Decimals are stored as TEXT and re-parsed on read. The guard compares
  stored text, so no float rounding can fake or mask a conflict.

WAL MODE:
  SQLite is opened with WAL for better concurrency: readers don't block,
  single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/gasledger.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - ledger/store.go: Contract definitions
  - ledger/store/memory.go: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/gasledger/agency"
	"github.com/warp/gasledger/ledger"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
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
	-- Customers (mutable aggregate, advanced only by settlement commits)
	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		current_balance TEXT NOT NULL,
		total_cylinders_out INTEGER NOT NULL DEFAULT 0,
		last_transaction_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Transactions (append-only ledger)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		customer_name TEXT NOT NULL,
		payment_type TEXT NOT NULL,
		sale_mode TEXT NOT NULL,
		cylinders_sold INTEGER,
		cylinder_rate TEXT,
		empty_returned INTEGER,
		gas_weight_kg TEXT,
		rate_per_kg TEXT,
		cylinder_number TEXT,
		vehicle_ref TEXT,
		exchanged INTEGER,
		total_amount TEXT NOT NULL,
		amount_received TEXT NOT NULL,
		previous_unpaid TEXT NOT NULL,
		remaining_amount TEXT NOT NULL,
		cylinder_delta INTEGER NOT NULL,
		notes TEXT,
		idempotency_key TEXT NOT NULL UNIQUE,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_transactions_customer
		ON transactions(customer_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_transactions_created_at
		ON transactions(created_at DESC);

	-- Suppliers
	CREATE TABLE IF NOT EXISTS suppliers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT,
		address TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_suppliers_name ON suppliers(name);

	-- Expenses
	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		description TEXT,
		amount TEXT NOT NULL,
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_expenses_category ON expenses(category);
	CREATE INDEX IF NOT EXISTS idx_expenses_date ON expenses(date);

	-- Stock snapshots (point-in-time counts, not derived state)
	CREATE TABLE IF NOT EXISTS stock_snapshots (
		id TEXT PRIMARY KEY,
		full_cylinders INTEGER NOT NULL,
		empty_cylinders INTEGER NOT NULL,
		recorded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_stock_recorded_at
		ON stock_snapshots(recorded_at DESC);
	`

	_, err := s.db.Exec(schema)
	return err
}

// dbtx abstracts *sql.DB and *sql.Tx for the shared query helpers.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// timeLayout keeps fractional seconds fixed-width. RFC3339Nano trims
// trailing zeros, which breaks the lexicographic range comparisons on
// created_at: within one second "10:00:00Z" sorts after "10:00:00.5Z".
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// LEDGER STORE (ledger.LedgerStore interface)
// =============================================================================

// Append adds a transaction to the ledger.
func (s *Store) Append(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return appendTx(ctx, s.db, tx)
}

func appendTx(ctx context.Context, db dbtx, tx ledger.Transaction) error {
	var (
		cylindersSold, emptyReturned sql.NullInt64
		cylinderRate                 sql.NullString
		weightKg, ratePerKg          sql.NullString
		cylinderNumber, vehicleRef   sql.NullString
		exchanged                    sql.NullBool
	)
	if tx.Cylinder != nil {
		cylindersSold = sql.NullInt64{Int64: int64(tx.Cylinder.Sold), Valid: true}
		emptyReturned = sql.NullInt64{Int64: int64(tx.Cylinder.EmptyReturned), Valid: true}
		cylinderRate = sql.NullString{String: tx.Cylinder.Rate.String(), Valid: true}
	}
	if tx.Weight != nil {
		weightKg = sql.NullString{String: tx.Weight.WeightKg.String(), Valid: true}
		ratePerKg = sql.NullString{String: tx.Weight.RatePerKg.String(), Valid: true}
		cylinderNumber = nullString(tx.Weight.CylinderNumber)
		vehicleRef = nullString(tx.Weight.VehicleRef)
		exchanged = sql.NullBool{Bool: tx.Weight.Exchanged, Valid: true}
	}

	query := `
		INSERT INTO transactions
		(id, customer_id, customer_name, payment_type, sale_mode,
		 cylinders_sold, cylinder_rate, empty_returned,
		 gas_weight_kg, rate_per_kg, cylinder_number, vehicle_ref, exchanged,
		 total_amount, amount_received, previous_unpaid, remaining_amount,
		 cylinder_delta, notes, idempotency_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, query,
		tx.ID,
		tx.CustomerID,
		tx.CustomerName,
		tx.PaymentType,
		tx.Mode,
		cylindersSold, cylinderRate, emptyReturned,
		weightKg, ratePerKg, cylinderNumber, vehicleRef, exchanged,
		tx.TotalAmount.String(),
		tx.AmountReceived.String(),
		tx.PreviousUnpaid.String(),
		tx.RemainingAmount.String(),
		tx.CylinderDelta,
		nullString(tx.Notes),
		tx.IdempotencyKey,
		tx.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateIdempotencyKey
		}
		return &ledger.StoreError{Op: "append", Err: err}
	}
	return nil
}

// ListByCustomer returns a customer's transactions, newest first.
func (s *Store) ListByCustomer(ctx context.Context, id ledger.CustomerID) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listByCustomer(ctx, s.db, id)
}

func listByCustomer(ctx context.Context, db dbtx, id ledger.CustomerID) ([]ledger.Transaction, error) {
	query := transactionColumns + `
		FROM transactions
		WHERE customer_id = ?
		ORDER BY created_at DESC, rowid DESC
	`
	return queryTransactions(ctx, db, query, id)
}

// ListAll returns transactions in [from, to], newest first.
func (s *Store) ListAll(ctx context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listAll(ctx, s.db, from, to)
}

func listAll(ctx context.Context, db dbtx, from, to time.Time) ([]ledger.Transaction, error) {
	query := transactionColumns + ` FROM transactions`
	var (
		conds []string
		args  []any
	)
	if !from.IsZero() {
		conds = append(conds, "created_at >= ?")
		args = append(args, from.UTC().Format(timeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "created_at <= ?")
		args = append(args, to.UTC().Format(timeLayout))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, rowid DESC"

	return queryTransactions(ctx, db, query, args...)
}

// HasTransactions reports whether any transaction references the customer.
func (s *Store) HasTransactions(ctx context.Context, id ledger.CustomerID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return hasTransactions(ctx, s.db, id)
}

func hasTransactions(ctx context.Context, db dbtx, id ledger.CustomerID) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE customer_id = ?", id,
	).Scan(&count)
	if err != nil {
		return false, &ledger.StoreError{Op: "has-transactions", Err: err}
	}
	return count > 0, nil
}

const transactionColumns = `
	SELECT id, customer_id, customer_name, payment_type, sale_mode,
	       cylinders_sold, cylinder_rate, empty_returned,
	       gas_weight_kg, rate_per_kg, cylinder_number, vehicle_ref, exchanged,
	       total_amount, amount_received, previous_unpaid, remaining_amount,
	       cylinder_delta, notes, idempotency_key, created_at`

func queryTransactions(ctx context.Context, db dbtx, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StoreError{Op: "query-transactions", Err: err}
	}
	defer rows.Close()

	var txs []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx                           ledger.Transaction
		cylindersSold, emptyReturned sql.NullInt64
		cylinderRate                 sql.NullString
		weightKg, ratePerKg          sql.NullString
		cylinderNumber, vehicleRef   sql.NullString
		exchanged                    sql.NullBool
		totalAmount, amountReceived  string
		previousUnpaid, remaining    string
		notes                        sql.NullString
		createdAt                    string
	)

	err := rows.Scan(
		&tx.ID, &tx.CustomerID, &tx.CustomerName, &tx.PaymentType, &tx.Mode,
		&cylindersSold, &cylinderRate, &emptyReturned,
		&weightKg, &ratePerKg, &cylinderNumber, &vehicleRef, &exchanged,
		&totalAmount, &amountReceived, &previousUnpaid, &remaining,
		&tx.CylinderDelta, &notes, &tx.IdempotencyKey, &createdAt,
	)
	if err != nil {
		return tx, &ledger.StoreError{Op: "scan-transaction", Err: err}
	}

	switch tx.Mode {
	case ledger.SaleCylinder:
		tx.Cylinder = &ledger.CylinderSale{
			Sold:          int(cylindersSold.Int64),
			Rate:          mustDecimal(cylinderRate.String),
			EmptyReturned: int(emptyReturned.Int64),
		}
	case ledger.SaleWeight:
		tx.Weight = &ledger.WeightSale{
			WeightKg:       mustDecimal(weightKg.String),
			RatePerKg:      mustDecimal(ratePerKg.String),
			CylinderNumber: cylinderNumber.String,
			VehicleRef:     vehicleRef.String,
			Exchanged:      exchanged.Bool,
		}
	}

	tx.TotalAmount = mustDecimal(totalAmount)
	tx.AmountReceived = mustDecimal(amountReceived)
	tx.PreviousUnpaid = mustDecimal(previousUnpaid)
	tx.RemainingAmount = mustDecimal(remaining)
	tx.Notes = notes.String
	tx.CreatedAt, _ = time.Parse(timeLayout, createdAt)

	return tx, nil
}

// =============================================================================
// CUSTOMER STORE (ledger.CustomerStore interface)
// =============================================================================

func (s *Store) Get(ctx context.Context, id ledger.CustomerID) (ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getCustomer(ctx, s.db, id)
}

const customerColumns = `
	SELECT id, name, phone, address, current_balance, total_cylinders_out,
	       last_transaction_at, created_at, updated_at`

func getCustomer(ctx context.Context, db dbtx, id ledger.CustomerID) (ledger.Customer, error) {
	row := db.QueryRowContext(ctx, customerColumns+` FROM customers WHERE id = ?`, id)
	c, err := scanCustomerRow(row.Scan)
	if err == sql.ErrNoRows {
		return ledger.Customer{}, ledger.ErrCustomerNotFound
	}
	if err != nil {
		return ledger.Customer{}, &ledger.StoreError{Op: "get-customer", Err: err}
	}
	return c, nil
}

func scanCustomerRow(scan func(...any) error) (ledger.Customer, error) {
	var (
		c                ledger.Customer
		phone, address   sql.NullString
		balance          string
		lastTx           sql.NullString
		created, updated string
	)
	err := scan(&c.ID, &c.Name, &phone, &address, &balance,
		&c.TotalCylindersOut, &lastTx, &created, &updated)
	if err != nil {
		return c, err
	}
	c.Phone = phone.String
	c.Address = address.String
	c.CurrentBalance = mustDecimal(balance)
	if lastTx.Valid {
		t, _ := time.Parse(timeLayout, lastTx.String)
		c.LastTransactionAt = &t
	}
	c.CreatedAt, _ = time.Parse(timeLayout, created)
	c.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return c, nil
}

func (s *Store) List(ctx context.Context) ([]ledger.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, customerColumns+` FROM customers ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list-customers", Err: err}
	}
	defer rows.Close()

	var customers []ledger.Customer
	for rows.Next() {
		c, err := scanCustomerRow(rows.Scan)
		if err != nil {
			return nil, &ledger.StoreError{Op: "scan-customer", Err: err}
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *Store) Create(ctx context.Context, c ledger.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return createCustomer(ctx, s.db, c)
}

func createCustomer(ctx context.Context, db dbtx, c ledger.Customer) error {
	var lastTx sql.NullString
	if c.LastTransactionAt != nil {
		lastTx = sql.NullString{String: c.LastTransactionAt.UTC().Format(timeLayout), Valid: true}
	}
	_, err := db.ExecContext(ctx, `
		INSERT INTO customers
		(id, name, phone, address, current_balance, total_cylinders_out,
		 last_transaction_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, nullString(c.Phone), nullString(c.Address),
		c.CurrentBalance.String(), c.TotalCylindersOut, lastTx,
		c.CreatedAt.UTC().Format(timeLayout), c.UpdatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return &ledger.StoreError{Op: "create-customer", Err: err}
	}
	return nil
}

// ApplyDelta advances the aggregate with a compare-and-set on the balance.
func (s *Store) ApplyDelta(ctx context.Context, id ledger.CustomerID, expectedPriorBalance, newBalance decimal.Decimal, cylinderDelta int, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return applyDelta(ctx, s.db, id, expectedPriorBalance, newBalance, cylinderDelta, at)
}

func applyDelta(ctx context.Context, db dbtx, id ledger.CustomerID, expectedPriorBalance, newBalance decimal.Decimal, cylinderDelta int, at time.Time) error {
	// Decimal equality is checked in Go against the stored text, then the
	// UPDATE is guarded by that exact text so a concurrent writer cannot
	// slip between check and write.
	var storedBalance string
	err := db.QueryRowContext(ctx,
		"SELECT current_balance FROM customers WHERE id = ?", id,
	).Scan(&storedBalance)
	if err == sql.ErrNoRows {
		return ledger.ErrCustomerNotFound
	}
	if err != nil {
		return &ledger.StoreError{Op: "apply-delta", Err: err}
	}
	if !mustDecimal(storedBalance).Equal(expectedPriorBalance) {
		return ledger.ErrConcurrentUpdate
	}

	res, err := db.ExecContext(ctx, `
		UPDATE customers
		SET current_balance = ?,
		    total_cylinders_out = total_cylinders_out + ?,
		    last_transaction_at = ?,
		    updated_at = ?
		WHERE id = ? AND current_balance = ?`,
		newBalance.String(), cylinderDelta,
		at.UTC().Format(timeLayout), at.UTC().Format(timeLayout),
		id, storedBalance,
	)
	if err != nil {
		return &ledger.StoreError{Op: "apply-delta", Err: err}
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return &ledger.StoreError{Op: "apply-delta", Err: err}
	}
	if affected == 0 {
		return ledger.ErrConcurrentUpdate
	}
	return nil
}

// Overwrite replaces the aggregate fields. Admin recompute path only.
func (s *Store) Overwrite(ctx context.Context, id ledger.CustomerID, agg ledger.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return overwriteCustomer(ctx, s.db, id, agg)
}

func overwriteCustomer(ctx context.Context, db dbtx, id ledger.CustomerID, agg ledger.Aggregate) error {
	var lastTx sql.NullString
	if agg.LastTransactionAt != nil {
		lastTx = sql.NullString{String: agg.LastTransactionAt.UTC().Format(timeLayout), Valid: true}
	}
	res, err := db.ExecContext(ctx, `
		UPDATE customers
		SET current_balance = ?, total_cylinders_out = ?,
		    last_transaction_at = ?, updated_at = ?
		WHERE id = ?`,
		agg.CurrentBalance.String(), agg.TotalCylindersOut, lastTx,
		time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return &ledger.StoreError{Op: "overwrite-customer", Err: err}
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ledger.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, id ledger.CustomerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return deleteCustomer(ctx, s.db, id)
}

func deleteCustomer(ctx context.Context, db dbtx, id ledger.CustomerID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM customers WHERE id = ?", id)
	if err != nil {
		return &ledger.StoreError{Op: "delete-customer", Err: err}
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ledger.ErrCustomerNotFound
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (ledger.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &ledger.StoreError{Op: "begin", Err: err}
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return &ledger.StoreError{Op: "commit", Err: err}
	}
	return nil
}

// txStore runs the Store operations against an open sql.Tx. It takes no
// locks of its own; WithTx already holds the store mutex.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) Append(ctx context.Context, tx ledger.Transaction) error {
	return appendTx(ctx, ts.tx, tx)
}

func (ts *txStore) ListByCustomer(ctx context.Context, id ledger.CustomerID) ([]ledger.Transaction, error) {
	return listByCustomer(ctx, ts.tx, id)
}

func (ts *txStore) ListAll(ctx context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	return listAll(ctx, ts.tx, from, to)
}

func (ts *txStore) HasTransactions(ctx context.Context, id ledger.CustomerID) (bool, error) {
	return hasTransactions(ctx, ts.tx, id)
}

func (ts *txStore) Get(ctx context.Context, id ledger.CustomerID) (ledger.Customer, error) {
	return getCustomer(ctx, ts.tx, id)
}

func (ts *txStore) List(ctx context.Context) ([]ledger.Customer, error) {
	rows, err := ts.tx.QueryContext(ctx, customerColumns+` FROM customers ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list-customers", Err: err}
	}
	defer rows.Close()

	var customers []ledger.Customer
	for rows.Next() {
		c, err := scanCustomerRow(rows.Scan)
		if err != nil {
			return nil, &ledger.StoreError{Op: "scan-customer", Err: err}
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (ts *txStore) Create(ctx context.Context, c ledger.Customer) error {
	return createCustomer(ctx, ts.tx, c)
}

func (ts *txStore) ApplyDelta(ctx context.Context, id ledger.CustomerID, expectedPriorBalance, newBalance decimal.Decimal, cylinderDelta int, at time.Time) error {
	return applyDelta(ctx, ts.tx, id, expectedPriorBalance, newBalance, cylinderDelta, at)
}

func (ts *txStore) Overwrite(ctx context.Context, id ledger.CustomerID, agg ledger.Aggregate) error {
	return overwriteCustomer(ctx, ts.tx, id, agg)
}

func (ts *txStore) Delete(ctx context.Context, id ledger.CustomerID) error {
	return deleteCustomer(ctx, ts.tx, id)
}

// =============================================================================
// SUPPLIER STORE (agency.SupplierStore interface)
// =============================================================================

func (s *Store) ListSuppliers(ctx context.Context, namePrefix string) ([]agency.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, phone, address, created_at FROM suppliers`
	var args []any
	if namePrefix != "" {
		query += ` WHERE name LIKE ? || '%'`
		args = append(args, namePrefix)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list-suppliers", Err: err}
	}
	defer rows.Close()

	var suppliers []agency.Supplier
	for rows.Next() {
		var (
			sup            agency.Supplier
			phone, address sql.NullString
			created        string
		)
		if err := rows.Scan(&sup.ID, &sup.Name, &phone, &address, &created); err != nil {
			return nil, &ledger.StoreError{Op: "scan-supplier", Err: err}
		}
		sup.Phone = phone.String
		sup.Address = address.String
		sup.CreatedAt, _ = time.Parse(timeLayout, created)
		suppliers = append(suppliers, sup)
	}
	return suppliers, rows.Err()
}

func (s *Store) CreateSupplier(ctx context.Context, sup agency.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, phone, address, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sup.ID, sup.Name, nullString(sup.Phone), nullString(sup.Address),
		sup.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return &ledger.StoreError{Op: "create-supplier", Err: err}
	}
	return nil
}

func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM suppliers WHERE id = ?", id)
	if err != nil {
		return &ledger.StoreError{Op: "delete-supplier", Err: err}
	}
	return nil
}

// =============================================================================
// EXPENSE STORE (agency.ExpenseStore interface)
// =============================================================================

func (s *Store) ListExpenses(ctx context.Context, category string, from, to time.Time) ([]agency.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, category, description, amount, date, created_at FROM expenses`
	var (
		conds []string
		args  []any
	)
	if category != "" {
		conds = append(conds, "category = ?")
		args = append(args, category)
	}
	if !from.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, from.UTC().Format(timeLayout))
	}
	if !to.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, to.UTC().Format(timeLayout))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, rowid DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list-expenses", Err: err}
	}
	defer rows.Close()

	var expenses []agency.Expense
	for rows.Next() {
		var (
			e             agency.Expense
			description   sql.NullString
			amount        string
			date, created string
		)
		if err := rows.Scan(&e.ID, &e.Category, &description, &amount, &date, &created); err != nil {
			return nil, &ledger.StoreError{Op: "scan-expense", Err: err}
		}
		e.Description = description.String
		e.Amount = mustDecimal(amount)
		e.Date, _ = time.Parse(timeLayout, date)
		e.CreatedAt, _ = time.Parse(timeLayout, created)
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (s *Store) ExpenseCategories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT category FROM expenses ORDER BY category ASC")
	if err != nil {
		return nil, &ledger.StoreError{Op: "expense-categories", Err: err}
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, &ledger.StoreError{Op: "scan-category", Err: err}
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

func (s *Store) CreateExpense(ctx context.Context, e agency.Expense) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, category, description, amount, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Category, nullString(e.Description), e.Amount.String(),
		e.Date.UTC().Format(timeLayout), e.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return &ledger.StoreError{Op: "create-expense", Err: err}
	}
	return nil
}

// =============================================================================
// STOCK STORE (agency.StockStore interface)
// =============================================================================

func (s *Store) LatestStock(ctx context.Context) (agency.StockSnapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, full_cylinders, empty_cylinders, recorded_at
		FROM stock_snapshots
		ORDER BY recorded_at DESC, rowid DESC
		LIMIT 1`)

	snap, err := scanStock(row.Scan)
	if err == sql.ErrNoRows {
		return agency.StockSnapshot{}, false, nil
	}
	if err != nil {
		return agency.StockSnapshot{}, false, &ledger.StoreError{Op: "latest-stock", Err: err}
	}
	return snap, true, nil
}

func (s *Store) ListStock(ctx context.Context) ([]agency.StockSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, full_cylinders, empty_cylinders, recorded_at
		FROM stock_snapshots
		ORDER BY recorded_at DESC, rowid DESC`)
	if err != nil {
		return nil, &ledger.StoreError{Op: "list-stock", Err: err}
	}
	defer rows.Close()

	var snaps []agency.StockSnapshot
	for rows.Next() {
		snap, err := scanStock(rows.Scan)
		if err != nil {
			return nil, &ledger.StoreError{Op: "scan-stock", Err: err}
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

func scanStock(scan func(...any) error) (agency.StockSnapshot, error) {
	var (
		snap     agency.StockSnapshot
		recorded string
	)
	if err := scan(&snap.ID, &snap.FullCylinders, &snap.EmptyCylinders, &recorded); err != nil {
		return snap, err
	}
	snap.RecordedAt, _ = time.Parse(timeLayout, recorded)
	return snap, nil
}

func (s *Store) CreateStock(ctx context.Context, snap agency.StockSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO stock_snapshots (id, full_cylinders, empty_cylinders, recorded_at)
		VALUES (?, ?, ?, ?)`,
		snap.ID, snap.FullCylinders, snap.EmptyCylinders,
		snap.RecordedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return &ledger.StoreError{Op: "create-stock", Err: err}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
