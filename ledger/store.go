/*
store.go - Persistence contracts for the ledger and the customer aggregate

PURPOSE:
  Defines the interface between the settlement engine and the database.
  The engine assumes nothing about the storage technology beyond atomic
  conditional writes and an all-or-nothing pairing of the two stores.

KEY INTERFACES:
  LedgerStore:   Append-only transaction log
  CustomerStore: One mutable aggregate record per customer
  Store:         Both together (what a commit operates on)
  TxStore:       Store with WithTx for atomic append + apply-delta pairs

APPEND-ONLY CONTRACT:
  LedgerStore exposes NO update or delete on transactions. Corrections
  are new offsetting transactions.

OPTIMISTIC CONCURRENCY:
  ApplyDelta carries the balance the caller read (expectedPriorBalance).
  If the stored balance moved in the meantime, the write is rejected with
  ErrConcurrentUpdate and the whole commit is retried from a fresh read.

IMPLEMENTATIONS:
  - store/sqlite: production SQLite
  - ledger/store:  in-memory for tests/dev

SEE ALSO:
  - settlement.go: The only writer of both stores
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// LEDGER STORE - Append-only transaction log
// =============================================================================

type LedgerStore interface {
	// Append persists a transaction. Fails with ErrDuplicateIdempotencyKey
	// if the key was already committed. This is the ONLY write operation.
	Append(ctx context.Context, tx Transaction) error

	// ListByCustomer returns a customer's transactions, newest first.
	ListByCustomer(ctx context.Context, id CustomerID) ([]Transaction, error)

	// ListAll returns all transactions in [from, to], newest first.
	// Zero bounds mean unbounded on that side.
	ListAll(ctx context.Context, from, to time.Time) ([]Transaction, error)

	// HasTransactions reports whether any transaction references the customer.
	HasTransactions(ctx context.Context, id CustomerID) (bool, error)
}

// =============================================================================
// CUSTOMER STORE - The mutable aggregate
// =============================================================================

type CustomerStore interface {
	// Get returns the customer or ErrCustomerNotFound.
	Get(ctx context.Context, id CustomerID) (Customer, error)

	// List returns all customers, newest first.
	List(ctx context.Context) ([]Customer, error)

	// Create registers a customer with caller-supplied seed aggregate values.
	Create(ctx context.Context, c Customer) error

	// ApplyDelta advances the aggregate: balance becomes newBalance,
	// cylinders-out moves by cylinderDelta, last-transaction moves to at.
	// The write only succeeds if the stored balance still equals
	// expectedPriorBalance; otherwise ErrConcurrentUpdate.
	ApplyDelta(ctx context.Context, id CustomerID, expectedPriorBalance, newBalance decimal.Decimal, cylinderDelta int, at time.Time) error

	// Overwrite replaces the aggregate fields unconditionally. Reserved
	// for the admin recompute path, which derives them via Replay.
	Overwrite(ctx context.Context, id CustomerID, agg Aggregate) error

	// Delete removes a customer record. Callers enforce the no-history rule.
	Delete(ctx context.Context, id CustomerID) error
}

// =============================================================================
// COMBINED / TRANSACTIONAL STORE
// =============================================================================

// Store is what a settlement commit operates on.
type Store interface {
	LedgerStore
	CustomerStore
}

// TxStore wraps Store with transaction support. The append and the
// aggregate update of one commit run inside a single WithTx call: either
// both take effect or neither does.
type TxStore interface {
	Store

	// WithTx executes fn atomically. If fn returns an error the writes
	// are rolled back; otherwise they are committed together.
	WithTx(ctx context.Context, fn func(Store) error) error
}
