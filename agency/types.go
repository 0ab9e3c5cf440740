/*
Package agency provides the storefront domain around the settlement engine:
customer registration, supplier records, expense logging, stock snapshots,
and the analytics rollup.

These are the read-and-render collaborators of the ledger. None of them
carry derived state of their own; the only aggregate in the system lives
on the Customer and is owned by ledger.Coordinator.

SEE ALSO:
  - customers.go: Registration, validation, deletion policy
  - reporting.go: Revenue/expense rollup
  - store/sqlite: Persistence for all of these records
*/
package agency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SUPPLIER - Plain directory record
// =============================================================================

type Supplier struct {
	ID        string
	Name      string
	Phone     string
	Address   string
	CreatedAt time.Time
}

type SupplierStore interface {
	// ListSuppliers returns suppliers newest first, optionally filtered
	// by name prefix.
	ListSuppliers(ctx context.Context, namePrefix string) ([]Supplier, error)
	CreateSupplier(ctx context.Context, s Supplier) error
	DeleteSupplier(ctx context.Context, id string) error
}

// =============================================================================
// EXPENSE - Money out, category-tagged
// =============================================================================

type Expense struct {
	ID          string
	Category    string
	Description string
	Amount      decimal.Decimal
	Date        time.Time
	CreatedAt   time.Time
}

type ExpenseStore interface {
	// ListExpenses returns expenses newest first, optionally filtered by
	// category. Zero time bounds mean unbounded.
	ListExpenses(ctx context.Context, category string, from, to time.Time) ([]Expense, error)
	ExpenseCategories(ctx context.Context) ([]string, error)
	CreateExpense(ctx context.Context, e Expense) error
}

// =============================================================================
// STOCK - Point-in-time cylinder counts at the depot
// =============================================================================

// StockSnapshot records how many full and empty cylinders were on hand
// when someone counted. Snapshots are observations, not a derived fold;
// they do not participate in settlement.
type StockSnapshot struct {
	ID             string
	FullCylinders  int
	EmptyCylinders int
	RecordedAt     time.Time
}

type StockStore interface {
	LatestStock(ctx context.Context) (StockSnapshot, bool, error)
	ListStock(ctx context.Context) ([]StockSnapshot, error)
	CreateStock(ctx context.Context, s StockSnapshot) error
}
