/*
Package ledger provides the settlement engine for gas cylinder sales.

PURPOSE:
  This package contains the domain types and algorithms for turning a raw
  sale input into a committed transaction plus a consistent customer
  aggregate update. Two pricing bases are supported: per-cylinder and
  per-kilogram. The customer's running balance and cylinder-out count are
  a cached fold over the append-only transaction history.

KEY CONCEPTS IN THIS FILE (types.go):
  - Money values: decimal.Decimal everywhere, never float64
  - SaleInput: what the storefront submits for one sale
  - Transaction: an immutable ledger entry, derived fields included
  - Customer: the mutable aggregate (balance + cylinders out)

DESIGN PRINCIPLES:
  1. Immutability: Transactions are never modified; corrections are new
     offsetting transactions
  2. Precision: decimal.Decimal avoids floating-point drift across
     repeated balance updates
  3. Single representation: the balance IS the last transaction's
     remaining amount, not a separately tracked delta sum
  4. Auditability: every commit carries an idempotency key

SEE ALSO:
  - calculator.go: Pure settlement arithmetic
  - settlement.go: Commit orchestration
  - replay.go: Rebuilding the aggregate from history
  - store.go: Persistence contracts
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type CustomerID string
type TransactionID string

// =============================================================================
// MONEY HELPERS
// =============================================================================

// MustMoney parses a decimal literal, returning zero on failure.
// Intended for constants and tests, not for user input.
func MustMoney(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// =============================================================================
// SALE INPUT - What the storefront submits
// =============================================================================

type PaymentType string

const (
	PaymentCash    PaymentType = "cash"
	PaymentCredit  PaymentType = "credit"
	PaymentPartial PaymentType = "partial"
)

// ValidPaymentType reports whether p is one of the known payment types.
func ValidPaymentType(p PaymentType) bool {
	switch p {
	case PaymentCash, PaymentCredit, PaymentPartial:
		return true
	}
	return false
}

type SaleMode string

const (
	SaleCylinder SaleMode = "cylinder"
	SaleWeight   SaleMode = "weight"
)

// CylinderSale is the detail payload for cylinder-count pricing.
type CylinderSale struct {
	Sold          int
	Rate          decimal.Decimal
	EmptyReturned int
}

// WeightSale is the detail payload for weight-based pricing.
type WeightSale struct {
	WeightKg  decimal.Decimal
	RatePerKg decimal.Decimal

	// Optional metadata carried through to the ledger.
	CylinderNumber string
	VehicleRef     string

	// Exchanged marks that a full cylinder went out and an empty came
	// back as part of this weight sale. Its inventory effect is decided
	// by InventoryPolicy, not assumed here.
	Exchanged bool
}

// SaleInput is one sale as collected at the point of sale.
// Exactly one of Cylinder/Weight must be set, matching Mode.
type SaleInput struct {
	CustomerID  CustomerID
	PaymentType PaymentType
	Mode        SaleMode

	Cylinder *CylinderSale
	Weight   *WeightSale

	AmountReceived decimal.Decimal
	Notes          string

	// IdempotencyKey is client-generated and required. A retry after an
	// unknown-outcome failure reuses the key and is rejected instead of
	// double-committed.
	IdempotencyKey string
}

// =============================================================================
// TRANSACTION - Immutable ledger entry
// =============================================================================

type Transaction struct {
	ID           TransactionID
	CustomerID   CustomerID
	CustomerName string // snapshot of the customer's name at commit time
	PaymentType  PaymentType
	Mode         SaleMode

	Cylinder *CylinderSale
	Weight   *WeightSale

	// Derived by the Calculator at commit time. Never trusted from callers.
	TotalAmount     decimal.Decimal
	AmountReceived  decimal.Decimal
	PreviousUnpaid  decimal.Decimal
	RemainingAmount decimal.Decimal

	// CylinderDelta is frozen at commit time so that replay does not need
	// to re-apply mode-specific inventory rules.
	CylinderDelta int

	Notes          string
	IdempotencyKey string
	CreatedAt      time.Time
}

// =============================================================================
// CUSTOMER - Mutable aggregate derived from the ledger
// =============================================================================

// Customer holds the cached fold over the customer's transaction history.
// CurrentBalance and TotalCylindersOut must always equal the cumulative
// effect of every committed transaction referencing this customer.
// Positive balance: the customer owes money. Negative: the customer holds credit.
type Customer struct {
	ID      CustomerID
	Name    string
	Phone   string
	Address string

	CurrentBalance    decimal.Decimal
	TotalCylindersOut int
	LastTransactionAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}
