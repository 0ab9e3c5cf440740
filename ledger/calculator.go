/*
calculator.go - Pure settlement arithmetic

PURPOSE:
  Computes the monetary and inventory effect of a single sale. This is
  the ONE place the total/remaining formulas live; every commit path and
  every test depends on it rather than restating the arithmetic.

THE FORMULAS:
  cylinder mode: total = cylindersSold * cylinderRate
  weight mode:   total = gasWeightKg * ratePerKg
  both:          remaining = previousUnpaid + total - amountReceived

  Empty cylinder returns never reduce the total. Money reflects cylinders
  SOLD; inventory reflects sold minus returned. An earlier storefront
  variant subtracted emptyReturned * rate from the total, which
  double-counts returns against money instead of inventory.

  Remaining may be negative: the customer overpaid and holds credit.
  It is never clamped to zero.

PURITY:
  No I/O, no clock, no mutation. Same input, same output. This is what
  makes the settlement arithmetic independently testable.

SEE ALSO:
  - settlement.go: The only production caller
  - replay.go: Folds committed settlements back into an aggregate
*/
package ledger

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// INVENTORY POLICY
// =============================================================================

// InventoryPolicy decides the cylinder-inventory effect of cases the
// business rules leave open. It is configuration, not code: a weight sale
// with an exchanged cylinder is net-zero for some distributors (one full
// out, one empty back) and plus-one for others (the empty is scrapped).
type InventoryPolicy struct {
	// WeightExchangeCountsAsOut counts an exchanged cylinder on a weight
	// sale as one more cylinder out. Default false: exchange is net-zero.
	WeightExchangeCountsAsOut bool
}

// =============================================================================
// SETTLEMENT - The computed effect of one sale
// =============================================================================

type Settlement struct {
	TotalAmount     decimal.Decimal
	RemainingAmount decimal.Decimal
	CylinderDelta   int
}

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculate validates the sale input and computes its settlement against
// the customer's balance before this sale.
//
// Returns a *ValidationError (wrapping ErrValidation) on bad input.
// Nothing is committed by this function; it is pure.
func Calculate(in SaleInput, previousUnpaid decimal.Decimal, policy InventoryPolicy) (Settlement, error) {
	if err := ValidateInput(in); err != nil {
		return Settlement{}, err
	}

	var total decimal.Decimal
	var delta int

	switch in.Mode {
	case SaleCylinder:
		c := in.Cylinder
		total = decimal.NewFromInt(int64(c.Sold)).Mul(c.Rate)
		delta = c.Sold - c.EmptyReturned
	case SaleWeight:
		w := in.Weight
		total = w.WeightKg.Mul(w.RatePerKg)
		if w.Exchanged && policy.WeightExchangeCountsAsOut {
			delta = 1
		}
	}

	remaining := previousUnpaid.Add(total).Sub(in.AmountReceived)

	return Settlement{
		TotalAmount:     total,
		RemainingAmount: remaining,
		CylinderDelta:   delta,
	}, nil
}

// ValidateInput applies the rejection rules shared by Calculate and the
// Settlement Coordinator. Zero quantities are allowed (a pure payment
// against an outstanding balance is a valid sale); negatives are not.
func ValidateInput(in SaleInput) error {
	if in.CustomerID == "" {
		return &ValidationError{Field: "customerId", Message: "customer is required"}
	}
	if in.PaymentType == "" {
		return &ValidationError{Field: "paymentType", Message: "payment type is required"}
	}
	if !ValidPaymentType(in.PaymentType) {
		return &ValidationError{Field: "paymentType", Message: "unknown payment type"}
	}
	if in.AmountReceived.IsNegative() {
		return &ValidationError{Field: "amountReceived", Message: "must not be negative"}
	}

	switch in.Mode {
	case SaleCylinder:
		if in.Cylinder == nil {
			return &ValidationError{Field: "cylinderDetails", Message: "cylinder payload is required"}
		}
		if in.Weight != nil {
			return &ValidationError{Field: "weightDetails", Message: "must not be set for cylinder sales"}
		}
		if in.Cylinder.Sold < 0 {
			return &ValidationError{Field: "cylindersSold", Message: "must not be negative"}
		}
		if in.Cylinder.Rate.IsNegative() {
			return &ValidationError{Field: "cylinderRate", Message: "must not be negative"}
		}
		if in.Cylinder.EmptyReturned < 0 {
			return &ValidationError{Field: "emptyCylindersReturned", Message: "must not be negative"}
		}
	case SaleWeight:
		if in.Weight == nil {
			return &ValidationError{Field: "weightDetails", Message: "weight payload is required"}
		}
		if in.Cylinder != nil {
			return &ValidationError{Field: "cylinderDetails", Message: "must not be set for weight sales"}
		}
		if in.Weight.WeightKg.IsNegative() {
			return &ValidationError{Field: "gasWeightKg", Message: "must not be negative"}
		}
		if in.Weight.RatePerKg.IsNegative() {
			return &ValidationError{Field: "ratePerKg", Message: "must not be negative"}
		}
	case "":
		return &ValidationError{Field: "saleMode", Message: "sale mode is required"}
	default:
		return &ValidationError{Field: "saleMode", Message: "unknown sale mode"}
	}

	return nil
}
