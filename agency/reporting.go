/*
reporting.go - Analytics rollup

PURPOSE:
  Sums already-committed transactions and expenses for the dashboard.
  Pure re-read: nothing here creates state or holds invariants, so a
  wrong number fixes itself on the next request.

FIGURES:
  totalRevenue  = sum of transaction totalAmount in the range
  totalExpenses = sum of expense amount in the range
  netProfit     = revenue - expenses
  receivables   = sum of positive customer balances (range-independent)
  cylindersNet  = sum of cylinder deltas in the range
*/
package agency

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/gasledger/ledger"
)

// =============================================================================
// SUMMARY
// =============================================================================

type Summary struct {
	TotalRevenue     decimal.Decimal
	TotalExpenses    decimal.Decimal
	NetProfit        decimal.Decimal
	Receivables      decimal.Decimal
	TransactionCount int
	CylindersNet     int
}

// =============================================================================
// REPORTER
// =============================================================================

type Reporter struct {
	Ledger    ledger.LedgerStore
	Customers ledger.CustomerStore
	Expenses  ExpenseStore
}

// Summarize computes the dashboard figures over [from, to]. Zero bounds
// mean unbounded.
func (r *Reporter) Summarize(ctx context.Context, from, to time.Time) (Summary, error) {
	txs, err := r.Ledger.ListAll(ctx, from, to)
	if err != nil {
		return Summary{}, err
	}

	expenses, err := r.Expenses.ListExpenses(ctx, "", from, to)
	if err != nil {
		return Summary{}, err
	}

	customers, err := r.Customers.List(ctx)
	if err != nil {
		return Summary{}, err
	}

	s := Summary{
		TotalRevenue:  decimal.Zero,
		TotalExpenses: decimal.Zero,
		Receivables:   decimal.Zero,
	}
	for _, tx := range txs {
		s.TotalRevenue = s.TotalRevenue.Add(tx.TotalAmount)
		s.CylindersNet += tx.CylinderDelta
		s.TransactionCount++
	}
	for _, e := range expenses {
		s.TotalExpenses = s.TotalExpenses.Add(e.Amount)
	}
	for _, c := range customers {
		if c.CurrentBalance.IsPositive() {
			s.Receivables = s.Receivables.Add(c.CurrentBalance)
		}
	}
	s.NetProfit = s.TotalRevenue.Sub(s.TotalExpenses)
	return s, nil
}
