/*
replay.go - Rebuilding the customer aggregate from the ledger

PURPOSE:
  The customer record caches a fold over the transaction history. This
  file holds the fold itself, so the live incremental path and the
  recovery/audit path share one definition and can never diverge.

THE FOLD:
  balance       = RemainingAmount of the most recent transaction
  cylindersOut  = sum of every CylinderDelta
  lastTxAt      = CreatedAt of the most recent transaction

  Each committed transaction already embeds the balance after itself
  (RemainingAmount), so replay takes the last one rather than summing
  deltas on top of a separately tracked balance.

SEE ALSO:
  - settlement.go: The incremental path this must agree with, and the
    Recompute/Audit entry points that call Replay
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// AGGREGATE - The replayed customer state
// =============================================================================

type Aggregate struct {
	CurrentBalance    decimal.Decimal
	TotalCylindersOut int
	LastTransactionAt *time.Time
}

// =============================================================================
// REPLAY
// =============================================================================

// Replay folds a customer's transactions, oldest first, into the aggregate
// state the customer record should hold. An empty history replays to a
// zero aggregate.
func Replay(txs []Transaction) Aggregate {
	agg := Aggregate{CurrentBalance: decimal.Zero}
	for _, tx := range txs {
		agg.CurrentBalance = tx.RemainingAmount
		agg.TotalCylindersOut += tx.CylinderDelta
		at := tx.CreatedAt
		agg.LastTransactionAt = &at
	}
	return agg
}

// Drift describes a divergence between the cached customer aggregate and
// the replayed ledger fold.
type Drift struct {
	BalanceDiff  decimal.Decimal // cached - replayed
	CylinderDiff int             // cached - replayed
}

// Reconcile compares the cached aggregate on a customer record against the
// replayed fold of its history. ok is true when they agree.
func Reconcile(c Customer, txs []Transaction) (Aggregate, Drift, bool) {
	agg := Replay(txs)
	drift := Drift{
		BalanceDiff:  c.CurrentBalance.Sub(agg.CurrentBalance),
		CylinderDiff: c.TotalCylindersOut - agg.TotalCylindersOut,
	}
	ok := drift.BalanceDiff.IsZero() && drift.CylinderDiff == 0
	return agg, drift, ok
}
