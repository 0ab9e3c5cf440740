package ledger_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/gasledger/ledger"
)

func committedTx(remaining string, delta int, at time.Time) ledger.Transaction {
	return ledger.Transaction{
		RemainingAmount: ledger.MustMoney(remaining),
		CylinderDelta:   delta,
		CreatedAt:       at,
	}
}

func TestReplay_EmptyHistory(t *testing.T) {
	agg := ledger.Replay(nil)
	assert.True(t, agg.CurrentBalance.IsZero())
	assert.Equal(t, 0, agg.TotalCylindersOut)
	assert.Nil(t, agg.LastTransactionAt)
}

func TestReplay_BalanceIsLastRemaining_CylindersAreSummed(t *testing.T) {
	// The balance is NOT a sum: each transaction already embeds the
	// balance after itself. Cylinders ARE a sum of deltas.
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	txs := []ledger.Transaction{
		committedTx("200", 8, base),
		committedTx("600", 0, base.Add(time.Hour)),
		committedTx("100", -3, base.Add(2*time.Hour)),
	}

	agg := ledger.Replay(txs)
	assert.True(t, agg.CurrentBalance.Equal(ledger.MustMoney("100")))
	assert.Equal(t, 5, agg.TotalCylindersOut)
	assert.Equal(t, base.Add(2*time.Hour), *agg.LastTransactionAt)
}

func TestReconcile_DetectsDrift(t *testing.T) {
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)
	txs := []ledger.Transaction{committedTx("200", 8, base)}

	consistent := ledger.Customer{
		CurrentBalance:    ledger.MustMoney("200"),
		TotalCylindersOut: 8,
	}
	_, _, ok := ledger.Reconcile(consistent, txs)
	assert.True(t, ok)

	// A hand-edited aggregate no longer matches the fold.
	drifted := ledger.Customer{
		CurrentBalance:    ledger.MustMoney("250"),
		TotalCylindersOut: 6,
	}
	agg, drift, ok := ledger.Reconcile(drifted, txs)
	assert.False(t, ok)
	assert.True(t, drift.BalanceDiff.Equal(ledger.MustMoney("50")))
	assert.Equal(t, -2, drift.CylinderDiff)
	assert.True(t, agg.CurrentBalance.Equal(ledger.MustMoney("200")))
}

func TestReconcile_SeededCustomerWithNoHistory(t *testing.T) {
	// A migrated customer may carry a seed balance with no transactions
	// yet; reconcile reports that as drift against an empty ledger.
	seeded := ledger.Customer{CurrentBalance: ledger.MustMoney("900"), TotalCylindersOut: 4}
	_, drift, ok := ledger.Reconcile(seeded, nil)
	assert.False(t, ok)
	assert.True(t, drift.BalanceDiff.Equal(ledger.MustMoney("900")))
	assert.Equal(t, 4, drift.CylinderDiff)

	zero := ledger.Customer{CurrentBalance: decimal.Zero}
	_, _, ok = ledger.Reconcile(zero, nil)
	assert.True(t, ok)
}
