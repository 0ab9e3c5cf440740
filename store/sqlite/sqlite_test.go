package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/gasledger/agency"
	"github.com/warp/gasledger/ledger"
)

// =============================================================================
// FIXTURES
// =============================================================================

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func money(s string) decimal.Decimal {
	return ledger.MustMoney(s)
}

func testCustomer(id ledger.CustomerID, balance string, at time.Time) ledger.Customer {
	return ledger.Customer{
		ID:             id,
		Name:           "Ravi Stores",
		Phone:          "9876543210",
		Address:        "12 Market Road",
		CurrentBalance: money(balance),
		CreatedAt:      at,
		UpdatedAt:      at,
	}
}

func cylinderTx(id ledger.TransactionID, customer ledger.CustomerID, key string, at time.Time) ledger.Transaction {
	return ledger.Transaction{
		ID:           id,
		CustomerID:   customer,
		CustomerName: "Ravi Stores",
		PaymentType:  ledger.PaymentPartial,
		Mode:         ledger.SaleCylinder,
		Cylinder: &ledger.CylinderSale{
			Sold:          10,
			Rate:          money("50"),
			EmptyReturned: 2,
		},
		TotalAmount:     money("500"),
		AmountReceived:  money("300"),
		PreviousUnpaid:  money("0"),
		RemainingAmount: money("200"),
		CylinderDelta:   8,
		Notes:           "morning delivery",
		IdempotencyKey:  key,
		CreatedAt:       at,
	}
}

// =============================================================================
// CUSTOMERS
// =============================================================================

func TestCustomer_CreateGetListDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.Create(ctx, testCustomer("cust-1", "150.50", now)))
	require.NoError(t, store.Create(ctx, testCustomer("cust-2", "0", now.Add(time.Second))))

	got, err := store.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.Equal(t, "Ravi Stores", got.Name)
	assert.Equal(t, "9876543210", got.Phone)
	assert.True(t, got.CurrentBalance.Equal(money("150.50")))
	assert.Nil(t, got.LastTransactionAt)
	assert.Equal(t, now, got.CreatedAt)

	customers, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 2)
	assert.Equal(t, ledger.CustomerID("cust-2"), customers[0].ID, "newest first")

	require.NoError(t, store.Delete(ctx, "cust-1"))
	_, err = store.Get(ctx, "cust-1")
	assert.ErrorIs(t, err, ledger.ErrCustomerNotFound)
}

func TestCustomer_GetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ledger.ErrCustomerNotFound)
	assert.True(t, ledger.IsNotFound(err))
}

func TestCustomer_DeleteMissing(t *testing.T) {
	store := newTestStore(t)
	err := store.Delete(context.Background(), "nope")
	assert.ErrorIs(t, err, ledger.ErrCustomerNotFound)
}

// =============================================================================
// LEDGER - append-only log
// =============================================================================

func TestAppend_RoundTripsBothModes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.Append(ctx, cylinderTx("txn-1", "cust-1", "key-1", now)))

	weight := ledger.Transaction{
		ID:           "txn-2",
		CustomerID:   "cust-1",
		CustomerName: "Ravi Stores",
		PaymentType:  ledger.PaymentCredit,
		Mode:         ledger.SaleWeight,
		Weight: &ledger.WeightSale{
			WeightKg:       money("14.2"),
			RatePerKg:      money("85.50"),
			CylinderNumber: "CYL-0042",
			VehicleRef:     "KA-01-1234",
			Exchanged:      true,
		},
		TotalAmount:     money("1214.1"),
		AmountReceived:  money("1000"),
		PreviousUnpaid:  money("200"),
		RemainingAmount: money("414.1"),
		CylinderDelta:   0,
		IdempotencyKey:  "key-2",
		CreatedAt:       now.Add(time.Second),
	}
	require.NoError(t, store.Append(ctx, weight))

	txs, err := store.ListByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	require.Len(t, txs, 2)

	// Newest first.
	assert.Equal(t, ledger.TransactionID("txn-2"), txs[0].ID)
	assert.Equal(t, ledger.TransactionID("txn-1"), txs[1].ID)

	// Weight payload survives intact, cylinder payload absent.
	require.NotNil(t, txs[0].Weight)
	assert.Nil(t, txs[0].Cylinder)
	assert.True(t, txs[0].Weight.WeightKg.Equal(money("14.2")))
	assert.True(t, txs[0].Weight.RatePerKg.Equal(money("85.50")))
	assert.Equal(t, "CYL-0042", txs[0].Weight.CylinderNumber)
	assert.Equal(t, "KA-01-1234", txs[0].Weight.VehicleRef)
	assert.True(t, txs[0].Weight.Exchanged)
	assert.True(t, txs[0].RemainingAmount.Equal(money("414.1")))

	// Cylinder payload survives intact, weight payload absent.
	require.NotNil(t, txs[1].Cylinder)
	assert.Nil(t, txs[1].Weight)
	assert.Equal(t, 10, txs[1].Cylinder.Sold)
	assert.Equal(t, 2, txs[1].Cylinder.EmptyReturned)
	assert.True(t, txs[1].Cylinder.Rate.Equal(money("50")))
	assert.Equal(t, "morning delivery", txs[1].Notes)
	assert.Equal(t, now, txs[1].CreatedAt)
}

func TestAppend_DuplicateIdempotencyKey(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.Append(ctx, cylinderTx("txn-1", "cust-1", "key-1", now)))

	err := store.Append(ctx, cylinderTx("txn-2", "cust-1", "key-1", now.Add(time.Second)))
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrDuplicateIdempotencyKey)

	txs, err := store.ListByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestListAll_TimeWindow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	for i, key := range []string{"key-1", "key-2", "key-3"} {
		tx := cylinderTx(ledger.TransactionID("txn-"+key), "cust-1", key, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, store.Append(ctx, tx))
	}

	all, err := store.ListAll(ctx, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, ledger.TransactionID("txn-key-3"), all[0].ID, "newest first")

	// [base+1h, base+1h] keeps only the middle transaction.
	window, err := store.ListAll(ctx, base.Add(time.Hour), base.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, ledger.TransactionID("txn-key-2"), window[0].ID)

	// Open lower bound.
	until, err := store.ListAll(ctx, time.Time{}, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, until, 2)
}

func TestListAll_SubsecondBoundsAndOrder(t *testing.T) {
	// Rows committed within the same second must still range-filter and
	// sort correctly: the stored text keeps fixed-width fractional
	// seconds so lexicographic order equals time order.
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, cylinderTx("txn-whole", "cust-1", "key-1", base)))
	require.NoError(t, store.Append(ctx, cylinderTx("txn-half", "cust-1", "key-2", base.Add(500*time.Millisecond))))

	// A from-bound at the whole second keeps both rows.
	all, err := store.ListAll(ctx, base, time.Time{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, ledger.TransactionID("txn-half"), all[0].ID, "newest first")
	assert.Equal(t, ledger.TransactionID("txn-whole"), all[1].ID)

	// A from-bound past the whole second keeps only the fractional row.
	later, err := store.ListAll(ctx, base.Add(250*time.Millisecond), time.Time{})
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, ledger.TransactionID("txn-half"), later[0].ID)
}

func TestHasTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	has, err := store.HasTransactions(ctx, "cust-1")
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, store.Append(ctx, cylinderTx("txn-1", "cust-1", "key-1", time.Now().UTC())))

	has, err = store.HasTransactions(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, has)
}

// =============================================================================
// APPLY DELTA - compare-and-set on the balance
// =============================================================================

func TestApplyDelta_AdvancesAggregate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Create(ctx, testCustomer("cust-1", "0", now)))

	at := now.Add(time.Minute)
	err := store.ApplyDelta(ctx, "cust-1", money("0"), money("200"), 8, at)
	require.NoError(t, err)

	got, err := store.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(money("200")))
	assert.Equal(t, 8, got.TotalCylindersOut)
	require.NotNil(t, got.LastTransactionAt)
	assert.Equal(t, at, *got.LastTransactionAt)
}

func TestApplyDelta_StaleExpectedBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testCustomer("cust-1", "500", now)))

	// A caller still holding the pre-advance balance loses.
	err := store.ApplyDelta(ctx, "cust-1", money("0"), money("100"), 1, now)
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrConcurrentUpdate)
	assert.True(t, ledger.IsRetryable(err))

	got, err := store.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(money("500")), "a rejected CAS must not write")
	assert.Equal(t, 0, got.TotalCylindersOut)
}

func TestApplyDelta_EquivalentDecimalTextMatches(t *testing.T) {
	// "200" and "200.00" are the same money; the guard compares decimal
	// values, not the raw text the caller happens to hold.
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testCustomer("cust-1", "200", now)))

	err := store.ApplyDelta(ctx, "cust-1", money("200.00"), money("250"), 0, now)
	require.NoError(t, err)

	got, err := store.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(money("250")))
}

func TestApplyDelta_MissingCustomer(t *testing.T) {
	store := newTestStore(t)
	err := store.ApplyDelta(context.Background(), "nope", money("0"), money("1"), 0, time.Now().UTC())
	assert.ErrorIs(t, err, ledger.ErrCustomerNotFound)
}

func TestOverwrite_ReplacesAggregate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Create(ctx, testCustomer("cust-1", "999", now)))

	last := now.Add(time.Hour)
	err := store.Overwrite(ctx, "cust-1", ledger.Aggregate{
		CurrentBalance:    money("50"),
		TotalCylindersOut: 10,
		LastTransactionAt: &last,
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(money("50")))
	assert.Equal(t, 10, got.TotalCylindersOut)
	require.NotNil(t, got.LastTransactionAt)
	assert.Equal(t, last, *got.LastTransactionAt)
}

// =============================================================================
// WITH TX - atomicity of append + apply-delta
// =============================================================================

func TestWithTx_CommitsBothWrites(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testCustomer("cust-1", "0", now)))

	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.Append(ctx, cylinderTx("txn-1", "cust-1", "key-1", now)); err != nil {
			return err
		}
		return s.ApplyDelta(ctx, "cust-1", money("0"), money("200"), 8, now)
	})
	require.NoError(t, err)

	txs, err := store.ListByCustomer(ctx, "cust-1")
	require.NoError(t, err)
	assert.Len(t, txs, 1)

	got, err := store.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(money("200")))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, store.Create(ctx, testCustomer("cust-1", "500", now)))

	// The append succeeds inside the transaction, then the guarded update
	// fails; the whole unit must vanish.
	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.Append(ctx, cylinderTx("txn-1", "cust-1", "key-1", now)); err != nil {
			return err
		}
		return s.ApplyDelta(ctx, "cust-1", money("0"), money("200"), 8, now)
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ledger.ErrConcurrentUpdate)

	has, err := store.HasTransactions(ctx, "cust-1")
	require.NoError(t, err)
	assert.False(t, has, "rolled-back append must leave no ledger entry")

	got, err := store.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(money("500")))

	// The idempotency key was rolled back too: a clean retry may reuse it.
	err = store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.Append(ctx, cylinderTx("txn-1", "cust-1", "key-1", now)); err != nil {
			return err
		}
		return s.ApplyDelta(ctx, "cust-1", money("500"), money("700"), 8, now)
	})
	require.NoError(t, err)
}

// =============================================================================
// SUPPLIERS
// =============================================================================

func TestSuppliers_CreateListDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	require.NoError(t, store.CreateSupplier(ctx, agency.Supplier{
		ID: "sup-1", Name: "Bharat Gas Depot", Phone: "080-1234", CreatedAt: now,
	}))
	require.NoError(t, store.CreateSupplier(ctx, agency.Supplier{
		ID: "sup-2", Name: "Hindustan Cylinders", CreatedAt: now.Add(time.Second),
	}))

	all, err := store.ListSuppliers(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sup-2", all[0].ID, "newest first")

	filtered, err := store.ListSuppliers(ctx, "Bharat")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "Bharat Gas Depot", filtered[0].Name)
	assert.Equal(t, "080-1234", filtered[0].Phone)

	require.NoError(t, store.DeleteSupplier(ctx, "sup-1"))
	all, err = store.ListSuppliers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// =============================================================================
// EXPENSES
// =============================================================================

func TestExpenses_FiltersAndCategories(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

	expenses := []agency.Expense{
		{ID: "exp-1", Category: "fuel", Amount: money("120.50"), Date: base, CreatedAt: base},
		{ID: "exp-2", Category: "salary", Description: "driver", Amount: money("5000"), Date: base.AddDate(0, 0, 5), CreatedAt: base},
		{ID: "exp-3", Category: "fuel", Amount: money("89"), Date: base.AddDate(0, 0, 10), CreatedAt: base},
	}
	for _, e := range expenses {
		require.NoError(t, store.CreateExpense(ctx, e))
	}

	fuel, err := store.ListExpenses(ctx, "fuel", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, fuel, 2)
	assert.Equal(t, "exp-3", fuel[0].ID, "newest date first")

	windowed, err := store.ListExpenses(ctx, "", base.AddDate(0, 0, 1), base.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, "exp-2", windowed[0].ID)
	assert.Equal(t, "driver", windowed[0].Description)
	assert.True(t, windowed[0].Amount.Equal(money("5000")))

	categories, err := store.ExpenseCategories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"fuel", "salary"}, categories)
}

// =============================================================================
// STOCK
// =============================================================================

func TestStock_LatestAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, ok, err := store.LatestStock(ctx)
	require.NoError(t, err)
	assert.False(t, ok, "empty table means no snapshot, not an error")

	base := time.Date(2025, time.June, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateStock(ctx, agency.StockSnapshot{
		ID: "stk-1", FullCylinders: 40, EmptyCylinders: 10, RecordedAt: base,
	}))
	require.NoError(t, store.CreateStock(ctx, agency.StockSnapshot{
		ID: "stk-2", FullCylinders: 32, EmptyCylinders: 18, RecordedAt: base.Add(time.Hour),
	}))

	latest, ok, err := store.LatestStock(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "stk-2", latest.ID)
	assert.Equal(t, 32, latest.FullCylinders)
	assert.Equal(t, 18, latest.EmptyCylinders)

	snaps, err := store.ListStock(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "stk-2", snaps[0].ID)
}

// =============================================================================
// END-TO-END - coordinator on the real store
// =============================================================================

func TestCoordinator_OnSQLite(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.Create(ctx, testCustomer("cust-1", "0", now)))

	coord := ledger.NewCoordinator(store)

	tx, err := coord.Commit(ctx, ledger.SaleInput{
		CustomerID:  "cust-1",
		PaymentType: ledger.PaymentPartial,
		Mode:        ledger.SaleCylinder,
		Cylinder: &ledger.CylinderSale{
			Sold:          10,
			Rate:          money("50"),
			EmptyReturned: 2,
		},
		AmountReceived: money("300"),
		IdempotencyKey: "key-1",
	})
	require.NoError(t, err)
	assert.True(t, tx.RemainingAmount.Equal(money("200")))

	got, err := store.Get(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, got.CurrentBalance.Equal(money("200")))
	assert.Equal(t, 8, got.TotalCylindersOut)

	agg, drift, ok, err := coord.Audit(ctx, "cust-1")
	require.NoError(t, err)
	assert.True(t, ok, "fresh commit must audit clean, drift %s/%d", drift.BalanceDiff, drift.CylinderDiff)
	assert.True(t, agg.CurrentBalance.Equal(money("200")))
}
