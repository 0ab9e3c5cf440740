/*
settlement.go - The Settlement Coordinator

PURPOSE:
  Orchestrates one sale commit: validate input, read the customer's
  current balance, run the calculator, append the transaction, and fold
  the result into the customer aggregate. Owns the consistency contract
  between the ledger and the aggregate.

COMMIT GUARANTEES:
  - The balance read and the aggregate write form one optimistic unit:
    ApplyDelta carries the read balance as a precondition, so a
    concurrent commit for the same customer cannot both win against the
    same prior balance.
  - Append and ApplyDelta run inside WithTx: no orphan transaction
    without its aggregate update, and vice versa.
  - The new balance IS the transaction's RemainingAmount. There is no
    second, additively-tracked balance to drift from it.

RETRIES:
  ErrConcurrentUpdate triggers an automatic re-read and re-commit, up to
  MaxRetries, then surfaces to the caller. Store failures are NEVER
  retried here: the outcome may be unknown, and only the idempotency key
  makes a caller-side retry safe.

CONCURRENCY:
  Commits for different customers are independent; nothing here takes a
  global lock. The calculator is pure and needs no discipline.

SEE ALSO:
  - calculator.go: The arithmetic
  - store.go: The contracts this coordinates
*/
package ledger

import (
	"context"
	"fmt"
	"time"
)

// DefaultMaxRetries bounds the automatic conflict retry loop.
const DefaultMaxRetries = 3

// =============================================================================
// COORDINATOR
// =============================================================================

type Coordinator struct {
	Store      TxStore
	Inventory  InventoryPolicy
	MaxRetries int

	// Now and NewID are injectable for tests; zero values use the defaults.
	Now   func() time.Time
	NewID func() TransactionID
}

func NewCoordinator(store TxStore) *Coordinator {
	return &Coordinator{
		Store:      store,
		MaxRetries: DefaultMaxRetries,
	}
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Coordinator) newID() TransactionID {
	if c.NewID != nil {
		return c.NewID()
	}
	return TransactionID(fmt.Sprintf("txn-%d", time.Now().UnixNano()))
}

// Commit settles one sale: Transaction on success, or one of
// ErrValidation, ErrCustomerNotFound, ErrDuplicateIdempotencyKey,
// ErrConcurrentUpdate (after retries), ErrStoreFailure. On any failure
// nothing is committed.
func (c *Coordinator) Commit(ctx context.Context, in SaleInput) (Transaction, error) {
	if err := ValidateInput(in); err != nil {
		return Transaction{}, err
	}
	if in.IdempotencyKey == "" {
		return Transaction{}, &ValidationError{Field: "idempotencyKey", Message: "idempotency key is required"}
	}

	retries := c.MaxRetries
	if retries < 1 {
		retries = 1
	}

	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		tx, err := c.tryCommit(ctx, in)
		if err == nil {
			return tx, nil
		}
		if !IsRetryable(err) {
			return Transaction{}, err
		}
		lastErr = err
	}
	return Transaction{}, lastErr
}

// tryCommit performs one read-calculate-write round.
func (c *Coordinator) tryCommit(ctx context.Context, in SaleInput) (Transaction, error) {
	customer, err := c.Store.Get(ctx, in.CustomerID)
	if err != nil {
		return Transaction{}, err
	}

	settled, err := Calculate(in, customer.CurrentBalance, c.Inventory)
	if err != nil {
		return Transaction{}, err
	}

	now := c.now()
	tx := Transaction{
		ID:              c.newID(),
		CustomerID:      customer.ID,
		CustomerName:    customer.Name,
		PaymentType:     in.PaymentType,
		Mode:            in.Mode,
		Cylinder:        in.Cylinder,
		Weight:          in.Weight,
		TotalAmount:     settled.TotalAmount,
		AmountReceived:  in.AmountReceived,
		PreviousUnpaid:  customer.CurrentBalance,
		RemainingAmount: settled.RemainingAmount,
		CylinderDelta:   settled.CylinderDelta,
		Notes:           in.Notes,
		IdempotencyKey:  in.IdempotencyKey,
		CreatedAt:       now,
	}

	err = c.Store.WithTx(ctx, func(s Store) error {
		if err := s.Append(ctx, tx); err != nil {
			return err
		}
		return s.ApplyDelta(ctx, customer.ID,
			customer.CurrentBalance, settled.RemainingAmount,
			settled.CylinderDelta, now)
	})
	if err != nil {
		return Transaction{}, err
	}
	return tx, nil
}

// =============================================================================
// ADMIN RECOMPUTE - Corrections go through the fold, not raw edits
// =============================================================================

// Recompute rebuilds a customer's aggregate from the ledger and overwrites
// the cached record with the replayed fold. This is the administrative
// override path: it recomputes rather than accepting caller-supplied
// numbers.
func (c *Coordinator) Recompute(ctx context.Context, id CustomerID) (Aggregate, error) {
	customer, err := c.Store.Get(ctx, id)
	if err != nil {
		return Aggregate{}, err
	}

	txs, err := c.Store.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return Aggregate{}, err
	}
	// ListByCustomer is newest-first; Replay wants oldest-first.
	reverseTransactions(txs)

	agg := Replay(txs)
	if err := c.Store.Overwrite(ctx, customer.ID, agg); err != nil {
		return Aggregate{}, err
	}
	return agg, nil
}

// Audit replays a customer's history without writing anything and reports
// whether the cached aggregate agrees with the fold.
func (c *Coordinator) Audit(ctx context.Context, id CustomerID) (Aggregate, Drift, bool, error) {
	customer, err := c.Store.Get(ctx, id)
	if err != nil {
		return Aggregate{}, Drift{}, false, err
	}
	txs, err := c.Store.ListByCustomer(ctx, customer.ID)
	if err != nil {
		return Aggregate{}, Drift{}, false, err
	}
	reverseTransactions(txs)

	agg, drift, ok := Reconcile(customer, txs)
	return agg, drift, ok, nil
}

func reverseTransactions(txs []Transaction) {
	for i, j := 0, len(txs)-1; i < j; i, j = i+1, j-1 {
		txs[i], txs[j] = txs[j], txs[i]
	}
}
