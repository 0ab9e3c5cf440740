// Package store provides in-memory implementations of the ledger store
// contracts, used by tests and local development.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/gasledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	customers    map[ledger.CustomerID]ledger.Customer
	transactions map[ledger.CustomerID][]ledger.Transaction
	idempotency  map[string]bool
}

func NewMemory() *Memory {
	return &Memory{
		customers:    make(map[ledger.CustomerID]ledger.Customer),
		transactions: make(map[ledger.CustomerID][]ledger.Transaction),
		idempotency:  make(map[string]bool),
	}
}

// -----------------------------------------------------------------------------
// LedgerStore
// -----------------------------------------------------------------------------

// Append adds a single transaction. Append-only.
func (m *Memory) Append(_ context.Context, tx ledger.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendLocked(tx)
}

func (m *Memory) appendLocked(tx ledger.Transaction) error {
	if tx.IdempotencyKey != "" && m.idempotency[tx.IdempotencyKey] {
		return ledger.ErrDuplicateIdempotencyKey
	}
	m.transactions[tx.CustomerID] = append(m.transactions[tx.CustomerID], tx)
	if tx.IdempotencyKey != "" {
		m.idempotency[tx.IdempotencyKey] = true
	}
	return nil
}

func (m *Memory) ListByCustomer(_ context.Context, id ledger.CustomerID) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return reversed(m.transactions[id]), nil
}

// reversed returns a newest-first copy of an append-ordered slice.
// Per-customer commit order is append order, so no timestamp sort is
// needed (and equal timestamps stay correctly ordered).
func reversed(txs []ledger.Transaction) []ledger.Transaction {
	result := make([]ledger.Transaction, len(txs))
	for i, tx := range txs {
		result[len(txs)-1-i] = tx
	}
	return result
}

func (m *Memory) ListAll(_ context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []ledger.Transaction
	for _, txs := range m.transactions {
		for _, tx := range txs {
			if !from.IsZero() && tx.CreatedAt.Before(from) {
				continue
			}
			if !to.IsZero() && tx.CreatedAt.After(to) {
				continue
			}
			result = append(result, tx)
		}
	}
	return newestFirst(result), nil
}

func (m *Memory) HasTransactions(_ context.Context, id ledger.CustomerID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.transactions[id]) > 0, nil
}

func newestFirst(txs []ledger.Transaction) []ledger.Transaction {
	result := make([]ledger.Transaction, len(txs))
	copy(result, txs)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

// -----------------------------------------------------------------------------
// CustomerStore
// -----------------------------------------------------------------------------

func (m *Memory) Get(_ context.Context, id ledger.CustomerID) (ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getLocked(id)
}

func (m *Memory) getLocked(id ledger.CustomerID) (ledger.Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return ledger.Customer{}, ledger.ErrCustomerNotFound
	}
	return c, nil
}

func (m *Memory) List(_ context.Context) ([]ledger.Customer, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(), nil
}

func (m *Memory) listLocked() []ledger.Customer {
	result := make([]ledger.Customer, 0, len(m.customers))
	for _, c := range m.customers {
		result = append(result, c)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func (m *Memory) Create(_ context.Context, c ledger.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.customers[c.ID] = c
	return nil
}

func (m *Memory) ApplyDelta(_ context.Context, id ledger.CustomerID, expectedPriorBalance, newBalance decimal.Decimal, cylinderDelta int, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyDeltaLocked(id, expectedPriorBalance, newBalance, cylinderDelta, at)
}

func (m *Memory) applyDeltaLocked(id ledger.CustomerID, expectedPriorBalance, newBalance decimal.Decimal, cylinderDelta int, at time.Time) error {
	c, ok := m.customers[id]
	if !ok {
		return ledger.ErrCustomerNotFound
	}
	if !c.CurrentBalance.Equal(expectedPriorBalance) {
		return ledger.ErrConcurrentUpdate
	}

	c.CurrentBalance = newBalance
	c.TotalCylindersOut += cylinderDelta
	c.LastTransactionAt = &at
	c.UpdatedAt = at
	m.customers[id] = c
	return nil
}

func (m *Memory) Overwrite(_ context.Context, id ledger.CustomerID, agg ledger.Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.customers[id]
	if !ok {
		return ledger.ErrCustomerNotFound
	}
	c.CurrentBalance = agg.CurrentBalance
	c.TotalCylindersOut = agg.TotalCylindersOut
	c.LastTransactionAt = agg.LastTransactionAt
	c.UpdatedAt = time.Now().UTC()
	m.customers[id] = c
	return nil
}

func (m *Memory) Delete(_ context.Context, id ledger.CustomerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.customers[id]; !ok {
		return ledger.ErrCustomerNotFound
	}
	delete(m.customers, id)
	return nil
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn atomically. For the memory store this is simulated
// with a snapshot taken under the write lock and restored on error.
func (tm *TxMemory) WithTx(_ context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.snapshot()
	view := &txMemoryView{parent: tm}

	if err := fn(view); err != nil {
		tm.restore(snapshot)
		return err
	}
	return nil
}

type memorySnapshot struct {
	customers    map[ledger.CustomerID]ledger.Customer
	transactions map[ledger.CustomerID][]ledger.Transaction
	idempotency  map[string]bool
}

func (tm *TxMemory) snapshot() memorySnapshot {
	customers := make(map[ledger.CustomerID]ledger.Customer, len(tm.customers))
	for k, v := range tm.customers {
		customers[k] = v
	}
	transactions := make(map[ledger.CustomerID][]ledger.Transaction, len(tm.transactions))
	for k, v := range tm.transactions {
		transactions[k] = append([]ledger.Transaction{}, v...)
	}
	idempotency := make(map[string]bool, len(tm.idempotency))
	for k, v := range tm.idempotency {
		idempotency[k] = v
	}
	return memorySnapshot{customers: customers, transactions: transactions, idempotency: idempotency}
}

func (tm *TxMemory) restore(s memorySnapshot) {
	tm.customers = s.customers
	tm.transactions = s.transactions
	tm.idempotency = s.idempotency
}

// txMemoryView gives fn access to the already-locked parent state.
type txMemoryView struct {
	parent *TxMemory
}

func (tv *txMemoryView) Append(_ context.Context, tx ledger.Transaction) error {
	return tv.parent.appendLocked(tx)
}

func (tv *txMemoryView) ListByCustomer(_ context.Context, id ledger.CustomerID) ([]ledger.Transaction, error) {
	return reversed(tv.parent.transactions[id]), nil
}

func (tv *txMemoryView) ListAll(_ context.Context, from, to time.Time) ([]ledger.Transaction, error) {
	var result []ledger.Transaction
	for _, txs := range tv.parent.transactions {
		for _, tx := range txs {
			if !from.IsZero() && tx.CreatedAt.Before(from) {
				continue
			}
			if !to.IsZero() && tx.CreatedAt.After(to) {
				continue
			}
			result = append(result, tx)
		}
	}
	return newestFirst(result), nil
}

func (tv *txMemoryView) HasTransactions(_ context.Context, id ledger.CustomerID) (bool, error) {
	return len(tv.parent.transactions[id]) > 0, nil
}

func (tv *txMemoryView) Get(_ context.Context, id ledger.CustomerID) (ledger.Customer, error) {
	return tv.parent.getLocked(id)
}

func (tv *txMemoryView) List(_ context.Context) ([]ledger.Customer, error) {
	return tv.parent.listLocked(), nil
}

func (tv *txMemoryView) Create(_ context.Context, c ledger.Customer) error {
	tv.parent.customers[c.ID] = c
	return nil
}

func (tv *txMemoryView) ApplyDelta(_ context.Context, id ledger.CustomerID, expectedPriorBalance, newBalance decimal.Decimal, cylinderDelta int, at time.Time) error {
	return tv.parent.applyDeltaLocked(id, expectedPriorBalance, newBalance, cylinderDelta, at)
}

func (tv *txMemoryView) Overwrite(_ context.Context, id ledger.CustomerID, agg ledger.Aggregate) error {
	c, ok := tv.parent.customers[id]
	if !ok {
		return ledger.ErrCustomerNotFound
	}
	c.CurrentBalance = agg.CurrentBalance
	c.TotalCylindersOut = agg.TotalCylindersOut
	c.LastTransactionAt = agg.LastTransactionAt
	tv.parent.customers[id] = c
	return nil
}

func (tv *txMemoryView) Delete(_ context.Context, id ledger.CustomerID) error {
	if _, ok := tv.parent.customers[id]; !ok {
		return ledger.ErrCustomerNotFound
	}
	delete(tv.parent.customers, id)
	return nil
}
