/*
customers.go - Customer registration and lifecycle policy

PURPOSE:
  Validates new customer records and enforces the lifecycle rules the
  ledger depends on: after the first committed transaction a customer's
  aggregate is only ever advanced by the Settlement Coordinator, and a
  customer with ledger history cannot be deleted.

VALIDATION RULES:
  name:        required, non-empty after trimming
  phone:       optional; digits only when present
  address:     optional; at most 200 characters
  seedBalance: optional; must parse as a decimal when present

DELETION:
  The storefront this replaces performed an unconditional hard delete,
  orphaning transaction history. Here deletion is refused with
  ErrCustomerHasTransactions while any transaction references the
  customer.
*/
package agency

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/gasledger/ledger"
)

const maxAddressLength = 200

// =============================================================================
// CUSTOMER SERVICE
// =============================================================================

type CustomerService struct {
	Store ledger.Store

	// Now and NewID are injectable for tests; zero values use the defaults.
	Now   func() time.Time
	NewID func() ledger.CustomerID
}

func NewCustomerService(store ledger.Store) *CustomerService {
	return &CustomerService{Store: store}
}

func (s *CustomerService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *CustomerService) newID() ledger.CustomerID {
	if s.NewID != nil {
		return s.NewID()
	}
	return ledger.CustomerID(fmt.Sprintf("cust-%d", time.Now().UnixNano()))
}

// NewCustomerInput is a registration request. Balance and cylinder seeds
// are caller-supplied so existing paper-ledger customers can be migrated
// with their outstanding state.
type NewCustomerInput struct {
	Name    string
	Phone   string
	Address string

	SeedBalance      string // decimal literal, empty means zero
	SeedCylindersOut int
}

// Register validates and creates a customer.
func (s *CustomerService) Register(ctx context.Context, in NewCustomerInput) (ledger.Customer, error) {
	if err := ValidateCustomer(in); err != nil {
		return ledger.Customer{}, err
	}

	balance := decimal.Zero
	if in.SeedBalance != "" {
		var err error
		balance, err = decimal.NewFromString(in.SeedBalance)
		if err != nil {
			return ledger.Customer{}, &ledger.ValidationError{Field: "seedBalance", Message: "must be a decimal number"}
		}
	}

	now := s.now()
	c := ledger.Customer{
		ID:                s.newID(),
		Name:              strings.TrimSpace(in.Name),
		Phone:             in.Phone,
		Address:           in.Address,
		CurrentBalance:    balance,
		TotalCylindersOut: in.SeedCylindersOut,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.Store.Create(ctx, c); err != nil {
		return ledger.Customer{}, err
	}
	return c, nil
}

// Remove deletes a customer, refusing while ledger history references it.
func (s *CustomerService) Remove(ctx context.Context, id ledger.CustomerID) error {
	if _, err := s.Store.Get(ctx, id); err != nil {
		return err
	}
	has, err := s.Store.HasTransactions(ctx, id)
	if err != nil {
		return err
	}
	if has {
		return ledger.ErrCustomerHasTransactions
	}
	return s.Store.Delete(ctx, id)
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidateCustomer applies the registration rules.
func ValidateCustomer(in NewCustomerInput) error {
	if strings.TrimSpace(in.Name) == "" {
		return &ledger.ValidationError{Field: "name", Message: "customer name is required"}
	}
	if in.Phone != "" && !digitsOnly(in.Phone) {
		return &ledger.ValidationError{Field: "phone", Message: "phone must contain digits only"}
	}
	if len(in.Address) > maxAddressLength {
		return &ledger.ValidationError{Field: "address", Message: "address cannot exceed 200 characters"}
	}
	if in.SeedBalance != "" {
		if _, err := decimal.NewFromString(in.SeedBalance); err != nil {
			return &ledger.ValidationError{Field: "seedBalance", Message: "must be a decimal number"}
		}
	}
	if in.SeedCylindersOut < 0 {
		return &ledger.ValidationError{Field: "totalCylindersOut", Message: "must not be negative"}
	}
	return nil
}

func digitsOnly(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
