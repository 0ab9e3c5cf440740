/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

MONEY FIELDS:
  decimal.Decimal marshals as a quoted string ("500.00") and unmarshals
  from either a JSON string or number, so clients never round-trip money
  through float64.

VALIDATION:
  Validation happens in the domain (ledger.ValidateInput,
  agency.ValidateCustomer), not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/gasledger/agency"
	"github.com/warp/gasledger/ledger"
)

// =============================================================================
// CUSTOMER TYPES
// =============================================================================

// CustomerDTO represents a customer in API responses.
type CustomerDTO struct {
	ID                string          `json:"id"`
	Name              string          `json:"name"`
	Phone             string          `json:"phone,omitempty"`
	Address           string          `json:"address,omitempty"`
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	TotalCylindersOut int             `json:"total_cylinders_out"`
	LastTransactionAt *string         `json:"last_transaction_at,omitempty"`
	CreatedAt         string          `json:"created_at,omitempty"`
}

// CreateCustomerRequest is the request to register a customer.
type CreateCustomerRequest struct {
	Name             string `json:"name"`
	Phone            string `json:"phone,omitempty"`
	Address          string `json:"address,omitempty"`
	SeedBalance      string `json:"seed_balance,omitempty"`
	SeedCylindersOut int    `json:"seed_cylinders_out,omitempty"`
}

// AggregateDTO is the replayed customer state (reconcile/audit responses).
type AggregateDTO struct {
	CurrentBalance    decimal.Decimal `json:"current_balance"`
	TotalCylindersOut int             `json:"total_cylinders_out"`
	LastTransactionAt *string         `json:"last_transaction_at,omitempty"`
}

// AuditDTO reports whether the cached aggregate matches the ledger fold.
type AuditDTO struct {
	Consistent   bool            `json:"consistent"`
	Replayed     AggregateDTO    `json:"replayed"`
	BalanceDiff  decimal.Decimal `json:"balance_diff"`
	CylinderDiff int             `json:"cylinder_diff"`
}

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

// CylinderSaleDTO is the cylinder-mode detail payload.
type CylinderSaleDTO struct {
	CylindersSold          int             `json:"cylinders_sold"`
	CylinderRate           decimal.Decimal `json:"cylinder_rate"`
	EmptyCylindersReturned int             `json:"empty_cylinders_returned"`
}

// WeightSaleDTO is the weight-mode detail payload.
type WeightSaleDTO struct {
	GasWeightKg    decimal.Decimal `json:"gas_weight_kg"`
	RatePerKg      decimal.Decimal `json:"rate_per_kg"`
	CylinderNumber string          `json:"cylinder_number,omitempty"`
	VehicleRef     string          `json:"vehicle_ref,omitempty"`
	Exchanged      bool            `json:"exchanged,omitempty"`
}

// CommitSaleRequest is the request to settle a sale.
type CommitSaleRequest struct {
	CustomerID     string           `json:"customer_id"`
	PaymentType    string           `json:"payment_type"`
	SaleMode       string           `json:"sale_mode"`
	Cylinder       *CylinderSaleDTO `json:"cylinder_details,omitempty"`
	Weight         *WeightSaleDTO   `json:"weight_details,omitempty"`
	AmountReceived decimal.Decimal  `json:"amount_received"`
	Notes          string           `json:"notes,omitempty"`
	IdempotencyKey string           `json:"idempotency_key"`
}

// TransactionDTO represents a committed ledger transaction.
type TransactionDTO struct {
	ID              string           `json:"id"`
	CustomerID      string           `json:"customer_id"`
	CustomerName    string           `json:"customer_name"`
	PaymentType     string           `json:"payment_type"`
	SaleMode        string           `json:"sale_mode"`
	Cylinder        *CylinderSaleDTO `json:"cylinder_details,omitempty"`
	Weight          *WeightSaleDTO   `json:"weight_details,omitempty"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	AmountReceived  decimal.Decimal  `json:"amount_received"`
	PreviousUnpaid  decimal.Decimal  `json:"previous_unpaid_amount"`
	RemainingAmount decimal.Decimal  `json:"remaining_amount"`
	CylinderDelta   int              `json:"cylinder_delta"`
	Notes           string           `json:"notes,omitempty"`
	CreatedAt       string           `json:"created_at"`
}

// =============================================================================
// SUPPLIER / EXPENSE / STOCK TYPES
// =============================================================================

type SupplierDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateSupplierRequest struct {
	Name    string `json:"name"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

type ExpenseDTO struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"`
	CreatedAt   string          `json:"created_at,omitempty"`
}

type CreateExpenseRequest struct {
	Category    string          `json:"category"`
	Description string          `json:"description,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	Date        string          `json:"date"` // YYYY-MM-DD
}

type StockSnapshotDTO struct {
	ID             string `json:"id"`
	FullCylinders  int    `json:"full_cylinders"`
	EmptyCylinders int    `json:"empty_cylinders"`
	RecordedAt     string `json:"recorded_at"`
}

type CreateStockRequest struct {
	FullCylinders  int `json:"full_cylinders"`
	EmptyCylinders int `json:"empty_cylinders"`
}

// =============================================================================
// ANALYTICS TYPES
// =============================================================================

type SummaryDTO struct {
	TotalRevenue     decimal.Decimal `json:"total_revenue"`
	TotalExpenses    decimal.Decimal `json:"total_expenses"`
	NetProfit        decimal.Decimal `json:"net_profit"`
	Receivables      decimal.Decimal `json:"receivables"`
	TransactionCount int             `json:"transaction_count"`
	CylindersNet     int             `json:"cylinders_net"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toCustomerDTO(c ledger.Customer) CustomerDTO {
	dto := CustomerDTO{
		ID:                string(c.ID),
		Name:              c.Name,
		Phone:             c.Phone,
		Address:           c.Address,
		CurrentBalance:    c.CurrentBalance,
		TotalCylindersOut: c.TotalCylindersOut,
		CreatedAt:         c.CreatedAt.Format(time.RFC3339),
	}
	if c.LastTransactionAt != nil {
		s := c.LastTransactionAt.Format(time.RFC3339)
		dto.LastTransactionAt = &s
	}
	return dto
}

func toAggregateDTO(agg ledger.Aggregate) AggregateDTO {
	dto := AggregateDTO{
		CurrentBalance:    agg.CurrentBalance,
		TotalCylindersOut: agg.TotalCylindersOut,
	}
	if agg.LastTransactionAt != nil {
		s := agg.LastTransactionAt.Format(time.RFC3339)
		dto.LastTransactionAt = &s
	}
	return dto
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	dto := TransactionDTO{
		ID:              string(tx.ID),
		CustomerID:      string(tx.CustomerID),
		CustomerName:    tx.CustomerName,
		PaymentType:     string(tx.PaymentType),
		SaleMode:        string(tx.Mode),
		TotalAmount:     tx.TotalAmount,
		AmountReceived:  tx.AmountReceived,
		PreviousUnpaid:  tx.PreviousUnpaid,
		RemainingAmount: tx.RemainingAmount,
		CylinderDelta:   tx.CylinderDelta,
		Notes:           tx.Notes,
		CreatedAt:       tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.Cylinder != nil {
		dto.Cylinder = &CylinderSaleDTO{
			CylindersSold:          tx.Cylinder.Sold,
			CylinderRate:           tx.Cylinder.Rate,
			EmptyCylindersReturned: tx.Cylinder.EmptyReturned,
		}
	}
	if tx.Weight != nil {
		dto.Weight = &WeightSaleDTO{
			GasWeightKg:    tx.Weight.WeightKg,
			RatePerKg:      tx.Weight.RatePerKg,
			CylinderNumber: tx.Weight.CylinderNumber,
			VehicleRef:     tx.Weight.VehicleRef,
			Exchanged:      tx.Weight.Exchanged,
		}
	}
	return dto
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, len(txs))
	for i, tx := range txs {
		dtos[i] = toTransactionDTO(tx)
	}
	return dtos
}

func toSaleInput(req CommitSaleRequest) ledger.SaleInput {
	in := ledger.SaleInput{
		CustomerID:     ledger.CustomerID(req.CustomerID),
		PaymentType:    ledger.PaymentType(req.PaymentType),
		Mode:           ledger.SaleMode(req.SaleMode),
		AmountReceived: req.AmountReceived,
		Notes:          req.Notes,
		IdempotencyKey: req.IdempotencyKey,
	}
	if req.Cylinder != nil {
		in.Cylinder = &ledger.CylinderSale{
			Sold:          req.Cylinder.CylindersSold,
			Rate:          req.Cylinder.CylinderRate,
			EmptyReturned: req.Cylinder.EmptyCylindersReturned,
		}
	}
	if req.Weight != nil {
		in.Weight = &ledger.WeightSale{
			WeightKg:       req.Weight.GasWeightKg,
			RatePerKg:      req.Weight.RatePerKg,
			CylinderNumber: req.Weight.CylinderNumber,
			VehicleRef:     req.Weight.VehicleRef,
			Exchanged:      req.Weight.Exchanged,
		}
	}
	return in
}

func toSupplierDTO(s agency.Supplier) SupplierDTO {
	return SupplierDTO{
		ID:        s.ID,
		Name:      s.Name,
		Phone:     s.Phone,
		Address:   s.Address,
		CreatedAt: s.CreatedAt.Format(time.RFC3339),
	}
}

func toExpenseDTO(e agency.Expense) ExpenseDTO {
	return ExpenseDTO{
		ID:          e.ID,
		Category:    e.Category,
		Description: e.Description,
		Amount:      e.Amount,
		Date:        e.Date.Format("2006-01-02"),
		CreatedAt:   e.CreatedAt.Format(time.RFC3339),
	}
}

func toStockDTO(s agency.StockSnapshot) StockSnapshotDTO {
	return StockSnapshotDTO{
		ID:             s.ID,
		FullCylinders:  s.FullCylinders,
		EmptyCylinders: s.EmptyCylinders,
		RecordedAt:     s.RecordedAt.Format(time.RFC3339),
	}
}
