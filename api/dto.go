/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts are decimal.Decimal. They encode as JSON strings ("1500.5") and
  decode from either strings or numbers.

VALIDATION:
  Request shape is checked with validator tags in decodeRequest. Business
  rules (non-negative prices, party types) are enforced by the ledger.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebook/order-ledger/ledger"
)

// =============================================================================
// PARTIES
// =============================================================================

type PartyDTO struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Phone     string    `json:"phone,omitempty"`
	Address   string    `json:"address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type CreatePartyRequest struct {
	Name    string `json:"name" validate:"required"`
	Type    string `json:"type" validate:"required,oneof=Customer Vendor Product 'Pickup Person'"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type ResolvePartyRequest struct {
	Name string `json:"name" validate:"required"`
	Type string `json:"type" validate:"required,oneof=Customer Vendor Product 'Pickup Person'"`
}

type ResolvePartyResponse struct {
	Party   PartyDTO `json:"party"`
	Created bool     `json:"created"`
}

func toPartyDTO(p ledger.Party) PartyDTO {
	return PartyDTO{
		ID:        string(p.ID),
		Name:      p.Name,
		Type:      string(p.Type),
		Phone:     p.Phone,
		Address:   p.Address,
		CreatedAt: p.CreatedAt,
	}
}

// =============================================================================
// ORDERS
// =============================================================================

// OrderRequest is the body of create, update and preview.
type OrderRequest struct {
	Date           *time.Time `json:"date"`
	ProductID      string     `json:"product_id" validate:"required"`
	CustomerID     string     `json:"customer_id" validate:"required"`
	VendorID       string     `json:"vendor_id" validate:"required"`
	PickupPersonID *string    `json:"pickup_person_id"`

	OriginalPrice   *decimal.Decimal `json:"original_price" validate:"required"`
	SellingPrice    *decimal.Decimal `json:"selling_price" validate:"required"`
	PickupCharges   decimal.Decimal  `json:"pickup_charges"`
	ShippingCharges decimal.Decimal  `json:"shipping_charges"`
	PaidByDriver    bool             `json:"paid_by_driver"`

	Status                string `json:"status" validate:"omitempty,oneof=Pending Booked Shipped Delivered Canceled"`
	VendorPaymentStatus   string `json:"vendor_payment_status" validate:"omitempty,oneof=Paid Udhar"`
	CustomerPaymentStatus string `json:"customer_payment_status" validate:"omitempty,oneof=Paid Udhar"`
	PickupPaymentStatus   string `json:"pickup_payment_status" validate:"omitempty,oneof=Paid Udhar"`

	Notes       string `json:"notes"`
	TrackingID  string `json:"tracking_id"`
	CourierName string `json:"courier_name"`
}

func (r OrderRequest) toOrder(id ledger.OrderID) ledger.Order {
	o := ledger.Order{
		ID:                    id,
		ProductID:             ledger.PartyID(r.ProductID),
		CustomerID:            ledger.PartyID(r.CustomerID),
		VendorID:              ledger.PartyID(r.VendorID),
		OriginalPrice:         valueOf(r.OriginalPrice),
		SellingPrice:          valueOf(r.SellingPrice),
		PickupCharges:         r.PickupCharges,
		ShippingCharges:       r.ShippingCharges,
		PaidByDriver:          r.PaidByDriver,
		Status:                ledger.OrderStatus(r.Status),
		VendorPaymentStatus:   ledger.PaymentStatus(r.VendorPaymentStatus),
		CustomerPaymentStatus: ledger.PaymentStatus(r.CustomerPaymentStatus),
		PickupPaymentStatus:   ledger.PaymentStatus(r.PickupPaymentStatus),
		Notes:                 r.Notes,
		TrackingID:            r.TrackingID,
		CourierName:           r.CourierName,
	}
	if r.Date != nil {
		o.Date = r.Date.UTC()
	}
	if r.PickupPersonID != nil && *r.PickupPersonID != "" {
		id := ledger.PartyID(*r.PickupPersonID)
		o.PickupPersonID = &id
	}
	return o
}

func valueOf(d *decimal.Decimal) decimal.Decimal {
	if d == nil {
		return decimal.Zero
	}
	return *d
}

type StatusChangeDTO struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type OrderDTO struct {
	ID             string  `json:"id"`
	Date           string  `json:"date"`
	ProductID      string  `json:"product_id"`
	CustomerID     string  `json:"customer_id"`
	VendorID       string  `json:"vendor_id"`
	PickupPersonID *string `json:"pickup_person_id,omitempty"`

	OriginalPrice    decimal.Decimal `json:"original_price"`
	SellingPrice     decimal.Decimal `json:"selling_price"`
	PickupCharges    decimal.Decimal `json:"pickup_charges"`
	ShippingCharges  decimal.Decimal `json:"shipping_charges"`
	PaidByDriver     bool            `json:"paid_by_driver"`
	Margin           decimal.Decimal `json:"margin"`
	MarginPercentage decimal.Decimal `json:"margin_percentage"`

	Status                string            `json:"status"`
	StatusHistory         []StatusChangeDTO `json:"status_history"`
	VendorPaymentStatus   string            `json:"vendor_payment_status"`
	CustomerPaymentStatus string            `json:"customer_payment_status"`
	PickupPaymentStatus   string            `json:"pickup_payment_status"`

	Notes       string `json:"notes,omitempty"`
	TrackingID  string `json:"tracking_id,omitempty"`
	CourierName string `json:"courier_name,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

func toOrderDTO(o ledger.Order) OrderDTO {
	dto := OrderDTO{
		ID:                    string(o.ID),
		ProductID:             string(o.ProductID),
		CustomerID:            string(o.CustomerID),
		VendorID:              string(o.VendorID),
		OriginalPrice:         o.OriginalPrice,
		SellingPrice:          o.SellingPrice,
		PickupCharges:         o.PickupCharges,
		ShippingCharges:       o.ShippingCharges,
		PaidByDriver:          o.PaidByDriver,
		Margin:                o.Margin,
		MarginPercentage:      ledger.MarginPercentage(o),
		Status:                string(o.Status),
		StatusHistory:         make([]StatusChangeDTO, len(o.StatusHistory)),
		VendorPaymentStatus:   string(o.VendorPaymentStatus),
		CustomerPaymentStatus: string(o.CustomerPaymentStatus),
		PickupPaymentStatus:   string(o.PickupPaymentStatus),
		Notes:                 o.Notes,
		TrackingID:            o.TrackingID,
		CourierName:           o.CourierName,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
	}
	if !o.Date.IsZero() {
		dto.Date = o.Date.Format(time.RFC3339)
	}
	if o.HasPickup() {
		id := string(*o.PickupPersonID)
		dto.PickupPersonID = &id
	}
	for i, c := range o.StatusHistory {
		dto.StatusHistory[i] = StatusChangeDTO{Status: string(c.Status), Timestamp: c.Timestamp}
	}
	return dto
}

type SaveOrderResponse struct {
	Order    OrderDTO     `json:"order"`
	Postings []PostingDTO `json:"postings"`
}

type PreviewResponse struct {
	Margin           decimal.Decimal            `json:"margin"`
	MarginPercentage decimal.Decimal            `json:"margin_percentage"`
	Postings         []DraftDTO                 `json:"postings"`
	NetByParty       map[string]decimal.Decimal `json:"net_by_party"`
}

// =============================================================================
// POSTINGS
// =============================================================================

type PostingDTO struct {
	ID        string          `json:"id"`
	OrderID   *string         `json:"order_id,omitempty"`
	PartyID   string          `json:"party_id"`
	Amount    decimal.Decimal `json:"amount"`
	Type      string          `json:"type"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

type DraftDTO struct {
	PartyID string          `json:"party_id"`
	Amount  decimal.Decimal `json:"amount"`
	Type    string          `json:"type"`
	Notes   string          `json:"notes,omitempty"`
}

type CreateEntryRequest struct {
	PartyID string          `json:"party_id" validate:"required"`
	Amount  decimal.Decimal `json:"amount"`
	Type    string          `json:"type" validate:"required"`
	Notes   string          `json:"notes"`
}

func toPostingDTO(p ledger.Posting) PostingDTO {
	dto := PostingDTO{
		ID:        string(p.ID),
		PartyID:   string(p.PartyID),
		Amount:    p.Amount,
		Type:      string(p.Type),
		Notes:     p.Notes,
		CreatedAt: p.CreatedAt,
	}
	if p.OrderID != nil {
		id := string(*p.OrderID)
		dto.OrderID = &id
	}
	return dto
}

func toPostingDTOs(ps []ledger.Posting) []PostingDTO {
	out := make([]PostingDTO, len(ps))
	for i, p := range ps {
		out[i] = toPostingDTO(p)
	}
	return out
}

func toDraftDTOs(ds []ledger.PostingDraft) []DraftDTO {
	out := make([]DraftDTO, len(ds))
	for i, d := range ds {
		out[i] = DraftDTO{PartyID: string(d.PartyID), Amount: d.Amount, Type: string(d.Type), Notes: d.Notes}
	}
	return out
}

// =============================================================================
// BALANCES
// =============================================================================

type BalanceDTO struct {
	PartyID string          `json:"party_id"`
	Balance decimal.Decimal `json:"balance"`
}

type StatementLineDTO struct {
	Posting PostingDTO      `json:"posting"`
	Running decimal.Decimal `json:"running"`
}

type StatementDTO struct {
	Party   PartyDTO           `json:"party"`
	Lines   []StatementLineDTO `json:"lines"`
	Balance decimal.Decimal    `json:"balance"`
}

type PartyBalanceDTO struct {
	Party   PartyDTO        `json:"party"`
	Balance decimal.Decimal `json:"balance"`
}

type BalancesResponse struct {
	Parties    []PartyBalanceDTO `json:"parties"`
	Receivable decimal.Decimal   `json:"receivable"`
	Payable    decimal.Decimal   `json:"payable"`
}

// =============================================================================
// RECONCILIATION / SCENARIOS
// =============================================================================

type DriftDTO struct {
	OrderID    string       `json:"order_id"`
	Missing    []DraftDTO   `json:"missing"`
	Unexpected []PostingDTO `json:"unexpected"`
}

type ReconcileResponse struct {
	Clean      bool       `json:"clean"`
	Checked    int        `json:"checked"`
	Repaired   int        `json:"repaired"`
	Drifted    []DriftDTO `json:"drifted"`
	Unbalanced []string   `json:"unbalanced"`
}

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

type LoadScenarioResponse struct {
	Scenario ScenarioDTO `json:"scenario"`
	Parties  int         `json:"parties"`
	Orders   int         `json:"orders"`
}

// =============================================================================
// ERRORS
// =============================================================================

type ErrorResponse struct {
	Error   string              `json:"error"`
	Details string              `json:"details,omitempty"`
	Fields  []ledger.FieldError `json:"fields,omitempty"`
}
