package sqlstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tradebook/order-ledger/ledger"
)

// =============================================================================
// ROW MAPPING - Column layout shared by both dialects
// =============================================================================

type partyRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Name      string    `db:"name"`
	NameKey   string    `db:"name_key"`
	Type      string    `db:"type"`
	Phone     string    `db:"phone"`
	Address   string    `db:"address"`
	CreatedAt time.Time `db:"created_at"`
}

func toPartyRow(p ledger.Party) partyRow {
	return partyRow{
		ID:        string(p.ID),
		UserID:    string(p.UserID),
		Name:      p.Name,
		NameKey:   ledger.NormalizeName(p.Name),
		Type:      string(p.Type),
		Phone:     p.Phone,
		Address:   p.Address,
		CreatedAt: p.CreatedAt.UTC(),
	}
}

func (r partyRow) party() ledger.Party {
	return ledger.Party{
		ID:        ledger.PartyID(r.ID),
		UserID:    ledger.UserID(r.UserID),
		Name:      r.Name,
		Type:      ledger.PartyType(r.Type),
		Phone:     r.Phone,
		Address:   r.Address,
		CreatedAt: r.CreatedAt.UTC(),
	}
}

type orderRow struct {
	ID                    string          `db:"id"`
	UserID                string          `db:"user_id"`
	Date                  time.Time       `db:"order_date"`
	ProductID             string          `db:"product_id"`
	CustomerID            string          `db:"customer_id"`
	VendorID              string          `db:"vendor_id"`
	PickupPersonID        sql.NullString  `db:"pickup_person_id"`
	OriginalPrice         decimal.Decimal `db:"original_price"`
	SellingPrice          decimal.Decimal `db:"selling_price"`
	PickupCharges         decimal.Decimal `db:"pickup_charges"`
	ShippingCharges       decimal.Decimal `db:"shipping_charges"`
	PaidByDriver          bool            `db:"paid_by_driver"`
	Status                string          `db:"status"`
	StatusHistory         string          `db:"status_history"`
	VendorPaymentStatus   string          `db:"vendor_payment_status"`
	CustomerPaymentStatus string          `db:"customer_payment_status"`
	PickupPaymentStatus   string          `db:"pickup_payment_status"`
	Notes                 string          `db:"notes"`
	TrackingID            string          `db:"tracking_id"`
	CourierName           string          `db:"courier_name"`
	Margin                decimal.Decimal `db:"margin"`
	CreatedAt             time.Time       `db:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at"`
}

func toOrderRow(o ledger.Order) (orderRow, error) {
	history := o.StatusHistory
	if history == nil {
		history = []ledger.StatusChange{}
	}
	historyJSON, err := json.Marshal(history)
	if err != nil {
		return orderRow{}, fmt.Errorf("encode status history: %w", err)
	}

	r := orderRow{
		ID:                    string(o.ID),
		UserID:                string(o.UserID),
		Date:                  o.Date.UTC(),
		ProductID:             string(o.ProductID),
		CustomerID:            string(o.CustomerID),
		VendorID:              string(o.VendorID),
		OriginalPrice:         o.OriginalPrice,
		SellingPrice:          o.SellingPrice,
		PickupCharges:         o.PickupCharges,
		ShippingCharges:       o.ShippingCharges,
		PaidByDriver:          o.PaidByDriver,
		Status:                string(o.Status),
		StatusHistory:         string(historyJSON),
		VendorPaymentStatus:   string(o.VendorPaymentStatus),
		CustomerPaymentStatus: string(o.CustomerPaymentStatus),
		PickupPaymentStatus:   string(o.PickupPaymentStatus),
		Notes:                 o.Notes,
		TrackingID:            o.TrackingID,
		CourierName:           o.CourierName,
		Margin:                o.Margin,
		CreatedAt:             o.CreatedAt.UTC(),
		UpdatedAt:             o.UpdatedAt.UTC(),
	}
	if o.HasPickup() {
		r.PickupPersonID = sql.NullString{String: string(*o.PickupPersonID), Valid: true}
	}
	return r, nil
}

func (r orderRow) order() (ledger.Order, error) {
	var history []ledger.StatusChange
	if r.StatusHistory != "" {
		if err := json.Unmarshal([]byte(r.StatusHistory), &history); err != nil {
			return ledger.Order{}, fmt.Errorf("decode status history of order %s: %w", r.ID, err)
		}
	}

	o := ledger.Order{
		ID:                    ledger.OrderID(r.ID),
		UserID:                ledger.UserID(r.UserID),
		Date:                  r.Date.UTC(),
		ProductID:             ledger.PartyID(r.ProductID),
		CustomerID:            ledger.PartyID(r.CustomerID),
		VendorID:              ledger.PartyID(r.VendorID),
		OriginalPrice:         r.OriginalPrice,
		SellingPrice:          r.SellingPrice,
		PickupCharges:         r.PickupCharges,
		ShippingCharges:       r.ShippingCharges,
		PaidByDriver:          r.PaidByDriver,
		Status:                ledger.OrderStatus(r.Status),
		StatusHistory:         history,
		VendorPaymentStatus:   ledger.PaymentStatus(r.VendorPaymentStatus),
		CustomerPaymentStatus: ledger.PaymentStatus(r.CustomerPaymentStatus),
		PickupPaymentStatus:   ledger.PaymentStatus(r.PickupPaymentStatus),
		Notes:                 r.Notes,
		TrackingID:            r.TrackingID,
		CourierName:           r.CourierName,
		Margin:                r.Margin,
		CreatedAt:             r.CreatedAt.UTC(),
		UpdatedAt:             r.UpdatedAt.UTC(),
	}
	if r.PickupPersonID.Valid {
		id := ledger.PartyID(r.PickupPersonID.String)
		o.PickupPersonID = &id
	}
	return o, nil
}

type postingRow struct {
	ID        string          `db:"id"`
	UserID    string          `db:"user_id"`
	OrderID   sql.NullString  `db:"order_id"`
	PartyID   string          `db:"party_id"`
	Amount    decimal.Decimal `db:"amount"`
	TxType    string          `db:"tx_type"`
	Notes     string          `db:"notes"`
	Position  int             `db:"position"`
	CreatedAt time.Time       `db:"created_at"`
}

func toPostingRow(p ledger.Posting, position int) postingRow {
	r := postingRow{
		ID:        string(p.ID),
		UserID:    string(p.UserID),
		PartyID:   string(p.PartyID),
		Amount:    p.Amount,
		TxType:    string(p.Type),
		Notes:     p.Notes,
		Position:  position,
		CreatedAt: p.CreatedAt.UTC(),
	}
	if p.OrderID != nil {
		r.OrderID = sql.NullString{String: string(*p.OrderID), Valid: true}
	}
	return r
}

func (r postingRow) posting() ledger.Posting {
	p := ledger.Posting{
		ID:        ledger.PostingID(r.ID),
		UserID:    ledger.UserID(r.UserID),
		PartyID:   ledger.PartyID(r.PartyID),
		Amount:    r.Amount,
		Type:      ledger.TransactionType(r.TxType),
		Notes:     r.Notes,
		CreatedAt: r.CreatedAt.UTC(),
	}
	if r.OrderID.Valid {
		id := ledger.OrderID(r.OrderID.String)
		p.OrderID = &id
	}
	return p
}
