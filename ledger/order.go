package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// ORDER STATUS / PAYMENT STATUS
// =============================================================================

type OrderStatus string

const (
	StatusPending   OrderStatus = "Pending"
	StatusBooked    OrderStatus = "Booked"
	StatusShipped   OrderStatus = "Shipped"
	StatusDelivered OrderStatus = "Delivered"
	StatusCanceled  OrderStatus = "Canceled"
)

type PaymentStatus string

const (
	PaymentPaid  PaymentStatus = "Paid"
	PaymentUdhar PaymentStatus = "Udhar" // on credit, still outstanding
)

// StatusChange is one entry of an order's append-only status log.
type StatusChange struct {
	Status    OrderStatus `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
}

// =============================================================================
// ORDER
// =============================================================================

// Order is a single buy-from-vendor, sell-to-customer deal.
//
// Margin is denormalized: it is recomputed by the engine on every save and
// whatever the caller put there is overwritten.
type Order struct {
	ID     OrderID
	UserID UserID
	Date   time.Time

	ProductID      PartyID  `validate:"required"`
	CustomerID     PartyID  `validate:"required"`
	VendorID       PartyID  `validate:"required"`
	PickupPersonID *PartyID `validate:"omitempty,min=1"`

	OriginalPrice   decimal.Decimal `validate:"gte=0"`
	SellingPrice    decimal.Decimal `validate:"gte=0"`
	PickupCharges   decimal.Decimal `validate:"gte=0"`
	ShippingCharges decimal.Decimal `validate:"gte=0"`
	PaidByDriver    bool

	Status        OrderStatus `validate:"oneof=Pending Booked Shipped Delivered Canceled"`
	StatusHistory []StatusChange

	VendorPaymentStatus   PaymentStatus `validate:"oneof=Paid Udhar"`
	CustomerPaymentStatus PaymentStatus `validate:"oneof=Paid Udhar"`
	PickupPaymentStatus   PaymentStatus `validate:"oneof=Paid Udhar"`

	Notes       string
	TrackingID  string
	CourierName string

	Margin decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsNew reports whether the order has never been saved.
func (o Order) IsNew() bool { return o.ID == "" }

// HasPickup reports whether a pickup person is assigned.
func (o Order) HasPickup() bool { return o.PickupPersonID != nil && *o.PickupPersonID != "" }

func (o Order) pickup() PartyID {
	if !o.HasPickup() {
		return ""
	}
	return *o.PickupPersonID
}

// DriverPaid reports whether the pickup person fronted the product cost.
//
// The flag only takes effect when a pickup person distinct from the vendor
// is assigned. Without a pickup person nobody could have fronted the cost,
// and a vendor fronting its own price to itself is a wash.
func (o Order) DriverPaid() bool {
	return o.PaidByDriver && o.HasPickup() && o.pickup() != o.VendorID
}

// WithDefaults fills the zero values the data model defines defaults for.
func (o Order) WithDefaults() Order {
	if o.Status == "" {
		o.Status = StatusPending
	}
	if o.VendorPaymentStatus == "" {
		o.VendorPaymentStatus = PaymentUdhar
	}
	if o.CustomerPaymentStatus == "" {
		o.CustomerPaymentStatus = PaymentUdhar
	}
	if o.PickupPaymentStatus == "" {
		o.PickupPaymentStatus = PaymentUdhar
	}
	if o.PickupPersonID != nil && *o.PickupPersonID == "" {
		o.PickupPersonID = nil
	}
	return o
}

// PartyIDs returns the parties that can receive postings from this order.
func (o Order) PartyIDs() []PartyID {
	ids := []PartyID{o.CustomerID, o.VendorID}
	if o.HasPickup() {
		ids = append(ids, o.pickup())
	}
	return ids
}

// =============================================================================
// MARGIN
// =============================================================================

// Margin is sellingPrice - originalPrice - pickupCharges - shippingCharges.
func Margin(o Order) decimal.Decimal {
	return o.SellingPrice.
		Sub(o.OriginalPrice).
		Sub(o.PickupCharges).
		Sub(o.ShippingCharges)
}

var hundred = decimal.NewFromInt(100)

// MarginPercentage is the margin relative to the original price, rounded
// to two places. Zero when the original price is not positive.
func MarginPercentage(o Order) decimal.Decimal {
	if !o.OriginalPrice.IsPositive() {
		return decimal.Zero
	}
	return Margin(o).Mul(hundred).Div(o.OriginalPrice).Round(2)
}
