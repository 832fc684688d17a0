package ledger

import (
	"strings"
	"time"
)

// =============================================================================
// PARTY - A directory row (customer, vendor, product, pickup person)
// =============================================================================

type PartyType string

const (
	PartyCustomer     PartyType = "Customer"
	PartyVendor       PartyType = "Vendor"
	PartyProduct      PartyType = "Product"
	PartyPickupPerson PartyType = "Pickup Person"
)

func (t PartyType) IsValid() bool {
	switch t {
	case PartyCustomer, PartyVendor, PartyProduct, PartyPickupPerson:
		return true
	}
	return false
}

// CanHoldPostings is false for products: they share the directory table
// but never carry a balance.
func (t PartyType) CanHoldPostings() bool { return t != PartyProduct }

type Party struct {
	ID        PartyID
	UserID    UserID
	Name      string
	Type      PartyType
	Phone     string
	Address   string
	CreatedAt time.Time
}

// NormalizeName is the key used for lazy lookups by typed name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
