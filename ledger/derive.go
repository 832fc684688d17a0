/*
derive.go - Order to posting derivation

PURPOSE:
  DerivePostings turns an order into the complete set of postings it
  implies. It is a pure function: same order in, same postings out. The
  engine persists its output verbatim and rebuilds it on every save.

RULES (all that apply fire, in this order):
   1. Canceled order                → nothing at all
   2. Sale                          → customer  +selling
   3. Purchase                      → vendor    -original
   4. Shipping, no pickup person    → vendor    -shipping   (Expense)
   5. Pickup charges                → pickup    -pickup     (Expense)
   6. Shipping via pickup person    → pickup    -shipping   (Expense)
   7. Driver paid the vendor        → vendor    +original   (PaymentOut)
                                      pickup    -original   (Reimbursement)
   8. Customer paid                 → customer  -selling    (PaymentIn)
   9. Vendor paid (not by driver)   → vendor    +original   (PaymentOut)
                                      vendor    +shipping   (no pickup person)
  10. Pickup person paid            → pickup    +pickup, +shipping,
                                                +original if driver paid

NET-TO-ZERO:
  Every settlement rule is the exact negation of a charge rule, so a fully
  settled order sums to zero for every party it touches.

EXAMPLE:
  original 1000, selling 1500, no pickup, all Udhar:
    customer +1500 Sale
    vendor   -1000 Purchase
*/
package ledger

import "github.com/shopspring/decimal"

const (
	NoteShippingCharges = "Shipping charges"
	NotePickupCharges   = "Pickup charges"
	NotePaidByDriver    = "Paid by driver"
	NoteCostReimburse   = "Product cost reimbursement"
	NoteShippingSettled = "Shipping settled"
	NotePickupSettled   = "Pickup settled"
	NoteCostReimbursed  = "Product cost reimbursed"
)

// DerivePostings returns the postings implied by the order's current fields.
// The caller attaches order and user ids.
func DerivePostings(o Order) []PostingDraft {
	o = o.WithDefaults()
	if o.Status == StatusCanceled {
		return nil
	}

	var (
		customer   = o.CustomerID
		vendor     = o.VendorID
		pickup     = o.pickup()
		hasPickup  = o.HasPickup()
		driverPaid = o.DriverPaid()
		shipping   = o.ShippingCharges.IsPositive()
		pickupFee  = o.PickupCharges.IsPositive()
	)

	out := make([]PostingDraft, 0, 8)
	emit := func(party PartyID, amount decimal.Decimal, typ TransactionType, notes string) {
		out = append(out, PostingDraft{PartyID: party, Amount: amount, Type: typ, Notes: notes})
	}

	// Charges
	emit(customer, o.SellingPrice, TxSale, "")
	emit(vendor, o.OriginalPrice.Neg(), TxPurchase, "")

	if !hasPickup && shipping {
		emit(vendor, o.ShippingCharges.Neg(), TxExpense, NoteShippingCharges)
	}
	if hasPickup && pickupFee {
		emit(pickup, o.PickupCharges.Neg(), TxExpense, NotePickupCharges)
	}
	if hasPickup && shipping {
		emit(pickup, o.ShippingCharges.Neg(), TxExpense, NoteShippingCharges)
	}

	if driverPaid {
		emit(vendor, o.OriginalPrice, TxPaymentOut, NotePaidByDriver)
		emit(pickup, o.OriginalPrice.Neg(), TxReimbursement, NoteCostReimburse)
	}

	// Settlements
	if o.CustomerPaymentStatus == PaymentPaid {
		emit(customer, o.SellingPrice.Neg(), TxPaymentIn, "")
	}

	if o.VendorPaymentStatus == PaymentPaid && !driverPaid {
		emit(vendor, o.OriginalPrice, TxPaymentOut, "")
		if !hasPickup && shipping {
			emit(vendor, o.ShippingCharges, TxPaymentOut, NoteShippingSettled)
		}
	}

	if o.PickupPaymentStatus == PaymentPaid && hasPickup {
		if pickupFee {
			emit(pickup, o.PickupCharges, TxPaymentOut, NotePickupSettled)
		}
		if shipping {
			emit(pickup, o.ShippingCharges, TxPaymentOut, NoteShippingSettled)
		}
		if driverPaid {
			emit(pickup, o.OriginalPrice, TxPaymentOut, NoteCostReimbursed)
		}
	}

	return out
}
