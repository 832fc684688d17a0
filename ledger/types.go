/*
Package ledger provides the order-to-ledger derivation engine.

PURPOSE:
  A trading business buys products from vendors, sells them to customers,
  and sometimes pays a pickup person (driver) to move goods. Every order
  implies a set of signed postings against those parties. This package
  derives those postings, keeps them in sync with the order, and computes
  party balances from them.

KEY CONCEPTS IN THIS FILE (types.go):
  - Identifiers: UserID, PartyID, OrderID, PostingID
  - TransactionType: the kind of a posting (sale, purchase, expense, ...)
  - Posting / PostingDraft: a ledger row and its un-persisted form

DESIGN PRINCIPLES:
  1. Projection: an order's postings are a pure function of the order.
     They are replaced wholesale on every save, never patched.
  2. Precision: money uses decimal.Decimal, never float64.
  3. Derived balances: a balance is always a sum over postings. There is
     no stored balance that can drift.
  4. Explicit tenancy: every call carries the owning UserID.

SIGN CONVENTION:
  +amount  party owes the business (receivable)
  -amount  business owes the party (payable)

SEE ALSO:
  - derive.go: DerivePostings rules
  - engine.go: Regeneration protocol (create, update, delete)
  - balance.go: Balance aggregation
*/
package ledger

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type PartyID string
type OrderID string
type PostingID string

// =============================================================================
// TRANSACTION TYPES
// =============================================================================

type TransactionType string

const (
	TxSale          TransactionType = "Sale"          // Customer charged the selling price
	TxPurchase      TransactionType = "Purchase"      // Vendor owed the original price
	TxExpense       TransactionType = "Expense"       // Shipping or pickup cost owed
	TxPaymentIn     TransactionType = "PaymentIn"     // Money received from a party
	TxPaymentOut    TransactionType = "PaymentOut"    // Money paid to a party
	TxReimbursement TransactionType = "Reimbursement" // Driver fronted product cost, business owes it back
)

var transactionTypes = map[TransactionType]bool{
	TxSale:          true,
	TxPurchase:      true,
	TxExpense:       true,
	TxPaymentIn:     true,
	TxPaymentOut:    true,
	TxReimbursement: true,
}

func (t TransactionType) IsValid() bool { return transactionTypes[t] }

// =============================================================================
// POSTINGS
// =============================================================================

// PostingDraft is a posting before it is attached to an order and persisted.
type PostingDraft struct {
	PartyID PartyID
	Amount  decimal.Decimal
	Type    TransactionType
	Notes   string
}

// Posting is one signed ledger row affecting one party's balance.
// OrderID is nil for manual entries (ad-hoc payments and the like).
type Posting struct {
	ID        PostingID
	UserID    UserID
	OrderID   *OrderID
	PartyID   PartyID
	Amount    decimal.Decimal
	Type      TransactionType
	Notes     string
	CreatedAt time.Time
}

// IsManual reports whether the posting was entered by hand rather than
// derived from an order.
func (p Posting) IsManual() bool { return p.OrderID == nil }

// Draft strips the persistence fields, which is what rebuild comparisons use.
func (p Posting) Draft() PostingDraft {
	return PostingDraft{PartyID: p.PartyID, Amount: p.Amount, Type: p.Type, Notes: p.Notes}
}
