/*
store.go - Persistence interface for parties, orders and postings

PURPOSE:
  Defines the boundary between the engine and the relational store. The
  store is a plain row store: insert, update by id, delete by equality
  filter, select by equality filter. Every method is scoped by UserID.

KEY INTERFACES:
  Store:   Row operations on directory, orders, ledger
  TxStore: Store plus WithTx for atomic multi-row writes

ATOMIC SAVES:
  An order save touches the order row and every posting of that order.
  The engine runs the whole sequence inside WithTx, so a failure while
  inserting postings also undoes the order write, and readers never see
  the delete→insert gap.

IMPLEMENTATIONS:
  - ledger/store/memory.go: In-memory for tests and dev
  - store/sqlstore: SQLite and PostgreSQL through sqlx

NOT FOUND:
  Single-row getters return the matching ErrXxxNotFound sentinel.
*/
package ledger

import "context"

// =============================================================================
// STORE
// =============================================================================

type Store interface {
	// Directory
	InsertParty(ctx context.Context, p Party) error
	GetParty(ctx context.Context, userID UserID, id PartyID) (Party, error)
	// FindPartyByName matches case-insensitively on the trimmed name.
	FindPartyByName(ctx context.Context, userID UserID, name string, typ PartyType) (Party, error)
	ListParties(ctx context.Context, userID UserID) ([]Party, error)
	DeleteParty(ctx context.Context, userID UserID, id PartyID) error
	// CountPartyReferences counts orders and postings pointing at the party.
	CountPartyReferences(ctx context.Context, userID UserID, id PartyID) (int, error)

	// Orders
	InsertOrder(ctx context.Context, o Order) error
	UpdateOrder(ctx context.Context, o Order) error
	GetOrder(ctx context.Context, userID UserID, id OrderID) (Order, error)
	// ListOrders returns orders newest first.
	ListOrders(ctx context.Context, userID UserID) ([]Order, error)
	DeleteOrder(ctx context.Context, userID UserID, id OrderID) error

	// Ledger
	InsertPostings(ctx context.Context, postings []Posting) error
	GetPosting(ctx context.Context, userID UserID, id PostingID) (Posting, error)
	DeletePosting(ctx context.Context, userID UserID, id PostingID) error
	// DeletePostingsByOrder removes every posting of the order and reports how many.
	DeletePostingsByOrder(ctx context.Context, userID UserID, orderID OrderID) (int, error)
	// PostingsByOrder and PostingsByParty return postings oldest first.
	PostingsByOrder(ctx context.Context, userID UserID, orderID OrderID) ([]Posting, error)
	PostingsByParty(ctx context.Context, userID UserID, partyID PartyID) ([]Posting, error)
	ListPostings(ctx context.Context, userID UserID) ([]Posting, error)
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
