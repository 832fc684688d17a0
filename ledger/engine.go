/*
engine.go - Regeneration protocol and read side

PURPOSE:
  Engine is what callers use: it validates orders, persists them, and
  keeps each order's postings equal to DerivePostings(order).

STATE MACHINE (per order):
  absent ──SaveOrder(no id)──▶ materialized ──DeleteOrder──▶ absent
                                   │  ▲
                                   └──┘ SaveOrder(id): full rebuild

  Create: insert order → derive → insert postings
  Update: update order → delete order's postings → derive → insert postings
  Delete: delete order's postings → delete order

ATOMICITY:
  Each protocol step sequence runs inside one TxStore.WithTx call. If
  posting insertion fails, the order write is rolled back with it, and no
  reader can observe an order with a partial posting set.

IDEMPOTENCE:
  An update is a full rebuild, not a diff. Saving the same order twice
  yields the same posting set (modulo ids and timestamps), so callers can
  retry a failed save without harm.

OWNERSHIP:
  Every call takes the owning UserID explicitly. There is no ambient
  session.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
)

const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
	OpEntry  = "entry"
	OpRepair = "repair"
)

// Observer receives the outcome of every write. The metrics package
// provides a Prometheus implementation.
type Observer interface {
	WriteSucceeded(op string, postings int, elapsed time.Duration)
	WriteFailed(op string, err error)
}

type nopObserver struct{}

func (nopObserver) WriteSucceeded(string, int, time.Duration) {}
func (nopObserver) WriteFailed(string, error)                 {}

// =============================================================================
// ENGINE
// =============================================================================

type Engine struct {
	store    TxStore
	observer Observer
	now      func() time.Time
	newID    func() string
}

type Option func(*Engine)

// WithObserver reports write outcomes to o.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observer = o
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces uuid generation, for tests.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

func NewEngine(store TxStore, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		observer: nopObserver{},
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// =============================================================================
// ORDERS
// =============================================================================

// SaveResult is the stored order and the postings now attached to it.
type SaveResult struct {
	Order    Order
	Postings []Posting
	Created  bool
}

// SaveOrder creates the order when it has no id and rebuilds it otherwise.
func (e *Engine) SaveOrder(ctx context.Context, userID UserID, in Order) (SaveResult, error) {
	if userID == "" {
		return SaveResult{}, ErrUserRequired
	}
	o := in.WithDefaults()
	o.UserID = userID
	op := OpUpdate
	if o.IsNew() {
		op = OpCreate
	}
	if err := ValidateOrder(o); err != nil {
		e.observer.WriteFailed(op, err)
		return SaveResult{}, err
	}
	start := e.now()
	log := zerolog.Ctx(ctx)

	var res SaveResult
	err := e.store.WithTx(ctx, func(s Store) error {
		if err := checkOrderParties(ctx, s, o); err != nil {
			return err
		}

		now := e.now()
		if o.IsNew() {
			o.ID = OrderID(e.newID())
			o.CreatedAt = now
			if o.Date.IsZero() {
				o.Date = now
			}
			o.StatusHistory = []StatusChange{{Status: o.Status, Timestamp: now}}
		} else {
			prev, err := s.GetOrder(ctx, userID, o.ID)
			if err != nil {
				return err
			}
			o.CreatedAt = prev.CreatedAt
			if o.Date.IsZero() {
				o.Date = prev.Date
			}
			o.StatusHistory = appendStatus(prev, o.Status, now)
		}
		o.UpdatedAt = now
		o.Margin = Margin(o)

		if op == OpCreate {
			if err := s.InsertOrder(ctx, o); err != nil {
				return fmt.Errorf("insert order: %w", err)
			}
		} else {
			if err := s.UpdateOrder(ctx, o); err != nil {
				return fmt.Errorf("update order: %w", err)
			}
			if _, err := s.DeletePostingsByOrder(ctx, userID, o.ID); err != nil {
				return fmt.Errorf("clear postings: %w", err)
			}
		}

		postings, err := e.writePostings(ctx, s, o, now)
		if err != nil {
			return err
		}

		res = SaveResult{Order: o, Postings: postings, Created: op == OpCreate}
		return nil
	})
	if err != nil {
		e.observer.WriteFailed(op, err)
		log.Warn().Err(err).Str("op", op).Str("order_id", string(o.ID)).Msg("order.save_failed")
		return SaveResult{}, err
	}

	e.observer.WriteSucceeded(op, len(res.Postings), e.now().Sub(start))
	log.Info().
		Str("op", op).
		Str("order_id", string(res.Order.ID)).
		Str("status", string(res.Order.Status)).
		Int("postings", len(res.Postings)).
		Msg("order.saved")
	return res, nil
}

// DeleteOrder removes the order and every posting derived from it.
func (e *Engine) DeleteOrder(ctx context.Context, userID UserID, id OrderID) error {
	if userID == "" {
		return ErrUserRequired
	}
	start := e.now()
	var removed int
	err := e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetOrder(ctx, userID, id); err != nil {
			return err
		}
		n, err := s.DeletePostingsByOrder(ctx, userID, id)
		if err != nil {
			return fmt.Errorf("clear postings: %w", err)
		}
		removed = n
		if err := s.DeleteOrder(ctx, userID, id); err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		return nil
	})
	if err != nil {
		e.observer.WriteFailed(OpDelete, err)
		return err
	}
	e.observer.WriteSucceeded(OpDelete, removed, e.now().Sub(start))
	zerolog.Ctx(ctx).Info().Str("order_id", string(id)).Int("postings_removed", removed).Msg("order.deleted")
	return nil
}

func (e *Engine) GetOrder(ctx context.Context, userID UserID, id OrderID) (Order, error) {
	if userID == "" {
		return Order{}, ErrUserRequired
	}
	return e.store.GetOrder(ctx, userID, id)
}

func (e *Engine) ListOrders(ctx context.Context, userID UserID) ([]Order, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return e.store.ListOrders(ctx, userID)
}

// OrderPostings returns the postings currently attached to the order.
func (e *Engine) OrderPostings(ctx context.Context, userID UserID, id OrderID) ([]Posting, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	if _, err := e.store.GetOrder(ctx, userID, id); err != nil {
		return nil, err
	}
	return e.store.PostingsByOrder(ctx, userID, id)
}

func appendStatus(prev Order, status OrderStatus, at time.Time) []StatusChange {
	history := make([]StatusChange, len(prev.StatusHistory), len(prev.StatusHistory)+1)
	copy(history, prev.StatusHistory)
	if len(history) == 0 || prev.Status != status {
		history = append(history, StatusChange{Status: status, Timestamp: at})
	}
	return history
}

// writePostings derives the order's postings and inserts them.
func (e *Engine) writePostings(ctx context.Context, s Store, o Order, now time.Time) ([]Posting, error) {
	orderID := o.ID
	postings := e.materialize(o.UserID, &orderID, DerivePostings(o), now)
	if err := s.InsertPostings(ctx, postings); err != nil {
		return nil, fmt.Errorf("insert postings: %w", err)
	}
	return postings, nil
}

func (e *Engine) materialize(userID UserID, orderID *OrderID, drafts []PostingDraft, at time.Time) []Posting {
	postings := make([]Posting, len(drafts))
	for i, d := range drafts {
		postings[i] = Posting{
			ID:        PostingID(e.newID()),
			UserID:    userID,
			OrderID:   orderID,
			PartyID:   d.PartyID,
			Amount:    d.Amount,
			Type:      d.Type,
			Notes:     d.Notes,
			CreatedAt: at,
		}
	}
	return postings
}

type partyRef struct {
	role string
	id   PartyID
}

// checkOrderParties verifies every reference on the order and reports all
// problems at once.
func checkOrderParties(ctx context.Context, s Store, o Order) error {
	var errs error

	product, err := s.GetParty(ctx, o.UserID, o.ProductID)
	switch {
	case err != nil:
		errs = multierr.Append(errs, partyLookupError("product", o.ProductID, err))
	case product.Type != PartyProduct:
		errs = multierr.Append(errs, &PartyError{Role: "product", PartyID: o.ProductID, Err: ErrPartyTypeMismatch})
	}

	roles := []partyRef{{"customer", o.CustomerID}, {"vendor", o.VendorID}}
	if o.HasPickup() {
		roles = append(roles, partyRef{"pickup person", *o.PickupPersonID})
	}
	for _, r := range roles {
		errs = multierr.Append(errs, checkPostingParty(ctx, s, o.UserID, r.role, r.id))
	}
	return errs
}

func checkPostingParty(ctx context.Context, s Store, userID UserID, role string, id PartyID) error {
	p, err := s.GetParty(ctx, userID, id)
	if err != nil {
		return partyLookupError(role, id, err)
	}
	if !p.Type.CanHoldPostings() {
		return &PartyError{Role: role, PartyID: id, Err: ErrProductPosting}
	}
	return nil
}

func partyLookupError(role string, id PartyID, err error) error {
	if errors.Is(err, ErrPartyNotFound) {
		return &PartyError{Role: role, PartyID: id, Err: ErrPartyNotFound}
	}
	return fmt.Errorf("load %s: %w", role, err)
}

// =============================================================================
// PREVIEW - Derivation without persistence
// =============================================================================

type Preview struct {
	Order            Order
	Postings         []PostingDraft
	Margin           decimal.Decimal
	MarginPercentage decimal.Decimal
	NetByParty       map[PartyID]decimal.Decimal
}

// PreviewOrder shows what saving the order would produce. It does no I/O.
func PreviewOrder(o Order) Preview {
	o = o.WithDefaults()
	o.Margin = Margin(o)
	drafts := DerivePostings(o)
	return Preview{
		Order:            o,
		Postings:         drafts,
		Margin:           o.Margin,
		MarginPercentage: MarginPercentage(o),
		NetByParty:       SumByParty(drafts),
	}
}

// =============================================================================
// MANUAL ENTRIES
// =============================================================================

// RecordEntry stores a posting that is not tied to any order, e.g. an
// ad-hoc payment received from a customer.
func (e *Engine) RecordEntry(ctx context.Context, userID UserID, d PostingDraft) (Posting, error) {
	if userID == "" {
		return Posting{}, ErrUserRequired
	}
	if err := ValidateEntry(d); err != nil {
		e.observer.WriteFailed(OpEntry, err)
		return Posting{}, err
	}
	start := e.now()
	var posting Posting
	err := e.store.WithTx(ctx, func(s Store) error {
		if err := checkPostingParty(ctx, s, userID, "party", d.PartyID); err != nil {
			return err
		}
		posting = e.materialize(userID, nil, []PostingDraft{d}, e.now())[0]
		return s.InsertPostings(ctx, []Posting{posting})
	})
	if err != nil {
		e.observer.WriteFailed(OpEntry, err)
		return Posting{}, err
	}
	e.observer.WriteSucceeded(OpEntry, 1, e.now().Sub(start))
	zerolog.Ctx(ctx).Info().
		Str("posting_id", string(posting.ID)).
		Str("party_id", string(posting.PartyID)).
		Str("amount", posting.Amount.String()).
		Msg("ledger.entry_recorded")
	return posting, nil
}

// DeleteEntry removes a manual posting. Postings derived from an order
// can only change through the order.
func (e *Engine) DeleteEntry(ctx context.Context, userID UserID, id PostingID) error {
	if userID == "" {
		return ErrUserRequired
	}
	return e.store.WithTx(ctx, func(s Store) error {
		p, err := s.GetPosting(ctx, userID, id)
		if err != nil {
			return err
		}
		if !p.IsManual() {
			return ErrDerivedPosting
		}
		return s.DeletePosting(ctx, userID, id)
	})
}

// =============================================================================
// BALANCES
// =============================================================================

// Balance is the sum of every posting against the party.
func (e *Engine) Balance(ctx context.Context, userID UserID, partyID PartyID) (decimal.Decimal, error) {
	if userID == "" {
		return decimal.Zero, ErrUserRequired
	}
	if _, err := e.store.GetParty(ctx, userID, partyID); err != nil {
		return decimal.Zero, err
	}
	postings, err := e.store.PostingsByParty(ctx, userID, partyID)
	if err != nil {
		return decimal.Zero, err
	}
	return BalanceOf(postings, partyID), nil
}

// Statement lists the party's postings with a running balance.
func (e *Engine) Statement(ctx context.Context, userID UserID, partyID PartyID) (Statement, error) {
	if userID == "" {
		return Statement{}, ErrUserRequired
	}
	party, err := e.store.GetParty(ctx, userID, partyID)
	if err != nil {
		return Statement{}, err
	}
	postings, err := e.store.PostingsByParty(ctx, userID, partyID)
	if err != nil {
		return Statement{}, err
	}
	return BuildStatement(party, postings), nil
}

// Balances summarizes every party the user has.
func (e *Engine) Balances(ctx context.Context, userID UserID) (BalanceSummary, error) {
	if userID == "" {
		return BalanceSummary{}, ErrUserRequired
	}
	parties, err := e.store.ListParties(ctx, userID)
	if err != nil {
		return BalanceSummary{}, err
	}
	postings, err := e.store.ListPostings(ctx, userID)
	if err != nil {
		return BalanceSummary{}, err
	}
	return Summarize(parties, postings), nil
}

// =============================================================================
// DIRECTORY
// =============================================================================

// SaveParty adds a party to the directory under a fresh id.
func (e *Engine) SaveParty(ctx context.Context, userID UserID, p Party) (Party, error) {
	if userID == "" {
		return Party{}, ErrUserRequired
	}
	if err := ValidateParty(p); err != nil {
		return Party{}, err
	}
	p = e.newParty(userID, p)
	if err := e.store.InsertParty(ctx, p); err != nil {
		return Party{}, fmt.Errorf("insert party: %w", err)
	}
	return p, nil
}

func (e *Engine) newParty(userID UserID, p Party) Party {
	p.ID = PartyID(e.newID())
	p.UserID = userID
	p.CreatedAt = e.now()
	return p
}

// ResolveParty finds a party by typed name, creating it when nothing
// matches. This is how order entry creates parties on the fly.
func (e *Engine) ResolveParty(ctx context.Context, userID UserID, name string, typ PartyType) (Party, bool, error) {
	if userID == "" {
		return Party{}, false, ErrUserRequired
	}
	candidate := Party{Name: name, Type: typ}
	if err := ValidateParty(candidate); err != nil {
		return Party{}, false, err
	}

	var (
		party   Party
		created bool
	)
	err := e.store.WithTx(ctx, func(s Store) error {
		found, err := s.FindPartyByName(ctx, userID, name, typ)
		if err == nil {
			party = found
			return nil
		}
		if !errors.Is(err, ErrPartyNotFound) {
			return err
		}
		party = e.newParty(userID, candidate)
		created = true
		return s.InsertParty(ctx, party)
	})
	if err != nil {
		return Party{}, false, err
	}
	if created {
		zerolog.Ctx(ctx).Info().Str("party_id", string(party.ID)).Str("type", string(typ)).Msg("party.created")
	}
	return party, created, nil
}

func (e *Engine) GetParty(ctx context.Context, userID UserID, id PartyID) (Party, error) {
	if userID == "" {
		return Party{}, ErrUserRequired
	}
	return e.store.GetParty(ctx, userID, id)
}

func (e *Engine) ListParties(ctx context.Context, userID UserID) ([]Party, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}
	return e.store.ListParties(ctx, userID)
}

// DeleteParty removes a party nobody references.
func (e *Engine) DeleteParty(ctx context.Context, userID UserID, id PartyID) error {
	if userID == "" {
		return ErrUserRequired
	}
	return e.store.WithTx(ctx, func(s Store) error {
		if _, err := s.GetParty(ctx, userID, id); err != nil {
			return err
		}
		n, err := s.CountPartyReferences(ctx, userID, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrPartyInUse
		}
		return s.DeleteParty(ctx, userID, id)
	})
}
