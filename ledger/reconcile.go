package ledger

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// =============================================================================
// RECONCILIATION - Stored postings vs. derivation
// =============================================================================

// Drift describes an order whose stored postings no longer match what
// DerivePostings produces for it, e.g. after rows were edited by hand or a
// derivation rule changed.
type Drift struct {
	OrderID    OrderID
	Missing    []PostingDraft // derived but not stored
	Unexpected []Posting      // stored but not derived
}

type ReconcileReport struct {
	Checked  int
	Drifted  []Drift
	Repaired int
	// Unbalanced lists fully settled orders where some party's stored
	// postings do not net to zero.
	Unbalanced []OrderID
}

// Clean reports whether every order matched its derivation.
func (r ReconcileReport) Clean() bool {
	return len(r.Drifted) == 0 && len(r.Unbalanced) == 0
}

// Reconcile compares every order's stored postings with its derivation.
// With repair set, drifted orders are rebuilt, each in its own transaction.
func (e *Engine) Reconcile(ctx context.Context, userID UserID, repair bool) (ReconcileReport, error) {
	if userID == "" {
		return ReconcileReport{}, ErrUserRequired
	}
	orders, err := e.store.ListOrders(ctx, userID)
	if err != nil {
		return ReconcileReport{}, err
	}

	log := zerolog.Ctx(ctx)
	var report ReconcileReport
	for _, o := range orders {
		stored, err := e.store.PostingsByOrder(ctx, userID, o.ID)
		if err != nil {
			return report, err
		}
		report.Checked++

		if isSettled(o) && !netsToZero(stored) {
			report.Unbalanced = append(report.Unbalanced, o.ID)
		}
		drift, ok := compareDerivation(o, stored)
		if ok {
			continue
		}
		report.Drifted = append(report.Drifted, drift)
		log.Warn().
			Str("order_id", string(o.ID)).
			Int("missing", len(drift.Missing)).
			Int("unexpected", len(drift.Unexpected)).
			Msg("ledger.drift_detected")

		if repair {
			if err := e.rebuild(ctx, userID, o.ID); err != nil {
				return report, fmt.Errorf("repair order %s: %w", o.ID, err)
			}
			report.Repaired++
		}
	}
	return report, nil
}

// rebuild replaces the order's postings with a fresh derivation.
func (e *Engine) rebuild(ctx context.Context, userID UserID, id OrderID) error {
	start := e.now()
	var n int
	err := e.store.WithTx(ctx, func(s Store) error {
		o, err := s.GetOrder(ctx, userID, id)
		if err != nil {
			return err
		}
		if _, err := s.DeletePostingsByOrder(ctx, userID, id); err != nil {
			return fmt.Errorf("clear postings: %w", err)
		}
		postings, err := e.writePostings(ctx, s, o, e.now())
		n = len(postings)
		return err
	})
	if err != nil {
		e.observer.WriteFailed(OpRepair, err)
		return err
	}
	e.observer.WriteSucceeded(OpRepair, n, e.now().Sub(start))
	return nil
}

// isSettled reports whether every party on the order has been paid.
func isSettled(o Order) bool {
	if o.Status == StatusCanceled {
		return true
	}
	return o.CustomerPaymentStatus == PaymentPaid &&
		o.VendorPaymentStatus == PaymentPaid &&
		(!o.HasPickup() || o.PickupPaymentStatus == PaymentPaid)
}

func netsToZero(postings []Posting) bool {
	sums := make(map[PartyID]decimal.Decimal)
	for _, p := range postings {
		sums[p.PartyID] = sums[p.PartyID].Add(p.Amount)
	}
	for _, sum := range sums {
		if !sum.IsZero() {
			return false
		}
	}
	return true
}

// compareDerivation matches stored postings to derived drafts as multisets
// keyed on party, amount, type and notes.
func compareDerivation(o Order, stored []Posting) (Drift, bool) {
	want := DerivePostings(o)
	pending := make(map[string][]PostingDraft, len(want))
	for _, d := range want {
		k := draftKey(d)
		pending[k] = append(pending[k], d)
	}

	drift := Drift{OrderID: o.ID}
	for _, p := range stored {
		k := draftKey(p.Draft())
		if ds := pending[k]; len(ds) > 0 {
			pending[k] = ds[1:]
			continue
		}
		drift.Unexpected = append(drift.Unexpected, p)
	}

	keys := make([]string, 0, len(pending))
	for k := range pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		drift.Missing = append(drift.Missing, pending[k]...)
	}
	return drift, len(drift.Missing) == 0 && len(drift.Unexpected) == 0
}

func draftKey(d PostingDraft) string {
	return fmt.Sprintf("%s|%s|%s|%s", d.PartyID, d.Amount.String(), d.Type, d.Notes)
}
