// Package store provides an in-memory ledger.TxStore.
package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/tradebook/order-ledger/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	t  *tables
}

func NewMemory() *Memory {
	return &Memory{t: newTables()}
}

func (m *Memory) InsertParty(ctx context.Context, p ledger.Party) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.InsertParty(ctx, p)
}

func (m *Memory) GetParty(ctx context.Context, userID ledger.UserID, id ledger.PartyID) (ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.GetParty(ctx, userID, id)
}

func (m *Memory) FindPartyByName(ctx context.Context, userID ledger.UserID, name string, typ ledger.PartyType) (ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.FindPartyByName(ctx, userID, name, typ)
}

func (m *Memory) ListParties(ctx context.Context, userID ledger.UserID) ([]ledger.Party, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.ListParties(ctx, userID)
}

func (m *Memory) DeleteParty(ctx context.Context, userID ledger.UserID, id ledger.PartyID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.DeleteParty(ctx, userID, id)
}

func (m *Memory) CountPartyReferences(ctx context.Context, userID ledger.UserID, id ledger.PartyID) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.CountPartyReferences(ctx, userID, id)
}

func (m *Memory) InsertOrder(ctx context.Context, o ledger.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.InsertOrder(ctx, o)
}

func (m *Memory) UpdateOrder(ctx context.Context, o ledger.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.UpdateOrder(ctx, o)
}

func (m *Memory) GetOrder(ctx context.Context, userID ledger.UserID, id ledger.OrderID) (ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.GetOrder(ctx, userID, id)
}

func (m *Memory) ListOrders(ctx context.Context, userID ledger.UserID) ([]ledger.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.ListOrders(ctx, userID)
}

func (m *Memory) DeleteOrder(ctx context.Context, userID ledger.UserID, id ledger.OrderID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.DeleteOrder(ctx, userID, id)
}

func (m *Memory) InsertPostings(ctx context.Context, postings []ledger.Posting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.InsertPostings(ctx, postings)
}

func (m *Memory) GetPosting(ctx context.Context, userID ledger.UserID, id ledger.PostingID) (ledger.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.GetPosting(ctx, userID, id)
}

func (m *Memory) DeletePosting(ctx context.Context, userID ledger.UserID, id ledger.PostingID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.DeletePosting(ctx, userID, id)
}

func (m *Memory) DeletePostingsByOrder(ctx context.Context, userID ledger.UserID, orderID ledger.OrderID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.t.DeletePostingsByOrder(ctx, userID, orderID)
}

func (m *Memory) PostingsByOrder(ctx context.Context, userID ledger.UserID, orderID ledger.OrderID) ([]ledger.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.PostingsByOrder(ctx, userID, orderID)
}

func (m *Memory) PostingsByParty(ctx context.Context, userID ledger.UserID, partyID ledger.PartyID) ([]ledger.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.PostingsByParty(ctx, userID, partyID)
}

func (m *Memory) ListPostings(ctx context.Context, userID ledger.UserID) ([]ledger.Posting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.t.ListPostings(ctx, userID)
}

// =============================================================================
// TRANSACTIONAL MEMORY STORE
// =============================================================================

// TxMemory wraps Memory with transaction support.
type TxMemory struct {
	*Memory
}

func NewTxMemory() *TxMemory {
	return &TxMemory{Memory: NewMemory()}
}

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole callback, so readers see either the
// state before fn or the state after it.
func (tm *TxMemory) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tm.mu.Lock()
	defer tm.mu.Unlock()

	snapshot := tm.t.clone()
	if err := fn(tm.t); err != nil {
		tm.t = snapshot
		return err
	}
	return nil
}

// =============================================================================
// TABLES - Unlocked state, also serves as the in-transaction view
// =============================================================================

type tables struct {
	parties  map[ledger.PartyID]ledger.Party
	orders   map[ledger.OrderID]ledger.Order
	postings []ledger.Posting // insertion order
}

func newTables() *tables {
	return &tables{
		parties: make(map[ledger.PartyID]ledger.Party),
		orders:  make(map[ledger.OrderID]ledger.Order),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.parties {
		c.parties[k] = v
	}
	for k, v := range t.orders {
		c.orders[k] = copyOrder(v)
	}
	c.postings = append([]ledger.Posting(nil), t.postings...)
	return c
}

func (t *tables) InsertParty(_ context.Context, p ledger.Party) error {
	if _, ok := t.parties[p.ID]; ok {
		return fmt.Errorf("insert party %s: duplicate id", p.ID)
	}
	t.parties[p.ID] = p
	return nil
}

func (t *tables) GetParty(_ context.Context, userID ledger.UserID, id ledger.PartyID) (ledger.Party, error) {
	p, ok := t.parties[id]
	if !ok || p.UserID != userID {
		return ledger.Party{}, ledger.ErrPartyNotFound
	}
	return p, nil
}

func (t *tables) FindPartyByName(_ context.Context, userID ledger.UserID, name string, typ ledger.PartyType) (ledger.Party, error) {
	key := ledger.NormalizeName(name)
	var matches []ledger.Party
	for _, p := range t.parties {
		if p.UserID == userID && p.Type == typ && ledger.NormalizeName(p.Name) == key {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return ledger.Party{}, ledger.ErrPartyNotFound
	}
	sortParties(matches)
	return matches[0], nil
}

func (t *tables) ListParties(_ context.Context, userID ledger.UserID) ([]ledger.Party, error) {
	var out []ledger.Party
	for _, p := range t.parties {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	sortParties(out)
	return out, nil
}

func (t *tables) DeleteParty(_ context.Context, userID ledger.UserID, id ledger.PartyID) error {
	if p, ok := t.parties[id]; !ok || p.UserID != userID {
		return ledger.ErrPartyNotFound
	}
	delete(t.parties, id)
	return nil
}

func (t *tables) CountPartyReferences(_ context.Context, userID ledger.UserID, id ledger.PartyID) (int, error) {
	n := 0
	for _, o := range t.orders {
		if o.UserID != userID {
			continue
		}
		if o.ProductID == id || o.CustomerID == id || o.VendorID == id ||
			(o.PickupPersonID != nil && *o.PickupPersonID == id) {
			n++
		}
	}
	for _, p := range t.postings {
		if p.UserID == userID && p.PartyID == id {
			n++
		}
	}
	return n, nil
}

func (t *tables) InsertOrder(_ context.Context, o ledger.Order) error {
	t.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *tables) UpdateOrder(_ context.Context, o ledger.Order) error {
	prev, ok := t.orders[o.ID]
	if !ok || prev.UserID != o.UserID {
		return ledger.ErrOrderNotFound
	}
	t.orders[o.ID] = copyOrder(o)
	return nil
}

func (t *tables) GetOrder(_ context.Context, userID ledger.UserID, id ledger.OrderID) (ledger.Order, error) {
	o, ok := t.orders[id]
	if !ok || o.UserID != userID {
		return ledger.Order{}, ledger.ErrOrderNotFound
	}
	return copyOrder(o), nil
}

func (t *tables) ListOrders(_ context.Context, userID ledger.UserID) ([]ledger.Order, error) {
	var out []ledger.Order
	for _, o := range t.orders {
		if o.UserID == userID {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.After(out[j].Date)
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (t *tables) DeleteOrder(_ context.Context, userID ledger.UserID, id ledger.OrderID) error {
	if o, ok := t.orders[id]; !ok || o.UserID != userID {
		return ledger.ErrOrderNotFound
	}
	delete(t.orders, id)
	return nil
}

func (t *tables) InsertPostings(_ context.Context, postings []ledger.Posting) error {
	t.postings = append(t.postings, postings...)
	return nil
}

func (t *tables) GetPosting(_ context.Context, userID ledger.UserID, id ledger.PostingID) (ledger.Posting, error) {
	for _, p := range t.postings {
		if p.ID == id && p.UserID == userID {
			return p, nil
		}
	}
	return ledger.Posting{}, ledger.ErrPostingNotFound
}

func (t *tables) DeletePosting(_ context.Context, userID ledger.UserID, id ledger.PostingID) error {
	for i, p := range t.postings {
		if p.ID == id && p.UserID == userID {
			t.postings = append(t.postings[:i:i], t.postings[i+1:]...)
			return nil
		}
	}
	return ledger.ErrPostingNotFound
}

func (t *tables) DeletePostingsByOrder(_ context.Context, userID ledger.UserID, orderID ledger.OrderID) (int, error) {
	kept := make([]ledger.Posting, 0, len(t.postings))
	for _, p := range t.postings {
		if p.UserID == userID && p.OrderID != nil && *p.OrderID == orderID {
			continue
		}
		kept = append(kept, p)
	}
	removed := len(t.postings) - len(kept)
	t.postings = kept
	return removed, nil
}

func (t *tables) PostingsByOrder(_ context.Context, userID ledger.UserID, orderID ledger.OrderID) ([]ledger.Posting, error) {
	return t.filter(func(p ledger.Posting) bool {
		return p.UserID == userID && p.OrderID != nil && *p.OrderID == orderID
	}), nil
}

func (t *tables) PostingsByParty(_ context.Context, userID ledger.UserID, partyID ledger.PartyID) ([]ledger.Posting, error) {
	return t.filter(func(p ledger.Posting) bool {
		return p.UserID == userID && p.PartyID == partyID
	}), nil
}

func (t *tables) ListPostings(_ context.Context, userID ledger.UserID) ([]ledger.Posting, error) {
	return t.filter(func(p ledger.Posting) bool { return p.UserID == userID }), nil
}

func (t *tables) filter(keep func(ledger.Posting) bool) []ledger.Posting {
	var out []ledger.Posting
	for _, p := range t.postings {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func copyOrder(o ledger.Order) ledger.Order {
	o.StatusHistory = append([]ledger.StatusChange(nil), o.StatusHistory...)
	if o.PickupPersonID != nil {
		id := *o.PickupPersonID
		o.PickupPersonID = &id
	}
	return o
}

func sortParties(ps []ledger.Party) {
	sort.Slice(ps, func(i, j int) bool {
		if ps[i].Name != ps[j].Name {
			return ps[i].Name < ps[j].Name
		}
		return ps[i].ID < ps[j].ID
	})
}
