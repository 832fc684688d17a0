/*
sqlstore_test.go - Store tests against a real database

PURPOSE:
	Runs the row store and the full engine protocol against SQLite
	(":memory:", always) and PostgreSQL (when ORDERLEDGER_TEST_POSTGRES_DSN
	is set). Each test uses its own user id, so a shared Postgres database
	can be reused between runs.
*/
package sqlstore

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradebook/order-ledger/ledger"
)

const postgresDSNEnv = "ORDERLEDGER_TEST_POSTGRES_DSN"

// =============================================================================
// TEST HELPERS
// =============================================================================

func openSQLite(t *testing.T) *Store {
	t.Helper()
	s, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func openPostgres(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv(postgresDSNEnv)
	if dsn == "" {
		t.Skipf("%s not set", postgresDSNEnv)
	}
	s, err := OpenPostgres(context.Background(), dsn, PoolOptions{MaxOpenConns: 4})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// eachStore runs fn against every available backend.
func eachStore(t *testing.T, fn func(t *testing.T, s *Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, openSQLite(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, openPostgres(t)) })
}

type seeded struct {
	user                              ledger.UserID
	product, customer, vendor, pickup ledger.Party
}

var at = time.Date(2025, 2, 3, 10, 30, 0, 123456000, time.UTC)

func seedParties(t *testing.T, s *Store) seeded {
	t.Helper()
	ctx := context.Background()
	sd := seeded{user: ledger.UserID("user-" + uuid.NewString())}
	mk := func(name string, typ ledger.PartyType) ledger.Party {
		p := ledger.Party{
			ID:        ledger.PartyID(uuid.NewString()),
			UserID:    sd.user,
			Name:      name,
			Type:      typ,
			Phone:     "+91 98765 43210",
			CreatedAt: at,
		}
		require.NoError(t, s.InsertParty(ctx, p))
		return p
	}
	sd.product = mk("Teak Chair", ledger.PartyProduct)
	sd.customer = mk("Alice Traders", ledger.PartyCustomer)
	sd.vendor = mk("Bharat Furnishings", ledger.PartyVendor)
	sd.pickup = mk("Ravi", ledger.PartyPickupPerson)
	return sd
}

func (sd seeded) order() ledger.Order {
	return ledger.Order{
		ProductID:     sd.product.ID,
		CustomerID:    sd.customer.ID,
		VendorID:      sd.vendor.ID,
		OriginalPrice: decimal.RequireFromString("1000"),
		SellingPrice:  decimal.RequireFromString("1500.25"),
	}
}

func engineFor(s *Store) *ledger.Engine {
	tick := 0
	return ledger.NewEngine(s, ledger.WithClock(func() time.Time {
		tick++
		return at.Add(time.Duration(tick) * time.Second)
	}))
}

// =============================================================================
// ROUND TRIPS
// =============================================================================

func TestStore_OrderRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)

		// GIVEN: An order using every column
		o := sd.order()
		o.ID = ledger.OrderID(uuid.NewString())
		o.UserID = sd.user
		o.Date = at
		o.PickupPersonID = &sd.pickup.ID
		o.PickupCharges = decimal.RequireFromString("49.99")
		o.ShippingCharges = decimal.RequireFromString("100")
		o.PaidByDriver = true
		o = o.WithDefaults()
		o.Status = ledger.StatusShipped
		o.StatusHistory = []ledger.StatusChange{
			{Status: ledger.StatusPending, Timestamp: at},
			{Status: ledger.StatusShipped, Timestamp: at.Add(time.Hour)},
		}
		o.Notes = "fragile"
		o.TrackingID = "TRK-1"
		o.CourierName = "BlueDart"
		o.Margin = ledger.Margin(o)
		o.CreatedAt = at
		o.UpdatedAt = at

		// WHEN
		require.NoError(t, s.InsertOrder(ctx, o))
		got, err := s.GetOrder(ctx, sd.user, o.ID)
		require.NoError(t, err)

		// THEN: Every field survives, money exactly
		assert.Equal(t, o.ID, got.ID)
		assert.True(t, got.Date.Equal(o.Date))
		require.NotNil(t, got.PickupPersonID)
		assert.Equal(t, sd.pickup.ID, *got.PickupPersonID)
		assert.True(t, got.SellingPrice.Equal(o.SellingPrice))
		assert.True(t, got.PickupCharges.Equal(o.PickupCharges))
		assert.True(t, got.Margin.Equal(decimal.RequireFromString("350.26")))
		assert.True(t, got.PaidByDriver)
		assert.Equal(t, ledger.StatusShipped, got.Status)
		require.Len(t, got.StatusHistory, 2)
		assert.True(t, got.StatusHistory[1].Timestamp.Equal(at.Add(time.Hour)))
		assert.Equal(t, ledger.PaymentUdhar, got.VendorPaymentStatus)
		assert.Equal(t, "fragile", got.Notes)
		assert.Equal(t, "TRK-1", got.TrackingID)
		assert.Equal(t, "BlueDart", got.CourierName)
		assert.True(t, got.CreatedAt.Equal(at))
	})
}

func TestStore_NoPickupIsNull(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)
		o := sd.order().WithDefaults()
		o.ID = ledger.OrderID(uuid.NewString())
		o.UserID = sd.user
		o.Date, o.CreatedAt, o.UpdatedAt = at, at, at

		require.NoError(t, s.InsertOrder(ctx, o))
		got, err := s.GetOrder(ctx, sd.user, o.ID)
		require.NoError(t, err)

		assert.Nil(t, got.PickupPersonID)
		assert.Empty(t, got.StatusHistory)
	})
}

func TestStore_NotFoundSentinels(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)

		_, err := s.GetOrder(ctx, sd.user, "missing")
		assert.ErrorIs(t, err, ledger.ErrOrderNotFound)
		_, err = s.GetPosting(ctx, sd.user, "missing")
		assert.ErrorIs(t, err, ledger.ErrPostingNotFound)
		_, err = s.GetParty(ctx, "someone-else", sd.customer.ID)
		assert.ErrorIs(t, err, ledger.ErrPartyNotFound)

		assert.ErrorIs(t, s.DeleteOrder(ctx, sd.user, "missing"), ledger.ErrOrderNotFound)
		assert.ErrorIs(t, s.DeletePosting(ctx, sd.user, "missing"), ledger.ErrPostingNotFound)
		assert.ErrorIs(t, s.DeleteParty(ctx, sd.user, "missing"), ledger.ErrPartyNotFound)

		o := sd.order().WithDefaults()
		o.ID = "missing"
		o.UserID = sd.user
		assert.ErrorIs(t, s.UpdateOrder(ctx, o), ledger.ErrOrderNotFound)
	})
}

func TestStore_FindPartyByName(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)

		p, err := s.FindPartyByName(ctx, sd.user, "  alice TRADERS ", ledger.PartyCustomer)
		require.NoError(t, err)
		assert.Equal(t, sd.customer.ID, p.ID)
		assert.Equal(t, "+91 98765 43210", p.Phone)

		_, err = s.FindPartyByName(ctx, sd.user, "Alice Traders", ledger.PartyVendor)
		assert.ErrorIs(t, err, ledger.ErrPartyNotFound)

		all, err := s.ListParties(ctx, sd.user)
		require.NoError(t, err)
		assert.Len(t, all, 4)
	})
}

func TestStore_WithTx_Rollback(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)
		boom := errors.New("boom")

		err := s.WithTx(ctx, func(tx ledger.Store) error {
			require.NoError(t, tx.DeleteParty(ctx, sd.user, sd.pickup.ID))
			return boom
		})

		assert.ErrorIs(t, err, boom)
		_, err = s.GetParty(ctx, sd.user, sd.pickup.ID)
		assert.NoError(t, err)
	})
}

func TestStore_ForeignKeys(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)

		err := s.InsertPostings(ctx, []ledger.Posting{{
			ID:        ledger.PostingID(uuid.NewString()),
			UserID:    sd.user,
			PartyID:   "no-such-party",
			Amount:    decimal.NewFromInt(1),
			Type:      ledger.TxPaymentIn,
			CreatedAt: at,
		}})

		assert.Error(t, err)
	})
}

// =============================================================================
// ENGINE ON SQL
// =============================================================================

func TestEngine_RegenerationProtocol(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)
		engine := engineFor(s)

		// GIVEN: An open order
		res, err := engine.SaveOrder(ctx, sd.user, sd.order())
		require.NoError(t, err)

		// WHEN: Pickup added and the driver paid
		o := res.Order
		o.PickupPersonID = &sd.pickup.ID
		o.PickupCharges = decimal.RequireFromString("50")
		o.ShippingCharges = decimal.RequireFromString("100")
		o.PaidByDriver = true
		res, err = engine.SaveOrder(ctx, sd.user, o)
		require.NoError(t, err)

		// THEN: Stored postings come back in derivation order
		stored, err := engine.OrderPostings(ctx, sd.user, o.ID)
		require.NoError(t, err)
		want := ledger.DerivePostings(res.Order)
		require.Len(t, stored, len(want))
		for i := range want {
			assert.Equal(t, want[i].PartyID, stored[i].PartyID)
			assert.Equal(t, want[i].Type, stored[i].Type)
			assert.Equal(t, want[i].Notes, stored[i].Notes)
			assert.True(t, want[i].Amount.Equal(stored[i].Amount))
		}

		vendor, err := engine.Balance(ctx, sd.user, sd.vendor.ID)
		require.NoError(t, err)
		assert.True(t, vendor.IsZero())
		pickup, err := engine.Balance(ctx, sd.user, sd.pickup.ID)
		require.NoError(t, err)
		assert.True(t, pickup.Equal(decimal.RequireFromString("-1150")))

		// AND: History and reconciliation agree
		got, err := engine.GetOrder(ctx, sd.user, o.ID)
		require.NoError(t, err)
		assert.Len(t, got.StatusHistory, 1)
		report, err := engine.Reconcile(ctx, sd.user, false)
		require.NoError(t, err)
		assert.True(t, report.Clean())

		// WHEN: Deleted
		require.NoError(t, engine.DeleteOrder(ctx, sd.user, o.ID))

		// THEN: Nothing is left and the parties can go
		all, err := s.ListPostings(ctx, sd.user)
		require.NoError(t, err)
		assert.Empty(t, all)
		assert.NoError(t, engine.DeleteParty(ctx, sd.user, sd.pickup.ID))
	})
}

func TestEngine_ManualEntriesAndGuards(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)
		engine := engineFor(s)

		res, err := engine.SaveOrder(ctx, sd.user, sd.order())
		require.NoError(t, err)
		entry, err := engine.RecordEntry(ctx, sd.user, ledger.PostingDraft{
			PartyID: sd.customer.ID,
			Amount:  decimal.RequireFromString("-500.25"),
			Type:    ledger.TxPaymentIn,
			Notes:   "cash",
		})
		require.NoError(t, err)
		assert.Nil(t, entry.OrderID)

		bal, err := engine.Balance(ctx, sd.user, sd.customer.ID)
		require.NoError(t, err)
		assert.True(t, bal.Equal(decimal.RequireFromString("1000")))

		n, err := s.CountPartyReferences(ctx, sd.user, sd.customer.ID)
		require.NoError(t, err)
		assert.Equal(t, 3, n) // one order, its sale, the manual entry

		assert.ErrorIs(t, engine.DeleteParty(ctx, sd.user, sd.customer.ID), ledger.ErrPartyInUse)
		assert.ErrorIs(t, engine.DeleteEntry(ctx, sd.user, res.Postings[0].ID), ledger.ErrDerivedPosting)
		assert.NoError(t, engine.DeleteEntry(ctx, sd.user, entry.ID))

		sum, err := engine.Balances(ctx, sd.user)
		require.NoError(t, err)
		assert.True(t, sum.Receivable.Equal(decimal.RequireFromString("1500.25")))
		assert.True(t, sum.Payable.Equal(decimal.RequireFromString("-1000")))
	})
}

func TestEngine_ListOrdersNewestFirst(t *testing.T) {
	eachStore(t, func(t *testing.T, s *Store) {
		ctx := context.Background()
		sd := seedParties(t, s)
		engine := engineFor(s)

		for _, day := range []int{1, 3, 2} {
			o := sd.order()
			o.Date = time.Date(2025, 1, day, 0, 0, 0, 0, time.UTC)
			_, err := engine.SaveOrder(ctx, sd.user, o)
			require.NoError(t, err)
		}

		orders, err := engine.ListOrders(ctx, sd.user)
		require.NoError(t, err)
		require.Len(t, orders, 3)
		assert.Equal(t, 3, orders[0].Date.Day())
		assert.Equal(t, 2, orders[1].Date.Day())
		assert.Equal(t, 1, orders[2].Date.Day())
	})
}

// =============================================================================
// MIGRATIONS / OPEN
// =============================================================================

func TestMigrate_IsRepeatable(t *testing.T) {
	s := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, Migrate(ctx, s.DB(), DialectSQLite))

	v, err := Version(s.DB(), DialectSQLite)
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
}

func TestMigrate_UnknownDialect(t *testing.T) {
	s := openSQLite(t)

	assert.Error(t, Migrate(context.Background(), s.DB(), "mysql"))
}

func TestOpen_Dispatch(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, "sqlite", ":memory:", PoolOptions{})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, DialectSQLite, s.Dialect())
	assert.NoError(t, s.Ping(ctx))

	_, err = Open(ctx, "oracle", "whatever", PoolOptions{})
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "a.db?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("a.db"))
	assert.Equal(t, "file:a.db?cache=shared&_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", sqliteDSN("file:a.db?cache=shared"))
}
