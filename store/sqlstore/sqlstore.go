/*
Package sqlstore provides a SQL-backed ledger.TxStore for SQLite and PostgreSQL.

PURPOSE:
  Implements ledger.Store over sqlx. One set of queries serves both
  dialects: positional queries are written with '?' and rebound for the
  driver, inserts use named parameters.

KEY TABLES:
  parties:  Directory (customers, vendors, products, pickup persons)
  orders:   One row per order, status history as JSON
  postings: Ledger rows, order_id NULL for manual entries

INDEXES:
  - idx_postings_order:        Regeneration deletes by order (hot path)
  - idx_postings_user_party:   Balance and statement reads
  - idx_parties_user_type_name: Lazy lookup by typed name

TRANSACTIONS:
  WithTx runs every callback statement on one sqlx.Tx. The Store passed
  to the callback never touches the pool, so a rollback undoes all of it.

SQLITE:
  Opened with foreign keys on, WAL and a single connection. A single
  connection keeps ":memory:" databases alive and serializes writers.

USAGE:
  st, err := sqlstore.OpenSQLite(ctx, "./data/ledger.db")
  if err != nil {
      return err
  }
  defer st.Close()

  engine := ledger.NewEngine(st)

MIGRATION:
  Schema is migrated with goose on open. Files live under
  migrations/<dialect> and are embedded in the binary.
*/
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/tradebook/order-ledger/ledger"
)

// Store implements ledger.TxStore on a SQL database.
type Store struct {
	rows
	db      *sqlx.DB
	dialect string
}

// PoolOptions tunes the Postgres connection pool.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open dispatches on the driver name.
func Open(ctx context.Context, driver, dsn string, pool PoolOptions) (*Store, error) {
	switch driver {
	case DialectSQLite, "sqlite":
		return OpenSQLite(ctx, dsn)
	case DialectPostgres, "postgresql":
		return OpenPostgres(ctx, dsn, pool)
	}
	return nil, fmt.Errorf("unsupported database driver %q", driver)
}

// OpenSQLite opens (or creates) a SQLite database and migrates it.
// Use ":memory:" for an in-memory database.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	db, err := sqlx.Open(DialectSQLite, sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	return newStore(ctx, db, DialectSQLite)
}

// OpenPostgres connects to PostgreSQL and migrates it.
func OpenPostgres(ctx context.Context, dsn string, pool PoolOptions) (*Store, error) {
	db, err := sqlx.ConnectContext(ctx, DialectPostgres, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	}
	return newStore(ctx, db, DialectPostgres)
}

func newStore(ctx context.Context, db *sqlx.DB, dialect string) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	if err := Migrate(ctx, db.DB, dialect); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return &Store{rows: rows{x: db}, db: db, dialect: dialect}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000"
}

// Dialect is "sqlite3" or "postgres".
func (s *Store) Dialect() string { return s.dialect }

// DB exposes the pool for health checks.
func (s *Store) DB() *sql.DB { return s.db.DB }

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) Close() error { return s.db.Close() }

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(rows{x: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// =============================================================================
// ROWS - Queries shared by the pool and a transaction
// =============================================================================

type rows struct {
	x sqlx.ExtContext
}

const partyColumns = `id, user_id, name, name_key, type, phone, address, created_at`

func (r rows) InsertParty(ctx context.Context, p ledger.Party) error {
	_, err := sqlx.NamedExecContext(ctx, r.x, `
		INSERT INTO parties (`+partyColumns+`)
		VALUES (:id, :user_id, :name, :name_key, :type, :phone, :address, :created_at)
	`, toPartyRow(p))
	if err != nil {
		return fmt.Errorf("insert party: %w", err)
	}
	return nil
}

func (r rows) GetParty(ctx context.Context, userID ledger.UserID, id ledger.PartyID) (ledger.Party, error) {
	var row partyRow
	err := sqlx.GetContext(ctx, r.x, &row, r.x.Rebind(`
		SELECT `+partyColumns+` FROM parties WHERE user_id = ? AND id = ?
	`), userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Party{}, ledger.ErrPartyNotFound
	}
	if err != nil {
		return ledger.Party{}, fmt.Errorf("get party: %w", err)
	}
	return row.party(), nil
}

func (r rows) FindPartyByName(ctx context.Context, userID ledger.UserID, name string, typ ledger.PartyType) (ledger.Party, error) {
	var row partyRow
	err := sqlx.GetContext(ctx, r.x, &row, r.x.Rebind(`
		SELECT `+partyColumns+` FROM parties
		WHERE user_id = ? AND type = ? AND name_key = ?
		ORDER BY name, id
		LIMIT 1
	`), userID, typ, ledger.NormalizeName(name))
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Party{}, ledger.ErrPartyNotFound
	}
	if err != nil {
		return ledger.Party{}, fmt.Errorf("find party: %w", err)
	}
	return row.party(), nil
}

func (r rows) ListParties(ctx context.Context, userID ledger.UserID) ([]ledger.Party, error) {
	var list []partyRow
	err := sqlx.SelectContext(ctx, r.x, &list, r.x.Rebind(`
		SELECT `+partyColumns+` FROM parties WHERE user_id = ? ORDER BY name, id
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	out := make([]ledger.Party, len(list))
	for i, row := range list {
		out[i] = row.party()
	}
	return out, nil
}

func (r rows) DeleteParty(ctx context.Context, userID ledger.UserID, id ledger.PartyID) error {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM parties WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("delete party: %w", err)
	}
	return requireAffected(res, ledger.ErrPartyNotFound)
}

func (r rows) CountPartyReferences(ctx context.Context, userID ledger.UserID, id ledger.PartyID) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.x, &n, r.x.Rebind(`
		SELECT
			(SELECT COUNT(*) FROM orders
			 WHERE user_id = ?
			   AND (product_id = ? OR customer_id = ? OR vendor_id = ? OR pickup_person_id = ?))
			+
			(SELECT COUNT(*) FROM postings WHERE user_id = ? AND party_id = ?)
	`), userID, id, id, id, id, userID, id)
	if err != nil {
		return 0, fmt.Errorf("count party references: %w", err)
	}
	return n, nil
}

const orderColumns = `id, user_id, order_date, product_id, customer_id, vendor_id, pickup_person_id,
	original_price, selling_price, pickup_charges, shipping_charges, paid_by_driver,
	status, status_history, vendor_payment_status, customer_payment_status, pickup_payment_status,
	notes, tracking_id, courier_name, margin, created_at, updated_at`

func (r rows) InsertOrder(ctx context.Context, o ledger.Order) error {
	row, err := toOrderRow(o)
	if err != nil {
		return err
	}
	_, err = sqlx.NamedExecContext(ctx, r.x, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (:id, :user_id, :order_date, :product_id, :customer_id, :vendor_id, :pickup_person_id,
			:original_price, :selling_price, :pickup_charges, :shipping_charges, :paid_by_driver,
			:status, :status_history, :vendor_payment_status, :customer_payment_status, :pickup_payment_status,
			:notes, :tracking_id, :courier_name, :margin, :created_at, :updated_at)
	`, row)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r rows) UpdateOrder(ctx context.Context, o ledger.Order) error {
	row, err := toOrderRow(o)
	if err != nil {
		return err
	}
	res, err := sqlx.NamedExecContext(ctx, r.x, `
		UPDATE orders SET
			order_date = :order_date,
			product_id = :product_id,
			customer_id = :customer_id,
			vendor_id = :vendor_id,
			pickup_person_id = :pickup_person_id,
			original_price = :original_price,
			selling_price = :selling_price,
			pickup_charges = :pickup_charges,
			shipping_charges = :shipping_charges,
			paid_by_driver = :paid_by_driver,
			status = :status,
			status_history = :status_history,
			vendor_payment_status = :vendor_payment_status,
			customer_payment_status = :customer_payment_status,
			pickup_payment_status = :pickup_payment_status,
			notes = :notes,
			tracking_id = :tracking_id,
			courier_name = :courier_name,
			margin = :margin,
			updated_at = :updated_at
		WHERE user_id = :user_id AND id = :id
	`, row)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	return requireAffected(res, ledger.ErrOrderNotFound)
}

func (r rows) GetOrder(ctx context.Context, userID ledger.UserID, id ledger.OrderID) (ledger.Order, error) {
	var row orderRow
	err := sqlx.GetContext(ctx, r.x, &row, r.x.Rebind(`
		SELECT `+orderColumns+` FROM orders WHERE user_id = ? AND id = ?
	`), userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Order{}, ledger.ErrOrderNotFound
	}
	if err != nil {
		return ledger.Order{}, fmt.Errorf("get order: %w", err)
	}
	return row.order()
}

func (r rows) ListOrders(ctx context.Context, userID ledger.UserID) ([]ledger.Order, error) {
	var list []orderRow
	err := sqlx.SelectContext(ctx, r.x, &list, r.x.Rebind(`
		SELECT `+orderColumns+` FROM orders
		WHERE user_id = ?
		ORDER BY order_date DESC, created_at DESC, id
	`), userID)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	out := make([]ledger.Order, 0, len(list))
	for _, row := range list {
		o, err := row.order()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (r rows) DeleteOrder(ctx context.Context, userID ledger.UserID, id ledger.OrderID) error {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM orders WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	return requireAffected(res, ledger.ErrOrderNotFound)
}

const postingColumns = `id, user_id, order_id, party_id, amount, tx_type, notes, position, created_at`

func (r rows) InsertPostings(ctx context.Context, postings []ledger.Posting) error {
	for i, p := range postings {
		_, err := sqlx.NamedExecContext(ctx, r.x, `
			INSERT INTO postings (`+postingColumns+`)
			VALUES (:id, :user_id, :order_id, :party_id, :amount, :tx_type, :notes, :position, :created_at)
		`, toPostingRow(p, i))
		if err != nil {
			return fmt.Errorf("insert posting %d: %w", i, err)
		}
	}
	return nil
}

func (r rows) GetPosting(ctx context.Context, userID ledger.UserID, id ledger.PostingID) (ledger.Posting, error) {
	var row postingRow
	err := sqlx.GetContext(ctx, r.x, &row, r.x.Rebind(`
		SELECT `+postingColumns+` FROM postings WHERE user_id = ? AND id = ?
	`), userID, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Posting{}, ledger.ErrPostingNotFound
	}
	if err != nil {
		return ledger.Posting{}, fmt.Errorf("get posting: %w", err)
	}
	return row.posting(), nil
}

func (r rows) DeletePosting(ctx context.Context, userID ledger.UserID, id ledger.PostingID) error {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM postings WHERE user_id = ? AND id = ?`), userID, id)
	if err != nil {
		return fmt.Errorf("delete posting: %w", err)
	}
	return requireAffected(res, ledger.ErrPostingNotFound)
}

func (r rows) DeletePostingsByOrder(ctx context.Context, userID ledger.UserID, orderID ledger.OrderID) (int, error) {
	res, err := r.x.ExecContext(ctx, r.x.Rebind(`DELETE FROM postings WHERE user_id = ? AND order_id = ?`), userID, orderID)
	if err != nil {
		return 0, fmt.Errorf("delete postings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete postings: %w", err)
	}
	return int(n), nil
}

func (r rows) PostingsByOrder(ctx context.Context, userID ledger.UserID, orderID ledger.OrderID) ([]ledger.Posting, error) {
	return r.selectPostings(ctx, `WHERE user_id = ? AND order_id = ?`, userID, orderID)
}

func (r rows) PostingsByParty(ctx context.Context, userID ledger.UserID, partyID ledger.PartyID) ([]ledger.Posting, error) {
	return r.selectPostings(ctx, `WHERE user_id = ? AND party_id = ?`, userID, partyID)
}

func (r rows) ListPostings(ctx context.Context, userID ledger.UserID) ([]ledger.Posting, error) {
	return r.selectPostings(ctx, `WHERE user_id = ?`, userID)
}

func (r rows) selectPostings(ctx context.Context, where string, args ...any) ([]ledger.Posting, error) {
	var list []postingRow
	query := `SELECT ` + postingColumns + ` FROM postings ` + where + ` ORDER BY created_at, position, id`
	if err := sqlx.SelectContext(ctx, r.x, &list, r.x.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select postings: %w", err)
	}
	out := make([]ledger.Posting, len(list))
	for i, row := range list {
		out[i] = row.posting()
	}
	return out, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound
	}
	return nil
}
