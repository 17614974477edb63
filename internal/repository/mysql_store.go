package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/cinebook-inventory/internal/model"
)

// MySQLStore persists the inventory in the shows, bookings and
// booking_seats tables.  booking_seats is a seat-to-hold index keyed by
// (show_id, seat_label) so conflict checks are exact membership queries.
// All timestamps are written and compared in UTC; the engine passes the
// current time explicitly so the database clock is never consulted.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore returns a MySQLStore bound to the provided database.
func NewMySQLStore(db *sql.DB) *MySQLStore { return &MySQLStore{db: db} }

// DB exposes the underlying sql.DB for health checks and migrations.
func (s *MySQLStore) DB() *sql.DB { return s.db }

// WithTx begins a READ COMMITTED transaction.  Reads issued after a
// FOR UPDATE lock on the show row must observe every hold committed by
// the previous lock holder, which a REPEATABLE READ snapshot taken
// earlier would hide.
func (s *MySQLStore) WithTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(ctx, &mysqlTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	committed = true
	return nil
}

// CreateShow inserts a show and populates its generated ID.  It is used
// by the sample catalog seed; the catalog service owns shows otherwise.
func (s *MySQLStore) CreateShow(ctx context.Context, show *model.Show) error {
	if show.AvailableSeats > show.TotalSeats {
		return ErrCounterOutOfRange
	}
	if show.CreatedAt.IsZero() {
		show.CreatedAt = time.Now().UTC()
	}
	const q = `INSERT INTO shows (title, category, starts_at, total_seats, available_seats, price_cents, created_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, q, show.Title, show.Category, show.StartsAt.UTC(),
		show.TotalSeats, show.AvailableSeats, show.PriceCents, show.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create show: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("create show: %w", err)
	}
	show.ID = uint64(id)
	return nil
}

func (s *MySQLStore) CountShows(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM shows`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count shows: %w", err)
	}
	return n, nil
}

func (s *MySQLStore) GetShow(ctx context.Context, id uint64) (*model.Show, error) {
	return getShow(ctx, s.db, id, false)
}

func (s *MySQLStore) GetHold(ctx context.Context, id string) (*model.Hold, error) {
	return getHold(ctx, s.db, id, false)
}

// FindActiveHoldsForShow loads the active holds of a show.  The seat list
// comes from the ordered seat_labels column, so one query is enough.
func (s *MySQLStore) FindActiveHoldsForShow(ctx context.Context, showID uint64, now time.Time) ([]model.Hold, error) {
	q := `SELECT ` + holdColumns + `
	      FROM bookings
	      WHERE show_id = ?
	        AND (status = 'CONFIRMED' OR (status = 'PENDING' AND expires_at > ?))
	      ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, q, showID, now.UTC())
	if err != nil {
		return nil, fmt.Errorf("find active holds: %w", err)
	}
	defer rows.Close()
	return scanHolds(rows)
}

// ListExpiredPending returns PENDING holds whose expiry has passed,
// oldest first, capped at limit rows.
func (s *MySQLStore) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]model.Hold, error) {
	q := `SELECT ` + holdColumns + `
	      FROM bookings
	      WHERE status = 'PENDING' AND expires_at <= ?
	      ORDER BY expires_at, id
	      LIMIT ?`
	if limit <= 0 {
		limit = 1000
	}
	rows, err := s.db.QueryContext(ctx, q, now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("list expired holds: %w", err)
	}
	defer rows.Close()
	return scanHolds(rows)
}

// Stats counts holds per status with explicit buckets.  Pending holds
// are reported as such and never derived from the other counts.
func (s *MySQLStore) Stats(ctx context.Context) (model.HoldStats, error) {
	var st model.HoldStats
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(total_seats), 0) FROM shows`,
	).Scan(&st.Shows, &st.TotalSeats); err != nil {
		return st, fmt.Errorf("show stats: %w", err)
	}
	const q = `SELECT
	             COUNT(CASE WHEN status = 'PENDING' THEN 1 END),
	             COUNT(CASE WHEN status = 'CONFIRMED' THEN 1 END),
	             COUNT(CASE WHEN status = 'FAILED' THEN 1 END),
	             COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN total_amount_cents END), 0)
	           FROM bookings`
	if err := s.db.QueryRowContext(ctx, q).Scan(&st.Pending, &st.Confirmed, &st.Failed, &st.ConfirmedRevenueCents); err != nil {
		return st, fmt.Errorf("hold stats: %w", err)
	}
	return st, nil
}

// mysqlTx implements Tx on top of a *sql.Tx.
type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) GetShowForUpdate(ctx context.Context, id uint64) (*model.Show, error) {
	return getShow(ctx, t.tx, id, true)
}

// UpdateAvailableSeats applies delta only when the result stays within
// [0, total_seats].  The guard lives in the WHERE clause so a concurrent
// writer can never push the counter out of range.
func (t *mysqlTx) UpdateAvailableSeats(ctx context.Context, id uint64, delta int) error {
	const q = `UPDATE shows
	           SET available_seats = available_seats + ?
	           WHERE id = ? AND available_seats + ? BETWEEN 0 AND total_seats`
	res, err := t.tx.ExecContext(ctx, q, delta, id, delta)
	if err != nil {
		return fmt.Errorf("update available seats: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update available seats: %w", err)
	}
	if n == 0 {
		if _, err := getShow(ctx, t.tx, id, false); err != nil {
			return err
		}
		return ErrCounterOutOfRange
	}
	return nil
}

// ClaimedSeats runs one set-membership query against booking_seats for
// all requested seats at once.
func (t *mysqlTx) ClaimedSeats(ctx context.Context, showID uint64, seats []string, now time.Time) ([]string, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	query := `SELECT DISTINCT bs.seat_label
	          FROM booking_seats bs
	          JOIN bookings b ON b.id = bs.booking_id
	          WHERE bs.show_id = ?
	            AND (b.status = 'CONFIRMED' OR (b.status = 'PENDING' AND b.expires_at > ?))
	            AND bs.seat_label IN (`
	query += placeholders(len(seats)) + ")"
	args := make([]interface{}, 0, len(seats)+2)
	args = append(args, showID, now.UTC())
	for _, seat := range seats {
		args = append(args, seat)
	}

	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("claimed seats: %w", err)
	}
	defer rows.Close()
	var claimed []string
	for rows.Next() {
		var seat string
		if err := rows.Scan(&seat); err != nil {
			return nil, fmt.Errorf("claimed seats: %w", err)
		}
		claimed = append(claimed, seat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("claimed seats: %w", err)
	}
	return claimed, nil
}

// ExpiredHoldsCovering finds expired PENDING holds through the
// booking_seats index.  The rows are not locked; callers settle them with
// UpdateHoldStatus, whose guards decide.
func (t *mysqlTx) ExpiredHoldsCovering(ctx context.Context, showID uint64, seats []string, now time.Time) ([]model.Hold, error) {
	if len(seats) == 0 {
		return nil, nil
	}
	query := `SELECT ` + holdColumns + `
	          FROM bookings
	          WHERE status = 'PENDING' AND expires_at <= ?
	            AND id IN (SELECT booking_id FROM booking_seats
	                       WHERE show_id = ? AND seat_label IN (` + placeholders(len(seats)) + `))
	          ORDER BY expires_at, id`
	args := make([]interface{}, 0, len(seats)+2)
	args = append(args, now.UTC(), showID)
	for _, seat := range seats {
		args = append(args, seat)
	}
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("expired holds covering seats: %w", err)
	}
	defer rows.Close()
	return scanHolds(rows)
}

// InsertHold writes the bookings row and one booking_seats row per seat
// in a single multi-row INSERT.
func (t *mysqlTx) InsertHold(ctx context.Context, h *model.Hold) error {
	labels, err := json.Marshal(h.Seats)
	if err != nil {
		return fmt.Errorf("encode seats: %w", err)
	}
	const q = `INSERT INTO bookings
	           (id, show_id, seat_labels, seat_count, status, total_amount_cents,
	            contact_name, contact_email, created_at, expires_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := t.tx.ExecContext(ctx, q, h.ID, h.ShowID, string(labels), len(h.Seats), string(h.Status),
		h.TotalAmountCents, h.Contact.Name, h.Contact.Email, h.CreatedAt.UTC(), h.ExpiresAt.UTC()); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateHold
		}
		return fmt.Errorf("insert hold: %w", err)
	}

	if len(h.Seats) == 0 {
		return nil
	}
	query := `INSERT INTO booking_seats (booking_id, show_id, seat_label, position) VALUES `
	args := make([]interface{}, 0, len(h.Seats)*4)
	for i, seat := range h.Seats {
		if i > 0 {
			query += ","
		}
		query += "(?, ?, ?, ?)"
		args = append(args, h.ID, h.ShowID, seat, i)
	}
	if _, err := t.tx.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateHold
		}
		return fmt.Errorf("insert hold seats: %w", err)
	}
	return nil
}

func (t *mysqlTx) GetHoldForUpdate(ctx context.Context, id string) (*model.Hold, error) {
	return getHold(ctx, t.tx, id, true)
}

// UpdateHoldStatus is a conditional UPDATE; the status and expiry guards
// are evaluated by the database at write time.
func (t *mysqlTx) UpdateHoldStatus(ctx context.Context, id string, from, to model.HoldStatus, cond StatusCondition) (bool, error) {
	query := `UPDATE bookings SET status = ?`
	args := []interface{}{string(to)}
	if to == model.HoldStatusConfirmed {
		query += `, confirmed_at = ?`
		args = append(args, cond.Now.UTC())
	}
	query += ` WHERE id = ? AND status = ?`
	args = append(args, id, string(from))
	if cond.RequireUnexpired {
		query += ` AND expires_at > ?`
		args = append(args, cond.Now.UTC())
	}
	if cond.RequireExpired {
		query += ` AND expires_at <= ?`
		args = append(args, cond.Now.UTC())
	}
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update hold status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update hold status: %w", err)
	}
	return n == 1, nil
}

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func getShow(ctx context.Context, q queryer, id uint64, forUpdate bool) (*model.Show, error) {
	query := `SELECT id, title, category, starts_at, total_seats, available_seats, price_cents, created_at
	          FROM shows WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var s model.Show
	err := q.QueryRowContext(ctx, query, id).Scan(
		&s.ID, &s.Title, &s.Category, &s.StartsAt,
		&s.TotalSeats, &s.AvailableSeats, &s.PriceCents, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrShowNotFound
		}
		return nil, fmt.Errorf("get show: %w", err)
	}
	return &s, nil
}

const holdColumns = `id, show_id, seat_labels, status, total_amount_cents,
	contact_name, contact_email, created_at, expires_at, confirmed_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHold(row rowScanner) (*model.Hold, error) {
	var h model.Hold
	var labels, status string
	var confirmedAt sql.NullTime
	if err := row.Scan(&h.ID, &h.ShowID, &labels, &status, &h.TotalAmountCents,
		&h.Contact.Name, &h.Contact.Email, &h.CreatedAt, &h.ExpiresAt, &confirmedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(labels), &h.Seats); err != nil {
		return nil, fmt.Errorf("decode seats of hold %s: %w", h.ID, err)
	}
	h.Status = model.HoldStatus(status)
	if confirmedAt.Valid {
		t := confirmedAt.Time.UTC()
		h.ConfirmedAt = &t
	}
	return &h, nil
}

func scanHolds(rows *sql.Rows) ([]model.Hold, error) {
	var holds []model.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, err
		}
		holds = append(holds, *h)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return holds, nil
}

func getHold(ctx context.Context, q queryer, id string, forUpdate bool) (*model.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM bookings WHERE id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	h, err := scanHold(q.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrHoldNotFound
		}
		return nil, fmt.Errorf("get hold: %w", err)
	}
	return h, nil
}

// MySQL error numbers the store cares about.
const (
	errDupEntry        = 1062
	errLockWaitTimeout = 1205
	errLockDeadlock    = 1213
)

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == errDupEntry
}

// IsTransient reports whether err is a lock wait timeout or deadlock
// that InnoDB resolved by aborting the transaction.  Retrying the whole
// transaction is safe.
func IsTransient(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == errLockDeadlock || me.Number == errLockWaitTimeout
	}
	return errors.Is(err, mysql.ErrInvalidConn)
}

// placeholders returns "?,?,...,?" with n markers.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
