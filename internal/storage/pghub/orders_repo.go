package pghub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"
)

const pgUniqueViolation = "23505"

const orderColumns = `
  id, tracking_number, carrier_id, status, return_condition,
  is_return_order, is_refund_or_replace, is_action_completed, is_service_order, service_action_id,
  customer_name, customer_phone, customer_second_phone,
  pickup_address, dropoff_address, city, zone,
  cod_amount, new_cod_amount,
  package_description, items_count, order_type, shipping_state,
  new_tracking_number,
  scanned_at, received_at, maintenance_started_at, maintenance_completed_at,
  maintenance_failed_at, sent_at, rescheduled_at, returned_at,
  next_refresh_at, refresh_fail_count, last_refresh_error,
  created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(sc rowScanner) (*models.Order, error) {
	var o models.Order
	var returnCondition *string
	if err := sc.Scan(
		&o.ID, &o.TrackingNumber, &o.CarrierID, &o.Status, &returnCondition,
		&o.IsReturnOrder, &o.IsRefundOrReplace, &o.IsActionCompleted, &o.IsServiceOrder, &o.ServiceActionID,
		&o.CustomerName, &o.CustomerPhone, &o.CustomerSecondPhone,
		&o.PickupAddress, &o.DropoffAddress, &o.City, &o.Zone,
		&o.CODAmount, &o.NewCODAmount,
		&o.PackageDescription, &o.ItemsCount, &o.OrderType, &o.ShippingState,
		&o.NewTrackingNumber,
		&o.ScannedAt, &o.ReceivedAt, &o.MaintenanceStartedAt, &o.MaintenanceCompletedAt,
		&o.MaintenanceFailedAt, &o.SentAt, &o.RescheduledAt, &o.ReturnedAt,
		&o.NextRefreshAt, &o.RefreshFailCount, &o.LastRefreshError,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if returnCondition != nil {
		rc := models.ReturnCondition(*returnCondition)
		o.ReturnCondition = &rc
	}
	return &o, nil
}

func collectOrders(rows pgx.Rows) ([]*models.Order, error) {
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan order")
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CreateOrder inserts the order and its first history entry in one tx.
// A tracking number already on file surfaces as DuplicateBindingError.
func (s *Storage) CreateOrder(ctx context.Context, o *models.Order, entry *models.HistoryEntry) (*models.Order, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	id, err := insertOrderTx(ctx, tx, o, now)
	if err != nil {
		return nil, err
	}

	if entry != nil {
		entry.OrderID = id
		if err := insertHistoryTx(ctx, tx, entry, now); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetOrderByID(ctx, id)
}

func insertOrderTx(ctx context.Context, tx pgx.Tx, o *models.Order, now time.Time) (uint64, error) {
	var returnCondition *string
	if o.ReturnCondition != nil {
		s := string(*o.ReturnCondition)
		returnCondition = &s
	}
	scannedAt := o.ScannedAt
	if scannedAt.IsZero() {
		scannedAt = now
	}
	nextRefreshAt := o.NextRefreshAt
	if nextRefreshAt.IsZero() {
		nextRefreshAt = now
	}

	var id uint64
	err := tx.QueryRow(ctx, `
INSERT INTO orders (
  tracking_number, carrier_id, status, return_condition,
  is_return_order, is_refund_or_replace, is_action_completed, is_service_order, service_action_id,
  customer_name, customer_phone, customer_second_phone,
  pickup_address, dropoff_address, city, zone,
  cod_amount, new_cod_amount,
  package_description, items_count, order_type, shipping_state,
  scanned_at, received_at, next_refresh_at, created_at, updated_at
)
VALUES (
  $1,$2,$3,$4,
  $5,$6,$7,$8,$9,
  $10,$11,$12,
  $13,$14,$15,$16,
  $17,$18,
  $19,$20,$21,$22,
  $23,$24,$25,$26,$26
)
RETURNING id
`,
		o.TrackingNumber, o.CarrierID, o.Status, returnCondition,
		o.IsReturnOrder, o.IsRefundOrReplace, o.IsActionCompleted, o.IsServiceOrder, o.ServiceActionID,
		o.CustomerName, o.CustomerPhone, o.CustomerSecondPhone,
		o.PickupAddress, o.DropoffAddress, o.City, o.Zone,
		o.CODAmount, o.NewCODAmount,
		o.PackageDescription, o.ItemsCount, o.OrderType, o.ShippingState,
		scannedAt.UTC(), scannedAt.UTC(), nextRefreshAt.UTC(), now,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return 0, &apperrors.DuplicateBindingError{TrackingNumber: o.TrackingNumber}
		}
		return 0, errors.Wrap(err, "insert order")
	}
	return id, nil
}

func insertHistoryTx(ctx context.Context, tx pgx.Tx, e *models.HistoryEntry, now time.Time) error {
	var payload any
	if !e.ActionData.IsZero() {
		b, err := json.Marshal(e.ActionData)
		if err != nil {
			return errors.Wrap(err, "marshal action data")
		}
		payload = json.RawMessage(b)
	}

	ts := e.Timestamp
	if ts.IsZero() {
		ts = now
	}

	_, err := tx.Exec(ctx, `
INSERT INTO maintenance_history (
  order_id, action, notes, user_name, action_data, is_system_generated, timestamp, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, e.OrderID, e.Action, e.Notes, e.UserName, payload, e.IsSystemGenerated, ts.UTC(), now)
	return errors.Wrap(err, "insert history entry")
}

func (s *Storage) GetOrderByID(ctx context.Context, id uint64) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "order", Ref: "id"}
		}
		return nil, errors.Wrap(err, "select order")
	}

	o.History, err = s.ListOrderHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *Storage) GetOrderByTracking(ctx context.Context, trackingNumber string) (*models.Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE tracking_number = $1`, trackingNumber)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "order", Ref: trackingNumber}
		}
		return nil, errors.Wrap(err, "select order by tracking")
	}

	o.History, err = s.ListOrderHistory(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// ListOrderHistory returns the append-only log oldest first.
func (s *Storage) ListOrderHistory(ctx context.Context, orderID uint64) ([]*models.HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, action, notes, user_name, action_data, is_system_generated, timestamp, created_at
FROM maintenance_history
WHERE order_id = $1
ORDER BY timestamp ASC, id ASC
`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "select history")
	}
	defer rows.Close()

	var out []*models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var payload []byte
		if err := rows.Scan(
			&e.ID, &e.OrderID, &e.Action, &e.Notes, &e.UserName,
			&payload, &e.IsSystemGenerated, &e.Timestamp, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan history entry")
		}
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &e.ActionData); err != nil {
				return nil, errors.Wrap(err, "unmarshal action data")
			}
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListOrdersByStatus pages orders in one status. For the returned status a
// condition filter may be given; rows with no recorded condition count as
// valid.
func (s *Storage) ListOrdersByStatus(ctx context.Context, status models.OrderStatus, condition *models.ReturnCondition, limit, offset int) ([]*models.Order, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	if condition != nil {
		rows, err := s.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE status = $1 AND COALESCE(return_condition, 'valid') = $2
ORDER BY scanned_at DESC
LIMIT $3 OFFSET $4
`, status, string(*condition), limit, offset)
		if err != nil {
			return nil, errors.Wrap(err, "select orders by status and condition")
		}
		return collectOrders(rows)
	}

	rows, err := s.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE status = $1
ORDER BY scanned_at DESC
LIMIT $2 OFFSET $3
`, status, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select orders by status")
	}
	return collectOrders(rows)
}

// SearchOrders matches tracking numbers, customer names and phones,
// case-insensitively, capped at 50 rows.
func (s *Storage) SearchOrders(ctx context.Context, query string) ([]*models.Order, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE tracking_number ILIKE $1
   OR new_tracking_number ILIKE $1
   OR customer_name ILIKE $1
   OR customer_phone ILIKE $1
ORDER BY scanned_at DESC
LIMIT 50
`, pattern)
	if err != nil {
		return nil, errors.Wrap(err, "search orders")
	}
	return collectOrders(rows)
}

func (s *Storage) RecentScans(ctx context.Context, limit int) ([]*models.Order, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
ORDER BY scanned_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select recent scans")
	}
	return collectOrders(rows)
}

func (s *Storage) CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM orders GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "count orders")
	}
	defer rows.Close()

	out := make(map[models.OrderStatus]int)
	for rows.Next() {
		var status models.OrderStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, errors.Wrap(err, "scan count")
		}
		out[status] = n
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// OrderTransition is one atomic read-check-append against an order. The row
// is locked, the status recheck guards against a concurrent writer, the
// order row and the log move together.
type OrderTransition struct {
	OrderID        uint64
	ExpectedStatus models.OrderStatus
	NewStatus      models.OrderStatus

	ReturnCondition     *models.ReturnCondition
	MarkRefundOrReplace bool
	MarkActionCompleted bool
	NewTrackingNumber   *string
	NewCODAmount        *float64

	Entry *models.HistoryEntry
}

// Per-action timestamp columns; built from our own map, never from input.
var actionStampColumns = map[models.MaintenanceAction]string{
	models.ActionStartMaintenance:    "maintenance_started_at",
	models.ActionReschedule:          "rescheduled_at",
	models.ActionCompleteMaintenance: "maintenance_completed_at",
	models.ActionFailMaintenance:     "maintenance_failed_at",
	models.ActionSendOrder:           "sent_at",
	models.ActionConfirmSend:         "sent_at",
	models.ActionMoveToReturns:       "returned_at",
	models.ActionReturnOrder:         "returned_at",
}

func (s *Storage) AppendTransition(ctx context.Context, tr OrderTransition) (*models.Order, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current models.OrderStatus
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, tr.OrderID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "order", Ref: "id"}
		}
		return nil, errors.Wrap(err, "lock order")
	}
	if current != tr.ExpectedStatus {
		return nil, &apperrors.InvalidTransitionError{
			Action: string(tr.Entry.Action),
			From:   string(current),
			Reason: "order was modified concurrently",
		}
	}

	var returnCondition *string
	if tr.ReturnCondition != nil {
		s := string(*tr.ReturnCondition)
		returnCondition = &s
	}

	_, err = tx.Exec(ctx, `
UPDATE orders
SET
  status = $2,
  return_condition = COALESCE($3, return_condition),
  is_refund_or_replace = is_refund_or_replace OR $4,
  is_action_completed = is_action_completed OR $5,
  new_tracking_number = COALESCE($6, new_tracking_number),
  new_cod_amount = COALESCE($7, new_cod_amount),
  updated_at = now()
WHERE id = $1
`, tr.OrderID, tr.NewStatus, returnCondition, tr.MarkRefundOrReplace, tr.MarkActionCompleted,
		tr.NewTrackingNumber, tr.NewCODAmount)
	if err != nil {
		return nil, errors.Wrap(err, "update order")
	}

	if col, ok := actionStampColumns[tr.Entry.Action]; ok {
		_, err = tx.Exec(ctx, `UPDATE orders SET `+col+` = $2 WHERE id = $1`, tr.OrderID, now)
		if err != nil {
			return nil, errors.Wrap(err, "stamp order")
		}
	}

	tr.Entry.OrderID = tr.OrderID
	if err := insertHistoryTx(ctx, tx, tr.Entry, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetOrderByID(ctx, tr.OrderID)
}

// ClaimDueOrders picks a batch of orders whose carrier state is stale and
// leases them so a concurrent worker does not pick them up twice.
// Uses SELECT ... FOR UPDATE SKIP LOCKED.
func (s *Storage) ClaimDueOrders(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Order, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE next_refresh_at <= $1
  AND status <> $2
ORDER BY next_refresh_at ASC
LIMIT $3
FOR UPDATE SKIP LOCKED
`, now.UTC(), models.OrderStatusSending, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select due orders")
	}

	picked, err := collectOrders(rows)
	if err != nil {
		return nil, err
	}

	leaseUntil := now.UTC().Add(lease)
	for _, o := range picked {
		_, err := tx.Exec(ctx, `UPDATE orders SET next_refresh_at = $2, updated_at = now() WHERE id = $1`, o.ID, leaseUntil)
		if err != nil {
			return nil, errors.Wrap(err, "lease order")
		}
		o.NextRefreshAt = leaseUntil
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return picked, nil
}

// ShippingRefresh is the worker's carrier poll result for one order.
type ShippingRefresh struct {
	OrderID   uint64
	CheckedAt time.Time

	ShippingState string
	NextRefreshAt time.Time

	Error *string
}

func (s *Storage) ApplyShippingRefresh(ctx context.Context, upd ShippingRefresh) error {
	if upd.Error != nil && *upd.Error != "" {
		_, err := s.db.Exec(ctx, `
UPDATE orders
SET
  refresh_fail_count = refresh_fail_count + 1,
  last_refresh_error = $2,
  next_refresh_at = $3,
  updated_at = now()
WHERE id = $1
`, upd.OrderID, *upd.Error, upd.NextRefreshAt.UTC())
		return errors.Wrap(err, "update order (refresh error)")
	}

	_, err := s.db.Exec(ctx, `
UPDATE orders
SET
  shipping_state = $2,
  refresh_fail_count = 0,
  last_refresh_error = NULL,
  next_refresh_at = $3,
  updated_at = now()
WHERE id = $1
`, upd.OrderID, upd.ShippingState, upd.NextRefreshAt.UTC())
	return errors.Wrap(err, "update order (refresh ok)")
}

// TriggerRefresh makes one order due immediately.
func (s *Storage) TriggerRefresh(ctx context.Context, orderID uint64) error {
	_, err := s.db.Exec(ctx, `UPDATE orders SET next_refresh_at = now(), updated_at = now() WHERE id = $1`, orderID)
	return errors.Wrap(err, "trigger refresh")
}
