package pghub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"
)

const serviceActionColumns = `
  id, action_type, status,
  original_tracking_number, new_tracking_number,
  customer_name, customer_phone, customer_second_phone,
  product_id, part_id, refund_amount, notes,
  is_integrated, maintenance_order_id,
  confirmed_at, pending_receive_at, integrated_at, closed_at,
  created_at, updated_at`

func scanServiceAction(sc rowScanner) (*models.ServiceAction, error) {
	var a models.ServiceAction
	if err := sc.Scan(
		&a.ID, &a.ActionType, &a.Status,
		&a.OriginalTrackingNumber, &a.NewTrackingNumber,
		&a.CustomerName, &a.CustomerPhone, &a.CustomerSecondPhone,
		&a.ProductID, &a.PartID, &a.RefundAmount, &a.Notes,
		&a.IsIntegrated, &a.MaintenanceOrderID,
		&a.ConfirmedAt, &a.PendingReceiveAt, &a.IntegratedAt, &a.ClosedAt,
		&a.CreatedAt, &a.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &a, nil
}

func collectServiceActions(rows pgx.Rows) ([]*models.ServiceAction, error) {
	defer rows.Close()

	var out []*models.ServiceAction
	for rows.Next() {
		a, err := scanServiceAction(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan service action")
		}
		out = append(out, a)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) CreateServiceAction(ctx context.Context, in models.ServiceActionCreateInput) (*models.ServiceAction, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var id uint64
	err = tx.QueryRow(ctx, `
INSERT INTO service_actions (
  action_type, status, original_tracking_number,
  customer_name, customer_phone, customer_second_phone,
  product_id, part_id, refund_amount, notes,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)
RETURNING id
`,
		in.ActionType, models.ServiceStatusCreated, in.OriginalTrackingNumber,
		in.CustomerName, in.CustomerPhone, in.CustomerSecondPhone,
		in.ProductID, in.PartID, in.RefundAmount, in.Notes,
		now,
	).Scan(&id)
	if err != nil {
		return nil, errors.Wrap(err, "insert service action")
	}

	if err := insertServiceHistoryTx(ctx, tx, &models.ServiceHistoryEntry{
		ServiceActionID: id,
		Event:           "create",
		ToStatus:        models.ServiceStatusCreated,
		Notes:           in.Notes,
	}, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetServiceAction(ctx, id)
}

func insertServiceHistoryTx(ctx context.Context, tx pgx.Tx, e *models.ServiceHistoryEntry, now time.Time) error {
	var payload any
	if !e.ActionData.IsZero() {
		b, err := json.Marshal(e.ActionData)
		if err != nil {
			return errors.Wrap(err, "marshal action data")
		}
		payload = json.RawMessage(b)
	}

	_, err := tx.Exec(ctx, `
INSERT INTO service_action_history (
  service_action_id, event, from_status, to_status, notes, user_name, action_data, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, e.ServiceActionID, e.Event, e.FromStatus, e.ToStatus, e.Notes, e.UserName, payload, now)
	return errors.Wrap(err, "insert service history entry")
}

func (s *Storage) GetServiceAction(ctx context.Context, id uint64) (*models.ServiceAction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+serviceActionColumns+` FROM service_actions WHERE id = $1`, id)
	a, err := scanServiceAction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "service action", Ref: "id"}
		}
		return nil, errors.Wrap(err, "select service action")
	}
	return a, nil
}

func (s *Storage) GetServiceActionByNewTracking(ctx context.Context, trackingNumber string) (*models.ServiceAction, error) {
	row := s.db.QueryRow(ctx, `SELECT `+serviceActionColumns+` FROM service_actions WHERE new_tracking_number = $1`, trackingNumber)
	a, err := scanServiceAction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "service action", Ref: trackingNumber}
		}
		return nil, errors.Wrap(err, "select service action by tracking")
	}
	return a, nil
}

// ListServiceActions filters by status and/or customer phone, newest first.
func (s *Storage) ListServiceActions(ctx context.Context, status *models.ServiceActionStatus, phone string, limit, offset int) ([]*models.ServiceAction, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.Query(ctx, `
SELECT `+serviceActionColumns+`
FROM service_actions
WHERE ($1::text IS NULL OR status = $1)
  AND ($2 = '' OR customer_phone = $2)
ORDER BY created_at DESC
LIMIT $3 OFFSET $4
`, status, phone, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select service actions")
	}
	return collectServiceActions(rows)
}

func (s *Storage) ListServiceHistory(ctx context.Context, serviceActionID uint64) ([]*models.ServiceHistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, service_action_id, event, from_status, to_status, notes, user_name, action_data, created_at
FROM service_action_history
WHERE service_action_id = $1
ORDER BY created_at ASC, id ASC
`, serviceActionID)
	if err != nil {
		return nil, errors.Wrap(err, "select service history")
	}
	defer rows.Close()

	var out []*models.ServiceHistoryEntry
	for rows.Next() {
		var e models.ServiceHistoryEntry
		var payload []byte
		if err := rows.Scan(
			&e.ID, &e.ServiceActionID, &e.Event, &e.FromStatus, &e.ToStatus,
			&e.Notes, &e.UserName, &payload, &e.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan service history entry")
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

func (s *Storage) CountServiceActionsByStatus(ctx context.Context) (map[models.ServiceActionStatus]int, error) {
	rows, err := s.db.Query(ctx, `SELECT status, COUNT(*) FROM service_actions GROUP BY status`)
	if err != nil {
		return nil, errors.Wrap(err, "count service actions")
	}
	defer rows.Close()

	out := make(map[models.ServiceActionStatus]int)
	for rows.Next() {
		var status models.ServiceActionStatus
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

// ServiceActionUpdate carries the fields an operator may still edit.
// Nil leaves the stored value untouched.
type ServiceActionUpdate struct {
	CustomerName        *string
	CustomerPhone       *string
	CustomerSecondPhone *string
	ProductID           *uint64
	PartID              *uint64
	RefundAmount        *float64
	Notes               *string
}

// UpdateServiceAction edits a service action that has not been confirmed
// yet. Once the action leaves created its payload is frozen.
func (s *Storage) UpdateServiceAction(ctx context.Context, id uint64, upd ServiceActionUpdate) (*models.ServiceAction, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current models.ServiceActionStatus
	err = tx.QueryRow(ctx, `SELECT status FROM service_actions WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "service action", Ref: "id"}
		}
		return nil, errors.Wrap(err, "lock service action")
	}
	if current != models.ServiceStatusCreated {
		return nil, &apperrors.InvalidTransitionError{
			Action: "update",
			From:   string(current),
			Reason: "only editable while created",
		}
	}

	_, err = tx.Exec(ctx, `
UPDATE service_actions
SET
  customer_name = COALESCE($2, customer_name),
  customer_phone = COALESCE($3, customer_phone),
  customer_second_phone = COALESCE($4, customer_second_phone),
  product_id = COALESCE($5, product_id),
  part_id = COALESCE($6, part_id),
  refund_amount = COALESCE($7, refund_amount),
  notes = COALESCE($8, notes),
  updated_at = now()
WHERE id = $1
`, id, upd.CustomerName, upd.CustomerPhone, upd.CustomerSecondPhone,
		upd.ProductID, upd.PartID, upd.RefundAmount, upd.Notes)
	if err != nil {
		return nil, errors.Wrap(err, "update service action")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetServiceAction(ctx, id)
}

// ServiceTransition is one atomic status move for a service action.
type ServiceTransition struct {
	ServiceActionID uint64
	ExpectedStatus  models.ServiceActionStatus
	NewStatus       models.ServiceActionStatus

	// Set on confirm: the replacement shipment's tracking number.
	NewTrackingNumber *string

	Entry *models.ServiceHistoryEntry
}

var serviceStampColumns = map[models.ServiceActionStatus]string{
	models.ServiceStatusConfirmed:      "confirmed_at",
	models.ServiceStatusPendingReceive: "pending_receive_at",
	models.ServiceStatusCompleted:      "closed_at",
	models.ServiceStatusFailed:         "closed_at",
	models.ServiceStatusCancelled:      "closed_at",
}

func (s *Storage) AppendServiceTransition(ctx context.Context, tr ServiceTransition) (*models.ServiceAction, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current models.ServiceActionStatus
	err = tx.QueryRow(ctx, `SELECT status FROM service_actions WHERE id = $1 FOR UPDATE`, tr.ServiceActionID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &apperrors.NotFoundError{Resource: "service action", Ref: "id"}
		}
		return nil, errors.Wrap(err, "lock service action")
	}
	if current != tr.ExpectedStatus {
		return nil, &apperrors.InvalidTransitionError{
			Action: tr.Entry.Event,
			From:   string(current),
			Reason: "service action was modified concurrently",
		}
	}

	_, err = tx.Exec(ctx, `
UPDATE service_actions
SET
  status = $2,
  new_tracking_number = COALESCE($3, new_tracking_number),
  updated_at = now()
WHERE id = $1
`, tr.ServiceActionID, tr.NewStatus, tr.NewTrackingNumber)
	if err != nil {
		return nil, errors.Wrap(err, "update service action")
	}

	if col, ok := serviceStampColumns[tr.NewStatus]; ok {
		_, err = tx.Exec(ctx, `UPDATE service_actions SET `+col+` = $2 WHERE id = $1`, tr.ServiceActionID, now)
		if err != nil {
			return nil, errors.Wrap(err, "stamp service action")
		}
	}

	tr.Entry.ServiceActionID = tr.ServiceActionID
	tr.Entry.FromStatus = &current
	tr.Entry.ToStatus = tr.NewStatus
	if err := insertServiceHistoryTx(ctx, tx, tr.Entry, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}

	return s.GetServiceAction(ctx, tr.ServiceActionID)
}

// ServiceIntegration links a freshly scanned replacement shipment to its
// service action and creates the maintenance order, all in one tx.
type ServiceIntegration struct {
	TrackingNumber string

	Order        *models.Order
	OrderEntry   *models.HistoryEntry
	ServiceEntry *models.ServiceHistoryEntry
}

// IntegrateServiceOrder is the first-scan-wins claim. The service action row
// is locked, the claim is re-checked under the lock, and a second scanner
// gets DuplicateBindingError with nothing written.
func (s *Storage) IntegrateServiceOrder(ctx context.Context, in ServiceIntegration) (*models.Order, *models.ServiceAction, error) {
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var saID uint64
	var saStatus models.ServiceActionStatus
	var boundOrderID *uint64
	err = tx.QueryRow(ctx, `
SELECT id, status, maintenance_order_id
FROM service_actions
WHERE new_tracking_number = $1
FOR UPDATE
`, in.TrackingNumber).Scan(&saID, &saStatus, &boundOrderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, &apperrors.NotFoundError{Resource: "service action", Ref: in.TrackingNumber}
		}
		return nil, nil, errors.Wrap(err, "lock service action")
	}
	if boundOrderID != nil {
		return nil, nil, &apperrors.DuplicateBindingError{TrackingNumber: in.TrackingNumber}
	}

	in.Order.ServiceActionID = &saID
	in.Order.IsServiceOrder = true
	orderID, err := insertOrderTx(ctx, tx, in.Order, now)
	if err != nil {
		return nil, nil, err
	}

	if in.OrderEntry != nil {
		in.OrderEntry.OrderID = orderID
		if in.OrderEntry.ActionData.ServiceActionID == nil {
			in.OrderEntry.ActionData.ServiceActionID = &saID
		}
		if err := insertHistoryTx(ctx, tx, in.OrderEntry, now); err != nil {
			return nil, nil, err
		}
	}

	// Conditional claim; the WHERE re-checks what we saw under the lock.
	// The status is left alone: physical receipt and administrative
	// completion are independent facts.
	tag, err := tx.Exec(ctx, `
UPDATE service_actions
SET
  is_integrated = TRUE,
  maintenance_order_id = $2,
  integrated_at = $3,
  updated_at = now()
WHERE id = $1 AND maintenance_order_id IS NULL
`, saID, orderID, now)
	if err != nil {
		return nil, nil, errors.Wrap(err, "claim service action")
	}
	if tag.RowsAffected() == 0 {
		return nil, nil, &apperrors.DuplicateBindingError{TrackingNumber: in.TrackingNumber}
	}

	if in.ServiceEntry != nil {
		in.ServiceEntry.ServiceActionID = saID
		in.ServiceEntry.FromStatus = &saStatus
		in.ServiceEntry.ToStatus = saStatus
		if err := insertServiceHistoryTx(ctx, tx, in.ServiceEntry, now); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "commit tx")
	}

	o, err := s.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	a, err := s.GetServiceAction(ctx, saID)
	if err != nil {
		return nil, nil, err
	}
	return o, a, nil
}
