package pghub

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id BIGSERIAL PRIMARY KEY,
  tracking_number TEXT NOT NULL,
  carrier_id TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  return_condition TEXT NULL,
  is_return_order BOOLEAN NOT NULL DEFAULT FALSE,
  is_refund_or_replace BOOLEAN NOT NULL DEFAULT FALSE,
  is_action_completed BOOLEAN NOT NULL DEFAULT FALSE,
  is_service_order BOOLEAN NOT NULL DEFAULT FALSE,
  service_action_id BIGINT NULL,
  customer_name TEXT NOT NULL DEFAULT '',
  customer_phone TEXT NOT NULL DEFAULT '',
  customer_second_phone TEXT NOT NULL DEFAULT '',
  pickup_address TEXT NOT NULL DEFAULT '',
  dropoff_address TEXT NOT NULL DEFAULT '',
  city TEXT NOT NULL DEFAULT '',
  zone TEXT NOT NULL DEFAULT '',
  cod_amount DOUBLE PRECISION NOT NULL DEFAULT 0,
  new_cod_amount DOUBLE PRECISION NULL,
  package_description TEXT NOT NULL DEFAULT '',
  items_count INT NOT NULL DEFAULT 0,
  order_type TEXT NOT NULL DEFAULT '',
  shipping_state TEXT NOT NULL DEFAULT '',
  new_tracking_number TEXT NULL,
  scanned_at TIMESTAMPTZ NOT NULL,
  received_at TIMESTAMPTZ NULL,
  maintenance_started_at TIMESTAMPTZ NULL,
  maintenance_completed_at TIMESTAMPTZ NULL,
  maintenance_failed_at TIMESTAMPTZ NULL,
  sent_at TIMESTAMPTZ NULL,
  rescheduled_at TIMESTAMPTZ NULL,
  returned_at TIMESTAMPTZ NULL,
  next_refresh_at TIMESTAMPTZ NOT NULL,
  refresh_fail_count INT NOT NULL DEFAULT 0,
  last_refresh_error TEXT NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (tracking_number)
)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_scanned_at ON orders(scanned_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_next_refresh_at ON orders(next_refresh_at)`,
		`
CREATE TABLE IF NOT EXISTS maintenance_history (
  id BIGSERIAL PRIMARY KEY,
  order_id BIGINT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  action TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  user_name TEXT NOT NULL DEFAULT '',
  action_data JSONB NULL,
  is_system_generated BOOLEAN NOT NULL DEFAULT FALSE,
  timestamp TIMESTAMPTZ NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_maintenance_history_order_id_timestamp ON maintenance_history(order_id, timestamp ASC)`,
		`
CREATE TABLE IF NOT EXISTS service_actions (
  id BIGSERIAL PRIMARY KEY,
  action_type TEXT NOT NULL,
  status TEXT NOT NULL,
  original_tracking_number TEXT NOT NULL,
  new_tracking_number TEXT NULL,
  customer_name TEXT NOT NULL DEFAULT '',
  customer_phone TEXT NOT NULL DEFAULT '',
  customer_second_phone TEXT NOT NULL DEFAULT '',
  product_id BIGINT NULL,
  part_id BIGINT NULL,
  refund_amount DOUBLE PRECISION NULL,
  notes TEXT NOT NULL DEFAULT '',
  is_integrated BOOLEAN NOT NULL DEFAULT FALSE,
  maintenance_order_id BIGINT NULL,
  confirmed_at TIMESTAMPTZ NULL,
  pending_receive_at TIMESTAMPTZ NULL,
  integrated_at TIMESTAMPTZ NULL,
  closed_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_service_actions_status ON service_actions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_service_actions_customer_phone ON service_actions(customer_phone)`,
		// One service action per replacement shipment; NULLs stay free.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_service_actions_new_tracking ON service_actions(new_tracking_number) WHERE new_tracking_number IS NOT NULL`,
		`
CREATE TABLE IF NOT EXISTS service_action_history (
  id BIGSERIAL PRIMARY KEY,
  service_action_id BIGINT NOT NULL REFERENCES service_actions(id) ON DELETE CASCADE,
  event TEXT NOT NULL,
  from_status TEXT NULL,
  to_status TEXT NOT NULL,
  notes TEXT NOT NULL DEFAULT '',
  user_name TEXT NOT NULL DEFAULT '',
  action_data JSONB NULL,
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_service_action_history_action_id ON service_action_history(service_action_id, created_at ASC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
