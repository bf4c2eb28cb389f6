package models

import "time"

type OrderStatus string

const (
	OrderStatusReceived      OrderStatus = "received"
	OrderStatusInMaintenance OrderStatus = "in_maintenance"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusFailed        OrderStatus = "failed"
	OrderStatusSending       OrderStatus = "sending"
	OrderStatusReturned      OrderStatus = "returned"
)

func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusReceived, OrderStatusInMaintenance, OrderStatusCompleted,
		OrderStatusFailed, OrderStatusSending, OrderStatusReturned:
		return true
	}
	return false
}

// AllOrderStatuses lists every status in a stable order (used by summaries).
func AllOrderStatuses() []OrderStatus {
	return []OrderStatus{
		OrderStatusReceived,
		OrderStatusInMaintenance,
		OrderStatusCompleted,
		OrderStatusFailed,
		OrderStatusSending,
		OrderStatusReturned,
	}
}

type MaintenanceAction string

const (
	ActionReceived             MaintenanceAction = "received"
	ActionStartMaintenance     MaintenanceAction = "start_maintenance"
	ActionCompleteMaintenance  MaintenanceAction = "complete_maintenance"
	ActionFailMaintenance      MaintenanceAction = "fail_maintenance"
	ActionReschedule           MaintenanceAction = "reschedule"
	ActionSendOrder            MaintenanceAction = "send_order"
	ActionConfirmSend          MaintenanceAction = "confirm_send"
	ActionReturnOrder          MaintenanceAction = "return_order"
	ActionMoveToReturns        MaintenanceAction = "move_to_returns"
	ActionRefundOrReplace      MaintenanceAction = "refund_or_replace"
	ActionSetReturnCondition   MaintenanceAction = "set_return_condition"
	ActionConfirmRefundReplace MaintenanceAction = "confirm_refund_replace"
)

func (a MaintenanceAction) IsValid() bool {
	switch a {
	case ActionReceived, ActionStartMaintenance, ActionCompleteMaintenance,
		ActionFailMaintenance, ActionReschedule, ActionSendOrder, ActionConfirmSend,
		ActionReturnOrder, ActionMoveToReturns, ActionRefundOrReplace,
		ActionSetReturnCondition, ActionConfirmRefundReplace:
		return true
	}
	return false
}

type ReturnCondition string

const (
	ReturnConditionValid   ReturnCondition = "valid"
	ReturnConditionDamaged ReturnCondition = "damaged"
)

func (c ReturnCondition) IsValid() bool {
	return c == ReturnConditionValid || c == ReturnConditionDamaged
}

// Opposite is what a returned order may still be flipped to.
func (c ReturnCondition) Opposite() ReturnCondition {
	if c == ReturnConditionValid {
		return ReturnConditionDamaged
	}
	return ReturnConditionValid
}

// ActionData is the structured payload attached to a history entry.
// Only the fields relevant to the recorded action are set.
type ActionData struct {
	NewTrackingNumber         string           `json:"new_tracking_number,omitempty"`
	NewCOD                    *float64         `json:"new_cod,omitempty"`
	RefundAmount              *float64         `json:"refund_amount,omitempty"`
	ReplacementTrackingNumber string           `json:"replacement_tracking_number,omitempty"`
	ReturnCondition           *ReturnCondition `json:"return_condition,omitempty"`
	ServiceActionID           *uint64          `json:"service_action_id,omitempty"`
}

func (d ActionData) IsZero() bool {
	return d.NewTrackingNumber == "" && d.NewCOD == nil && d.RefundAmount == nil &&
		d.ReplacementTrackingNumber == "" && d.ReturnCondition == nil && d.ServiceActionID == nil
}

// HistoryEntry is an immutable audit record of one order transition.
// The writer marks system-generated entries explicitly instead of
// inferring it from note text.
type HistoryEntry struct {
	ID                uint64            `json:"id"`
	OrderID           uint64            `json:"order_id"`
	Action            MaintenanceAction `json:"action"`
	Notes             string            `json:"notes"`
	UserName          string            `json:"user"`
	ActionData        ActionData        `json:"action_data"`
	IsSystemGenerated bool              `json:"is_system_generated"`
	Timestamp         time.Time         `json:"timestamp"`
	CreatedAt         time.Time         `json:"created_at"`
}

type Order struct {
	ID             uint64      `json:"id"`
	TrackingNumber string      `json:"tracking_number"`
	CarrierID      string      `json:"carrier_id,omitempty"`
	Status         OrderStatus `json:"status"`

	ReturnCondition   *ReturnCondition `json:"return_condition,omitempty"`
	IsReturnOrder     bool             `json:"is_return_order"`
	IsRefundOrReplace bool             `json:"is_refund_or_replace"`
	IsActionCompleted bool             `json:"is_action_completed"`

	// Set when the order was created by the integration bridge.
	IsServiceOrder  bool    `json:"is_service_order"`
	ServiceActionID *uint64 `json:"service_action_id,omitempty"`

	CustomerName        string `json:"customer_name"`
	CustomerPhone       string `json:"customer_phone"`
	CustomerSecondPhone string `json:"customer_second_phone,omitempty"`

	PickupAddress  string `json:"pickup_address,omitempty"`
	DropoffAddress string `json:"dropoff_address,omitempty"`
	City           string `json:"city,omitempty"`
	Zone           string `json:"zone,omitempty"`

	CODAmount    float64  `json:"cod_amount"`
	NewCODAmount *float64 `json:"new_cod_amount,omitempty"`

	PackageDescription string `json:"package_description,omitempty"`
	ItemsCount         int    `json:"items_count"`

	OrderType     string `json:"order_type,omitempty"`
	ShippingState string `json:"shipping_state,omitempty"`

	// Assigned when a replacement shipment supersedes the original one.
	NewTrackingNumber *string `json:"new_tracking_number,omitempty"`

	ScannedAt              time.Time  `json:"scanned_at"`
	ReceivedAt             *time.Time `json:"received_at,omitempty"`
	MaintenanceStartedAt   *time.Time `json:"maintenance_started_at,omitempty"`
	MaintenanceCompletedAt *time.Time `json:"maintenance_completed_at,omitempty"`
	MaintenanceFailedAt    *time.Time `json:"maintenance_failed_at,omitempty"`
	SentAt                 *time.Time `json:"sent_at,omitempty"`
	RescheduledAt          *time.Time `json:"rescheduled_at,omitempty"`
	ReturnedAt             *time.Time `json:"returned_at,omitempty"`

	NextRefreshAt      time.Time `json:"next_refresh_at"`
	RefreshFailCount   int32     `json:"refresh_fail_count"`
	LastRefreshError   *string   `json:"last_refresh_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Appended in timestamp order, oldest first.
	History []*HistoryEntry `json:"history,omitempty"`
}
