package models

import "time"

type ServiceActionType string

const (
	ServiceActionPartReplace        ServiceActionType = "part_replace"
	ServiceActionFullReplace        ServiceActionType = "full_replace"
	ServiceActionReturnFromCustomer ServiceActionType = "return_from_customer"
)

func (t ServiceActionType) IsValid() bool {
	switch t {
	case ServiceActionPartReplace, ServiceActionFullReplace, ServiceActionReturnFromCustomer:
		return true
	}
	return false
}

func (t ServiceActionType) IsReplacement() bool {
	return t == ServiceActionPartReplace || t == ServiceActionFullReplace
}

type ServiceActionStatus string

const (
	ServiceStatusCreated        ServiceActionStatus = "created"
	ServiceStatusConfirmed      ServiceActionStatus = "confirmed"
	ServiceStatusPendingReceive ServiceActionStatus = "pending_receive"
	ServiceStatusCompleted      ServiceActionStatus = "completed"
	ServiceStatusFailed         ServiceActionStatus = "failed"
	ServiceStatusCancelled      ServiceActionStatus = "cancelled"
)

func (s ServiceActionStatus) IsValid() bool {
	switch s {
	case ServiceStatusCreated, ServiceStatusConfirmed, ServiceStatusPendingReceive,
		ServiceStatusCompleted, ServiceStatusFailed, ServiceStatusCancelled:
		return true
	}
	return false
}

func (s ServiceActionStatus) IsFinal() bool {
	return s == ServiceStatusCompleted || s == ServiceStatusFailed || s == ServiceStatusCancelled
}

func AllServiceActionStatuses() []ServiceActionStatus {
	return []ServiceActionStatus{
		ServiceStatusCreated,
		ServiceStatusConfirmed,
		ServiceStatusPendingReceive,
		ServiceStatusCompleted,
		ServiceStatusFailed,
		ServiceStatusCancelled,
	}
}

// ServiceAction is an administrative refund/replacement request. It is
// related to an Order only through NewTrackingNumber; the link is made by
// the integration bridge on scan.
type ServiceAction struct {
	ID         uint64              `json:"id"`
	ActionType ServiceActionType   `json:"action_type"`
	Status     ServiceActionStatus `json:"status"`

	OriginalTrackingNumber string  `json:"original_tracking_number"`
	NewTrackingNumber      *string `json:"new_tracking_number,omitempty"`

	CustomerName        string `json:"customer_name"`
	CustomerPhone       string `json:"customer_phone"`
	CustomerSecondPhone string `json:"customer_second_phone,omitempty"`

	ProductID    *uint64  `json:"product_id,omitempty"`
	PartID       *uint64  `json:"part_id,omitempty"`
	RefundAmount *float64 `json:"refund_amount,omitempty"`
	Notes        string   `json:"notes,omitempty"`

	IsIntegrated       bool    `json:"is_integrated"`
	MaintenanceOrderID *uint64 `json:"maintenance_order_id,omitempty"`

	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	PendingReceiveAt *time.Time `json:"pending_receive_at,omitempty"`
	IntegratedAt     *time.Time `json:"integrated_at,omitempty"`
	ClosedAt         *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServiceHistoryEntry is an immutable record of one service-action transition.
type ServiceHistoryEntry struct {
	ID              uint64               `json:"id"`
	ServiceActionID uint64               `json:"service_action_id"`
	Event           string               `json:"event"`
	FromStatus      *ServiceActionStatus `json:"from_status,omitempty"`
	ToStatus        ServiceActionStatus  `json:"to_status"`
	Notes           string               `json:"notes"`
	UserName        string               `json:"user"`
	ActionData      ActionData           `json:"action_data"`
	CreatedAt       time.Time            `json:"created_at"`
}

// ServiceActionCreateInput carries the caller-supplied fields for creation.
type ServiceActionCreateInput struct {
	ActionType             ServiceActionType
	OriginalTrackingNumber string
	CustomerName           string
	CustomerPhone          string
	CustomerSecondPhone    string
	ProductID              *uint64
	PartID                 *uint64
	RefundAmount           *float64
	Notes                  string
}
