package messages

import "time"

// Topics carried by the hub broker.
const (
	TopicOrderUpdated      = "repairhub.order.updated"
	TopicShippingRefreshed = "repairhub.shipping.refreshed"
)

// OrderUpdated is published by the API after every accepted transition.
type OrderUpdated struct {
	OrderID        uint64 `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`

	Action     string `json:"action"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`

	UserName          string `json:"user,omitempty"`
	IsSystemGenerated bool   `json:"is_system_generated,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

// ShippingRefreshed is published by the worker after polling the carrier.
type ShippingRefreshed struct {
	OrderID        uint64 `json:"order_id"`
	TrackingNumber string `json:"tracking_number"`

	ShippingState string    `json:"shipping_state,omitempty"`
	CheckedAt     time.Time `json:"checked_at"`
	NextRefreshAt time.Time `json:"next_refresh_at"`

	Error *string `json:"error,omitempty"`
}
