package shipping

import "context"

// Shipment is the carrier's view of a delivery, normalized for intake.
type Shipment struct {
	TrackingNumber string
	CarrierID      string

	CustomerName        string
	CustomerPhone       string
	CustomerSecondPhone string

	PickupAddress  string
	DropoffAddress string
	City           string
	Zone           string

	CODAmount          float64
	PackageDescription string
	ItemsCount         int

	OrderType     string
	ShippingState string

	// True for shipments the carrier already flags as heading back from
	// the customer (return pickups and exchanges).
	IsReturnOrder bool
}

type Client interface {
	GetShipment(ctx context.Context, trackingNumber string) (Shipment, error)
}
