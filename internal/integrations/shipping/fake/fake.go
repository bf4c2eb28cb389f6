package fake

import (
	"context"
	"hash/fnv"
	"strconv"

	"repairhub/internal/integrations/shipping"
)

// FakeClient is a deterministic stand-in for the carrier API, used in dev
// setups and tests. The same tracking number always yields the same
// shipment; a slice of them are return pickups.
type FakeClient struct{}

func New() *FakeClient { return &FakeClient{} }

func (f *FakeClient) GetShipment(ctx context.Context, trackingNumber string) (shipping.Shipment, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(trackingNumber))
	v := h.Sum32()

	sh := shipping.Shipment{
		TrackingNumber:     trackingNumber,
		CarrierID:          "fake-" + trackingNumber,
		CustomerName:       "Customer " + strconv.FormatUint(uint64(v%1000), 10),
		CustomerPhone:      "01" + strconv.FormatUint(uint64(v%100000000), 10),
		City:               "Cairo",
		Zone:               "Nasr City",
		DropoffAddress:     "12 Example St",
		CODAmount:          float64(v % 500),
		PackageDescription: "fake package",
		ItemsCount:         int(v%3) + 1,
		OrderType:          "Deliver",
		ShippingState:      "In Transit",
	}

	// 20% of shipments come back as customer returns
	if v%5 == 0 {
		sh.OrderType = "Customer Return Pickup"
		sh.IsReturnOrder = true
	}

	return sh, nil
}
