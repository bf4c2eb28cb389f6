package bostahttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"repairhub/internal/apperrors"
	"repairhub/internal/integrations/shipping"
)

type Client struct {
	baseURL string
	token   string
	httpc   *http.Client
}

func New(baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = "https://app.bosta.co/api/v2"
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type bostaAddress struct {
	FirstLine  string `json:"firstLine"`
	SecondLine string `json:"secondLine"`
	City       struct {
		Name string `json:"name"`
	} `json:"city"`
	Zone struct {
		Name string `json:"name"`
	} `json:"zone"`
}

type bostaPackageDetails struct {
	Description string `json:"description"`
	ItemsCount  int    `json:"itemsCount"`
}

type bostaResp struct {
	Data struct {
		ID             string  `json:"_id"`
		TrackingNumber string  `json:"trackingNumber"`
		COD            float64 `json:"cod"`
		MaskedState    string  `json:"maskedState"`

		Receiver struct {
			FullName    string `json:"fullName"`
			Phone       string `json:"phone"`
			SecondPhone string `json:"secondPhone"`
		} `json:"receiver"`

		PickupAddress  bostaAddress `json:"pickupAddress"`
		DropOffAddress bostaAddress `json:"dropOffAddress"`

		Specs struct {
			PackageDetails bostaPackageDetails `json:"packageDetails"`
		} `json:"specs"`
		ReturnSpecs struct {
			PackageDetails bostaPackageDetails `json:"packageDetails"`
		} `json:"returnSpecs"`

		Type struct {
			Value string `json:"value"`
		} `json:"type"`
		State struct {
			Value string `json:"value"`
		} `json:"state"`
	} `json:"data"`
}

func (c *Client) GetShipment(ctx context.Context, trackingNumber string) (shipping.Shipment, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return shipping.Shipment{}, errors.Wrap(err, "parse base url")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/deliveries/business/" + url.PathEscape(trackingNumber)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return shipping.Shipment{}, errors.Wrap(err, "new request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return shipping.Shipment{}, errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return shipping.Shipment{}, &apperrors.NotFoundError{Resource: "shipment", Ref: trackingNumber}
	case resp.StatusCode == http.StatusUnauthorized:
		return shipping.Shipment{}, fmt.Errorf("carrier auth rejected (http %d)", resp.StatusCode)
	case resp.StatusCode/100 != 2:
		return shipping.Shipment{}, fmt.Errorf("carrier http %d", resp.StatusCode)
	}

	var r bostaResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return shipping.Shipment{}, errors.Wrap(err, "decode")
	}
	d := r.Data

	// Customer returns carry their package details in returnSpecs.
	isCustomerReturn := d.Type.Value == "Customer Return Pickup"
	pkg := d.Specs.PackageDetails
	if isCustomerReturn && d.ReturnSpecs.PackageDetails != (bostaPackageDetails{}) {
		pkg = d.ReturnSpecs.PackageDetails
	} else if pkg == (bostaPackageDetails{}) {
		pkg = d.ReturnSpecs.PackageDetails
	}
	if pkg.ItemsCount == 0 {
		pkg.ItemsCount = 1
	}

	isReturn := isCustomerReturn ||
		d.Type.Value == "Exchange" ||
		d.MaskedState == "Fulfilled" ||
		strings.Contains(strings.ToLower(d.MaskedState), "return")

	tn := d.TrackingNumber
	if tn == "" {
		tn = trackingNumber
	}

	return shipping.Shipment{
		TrackingNumber:      tn,
		CarrierID:           d.ID,
		CustomerName:        d.Receiver.FullName,
		CustomerPhone:       d.Receiver.Phone,
		CustomerSecondPhone: d.Receiver.SecondPhone,
		PickupAddress:       formatAddress(d.PickupAddress),
		DropoffAddress:      formatAddress(d.DropOffAddress),
		City:                d.DropOffAddress.City.Name,
		Zone:                d.DropOffAddress.Zone.Name,
		CODAmount:           d.COD,
		PackageDescription:  pkg.Description,
		ItemsCount:          pkg.ItemsCount,
		OrderType:           d.Type.Value,
		ShippingState:       d.State.Value,
		IsReturnOrder:       isReturn,
	}, nil
}

func formatAddress(a bostaAddress) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{a.FirstLine, a.SecondLine, a.Zone.Name, a.City.Name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}
