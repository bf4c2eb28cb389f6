package bostahttp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"repairhub/internal/apperrors"
)

func TestClient_GetShipment_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/deliveries/business/TRK100", r.URL.Path)
		require.Equal(t, "Bearer demo-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "data": {
    "_id": "abc123",
    "trackingNumber": "TRK100",
    "cod": 250,
    "maskedState": "In Transit",
    "receiver": {"fullName": "Jane Roe", "phone": "0100000000", "secondPhone": "0111111111"},
    "dropOffAddress": {
      "firstLine": "12 Example St",
      "city": {"name": "Cairo"},
      "zone": {"name": "Nasr City"}
    },
    "specs": {"packageDetails": {"description": "Laptop", "itemsCount": 2}},
    "type": {"value": "Deliver"},
    "state": {"value": "In Transit"}
  }
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo-token")
	sh, err := c.GetShipment(context.Background(), "TRK100")
	require.NoError(t, err)
	require.Equal(t, "TRK100", sh.TrackingNumber)
	require.Equal(t, "abc123", sh.CarrierID)
	require.Equal(t, "Jane Roe", sh.CustomerName)
	require.Equal(t, 250.0, sh.CODAmount)
	require.Equal(t, "Laptop", sh.PackageDescription)
	require.Equal(t, 2, sh.ItemsCount)
	require.Equal(t, "Cairo", sh.City)
	require.Equal(t, "12 Example St, Nasr City, Cairo", sh.DropoffAddress)
	require.False(t, sh.IsReturnOrder)
}

func TestClient_GetShipment_CustomerReturnUsesReturnSpecs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
  "data": {
    "trackingNumber": "TRK200",
    "type": {"value": "Customer Return Pickup"},
    "specs": {"packageDetails": {"description": "original", "itemsCount": 1}},
    "returnSpecs": {"packageDetails": {"description": "returned item", "itemsCount": 3}}
  }
}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "demo-token")
	sh, err := c.GetShipment(context.Background(), "TRK200")
	require.NoError(t, err)
	require.True(t, sh.IsReturnOrder)
	require.Equal(t, "returned item", sh.PackageDescription)
	require.Equal(t, 3, sh.ItemsCount)
}

func TestClient_GetShipment_ReturnDetection(t *testing.T) {
	for _, tc := range []struct {
		body string
		want bool
	}{
		{`{"data": {"type": {"value": "Exchange"}}}`, true},
		{`{"data": {"maskedState": "Fulfilled"}}`, true},
		{`{"data": {"maskedState": "Returned to origin"}}`, true},
		{`{"data": {"type": {"value": "Deliver"}, "maskedState": "In Transit"}}`, false},
	} {
		body := tc.body
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		c := New(srv.URL, "t")
		sh, err := c.GetShipment(context.Background(), "X12")
		srv.Close()
		require.NoError(t, err)
		require.Equal(t, tc.want, sh.IsReturnOrder, body)
	}
}

func TestClient_GetShipment_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	_, err := c.GetShipment(context.Background(), "NOPE42")
	require.True(t, apperrors.IsNotFound(err))
}

func TestClient_GetShipment_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := New(srv.URL, "t")
	_, err := c.GetShipment(context.Background(), "ERR42")
	require.Error(t, err)
	require.False(t, apperrors.IsNotFound(err))
}
