package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFakeClient_Deterministic(t *testing.T) {
	f := New()
	ctx := context.Background()

	a, err := f.GetShipment(ctx, "TRK100")
	require.NoError(t, err)
	b, err := f.GetShipment(ctx, "TRK100")
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, "TRK100", a.TrackingNumber)
	require.NotEmpty(t, a.CustomerName)
}

func TestFakeClient_SomeShipmentsAreReturns(t *testing.T) {
	f := New()
	ctx := context.Background()

	returns := 0
	for i := 0; i < 100; i++ {
		sh, err := f.GetShipment(ctx, "TRK"+string(rune('A'+i%26))+string(rune('0'+i%10)))
		require.NoError(t, err)
		if sh.IsReturnOrder {
			require.Equal(t, "Customer Return Pickup", sh.OrderType)
			returns++
		}
	}
	require.Greater(t, returns, 0)
}
