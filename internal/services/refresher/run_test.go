package refresher

import (
	"context"
	"testing"
	"time"

	"repairhub/internal/integrations/shipping"
	"repairhub/internal/models"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	calls int
}

func (r *fakeRepo) ClaimDueOrders(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Order, error) {
	r.calls++
	return []*models.Order{}, nil
}

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

type noopCarrier struct{}

func (c noopCarrier) GetShipment(ctx context.Context, trackingNumber string) (shipping.Shipment, error) {
	return shipping.Shipment{}, nil
}

func TestRefresher_Run_StopsOnContextCancel(t *testing.T) {
	repo := &fakeRepo{}
	r := New(repo, noopCarrier{}, noopProducer{}, nil, "t").WithSettings(5*time.Millisecond, 1, 1, 1*time.Second, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := r.Run(ctx)
	require.Error(t, err)
	require.GreaterOrEqual(t, repo.calls, 1)
}
