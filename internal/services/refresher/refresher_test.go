package refresher

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"repairhub/internal/broker/messages"
	"repairhub/internal/integrations/shipping"
	"repairhub/internal/models"

	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	topic string
	key   []byte
	value []byte
	calls int
	err   error
}

func (p *fakeProducer) Publish(ctx context.Context, topic string, key, value []byte) error {
	p.calls++
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

type fakeRL struct {
	allowed bool
	count   int64
	err     error
}

func (r fakeRL) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	return r.allowed, r.count, r.err
}

type fakeCarrier struct {
	res shipping.Shipment
	err error
}

func (c fakeCarrier) GetShipment(ctx context.Context, trackingNumber string) (shipping.Shipment, error) {
	return c.res, c.err
}

func TestRefresher_processOne_okPublishes(t *testing.T) {
	fp := &fakeProducer{}
	r := New(nil, fakeCarrier{
		res: shipping.Shipment{
			TrackingNumber: "TRK100",
			ShippingState:  "In Transit",
		},
	}, fp, fakeRL{allowed: true}, messages.TopicShippingRefreshed)

	o := &models.Order{ID: 42, TrackingNumber: "TRK100"}
	require.NoError(t, r.processOne(context.Background(), o))
	require.Equal(t, 1, fp.calls)
	require.Equal(t, messages.TopicShippingRefreshed, fp.topic)
	require.Equal(t, []byte("42"), fp.key)

	var msg messages.ShippingRefreshed
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.Equal(t, uint64(42), msg.OrderID)
	require.Equal(t, "TRK100", msg.TrackingNumber)
	require.Equal(t, "In Transit", msg.ShippingState)
	require.Nil(t, msg.Error)
	require.False(t, msg.NextRefreshAt.IsZero())
}

func TestRefresher_processOne_errorBackoff(t *testing.T) {
	fp := &fakeProducer{}
	r := New(nil, fakeCarrier{err: errors.New("boom")}, fp, nil, messages.TopicShippingRefreshed)

	o := &models.Order{ID: 7, TrackingNumber: "TRK7", RefreshFailCount: 2}
	require.NoError(t, r.processOne(context.Background(), o))
	require.Equal(t, 1, fp.calls)

	var msg messages.ShippingRefreshed
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	require.NotNil(t, msg.Error)
	require.Equal(t, "boom", *msg.Error)
	require.Empty(t, msg.ShippingState)
	// Third consecutive failure lands in the 30 minute backoff tier.
	expected := msg.CheckedAt.Add(30 * time.Minute)
	require.WithinDuration(t, expected, msg.NextRefreshAt, time.Second)
}

func TestRefresher_processOne_settledStateGetsLongDelay(t *testing.T) {
	fp := &fakeProducer{}
	r := New(nil, fakeCarrier{
		res: shipping.Shipment{ShippingState: "Delivered"},
	}, fp, nil, messages.TopicShippingRefreshed)

	o := &models.Order{ID: 1, TrackingNumber: "TRK1"}
	require.NoError(t, r.processOne(context.Background(), o))

	var msg messages.ShippingRefreshed
	require.NoError(t, json.Unmarshal(fp.value, &msg))
	expected := msg.CheckedAt.Add(30 * 24 * time.Hour)
	require.WithinDuration(t, expected, msg.NextRefreshAt, time.Second)
}

func TestRefresher_WithSettings(t *testing.T) {
	fp := &fakeProducer{}
	r := New(nil, fakeCarrier{}, fp, nil, "t").
		WithSettings(5*time.Second, 7, 9, 11*time.Second, 13)
	require.Equal(t, 5*time.Second, r.pollInterval)
	require.Equal(t, 7, r.batchSize)
	require.Equal(t, 9, r.concurrency)
	require.Equal(t, 11*time.Second, r.lease)
	require.Equal(t, int64(13), r.rateLimitPerMinute)
}
