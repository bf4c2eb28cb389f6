package kafka

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	"repairhub/internal/broker/messages"
)

type fakeWriter struct {
	last []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.last = append([]kafka.Message{}, msgs...)
	return w.err
}

func TestProducer_Publish_OrderUpdated(t *testing.T) {
	fw := &fakeWriter{}
	p := newProducerWithWriter(fw)

	payload, err := json.Marshal(messages.OrderUpdated{
		OrderID:        7,
		TrackingNumber: "TRK100",
		Action:         "start_maintenance",
		FromStatus:     "received",
		ToStatus:       "in_maintenance",
	})
	require.NoError(t, err)

	require.NoError(t, p.Publish(context.Background(), messages.TopicOrderUpdated, []byte("TRK100"), payload))
	require.Len(t, fw.last, 1)
	require.Equal(t, messages.TopicOrderUpdated, fw.last[0].Topic)
	require.Equal(t, []byte("TRK100"), fw.last[0].Key)

	var got messages.OrderUpdated
	require.NoError(t, json.Unmarshal(fw.last[0].Value, &got))
	require.Equal(t, uint64(7), got.OrderID)
	require.Equal(t, "in_maintenance", got.ToStatus)
}
