package main

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"repairhub/config"
	"repairhub/internal/integrations/shipping"
	"repairhub/internal/integrations/shipping/bostahttp"
	"repairhub/internal/integrations/shipping/fake"
	"repairhub/internal/models"
	"repairhub/internal/services/refresher"

	"github.com/stretchr/testify/require"
)

type fakeRepo struct{}

func (r *fakeRepo) ClaimDueOrders(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Order, error) {
	return []*models.Order{}, nil
}

type noopProducer struct{}

func (p noopProducer) Publish(ctx context.Context, topic string, key, value []byte) error { return nil }

func TestDefaultWorkerFactories_SelectCarrierClient(t *testing.T) {
	f := defaultWorkerFactories()

	cfgBosta := &config.Config{
		Carrier: config.CarrierConfig{BaseURL: "http://localhost:9000", APIToken: "k"},
	}
	c1 := f.newCarrierClient(cfgBosta)
	_, ok := c1.(*bostahttp.Client)
	require.True(t, ok)

	cfgFake := &config.Config{
		Carrier: config.CarrierConfig{BaseURL: "http://localhost:9000", Mode: "fake"},
	}
	c2 := f.newCarrierClient(cfgFake)
	_, ok = c2.(*fake.FakeClient)
	require.True(t, ok)

	c3 := f.newCarrierClient(&config.Config{})
	_, ok = c3.(*fake.FakeClient)
	require.True(t, ok)
}

func TestDefaultWorkerFactories_ProducerAndRateLimiter_NonNil(t *testing.T) {
	f := defaultWorkerFactories()
	cfg := &config.Config{
		Kafka: config.KafkaConfig{Host: "localhost", Port: 9092},
		Redis: config.RedisConfig{Host: "localhost", Port: 6379},
	}
	require.NotNil(t, f.newProducer(cfg))
	require.NotNil(t, f.newRateLimiter(cfg))
}

func TestRunHubWorker_ContextCanceled(t *testing.T) {
	calledClose := false

	f := workerFactories{
		newStorage: func(cfg *config.Config) (refresher.Repository, func(), error) {
			return &fakeRepo{}, func() { calledClose = true }, nil
		},
		newProducer: func(cfg *config.Config) refresher.Producer {
			return noopProducer{}
		},
		newRateLimiter: func(cfg *config.Config) refresher.RateLimiter {
			return nil
		},
		newCarrierClient: func(cfg *config.Config) shipping.Client {
			return fake.New()
		},
	}

	cfg := &config.Config{
		Kafka: config.KafkaConfig{ShippingRefreshedTopicName: "t"},
		Hub:   config.HubConfig{WorkerPollIntervalSeconds: 1},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunHubWorker(ctx, cfg, f)
	require.ErrorIs(t, err, context.Canceled)
	require.True(t, calledClose)
}

func TestWorkerHTTPServer_StatsAndTrigger(t *testing.T) {
	ref := refresher.New(&fakeRepo{}, fake.New(), noopProducer{}, nil, "t")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	addrCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- runWorkerHTTPServer(ctx, workerHTTPOpts{
			httpAddr:  "127.0.0.1:0",
			onListen:  func(addr string) { addrCh <- addr },
			refresher: ref,
			cfg:       &config.Config{},
		})
	}()

	addr := <-addrCh

	resp, err := http.Get("http://" + addr + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 200, resp.StatusCode)

	var st refresher.Stats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	require.False(t, st.StartedAt.IsZero())

	resp2, err := http.Post("http://"+addr+"/trigger", "application/json", nil)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, 200, resp2.StatusCode)

	resp3, err := http.Get("http://" + addr + "/stats")
	require.NoError(t, err)
	defer resp3.Body.Close()
	require.NoError(t, json.NewDecoder(resp3.Body).Decode(&st))
	require.NotNil(t, st.LastTriggerAt)

	cancel()
	<-errCh
}
