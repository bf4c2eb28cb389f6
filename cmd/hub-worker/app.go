package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"repairhub/config"
	"repairhub/internal/broker/kafka"
	"repairhub/internal/cache/rediscache"
	"repairhub/internal/integrations/shipping"
	"repairhub/internal/integrations/shipping/bostahttp"
	"repairhub/internal/integrations/shipping/fake"
	"repairhub/internal/services/refresher"
	"repairhub/internal/storage/pghub"
)

type workerFactories struct {
	newStorage       func(cfg *config.Config) (repo refresher.Repository, closeFn func(), err error)
	newProducer      func(cfg *config.Config) refresher.Producer
	newRateLimiter   func(cfg *config.Config) refresher.RateLimiter
	newCarrierClient func(cfg *config.Config) shipping.Client
}

func defaultWorkerFactories() workerFactories {
	return workerFactories{
		newStorage: func(cfg *config.Config) (refresher.Repository, func(), error) {
			sslMode := cfg.Database.SSLMode
			if sslMode == "" {
				sslMode = "disable"
			}
			connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
				cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
			st, err := pghub.New(connString)
			if err != nil {
				return nil, nil, err
			}
			return st, st.Close, nil
		},
		newProducer: func(cfg *config.Config) refresher.Producer {
			brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
			return kafka.NewProducer(brokers)
		},
		newRateLimiter: func(cfg *config.Config) refresher.RateLimiter {
			redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
			return rediscache.NewRateLimiter(redisAddr)
		},
		newCarrierClient: func(cfg *config.Config) shipping.Client {
			if cfg.Carrier.BaseURL != "" && cfg.Carrier.Mode != "fake" {
				return bostahttp.New(cfg.Carrier.BaseURL, cfg.Carrier.APIToken)
			}
			return fake.New()
		},
	}
}

func plannerConfigFromHub(hub config.HubConfig) refresher.PlannerConfig {
	return refresher.PlannerConfig{
		SettledDelay:   time.Duration(hub.WorkerRefreshSettledSeconds) * time.Second,
		ActiveMinDelay: time.Duration(hub.WorkerRefreshActiveMinSeconds) * time.Second,
		ActiveMaxDelay: time.Duration(hub.WorkerRefreshActiveMaxSeconds) * time.Second,
		UnknownDelay:   time.Duration(hub.WorkerRefreshUnknownSeconds) * time.Second,
		Backoff1:       time.Duration(hub.WorkerBackoff1Seconds) * time.Second,
		Backoff2:       time.Duration(hub.WorkerBackoff2Seconds) * time.Second,
		Backoff3:       time.Duration(hub.WorkerBackoff3Seconds) * time.Second,
		Backoff4:       time.Duration(hub.WorkerBackoff4Seconds) * time.Second,
	}
}

func RunHubWorker(ctx context.Context, cfg *config.Config, f workerFactories) error {
	topic := cfg.Kafka.ShippingRefreshedTopicName
	if topic == "" {
		topic = "repairhub.shipping.refreshed"
	}

	pollInterval := time.Duration(cfg.Hub.WorkerPollIntervalSeconds) * time.Second
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	batchSize := cfg.Hub.WorkerBatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	concurrency := cfg.Hub.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 10
	}
	lease := time.Duration(cfg.Hub.WorkerLeaseSeconds) * time.Second
	if lease <= 0 {
		lease = 120 * time.Second
	}
	rlPerMin := int64(cfg.Hub.WorkerRateLimitPerMinute)
	if rlPerMin <= 0 {
		rlPerMin = 120
	}

	repo, closeFn, err := f.newStorage(cfg)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}

	producer := f.newProducer(cfg)
	rl := f.newRateLimiter(cfg)
	carrierClient := f.newCarrierClient(cfg)

	ref := refresher.New(repo, carrierClient, producer, rl, topic).
		WithSettings(pollInterval, batchSize, concurrency, lease, rlPerMin).
		WithPlanner(plannerConfigFromHub(cfg.Hub))

	if cfg.Hub.WorkerHTTPAddr != "" {
		go func() {
			err := runWorkerHTTPServer(ctx, workerHTTPOpts{
				httpAddr:    cfg.Hub.WorkerHTTPAddr,
				swaggerPath: os.Getenv("swaggerPath"),
				refresher:   ref,
				cfg:         cfg,
			})
			if err != nil && err != context.Canceled {
				slog.Error("worker http server", "error", err.Error())
			}
		}()
	}

	return ref.Run(ctx)
}
