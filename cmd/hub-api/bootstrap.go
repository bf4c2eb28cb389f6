package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"repairhub/config"
	"repairhub/internal/broker/kafka"
	"repairhub/internal/cache/rediscache"
	"repairhub/internal/integrations/shipping"
	"repairhub/internal/integrations/shipping/bostahttp"
	"repairhub/internal/integrations/shipping/fake"
	"repairhub/internal/services/orders"
	"repairhub/internal/services/serviceactions"
	"repairhub/internal/storage/pghub"
)

type hubAPIApp struct {
	ctx      context.Context
	cancel   context.CancelFunc
	opts     hubAPIOpts
	orders   *orders.Service
	services *serviceactions.Service
	consumer *kafka.Consumer
	closeDB  func()
}

func mustBootstrapHubAPI() *hubAPIApp {
	cfgPath := os.Getenv("configPath")
	if cfgPath == "" {
		panic("configPath env var is required")
	}
	swaggerPath := os.Getenv("swaggerPath")
	if swaggerPath == "" {
		panic("swaggerPath env var is required")
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		panic(fmt.Sprintf("failed to parse config: %v", err))
	}

	httpAddr := cfg.Hub.HTTPAddr
	if httpAddr == "" {
		httpAddr = ":8080"
	}
	consumerGroup := cfg.Hub.KafkaConsumerGroup
	if consumerGroup == "" {
		consumerGroup = "hub-api"
	}
	topic := cfg.Kafka.ShippingRefreshedTopicName
	if topic == "" {
		topic = "repairhub.shipping.refreshed"
	}
	summaryTTL := time.Duration(cfg.Hub.SummaryTTLSeconds) * time.Second
	if summaryTTL <= 0 {
		summaryTTL = time.Minute
	}
	scanPerMin := int64(cfg.Hub.ScanRateLimitPerMinute)
	if scanPerMin <= 0 {
		scanPerMin = 120
	}

	sslMode := cfg.Database.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	connString := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.Database.Username, cfg.Database.Password, cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName, sslMode)
	st := mustOpenPostgresWithRetry(connString, 60*time.Second)

	redisAddr := fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)
	rc := rediscache.New(redisAddr)
	rl := rediscache.NewRateLimiter(redisAddr)

	brokers := []string{fmt.Sprintf("%s:%d", cfg.Kafka.Host, cfg.Kafka.Port)}
	producer := kafka.NewProducer(brokers)
	consumer := kafka.NewConsumer(brokers, topic, consumerGroup)

	ordersSvc := orders.New(st, st, newCarrierClient(cfg), rc, producer, summaryTTL)
	saSvc := serviceactions.New(st)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	return &hubAPIApp{
		ctx:    ctx,
		cancel: cancel,
		opts: hubAPIOpts{
			httpAddr:        httpAddr,
			swaggerPath:     swaggerPath,
			topic:           topic,
			consumerGroup:   consumerGroup,
			scanRateLimiter: rl,
			scanRatePerMin:  scanPerMin,
		},
		orders:   ordersSvc,
		services: saSvc,
		consumer: consumer,
		closeDB:  st.Close,
	}
}

// newCarrierClient picks the carrier backend: the real Bosta API when a
// base URL is configured, the deterministic emulator otherwise.
func newCarrierClient(cfg *config.Config) shipping.Client {
	if cfg.Carrier.BaseURL != "" && cfg.Carrier.Mode != "fake" {
		return bostahttp.New(cfg.Carrier.BaseURL, cfg.Carrier.APIToken)
	}
	return fake.New()
}

func mustOpenPostgresWithRetry(connString string, wait time.Duration) *pghub.Storage {
	deadline := time.Now().Add(wait)
	var lastErr error
	for time.Now().Before(deadline) {
		st, err := pghub.New(connString)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(1 * time.Second)
	}
	panic(fmt.Sprintf("postgres is not ready after %s: %v", wait, lastErr))
}

func (a *hubAPIApp) Close() {
	if a.cancel != nil {
		a.cancel()
	}
	if a.consumer != nil {
		_ = a.consumer.Close()
	}
	if a.closeDB != nil {
		a.closeDB()
	}
}

func (a *hubAPIApp) Run() error {
	return runHubAPI(a.ctx, a.opts, a.orders, a.services, a.consumer)
}
