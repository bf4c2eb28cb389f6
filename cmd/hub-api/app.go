package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"repairhub/internal/api"
	"repairhub/internal/broker/messages"
	"repairhub/internal/services/orders"
	"repairhub/internal/services/serviceactions"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type hubAPIOpts struct {
	httpAddr    string
	swaggerPath string

	topic         string
	consumerGroup string

	scanRateLimiter  api.RateLimiter
	scanRatePerMin   int64

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runHubAPI(ctx context.Context, opts hubAPIOpts, ordersSvc *orders.Service, saSvc *serviceactions.Service, consumer kafkaConsumer) error {
	if opts.swaggerPath == "" {
		return fmt.Errorf("swaggerPath env var is required")
	}
	if _, err := os.Stat(opts.swaggerPath); os.IsNotExist(err) {
		return fmt.Errorf("swagger file not found: %s", opts.swaggerPath)
	}

	lis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}
	if opts.onListen != nil {
		opts.onListen(lis.Addr().String())
	}

	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		http.ServeFile(w, r, opts.swaggerPath)
	})
	swaggerURL := "/swagger.json"
	if fi, err := os.Stat(opts.swaggerPath); err == nil {
		swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
	}
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))

	ordersAPI := api.NewOrdersAPI(ordersSvc)
	if opts.scanRateLimiter != nil && opts.scanRatePerMin > 0 {
		ordersAPI.WithScanRateLimit(opts.scanRateLimiter, opts.scanRatePerMin)
	}
	r.Route("/api/v1", func(r chi.Router) {
		ordersAPI.Routes(r)
		api.NewServicesAPI(saSvc).Routes(r)
	})

	go func() {
		slog.Info("kafka consumer started", "topic", opts.topic, "group", opts.consumerGroup)
		_ = consumer.Consume(ctx, func(_key, value []byte) error {
			var m messages.ShippingRefreshed
			if err := json.Unmarshal(value, &m); err != nil {
				return err
			}
			return ordersSvc.ApplyShippingRefreshed(ctx, m)
		})
	}()

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	if err := srv.Serve(lis); err != nil && ctx.Err() != nil {
		return ctx.Err()
	} else if err != nil {
		return err
	}
	return nil
}
