package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"repairhub/config"
	"repairhub/internal/services/refresher"

	"github.com/go-chi/chi/v5"
	httpSwagger "github.com/swaggo/http-swagger"
)

type workerHTTPOpts struct {
	httpAddr    string
	swaggerPath string
	onListen    func(httpAddr string)

	refresher *refresher.Refresher
	cfg       *config.Config
}

func runWorkerHTTPServer(ctx context.Context, opts workerHTTPOpts) error {
	if opts.httpAddr == "" {
		opts.httpAddr = ":8082"
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
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ready"}`))
	})

	r.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.refresher == nil {
			_, _ = w.Write([]byte(`{"error":"refresher not wired"}`))
			return
		}
		_ = json.NewEncoder(w).Encode(opts.refresher.Stats())
	})

	r.Get("/config", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.cfg == nil {
			_, _ = w.Write([]byte(`{"error":"config not wired"}`))
			return
		}
		// Avoid dumping secrets; show only operational worker settings.
		out := map[string]any{
			"pollIntervalSeconds":      opts.cfg.Hub.WorkerPollIntervalSeconds,
			"batchSize":                opts.cfg.Hub.WorkerBatchSize,
			"concurrency":              opts.cfg.Hub.WorkerConcurrency,
			"leaseSeconds":             opts.cfg.Hub.WorkerLeaseSeconds,
			"rateLimitPerMinute":       opts.cfg.Hub.WorkerRateLimitPerMinute,
			"refreshActiveMinSeconds":  opts.cfg.Hub.WorkerRefreshActiveMinSeconds,
			"refreshActiveMaxSeconds":  opts.cfg.Hub.WorkerRefreshActiveMaxSeconds,
			"refreshUnknownSeconds":    opts.cfg.Hub.WorkerRefreshUnknownSeconds,
			"refreshSettledSeconds":    opts.cfg.Hub.WorkerRefreshSettledSeconds,
		}
		_ = json.NewEncoder(w).Encode(out)
	})

	r.Post("/trigger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if opts.refresher == nil {
			_, _ = w.Write([]byte(`{"error":"refresher not wired"}`))
			return
		}
		opts.refresher.Trigger()
		_, _ = w.Write([]byte(`{"triggered":true}`))
	})

	// Docs are optional for the worker; only wire them when a swagger file
	// is actually deployed next to it.
	if opts.swaggerPath != "" {
		r.Get("/swagger.json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Cache-Control", "no-store")
			http.ServeFile(w, r, opts.swaggerPath)
		})
		swaggerURL := "/swagger.json"
		if fi, err := os.Stat(opts.swaggerPath); err == nil {
			swaggerURL = fmt.Sprintf("/swagger.json?v=%d", fi.ModTime().Unix())
		}
		r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL(swaggerURL)))
	}

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		_ = lis.Close()
	}()

	return srv.Serve(lis)
}
