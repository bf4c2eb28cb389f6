package refresher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"repairhub/internal/broker/messages"
	"repairhub/internal/integrations/shipping"
	"repairhub/internal/models"

	"github.com/pkg/errors"
)

type Repository interface {
	ClaimDueOrders(ctx context.Context, now time.Time, limit int, lease time.Duration) ([]*models.Order, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type Refresher struct {
	repo     Repository
	carrier  shipping.Client
	producer Producer
	rl       RateLimiter

	topic string

	planner *Planner

	pollInterval       time.Duration
	batchSize          int
	concurrency        int
	lease              time.Duration
	rateLimitPerMinute int64

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastCycleUnixNano   atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalClaimed        atomic.Int64
	totalProcessed      atomic.Int64
	totalErrors         atomic.Int64
	inFlight            atomic.Int64
	lastErrorMu         sync.Mutex
	lastError           string
}

func New(repo Repository, carrier shipping.Client, producer Producer, rl RateLimiter, topic string) *Refresher {
	return &Refresher{
		repo: repo, carrier: carrier, producer: producer, rl: rl, topic: topic,
		planner:            DefaultPlanner(),
		pollInterval:       2 * time.Second,
		batchSize:          100,
		concurrency:        10,
		lease:              120 * time.Second,
		rateLimitPerMinute: 120,
		triggerCh:          make(chan struct{}, 1),
		startedAtUnixNano:  time.Now().UTC().UnixNano(),
	}
}

func DefaultPlanner() *Planner {
	return NewPlanner(DefaultPlannerConfig(), nil)
}

func (r *Refresher) WithSettings(pollInterval time.Duration, batchSize, concurrency int, lease time.Duration, rlPerMin int64) *Refresher {
	if pollInterval > 0 {
		r.pollInterval = pollInterval
	}
	if batchSize > 0 {
		r.batchSize = batchSize
	}
	if concurrency > 0 {
		r.concurrency = concurrency
	}
	if lease > 0 {
		r.lease = lease
	}
	if rlPerMin > 0 {
		r.rateLimitPerMinute = rlPerMin
	}
	return r
}

func (r *Refresher) WithPlanner(cfg PlannerConfig) *Refresher {
	r.planner = NewPlanner(cfg, nil)
	return r
}

// Trigger forces an immediate refresh cycle (best-effort, non-blocking).
func (r *Refresher) Trigger() {
	r.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case r.triggerCh <- struct{}{}:
	default:
	}
}

type Stats struct {
	StartedAt      time.Time  `json:"startedAt"`
	LastCycleAt    *time.Time `json:"lastCycleAt,omitempty"`
	LastTriggerAt  *time.Time `json:"lastTriggerAt,omitempty"`
	TotalClaimed   int64      `json:"totalClaimed"`
	TotalProcessed int64      `json:"totalProcessed"`
	TotalErrors    int64      `json:"totalErrors"`
	InFlight       int64      `json:"inFlight"`
	LastError      string     `json:"lastError,omitempty"`
}

func (r *Refresher) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, r.startedAtUnixNano).UTC(),
		TotalClaimed:   r.totalClaimed.Load(),
		TotalProcessed: r.totalProcessed.Load(),
		TotalErrors:    r.totalErrors.Load(),
		InFlight:       r.inFlight.Load(),
	}
	if n := r.lastCycleUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastCycleAt = &t
	}
	if n := r.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	r.lastErrorMu.Lock()
	st.LastError = r.lastError
	r.lastErrorMu.Unlock()
	return st
}

func (r *Refresher) Run(ctx context.Context) error {
	t := time.NewTicker(r.pollInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			r.runOnce(ctx)
		case <-r.triggerCh:
			r.runOnce(ctx)
		}
	}
}

func (r *Refresher) runOnce(ctx context.Context) {
	now := time.Now().UTC()
	r.lastCycleUnixNano.Store(now.UnixNano())

	items, err := r.repo.ClaimDueOrders(ctx, now, r.batchSize, r.lease)
	if err != nil {
		slog.Error("claim due orders", "error", err.Error())
		r.lastErrorMu.Lock()
		r.lastError = err.Error()
		r.lastErrorMu.Unlock()
		return
	}
	r.totalClaimed.Add(int64(len(items)))

	sem := make(chan struct{}, r.concurrency)
	var wg sync.WaitGroup
	for _, o := range items {
		sem <- struct{}{}
		wg.Add(1)
		oCopy := o
		r.inFlight.Add(1)
		go func() {
			defer func() {
				r.inFlight.Add(-1)
				<-sem
				wg.Done()
			}()
			if err := r.processOne(ctx, oCopy); err != nil {
				r.totalErrors.Add(1)
				r.lastErrorMu.Lock()
				r.lastError = err.Error()
				r.lastErrorMu.Unlock()
				slog.Error("refresh order", "order_id", oCopy.ID, "error", err.Error())
			}
			r.totalProcessed.Add(1)
		}()
	}
	wg.Wait()
}

func (r *Refresher) processOne(ctx context.Context, o *models.Order) error {
	now := time.Now().UTC()

	if r.rl != nil && r.rateLimitPerMinute > 0 {
		minuteKey := fmt.Sprintf("rl:carrier:bosta:%s", now.Format("200601021504"))
		allowed, n, err := r.rl.Allow(ctx, minuteKey, r.rateLimitPerMinute, 70*time.Second)
		if err != nil {
			return err
		}
		if !allowed {
			// Over the per-minute budget: back off briefly before hitting the carrier.
			slog.Warn("rate limit exceeded", "count", n)
			time.Sleep(500 * time.Millisecond)
		}
	}

	res, err := r.carrier.GetShipment(ctx, o.TrackingNumber)
	msg := messages.ShippingRefreshed{
		OrderID:        o.ID,
		TrackingNumber: o.TrackingNumber,
		CheckedAt:      now,
	}

	if err != nil {
		e := err.Error()
		msg.Error = &e
		nextFail := o.RefreshFailCount + 1
		msg.NextRefreshAt = now.Add(r.planner.BackoffDelay(nextFail))
	} else {
		msg.ShippingState = res.ShippingState
		msg.NextRefreshAt = now.Add(r.planner.NextRefreshDelay(res.ShippingState))
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "marshal kafka msg")
	}

	key := []byte(fmt.Sprintf("%d", o.ID))
	// Kafka may not be ready right after the stack starts; retry briefly
	// instead of dropping the refresh on the floor.
	var pubErr error
	for i := 0; i < 10; i++ {
		if err := r.producer.Publish(ctx, r.topic, key, b); err == nil {
			pubErr = nil
			break
		} else {
			pubErr = err
			time.Sleep(time.Duration(150*(i+1)) * time.Millisecond)
		}
	}
	if pubErr != nil {
		return pubErr
	}
	return nil
}
