package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"
	"repairhub/internal/services/orders"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"
)

type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

type OrdersAPI struct {
	svc *orders.Service

	rl            RateLimiter
	scanPerMinute int64
}

func NewOrdersAPI(svc *orders.Service) *OrdersAPI {
	return &OrdersAPI{svc: svc}
}

// WithScanRateLimit throttles the scan endpoint; a stuck scan gun firing the
// same barcode in a loop should not take the carrier API down with it.
func (a *OrdersAPI) WithScanRateLimit(rl RateLimiter, perMinute int64) *OrdersAPI {
	a.rl = rl
	a.scanPerMinute = perMinute
	return a
}

func (a *OrdersAPI) Routes(r chi.Router) {
	r.Post("/orders/scan", a.scan)
	r.Get("/orders", a.list)
	r.Get("/orders/search", a.search)
	r.Get("/orders/summary", a.summary)
	r.Get("/orders/recent", a.recent)
	r.Get("/orders/tracking/{trackingNumber}", a.getByTracking)
	r.Get("/orders/{id}", a.get)
	r.Post("/orders/{id}/actions", a.performAction)
	r.Post("/orders/{id}/refresh", a.triggerRefresh)
	r.Get("/orders/{id}/label", a.qrLabel)
}

type scanRequest struct {
	TrackingNumber string `json:"tracking_number"`
	UserName       string `json:"user"`
}

func (a *OrdersAPI) scan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if a.rl != nil && a.scanPerMinute > 0 {
		key := "rl:scan:" + time.Now().UTC().Format("200601021504")
		allowed, n, err := a.rl.Allow(ctx, key, a.scanPerMinute, 70*time.Second)
		if err == nil && !allowed {
			slog.Warn("scan rate limit exceeded", "count", n)
			w.Header().Set("Retry-After", "10")
			writeJSON(w, http.StatusTooManyRequests, nil)
			return
		}
	}

	var req scanRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := a.svc.Scan(ctx, req.TrackingNumber, req.UserName)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if res.IsExisting {
		status = http.StatusOK
	}
	writeJSON(w, status, res)
}

type actionRequest struct {
	Action   models.MaintenanceAction `json:"action"`
	Notes    string                   `json:"notes"`
	UserName string                   `json:"user"`
	Data     models.ActionData        `json:"data"`
}

func (a *OrdersAPI) performAction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req actionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	view, err := a.svc.PerformAction(r.Context(), orders.PerformActionInput{
		OrderID:  id,
		Action:   req.Action,
		Notes:    req.Notes,
		UserName: req.UserName,
		Data:     req.Data,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *OrdersAPI) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := a.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *OrdersAPI) getByTracking(w http.ResponseWriter, r *http.Request) {
	view, err := a.svc.GetOrderByTracking(r.Context(), chi.URLParam(r, "trackingNumber"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (a *OrdersAPI) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	status := models.OrderStatus(q.Get("status"))
	var condition *models.ReturnCondition
	if v := q.Get("return_condition"); v != "" {
		c := models.ReturnCondition(v)
		condition = &c
	}

	out, err := a.svc.ListOrdersByStatus(r.Context(), status, condition, queryInt(q.Get("limit")), queryInt(q.Get("offset")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *OrdersAPI) search(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.SearchOrders(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *OrdersAPI) summary(w http.ResponseWriter, r *http.Request) {
	counts, err := a.svc.Summary(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"by_status": counts,
		"total":     total,
	})
}

func (a *OrdersAPI) recent(w http.ResponseWriter, r *http.Request) {
	out, err := a.svc.RecentScans(r.Context(), queryInt(r.URL.Query().Get("limit")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *OrdersAPI) triggerRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	if err := a.svc.TriggerRefresh(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, nil)
}

// qrLabel renders a printable intake label for the order's tracking number.
func (a *OrdersAPI) qrLabel(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := a.svc.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	png, err := qrcode.Encode(view.Order.TrackingNumber, qrcode.Medium, 256)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", view.Order.TrackingNumber+".png"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

func pathID(r *http.Request, name string) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 64)
	if err != nil || id == 0 {
		return 0, &apperrors.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return id, nil
}

func queryInt(v string) int {
	n, _ := strconv.Atoi(v)
	return n
}
