package api

import (
	"net/http"

	"repairhub/internal/models"
	"repairhub/internal/services/serviceactions"
	"repairhub/internal/storage/pghub"

	"github.com/go-chi/chi/v5"
)

type ServicesAPI struct {
	svc *serviceactions.Service
}

func NewServicesAPI(svc *serviceactions.Service) *ServicesAPI {
	return &ServicesAPI{svc: svc}
}

func (a *ServicesAPI) Routes(r chi.Router) {
	r.Post("/service-actions", a.create)
	r.Get("/service-actions", a.list)
	r.Get("/service-actions/statistics", a.statistics)
	r.Get("/service-actions/{id}", a.get)
	r.Patch("/service-actions/{id}", a.update)
	r.Post("/service-actions/{id}/confirm", a.confirm)
	r.Post("/service-actions/{id}/pending-receive", a.pendingReceive)
	r.Post("/service-actions/{id}/complete", a.complete)
	r.Post("/service-actions/{id}/fail", a.fail)
	r.Post("/service-actions/{id}/cancel", a.cancel)
	r.Post("/service-actions/{id}/retry", a.retry)
	r.Post("/service-actions/{id}/reactivate", a.reactivate)
}

type createServiceActionRequest struct {
	ActionType             models.ServiceActionType `json:"action_type"`
	OriginalTrackingNumber string                   `json:"original_tracking_number"`
	CustomerName           string                   `json:"customer_name"`
	CustomerPhone          string                   `json:"customer_phone"`
	CustomerSecondPhone    string                   `json:"customer_second_phone"`
	ProductID              *uint64                  `json:"product_id"`
	PartID                 *uint64                  `json:"part_id"`
	RefundAmount           *float64                 `json:"refund_amount"`
	Notes                  string                   `json:"notes"`
}

func (a *ServicesAPI) create(w http.ResponseWriter, r *http.Request) {
	var req createServiceActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	created, err := a.svc.Create(r.Context(), models.ServiceActionCreateInput{
		ActionType:             req.ActionType,
		OriginalTrackingNumber: req.OriginalTrackingNumber,
		CustomerName:           req.CustomerName,
		CustomerPhone:          req.CustomerPhone,
		CustomerSecondPhone:    req.CustomerSecondPhone,
		ProductID:              req.ProductID,
		PartID:                 req.PartID,
		RefundAmount:           req.RefundAmount,
		Notes:                  req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (a *ServicesAPI) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var status *models.ServiceActionStatus
	if v := q.Get("status"); v != "" {
		st := models.ServiceActionStatus(v)
		status = &st
	}

	out, err := a.svc.List(r.Context(), status, q.Get("phone"), queryInt(q.Get("limit")), queryInt(q.Get("offset")))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *ServicesAPI) statistics(w http.ResponseWriter, r *http.Request) {
	counts, err := a.svc.Statistics(r.Context())
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

func (a *ServicesAPI) get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	view, err := a.svc.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type updateServiceActionRequest struct {
	CustomerName        *string  `json:"customer_name"`
	CustomerPhone       *string  `json:"customer_phone"`
	CustomerSecondPhone *string  `json:"customer_second_phone"`
	ProductID           *uint64  `json:"product_id"`
	PartID              *uint64  `json:"part_id"`
	RefundAmount        *float64 `json:"refund_amount"`
	Notes               *string  `json:"notes"`
}

func (a *ServicesAPI) update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req updateServiceActionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	updated, err := a.svc.Update(r.Context(), id, pghub.ServiceActionUpdate{
		CustomerName:        req.CustomerName,
		CustomerPhone:       req.CustomerPhone,
		CustomerSecondPhone: req.CustomerSecondPhone,
		ProductID:           req.ProductID,
		PartID:              req.PartID,
		RefundAmount:        req.RefundAmount,
		Notes:               req.Notes,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

type transitionRequest struct {
	NewTrackingNumber string `json:"new_tracking_number"`
	UserName          string `json:"user"`
	Notes             string `json:"notes"`
}

func (a *ServicesAPI) confirm(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, func(req transitionRequest, id uint64) (*models.ServiceAction, error) {
		return a.svc.Confirm(r.Context(), id, req.NewTrackingNumber, req.UserName, req.Notes)
	})
}

func (a *ServicesAPI) pendingReceive(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, func(req transitionRequest, id uint64) (*models.ServiceAction, error) {
		return a.svc.MarkPendingReceive(r.Context(), id, req.UserName, req.Notes)
	})
}

func (a *ServicesAPI) complete(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, func(req transitionRequest, id uint64) (*models.ServiceAction, error) {
		return a.svc.Complete(r.Context(), id, req.UserName, req.Notes)
	})
}

func (a *ServicesAPI) fail(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, func(req transitionRequest, id uint64) (*models.ServiceAction, error) {
		return a.svc.Fail(r.Context(), id, req.UserName, req.Notes)
	})
}

func (a *ServicesAPI) cancel(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, func(req transitionRequest, id uint64) (*models.ServiceAction, error) {
		return a.svc.Cancel(r.Context(), id, req.UserName, req.Notes)
	})
}

func (a *ServicesAPI) retry(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, func(req transitionRequest, id uint64) (*models.ServiceAction, error) {
		return a.svc.Retry(r.Context(), id, req.UserName, req.Notes)
	})
}

func (a *ServicesAPI) reactivate(w http.ResponseWriter, r *http.Request) {
	a.transition(w, r, func(req transitionRequest, id uint64) (*models.ServiceAction, error) {
		return a.svc.Reactivate(r.Context(), id, req.UserName, req.Notes)
	})
}

func (a *ServicesAPI) transition(w http.ResponseWriter, r *http.Request, do func(transitionRequest, uint64) (*models.ServiceAction, error)) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}

	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	out, err := do(req, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
