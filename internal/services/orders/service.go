package orders

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"repairhub/internal/apperrors"
	"repairhub/internal/broker/messages"
	"repairhub/internal/cache"
	"repairhub/internal/integrations/shipping"
	"repairhub/internal/models"
	"repairhub/internal/storage/pghub"
	"repairhub/internal/workflow"
)

type Repository interface {
	CreateOrder(ctx context.Context, o *models.Order, entry *models.HistoryEntry) (*models.Order, error)
	GetOrderByID(ctx context.Context, id uint64) (*models.Order, error)
	GetOrderByTracking(ctx context.Context, trackingNumber string) (*models.Order, error)
	ListOrdersByStatus(ctx context.Context, status models.OrderStatus, condition *models.ReturnCondition, limit, offset int) ([]*models.Order, error)
	SearchOrders(ctx context.Context, query string) ([]*models.Order, error)
	RecentScans(ctx context.Context, limit int) ([]*models.Order, error)
	CountOrdersByStatus(ctx context.Context) (map[models.OrderStatus]int, error)
	AppendTransition(ctx context.Context, tr pghub.OrderTransition) (*models.Order, error)
	ApplyShippingRefresh(ctx context.Context, upd pghub.ShippingRefresh) error
	TriggerRefresh(ctx context.Context, orderID uint64) error
}

// Bridge links replacement shipments back to the service action that
// ordered them.
type Bridge interface {
	GetServiceActionByNewTracking(ctx context.Context, trackingNumber string) (*models.ServiceAction, error)
	IntegrateServiceOrder(ctx context.Context, in pghub.ServiceIntegration) (*models.Order, *models.ServiceAction, error)
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

type Service struct {
	repo    Repository
	bridge  Bridge
	carrier shipping.Client
	cache   cache.BytesCache
	prod    Producer

	summaryTTL time.Duration
}

func New(repo Repository, bridge Bridge, carrier shipping.Client, c cache.BytesCache, prod Producer, summaryTTL time.Duration) *Service {
	return &Service{
		repo:       repo,
		bridge:     bridge,
		carrier:    carrier,
		cache:      c,
		prod:       prod,
		summaryTTL: summaryTTL,
	}
}

// OrderView is an order plus everything a client needs to render it: the
// permitted actions and the display badge.
type OrderView struct {
	Order            *models.Order         `json:"order"`
	AvailableActions []workflow.ActionSpec `json:"available_actions"`
	Badge            workflow.Badge        `json:"badge"`
}

func (s *Service) view(o *models.Order) *OrderView {
	return &OrderView{
		Order:            o,
		AvailableActions: workflow.ComputeActions(o.Status, o.History, o.ReturnCondition, o.IsReturnOrder),
		Badge:            workflow.ResolveBadge(o.Status, o.History, o.ReturnCondition),
	}
}

// ScanResult reports what a barcode scan resolved to.
type ScanResult struct {
	*OrderView
	IsExisting     bool `json:"is_existing"`
	FromService    bool `json:"from_service_action"`
	CarrierFetched bool `json:"carrier_fetched"`
}

// Scan is the intake entry point. An already known tracking number returns
// the existing order; a replacement shipment expected by a service action
// goes through the integration bridge; anything else becomes a fresh order,
// enriched from the carrier when it answers.
func (s *Service) Scan(ctx context.Context, trackingNumber, userName string) (*ScanResult, error) {
	trackingNumber = strings.TrimSpace(trackingNumber)
	if err := workflow.ValidateTrackingNumber(trackingNumber); err != nil {
		return nil, err
	}

	existing, err := s.repo.GetOrderByTracking(ctx, trackingNumber)
	if err == nil {
		return &ScanResult{OrderView: s.view(existing), IsExisting: true}, nil
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	sh, fetched := s.fetchShipment(ctx, trackingNumber)

	sa, err := s.bridge.GetServiceActionByNewTracking(ctx, trackingNumber)
	if err == nil {
		return s.integrateScan(ctx, trackingNumber, userName, sa, sh, fetched)
	}
	if !apperrors.IsNotFound(err) {
		return nil, err
	}

	o := orderFromShipment(trackingNumber, sh, fetched)
	created, err := s.repo.CreateOrder(ctx, o, &models.HistoryEntry{
		Action:            models.ActionReceived,
		Notes:             "Order received at maintenance hub",
		UserName:          userName,
		IsSystemGenerated: true,
	})
	if err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, created, models.ActionReceived, "", models.OrderStatusReceived, userName, true)
	s.invalidateLists(ctx)

	return &ScanResult{OrderView: s.view(created), CarrierFetched: fetched}, nil
}

// fetchShipment is best-effort: the package is physically in the hub, so a
// carrier outage or unknown number never blocks intake.
func (s *Service) fetchShipment(ctx context.Context, trackingNumber string) (shipping.Shipment, bool) {
	if s.carrier == nil {
		return shipping.Shipment{}, false
	}
	sh, err := s.carrier.GetShipment(ctx, trackingNumber)
	if err != nil {
		return shipping.Shipment{}, false
	}
	return sh, true
}

func orderFromShipment(trackingNumber string, sh shipping.Shipment, fetched bool) *models.Order {
	o := &models.Order{
		TrackingNumber: trackingNumber,
		Status:         models.OrderStatusReceived,
		ItemsCount:     1,
	}
	if !fetched {
		return o
	}

	o.CarrierID = sh.CarrierID
	o.IsReturnOrder = sh.IsReturnOrder
	o.CustomerName = sh.CustomerName
	o.CustomerPhone = sh.CustomerPhone
	o.CustomerSecondPhone = sh.CustomerSecondPhone
	o.PickupAddress = sh.PickupAddress
	o.DropoffAddress = sh.DropoffAddress
	o.City = sh.City
	o.Zone = sh.Zone
	o.CODAmount = sh.CODAmount
	o.PackageDescription = sh.PackageDescription
	if sh.ItemsCount > 0 {
		o.ItemsCount = sh.ItemsCount
	}
	o.OrderType = sh.OrderType
	o.ShippingState = sh.ShippingState
	return o
}

func (s *Service) integrateScan(ctx context.Context, trackingNumber, userName string, sa *models.ServiceAction, sh shipping.Shipment, fetched bool) (*ScanResult, error) {
	// The claim only fires for an action that is actually waiting for this
	// shipment. Anything else (stale, cancelled) goes through normal intake.
	if sa.Status != models.ServiceStatusPendingReceive {
		o := orderFromShipment(trackingNumber, sh, fetched)
		created, cerr := s.repo.CreateOrder(ctx, o, &models.HistoryEntry{
			Action:            models.ActionReceived,
			Notes:             "Order received at maintenance hub",
			UserName:          userName,
			IsSystemGenerated: true,
		})
		if cerr != nil {
			return nil, cerr
		}
		s.publishUpdate(ctx, created, models.ActionReceived, "", models.OrderStatusReceived, userName, true)
		s.invalidateLists(ctx)
		return &ScanResult{OrderView: s.view(created), CarrierFetched: fetched}, nil
	}

	o := orderFromShipment(trackingNumber, sh, fetched)
	if !fetched {
		// The service action already knows the customer.
		o.CustomerName = sa.CustomerName
		o.CustomerPhone = sa.CustomerPhone
		o.CustomerSecondPhone = sa.CustomerSecondPhone
	}

	// Receipt only binds the shipment; the action stays pending_receive
	// until an operator completes it.
	order, _, err := s.bridge.IntegrateServiceOrder(ctx, pghub.ServiceIntegration{
		TrackingNumber: trackingNumber,
		Order:          o,
		OrderEntry: &models.HistoryEntry{
			Action:            models.ActionReceived,
			Notes:             "Replacement shipment received, created from service action",
			UserName:          userName,
			IsSystemGenerated: true,
		},
		ServiceEntry: &models.ServiceHistoryEntry{
			Event:    "integrate",
			Notes:    "Shipment scanned at maintenance hub",
			UserName: userName,
		},
	})
	if err != nil {
		// Losing the claim race means another scanner already created the
		// order; hand that one back instead of erroring.
		if apperrors.IsDuplicateBinding(err) {
			winner, gerr := s.repo.GetOrderByTracking(ctx, trackingNumber)
			if gerr != nil {
				return nil, err
			}
			return &ScanResult{OrderView: s.view(winner), IsExisting: true, FromService: true, CarrierFetched: fetched}, nil
		}
		return nil, err
	}

	s.publishUpdate(ctx, order, models.ActionReceived, "", models.OrderStatusReceived, userName, true)
	s.invalidateLists(ctx)

	return &ScanResult{OrderView: s.view(order), FromService: true, CarrierFetched: fetched}, nil
}

// PerformActionInput is one operator decision against an order.
type PerformActionInput struct {
	OrderID  uint64
	Action   models.MaintenanceAction
	Notes    string
	UserName string
	Data     models.ActionData
}

func (s *Service) PerformAction(ctx context.Context, in PerformActionInput) (*OrderView, error) {
	if err := workflow.ValidateActionData(in.Action, in.Data, in.Notes); err != nil {
		return nil, err
	}

	order, err := s.repo.GetOrderByID(ctx, in.OrderID)
	if err != nil {
		return nil, err
	}

	flags := workflow.FoldHistory(order.History)
	next, err := workflow.CheckTransition(order.Status, flags, in.Action)
	if err != nil {
		return nil, err
	}

	tr := pghub.OrderTransition{
		OrderID:        order.ID,
		ExpectedStatus: order.Status,
		NewStatus:      next,
		Entry: &models.HistoryEntry{
			Action:     in.Action,
			Notes:      in.Notes,
			UserName:   in.UserName,
			ActionData: in.Data,
		},
	}

	switch in.Action {
	case models.ActionMoveToReturns, models.ActionReturnOrder, models.ActionSetReturnCondition:
		tr.ReturnCondition = in.Data.ReturnCondition
	case models.ActionRefundOrReplace:
		tr.MarkRefundOrReplace = true
	case models.ActionConfirmSend, models.ActionConfirmRefundReplace:
		tr.MarkActionCompleted = true
	case models.ActionSendOrder:
		if in.Data.NewTrackingNumber != "" {
			tn := in.Data.NewTrackingNumber
			tr.NewTrackingNumber = &tn
		}
		tr.NewCODAmount = in.Data.NewCOD
	}

	updated, err := s.repo.AppendTransition(ctx, tr)
	if err != nil {
		return nil, err
	}

	s.publishUpdate(ctx, updated, in.Action, order.Status, updated.Status, in.UserName, false)
	s.invalidateLists(ctx)

	return s.view(updated), nil
}

func (s *Service) GetOrder(ctx context.Context, id uint64) (*OrderView, error) {
	o, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.view(o), nil
}

func (s *Service) GetOrderByTracking(ctx context.Context, trackingNumber string) (*OrderView, error) {
	o, err := s.repo.GetOrderByTracking(ctx, strings.TrimSpace(trackingNumber))
	if err != nil {
		return nil, err
	}
	return s.view(o), nil
}

func (s *Service) ListOrdersByStatus(ctx context.Context, status models.OrderStatus, condition *models.ReturnCondition, limit, offset int) ([]*models.Order, error) {
	if !status.IsValid() {
		return nil, &apperrors.ValidationError{Field: "status", Message: "unknown status " + string(status)}
	}
	if condition != nil && !condition.IsValid() {
		return nil, &apperrors.ValidationError{Field: "return_condition", Message: "must be valid or damaged"}
	}
	return s.repo.ListOrdersByStatus(ctx, status, condition, limit, offset)
}

func (s *Service) SearchOrders(ctx context.Context, query string) ([]*models.Order, error) {
	query = strings.TrimSpace(query)
	if len(query) < 2 {
		return nil, &apperrors.ValidationError{Field: "q", Message: "query must be at least 2 characters"}
	}
	return s.repo.SearchOrders(ctx, query)
}

const (
	summaryCacheKey = "orders:summary"
	recentCacheKey  = "orders:recent"
)

// Summary is the per-status order count, cached briefly since every
// dashboard tab polls it.
func (s *Service) Summary(ctx context.Context) (map[models.OrderStatus]int, error) {
	if s.cache != nil && s.summaryTTL > 0 {
		if b, ok, err := s.cache.Get(ctx, summaryCacheKey); err == nil && ok {
			var m map[models.OrderStatus]int
			if json.Unmarshal(b, &m) == nil {
				return m, nil
			}
		}
	}

	counts, err := s.repo.CountOrdersByStatus(ctx)
	if err != nil {
		return nil, err
	}
	// Every status is present in the answer even when zero.
	for _, st := range models.AllOrderStatuses() {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}

	if s.cache != nil && s.summaryTTL > 0 {
		b, _ := json.Marshal(counts)
		_ = s.cache.Set(ctx, summaryCacheKey, b, s.summaryTTL)
	}
	return counts, nil
}

// RecentScans keeps the default dashboard feed cached; custom limits go
// straight to storage.
func (s *Service) RecentScans(ctx context.Context, limit int) ([]*models.Order, error) {
	cacheable := limit <= 0 && s.cache != nil && s.summaryTTL > 0
	if cacheable {
		if b, ok, err := s.cache.Get(ctx, recentCacheKey); err == nil && ok {
			var out []*models.Order
			if json.Unmarshal(b, &out) == nil {
				return out, nil
			}
		}
	}

	out, err := s.repo.RecentScans(ctx, limit)
	if err != nil {
		return nil, err
	}

	if cacheable {
		b, _ := json.Marshal(out)
		_ = s.cache.Set(ctx, recentCacheKey, b, s.summaryTTL)
	}
	return out, nil
}

func (s *Service) TriggerRefresh(ctx context.Context, orderID uint64) error {
	if orderID == 0 {
		return &apperrors.ValidationError{Field: "order_id", Message: "is required"}
	}
	return s.repo.TriggerRefresh(ctx, orderID)
}

// ApplyShippingRefreshed folds a worker poll result back into storage.
func (s *Service) ApplyShippingRefreshed(ctx context.Context, msg messages.ShippingRefreshed) error {
	if msg.OrderID == 0 {
		return errors.New("order_id is required")
	}
	if msg.CheckedAt.IsZero() {
		msg.CheckedAt = time.Now().UTC()
	}
	if msg.NextRefreshAt.IsZero() {
		msg.NextRefreshAt = msg.CheckedAt.Add(60 * time.Minute)
	}

	return s.repo.ApplyShippingRefresh(ctx, pghub.ShippingRefresh{
		OrderID:       msg.OrderID,
		CheckedAt:     msg.CheckedAt,
		ShippingState: msg.ShippingState,
		NextRefreshAt: msg.NextRefreshAt,
		Error:         msg.Error,
	})
}

func (s *Service) publishUpdate(ctx context.Context, o *models.Order, action models.MaintenanceAction, from, to models.OrderStatus, userName string, system bool) {
	if s.prod == nil {
		return
	}
	b, err := json.Marshal(messages.OrderUpdated{
		OrderID:           o.ID,
		TrackingNumber:    o.TrackingNumber,
		Action:            string(action),
		FromStatus:        string(from),
		ToStatus:          string(to),
		UserName:          userName,
		IsSystemGenerated: system,
		OccurredAt:        time.Now().UTC(),
	})
	if err != nil {
		return
	}
	// Best-effort: the transition is already durable in postgres.
	_ = s.prod.Publish(ctx, messages.TopicOrderUpdated, []byte(o.TrackingNumber), b)
}

func (s *Service) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Del(ctx, summaryCacheKey, recentCacheKey)
}
