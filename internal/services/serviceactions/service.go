package serviceactions

import (
	"context"
	"strings"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"
	"repairhub/internal/storage/pghub"
	"repairhub/internal/workflow"
)

type Repository interface {
	CreateServiceAction(ctx context.Context, in models.ServiceActionCreateInput) (*models.ServiceAction, error)
	GetServiceAction(ctx context.Context, id uint64) (*models.ServiceAction, error)
	GetServiceActionByNewTracking(ctx context.Context, trackingNumber string) (*models.ServiceAction, error)
	ListServiceActions(ctx context.Context, status *models.ServiceActionStatus, phone string, limit, offset int) ([]*models.ServiceAction, error)
	ListServiceHistory(ctx context.Context, serviceActionID uint64) ([]*models.ServiceHistoryEntry, error)
	CountServiceActionsByStatus(ctx context.Context) (map[models.ServiceActionStatus]int, error)
	AppendServiceTransition(ctx context.Context, tr pghub.ServiceTransition) (*models.ServiceAction, error)
	UpdateServiceAction(ctx context.Context, id uint64, upd pghub.ServiceActionUpdate) (*models.ServiceAction, error)
}

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create validates per-type requirements before anything is written:
// replacements name what gets sent, returns name what gets refunded.
func (s *Service) Create(ctx context.Context, in models.ServiceActionCreateInput) (*models.ServiceAction, error) {
	if !in.ActionType.IsValid() {
		return nil, &apperrors.ValidationError{Field: "action_type", Message: "unknown action type " + string(in.ActionType)}
	}

	in.OriginalTrackingNumber = strings.TrimSpace(in.OriginalTrackingNumber)
	if err := workflow.ValidateTrackingNumber(in.OriginalTrackingNumber); err != nil {
		return nil, &apperrors.ValidationError{Field: "original_tracking_number", Message: "must be a valid tracking number"}
	}

	switch in.ActionType {
	case models.ServiceActionPartReplace:
		if in.ProductID == nil {
			return nil, &apperrors.ValidationError{Field: "product_id", Message: "part replacement requires a product"}
		}
		if in.PartID == nil {
			return nil, &apperrors.ValidationError{Field: "part_id", Message: "part replacement requires a part"}
		}
	case models.ServiceActionFullReplace:
		if in.ProductID == nil {
			return nil, &apperrors.ValidationError{Field: "product_id", Message: "full replacement requires a product"}
		}
	case models.ServiceActionReturnFromCustomer:
		if in.RefundAmount == nil || *in.RefundAmount <= 0 {
			return nil, &apperrors.ValidationError{Field: "refund_amount", Message: "returns require a positive refund amount"}
		}
	}

	in.Notes = strings.TrimSpace(in.Notes)
	return s.repo.CreateServiceAction(ctx, in)
}

// Update edits the caller-supplied fields of an action still in created.
// The per-type requirements from Create keep holding after the edit.
func (s *Service) Update(ctx context.Context, id uint64, upd pghub.ServiceActionUpdate) (*models.ServiceAction, error) {
	if upd.RefundAmount != nil && *upd.RefundAmount <= 0 {
		return nil, &apperrors.ValidationError{Field: "refund_amount", Message: "must be positive"}
	}
	if upd.Notes != nil {
		trimmed := strings.TrimSpace(*upd.Notes)
		upd.Notes = &trimmed
	}
	return s.repo.UpdateServiceAction(ctx, id, upd)
}

// ServiceActionView is a service action plus its transition log.
type ServiceActionView struct {
	ServiceAction *models.ServiceAction        `json:"service_action"`
	History       []*models.ServiceHistoryEntry `json:"history"`
}

func (s *Service) Get(ctx context.Context, id uint64) (*ServiceActionView, error) {
	a, err := s.repo.GetServiceAction(ctx, id)
	if err != nil {
		return nil, err
	}
	hist, err := s.repo.ListServiceHistory(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ServiceActionView{ServiceAction: a, History: hist}, nil
}

func (s *Service) List(ctx context.Context, status *models.ServiceActionStatus, phone string, limit, offset int) ([]*models.ServiceAction, error) {
	if status != nil && !status.IsValid() {
		return nil, &apperrors.ValidationError{Field: "status", Message: "unknown status " + string(*status)}
	}
	return s.repo.ListServiceActions(ctx, status, strings.TrimSpace(phone), limit, offset)
}

// Statistics is the per-status count across all service actions.
func (s *Service) Statistics(ctx context.Context) (map[models.ServiceActionStatus]int, error) {
	counts, err := s.repo.CountServiceActionsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for _, st := range models.AllServiceActionStatuses() {
		if _, ok := counts[st]; !ok {
			counts[st] = 0
		}
	}
	return counts, nil
}

// Confirm books the outbound shipment: the action moves to confirmed and
// the replacement's tracking number is recorded. That number is what the
// integration bridge later matches on scan.
func (s *Service) Confirm(ctx context.Context, id uint64, newTrackingNumber, userName, notes string) (*models.ServiceAction, error) {
	newTrackingNumber = strings.TrimSpace(newTrackingNumber)
	if err := workflow.ValidateTrackingNumber(newTrackingNumber); err != nil {
		return nil, &apperrors.ValidationError{Field: "new_tracking_number", Message: "must be a valid tracking number"}
	}

	return s.transition(ctx, id, workflow.ServiceEventConfirm, userName, notes, &newTrackingNumber)
}

// MarkPendingReceive flags the shipment as on its way back to the hub.
func (s *Service) MarkPendingReceive(ctx context.Context, id uint64, userName, notes string) (*models.ServiceAction, error) {
	return s.transition(ctx, id, workflow.ServiceEventPendingReceive, userName, notes, nil)
}

// Complete closes the action once the replacement shipment is in hand.
// Scanning the shipment only binds it to a maintenance order; this is the
// explicit administrative step that ends the lifecycle.
func (s *Service) Complete(ctx context.Context, id uint64, userName, notes string) (*models.ServiceAction, error) {
	return s.transition(ctx, id, workflow.ServiceEventReceive, userName, notes, nil)
}

func (s *Service) Fail(ctx context.Context, id uint64, userName, notes string) (*models.ServiceAction, error) {
	return s.transition(ctx, id, workflow.ServiceEventFail, userName, notes, nil)
}

func (s *Service) Cancel(ctx context.Context, id uint64, userName, notes string) (*models.ServiceAction, error) {
	return s.transition(ctx, id, workflow.ServiceEventCancel, userName, notes, nil)
}

func (s *Service) Retry(ctx context.Context, id uint64, userName, notes string) (*models.ServiceAction, error) {
	return s.transition(ctx, id, workflow.ServiceEventRetry, userName, notes, nil)
}

func (s *Service) Reactivate(ctx context.Context, id uint64, userName, notes string) (*models.ServiceAction, error) {
	return s.transition(ctx, id, workflow.ServiceEventReactivate, userName, notes, nil)
}

func (s *Service) transition(ctx context.Context, id uint64, ev workflow.ServiceEvent, userName, notes string, newTracking *string) (*models.ServiceAction, error) {
	a, err := s.repo.GetServiceAction(ctx, id)
	if err != nil {
		return nil, err
	}

	next, err := workflow.CheckServiceTransition(a.Status, ev, strings.TrimSpace(notes))
	if err != nil {
		return nil, err
	}

	return s.repo.AppendServiceTransition(ctx, pghub.ServiceTransition{
		ServiceActionID:   id,
		ExpectedStatus:    a.Status,
		NewStatus:         next,
		NewTrackingNumber: newTracking,
		Entry: &models.ServiceHistoryEntry{
			Event:    string(ev),
			Notes:    notes,
			UserName: userName,
		},
	})
}
