package workflow

import (
	"repairhub/internal/apperrors"
	"repairhub/internal/models"
)

// actionStatus maps each recorded action to the status it lands the order
// in. set_return_condition is absent on purpose: it never changes status.
var actionStatus = map[models.MaintenanceAction]models.OrderStatus{
	models.ActionReceived:             models.OrderStatusReceived,
	models.ActionStartMaintenance:     models.OrderStatusInMaintenance,
	models.ActionCompleteMaintenance:  models.OrderStatusCompleted,
	models.ActionFailMaintenance:      models.OrderStatusFailed,
	models.ActionReschedule:           models.OrderStatusInMaintenance,
	models.ActionSendOrder:            models.OrderStatusSending,
	models.ActionConfirmSend:          models.OrderStatusSending,
	models.ActionConfirmRefundReplace: models.OrderStatusSending,
	models.ActionReturnOrder:          models.OrderStatusReturned,
	models.ActionMoveToReturns:        models.OrderStatusReturned,
	models.ActionRefundOrReplace:      models.OrderStatusCompleted,
}

// StatusForAction returns the target status of an action, if it has one.
func StatusForAction(a models.MaintenanceAction) (models.OrderStatus, bool) {
	s, ok := actionStatus[a]
	return s, ok
}

var validTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.OrderStatusReceived:      {models.OrderStatusInMaintenance, models.OrderStatusReturned},
	models.OrderStatusInMaintenance: {models.OrderStatusCompleted, models.OrderStatusFailed},
	models.OrderStatusCompleted:     {models.OrderStatusSending},
	models.OrderStatusFailed: {
		models.OrderStatusInMaintenance,
		models.OrderStatusCompleted,
		models.OrderStatusSending,
		models.OrderStatusReturned,
	},
	// sending is the single terminal state; returned only allows the
	// status-preserving set_return_condition.
	models.OrderStatusSending:  {},
	models.OrderStatusReturned: {},
}

// CanTransition checks the status graph alone; history preconditions are
// enforced by CheckTransition.
func CanTransition(from, to models.OrderStatus) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// CheckTransition decides whether an action is legal for the order's current
// status and folded history, returning the resulting status. It never
// mutates anything; the caller applies the result in a single
// read-modify-append.
func CheckTransition(status models.OrderStatus, f OrderFlags, action models.MaintenanceAction) (models.OrderStatus, error) {
	if !action.IsValid() {
		return "", &apperrors.ValidationError{Field: "action", Message: "unknown action " + string(action)}
	}

	// Once shipped to the customer, nothing else is permitted.
	if status == models.OrderStatusSending {
		return "", &apperrors.InvalidTransitionError{
			Action: string(action), From: string(status),
			Reason: "order is already being sent back to the customer",
		}
	}

	if action == models.ActionSetReturnCondition {
		if status != models.OrderStatusReturned {
			return "", &apperrors.InvalidTransitionError{
				Action: string(action), From: string(status),
				Reason: "return condition can only be set for orders in returns",
			}
		}
		return status, nil
	}

	next, ok := StatusForAction(action)
	if !ok {
		return "", &apperrors.ValidationError{Field: "action", Message: "action has no target status"}
	}

	if !CanTransition(status, next) {
		return "", &apperrors.InvalidTransitionError{Action: string(action), From: string(status), To: string(next)}
	}

	switch action {
	case models.ActionSendOrder:
		// Double-send guard: one send_order per order, ever.
		if f.HasSendOrder || f.HasConfirmSend {
			return "", &apperrors.InvalidTransitionError{
				Action: string(action), From: string(status),
				Reason: "order was already sent",
			}
		}
	case models.ActionConfirmSend:
		if !f.HasSendOrder {
			return "", &apperrors.InvalidTransitionError{
				Action: string(action), From: string(status),
				Reason: "confirm_send requires a prior send_order",
			}
		}
	case models.ActionConfirmRefundReplace:
		if !f.HasRefundReplace {
			return "", &apperrors.InvalidTransitionError{
				Action: string(action), From: string(status),
				Reason: "no refund or replacement was requested for this order",
			}
		}
	case models.ActionRefundOrReplace:
		if f.HasRefundReplace {
			return "", &apperrors.InvalidTransitionError{
				Action: string(action), From: string(status),
				Reason: "refund or replacement was already requested",
			}
		}
	}

	return next, nil
}
