package workflow

import "repairhub/internal/models"

type ActionPriority string

const (
	PriorityPrimary   ActionPriority = "primary"
	PrioritySecondary ActionPriority = "secondary"
)

// ActionSpec describes one permitted action for rendering/validation by any
// client. ReturnCondition is set only for returns-related actions.
type ActionSpec struct {
	Type            models.MaintenanceAction `json:"type"`
	Label           string                   `json:"label"`
	Priority        ActionPriority           `json:"priority"`
	RequiresInput   bool                     `json:"requires_input"`
	ReturnCondition *models.ReturnCondition  `json:"return_condition,omitempty"`
}

func primary(t models.MaintenanceAction, label string) ActionSpec {
	return ActionSpec{Type: t, Label: label, Priority: PriorityPrimary}
}

func secondary(t models.MaintenanceAction, label string) ActionSpec {
	return ActionSpec{Type: t, Label: label, Priority: PrioritySecondary}
}

func withCondition(s ActionSpec, c models.ReturnCondition) ActionSpec {
	cc := c
	s.ReturnCondition = &cc
	s.RequiresInput = true
	return s
}

func withInput(s ActionSpec) ActionSpec {
	s.RequiresInput = true
	return s
}

// ComputeActions is the policy engine: a pure function of the order's
// status, full history, return condition, and return-order flag. The
// primary action always sorts first; secondary actions keep declaration
// order (valid before damaged).
func ComputeActions(
	status models.OrderStatus,
	history []*models.HistoryEntry,
	returnCondition *models.ReturnCondition,
	isReturnOrder bool,
) []ActionSpec {
	flags := FoldHistory(history)

	switch status {
	case models.OrderStatusSending:
		// Terminal: nothing is ever offered, whatever the history says.
		return []ActionSpec{}

	case models.OrderStatusReceived:
		// Customer-return shipments head for the returns shelf; everything
		// else goes into maintenance first.
		if isReturnOrder {
			return []ActionSpec{
				withCondition(primary(models.ActionMoveToReturns, "Move to returns (valid)"), models.ReturnConditionValid),
				withCondition(secondary(models.ActionMoveToReturns, "Move to returns (damaged)"), models.ReturnConditionDamaged),
				withInput(secondary(models.ActionReturnOrder, "Return to customer")),
				secondary(models.ActionStartMaintenance, "Start maintenance"),
			}
		}
		return []ActionSpec{
			primary(models.ActionStartMaintenance, "Start maintenance"),
			withCondition(secondary(models.ActionMoveToReturns, "Move to returns (valid)"), models.ReturnConditionValid),
			withCondition(secondary(models.ActionMoveToReturns, "Move to returns (damaged)"), models.ReturnConditionDamaged),
		}

	case models.OrderStatusInMaintenance:
		return []ActionSpec{
			primary(models.ActionCompleteMaintenance, "Complete maintenance"),
			secondary(models.ActionFailMaintenance, "Mark as failed"),
		}

	case models.OrderStatusFailed:
		return []ActionSpec{
			primary(models.ActionReschedule, "Reschedule maintenance"),
			withInput(secondary(models.ActionRefundOrReplace, "Refund or replace")),
			withCondition(secondary(models.ActionMoveToReturns, "Move to returns (valid)"), models.ReturnConditionValid),
			withCondition(secondary(models.ActionMoveToReturns, "Move to returns (damaged)"), models.ReturnConditionDamaged),
			withInput(secondary(models.ActionReturnOrder, "Return to customer")),
		}

	case models.OrderStatusCompleted:
		// The crux: completed splits into three sub-branches that the status
		// alone cannot express. Check refund/replace first, then send.
		if flags.HasRefundReplace && !flags.HasSendOrder {
			return []ActionSpec{
				withInput(primary(models.ActionSendOrder, "Send replacement to customer")),
			}
		}
		if !flags.HasSendOrder {
			return []ActionSpec{
				withInput(primary(models.ActionSendOrder, "Send to customer")),
			}
		}
		return []ActionSpec{
			primary(models.ActionConfirmSend, "Confirm send"),
		}

	case models.OrderStatusReturned:
		// Only offer the condition the order is not already in; with no
		// condition set yet, offer both.
		if returnCondition == nil {
			return []ActionSpec{
				withCondition(primary(models.ActionSetReturnCondition, "Mark as valid"), models.ReturnConditionValid),
				withCondition(secondary(models.ActionSetReturnCondition, "Mark as damaged"), models.ReturnConditionDamaged),
			}
		}
		opp := returnCondition.Opposite()
		label := "Mark as valid"
		if opp == models.ReturnConditionDamaged {
			label = "Mark as damaged"
		}
		return []ActionSpec{
			withCondition(primary(models.ActionSetReturnCondition, label), opp),
		}
	}

	return []ActionSpec{}
}
