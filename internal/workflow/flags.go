package workflow

import "repairhub/internal/models"

// OrderFlags is the compact replay of an order's history. All
// history-dependent branching in the policy engine and the badge resolver
// runs off this struct, so the full log is scanned exactly once per
// decision.
type OrderFlags struct {
	HasSendOrder            bool
	HasConfirmSend          bool
	HasRefundReplace        bool
	HasConfirmRefundReplace bool
	HasFailedBefore         bool
	HasReturnOrder          bool
	HasMoveToReturns        bool
	IntegratedFromService   bool
}

// FoldHistory replays the full log into flags. Entry order does not matter;
// every flag is a pure "did this ever happen" fact.
func FoldHistory(history []*models.HistoryEntry) OrderFlags {
	var f OrderFlags
	for _, h := range history {
		if h == nil {
			continue
		}
		switch h.Action {
		case models.ActionSendOrder:
			f.HasSendOrder = true
		case models.ActionConfirmSend:
			f.HasConfirmSend = true
		case models.ActionRefundOrReplace:
			f.HasRefundReplace = true
		case models.ActionConfirmRefundReplace:
			f.HasConfirmRefundReplace = true
		case models.ActionFailMaintenance:
			f.HasFailedBefore = true
		case models.ActionReturnOrder:
			f.HasReturnOrder = true
		case models.ActionMoveToReturns:
			f.HasMoveToReturns = true
		case models.ActionReceived:
			if h.ActionData.ServiceActionID != nil {
				f.IntegratedFromService = true
			}
		}
	}
	return f
}

// IsRemaintenance reports the labeling-only "back for another round" case:
// a prior failure with the order active again. The state machine has no
// separate re-maintenance state.
func IsRemaintenance(status models.OrderStatus, f OrderFlags) bool {
	if !f.HasFailedBefore {
		return false
	}
	return status == models.OrderStatusReceived || status == models.OrderStatusInMaintenance
}
