package workflow

import "repairhub/internal/models"

// Badge is the single display label derived from an order's state. Every
// presentation layer consumes this resolver; the mapping lives nowhere else.
type Badge struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Tone  string `json:"tone"`
}

// ResolveBadge tests its rules in a fixed priority order and the first match
// wins. Several rules can structurally match the same status (completed is
// both "ready to send" and "refund pending" depending on history), so the
// order below must not be rearranged.
func ResolveBadge(status models.OrderStatus, history []*models.HistoryEntry, returnCondition *models.ReturnCondition) Badge {
	f := FoldHistory(history)

	// 1. Terminal sent: confirmation recorded.
	if f.HasConfirmSend || f.HasConfirmRefundReplace {
		if f.HasRefundReplace {
			return Badge{Label: "Replacement sent", Icon: "package-check", Tone: "success"}
		}
		return Badge{Label: "Sent to customer", Icon: "truck-check", Tone: "success"}
	}

	// 2. Refund/replace still moving through the hub.
	if f.HasRefundReplace && status == models.OrderStatusCompleted {
		return Badge{Label: "Refund/replacement pending send", Icon: "refresh", Tone: "info"}
	}

	// 3. Completed, waiting for dispatch.
	if status == models.OrderStatusCompleted {
		return Badge{Label: "Ready to send", Icon: "box", Tone: "success"}
	}

	// 4. Back on the bench after an earlier failure.
	if IsRemaintenance(status, f) {
		return Badge{Label: "Re-maintenance", Icon: "wrench-repeat", Tone: "warning"}
	}

	// 5. Currently failed.
	if status == models.OrderStatusFailed {
		return Badge{Label: "Maintenance failed", Icon: "alert", Tone: "danger"}
	}

	// 6. Went back to the customer as a return.
	if f.HasReturnOrder {
		return Badge{Label: "Returned to customer", Icon: "undo", Tone: "neutral"}
	}

	// 7. Sitting on the returns shelf.
	if status == models.OrderStatusReturned {
		if returnCondition != nil {
			if *returnCondition == models.ReturnConditionDamaged {
				return Badge{Label: "Return (damaged)", Icon: "package-x", Tone: "danger"}
			}
			return Badge{Label: "Return (valid)", Icon: "package", Tone: "neutral"}
		}
		return Badge{Label: "In returns", Icon: "package", Tone: "neutral"}
	}

	// 8. On the way out, split by path.
	if status == models.OrderStatusSending {
		if f.HasRefundReplace {
			return Badge{Label: "Replacement being sent", Icon: "truck", Tone: "info"}
		}
		return Badge{Label: "Being sent", Icon: "truck", Tone: "info"}
	}

	switch status {
	case models.OrderStatusInMaintenance:
		return Badge{Label: "In maintenance", Icon: "wrench", Tone: "info"}
	default:
		return Badge{Label: "Received", Icon: "inbox", Tone: "neutral"}
	}
}
