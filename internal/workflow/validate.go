package workflow

import (
	"regexp"
	"strings"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"
)

const (
	trackingNumberMinLen = 3
	trackingNumberMaxLen = 50
	notesMaxLen          = 1000
)

var trackingNumberPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// ValidateTrackingNumber enforces the shared tracking-number format used by
// replacement shipments and service-action confirmations.
func ValidateTrackingNumber(tn string) error {
	tn = strings.TrimSpace(tn)
	if len(tn) < trackingNumberMinLen || len(tn) > trackingNumberMaxLen {
		return &apperrors.ValidationError{
			Field:   "tracking_number",
			Message: "must be between 3 and 50 characters",
		}
	}
	if !trackingNumberPattern.MatchString(tn) {
		return &apperrors.ValidationError{
			Field:   "tracking_number",
			Message: "must be alphanumeric",
		}
	}
	return nil
}

// ValidateActionData checks the structured payload for an action before the
// transition is attempted, so rejections carry the specific reason.
func ValidateActionData(action models.MaintenanceAction, data models.ActionData, notes string) error {
	if len(strings.TrimSpace(notes)) > notesMaxLen {
		return &apperrors.ValidationError{Field: "notes", Message: "must be under 1000 characters"}
	}

	if data.NewTrackingNumber != "" {
		if err := ValidateTrackingNumber(data.NewTrackingNumber); err != nil {
			return err
		}
	}

	if data.NewCOD != nil && *data.NewCOD < 0 {
		return &apperrors.ValidationError{Field: "new_cod", Message: "must not be negative"}
	}
	if data.RefundAmount != nil && *data.RefundAmount < 0 {
		return &apperrors.ValidationError{Field: "refund_amount", Message: "must not be negative"}
	}

	switch action {
	case models.ActionMoveToReturns, models.ActionReturnOrder, models.ActionSetReturnCondition:
		if data.ReturnCondition == nil {
			return &apperrors.ValidationError{
				Field:   "return_condition",
				Message: "return condition (valid/damaged) is required",
			}
		}
		if !data.ReturnCondition.IsValid() {
			return &apperrors.ValidationError{
				Field:   "return_condition",
				Message: "must be valid or damaged",
			}
		}
	}

	return nil
}
