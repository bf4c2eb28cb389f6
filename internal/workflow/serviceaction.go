package workflow

import (
	"repairhub/internal/apperrors"
	"repairhub/internal/models"
)

// ServiceEvent names a service-action lifecycle transition. The lifecycle is
// linear (created → confirmed → pending_receive → completed/failed) with
// retry/reactivate escapes from the failed and cancelled states.
type ServiceEvent string

const (
	ServiceEventConfirm        ServiceEvent = "confirm"
	ServiceEventPendingReceive ServiceEvent = "pending_receive"
	ServiceEventReceive        ServiceEvent = "receive"
	ServiceEventFail           ServiceEvent = "fail"
	ServiceEventCancel         ServiceEvent = "cancel"
	ServiceEventRetry          ServiceEvent = "retry"
	ServiceEventReactivate     ServiceEvent = "reactivate"
)

type serviceTransition struct {
	from models.ServiceActionStatus
	to   models.ServiceActionStatus
}

var serviceTransitions = map[ServiceEvent][]serviceTransition{
	ServiceEventConfirm: {
		{models.ServiceStatusCreated, models.ServiceStatusConfirmed},
	},
	ServiceEventPendingReceive: {
		{models.ServiceStatusConfirmed, models.ServiceStatusPendingReceive},
	},
	ServiceEventReceive: {
		{models.ServiceStatusPendingReceive, models.ServiceStatusCompleted},
	},
	ServiceEventFail: {
		{models.ServiceStatusPendingReceive, models.ServiceStatusFailed},
		{models.ServiceStatusConfirmed, models.ServiceStatusFailed},
	},
	ServiceEventCancel: {
		{models.ServiceStatusCreated, models.ServiceStatusCancelled},
		{models.ServiceStatusConfirmed, models.ServiceStatusCancelled},
		{models.ServiceStatusPendingReceive, models.ServiceStatusCancelled},
	},
	// retry puts a failed action back in progress; reactivate restarts a
	// cancelled one from scratch. Both demand explanatory notes.
	ServiceEventRetry: {
		{models.ServiceStatusFailed, models.ServiceStatusConfirmed},
	},
	ServiceEventReactivate: {
		{models.ServiceStatusCancelled, models.ServiceStatusCreated},
	},
}

func serviceEventNeedsNotes(ev ServiceEvent) bool {
	return ev == ServiceEventRetry || ev == ServiceEventReactivate
}

// CheckServiceTransition resolves the target status for an event against the
// current one.
func CheckServiceTransition(status models.ServiceActionStatus, ev ServiceEvent, notes string) (models.ServiceActionStatus, error) {
	if serviceEventNeedsNotes(ev) && notes == "" {
		return "", &apperrors.ValidationError{
			Field:   "notes",
			Message: string(ev) + " requires explanatory notes",
		}
	}
	for _, tr := range serviceTransitions[ev] {
		if tr.from == status {
			return tr.to, nil
		}
	}
	return "", &apperrors.InvalidTransitionError{
		Action: string(ev),
		From:   string(status),
		Reason: "service action is in state " + string(status),
	}
}
