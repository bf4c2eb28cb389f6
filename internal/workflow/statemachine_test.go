package workflow

import (
	"testing"

	"repairhub/internal/apperrors"
	"repairhub/internal/models"
	"github.com/stretchr/testify/require"
)

func TestCheckTransition_HappyPath(t *testing.T) {
	var f OrderFlags

	next, err := CheckTransition(models.OrderStatusReceived, f, models.ActionStartMaintenance)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusInMaintenance, next)

	next, err = CheckTransition(next, f, models.ActionCompleteMaintenance)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, next)

	next, err = CheckTransition(next, f, models.ActionSendOrder)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusSending, next)
}

func TestCheckTransition_SendingIsTerminal(t *testing.T) {
	all := []models.MaintenanceAction{
		models.ActionStartMaintenance,
		models.ActionCompleteMaintenance,
		models.ActionFailMaintenance,
		models.ActionReschedule,
		models.ActionSendOrder,
		models.ActionConfirmSend,
		models.ActionRefundOrReplace,
		models.ActionConfirmRefundReplace,
		models.ActionMoveToReturns,
		models.ActionReturnOrder,
		models.ActionSetReturnCondition,
	}
	f := OrderFlags{HasSendOrder: true}
	for _, a := range all {
		_, err := CheckTransition(models.OrderStatusSending, f, a)
		require.Error(t, err, "action %s must be rejected once sending", a)
		require.True(t, apperrors.IsInvalidTransition(err))
	}
}

func TestCheckTransition_FailedRecoveryPaths(t *testing.T) {
	f := OrderFlags{HasFailedBefore: true}

	next, err := CheckTransition(models.OrderStatusFailed, f, models.ActionReschedule)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusInMaintenance, next)

	next, err = CheckTransition(models.OrderStatusFailed, f, models.ActionRefundOrReplace)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusCompleted, next)

	next, err = CheckTransition(models.OrderStatusFailed, f, models.ActionMoveToReturns)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusReturned, next)
}

func TestCheckTransition_DoubleSendRejected(t *testing.T) {
	_, err := CheckTransition(models.OrderStatusCompleted, OrderFlags{HasSendOrder: true}, models.ActionSendOrder)
	require.True(t, apperrors.IsInvalidTransition(err))

	_, err = CheckTransition(models.OrderStatusCompleted, OrderFlags{HasConfirmSend: true}, models.ActionSendOrder)
	require.True(t, apperrors.IsInvalidTransition(err))
}

func TestCheckTransition_ConfirmSendNeedsPriorSend(t *testing.T) {
	_, err := CheckTransition(models.OrderStatusCompleted, OrderFlags{}, models.ActionConfirmSend)
	require.True(t, apperrors.IsInvalidTransition(err))

	next, err := CheckTransition(models.OrderStatusCompleted, OrderFlags{HasSendOrder: true}, models.ActionConfirmSend)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusSending, next)
}

func TestCheckTransition_ConfirmRefundReplaceGate(t *testing.T) {
	_, err := CheckTransition(models.OrderStatusCompleted, OrderFlags{}, models.ActionConfirmRefundReplace)
	require.True(t, apperrors.IsInvalidTransition(err))

	next, err := CheckTransition(models.OrderStatusCompleted, OrderFlags{HasRefundReplace: true}, models.ActionConfirmRefundReplace)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusSending, next)
}

func TestCheckTransition_RefundReplaceNotRepeatable(t *testing.T) {
	_, err := CheckTransition(models.OrderStatusFailed, OrderFlags{HasRefundReplace: true}, models.ActionRefundOrReplace)
	require.True(t, apperrors.IsInvalidTransition(err))
}

func TestCheckTransition_SetReturnCondition(t *testing.T) {
	// status-preserving, and only while on the returns shelf
	next, err := CheckTransition(models.OrderStatusReturned, OrderFlags{}, models.ActionSetReturnCondition)
	require.NoError(t, err)
	require.Equal(t, models.OrderStatusReturned, next)

	_, err = CheckTransition(models.OrderStatusReceived, OrderFlags{}, models.ActionSetReturnCondition)
	require.True(t, apperrors.IsInvalidTransition(err))
}

func TestCheckTransition_UnknownAction(t *testing.T) {
	_, err := CheckTransition(models.OrderStatusReceived, OrderFlags{}, models.MaintenanceAction("melt"))
	require.True(t, apperrors.IsValidation(err))
}

func TestCheckTransition_IllegalGraphEdges(t *testing.T) {
	cases := []struct {
		status models.OrderStatus
		action models.MaintenanceAction
	}{
		{models.OrderStatusReceived, models.ActionCompleteMaintenance},
		{models.OrderStatusReceived, models.ActionSendOrder},
		{models.OrderStatusInMaintenance, models.ActionStartMaintenance},
		{models.OrderStatusInMaintenance, models.ActionSendOrder},
		{models.OrderStatusCompleted, models.ActionStartMaintenance},
		{models.OrderStatusReturned, models.ActionStartMaintenance},
		{models.OrderStatusReturned, models.ActionSendOrder},
	}
	for _, c := range cases {
		_, err := CheckTransition(c.status, OrderFlags{}, c.action)
		require.Error(t, err, "%s from %s", c.action, c.status)
	}
}
