package workflow

import (
	"testing"

	"repairhub/internal/models"
	"github.com/stretchr/testify/require"
)

func TestFoldHistory_Empty(t *testing.T) {
	require.Equal(t, OrderFlags{}, FoldHistory(nil))
	require.Equal(t, OrderFlags{}, FoldHistory([]*models.HistoryEntry{nil}))
}

func TestFoldHistory_Flags(t *testing.T) {
	h := []*models.HistoryEntry{
		entry(models.ActionReceived),
		entry(models.ActionStartMaintenance),
		entry(models.ActionFailMaintenance),
		entry(models.ActionRefundOrReplace),
		entry(models.ActionSendOrder),
		entry(models.ActionConfirmSend),
	}
	f := FoldHistory(h)
	require.True(t, f.HasFailedBefore)
	require.True(t, f.HasRefundReplace)
	require.True(t, f.HasSendOrder)
	require.True(t, f.HasConfirmSend)
	require.False(t, f.HasReturnOrder)
	require.False(t, f.HasMoveToReturns)
	require.False(t, f.IntegratedFromService)
}

func TestFoldHistory_ServiceIntegration(t *testing.T) {
	id := uint64(42)
	e := entry(models.ActionReceived)
	e.ActionData = models.ActionData{ServiceActionID: &id}
	f := FoldHistory([]*models.HistoryEntry{e})
	require.True(t, f.IntegratedFromService)
}

func TestIsRemaintenance(t *testing.T) {
	f := OrderFlags{HasFailedBefore: true}
	require.True(t, IsRemaintenance(models.OrderStatusReceived, f))
	require.True(t, IsRemaintenance(models.OrderStatusInMaintenance, f))
	require.False(t, IsRemaintenance(models.OrderStatusFailed, f))
	require.False(t, IsRemaintenance(models.OrderStatusCompleted, f))
	require.False(t, IsRemaintenance(models.OrderStatusInMaintenance, OrderFlags{}))
}
