package workflow

import (
	"testing"

	"repairhub/internal/models"
	"github.com/stretchr/testify/require"
)

func TestResolveBadge_SentBeatsEverything(t *testing.T) {
	h := []*models.HistoryEntry{
		entry(models.ActionFailMaintenance),
		entry(models.ActionSendOrder),
		entry(models.ActionConfirmSend),
	}
	b := ResolveBadge(models.OrderStatusSending, h, nil)
	require.Equal(t, "Sent to customer", b.Label)

	// replacement path gets its own label
	h = append(h, entry(models.ActionRefundOrReplace))
	b = ResolveBadge(models.OrderStatusSending, h, nil)
	require.Equal(t, "Replacement sent", b.Label)
}

func TestResolveBadge_RefundPendingBeatsReadyToSend(t *testing.T) {
	h := []*models.HistoryEntry{
		entry(models.ActionFailMaintenance),
		entry(models.ActionRefundOrReplace),
	}
	b := ResolveBadge(models.OrderStatusCompleted, h, nil)
	require.Equal(t, "Refund/replacement pending send", b.Label)

	b = ResolveBadge(models.OrderStatusCompleted, []*models.HistoryEntry{entry(models.ActionCompleteMaintenance)}, nil)
	require.Equal(t, "Ready to send", b.Label)
}

func TestResolveBadge_Remaintenance(t *testing.T) {
	h := []*models.HistoryEntry{
		entry(models.ActionFailMaintenance),
		entry(models.ActionReschedule),
	}
	b := ResolveBadge(models.OrderStatusInMaintenance, h, nil)
	require.Equal(t, "Re-maintenance", b.Label)
}

func TestResolveBadge_Failed(t *testing.T) {
	h := []*models.HistoryEntry{entry(models.ActionFailMaintenance)}
	b := ResolveBadge(models.OrderStatusFailed, h, nil)
	require.Equal(t, "Maintenance failed", b.Label)
}

func TestResolveBadge_Returns(t *testing.T) {
	b := ResolveBadge(models.OrderStatusReturned, []*models.HistoryEntry{entry(models.ActionReturnOrder)}, nil)
	require.Equal(t, "Returned to customer", b.Label)

	b = ResolveBadge(models.OrderStatusReturned, nil, rc(models.ReturnConditionDamaged))
	require.Equal(t, "Return (damaged)", b.Label)

	b = ResolveBadge(models.OrderStatusReturned, nil, rc(models.ReturnConditionValid))
	require.Equal(t, "Return (valid)", b.Label)

	b = ResolveBadge(models.OrderStatusReturned, nil, nil)
	require.Equal(t, "In returns", b.Label)
}

func TestResolveBadge_SendingSplit(t *testing.T) {
	b := ResolveBadge(models.OrderStatusSending, []*models.HistoryEntry{entry(models.ActionSendOrder)}, nil)
	require.Equal(t, "Being sent", b.Label)

	b = ResolveBadge(models.OrderStatusSending, []*models.HistoryEntry{
		entry(models.ActionRefundOrReplace),
		entry(models.ActionSendOrder),
	}, nil)
	require.Equal(t, "Replacement being sent", b.Label)
}

func TestResolveBadge_Defaults(t *testing.T) {
	require.Equal(t, "Received", ResolveBadge(models.OrderStatusReceived, nil, nil).Label)
	require.Equal(t, "In maintenance", ResolveBadge(models.OrderStatusInMaintenance, nil, nil).Label)
}
