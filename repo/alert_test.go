package repo

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/7331/binance-live-price-alerts/entity"
	"github.com/7331/binance-live-price-alerts/notifier"
	"github.com/7331/binance-live-price-alerts/types"
)

func TestAlertRepo_RecordAlert(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "data", "alerts.db"))
	require.NoError(t, err)
	r := NewAlertRepo(db)
	ctx := context.Background()

	now := time.Now()
	event := types.AlertEvent{
		ID:         "a-1",
		Symbol:     "BTCUSDT",
		Price:      decimal.RequireFromString("50000"),
		Previous:   decimal.RequireFromString("50751"),
		Delta:      decimal.RequireFromString("-751"),
		DetectedAt: now,
	}
	deliveries := []notifier.Delivery{
		{Target: types.WebhookTarget{URL: "https://a"}},
		{Target: types.WebhookTarget{URL: "https://b"}, Err: errors.New("status 500")},
	}
	require.NoError(t, r.RecordAlert(ctx, event, deliveries))

	alerts, err := r.FindBySymbol(ctx, "BTCUSDT", 10)
	require.NoError(t, err)
	require.Len(t, alerts, 1)

	got := alerts[0]
	assert.Equal(t, "a-1", got.AlertId)
	assert.Equal(t, entity.DirectionDown, got.Direction)
	assert.Equal(t, "-751", got.Delta)
	assert.Equal(t, 1, got.Delivered)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, got.Deliveries, 2)

	// alert ids are unique
	assert.Error(t, r.RecordAlert(ctx, event, nil))

	others, err := r.FindBySymbol(ctx, "ETHUSDT", 10)
	require.NoError(t, err)
	assert.Empty(t, others)
}
