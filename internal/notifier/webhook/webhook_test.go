package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/newthinker/predator/internal/core"
	"github.com/newthinker/predator/internal/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entryEvent() notifier.Event {
	return notifier.FromIntent(core.TradeIntent{
		Symbol:          "NVDA",
		Side:            core.SideBuy,
		Quantity:        20,
		ReferencePrice:  100,
		StopLossPrice:   90,
		TakeProfitPrice: 130,
		Score:           11,
		Signals:         []string{"AlphaTrend Bullish"},
		CreatedAt:       time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC),
	}, "ord-7")
}

func TestNew_RequiresURL(t *testing.T) {
	_, err := New("", nil)
	assert.Error(t, err)
}

func TestWebhook_Send(t *testing.T) {
	var got map[string]any
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, err := New(srv.URL, map[string]string{"Authorization": "Bearer x"})
	require.NoError(t, err)
	assert.Equal(t, "webhook", w.Name())

	require.NoError(t, w.Send(context.Background(), entryEvent()))
	assert.Equal(t, "Bearer x", auth)
	assert.Equal(t, "entry", got["type"])
	assert.Equal(t, "NVDA", got["symbol"])
	assert.Equal(t, 90.0, got["stop_loss"])
	assert.Equal(t, "ord-7", got["order_id"])
	assert.Equal(t, "2024-01-02T15:00:00Z", got["time"])
}

func TestWebhook_SendBatch(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	w, err := New(srv.URL, nil)
	require.NoError(t, err)
	require.NoError(t, w.SendBatch(context.Background(), nil))
	assert.Nil(t, got)

	require.NoError(t, w.SendBatch(context.Background(), []notifier.Event{entryEvent(), entryEvent()}))
	assert.Equal(t, "batch", got["type"])
	assert.Equal(t, 2.0, got["count"])
}

func TestWebhook_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	w, err := New(srv.URL, nil)
	require.NoError(t, err)
	err = w.Send(context.Background(), entryEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}
