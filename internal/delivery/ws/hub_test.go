package ws_test

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smartcity/signalctl/internal/delivery/ws"
	"github.com/smartcity/signalctl/internal/domain"
)

func TestHubBroadcastsEvents(t *testing.T) {
	hub := ws.NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	ts := time.Date(2024, 3, 4, 12, 0, 0, 0, time.UTC)
	hub.Handle(domain.PhaseChanged{
		SignalID:  "S1",
		OldPhase:  domain.PhaseRed,
		NewPhase:  domain.PhaseGreen,
		Duration:  30,
		Source:    "manual",
		Version:   2,
		Timestamp: ts,
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Kind     string                 `json:"kind"`
		EntityID string                 `json:"entity_id"`
		Payload  map[string]interface{} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(msg, &got))
	assert.Equal(t, "PhaseChanged", got.Kind)
	assert.Equal(t, "S1", got.EntityID)
	assert.Equal(t, "GREEN", got.Payload["new_phase"])
}

func TestHubClientDisconnect(t *testing.T) {
	hub := ws.NewHub()
	srv := httptest.NewServer(hub)
	defer srv.Close()
	defer hub.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubIgnoresEventsAfterClose(t *testing.T) {
	hub := ws.NewHub()
	hub.Close()
	assert.NotPanics(t, func() {
		hub.Handle(domain.SignalRemoved{SignalID: "S1"})
	})
	hub.Close()
}
