package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mentionleague/internal/domain"
	"github.com/alanyoungcy/mentionleague/internal/store/memory"
)

func readEnvelope(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_RelaysBusMessages(t *testing.T) {
	bus := memory.NewSignalBus(0)
	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Mode: "server"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	status := readEnvelope(t, conn)
	assert.Equal(t, "status", status.Channel)
	assert.Contains(t, string(status.Payload), `"mode":"server"`)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool { return bus.SubscriberCount(domain.ChannelScores) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, bus.Publish(ctx, domain.ChannelScores, []byte(`{"event":"scores_updated"}`)))

	env := readEnvelope(t, conn)
	assert.Equal(t, domain.ChannelScores, env.Channel)
	assert.JSONEq(t, `{"event":"scores_updated"}`, string(env.Payload))
}

func TestClient_Subscriptions(t *testing.T) {
	c := &client{subs: map[string]bool{domain.ChannelScores: true}}
	assert.True(t, c.isSubscribed(domain.ChannelScores))
	assert.False(t, c.isSubscribed(domain.ChannelPicks))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"league:*"}})
	assert.True(t, c.isSubscribed(domain.ChannelPicks))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"league:*", domain.ChannelScores}})
	assert.False(t, c.isSubscribed(domain.ChannelScores))
}

func TestRawOrString(t *testing.T) {
	assert.Equal(t, `{"a":1}`, string(rawOrString([]byte(`{"a":1}`))))
	assert.Equal(t, `"plain"`, string(rawOrString([]byte("plain"))))
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://league.example"})
	req := httptest.NewRequest("GET", "/ws", nil)
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://league.example")
	assert.True(t, check(req))
	req.Header.Set("Origin", "https://other.example")
	assert.False(t, check(req))
}
