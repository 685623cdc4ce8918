package notify

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/anstrom/alicorn/internal/logging"
	"github.com/anstrom/alicorn/internal/metrics/mocks"
)

func bufferLogger(buf *bytes.Buffer) *logging.Logger {
	return &logging.Logger{Logger: slog.New(slog.NewJSONHandler(buf, nil))}
}

func TestLoggerNotifier(t *testing.T) {
	var buf bytes.Buffer
	n := NewLogger(bufferLogger(&buf), "abc")

	n.Info("Comparison saved", "Scans 5, 7 bookmarked")
	n.Error("Failed to save comparison", "connection reset")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &second))

	assert.Equal(t, "INFO", first["level"])
	assert.Equal(t, "Comparison saved", first["msg"])
	assert.Equal(t, "abc", first["session_id"])
	assert.Equal(t, "notify", first["component"])
	assert.Equal(t, "ERROR", second["level"])
	assert.Equal(t, "connection reset", second["detail"])
}

func TestMulti(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, b}

	m.Info("one", "")
	m.Error("two", "boom")

	for _, r := range []*Recorder{a, b} {
		entries := r.Entries()
		require.Len(t, entries, 2)
		assert.Equal(t, LevelInfo, entries[0].Level)
		assert.Equal(t, "two", entries[1].Title)
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	fixed := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	r.Info("saved", "ok")
	r.Error("export failed", "Comparison data not loaded yet")

	errs := r.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, "Comparison data not loaded yet", errs[0].Detail)
	assert.Equal(t, fixed, errs[0].Timestamp)

	entries := r.Entries()
	entries[0].Title = "mutated"
	assert.Equal(t, "saved", r.Entries()[0].Title)

	r.Reset()
	assert.Empty(t, r.Entries())
}

func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	return conn
}

func readNotification(t *testing.T, conn *websocket.Conn) Notification {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var envelope struct {
		Type string       `json:"type"`
		Data Notification `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &envelope))
	assert.Equal(t, MessageTypeNotification, envelope.Type)
	return envelope.Data
}

func TestHub_DeliversPerSession(t *testing.T) {
	hub := NewHub(bufferLogger(&bytes.Buffer{}), nil)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	sessionA, sessionB := uuid.New(), uuid.New()
	connA := dial(t, server, "?session="+sessionA.String())
	defer connA.Close()
	connB := dial(t, server, "?session="+sessionB.String())
	defer connB.Close()
	connAll := dial(t, server, "")
	defer connAll.Close()

	require.Eventually(t, func() bool { return hub.Clients() == 3 }, time.Second, 5*time.Millisecond)

	hub.ForSession(sessionA).Info("Comparison saved", "Scans 5, 7 bookmarked")
	hub.ForSession(sessionB).Error("Failed to remove bookmark", "timeout")

	gotA := readNotification(t, connA)
	assert.Equal(t, sessionA.String(), gotA.SessionID)
	assert.Equal(t, LevelInfo, gotA.Level)
	assert.Equal(t, "Comparison saved", gotA.Title)

	gotB := readNotification(t, connB)
	assert.Equal(t, LevelError, gotB.Level)
	assert.Equal(t, "timeout", gotB.Detail)

	first := readNotification(t, connAll)
	second := readNotification(t, connAll)
	assert.ElementsMatch(t, []string{sessionA.String(), sessionB.String()},
		[]string{first.SessionID, second.SessionID})
}

func TestHub_RejectsInvalidSession(t *testing.T) {
	hub := NewHub(bufferLogger(&bytes.Buffer{}), nil)
	defer hub.Close()

	rr := httptest.NewRecorder()
	hub.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/ws?session=nope", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(bufferLogger(&bytes.Buffer{}), nil)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub := NewHub(bufferLogger(&bytes.Buffer{}), nil)

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Close()
	hub.Close()
	assert.Equal(t, 0, hub.Clients())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestHub_PublishDropsWhenBufferFull(t *testing.T) {
	hub := &Hub{
		logger:    bufferLogger(&bytes.Buffer{}),
		broadcast: make(chan outbound, 1),
	}

	require.NoError(t, hub.Publish(Notification{Title: "first"}))
	assert.ErrorIs(t, hub.Publish(Notification{Title: "second"}), ErrBufferFull)
}

func TestHub_CountsDeliveredMessages(t *testing.T) {
	ctrl := gomock.NewController(t)
	registry := mocks.NewMockMetricsRegistry(ctrl)
	registry.EXPECT().Counter("websocket_messages_sent_total", gomock.Any()).MinTimes(1)

	hub := NewHub(bufferLogger(&bytes.Buffer{}), registry)
	defer hub.Close()

	server := httptest.NewServer(hub)
	defer server.Close()

	conn := dial(t, server, "")
	defer conn.Close()
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, hub.Publish(Notification{Level: LevelInfo, Title: "hello"}))
	assert.Equal(t, "hello", readNotification(t, conn).Title)
}
