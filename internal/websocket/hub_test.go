package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"chatpdf/internal/middleware"
	"chatpdf/internal/models"
	"chatpdf/internal/session"
)

type idleAssistant struct{}

func (idleAssistant) Ingest(ctx context.Context, path string) error { return nil }
func (idleAssistant) Ask(ctx context.Context, q string) (string, error) { return "", nil }
func (idleAssistant) Clear(ctx context.Context) error { return nil }
func (idleAssistant) Ready() bool { return false }

func newTestServer(t *testing.T, hub *Hub, sessionID string) *httptest.Server {
	t.Helper()
	sess := session.New(sessionID, idleAssistant{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r.WithContext(middleware.WithSession(r.Context(), sess)))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func TestHub_PublishReachesSessionSockets(t *testing.T) {
	hub := NewHub(nil, nil, "", zap.NewNop())
	defer hub.Close()

	srvA := newTestServer(t, hub, "a")
	srvB := newTestServer(t, hub, "b")
	wsA := dial(t, srvA)
	wsB := dial(t, srvB)

	require.Eventually(t, func() bool {
		return hub.ConnectionCount("a") == 1 && hub.ConnectionCount("b") == 1
	}, time.Second, 10*time.Millisecond)

	hub.Publish(context.Background(), "a", models.WSMessage{
		Type:    models.WSTypeStatusUpdate,
		Payload: models.StatusUpdate{State: "answering", StepName: "Thinking..."},
	})

	wsA.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := wsA.ReadMessage()
	require.NoError(t, err)

	var got struct {
		Type    string              `json:"type"`
		Payload models.StatusUpdate `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, models.WSTypeStatusUpdate, got.Type)
	assert.Equal(t, "Thinking...", got.Payload.StepName)

	wsB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	_, _, err = wsB.ReadMessage()
	assert.Error(t, err, "other sessions must not receive the event")
}

func TestHub_UnregistersOnDisconnect(t *testing.T) {
	hub := NewHub(nil, nil, "", zap.NewNop())
	defer hub.Close()

	srv := newTestServer(t, hub, "s")
	ws := dial(t, srv)

	require.Eventually(t, func() bool { return hub.ConnectionCount("s") == 1 }, time.Second, 10*time.Millisecond)

	ws.Close()

	assert.Eventually(t, func() bool { return hub.ConnectionCount("s") == 0 }, time.Second, 10*time.Millisecond)
}

func TestHub_RequiresSession(t *testing.T) {
	hub := NewHub(nil, nil, "", zap.NewNop())
	rec := httptest.NewRecorder()

	hub.HandleWebSocket(rec, httptest.NewRequest(http.MethodGet, "/api/v1/ws", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCheckOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://chat.example/api/v1/ws", nil)
	assert.True(t, checkOrigin(req, ""))

	req.Header.Set("Origin", "http://chat.example")
	assert.True(t, checkOrigin(req, ""))

	req.Header.Set("Origin", "http://localhost:3000")
	assert.False(t, checkOrigin(req, ""))
	assert.True(t, checkOrigin(req, "http://localhost:3000"))
}
