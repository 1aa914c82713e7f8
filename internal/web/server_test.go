package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/assistant"
	"jarvis/internal/llm"
	"jarvis/internal/memory"
	"jarvis/internal/skills"
)

type echoBackend struct{}

func (echoBackend) Name() string { return "echo" }
func (echoBackend) Complete(_ context.Context, req llm.Request) (llm.Response, error) {
	last := req.Messages[len(req.Messages)-1]
	return llm.Response{Content: "echo: " + last.Content}, nil
}
func (echoBackend) Stream(context.Context, llm.Request) (llm.FragmentReader, error) {
	return nil, errors.New("not used")
}

type brokenStore struct{ memory.Store }

func (brokenStore) Count(context.Context) (int, error) { return 0, errors.New("store offline") }

func newTestServer(t *testing.T, gw *memory.Gateway) (*Server, *httptest.Server) {
	t.Helper()
	router := skills.NewRouter(nil)
	require.NoError(t, router.Register(skills.NewCalculatorSkill()))
	a := assistant.New(assistant.Deps{
		Router:           router,
		Generator:        llm.NewGenerator(echoBackend{}, ""),
		Memory:           gw,
		ConversationsDir: t.TempDir(),
	})
	s := New(a, "", nil)
	s.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "2.0.0", body["version"])
	assert.Equal(t, "2024-05-01T10:00:00Z", body["timestamp"])

	post, err := http.Post(ts.URL+"/api/health", "application/json", nil)
	require.NoError(t, err)
	post.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, post.StatusCode)
}

func TestStats(t *testing.T) {
	_, ts := newTestServer(t, memory.NewGateway(memory.NewInMemoryStore(), memory.WithCollection("jarvis_memory")))
	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Success bool `json:"success"`
		Data    struct {
			Memory         memory.Stats `json:"memory"`
			ActiveSessions int          `json:"active_sessions"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.Success)
	assert.Equal(t, "jarvis_memory", body.Data.Memory.Collection)
	assert.Equal(t, 0, body.Data.ActiveSessions)
}

func TestStatsFailure(t *testing.T) {
	_, ts := newTestServer(t, memory.NewGateway(brokenStore{}))
	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	assert.NotEmpty(t, body["error"])
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) (string, map[string]string) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	var data map[string]string
	require.NoError(t, json.Unmarshal(f.Data, &data))
	return f.Event, data
}

func TestWebsocketConversation(t *testing.T) {
	s, ts := newTestServer(t, nil)
	conn := dial(t, ts)

	event, data := read(t, conn)
	assert.Equal(t, EventConnected, event)
	assert.Equal(t, "Connected to JARVIS", data["message"])
	assert.Equal(t, 1, s.Sessions().Count())

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "message", "data": map[string]string{"message": "Calculate 2 + 3"}}))
	event, data = read(t, conn)
	assert.Equal(t, EventResponse, event)
	assert.Equal(t, "echo: Skill result: 2 + 3 = 5", data["message"])
	assert.Equal(t, "calculate", data["intent"])
	_, err := time.Parse(time.RFC3339, data["timestamp"])
	assert.NoError(t, err)

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "message", "data": map[string]string{"message": "   "}}))
	event, data = read(t, conn)
	assert.Equal(t, EventError, event)
	assert.Equal(t, "Empty message", data["error"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "clear_conversation"}))
	event, data = read(t, conn)
	assert.Equal(t, EventConversationCleared, event)
	assert.Equal(t, "Conversation cleared", data["message"])

	require.NoError(t, conn.WriteJSON(map[string]any{"event": "dance"}))
	event, data = read(t, conn)
	assert.Equal(t, EventError, event)
	assert.Equal(t, "Unknown event: dance", data["error"])
}

func TestWebsocketSessionsAreIndependent(t *testing.T) {
	s, ts := newTestServer(t, nil)
	a, b := dial(t, ts), dial(t, ts)
	read(t, a)
	read(t, b)
	assert.Equal(t, 2, s.Sessions().Count())

	require.NoError(t, a.WriteJSON(map[string]any{"event": "message", "data": map[string]string{"message": "hello"}}))
	_, data := read(t, a)
	assert.Equal(t, "echo: hello", data["message"])

	require.NoError(t, a.Close())
	assert.Eventually(t, func() bool { return s.Sessions().Count() == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestWebsocketRejectsOversizedFrame(t *testing.T) {
	s, ts := newTestServer(t, nil)
	conn := dial(t, ts)
	read(t, conn)

	big := strings.Repeat("(", MaxFrameBytes) + "1"
	require.NoError(t, conn.WriteJSON(map[string]any{"event": "message", "data": map[string]string{"message": "calculate " + big}}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Frame
	assert.Error(t, conn.ReadJSON(&f))
	assert.Eventually(t, func() bool { return s.Sessions().Count() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRunShutsDownOnCancel(t *testing.T) {
	s, _ := newTestServer(t, nil)
	s.addr = "127.0.0.1:0"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
