package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/pipeline"
	"github.com/BaSui01/qaflow/store"
	"github.com/BaSui01/qaflow/types"
)

func newEventsServer(t *testing.T, hub *pipeline.Hub, st RunStore) *httptest.Server {
	t.Helper()
	h := NewEventsHandler(hub, st, nil, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/runs/{id}/events", h.HandleEvents)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func wsURL(server *httptest.Server, runID string) string {
	return strings.Replace(server.URL, "http://", "ws://", 1) + "/api/v1/runs/" + runID + "/events"
}

func TestEventsHandler_StreamsUntilComplete(t *testing.T) {
	hub := pipeline.NewHub(zap.NewNop())
	defer hub.Close()

	st := newMemoryStore()
	require.NoError(t, st.Create(context.Background(), &store.Run{
		ID: "run-1", Status: string(types.RunStatusRunning),
	}))

	server := newEventsServer(t, hub, st)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// The handler subscribes before completing the handshake, so events
	// published after Dial returns are guaranteed to be delivered.
	conn, _, err := websocket.Dial(ctx, wsURL(server, "run-1"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	hub.Publish(pipeline.Event{Type: pipeline.EventStageStart, RunID: "run-1", Stage: pipeline.StageScriptWriter})

	var ev pipeline.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, pipeline.EventStageStart, ev.Type)
	assert.Equal(t, pipeline.StageScriptWriter, ev.Stage)

	hub.Publish(pipeline.Event{Type: pipeline.EventRunComplete, RunID: "run-1", Verdict: "pass"})

	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, pipeline.EventRunComplete, ev.Type)
	assert.Equal(t, "pass", ev.Verdict)

	// Server closes after the terminal event.
	err = wsjson.Read(ctx, conn, &ev)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}

func TestEventsHandler_FinishedRunGetsTerminalEvent(t *testing.T) {
	hub := pipeline.NewHub(zap.NewNop())
	defer hub.Close()

	st := newMemoryStore()
	require.NoError(t, st.Create(context.Background(), &store.Run{
		ID: "run-2", Status: string(types.RunStatusCompleted), Verdict: "fail",
	}))

	server := newEventsServer(t, hub, st)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(server, "run-2"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	var ev pipeline.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, pipeline.EventRunComplete, ev.Type)
	assert.Equal(t, "fail", ev.Verdict)
}

func TestEventsHandler_IgnoresOtherRuns(t *testing.T) {
	hub := pipeline.NewHub(zap.NewNop())
	defer hub.Close()

	st := newMemoryStore()
	require.NoError(t, st.Create(context.Background(), &store.Run{
		ID: "run-3", Status: string(types.RunStatusRunning),
	}))

	server := newEventsServer(t, hub, st)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL(server, "run-3"), nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "done")

	hub.Publish(pipeline.Event{Type: pipeline.EventStageStart, RunID: "other-run"})
	hub.Publish(pipeline.Event{Type: pipeline.EventRunComplete, RunID: "run-3", Verdict: "pass"})

	var ev pipeline.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, "run-3", ev.RunID)
	assert.Equal(t, pipeline.EventRunComplete, ev.Type)
}

func TestEventsHandler_OriginEnforcement(t *testing.T) {
	hub := pipeline.NewHub(zap.NewNop())
	defer hub.Close()

	st := newMemoryStore()
	require.NoError(t, st.Create(context.Background(), &store.Run{
		ID: "run-4", Status: string(types.RunStatusCompleted), Verdict: "pass",
	}))

	h := NewEventsHandler(hub, st, []string{"https://qa.example.com"}, zap.NewNop())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/runs/{id}/events", h.HandleEvents)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("cross-origin browser rejected", func(t *testing.T) {
		_, resp, err := websocket.Dial(ctx, wsURL(server, "run-4"), &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{"https://evil.example.net"}},
		})
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("allowed origin accepted", func(t *testing.T) {
		conn, _, err := websocket.Dial(ctx, wsURL(server, "run-4"), &websocket.DialOptions{
			HTTPHeader: http.Header{"Origin": []string{"https://qa.example.com"}},
		})
		require.NoError(t, err)
		conn.Close(websocket.StatusNormalClosure, "done")
	})

	t.Run("no origin header accepted", func(t *testing.T) {
		conn, _, err := websocket.Dial(ctx, wsURL(server, "run-4"), nil)
		require.NoError(t, err)
		conn.Close(websocket.StatusNormalClosure, "done")
	})
}

func TestOriginHostPatterns(t *testing.T) {
	patterns := originHostPatterns([]string{
		"https://qa.example.com",
		"http://localhost:3000",
		"*.example.org",
	})
	assert.Equal(t, []string{"qa.example.com", "localhost:3000", "*.example.org"}, patterns)
}
