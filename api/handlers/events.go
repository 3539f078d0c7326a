package handlers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/pipeline"
	"github.com/BaSui01/qaflow/store"
	"github.com/BaSui01/qaflow/types"
)

// EventsHandler streams live pipeline events over WebSocket.
type EventsHandler struct {
	hub     *pipeline.Hub
	store   RunStore
	origins []string
	logger  *zap.Logger
}

// NewEventsHandler creates the events handler. allowedOrigins lists the
// cross-origin hosts permitted to open the event stream, matching the
// server's CORS configuration; same-origin browsers and clients that send
// no Origin header (websocat, curl) are always allowed.
func NewEventsHandler(hub *pipeline.Hub, runStore RunStore, allowedOrigins []string, logger *zap.Logger) *EventsHandler {
	return &EventsHandler{
		hub:     hub,
		store:   runStore,
		origins: originHostPatterns(allowedOrigins),
		logger:  logger.With(zap.String("component", "events_handler")),
	}
}

// originHostPatterns converts configured origins ("https://qa.example.com")
// into the host patterns websocket.AcceptOptions expects. Entries that do
// not parse as URLs pass through unchanged so bare hosts and wildcards
// like "*.example.com" keep working.
func originHostPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			patterns = append(patterns, u.Host)
			continue
		}
		patterns = append(patterns, origin)
	}
	return patterns
}

// HandleEvents handles GET /api/v1/runs/{id}/events. Events stream as
// JSON text messages until the run completes or the client disconnects.
// For a run that already finished, a single terminal event is sent.
func (h *EventsHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")

	// Subscribe before checking stored state so no event can slip
	// between the check and the subscription.
	events, cancel := h.hub.Subscribe(runID)
	defer cancel()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.origins,
	})
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.String("run_id", runID), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusInternalError, "unexpected close")

	ctx := r.Context()

	if run, err := h.store.Get(ctx, runID); err == nil && run.Status != string(types.RunStatusRunning) {
		_ = wsjson.Write(ctx, conn, terminalEvent(run))
		conn.Close(websocket.StatusNormalClosure, "run already finished")
		return
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusGoingAway, "client context done")
			return
		case ev, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "subscription closed")
				return
			}

			writeCtx, cancelWrite := context.WithTimeout(ctx, 10*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancelWrite()
			if err != nil {
				h.logger.Debug("websocket write failed", zap.String("run_id", runID), zap.Error(err))
				return
			}

			if ev.Type == pipeline.EventRunComplete {
				conn.Close(websocket.StatusNormalClosure, "run complete")
				return
			}
		}
	}
}

func terminalEvent(run *store.Run) pipeline.Event {
	ev := pipeline.Event{
		Type:    pipeline.EventRunComplete,
		RunID:   run.ID,
		Verdict: run.Verdict,
	}
	if run.Status == string(types.RunStatusFailed) {
		ev.Type = pipeline.EventStageError
		ev.Message = run.Reason
	}
	return ev
}

