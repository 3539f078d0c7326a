package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/qaflow/api"
	"github.com/BaSui01/qaflow/internal/metrics"
	"github.com/BaSui01/qaflow/pipeline"
	"github.com/BaSui01/qaflow/store"
	"github.com/BaSui01/qaflow/types"
)

// maxTestCaseBytes caps submitted test cases; the prompt budget check
// in the writer is token-based, this is a coarse transport guard.
const maxTestCaseBytes = 64 * 1024

// RunExecutor executes the writer → runner → validator pipeline.
// Implemented by pipeline.Pipeline.
type RunExecutor interface {
	Run(ctx context.Context, runID string, testCase types.TestCase) (*pipeline.RunState, error)
}

// RunStore persists runs. Implemented by store.Store.
type RunStore interface {
	Create(ctx context.Context, run *store.Run) error
	Update(ctx context.Context, run *store.Run) error
	Get(ctx context.Context, id string) (*store.Run, error)
	List(ctx context.Context, limit, offset int) ([]store.Run, int64, error)
}

// RunsHandler serves the /api/v1/runs endpoints.
type RunsHandler struct {
	executor RunExecutor
	store    RunStore
	hub      *pipeline.Hub
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewRunsHandler creates the runs handler. hub and collector may be nil.
func NewRunsHandler(executor RunExecutor, runStore RunStore, hub *pipeline.Hub, collector *metrics.Collector, logger *zap.Logger) *RunsHandler {
	return &RunsHandler{
		executor: executor,
		store:    runStore,
		hub:      hub,
		metrics:  collector,
		logger:   logger.With(zap.String("component", "runs_handler")),
	}
}

// HandleCreate handles POST /api/v1/runs. The pipeline executes
// synchronously; live progress is available on the events endpoint.
func (h *RunsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateRunRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	body := strings.TrimSpace(req.TestCase)
	if body == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "test_case must not be empty", h.logger)
		return
	}
	if len(body) > maxTestCaseBytes {
		WriteErrorMessage(w, http.StatusRequestEntityTooLarge, types.ErrInvalidRequest,
			fmt.Sprintf("test_case exceeds %d bytes", maxTestCaseBytes), h.logger)
		return
	}

	runID := strings.TrimSpace(req.ID)
	if runID == "" {
		runID = uuid.NewString()
	} else if _, err := uuid.Parse(runID); err != nil {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "id must be a UUID", h.logger)
		return
	}
	record := &store.Run{
		ID:       runID,
		Status:   string(types.RunStatusRunning),
		Title:    strings.TrimSpace(req.Title),
		TestCase: body,
	}
	if err := h.store.Create(r.Context(), record); err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	ctx := r.Context()
	if h.hub != nil {
		ctx = pipeline.WithEmitter(ctx, h.hub.Emitter())
	}

	start := time.Now()
	state, runErr := h.executor.Run(ctx, runID, types.TestCase{ID: runID, Title: record.Title, Body: body})
	elapsed := time.Since(start)

	h.applyState(record, state)
	if runErr != nil {
		record.Status = string(types.RunStatusFailed)
	} else {
		record.Status = string(types.RunStatusCompleted)
	}

	// Persist whatever the pipeline produced, even on failure.
	if err := h.store.Update(context.WithoutCancel(r.Context()), record); err != nil {
		h.logger.Error("failed to persist run result", zap.String("run_id", runID), zap.Error(err))
	}

	if runErr != nil {
		WriteAnyError(w, runErr, h.logger)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordRun(record.Verdict, elapsed)
		for stage, d := range state.StageDurations {
			h.metrics.RecordStage(stage, d)
		}
	}

	h.logger.Info("run completed",
		zap.String("run_id", runID),
		zap.String("verdict", record.Verdict),
		zap.Bool("script_cached", record.ScriptCached),
		zap.Int("total_tokens", record.TotalTokens),
		zap.Duration("elapsed", elapsed),
	)

	WriteCreated(w, api.NewRunResponse(record))
}

// applyState denormalizes the pipeline state onto the stored record.
func (h *RunsHandler) applyState(record *store.Run, state *pipeline.RunState) {
	if state == nil {
		return
	}
	record.ScriptSource = state.Script.Source
	record.ScriptPath = state.Script.Path
	record.ScriptCached = state.ScriptCached

	record.Stdout = state.Transcript.Stdout
	record.Stderr = state.Transcript.Stderr
	record.ExitCode = state.Transcript.ExitCode
	record.TimedOut = state.Transcript.TimedOut

	record.Verdict = string(state.Report.Verdict)
	record.Reason = state.Report.Reason
	record.ReportRaw = state.Report.Raw

	record.PromptTokens = state.Usage.PromptTokens
	record.CompletionTokens = state.Usage.CompletionTokens
	record.TotalTokens = state.Usage.TotalTokens

	record.WriterDuration = state.StageDurations[pipeline.StageScriptWriter]
	record.RunnerDuration = state.StageDurations[pipeline.StageScriptRunner]
	record.ValidatorDuration = state.StageDurations[pipeline.StageReportValidator]
}

// HandleGet handles GET /api/v1/runs/{id}.
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.NewRunResponse(run))
}

// HandleList handles GET /api/v1/runs.
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	runs, total, err := h.store.List(r.Context(), limit, offset)
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}

	summaries := make([]api.RunSummary, 0, len(runs))
	for i := range runs {
		summaries = append(summaries, api.NewRunSummary(&runs[i]))
	}

	WriteSuccess(w, api.RunListResponse{
		Runs:   summaries,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// HandleScript handles GET /api/v1/runs/{id}/script, serving the
// generated source as a download.
func (h *RunsHandler) HandleScript(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		WriteAnyError(w, err, h.logger)
		return
	}
	if run.ScriptSource == "" {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrRunNotFound, "run has no generated script", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/x-python; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "test_"+run.ID+".py"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(run.ScriptSource))
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
