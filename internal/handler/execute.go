package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/schemafleet/schemafleet/internal/model"
)

// Runner is the executor surface the HTTP layer drives. *executor.Executor
// satisfies it.
type Runner interface {
	ExecuteOne(ctx context.Context, schemaID int64, includeInactive bool) (*model.ExecutionSummary, error)
	ExecuteByKey(ctx context.Context, table string, role model.DatabaseRole, version model.Version, includeInactive bool) (*model.ExecutionSummary, error)
	ExecuteAll(ctx context.Context) ([]*model.ExecutionSummary, error)
}

// ExecuteHandler serves the fan-out endpoints. Responses are always 200 once
// fan-out starts: per-target failures are payload, not transport errors.
type ExecuteHandler struct {
	runner Runner
	logger *slog.Logger
}

func NewExecuteHandler(runner Runner, logger *slog.Logger) *ExecuteHandler {
	return &ExecuteHandler{runner: runner, logger: logger}
}

type executeRequest struct {
	SchemaID int64 `json:"schema_id"`
	// The quad form addresses a definition without knowing its catalog ID.
	TableName       string             `json:"table_name"`
	DatabaseRole    model.DatabaseRole `json:"database_role"`
	SchemaVersion   string             `json:"schema_version"`
	IncludeInactive bool               `json:"include_inactive"`
}

// Execute fans out one definition. POST /api/v1/execute
func (h *ExecuteHandler) Execute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}

	var (
		sum *model.ExecutionSummary
		err error
	)
	switch {
	case req.SchemaID != 0:
		sum, err = h.runner.ExecuteOne(r.Context(), req.SchemaID, req.IncludeInactive)
	case req.TableName != "":
		version, verr := model.ParseVersion(req.SchemaVersion)
		if verr != nil {
			writeError(w, http.StatusBadRequest, "Invalid schema_version: "+verr.Error())
			return
		}
		sum, err = h.runner.ExecuteByKey(r.Context(), req.TableName, req.DatabaseRole, version, req.IncludeInactive)
	default:
		writeError(w, http.StatusBadRequest, "Either schema_id or table_name must be provided")
		return
	}
	if err != nil {
		writeError(w, errorStatus(err), "Execute failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// ExecuteAll fans out every active definition. POST /api/v1/execute-all
func (h *ExecuteHandler) ExecuteAll(w http.ResponseWriter, r *http.Request) {
	sums, err := h.runner.ExecuteAll(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), "Execute-all failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sums)
}
