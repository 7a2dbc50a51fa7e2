package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/schemafleet/schemafleet/internal/catalog"
	"github.com/schemafleet/schemafleet/internal/model"
)

// HistoryHandler serves the migration-history query API.
type HistoryHandler struct {
	store  *catalog.Store
	logger *slog.Logger
}

func NewHistoryHandler(store *catalog.Store, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{store: store, logger: logger}
}

type historyResponse struct {
	ID            int64              `json:"id"`
	TenantID      string             `json:"tenant_id"`
	DatabaseRole  model.DatabaseRole `json:"database_role"`
	PhysicalTable string             `json:"physical_table"`
	SchemaVersion string             `json:"schema_version"`
	SQL           string             `json:"sql,omitempty"`
	Outcome       model.Outcome      `json:"outcome"`
	ErrorMessage  string             `json:"error_message,omitempty"`
	StartedAt     time.Time          `json:"started_at"`
	FinishedAt    time.Time          `json:"finished_at"`
}

// Query returns migration history entries, newest first.
// GET /api/v1/history?tenant_id=&table_name=&outcome=&limit=
func (h *HistoryHandler) Query(w http.ResponseWriter, r *http.Request) {
	filter := catalog.HistoryFilter{
		TenantID:      queryString(r, "tenant_id"),
		PhysicalTable: queryString(r, "table_name"),
		Outcome:       model.Outcome(queryString(r, "outcome")),
		Limit:         queryInt(r, "limit", 100),
	}
	entries, err := h.store.QueryHistory(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "History query failed: "+err.Error())
		return
	}
	out := make([]historyResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, historyResponse{
			ID:            e.ID,
			TenantID:      e.TenantID,
			DatabaseRole:  e.DatabaseRole,
			PhysicalTable: e.PhysicalTable,
			SchemaVersion: e.SchemaVersion,
			SQL:           e.SQLText,
			Outcome:       e.Outcome,
			ErrorMessage:  e.ErrorMessage,
			StartedAt:     e.StartedAt,
			FinishedAt:    e.FinishedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
