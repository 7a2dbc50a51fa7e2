package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/schemafleet/schemafleet/internal/catalog"
	"github.com/schemafleet/schemafleet/internal/model"
)

// SchemaHandler serves the versioned schema catalog API.
type SchemaHandler struct {
	store  *catalog.Store
	logger *slog.Logger
}

func NewSchemaHandler(store *catalog.Store, logger *slog.Logger) *SchemaHandler {
	return &SchemaHandler{store: store, logger: logger}
}

type createSchemaRequest struct {
	DatabaseRole  model.DatabaseRole  `json:"database_role"`
	PartitionType model.PartitionType `json:"partition_type"`
	SchemaVersion string              `json:"schema_version"`
	Declaration   json.RawMessage     `json:"declaration"`
	Notes         string              `json:"notes"`
}

type upgradeSchemaRequest struct {
	SchemaVersion string          `json:"schema_version"`
	Declaration   json.RawMessage `json:"declaration"`
	Notes         string          `json:"notes"`
}

type schemaResponse struct {
	ID            int64               `json:"id"`
	TableName     string              `json:"table_name"`
	DatabaseRole  model.DatabaseRole  `json:"database_role"`
	PartitionType model.PartitionType `json:"partition_type"`
	SchemaVersion string              `json:"schema_version"`
	Declaration   model.Declaration   `json:"declaration"`
	UpgradeNotes  string              `json:"upgrade_notes,omitempty"`
	Active        bool                `json:"active"`
	CreatedAt     time.Time           `json:"created_at"`
}

func toSchemaResponse(def *model.SchemaDefinition) schemaResponse {
	return schemaResponse{
		ID:            def.ID,
		TableName:     def.TableName,
		DatabaseRole:  def.DatabaseRole,
		PartitionType: def.PartitionType,
		SchemaVersion: def.Version.String(),
		Declaration:   def.Declaration,
		UpgradeNotes:  def.UpgradeNotes,
		Active:        def.Active,
		CreatedAt:     def.CreatedAt,
	}
}

// Create registers the initial version of a table schema.
// POST /api/v1/schemas
func (h *SchemaHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSchemaRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	if req.DatabaseRole == "" {
		writeError(w, http.StatusBadRequest, "database_role is required")
		return
	}
	if !model.ValidRole(req.DatabaseRole) {
		writeError(w, http.StatusBadRequest, "Unknown database_role: "+string(req.DatabaseRole))
		return
	}
	decl, err := model.ParseDeclaration(string(req.Declaration))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid declaration: "+err.Error())
		return
	}
	version := model.Version{Major: 1}
	if req.SchemaVersion != "" {
		version, err = model.ParseVersion(req.SchemaVersion)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid schema_version: "+err.Error())
			return
		}
	}
	partition := req.PartitionType
	if partition == "" {
		partition = model.PartitionNone
	}
	if !model.ValidPartitionType(partition) {
		writeError(w, http.StatusBadRequest, "Unknown partition_type: "+string(partition))
		return
	}

	def := &model.SchemaDefinition{
		TableName:     decl.TableName,
		DatabaseRole:  req.DatabaseRole,
		PartitionType: partition,
		Version:       version,
		Declaration:   *decl,
		UpgradeNotes:  req.Notes,
		Active:        true,
	}
	if err := h.store.CreateInitialVersion(r.Context(), def); err != nil {
		writeError(w, errorStatus(err), "Create schema failed: "+err.Error())
		return
	}

	h.logger.Info("schema registered",
		"table", def.TableName, "role", def.DatabaseRole, "version", version.String())
	writeJSON(w, http.StatusCreated, toSchemaResponse(def))
}

// Upgrade registers a new version on top of an existing definition.
// POST /api/v1/schemas/{schemaID}/upgrade
func (h *SchemaHandler) Upgrade(w http.ResponseWriter, r *http.Request) {
	prevID, err := strconv.ParseInt(chi.URLParam(r, "schemaID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schema ID")
		return
	}
	var req upgradeSchemaRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body: "+err.Error())
		return
	}
	decl, err := model.ParseDeclaration(string(req.Declaration))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid declaration: "+err.Error())
		return
	}
	version, err := model.ParseVersion(req.SchemaVersion)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid schema_version: "+err.Error())
		return
	}

	def, err := h.store.Upgrade(r.Context(), prevID, *decl, version, req.Notes)
	if err != nil {
		writeError(w, errorStatus(err), "Upgrade failed: "+err.Error())
		return
	}

	h.logger.Info("schema upgraded",
		"table", def.TableName, "role", def.DatabaseRole, "version", version.String())
	writeJSON(w, http.StatusCreated, toSchemaResponse(def))
}

// ListActive returns every active definition across all roles.
// GET /api/v1/schemas
func (h *SchemaHandler) ListActive(w http.ResponseWriter, r *http.Request) {
	defs, err := h.store.ListAllActive(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "List schemas failed: "+err.Error())
		return
	}
	out := make([]schemaResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, toSchemaResponse(def))
	}
	writeJSON(w, http.StatusOK, out)
}

// VersionHistory returns every version of one (table, role), active first.
// GET /api/v1/schemas/history?table_name=&database_role=
func (h *SchemaHandler) VersionHistory(w http.ResponseWriter, r *http.Request) {
	table := queryString(r, "table_name")
	role := model.DatabaseRole(queryString(r, "database_role"))
	if table == "" || role == "" {
		writeError(w, http.StatusBadRequest, "table_name and database_role are required")
		return
	}
	defs, err := h.store.History(r.Context(), table, role)
	if err != nil {
		writeError(w, errorStatus(err), "Schema history failed: "+err.Error())
		return
	}
	out := make([]schemaResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, toSchemaResponse(def))
	}
	writeJSON(w, http.StatusOK, out)
}
