package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/schemafleet/schemafleet/internal/detector"
)

// Drifter is the detection surface the HTTP layer drives. *detector.Detector
// satisfies it.
type Drifter interface {
	DetectAll(ctx context.Context) ([]detector.Proposal, error)
	DetectAndSave(ctx context.Context) ([]detector.Proposal, error)
}

// DetectHandler serves the baseline drift-detection endpoints.
type DetectHandler struct {
	drifter Drifter
	logger  *slog.Logger
}

func NewDetectHandler(drifter Drifter, logger *slog.Logger) *DetectHandler {
	return &DetectHandler{drifter: drifter, logger: logger}
}

type detectResponse struct {
	Proposals []detector.Proposal `json:"proposals"`
	Saved     bool                `json:"saved"`
}

// DetectAll runs a dry detection pass. POST /api/v1/schema-detection/all
func (h *DetectHandler) DetectAll(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.drifter.DetectAll(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), "Detection failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detectResponse{Proposals: emptyIfNil(proposals)})
}

// DetectAndSave persists every proposal through the catalog.
// POST /api/v1/schema-detection/detect-and-save
func (h *DetectHandler) DetectAndSave(w http.ResponseWriter, r *http.Request) {
	proposals, err := h.drifter.DetectAndSave(r.Context())
	if err != nil {
		writeError(w, errorStatus(err), "Detection failed: "+err.Error())
		return
	}
	h.logger.Info("detection saved", "proposals", len(proposals))
	writeJSON(w, http.StatusOK, detectResponse{Proposals: emptyIfNil(proposals), Saved: true})
}

func emptyIfNil(ps []detector.Proposal) []detector.Proposal {
	if ps == nil {
		return []detector.Proposal{}
	}
	return ps
}
