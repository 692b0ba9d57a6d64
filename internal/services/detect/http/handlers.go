// Package http provides http transport for detection
package http

import (
	stdhttp "net/http"

	"custodian/internal/modkit/httpkit"
	"custodian/internal/services/detect/domain"
)

// RunInput selects the timeline to scan; version 0 means latest
type RunInput struct {
	CaseID  string `json:"case_id" validate:"required,uuid4"`
	Version int    `json:"version" validate:"gte=0"`
}

// Register mounts detection endpoints on the given router
func Register(r httpkit.Router, runner domain.RunnerPort) {
	h := &handlers{runner: runner}

	httpkit.PostJSON[RunInput](r, "/run", h.run)
}

type handlers struct{ runner domain.RunnerPort }

// @Summary Run rule-phase detection over a persisted timeline
// @Tags Detect
// @Accept json
// @Produce json
// @Param payload body RunInput true "Target"
// @Success 200 {array} findings.Finding "ok"
// @Router /detect/run [post]
func (h *handlers) run(r *stdhttp.Request, in RunInput) (any, error) {
	return h.runner.Run(r.Context(), in.CaseID, in.Version)
}
