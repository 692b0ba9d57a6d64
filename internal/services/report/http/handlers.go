// Package http provides http transport for reports
package http

import (
	stdhttp "net/http"

	"custodian/internal/modkit/httpkit"
	"custodian/internal/services/report/domain"
)

// RenderInput selects the case and plan tier to render
type RenderInput struct {
	CaseID string `json:"case_id" validate:"required,uuid4"`
	Tier   string `json:"tier" validate:"required,oneof=basic professional forensic"`
}

// Register mounts report endpoints on the given router
func Register(r httpkit.Router, assembler domain.AssemblerPort) {
	h := &handlers{assembler: assembler}

	httpkit.PostJSON[RenderInput](r, "/render", h.render)
}

type handlers struct{ assembler domain.AssemblerPort }

// @Summary Render the case report
// @Tags Report
// @Accept json
// @Produce json
// @Param payload body RenderInput true "Target"
// @Success 200 {object} domain.Report "ok"
// @Failure 409 {object} httpkit.Envelope "findings pending"
// @Router /report/render [post]
func (h *handlers) render(r *stdhttp.Request, in RenderInput) (any, error) {
	tier, err := domain.ParseTier(in.Tier)
	if err != nil {
		return nil, err
	}
	return h.assembler.Render(r.Context(), in.CaseID, tier)
}
