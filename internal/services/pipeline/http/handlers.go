// Package http provides http transport for the pipeline
package http

import (
	stdhttp "net/http"

	"custodian/internal/modkit/httpkit"
	"custodian/internal/services/pipeline/domain"
)

// ProcessInput selects the case to process
type ProcessInput struct {
	CaseID string `json:"case_id" validate:"required,uuid4"`
}

// Register mounts pipeline endpoints on the given router
func Register(r httpkit.Router, runner domain.RunnerPort) {
	h := &handlers{runner: runner}

	httpkit.PostJSON[ProcessInput](r, "/process", h.process)
}

type handlers struct{ runner domain.RunnerPort }

// @Summary Run the processing pipeline for a case
// @Tags Pipeline
// @Accept json
// @Produce json
// @Param payload body ProcessInput true "Case"
// @Success 200 {object} domain.Result "ok"
// @Failure 409 {object} httpkit.Envelope "case not processable"
// @Failure 422 {object} httpkit.Envelope "no sources"
// @Router /pipeline/process [post]
func (h *handlers) process(r *stdhttp.Request, in ProcessInput) (any, error) {
	return h.runner.Process(r.Context(), in.CaseID)
}
