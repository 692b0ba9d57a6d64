// Package http provides http transport for findings
package http

import (
	stdhttp "net/http"

	"custodian/internal/modkit/httpkit"
	"custodian/internal/services/findings/domain"
)

// CaseRef addresses a case
type CaseRef struct {
	CaseID string `json:"case_id" validate:"required,uuid4"`
}

// ResolveInput applies a reviewer resolution to an escalated finding
type ResolveInput struct {
	FindingID   string  `json:"finding_id" validate:"required,uuid4"`
	Disposition string  `json:"disposition" validate:"required,oneof=inference-confirmed inference-rejected"`
	Reason      string  `json:"reason" validate:"required,max=2048"`
	Confidence  float64 `json:"confidence" validate:"gte=0,lte=1"`
}

// Register mounts finding endpoints on the given router
func Register(r httpkit.Router, store domain.StorePort) {
	h := &handlers{store: store}

	httpkit.PostJSON[CaseRef](r, "/list", h.list)
	httpkit.PostJSON[CaseRef](r, "/pending", h.pending)
	httpkit.PostJSON[ResolveInput](r, "/resolve", h.resolve)
}

type handlers struct{ store domain.StorePort }

// @Summary Findings for a case in span order
// @Tags Findings
// @Accept json
// @Produce json
// @Param payload body CaseRef true "Case"
// @Success 200 {array} domain.Finding "ok"
// @Router /findings/list [post]
func (h *handlers) list(r *stdhttp.Request, in CaseRef) (any, error) {
	return h.store.ListByCase(r.Context(), in.CaseID)
}

// @Summary Count of findings still blocking finalization
// @Tags Findings
// @Accept json
// @Produce json
// @Param payload body CaseRef true "Case"
// @Success 200 {object} map[string]int "ok"
// @Router /findings/pending [post]
func (h *handlers) pending(r *stdhttp.Request, in CaseRef) (any, error) {
	n, err := h.store.PendingCount(r.Context(), in.CaseID)
	if err != nil {
		return nil, err
	}
	return map[string]int{"pending": n}, nil
}

// @Summary Resolve an escalated finding
// @Tags Findings
// @Accept json
// @Produce json
// @Param payload body ResolveInput true "Resolution"
// @Success 200 {object} domain.Finding "ok"
// @Failure 409 {object} httpkit.Envelope "already resolved"
// @Router /findings/resolve [post]
func (h *handlers) resolve(r *stdhttp.Request, in ResolveInput) (any, error) {
	to, err := domain.ParseDisposition(in.Disposition)
	if err != nil {
		return nil, err
	}
	return h.store.Resolve(r.Context(), in.FindingID, to, in.Reason, in.Confidence)
}
