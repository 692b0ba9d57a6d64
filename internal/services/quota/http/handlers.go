// Package http provides http transport for quota
package http

import (
	stdhttp "net/http"

	"custodian/internal/modkit/httpkit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/services/quota/domain"
)

// SnapshotInput selects the tenant to snapshot
type SnapshotInput struct {
	TenantID string `json:"tenant_id" validate:"required"`
}

// Register mounts quota endpoints on the given router
func Register(r httpkit.Router, ledger domain.LedgerPort) {
	h := &handlers{ledger: ledger}

	// current period counters for a tenant
	httpkit.PostJSON[SnapshotInput](r, "/snapshot", h.snapshot)
}

type handlers struct{ ledger domain.LedgerPort }

// @Summary Current quota period counters
// @Tags Quota
// @Accept json
// @Produce json
// @Param payload body SnapshotInput true "Tenant"
// @Success 200 {array} domain.Period "ok"
// @Router /quota/snapshot [post]
func (h *handlers) snapshot(r *stdhttp.Request, in SnapshotInput) (any, error) {
	if in.TenantID == "" {
		return nil, perr.InvalidArgf("tenant_id is required")
	}
	return h.ledger.Snapshot(r.Context(), in.TenantID)
}
