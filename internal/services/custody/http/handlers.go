// Package http provides http transport for custody
package http

import (
	stdhttp "net/http"
	"strings"

	"custodian/internal/modkit/httpkit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	"custodian/internal/services/custody/domain"
	quotadomain "custodian/internal/services/quota/domain"
)

// ArtifactRef addresses an admitted artifact
type ArtifactRef struct {
	ArtifactID string `json:"artifact_id" validate:"required,uuid4"`
}

// VerifyResult reports a digest recheck
type VerifyResult struct {
	ArtifactID string `json:"artifact_id"`
	Valid      bool   `json:"valid"`
}

// Register mounts custody endpoints on the given router. quota may be nil
// when admission control is handled upstream
func Register(r httpkit.Router, store domain.StorePort, quota quotadomain.LedgerPort) {
	h := &handlers{store: store, quota: quota}

	// upload is the one raw-body endpoint; everything else is JSON-POST
	r.Post("/artifacts", httpkit.Handle(h.admit))
	httpkit.PostJSON[ArtifactRef](r, "/verify", h.verify)
	httpkit.PostJSON[ArtifactRef](r, "/metadata", h.metadata)
	httpkit.PostJSON[ArtifactRef](r, "/provenance", h.provenance)
}

type handlers struct {
	store domain.StorePort
	quota quotadomain.LedgerPort
}

// @Summary Admit an artifact into custody
// @Tags Custody
// @Accept octet-stream
// @Produce json
// @Param X-Content-SHA256 header string false "Declared content digest"
// @Param X-Source-Device header string false "Capturing device identifier"
// @Success 201 {object} domain.Artifact "created"
// @Failure 402 {object} httpkit.Envelope "quota denied"
// @Failure 409 {object} httpkit.Envelope "digest mismatch"
// @Router /custody/artifacts [post]
func (h *handlers) admit(r *stdhttp.Request) httpkit.Response {
	ctx := r.Context()
	tenant, err := httpkit.Tenant(r)
	if err != nil {
		return httpkit.Error(err)
	}
	operator, err := httpkit.Operator(r)
	if err != nil {
		return httpkit.Error(err)
	}

	mime := r.Header.Get("Content-Type")
	kind := resourceKindFor(mime)

	if h.quota != nil {
		dec, qerr := h.quota.TryConsume(ctx, tenant, kind, 1)
		if qerr != nil {
			return httpkit.Error(qerr)
		}
		if !dec.Admitted {
			return httpkit.Error(perr.QuotaDeniedf(
				"%s quota exhausted: used %d of %d", kind, dec.Used, dec.Cap))
		}
	}

	art, err := h.store.Admit(ctx, domain.AdmitInput{
		TenantID:       tenant,
		DeclaredMime:   mime,
		DeclaredSHA256: r.Header.Get("X-Content-SHA256"),
		SourceDevice:   r.Header.Get("X-Source-Device"),
		SourceIP:       r.RemoteAddr,
		Operator:       operator,
		Body:           r.Body,
	})
	if err != nil {
		// the unit was reserved but nothing was admitted
		if h.quota != nil {
			if rerr := h.quota.Release(ctx, tenant, kind, 1); rerr != nil {
				logger.C(ctx).Warn().Err(rerr).Str("kind", string(kind)).Msg("quota release failed")
			}
		}
		return httpkit.Error(err)
	}

	if h.quota != nil {
		// storage is soft-capped: record the bytes, warn on overage
		dec, qerr := h.quota.TryConsume(ctx, tenant, quotadomain.KindStorageBytes, art.ByteSize)
		if qerr != nil {
			logger.C(ctx).Warn().Err(qerr).Msg("storage usage record failed")
		} else if dec.Overage > 0 {
			logger.C(ctx).Warn().
				Str("tenant_id", tenant).
				Int64("overage_bytes", dec.Overage).
				Msg("tenant over storage cap")
		}
	}
	return httpkit.Created(art)
}

// @Summary Recompute and check an artifact digest
// @Tags Custody
// @Accept json
// @Produce json
// @Param payload body ArtifactRef true "Artifact"
// @Success 200 {object} VerifyResult "ok"
// @Router /custody/verify [post]
func (h *handlers) verify(r *stdhttp.Request, in ArtifactRef) (any, error) {
	ok, err := h.store.Verify(r.Context(), in.ArtifactID)
	if err != nil {
		return nil, err
	}
	return VerifyResult{ArtifactID: in.ArtifactID, Valid: ok}, nil
}

// @Summary Artifact metadata
// @Tags Custody
// @Accept json
// @Produce json
// @Param payload body ArtifactRef true "Artifact"
// @Success 200 {object} domain.Artifact "ok"
// @Router /custody/metadata [post]
func (h *handlers) metadata(r *stdhttp.Request, in ArtifactRef) (any, error) {
	return h.store.Get(r.Context(), in.ArtifactID)
}

// @Summary Chain-of-custody trail for an artifact
// @Tags Custody
// @Accept json
// @Produce json
// @Param payload body ArtifactRef true "Artifact"
// @Success 200 {array} domain.ProvenanceRecord "ok"
// @Router /custody/provenance [post]
func (h *handlers) provenance(r *stdhttp.Request, in ArtifactRef) (any, error) {
	return h.store.Provenance(r.Context(), in.ArtifactID)
}

func resourceKindFor(mime string) quotadomain.ResourceKind {
	if strings.HasPrefix(mime, "video/") {
		return quotadomain.KindVideoCount
	}
	return quotadomain.KindPDFCount
}
