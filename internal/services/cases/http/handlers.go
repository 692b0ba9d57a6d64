// Package http provides http transport for cases
package http

import (
	stdhttp "net/http"
	"time"

	"custodian/internal/core/event"
	"custodian/internal/modkit/httpkit"
	"custodian/internal/services/cases/domain"
)

// CreateInput opens a new case
type CreateInput struct {
	Title string `json:"title" validate:"required,max=512"`
}

// CaseRef addresses a case
type CaseRef struct {
	CaseID string `json:"case_id" validate:"required,uuid4"`
}

// AddSourceInput attaches an admitted artifact as a case source
type AddSourceInput struct {
	CaseID     string `json:"case_id" validate:"required,uuid4"`
	ArtifactID string `json:"artifact_id" validate:"required,uuid4"`
	Kind       string `json:"kind" validate:"required,source_kind"`
	// Priority ranks the source for tie-breaks, lower wins; 0 picks the
	// default for the kind
	Priority int `json:"priority" validate:"gte=0,lte=9"`
	// Anchor fields tie a position in the stream to a shared wall clock
	AnchorWallClock      *time.Time `json:"anchor_wall_clock,omitempty"`
	AnchorOffsetSeconds  float64    `json:"anchor_offset_seconds,omitempty"`
}

// TimelineRef addresses a persisted timeline version; version 0 means latest
type TimelineRef struct {
	CaseID  string `json:"case_id" validate:"required,uuid4"`
	Version int    `json:"version" validate:"gte=0"`
}

// Register mounts case endpoints on the given router
func Register(r httpkit.Router, cases domain.CasePort, timelines domain.TimelinePort) {
	h := &handlers{cases: cases, timelines: timelines}

	httpkit.PostJSON[CreateInput](r, "/create", h.create)
	httpkit.PostJSON[CaseRef](r, "/get", h.get)
	httpkit.PostJSON[AddSourceInput](r, "/sources/add", h.addSource)
	httpkit.PostJSON[CaseRef](r, "/sources/list", h.sources)
	httpkit.PostJSON[CaseRef](r, "/cancel", h.cancel)
	httpkit.PostJSON[TimelineRef](r, "/timeline", h.timeline)
}

type handlers struct {
	cases     domain.CasePort
	timelines domain.TimelinePort
}

// @Summary Open a new case
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body CreateInput true "Case"
// @Success 201 {object} domain.Case "created"
// @Router /cases/create [post]
func (h *handlers) create(r *stdhttp.Request, in CreateInput) (any, error) {
	tenant, err := httpkit.Tenant(r)
	if err != nil {
		return nil, err
	}
	c, err := h.cases.Create(r.Context(), tenant, in.Title)
	if err != nil {
		return nil, err
	}
	return httpkit.Created(c), nil
}

// @Summary Case details
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body CaseRef true "Case"
// @Success 200 {object} domain.Case "ok"
// @Router /cases/get [post]
func (h *handlers) get(r *stdhttp.Request, in CaseRef) (any, error) {
	return h.cases.Get(r.Context(), in.CaseID)
}

// @Summary Attach an artifact to a case
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body AddSourceInput true "Source"
// @Success 201 {object} domain.Source "created"
// @Failure 409 {object} httpkit.Envelope "sources closed"
// @Router /cases/sources/add [post]
func (h *handlers) addSource(r *stdhttp.Request, in AddSourceInput) (any, error) {
	kind, err := event.ParseSourceKind(in.Kind)
	if err != nil {
		return nil, err
	}
	src, err := h.cases.AddSource(r.Context(), domain.AddSourceInput{
		CaseID:          in.CaseID,
		ArtifactID:      in.ArtifactID,
		Kind:            kind,
		Priority:        in.Priority,
		AnchorWallClock: in.AnchorWallClock,
		AnchorOffset:    time.Duration(in.AnchorOffsetSeconds * float64(time.Second)),
	})
	if err != nil {
		return nil, err
	}
	return httpkit.Created(src), nil
}

// @Summary Case sources in ingest order
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body CaseRef true "Case"
// @Success 200 {array} domain.Source "ok"
// @Router /cases/sources/list [post]
func (h *handlers) sources(r *stdhttp.Request, in CaseRef) (any, error) {
	return h.cases.Sources(r.Context(), in.CaseID)
}

// @Summary Cancel an in-flight case
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body CaseRef true "Case"
// @Success 200 {object} domain.Case "ok"
// @Failure 409 {object} httpkit.Envelope "already terminal"
// @Router /cases/cancel [post]
func (h *handlers) cancel(r *stdhttp.Request, in CaseRef) (any, error) {
	return h.cases.Cancel(r.Context(), in.CaseID)
}

// @Summary Persisted timeline for a case
// @Tags Cases
// @Accept json
// @Produce json
// @Param payload body TimelineRef true "Timeline"
// @Success 200 {object} timeline.Timeline "ok"
// @Router /cases/timeline [post]
func (h *handlers) timeline(r *stdhttp.Request, in TimelineRef) (any, error) {
	if in.Version > 0 {
		return h.timelines.Get(r.Context(), in.CaseID, in.Version)
	}
	return h.timelines.Latest(r.Context(), in.CaseID)
}
