// Package domain defines the core types and interfaces for the quota service
package domain

import (
	"time"

	perr "custodian/internal/platform/errors"
)

// ResourceKind names a metered resource
type ResourceKind string

// Metered resource kinds
const (
	KindVideoCount   ResourceKind = "video-count"
	KindPDFCount     ResourceKind = "pdf-count"
	KindStorageBytes ResourceKind = "storage-bytes"
)

// ParseResourceKind validates a wire string
func ParseResourceKind(s string) (ResourceKind, error) {
	switch ResourceKind(s) {
	case KindVideoCount, KindPDFCount, KindStorageBytes:
		return ResourceKind(s), nil
	}
	return "", perr.InvalidArgf("unknown resource kind %q", s)
}

// CapMode distinguishes hard caps from soft caps with overage billing
type CapMode string

// Cap modes
const (
	CapHard CapMode = "hard"
	CapSoft CapMode = "soft"
)

// Cap is the limit configured for one (kind) on a tenant's plan
type Cap struct {
	Amount int64
	Mode   CapMode
}

// Decision is the outcome of a TryConsume call
type Decision struct {
	Admitted bool   `json:"admitted"`
	Reason   string `json:"reason,omitempty"`
	Used     int64  `json:"used"`
	Cap      int64  `json:"cap"`
	Overage  int64  `json:"overage"`
}

// Period is one per-tenant per-kind billing window counter
type Period struct {
	TenantID    string       `json:"tenant_id"`
	Kind        ResourceKind `json:"kind"`
	PeriodStart time.Time    `json:"period_start"`
	PeriodEnd   time.Time    `json:"period_end"`
	Used        int64        `json:"used"`
	Cap         int64        `json:"cap"`
	Mode        CapMode      `json:"mode"`
}

// Overage reports how far past the cap a soft period ran
func (p Period) Overage() int64 {
	if p.Used > p.Cap {
		return p.Used - p.Cap
	}
	return 0
}

// Snapshot is the record emitted at period close for billing reconciliation
type Snapshot struct {
	TenantID  string       `json:"tenant_id"`
	Kind      ResourceKind `json:"kind"`
	PeriodEnd time.Time    `json:"period_end"`
	Used      int64        `json:"used"`
	Cap       int64        `json:"cap"`
	Overage   int64        `json:"overage"`
}
