package domain

import (
	"context"
	"io"
	"time"
)

// StorePort is the custody surface other modules use
type StorePort interface {
	// Admit streams the body into content-addressed storage, records the
	// artifact and appends a provenance record
	Admit(ctx context.Context, in AdmitInput) (Artifact, error)

	// Verify recomputes the digest from stored bytes. Read-only and
	// side-effect-free so audits can call it at any time
	Verify(ctx context.Context, artifactID string) (bool, error)

	// Get returns artifact metadata
	Get(ctx context.Context, artifactID string) (Artifact, error)

	// Open streams the stored bytes for downstream processing
	Open(ctx context.Context, artifactID string) (io.ReadCloser, error)

	// Provenance lists the custody trail for an artifact
	Provenance(ctx context.Context, artifactID string) ([]ProvenanceRecord, error)
}

// SweepPort is used by the retention sweeper
type SweepPort interface {
	// SweepExpired removes bytes and index rows for artifacts past their
	// retention expiry. Provenance records are never touched
	SweepExpired(ctx context.Context, now time.Time) (int, error)
}

// StorageRepo is the persistence seam bound per query/tx
type StorageRepo interface {
	InsertArtifact(ctx context.Context, a Artifact) error
	GetArtifact(ctx context.Context, id string) (Artifact, error)
	ListExpired(ctx context.Context, now time.Time, limit int) ([]Artifact, error)
	DeleteArtifact(ctx context.Context, id string) error
}

// ProvenanceRepo appends and reads the custody trail
type ProvenanceRepo interface {
	Append(ctx context.Context, rec ProvenanceRecord) error
	List(ctx context.Context, artifactID string) ([]ProvenanceRecord, error)
}
