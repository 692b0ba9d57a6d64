// Package domain defines the core types and interfaces for the custody service
package domain

import (
	"io"
	"time"
)

// Artifact is an uploaded evidentiary file. Immutable after admission:
// the digest recorded at intake is authoritative forever
type Artifact struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	SHA256    string    `json:"sha256"`
	ByteSize  int64     `json:"byte_size"`
	Mime      string    `json:"mime"`
	UploadedAt time.Time `json:"uploaded_at"`
	RetentionExpiresAt time.Time `json:"retention_expires_at"`
}

// AdmitInput carries an upload into the store. Body is streamed, never
// buffered whole
type AdmitInput struct {
	TenantID     string
	DeclaredMime string
	// DeclaredSHA256 is optional; when set a mismatch is an integrity failure
	DeclaredSHA256 string
	SourceDevice   string
	SourceIP       string
	Operator       string
	Body           io.Reader
}

// ProvenanceRecord is one immutable chain-of-custody entry.
// Records are only ever appended, never updated or deleted
type ProvenanceRecord struct {
	ArtifactID   string    `json:"artifact_id"`
	TenantID     string    `json:"tenant_id"`
	Action       string    `json:"action"`
	Operator     string    `json:"operator"`
	SourceDevice string    `json:"source_device"`
	SourceIP     string    `json:"source_ip"`
	At           time.Time `json:"at"`
}
