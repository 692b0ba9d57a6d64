// Package repo provides repository implementations for the custody service
package repo

import (
	"context"
	"time"

	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/services/custody/domain"
)

// binder implements repokit.Binder[domain.StorageRepo]
type binder struct{}

// NewPG returns a Postgres binder for domain.StorageRepo
func NewPG() repokit.Binder[domain.StorageRepo] { return binder{} }

// Bind implements repokit.Binder
func (binder) Bind(q repokit.Queryer) domain.StorageRepo { return &pg{q: q} }

type pg struct{ q repokit.Queryer }

func (s *pg) InsertArtifact(ctx context.Context, a domain.Artifact) error {
	const q = `
		INSERT INTO artifacts
			(id, tenant_id, sha256, byte_size, mime, uploaded_at, retention_expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := s.q.Exec(ctx, q,
		a.ID, a.TenantID, a.SHA256, a.ByteSize, a.Mime, a.UploadedAt, a.RetentionExpiresAt)
	if err != nil {
		return perr.FromPostgres(err, "insert artifact")
	}
	return nil
}

func (s *pg) GetArtifact(ctx context.Context, id string) (domain.Artifact, error) {
	const q = `
		SELECT id, tenant_id, sha256, byte_size, mime, uploaded_at, retention_expires_at
		FROM artifacts WHERE id = $1`
	var a domain.Artifact
	err := s.q.QueryRow(ctx, q, id).Scan(
		&a.ID, &a.TenantID, &a.SHA256, &a.ByteSize, &a.Mime, &a.UploadedAt, &a.RetentionExpiresAt)
	if err != nil {
		return domain.Artifact{}, perr.FromPostgres(err, "get artifact")
	}
	return a, nil
}

func (s *pg) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Artifact, error) {
	const q = `
		SELECT id, tenant_id, sha256, byte_size, mime, uploaded_at, retention_expires_at
		FROM artifacts
		WHERE retention_expires_at <= $1
		ORDER BY retention_expires_at
		LIMIT $2`
	rows, err := s.q.Query(ctx, q, now, limit)
	if err != nil {
		return nil, perr.FromPostgres(err, "list expired artifacts")
	}
	defer rows.Close()

	var out []domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.ID, &a.TenantID, &a.SHA256, &a.ByteSize, &a.Mime, &a.UploadedAt, &a.RetentionExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *pg) DeleteArtifact(ctx context.Context, id string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM artifacts WHERE id = $1`, id)
	if err != nil {
		return perr.FromPostgres(err, "delete artifact")
	}
	return nil
}
