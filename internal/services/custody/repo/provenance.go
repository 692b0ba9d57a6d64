package repo

import (
	"context"
	"time"

	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/store"
	"custodian/internal/services/custody/domain"
)

// provenance columns in insert order
var provenanceCols = []string{
	"artifact_id", "tenant_id", "action", "operator", "source_device", "source_ip", "at",
}

// NewProvenance returns the ClickHouse-backed custody trail.
// The table is append-only; there is no update or delete path on purpose
func NewProvenance(ch store.Clickhouse) domain.ProvenanceRepo {
	return &chProv{ch: ch}
}

type chProv struct{ ch store.Clickhouse }

func (r *chProv) Append(ctx context.Context, rec domain.ProvenanceRecord) error {
	if r.ch == nil {
		return perr.Unavailablef("provenance store not configured")
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	err := r.ch.Insert(ctx, "custody_provenance", provenanceCols, [][]any{{
		rec.ArtifactID, rec.TenantID, rec.Action, rec.Operator, rec.SourceDevice, rec.SourceIP, at,
	}})
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeDB, "append provenance")
	}
	return nil
}

func (r *chProv) List(ctx context.Context, artifactID string) ([]domain.ProvenanceRecord, error) {
	if r.ch == nil {
		return nil, perr.Unavailablef("provenance store not configured")
	}
	const q = `
		SELECT artifact_id, tenant_id, action, operator, source_device, source_ip, at
		FROM custody_provenance
		WHERE artifact_id = ?
		ORDER BY at`
	rows, err := r.ch.Query(ctx, q, artifactID)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeDB, "list provenance")
	}
	defer rows.Close()

	var out []domain.ProvenanceRecord
	for rows.Next() {
		var rec domain.ProvenanceRecord
		if err := rows.Scan(&rec.ArtifactID, &rec.TenantID, &rec.Action, &rec.Operator,
			&rec.SourceDevice, &rec.SourceIP, &rec.At); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
