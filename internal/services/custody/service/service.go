// Package service implements custody admission, verification and retention
package service

import (
	"context"
	"io"
	"strings"
	"time"

	"custodian/internal/modkit/repokit"
	perr "custodian/internal/platform/errors"
	"custodian/internal/platform/logger"
	"custodian/internal/services/custody/domain"

	"github.com/google/uuid"
)

// Config tunes the custody store
type Config struct {
	BlobRoot  string
	Retention time.Duration
	// SweepBatch bounds how many expired artifacts one sweep pass handles
	SweepBatch int
}

// Svc implements domain.StorePort and domain.SweepPort
type Svc struct {
	tx    repokit.TxRunner
	repo  repokit.Binder[domain.StorageRepo]
	prov  domain.ProvenanceRepo
	blobs *blobFS
	cfg   Config
	now   func() time.Time
}

// New constructs the custody service
func New(tx repokit.TxRunner, repo repokit.Binder[domain.StorageRepo], prov domain.ProvenanceRepo, cfg Config) (*Svc, error) {
	if cfg.Retention <= 0 {
		cfg.Retention = 90 * 24 * time.Hour
	}
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 500
	}
	blobs, err := newBlobFS(cfg.BlobRoot)
	if err != nil {
		return nil, err
	}
	return &Svc{
		tx:    tx,
		repo:  repo,
		prov:  prov,
		blobs: blobs,
		cfg:   cfg,
		now:   time.Now,
	}, nil
}

// Admit streams the upload into the blob store, computing the digest exactly
// once. A declared checksum that disagrees with the computed digest is an
// integrity failure and the partial bytes are discarded
func (s *Svc) Admit(ctx context.Context, in domain.AdmitInput) (domain.Artifact, error) {
	if in.TenantID == "" {
		return domain.Artifact{}, perr.InvalidArgf("tenant id is required")
	}
	if in.Body == nil {
		return domain.Artifact{}, perr.InvalidArgf("empty upload body")
	}

	digest, size, err := s.blobs.write(in.Body)
	if err != nil {
		return domain.Artifact{}, err
	}

	if declared := strings.ToLower(strings.TrimSpace(in.DeclaredSHA256)); declared != "" && declared != digest {
		// keep nothing a tenant could mistake for admitted evidence
		_ = s.blobs.remove(digest)
		return domain.Artifact{}, perr.Integrityf("declared sha256 %s does not match computed %s", declared, digest)
	}

	now := s.now().UTC()
	art := domain.Artifact{
		ID:                 uuid.NewString(),
		TenantID:           in.TenantID,
		SHA256:             digest,
		ByteSize:           size,
		Mime:               in.DeclaredMime,
		UploadedAt:         now,
		RetentionExpiresAt: now.Add(s.cfg.Retention),
	}

	err = s.tx.Tx(ctx, func(q repokit.Queryer) error {
		return s.repo.Bind(q).InsertArtifact(ctx, art)
	})
	if err != nil {
		_ = s.blobs.remove(digest)
		return domain.Artifact{}, err
	}

	// the provenance append is the chain-of-custody record; failure here is
	// surfaced, an artifact without a trail is not admitted
	rec := domain.ProvenanceRecord{
		ArtifactID:   art.ID,
		TenantID:     art.TenantID,
		Action:       "admitted",
		Operator:     in.Operator,
		SourceDevice: in.SourceDevice,
		SourceIP:     in.SourceIP,
		At:           now,
	}
	if err := s.prov.Append(ctx, rec); err != nil {
		return domain.Artifact{}, err
	}

	logger.C(ctx).Info().
		Str("artifact_id", art.ID).
		Str("tenant_id", art.TenantID).
		Str("sha256", digest).
		Int64("bytes", size).
		Msg("artifact admitted")
	return art, nil
}

// Verify recomputes the digest from stored bytes and compares it to the
// digest recorded at admit time. No state is mutated
func (s *Svc) Verify(ctx context.Context, artifactID string) (bool, error) {
	art, err := s.Get(ctx, artifactID)
	if err != nil {
		return false, err
	}
	return s.blobs.verify(art.SHA256)
}

// Get returns artifact metadata
func (s *Svc) Get(ctx context.Context, artifactID string) (domain.Artifact, error) {
	var art domain.Artifact
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		var err error
		art, err = s.repo.Bind(q).GetArtifact(ctx, artifactID)
		return err
	})
	return art, err
}

// Open streams the stored bytes for downstream processing
func (s *Svc) Open(ctx context.Context, artifactID string) (io.ReadCloser, error) {
	art, err := s.Get(ctx, artifactID)
	if err != nil {
		return nil, err
	}
	return s.blobs.open(art.SHA256)
}

// Provenance lists the custody trail for an artifact
func (s *Svc) Provenance(ctx context.Context, artifactID string) ([]domain.ProvenanceRecord, error) {
	if _, err := s.Get(ctx, artifactID); err != nil {
		return nil, err
	}
	return s.prov.List(ctx, artifactID)
}

// SweepExpired removes bytes and index rows for artifacts past retention.
// Provenance is untouched: the custody trail outlives the evidence
func (s *Svc) SweepExpired(ctx context.Context, now time.Time) (int, error) {
	log := logger.Named("custody-sweep")
	removed := 0
	err := s.tx.Tx(ctx, func(q repokit.Queryer) error {
		r := s.repo.Bind(q)
		expired, err := r.ListExpired(ctx, now, s.cfg.SweepBatch)
		if err != nil {
			return err
		}
		for _, art := range expired {
			if err := s.blobs.remove(art.SHA256); err != nil {
				log.Warn().Err(err).Str("artifact_id", art.ID).Msg("blob removal failed, keeping index row")
				continue
			}
			if err := r.DeleteArtifact(ctx, art.ID); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	if err != nil {
		return removed, err
	}
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("retention sweep complete")
	}
	return removed, nil
}
